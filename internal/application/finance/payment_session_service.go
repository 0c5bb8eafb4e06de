package finance

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/community/console/internal/domain/finance"
	"github.com/community/console/internal/domain/shared"
	"github.com/community/console/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	// ErrGatewayUnavailable is returned when no gateway frame is configured
	ErrGatewayUnavailable = errors.New("payment session: gateway frame is not configured")
	// ErrMemberRequired is returned when a session is started without a member
	ErrMemberRequired = shared.NewDomainError("INVALID_INPUT", "member id is required")
)

const (
	defaultSessionTTL     = 30 * time.Minute
	defaultSweepInterval  = time.Minute
	defaultGatewayTimeout = 10 * time.Minute

	gatewayExpiredMessage = "The payment page expired. Open it again to enter the card."
)

// PaymentSessionService hosts in-memory payment sessions and connects
// them to card storage, billing, member lookup and the gateway frame.
// Gateway subscriptions are owned here: one is opened when the frame is
// requested in step 2 and released when the session leaves that step,
// changes mode, is cancelled, submits or expires.
type PaymentSessionService struct {
	cardStorage    finance.CardStorage
	billing        finance.Billing
	members        finance.MemberLookup
	gateway        finance.GatewayResultSource
	relay          finance.GatewayMessageRelay
	frame          finance.GatewayFrame
	eventPublisher shared.EventPublisher
	metrics        PaymentMetricsRecorder
	logger         *zap.Logger

	sessionTTL     time.Duration
	sweepInterval  time.Duration
	gatewayTimeout time.Duration
	defaultVAT     decimal.Decimal
	clock          func() time.Time

	mu       sync.RWMutex
	sessions map[uuid.UUID]*sessionEntry

	releases sync.WaitGroup
	stopCh   chan struct{}
	doneCh   chan struct{}
	runOnce  sync.Once
	stopOnce sync.Once
	running  bool
}

// PaymentSessionServiceConfig holds the collaborators and policies of the service
type PaymentSessionServiceConfig struct {
	CardStorage    finance.CardStorage
	Billing        finance.Billing
	Members        finance.MemberLookup
	Gateway        finance.GatewayResultSource
	Relay          finance.GatewayMessageRelay
	Frame          finance.GatewayFrame
	EventPublisher shared.EventPublisher
	Metrics        PaymentMetricsRecorder
	Logger         *zap.Logger

	SessionTTL        time.Duration
	SweepInterval     time.Duration
	GatewayTimeout    time.Duration
	DefaultVATPercent decimal.Decimal
	Clock             func() time.Time
}

// NewPaymentSessionService creates a new PaymentSessionService
func NewPaymentSessionService(config PaymentSessionServiceConfig) *PaymentSessionService {
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics := config.Metrics
	if metrics == nil {
		metrics = noopMetrics{}
	}
	clock := config.Clock
	if clock == nil {
		clock = time.Now
	}
	ttl := config.SessionTTL
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	sweep := config.SweepInterval
	if sweep <= 0 {
		sweep = defaultSweepInterval
	}
	gatewayTimeout := config.GatewayTimeout
	if gatewayTimeout <= 0 {
		gatewayTimeout = defaultGatewayTimeout
	}

	return &PaymentSessionService{
		cardStorage:    config.CardStorage,
		billing:        config.Billing,
		members:        config.Members,
		gateway:        config.Gateway,
		relay:          config.Relay,
		frame:          config.Frame,
		eventPublisher: config.EventPublisher,
		metrics:        metrics,
		logger:         logger,
		sessionTTL:     ttl,
		sweepInterval:  sweep,
		gatewayTimeout: gatewayTimeout,
		defaultVAT:     config.DefaultVATPercent,
		clock:          clock,
		sessions:       make(map[uuid.UUID]*sessionEntry),
		stopCh:         make(chan struct{}),
		doneCh:         make(chan struct{}),
	}
}

// Start runs the idle session sweeper until Stop is called
func (s *PaymentSessionService) Start() {
	s.runOnce.Do(func() {
		s.running = true
		go s.sweepLoop()
	})
}

// Stop halts the sweeper and releases every open gateway subscription
func (s *PaymentSessionService) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
		// Keeps a later Start from launching the sweeper.
		s.runOnce.Do(func() {})
		if s.running {
			<-s.doneCh
		}

		s.mu.Lock()
		entries := make([]*sessionEntry, 0, len(s.sessions))
		for _, e := range s.sessions {
			entries = append(entries, e)
		}
		s.mu.Unlock()

		for _, e := range entries {
			s.releaseGateway(e, nil)
		}
		s.releases.Wait()
	})
}

func (s *PaymentSessionService) sweepLoop() {
	defer close(s.doneCh)
	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			if n := s.SweepExpired(context.Background()); n > 0 {
				s.logger.Info("expired idle payment sessions", zap.Int("count", n))
			}
		}
	}
}

// SweepExpired drops sessions idle for longer than the session TTL and
// returns how many were removed. Active ones are cancelled first.
func (s *PaymentSessionService) SweepExpired(ctx context.Context) int {
	now := s.clock()

	s.mu.Lock()
	var expired []*sessionEntry
	for id, e := range s.sessions {
		if e.idleSince(now) > s.sessionTTL && !e.session.State().Submitting {
			expired = append(expired, e)
			delete(s.sessions, id)
		}
	}
	s.mu.Unlock()

	for _, e := range expired {
		s.releaseGateway(e, nil)
		if e.session.Cancel() {
			s.metrics.RecordSessionClosed(ctx, "expired")
		}
		s.publishEvents(ctx, e.session)
	}
	return len(expired)
}

// StartSession resolves the member, loads their stored cards and opens a
// session at the payer step. A failed card listing still starts the
// session with no stored cards.
func (s *PaymentSessionService) StartSession(ctx context.Context, input StartSessionInput) (*SessionView, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "payment_session", "start")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrMemberID, input.MemberID.String())

	if input.MemberID == uuid.Nil {
		return nil, ErrMemberRequired
	}

	var profile *finance.MemberProfile
	if s.members != nil {
		p, err := s.members.Resolve(ctx, input.MemberID)
		switch {
		case errors.Is(err, finance.ErrMemberNotFound):
			return nil, err
		case err != nil:
			s.logger.Warn("member lookup failed, payer prefill unavailable",
				zap.String("member_id", input.MemberID.String()),
				zap.Error(err))
		default:
			profile = p
		}
	}

	selector := finance.NewPaymentMethodSelector(s.cardStorage)
	entry := &sessionEntry{member: profile, lastSeen: s.clock()}
	if _, err := selector.LoadStoredCards(ctx, input.MemberID); err != nil {
		s.logger.Warn("stored cards could not be loaded",
			zap.String("member_id", input.MemberID.String()),
			zap.Error(err))
		entry.cardsError = "Stored cards could not be loaded"
	}

	entry.session = finance.NewPaymentSession(input.MemberID, selector, s.billing,
		finance.WithClock(s.clock),
		finance.WithDefaultVATPercent(s.defaultVAT),
	)

	s.mu.Lock()
	s.sessions[entry.session.ID] = entry
	s.mu.Unlock()

	s.metrics.RecordSessionStarted(ctx)
	telemetry.SetAttribute(span, telemetry.SpanAttrSessionID, entry.session.ID.String())
	s.logger.Info("payment session started",
		zap.String("session_id", entry.session.ID.String()),
		zap.String("member_id", input.MemberID.String()),
		zap.Int("stored_cards", len(selector.State().Cards)))

	return s.view(entry), nil
}

// GetSession returns the current view of a session
func (s *PaymentSessionService) GetSession(ctx context.Context, id uuid.UUID) (*SessionView, error) {
	entry, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	return s.view(entry), nil
}

// UpdatePayer replaces the payer details
func (s *PaymentSessionService) UpdatePayer(ctx context.Context, id uuid.UUID, details finance.PayerDetails) (*SessionView, error) {
	entry, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	if err := entry.session.UpdatePayer(details); err != nil {
		return nil, err
	}
	return s.view(entry), nil
}

// SetUseMemberDetails toggles prefilling the payer from the member record
func (s *PaymentSessionService) SetUseMemberDetails(ctx context.Context, id uuid.UUID, enabled bool) (*SessionView, error) {
	entry, err := s.lookup(id)
	if err != nil {
		return nil, err
	}

	profile := entry.memberProfile()
	if enabled && profile == nil && s.members != nil {
		// The lookup may have failed when the session started.
		p, err := s.members.Resolve(ctx, entry.session.MemberID())
		if err != nil {
			return nil, finance.NewNetworkError("resolve member", err)
		}
		entry.setMemberProfile(p)
		profile = p
	}

	if err := entry.session.UseMemberDetails(enabled, profile); err != nil {
		return nil, err
	}
	return s.view(entry), nil
}

// UpdatePaymentDetails sets amount, installments, VAT and description
func (s *PaymentSessionService) UpdatePaymentDetails(ctx context.Context, id uuid.UUID, details finance.PaymentDetails) (*SessionView, error) {
	entry, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	if err := entry.session.UpdatePaymentDetails(details); err != nil {
		return nil, err
	}
	return s.view(entry), nil
}

// SetPaymentMode switches between saved card, new card and standing order.
// Leaving new card mode releases the gateway subscription.
func (s *PaymentSessionService) SetPaymentMode(ctx context.Context, id uuid.UUID, mode finance.PaymentMode) (*SessionView, error) {
	entry, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	if err := entry.session.RequireStep(finance.StepPayment); err != nil {
		return nil, err
	}
	if err := entry.session.Selector().SetMode(mode); err != nil {
		return nil, err
	}
	if mode != finance.PaymentModeNewCard {
		s.releaseGateway(entry, nil)
		entry.setGatewayError("")
	}
	return s.view(entry), nil
}

// SelectCard selects one of the member's stored cards
func (s *PaymentSessionService) SelectCard(ctx context.Context, id, cardID uuid.UUID) (*SessionView, error) {
	entry, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	if err := entry.session.RequireStep(finance.StepPayment); err != nil {
		return nil, err
	}
	if err := entry.session.Selector().SelectCard(cardID); err != nil {
		return nil, err
	}
	s.releaseGateway(entry, nil)
	return s.view(entry), nil
}

// SetDefaultCard marks a stored card as the member's default
func (s *PaymentSessionService) SetDefaultCard(ctx context.Context, id, cardID uuid.UUID) (*SessionView, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "payment_session", "set_default_card")
	defer span.End()

	entry, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	if err := entry.session.RequireStep(finance.StepPayment); err != nil {
		return nil, err
	}
	if err := entry.session.Selector().SetDefaultCard(ctx, cardID); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	return s.view(entry), nil
}

// TokenizeCard tokenizes a card typed into the console and selects it
func (s *PaymentSessionService) TokenizeCard(ctx context.Context, id uuid.UUID, draft finance.NewCardDraft) (*SessionView, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "payment_session", "tokenize_card")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrSessionID, id.String(),
		telemetry.SpanAttrCardNetwork, finance.ClassifyCardNetwork(draft.Number).String(),
	)

	entry, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	if err := entry.session.RequireStep(finance.StepPayment); err != nil {
		return nil, err
	}
	s.releaseGateway(entry, nil)

	card, err := entry.session.Selector().TokenizeNewCard(ctx, draft)
	if err != nil {
		s.metrics.RecordTokenization(ctx, "console", tokenizationResult(err))
		if !errors.Is(err, finance.ErrInvalidCardDraft) {
			telemetry.RecordError(span, err)
			s.logger.Warn("card tokenization failed",
				zap.String("session_id", id.String()),
				zap.Error(err))
		}
		return nil, err
	}

	s.metrics.RecordTokenization(ctx, "console", "success")
	s.publish(ctx, finance.NewCardTokenizedEvent(id, *card, false))
	s.logger.Info("card tokenized",
		zap.String("session_id", id.String()),
		zap.String("card_id", card.ID.String()),
		zap.String("network", card.Network.String()),
		zap.Bool("remember", card.Remember))
	return s.view(entry), nil
}

// OpenGatewayFrame switches the session to new card mode, subscribes to
// gateway results for it and returns the frame URL
func (s *PaymentSessionService) OpenGatewayFrame(ctx context.Context, id uuid.UUID, input GatewayFrameInput) (*GatewayFrameView, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "payment_session", "open_gateway_frame")
	defer span.End()

	if s.gateway == nil || s.frame == nil {
		return nil, ErrGatewayUnavailable
	}
	entry, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	if err := entry.session.RequireStep(finance.StepPayment); err != nil {
		return nil, err
	}

	selector := entry.session.Selector()
	if err := selector.SetMode(finance.PaymentModeNewCard); err != nil {
		return nil, err
	}
	selector.SetFrameCardOptions(input.HolderName, input.Remember)

	summary := entry.session.Summary()
	url, err := s.frame.FrameURL(finance.FrameRequest{
		SessionID:    id,
		Amount:       summary.Total,
		Installments: summary.Installments,
		Description:  summary.Description,
		Payer:        entry.session.State().Payer,
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	handler := &gatewayHandler{svc: s, entry: entry}
	s.reserveGateway(entry, handler)

	// The subscription outlives this request.
	sub, err := s.gateway.Subscribe(context.WithoutCancel(ctx), id, handler)
	if err != nil {
		entry.detachGateway(handler)
		telemetry.RecordError(span, err)
		return nil, err
	}
	deadline := s.clock().Add(s.gatewayTimeout)
	if !entry.attachGateway(handler, sub, deadline) {
		sub.Close()
	}
	entry.setGatewayError("")

	s.logger.Info("gateway frame opened", zap.String("session_id", id.String()))
	return &GatewayFrameView{URL: url, ExpiresAt: deadline}, nil
}

// RelayGatewayMessage forwards a raw frame message to the session's
// subscription and reports whether one was open
func (s *PaymentSessionService) RelayGatewayMessage(ctx context.Context, id uuid.UUID, msg finance.GatewayMessage) (bool, error) {
	if s.relay == nil {
		return false, ErrGatewayUnavailable
	}
	if _, err := s.lookup(id); err != nil {
		return false, err
	}
	return s.relay.Publish(ctx, id, msg), nil
}

// InvoicePreview returns the invoice shown at the invoice and confirm steps
func (s *PaymentSessionService) InvoicePreview(ctx context.Context, id uuid.UUID) (*finance.InvoicePreview, error) {
	entry, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	return entry.session.InvoicePreview()
}

// Advance moves the session forward. From the confirm step it submits the
// charge; a decline or upstream failure is returned as an error and the
// session stays at confirm. A submitted session is dropped and only the
// returned view remains.
func (s *PaymentSessionService) Advance(ctx context.Context, id uuid.UUID) (*AdvanceResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "payment_session", "advance")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrSessionID, id.String())

	entry, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	session := entry.session
	from := session.CurrentStep()
	telemetry.SetAttribute(span, telemetry.SpanAttrStep, from.String())

	started := s.clock()
	moved, err := session.Advance(ctx)

	if from == finance.StepConfirm {
		if outcome, attempted := submissionOutcome(session, moved, err); attempted {
			s.metrics.RecordSubmission(ctx, outcome, s.clock().Sub(started))
			telemetry.SetAttribute(span, telemetry.SpanAttrOutcome, outcome)
		}
	}
	if moved && (from == finance.StepPayment || from == finance.StepConfirm) {
		s.releaseGateway(entry, nil)
	}
	s.publishEvents(ctx, session)

	if err != nil {
		telemetry.RecordError(span, err)
		s.logger.Warn("payment session advance failed",
			zap.String("session_id", id.String()),
			zap.String("step", from.String()),
			zap.Error(err))
		return nil, err
	}

	view := s.view(entry)
	if moved && from == finance.StepConfirm {
		s.mu.Lock()
		delete(s.sessions, id)
		s.mu.Unlock()

		s.metrics.RecordSessionClosed(ctx, "submitted")
		if result := session.Result(); result != nil {
			telemetry.SetAttribute(span, telemetry.SpanAttrTransactionID, result.TransactionID)
			s.logger.Info("payment session submitted",
				zap.String("session_id", id.String()),
				zap.String("outcome", result.Outcome.String()),
				zap.String("transaction_id", result.TransactionID))
		}
	}
	return &AdvanceResult{Moved: moved, Session: view}, nil
}

// Back returns to the previous step
func (s *PaymentSessionService) Back(ctx context.Context, id uuid.UUID) (*AdvanceResult, error) {
	entry, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	from := entry.session.CurrentStep()
	moved := entry.session.Back()
	if moved && from == finance.StepPayment {
		s.releaseGateway(entry, nil)
	}
	return &AdvanceResult{Moved: moved, Session: s.view(entry)}, nil
}

// Cancel abandons a session. Nothing is sent to billing or card storage.
func (s *PaymentSessionService) Cancel(ctx context.Context, id uuid.UUID) error {
	entry, err := s.lookup(id)
	if err != nil {
		return err
	}
	if !entry.session.Cancel() {
		return finance.ErrSessionClosed
	}

	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()

	s.releaseGateway(entry, nil)
	s.publishEvents(ctx, entry.session)
	s.metrics.RecordSessionClosed(ctx, "cancelled")
	s.logger.Info("payment session cancelled", zap.String("session_id", id.String()))
	return nil
}

// PreviewInstallments computes a summary and schedule without a session
func (s *PaymentSessionService) PreviewInstallments(input InstallmentPreviewInput) (*InstallmentPreview, error) {
	details := finance.PaymentDetails{
		Amount:       input.Amount,
		Installments: input.Installments,
		VATPercent:   input.VATPercent,
	}
	if err := details.Validate(); err != nil {
		return nil, err
	}
	if input.Installments < finance.MinInstallments || input.Installments > finance.MaxInstallments {
		return nil, finance.ErrInvalidInstallments
	}

	summary := finance.NewTransactionSummary(details)
	now := s.clock()
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	schedule := finance.ComputeInstallments(summary.Total, summary.Installments, start, input.MethodLabel)

	return &InstallmentPreview{
		Amount:        summary.Amount,
		VATPercent:    summary.VATPercent,
		VATAmount:     summary.VATAmount,
		Total:         summary.Total,
		Schedule:      schedule,
		ScheduleTotal: finance.ScheduleTotal(schedule),
	}, nil
}

// ClassifyCard reports the card network of an account number
func (s *PaymentSessionService) ClassifyCard(pan string) CardClassification {
	network := finance.ClassifyCardNetwork(pan)
	return CardClassification{Network: network, DisplayName: network.DisplayName()}
}

// SessionCount returns the number of hosted sessions
func (s *PaymentSessionService) SessionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *PaymentSessionService) lookup(id uuid.UUID) (*sessionEntry, error) {
	s.mu.RLock()
	entry, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, finance.ErrSessionNotFound
	}
	entry.touch(s.clock())
	return entry, nil
}

func (s *PaymentSessionService) view(entry *sessionEntry) *SessionView {
	state := entry.session.State()

	entry.mu.Lock()
	defer entry.mu.Unlock()
	return &SessionView{
		SessionState:  state,
		MemberProfile: entry.member,
		GatewayOpen:   entry.subscription != nil,
		GatewayError:  entry.gatewayError,
		CardsError:    entry.cardsError,
		ExpiresAt:     entry.lastSeen.Add(s.sessionTTL),
	}
}

// reserveGateway installs handler as the session's gateway handler and
// closes any previous subscription
func (s *PaymentSessionService) reserveGateway(entry *sessionEntry, handler *gatewayHandler) {
	entry.mu.Lock()
	prev := entry.subscription
	entry.subscription = nil
	entry.handler = handler
	entry.mu.Unlock()

	if prev != nil {
		prev.Close()
	}
}

// releaseGateway closes the session's subscription. A non-nil handler
// limits the release to the subscription that handler belongs to.
func (s *PaymentSessionService) releaseGateway(entry *sessionEntry, handler *gatewayHandler) {
	if sub := entry.detachGateway(handler); sub != nil {
		sub.Close()
	}
}

// releaseGatewayAsync is used from handler callbacks, which must not
// close their own subscription
func (s *PaymentSessionService) releaseGatewayAsync(entry *sessionEntry, handler *gatewayHandler) {
	s.releases.Add(1)
	go func() {
		defer s.releases.Done()
		s.releaseGateway(entry, handler)
	}()
}

func (s *PaymentSessionService) publishEvents(ctx context.Context, session *finance.PaymentSession) {
	s.publish(ctx, session.PullEvents()...)
}

func (s *PaymentSessionService) publish(ctx context.Context, events ...shared.DomainEvent) {
	if s.eventPublisher == nil || len(events) == 0 {
		return
	}
	if err := s.eventPublisher.Publish(ctx, events...); err != nil {
		s.logger.Warn("failed to publish payment events",
			zap.Int("count", len(events)),
			zap.Error(err))
	}
}

func submissionOutcome(session *finance.PaymentSession, moved bool, err error) (string, bool) {
	if moved {
		if r := session.Result(); r != nil {
			return r.Outcome.String(), true
		}
		return finance.ChargeOutcomeSuccess.String(), true
	}
	var decline *finance.GatewayDeclineError
	if errors.As(err, &decline) {
		return finance.ChargeOutcomeDecline.String(), true
	}
	var netErr *finance.NetworkError
	if errors.As(err, &netErr) {
		return "error", true
	}
	return "", false
}

func tokenizationResult(err error) string {
	var decline *finance.GatewayDeclineError
	switch {
	case errors.Is(err, finance.ErrInvalidCardDraft):
		return "invalid"
	case errors.Is(err, finance.ErrTokenizationInProgress):
		return "busy"
	case errors.As(err, &decline):
		return "declined"
	default:
		return "failed"
	}
}

func userMessage(err error) string {
	var decline *finance.GatewayDeclineError
	if errors.As(err, &decline) {
		return decline.UserMessage()
	}
	return err.Error()
}
