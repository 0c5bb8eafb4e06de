package finance

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/community/console/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SessionStep is one of the four steps of a payment session
type SessionStep int

const (
	StepPayer SessionStep = iota + 1
	StepPayment
	StepInvoice
	StepConfirm
)

// String returns the string representation of SessionStep
func (s SessionStep) String() string {
	switch s {
	case StepPayer:
		return "payer"
	case StepPayment:
		return "payment"
	case StepInvoice:
		return "invoice"
	case StepConfirm:
		return "confirm"
	default:
		return "unknown"
	}
}

// IsValid returns true if the step is between StepPayer and StepConfirm
func (s SessionStep) IsValid() bool {
	return s >= StepPayer && s <= StepConfirm
}

// SessionStatus is the lifecycle state of a session
type SessionStatus string

const (
	SessionStatusActive    SessionStatus = "active"
	SessionStatusSubmitted SessionStatus = "submitted"
	SessionStatusCancelled SessionStatus = "cancelled"
)

// SessionSnapshot is the immutable record handed to billing on submit
type SessionSnapshot struct {
	SessionID     uuid.UUID                  `json:"session_id"`
	MemberID      uuid.UUID                  `json:"member_id"`
	Payer         PayerDetails               `json:"payer"`
	PaymentMethod PaymentMethodSelection     `json:"payment_method"`
	Card          *StoredCard                `json:"card,omitempty"`
	Transaction   TransactionSummary         `json:"transaction"`
	Schedule      []InstallmentScheduleEntry `json:"schedule"`
	TakenAt       time.Time                  `json:"taken_at"`
}

// SessionState is a consistent read of a session for views
type SessionState struct {
	ID               uuid.UUID                  `json:"id"`
	MemberID         uuid.UUID                  `json:"member_id"`
	Step             SessionStep                `json:"step"`
	Status           SessionStatus              `json:"status"`
	Payer            PayerDetails               `json:"payer"`
	UseMemberDetails bool                       `json:"use_member_details"`
	Method           SelectorState              `json:"method"`
	Transaction      TransactionSummary         `json:"transaction"`
	Schedule         []InstallmentScheduleEntry `json:"schedule"`
	CanAdvance       bool                       `json:"can_advance"`
	Issues           []FieldIssue               `json:"issues,omitempty"`
	Submitting       bool                       `json:"submitting"`
	LastError        string                     `json:"last_error,omitempty"`
	Result           *ChargeResult              `json:"result,omitempty"`
}

// PaymentSessionOption configures a PaymentSession
type PaymentSessionOption func(*PaymentSession)

// WithClock overrides the time source used for schedules and snapshots
func WithClock(clock func() time.Time) PaymentSessionOption {
	return func(s *PaymentSession) {
		s.clock = clock
	}
}

// WithDefaultVATPercent sets the VAT rate a new session starts with
func WithDefaultVATPercent(percent decimal.Decimal) PaymentSessionOption {
	return func(s *PaymentSession) {
		s.summary = NewTransactionSummary(PaymentDetails{VATPercent: percent})
	}
}

// PaymentSession is the four-step payment capture state machine:
// payer, payment, invoice, confirm. Advancing from confirm submits.
// It lives in memory only and is discarded once submitted or cancelled.
type PaymentSession struct {
	shared.BaseAggregateRoot

	mu       sync.Mutex
	memberID uuid.UUID
	step     SessionStep
	status   SessionStatus
	payer    *PayerDetailsCollector
	selector *PaymentMethodSelector
	billing  Billing
	summary  TransactionSummary
	clock    func() time.Time

	submitting bool
	lastError  string
	snapshot   *SessionSnapshot
	result     *ChargeResult
}

// NewPaymentSession creates a session at the payer step
func NewPaymentSession(memberID uuid.UUID, selector *PaymentMethodSelector, billing Billing, opts ...PaymentSessionOption) *PaymentSession {
	s := &PaymentSession{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		memberID:          memberID,
		step:              StepPayer,
		status:            SessionStatusActive,
		payer:             NewPayerDetailsCollector(),
		selector:          selector,
		billing:           billing,
		summary:           NewTransactionSummary(PaymentDetails{}),
		clock:             time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// MemberID returns the member the session bills
func (s *PaymentSession) MemberID() uuid.UUID {
	return s.memberID
}

// Selector returns the session's payment method selector
func (s *PaymentSession) Selector() *PaymentMethodSelector {
	return s.selector
}

// CurrentStep returns the active step
func (s *PaymentSession) CurrentStep() SessionStep {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.step
}

// Status returns the lifecycle state
func (s *PaymentSession) Status() SessionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// RequireStep returns an error unless the session is active at step
func (s *PaymentSession) RequireStep(step SessionStep) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requireStepLocked(step)
}

func (s *PaymentSession) requireStepLocked(step SessionStep) error {
	if s.status != SessionStatusActive {
		return ErrSessionClosed
	}
	if s.step != step || s.submitting {
		return ErrStepNotActive
	}
	return nil
}

// UpdatePayer replaces the payer details during step 1
func (s *PaymentSession) UpdatePayer(details PayerDetails) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireStepLocked(StepPayer); err != nil {
		return err
	}
	s.payer.Update(details)
	s.Touch()
	return nil
}

// UseMemberDetails toggles the member prefill during step 1
func (s *PaymentSession) UseMemberDetails(enabled bool, member *MemberProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireStepLocked(StepPayer); err != nil {
		return err
	}
	if err := s.payer.SetUseMemberDetails(enabled, member); err != nil {
		return err
	}
	s.Touch()
	return nil
}

// UpdatePaymentDetails sets amount, installments, VAT and description
// during step 2 and recomputes the transaction summary.
func (s *PaymentSession) UpdatePaymentDetails(details PaymentDetails) error {
	if err := details.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireStepLocked(StepPayment); err != nil {
		return err
	}
	s.summary = NewTransactionSummary(details)
	s.Touch()
	return nil
}

// Summary returns the derived transaction summary
func (s *PaymentSession) Summary() TransactionSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.summary
}

// Schedule computes the installment schedule from the current summary
func (s *PaymentSession) Schedule() []InstallmentScheduleEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scheduleLocked()
}

func (s *PaymentSession) scheduleLocked() []InstallmentScheduleEntry {
	now := s.clock()
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return ComputeInstallments(s.summary.Total, s.summary.Installments, start, s.selector.MethodLabel())
}

// CanAdvance reports whether step's own validation holds
func (s *PaymentSession) CanAdvance(step SessionStep) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.canAdvanceLocked(step)
}

func (s *PaymentSession) canAdvanceLocked(step SessionStep) bool {
	switch step {
	case StepPayer:
		return s.payer.IsComplete()
	case StepPayment:
		return s.summary.Amount.IsPositive() &&
			s.summary.Installments >= MinInstallments &&
			s.summary.Installments <= MaxInstallments &&
			s.selector.IsValid()
	case StepInvoice, StepConfirm:
		return true
	default:
		return false
	}
}

// ValidationIssues explains why CanAdvance(step) is false
func (s *PaymentSession) ValidationIssues(step SessionStep) []FieldIssue {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.issuesLocked(step)
}

func (s *PaymentSession) issuesLocked(step SessionStep) []FieldIssue {
	switch step {
	case StepPayer:
		return s.payer.Details().Issues()
	case StepPayment:
		var issues []FieldIssue
		if !s.summary.Amount.IsPositive() {
			issues = append(issues, FieldIssue{Field: "amount", Message: "Amount must be greater than zero"})
		}
		if s.summary.Installments < MinInstallments || s.summary.Installments > MaxInstallments {
			issues = append(issues, FieldIssue{Field: "installments", Message: "Installments must be between 1 and 32"})
		}
		return append(issues, s.selector.Issues()...)
	default:
		return nil
	}
}

// Advance moves to the next step when the current step is valid and
// reports whether it moved. A blocked advance changes nothing and is not an
// error. From the confirm step it submits the session to billing; a
// declined or failed charge keeps the session at confirm so it can be retried.
func (s *PaymentSession) Advance(ctx context.Context) (bool, error) {
	s.mu.Lock()
	if s.status != SessionStatusActive {
		s.mu.Unlock()
		return false, ErrSessionClosed
	}
	if s.submitting {
		s.mu.Unlock()
		return false, ErrSubmissionInProgress
	}
	if !s.canAdvanceLocked(s.step) {
		s.mu.Unlock()
		return false, nil
	}
	if s.step < StepConfirm {
		s.step++
		s.lastError = ""
		s.Touch()
		s.mu.Unlock()
		return true, nil
	}

	// Steps 1 and 2 may have been edited since they were passed.
	if !s.canAdvanceLocked(StepPayer) || !s.canAdvanceLocked(StepPayment) {
		s.mu.Unlock()
		return false, nil
	}
	snapshot := s.buildSnapshotLocked()
	s.submitting = true
	s.lastError = ""
	s.mu.Unlock()

	result, err := s.billing.Submit(ctx, snapshot)
	if err == nil && result == nil {
		err = errors.New("billing returned no result")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.submitting = false

	if err != nil {
		err = NewNetworkError("submit charge", err)
		s.lastError = err.Error()
		var de *GatewayDeclineError
		if errors.As(err, &de) {
			s.lastError = de.UserMessage()
		}
		return false, err
	}
	if !result.Outcome.IsFinal() {
		decline := &GatewayDeclineError{Message: result.Message}
		if decline.Message == "" {
			decline.Message = "the charge was declined"
		}
		s.lastError = decline.Message
		s.result = result
		return false, decline
	}

	s.status = SessionStatusSubmitted
	s.snapshot = &snapshot
	s.result = result
	s.Touch()
	s.AddDomainEvent(NewPaymentSessionSubmittedEvent(s.ID, snapshot, *result))
	return true, nil
}

func (s *PaymentSession) buildSnapshotLocked() SessionSnapshot {
	return SessionSnapshot{
		SessionID:     s.ID,
		MemberID:      s.memberID,
		Payer:         s.payer.Details(),
		PaymentMethod: s.selector.Selection(),
		Card:          s.selector.SelectedCard(),
		Transaction:   s.summary,
		Schedule:      s.scheduleLocked(),
		TakenAt:       s.clock(),
	}
}

// Back returns to the previous step, keeping everything entered so far.
// It reports whether the step changed; at the payer step it does nothing.
func (s *PaymentSession) Back() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != SessionStatusActive || s.submitting || s.step <= StepPayer {
		return false
	}
	s.step--
	s.lastError = ""
	s.Touch()
	return true
}

// Cancel abandons the session without any external call. Cards already
// tokenized stay in storage.
func (s *PaymentSession) Cancel() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != SessionStatusActive {
		return false
	}
	s.status = SessionStatusCancelled
	s.selector.Discard()
	s.Touch()
	s.AddDomainEvent(NewPaymentSessionCancelledEvent(s.ID, s.memberID, s.step))
	return true
}

// Snapshot returns the submitted snapshot, or nil before submit
func (s *PaymentSession) Snapshot() *SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot
}

// Result returns the last charge result, if any
func (s *PaymentSession) Result() *ChargeResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

// PullEvents drains pending domain events
func (s *PaymentSession) PullEvents() []shared.DomainEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.PullDomainEvents()
}

// InvoicePreview builds the preview shown from the invoice step onwards
func (s *PaymentSession) InvoicePreview() (*InvoicePreview, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.step < StepInvoice {
		return nil, ErrStepNotActive
	}
	return newInvoicePreview(s.ID, s.payer.Details(), s.summary, s.scheduleLocked(), s.selector.MethodLabel(), s.clock()), nil
}

// State returns a consistent view of the whole session
func (s *PaymentSession) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SessionState{
		ID:               s.ID,
		MemberID:         s.memberID,
		Step:             s.step,
		Status:           s.status,
		Payer:            s.payer.Details(),
		UseMemberDetails: s.payer.UsingMemberDetails(),
		Method:           s.selector.State(),
		Transaction:      s.summary,
		Schedule:         s.scheduleLocked(),
		CanAdvance:       s.status == SessionStatusActive && s.canAdvanceLocked(s.step),
		Issues:           s.issuesLocked(s.step),
		Submitting:       s.submitting,
		LastError:        s.lastError,
		Result:           s.result,
	}
}
