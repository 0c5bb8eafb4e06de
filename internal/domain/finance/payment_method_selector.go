package finance

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// PaymentMode is how the payer settles the session
type PaymentMode string

const (
	PaymentModeSavedCard     PaymentMode = "savedCard"
	PaymentModeNewCard       PaymentMode = "newCard"
	PaymentModeStandingOrder PaymentMode = "standingOrder"
)

// IsValid returns true if the mode is valid
func (m PaymentMode) IsValid() bool {
	switch m {
	case PaymentModeSavedCard, PaymentModeNewCard, PaymentModeStandingOrder:
		return true
	default:
		return false
	}
}

// String returns the string representation of PaymentMode
func (m PaymentMode) String() string {
	return string(m)
}

// PaymentMethodSelection is the selector state carried into the snapshot
type PaymentMethodSelection struct {
	Mode           PaymentMode   `json:"mode"`
	SelectedCardID *uuid.UUID    `json:"selected_card_id,omitempty"`
	NewCardDraft   *NewCardDraft `json:"new_card_draft,omitempty"`
}

// SelectorState is a read-only view of the selector for callers
type SelectorState struct {
	Selection  PaymentMethodSelection `json:"selection"`
	Cards      []StoredCard           `json:"cards"`
	Tokenizing bool                   `json:"tokenizing"`
	Tokenized  bool                   `json:"tokenized"`
	LastError  string                 `json:"last_error,omitempty"`
	Valid      bool                   `json:"valid"`
}

// PaymentMethodSelector manages stored cards, card selection and new card
// tokenization for one session. Storage calls are made without holding the
// selector lock; a tokenizing flag keeps a second attempt from starting.
type PaymentMethodSelector struct {
	mu      sync.Mutex
	storage CardStorage

	memberID       uuid.UUID
	cards          []StoredCard
	mode           PaymentMode
	selectedCardID *uuid.UUID
	draft          *NewCardDraft

	tokenizing bool
	tokenized  bool
	lastError  string

	// Options for cards tokenized inside the gateway frame.
	frameHolderName string
	frameRemember   bool
}

// NewPaymentMethodSelector creates a selector in saved card mode
func NewPaymentMethodSelector(storage CardStorage) *PaymentMethodSelector {
	return &PaymentMethodSelector{
		storage: storage,
		mode:    PaymentModeSavedCard,
	}
}

// LoadStoredCards fetches the member's cards and auto-selects the default
// card, else the first, else none. A listing failure leaves an empty list
// and is returned only so the caller can log it.
func (s *PaymentMethodSelector) LoadStoredCards(ctx context.Context, memberID uuid.UUID) ([]StoredCard, error) {
	cards, err := s.storage.List(ctx, memberID)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.memberID = memberID
	if err != nil {
		s.cards = nil
		s.selectedCardID = nil
		return []StoredCard{}, NewNetworkError("list cards", err)
	}
	s.cards = append([]StoredCard(nil), cards...)
	if s.mode == PaymentModeSavedCard {
		s.selectedCardID = autoSelect(s.cards)
	}
	return s.copyCards(), nil
}

func autoSelect(cards []StoredCard) *uuid.UUID {
	for _, c := range cards {
		if c.IsDefault {
			id := c.ID
			return &id
		}
	}
	if len(cards) > 0 {
		id := cards[0].ID
		return &id
	}
	return nil
}

// SetMode switches the payment mode. Switching away from a card mode drops
// that mode's selection so a stale card is never charged.
func (s *PaymentMethodSelector) SetMode(mode PaymentMode) error {
	if !mode.IsValid() {
		return ErrInvalidPaymentMode
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.mode == mode {
		return nil
	}
	s.mode = mode
	s.tokenized = false
	s.lastError = ""
	switch mode {
	case PaymentModeSavedCard:
		s.draft = nil
		s.selectedCardID = autoSelect(s.cards)
	case PaymentModeNewCard:
		s.selectedCardID = nil
	case PaymentModeStandingOrder:
		s.draft = nil
		s.selectedCardID = nil
	}
	return nil
}

// Mode returns the current payment mode
func (s *PaymentMethodSelector) Mode() PaymentMode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// SelectCard selects one of the loaded cards and clears any new card draft
func (s *PaymentMethodSelector) SelectCard(cardID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.findCard(cardID) == nil {
		return ErrCardNotFound
	}
	id := cardID
	s.mode = PaymentModeSavedCard
	s.selectedCardID = &id
	s.draft = nil
	s.tokenized = false
	s.lastError = ""
	return nil
}

// TokenizeNewCard validates the draft, classifies its network and persists
// it through card storage whether or not the payer asked to remember it,
// because the charge needs a card id. The new card becomes the selection.
func (s *PaymentMethodSelector) TokenizeNewCard(ctx context.Context, draft NewCardDraft) (*StoredCard, error) {
	s.mu.Lock()
	if s.tokenizing {
		s.mu.Unlock()
		return nil, ErrTokenizationInProgress
	}
	s.mode = PaymentModeNewCard
	s.selectedCardID = nil
	s.tokenized = false
	if issues := ValidateNewCardDraft(draft); len(issues) > 0 {
		d := draft
		s.draft = &d
		s.mu.Unlock()
		return nil, ErrInvalidCardDraft
	}
	s.draft = nil
	reg := NewCardRegistration(draft)
	s.beginTokenizationLocked()
	memberID := s.memberID
	s.mu.Unlock()

	card, err := s.storage.Create(ctx, memberID, reg)
	return s.completeTokenization(card, err)
}

// SetFrameCardOptions sets the holder name and remember flag applied to a
// card tokenized inside the gateway frame
func (s *PaymentMethodSelector) SetFrameCardOptions(holderName string, remember bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frameHolderName = holderName
	s.frameRemember = remember
}

// ApplyGatewayResult takes a result from the gateway frame. A success is
// registered as a stored card and selected. A decline clears the selection
// and is returned as a *GatewayDeclineError.
func (s *PaymentMethodSelector) ApplyGatewayResult(ctx context.Context, result GatewayResult) (*StoredCard, error) {
	s.mu.Lock()
	if !result.Success {
		s.selectedCardID = nil
		s.tokenized = false
		s.lastError = result.Error
		s.mu.Unlock()
		return nil, result.DeclineError()
	}
	if result.Token == "" {
		s.selectedCardID = nil
		s.tokenized = false
		s.lastError = ErrGatewayTokenMissing.Error()
		s.mu.Unlock()
		return nil, ErrGatewayTokenMissing
	}
	if s.tokenizing {
		s.mu.Unlock()
		return nil, ErrTokenizationInProgress
	}
	s.mode = PaymentModeNewCard
	s.selectedCardID = nil
	s.tokenized = false
	reg := GatewayCardRegistration(result, s.frameHolderName, s.frameRemember)
	s.beginTokenizationLocked()
	memberID := s.memberID
	s.mu.Unlock()

	card, err := s.storage.Create(ctx, memberID, reg)
	return s.completeTokenization(card, err)
}

// RecordGatewayFailure notes that the gateway frame gave up without a
// result, e.g. the subscription timed out
func (s *PaymentMethodSelector) RecordGatewayFailure(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mode != PaymentModeNewCard || s.tokenized {
		return
	}
	s.lastError = message
}

func (s *PaymentMethodSelector) beginTokenizationLocked() {
	s.tokenizing = true
	s.lastError = ""
}

func (s *PaymentMethodSelector) completeTokenization(card *StoredCard, err error) (*StoredCard, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tokenizing = false
	s.draft = nil
	if err != nil {
		s.tokenized = false
		s.selectedCardID = nil
		s.lastError = err.Error()
		return nil, NewNetworkError("create card", err)
	}

	s.cards = append(s.cards, *card)
	// The payer may have switched modes while storage was working; the
	// card is stored either way but only selected for new card mode.
	if s.mode == PaymentModeNewCard {
		id := card.ID
		s.selectedCardID = &id
		s.tokenized = true
	}
	created := *card
	return &created, nil
}

// SetDefaultCard marks a loaded card as the member's default
func (s *PaymentMethodSelector) SetDefaultCard(ctx context.Context, cardID uuid.UUID) error {
	s.mu.Lock()
	if s.findCard(cardID) == nil {
		s.mu.Unlock()
		return ErrCardNotFound
	}
	memberID := s.memberID
	s.mu.Unlock()

	if err := s.storage.SetDefault(ctx, memberID, cardID); err != nil {
		return NewNetworkError("set default card", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.cards {
		s.cards[i].IsDefault = s.cards[i].ID == cardID
	}
	return nil
}

// IsValid is the selector's local validity: standing order, a selected
// saved card, or a successfully tokenized new card.
func (s *PaymentMethodSelector) IsValid() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isValidLocked()
}

func (s *PaymentMethodSelector) isValidLocked() bool {
	switch s.mode {
	case PaymentModeStandingOrder:
		return true
	case PaymentModeSavedCard:
		return s.selectedCardID != nil
	case PaymentModeNewCard:
		return s.tokenized && s.selectedCardID != nil
	default:
		return false
	}
}

// Issues explains a false IsValid
func (s *PaymentMethodSelector) Issues() []FieldIssue {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isValidLocked() {
		return nil
	}
	switch s.mode {
	case PaymentModeSavedCard:
		return []FieldIssue{{Field: "selected_card_id", Message: "Select a stored card"}}
	case PaymentModeNewCard:
		if s.lastError != "" {
			return []FieldIssue{{Field: "new_card", Message: s.lastError}}
		}
		if s.draft != nil {
			if issues := ValidateNewCardDraft(*s.draft); len(issues) > 0 {
				return issues
			}
		}
		return []FieldIssue{{Field: "new_card", Message: "Card has not been tokenized yet"}}
	}
	return nil
}

// Selection returns a copy of the current selection. The draft is masked.
func (s *PaymentMethodSelector) Selection() PaymentMethodSelection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selectionLocked()
}

func (s *PaymentMethodSelector) selectionLocked() PaymentMethodSelection {
	sel := PaymentMethodSelection{Mode: s.mode}
	if s.selectedCardID != nil {
		id := *s.selectedCardID
		sel.SelectedCardID = &id
	}
	if s.draft != nil {
		masked := s.draft.Masked()
		sel.NewCardDraft = &masked
	}
	return sel
}

// SelectedCard returns a copy of the selected card, if any
func (s *PaymentMethodSelector) SelectedCard() *StoredCard {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selectedCardID == nil {
		return nil
	}
	if c := s.findCard(*s.selectedCardID); c != nil {
		card := *c
		return &card
	}
	return nil
}

// MethodLabel describes the method for schedules and invoices
func (s *PaymentMethodSelector) MethodLabel() string {
	if s.Mode() == PaymentModeStandingOrder {
		return "Standing order"
	}
	if c := s.SelectedCard(); c != nil {
		return c.Label()
	}
	return ""
}

// State returns a snapshot of the selector for views
func (s *PaymentMethodSelector) State() SelectorState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SelectorState{
		Selection:  s.selectionLocked(),
		Cards:      s.copyCards(),
		Tokenizing: s.tokenizing,
		Tokenized:  s.tokenized,
		LastError:  s.lastError,
		Valid:      s.isValidLocked(),
	}
}

// Discard drops the transient draft when the session is abandoned
func (s *PaymentMethodSelector) Discard() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.draft = nil
}

func (s *PaymentMethodSelector) findCard(id uuid.UUID) *StoredCard {
	for i := range s.cards {
		if s.cards[i].ID == id {
			return &s.cards[i]
		}
	}
	return nil
}

func (s *PaymentMethodSelector) copyCards() []StoredCard {
	out := make([]StoredCard, len(s.cards))
	copy(out, s.cards)
	return out
}
