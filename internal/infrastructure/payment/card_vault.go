package payment

import (
	"context"
	"time"

	"github.com/community/console/internal/domain/finance"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CardVault is the card storage collaborator. Raw card numbers are
// exchanged for a gateway token before anything is written, so only the
// token and display fields reach the repository.
type CardVault struct {
	repo      finance.StoredCardRepository
	tokenizer CardTokenizer
	logger    *zap.Logger
	now       func() time.Time
}

// NewCardVault creates a card vault
func NewCardVault(repo finance.StoredCardRepository, tokenizer CardTokenizer, logger *zap.Logger) *CardVault {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CardVault{
		repo:      repo,
		tokenizer: tokenizer,
		logger:    logger,
		now:       time.Now,
	}
}

// List returns the member's stored cards
func (v *CardVault) List(ctx context.Context, memberID uuid.UUID) ([]finance.StoredCard, error) {
	return v.repo.ListByMember(ctx, memberID)
}

// Create stores a card, tokenizing it first unless the gateway frame already
// did. The member's first card becomes the default.
func (v *CardVault) Create(ctx context.Context, memberID uuid.UUID, reg finance.CardRegistration) (*finance.StoredCard, error) {
	token := reg.Token
	if !reg.IsTokenized() {
		var err error
		token, err = v.tokenizer.Tokenize(ctx, reg)
		if err != nil {
			return nil, err
		}
	}

	existing, err := v.repo.ListByMember(ctx, memberID)
	if err != nil {
		return nil, err
	}

	network := reg.Network
	if network == "" {
		network = finance.CardNetworkUnknown
	}
	card := &finance.StoredCard{
		ID:         uuid.New(),
		MemberID:   memberID,
		Network:    network,
		Last4:      reg.Last4,
		HolderName: reg.HolderName,
		Expiry:     reg.Expiry,
		IsDefault:  len(existing) == 0,
		Remember:   reg.Remember,
		Token:      token,
		CreatedAt:  v.now(),
	}
	if err := v.repo.Create(ctx, card); err != nil {
		return nil, err
	}

	v.logger.Info("card stored",
		zap.String("member_id", memberID.String()),
		zap.String("card_id", card.ID.String()),
		zap.String("network", card.Network.String()),
		zap.Bool("remember", card.Remember))
	return card, nil
}

// SetDefault marks cardID as the member's default card
func (v *CardVault) SetDefault(ctx context.Context, memberID, cardID uuid.UUID) error {
	return v.repo.SetDefault(ctx, memberID, cardID)
}

// Delete removes a stored card
func (v *CardVault) Delete(ctx context.Context, memberID, cardID uuid.UUID) error {
	return v.repo.Delete(ctx, memberID, cardID)
}

var (
	_ finance.CardStorage = (*CardVault)(nil)
	_ finance.CardRemover = (*CardVault)(nil)
)
