package finance

import (
	"context"

	"github.com/google/uuid"
)

// CardStorage keeps tokenized cards per member
type CardStorage interface {
	List(ctx context.Context, memberID uuid.UUID) ([]StoredCard, error)
	Create(ctx context.Context, memberID uuid.UUID, reg CardRegistration) (*StoredCard, error)
	SetDefault(ctx context.Context, memberID, cardID uuid.UUID) error
}

// CardRemover deletes a stored card. Only the unremembered card purge uses it.
type CardRemover interface {
	Delete(ctx context.Context, memberID, cardID uuid.UUID) error
}

// MemberLookup resolves a member to prefill payer details
type MemberLookup interface {
	Resolve(ctx context.Context, memberID uuid.UUID) (*MemberProfile, error)
}

// StoredCardRepository persists tokenized cards. Card storage adapters
// build on it; the core only sees CardStorage.
type StoredCardRepository interface {
	ListByMember(ctx context.Context, memberID uuid.UUID) ([]StoredCard, error)
	Create(ctx context.Context, card *StoredCard) error
	// SetDefault makes cardID the member's only default card
	SetDefault(ctx context.Context, memberID, cardID uuid.UUID) error
	Delete(ctx context.Context, memberID, cardID uuid.UUID) error
}
