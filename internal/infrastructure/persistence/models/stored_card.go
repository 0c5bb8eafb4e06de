package models

import (
	"github.com/community/console/internal/domain/finance"
	"github.com/google/uuid"
)

// StoredCardModel is the persistence model for a tokenized card.
// At most one live row per member has IsDefault set.
type StoredCardModel struct {
	SoftDeleteModel
	MemberID   uuid.UUID `gorm:"type:uuid;not null;index;uniqueIndex:idx_stored_cards_member_default,where:is_default AND deleted_at IS NULL"`
	Network    string    `gorm:"type:varchar(20);not null"`
	Last4      string    `gorm:"type:varchar(4);not null"`
	HolderName string    `gorm:"type:varchar(200)"`
	Expiry     string    `gorm:"type:varchar(5);not null"`
	Token      string    `gorm:"type:varchar(255);not null"`
	Remember   bool      `gorm:"not null;default:false"`
	IsDefault  bool      `gorm:"not null;default:false"`
}

// TableName returns the table name for GORM
func (StoredCardModel) TableName() string {
	return "stored_cards"
}

// ToDomain converts the model to a domain StoredCard
func (m *StoredCardModel) ToDomain() finance.StoredCard {
	return finance.StoredCard{
		ID:         m.ID,
		MemberID:   m.MemberID,
		Network:    finance.CardNetwork(m.Network),
		Last4:      m.Last4,
		HolderName: m.HolderName,
		Expiry:     m.Expiry,
		IsDefault:  m.IsDefault,
		Remember:   m.Remember,
		Token:      m.Token,
		CreatedAt:  m.CreatedAt,
	}
}

// StoredCardModelFromDomain builds a model from a domain StoredCard
func StoredCardModelFromDomain(c *finance.StoredCard) *StoredCardModel {
	m := &StoredCardModel{
		MemberID:   c.MemberID,
		Network:    string(c.Network),
		Last4:      c.Last4,
		HolderName: c.HolderName,
		Expiry:     c.Expiry,
		Token:      c.Token,
		Remember:   c.Remember,
		IsDefault:  c.IsDefault,
	}
	m.ID = c.ID
	m.CreatedAt = c.CreatedAt
	m.UpdatedAt = c.CreatedAt
	return m
}
