package persistence

import (
	"context"
	"errors"

	"github.com/community/console/internal/domain/finance"
	"github.com/community/console/internal/domain/shared"
	"github.com/community/console/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormStoredCardRepository implements finance.StoredCardRepository using GORM
type GormStoredCardRepository struct {
	db *gorm.DB
}

// NewGormStoredCardRepository creates a new GormStoredCardRepository
func NewGormStoredCardRepository(db *gorm.DB) *GormStoredCardRepository {
	return &GormStoredCardRepository{db: db}
}

// ListByMember returns the member's live cards, default first, then newest
func (r *GormStoredCardRepository) ListByMember(ctx context.Context, memberID uuid.UUID) ([]finance.StoredCard, error) {
	var rows []models.StoredCardModel
	if err := r.db.WithContext(ctx).
		Where("member_id = ?", memberID).
		Order("is_default DESC").
		Order("created_at DESC").
		Find(&rows).Error; err != nil {
		return nil, err
	}

	cards := make([]finance.StoredCard, len(rows))
	for i := range rows {
		cards[i] = rows[i].ToDomain()
	}
	return cards, nil
}

// Create inserts a card. A default card clears the member's previous default
// in the same transaction.
func (r *GormStoredCardRepository) Create(ctx context.Context, card *finance.StoredCard) error {
	if card.ID == uuid.Nil {
		card.ID = uuid.New()
	}
	model := models.StoredCardModelFromDomain(card)

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if card.IsDefault {
			if err := clearDefault(tx, card.MemberID); err != nil {
				return err
			}
		}
		if err := tx.Create(model).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return shared.ErrAlreadyExists
			}
			return err
		}
		card.CreatedAt = model.CreatedAt
		return nil
	})
}

// SetDefault makes cardID the member's only default card
func (r *GormStoredCardRepository) SetDefault(ctx context.Context, memberID, cardID uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var card models.StoredCardModel
		if err := tx.Where("member_id = ? AND id = ?", memberID, cardID).First(&card).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return shared.ErrNotFound
			}
			return err
		}
		if card.IsDefault {
			return nil
		}
		if err := clearDefault(tx, memberID); err != nil {
			return err
		}
		return tx.Model(&card).Update("is_default", true).Error
	})
}

// Delete soft-deletes a card and drops its default flag
func (r *GormStoredCardRepository) Delete(ctx context.Context, memberID, cardID uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.StoredCardModel{}).
			Where("member_id = ? AND id = ?", memberID, cardID).
			Update("is_default", false)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return shared.ErrNotFound
		}
		return tx.Where("member_id = ? AND id = ?", memberID, cardID).
			Delete(&models.StoredCardModel{}).Error
	})
}

func clearDefault(tx *gorm.DB, memberID uuid.UUID) error {
	return tx.Model(&models.StoredCardModel{}).
		Where("member_id = ? AND is_default = ?", memberID, true).
		Update("is_default", false).Error
}

var _ finance.StoredCardRepository = (*GormStoredCardRepository)(nil)
