package persistence

import (
	"context"
	"errors"

	"github.com/community/console/internal/domain/finance"
	"github.com/community/console/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormMemberRepository resolves member profiles for payer prefill
type GormMemberRepository struct {
	db *gorm.DB
}

// NewGormMemberRepository creates a new GormMemberRepository
func NewGormMemberRepository(db *gorm.DB) *GormMemberRepository {
	return &GormMemberRepository{db: db}
}

// Resolve implements finance.MemberLookup
func (r *GormMemberRepository) Resolve(ctx context.Context, memberID uuid.UUID) (*finance.MemberProfile, error) {
	var member models.MemberModel
	if err := r.db.WithContext(ctx).First(&member, "id = ?", memberID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, finance.ErrMemberNotFound
		}
		return nil, err
	}
	return member.ToProfile(), nil
}

var _ finance.MemberLookup = (*GormMemberRepository)(nil)
