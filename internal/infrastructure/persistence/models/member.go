package models

import (
	"github.com/community/console/internal/domain/finance"
)

// MemberModel reads the members table, which the member CRUD service owns
type MemberModel struct {
	BaseModel
	FirstName string `gorm:"type:varchar(100);not null"`
	LastName  string `gorm:"type:varchar(100);not null"`
	Mobile    string `gorm:"type:varchar(30)"`
	Email     string `gorm:"type:varchar(200)"`
	Address   string `gorm:"type:varchar(500)"`
}

// TableName returns the table name for GORM
func (MemberModel) TableName() string {
	return "members"
}

// ToProfile converts the model to the payer prefill profile
func (m *MemberModel) ToProfile() *finance.MemberProfile {
	return &finance.MemberProfile{
		MemberID:  m.ID,
		FirstName: m.FirstName,
		LastName:  m.LastName,
		Mobile:    m.Mobile,
		Email:     m.Email,
		Address:   m.Address,
	}
}
