package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// IdentityBindingModel mirrors the 'identity_bindings' table, linking an
// external provider identity to a local account. (provider, provider_user_id)
// is unique so one WeChat identity maps to exactly one account.
type IdentityBindingModel struct {
	ID             uuid.UUID `gorm:"type:char(36);primaryKey"`
	UserID         uuid.UUID `gorm:"type:char(36);not null;index"`
	Provider       string    `gorm:"type:varchar(32);not null;uniqueIndex:uk_provider_user"`
	ProviderUserID string    `gorm:"type:varchar(128);not null;uniqueIndex:uk_provider_user"`
	UnionID        string    `gorm:"type:varchar(128);index"`
	Nickname       string    `gorm:"type:varchar(255)"`
	AvatarURL      string    `gorm:"type:varchar(512)"`
	LastLoginAt    time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
	// Reserved for unbinding without losing the audit trail.
	DeletedAt gorm.DeletedAt `gorm:"index"`
}

// TableName explicitly sets the table name for GORM.
func (IdentityBindingModel) TableName() string {
	return "identity_bindings"
}

// BeforeCreate assigns an ID when the caller did not.
func (m *IdentityBindingModel) BeforeCreate(_ *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}

	return nil
}
