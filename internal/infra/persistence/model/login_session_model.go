package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// LoginSessionModel mirrors the 'login_sessions' table. The state and ticket
// columns carry unique indexes so a colliding insert fails loudly instead of
// silently aliasing two sessions.
type LoginSessionModel struct {
	ID              uuid.UUID  `gorm:"type:char(36);primaryKey"`
	Channel         string     `gorm:"type:varchar(32);not null"`
	State           string     `gorm:"type:varchar(64);uniqueIndex;not null"`
	Status          string     `gorm:"type:varchar(16);not null;index"`
	UserID          *uuid.UUID `gorm:"type:char(36);index"`
	Ticket          *string    `gorm:"type:varchar(64);uniqueIndex"`
	TicketExpiresAt *time.Time
	ErrorCode       *string   `gorm:"type:varchar(64)"`
	ErrorMessage    *string   `gorm:"type:varchar(255)"`
	ExpiresAt       time.Time `gorm:"not null;index"`
	ConsumedAt      *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
	// Reserved for operator housekeeping; the flow itself never soft-deletes.
	DeletedAt gorm.DeletedAt `gorm:"index"`
}

// TableName explicitly sets the table name for GORM.
func (LoginSessionModel) TableName() string {
	return "login_sessions"
}
