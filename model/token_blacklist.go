package model

import (
	"time"
)

// RevokedToken stores JWT IDs that were revoked before their natural expiry.
type RevokedToken struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	JTI       string    `gorm:"uniqueIndex;not null;type:varchar(64)" json:"jti"`
	AccountID uint      `gorm:"index" json:"account_id"`
	Reason    string    `gorm:"type:varchar(100)" json:"reason"` // logout, security, manual_revoke
	ExpiresAt time.Time `gorm:"index;not null" json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`

	Account Account `gorm:"foreignKey:AccountID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName keeps the table name explicit.
func (RevokedToken) TableName() string {
	return "revoked_tokens"
}
