package model

import (
	"time"
)

// Institute statuses. A newly created institute starts in PENDING_APPROVAL
// and is moved to ACTIVE by a super admin.
const (
	InstitutePendingApproval = "PENDING_APPROVAL"
	InstituteActive          = "ACTIVE"
	InstituteInactive        = "INACTIVE"
	InstituteSuspended       = "SUSPENDED"
)

// Institute represents a tenant on the platform. Code is the business key.
type Institute struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Name      string    `gorm:"not null" json:"name"`
	Code      string    `gorm:"uniqueIndex;not null;type:varchar(50)" json:"code"`
	Status    string    `gorm:"type:varchar(20);default:'PENDING_APPROVAL'" json:"status"`
	Address   string    `json:"address,omitempty"`
	City      string    `json:"city,omitempty"`

	Admins  []InstituteAdminProfile `gorm:"foreignKey:InstituteID;constraint:OnDelete:CASCADE" json:"-"`
	Classes []Class                 `gorm:"foreignKey:InstituteID;constraint:OnDelete:CASCADE" json:"-"`
	Courses []Course                `gorm:"foreignKey:InstituteID;constraint:OnDelete:CASCADE" json:"-"`
}

// InstituteAdminProfile is the role-specific extension of an INSTITUTE_ADMIN
// account. IsCreator marks the admin who created the institute.
type InstituteAdminProfile struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	AccountID   uint      `gorm:"uniqueIndex;not null" json:"account_id"`
	InstituteID uint      `gorm:"index;not null" json:"institute_id"`
	IsCreator   bool      `gorm:"default:false" json:"is_creator"`

	Account   Account   `gorm:"foreignKey:AccountID;constraint:OnDelete:CASCADE" json:"-"`
	Institute Institute `gorm:"foreignKey:InstituteID" json:"institute,omitempty"`
}

// SuperAdminProfile is the role-specific extension of a SUPER_ADMIN account.
type SuperAdminProfile struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
	AccountID       uint      `gorm:"uniqueIndex;not null" json:"account_id"`
	DashboardAccess bool      `gorm:"default:true" json:"dashboard_access"`

	Account Account `gorm:"foreignKey:AccountID;constraint:OnDelete:CASCADE" json:"-"`
}
