package model

import (
	"time"
)

// Platform-wide roles. An Account has exactly one role and exactly one
// matching role profile.
const (
	RoleSuperAdmin     = "SUPER_ADMIN"
	RoleInstituteAdmin = "INSTITUTE_ADMIN"
	RoleTeacher        = "TEACHER"
	RoleStudent        = "STUDENT"
)

// Account statuses.
const (
	AccountActive    = "ACTIVE"
	AccountInactive  = "INACTIVE"
	AccountSuspended = "SUSPENDED"
)

// ValidRole reports whether role is one of the known platform roles.
func ValidRole(role string) bool {
	switch role {
	case RoleSuperAdmin, RoleInstituteAdmin, RoleTeacher, RoleStudent:
		return true
	}
	return false
}

// Account is the platform-wide identity record, one per human user.
// IdentityID is the user id assigned by the external identity provider once
// the account has been provisioned there. It is a pointer so accounts
// without an external identity store NULL: any number of them may coexist
// under the unique index, where empty strings would collide.
type Account struct {
	ID                 uint      `gorm:"primaryKey" json:"id"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
	IdentityID         *string   `gorm:"uniqueIndex;type:varchar(64)" json:"-"`
	Email              string    `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash       string    `gorm:"not null" json:"-"`
	FirstName          string    `gorm:"not null" json:"first_name"`
	LastName           string    `json:"last_name"`
	Phone              string    `gorm:"type:varchar(20)" json:"phone,omitempty"`
	Role               string    `gorm:"type:varchar(20);not null" json:"role"`
	Status             string    `gorm:"type:varchar(20);default:'ACTIVE'" json:"status"`
	EmailVerified      bool      `gorm:"default:false" json:"email_verified"`
	OnboardingComplete bool      `gorm:"default:false" json:"onboarding_complete"`
	TokenVersion       int       `gorm:"default:0" json:"-"` // Increment to invalidate all tokens
}

// FullName returns the display name used in identity-provider metadata.
func (a *Account) FullName() string {
	if a.LastName == "" {
		return a.FirstName
	}
	return a.FirstName + " " + a.LastName
}
