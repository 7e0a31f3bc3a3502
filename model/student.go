package model

import (
	"time"

	"gorm.io/datatypes"
)

// StudentProfile is the role-specific extension of a STUDENT account.
// StudentID is the business key (admission/roll number), unique platform-wide
// and distinct from the surrogate primary key.
type StudentProfile struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	AccountID     uint           `gorm:"uniqueIndex;not null" json:"account_id"`
	StudentID     string         `gorm:"uniqueIndex;not null;type:varchar(50)" json:"student_id"`
	InstituteID   *uint          `gorm:"index" json:"institute_id,omitempty"`
	DateOfBirth   *time.Time     `json:"date_of_birth,omitempty"`
	GuardianName  string         `json:"guardian_name,omitempty"`
	GuardianPhone string         `gorm:"type:varchar(20)" json:"guardian_phone,omitempty"`
	GuardianEmail string         `json:"guardian_email,omitempty"`
	Goals         datatypes.JSON `gorm:"type:jsonb" json:"goals,omitempty"` // ["JEE", "NEET", ...]

	Account   Account    `gorm:"foreignKey:AccountID;constraint:OnDelete:CASCADE" json:"-"`
	Institute *Institute `gorm:"foreignKey:InstituteID" json:"institute,omitempty"`
}

// ClassStudent links a student profile to a class. Rows are never updated in
// place; membership changes are applied as deletes and inserts.
type ClassStudent struct {
	ClassID          uint  `gorm:"primaryKey" json:"class_id"`
	StudentProfileID uint  `gorm:"primaryKey" json:"student_profile_id"`
	JoinedAt         int64 `gorm:"autoCreateTime" json:"joined_at"`

	Class   Class          `gorm:"foreignKey:ClassID;constraint:OnDelete:CASCADE" json:"-"`
	Student StudentProfile `gorm:"foreignKey:StudentProfileID;constraint:OnDelete:CASCADE" json:"-"`
}
