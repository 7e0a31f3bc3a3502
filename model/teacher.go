package model

import (
	"time"

	"gorm.io/datatypes"
)

// TeacherProfile is the role-specific extension of a TEACHER account.
// TeacherID is the business key (employee code), unique platform-wide.
type TeacherProfile struct {
	ID              uint           `gorm:"primaryKey" json:"id"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	AccountID       uint           `gorm:"uniqueIndex;not null" json:"account_id"`
	TeacherID       string         `gorm:"uniqueIndex;not null;type:varchar(50)" json:"teacher_id"`
	InstituteID     *uint          `gorm:"index" json:"institute_id,omitempty"`
	Subjects        datatypes.JSON `gorm:"type:jsonb" json:"subjects,omitempty"` // ["Physics", "Maths", ...]
	Qualification   string         `json:"qualification,omitempty"`
	ExperienceYears int            `gorm:"default:0" json:"experience_years"`

	Account   Account    `gorm:"foreignKey:AccountID;constraint:OnDelete:CASCADE" json:"-"`
	Institute *Institute `gorm:"foreignKey:InstituteID" json:"institute,omitempty"`
}

// ClassTeacher links a teacher profile to a class it teaches.
type ClassTeacher struct {
	ClassID          uint  `gorm:"primaryKey" json:"class_id"`
	TeacherProfileID uint  `gorm:"primaryKey" json:"teacher_profile_id"`
	AssignedAt       int64 `gorm:"autoCreateTime" json:"assigned_at"`

	Class   Class          `gorm:"foreignKey:ClassID;constraint:OnDelete:CASCADE" json:"-"`
	Teacher TeacherProfile `gorm:"foreignKey:TeacherProfileID;constraint:OnDelete:CASCADE" json:"-"`
}

// CourseTeacher links a teacher profile to a course it teaches.
type CourseTeacher struct {
	CourseID         uint  `gorm:"primaryKey" json:"course_id"`
	TeacherProfileID uint  `gorm:"primaryKey" json:"teacher_profile_id"`
	AssignedAt       int64 `gorm:"autoCreateTime" json:"assigned_at"`

	Course  Course         `gorm:"foreignKey:CourseID;constraint:OnDelete:CASCADE" json:"-"`
	Teacher TeacherProfile `gorm:"foreignKey:TeacherProfileID;constraint:OnDelete:CASCADE" json:"-"`
}
