package model

import (
	"time"
)

// Assessment is a test/assignment attached to a course. PassingMarks never
// exceeds TotalMarks; the validation layer rejects such payloads before they
// reach any service.
type Assessment struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	CourseID     uint       `gorm:"index;not null" json:"course_id"`
	Title        string     `gorm:"not null" json:"title"`
	Description  string     `gorm:"type:text" json:"description,omitempty"`
	TotalMarks   int        `gorm:"not null" json:"total_marks"`
	PassingMarks int        `gorm:"not null" json:"passing_marks"`
	DueAt        *time.Time `json:"due_at,omitempty"`

	Course Course `gorm:"foreignKey:CourseID" json:"-"`
}
