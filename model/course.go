package model

import (
	"time"
)

// Course is a subject/course offered by an institute.
type Course struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	InstituteID uint      `gorm:"index;not null" json:"institute_id"`
	Name        string    `gorm:"not null" json:"name"`
	Code        string    `gorm:"type:varchar(50)" json:"code,omitempty"`
	Description string    `gorm:"type:text" json:"description,omitempty"`

	Institute   Institute       `gorm:"foreignKey:InstituteID" json:"-"`
	Assessments []Assessment    `gorm:"foreignKey:CourseID;constraint:OnDelete:CASCADE" json:"-"`
	Teachers    []CourseTeacher `gorm:"foreignKey:CourseID;constraint:OnDelete:CASCADE" json:"-"`
}
