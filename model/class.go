package model

import (
	"time"
)

// Class is a batch/section within an institute (e.g. "Class 10-A").
type Class struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	InstituteID uint      `gorm:"index;not null" json:"institute_id"`
	Name        string    `gorm:"not null" json:"name"`
	Level       string    `gorm:"type:varchar(50)" json:"level,omitempty"`

	Institute Institute `gorm:"foreignKey:InstituteID" json:"-"`
}

// ClassCourse links a course to a class on whose timetable it appears.
type ClassCourse struct {
	ClassID  uint  `gorm:"primaryKey" json:"class_id"`
	CourseID uint  `gorm:"primaryKey" json:"course_id"`
	AddedAt  int64 `gorm:"autoCreateTime" json:"added_at"`

	Class  Class  `gorm:"foreignKey:ClassID;constraint:OnDelete:CASCADE" json:"-"`
	Course Course `gorm:"foreignKey:CourseID;constraint:OnDelete:CASCADE" json:"-"`
}
