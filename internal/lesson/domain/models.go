// Package domain contains lesson models.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// LessonStatus represents lesson lifecycle states.
type LessonStatus string

const (
	LessonStatusScheduled LessonStatus = "SCHEDULED"
	LessonStatusConfirmed LessonStatus = "CONFIRMED"
	LessonStatusCompleted LessonStatus = "COMPLETED"
	LessonStatusCancelled LessonStatus = "CANCELLED"
)

// CancelledBy records which side of the lesson cancelled it.
type CancelledBy string

const (
	CancelledByStudent CancelledBy = "student"
	CancelledByTeacher CancelledBy = "teacher"
	CancelledBySchool  CancelledBy = "school"
)

func (c CancelledBy) Valid() bool {
	switch c {
	case CancelledByStudent, CancelledByTeacher, CancelledBySchool:
		return true
	}
	return false
}

// Lesson is a scheduled session between one student and one teacher. Its
// lifecycle drives the billing ledger: completion charges the student,
// student-side cancellation may carry a fee.
type Lesson struct {
	ID              snowflake.ID  `gorm:"primaryKey" json:"id"`
	OrgID           snowflake.ID  `gorm:"not null;index" json:"organization_id"`
	StudentID       snowflake.ID  `gorm:"not null;index" json:"student_id"`
	TeacherID       snowflake.ID  `gorm:"not null;index" json:"teacher_id"`
	ScheduledAt     time.Time     `gorm:"not null;index" json:"scheduled_at"`
	DurationMinutes int           `gorm:"not null" json:"duration_minutes"`
	Price           int64         `gorm:"not null" json:"price"`
	Status          LessonStatus  `gorm:"type:text;not null;default:'SCHEDULED'" json:"status"`
	CompletedAt     *time.Time    `gorm:"" json:"completed_at,omitempty"`
	CancelledAt     *time.Time    `gorm:"" json:"cancelled_at,omitempty"`
	CancelledBy     *CancelledBy  `gorm:"type:text" json:"cancelled_by,omitempty"`
	CreatedAt       time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt       time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Lesson) TableName() string { return "lessons" }
