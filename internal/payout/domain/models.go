// Package domain contains teacher payout models.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// PayoutStatus represents payout lifecycle states. PAID and CANCELLED are
// terminal.
type PayoutStatus string

const (
	PayoutStatusPending   PayoutStatus = "PENDING"
	PayoutStatusApproved  PayoutStatus = "APPROVED"
	PayoutStatusPaid      PayoutStatus = "PAID"
	PayoutStatusCancelled PayoutStatus = "CANCELLED"
)

func (s PayoutStatus) Valid() bool {
	switch s {
	case PayoutStatusPending, PayoutStatusApproved, PayoutStatusPaid, PayoutStatusCancelled:
		return true
	}
	return false
}

func (s PayoutStatus) Terminal() bool {
	return s == PayoutStatusPaid || s == PayoutStatusCancelled
}

// QualificationReason records why a lesson entered a payout.
type QualificationReason string

const (
	ReasonCompleted        QualificationReason = "COMPLETED"
	ReasonConfirmed        QualificationReason = "CONFIRMED"
	ReasonLateCancellation QualificationReason = "LATE_CANCELLATION"
)

// TeacherPayout aggregates a teacher's qualifying lessons over a period.
// Total amount always equals the sum of its lines.
type TeacherPayout struct {
	ID           snowflake.ID `gorm:"primaryKey" json:"id"`
	OrgID        snowflake.ID `gorm:"not null;index" json:"organization_id"`
	TeacherID    snowflake.ID `gorm:"not null;index" json:"teacher_id"`
	PeriodStart  time.Time    `gorm:"not null" json:"period_start"`
	PeriodEnd    time.Time    `gorm:"not null" json:"period_end"`
	TotalMinutes int64        `gorm:"not null" json:"total_minutes"`
	TotalAmount  int64        `gorm:"not null" json:"total_amount"`
	Currency     string       `gorm:"type:varchar(8);not null" json:"currency"`
	Status       PayoutStatus `gorm:"type:text;not null;default:'PENDING'" json:"status"`
	PaidAt       *time.Time   `gorm:"" json:"paid_at,omitempty"`
	Notes        string       `gorm:"type:text" json:"notes,omitempty"`
	CreatedAt    time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt    time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`

	Lessons []TeacherPayoutLesson `gorm:"foreignKey:PayoutID" json:"lessons,omitempty"`
}

// TableName sets the database table name.
func (TeacherPayout) TableName() string { return "teacher_payouts" }

// TeacherPayoutLesson is one qualifying lesson inside a payout, frozen at
// creation time.
type TeacherPayoutLesson struct {
	ID              snowflake.ID        `gorm:"primaryKey" json:"id"`
	PayoutID        snowflake.ID        `gorm:"not null;index" json:"payout_id"`
	LessonID        snowflake.ID        `gorm:"not null;index" json:"lesson_id"`
	LessonDate      time.Time           `gorm:"not null" json:"lesson_date"`
	DurationMinutes int                 `gorm:"not null" json:"duration_minutes"`
	HourlyRate      int64               `gorm:"not null" json:"hourly_rate"`
	Amount          int64               `gorm:"not null" json:"amount"`
	Reason          QualificationReason `gorm:"type:text;not null" json:"reason"`
}

// TableName sets the database table name.
func (TeacherPayoutLesson) TableName() string { return "teacher_payout_lessons" }
