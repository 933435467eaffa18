// Package domain contains payment models.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// PaymentStatus represents payment lifecycle states.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "PENDING"
	PaymentStatusCompleted PaymentStatus = "COMPLETED"
	PaymentStatusCancelled PaymentStatus = "CANCELLED"
)

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusCompleted, PaymentStatusCancelled:
		return true
	}
	return false
}

// Payment is an expected payment from a student, created on lesson completion
// or entered manually. DueAt is derived from the student's payment terms and
// recomputed while the payment is PENDING whenever those terms change.
type Payment struct {
	ID        snowflake.ID  `gorm:"primaryKey" json:"id"`
	OrgID     snowflake.ID  `gorm:"not null;index" json:"organization_id"`
	StudentID snowflake.ID  `gorm:"not null;index" json:"student_id"`
	LessonID  *snowflake.ID `gorm:"index" json:"lesson_id,omitempty"`
	Amount    int64         `gorm:"not null" json:"amount"`
	Status    PaymentStatus `gorm:"type:text;not null;default:'PENDING'" json:"status"`
	DueAt     *time.Time    `gorm:"index" json:"due_at,omitempty"`
	CreatedAt time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Payment) TableName() string { return "payments" }
