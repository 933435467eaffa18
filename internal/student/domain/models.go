// Package domain contains student models and the billing policy columns.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/lingodesk/lingodesk/internal/cancellation"
	"github.com/lingodesk/lingodesk/internal/duedate"
)

// Student carries the per-student billing policy alongside the profile. The
// policy-write boundary keeps PaymentDueDays and PaymentDueDayOfMonth
// mutually exclusive.
type Student struct {
	ID         snowflake.ID `gorm:"primaryKey" json:"id"`
	OrgID      snowflake.ID `gorm:"not null;index" json:"organization_id"`
	Name       string       `gorm:"not null" json:"name"`
	Email      string       `gorm:"not null" json:"email"`
	Active     bool         `gorm:"not null;default:true" json:"active"`
	EnrolledAt time.Time    `gorm:"not null" json:"enrolled_at"`

	PaymentDueDays       *int `gorm:"" json:"payment_due_days,omitempty"`
	PaymentDueDayOfMonth *int `gorm:"" json:"payment_due_day_of_month,omitempty"`

	CancellationFeeEnabled     bool `gorm:"not null;default:false" json:"cancellation_fee_enabled"`
	CancellationHoursThreshold *int `gorm:"" json:"cancellation_hours_threshold,omitempty"`
	CancellationFeePercent     *int `gorm:"" json:"cancellation_fee_percent,omitempty"`

	CancellationLimitEnabled bool                     `gorm:"not null;default:false" json:"cancellation_limit_enabled"`
	CancellationLimitCount   *int                     `gorm:"" json:"cancellation_limit_count,omitempty"`
	CancellationLimitPeriod  cancellation.LimitPeriod `gorm:"type:text;not null;default:'month'" json:"cancellation_limit_period"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Student) TableName() string { return "students" }

// DueDatePolicy projects the payment-terms columns for the due-date engine.
func (s Student) DueDatePolicy() duedate.Policy {
	return duedate.Policy{
		DueDays:       s.PaymentDueDays,
		DueDayOfMonth: s.PaymentDueDayOfMonth,
	}
}

// FeePolicy projects the cancellation-fee columns.
func (s Student) FeePolicy() cancellation.FeePolicy {
	return cancellation.FeePolicy{
		Enabled:        s.CancellationFeeEnabled,
		HoursThreshold: s.CancellationHoursThreshold,
		FeePercent:     s.CancellationFeePercent,
	}
}

// LimitPolicy projects the cancellation-limit columns.
func (s Student) LimitPolicy() cancellation.LimitPolicy {
	return cancellation.LimitPolicy{
		Enabled: s.CancellationLimitEnabled,
		Count:   s.CancellationLimitCount,
		Period:  s.CancellationLimitPeriod,
	}
}
