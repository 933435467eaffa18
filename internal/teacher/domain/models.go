// Package domain contains teacher models and compensation terms.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Teacher carries the compensation terms the payout engine reads: the hourly
// rate and the cancellation-payout window. The window is the teacher's own
// policy, independent of any student's cancellation-fee policy.
type Teacher struct {
	ID     snowflake.ID `gorm:"primaryKey" json:"id"`
	OrgID  snowflake.ID `gorm:"not null;index" json:"organization_id"`
	Name   string       `gorm:"not null" json:"name"`
	Email  string       `gorm:"not null" json:"email"`
	Active bool         `gorm:"not null;default:true" json:"active"`

	HourlyRate int64  `gorm:"not null;default:0" json:"hourly_rate"`
	Currency   string `gorm:"type:text;not null;default:'PLN'" json:"currency"`

	CancellationPayoutEnabled bool `gorm:"not null;default:false" json:"cancellation_payout_enabled"`
	CancellationPayoutHours   *int `gorm:"" json:"cancellation_payout_hours,omitempty"`
	CancellationPayoutPercent *int `gorm:"" json:"cancellation_payout_percent,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Teacher) TableName() string { return "teachers" }
