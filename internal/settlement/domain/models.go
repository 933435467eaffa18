// Package domain contains settlement models.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Settlement is a frozen snapshot of a student's ledger over a period.
// Deleting a settlement never touches the underlying transactions.
type Settlement struct {
	ID             snowflake.ID `gorm:"primaryKey" json:"id"`
	OrgID          snowflake.ID `gorm:"not null;index" json:"organization_id"`
	StudentID      snowflake.ID `gorm:"not null;index" json:"student_id"`
	PeriodStart    time.Time    `gorm:"not null" json:"period_start"`
	PeriodEnd      time.Time    `gorm:"not null" json:"period_end"`
	OpeningBalance int64        `gorm:"not null" json:"opening_balance"`
	ClosingBalance int64        `gorm:"not null" json:"closing_balance"`
	Notes          string       `gorm:"type:text" json:"notes,omitempty"`
	CreatedAt      time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`

	Lines []SettlementLine `gorm:"foreignKey:SettlementID" json:"lines,omitempty"`
}

// TableName sets the database table name.
func (Settlement) TableName() string { return "settlements" }

// SettlementLine mirrors one ledger transaction inside the settled period.
// Position preserves the ledger's oldest-first order.
type SettlementLine struct {
	ID            snowflake.ID `gorm:"primaryKey" json:"id"`
	SettlementID  snowflake.ID `gorm:"not null;index" json:"settlement_id"`
	Position      int          `gorm:"not null" json:"position"`
	Description   string       `gorm:"type:text;not null" json:"description"`
	Amount        int64        `gorm:"not null" json:"amount"`
	TransactionID snowflake.ID `gorm:"not null" json:"transaction_id"`
	OccurredAt    time.Time    `gorm:"not null" json:"occurred_at"`
}

// TableName sets the database table name.
func (SettlementLine) TableName() string { return "settlement_lines" }
