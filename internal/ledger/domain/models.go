// Package domain contains the student balance ledger models.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// TransactionType classifies a balance transaction.
type TransactionType string

const (
	TransactionTypeCharge          TransactionType = "CHARGE"
	TransactionTypePayment         TransactionType = "PAYMENT"
	TransactionTypeCancellationFee TransactionType = "CANCELLATION_FEE"
	TransactionTypeAdjustment      TransactionType = "ADJUSTMENT"
)

func (t TransactionType) Valid() bool {
	switch t {
	case TransactionTypeCharge, TransactionTypePayment, TransactionTypeCancellationFee, TransactionTypeAdjustment:
		return true
	}
	return false
}

// BalanceTransaction is one append-only entry in a student's running balance.
// Charges and fees are negative, payments positive, adjustments any sign.
// Rows are never updated or deleted; corrections are new offsetting entries.
type BalanceTransaction struct {
	ID              snowflake.ID    `gorm:"primaryKey" json:"id"`
	OrgID           snowflake.ID    `gorm:"not null;index" json:"organization_id"`
	StudentID       snowflake.ID    `gorm:"not null;index:idx_balance_transactions_student" json:"student_id"`
	Type            TransactionType `gorm:"type:text;not null" json:"type"`
	Amount          int64           `gorm:"not null" json:"amount"`
	Description     string          `gorm:"type:text;not null" json:"description"`
	CreatedByUserID *snowflake.ID   `gorm:"" json:"created_by_user_id,omitempty"`
	CreatedAt       time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP;index:idx_balance_transactions_student" json:"created_at"`
}

// TableName sets the database table name.
func (BalanceTransaction) TableName() string { return "balance_transactions" }

// StudentBalance caches the signed sum of a student's transaction log. It is
// a read optimization only and must always be re-derivable from the log.
type StudentBalance struct {
	StudentID snowflake.ID `gorm:"primaryKey" json:"student_id"`
	OrgID     snowflake.ID `gorm:"not null;index" json:"organization_id"`
	Balance   int64        `gorm:"not null;default:0" json:"balance"`
	UpdatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (StudentBalance) TableName() string { return "student_balances" }
