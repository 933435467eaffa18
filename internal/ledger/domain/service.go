package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/lingodesk/lingodesk/pkg/db/pagination"
	"gorm.io/gorm"
)

type AppendTransactionRequest struct {
	StudentID       string
	Type            TransactionType
	Amount          int64
	Description     string
	CreatedByUserID string
}

type AdjustBalanceRequest struct {
	StudentID   string
	Amount      int64
	Description string
}

type AdjustBalanceResult struct {
	PreviousBalance int64        `json:"previous_balance"`
	NewBalance      int64        `json:"new_balance"`
	TransactionID   snowflake.ID `json:"transaction_id"`
}

type HistoryRequest struct {
	StudentID string
	Type      TransactionType
	DateFrom  *time.Time
	DateTo    *time.Time
	Page      pagination.Pagination
}

type HistoryFilter struct {
	Type     TransactionType
	DateFrom *time.Time
	DateTo   *time.Time
}

type ReconcileResult struct {
	StudentID snowflake.ID `json:"student_id"`
	Cached    int64        `json:"cached_balance"`
	Derived   int64        `json:"derived_balance"`
	Repaired  bool         `json:"repaired"`
}

type Service interface {
	Append(ctx context.Context, req AppendTransactionRequest) (BalanceTransaction, error)
	Adjust(ctx context.Context, req AdjustBalanceRequest) (AdjustBalanceResult, error)
	GetBalance(ctx context.Context, studentID string) (int64, error)
	GetHistory(ctx context.Context, req HistoryRequest) ([]BalanceTransaction, error)
	Reconcile(ctx context.Context, studentID string) (ReconcileResult, error)
}

// Repository operates inside a caller-supplied transaction so workflows in
// other components (lesson completion, payment collection, settlement) can
// append ledger entries atomically with their own writes.
type Repository interface {
	// AppendTx locks the student's balance row, inserts the transaction, and
	// writes back previous+amount. The transaction's ID, CreatedAt and OrgID
	// must be set by the caller. Returns the previous cached balance.
	AppendTx(ctx context.Context, tx *gorm.DB, txn *BalanceTransaction) (previous int64, err error)
	GetBalance(ctx context.Context, db *gorm.DB, orgID, studentID snowflake.ID) (int64, error)
	SumTransactions(ctx context.Context, db *gorm.DB, orgID, studentID snowflake.ID, before *time.Time) (int64, error)
	List(ctx context.Context, db *gorm.DB, orgID, studentID snowflake.ID, filter HistoryFilter, page pagination.Pagination) ([]BalanceTransaction, error)
	ListRange(ctx context.Context, db *gorm.DB, orgID, studentID snowflake.ID, from, to time.Time) ([]BalanceTransaction, error)
	SetBalanceTx(ctx context.Context, tx *gorm.DB, orgID, studentID snowflake.ID, balance int64) error
}

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidStudent      = errors.New("invalid_student")
	ErrInvalidType         = errors.New("invalid_transaction_type")
	ErrInvalidAmount       = errors.New("invalid_amount")
	ErrInvalidDescription  = errors.New("invalid_description")
	ErrActorRequired       = errors.New("actor_required")
	ErrConcurrencyConflict = errors.New("concurrency_conflict")
)
