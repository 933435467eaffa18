package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/lingodesk/lingodesk/pkg/db/pagination"
	"gorm.io/gorm"
)

type PreviewRequest struct {
	StudentID   string
	PeriodStart time.Time
	PeriodEnd   time.Time
}

// PreviewResult is the side-effect-free settlement computation: opening
// balance before the period, the period's transactions oldest first, and the
// closing balance they produce.
type PreviewResult struct {
	StudentID      snowflake.ID  `json:"student_id"`
	PeriodStart    time.Time     `json:"period_start"`
	PeriodEnd      time.Time     `json:"period_end"`
	OpeningBalance int64         `json:"opening_balance"`
	ClosingBalance int64         `json:"closing_balance"`
	Lines          []PreviewLine `json:"lines"`
}

type PreviewLine struct {
	Position      int          `json:"position"`
	Description   string       `json:"description"`
	Amount        int64        `json:"amount"`
	TransactionID snowflake.ID `json:"transaction_id"`
	OccurredAt    time.Time    `json:"occurred_at"`
}

type CreateSettlementRequest struct {
	StudentID   string
	PeriodStart time.Time
	PeriodEnd   time.Time
	Notes       string
}

type ListSettlementRequest struct {
	StudentID string
	Page      pagination.Pagination
}

type Service interface {
	Preview(ctx context.Context, req PreviewRequest) (PreviewResult, error)
	// Create recomputes the preview inside its transaction and persists the
	// header and lines atomically.
	Create(ctx context.Context, req CreateSettlementRequest) (Settlement, error)
	// Delete removes a settlement only while it is the student's most recent
	// one, so settlements unwind strictly newest-first.
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (Settlement, error)
	List(ctx context.Context, req ListSettlementRequest) ([]Settlement, error)
	LastSettlementDate(ctx context.Context, studentID string) (*time.Time, error)
	CurrentBalance(ctx context.Context, studentID string) (int64, error)
}

type Repository interface {
	InsertTx(ctx context.Context, tx *gorm.DB, settlement *Settlement) error
	FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*Settlement, error)
	List(ctx context.Context, db *gorm.DB, orgID, studentID snowflake.ID, page pagination.Pagination) ([]Settlement, error)
	// LatestForStudentTx returns the student's most recent settlement by
	// created_at with id as tie-break, locked for the caller's transaction.
	LatestForStudentTx(ctx context.Context, tx *gorm.DB, orgID, studentID snowflake.ID) (*Settlement, error)
	DeleteTx(ctx context.Context, tx *gorm.DB, orgID, id snowflake.ID) error
	LastSettlementDate(ctx context.Context, db *gorm.DB, orgID, studentID snowflake.ID) (*time.Time, error)
}

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidID           = errors.New("invalid_id")
	ErrInvalidStudent      = errors.New("invalid_student")
	ErrInvalidPeriod       = errors.New("invalid_period")
	ErrNotFound            = errors.New("not_found")
	ErrNotMostRecent       = errors.New("not_most_recent")
)
