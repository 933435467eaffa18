package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/lingodesk/lingodesk/pkg/db/pagination"
	"gorm.io/gorm"
)

type CreatePaymentRequest struct {
	StudentID string
	Amount    int64
	LessonID  string
}

type ListPaymentRequest struct {
	StudentID string
	Status    PaymentStatus
	OverdueBy *time.Time
	Page      pagination.Pagination
}

type Service interface {
	Create(ctx context.Context, req CreatePaymentRequest) (Payment, error)
	GetByID(ctx context.Context, id string) (Payment, error)
	List(ctx context.Context, req ListPaymentRequest) ([]Payment, error)
	// MarkCompleted sets the payment COMPLETED and appends the matching
	// PAYMENT ledger transaction in one atomic step.
	MarkCompleted(ctx context.Context, id string) (Payment, error)
	MarkCancelled(ctx context.Context, id string) (Payment, error)
}

// PendingPaymentRef carries what the due-date engine needs to recompute a
// pending payment: the linked lesson's completion time when present, else the
// payment's own creation time.
type PendingPaymentRef struct {
	ID                snowflake.ID
	CreatedAt         time.Time
	LessonCompletedAt *time.Time
}

func (p PendingPaymentRef) ReferenceDate() time.Time {
	if p.LessonCompletedAt != nil {
		return *p.LessonCompletedAt
	}
	return p.CreatedAt
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, payment *Payment) error
	FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*Payment, error)
	List(ctx context.Context, db *gorm.DB, orgID, studentID snowflake.ID, req ListPaymentRequest) ([]Payment, error)
	UpdateStatusTx(ctx context.Context, tx *gorm.DB, orgID, id snowflake.ID, from, to PaymentStatus) (bool, error)
	// ListPendingRefs returns the student's PENDING payments joined with
	// their lessons' completion timestamps.
	ListPendingRefs(ctx context.Context, tx *gorm.DB, orgID, studentID snowflake.ID) ([]PendingPaymentRef, error)
	UpdateDueDateTx(ctx context.Context, tx *gorm.DB, orgID, id snowflake.ID, dueAt time.Time) error
}

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidID           = errors.New("invalid_id")
	ErrInvalidStudent      = errors.New("invalid_student")
	ErrInvalidAmount       = errors.New("invalid_amount")
	ErrInvalidStatus       = errors.New("invalid_status")
	ErrNotFound            = errors.New("not_found")
	ErrNotPending          = errors.New("not_pending")
)
