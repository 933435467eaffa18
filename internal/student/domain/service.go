package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/lingodesk/lingodesk/internal/cancellation"
	"github.com/lingodesk/lingodesk/pkg/db/pagination"
	"gorm.io/gorm"
)

type CreateStudentRequest struct {
	Name  string
	Email string
}

type GetStudentRequest struct {
	ID string
}

type ListStudentRequest struct {
	Active *bool
	Page   pagination.Pagination
}

// UpdateBillingPolicyRequest replaces the student's billing policy. Exactly
// zero or one of PaymentDueDays / PaymentDueDayOfMonth may be set.
type UpdateBillingPolicyRequest struct {
	StudentID string

	PaymentDueDays       *int
	PaymentDueDayOfMonth *int

	CancellationFeeEnabled     bool
	CancellationHoursThreshold *int
	CancellationFeePercent     *int

	CancellationLimitEnabled bool
	CancellationLimitCount   *int
	CancellationLimitPeriod  cancellation.LimitPeriod
}

type UpdateBillingPolicyResult struct {
	Student              Student `json:"student"`
	RecalculatedPayments int64   `json:"recalculated_payments"`
}

type Service interface {
	Create(ctx context.Context, req CreateStudentRequest) (Student, error)
	GetByID(ctx context.Context, req GetStudentRequest) (Student, error)
	List(ctx context.Context, req ListStudentRequest) ([]Student, error)
	UpdateBillingPolicy(ctx context.Context, req UpdateBillingPolicyRequest) (UpdateBillingPolicyResult, error)
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, student *Student) error
	FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*Student, error)
	List(ctx context.Context, db *gorm.DB, orgID snowflake.ID, active *bool, page pagination.Pagination) ([]Student, error)
	UpdatePolicyTx(ctx context.Context, tx *gorm.DB, student *Student) error
}

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidID           = errors.New("invalid_id")
	ErrInvalidName         = errors.New("invalid_name")
	ErrInvalidEmail        = errors.New("invalid_email")
	ErrNotFound            = errors.New("not_found")
	ErrPolicyMisconfigured = errors.New("policy_misconfigured")
)
