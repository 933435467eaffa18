package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/lingodesk/lingodesk/pkg/db/pagination"
	"gorm.io/gorm"
)

type CreateTeacherRequest struct {
	Name       string
	Email      string
	HourlyRate int64
	Currency   string
}

type UpdateCompensationRequest struct {
	TeacherID  string
	HourlyRate int64

	CancellationPayoutEnabled bool
	CancellationPayoutHours   *int
	CancellationPayoutPercent *int
}

type ListTeacherRequest struct {
	Active *bool
	Page   pagination.Pagination
}

type Service interface {
	Create(ctx context.Context, req CreateTeacherRequest) (Teacher, error)
	GetByID(ctx context.Context, id string) (Teacher, error)
	List(ctx context.Context, req ListTeacherRequest) ([]Teacher, error)
	UpdateCompensation(ctx context.Context, req UpdateCompensationRequest) (Teacher, error)
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, teacher *Teacher) error
	FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*Teacher, error)
	List(ctx context.Context, db *gorm.DB, orgID snowflake.ID, active *bool, page pagination.Pagination) ([]Teacher, error)
	UpdateCompensation(ctx context.Context, db *gorm.DB, teacher *Teacher) error
}

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidID           = errors.New("invalid_id")
	ErrInvalidName         = errors.New("invalid_name")
	ErrInvalidEmail        = errors.New("invalid_email")
	ErrInvalidRate         = errors.New("invalid_hourly_rate")
	ErrNotFound            = errors.New("not_found")
	ErrPolicyMisconfigured = errors.New("policy_misconfigured")
)
