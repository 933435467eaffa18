package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/lingodesk/lingodesk/internal/cancellation"
	"github.com/lingodesk/lingodesk/pkg/db/pagination"
	"gorm.io/gorm"
)

type ScheduleLessonRequest struct {
	StudentID       string
	TeacherID       string
	ScheduledAt     time.Time
	DurationMinutes int
	Price           int64
}

type ListLessonRequest struct {
	StudentID string
	TeacherID string
	Status    LessonStatus
	DateFrom  *time.Time
	DateTo    *time.Time
	Page      pagination.Pagination
}

type CancelLessonRequest struct {
	LessonID    string
	CancelledBy CancelledBy
	CancelledAt *time.Time
}

// CancelLessonResult reports the fee outcome and the advisory allowance
// state at the time of cancellation.
type CancelLessonResult struct {
	Lesson Lesson                   `json:"lesson"`
	Fee    cancellation.FeeResult   `json:"fee"`
	Limit  cancellation.LimitResult `json:"limit"`
}

type Service interface {
	Schedule(ctx context.Context, req ScheduleLessonRequest) (Lesson, error)
	Confirm(ctx context.Context, id string) (Lesson, error)
	// Complete marks the lesson COMPLETED, charges the student's ledger, and
	// opens a PENDING payment with a policy-derived due date, atomically.
	Complete(ctx context.Context, id string) (Lesson, error)
	// Cancel marks the lesson CANCELLED and, for student cancellations
	// inside the protected window, applies the cancellation fee to the
	// ledger. The allowance check is advisory and never blocks.
	Cancel(ctx context.Context, req CancelLessonRequest) (CancelLessonResult, error)
	GetByID(ctx context.Context, id string) (Lesson, error)
	List(ctx context.Context, req ListLessonRequest) ([]Lesson, error)
	CheckCancellationLimit(ctx context.Context, studentID string) (cancellation.LimitResult, error)
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, lesson *Lesson) error
	FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*Lesson, error)
	List(ctx context.Context, db *gorm.DB, orgID snowflake.ID, req ListLessonRequest, studentID, teacherID snowflake.ID) ([]Lesson, error)
	UpdateStatusTx(ctx context.Context, tx *gorm.DB, lesson *Lesson, from LessonStatus) (bool, error)
	CountStudentCancellations(ctx context.Context, db *gorm.DB, orgID, studentID snowflake.ID, from *time.Time, to time.Time) (int64, error)
}

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidID           = errors.New("invalid_id")
	ErrInvalidStudent      = errors.New("invalid_student")
	ErrInvalidTeacher      = errors.New("invalid_teacher")
	ErrInvalidSchedule     = errors.New("invalid_schedule")
	ErrInvalidDuration     = errors.New("invalid_duration")
	ErrInvalidPrice        = errors.New("invalid_price")
	ErrInvalidCancelledBy  = errors.New("invalid_cancelled_by")
	ErrInvalidStatus       = errors.New("invalid_status")
	ErrNotFound            = errors.New("not_found")
	ErrNotCancellable      = errors.New("not_cancellable")
	ErrNotCompletable      = errors.New("not_completable")
)
