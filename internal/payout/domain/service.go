package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	lessondomain "github.com/lingodesk/lingodesk/internal/lesson/domain"
	"github.com/lingodesk/lingodesk/pkg/db/pagination"
	"gorm.io/gorm"
)

type PreviewRequest struct {
	TeacherID   string
	PeriodStart time.Time
	PeriodEnd   time.Time
}

// PreviewResult lists the lessons that would enter a payout for the period,
// with the compensation each earns.
type PreviewResult struct {
	TeacherID    snowflake.ID  `json:"teacher_id"`
	PeriodStart  time.Time     `json:"period_start"`
	PeriodEnd    time.Time     `json:"period_end"`
	TotalMinutes int64         `json:"total_minutes"`
	TotalAmount  int64         `json:"total_amount"`
	Currency     string        `json:"currency"`
	Lines        []PreviewLine `json:"lines"`
}

type PreviewLine struct {
	LessonID        snowflake.ID        `json:"lesson_id"`
	LessonDate      time.Time           `json:"lesson_date"`
	DurationMinutes int                 `json:"duration_minutes"`
	HourlyRate      int64               `json:"hourly_rate"`
	Amount          int64               `json:"amount"`
	Reason          QualificationReason `json:"reason"`
}

type CreatePayoutRequest struct {
	TeacherID   string
	PeriodStart time.Time
	PeriodEnd   time.Time
	Notes       string
}

type UpdateStatusRequest struct {
	PayoutID string
	Status   PayoutStatus
	Notes    *string
}

type ListPayoutRequest struct {
	TeacherID string
	Status    PayoutStatus
	Page      pagination.Pagination
}

// DayLesson is the per-day qualification view: every lesson the teacher had
// that day, whether and why it earns compensation, and the payout that
// already covers it, if any.
type DayLesson struct {
	Lesson   lessondomain.Lesson  `json:"lesson"`
	Eligible bool                 `json:"eligible"`
	Reason   *QualificationReason `json:"reason,omitempty"`
	Amount   int64                `json:"amount"`
	PayoutID *snowflake.ID        `json:"payout_id,omitempty"`
}

type Service interface {
	Preview(ctx context.Context, req PreviewRequest) (PreviewResult, error)
	// Create recomputes the preview server-side and persists a PENDING payout
	// with its lesson lines atomically.
	Create(ctx context.Context, req CreatePayoutRequest) (TeacherPayout, error)
	GetByID(ctx context.Context, id string) (TeacherPayout, error)
	List(ctx context.Context, req ListPayoutRequest) ([]TeacherPayout, error)
	UpdateStatus(ctx context.Context, req UpdateStatusRequest) (TeacherPayout, error)
	Delete(ctx context.Context, id string) error
	LessonsForDay(ctx context.Context, teacherID string, date time.Time) ([]DayLesson, error)
}

type Repository interface {
	InsertTx(ctx context.Context, tx *gorm.DB, payout *TeacherPayout) error
	FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*TeacherPayout, error)
	List(ctx context.Context, db *gorm.DB, orgID, teacherID snowflake.ID, status PayoutStatus, page pagination.Pagination) ([]TeacherPayout, error)
	UpdateTx(ctx context.Context, tx *gorm.DB, payout *TeacherPayout) error
	DeleteTx(ctx context.Context, tx *gorm.DB, orgID, id snowflake.ID) error
	// LessonsInPeriod returns the teacher's lessons with scheduled_at in
	// [start, end), oldest first.
	LessonsInPeriod(ctx context.Context, db *gorm.DB, orgID, teacherID snowflake.ID, start, end time.Time) ([]lessondomain.Lesson, error)
	// PaidOutLessonIDs maps each given lesson to the non-CANCELLED payout
	// already containing it.
	PaidOutLessonIDs(ctx context.Context, db *gorm.DB, orgID snowflake.ID, lessonIDs []snowflake.ID) (map[snowflake.ID]snowflake.ID, error)
}

var (
	ErrInvalidOrganization  = errors.New("invalid_organization")
	ErrInvalidID            = errors.New("invalid_id")
	ErrInvalidTeacher       = errors.New("invalid_teacher")
	ErrInvalidPeriod        = errors.New("invalid_period")
	ErrInvalidStatus        = errors.New("invalid_status")
	ErrNotFound             = errors.New("not_found")
	ErrEmptyPayout          = errors.New("empty_payout")
	ErrTerminalStatus       = errors.New("terminal_status")
	ErrOnlyPendingDeletable = errors.New("only_pending_deletable")
)
