package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/lingodesk/lingodesk/internal/cancellation"
	"github.com/lingodesk/lingodesk/internal/clock"
	"github.com/lingodesk/lingodesk/internal/config"
	"github.com/lingodesk/lingodesk/internal/duedate"
	ledgerdomain "github.com/lingodesk/lingodesk/internal/ledger/domain"
	"github.com/lingodesk/lingodesk/internal/lesson/domain"
	"github.com/lingodesk/lingodesk/internal/metrics"
	"github.com/lingodesk/lingodesk/internal/orgcontext"
	paymentdomain "github.com/lingodesk/lingodesk/internal/payment/domain"
	studentdomain "github.com/lingodesk/lingodesk/internal/student/domain"
	teacherdomain "github.com/lingodesk/lingodesk/internal/teacher/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	Repo        domain.Repository
	StudentRepo studentdomain.Repository
	TeacherRepo teacherdomain.Repository
	PaymentRepo paymentdomain.Repository
	LedgerRepo  ledgerdomain.Repository
	Billing     *config.BillingConfigHolder
	Metrics     *metrics.Metrics `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	repo        domain.Repository
	studentRepo studentdomain.Repository
	teacherRepo teacherdomain.Repository
	paymentRepo paymentdomain.Repository
	ledgerRepo  ledgerdomain.Repository
	billing     *config.BillingConfigHolder
	metrics     *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("lesson.service"),
		genID:       p.GenID,
		clock:       p.Clock,
		repo:        p.Repo,
		studentRepo: p.StudentRepo,
		teacherRepo: p.TeacherRepo,
		paymentRepo: p.PaymentRepo,
		ledgerRepo:  p.LedgerRepo,
		billing:     p.Billing,
		metrics:     p.Metrics,
	}
}

func (s *Service) Schedule(ctx context.Context, req domain.ScheduleLessonRequest) (domain.Lesson, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.Lesson{}, domain.ErrInvalidOrganization
	}

	studentID, err := parseID(req.StudentID)
	if err != nil {
		return domain.Lesson{}, domain.ErrInvalidStudent
	}
	teacherID, err := parseID(req.TeacherID)
	if err != nil {
		return domain.Lesson{}, domain.ErrInvalidTeacher
	}
	if req.ScheduledAt.IsZero() {
		return domain.Lesson{}, domain.ErrInvalidSchedule
	}
	if req.DurationMinutes <= 0 {
		return domain.Lesson{}, domain.ErrInvalidDuration
	}
	if req.Price <= 0 {
		return domain.Lesson{}, domain.ErrInvalidPrice
	}

	student, err := s.studentRepo.FindByID(ctx, s.db, orgID, studentID)
	if err != nil {
		return domain.Lesson{}, err
	}
	if student == nil {
		return domain.Lesson{}, domain.ErrInvalidStudent
	}
	teacher, err := s.teacherRepo.FindByID(ctx, s.db, orgID, teacherID)
	if err != nil {
		return domain.Lesson{}, err
	}
	if teacher == nil {
		return domain.Lesson{}, domain.ErrInvalidTeacher
	}

	now := s.clock.Now()
	lesson := domain.Lesson{
		ID:              s.genID.Generate(),
		OrgID:           orgID,
		StudentID:       studentID,
		TeacherID:       teacherID,
		ScheduledAt:     req.ScheduledAt.UTC(),
		DurationMinutes: req.DurationMinutes,
		Price:           req.Price,
		Status:          domain.LessonStatusScheduled,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.repo.Insert(ctx, s.db, &lesson); err != nil {
		return domain.Lesson{}, err
	}
	return lesson, nil
}

func (s *Service) Confirm(ctx context.Context, id string) (domain.Lesson, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.Lesson{}, domain.ErrInvalidOrganization
	}
	lessonID, err := parseID(id)
	if err != nil {
		return domain.Lesson{}, domain.ErrInvalidID
	}

	lesson, err := s.repo.FindByID(ctx, s.db, orgID, lessonID)
	if err != nil {
		return domain.Lesson{}, err
	}
	if lesson == nil {
		return domain.Lesson{}, domain.ErrNotFound
	}

	lesson.Status = domain.LessonStatusConfirmed
	updated, err := s.repo.UpdateStatusTx(ctx, s.db, lesson, domain.LessonStatusScheduled)
	if err != nil {
		return domain.Lesson{}, err
	}
	if !updated {
		return domain.Lesson{}, domain.ErrInvalidStatus
	}
	return *lesson, nil
}

// Complete transitions the lesson to COMPLETED and, in the same transaction,
// debits the student's balance and opens a PENDING payment due per the
// student's payment terms.
func (s *Service) Complete(ctx context.Context, id string) (domain.Lesson, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.Lesson{}, domain.ErrInvalidOrganization
	}
	lessonID, err := parseID(id)
	if err != nil {
		return domain.Lesson{}, domain.ErrInvalidID
	}

	var lesson *domain.Lesson
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		lesson, err = s.repo.FindByID(ctx, tx, orgID, lessonID)
		if err != nil {
			return err
		}
		if lesson == nil {
			return domain.ErrNotFound
		}

		from := lesson.Status
		if from != domain.LessonStatusScheduled && from != domain.LessonStatusConfirmed {
			return domain.ErrNotCompletable
		}

		student, err := s.studentRepo.FindByID(ctx, tx, orgID, lesson.StudentID)
		if err != nil {
			return err
		}
		if student == nil {
			return domain.ErrInvalidStudent
		}

		now := s.clock.Now()
		lesson.Status = domain.LessonStatusCompleted
		lesson.CompletedAt = &now
		updated, err := s.repo.UpdateStatusTx(ctx, tx, lesson, from)
		if err != nil {
			return err
		}
		if !updated {
			return domain.ErrNotCompletable
		}

		txn := ledgerdomain.BalanceTransaction{
			ID:          s.genID.Generate(),
			OrgID:       orgID,
			StudentID:   lesson.StudentID,
			Type:        ledgerdomain.TransactionTypeCharge,
			Amount:      -lesson.Price,
			Description: "Lesson completed",
			CreatedAt:   now,
		}
		if _, err := s.ledgerRepo.AppendTx(ctx, tx, &txn); err != nil {
			return err
		}

		dueAt := duedate.Compute(now, student.DueDatePolicy(), s.billing.Location())
		payment := paymentdomain.Payment{
			ID:        s.genID.Generate(),
			OrgID:     orgID,
			StudentID: lesson.StudentID,
			LessonID:  &lesson.ID,
			Amount:    lesson.Price,
			Status:    paymentdomain.PaymentStatusPending,
			DueAt:     &dueAt,
			CreatedAt: now,
			UpdatedAt: now,
		}
		return s.paymentRepo.Insert(ctx, tx, &payment)
	})
	if err != nil {
		return domain.Lesson{}, err
	}

	if s.metrics != nil {
		s.metrics.LedgerTransactions.WithLabelValues(string(ledgerdomain.TransactionTypeCharge)).Inc()
	}
	s.log.Info("lesson completed",
		zap.Int64("lesson_id", lesson.ID.Int64()),
		zap.Int64("student_id", lesson.StudentID.Int64()),
		zap.Int64("price", lesson.Price),
	)
	return *lesson, nil
}

// Cancel transitions the lesson to CANCELLED. Student cancellations inside
// the fee window debit the ledger in the same transaction; the allowance
// check is reported to the caller but never blocks the cancellation.
func (s *Service) Cancel(ctx context.Context, req domain.CancelLessonRequest) (domain.CancelLessonResult, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.CancelLessonResult{}, domain.ErrInvalidOrganization
	}
	lessonID, err := parseID(req.LessonID)
	if err != nil {
		return domain.CancelLessonResult{}, domain.ErrInvalidID
	}
	if !req.CancelledBy.Valid() {
		return domain.CancelLessonResult{}, domain.ErrInvalidCancelledBy
	}

	cancelledAt := s.clock.Now()
	if req.CancelledAt != nil {
		cancelledAt = req.CancelledAt.UTC()
	}

	var result domain.CancelLessonResult
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		lesson, err := s.repo.FindByID(ctx, tx, orgID, lessonID)
		if err != nil {
			return err
		}
		if lesson == nil {
			return domain.ErrNotFound
		}

		from := lesson.Status
		if from != domain.LessonStatusScheduled && from != domain.LessonStatusConfirmed {
			return domain.ErrNotCancellable
		}

		student, err := s.studentRepo.FindByID(ctx, tx, orgID, lesson.StudentID)
		if err != nil {
			return err
		}
		if student == nil {
			return domain.ErrInvalidStudent
		}

		var limit cancellation.LimitResult
		if req.CancelledBy == domain.CancelledByStudent {
			limit, err = cancellation.CheckLimit(ctx, s.repo, tx, orgID, lesson.StudentID, student.LimitPolicy(), cancelledAt, s.billing.Location())
			if err != nil {
				return err
			}
		} else {
			limit = cancellation.LimitResult{CanCancel: true}
		}

		cancelledBy := req.CancelledBy
		lesson.Status = domain.LessonStatusCancelled
		lesson.CancelledAt = &cancelledAt
		lesson.CancelledBy = &cancelledBy
		updated, err := s.repo.UpdateStatusTx(ctx, tx, lesson, from)
		if err != nil {
			return err
		}
		if !updated {
			return domain.ErrNotCancellable
		}

		var fee cancellation.FeeResult
		if req.CancelledBy == domain.CancelledByStudent {
			fee = cancellation.EvaluateFee(lesson.ScheduledAt, cancelledAt, student.FeePolicy(), lesson.Price)
		}
		if fee.Applied {
			txn := ledgerdomain.BalanceTransaction{
				ID:          s.genID.Generate(),
				OrgID:       orgID,
				StudentID:   lesson.StudentID,
				Type:        ledgerdomain.TransactionTypeCancellationFee,
				Amount:      -fee.Amount,
				Description: "Late cancellation fee",
				CreatedAt:   cancelledAt,
			}
			if _, err := s.ledgerRepo.AppendTx(ctx, tx, &txn); err != nil {
				return err
			}
		}

		result = domain.CancelLessonResult{Lesson: *lesson, Fee: fee, Limit: limit}
		return nil
	})
	if err != nil {
		return domain.CancelLessonResult{}, err
	}

	if result.Fee.Applied && s.metrics != nil {
		s.metrics.LedgerTransactions.WithLabelValues(string(ledgerdomain.TransactionTypeCancellationFee)).Inc()
	}
	s.log.Info("lesson cancelled",
		zap.Int64("lesson_id", result.Lesson.ID.Int64()),
		zap.String("cancelled_by", string(req.CancelledBy)),
		zap.Bool("fee_applied", result.Fee.Applied),
		zap.Int64("fee_amount", result.Fee.Amount),
	)
	return result, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (domain.Lesson, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.Lesson{}, domain.ErrInvalidOrganization
	}
	lessonID, err := parseID(id)
	if err != nil {
		return domain.Lesson{}, domain.ErrInvalidID
	}

	lesson, err := s.repo.FindByID(ctx, s.db, orgID, lessonID)
	if err != nil {
		return domain.Lesson{}, err
	}
	if lesson == nil {
		return domain.Lesson{}, domain.ErrNotFound
	}
	return *lesson, nil
}

func (s *Service) List(ctx context.Context, req domain.ListLessonRequest) ([]domain.Lesson, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return nil, domain.ErrInvalidOrganization
	}
	if req.Status != "" {
		switch req.Status {
		case domain.LessonStatusScheduled, domain.LessonStatusConfirmed, domain.LessonStatusCompleted, domain.LessonStatusCancelled:
		default:
			return nil, domain.ErrInvalidStatus
		}
	}

	var studentID, teacherID snowflake.ID
	if strings.TrimSpace(req.StudentID) != "" {
		id, err := parseID(req.StudentID)
		if err != nil {
			return nil, domain.ErrInvalidStudent
		}
		studentID = id
	}
	if strings.TrimSpace(req.TeacherID) != "" {
		id, err := parseID(req.TeacherID)
		if err != nil {
			return nil, domain.ErrInvalidTeacher
		}
		teacherID = id
	}

	return s.repo.List(ctx, s.db, orgID, req, studentID, teacherID)
}

func (s *Service) CheckCancellationLimit(ctx context.Context, studentID string) (cancellation.LimitResult, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return cancellation.LimitResult{}, domain.ErrInvalidOrganization
	}
	id, err := parseID(studentID)
	if err != nil {
		return cancellation.LimitResult{}, domain.ErrInvalidStudent
	}

	student, err := s.studentRepo.FindByID(ctx, s.db, orgID, id)
	if err != nil {
		return cancellation.LimitResult{}, err
	}
	if student == nil {
		return cancellation.LimitResult{}, domain.ErrInvalidStudent
	}

	return cancellation.CheckLimit(ctx, s.repo, s.db, orgID, id, student.LimitPolicy(), s.clock.Now(), s.billing.Location())
}

func parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}
