package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/lingodesk/lingodesk/internal/clock"
	lessondomain "github.com/lingodesk/lingodesk/internal/lesson/domain"
	"github.com/lingodesk/lingodesk/internal/metrics"
	"github.com/lingodesk/lingodesk/internal/orgcontext"
	"github.com/lingodesk/lingodesk/internal/payout/domain"
	teacherdomain "github.com/lingodesk/lingodesk/internal/teacher/domain"
	"github.com/shopspring/decimal"
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
	TeacherRepo teacherdomain.Repository
	Metrics     *metrics.Metrics `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	repo        domain.Repository
	teacherRepo teacherdomain.Repository
	metrics     *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("payout.service"),
		genID:       p.GenID,
		clock:       p.Clock,
		repo:        p.Repo,
		teacherRepo: p.TeacherRepo,
		metrics:     p.Metrics,
	}
}

func (s *Service) Preview(ctx context.Context, req domain.PreviewRequest) (domain.PreviewResult, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.PreviewResult{}, domain.ErrInvalidOrganization
	}
	teacherID, err := parseID(req.TeacherID)
	if err != nil {
		return domain.PreviewResult{}, domain.ErrInvalidTeacher
	}
	if req.PeriodStart.IsZero() || req.PeriodEnd.IsZero() || !req.PeriodEnd.After(req.PeriodStart) {
		return domain.PreviewResult{}, domain.ErrInvalidPeriod
	}

	teacher, err := s.teacherRepo.FindByID(ctx, s.db, orgID, teacherID)
	if err != nil {
		return domain.PreviewResult{}, err
	}
	if teacher == nil {
		return domain.PreviewResult{}, domain.ErrInvalidTeacher
	}

	return s.compute(ctx, s.db, orgID, teacher, req.PeriodStart, req.PeriodEnd)
}

func (s *Service) Create(ctx context.Context, req domain.CreatePayoutRequest) (domain.TeacherPayout, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.TeacherPayout{}, domain.ErrInvalidOrganization
	}
	teacherID, err := parseID(req.TeacherID)
	if err != nil {
		return domain.TeacherPayout{}, domain.ErrInvalidTeacher
	}
	if req.PeriodStart.IsZero() || req.PeriodEnd.IsZero() || !req.PeriodEnd.After(req.PeriodStart) {
		return domain.TeacherPayout{}, domain.ErrInvalidPeriod
	}

	var payout domain.TeacherPayout
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		teacher, err := s.teacherRepo.FindByID(ctx, tx, orgID, teacherID)
		if err != nil {
			return err
		}
		if teacher == nil {
			return domain.ErrInvalidTeacher
		}

		preview, err := s.compute(ctx, tx, orgID, teacher, req.PeriodStart, req.PeriodEnd)
		if err != nil {
			return err
		}
		if len(preview.Lines) == 0 {
			return domain.ErrEmptyPayout
		}

		now := s.clock.Now()
		payout = domain.TeacherPayout{
			ID:           s.genID.Generate(),
			OrgID:        orgID,
			TeacherID:    teacherID,
			PeriodStart:  preview.PeriodStart,
			PeriodEnd:    preview.PeriodEnd,
			TotalMinutes: preview.TotalMinutes,
			TotalAmount:  preview.TotalAmount,
			Currency:     preview.Currency,
			Status:       domain.PayoutStatusPending,
			Notes:        strings.TrimSpace(req.Notes),
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		for _, line := range preview.Lines {
			payout.Lessons = append(payout.Lessons, domain.TeacherPayoutLesson{
				ID:              s.genID.Generate(),
				PayoutID:        payout.ID,
				LessonID:        line.LessonID,
				LessonDate:      line.LessonDate,
				DurationMinutes: line.DurationMinutes,
				HourlyRate:      line.HourlyRate,
				Amount:          line.Amount,
				Reason:          line.Reason,
			})
		}
		return s.repo.InsertTx(ctx, tx, &payout)
	})
	if err != nil {
		return domain.TeacherPayout{}, err
	}

	if s.metrics != nil {
		s.metrics.PayoutsCreated.Inc()
	}
	s.log.Info("payout created",
		zap.Int64("payout_id", payout.ID.Int64()),
		zap.Int64("teacher_id", teacherID.Int64()),
		zap.Int64("total_amount", payout.TotalAmount),
		zap.Int("lessons", len(payout.Lessons)),
	)
	return payout, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (domain.TeacherPayout, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.TeacherPayout{}, domain.ErrInvalidOrganization
	}
	payoutID, err := parseID(id)
	if err != nil {
		return domain.TeacherPayout{}, domain.ErrInvalidID
	}

	payout, err := s.repo.FindByID(ctx, s.db, orgID, payoutID)
	if err != nil {
		return domain.TeacherPayout{}, err
	}
	if payout == nil {
		return domain.TeacherPayout{}, domain.ErrNotFound
	}
	return *payout, nil
}

func (s *Service) List(ctx context.Context, req domain.ListPayoutRequest) ([]domain.TeacherPayout, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return nil, domain.ErrInvalidOrganization
	}
	if req.Status != "" && !req.Status.Valid() {
		return nil, domain.ErrInvalidStatus
	}

	var teacherID snowflake.ID
	if strings.TrimSpace(req.TeacherID) != "" {
		id, err := parseID(req.TeacherID)
		if err != nil {
			return nil, domain.ErrInvalidTeacher
		}
		teacherID = id
	}

	return s.repo.List(ctx, s.db, orgID, teacherID, req.Status, req.Page)
}

func (s *Service) UpdateStatus(ctx context.Context, req domain.UpdateStatusRequest) (domain.TeacherPayout, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.TeacherPayout{}, domain.ErrInvalidOrganization
	}
	payoutID, err := parseID(req.PayoutID)
	if err != nil {
		return domain.TeacherPayout{}, domain.ErrInvalidID
	}
	if !req.Status.Valid() {
		return domain.TeacherPayout{}, domain.ErrInvalidStatus
	}

	var payout *domain.TeacherPayout
	var from domain.PayoutStatus
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		payout, err = s.repo.FindByID(ctx, tx, orgID, payoutID)
		if err != nil {
			return err
		}
		if payout == nil {
			return domain.ErrNotFound
		}
		if payout.Status.Terminal() {
			return domain.ErrTerminalStatus
		}

		from = payout.Status
		payout.Status = req.Status
		if req.Status == domain.PayoutStatusPaid {
			now := s.clock.Now()
			payout.PaidAt = &now
		}
		if req.Notes != nil {
			payout.Notes = strings.TrimSpace(*req.Notes)
		}
		return s.repo.UpdateTx(ctx, tx, payout)
	})
	if err != nil {
		return domain.TeacherPayout{}, err
	}

	if s.metrics != nil {
		s.metrics.PayoutTransitions.WithLabelValues(string(from), string(payout.Status)).Inc()
	}
	return *payout, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.ErrInvalidOrganization
	}
	payoutID, err := parseID(id)
	if err != nil {
		return domain.ErrInvalidID
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		payout, err := s.repo.FindByID(ctx, tx, orgID, payoutID)
		if err != nil {
			return err
		}
		if payout == nil {
			return domain.ErrNotFound
		}
		if payout.Status != domain.PayoutStatusPending {
			return domain.ErrOnlyPendingDeletable
		}
		return s.repo.DeleteTx(ctx, tx, orgID, payoutID)
	})
}

func (s *Service) LessonsForDay(ctx context.Context, teacherID string, date time.Time) ([]domain.DayLesson, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return nil, domain.ErrInvalidOrganization
	}
	id, err := parseID(teacherID)
	if err != nil {
		return nil, domain.ErrInvalidTeacher
	}

	teacher, err := s.teacherRepo.FindByID(ctx, s.db, orgID, id)
	if err != nil {
		return nil, err
	}
	if teacher == nil {
		return nil, domain.ErrInvalidTeacher
	}

	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.AddDate(0, 0, 1)

	lessons, err := s.repo.LessonsInPeriod(ctx, s.db, orgID, id, dayStart, dayEnd)
	if err != nil {
		return nil, err
	}

	lessonIDs := make([]snowflake.ID, 0, len(lessons))
	for _, lesson := range lessons {
		lessonIDs = append(lessonIDs, lesson.ID)
	}
	paidOut, err := s.repo.PaidOutLessonIDs(ctx, s.db, orgID, lessonIDs)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	result := make([]domain.DayLesson, 0, len(lessons))
	for _, lesson := range lessons {
		day := domain.DayLesson{Lesson: lesson}
		if reason, amount, ok := qualify(lesson, teacher, now); ok {
			day.Eligible = true
			day.Reason = &reason
			day.Amount = amount
		}
		if payoutID, ok := paidOut[lesson.ID]; ok {
			id := payoutID
			day.PayoutID = &id
		}
		result = append(result, day)
	}
	return result, nil
}

// compute builds the qualification preview for a period. Lessons already in
// a non-cancelled payout are skipped so a lesson is never paid twice.
func (s *Service) compute(ctx context.Context, conn *gorm.DB, orgID snowflake.ID, teacher *teacherdomain.Teacher, start, end time.Time) (domain.PreviewResult, error) {
	lessons, err := s.repo.LessonsInPeriod(ctx, conn, orgID, teacher.ID, start, end)
	if err != nil {
		return domain.PreviewResult{}, err
	}

	lessonIDs := make([]snowflake.ID, 0, len(lessons))
	for _, lesson := range lessons {
		lessonIDs = append(lessonIDs, lesson.ID)
	}
	paidOut, err := s.repo.PaidOutLessonIDs(ctx, conn, orgID, lessonIDs)
	if err != nil {
		return domain.PreviewResult{}, err
	}

	now := s.clock.Now()
	result := domain.PreviewResult{
		TeacherID:   teacher.ID,
		PeriodStart: start,
		PeriodEnd:   end,
		Currency:    teacher.Currency,
	}
	for _, lesson := range lessons {
		if _, exists := paidOut[lesson.ID]; exists {
			continue
		}
		reason, amount, ok := qualify(lesson, teacher, now)
		if !ok {
			continue
		}
		result.Lines = append(result.Lines, domain.PreviewLine{
			LessonID:        lesson.ID,
			LessonDate:      lesson.ScheduledAt,
			DurationMinutes: lesson.DurationMinutes,
			HourlyRate:      teacher.HourlyRate,
			Amount:          amount,
			Reason:          reason,
		})
		result.TotalMinutes += int64(lesson.DurationMinutes)
		result.TotalAmount += amount
	}
	return result, nil
}

// qualify decides whether a lesson earns compensation and how much.
// COMPLETED lessons and CONFIRMED lessons whose start has passed earn the
// full hourly rate prorated by duration. Lessons the student cancelled
// inside the teacher's payout window earn the configured percentage.
func qualify(lesson lessondomain.Lesson, teacher *teacherdomain.Teacher, now time.Time) (domain.QualificationReason, int64, bool) {
	switch lesson.Status {
	case lessondomain.LessonStatusCompleted:
		return domain.ReasonCompleted, lessonAmount(teacher.HourlyRate, lesson.DurationMinutes), true

	case lessondomain.LessonStatusConfirmed:
		if lesson.ScheduledAt.Before(now) {
			return domain.ReasonConfirmed, lessonAmount(teacher.HourlyRate, lesson.DurationMinutes), true
		}

	case lessondomain.LessonStatusCancelled:
		if !teacher.CancellationPayoutEnabled || teacher.CancellationPayoutHours == nil || teacher.CancellationPayoutPercent == nil {
			return "", 0, false
		}
		if lesson.CancelledBy == nil || *lesson.CancelledBy != lessondomain.CancelledByStudent || lesson.CancelledAt == nil {
			return "", 0, false
		}
		hoursBefore := lesson.ScheduledAt.Sub(*lesson.CancelledAt).Hours()
		if hoursBefore < 0 || hoursBefore >= float64(*teacher.CancellationPayoutHours) {
			return "", 0, false
		}
		amount := decimal.NewFromInt(teacher.HourlyRate).
			Mul(decimal.NewFromInt(int64(lesson.DurationMinutes))).
			Div(decimal.NewFromInt(60)).
			Mul(decimal.NewFromInt(int64(*teacher.CancellationPayoutPercent))).
			Div(decimal.NewFromInt(100)).
			Round(0).
			IntPart()
		return domain.ReasonLateCancellation, amount, true
	}
	return "", 0, false
}

func lessonAmount(hourlyRate int64, minutes int) int64 {
	return decimal.NewFromInt(hourlyRate).
		Mul(decimal.NewFromInt(int64(minutes))).
		Div(decimal.NewFromInt(60)).
		Round(0).
		IntPart()
}

func parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}
