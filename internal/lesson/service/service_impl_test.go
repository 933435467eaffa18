package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/lingodesk/lingodesk/internal/clock"
	"github.com/lingodesk/lingodesk/internal/config"
	ledgerdomain "github.com/lingodesk/lingodesk/internal/ledger/domain"
	ledgerrepo "github.com/lingodesk/lingodesk/internal/ledger/repository"
	"github.com/lingodesk/lingodesk/internal/lesson/domain"
	"github.com/lingodesk/lingodesk/internal/lesson/repository"
	"github.com/lingodesk/lingodesk/internal/orgcontext"
	paymentdomain "github.com/lingodesk/lingodesk/internal/payment/domain"
	paymentrepo "github.com/lingodesk/lingodesk/internal/payment/repository"
	studentdomain "github.com/lingodesk/lingodesk/internal/student/domain"
	studentrepo "github.com/lingodesk/lingodesk/internal/student/repository"
	teacherdomain "github.com/lingodesk/lingodesk/internal/teacher/domain"
	teacherrepo "github.com/lingodesk/lingodesk/internal/teacher/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var lessonNow = time.Date(2024, 4, 10, 12, 0, 0, 0, time.UTC)

func setupLessonService(t *testing.T) (domain.Service, *gorm.DB, *snowflake.Node) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_loc=auto", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	require.NoError(t, db.Exec("PRAGMA busy_timeout = 5000").Error)
	require.NoError(t, db.Exec("PRAGMA journal_mode = WAL").Error)

	require.NoError(t, db.AutoMigrate(
		&studentdomain.Student{},
		&teacherdomain.Teacher{},
		&domain.Lesson{},
		&paymentdomain.Payment{},
		&ledgerdomain.BalanceTransaction{},
		&ledgerdomain.StudentBalance{},
	))

	node := mustNode(t)
	svc := New(Params{
		DB:          db,
		Log:         zap.NewNop(),
		GenID:       node,
		Clock:       clock.NewFakeClock(lessonNow),
		Repo:        repository.Provide(),
		StudentRepo: studentrepo.Provide(),
		TeacherRepo: teacherrepo.Provide(),
		PaymentRepo: paymentrepo.Provide(),
		LedgerRepo:  ledgerrepo.Provide(),
		Billing: config.NewStaticBillingConfigHolder(config.BillingConfig{
			Currency:              "PLN",
			Timezone:              "UTC",
			DefaultPaymentDueDays: 14,
		}),
	})
	return svc, db, node
}

func mustNode(t *testing.T) *snowflake.Node {
	t.Helper()
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	return node
}

func intPtr(v int) *int { return &v }

func seedStudent(t *testing.T, db *gorm.DB, node *snowflake.Node, orgID snowflake.ID, mutate func(*studentdomain.Student)) snowflake.ID {
	t.Helper()
	student := studentdomain.Student{
		ID:                      node.Generate(),
		OrgID:                   orgID,
		Name:                    "Anna Kowalska",
		Email:                   "anna@example.com",
		Active:                  true,
		EnrolledAt:              lessonNow.AddDate(-1, 0, 0),
		PaymentDueDays:          intPtr(14),
		CancellationLimitPeriod: "month",
	}
	if mutate != nil {
		mutate(&student)
	}
	require.NoError(t, db.Create(&student).Error)
	return student.ID
}

func seedTeacher(t *testing.T, db *gorm.DB, node *snowflake.Node, orgID snowflake.ID) snowflake.ID {
	t.Helper()
	teacher := teacherdomain.Teacher{
		ID:         node.Generate(),
		OrgID:      orgID,
		Name:       "Jan Nowak",
		Email:      "jan@example.com",
		Active:     true,
		HourlyRate: 12000,
		Currency:   "PLN",
	}
	require.NoError(t, db.Create(&teacher).Error)
	return teacher.ID
}

func schedule(t *testing.T, svc domain.Service, ctx context.Context, studentID, teacherID snowflake.ID, at time.Time) domain.Lesson {
	t.Helper()
	lesson, err := svc.Schedule(ctx, domain.ScheduleLessonRequest{
		StudentID:       studentID.String(),
		TeacherID:       teacherID.String(),
		ScheduledAt:     at,
		DurationMinutes: 60,
		Price:           10000,
	})
	require.NoError(t, err)
	return lesson
}

func TestScheduleValidatesReferences(t *testing.T) {
	svc, db, node := setupLessonService(t)
	orgID := node.Generate()
	studentID := seedStudent(t, db, node, orgID, nil)
	teacherID := seedTeacher(t, db, node, orgID)
	ctx := orgcontext.WithOrgID(context.Background(), int64(orgID))

	_, err := svc.Schedule(ctx, domain.ScheduleLessonRequest{
		StudentID:       node.Generate().String(),
		TeacherID:       teacherID.String(),
		ScheduledAt:     lessonNow.Add(24 * time.Hour),
		DurationMinutes: 60,
		Price:           10000,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidStudent)

	_, err = svc.Schedule(ctx, domain.ScheduleLessonRequest{
		StudentID:       studentID.String(),
		TeacherID:       teacherID.String(),
		ScheduledAt:     lessonNow.Add(24 * time.Hour),
		DurationMinutes: 0,
		Price:           10000,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidDuration)

	lesson := schedule(t, svc, ctx, studentID, teacherID, lessonNow.Add(24*time.Hour))
	assert.Equal(t, domain.LessonStatusScheduled, lesson.Status)
}

func TestCompleteChargesLedgerAndOpensPayment(t *testing.T) {
	svc, db, node := setupLessonService(t)
	orgID := node.Generate()
	studentID := seedStudent(t, db, node, orgID, nil)
	teacherID := seedTeacher(t, db, node, orgID)
	ctx := orgcontext.WithOrgID(context.Background(), int64(orgID))

	lesson := schedule(t, svc, ctx, studentID, teacherID, lessonNow.Add(-time.Hour))

	completed, err := svc.Complete(ctx, lesson.ID.String())
	require.NoError(t, err)
	assert.Equal(t, domain.LessonStatusCompleted, completed.Status)
	require.NotNil(t, completed.CompletedAt)

	var txn ledgerdomain.BalanceTransaction
	require.NoError(t, db.Where("student_id = ?", studentID).Take(&txn).Error)
	assert.Equal(t, ledgerdomain.TransactionTypeCharge, txn.Type)
	assert.Equal(t, int64(-10000), txn.Amount)

	var balance ledgerdomain.StudentBalance
	require.NoError(t, db.Where("student_id = ?", studentID).Take(&balance).Error)
	assert.Equal(t, int64(-10000), balance.Balance)

	var payment paymentdomain.Payment
	require.NoError(t, db.Where("lesson_id = ?", lesson.ID).Take(&payment).Error)
	assert.Equal(t, paymentdomain.PaymentStatusPending, payment.Status)
	assert.Equal(t, int64(10000), payment.Amount)
	require.NotNil(t, payment.DueAt)
	assert.True(t, payment.DueAt.UTC().Equal(lessonNow.AddDate(0, 0, 14)))

	// Completing twice is rejected.
	_, err = svc.Complete(ctx, lesson.ID.String())
	assert.ErrorIs(t, err, domain.ErrNotCompletable)
}

func TestCancelInsideWindowAppliesFee(t *testing.T) {
	svc, db, node := setupLessonService(t)
	orgID := node.Generate()
	studentID := seedStudent(t, db, node, orgID, func(s *studentdomain.Student) {
		s.CancellationFeeEnabled = true
		s.CancellationHoursThreshold = intPtr(24)
		s.CancellationFeePercent = intPtr(50)
	})
	teacherID := seedTeacher(t, db, node, orgID)
	ctx := orgcontext.WithOrgID(context.Background(), int64(orgID))

	lesson := schedule(t, svc, ctx, studentID, teacherID, lessonNow.Add(10*time.Hour))

	result, err := svc.Cancel(ctx, domain.CancelLessonRequest{
		LessonID:    lesson.ID.String(),
		CancelledBy: domain.CancelledByStudent,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.LessonStatusCancelled, result.Lesson.Status)
	assert.True(t, result.Fee.Applied)
	assert.Equal(t, int64(5000), result.Fee.Amount)
	assert.True(t, result.Limit.CanCancel)

	var txn ledgerdomain.BalanceTransaction
	require.NoError(t, db.Where("student_id = ?", studentID).Take(&txn).Error)
	assert.Equal(t, ledgerdomain.TransactionTypeCancellationFee, txn.Type)
	assert.Equal(t, int64(-5000), txn.Amount)
}

func TestCancelOutsideWindowIsFree(t *testing.T) {
	svc, db, node := setupLessonService(t)
	orgID := node.Generate()
	studentID := seedStudent(t, db, node, orgID, func(s *studentdomain.Student) {
		s.CancellationFeeEnabled = true
		s.CancellationHoursThreshold = intPtr(24)
		s.CancellationFeePercent = intPtr(50)
	})
	teacherID := seedTeacher(t, db, node, orgID)
	ctx := orgcontext.WithOrgID(context.Background(), int64(orgID))

	lesson := schedule(t, svc, ctx, studentID, teacherID, lessonNow.Add(48*time.Hour))

	result, err := svc.Cancel(ctx, domain.CancelLessonRequest{
		LessonID:    lesson.ID.String(),
		CancelledBy: domain.CancelledByStudent,
	})
	require.NoError(t, err)
	assert.False(t, result.Fee.Applied)

	var count int64
	require.NoError(t, db.Model(&ledgerdomain.BalanceTransaction{}).Where("student_id = ?", studentID).Count(&count).Error)
	assert.Zero(t, count)
}

func TestTeacherCancellationNeverCharges(t *testing.T) {
	svc, db, node := setupLessonService(t)
	orgID := node.Generate()
	studentID := seedStudent(t, db, node, orgID, func(s *studentdomain.Student) {
		s.CancellationFeeEnabled = true
		s.CancellationHoursThreshold = intPtr(24)
		s.CancellationFeePercent = intPtr(50)
	})
	teacherID := seedTeacher(t, db, node, orgID)
	ctx := orgcontext.WithOrgID(context.Background(), int64(orgID))

	lesson := schedule(t, svc, ctx, studentID, teacherID, lessonNow.Add(time.Hour))

	result, err := svc.Cancel(ctx, domain.CancelLessonRequest{
		LessonID:    lesson.ID.String(),
		CancelledBy: domain.CancelledByTeacher,
	})
	require.NoError(t, err)
	assert.False(t, result.Fee.Applied)

	var count int64
	require.NoError(t, db.Model(&ledgerdomain.BalanceTransaction{}).Where("student_id = ?", studentID).Count(&count).Error)
	assert.Zero(t, count)
}

func TestCancelReportsExhaustedAllowanceButProceeds(t *testing.T) {
	svc, db, node := setupLessonService(t)
	orgID := node.Generate()
	studentID := seedStudent(t, db, node, orgID, func(s *studentdomain.Student) {
		s.CancellationLimitEnabled = true
		s.CancellationLimitCount = intPtr(1)
		s.CancellationLimitPeriod = "month"
	})
	teacherID := seedTeacher(t, db, node, orgID)
	ctx := orgcontext.WithOrgID(context.Background(), int64(orgID))

	first := schedule(t, svc, ctx, studentID, teacherID, lessonNow.Add(72*time.Hour))
	second := schedule(t, svc, ctx, studentID, teacherID, lessonNow.Add(96*time.Hour))

	result, err := svc.Cancel(ctx, domain.CancelLessonRequest{
		LessonID:    first.ID.String(),
		CancelledBy: domain.CancelledByStudent,
	})
	require.NoError(t, err)
	assert.True(t, result.Limit.CanCancel)

	// The allowance is spent, yet the cancellation still goes through.
	result, err = svc.Cancel(ctx, domain.CancelLessonRequest{
		LessonID:    second.ID.String(),
		CancelledBy: domain.CancelledByStudent,
	})
	require.NoError(t, err)
	assert.False(t, result.Limit.CanCancel)
	assert.Equal(t, 1, result.Limit.Used)
	assert.Equal(t, domain.LessonStatusCancelled, result.Lesson.Status)

	limit, err := svc.CheckCancellationLimit(ctx, studentID.String())
	require.NoError(t, err)
	assert.False(t, limit.CanCancel)
	assert.Equal(t, 2, limit.Used)
}

func TestConfirmOnlyFromScheduled(t *testing.T) {
	svc, db, node := setupLessonService(t)
	orgID := node.Generate()
	studentID := seedStudent(t, db, node, orgID, nil)
	teacherID := seedTeacher(t, db, node, orgID)
	ctx := orgcontext.WithOrgID(context.Background(), int64(orgID))

	lesson := schedule(t, svc, ctx, studentID, teacherID, lessonNow.Add(24*time.Hour))

	confirmed, err := svc.Confirm(ctx, lesson.ID.String())
	require.NoError(t, err)
	assert.Equal(t, domain.LessonStatusConfirmed, confirmed.Status)

	_, err = svc.Confirm(ctx, lesson.ID.String())
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)
}
