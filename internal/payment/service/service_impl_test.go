package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/lingodesk/lingodesk/internal/config"
	ledgerdomain "github.com/lingodesk/lingodesk/internal/ledger/domain"
	ledgerrepo "github.com/lingodesk/lingodesk/internal/ledger/repository"
	lessondomain "github.com/lingodesk/lingodesk/internal/lesson/domain"
	"github.com/lingodesk/lingodesk/internal/orgcontext"
	"github.com/lingodesk/lingodesk/internal/payment/domain"
	"github.com/lingodesk/lingodesk/internal/payment/repository"
	studentdomain "github.com/lingodesk/lingodesk/internal/student/domain"
	studentrepo "github.com/lingodesk/lingodesk/internal/student/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupPaymentService(t *testing.T) (domain.Service, *gorm.DB, *snowflake.Node) {
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
		&lessondomain.Lesson{},
		&domain.Payment{},
		&ledgerdomain.BalanceTransaction{},
		&ledgerdomain.StudentBalance{},
	))

	node := mustNode(t)
	svc := New(Params{
		DB:          db,
		Log:         zap.NewNop(),
		GenID:       node,
		Repo:        repository.Provide(),
		StudentRepo: studentrepo.Provide(),
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

func seedStudent(t *testing.T, db *gorm.DB, node *snowflake.Node, orgID snowflake.ID) snowflake.ID {
	t.Helper()
	student := studentdomain.Student{
		ID:                      node.Generate(),
		OrgID:                   orgID,
		Name:                    "Anna Kowalska",
		Email:                   "anna@example.com",
		Active:                  true,
		EnrolledAt:              time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		PaymentDueDays:          intPtr(14),
		CancellationLimitPeriod: "month",
	}
	require.NoError(t, db.Create(&student).Error)
	return student.ID
}

func TestCreatePendingPayment(t *testing.T) {
	svc, db, node := setupPaymentService(t)
	orgID := node.Generate()
	studentID := seedStudent(t, db, node, orgID)
	ctx := orgcontext.WithOrgID(context.Background(), int64(orgID))

	payment, err := svc.Create(ctx, domain.CreatePaymentRequest{
		StudentID: studentID.String(),
		Amount:    5000,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusPending, payment.Status)
	require.NotNil(t, payment.DueAt)
	assert.True(t, payment.DueAt.Equal(payment.CreatedAt.AddDate(0, 0, 14)))

	_, err = svc.Create(ctx, domain.CreatePaymentRequest{
		StudentID: studentID.String(),
		Amount:    0,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	_, err = svc.Create(ctx, domain.CreatePaymentRequest{
		StudentID: node.Generate().String(),
		Amount:    5000,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidStudent)
}

func TestMarkCompletedCreditsLedgerOnce(t *testing.T) {
	svc, db, node := setupPaymentService(t)
	orgID := node.Generate()
	studentID := seedStudent(t, db, node, orgID)
	ctx := orgcontext.WithOrgID(context.Background(), int64(orgID))

	payment, err := svc.Create(ctx, domain.CreatePaymentRequest{
		StudentID: studentID.String(),
		Amount:    5000,
	})
	require.NoError(t, err)

	completed, err := svc.MarkCompleted(ctx, payment.ID.String())
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusCompleted, completed.Status)

	var txn ledgerdomain.BalanceTransaction
	require.NoError(t, db.Where("student_id = ?", studentID).Take(&txn).Error)
	assert.Equal(t, ledgerdomain.TransactionTypePayment, txn.Type)
	assert.Equal(t, int64(5000), txn.Amount)

	var balance ledgerdomain.StudentBalance
	require.NoError(t, db.Where("student_id = ?", studentID).Take(&balance).Error)
	assert.Equal(t, int64(5000), balance.Balance)

	// Settled payments cannot be completed again, and no second credit lands.
	_, err = svc.MarkCompleted(ctx, payment.ID.String())
	assert.ErrorIs(t, err, domain.ErrNotPending)

	var count int64
	require.NoError(t, db.Model(&ledgerdomain.BalanceTransaction{}).Where("student_id = ?", studentID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestMarkCancelledSkipsLedger(t *testing.T) {
	svc, db, node := setupPaymentService(t)
	orgID := node.Generate()
	studentID := seedStudent(t, db, node, orgID)
	ctx := orgcontext.WithOrgID(context.Background(), int64(orgID))

	payment, err := svc.Create(ctx, domain.CreatePaymentRequest{
		StudentID: studentID.String(),
		Amount:    5000,
	})
	require.NoError(t, err)

	cancelled, err := svc.MarkCancelled(ctx, payment.ID.String())
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusCancelled, cancelled.Status)

	var count int64
	require.NoError(t, db.Model(&ledgerdomain.BalanceTransaction{}).Where("student_id = ?", studentID).Count(&count).Error)
	assert.Zero(t, count)

	_, err = svc.MarkCompleted(ctx, payment.ID.String())
	assert.ErrorIs(t, err, domain.ErrNotPending)
}

func TestListOverdueFilter(t *testing.T) {
	svc, db, node := setupPaymentService(t)
	orgID := node.Generate()
	studentID := seedStudent(t, db, node, orgID)
	ctx := orgcontext.WithOrgID(context.Background(), int64(orgID))

	past := time.Now().UTC().Add(-48 * time.Hour)
	future := time.Now().UTC().Add(48 * time.Hour)
	overdue := domain.Payment{
		ID:        node.Generate(),
		OrgID:     orgID,
		StudentID: studentID,
		Amount:    3000,
		Status:    domain.PaymentStatusPending,
		DueAt:     &past,
		CreatedAt: past,
	}
	current := domain.Payment{
		ID:        node.Generate(),
		OrgID:     orgID,
		StudentID: studentID,
		Amount:    3000,
		Status:    domain.PaymentStatusPending,
		DueAt:     &future,
		CreatedAt: past,
	}
	require.NoError(t, db.Create(&overdue).Error)
	require.NoError(t, db.Create(&current).Error)

	now := time.Now().UTC()
	payments, err := svc.List(ctx, domain.ListPaymentRequest{
		StudentID: studentID.String(),
		OverdueBy: &now,
	})
	require.NoError(t, err)
	require.Len(t, payments, 1)
	assert.Equal(t, overdue.ID, payments[0].ID)
}
