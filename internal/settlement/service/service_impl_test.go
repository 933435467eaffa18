package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/lingodesk/lingodesk/internal/clock"
	ledgerdomain "github.com/lingodesk/lingodesk/internal/ledger/domain"
	ledgerrepo "github.com/lingodesk/lingodesk/internal/ledger/repository"
	"github.com/lingodesk/lingodesk/internal/orgcontext"
	"github.com/lingodesk/lingodesk/internal/settlement/domain"
	"github.com/lingodesk/lingodesk/internal/settlement/repository"
	studentdomain "github.com/lingodesk/lingodesk/internal/student/domain"
	studentrepo "github.com/lingodesk/lingodesk/internal/student/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupSettlementService(t *testing.T) (domain.Service, *gorm.DB, *snowflake.Node) {
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
		&ledgerdomain.BalanceTransaction{},
		&ledgerdomain.StudentBalance{},
		&domain.Settlement{},
		&domain.SettlementLine{},
	))

	node := mustNode(t)
	svc := New(Params{
		DB:          db,
		Log:         zap.NewNop(),
		GenID:       node,
		Clock:       clock.NewSystemClock(),
		Repo:        repository.Provide(),
		StudentRepo: studentrepo.Provide(),
		LedgerRepo:  ledgerrepo.Provide(),
	})
	return svc, db, node
}

func mustNode(t *testing.T) *snowflake.Node {
	t.Helper()
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	return node
}

func seedStudent(t *testing.T, db *gorm.DB, node *snowflake.Node, orgID snowflake.ID) snowflake.ID {
	t.Helper()
	student := studentdomain.Student{
		ID:         node.Generate(),
		OrgID:      orgID,
		Name:       "Anna Kowalska",
		Email:      "anna@example.com",
		Active:     true,
		EnrolledAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, db.Create(&student).Error)
	return student.ID
}

func seedTransaction(t *testing.T, db *gorm.DB, node *snowflake.Node, orgID, studentID snowflake.ID, amount int64, description string, at time.Time) snowflake.ID {
	t.Helper()
	txnType := ledgerdomain.TransactionTypePayment
	if amount < 0 {
		txnType = ledgerdomain.TransactionTypeCharge
	}
	txn := ledgerdomain.BalanceTransaction{
		ID:          node.Generate(),
		OrgID:       orgID,
		StudentID:   studentID,
		Type:        txnType,
		Amount:      amount,
		Description: description,
		CreatedAt:   at,
	}
	require.NoError(t, db.Create(&txn).Error)
	return txn.ID
}

func TestPreviewComputesBalancesFromLog(t *testing.T) {
	svc, db, node := setupSettlementService(t)
	orgID := node.Generate()
	studentID := seedStudent(t, db, node, orgID)
	ctx := orgcontext.WithOrgID(context.Background(), int64(orgID))

	start := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	// Before the period.
	seedTransaction(t, db, node, orgID, studentID, -5000, "Lesson completed", start.Add(-48*time.Hour))
	// Inside the period, oldest first.
	seedTransaction(t, db, node, orgID, studentID, -10000, "Lesson completed", start.Add(2*time.Hour))
	seedTransaction(t, db, node, orgID, studentID, 12000, "Payment received", start.Add(72*time.Hour))
	// After the period.
	seedTransaction(t, db, node, orgID, studentID, -9999, "Lesson completed", end.Add(time.Hour))

	preview, err := svc.Preview(ctx, domain.PreviewRequest{
		StudentID:   studentID.String(),
		PeriodStart: start,
		PeriodEnd:   end,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(-5000), preview.OpeningBalance)
	assert.Equal(t, int64(-3000), preview.ClosingBalance)
	require.Len(t, preview.Lines, 2)
	assert.Equal(t, 0, preview.Lines[0].Position)
	assert.Equal(t, int64(-10000), preview.Lines[0].Amount)
	assert.Equal(t, "Payment received", preview.Lines[1].Description)
}

func TestPreviewRejectsInvalidInput(t *testing.T) {
	svc, db, node := setupSettlementService(t)
	orgID := node.Generate()
	studentID := seedStudent(t, db, node, orgID)
	ctx := orgcontext.WithOrgID(context.Background(), int64(orgID))

	start := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

	_, err := svc.Preview(ctx, domain.PreviewRequest{
		StudentID:   studentID.String(),
		PeriodStart: start,
		PeriodEnd:   start,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidPeriod)

	_, err = svc.Preview(ctx, domain.PreviewRequest{
		StudentID:   node.Generate().String(),
		PeriodStart: start,
		PeriodEnd:   start.AddDate(0, 1, 0),
	})
	assert.ErrorIs(t, err, domain.ErrInvalidStudent)
}

func TestCreateMatchesPreview(t *testing.T) {
	svc, db, node := setupSettlementService(t)
	orgID := node.Generate()
	studentID := seedStudent(t, db, node, orgID)
	ctx := orgcontext.WithOrgID(context.Background(), int64(orgID))

	start := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	seedTransaction(t, db, node, orgID, studentID, -10000, "Lesson completed", start.Add(time.Hour))
	seedTransaction(t, db, node, orgID, studentID, 10000, "Payment received", start.Add(2*time.Hour))

	preview, err := svc.Preview(ctx, domain.PreviewRequest{
		StudentID:   studentID.String(),
		PeriodStart: start,
		PeriodEnd:   end,
	})
	require.NoError(t, err)

	created, err := svc.Create(ctx, domain.CreateSettlementRequest{
		StudentID:   studentID.String(),
		PeriodStart: start,
		PeriodEnd:   end,
		Notes:       "February",
	})
	require.NoError(t, err)
	assert.Equal(t, preview.OpeningBalance, created.OpeningBalance)
	assert.Equal(t, preview.ClosingBalance, created.ClosingBalance)
	require.Len(t, created.Lines, len(preview.Lines))

	stored, err := svc.GetByID(ctx, created.ID.String())
	require.NoError(t, err)
	assert.Equal(t, "February", stored.Notes)
	require.Len(t, stored.Lines, 2)
	assert.Equal(t, preview.Lines[0].TransactionID, stored.Lines[0].TransactionID)
	assert.Equal(t, preview.Lines[1].TransactionID, stored.Lines[1].TransactionID)
}

func TestDeleteAllowsOnlyMostRecent(t *testing.T) {
	svc, db, node := setupSettlementService(t)
	orgID := node.Generate()
	studentID := seedStudent(t, db, node, orgID)
	ctx := orgcontext.WithOrgID(context.Background(), int64(orgID))

	start := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	seedTransaction(t, db, node, orgID, studentID, -10000, "Lesson completed", start.Add(time.Hour))

	february, err := svc.Create(ctx, domain.CreateSettlementRequest{
		StudentID:   studentID.String(),
		PeriodStart: start,
		PeriodEnd:   start.AddDate(0, 1, 0),
	})
	require.NoError(t, err)

	march, err := svc.Create(ctx, domain.CreateSettlementRequest{
		StudentID:   studentID.String(),
		PeriodStart: start.AddDate(0, 1, 0),
		PeriodEnd:   start.AddDate(0, 2, 0),
	})
	require.NoError(t, err)

	err = svc.Delete(ctx, february.ID.String())
	assert.ErrorIs(t, err, domain.ErrNotMostRecent)

	require.NoError(t, svc.Delete(ctx, march.ID.String()))
	_, err = svc.GetByID(ctx, march.ID.String())
	assert.ErrorIs(t, err, domain.ErrNotFound)

	// With March gone, February is the most recent again.
	require.NoError(t, svc.Delete(ctx, february.ID.String()))
}

func TestDeleteUnknownSettlement(t *testing.T) {
	svc, _, node := setupSettlementService(t)
	orgID := node.Generate()
	ctx := orgcontext.WithOrgID(context.Background(), int64(orgID))

	err := svc.Delete(ctx, node.Generate().String())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestLastSettlementDate(t *testing.T) {
	svc, db, node := setupSettlementService(t)
	orgID := node.Generate()
	studentID := seedStudent(t, db, node, orgID)
	ctx := orgcontext.WithOrgID(context.Background(), int64(orgID))

	last, err := svc.LastSettlementDate(ctx, studentID.String())
	require.NoError(t, err)
	assert.Nil(t, last)

	start := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	_, err = svc.Create(ctx, domain.CreateSettlementRequest{
		StudentID:   studentID.String(),
		PeriodStart: start,
		PeriodEnd:   start.AddDate(0, 1, 0),
	})
	require.NoError(t, err)

	last, err = svc.LastSettlementDate(ctx, studentID.String())
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.True(t, last.Equal(start.AddDate(0, 1, 0)))
}
