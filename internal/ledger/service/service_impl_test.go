package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/lingodesk/lingodesk/internal/ledger/domain"
	"github.com/lingodesk/lingodesk/internal/ledger/repository"
	"github.com/lingodesk/lingodesk/internal/orgcontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupLedgerService(t *testing.T) (domain.Service, *gorm.DB, *snowflake.Node) {
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

	require.NoError(t, db.AutoMigrate(&domain.BalanceTransaction{}, &domain.StudentBalance{}))

	node := mustNode(t)
	svc := New(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  repository.Provide(),
	})
	return svc, db, node
}

func mustNode(t *testing.T) *snowflake.Node {
	t.Helper()
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	return node
}

func TestAppendMaintainsBalanceInvariant(t *testing.T) {
	svc, _, node := setupLedgerService(t)
	orgID := node.Generate()
	studentID := node.Generate()
	ctx := orgcontext.WithOrgID(context.Background(), int64(orgID))

	_, err := svc.Append(ctx, domain.AppendTransactionRequest{
		StudentID:   studentID.String(),
		Type:        domain.TransactionTypeCharge,
		Amount:      -10000,
		Description: "Lesson completed",
	})
	require.NoError(t, err)

	_, err = svc.Append(ctx, domain.AppendTransactionRequest{
		StudentID:   studentID.String(),
		Type:        domain.TransactionTypePayment,
		Amount:      4000,
		Description: "Payment received",
	})
	require.NoError(t, err)

	balance, err := svc.GetBalance(ctx, studentID.String())
	require.NoError(t, err)
	assert.Equal(t, int64(-6000), balance)

	history, err := svc.GetHistory(ctx, domain.HistoryRequest{StudentID: studentID.String()})
	require.NoError(t, err)
	require.Len(t, history, 2)

	var sum int64
	for _, txn := range history {
		sum += txn.Amount
	}
	assert.Equal(t, balance, sum)
}

func TestAppendRejectsWrongSign(t *testing.T) {
	svc, _, node := setupLedgerService(t)
	orgID := node.Generate()
	studentID := node.Generate()
	ctx := orgcontext.WithOrgID(context.Background(), int64(orgID))

	_, err := svc.Append(ctx, domain.AppendTransactionRequest{
		StudentID:   studentID.String(),
		Type:        domain.TransactionTypeCharge,
		Amount:      500,
		Description: "positive charge",
	})
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	_, err = svc.Append(ctx, domain.AppendTransactionRequest{
		StudentID:   studentID.String(),
		Type:        domain.TransactionTypePayment,
		Amount:      -500,
		Description: "negative payment",
	})
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	_, err = svc.Append(ctx, domain.AppendTransactionRequest{
		StudentID:   studentID.String(),
		Type:        domain.TransactionTypeCancellationFee,
		Amount:      0,
		Description: "zero fee",
	})
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)
}

func TestAppendAdjustmentRequiresActor(t *testing.T) {
	svc, _, node := setupLedgerService(t)
	orgID := node.Generate()
	studentID := node.Generate()
	ctx := orgcontext.WithOrgID(context.Background(), int64(orgID))

	_, err := svc.Append(ctx, domain.AppendTransactionRequest{
		StudentID:   studentID.String(),
		Type:        domain.TransactionTypeAdjustment,
		Amount:      1500,
		Description: "manual correction",
	})
	assert.ErrorIs(t, err, domain.ErrActorRequired)
}

func TestAdjustRecordsActorAndBalances(t *testing.T) {
	svc, _, node := setupLedgerService(t)
	orgID := node.Generate()
	studentID := node.Generate()
	actorID := node.Generate()
	ctx := orgcontext.WithOrgID(context.Background(), int64(orgID))

	_, err := svc.Adjust(ctx, domain.AdjustBalanceRequest{
		StudentID:   studentID.String(),
		Amount:      2500,
		Description: "goodwill credit",
	})
	assert.ErrorIs(t, err, domain.ErrActorRequired)

	ctx = orgcontext.WithUserID(ctx, int64(actorID))
	result, err := svc.Adjust(ctx, domain.AdjustBalanceRequest{
		StudentID:   studentID.String(),
		Amount:      2500,
		Description: "goodwill credit",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(0), result.PreviousBalance)
	assert.Equal(t, int64(2500), result.NewBalance)

	history, err := svc.GetHistory(ctx, domain.HistoryRequest{StudentID: studentID.String()})
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.NotNil(t, history[0].CreatedByUserID)
	assert.Equal(t, actorID, *history[0].CreatedByUserID)
}

func TestHistoryFiltersByType(t *testing.T) {
	svc, _, node := setupLedgerService(t)
	orgID := node.Generate()
	studentID := node.Generate()
	ctx := orgcontext.WithOrgID(context.Background(), int64(orgID))

	for i := 0; i < 3; i++ {
		_, err := svc.Append(ctx, domain.AppendTransactionRequest{
			StudentID:   studentID.String(),
			Type:        domain.TransactionTypeCharge,
			Amount:      -1000,
			Description: "Lesson completed",
		})
		require.NoError(t, err)
	}
	_, err := svc.Append(ctx, domain.AppendTransactionRequest{
		StudentID:   studentID.String(),
		Type:        domain.TransactionTypePayment,
		Amount:      3000,
		Description: "Payment received",
	})
	require.NoError(t, err)

	charges, err := svc.GetHistory(ctx, domain.HistoryRequest{
		StudentID: studentID.String(),
		Type:      domain.TransactionTypeCharge,
	})
	require.NoError(t, err)
	assert.Len(t, charges, 3)
}

func TestReconcileRepairsCorruptedCache(t *testing.T) {
	svc, db, node := setupLedgerService(t)
	orgID := node.Generate()
	studentID := node.Generate()
	ctx := orgcontext.WithOrgID(context.Background(), int64(orgID))

	_, err := svc.Append(ctx, domain.AppendTransactionRequest{
		StudentID:   studentID.String(),
		Type:        domain.TransactionTypeCharge,
		Amount:      -8000,
		Description: "Lesson completed",
	})
	require.NoError(t, err)

	// Corrupt the cached row behind the ledger's back.
	require.NoError(t, db.Exec(
		`UPDATE student_balances SET balance = ? WHERE student_id = ?`, 12345, studentID,
	).Error)

	result, err := svc.Reconcile(ctx, studentID.String())
	require.NoError(t, err)
	assert.Equal(t, int64(12345), result.Cached)
	assert.Equal(t, int64(-8000), result.Derived)
	assert.True(t, result.Repaired)

	balance, err := svc.GetBalance(ctx, studentID.String())
	require.NoError(t, err)
	assert.Equal(t, int64(-8000), balance)

	// A clean cache reconciles as a no-op.
	result, err = svc.Reconcile(ctx, studentID.String())
	require.NoError(t, err)
	assert.False(t, result.Repaired)
}
