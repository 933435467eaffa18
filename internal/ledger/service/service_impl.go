package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/lingodesk/lingodesk/internal/ledger/domain"
	"github.com/lingodesk/lingodesk/internal/metrics"
	"github.com/lingodesk/lingodesk/internal/orgcontext"
	"github.com/lingodesk/lingodesk/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Repo    domain.Repository
	Metrics *metrics.Metrics `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	repo    domain.Repository
	metrics *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("ledger.service"),
		genID:   p.GenID,
		repo:    p.Repo,
		metrics: p.Metrics,
	}
}

func (s *Service) Append(ctx context.Context, req domain.AppendTransactionRequest) (domain.BalanceTransaction, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.BalanceTransaction{}, domain.ErrInvalidOrganization
	}

	studentID, err := parseID(req.StudentID)
	if err != nil {
		return domain.BalanceTransaction{}, domain.ErrInvalidStudent
	}
	if !req.Type.Valid() {
		return domain.BalanceTransaction{}, domain.ErrInvalidType
	}
	if req.Amount == 0 {
		return domain.BalanceTransaction{}, domain.ErrInvalidAmount
	}
	switch req.Type {
	case domain.TransactionTypeCharge, domain.TransactionTypeCancellationFee:
		if req.Amount > 0 {
			return domain.BalanceTransaction{}, domain.ErrInvalidAmount
		}
	case domain.TransactionTypePayment:
		if req.Amount < 0 {
			return domain.BalanceTransaction{}, domain.ErrInvalidAmount
		}
	}
	description := strings.TrimSpace(req.Description)
	if description == "" {
		return domain.BalanceTransaction{}, domain.ErrInvalidDescription
	}

	var createdBy *snowflake.ID
	if strings.TrimSpace(req.CreatedByUserID) != "" {
		actor, err := parseID(req.CreatedByUserID)
		if err != nil {
			return domain.BalanceTransaction{}, domain.ErrActorRequired
		}
		createdBy = &actor
	}
	if req.Type == domain.TransactionTypeAdjustment && createdBy == nil {
		return domain.BalanceTransaction{}, domain.ErrActorRequired
	}

	txn := domain.BalanceTransaction{
		ID:              s.genID.Generate(),
		OrgID:           orgID,
		StudentID:       studentID,
		Type:            req.Type,
		Amount:          req.Amount,
		Description:     description,
		CreatedByUserID: createdBy,
		CreatedAt:       time.Now().UTC(),
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		_, err := s.repo.AppendTx(ctx, tx, &txn)
		return err
	})
	if err != nil {
		if db.IsSerializationErr(err) {
			return domain.BalanceTransaction{}, domain.ErrConcurrencyConflict
		}
		return domain.BalanceTransaction{}, err
	}

	if s.metrics != nil {
		s.metrics.LedgerTransactions.WithLabelValues(string(txn.Type)).Inc()
	}
	return txn, nil
}

func (s *Service) Adjust(ctx context.Context, req domain.AdjustBalanceRequest) (domain.AdjustBalanceResult, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.AdjustBalanceResult{}, domain.ErrInvalidOrganization
	}
	actorID, ok := orgcontext.UserIDFromContext(ctx)
	if !ok || actorID == 0 {
		return domain.AdjustBalanceResult{}, domain.ErrActorRequired
	}

	studentID, err := parseID(req.StudentID)
	if err != nil {
		return domain.AdjustBalanceResult{}, domain.ErrInvalidStudent
	}
	if req.Amount == 0 {
		return domain.AdjustBalanceResult{}, domain.ErrInvalidAmount
	}
	description := strings.TrimSpace(req.Description)
	if description == "" {
		return domain.AdjustBalanceResult{}, domain.ErrInvalidDescription
	}

	txn := domain.BalanceTransaction{
		ID:              s.genID.Generate(),
		OrgID:           orgID,
		StudentID:       studentID,
		Type:            domain.TransactionTypeAdjustment,
		Amount:          req.Amount,
		Description:     description,
		CreatedByUserID: &actorID,
		CreatedAt:       time.Now().UTC(),
	}

	var previous int64
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		previous, err = s.repo.AppendTx(ctx, tx, &txn)
		return err
	})
	if err != nil {
		if db.IsSerializationErr(err) {
			return domain.AdjustBalanceResult{}, domain.ErrConcurrencyConflict
		}
		return domain.AdjustBalanceResult{}, err
	}

	if s.metrics != nil {
		s.metrics.LedgerTransactions.WithLabelValues(string(domain.TransactionTypeAdjustment)).Inc()
	}
	s.log.Info("balance adjusted",
		zap.String("student_id", studentID.String()),
		zap.String("actor_id", actorID.String()),
		zap.Int64("amount", req.Amount),
	)

	return domain.AdjustBalanceResult{
		PreviousBalance: previous,
		NewBalance:      previous + req.Amount,
		TransactionID:   txn.ID,
	}, nil
}

func (s *Service) GetBalance(ctx context.Context, studentID string) (int64, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return 0, domain.ErrInvalidOrganization
	}
	id, err := parseID(studentID)
	if err != nil {
		return 0, domain.ErrInvalidStudent
	}
	return s.repo.GetBalance(ctx, s.db, orgID, id)
}

func (s *Service) GetHistory(ctx context.Context, req domain.HistoryRequest) ([]domain.BalanceTransaction, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return nil, domain.ErrInvalidOrganization
	}
	id, err := parseID(req.StudentID)
	if err != nil {
		return nil, domain.ErrInvalidStudent
	}
	if req.Type != "" && !req.Type.Valid() {
		return nil, domain.ErrInvalidType
	}

	return s.repo.List(ctx, s.db, orgID, id, domain.HistoryFilter{
		Type:     req.Type,
		DateFrom: req.DateFrom,
		DateTo:   req.DateTo,
	}, req.Page)
}

// Reconcile re-derives the balance from the transaction log and repairs the
// cached row when they disagree. Runs under the same per-student lock as
// appends so a concurrent append cannot race the repair.
func (s *Service) Reconcile(ctx context.Context, studentID string) (domain.ReconcileResult, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.ReconcileResult{}, domain.ErrInvalidOrganization
	}
	id, err := parseID(studentID)
	if err != nil {
		return domain.ReconcileResult{}, domain.ErrInvalidStudent
	}

	result := domain.ReconcileResult{StudentID: id}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row domain.StudentBalance
		if err := db.ForUpdate(tx.WithContext(ctx)).
			Where("student_id = ? AND org_id = ?", id, orgID).
			Take(&row).Error; err != nil && err != gorm.ErrRecordNotFound {
			return err
		}
		result.Cached = row.Balance

		derived, err := s.repo.SumTransactions(ctx, tx, orgID, id, nil)
		if err != nil {
			return err
		}
		result.Derived = derived

		if derived == row.Balance {
			return nil
		}
		result.Repaired = true
		return s.repo.SetBalanceTx(ctx, tx, orgID, id, derived)
	})
	if err != nil {
		if db.IsSerializationErr(err) {
			return domain.ReconcileResult{}, domain.ErrConcurrencyConflict
		}
		return domain.ReconcileResult{}, err
	}

	if result.Repaired {
		s.log.Warn("student balance cache repaired",
			zap.String("student_id", id.String()),
			zap.Int64("cached", result.Cached),
			zap.Int64("derived", result.Derived),
		)
	}
	return result, nil
}

func parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidStudent
	}
	return id, nil
}
