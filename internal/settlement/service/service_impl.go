package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/lingodesk/lingodesk/internal/clock"
	ledgerdomain "github.com/lingodesk/lingodesk/internal/ledger/domain"
	"github.com/lingodesk/lingodesk/internal/metrics"
	"github.com/lingodesk/lingodesk/internal/orgcontext"
	"github.com/lingodesk/lingodesk/internal/settlement/domain"
	studentdomain "github.com/lingodesk/lingodesk/internal/student/domain"
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
	LedgerRepo  ledgerdomain.Repository
	Metrics     *metrics.Metrics `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	repo        domain.Repository
	studentRepo studentdomain.Repository
	ledgerRepo  ledgerdomain.Repository
	metrics     *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("settlement.service"),
		genID:       p.GenID,
		clock:       p.Clock,
		repo:        p.Repo,
		studentRepo: p.StudentRepo,
		ledgerRepo:  p.LedgerRepo,
		metrics:     p.Metrics,
	}
}

func (s *Service) Preview(ctx context.Context, req domain.PreviewRequest) (domain.PreviewResult, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.PreviewResult{}, domain.ErrInvalidOrganization
	}
	studentID, err := parseID(req.StudentID)
	if err != nil {
		return domain.PreviewResult{}, domain.ErrInvalidStudent
	}
	if err := validatePeriod(req.PeriodStart, req.PeriodEnd); err != nil {
		return domain.PreviewResult{}, err
	}

	student, err := s.studentRepo.FindByID(ctx, s.db, orgID, studentID)
	if err != nil {
		return domain.PreviewResult{}, err
	}
	if student == nil {
		return domain.PreviewResult{}, domain.ErrInvalidStudent
	}

	return s.compute(ctx, s.db, orgID, studentID, req.PeriodStart, req.PeriodEnd)
}

func (s *Service) Create(ctx context.Context, req domain.CreateSettlementRequest) (domain.Settlement, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.Settlement{}, domain.ErrInvalidOrganization
	}
	studentID, err := parseID(req.StudentID)
	if err != nil {
		return domain.Settlement{}, domain.ErrInvalidStudent
	}
	if err := validatePeriod(req.PeriodStart, req.PeriodEnd); err != nil {
		return domain.Settlement{}, err
	}

	var settlement domain.Settlement
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		student, err := s.studentRepo.FindByID(ctx, tx, orgID, studentID)
		if err != nil {
			return err
		}
		if student == nil {
			return domain.ErrInvalidStudent
		}

		preview, err := s.compute(ctx, tx, orgID, studentID, req.PeriodStart, req.PeriodEnd)
		if err != nil {
			return err
		}

		settlement = domain.Settlement{
			ID:             s.genID.Generate(),
			OrgID:          orgID,
			StudentID:      studentID,
			PeriodStart:    preview.PeriodStart,
			PeriodEnd:      preview.PeriodEnd,
			OpeningBalance: preview.OpeningBalance,
			ClosingBalance: preview.ClosingBalance,
			Notes:          strings.TrimSpace(req.Notes),
			CreatedAt:      s.clock.Now(),
		}
		for _, line := range preview.Lines {
			settlement.Lines = append(settlement.Lines, domain.SettlementLine{
				ID:            s.genID.Generate(),
				SettlementID:  settlement.ID,
				Position:      line.Position,
				Description:   line.Description,
				Amount:        line.Amount,
				TransactionID: line.TransactionID,
				OccurredAt:    line.OccurredAt,
			})
		}
		return s.repo.InsertTx(ctx, tx, &settlement)
	})
	if err != nil {
		return domain.Settlement{}, err
	}

	if s.metrics != nil {
		s.metrics.SettlementsCreated.Inc()
	}
	s.log.Info("settlement created",
		zap.Int64("settlement_id", settlement.ID.Int64()),
		zap.Int64("student_id", studentID.Int64()),
		zap.Int64("closing_balance", settlement.ClosingBalance),
	)
	return settlement, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.ErrInvalidOrganization
	}
	settlementID, err := parseID(id)
	if err != nil {
		return domain.ErrInvalidID
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		target, err := s.repo.FindByID(ctx, tx, orgID, settlementID)
		if err != nil {
			return err
		}
		if target == nil {
			return domain.ErrNotFound
		}

		latest, err := s.repo.LatestForStudentTx(ctx, tx, orgID, target.StudentID)
		if err != nil {
			return err
		}
		if latest == nil || latest.ID != target.ID {
			return domain.ErrNotMostRecent
		}

		return s.repo.DeleteTx(ctx, tx, orgID, settlementID)
	})
	if err != nil {
		return err
	}

	if s.metrics != nil {
		s.metrics.SettlementsDeleted.Inc()
	}
	return nil
}

func (s *Service) GetByID(ctx context.Context, id string) (domain.Settlement, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.Settlement{}, domain.ErrInvalidOrganization
	}
	settlementID, err := parseID(id)
	if err != nil {
		return domain.Settlement{}, domain.ErrInvalidID
	}

	settlement, err := s.repo.FindByID(ctx, s.db, orgID, settlementID)
	if err != nil {
		return domain.Settlement{}, err
	}
	if settlement == nil {
		return domain.Settlement{}, domain.ErrNotFound
	}
	return *settlement, nil
}

func (s *Service) List(ctx context.Context, req domain.ListSettlementRequest) ([]domain.Settlement, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return nil, domain.ErrInvalidOrganization
	}

	var studentID snowflake.ID
	if strings.TrimSpace(req.StudentID) != "" {
		id, err := parseID(req.StudentID)
		if err != nil {
			return nil, domain.ErrInvalidStudent
		}
		studentID = id
	}

	return s.repo.List(ctx, s.db, orgID, studentID, req.Page)
}

func (s *Service) LastSettlementDate(ctx context.Context, studentID string) (*time.Time, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return nil, domain.ErrInvalidOrganization
	}
	id, err := parseID(studentID)
	if err != nil {
		return nil, domain.ErrInvalidStudent
	}
	return s.repo.LastSettlementDate(ctx, s.db, orgID, id)
}

func (s *Service) CurrentBalance(ctx context.Context, studentID string) (int64, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return 0, domain.ErrInvalidOrganization
	}
	id, err := parseID(studentID)
	if err != nil {
		return 0, domain.ErrInvalidStudent
	}
	return s.ledgerRepo.GetBalance(ctx, s.db, orgID, id)
}

// compute derives the settlement figures straight from the transaction log so
// a preview and a later create over the same period always agree.
func (s *Service) compute(ctx context.Context, conn *gorm.DB, orgID, studentID snowflake.ID, start, end time.Time) (domain.PreviewResult, error) {
	opening, err := s.ledgerRepo.SumTransactions(ctx, conn, orgID, studentID, &start)
	if err != nil {
		return domain.PreviewResult{}, err
	}

	txns, err := s.ledgerRepo.ListRange(ctx, conn, orgID, studentID, start, end)
	if err != nil {
		return domain.PreviewResult{}, err
	}

	result := domain.PreviewResult{
		StudentID:      studentID,
		PeriodStart:    start,
		PeriodEnd:      end,
		OpeningBalance: opening,
		ClosingBalance: opening,
	}
	for i, txn := range txns {
		result.Lines = append(result.Lines, domain.PreviewLine{
			Position:      i,
			Description:   txn.Description,
			Amount:        txn.Amount,
			TransactionID: txn.ID,
			OccurredAt:    txn.CreatedAt,
		})
		result.ClosingBalance += txn.Amount
	}
	return result, nil
}

func validatePeriod(start, end time.Time) error {
	if start.IsZero() || end.IsZero() || !end.After(start) {
		return domain.ErrInvalidPeriod
	}
	return nil
}

func parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}
