package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/lingodesk/lingodesk/internal/config"
	"github.com/lingodesk/lingodesk/internal/duedate"
	ledgerdomain "github.com/lingodesk/lingodesk/internal/ledger/domain"
	"github.com/lingodesk/lingodesk/internal/metrics"
	"github.com/lingodesk/lingodesk/internal/orgcontext"
	"github.com/lingodesk/lingodesk/internal/payment/domain"
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
	Repo        domain.Repository
	StudentRepo studentdomain.Repository
	LedgerRepo  ledgerdomain.Repository
	Billing     *config.BillingConfigHolder
	Metrics     *metrics.Metrics `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	repo        domain.Repository
	studentRepo studentdomain.Repository
	ledgerRepo  ledgerdomain.Repository
	billing     *config.BillingConfigHolder
	metrics     *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("payment.service"),
		genID:       p.GenID,
		repo:        p.Repo,
		studentRepo: p.StudentRepo,
		ledgerRepo:  p.LedgerRepo,
		billing:     p.Billing,
		metrics:     p.Metrics,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreatePaymentRequest) (domain.Payment, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.Payment{}, domain.ErrInvalidOrganization
	}

	studentID, err := parseID(req.StudentID)
	if err != nil {
		return domain.Payment{}, domain.ErrInvalidStudent
	}
	if req.Amount <= 0 {
		return domain.Payment{}, domain.ErrInvalidAmount
	}

	var lessonID *snowflake.ID
	if strings.TrimSpace(req.LessonID) != "" {
		id, err := parseID(req.LessonID)
		if err != nil {
			return domain.Payment{}, domain.ErrInvalidID
		}
		lessonID = &id
	}

	student, err := s.studentRepo.FindByID(ctx, s.db, orgID, studentID)
	if err != nil {
		return domain.Payment{}, err
	}
	if student == nil {
		return domain.Payment{}, domain.ErrInvalidStudent
	}

	now := time.Now().UTC()
	dueAt := duedate.Compute(now, student.DueDatePolicy(), s.billing.Location())
	payment := domain.Payment{
		ID:        s.genID.Generate(),
		OrgID:     orgID,
		StudentID: studentID,
		LessonID:  lessonID,
		Amount:    req.Amount,
		Status:    domain.PaymentStatusPending,
		DueAt:     &dueAt,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.Insert(ctx, s.db, &payment); err != nil {
		return domain.Payment{}, err
	}
	return payment, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (domain.Payment, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.Payment{}, domain.ErrInvalidOrganization
	}
	paymentID, err := parseID(id)
	if err != nil {
		return domain.Payment{}, domain.ErrInvalidID
	}

	payment, err := s.repo.FindByID(ctx, s.db, orgID, paymentID)
	if err != nil {
		return domain.Payment{}, err
	}
	if payment == nil {
		return domain.Payment{}, domain.ErrNotFound
	}
	return *payment, nil
}

func (s *Service) List(ctx context.Context, req domain.ListPaymentRequest) ([]domain.Payment, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return nil, domain.ErrInvalidOrganization
	}
	if req.Status != "" && !req.Status.Valid() {
		return nil, domain.ErrInvalidStatus
	}

	var studentID snowflake.ID
	if strings.TrimSpace(req.StudentID) != "" {
		id, err := parseID(req.StudentID)
		if err != nil {
			return nil, domain.ErrInvalidStudent
		}
		studentID = id
	}

	return s.repo.List(ctx, s.db, orgID, studentID, req)
}

func (s *Service) MarkCompleted(ctx context.Context, id string) (domain.Payment, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.Payment{}, domain.ErrInvalidOrganization
	}
	paymentID, err := parseID(id)
	if err != nil {
		return domain.Payment{}, domain.ErrInvalidID
	}

	var payment *domain.Payment
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		payment, err = s.repo.FindByID(ctx, tx, orgID, paymentID)
		if err != nil {
			return err
		}
		if payment == nil {
			return domain.ErrNotFound
		}

		updated, err := s.repo.UpdateStatusTx(ctx, tx, orgID, paymentID, domain.PaymentStatusPending, domain.PaymentStatusCompleted)
		if err != nil {
			return err
		}
		if !updated {
			return domain.ErrNotPending
		}
		payment.Status = domain.PaymentStatusCompleted

		txn := ledgerdomain.BalanceTransaction{
			ID:          s.genID.Generate(),
			OrgID:       orgID,
			StudentID:   payment.StudentID,
			Type:        ledgerdomain.TransactionTypePayment,
			Amount:      payment.Amount,
			Description: "Payment received",
			CreatedAt:   time.Now().UTC(),
		}
		_, err = s.ledgerRepo.AppendTx(ctx, tx, &txn)
		return err
	})
	if err != nil {
		return domain.Payment{}, err
	}

	if s.metrics != nil {
		s.metrics.LedgerTransactions.WithLabelValues(string(ledgerdomain.TransactionTypePayment)).Inc()
	}
	return *payment, nil
}

func (s *Service) MarkCancelled(ctx context.Context, id string) (domain.Payment, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.Payment{}, domain.ErrInvalidOrganization
	}
	paymentID, err := parseID(id)
	if err != nil {
		return domain.Payment{}, domain.ErrInvalidID
	}

	var payment *domain.Payment
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		payment, err = s.repo.FindByID(ctx, tx, orgID, paymentID)
		if err != nil {
			return err
		}
		if payment == nil {
			return domain.ErrNotFound
		}

		updated, err := s.repo.UpdateStatusTx(ctx, tx, orgID, paymentID, domain.PaymentStatusPending, domain.PaymentStatusCancelled)
		if err != nil {
			return err
		}
		if !updated {
			return domain.ErrNotPending
		}
		payment.Status = domain.PaymentStatusCancelled
		return nil
	})
	if err != nil {
		return domain.Payment{}, err
	}
	return *payment, nil
}

func parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}
