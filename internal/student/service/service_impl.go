package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/lingodesk/lingodesk/internal/config"
	"github.com/lingodesk/lingodesk/internal/duedate"
	"github.com/lingodesk/lingodesk/internal/metrics"
	"github.com/lingodesk/lingodesk/internal/orgcontext"
	paymentdomain "github.com/lingodesk/lingodesk/internal/payment/domain"
	"github.com/lingodesk/lingodesk/internal/student/domain"
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
	PaymentRepo paymentdomain.Repository
	Billing     *config.BillingConfigHolder
	Metrics     *metrics.Metrics `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	repo        domain.Repository
	paymentRepo paymentdomain.Repository
	billing     *config.BillingConfigHolder
	metrics     *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("student.service"),
		genID:       p.GenID,
		repo:        p.Repo,
		paymentRepo: p.PaymentRepo,
		billing:     p.Billing,
		metrics:     p.Metrics,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateStudentRequest) (domain.Student, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.Student{}, domain.ErrInvalidOrganization
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Student{}, domain.ErrInvalidName
	}
	email := strings.TrimSpace(req.Email)
	if email == "" || !strings.Contains(email, "@") {
		return domain.Student{}, domain.ErrInvalidEmail
	}

	now := time.Now().UTC()
	student := domain.Student{
		ID:                      s.genID.Generate(),
		OrgID:                   orgID,
		Name:                    name,
		Email:                   email,
		Active:                  true,
		EnrolledAt:              now,
		CancellationLimitPeriod: "month",
		CreatedAt:               now,
		UpdatedAt:               now,
	}

	// New students start on the school-level default terms.
	if days := s.billing.Get().DefaultPaymentDueDays; days > 0 {
		student.PaymentDueDays = &days
	}

	if err := s.repo.Insert(ctx, s.db, &student); err != nil {
		return domain.Student{}, err
	}
	return student, nil
}

func (s *Service) GetByID(ctx context.Context, req domain.GetStudentRequest) (domain.Student, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.Student{}, domain.ErrInvalidOrganization
	}
	id, err := parseID(req.ID)
	if err != nil {
		return domain.Student{}, err
	}

	student, err := s.repo.FindByID(ctx, s.db, orgID, id)
	if err != nil {
		return domain.Student{}, err
	}
	if student == nil {
		return domain.Student{}, domain.ErrNotFound
	}
	return *student, nil
}

func (s *Service) List(ctx context.Context, req domain.ListStudentRequest) ([]domain.Student, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return nil, domain.ErrInvalidOrganization
	}
	return s.repo.List(ctx, s.db, orgID, req.Active, req.Page)
}

// UpdateBillingPolicy validates and persists the policy, then recomputes the
// due dates of the student's PENDING payments inside the same transaction so
// a crash can never leave payments dated against an uncommitted policy.
func (s *Service) UpdateBillingPolicy(ctx context.Context, req domain.UpdateBillingPolicyRequest) (domain.UpdateBillingPolicyResult, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.UpdateBillingPolicyResult{}, domain.ErrInvalidOrganization
	}
	id, err := parseID(req.StudentID)
	if err != nil {
		return domain.UpdateBillingPolicyResult{}, err
	}
	if err := validatePolicy(req); err != nil {
		return domain.UpdateBillingPolicyResult{}, err
	}

	var result domain.UpdateBillingPolicyResult
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		student, err := s.repo.FindByID(ctx, tx, orgID, id)
		if err != nil {
			return err
		}
		if student == nil {
			return domain.ErrNotFound
		}

		student.PaymentDueDays = req.PaymentDueDays
		student.PaymentDueDayOfMonth = req.PaymentDueDayOfMonth
		// Setting one kind of terms clears the other.
		if req.PaymentDueDayOfMonth != nil {
			student.PaymentDueDays = nil
		}
		student.CancellationFeeEnabled = req.CancellationFeeEnabled
		student.CancellationHoursThreshold = req.CancellationHoursThreshold
		student.CancellationFeePercent = req.CancellationFeePercent
		student.CancellationLimitEnabled = req.CancellationLimitEnabled
		student.CancellationLimitCount = req.CancellationLimitCount
		if req.CancellationLimitPeriod != "" {
			student.CancellationLimitPeriod = req.CancellationLimitPeriod
		}
		student.UpdatedAt = time.Now().UTC()

		if err := s.repo.UpdatePolicyTx(ctx, tx, student); err != nil {
			return err
		}

		refs, err := s.paymentRepo.ListPendingRefs(ctx, tx, orgID, id)
		if err != nil {
			return err
		}
		loc := s.billing.Location()
		policy := student.DueDatePolicy()
		for _, ref := range refs {
			dueAt := duedate.Compute(ref.ReferenceDate(), policy, loc)
			if err := s.paymentRepo.UpdateDueDateTx(ctx, tx, orgID, ref.ID, dueAt); err != nil {
				return err
			}
		}

		result.Student = *student
		result.RecalculatedPayments = int64(len(refs))
		return nil
	})
	if err != nil {
		return domain.UpdateBillingPolicyResult{}, err
	}

	if s.metrics != nil {
		s.metrics.DueDateRecalcs.Add(float64(result.RecalculatedPayments))
	}
	s.log.Info("billing policy updated",
		zap.String("student_id", id.String()),
		zap.Int64("recalculated_payments", result.RecalculatedPayments),
	)
	return result, nil
}

func validatePolicy(req domain.UpdateBillingPolicyRequest) error {
	if req.PaymentDueDays != nil && req.PaymentDueDayOfMonth != nil {
		return domain.ErrPolicyMisconfigured
	}
	if req.PaymentDueDays != nil && *req.PaymentDueDays <= 0 {
		return domain.ErrPolicyMisconfigured
	}
	if req.PaymentDueDayOfMonth != nil && (*req.PaymentDueDayOfMonth < 1 || *req.PaymentDueDayOfMonth > 28) {
		return domain.ErrPolicyMisconfigured
	}

	if req.CancellationFeeEnabled {
		if req.CancellationHoursThreshold == nil || req.CancellationFeePercent == nil {
			return domain.ErrPolicyMisconfigured
		}
	}
	if req.CancellationHoursThreshold != nil && *req.CancellationHoursThreshold <= 0 {
		return domain.ErrPolicyMisconfigured
	}
	if req.CancellationFeePercent != nil && (*req.CancellationFeePercent < 0 || *req.CancellationFeePercent > 100) {
		return domain.ErrPolicyMisconfigured
	}

	if req.CancellationLimitEnabled && req.CancellationLimitCount == nil {
		return domain.ErrPolicyMisconfigured
	}
	if req.CancellationLimitCount != nil && *req.CancellationLimitCount <= 0 {
		return domain.ErrPolicyMisconfigured
	}
	if req.CancellationLimitPeriod != "" && !req.CancellationLimitPeriod.Valid() {
		return domain.ErrPolicyMisconfigured
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
