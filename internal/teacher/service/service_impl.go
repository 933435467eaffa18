package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/lingodesk/lingodesk/internal/config"
	"github.com/lingodesk/lingodesk/internal/orgcontext"
	"github.com/lingodesk/lingodesk/internal/teacher/domain"
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
	Billing *config.BillingConfigHolder
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	repo    domain.Repository
	billing *config.BillingConfigHolder
}

func New(p Params) domain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("teacher.service"),
		genID:   p.GenID,
		repo:    p.Repo,
		billing: p.Billing,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateTeacherRequest) (domain.Teacher, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.Teacher{}, domain.ErrInvalidOrganization
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Teacher{}, domain.ErrInvalidName
	}
	email := strings.TrimSpace(req.Email)
	if email == "" || !strings.Contains(email, "@") {
		return domain.Teacher{}, domain.ErrInvalidEmail
	}
	if req.HourlyRate < 0 {
		return domain.Teacher{}, domain.ErrInvalidRate
	}

	currency := strings.TrimSpace(req.Currency)
	if currency == "" {
		currency = s.billing.Get().Currency
	}

	now := time.Now().UTC()
	teacher := domain.Teacher{
		ID:         s.genID.Generate(),
		OrgID:      orgID,
		Name:       name,
		Email:      email,
		Active:     true,
		HourlyRate: req.HourlyRate,
		Currency:   currency,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.repo.Insert(ctx, s.db, &teacher); err != nil {
		return domain.Teacher{}, err
	}
	return teacher, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (domain.Teacher, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.Teacher{}, domain.ErrInvalidOrganization
	}
	teacherID, err := parseID(id)
	if err != nil {
		return domain.Teacher{}, err
	}

	teacher, err := s.repo.FindByID(ctx, s.db, orgID, teacherID)
	if err != nil {
		return domain.Teacher{}, err
	}
	if teacher == nil {
		return domain.Teacher{}, domain.ErrNotFound
	}
	return *teacher, nil
}

func (s *Service) List(ctx context.Context, req domain.ListTeacherRequest) ([]domain.Teacher, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return nil, domain.ErrInvalidOrganization
	}
	return s.repo.List(ctx, s.db, orgID, req.Active, req.Page)
}

func (s *Service) UpdateCompensation(ctx context.Context, req domain.UpdateCompensationRequest) (domain.Teacher, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.Teacher{}, domain.ErrInvalidOrganization
	}
	teacherID, err := parseID(req.TeacherID)
	if err != nil {
		return domain.Teacher{}, err
	}
	if req.HourlyRate < 0 {
		return domain.Teacher{}, domain.ErrInvalidRate
	}
	if req.CancellationPayoutEnabled {
		if req.CancellationPayoutHours == nil || req.CancellationPayoutPercent == nil {
			return domain.Teacher{}, domain.ErrPolicyMisconfigured
		}
	}
	if req.CancellationPayoutHours != nil && *req.CancellationPayoutHours <= 0 {
		return domain.Teacher{}, domain.ErrPolicyMisconfigured
	}
	if req.CancellationPayoutPercent != nil && (*req.CancellationPayoutPercent < 0 || *req.CancellationPayoutPercent > 100) {
		return domain.Teacher{}, domain.ErrPolicyMisconfigured
	}

	teacher, err := s.repo.FindByID(ctx, s.db, orgID, teacherID)
	if err != nil {
		return domain.Teacher{}, err
	}
	if teacher == nil {
		return domain.Teacher{}, domain.ErrNotFound
	}

	teacher.HourlyRate = req.HourlyRate
	teacher.CancellationPayoutEnabled = req.CancellationPayoutEnabled
	teacher.CancellationPayoutHours = req.CancellationPayoutHours
	teacher.CancellationPayoutPercent = req.CancellationPayoutPercent
	teacher.UpdatedAt = time.Now().UTC()

	if err := s.repo.UpdateCompensation(ctx, s.db, teacher); err != nil {
		return domain.Teacher{}, err
	}
	return *teacher, nil
}

func parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}
