package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/lingodesk/lingodesk/internal/teacher/domain"
	"github.com/lingodesk/lingodesk/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, conn *gorm.DB, teacher *domain.Teacher) error {
	return conn.WithContext(ctx).Create(teacher).Error
}

func (r *repo) FindByID(ctx context.Context, conn *gorm.DB, orgID, id snowflake.ID) (*domain.Teacher, error) {
	var teacher domain.Teacher
	err := conn.WithContext(ctx).
		Where("org_id = ? AND id = ?", orgID, id).
		Take(&teacher).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &teacher, nil
}

func (r *repo) List(ctx context.Context, conn *gorm.DB, orgID snowflake.ID, active *bool, page pagination.Pagination) ([]domain.Teacher, error) {
	stmt := conn.WithContext(ctx).
		Model(&domain.Teacher{}).
		Where("org_id = ?", orgID)
	if active != nil {
		stmt = stmt.Where("active = ?", *active)
	}

	var teachers []domain.Teacher
	err := page.Apply(stmt).
		Order("created_at desc, id desc").
		Find(&teachers).Error
	if err != nil {
		return nil, err
	}
	return teachers, nil
}

func (r *repo) UpdateCompensation(ctx context.Context, conn *gorm.DB, teacher *domain.Teacher) error {
	return conn.WithContext(ctx).
		Model(&domain.Teacher{}).
		Where("org_id = ? AND id = ?", teacher.OrgID, teacher.ID).
		Select(
			"hourly_rate",
			"cancellation_payout_enabled",
			"cancellation_payout_hours",
			"cancellation_payout_percent",
			"updated_at",
		).
		Updates(teacher).Error
}
