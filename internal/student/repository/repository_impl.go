package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/lingodesk/lingodesk/internal/student/domain"
	"github.com/lingodesk/lingodesk/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, conn *gorm.DB, student *domain.Student) error {
	return conn.WithContext(ctx).Create(student).Error
}

func (r *repo) FindByID(ctx context.Context, conn *gorm.DB, orgID, id snowflake.ID) (*domain.Student, error) {
	var student domain.Student
	err := conn.WithContext(ctx).
		Where("org_id = ? AND id = ?", orgID, id).
		Take(&student).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &student, nil
}

func (r *repo) List(ctx context.Context, conn *gorm.DB, orgID snowflake.ID, active *bool, page pagination.Pagination) ([]domain.Student, error) {
	stmt := conn.WithContext(ctx).
		Model(&domain.Student{}).
		Where("org_id = ?", orgID)
	if active != nil {
		stmt = stmt.Where("active = ?", *active)
	}

	var students []domain.Student
	err := page.Apply(stmt).
		Order("created_at desc, id desc").
		Find(&students).Error
	if err != nil {
		return nil, err
	}
	return students, nil
}

func (r *repo) UpdatePolicyTx(ctx context.Context, tx *gorm.DB, student *domain.Student) error {
	return tx.WithContext(ctx).
		Model(&domain.Student{}).
		Where("org_id = ? AND id = ?", student.OrgID, student.ID).
		Select(
			"payment_due_days",
			"payment_due_day_of_month",
			"cancellation_fee_enabled",
			"cancellation_hours_threshold",
			"cancellation_fee_percent",
			"cancellation_limit_enabled",
			"cancellation_limit_count",
			"cancellation_limit_period",
			"updated_at",
		).
		Updates(student).Error
}
