package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/lingodesk/lingodesk/internal/settlement/domain"
	"github.com/lingodesk/lingodesk/pkg/db"
	"github.com/lingodesk/lingodesk/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertTx(ctx context.Context, tx *gorm.DB, settlement *domain.Settlement) error {
	return tx.WithContext(ctx).Create(settlement).Error
}

func (r *repo) FindByID(ctx context.Context, conn *gorm.DB, orgID, id snowflake.ID) (*domain.Settlement, error) {
	var settlement domain.Settlement
	err := conn.WithContext(ctx).
		Preload("Lines", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("position asc")
		}).
		Where("org_id = ? AND id = ?", orgID, id).
		Take(&settlement).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &settlement, nil
}

func (r *repo) List(ctx context.Context, conn *gorm.DB, orgID, studentID snowflake.ID, page pagination.Pagination) ([]domain.Settlement, error) {
	stmt := conn.WithContext(ctx).
		Model(&domain.Settlement{}).
		Where("org_id = ?", orgID)
	if studentID != 0 {
		stmt = stmt.Where("student_id = ?", studentID)
	}

	var settlements []domain.Settlement
	err := page.Apply(stmt).
		Order("created_at desc, id desc").
		Find(&settlements).Error
	if err != nil {
		return nil, err
	}
	return settlements, nil
}

func (r *repo) LatestForStudentTx(ctx context.Context, tx *gorm.DB, orgID, studentID snowflake.ID) (*domain.Settlement, error) {
	var settlement domain.Settlement
	err := db.ForUpdate(tx.WithContext(ctx)).
		Where("org_id = ? AND student_id = ?", orgID, studentID).
		Order("created_at desc, id desc").
		Take(&settlement).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &settlement, nil
}

func (r *repo) DeleteTx(ctx context.Context, tx *gorm.DB, orgID, id snowflake.ID) error {
	if err := tx.WithContext(ctx).
		Exec(`DELETE FROM settlement_lines WHERE settlement_id = ?`, id).Error; err != nil {
		return err
	}
	return tx.WithContext(ctx).
		Exec(`DELETE FROM settlements WHERE org_id = ? AND id = ?`, orgID, id).Error
}

func (r *repo) LastSettlementDate(ctx context.Context, conn *gorm.DB, orgID, studentID snowflake.ID) (*time.Time, error) {
	var settlement domain.Settlement
	err := conn.WithContext(ctx).
		Where("org_id = ? AND student_id = ?", orgID, studentID).
		Order("period_end desc, id desc").
		Take(&settlement).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	end := settlement.PeriodEnd
	return &end, nil
}
