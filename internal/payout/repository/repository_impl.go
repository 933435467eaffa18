package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	lessondomain "github.com/lingodesk/lingodesk/internal/lesson/domain"
	"github.com/lingodesk/lingodesk/internal/payout/domain"
	"github.com/lingodesk/lingodesk/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertTx(ctx context.Context, tx *gorm.DB, payout *domain.TeacherPayout) error {
	return tx.WithContext(ctx).Create(payout).Error
}

func (r *repo) FindByID(ctx context.Context, conn *gorm.DB, orgID, id snowflake.ID) (*domain.TeacherPayout, error) {
	var payout domain.TeacherPayout
	err := conn.WithContext(ctx).
		Preload("Lessons", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("lesson_date asc, id asc")
		}).
		Where("org_id = ? AND id = ?", orgID, id).
		Take(&payout).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &payout, nil
}

func (r *repo) List(ctx context.Context, conn *gorm.DB, orgID, teacherID snowflake.ID, status domain.PayoutStatus, page pagination.Pagination) ([]domain.TeacherPayout, error) {
	stmt := conn.WithContext(ctx).
		Model(&domain.TeacherPayout{}).
		Where("org_id = ?", orgID)
	if teacherID != 0 {
		stmt = stmt.Where("teacher_id = ?", teacherID)
	}
	if status != "" {
		stmt = stmt.Where("status = ?", status)
	}

	var payouts []domain.TeacherPayout
	err := page.Apply(stmt).
		Order("created_at desc, id desc").
		Find(&payouts).Error
	if err != nil {
		return nil, err
	}
	return payouts, nil
}

func (r *repo) UpdateTx(ctx context.Context, tx *gorm.DB, payout *domain.TeacherPayout) error {
	return tx.WithContext(ctx).Exec(
		`UPDATE teacher_payouts
		 SET status = ?, paid_at = ?, notes = ?, updated_at = ?
		 WHERE org_id = ? AND id = ?`,
		payout.Status,
		payout.PaidAt,
		payout.Notes,
		time.Now().UTC(),
		payout.OrgID,
		payout.ID,
	).Error
}

func (r *repo) DeleteTx(ctx context.Context, tx *gorm.DB, orgID, id snowflake.ID) error {
	if err := tx.WithContext(ctx).
		Exec(`DELETE FROM teacher_payout_lessons WHERE payout_id = ?`, id).Error; err != nil {
		return err
	}
	return tx.WithContext(ctx).
		Exec(`DELETE FROM teacher_payouts WHERE org_id = ? AND id = ?`, orgID, id).Error
}

func (r *repo) LessonsInPeriod(ctx context.Context, conn *gorm.DB, orgID, teacherID snowflake.ID, start, end time.Time) ([]lessondomain.Lesson, error) {
	var lessons []lessondomain.Lesson
	err := conn.WithContext(ctx).
		Where("org_id = ? AND teacher_id = ?", orgID, teacherID).
		Where("scheduled_at >= ? AND scheduled_at < ?", start, end).
		Order("scheduled_at asc, id asc").
		Find(&lessons).Error
	if err != nil {
		return nil, err
	}
	return lessons, nil
}

func (r *repo) PaidOutLessonIDs(ctx context.Context, conn *gorm.DB, orgID snowflake.ID, lessonIDs []snowflake.ID) (map[snowflake.ID]snowflake.ID, error) {
	result := make(map[snowflake.ID]snowflake.ID)
	if len(lessonIDs) == 0 {
		return result, nil
	}

	var rows []struct {
		LessonID snowflake.ID
		PayoutID snowflake.ID
	}
	err := conn.WithContext(ctx).Raw(
		`SELECT tpl.lesson_id AS lesson_id, tpl.payout_id AS payout_id
		 FROM teacher_payout_lessons tpl
		 JOIN teacher_payouts tp ON tp.id = tpl.payout_id
		 WHERE tp.org_id = ? AND tp.status <> ? AND tpl.lesson_id IN ?`,
		orgID, domain.PayoutStatusCancelled, lessonIDs,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		result[row.LessonID] = row.PayoutID
	}
	return result, nil
}
