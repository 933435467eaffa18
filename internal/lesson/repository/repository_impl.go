package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/lingodesk/lingodesk/internal/lesson/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, conn *gorm.DB, lesson *domain.Lesson) error {
	return conn.WithContext(ctx).Create(lesson).Error
}

func (r *repo) FindByID(ctx context.Context, conn *gorm.DB, orgID, id snowflake.ID) (*domain.Lesson, error) {
	var lesson domain.Lesson
	err := conn.WithContext(ctx).
		Where("org_id = ? AND id = ?", orgID, id).
		Take(&lesson).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &lesson, nil
}

func (r *repo) List(ctx context.Context, conn *gorm.DB, orgID snowflake.ID, req domain.ListLessonRequest, studentID, teacherID snowflake.ID) ([]domain.Lesson, error) {
	stmt := conn.WithContext(ctx).
		Model(&domain.Lesson{}).
		Where("org_id = ?", orgID)
	if studentID != 0 {
		stmt = stmt.Where("student_id = ?", studentID)
	}
	if teacherID != 0 {
		stmt = stmt.Where("teacher_id = ?", teacherID)
	}
	if req.Status != "" {
		stmt = stmt.Where("status = ?", req.Status)
	}
	if req.DateFrom != nil {
		stmt = stmt.Where("scheduled_at >= ?", *req.DateFrom)
	}
	if req.DateTo != nil {
		stmt = stmt.Where("scheduled_at < ?", *req.DateTo)
	}

	var lessons []domain.Lesson
	err := req.Page.Apply(stmt).
		Order("scheduled_at desc, id desc").
		Find(&lessons).Error
	if err != nil {
		return nil, err
	}
	return lessons, nil
}

func (r *repo) UpdateStatusTx(ctx context.Context, tx *gorm.DB, lesson *domain.Lesson, from domain.LessonStatus) (bool, error) {
	result := tx.WithContext(ctx).Exec(
		`UPDATE lessons
		 SET status = ?, completed_at = ?, cancelled_at = ?, cancelled_by = ?, updated_at = ?
		 WHERE org_id = ? AND id = ? AND status = ?`,
		lesson.Status,
		lesson.CompletedAt,
		lesson.CancelledAt,
		lesson.CancelledBy,
		time.Now().UTC(),
		lesson.OrgID,
		lesson.ID,
		from,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// CountStudentCancellations implements cancellation.Counter on the given
// connection, so a count taken inside a transaction sees that transaction's
// snapshot.
func (r *repo) CountStudentCancellations(ctx context.Context, conn *gorm.DB, orgID, studentID snowflake.ID, from *time.Time, to time.Time) (int64, error) {
	stmt := conn.WithContext(ctx).
		Model(&domain.Lesson{}).
		Where("org_id = ? AND student_id = ?", orgID, studentID).
		Where("status = ? AND cancelled_by = ?", domain.LessonStatusCancelled, domain.CancelledByStudent).
		Where("cancelled_at <= ?", to)
	if from != nil {
		stmt = stmt.Where("cancelled_at >= ?", *from)
	}

	var count int64
	if err := stmt.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
