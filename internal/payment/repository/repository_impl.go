package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/lingodesk/lingodesk/internal/payment/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, conn *gorm.DB, payment *domain.Payment) error {
	return conn.WithContext(ctx).Exec(
		`INSERT INTO payments (id, org_id, student_id, lesson_id, amount, status, due_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		payment.ID,
		payment.OrgID,
		payment.StudentID,
		payment.LessonID,
		payment.Amount,
		payment.Status,
		payment.DueAt,
		payment.CreatedAt,
		payment.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, conn *gorm.DB, orgID, id snowflake.ID) (*domain.Payment, error) {
	var payment domain.Payment
	err := conn.WithContext(ctx).
		Where("org_id = ? AND id = ?", orgID, id).
		Take(&payment).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *repo) List(ctx context.Context, conn *gorm.DB, orgID, studentID snowflake.ID, req domain.ListPaymentRequest) ([]domain.Payment, error) {
	stmt := conn.WithContext(ctx).
		Model(&domain.Payment{}).
		Where("org_id = ?", orgID)
	if studentID != 0 {
		stmt = stmt.Where("student_id = ?", studentID)
	}
	if req.Status != "" {
		stmt = stmt.Where("status = ?", req.Status)
	}
	if req.OverdueBy != nil {
		stmt = stmt.Where("status = ? AND due_at IS NOT NULL AND due_at < ?", domain.PaymentStatusPending, *req.OverdueBy)
	}

	var payments []domain.Payment
	err := req.Page.Apply(stmt).
		Order("created_at desc, id desc").
		Find(&payments).Error
	if err != nil {
		return nil, err
	}
	return payments, nil
}

func (r *repo) UpdateStatusTx(ctx context.Context, tx *gorm.DB, orgID, id snowflake.ID, from, to domain.PaymentStatus) (bool, error) {
	result := tx.WithContext(ctx).Exec(
		`UPDATE payments SET status = ?, updated_at = ?
		 WHERE org_id = ? AND id = ? AND status = ?`,
		to,
		time.Now().UTC(),
		orgID,
		id,
		from,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) ListPendingRefs(ctx context.Context, tx *gorm.DB, orgID, studentID snowflake.ID) ([]domain.PendingPaymentRef, error) {
	var refs []domain.PendingPaymentRef
	err := tx.WithContext(ctx).Raw(
		`SELECT p.id, p.created_at, l.completed_at AS lesson_completed_at
		 FROM payments p
		 LEFT JOIN lessons l ON l.id = p.lesson_id
		 WHERE p.org_id = ? AND p.student_id = ? AND p.status = ?
		 ORDER BY p.id`,
		orgID,
		studentID,
		domain.PaymentStatusPending,
	).Scan(&refs).Error
	if err != nil {
		return nil, err
	}
	return refs, nil
}

func (r *repo) UpdateDueDateTx(ctx context.Context, tx *gorm.DB, orgID, id snowflake.ID, dueAt time.Time) error {
	return tx.WithContext(ctx).Exec(
		`UPDATE payments SET due_at = ?, updated_at = ?
		 WHERE org_id = ? AND id = ?`,
		dueAt,
		time.Now().UTC(),
		orgID,
		id,
	).Error
}
