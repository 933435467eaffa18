package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/lingodesk/lingodesk/internal/ledger/domain"
	"github.com/lingodesk/lingodesk/pkg/db"
	"github.com/lingodesk/lingodesk/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) AppendTx(ctx context.Context, tx *gorm.DB, txn *domain.BalanceTransaction) (int64, error) {
	// Ensure the balance row exists so it can be locked. The zero-balance
	// insert is idempotent under the primary key.
	if err := tx.WithContext(ctx).Exec(
		`INSERT INTO student_balances (student_id, org_id, balance, updated_at)
		 VALUES (?, ?, 0, ?)
		 ON CONFLICT (student_id) DO NOTHING`,
		txn.StudentID,
		txn.OrgID,
		txn.CreatedAt,
	).Error; err != nil {
		return 0, err
	}

	var row domain.StudentBalance
	if err := db.ForUpdate(tx.WithContext(ctx)).
		Where("student_id = ? AND org_id = ?", txn.StudentID, txn.OrgID).
		Take(&row).Error; err != nil {
		return 0, err
	}

	if err := tx.WithContext(ctx).Exec(
		`INSERT INTO balance_transactions (
			id, org_id, student_id, type, amount, description, created_by_user_id, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		txn.ID,
		txn.OrgID,
		txn.StudentID,
		txn.Type,
		txn.Amount,
		txn.Description,
		txn.CreatedByUserID,
		txn.CreatedAt,
	).Error; err != nil {
		return 0, err
	}

	if err := tx.WithContext(ctx).Exec(
		`UPDATE student_balances SET balance = ?, updated_at = ?
		 WHERE student_id = ? AND org_id = ?`,
		row.Balance+txn.Amount,
		txn.CreatedAt,
		txn.StudentID,
		txn.OrgID,
	).Error; err != nil {
		return 0, err
	}

	return row.Balance, nil
}

func (r *repo) GetBalance(ctx context.Context, conn *gorm.DB, orgID, studentID snowflake.ID) (int64, error) {
	var balance int64
	err := conn.WithContext(ctx).Raw(
		`SELECT COALESCE(
			(SELECT balance FROM student_balances WHERE student_id = ? AND org_id = ?), 0)`,
		studentID,
		orgID,
	).Scan(&balance).Error
	if err != nil {
		return 0, err
	}
	return balance, nil
}

func (r *repo) SumTransactions(ctx context.Context, conn *gorm.DB, orgID, studentID snowflake.ID, before *time.Time) (int64, error) {
	stmt := conn.WithContext(ctx).
		Model(&domain.BalanceTransaction{}).
		Where("org_id = ? AND student_id = ?", orgID, studentID)
	if before != nil {
		stmt = stmt.Where("created_at < ?", *before)
	}

	var sum int64
	err := stmt.Select("COALESCE(SUM(amount), 0)").Scan(&sum).Error
	if err != nil {
		return 0, err
	}
	return sum, nil
}

func (r *repo) List(ctx context.Context, conn *gorm.DB, orgID, studentID snowflake.ID, filter domain.HistoryFilter, page pagination.Pagination) ([]domain.BalanceTransaction, error) {
	stmt := conn.WithContext(ctx).
		Model(&domain.BalanceTransaction{}).
		Where("org_id = ? AND student_id = ?", orgID, studentID)
	if filter.Type != "" {
		stmt = stmt.Where("type = ?", filter.Type)
	}
	if filter.DateFrom != nil {
		stmt = stmt.Where("created_at >= ?", *filter.DateFrom)
	}
	if filter.DateTo != nil {
		stmt = stmt.Where("created_at < ?", *filter.DateTo)
	}

	var txns []domain.BalanceTransaction
	err := page.Apply(stmt).
		Order("created_at desc, id desc").
		Find(&txns).Error
	if err != nil {
		return nil, err
	}
	return txns, nil
}

func (r *repo) ListRange(ctx context.Context, conn *gorm.DB, orgID, studentID snowflake.ID, from, to time.Time) ([]domain.BalanceTransaction, error) {
	var txns []domain.BalanceTransaction
	err := conn.WithContext(ctx).
		Model(&domain.BalanceTransaction{}).
		Where("org_id = ? AND student_id = ?", orgID, studentID).
		Where("created_at >= ? AND created_at < ?", from, to).
		Order("created_at asc, id asc").
		Find(&txns).Error
	if err != nil {
		return nil, err
	}
	return txns, nil
}

func (r *repo) SetBalanceTx(ctx context.Context, tx *gorm.DB, orgID, studentID snowflake.ID, balance int64) error {
	return tx.WithContext(ctx).Exec(
		`INSERT INTO student_balances (student_id, org_id, balance, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (student_id) DO UPDATE SET balance = ?, updated_at = ?`,
		studentID,
		orgID,
		balance,
		time.Now().UTC(),
		balance,
		time.Now().UTC(),
	).Error
}
