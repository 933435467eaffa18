// Package seed bootstraps demo billing data for local and self-hosted
// environments.
package seed

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	studentdomain "github.com/lingodesk/lingodesk/internal/student/domain"
	teacherdomain "github.com/lingodesk/lingodesk/internal/teacher/domain"
	"gorm.io/gorm"
)

const (
	demoStudentName  = "Anna Kowalska"
	demoStudentEmail = "anna.kowalska@example.com"
	demoTeacherName  = "Jan Nowak"
	demoTeacherEmail = "jan.nowak@example.com"

	// 120.00 PLN in grosz.
	demoHourlyRate = int64(12000)
)

// EnsureDemoData seeds one student and one teacher for the default org so a
// fresh local install has something to bill against. No-op when the org
// already has students.
func EnsureDemoData(db *gorm.DB, orgID int64) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.WithContext(ctx).
			Model(&studentdomain.Student{}).
			Where("org_id = ?", orgID).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return nil
		}

		now := time.Now().UTC()
		dueDays := 14
		student := studentdomain.Student{
			ID:             node.Generate(),
			OrgID:          snowflake.ID(orgID),
			Name:           demoStudentName,
			Email:          demoStudentEmail,
			Active:         true,
			EnrolledAt:     now,
			PaymentDueDays: &dueDays,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := tx.WithContext(ctx).Create(&student).Error; err != nil {
			return err
		}

		teacher := teacherdomain.Teacher{
			ID:         node.Generate(),
			OrgID:      snowflake.ID(orgID),
			Name:       demoTeacherName,
			Email:      demoTeacherEmail,
			Active:     true,
			HourlyRate: demoHourlyRate,
			Currency:   "PLN",
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		return tx.WithContext(ctx).Create(&teacher).Error
	})
}
