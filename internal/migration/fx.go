package migration

import (
	ledgerdomain "github.com/lingodesk/lingodesk/internal/ledger/domain"
	lessondomain "github.com/lingodesk/lingodesk/internal/lesson/domain"
	paymentdomain "github.com/lingodesk/lingodesk/internal/payment/domain"
	payoutdomain "github.com/lingodesk/lingodesk/internal/payout/domain"
	settlementdomain "github.com/lingodesk/lingodesk/internal/settlement/domain"
	studentdomain "github.com/lingodesk/lingodesk/internal/student/domain"
	teacherdomain "github.com/lingodesk/lingodesk/internal/teacher/domain"

	"github.com/lingodesk/lingodesk/internal/config"
	"github.com/lingodesk/lingodesk/internal/seed"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		// SQL migrations target postgres; other dialects (local sqlite,
		// mysql) fall back to schema sync from the models.
		if conn.Dialector.Name() == "postgres" {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			if err := RunMigrations(sqlDB); err != nil {
				return err
			}
		} else {
			if err := conn.AutoMigrate(
				&studentdomain.Student{},
				&teacherdomain.Teacher{},
				&lessondomain.Lesson{},
				&paymentdomain.Payment{},
				&ledgerdomain.BalanceTransaction{},
				&ledgerdomain.StudentBalance{},
				&settlementdomain.Settlement{},
				&settlementdomain.SettlementLine{},
				&payoutdomain.TeacherPayout{},
				&payoutdomain.TeacherPayoutLesson{},
			); err != nil {
				return err
			}
		}

		if cfg.DefaultOrgID != 0 && !cfg.IsProduction() {
			return seed.EnsureDemoData(conn, cfg.DefaultOrgID)
		}
		return nil
	}),
)
