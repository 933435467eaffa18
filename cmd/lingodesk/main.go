package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/lingodesk/lingodesk/internal/clock"
	"github.com/lingodesk/lingodesk/internal/config"
	"github.com/lingodesk/lingodesk/internal/ledger"
	"github.com/lingodesk/lingodesk/internal/lesson"
	"github.com/lingodesk/lingodesk/internal/logger"
	"github.com/lingodesk/lingodesk/internal/metrics"
	"github.com/lingodesk/lingodesk/internal/migration"
	"github.com/lingodesk/lingodesk/internal/payment"
	"github.com/lingodesk/lingodesk/internal/payout"
	"github.com/lingodesk/lingodesk/internal/server"
	"github.com/lingodesk/lingodesk/internal/settlement"
	"github.com/lingodesk/lingodesk/internal/student"
	"github.com/lingodesk/lingodesk/internal/teacher"
	"github.com/lingodesk/lingodesk/internal/tracing"
	"github.com/lingodesk/lingodesk/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		logger.Module,
		tracing.Module,
		metrics.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,

		// Functional domains
		student.Module,
		teacher.Module,
		lesson.Module,
		payment.Module,
		ledger.Module,
		settlement.Module,
		payout.Module,

		server.Module,
		migration.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
