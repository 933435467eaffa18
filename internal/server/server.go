package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/lingodesk/lingodesk/internal/config"
	ledgerdomain "github.com/lingodesk/lingodesk/internal/ledger/domain"
	lessondomain "github.com/lingodesk/lingodesk/internal/lesson/domain"
	paymentdomain "github.com/lingodesk/lingodesk/internal/payment/domain"
	payoutdomain "github.com/lingodesk/lingodesk/internal/payout/domain"
	settlementdomain "github.com/lingodesk/lingodesk/internal/settlement/domain"
	studentdomain "github.com/lingodesk/lingodesk/internal/student/domain"
	teacherdomain "github.com/lingodesk/lingodesk/internal/teacher/domain"
	"github.com/lingodesk/lingodesk/internal/tracing"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(run),
)

func NewEngine() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestID())
	r.Use(tracing.GinMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

type Server struct {
	engine        *gin.Engine
	cfg           config.Config
	log           *zap.Logger
	genID         *snowflake.Node
	studentSvc    studentdomain.Service
	teacherSvc    teacherdomain.Service
	lessonSvc     lessondomain.Service
	paymentSvc    paymentdomain.Service
	ledgerSvc     ledgerdomain.Service
	settlementSvc settlementdomain.Service
	payoutSvc     payoutdomain.Service
}

type ServerParams struct {
	fx.In

	Gin           *gin.Engine
	Cfg           config.Config
	Log           *zap.Logger
	GenID         *snowflake.Node
	StudentSvc    studentdomain.Service
	TeacherSvc    teacherdomain.Service
	LessonSvc     lessondomain.Service
	PaymentSvc    paymentdomain.Service
	LedgerSvc     ledgerdomain.Service
	SettlementSvc settlementdomain.Service
	PayoutSvc     payoutdomain.Service
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:        p.Gin,
		cfg:           p.Cfg,
		log:           p.Log.Named("http"),
		genID:         p.GenID,
		studentSvc:    p.StudentSvc,
		teacherSvc:    p.TeacherSvc,
		lessonSvc:     p.LessonSvc,
		paymentSvc:    p.PaymentSvc,
		ledgerSvc:     p.LedgerSvc,
		settlementSvc: p.SettlementSvc,
		payoutSvc:     p.PayoutSvc,
	}

	svc.registerAPIRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api/v1", OrgContext(), UserContext())

	api.POST("/students", s.CreateStudent)
	api.GET("/students", s.ListStudents)
	api.GET("/students/:id", s.GetStudentByID)
	api.PUT("/students/:id/billing-policy", s.UpdateStudentBillingPolicy)
	api.GET("/students/:id/balance", s.GetStudentBalance)
	api.GET("/students/:id/balance/history", s.GetBalanceHistory)
	api.POST("/students/:id/balance/adjust", s.AdjustStudentBalance)
	api.POST("/students/:id/balance/reconcile", s.ReconcileStudentBalance)
	api.GET("/students/:id/cancellation-limit", s.GetCancellationLimit)

	api.POST("/teachers", s.CreateTeacher)
	api.GET("/teachers", s.ListTeachers)
	api.GET("/teachers/:id", s.GetTeacherByID)
	api.PUT("/teachers/:id/compensation", s.UpdateTeacherCompensation)
	api.GET("/teachers/:id/lessons-for-day", s.GetLessonsForDay)

	api.POST("/lessons", s.ScheduleLesson)
	api.GET("/lessons", s.ListLessons)
	api.GET("/lessons/:id", s.GetLessonByID)
	api.POST("/lessons/:id/confirm", s.ConfirmLesson)
	api.POST("/lessons/:id/complete", s.CompleteLesson)
	api.POST("/lessons/:id/cancel", s.CancelLesson)

	api.POST("/payments", s.CreatePayment)
	api.GET("/payments", s.ListPayments)
	api.GET("/payments/:id", s.GetPaymentByID)
	api.POST("/payments/:id/complete", s.CompletePayment)
	api.POST("/payments/:id/cancel", s.CancelPayment)

	api.POST("/settlements/preview", s.PreviewSettlement)
	api.POST("/settlements", s.CreateSettlement)
	api.GET("/settlements", s.ListSettlements)
	api.GET("/settlements/status", s.GetSettlementStatus)
	api.GET("/settlements/:id", s.GetSettlementByID)
	api.DELETE("/settlements/:id", s.DeleteSettlement)

	api.POST("/payouts/preview", s.PreviewPayout)
	api.POST("/payouts", s.CreatePayout)
	api.GET("/payouts", s.ListPayouts)
	api.GET("/payouts/:id", s.GetPayoutByID)
	api.PUT("/payouts/:id/status", s.UpdatePayoutStatus)
	api.DELETE("/payouts/:id", s.DeletePayout)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", srv.Addr))
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}
