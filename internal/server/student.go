package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/lingodesk/lingodesk/internal/cancellation"
	studentdomain "github.com/lingodesk/lingodesk/internal/student/domain"
	"github.com/lingodesk/lingodesk/pkg/db/pagination"
)

type createStudentRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (s *Server) CreateStudent(c *gin.Context) {
	var req createStudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.studentSvc.Create(c.Request.Context(), studentdomain.CreateStudentRequest{
		Name:  strings.TrimSpace(req.Name),
		Email: strings.TrimSpace(req.Email),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListStudents(c *gin.Context) {
	var query struct {
		pagination.Pagination
		Active string `form:"active"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	active, err := parseOptionalBool(query.Active)
	if err != nil {
		AbortWithError(c, newValidationError("active", "invalid_active", "invalid active"))
		return
	}

	resp, err := s.studentSvc.List(c.Request.Context(), studentdomain.ListStudentRequest{
		Active: active,
		Page:   query.Pagination,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetStudentByID(c *gin.Context) {
	resp, err := s.studentSvc.GetByID(c.Request.Context(), studentdomain.GetStudentRequest{
		ID: strings.TrimSpace(c.Param("id")),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type updateBillingPolicyRequest struct {
	PaymentDueDays       *int `json:"payment_due_days"`
	PaymentDueDayOfMonth *int `json:"payment_due_day_of_month"`

	CancellationFeeEnabled     bool `json:"cancellation_fee_enabled"`
	CancellationHoursThreshold *int `json:"cancellation_hours_threshold"`
	CancellationFeePercent     *int `json:"cancellation_fee_percent"`

	CancellationLimitEnabled bool   `json:"cancellation_limit_enabled"`
	CancellationLimitCount   *int   `json:"cancellation_limit_count"`
	CancellationLimitPeriod  string `json:"cancellation_limit_period"`
}

func (s *Server) UpdateStudentBillingPolicy(c *gin.Context) {
	var req updateBillingPolicyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.studentSvc.UpdateBillingPolicy(c.Request.Context(), studentdomain.UpdateBillingPolicyRequest{
		StudentID:                  strings.TrimSpace(c.Param("id")),
		PaymentDueDays:             req.PaymentDueDays,
		PaymentDueDayOfMonth:       req.PaymentDueDayOfMonth,
		CancellationFeeEnabled:     req.CancellationFeeEnabled,
		CancellationHoursThreshold: req.CancellationHoursThreshold,
		CancellationFeePercent:     req.CancellationFeePercent,
		CancellationLimitEnabled:   req.CancellationLimitEnabled,
		CancellationLimitCount:     req.CancellationLimitCount,
		CancellationLimitPeriod:    cancellation.LimitPeriod(strings.TrimSpace(req.CancellationLimitPeriod)),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetCancellationLimit(c *gin.Context) {
	resp, err := s.lessonSvc.CheckCancellationLimit(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
