package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	teacherdomain "github.com/lingodesk/lingodesk/internal/teacher/domain"
	"github.com/lingodesk/lingodesk/pkg/db/pagination"
)

type createTeacherRequest struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	HourlyRate int64  `json:"hourly_rate"`
	Currency   string `json:"currency"`
}

func (s *Server) CreateTeacher(c *gin.Context) {
	var req createTeacherRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.teacherSvc.Create(c.Request.Context(), teacherdomain.CreateTeacherRequest{
		Name:       strings.TrimSpace(req.Name),
		Email:      strings.TrimSpace(req.Email),
		HourlyRate: req.HourlyRate,
		Currency:   strings.TrimSpace(req.Currency),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListTeachers(c *gin.Context) {
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

	resp, err := s.teacherSvc.List(c.Request.Context(), teacherdomain.ListTeacherRequest{
		Active: active,
		Page:   query.Pagination,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetTeacherByID(c *gin.Context) {
	resp, err := s.teacherSvc.GetByID(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type updateCompensationRequest struct {
	HourlyRate int64 `json:"hourly_rate"`

	CancellationPayoutEnabled bool `json:"cancellation_payout_enabled"`
	CancellationPayoutHours   *int `json:"cancellation_payout_hours"`
	CancellationPayoutPercent *int `json:"cancellation_payout_percent"`
}

func (s *Server) UpdateTeacherCompensation(c *gin.Context) {
	var req updateCompensationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.teacherSvc.UpdateCompensation(c.Request.Context(), teacherdomain.UpdateCompensationRequest{
		TeacherID:                 strings.TrimSpace(c.Param("id")),
		HourlyRate:                req.HourlyRate,
		CancellationPayoutEnabled: req.CancellationPayoutEnabled,
		CancellationPayoutHours:   req.CancellationPayoutHours,
		CancellationPayoutPercent: req.CancellationPayoutPercent,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetLessonsForDay(c *gin.Context) {
	date, err := parseRequiredTime(c.Query("date"))
	if err != nil {
		AbortWithError(c, newValidationError("date", "invalid_date", "invalid date"))
		return
	}

	resp, err := s.payoutSvc.LessonsForDay(c.Request.Context(), strings.TrimSpace(c.Param("id")), date)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
