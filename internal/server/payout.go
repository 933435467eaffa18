package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	payoutdomain "github.com/lingodesk/lingodesk/internal/payout/domain"
	"github.com/lingodesk/lingodesk/pkg/db/pagination"
)

type payoutPeriodRequest struct {
	TeacherID   string    `json:"teacher_id"`
	PeriodStart time.Time `json:"period_start"`
	PeriodEnd   time.Time `json:"period_end"`
	Notes       string    `json:"notes"`
}

func (s *Server) PreviewPayout(c *gin.Context) {
	var req payoutPeriodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.payoutSvc.Preview(c.Request.Context(), payoutdomain.PreviewRequest{
		TeacherID:   strings.TrimSpace(req.TeacherID),
		PeriodStart: req.PeriodStart,
		PeriodEnd:   req.PeriodEnd,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) CreatePayout(c *gin.Context) {
	var req payoutPeriodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.payoutSvc.Create(c.Request.Context(), payoutdomain.CreatePayoutRequest{
		TeacherID:   strings.TrimSpace(req.TeacherID),
		PeriodStart: req.PeriodStart,
		PeriodEnd:   req.PeriodEnd,
		Notes:       req.Notes,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListPayouts(c *gin.Context) {
	var query struct {
		pagination.Pagination
		TeacherID string `form:"teacher_id"`
		Status    string `form:"status"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.payoutSvc.List(c.Request.Context(), payoutdomain.ListPayoutRequest{
		TeacherID: strings.TrimSpace(query.TeacherID),
		Status:    payoutdomain.PayoutStatus(strings.ToUpper(strings.TrimSpace(query.Status))),
		Page:      query.Pagination,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetPayoutByID(c *gin.Context) {
	resp, err := s.payoutSvc.GetByID(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type updatePayoutStatusRequest struct {
	Status string  `json:"status"`
	Notes  *string `json:"notes"`
}

func (s *Server) UpdatePayoutStatus(c *gin.Context) {
	var req updatePayoutStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.payoutSvc.UpdateStatus(c.Request.Context(), payoutdomain.UpdateStatusRequest{
		PayoutID: strings.TrimSpace(c.Param("id")),
		Status:   payoutdomain.PayoutStatus(strings.ToUpper(strings.TrimSpace(req.Status))),
		Notes:    req.Notes,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DeletePayout(c *gin.Context) {
	if err := s.payoutSvc.Delete(c.Request.Context(), strings.TrimSpace(c.Param("id"))); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"deleted": true}})
}
