package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	settlementdomain "github.com/lingodesk/lingodesk/internal/settlement/domain"
	"github.com/lingodesk/lingodesk/pkg/db/pagination"
)

type settlementPeriodRequest struct {
	StudentID   string    `json:"student_id"`
	PeriodStart time.Time `json:"period_start"`
	PeriodEnd   time.Time `json:"period_end"`
	Notes       string    `json:"notes"`
}

func (s *Server) PreviewSettlement(c *gin.Context) {
	var req settlementPeriodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.settlementSvc.Preview(c.Request.Context(), settlementdomain.PreviewRequest{
		StudentID:   strings.TrimSpace(req.StudentID),
		PeriodStart: req.PeriodStart,
		PeriodEnd:   req.PeriodEnd,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) CreateSettlement(c *gin.Context) {
	var req settlementPeriodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.settlementSvc.Create(c.Request.Context(), settlementdomain.CreateSettlementRequest{
		StudentID:   strings.TrimSpace(req.StudentID),
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

func (s *Server) ListSettlements(c *gin.Context) {
	var query struct {
		pagination.Pagination
		StudentID string `form:"student_id"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.settlementSvc.List(c.Request.Context(), settlementdomain.ListSettlementRequest{
		StudentID: strings.TrimSpace(query.StudentID),
		Page:      query.Pagination,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetSettlementByID(c *gin.Context) {
	resp, err := s.settlementSvc.GetByID(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// GetSettlementStatus reports where a student's settlement history ends and
// what their balance is now, the two inputs a school needs before opening the
// next period.
func (s *Server) GetSettlementStatus(c *gin.Context) {
	studentID := strings.TrimSpace(c.Query("student_id"))

	last, err := s.settlementSvc.LastSettlementDate(c.Request.Context(), studentID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	balance, err := s.settlementSvc.CurrentBalance(c.Request.Context(), studentID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"last_settled_through": last,
		"current_balance":      balance,
	}})
}

func (s *Server) DeleteSettlement(c *gin.Context) {
	if err := s.settlementSvc.Delete(c.Request.Context(), strings.TrimSpace(c.Param("id"))); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"deleted": true}})
}
