package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	lessondomain "github.com/lingodesk/lingodesk/internal/lesson/domain"
	"github.com/lingodesk/lingodesk/pkg/db/pagination"
)

type scheduleLessonRequest struct {
	StudentID       string    `json:"student_id"`
	TeacherID       string    `json:"teacher_id"`
	ScheduledAt     time.Time `json:"scheduled_at"`
	DurationMinutes int       `json:"duration_minutes"`
	Price           int64     `json:"price"`
}

func (s *Server) ScheduleLesson(c *gin.Context) {
	var req scheduleLessonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.lessonSvc.Schedule(c.Request.Context(), lessondomain.ScheduleLessonRequest{
		StudentID:       strings.TrimSpace(req.StudentID),
		TeacherID:       strings.TrimSpace(req.TeacherID),
		ScheduledAt:     req.ScheduledAt,
		DurationMinutes: req.DurationMinutes,
		Price:           req.Price,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListLessons(c *gin.Context) {
	var query struct {
		pagination.Pagination
		StudentID string `form:"student_id"`
		TeacherID string `form:"teacher_id"`
		Status    string `form:"status"`
		DateFrom  string `form:"date_from"`
		DateTo    string `form:"date_to"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	dateFrom, err := parseOptionalTime(query.DateFrom, false)
	if err != nil {
		AbortWithError(c, newValidationError("date_from", "invalid_date_from", "invalid date_from"))
		return
	}
	dateTo, err := parseOptionalTime(query.DateTo, true)
	if err != nil {
		AbortWithError(c, newValidationError("date_to", "invalid_date_to", "invalid date_to"))
		return
	}

	resp, err := s.lessonSvc.List(c.Request.Context(), lessondomain.ListLessonRequest{
		StudentID: strings.TrimSpace(query.StudentID),
		TeacherID: strings.TrimSpace(query.TeacherID),
		Status:    lessondomain.LessonStatus(strings.ToUpper(strings.TrimSpace(query.Status))),
		DateFrom:  dateFrom,
		DateTo:    dateTo,
		Page:      query.Pagination,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetLessonByID(c *gin.Context) {
	resp, err := s.lessonSvc.GetByID(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ConfirmLesson(c *gin.Context) {
	resp, err := s.lessonSvc.Confirm(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) CompleteLesson(c *gin.Context) {
	resp, err := s.lessonSvc.Complete(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type cancelLessonRequest struct {
	CancelledBy string     `json:"cancelled_by"`
	CancelledAt *time.Time `json:"cancelled_at"`
}

func (s *Server) CancelLesson(c *gin.Context) {
	var req cancelLessonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.lessonSvc.Cancel(c.Request.Context(), lessondomain.CancelLessonRequest{
		LessonID:    strings.TrimSpace(c.Param("id")),
		CancelledBy: lessondomain.CancelledBy(strings.ToLower(strings.TrimSpace(req.CancelledBy))),
		CancelledAt: req.CancelledAt,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
