package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	ledgerdomain "github.com/lingodesk/lingodesk/internal/ledger/domain"
	lessondomain "github.com/lingodesk/lingodesk/internal/lesson/domain"
	paymentdomain "github.com/lingodesk/lingodesk/internal/payment/domain"
	payoutdomain "github.com/lingodesk/lingodesk/internal/payout/domain"
	settlementdomain "github.com/lingodesk/lingodesk/internal/settlement/domain"
	studentdomain "github.com/lingodesk/lingodesk/internal/student/domain"
	teacherdomain "github.com/lingodesk/lingodesk/internal/teacher/domain"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrInternal       = errors.New("internal_error")
	ErrInvalidRequest = errors.New("invalid_request")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if isValidationError(err) {
		code := err.Error()
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: "invalid value",
				},
			},
		}
	}

	switch {
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case isConflictError(err):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: err.Error(),
		}
	case isUnprocessableError(err):
		return http.StatusUnprocessableEntity, errorPayload{
			Type:    "unprocessable",
			Message: err.Error(),
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return true
	case isStudentValidationError(err),
		isTeacherValidationError(err),
		isLessonValidationError(err),
		isPaymentValidationError(err),
		isLedgerValidationError(err),
		isSettlementValidationError(err),
		isPayoutValidationError(err):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, studentdomain.ErrNotFound),
		errors.Is(err, teacherdomain.ErrNotFound),
		errors.Is(err, lessondomain.ErrNotFound),
		errors.Is(err, paymentdomain.ErrNotFound),
		errors.Is(err, settlementdomain.ErrNotFound),
		errors.Is(err, payoutdomain.ErrNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func isConflictError(err error) bool {
	switch {
	case errors.Is(err, ledgerdomain.ErrConcurrencyConflict),
		errors.Is(err, settlementdomain.ErrNotMostRecent),
		errors.Is(err, payoutdomain.ErrTerminalStatus),
		errors.Is(err, payoutdomain.ErrOnlyPendingDeletable):
		return true
	default:
		return false
	}
}

func isUnprocessableError(err error) bool {
	switch {
	case errors.Is(err, lessondomain.ErrNotCancellable),
		errors.Is(err, lessondomain.ErrNotCompletable),
		errors.Is(err, paymentdomain.ErrNotPending),
		errors.Is(err, payoutdomain.ErrEmptyPayout),
		errors.Is(err, ledgerdomain.ErrActorRequired):
		return true
	default:
		return false
	}
}

func isStudentValidationError(err error) bool {
	switch err {
	case studentdomain.ErrInvalidOrganization,
		studentdomain.ErrInvalidID,
		studentdomain.ErrInvalidName,
		studentdomain.ErrInvalidEmail,
		studentdomain.ErrPolicyMisconfigured:
		return true
	default:
		return false
	}
}

func isTeacherValidationError(err error) bool {
	switch err {
	case teacherdomain.ErrInvalidOrganization,
		teacherdomain.ErrInvalidID,
		teacherdomain.ErrInvalidName,
		teacherdomain.ErrInvalidEmail,
		teacherdomain.ErrInvalidRate,
		teacherdomain.ErrPolicyMisconfigured:
		return true
	default:
		return false
	}
}

func isLessonValidationError(err error) bool {
	switch err {
	case lessondomain.ErrInvalidOrganization,
		lessondomain.ErrInvalidID,
		lessondomain.ErrInvalidStudent,
		lessondomain.ErrInvalidTeacher,
		lessondomain.ErrInvalidSchedule,
		lessondomain.ErrInvalidDuration,
		lessondomain.ErrInvalidPrice,
		lessondomain.ErrInvalidCancelledBy,
		lessondomain.ErrInvalidStatus:
		return true
	default:
		return false
	}
}

func isPaymentValidationError(err error) bool {
	switch err {
	case paymentdomain.ErrInvalidOrganization,
		paymentdomain.ErrInvalidID,
		paymentdomain.ErrInvalidStudent,
		paymentdomain.ErrInvalidAmount,
		paymentdomain.ErrInvalidStatus:
		return true
	default:
		return false
	}
}

func isLedgerValidationError(err error) bool {
	switch err {
	case ledgerdomain.ErrInvalidOrganization,
		ledgerdomain.ErrInvalidStudent,
		ledgerdomain.ErrInvalidType,
		ledgerdomain.ErrInvalidAmount,
		ledgerdomain.ErrInvalidDescription:
		return true
	default:
		return false
	}
}

func isSettlementValidationError(err error) bool {
	switch err {
	case settlementdomain.ErrInvalidOrganization,
		settlementdomain.ErrInvalidID,
		settlementdomain.ErrInvalidStudent,
		settlementdomain.ErrInvalidPeriod:
		return true
	default:
		return false
	}
}

func isPayoutValidationError(err error) bool {
	switch err {
	case payoutdomain.ErrInvalidOrganization,
		payoutdomain.ErrInvalidID,
		payoutdomain.ErrInvalidTeacher,
		payoutdomain.ErrInvalidPeriod,
		payoutdomain.ErrInvalidStatus:
		return true
	default:
		return false
	}
}

func validationErrorField(code string) string {
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	return ""
}
