package server

import (
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lingodesk/lingodesk/internal/orgcontext"
)

const (
	HeaderOrg       = "X-Org-ID"
	HeaderUser      = "X-User-ID"
	HeaderRequestID = "X-Request-ID"
)

// RequestID propagates the caller's request id or mints one.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := strings.TrimSpace(c.GetHeader(HeaderRequestID))
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Header(HeaderRequestID, rid)
		c.Next()
	}
}

// OrgContext resolves the organization from the X-Org-ID header and injects
// it into the request context. Every /api/v1 route is org-scoped.
func OrgContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader(HeaderOrg))
		if raw == "" {
			AbortWithError(c, newValidationError("org", "invalid_organization", "missing "+HeaderOrg+" header"))
			return
		}

		orgID, err := snowflake.ParseString(raw)
		if err != nil || orgID == 0 {
			AbortWithError(c, newValidationError("org", "invalid_organization", "invalid "+HeaderOrg+" header"))
			return
		}

		ctx := orgcontext.WithOrgID(c.Request.Context(), orgID.Int64())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// UserContext injects the acting user from the X-User-ID header when present.
// Operations that require an actor (balance adjustments) reject downstream.
func UserContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader(HeaderUser))
		if raw != "" {
			if userID, err := snowflake.ParseString(raw); err == nil && userID != 0 {
				ctx := orgcontext.WithUserID(c.Request.Context(), userID.Int64())
				c.Request = c.Request.WithContext(ctx)
			}
		}
		c.Next()
	}
}
