// internal/server/respond.go
// Error taxonomy at the HTTP boundary.
package server

import "github.com/gin-gonic/gin"

// Stable error kind strings.
const (
	kindUnauthorized     = "unauthorized"
	kindPermissionDenied = "permission_denied"
	kindForbidden        = "forbidden"
	kindTenantMismatch   = "tenant_mismatch"
	kindRateLimited      = "rate_limit_exceeded"
	kindBadRequest       = "bad_request"
	kindNotFound         = "not_found"
	kindConflict         = "conflict"
	kindCoreUnavailable  = "core_unavailable"
	kindInternal         = "internal_error"
)

func abortError(c *gin.Context, status int, kind, message string) {
	c.AbortWithStatusJSON(status, gin.H{"error": kind, "message": message})
}

// relay passes a core response through unchanged.
func relay(c *gin.Context, status int, body []byte) {
	if len(body) == 0 {
		c.Status(status)
		return
	}
	c.Data(status, "application/json; charset=utf-8", body)
}
