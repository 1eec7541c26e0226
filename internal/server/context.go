// internal/server/context.go
// Typed access to per-request values attached by the pipeline.
package server

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/allsource/controlplane/internal/identity"
)

const (
	ctxKeyAuth      = "auth_context"
	ctxKeyRequestID = "request_id"
	ctxKeyStart     = "request_start"
)

func setAuthContext(c *gin.Context, auth identity.AuthContext) {
	c.Set(ctxKeyAuth, auth)
}

// authFromContext returns the verified caller identity, if the verifier
// ran and accepted the token.
func authFromContext(c *gin.Context) (identity.AuthContext, bool) {
	v, ok := c.Get(ctxKeyAuth)
	if !ok {
		return identity.AuthContext{}, false
	}
	auth, ok := v.(identity.AuthContext)
	return auth, ok
}

func requestIDFromContext(c *gin.Context) string {
	return c.GetString(ctxKeyRequestID)
}

func startTimeFromContext(c *gin.Context) time.Time {
	v, ok := c.Get(ctxKeyStart)
	if !ok {
		return time.Now()
	}
	t, _ := v.(time.Time)
	return t
}

// bearerToken returns the raw token from the Authorization header, or ""
// when absent or malformed.
func bearerToken(c *gin.Context) string {
	parts := strings.Split(c.GetHeader("Authorization"), " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}
	return parts[1]
}
