// internal/server/middleware.go
// The admission pipeline. Registration order is a contract: request id and
// timing first, then observability, CORS, the audit recorder, the rate
// limiter, and the token verifier. Route groups append the permission
// guards, tenant isolation, and the policy gate. A short-circuit anywhere
// still flows back through the audit recorder and the observability exit.
package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/allsource/controlplane/internal/audit"
	"github.com/allsource/controlplane/internal/auth"
	"github.com/allsource/controlplane/internal/identity"
	"github.com/allsource/controlplane/internal/policy"
	"github.com/allsource/controlplane/internal/ratelimit"
	"github.com/allsource/controlplane/internal/tenant"
	"github.com/allsource/controlplane/internal/tracing"
)

// publicPath reports whether the path bypasses rate limiting and
// verification entirely.
func publicPath(path string) bool {
	return path == "/health" || path == "/metrics"
}

// authExemptPath reports whether the path skips token verification.
func authExemptPath(method, path string) bool {
	if publicPath(path) {
		return true
	}
	return method == "POST" &&
		(path == "/api/v1/auth/login" || path == "/api/v1/auth/register")
}

// requestContext assigns the request id and start time.
func (s *Server) requestContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(ctxKeyRequestID, id)
		c.Set(ctxKeyStart, time.Now())
		c.Header("X-Request-ID", id)
		c.Next()
	}
}

// observe opens the request span, tracks in-flight requests, and records
// the counter and latency histogram on the way out.
func (s *Server) observe() gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}

		ctx, span := tracing.StartSpan(c.Request.Context(), s.tracer,
			c.Request.Method+" "+route,
			attribute.String("http.method", c.Request.Method),
			attribute.String("http.route", route),
		)
		c.Request = c.Request.WithContext(ctx)

		s.metrics.RequestsInFlight.Inc()
		start := startTimeFromContext(c)

		c.Next()

		status := c.Writer.Status()
		if a, ok := authFromContext(c); ok {
			span.SetAttributes(
				attribute.String("user.id", a.UserID),
				attribute.String("tenant.id", a.TenantID),
				attribute.String("user.role", string(a.Role)),
				attribute.Bool("is_api_key", a.IsAPIKey),
			)
		}
		span.SetAttributes(attribute.Int("http.status_code", status))
		if status >= 500 {
			span.AddEvent("server_error")
		}
		span.End()

		s.metrics.RequestsTotal.WithLabelValues(
			c.Request.Method, route, strconv.Itoa(status)).Inc()
		s.metrics.RequestDuration.WithLabelValues(
			c.Request.Method, route).Observe(time.Since(start).Seconds())
		s.metrics.RequestsInFlight.Dec()
	}
}

func (s *Server) corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type,Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}

// auditRecord writes the mandatory api_request record after the request
// terminates, whatever the outcome. Sink failures are swallowed here; the
// sink already reports them to stderr.
func (s *Server) auditRecord() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		method := c.Request.Method
		path := c.Request.URL.Path
		ev := audit.Event{
			EventType:  audit.TypeAPIRequest,
			Action:     audit.ActionForRequest(method, path),
			Resource:   audit.ResourceForPath(path),
			Method:     method,
			Path:       path,
			StatusCode: c.Writer.Status(),
			DurationMS: time.Since(startTimeFromContext(c)).Milliseconds(),
			IPAddress:  c.ClientIP(),
			UserAgent:  c.Request.UserAgent(),
			Metadata:   map[string]any{"request_id": requestIDFromContext(c)},
		}

		if a, ok := authFromContext(c); ok {
			ev.UserID = a.UserID
			ev.Username = a.Username
			ev.TenantID = a.TenantID
			if ev.StatusCode < 400 {
				s.tenants.RecordRequest(c.Request.Context(), a.TenantID)
			}
		}

		if len(c.Errors) > 0 {
			ev.Error = c.Errors.Last().Error()
		} else if err := c.Request.Context().Err(); err != nil {
			ev.Error = fmt.Sprintf("request cancelled: %v", err)
		}

		_ = s.audit.Log(ev)
	}
}

// rateLimit throttles per tenant. It runs before verification, so the
// bucket key comes from the unverified tenant_id claim (good enough for
// bucketing, never for authorization) with the client IP as fallback.
func (s *Server) rateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if publicPath(c.Request.URL.Path) {
			c.Next()
			return
		}

		key, preset := s.limitKey(c)
		d := s.limiter.Allow(key, preset)
		if !d.Allowed {
			s.metrics.RateLimitDenialsTotal.Inc()
			retry := int(d.RetryAfter.Seconds())
			if retry < 1 {
				retry = 1
			}
			c.Header("Retry-After", strconv.Itoa(retry))
			c.AbortWithStatusJSON(429, gin.H{
				"error":       kindRateLimited,
				"retry_after": retry,
			})
			return
		}
		c.Next()
	}
}

func (s *Server) limitKey(c *gin.Context) (string, ratelimit.Preset) {
	if tenantID, ok := auth.PeekTenantID(c.GetHeader("Authorization")); ok {
		if t, err := s.tenants.Get(c.Request.Context(), tenantID); err == nil {
			return "tenant:" + tenantID, ratelimit.ForTier(t.Tier)
		}
		return "tenant:" + tenantID, ratelimit.PresetFree
	}

	key := "ip:" + c.ClientIP()
	if s.cfg.Environment == "development" {
		return key, ratelimit.PresetDev
	}
	return key, ratelimit.PresetFree
}

// authenticate verifies the bearer token and attaches the AuthContext.
// Non-active tenants are blocked from every mutating method.
func (s *Server) authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		if authExemptPath(c.Request.Method, c.Request.URL.Path) {
			c.Next()
			return
		}

		authCtx, err := s.verifier.VerifyHeader(c.GetHeader("Authorization"))
		if err != nil {
			abortError(c, 401, kindUnauthorized, authMessage(err))
			return
		}
		setAuthContext(c, authCtx)

		if c.Request.Method != "GET" {
			if t, terr := s.tenants.Get(c.Request.Context(), authCtx.TenantID); terr == nil && t.Status != tenant.StatusActive {
				abortError(c, 403, kindForbidden, "tenant is not active")
				return
			}
		}
		c.Next()
	}
}

func authMessage(err error) string {
	switch {
	case errors.Is(err, auth.ErrMissingAuth):
		return "authorization header required"
	case errors.Is(err, auth.ErrMalformedAuth):
		return "authorization header malformed"
	case errors.Is(err, auth.ErrExpired):
		return "token expired"
	case errors.Is(err, auth.ErrMalformedClaims):
		return "token claims invalid"
	default:
		return "token invalid"
	}
}

func (s *Server) requireAdmin() gin.HandlerFunc {
	return s.requirePermission(identity.PermissionAdmin)
}

func (s *Server) requirePermission(perm identity.Permission) gin.HandlerFunc {
	return func(c *gin.Context) {
		a, ok := authFromContext(c)
		if !ok {
			abortError(c, 401, kindUnauthorized, "authentication required")
			return
		}
		if !identity.HasPermission(a.Role, perm) {
			abortError(c, 403, kindPermissionDenied,
				fmt.Sprintf("role %s lacks %s permission", a.Role, perm))
			return
		}
		c.Next()
	}
}

// tenantIsolation confines callers to their own tenant unless they hold
// the manage_tenants permission.
func (s *Server) tenantIsolation() gin.HandlerFunc {
	return func(c *gin.Context) {
		a, ok := authFromContext(c)
		if !ok {
			c.Next()
			return
		}
		target := c.Param("id")
		if target != "" && target != a.TenantID &&
			!identity.HasPermission(a.Role, identity.PermissionManageTenants) {
			abortError(c, 403, kindTenantMismatch, "tenant does not match caller")
			return
		}
		c.Next()
	}
}

// policyGate evaluates the security policies for the request. The gate,
// not the engine, translates HTTP specifics into the policy context.
func (s *Server) policyGate() gin.HandlerFunc {
	return func(c *gin.Context) {
		a, ok := authFromContext(c)
		if !ok {
			c.Next()
			return
		}

		pctx := s.buildPolicyContext(c, a)
		result := s.policies.Evaluate(pctx)

		if !result.Allowed {
			_ = s.audit.Log(audit.Event{
				EventType:  audit.TypePolicyDenial,
				Action:     pctx.Operation,
				Resource:   pctx.Resource,
				UserID:     a.UserID,
				Username:   a.Username,
				TenantID:   a.TenantID,
				Method:     c.Request.Method,
				Path:       c.Request.URL.Path,
				StatusCode: 403,
				Error:      result.Message,
				Metadata:   map[string]any{"policy_id": result.PolicyID},
			})
			c.AbortWithStatusJSON(403, gin.H{
				"error":     kindForbidden,
				"message":   result.Message,
				"policy_id": result.PolicyID,
			})
			return
		}

		if result.Action == policy.ActionWarn {
			_ = s.audit.Log(audit.Event{
				EventType: audit.TypePolicyWarning,
				Action:    pctx.Operation,
				Resource:  pctx.Resource,
				UserID:    a.UserID,
				Username:  a.Username,
				TenantID:  a.TenantID,
				Method:    c.Request.Method,
				Path:      c.Request.URL.Path,
				Metadata: map[string]any{
					"policy_id": result.PolicyID,
					"warning":   result.Message,
				},
			})
		}
		c.Next()
	}
}

func (s *Server) buildPolicyContext(c *gin.Context, a identity.AuthContext) policy.Context {
	path := c.Request.URL.Path
	pctx := policy.Context{
		Resource:   audit.ResourceForPath(path),
		Operation:  audit.ActionForRequest(c.Request.Method, path),
		UserID:     a.UserID,
		TenantID:   a.TenantID,
		Role:       string(a.Role),
		Attributes: map[string]any{},
	}

	if id := c.Param("id"); id != "" {
		switch pctx.Resource {
		case "tenant":
			// Policies on the tenant resource decide about the targeted
			// tenant, not the caller's.
			pctx.TenantID = id
			pctx.Attributes["tenant_id"] = id
		case "user":
			pctx.Attributes["target_user_id"] = id
		}
	}

	if opType := c.Param("type"); opType != "" && pctx.Resource == "operation" {
		pctx.Attributes["operation_type"] = opType
		pctx.Attributes["recent_operations"] = s.recentOps.Count(a.UserID)
		if body := peekJSONBody(c); body != nil {
			if rc, ok := body["record_count"]; ok {
				pctx.Attributes["record_count"] = rc
			}
		}
	}
	return pctx
}

// peekJSONBody reads and restores the request body so the handler can bind
// it again.
func peekJSONBody(c *gin.Context) map[string]any {
	if c.Request.Body == nil {
		return nil
	}
	data, err := io.ReadAll(c.Request.Body)
	c.Request.Body = io.NopCloser(bytes.NewReader(data))
	if err != nil || len(data) == 0 {
		return nil
	}
	var body map[string]any
	if err := json.Unmarshal(data, &body); err != nil {
		return nil
	}
	return body
}
