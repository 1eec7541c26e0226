// internal/server/handlers.go
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/allsource/controlplane/internal/policy"
	"github.com/allsource/controlplane/internal/tenant"
)

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":         "healthy",
		"service":        "allsource-control-plane",
		"version":        Version,
		"timestamp":      time.Now().UTC(),
		"uptime_seconds": s.metrics.UptimeSeconds(),
		"features": gin.H{
			"authentication": true,
			"rbac":           true,
			"audit_logging":  s.auditEnabled,
			"tracing":        s.cfg.TracingEndpoint != "",
		},
	})
}

// ---------- auth ----------

func (s *Server) handleLogin(c *gin.Context) {
	s.forwardAuth(c, "/api/v1/auth/login")
}

func (s *Server) handleRegister(c *gin.Context) {
	s.forwardAuth(c, "/api/v1/auth/register")
}

func (s *Server) forwardAuth(c *gin.Context, path string) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		abortError(c, 400, kindBadRequest, "unreadable request body")
		return
	}
	res, err := s.core.Forward(c.Request.Context(), "POST", path, "", body)
	if err != nil {
		abortError(c, 503, kindCoreUnavailable, "core service unreachable")
		return
	}
	relay(c, res.StatusCode, res.Body)
}

func (s *Server) handleMe(c *gin.Context) {
	a, ok := authFromContext(c)
	if !ok {
		abortError(c, 401, kindUnauthorized, "authentication required")
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": a})
}

// ---------- cluster ----------

func (s *Server) handleClusterStatus(c *gin.Context) {
	a, _ := authFromContext(c)

	var coreStats gin.H
	healthy := 0
	nodeStatus := "unreachable"
	if res, err := s.core.Forward(c.Request.Context(), "GET", "/api/v1/stats", bearerToken(c), nil); err == nil && res.StatusCode < 500 {
		nodeStatus = "healthy"
		healthy = 1
		coreStats = decodeJSON(res.Body)
	}

	c.JSON(http.StatusOK, gin.H{
		"cluster_id": "allsource",
		"requester": gin.H{
			"user_id":   a.UserID,
			"tenant_id": a.TenantID,
			"role":      a.Role,
		},
		"nodes": []gin.H{{
			"id":     "core-1",
			"type":   "event-store",
			"status": nodeStatus,
			"url":    s.cfg.CoreServiceURL,
			"stats":  coreStats,
		}},
		"total_nodes":   1,
		"healthy_nodes": healthy,
		"timestamp":     time.Now().UTC(),
	})
}

func (s *Server) handleMetricsJSON(c *gin.Context) {
	var coreStats gin.H
	if res, err := s.core.Forward(c.Request.Context(), "GET", "/api/v1/stats", bearerToken(c), nil); err == nil {
		coreStats = decodeJSON(res.Body)
	}

	c.JSON(http.StatusOK, gin.H{
		"metrics": gin.H{
			"event_store": coreStats,
			"control_plane": gin.H{
				"uptime_seconds": s.metrics.UptimeSeconds(),
				"version":        Version,
			},
		},
		"timestamp": time.Now().UTC(),
	})
}

func (s *Server) handleCoreHealth(c *gin.Context) {
	res, err := s.core.CheckHealth(c.Request.Context(), bearerToken(c))
	if err != nil {
		s.metrics.CoreHealthCheckTotal.WithLabelValues("error").Inc()
		abortError(c, 503, kindCoreUnavailable, "core service unreachable")
		return
	}
	if res.StatusCode == http.StatusOK {
		s.metrics.CoreHealthCheckTotal.WithLabelValues("success").Inc()
	} else {
		s.metrics.CoreHealthCheckTotal.WithLabelValues("error").Inc()
	}
	relay(c, res.StatusCode, res.Body)
}

// ---------- operations ----------

func (s *Server) handleOperation(c *gin.Context) {
	a, _ := authFromContext(c)
	opType := c.Param("type")

	switch opType {
	case "snapshot":
		s.metrics.SnapshotOperationsTotal.Inc()
		snapshotID := fmt.Sprintf("snapshot-%d", time.Now().Unix())
		_ = s.audit.LogOperationEvent("snapshot_create", snapshotID, a.UserID, "initiated")
		s.recentOps.Record(a.UserID)
		c.JSON(http.StatusOK, gin.H{
			"snapshot_id": snapshotID,
			"status":      "created",
			"created_by":  a.Username,
			"timestamp":   time.Now().UTC(),
		})

	case "replay":
		var req struct {
			EntityID string     `json:"entity_id"`
			AsOf     *time.Time `json:"as_of"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			abortError(c, 400, kindBadRequest, "invalid replay request body")
			return
		}
		s.metrics.ReplayOperationsTotal.Inc()
		_ = s.audit.LogOperationEvent("replay", req.EntityID, a.UserID, "initiated")
		s.recentOps.Record(a.UserID)
		c.JSON(http.StatusOK, gin.H{
			"status":       "replay_initiated",
			"entity_id":    req.EntityID,
			"as_of":        req.AsOf,
			"initiated_by": a.Username,
			"timestamp":    time.Now().UTC(),
		})

	case "backup":
		res, err := s.core.Forward(c.Request.Context(), "POST", "/api/v1/backup", bearerToken(c), nil)
		if err != nil {
			abortError(c, 503, kindCoreUnavailable, "core service unreachable")
			return
		}
		backupID := fmt.Sprintf("backup-%d", time.Now().Unix())
		_ = s.audit.LogOperationEvent("backup_create", backupID, a.UserID, "initiated")
		s.recentOps.Record(a.UserID)
		relay(c, res.StatusCode, res.Body)

	default:
		_ = s.audit.LogOperationEvent(opType, "", a.UserID, "accepted")
		s.recentOps.Record(a.UserID)
		c.JSON(http.StatusOK, gin.H{
			"operation": opType,
			"status":    "accepted",
			"timestamp": time.Now().UTC(),
		})
	}
}

// ---------- tenants ----------

type tenantView struct {
	*tenant.Tenant
	Usage tenant.UsageSnapshot `json:"usage"`
}

func viewTenant(t *tenant.Tenant) tenantView {
	return tenantView{Tenant: t, Usage: t.Usage.Snapshot()}
}

func (s *Server) handleListTenants(c *gin.Context) {
	tenants, err := s.tenants.List(c.Request.Context())
	if err != nil {
		abortError(c, 500, kindInternal, "failed to list tenants")
		return
	}
	views := make([]tenantView, 0, len(tenants))
	for _, t := range tenants {
		views = append(views, viewTenant(t))
	}
	c.JSON(http.StatusOK, gin.H{"tenants": views, "count": len(views)})
}

func (s *Server) handleGetTenant(c *gin.Context) {
	t, err := s.tenants.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortError(c, 404, kindNotFound, "tenant not found")
		return
	}
	c.JSON(http.StatusOK, viewTenant(t))
}

func (s *Server) handleCreateTenant(c *gin.Context) {
	a, _ := authFromContext(c)

	var req struct {
		ID   string      `json:"id"`
		Name string      `json:"name"`
		Tier tenant.Tier `json:"tier"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.ID == "" || req.Name == "" {
		abortError(c, 400, kindBadRequest, "tenant id and name are required")
		return
	}

	t := &tenant.Tenant{ID: req.ID, Name: req.Name, Tier: req.Tier}
	if err := s.tenants.Create(c.Request.Context(), t); err != nil {
		switch {
		case errors.Is(err, tenant.ErrTenantExists):
			abortError(c, 409, kindConflict, "tenant already exists")
		case errors.Is(err, tenant.ErrInvalidTenantID):
			abortError(c, 400, kindBadRequest, "invalid tenant id or tier")
		default:
			abortError(c, 500, kindInternal, "failed to create tenant")
		}
		return
	}

	s.mirrorToCore(c, "POST", "/api/v1/tenants", gin.H{"id": t.ID, "name": t.Name, "tier": t.Tier})
	_ = s.audit.LogTenantEvent("create", t.ID, a.UserID, "tenant created")
	c.JSON(http.StatusCreated, viewTenant(t))
}

func (s *Server) handleUpdateTenant(c *gin.Context) {
	a, _ := authFromContext(c)
	id := c.Param("id")

	var req struct {
		Name   string        `json:"name"`
		Tier   tenant.Tier   `json:"tier"`
		Status tenant.Status `json:"status"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, 400, kindBadRequest, "invalid tenant update body")
		return
	}

	upd := &tenant.Tenant{ID: id, Name: req.Name, Tier: req.Tier, Status: req.Status}
	if err := s.tenants.Update(c.Request.Context(), upd); err != nil {
		switch {
		case errors.Is(err, tenant.ErrTenantNotFound):
			abortError(c, 404, kindNotFound, "tenant not found")
		case errors.Is(err, tenant.ErrInvalidTenantID):
			abortError(c, 400, kindBadRequest, "invalid tier or status")
		default:
			abortError(c, 500, kindInternal, "failed to update tenant")
		}
		return
	}

	s.mirrorToCore(c, "PUT", "/api/v1/tenants/"+id, gin.H{"name": req.Name, "tier": req.Tier, "status": req.Status})
	_ = s.audit.LogTenantEvent("update", id, a.UserID, "tenant updated")

	t, err := s.tenants.Get(c.Request.Context(), id)
	if err != nil {
		abortError(c, 500, kindInternal, "failed to load tenant")
		return
	}
	c.JSON(http.StatusOK, viewTenant(t))
}

func (s *Server) handleDeleteTenant(c *gin.Context) {
	a, _ := authFromContext(c)
	id := c.Param("id")

	if id == tenant.DefaultTenantID {
		abortError(c, 403, kindForbidden, "default tenant cannot be deleted")
		return
	}
	if _, err := s.tenants.Get(c.Request.Context(), id); err != nil {
		abortError(c, 404, kindNotFound, "tenant not found")
		return
	}

	// The core goes first: an unreachable core leaves local state untouched
	// so a retry sees the tenant again.
	res, err := s.core.Forward(c.Request.Context(), "DELETE", "/api/v1/tenants/"+id, bearerToken(c), nil)
	if err != nil {
		abortError(c, 503, kindCoreUnavailable, "core service unreachable")
		return
	}

	if err := s.tenants.Delete(c.Request.Context(), id); err != nil && !errors.Is(err, tenant.ErrTenantNotFound) {
		abortError(c, 500, kindInternal, "failed to delete tenant")
		return
	}
	_ = s.audit.LogTenantEvent("delete", id, a.UserID, "tenant deleted")
	relay(c, res.StatusCode, res.Body)
}

// mirrorToCore propagates a tenant mutation downstream on a best-effort
// basis; the local repository is the source of truth for admission.
func (s *Server) mirrorToCore(c *gin.Context, method, path string, body gin.H) {
	data, err := json.Marshal(body)
	if err != nil {
		return
	}
	if _, err := s.core.Forward(c.Request.Context(), method, path, bearerToken(c), data); err != nil {
		s.log.Warn().Err(err).Str("path", path).Msg("core mirror failed")
	}
}

// ---------- users ----------

func (s *Server) handleListUsers(c *gin.Context) {
	users, err := s.users.List(c.Request.Context())
	if err != nil {
		abortError(c, 500, kindInternal, "failed to list users")
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users, "count": len(users)})
}

func (s *Server) handleDeleteUser(c *gin.Context) {
	a, _ := authFromContext(c)
	id := c.Param("id")

	res, err := s.core.Forward(c.Request.Context(), "DELETE", "/api/v1/auth/users/"+id, bearerToken(c), nil)
	if err != nil {
		abortError(c, 503, kindCoreUnavailable, "core service unreachable")
		return
	}

	if err := s.users.Delete(c.Request.Context(), id); err != nil && !errors.Is(err, tenant.ErrUserNotFound) {
		s.log.Warn().Err(err).Str("user_id", id).Msg("local user delete failed")
	}
	_ = s.audit.LogAuthEvent("user_delete", id, "", a.TenantID, "user deleted by "+a.Username)
	relay(c, res.StatusCode, res.Body)
}

// ---------- policies ----------

func (s *Server) handleListPolicies(c *gin.Context) {
	policies := s.policies.Store().List()
	sort.Slice(policies, func(i, j int) bool {
		if policies[i].Priority != policies[j].Priority {
			return policies[i].Priority > policies[j].Priority
		}
		return policies[i].ID < policies[j].ID
	})
	c.JSON(http.StatusOK, gin.H{"policies": policies, "count": len(policies)})
}

func (s *Server) handleEvaluatePolicy(c *gin.Context) {
	var pctx policy.Context
	if err := c.ShouldBindJSON(&pctx); err != nil {
		abortError(c, 400, kindBadRequest, "invalid policy context")
		return
	}
	c.JSON(http.StatusOK, s.policies.Evaluate(pctx))
}

// decodeJSON is a lenient body decode for synthesized responses.
func decodeJSON(body []byte) gin.H {
	var out gin.H
	if err := json.Unmarshal(body, &out); err != nil {
		return nil
	}
	return out
}
