// internal/server/server.go
// HTTP surface of the control plane. Every request passes through the
// admission pipeline before reaching a handler; route groups add the
// guards that apply to their resource.
package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"

	"github.com/allsource/controlplane/internal/audit"
	"github.com/allsource/controlplane/internal/auth"
	"github.com/allsource/controlplane/internal/config"
	"github.com/allsource/controlplane/internal/identity"
	"github.com/allsource/controlplane/internal/observability"
	"github.com/allsource/controlplane/internal/policy"
	"github.com/allsource/controlplane/internal/proxy"
	"github.com/allsource/controlplane/internal/ratelimit"
	"github.com/allsource/controlplane/internal/tenant"
	"github.com/allsource/controlplane/internal/tracing"
)

// Version is reported by /health and /api/v1/metrics/json.
const Version = "2.0.0"

// Server wires the admission pipeline and route handlers together.
type Server struct {
	cfg      config.Config
	engine   *gin.Engine
	verifier *auth.Verifier
	limiter  *ratelimit.Limiter
	audit    audit.Logger
	policies *policy.Engine
	tenants  tenant.Repository
	users    tenant.UserRepository
	core     *proxy.CoreClient
	metrics  *observability.Metrics

	recentOps    *recentOpsTracker
	tracer       trace.Tracer
	log          zerolog.Logger
	auditEnabled bool
}

// Deps carries the server's collaborators. All fields are required.
type Deps struct {
	Config   config.Config
	Verifier *auth.Verifier
	Limiter  *ratelimit.Limiter
	Audit    audit.Logger
	Policies *policy.Engine
	Tenants  tenant.Repository
	Users    tenant.UserRepository
	Core     *proxy.CoreClient
	Metrics  *observability.Metrics
	Logger   zerolog.Logger

	// AuditEnabled feeds the /health feature flags.
	AuditEnabled bool
}

func New(d Deps) *Server {
	if d.Config.Environment == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		cfg:          d.Config,
		verifier:     d.Verifier,
		limiter:      d.Limiter,
		audit:        d.Audit,
		policies:     d.Policies,
		tenants:      d.Tenants,
		users:        d.Users,
		core:         d.Core,
		metrics:      d.Metrics,
		recentOps:    newRecentOpsTracker(),
		tracer:       tracing.Tracer("server"),
		log:          d.Logger.With().Str("component", "server").Logger(),
		auditEnabled: d.AuditEnabled,
	}

	e := gin.New()
	e.Use(gin.Recovery())
	e.Use(s.requestContext())
	e.Use(s.observe())
	e.Use(s.corsMiddleware())
	e.Use(s.auditRecord())
	e.Use(s.rateLimit())
	e.Use(s.authenticate())

	e.GET("/health", s.handleHealth)
	e.GET("/metrics", gin.WrapH(s.metrics.Handler()))

	authGroup := e.Group("/api/v1/auth")
	{
		authGroup.POST("/login", s.handleLogin)
		authGroup.POST("/register", s.handleRegister)
		authGroup.GET("/me", s.policyGate(), s.handleMe)
	}

	api := e.Group("/api/v1")
	{
		api.GET("/cluster/status", s.policyGate(), s.handleClusterStatus)
		api.GET("/metrics/json", s.policyGate(), s.handleMetricsJSON)
		api.GET("/health/core", s.policyGate(), s.handleCoreHealth)

		api.GET("/policies", s.requireAdmin(), s.handleListPolicies)
		api.POST("/policies/evaluate", s.policyGate(), s.handleEvaluatePolicy)

		ops := api.Group("/operations",
			s.requirePermission(identity.PermissionAdmin), s.policyGate())
		{
			ops.POST("/:type", s.handleOperation)
		}

		// The policy gate runs ahead of the role guard here so that
		// denials on tenant and user management surface as policy
		// decisions with an audit trail, not bare permission errors.
		tenants := api.Group("/tenants",
			s.tenantIsolation(), s.policyGate(), s.requireAdmin())
		{
			tenants.GET("", s.handleListTenants)
			tenants.POST("", s.handleCreateTenant)
			tenants.GET("/:id", s.handleGetTenant)
			tenants.PUT("/:id", s.handleUpdateTenant)
			tenants.DELETE("/:id", s.handleDeleteTenant)
		}

		users := api.Group("/users", s.policyGate(), s.requireAdmin())
		{
			users.GET("", s.handleListUsers)
			users.DELETE("/:id", s.handleDeleteUser)
		}
	}

	s.engine = e
	return s
}

// Handler exposes the router for the HTTP server and for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}
