// cmd/server/main.go
// AllSource control plane: the authorizing front door for the core event
// store. Verifies tokens, enforces roles and security policies, rate
// limits per tenant, audits every request, and proxies approved traffic
// downstream.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/allsource/controlplane/internal/audit"
	"github.com/allsource/controlplane/internal/auth"
	"github.com/allsource/controlplane/internal/config"
	"github.com/allsource/controlplane/internal/observability"
	"github.com/allsource/controlplane/internal/policy"
	"github.com/allsource/controlplane/internal/proxy"
	"github.com/allsource/controlplane/internal/ratelimit"
	"github.com/allsource/controlplane/internal/server"
	"github.com/allsource/controlplane/internal/tenant"
	"github.com/allsource/controlplane/internal/tracing"
)

const shutdownTimeout = 5 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		boot := zerolog.New(os.Stderr).With().Timestamp().Logger()
		boot.Fatal().Err(err).Msg("configuration invalid")
	}

	log := newLogger(cfg.Environment)
	log.Info().
		Str("version", server.Version).
		Str("environment", cfg.Environment).
		Str("port", cfg.Port).
		Str("core_service_url", cfg.CoreServiceURL).
		Msg("starting control plane")

	if cfg.DevSecretFallback {
		log.Warn().Msg("JWT_SECRET not set, using development fallback secret")
	}

	if err := tracing.Init(cfg.TracingEndpoint, cfg.TracingSampleRate, cfg.Environment); err != nil {
		log.Warn().Err(err).Msg("tracing disabled")
	}

	metrics := observability.NewMetrics()

	auditLog, err := audit.NewFileLogger(cfg.AuditLogPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.AuditLogPath).Msg("audit sink unavailable")
	}
	if !auditLog.Enabled() {
		log.Warn().Msg("AUDIT_LOG_PATH not set, audit logging disabled")
	}

	policyStore := policy.NewMemoryStore()
	if err := policy.Seed(policyStore); err != nil {
		log.Fatal().Err(err).Msg("policy seed failed")
	}
	engine := policy.NewEngine(policyStore)

	tenants := tenant.NewMemoryRepository()
	users := tenant.NewMemoryUserRepository()
	limiter := ratelimit.NewLimiter()

	srv := server.New(server.Deps{
		Config:       *cfg,
		Verifier:     auth.NewVerifier(cfg.JWTSecret),
		Limiter:      limiter,
		Audit:        auditLog,
		Policies:     engine,
		Tenants:      tenants,
		Users:        users,
		Core:         proxy.NewCoreClient(cfg.CoreServiceURL, proxy.DefaultTimeout),
		Metrics:      metrics,
		Logger:       log,
		AuditEnabled: auditLog.Enabled(),
	})

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()
	log.Info().Str("addr", httpServer.Addr).Msg("listening")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Info().Str("signal", sig.String()).Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("drain failed")
	}

	limiter.Stop()
	metrics.Stop()
	if err := auditLog.Close(); err != nil {
		log.Error().Err(err).Msg("audit close failed")
	}
	if err := tracing.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("tracing shutdown failed")
	}

	log.Info().Msg("stopped")
}

func newLogger(environment string) zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs
	if environment == config.EnvDevelopment {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
			With().Timestamp().Logger()
	}
	return zerolog.New(os.Stderr).With().Timestamp().Logger()
}
