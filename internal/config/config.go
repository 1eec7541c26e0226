// internal/config/config.go
// Process configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
)

const (
	EnvDevelopment = "development"
	EnvStaging     = "staging"
	EnvProduction  = "production"

	// devJWTSecret is the development fallback when JWT_SECRET is unset.
	devJWTSecret = "dev-secret-change-in-production"
)

// Config is the full process configuration.
type Config struct {
	Port              string
	JWTSecret         string
	AuditLogPath      string // empty disables the audit sink
	CoreServiceURL    string
	Environment       string
	TracingEndpoint   string // empty disables tracing
	TracingSampleRate float64

	// DevSecretFallback is set when JWT_SECRET was defaulted; main logs a
	// warning.
	DevSecretFallback bool
}

// Load reads the environment. JWT_SECRET is required in production.
func Load() (*Config, error) {
	cfg := &Config{
		Port:              getenv("PORT", "8081"),
		JWTSecret:         os.Getenv("JWT_SECRET"),
		AuditLogPath:      os.Getenv("AUDIT_LOG_PATH"),
		CoreServiceURL:    getenv("CORE_SERVICE_URL", "http://localhost:8080"),
		Environment:       getenv("ENVIRONMENT", EnvDevelopment),
		TracingEndpoint:   os.Getenv("TRACING_ENDPOINT"),
		TracingSampleRate: 1.0,
	}

	switch cfg.Environment {
	case EnvDevelopment, EnvStaging, EnvProduction:
	default:
		return nil, fmt.Errorf("invalid ENVIRONMENT: %q", cfg.Environment)
	}

	if rate := os.Getenv("TRACING_SAMPLE_RATE"); rate != "" {
		f, err := strconv.ParseFloat(rate, 64)
		if err != nil || f < 0 || f > 1 {
			return nil, fmt.Errorf("invalid TRACING_SAMPLE_RATE: %q", rate)
		}
		cfg.TracingSampleRate = f
	}

	if cfg.JWTSecret == "" {
		if cfg.Environment == EnvProduction {
			return nil, errors.New("JWT_SECRET is required in production")
		}
		cfg.JWTSecret = devJWTSecret
		cfg.DevSecretFallback = true
	}

	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
