package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// Config holds validated environment configuration
type Config struct {
	// Server
	Port string

	// Identity derivation
	NodeEnv    string
	Production bool
	Salt1      string
	Salt2      string

	// Optional variables with defaults
	LogLevel       string
	AllowedOrigins string

	// Rate Limits
	RateLimitWsIP string

	// Tracing (optional; empty endpoint disables)
	OtelEndpoint           string
	OtelInsecureSkipVerify bool
}

// ValidateEnv validates all environment variables and returns a Config
// object. Returns an error listing every violation if any variable is
// missing or invalid.
func ValidateEnv() (*Config, error) {
	cfg := &Config{}
	var errors []string

	// Optional: WS_PORT (defaults to 8080, must be a valid port)
	cfg.Port = getEnvOrDefault("WS_PORT", "8080")
	port, err := strconv.Atoi(cfg.Port)
	if err != nil || port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("WS_PORT must be a valid port number between 1 and 65535 (got '%s')", cfg.Port))
	}

	// Optional: NODE_ENV ("production"/"prod" switches to hashed client ids)
	cfg.NodeEnv = os.Getenv("NODE_ENV")
	env := strings.ToLower(cfg.NodeEnv)
	cfg.Production = env == "production" || env == "prod"

	// Conditional: SALT1/SALT2 (required in production, where they anchor
	// the per-IP client id derivation)
	cfg.Salt1 = os.Getenv("SALT1")
	cfg.Salt2 = os.Getenv("SALT2")
	if cfg.Production {
		if cfg.Salt1 == "" {
			errors = append(errors, "SALT1 is required when NODE_ENV is production")
		}
		if cfg.Salt2 == "" {
			errors = append(errors, "SALT2 is required when NODE_ENV is production")
		}
	}

	// Optional: LOG_LEVEL (defaults to "info")
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")

	// Optional: ALLOWED_ORIGINS (comma-separated; "*" allows everything)
	cfg.AllowedOrigins = getEnvOrDefault("ALLOWED_ORIGINS", "*")

	// Rate Limits (Defaults: M = Minute, H = Hour)
	cfg.RateLimitWsIP = getEnvOrDefault("RATE_LIMIT_WS_IP", "100-M")

	// Optional: OTLP collector endpoint; tracing stays off when unset
	cfg.OtelEndpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	cfg.OtelInsecureSkipVerify = os.Getenv("OTEL_INSECURE_SKIP_VERIFY") == "true"

	if len(errors) > 0 {
		return nil, fmt.Errorf("environment validation failed:\n  - %s", strings.Join(errors, "\n  - "))
	}

	logValidatedConfig(cfg)

	return cfg, nil
}

// Origins splits the configured allowed origins into a slice.
func (c *Config) Origins() []string {
	return strings.Split(c.AllowedOrigins, ",")
}

// logValidatedConfig logs the validated configuration with secrets redacted
func logValidatedConfig(cfg *Config) {
	slog.Info("✅ Environment configuration validated successfully")
	slog.Info("Configuration",
		"port", cfg.Port,
		"node_env", cfg.NodeEnv,
		"production", cfg.Production,
		"salt1", redactSecret(cfg.Salt1),
		"salt2", redactSecret(cfg.Salt2),
		"log_level", cfg.LogLevel,
		"allowed_origins", cfg.AllowedOrigins,
		"rate_limit_ws_ip", cfg.RateLimitWsIP,
		"otel_endpoint", cfg.OtelEndpoint,
	)
}

// getEnvOrDefault returns the value of the environment variable or a default value if not set
func getEnvOrDefault(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// redactSecret redacts a secret by showing only the first 8 characters
func redactSecret(secret string) string {
	if len(secret) <= 8 {
		return "***"
	}
	return secret[:8] + "***"
}
