// Package config provides woodchuckd configuration loaded from environment variables.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const logPrefix = "config:LoadConfig"

// Config holds woodchuckd configuration.
type Config struct {
	// COMMS: connect to standalone NATS at COMMSURL.
	COMMSURL  string `envconfig:"COMMS_URL" default:"nats://localhost:4222"`
	COMMSName string `envconfig:"SERVICE_NAME" default:"woodchuckd"`

	// Bus subjects
	CallSubject       string `envconfig:"WOODCHUCK_SUBJECT" default:"woodchuck.call"`
	IntrospectSubject string `envconfig:"WOODCHUCK_INTROSPECT_SUBJECT" default:"woodchuck.introspect"`
	UpcallPrefix      string `envconfig:"WOODCHUCK_UPCALL_PREFIX" default:"woodchuck.upcall"`

	// CoreCallTimeout bounds the Core Service work of one method call.
	CoreCallTimeout time.Duration `envconfig:"CORE_CALL_TIMEOUT" default:"25s"`

	// Database
	DatabaseURL   string `envconfig:"DATABASE_URL"`
	RunMigrations bool   `envconfig:"RUN_MIGRATIONS" default:"true"`
	MigrationPath string `envconfig:"MIGRATION_PATH" default:"migrations"`

	// HTTP health and metrics endpoint
	HTTPPort           int           `envconfig:"HTTP_PORT" default:"8080"`
	HealthCheckTimeout time.Duration `envconfig:"HEALTH_CHECK_TIMEOUT" default:"5s"`

	// Logging
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() (*Config, error) {
	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// ValidateForServe checks required config when running the daemon.
func (c *Config) ValidateForServe() error {
	if err := c.ValidateForDB(); err != nil {
		return err
	}
	if c.CallSubject == "" || c.IntrospectSubject == "" || c.UpcallPrefix == "" {
		return fmt.Errorf("%s - WOODCHUCK_SUBJECT, WOODCHUCK_INTROSPECT_SUBJECT and WOODCHUCK_UPCALL_PREFIX must not be empty", logPrefix)
	}
	if c.CoreCallTimeout <= 0 {
		return fmt.Errorf("%s - CORE_CALL_TIMEOUT must be positive", logPrefix)
	}
	if c.HealthCheckTimeout <= 0 {
		return fmt.Errorf("%s - HEALTH_CHECK_TIMEOUT must be positive", logPrefix)
	}
	if c.HTTPPort < 0 || c.HTTPPort > 65535 {
		return fmt.Errorf("%s - HTTP_PORT %d out of range", logPrefix, c.HTTPPort)
	}
	return nil
}

// ValidateForDB checks required config when running DB-dependent commands (migrate, clear, ensure-db).
func (c *Config) ValidateForDB() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("%s - DATABASE_URL is required", logPrefix)
	}
	return nil
}

// SlogLevel maps LOG_LEVEL to a slog level. Unknown values mean info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
