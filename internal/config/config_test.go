package config

import (
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"
)

var allEnvVars = []string{
	"COMMS_URL", "SERVICE_NAME",
	"WOODCHUCK_SUBJECT", "WOODCHUCK_INTROSPECT_SUBJECT", "WOODCHUCK_UPCALL_PREFIX",
	"CORE_CALL_TIMEOUT",
	"DATABASE_URL", "RUN_MIGRATIONS", "MIGRATION_PATH",
	"HTTP_PORT", "HEALTH_CHECK_TIMEOUT", "LOG_LEVEL",
}

func TestLoadConfig_Defaults(t *testing.T) {
	// Clear all environment variables that might interfere
	for _, env := range allEnvVars {
		os.Unsetenv(env)
	}

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("config:config_test - unexpected error: %v", err)
	}

	if cfg.COMMSURL != "nats://localhost:4222" {
		t.Errorf("config:config_test - COMMSURL = %q, want %q", cfg.COMMSURL, "nats://localhost:4222")
	}
	if cfg.COMMSName != "woodchuckd" {
		t.Errorf("config:config_test - COMMSName = %q, want %q", cfg.COMMSName, "woodchuckd")
	}
	if cfg.CallSubject != "woodchuck.call" {
		t.Errorf("config:config_test - CallSubject = %q, want woodchuck.call", cfg.CallSubject)
	}
	if cfg.IntrospectSubject != "woodchuck.introspect" {
		t.Errorf("config:config_test - IntrospectSubject = %q, want woodchuck.introspect", cfg.IntrospectSubject)
	}
	if cfg.UpcallPrefix != "woodchuck.upcall" {
		t.Errorf("config:config_test - UpcallPrefix = %q, want woodchuck.upcall", cfg.UpcallPrefix)
	}
	if cfg.CoreCallTimeout != 25*time.Second {
		t.Errorf("config:config_test - CoreCallTimeout = %v, want 25s", cfg.CoreCallTimeout)
	}
	if cfg.DatabaseURL != "" {
		t.Errorf("config:config_test - DatabaseURL = %q, want empty", cfg.DatabaseURL)
	}
	if !cfg.RunMigrations {
		t.Error("config:config_test - expected RunMigrations=true by default")
	}
	if cfg.MigrationPath != "migrations" {
		t.Errorf("config:config_test - MigrationPath = %q, want %q", cfg.MigrationPath, "migrations")
	}
	if cfg.HTTPPort != 8080 {
		t.Errorf("config:config_test - HTTPPort = %d, want 8080", cfg.HTTPPort)
	}
	if cfg.HealthCheckTimeout != 5*time.Second {
		t.Errorf("config:config_test - HealthCheckTimeout = %v, want 5s", cfg.HealthCheckTimeout)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("config:config_test - LogLevel = %q, want %q", cfg.LogLevel, "info")
	}
}

func TestLoadConfig_EnvironmentOverrides(t *testing.T) {
	overrides := map[string]string{
		"COMMS_URL":                    "nats://custom:4222",
		"SERVICE_NAME":                 "test-woodchuck",
		"WOODCHUCK_SUBJECT":            "wc.call",
		"WOODCHUCK_INTROSPECT_SUBJECT": "wc.introspect",
		"WOODCHUCK_UPCALL_PREFIX":      "wc.upcall",
		"CORE_CALL_TIMEOUT":            "10s",
		"DATABASE_URL":                 "postgres://test@localhost/test",
		"RUN_MIGRATIONS":               "false",
		"MIGRATION_PATH":               "/tmp/migrations",
		"HTTP_PORT":                    "9090",
		"HEALTH_CHECK_TIMEOUT":         "10s",
		"LOG_LEVEL":                    "debug",
	}
	for key, val := range overrides {
		t.Setenv(key, val)
	}

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("config:config_test - unexpected error: %v", err)
	}

	if cfg.COMMSURL != "nats://custom:4222" {
		t.Errorf("config:config_test - COMMSURL = %q, want %q", cfg.COMMSURL, "nats://custom:4222")
	}
	if cfg.COMMSName != "test-woodchuck" {
		t.Errorf("config:config_test - COMMSName = %q, want %q", cfg.COMMSName, "test-woodchuck")
	}
	if cfg.CallSubject != "wc.call" || cfg.IntrospectSubject != "wc.introspect" || cfg.UpcallPrefix != "wc.upcall" {
		t.Errorf("config:config_test - subjects = %q %q %q", cfg.CallSubject, cfg.IntrospectSubject, cfg.UpcallPrefix)
	}
	if cfg.CoreCallTimeout != 10*time.Second {
		t.Errorf("config:config_test - CoreCallTimeout = %v, want 10s", cfg.CoreCallTimeout)
	}
	if cfg.DatabaseURL != "postgres://test@localhost/test" {
		t.Errorf("config:config_test - DatabaseURL = %q, unexpected", cfg.DatabaseURL)
	}
	if cfg.RunMigrations {
		t.Error("config:config_test - expected RunMigrations=false")
	}
	if cfg.MigrationPath != "/tmp/migrations" {
		t.Errorf("config:config_test - MigrationPath = %q, want %q", cfg.MigrationPath, "/tmp/migrations")
	}
	if cfg.HTTPPort != 9090 {
		t.Errorf("config:config_test - HTTPPort = %d, want 9090", cfg.HTTPPort)
	}
	if cfg.HealthCheckTimeout != 10*time.Second {
		t.Errorf("config:config_test - HealthCheckTimeout = %v, want 10s", cfg.HealthCheckTimeout)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("config:config_test - LogLevel = %q, want %q", cfg.LogLevel, "debug")
	}
}

func TestLoadConfig_BadDuration(t *testing.T) {
	t.Setenv("CORE_CALL_TIMEOUT", "soon")
	if _, err := LoadConfig(); err == nil {
		t.Error("config:config_test - expected error for unparseable CORE_CALL_TIMEOUT")
	}
}

func TestSlogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"WARN":    slog.LevelWarn,
		"error":   slog.LevelError,
		"verbose": slog.LevelInfo,
	}
	for level, want := range tests {
		cfg := &Config{LogLevel: level}
		if got := cfg.SlogLevel(); got != want {
			t.Errorf("config:config_test - SlogLevel(%q) = %v, want %v", level, got, want)
		}
	}
}

func validConfig() *Config {
	return &Config{
		DatabaseURL:        "postgres://localhost/woodchuck",
		CallSubject:        "woodchuck.call",
		IntrospectSubject:  "woodchuck.introspect",
		UpcallPrefix:       "woodchuck.upcall",
		CoreCallTimeout:    25 * time.Second,
		HTTPPort:           8080,
		HealthCheckTimeout: 5 * time.Second,
	}
}

func TestValidateForServe(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"no database", func(c *Config) { c.DatabaseURL = "" }, "DATABASE_URL"},
		{"empty subject", func(c *Config) { c.CallSubject = "" }, "WOODCHUCK_SUBJECT"},
		{"zero timeout", func(c *Config) { c.CoreCallTimeout = 0 }, "CORE_CALL_TIMEOUT"},
		{"zero health timeout", func(c *Config) { c.HealthCheckTimeout = 0 }, "HEALTH_CHECK_TIMEOUT"},
		{"bad port", func(c *Config) { c.HTTPPort = 70000 }, "HTTP_PORT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.ValidateForServe()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("config:config_test - unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("config:config_test - error = %v, want mention of %s", err, tt.wantErr)
			}
		})
	}
}

func TestValidateForDB(t *testing.T) {
	if err := (&Config{}).ValidateForDB(); err == nil {
		t.Error("config:config_test - expected error without DATABASE_URL")
	}
	if err := validConfig().ValidateForDB(); err != nil {
		t.Errorf("config:config_test - unexpected error: %v", err)
	}
}
