package config

import (
	"strings"
	"testing"
)

func validConfig() *Config {
	cfg := DefaultConfig()
	cfg.Server.DataDir = "/tmp/test"
	return cfg
}

func TestValidate_ValidConfig(t *testing.T) {
	if err := validate(validConfig()); err != nil {
		t.Fatalf("validate valid config: %v", err)
	}
}

func TestValidate_BadPort(t *testing.T) {
	cfg := validConfig()
	cfg.Server.Port = 70000

	err := validate(cfg)
	if err == nil {
		t.Fatal("expected error for port 70000")
	}
	if !strings.Contains(err.Error(), "server.port") {
		t.Errorf("error should mention server.port: %v", err)
	}
}

func TestValidate_BadLogLevel(t *testing.T) {
	cfg := validConfig()
	cfg.Server.LogLevel = "verbose"

	err := validate(cfg)
	if err == nil {
		t.Fatal("expected error for invalid log level")
	}
	if !strings.Contains(err.Error(), "log_level") {
		t.Errorf("error should mention log_level: %v", err)
	}
}

func TestValidate_EmptyDataDir(t *testing.T) {
	cfg := validConfig()
	cfg.Server.DataDir = ""

	if err := validate(cfg); err == nil {
		t.Fatal("expected error for empty data_dir")
	}
}

func TestValidate_BadDriver(t *testing.T) {
	cfg := validConfig()
	cfg.Database.Driver = "mysql"

	err := validate(cfg)
	if err == nil {
		t.Fatal("expected error for unsupported driver")
	}
	if !strings.Contains(err.Error(), "database.driver") {
		t.Errorf("error should mention database.driver: %v", err)
	}
}

func TestValidate_PostgresWithDSNRef(t *testing.T) {
	cfg := validConfig()
	cfg.Database.Driver = "postgres"
	cfg.Database.DSNRef = "env:DATABASE_URL"

	if err := validate(cfg); err != nil {
		t.Fatalf("postgres with dsn_ref should validate: %v", err)
	}
}

func TestValidate_AuthWithoutToken(t *testing.T) {
	cfg := validConfig()
	cfg.Auth.Enabled = true

	err := validate(cfg)
	if err == nil {
		t.Fatal("expected error for auth without token")
	}
	if !strings.Contains(err.Error(), "auth.token") {
		t.Errorf("error should mention auth.token: %v", err)
	}
}

func TestValidate_LogsDirRequiredWhenEnabled(t *testing.T) {
	cfg := validConfig()
	cfg.Logs.Dir = ""

	if err := validate(cfg); err == nil {
		t.Fatal("expected error for empty logs.dir")
	}

	cfg.Logs.Enabled = false
	if err := validate(cfg); err != nil {
		t.Fatalf("disabled tailer should not require dir: %v", err)
	}
}

func TestValidate_TracingExporter(t *testing.T) {
	cfg := validConfig()
	cfg.Tracing.Enabled = true
	cfg.Tracing.Exporter = "jaeger"

	err := validate(cfg)
	if err == nil {
		t.Fatal("expected error for unknown exporter")
	}
	if !strings.Contains(err.Error(), "tracing.exporter") {
		t.Errorf("error should mention tracing.exporter: %v", err)
	}
}

func TestValidate_SampleRateRange(t *testing.T) {
	cfg := validConfig()
	cfg.Tracing.SampleRate = 1.5

	if err := validate(cfg); err == nil {
		t.Fatal("expected error for sample rate > 1")
	}
}

func TestValidate_RateLimit(t *testing.T) {
	cfg := validConfig()
	cfg.RateLimit.Rate = 0
	if err := validate(cfg); err != nil {
		t.Fatalf("disabled rate limit should not be validated: %v", err)
	}

	cfg.RateLimit.Enabled = true
	cfg.RateLimit.Burst = 0
	err := validate(cfg)
	if err == nil {
		t.Fatal("expected error for zero rate and burst")
	}
	for _, want := range []string{"rate_limit.rate", "rate_limit.burst"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error should mention %s: %v", want, err)
		}
	}
}

func TestValidate_AggregatesErrors(t *testing.T) {
	cfg := validConfig()
	cfg.Server.Port = 0
	cfg.Database.MaxOpenConns = 0
	cfg.Tools.CheckTimeout = -1

	err := validate(cfg)
	if err == nil {
		t.Fatal("expected error")
	}
	if n := strings.Count(err.Error(), "\n  - "); n != 3 {
		t.Errorf("expected 3 aggregated problems, got %d: %v", n, err)
	}
}

func TestIsValidEnum(t *testing.T) {
	if !isValidEnum("POSTGRES", ValidDrivers) {
		t.Error("isValidEnum should be case-insensitive")
	}
	if isValidEnum("", ValidDrivers) {
		t.Error("empty string should not be valid")
	}
}
