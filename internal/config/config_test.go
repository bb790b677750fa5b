package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoad_WithExplicitFile(t *testing.T) {
	dir := t.TempDir()
	configPath := writeConfig(t, dir, "test.toml", `
[server]
port = 9090
log_level = "debug"
data_dir = "`+dir+`"

[database]
driver = "sqlite"
path = "`+filepath.Join(dir, "x.db")+`"
seed_sample_data = false

[logs]
dir = "`+dir+`"
poll_interval_ms = 250

[dashboard]
allowed_origins = ["http://localhost:5173"]
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Port: got %d, want 9090", cfg.Server.Port)
	}
	if cfg.Server.LogLevel != "debug" {
		t.Errorf("LogLevel: got %q, want %q", cfg.Server.LogLevel, "debug")
	}
	if cfg.Database.SeedSampleData {
		t.Error("SeedSampleData: got true, want false")
	}
	if got := cfg.DatabasePath(); got != filepath.Join(dir, "x.db") {
		t.Errorf("DatabasePath: got %q", got)
	}
	if got := cfg.Logs.PollInterval(); got != 250*time.Millisecond {
		t.Errorf("PollInterval: got %v, want 250ms", got)
	}
	if len(cfg.Dashboard.AllowedOrigins) != 1 || cfg.Dashboard.AllowedOrigins[0] != "http://localhost:5173" {
		t.Errorf("AllowedOrigins: got %v", cfg.Dashboard.AllowedOrigins)
	}
	if ConfigFilePath() != configPath {
		t.Errorf("ConfigFilePath: got %q, want %q", ConfigFilePath(), configPath)
	}
	if Get() != cfg {
		t.Error("Get should return the loaded config")
	}

	loadedConfigFile.Store("")
	set(DefaultConfig())
}

func TestLoad_EnvOverride(t *testing.T) {
	dir := t.TempDir()
	configPath := writeConfig(t, dir, "test.toml", `
[server]
port = 8000
log_level = "info"
data_dir = "`+dir+`"
`)

	t.Setenv("CROVEST_SERVER_PORT", "8888")
	t.Setenv("CROVEST_DATABASE_BOT_LOG_RETENTION_DAYS", "7")

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 8888 {
		t.Errorf("Port with env override: got %d, want 8888", cfg.Server.Port)
	}
	if cfg.Database.BotLogRetentionDays != 7 {
		t.Errorf("BotLogRetentionDays with env override: got %d, want 7", cfg.Database.BotLogRetentionDays)
	}

	loadedConfigFile.Store("")
	set(DefaultConfig())
}

func TestLoad_ValidationFailure_BadPort(t *testing.T) {
	dir := t.TempDir()
	configPath := writeConfig(t, dir, "bad.toml", `
[server]
port = 0
data_dir = "`+dir+`"
`)

	_, err := Load(configPath)
	if err == nil {
		t.Fatal("expected validation error for port 0")
	}
}

func TestLoad_ValidationFailure_PostgresWithoutDSN(t *testing.T) {
	dir := t.TempDir()
	configPath := writeConfig(t, dir, "pg.toml", `
[server]
data_dir = "`+dir+`"

[database]
driver = "postgres"
`)

	_, err := Load(configPath)
	if err == nil {
		t.Fatal("expected validation error for postgres without dsn")
	}
	if !strings.Contains(err.Error(), "database.dsn") {
		t.Errorf("error should mention database.dsn: %v", err)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Server.Port != DefaultPort {
		t.Errorf("Port: got %d, want %d", cfg.Server.Port, DefaultPort)
	}
	if cfg.Database.Driver != "sqlite" {
		t.Errorf("Driver: got %q, want sqlite", cfg.Database.Driver)
	}
	if cfg.Tools.RetryMaxAttempts != DefaultRetryMaxAttempts {
		t.Errorf("RetryMaxAttempts: got %d, want %d", cfg.Tools.RetryMaxAttempts, DefaultRetryMaxAttempts)
	}
	if !cfg.Dashboard.Enabled {
		t.Error("Dashboard.Enabled: got false, want true")
	}
	if cfg.Server.MaxBodySize != DefaultMaxBodySize {
		t.Errorf("MaxBodySize: got %d, want %d", cfg.Server.MaxBodySize, DefaultMaxBodySize)
	}
	if cfg.Server.Addr() != "0.0.0.0:8000" {
		t.Errorf("Addr: got %q", cfg.Server.Addr())
	}
}

func TestToolsConfig_Durations(t *testing.T) {
	tests := []struct {
		timeout int
		wantSec int
	}{
		{0, DefaultToolCheckTimeout},
		{-1, DefaultToolCheckTimeout},
		{60, 60},
		{5, 5},
	}

	for _, tt := range tests {
		tc := ToolsConfig{CheckTimeout: tt.timeout}
		got := tc.TimeoutDuration().Seconds()
		if int(got) != tt.wantSec {
			t.Errorf("TimeoutDuration(%d): got %v, want %ds", tt.timeout, got, tt.wantSec)
		}
	}

	if got := (ToolsConfig{}).IntervalDuration(); got != time.Duration(DefaultToolCheckInterval)*time.Second {
		t.Errorf("IntervalDuration default: got %v", got)
	}
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	if got := ExpandHome("~/logs"); got != filepath.Join(home, "logs") {
		t.Errorf("ExpandHome: got %q", got)
	}
	if got := ExpandHome("/var/log"); got != "/var/log" {
		t.Errorf("ExpandHome absolute: got %q", got)
	}
}

func TestConfigFilePath_BeforeLoad(t *testing.T) {
	loadedConfigFile.Store("")
	if path := ConfigFilePath(); path != "" {
		t.Errorf("ConfigFilePath before load: got %q, want empty", path)
	}
}

func TestExportConfig(t *testing.T) {
	dir := t.TempDir()
	exportPath := filepath.Join(dir, "exported.toml")

	set(DefaultConfig())

	if err := ExportConfig(exportPath); err != nil {
		t.Fatalf("ExportConfig: %v", err)
	}

	data, err := os.ReadFile(exportPath)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.Contains(string(data), "bot_log_retention_days") {
		t.Errorf("exported config missing database keys:\n%s", data)
	}
}

func TestImportConfig(t *testing.T) {
	loadedConfigFile.Store("")
	dir := t.TempDir()
	importPath := writeConfig(t, dir, "import.toml", `
[server]
port = 9999
log_level = "warn"
data_dir = "`+dir+`"
`)

	if err := ImportConfig(importPath); err != nil {
		t.Fatalf("ImportConfig: %v", err)
	}

	cfg := Get()
	if cfg.Server.Port != 9999 {
		t.Errorf("Port after import: got %d, want 9999", cfg.Server.Port)
	}
	// Sections absent from the file keep their defaults.
	if cfg.Logs.Pattern != DefaultLogPattern {
		t.Errorf("Logs.Pattern after import: got %q", cfg.Logs.Pattern)
	}

	set(DefaultConfig())
}

func TestWatch_ReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	configPath := writeConfig(t, dir, "watch.toml", `
[server]
log_level = "info"
data_dir = "`+dir+`"
`)
	if _, err := Load(configPath); err != nil {
		t.Fatalf("Load: %v", err)
	}

	w, err := Watch(configPath)
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	defer w.Close()

	changed := make(chan string, 1)
	w.OnChange(func(_, n *Config) {
		select {
		case changed <- n.Server.LogLevel:
		default:
		}
	})

	writeConfig(t, dir, "watch.toml", `
[server]
log_level = "debug"
data_dir = "`+dir+`"
`)

	select {
	case lvl := <-changed:
		if lvl != "debug" {
			t.Errorf("reloaded log level: got %q, want debug", lvl)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for reload")
	}

	loadedConfigFile.Store("")
	set(DefaultConfig())
}

func TestWatch_EmptyPath(t *testing.T) {
	if _, err := Watch(""); err == nil {
		t.Fatal("expected error for empty path")
	}
}
