package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
)

// configPtr holds the current config for thread-safe access.
var configPtr atomic.Pointer[Config]

// loadedConfigFile stores the path of the config file used by the last successful Load.
var loadedConfigFile atomic.Value

// Get returns the current Config. It is safe for concurrent use.
// If no config has been loaded yet, it returns the default config.
func Get() *Config {
	if c := configPtr.Load(); c != nil {
		return c
	}
	d := DefaultConfig()
	configPtr.Store(d)
	return d
}

// set stores a new Config atomically.
func set(cfg *Config) {
	configPtr.Store(cfg)
}

// Config is the top-level configuration for the command center.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"    toml:"server"`
	Auth      AuthConfig      `mapstructure:"auth"      toml:"auth"`
	Database  DatabaseConfig  `mapstructure:"database"  toml:"database"`
	Logs      LogsConfig      `mapstructure:"logs"      toml:"logs"`
	Tools     ToolsConfig     `mapstructure:"tools"     toml:"tools"`
	Dashboard DashboardConfig `mapstructure:"dashboard" toml:"dashboard"`
	Tracing   TracingConfig   `mapstructure:"tracing"   toml:"tracing"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit" toml:"rate_limit"`
}

// ServerConfig holds the core HTTP server settings.
type ServerConfig struct {
	BindAddress  string `mapstructure:"bind_address"  toml:"bind_address"`
	Port         int    `mapstructure:"port"          toml:"port"`
	LogLevel     string `mapstructure:"log_level"     toml:"log_level"`
	DataDir      string `mapstructure:"data_dir"      toml:"data_dir"`
	ReadTimeout  int    `mapstructure:"read_timeout"  toml:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout" toml:"write_timeout"`
	IdleTimeout  int    `mapstructure:"idle_timeout"  toml:"idle_timeout"`
	MaxBodySize  int64  `mapstructure:"max_body_size" toml:"max_body_size"`
}

// Addr returns the listen address in host:port form.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.BindAddress, s.Port)
}

// AuthConfig holds the optional bearer-token protection for /api routes.
// TokenRef takes precedence over Token and is resolved through the vault.
type AuthConfig struct {
	Enabled  bool   `mapstructure:"enabled"   toml:"enabled"`
	Token    string `mapstructure:"token"     toml:"token"`
	TokenRef string `mapstructure:"token_ref" toml:"token_ref"`
}

// DatabaseConfig selects and tunes the relational backend.
type DatabaseConfig struct {
	Driver               string `mapstructure:"driver"                  toml:"driver"` // "sqlite" or "postgres"
	Path                 string `mapstructure:"path"                    toml:"path"`   // sqlite file; empty means <data_dir>/crovest.db
	DSN                  string `mapstructure:"dsn"                     toml:"dsn"`
	DSNRef               string `mapstructure:"dsn_ref"                 toml:"dsn_ref"`
	MaxOpenConns         int    `mapstructure:"max_open_conns"          toml:"max_open_conns"`
	SeedSampleData       bool   `mapstructure:"seed_sample_data"        toml:"seed_sample_data"`
	BotLogRetentionDays  int    `mapstructure:"bot_log_retention_days"  toml:"bot_log_retention_days"`
}

// LogsConfig controls the log directory tailer behind /ws/logs.
type LogsConfig struct {
	Enabled         bool   `mapstructure:"enabled"           toml:"enabled"`
	Dir             string `mapstructure:"dir"               toml:"dir"`
	Pattern         string `mapstructure:"pattern"           toml:"pattern"`
	PollIntervalMs  int    `mapstructure:"poll_interval_ms"  toml:"poll_interval_ms"`
	MaxTrackedFiles int    `mapstructure:"max_tracked_files" toml:"max_tracked_files"`
}

// PollInterval returns the tailer polling interval as a time.Duration.
func (l LogsConfig) PollInterval() time.Duration {
	if l.PollIntervalMs <= 0 {
		return time.Duration(DefaultLogPollIntervalMs) * time.Millisecond
	}
	return time.Duration(l.PollIntervalMs) * time.Millisecond
}

// ToolsConfig controls the periodic tool health checker.
type ToolsConfig struct {
	CheckEnabled     bool `mapstructure:"check_enabled"        toml:"check_enabled"`
	CheckInterval    int  `mapstructure:"check_interval"       toml:"check_interval"` // seconds
	CheckTimeout     int  `mapstructure:"check_timeout"        toml:"check_timeout"`  // seconds
	RetryMaxAttempts int  `mapstructure:"retry_max_attempts"   toml:"retry_max_attempts"`
	RetryBaseDelayMs int  `mapstructure:"retry_base_delay_ms"  toml:"retry_base_delay_ms"`
	RetryMaxDelayMs  int  `mapstructure:"retry_max_delay_ms"   toml:"retry_max_delay_ms"`
}

// TimeoutDuration returns the per-check timeout as a time.Duration.
func (t ToolsConfig) TimeoutDuration() time.Duration {
	if t.CheckTimeout <= 0 {
		return time.Duration(DefaultToolCheckTimeout) * time.Second
	}
	return time.Duration(t.CheckTimeout) * time.Second
}

// IntervalDuration returns the check interval as a time.Duration.
func (t ToolsConfig) IntervalDuration() time.Duration {
	if t.CheckInterval <= 0 {
		return time.Duration(DefaultToolCheckInterval) * time.Second
	}
	return time.Duration(t.CheckInterval) * time.Second
}

// DashboardConfig controls the embedded web front end.
type DashboardConfig struct {
	Enabled        bool     `mapstructure:"enabled"         toml:"enabled"`
	AllowedOrigins []string `mapstructure:"allowed_origins" toml:"allowed_origins"`
}

// RateLimitConfig throttles /api requests per client address with a token
// bucket refilled at Rate requests per second.
type RateLimitConfig struct {
	Enabled    bool    `mapstructure:"enabled"     toml:"enabled"`
	Rate       float64 `mapstructure:"rate"        toml:"rate"`
	Burst      int     `mapstructure:"burst"       toml:"burst"`
	MaxClients int     `mapstructure:"max_clients" toml:"max_clients"`
}

// TracingConfig controls OpenTelemetry distributed tracing.
type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled"      toml:"enabled"`
	Exporter    string  `mapstructure:"exporter"     toml:"exporter"`     // "stdout", "otlp-grpc", "otlp-http"
	Endpoint    string  `mapstructure:"endpoint"     toml:"endpoint"`     // e.g. "localhost:4317"
	ServiceName string  `mapstructure:"service_name" toml:"service_name"` // defaults to "crovest"
	SampleRate  float64 `mapstructure:"sample_rate"  toml:"sample_rate"`  // 0.0 to 1.0
	Insecure    bool    `mapstructure:"insecure"     toml:"insecure"`
}

// Load reads configuration from disk with the following precedence:
//  1. Environment variables (CROVEST_ prefix, _ as separator), including
//     any defined in a .env file in the working directory
//  2. The file at explicitPath if non-empty
//  3. ~/.crovest/crovest.toml
//  4. ./crovest.toml
//  5. Built-in defaults
//
// The loaded config is validated and stored in the global atomic pointer.
func Load(explicitPath string) (*Config, error) {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigType("toml")

	setViperDefaults(v)

	// Environment variable overlay: CROVEST_SERVER_PORT etc.
	v.SetEnvPrefix("CROVEST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if explicitPath != "" {
		v.SetConfigFile(explicitPath)
	} else {
		homeDir, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(homeDir, ".crovest"))
		}
		v.AddConfigPath(".")
		v.SetConfigName("crovest")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	if cf := v.ConfigFileUsed(); cf != "" {
		loadedConfigFile.Store(cf)
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg, viper.DecodeHook(
		mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	)); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	cfg.Server.DataDir = ExpandHome(cfg.Server.DataDir)
	cfg.Logs.Dir = ExpandHome(cfg.Logs.Dir)
	cfg.Database.Path = ExpandHome(cfg.Database.Path)

	if err := validate(cfg); err != nil {
		return nil, err
	}

	set(cfg)
	return cfg, nil
}

// DatabasePath returns the SQLite file path, defaulting to crovest.db in the
// data directory.
func (c *Config) DatabasePath() string {
	if c.Database.Path != "" {
		return c.Database.Path
	}
	return filepath.Join(ExpandHome(c.Server.DataDir), DefaultDatabaseFilename)
}

// InitConfig writes the default configuration file to ~/.crovest/crovest.toml.
// If the file already exists it is not overwritten.
func InitConfig() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("determining home directory: %w", err)
	}

	dir := filepath.Join(homeDir, ".crovest")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	path := filepath.Join(dir, DefaultConfigFilename)
	if _, err := os.Stat(path); err == nil {
		fmt.Printf("Config already exists: %s\n", path)
		return nil
	}

	data, err := toml.Marshal(DefaultConfig())
	if err != nil {
		return fmt.Errorf("marshalling default config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	fmt.Printf("Config written to %s\n", path)
	return nil
}

// ExportConfig writes the current config to the given path in TOML format.
func ExportConfig(path string) error {
	data, err := toml.Marshal(Get())
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// ImportConfig reads a TOML config file and makes it the current config.
// The imported config is also persisted to the active config file so changes
// survive restarts.
func ImportConfig(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config: %w", err)
	}
	cfg := DefaultConfig()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing config: %w", err)
	}
	if err := validate(cfg); err != nil {
		return err
	}
	set(cfg)

	if dest := ConfigFilePath(); dest != "" {
		out, err := toml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("marshalling config for persistence: %w", err)
		}
		if err := os.WriteFile(dest, out, 0o600); err != nil {
			return fmt.Errorf("persisting imported config: %w", err)
		}
	}

	return nil
}

// ConfigFilePath returns the path of the config file that was loaded, or
// empty if no file was found.
func ConfigFilePath() string {
	if v, ok := loadedConfigFile.Load().(string); ok {
		return v
	}
	return ""
}

// setViperDefaults registers every known key with viper so that env var binding
// works for all fields even when no config file is present.
func setViperDefaults(v *viper.Viper) {
	d := DefaultConfig()

	// Server
	v.SetDefault("server.bind_address", d.Server.BindAddress)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.log_level", d.Server.LogLevel)
	v.SetDefault("server.data_dir", d.Server.DataDir)
	v.SetDefault("server.read_timeout", d.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", d.Server.WriteTimeout)
	v.SetDefault("server.idle_timeout", d.Server.IdleTimeout)
	v.SetDefault("server.max_body_size", d.Server.MaxBodySize)

	// Auth
	v.SetDefault("auth.enabled", d.Auth.Enabled)
	v.SetDefault("auth.token", d.Auth.Token)
	v.SetDefault("auth.token_ref", d.Auth.TokenRef)

	// Database
	v.SetDefault("database.driver", d.Database.Driver)
	v.SetDefault("database.path", d.Database.Path)
	v.SetDefault("database.dsn", d.Database.DSN)
	v.SetDefault("database.dsn_ref", d.Database.DSNRef)
	v.SetDefault("database.max_open_conns", d.Database.MaxOpenConns)
	v.SetDefault("database.seed_sample_data", d.Database.SeedSampleData)
	v.SetDefault("database.bot_log_retention_days", d.Database.BotLogRetentionDays)

	// Logs
	v.SetDefault("logs.enabled", d.Logs.Enabled)
	v.SetDefault("logs.dir", d.Logs.Dir)
	v.SetDefault("logs.pattern", d.Logs.Pattern)
	v.SetDefault("logs.poll_interval_ms", d.Logs.PollIntervalMs)
	v.SetDefault("logs.max_tracked_files", d.Logs.MaxTrackedFiles)

	// Tools
	v.SetDefault("tools.check_enabled", d.Tools.CheckEnabled)
	v.SetDefault("tools.check_interval", d.Tools.CheckInterval)
	v.SetDefault("tools.check_timeout", d.Tools.CheckTimeout)
	v.SetDefault("tools.retry_max_attempts", d.Tools.RetryMaxAttempts)
	v.SetDefault("tools.retry_base_delay_ms", d.Tools.RetryBaseDelayMs)
	v.SetDefault("tools.retry_max_delay_ms", d.Tools.RetryMaxDelayMs)

	// Dashboard
	v.SetDefault("dashboard.enabled", d.Dashboard.Enabled)
	v.SetDefault("dashboard.allowed_origins", d.Dashboard.AllowedOrigins)

	// Tracing
	v.SetDefault("tracing.enabled", d.Tracing.Enabled)
	v.SetDefault("tracing.exporter", d.Tracing.Exporter)
	v.SetDefault("tracing.endpoint", d.Tracing.Endpoint)
	v.SetDefault("tracing.service_name", d.Tracing.ServiceName)
	v.SetDefault("tracing.sample_rate", d.Tracing.SampleRate)
	v.SetDefault("tracing.insecure", d.Tracing.Insecure)

	// Rate limiting
	v.SetDefault("rate_limit.enabled", d.RateLimit.Enabled)
	v.SetDefault("rate_limit.rate", d.RateLimit.Rate)
	v.SetDefault("rate_limit.burst", d.RateLimit.Burst)
	v.SetDefault("rate_limit.max_clients", d.RateLimit.MaxClients)
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
