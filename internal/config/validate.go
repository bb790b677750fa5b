package config

import (
	"fmt"
	"strings"
)

// validate checks the Config for invalid or out-of-range values.
// It returns a combined error if any checks fail.
func validate(cfg *Config) error {
	var errs []string

	// Server validation
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be between 1 and 65535, got %d", cfg.Server.Port))
	}
	if !isValidEnum(cfg.Server.LogLevel, ValidLogLevels) {
		errs = append(errs, fmt.Sprintf("server.log_level must be one of %v, got %q", ValidLogLevels, cfg.Server.LogLevel))
	}
	if cfg.Server.DataDir == "" {
		errs = append(errs, "server.data_dir must not be empty")
	}
	if cfg.Server.ReadTimeout < 0 {
		errs = append(errs, fmt.Sprintf("server.read_timeout must be non-negative, got %d", cfg.Server.ReadTimeout))
	}
	if cfg.Server.WriteTimeout < 0 {
		errs = append(errs, fmt.Sprintf("server.write_timeout must be non-negative, got %d", cfg.Server.WriteTimeout))
	}
	if cfg.Server.IdleTimeout < 0 {
		errs = append(errs, fmt.Sprintf("server.idle_timeout must be non-negative, got %d", cfg.Server.IdleTimeout))
	}
	if cfg.Server.MaxBodySize < 0 {
		errs = append(errs, fmt.Sprintf("server.max_body_size must be non-negative, got %d", cfg.Server.MaxBodySize))
	}

	// Auth validation
	if cfg.Auth.Enabled && cfg.Auth.Token == "" && cfg.Auth.TokenRef == "" {
		errs = append(errs, "auth.token or auth.token_ref must be set when auth.enabled is true")
	}

	// Database validation
	if !isValidEnum(cfg.Database.Driver, ValidDrivers) {
		errs = append(errs, fmt.Sprintf("database.driver must be one of %v, got %q", ValidDrivers, cfg.Database.Driver))
	}
	if strings.EqualFold(cfg.Database.Driver, "postgres") && cfg.Database.DSN == "" && cfg.Database.DSNRef == "" {
		errs = append(errs, "database.dsn or database.dsn_ref must be set when database.driver is postgres")
	}
	if cfg.Database.MaxOpenConns < 1 {
		errs = append(errs, fmt.Sprintf("database.max_open_conns must be at least 1, got %d", cfg.Database.MaxOpenConns))
	}
	if cfg.Database.BotLogRetentionDays < 0 {
		errs = append(errs, fmt.Sprintf("database.bot_log_retention_days must be non-negative, got %d", cfg.Database.BotLogRetentionDays))
	}

	// Logs validation
	if cfg.Logs.Enabled && cfg.Logs.Dir == "" {
		errs = append(errs, "logs.dir must not be empty when logs.enabled is true")
	}
	if cfg.Logs.PollIntervalMs < 0 {
		errs = append(errs, fmt.Sprintf("logs.poll_interval_ms must be non-negative, got %d", cfg.Logs.PollIntervalMs))
	}
	if cfg.Logs.MaxTrackedFiles < 0 {
		errs = append(errs, fmt.Sprintf("logs.max_tracked_files must be non-negative, got %d", cfg.Logs.MaxTrackedFiles))
	}

	// Tools validation
	if cfg.Tools.CheckInterval < 0 {
		errs = append(errs, fmt.Sprintf("tools.check_interval must be non-negative, got %d", cfg.Tools.CheckInterval))
	}
	if cfg.Tools.CheckTimeout < 0 {
		errs = append(errs, fmt.Sprintf("tools.check_timeout must be non-negative, got %d", cfg.Tools.CheckTimeout))
	}
	if cfg.Tools.RetryMaxAttempts < 0 {
		errs = append(errs, fmt.Sprintf("tools.retry_max_attempts must be non-negative, got %d", cfg.Tools.RetryMaxAttempts))
	}
	if cfg.Tools.RetryBaseDelayMs < 0 {
		errs = append(errs, fmt.Sprintf("tools.retry_base_delay_ms must be non-negative, got %d", cfg.Tools.RetryBaseDelayMs))
	}
	if cfg.Tools.RetryMaxDelayMs < 0 {
		errs = append(errs, fmt.Sprintf("tools.retry_max_delay_ms must be non-negative, got %d", cfg.Tools.RetryMaxDelayMs))
	}

	// Tracing validation
	if cfg.Tracing.Enabled {
		if !isValidEnum(cfg.Tracing.Exporter, ValidTracingExporters) {
			errs = append(errs, fmt.Sprintf("tracing.exporter must be one of %v, got %q", ValidTracingExporters, cfg.Tracing.Exporter))
		}
		if cfg.Tracing.ServiceName == "" {
			errs = append(errs, "tracing.service_name must not be empty when tracing is enabled")
		}
	}
	if cfg.Tracing.SampleRate < 0 || cfg.Tracing.SampleRate > 1 {
		errs = append(errs, fmt.Sprintf("tracing.sample_rate must be between 0 and 1, got %f", cfg.Tracing.SampleRate))
	}

	// Rate limit validation
	if cfg.RateLimit.Enabled {
		if cfg.RateLimit.Rate <= 0 {
			errs = append(errs, fmt.Sprintf("rate_limit.rate must be positive, got %g", cfg.RateLimit.Rate))
		}
		if cfg.RateLimit.Burst < 1 {
			errs = append(errs, fmt.Sprintf("rate_limit.burst must be at least 1, got %d", cfg.RateLimit.Burst))
		}
	}
	if cfg.RateLimit.MaxClients < 0 {
		errs = append(errs, fmt.Sprintf("rate_limit.max_clients must be non-negative, got %d", cfg.RateLimit.MaxClients))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// isValidEnum returns true if val is in the allowed list (case-insensitive).
func isValidEnum(val string, allowed []string) bool {
	lower := strings.ToLower(val)
	for _, a := range allowed {
		if strings.ToLower(a) == lower {
			return true
		}
	}
	return false
}
