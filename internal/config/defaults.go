package config

// DefaultBindAddress is the default bind address.
const DefaultBindAddress = "0.0.0.0"

// DefaultPort is the default port for the API and dashboard.
const DefaultPort = 8000

// DefaultLogLevel is the default log level.
const DefaultLogLevel = "info"

// DefaultDataDir is the default data directory (before tilde expansion).
const DefaultDataDir = "~/.crovest"

// DefaultConfigFilename is the name of the config file.
const DefaultConfigFilename = "crovest.toml"

// DefaultDatabaseFilename is the SQLite file created inside the data directory.
const DefaultDatabaseFilename = "crovest.db"

// DefaultReadTimeout is the default HTTP server read timeout in seconds.
const DefaultReadTimeout = 10

// DefaultWriteTimeout is the default HTTP server write timeout in seconds.
const DefaultWriteTimeout = 30

// DefaultIdleTimeout is the default HTTP server idle timeout in seconds.
const DefaultIdleTimeout = 120

// DefaultMaxBodySize is the default maximum request body size in bytes (1 MB).
const DefaultMaxBodySize = 1 << 20

// DefaultMaxOpenConns is the default reader pool size.
const DefaultMaxOpenConns = 4

// DefaultBotLogRetentionDays is how long bot_logs rows are kept.
const DefaultBotLogRetentionDays = 30

// DefaultLogDir is the directory tailed for *.log files.
const DefaultLogDir = "~/logs"

// DefaultLogPattern is the glob matched inside the log directory.
const DefaultLogPattern = "*.log"

// DefaultLogPollIntervalMs is the tailer's polling fallback interval.
const DefaultLogPollIntervalMs = 1000

// DefaultMaxTrackedFiles bounds the tailer's offset table.
const DefaultMaxTrackedFiles = 256

// DefaultToolCheckInterval is the tool check interval in seconds.
const DefaultToolCheckInterval = 300

// DefaultToolCheckTimeout is the per-check timeout in seconds.
const DefaultToolCheckTimeout = 10

// DefaultRetryMaxAttempts is the default number of attempts per tool check.
const DefaultRetryMaxAttempts = 3

// DefaultRetryBaseDelayMs is the default base delay for exponential backoff in milliseconds.
const DefaultRetryBaseDelayMs = 500

// DefaultRetryMaxDelayMs is the default maximum delay for exponential backoff in milliseconds.
const DefaultRetryMaxDelayMs = 10000

// DefaultTracingExporter is the default tracing exporter type.
const DefaultTracingExporter = "otlp-grpc"

// DefaultTracingEndpoint is the default OTLP collector endpoint.
const DefaultTracingEndpoint = "localhost:4317"

// DefaultTracingServiceName is the default service name for traces.
const DefaultTracingServiceName = "crovest"

// DefaultTracingSampleRate is the default sampling rate (1.0 = 100%).
const DefaultTracingSampleRate = 1.0

// DefaultRateLimit is the steady request rate allowed per client, per second.
const DefaultRateLimit = 20.0

// DefaultRateLimitBurst is the number of requests a client may send at once.
const DefaultRateLimitBurst = 40

// DefaultRateLimitMaxClients bounds the number of tracked client buckets.
const DefaultRateLimitMaxClients = 1024

// ValidLogLevels lists the allowed log level values.
var ValidLogLevels = []string{"trace", "debug", "info", "warn", "error", "fatal"}

// ValidDrivers lists the supported database drivers.
var ValidDrivers = []string{"sqlite", "postgres"}

// ValidTracingExporters lists the supported span exporters.
var ValidTracingExporters = []string{"stdout", "otlp-grpc", "otlp-http"}

// DefaultConfig returns a Config populated with all default values.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			BindAddress:  DefaultBindAddress,
			Port:         DefaultPort,
			LogLevel:     DefaultLogLevel,
			DataDir:      DefaultDataDir,
			ReadTimeout:  DefaultReadTimeout,
			WriteTimeout: DefaultWriteTimeout,
			IdleTimeout:  DefaultIdleTimeout,
			MaxBodySize:  DefaultMaxBodySize,
		},
		Auth: AuthConfig{
			Enabled: false,
		},
		Database: DatabaseConfig{
			Driver:              "sqlite",
			MaxOpenConns:        DefaultMaxOpenConns,
			SeedSampleData:      true,
			BotLogRetentionDays: DefaultBotLogRetentionDays,
		},
		Logs: LogsConfig{
			Enabled:         true,
			Dir:             DefaultLogDir,
			Pattern:         DefaultLogPattern,
			PollIntervalMs:  DefaultLogPollIntervalMs,
			MaxTrackedFiles: DefaultMaxTrackedFiles,
		},
		Tools: ToolsConfig{
			CheckEnabled:     true,
			CheckInterval:    DefaultToolCheckInterval,
			CheckTimeout:     DefaultToolCheckTimeout,
			RetryMaxAttempts: DefaultRetryMaxAttempts,
			RetryBaseDelayMs: DefaultRetryBaseDelayMs,
			RetryMaxDelayMs:  DefaultRetryMaxDelayMs,
		},
		Dashboard: DashboardConfig{
			Enabled:        true,
			AllowedOrigins: []string{"*"},
		},
		Tracing: TracingConfig{
			Enabled:     false,
			Exporter:    DefaultTracingExporter,
			Endpoint:    DefaultTracingEndpoint,
			ServiceName: DefaultTracingServiceName,
			SampleRate:  DefaultTracingSampleRate,
			Insecure:    false,
		},
		RateLimit: RateLimitConfig{
			Enabled:    false,
			Rate:       DefaultRateLimit,
			Burst:      DefaultRateLimitBurst,
			MaxClients: DefaultRateLimitMaxClients,
		},
	}
}
