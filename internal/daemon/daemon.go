// Package daemon runs the command center as a long-lived process and
// controls a running instance through the record in its PID file.
package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/crovest/command-center/internal/api"
	"github.com/crovest/command-center/internal/config"
	"github.com/crovest/command-center/internal/logstream"
	"github.com/crovest/command-center/internal/metrics"
	"github.com/crovest/command-center/internal/seed"
	"github.com/crovest/command-center/internal/store"
	"github.com/crovest/command-center/internal/toolcheck"
	"github.com/crovest/command-center/internal/tracing"
	"github.com/crovest/command-center/internal/vault"
	"github.com/crovest/command-center/internal/version"
)

const (
	logFilename     = "crovest.log"
	shutdownTimeout = 30 * time.Second
	pruneInterval   = time.Hour
)

// Run is the main daemon orchestrator. It initialises all subsystems,
// starts the HTTP server, and blocks until a shutdown signal is received.
func Run(cfg *config.Config, foreground bool) error {
	// 1. Logger.
	dataDir := config.ExpandHome(cfg.Server.DataDir)
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return fmt.Errorf("creating data directory %s: %w", dataDir, err)
	}

	logFile, err := setupLogger(dataDir, cfg.Server.LogLevel, foreground)
	if err != nil {
		return err
	}
	defer logFile.Close()

	log.Info().
		Str("version", version.Version).
		Str("data_dir", dataDir).
		Bool("foreground", foreground).
		Msg("crovest starting")

	// 2. Refuse to start twice.
	if inst, ok := liveInstance(dataDir); ok {
		return fmt.Errorf("crovest is already running (PID %d on %s)", inst.PID, inst.Addr)
	}

	// 3. Secrets and store.
	v := vault.New()
	st, err := OpenStore(context.Background(), cfg, v)
	if err != nil {
		return err
	}
	defer st.Close()

	authToken, err := v.Resolve(cfg.Auth.Token, cfg.Auth.TokenRef)
	if err != nil {
		return fmt.Errorf("resolving auth token: %w", err)
	}
	if cfg.Auth.Enabled && authToken == "" {
		return errors.New("auth is enabled but no token is configured")
	}

	if cfg.Database.SeedSampleData {
		if _, err := seed.ApplyIfEmpty(context.Background(), st, time.Now()); err != nil {
			log.Warn().Err(err).Msg("seeding sample data failed")
		}
	}

	// 4. Config watcher.
	if w := startWatcher(dataDir); w != nil {
		defer w.Close()
	}

	// 5. Tracing.
	if cfg.Tracing.Enabled {
		setup := tracing.Setup{Version: version.Version}
		if !foreground {
			setup.Output = logFile
		}
		shutdown, err := tracing.Init(context.Background(), cfg.Tracing, setup)
		if err != nil {
			log.Warn().Err(err).Msg("tracing disabled: initialisation failed")
		} else {
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(ctx); err != nil {
					log.Error().Err(err).Msg("tracing shutdown error")
				}
			}()
			log.Info().Str("exporter", cfg.Tracing.Exporter).Msg("tracing enabled")
		}
	}

	// 6. Background workers.
	bgCtx, bgCancel := context.WithCancel(context.Background())
	defer bgCancel()

	hub := logstream.NewHub()
	collector := metrics.NewCollector()
	workers := newGroup()

	workers.Go("bot log pruner", func() {
		runPruner(bgCtx, st, cfg.Database.BotLogRetentionDays)
	})

	var tailer *logstream.Tailer
	if cfg.Logs.Enabled {
		tailer, err = logstream.NewTailer(logstream.TailerConfig{
			Dir:             config.ExpandHome(cfg.Logs.Dir),
			Pattern:         cfg.Logs.Pattern,
			PollInterval:    cfg.Logs.PollInterval(),
			MaxTrackedFiles: cfg.Logs.MaxTrackedFiles,
		}, hub)
		if err != nil {
			log.Warn().Err(err).Msg("log tailer disabled")
			tailer = nil
		} else {
			workers.Go("log tailer", func() {
				if err := tailer.Run(bgCtx); err != nil {
					log.Error().Err(err).Msg("log tailer stopped")
				}
			})
		}
	}

	var checker *toolcheck.Checker
	if cfg.Tools.CheckEnabled {
		checker = toolcheck.New(st, toolcheck.Config{
			Interval: cfg.Tools.IntervalDuration(),
			Timeout:  cfg.Tools.TimeoutDuration(),
			Retry: toolcheck.RetryPolicy{
				MaxAttempts: cfg.Tools.RetryMaxAttempts,
				BaseDelay:   time.Duration(cfg.Tools.RetryBaseDelayMs) * time.Millisecond,
				MaxDelay:    time.Duration(cfg.Tools.RetryMaxDelayMs) * time.Millisecond,
			},
		}, nil)
		workers.Go("tool checker", func() { checker.Run(bgCtx) })
	}

	registerSources(collector, hub, tailer, checker)

	// 7. HTTP server and the PID file recording where it listens.
	srv := api.NewServer(api.Options{
		Config:    cfg,
		Store:     st,
		Hub:       hub,
		Collector: collector,
		AuthToken: authToken,
	})

	pid := os.Getpid()
	if err := writeInstance(dataDir, instance{
		PID:       pid,
		Addr:      srv.Addr(),
		Version:   version.Version,
		StartedAt: time.Now().UTC(),
	}); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer func() {
		if err := releaseInstance(dataDir, pid); err != nil {
			log.Error().Err(err).Msg("failed to remove PID file")
		}
	}()
	log.Info().Int("pid", pid).Str("file", instancePath(dataDir)).Msg("PID file written")

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr()).Msg("api server starting")
		if err := srv.Start(); err != nil {
			errCh <- err
		}
	}()

	log.Info().Int("port", cfg.Server.Port).Str("driver", string(st.Dialect())).Msg("crovest is ready")
	if foreground {
		fmt.Printf("\n  Crovest Command Center is running!\n")
		if cfg.Dashboard.Enabled {
			fmt.Printf("  Dashboard: http://localhost:%d\n", cfg.Server.Port)
		}
		fmt.Printf("  API:       http://localhost:%d/api\n\n", cfg.Server.Port)
	}

	// 8. Wait for shutdown signal or fatal error.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	var runErr error
	select {
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("shutdown signal received")
	case runErr = <-errCh:
		log.Error().Err(runErr).Msg("fatal server error")
	}

	// 9. Graceful shutdown. Closing the hub ends open log streams so the
	// server is not left waiting on them.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	log.Info().Msg("shutting down...")
	hub.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("api server shutdown error")
	}

	// 10. Wait for background goroutines before closing the store.
	bgCancel()
	workers.Wait(shutdownCtx)
	st.Close()

	log.Info().Msg("crovest stopped")
	return runErr
}

// OpenStore opens the configured backend, resolving the DSN through the
// vault when a reference is set.
func OpenStore(ctx context.Context, cfg *config.Config, v *vault.Vault) (*store.Store, error) {
	dsn, err := v.Resolve(cfg.Database.DSN, cfg.Database.DSNRef)
	if err != nil {
		return nil, fmt.Errorf("resolving database DSN: %w", err)
	}

	st, err := store.Open(ctx, store.Options{
		Driver:       cfg.Database.Driver,
		Path:         cfg.DatabasePath(),
		DSN:          dsn,
		MaxOpenConns: cfg.Database.MaxOpenConns,
	})
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	ev := log.Info().Str("driver", string(st.Dialect()))
	if st.Dialect() == store.DialectSQLite {
		ev = ev.Str("db_path", st.Path())
	}
	ev.Msg("store opened")
	return st, nil
}

// setupLogger points the global logger at <dataDir>/crovest.log and, in
// the foreground, at the console as well.
func setupLogger(dataDir, level string, foreground bool) (*os.File, error) {
	zerolog.SetGlobalLevel(parseLogLevel(level))

	logPath := filepath.Join(dataDir, logFilename)
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("opening log file %s: %w", logPath, err)
	}

	writers := []io.Writer{logFile}
	if foreground {
		writers = append(writers, zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: "15:04:05",
		})
	}

	multi := zerolog.MultiLevelWriter(writers...)
	log.Logger = zerolog.New(multi).With().Timestamp().Str("service", "crovest").Logger()
	return logFile, nil
}

// startWatcher hot-reloads the config file when there is one. Only the log
// level is re-applied live; other changes need a restart.
func startWatcher(dataDir string) *config.Watcher {
	configFile := config.ConfigFilePath()
	if configFile == "" {
		configFile = filepath.Join(dataDir, config.DefaultConfigFilename)
	}
	if _, err := os.Stat(configFile); err != nil {
		return nil
	}

	w, err := config.Watch(configFile)
	if err != nil {
		log.Warn().Err(err).Msg("failed to start config watcher; continuing without hot-reload")
		return nil
	}
	w.OnChange(func(old, newCfg *config.Config) {
		log.Info().Msg("configuration reloaded")
		zerolog.SetGlobalLevel(parseLogLevel(newCfg.Server.LogLevel))
		if old.Server.Port != newCfg.Server.Port || old.Database != newCfg.Database {
			log.Warn().Msg("server and database changes take effect after a restart")
		}
	})
	log.Info().Str("file", configFile).Msg("config watcher started")
	return w
}

// registerSources exposes worker counters through the metrics collector.
func registerSources(c *metrics.Collector, hub *logstream.Hub, tailer *logstream.Tailer, checker *toolcheck.Checker) {
	c.Register("crovest_ws_clients", "Connected log stream clients.", "gauge",
		func() int64 { return int64(hub.Len()) })
	c.Register("crovest_log_entries_published_total", "Entries published to the log stream.", "counter",
		func() int64 { return hub.Stats().Published })
	c.Register("crovest_log_entries_dropped_total", "Entries dropped for slow log stream clients.", "counter",
		func() int64 { return hub.Stats().Dropped })

	if tailer != nil {
		c.Register("crovest_log_lines_total", "Lines read from tailed log files.", "counter",
			tailer.LinesPublished)
	}
	if checker != nil {
		c.Register("crovest_tool_checks_total", "Tool health checks run.", "counter",
			func() int64 { return checker.Stats().Checks })
		c.Register("crovest_tool_check_failures_total", "Tool health checks that failed.", "counter",
			func() int64 { return checker.Stats().Failures })
	}
}

// stopWait bounds how long Stop waits for the daemon to exit.
var stopWait = 3 * time.Second

// Stop sends SIGTERM to the daemon recorded in dataDir and returns its PID.
// A record left by a dead process is removed and ErrNotRunning returned.
func Stop(dataDir string) (int, error) {
	inst, err := readInstance(dataDir)
	if errors.Is(err, os.ErrNotExist) {
		return 0, ErrNotRunning
	}
	if err != nil || !processAlive(inst.PID) {
		if rmErr := removeInstance(dataDir); rmErr != nil {
			return 0, rmErr
		}
		return 0, fmt.Errorf("%w (stale PID file removed)", ErrNotRunning)
	}

	process, err := os.FindProcess(inst.PID)
	if err != nil {
		return 0, fmt.Errorf("finding process %d: %w", inst.PID, err)
	}
	if err := process.Signal(syscall.SIGTERM); err != nil {
		return 0, fmt.Errorf("sending SIGTERM to process %d: %w", inst.PID, err)
	}

	deadline := time.Now().Add(stopWait)
	for time.Now().Before(deadline) {
		if !processAlive(inst.PID) {
			break
		}
		time.Sleep(100 * time.Millisecond)
	}
	return inst.PID, nil
}

// Status prints whether a daemon owns the configured data directory and,
// if so, the stats it serves on its recorded address.
func Status(w io.Writer, cfg *config.Config) error {
	dataDir := config.ExpandHome(cfg.Server.DataDir)

	inst, ok := liveInstance(dataDir)
	if !ok {
		color.New(color.FgYellow).Fprintln(w, "crovest is not running")
		return nil
	}

	color.New(color.FgGreen).Fprintf(w, "crovest is running (PID %d, listening on %s)\n", inst.PID, inst.Addr)
	fmt.Fprintf(w, "  version %s, started %s\n", inst.Version, inst.StartedAt.Local().Format(time.DateTime))

	var token string
	if cfg.Auth.Enabled {
		token, _ = vault.New().Resolve(cfg.Auth.Token, cfg.Auth.TokenRef)
	}
	stats, err := fetchStats(inst.dialAddr(), token)
	if err != nil {
		fmt.Fprintf(w, "  (api unreachable: %v)\n", err)
		return nil
	}
	printStats(w, stats)
	return nil
}

func fetchStats(addr, token string) (*metrics.Stats, error) {
	req, err := http.NewRequest(http.MethodGet, "http://"+addr+"/api/stats", nil)
	if err != nil {
		return nil, err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	client := &http.Client{Timeout: 3 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var stats metrics.Stats
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		return nil, fmt.Errorf("decoding stats: %w", err)
	}
	return &stats, nil
}

func printStats(w io.Writer, stats *metrics.Stats) {
	label := color.New(color.Faint).SprintFunc()
	errs := fmt.Sprint(stats.ServerErrors)
	if stats.ServerErrors > 0 {
		errs = color.RedString(errs)
	}

	fmt.Fprintf(w, "\n  %s %s\n", label("Uptime:        "), stats.Uptime)
	fmt.Fprintf(w, "  %s %d\n", label("Requests:      "), stats.TotalRequests)
	fmt.Fprintf(w, "  %s %d\n", label("Active:        "), stats.ActiveRequests)
	fmt.Fprintf(w, "  %s %d\n", label("Mutations:     "), stats.Mutations)
	fmt.Fprintf(w, "  %s %s\n", label("Server errors: "), errs)
	if n, ok := stats.Components["crovest_ws_clients"]; ok {
		fmt.Fprintf(w, "  %s %d\n", label("Log clients:   "), n)
	}
	if n, ok := stats.Components["crovest_tool_checks_total"]; ok {
		fmt.Fprintf(w, "  %s %d (%d failed)\n", label("Tool checks:   "), n,
			stats.Components["crovest_tool_check_failures_total"])
	}
	fmt.Fprintln(w)
}

// runPruner deletes bot logs older than retentionDays once at start and
// then every hour.
func runPruner(ctx context.Context, st *store.Store, retentionDays int) {
	if retentionDays <= 0 {
		return
	}

	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()

	for {
		pruneOnce(ctx, st, retentionDays)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func pruneOnce(ctx context.Context, st *store.Store, retentionDays int) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("bot log pruner: recovered from panic")
		}
	}()

	ctx, span := tracing.StartJobSpan(ctx, "prune_bot_logs")
	defer span.End()

	n, err := st.PruneBotLogs(ctx, retentionDays)
	if err != nil {
		if ctx.Err() == nil {
			tracing.RecordError(ctx, err)
			log.Error().Err(err).Msg("bot log pruning failed")
		}
		return
	}
	if n > 0 {
		log.Info().Int64("rows", n).Int("retention_days", retentionDays).Msg("pruned old bot logs")
	}
}

// parseLogLevel converts a string log level to a zerolog.Level.
func parseLogLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	default:
		return zerolog.InfoLevel
	}
}
