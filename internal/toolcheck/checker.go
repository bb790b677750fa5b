// Package toolcheck periodically checks the health URL of every registered
// tool and records the outcome in the store.
package toolcheck

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/crovest/command-center/internal/store"
	"github.com/crovest/command-center/internal/tracing"
)

// maxConcurrentChecks bounds how many tools are checked at once.
const maxConcurrentChecks = 4

// ToolStore is the subset of the store the checker needs.
type ToolStore interface {
	ListTools(ctx context.Context) ([]store.Tool, error)
	MarkToolHealthy(ctx context.Context, id int64) error
	RecordToolError(ctx context.Context, id int64, message string) (*store.Tool, error)
}

// Config configures a Checker.
type Config struct {
	Interval time.Duration
	Timeout  time.Duration
	Retry    RetryPolicy
}

// Stats counts check outcomes since start.
type Stats struct {
	Checks   int64 `json:"checks"`
	Failures int64 `json:"failures"`
}

// Checker checks tools on a fixed interval.
type Checker struct {
	store  ToolStore
	client *http.Client
	cfg    Config
	now    func() time.Time

	checks   atomic.Int64
	failures atomic.Int64
}

// New creates a checker. A nil client gets a default one.
func New(st ToolStore, cfg Config, client *http.Client) *Checker {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if client == nil {
		client = &http.Client{}
	}
	return &Checker{store: st, client: client, cfg: cfg, now: time.Now}
}

// Stats returns the check counters.
func (c *Checker) Stats() Stats {
	return Stats{Checks: c.checks.Load(), Failures: c.failures.Load()}
}

// Run checks all tools immediately and then every interval until ctx is done.
func (c *Checker) Run(ctx context.Context) {
	ticker := time.NewTicker(c.cfg.Interval)
	defer ticker.Stop()

	for {
		c.CheckAll(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// CheckAll checks every tool that has a check URL.
func (c *Checker) CheckAll(ctx context.Context) {
	tools, err := c.store.ListTools(ctx)
	if err != nil {
		if ctx.Err() == nil {
			log.Error().Err(err).Str("component", "toolcheck").Msg("listing tools failed")
		}
		return
	}

	sem := make(chan struct{}, maxConcurrentChecks)
	var wg sync.WaitGroup
	for _, t := range tools {
		if t.CheckURL == "" {
			continue
		}
		select {
		case <-ctx.Done():
			wg.Wait()
			return
		case sem <- struct{}{}:
		}
		wg.Add(1)
		go func(t store.Tool) {
			defer wg.Done()
			defer func() { <-sem }()
			c.checkAndRecord(ctx, t)
		}(t)
	}
	wg.Wait()
}

func (c *Checker) checkAndRecord(ctx context.Context, t store.Tool) {
	c.checks.Add(1)
	logger := log.With().Str("component", "toolcheck").Str("tool", t.Name).Logger()

	err := c.Check(ctx, t.CheckURL)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		c.failures.Add(1)
		if _, rerr := c.store.RecordToolError(ctx, t.ID, err.Error()); rerr != nil {
			logger.Error().Err(rerr).Msg("recording tool error failed")
		}
		logger.Warn().Err(err).Msg("tool check failed")
		return
	}
	if err := c.store.MarkToolHealthy(ctx, t.ID); err != nil {
		logger.Error().Err(err).Msg("marking tool healthy failed")
		return
	}
	logger.Debug().Msg("tool healthy")
}

// Check requests url with retries. Any status below 400 counts as healthy;
// network errors and 429/502/503/504 are retried.
func (c *Checker) Check(ctx context.Context, url string) error {
	var lastErr error
	attempts := c.cfg.Retry.attempts()

	for attempt := 0; attempt < attempts; attempt++ {
		status, hint, err := c.fetch(ctx, url, attempt)
		switch {
		case err != nil:
			lastErr = err
		case status < http.StatusBadRequest:
			return nil
		default:
			lastErr = fmt.Errorf("unexpected status %d", status)
			if !transientStatus(status) {
				return lastErr
			}
		}

		if attempt == attempts-1 {
			break
		}
		if err := sleepCtx(ctx, c.cfg.Retry.delay(attempt, hint)); err != nil {
			return err
		}
	}
	return lastErr
}

// fetch performs one GET bounded by the per-check timeout and returns the
// status code and any Retry-After hint.
func (c *Checker) fetch(ctx context.Context, url string, attempt int) (int, time.Duration, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	ctx, span := tracing.StartToolCheckSpan(ctx, url, attempt)
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("User-Agent", "crovest-toolcheck")
	tracing.InjectHeaders(ctx, req)

	resp, err := c.client.Do(req)
	if err != nil {
		tracing.RecordError(ctx, err)
		if errors.Is(err, context.DeadlineExceeded) {
			return 0, 0, fmt.Errorf("timed out after %s", c.cfg.Timeout)
		}
		return 0, 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	tracing.SetStatusCode(ctx, resp.StatusCode)

	return resp.StatusCode, retryAfter(resp, c.now()), nil
}
