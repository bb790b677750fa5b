package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crovest/command-center/internal/config"
	"github.com/crovest/command-center/internal/logstream"
	"github.com/crovest/command-center/internal/metrics"
	"github.com/crovest/command-center/internal/store"
	"github.com/crovest/command-center/internal/testutil"
)

type testEnv struct {
	srv   *Server
	store *store.Store
	hub   *logstream.Hub
}

func newTestEnv(t *testing.T, mutate func(*config.Config, *Options)) *testEnv {
	t.Helper()

	st := testutil.NewTestStore(t)

	hub := logstream.NewHub()
	t.Cleanup(hub.Close)

	cfg := config.DefaultConfig()
	opts := Options{Config: cfg, Store: st, Hub: hub, Collector: metrics.NewCollector()}
	if mutate != nil {
		mutate(cfg, &opts)
	}

	srv := NewServer(opts)
	srv.now = testutil.Clock()
	return &testEnv{srv: srv, store: st, hub: hub}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	e.srv.Router().ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), "body: %s", w.Body.String())
	return v
}

func errorMessage(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[map[string]string](t, w)["error"]
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, "GET", "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode[map[string]string](t, w)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "2025-02-05T10:00:00Z", body["time"])
}

func TestHealth_DatabaseDown(t *testing.T) {
	env := newTestEnv(t, nil)
	require.NoError(t, env.store.Close())

	w := env.do(t, "GET", "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "degraded", decode[map[string]string](t, w)["status"])
}

func TestTodos_Lifecycle(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, "POST", "/api/todos", map[string]any{"title": "Ship release", "priority": 1})
	require.Equal(t, http.StatusOK, w.Code)
	created := decode[map[string]any](t, w)
	assert.Equal(t, "created", created["status"])
	assert.EqualValues(t, 1, created["id"])

	env.do(t, "POST", "/api/todos", map[string]any{"title": "Later"})

	w = env.do(t, "GET", "/api/todos", nil)
	require.Equal(t, http.StatusOK, w.Code)
	todos := decode[[]store.Todo](t, w)
	require.Len(t, todos, 2)
	assert.Equal(t, "Ship release", todos[0].Title)
	assert.Equal(t, store.DefaultTodoPriority, todos[1].Priority)

	w = env.do(t, "PATCH", "/api/todos/1", map[string]any{"status": "done"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, store.TodoDone, decode[store.Todo](t, w).Status)

	w = env.do(t, "GET", "/api/todos?status=active", nil)
	assert.Len(t, decode[[]store.Todo](t, w), 1)

	w = env.do(t, "DELETE", "/api/todos/1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "deleted", decode[map[string]string](t, w)["status"])

	w = env.do(t, "DELETE", "/api/todos/1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTodos_Validation(t *testing.T) {
	env := newTestEnv(t, nil)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
		msg    string
	}{
		{"missing title", "POST", "/api/todos", map[string]any{"priority": 2}, 400, "title is required"},
		{"priority out of range", "POST", "/api/todos", map[string]any{"title": "x", "priority": 9}, 400, "priority must be between 1 and 5"},
		{"malformed json", "POST", "/api/todos", `{"title":`, 400, "invalid JSON body"},
		{"bad status filter", "GET", "/api/todos?status=later", nil, 400, "status must be one of active, done"},
		{"bad id", "PATCH", "/api/todos/abc", map[string]any{"title": "x"}, 400, "invalid id"},
		{"empty patch", "PATCH", "/api/todos/1", map[string]any{}, 400, "No fields to update"},
	}

	env.do(t, "POST", "/api/todos", map[string]any{"title": "seed"})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.msg, errorMessage(t, w))
		})
	}
}

func TestTasks(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, "POST", "/api/tasks", map[string]any{"title": "Write docs", "priority": "high"})
	require.Equal(t, http.StatusCreated, w.Code)
	task := decode[store.Task](t, w)
	assert.Equal(t, "todo", task.Status)

	w = env.do(t, "PUT", "/api/tasks/1", map[string]any{"status": "in_progress"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "in_progress", decode[store.Task](t, w).Status)

	w = env.do(t, "PATCH", "/api/tasks/1", map[string]any{"status": "blocked"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, "PUT", "/api/tasks/1", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "No fields to update", errorMessage(t, w))

	w = env.do(t, "PUT", "/api/tasks/42", map[string]any{"title": "x"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, "DELETE", "/api/tasks/1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]string{"status": "deleted"}, decode[map[string]string](t, w))
}

func TestDecisions(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, "POST", "/api/decisions", map[string]any{"decision": "Move to Postgres", "context": "growth"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = env.do(t, "GET", "/api/decisions", nil)
	list := decode[[]store.Decision](t, w)
	require.Len(t, list, 1)
	assert.Equal(t, "growth", list[0].Context)

	w = env.do(t, "POST", "/api/decisions", map[string]any{"context": "no decision"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBotLogs_PublishToHub(t *testing.T) {
	env := newTestEnv(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	entries, _ := env.hub.Subscribe(ctx)

	w := env.do(t, "POST", "/api/bot-logs", map[string]any{"bot_name": "trader", "level": "warning", "message": "slow feed"})
	require.Equal(t, http.StatusCreated, w.Code)
	stored := decode[store.BotLog](t, w)
	assert.Equal(t, "WARNING", stored.Level)

	select {
	case e := <-entries:
		assert.Equal(t, logstream.TypeLog, e.Type)
		assert.Equal(t, "bot:trader", e.Source)
		assert.Equal(t, "slow feed", e.Message)
	case <-time.After(time.Second):
		t.Fatal("bot log was not published")
	}

	env.do(t, "POST", "/api/bot-logs", map[string]any{"bot_name": "backup", "message": "done"})
	w = env.do(t, "GET", "/api/bot-logs?bot=trader", nil)
	assert.Len(t, decode[[]store.BotLog](t, w), 1)

	w = env.do(t, "GET", "/api/bot-logs?limit=zero", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, "POST", "/api/bot-logs", map[string]any{"bot_name": "x", "level": "loud", "message": "m"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBotLogs_WarnStoredAsWarning(t *testing.T) {
	env := newTestEnv(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	entries, _ := env.hub.Subscribe(ctx)

	w := env.do(t, "POST", "/api/bot-logs", map[string]any{"bot_name": "trader", "level": "warn", "message": "slow fill"})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "WARNING", decode[store.BotLog](t, w).Level)

	select {
	case e := <-entries:
		assert.Equal(t, "WARNING", e.Level)
	case <-time.After(time.Second):
		t.Fatal("bot log was not published")
	}

	for _, level := range []string{"warning", "warn", "WARN"} {
		w = env.do(t, "GET", "/api/bot-logs?level="+level, nil)
		assert.Len(t, decode[[]store.BotLog](t, w), 1, "level=%s", level)
	}
}

func TestBotHealth(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, "POST", "/api/health/log", map[string]any{"bot_name": "trader", "status": "online", "uptime_seconds": 120})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]string{"status": "ok"}, decode[map[string]string](t, w))

	w = env.do(t, "POST", "/api/health/log", map[string]any{"bot_name": "trader", "status": "offline"})
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, "GET", "/api/health", nil)
	bots := decode[[]store.BotHealth](t, w)
	require.Len(t, bots, 1)
	assert.Equal(t, "offline", bots[0].Status)

	w = env.do(t, "POST", "/api/health/log", map[string]any{"bot_name": "trader", "status": "sleeping"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestObjectives(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, "POST", "/api/objectives", map[string]any{"title": "Close Q1 deals", "deadline": "2025-02-28"})
	require.Equal(t, http.StatusCreated, w.Code)
	o := decode[store.Objective](t, w)
	assert.Equal(t, 2, o.Month)
	assert.Equal(t, 2025, o.Year)

	env.do(t, "POST", "/api/objectives", map[string]any{"title": "March plan", "month": 3, "year": 2025})

	w = env.do(t, "GET", "/api/objectives?month=2&year=2025", nil)
	assert.Len(t, decode[[]store.Objective](t, w), 1)

	w = env.do(t, "GET", "/api/objectives?month=2", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, "PATCH", "/api/objectives/1", map[string]any{"progress": 150})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, "PATCH", "/api/objectives/1", map[string]any{"progress": 60})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 60, decode[store.Objective](t, w).Progress)

	w = env.do(t, "POST", "/api/objectives", map[string]any{"title": "Someday", "deadline": ""})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Nil(t, decode[store.Objective](t, w).Deadline)

	w = env.do(t, "GET", "/api/objectives?month=2&year=2025", nil)
	feb := decode[[]store.Objective](t, w)
	require.Len(t, feb, 2)
	assert.Equal(t, "Someday", feb[1].Title, "undated objectives sort last")
}

func TestCosts_Summary(t *testing.T) {
	env := newTestEnv(t, nil)

	for _, c := range []map[string]any{
		{"service": "Hosting", "category": "infra", "amount": 40.5, "incurred_on": "2025-02-01"},
		{"service": "CDN", "category": "infra", "amount": 9.5},
		{"service": "Design", "category": "tools", "amount": 20, "incurred_on": "2025-01-15"},
	} {
		w := env.do(t, "POST", "/api/costs", c)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	}

	w := env.do(t, "GET", "/api/costs/summary", nil)
	require.Equal(t, http.StatusOK, w.Code)
	sum := decode[store.CostSummary](t, w)
	assert.Equal(t, 2, sum.Month)
	assert.InDelta(t, 50.0, sum.Total, 0.001)
	require.Len(t, sum.Categories, 1)
	assert.Equal(t, int64(2), sum.Categories[0].Count)

	w = env.do(t, "GET", "/api/costs?month=1&year=2025", nil)
	assert.Len(t, decode[[]store.Cost](t, w), 1)

	w = env.do(t, "POST", "/api/costs", map[string]any{"service": "x", "amount": -1})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = env.do(t, "POST", "/api/costs", map[string]any{"service": "x", "billing_cycle": "weekly"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTools_ErrorsAndReset(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, "POST", "/api/tools", map[string]any{"name": "Grafana", "url": "https://grafana.example.com"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = env.do(t, "POST", "/api/tools", map[string]any{"name": "Grafana"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = env.do(t, "POST", "/api/tools", map[string]any{"name": "Bad", "url": "ftp://x"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	env.do(t, "POST", "/api/tools/1/errors", map[string]any{"error": "timeout"})
	w = env.do(t, "POST", "/api/tools/1/errors", nil)
	require.Equal(t, http.StatusOK, w.Code)
	tool := decode[store.Tool](t, w)
	assert.Equal(t, store.ToolError, tool.Status)
	assert.Equal(t, 2, tool.ErrorCount)

	w = env.do(t, "POST", "/api/tools/1/reset", nil)
	require.Equal(t, http.StatusOK, w.Code)
	tool = decode[store.Tool](t, w)
	assert.Equal(t, store.ToolUnknown, tool.Status)
	assert.Zero(t, tool.ErrorCount)

	w = env.do(t, "POST", "/api/tools/99/reset", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHabits_CheckInAndToggle(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, "POST", "/api/habits", map[string]any{"name": "Read"})
	require.Equal(t, http.StatusCreated, w.Code)

	env.do(t, "POST", "/api/habits/1/checkin", map[string]any{"date": "2025-02-04"})
	w = env.do(t, "POST", "/api/habits/1/checkin", nil)
	require.Equal(t, http.StatusOK, w.Code)
	h := decode[store.Habit](t, w)
	assert.Equal(t, 2, h.Streak)
	assert.True(t, h.CheckedToday)

	w = env.do(t, "POST", "/api/habits/1/toggle", nil)
	require.Equal(t, http.StatusOK, w.Code)
	toggled := decode[map[string]any](t, w)
	assert.Equal(t, false, toggled["checked"])
	assert.EqualValues(t, 1, toggled["streak"])

	w = env.do(t, "DELETE", "/api/habits/1/checkin?date=2025-02-04", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Zero(t, decode[store.Habit](t, w).Streak)

	w = env.do(t, "POST", "/api/habits/1/checkin", map[string]any{"date": "05/02/2025"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, "GET", "/api/habits/99/logs", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestClients(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, "POST", "/api/clients", map[string]any{"name": "Acme", "email": "ops@acme.test"})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "active", decode[store.Client](t, w).ProjectStatus)

	w = env.do(t, "POST", "/api/clients", map[string]any{"name": "Bad", "email": "not-an-email"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, "PATCH", "/api/clients/1", map[string]any{"project_status": "on_hold", "last_contact": "2025-02-01"})
	require.Equal(t, http.StatusOK, w.Code)
	c := decode[store.Client](t, w)
	assert.Equal(t, "on_hold", c.ProjectStatus)
	require.NotNil(t, c.LastContact)
	assert.Equal(t, "2025-02-01", *c.LastContact)
}

func TestDashboard(t *testing.T) {
	env := newTestEnv(t, nil)
	env.do(t, "POST", "/api/todos", map[string]any{"title": "a"})
	env.do(t, "POST", "/api/tasks", map[string]any{"title": "b"})

	w := env.do(t, "GET", "/api/dashboard", nil)
	require.Equal(t, http.StatusOK, w.Code)
	d := decode[store.DashboardSummary](t, w)
	assert.Equal(t, int64(1), d.ActiveTodos)
	assert.Equal(t, int64(1), d.OpenTasks)
}

func TestAuth(t *testing.T) {
	env := newTestEnv(t, func(cfg *config.Config, opts *Options) {
		cfg.Auth.Enabled = true
		opts.AuthToken = "s3cret"
	})

	w := env.do(t, "GET", "/api/todos", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(t, "GET", "/api/todos", nil, "Authorization", "Bearer wrong")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(t, "GET", "/api/todos", nil, "Authorization", "Bearer s3cret")
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, "GET", "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code, "liveness stays public")
}

func TestRouting_FallbacksAndCORS(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, "GET", "/api/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "not found", errorMessage(t, w))

	w = env.do(t, "GET", "/", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.HasPrefix(w.Header().Get("Content-Type"), "text/html"))
	assert.Contains(t, w.Body.String(), "Crovest Command Center")

	w = env.do(t, "GET", "/habits", nil)
	assert.Equal(t, http.StatusOK, w.Code, "client-side routes get index.html")

	w = env.do(t, "GET", "/static/app.js", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, "OPTIONS", "/api/todos", nil,
		"Origin", "https://ops.example.com",
		"Access-Control-Request-Method", "POST")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	w = env.do(t, "GET", "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "crovest_http_requests_total")
}

func TestCORS_RestrictedOrigins(t *testing.T) {
	env := newTestEnv(t, func(cfg *config.Config, _ *Options) {
		cfg.Dashboard.AllowedOrigins = []string{"https://ops.example.com"}
	})

	w := env.do(t, "GET", "/api/todos", nil, "Origin", "https://ops.example.com")
	assert.Equal(t, "https://ops.example.com", w.Header().Get("Access-Control-Allow-Origin"))

	w = env.do(t, "GET", "/api/todos", nil, "Origin", "https://evil.example.com")
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestBodyLimit(t *testing.T) {
	env := newTestEnv(t, func(cfg *config.Config, _ *Options) {
		cfg.Server.MaxBodySize = 32
	})

	w := env.do(t, "POST", "/api/todos", map[string]any{"title": strings.Repeat("x", 100)})
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}
