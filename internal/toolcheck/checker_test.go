package toolcheck

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/crovest/command-center/internal/store"
	"github.com/crovest/command-center/internal/testutil"
)

func TestTransientStatus(t *testing.T) {
	for _, code := range []int{429, 502, 503, 504} {
		if !transientStatus(code) {
			t.Errorf("expected %d to be retryable", code)
		}
	}
	for _, code := range []int{200, 301, 400, 401, 404, 500} {
		if transientStatus(code) {
			t.Errorf("expected %d to NOT be retryable", code)
		}
	}
}

func TestRetryPolicy_Delay(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 3, BaseDelay: 100 * time.Millisecond, MaxDelay: time.Second}

	for i := 0; i < 100; i++ {
		if d := p.delay(0, 0); d < 0 || d >= 100*time.Millisecond {
			t.Fatalf("attempt 0: delay %v out of range [0, 100ms)", d)
		}
		if d := p.delay(20, 0); d < 0 || d >= time.Second {
			t.Fatalf("attempt 20: delay %v out of range [0, 1s)", d)
		}
	}

	if d := p.delay(0, 500*time.Millisecond); d != 500*time.Millisecond {
		t.Errorf("hint should be used as-is: got %v", d)
	}
	if d := p.delay(0, time.Minute); d != time.Second {
		t.Errorf("hint should be clamped to MaxDelay: got %v", d)
	}
	if d := (RetryPolicy{}).delay(3, 0); d != 0 {
		t.Errorf("zero base: got %v", d)
	}
	if n := (RetryPolicy{}).attempts(); n != 1 {
		t.Errorf("attempts floor: got %d", n)
	}
}

func TestRetryAfter(t *testing.T) {
	now := time.Date(2025, 2, 5, 12, 0, 0, 0, time.UTC)

	resp := &http.Response{Header: http.Header{}}
	if d := retryAfter(resp, now); d != 0 {
		t.Errorf("absent header: got %v", d)
	}
	resp.Header.Set("Retry-After", "3")
	if d := retryAfter(resp, now); d != 3*time.Second {
		t.Errorf("seconds: got %v", d)
	}
	resp.Header.Set("Retry-After", now.Add(10*time.Second).Format(http.TimeFormat))
	if d := retryAfter(resp, now); d != 10*time.Second {
		t.Errorf("http date: got %v", d)
	}
	if d := retryAfter(nil, now); d != 0 {
		t.Errorf("nil response: got %v", d)
	}
}

func TestSleepCtx_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := sleepCtx(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

// fakeStore records checker outcomes in memory.
type fakeStore struct {
	mu      sync.Mutex
	tools   []store.Tool
	healthy map[int64]int
	errs    map[int64][]string
}

func newFakeStore(tools ...store.Tool) *fakeStore {
	return &fakeStore{tools: tools, healthy: map[int64]int{}, errs: map[int64][]string{}}
}

func (f *fakeStore) ListTools(context.Context) ([]store.Tool, error) {
	return f.tools, nil
}

func (f *fakeStore) MarkToolHealthy(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.healthy[id]++
	return nil
}

func (f *fakeStore) RecordToolError(_ context.Context, id int64, msg string) (*store.Tool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[id] = append(f.errs[id], msg)
	return &store.Tool{ID: id}, nil
}

func fastConfig() Config {
	return Config{
		Interval: time.Hour,
		Timeout:  time.Second,
		Retry:    RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond},
	}
}

func TestCheck_RetriesTransientThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := New(newFakeStore(), fastConfig(), srv.Client())
	if err := p.Check(context.Background(), srv.URL); err != nil {
		t.Fatalf("Check: %v", err)
	}
	if n := calls.Load(); n != 3 {
		t.Errorf("calls: got %d, want 3", n)
	}
}

func TestCheck_NonTransientFailsFast(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	p := New(newFakeStore(), fastConfig(), srv.Client())
	err := p.Check(context.Background(), srv.URL)
	if err == nil {
		t.Fatal("expected error for 500")
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("calls: got %d, want 1", n)
	}
}

func TestCheck_ExhaustsAttempts(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	p := New(newFakeStore(), fastConfig(), srv.Client())
	if err := p.Check(context.Background(), srv.URL); err == nil {
		t.Fatal("expected error after retries")
	}
	if n := calls.Load(); n != 3 {
		t.Errorf("calls: got %d, want 3", n)
	}
}

func TestCheckAll_RecordsOutcomes(t *testing.T) {
	ok := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ok.Close()
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer bad.Close()

	fs := newFakeStore(
		store.Tool{ID: 1, Name: "good", CheckURL: ok.URL},
		store.Tool{ID: 2, Name: "bad", CheckURL: bad.URL},
		store.Tool{ID: 3, Name: "unchecked"},
	)
	p := New(fs, fastConfig(), nil)
	p.CheckAll(context.Background())

	if fs.healthy[1] != 1 {
		t.Errorf("tool 1 healthy count: got %d", fs.healthy[1])
	}
	if len(fs.errs[2]) != 1 || fs.errs[2][0] != "unexpected status 404" {
		t.Errorf("tool 2 errors: %v", fs.errs[2])
	}
	if fs.healthy[3] != 0 || len(fs.errs[3]) != 0 {
		t.Error("tool without check URL should be skipped")
	}

	stats := p.Stats()
	if stats.Checks != 2 || stats.Failures != 1 {
		t.Errorf("stats: %+v", stats)
	}
}

func TestCheckAll_AgainstStore(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	st := testutil.NewTestStore(t)

	tool, err := st.CreateTool(context.Background(), store.ToolInput{Name: "flaky", CheckURL: srv.URL})
	if err != nil {
		t.Fatalf("CreateTool: %v", err)
	}

	New(st, fastConfig(), srv.Client()).CheckAll(context.Background())

	got, err := st.GetTool(context.Background(), tool.ID)
	if err != nil {
		t.Fatalf("GetTool: %v", err)
	}
	if got.Status != store.ToolError || got.ErrorCount != 1 {
		t.Errorf("after failed check: %+v", got)
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	p := New(newFakeStore(), fastConfig(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
