package logstream

import (
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, 2, 5, 14, 3, 22, 0, time.UTC)

func TestParseLine_Levels(t *testing.T) {
	cases := map[string]string{
		"connection error on feed":    "ERROR",
		"Warning: slow response":      "WARNING",
		"debug: tick":                 "DEBUG",
		"CRITICAL disk full":          "CRITICAL",
		"fatal: cannot start":         "CRITICAL",
		"order filled":                "INFO",
		"fatal error while reloading": "ERROR",
	}
	for line, want := range cases {
		assert.Equal(t, want, ParseLine("bot.log", line, fixedNow).Level, line)
	}
}

func TestParseLine_Timestamp(t *testing.T) {
	e := ParseLine("trader.log", "2025-02-05 14:03:22,123 INFO order filled", fixedNow)
	assert.Equal(t, TypeLog, e.Type)
	assert.Equal(t, "2025-02-05 14:03:22", e.Timestamp)
	assert.Equal(t, "INFO order filled", e.Message)
	assert.Equal(t, "trader.log", e.Source)

	// Second token without a clock: keep the whole line and stamp with now.
	e = ParseLine("trader.log", "2025 was a good year", fixedNow)
	assert.Equal(t, "2025 was a good year", e.Message)
	assert.Equal(t, fixedNow.Format(time.RFC3339), e.Timestamp)

	// Date and time only.
	e = ParseLine("x.log", "2025-02-05 14:03:22", fixedNow)
	assert.Equal(t, "2025-02-05 14:03:22", e.Timestamp)
	assert.Equal(t, "2025-02-05 14:03:22", e.Message)
}

func TestBotEntry(t *testing.T) {
	e := BotEntry("trader", "WARNING", "slow fill", "2025-02-05T14:03:22Z")
	assert.Equal(t, Entry{Type: TypeLog, Timestamp: "2025-02-05T14:03:22Z", Level: "WARNING", Source: "bot:trader", Message: "slow fill"}, e)
}

func TestHub_PublishSubscribe(t *testing.T) {
	h := NewHub()
	defer h.Close()

	ch1, _ := h.Subscribe(t.Context())
	ch2, _ := h.Subscribe(t.Context())
	require.Equal(t, 2, h.Len())

	h.Publish(Entry{Type: TypeLog, Message: "hello"})

	for i, ch := range []<-chan Entry{ch1, ch2} {
		select {
		case e := <-ch:
			assert.Equal(t, "hello", e.Message, "subscriber %d", i)
		case <-time.After(time.Second):
			t.Fatalf("subscriber %d timed out", i)
		}
	}
	assert.Equal(t, int64(1), h.Stats().Published)
}

func TestHub_UnsubscribeOnContextCancel(t *testing.T) {
	h := NewHub()
	defer h.Close()

	ctx, cancel := context.WithCancel(context.Background())
	ch, _ := h.Subscribe(ctx)
	cancel()

	select {
	case _, ok := <-ch:
		assert.False(t, ok, "channel should be closed")
	case <-time.After(time.Second):
		t.Fatal("channel not closed after cancel")
	}
	assert.Eventually(t, func() bool { return h.Len() == 0 }, time.Second, 10*time.Millisecond)
}

func TestHub_DropsForSlowSubscriber(t *testing.T) {
	h := NewHub()
	defer h.Close()

	_, _ = h.Subscribe(t.Context())
	for i := 0; i < subscriberBufferSize+10; i++ {
		h.Publish(Entry{Type: TypeLog})
	}
	stats := h.Stats()
	assert.Equal(t, int64(subscriberBufferSize+10), stats.Published)
	assert.Equal(t, int64(10), stats.Dropped)
}

func TestHub_CloseThenSubscribe(t *testing.T) {
	h := NewHub()
	h.Close()

	ch, _ := h.Subscribe(t.Context())
	_, ok := <-ch
	assert.False(t, ok)
	h.Publish(Entry{Type: TypeLog}) // must not panic
}

func TestHub_ConcurrentPublishUnsubscribe(t *testing.T) {
	h := NewHub()
	defer h.Close()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		ctx, cancel := context.WithCancel(context.Background())
		_, id := h.Subscribe(ctx)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				h.Publish(Entry{Type: TypeLog})
			}
		}()
		go func() {
			defer wg.Done()
			h.Unsubscribe(id)
			cancel()
		}()
	}
	wg.Wait()
}

type recorder struct {
	mu      sync.Mutex
	entries []Entry
}

func (r *recorder) Publish(e Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
}

func (r *recorder) messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.Message)
	}
	return out
}

func appendFile(t *testing.T, path, data string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString(data)
	require.NoError(t, err)
	require.NoError(t, f.Close())
}

func TestTailer_ReadsNewCompleteLines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bot.log")
	rec := &recorder{}

	tl, err := NewTailer(TailerConfig{Dir: dir}, rec)
	require.NoError(t, err)

	appendFile(t, path, "first\n\nsecond\npart")
	tl.Scan()
	assert.Equal(t, []string{"first", "second"}, rec.messages())

	appendFile(t, path, "ial line\n")
	tl.Scan()
	assert.Equal(t, []string{"first", "second", "partial line"}, rec.messages())
	assert.Equal(t, int64(3), tl.LinesPublished())

	// Non-matching files are ignored.
	appendFile(t, filepath.Join(dir, "notes.txt"), "ignored\n")
	tl.Scan()
	assert.Len(t, rec.messages(), 3)
}

func TestTailer_EvictedOffsetsAreNotReplayed(t *testing.T) {
	dir := t.TempDir()
	rec := &recorder{}

	tl, err := NewTailer(TailerConfig{Dir: dir, MaxTrackedFiles: 2}, rec)
	require.NoError(t, err)

	names := []string{"a.log", "b.log", "c.log"}
	for _, n := range names {
		appendFile(t, filepath.Join(dir, n), "old "+n+"\n")
	}
	tl.Scan()
	assert.Equal(t, []string{"old a.log", "old b.log", "old c.log"}, rec.messages())
	assert.NotEmpty(t, tl.parked, "three files cannot fit in two cache slots")

	for _, n := range names {
		appendFile(t, filepath.Join(dir, n), "new "+n+"\n")
	}
	tl.Scan()
	assert.Equal(t, []string{
		"old a.log", "old b.log", "old c.log",
		"new a.log", "new b.log", "new c.log",
	}, rec.messages())

	require.NoError(t, os.Remove(filepath.Join(dir, "a.log")))
	tl.Scan()
	assert.NotContains(t, tl.parked, filepath.Join(dir, "a.log"))
	assert.LessOrEqual(t, len(tl.parked), 2)
}

func TestTailer_TruncationRestartsFromZero(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bot.log")
	rec := &recorder{}

	tl, err := NewTailer(TailerConfig{Dir: dir}, rec)
	require.NoError(t, err)

	appendFile(t, path, "one long line before rotation\n")
	tl.Scan()

	require.NoError(t, os.WriteFile(path, []byte("fresh\n"), 0o644))
	tl.Scan()

	assert.Equal(t, []string{"one long line before rotation", "fresh"}, rec.messages())
}

func TestTailer_RunSkipsExistingContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bot.log")
	appendFile(t, path, "old history\n")

	rec := &recorder{}
	tl, err := NewTailer(TailerConfig{Dir: dir, PollInterval: 20 * time.Millisecond}, rec)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = tl.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	// Let Run record the starting offsets.
	time.Sleep(50 * time.Millisecond)
	appendFile(t, path, "2025-02-05 14:03:22 ERROR feed down\n")
	appendFile(t, filepath.Join(dir, "new.log"), "from new file\n")

	assert.Eventually(t, func() bool {
		return len(rec.messages()) == 2
	}, 3*time.Second, 20*time.Millisecond)

	msgs := rec.messages()
	assert.ElementsMatch(t, []string{"ERROR feed down", "from new file"}, msgs)
	assert.NotContains(t, msgs, "old history")
}

func TestNewTailer_Validation(t *testing.T) {
	_, err := NewTailer(TailerConfig{}, &recorder{})
	assert.Error(t, err)

	_, err = NewTailer(TailerConfig{Dir: t.TempDir(), Pattern: "[bad"}, &recorder{})
	assert.Error(t, err)
}

func TestHandler_GreetingPingAndForward(t *testing.T) {
	hub := NewHub()
	defer hub.Close()

	srv := httptest.NewServer(NewHandler(hub, []string{"*"}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.CloseNow()

	var greeting Entry
	require.NoError(t, wsjson.Read(ctx, conn, &greeting))
	assert.Equal(t, TypeSystem, greeting.Type)
	assert.Equal(t, "Connected to log stream", greeting.Message)
	assert.NotEmpty(t, greeting.Timestamp)

	require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte("ping")))
	var pong map[string]any
	require.NoError(t, wsjson.Read(ctx, conn, &pong))
	assert.Equal(t, map[string]any{"type": "pong"}, pong)

	require.Eventually(t, func() bool { return hub.Len() == 1 }, time.Second, 10*time.Millisecond)
	hub.Publish(ParseLine("bot.log", "order filled", fixedNow))

	var got Entry
	require.NoError(t, wsjson.Read(ctx, conn, &got))
	assert.Equal(t, TypeLog, got.Type)
	assert.Equal(t, "order filled", got.Message)
	assert.Equal(t, "INFO", got.Level)
	assert.Equal(t, "bot.log", got.Source)

	conn.Close(websocket.StatusNormalClosure, "")
	assert.Eventually(t, func() bool { return hub.Len() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHandler_RejectsForeignOrigin(t *testing.T) {
	hub := NewHub()
	defer hub.Close()

	srv := httptest.NewServer(NewHandler(hub, []string{"https://dash.example.com"}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), &websocket.DialOptions{
		HTTPHeader: map[string][]string{"Origin": {"https://evil.example.com"}},
	})
	assert.Error(t, err)
}

func TestOriginHost(t *testing.T) {
	assert.Equal(t, "example.com:8443", originHost("https://example.com:8443"))
	assert.Equal(t, "localhost:5173", originHost("localhost:5173"))
}
