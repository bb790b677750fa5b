package metrics

import (
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

// durationBuckets are the upper bounds, in seconds, of the request duration
// histogram.
var durationBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}

// Collector tracks live HTTP metrics using atomic counters for lock-free,
// concurrent-safe updates. Background components contribute their own
// counters through Register.
type Collector struct {
	totalRequests  atomic.Int64
	activeRequests atomic.Int64
	mutations      atomic.Int64
	serverErrors   atomic.Int64

	statusClasses *counterVec
	routeRequests *counterVec
	latency       *histogramVec

	mu      sync.RWMutex
	sources []source

	startTime time.Time
}

// source is an externally owned value exported with the collector's metrics.
type source struct {
	name  string
	help  string
	kind  string // "counter" or "gauge"
	value func() int64
}

// Stats is a point-in-time snapshot of the collector's counters, suitable
// for JSON serialisation and display on the dashboard.
type Stats struct {
	Uptime         string           `json:"uptime"`
	UptimeSeconds  int64            `json:"uptime_seconds"`
	TotalRequests  int64            `json:"total_requests"`
	ActiveRequests int64            `json:"active_requests"`
	Mutations      int64            `json:"mutations"`
	ServerErrors   int64            `json:"server_errors"`
	ByStatus       map[string]int64 `json:"by_status"`
	Components     map[string]int64 `json:"components"`
}

// NewCollector creates a Collector with all counters at zero and the start
// time set to now.
func NewCollector() *Collector {
	return &Collector{
		statusClasses: newCounterVec(),
		routeRequests: newCounterVec(),
		latency:       newHistogramVec(durationBuckets),
		startTime:     time.Now(),
	}
}

// Register exports value under name. kind is "counter" or "gauge". Registering
// the same name twice replaces the earlier source.
func (c *Collector) Register(name, help, kind string, value func() int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.sources {
		if c.sources[i].name == name {
			c.sources[i] = source{name: name, help: help, kind: kind, value: value}
			return
		}
	}
	c.sources = append(c.sources, source{name: name, help: help, kind: kind, value: value})
}

// RecordRequest counts one completed request. route is the matched route
// pattern, not the raw path, to keep label cardinality bounded.
func (c *Collector) RecordRequest(method, route string, status int, elapsed time.Duration) {
	c.totalRequests.Add(1)
	if isMutation(method) && status < 400 {
		c.mutations.Add(1)
	}
	if status >= 500 {
		c.serverErrors.Add(1)
	}
	c.statusClasses.inc(map[string]string{"class": statusClass(status)})
	c.routeRequests.inc(map[string]string{"method": method, "route": route})
	c.latency.observe(map[string]string{"method": method, "route": route}, elapsed.Seconds())
}

// IncrementActive increments the in-flight request gauge.
func (c *Collector) IncrementActive() {
	c.activeRequests.Add(1)
}

// DecrementActive decrements the in-flight request gauge.
func (c *Collector) DecrementActive() {
	c.activeRequests.Add(-1)
}

// Stats returns a point-in-time snapshot of all metrics.
func (c *Collector) Stats() *Stats {
	uptime := time.Since(c.startTime)

	byStatus := make(map[string]int64)
	for _, e := range c.statusClasses.snapshot() {
		byStatus[e.labels["class"]] = e.value
	}

	components := make(map[string]int64)
	for _, s := range c.snapshotSources() {
		components[s.name] = s.value()
	}

	return &Stats{
		Uptime:         formatDuration(uptime),
		UptimeSeconds:  int64(uptime.Seconds()),
		TotalRequests:  c.totalRequests.Load(),
		ActiveRequests: c.activeRequests.Load(),
		Mutations:      c.mutations.Load(),
		ServerErrors:   c.serverErrors.Load(),
		ByStatus:       byStatus,
		Components:     components,
	}
}

// StatusClasses returns the per-status-class request counters.
func (c *Collector) StatusClasses() *counterVec { return c.statusClasses }

// RouteRequests returns the per-route request counters.
func (c *Collector) RouteRequests() *counterVec { return c.routeRequests }

// Latency returns the request duration histograms.
func (c *Collector) Latency() *histogramVec { return c.latency }

func (c *Collector) snapshotSources() []source {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]source, len(c.sources))
	copy(out, c.sources)
	return out
}

func isMutation(method string) bool {
	switch method {
	case "POST", "PUT", "PATCH", "DELETE":
		return true
	}
	return false
}

// statusClass maps 404 to "4xx" and so on.
func statusClass(status int) string {
	if status < 100 || status > 599 {
		return "other"
	}
	return strconv.Itoa(status/100) + "xx"
}

// formatDuration produces a human-readable duration string like "2d 5h 32m".
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return d.Round(time.Second).String()
	}

	days := int(d.Hours() / 24)
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60

	var parts []string
	if days > 0 {
		parts = append(parts, strconv.Itoa(days)+"d")
	}
	if hours > 0 {
		parts = append(parts, strconv.Itoa(hours)+"h")
	}
	if minutes > 0 {
		parts = append(parts, strconv.Itoa(minutes)+"m")
	}
	if len(parts) == 0 {
		return "0m"
	}
	s := parts[0]
	for _, p := range parts[1:] {
		s += " " + p
	}
	return s
}
