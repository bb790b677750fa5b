package metrics

import (
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"
)

// PrometheusHandler returns an http.HandlerFunc that writes metrics in
// Prometheus text exposition format (version 0.0.4). Metrics are formatted
// manually; no client library is involved.
func PrometheusHandler(collector *Collector) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		WritePrometheus(w, collector)
	}
}

// WritePrometheus writes every collector metric to w.
func WritePrometheus(w io.Writer, collector *Collector) {
	stats := collector.Stats()

	writeMetric(w, "crovest_http_requests_total",
		"Total number of HTTP requests served.",
		"counter", stats.TotalRequests)

	writeMetric(w, "crovest_http_active_requests",
		"Number of requests currently being processed.",
		"gauge", stats.ActiveRequests)

	writeMetric(w, "crovest_mutations_total",
		"Successful create, update and delete requests.",
		"counter", stats.Mutations)

	writeMetric(w, "crovest_http_server_errors_total",
		"Requests answered with a 5xx status.",
		"counter", stats.ServerErrors)

	writeMetricFloat(w, "crovest_uptime_seconds",
		"Number of seconds since the service started.",
		"gauge", time.Since(collector.startTime).Seconds())

	writeCounterVec(w, "crovest_http_responses_total",
		"Responses by status class.",
		collector.StatusClasses())

	writeCounterVec(w, "crovest_http_route_requests_total",
		"Requests by method and route pattern.",
		collector.RouteRequests())

	writeHistogramVec(w, "crovest_http_request_duration_seconds",
		"Request duration in seconds by method and route pattern.",
		collector.Latency())

	for _, s := range collector.snapshotSources() {
		writeMetric(w, s.name, s.help, s.kind, s.value())
	}
}

// writeMetric writes a single integer metric in Prometheus text format.
func writeMetric(w io.Writer, name, help, metricType string, value int64) {
	fmt.Fprintf(w, "# HELP %s %s\n", name, help)
	fmt.Fprintf(w, "# TYPE %s %s\n", name, metricType)
	fmt.Fprintf(w, "%s %d\n", name, value)
}

// writeMetricFloat writes a single float64 metric in Prometheus text format.
func writeMetricFloat(w io.Writer, name, help, metricType string, value float64) {
	fmt.Fprintf(w, "# HELP %s %s\n", name, help)
	fmt.Fprintf(w, "# TYPE %s %s\n", name, metricType)
	fmt.Fprintf(w, "%s %g\n", name, value)
}

// formatLabels formats a label map as a Prometheus label string, e.g.
// {method="GET",route="/api/todos"}. Extra pairs are appended after the
// sorted labels.
func formatLabels(labels map[string]string, extra ...string) string {
	if len(labels) == 0 && len(extra) == 0 {
		return ""
	}
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteByte('{')
	n := 0
	for _, k := range keys {
		if n > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%s=%q", k, labels[k])
		n++
	}
	for i := 0; i+1 < len(extra); i += 2 {
		if n > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%s=%q", extra[i], extra[i+1])
		n++
	}
	b.WriteByte('}')
	return b.String()
}

// writeCounterVec writes a labeled counter vec in Prometheus text format.
func writeCounterVec(w io.Writer, name, help string, cv *counterVec) {
	entries := cv.snapshot()
	if len(entries) == 0 {
		return
	}
	fmt.Fprintf(w, "# HELP %s %s\n", name, help)
	fmt.Fprintf(w, "# TYPE %s counter\n", name)
	for _, e := range entries {
		fmt.Fprintf(w, "%s%s %d\n", name, formatLabels(e.labels), e.value)
	}
}

// writeHistogramVec writes a labeled histogram vec in Prometheus text format.
func writeHistogramVec(w io.Writer, name, help string, hv *histogramVec) {
	histograms := hv.snapshot()
	if len(histograms) == 0 {
		return
	}
	fmt.Fprintf(w, "# HELP %s %s\n", name, help)
	fmt.Fprintf(w, "# TYPE %s histogram\n", name)
	for _, h := range histograms {
		var cumulative int64
		for i, bound := range h.buckets {
			cumulative += h.counts[i]
			fmt.Fprintf(w, "%s_bucket%s %d\n", name, formatLabels(h.labels, "le", fmt.Sprintf("%g", bound)), cumulative)
		}
		fmt.Fprintf(w, "%s_bucket%s %d\n", name, formatLabels(h.labels, "le", "+Inf"), h.count)
		fmt.Fprintf(w, "%s_sum%s %g\n", name, formatLabels(h.labels), h.sum)
		fmt.Fprintf(w, "%s_count%s %d\n", name, formatLabels(h.labels), h.count)
	}
}
