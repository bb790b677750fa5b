package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/crovest/command-center/internal/logstream"
	"github.com/crovest/command-center/internal/store"
)

// Levels are stored upper-cased; the check is case-insensitive.
var botLogLevels = []string{"debug", "info", "warning", "warn", "error", "critical"}

type createBotLogRequest struct {
	BotName string `json:"bot_name"`
	Level   string `json:"level"`
	Message string `json:"message"`
}

func (s *Server) handleListBotLogs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := store.BotLogFilter{Bot: q.Get("bot"), Level: q.Get("level")}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		f.Limit = n
	}

	logs, err := s.store.ListBotLogs(r.Context(), f)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, logs)
}

// handleCreateBotLog stores the line and relays it to connected log stream
// clients.
func (s *Server) handleCreateBotLog(w http.ResponseWriter, r *http.Request) {
	var req createBotLogRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}
	var v validator
	v.required("bot_name", req.BotName)
	v.required("message", req.Message)
	v.oneOf("level", strings.ToLower(req.Level), botLogLevels)
	if !v.ok(w) {
		return
	}

	entry, err := s.store.CreateBotLog(r.Context(), req.BotName, req.Level, req.Message)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	if s.hub != nil {
		s.hub.Publish(logstream.BotEntry(entry.BotName, entry.Level, entry.Message, entry.Timestamp))
	}
	writeJSON(w, http.StatusCreated, entry)
}

func (s *Server) handleListBotHealth(w http.ResponseWriter, r *http.Request) {
	bots, err := s.store.ListBotHealth(r.Context())
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, bots)
}

func (s *Server) handleReportBotHealth(w http.ResponseWriter, r *http.Request) {
	var rep store.HealthReport
	if !decodeJSON(w, r, &rep, false) {
		return
	}
	var v validator
	v.required("bot_name", rep.BotName)
	v.required("status", rep.Status)
	v.oneOf("status", rep.Status, store.BotStatuses)
	if rep.UptimeSeconds < 0 {
		v.addf("uptime_seconds must not be negative")
	}
	if !v.ok(w) {
		return
	}

	if err := s.store.ReportBotHealth(r.Context(), rep); err != nil {
		writeStoreError(w, r, err)
		return
	}
	statusOK(w, "ok")
}
