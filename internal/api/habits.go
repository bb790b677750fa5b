package api

import (
	"net/http"

	"github.com/crovest/command-center/internal/store"
)

type habitDateRequest struct {
	Date string `json:"date"`
}

type toggleResponse struct {
	*store.Habit
	Checked bool `json:"checked"`
}

func (s *Server) handleListHabits(w http.ResponseWriter, r *http.Request) {
	habits, err := s.store.ListHabits(r.Context())
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, habits)
}

func (s *Server) handleCreateHabit(w http.ResponseWriter, r *http.Request) {
	var in store.HabitInput
	if !decodeJSON(w, r, &in, false) {
		return
	}
	var v validator
	v.required("name", in.Name)
	if !v.ok(w) {
		return
	}

	h, err := s.store.CreateHabit(r.Context(), in)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, h)
}

func (s *Server) handleDeleteHabit(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	if err := s.store.DeleteHabit(r.Context(), id); err != nil {
		writeStoreError(w, r, err)
		return
	}
	statusOK(w, "deleted")
}

// habitDate reads the optional {"date"} body; empty means today.
func habitDate(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req habitDateRequest
	if !decodeJSON(w, r, &req, true) {
		return "", false
	}
	var v validator
	v.date("date", req.Date)
	return req.Date, v.ok(w)
}

func (s *Server) handleCheckIn(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	date, ok := habitDate(w, r)
	if !ok {
		return
	}
	h, err := s.store.CheckInHabit(r.Context(), id, date)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h)
}

func (s *Server) handleUncheck(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	date := r.URL.Query().Get("date")
	var v validator
	v.date("date", date)
	if !v.ok(w) {
		return
	}
	h, err := s.store.UncheckHabit(r.Context(), id, date)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h)
}

func (s *Server) handleToggleHabit(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	date, ok := habitDate(w, r)
	if !ok {
		return
	}
	h, checked, err := s.store.ToggleHabit(r.Context(), id, date)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toggleResponse{Habit: h, Checked: checked})
}

func (s *Server) handleHabitLogs(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	logs, err := s.store.ListHabitLogs(r.Context(), id)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, logs)
}
