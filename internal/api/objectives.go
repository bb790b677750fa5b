package api

import (
	"net/http"

	"github.com/crovest/command-center/internal/store"
)

func (s *Server) handleListObjectives(w http.ResponseWriter, r *http.Request) {
	month, year, ok := monthYear(w, r)
	if !ok {
		return
	}
	objectives, err := s.store.ListObjectives(r.Context(), month, year)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, objectives)
}

// handleCreateObjective files the objective under the current month unless
// the body names one.
func (s *Server) handleCreateObjective(w http.ResponseWriter, r *http.Request) {
	var in store.ObjectiveInput
	if !decodeJSON(w, r, &in, false) {
		return
	}
	now := s.now()
	if in.Month == 0 {
		in.Month = int(now.Month())
	}
	if in.Year == 0 {
		in.Year = now.Year()
	}

	var v validator
	v.required("title", in.Title)
	v.between("progress", in.Progress, 0, 100)
	v.between("month", in.Month, 1, 12)
	v.between("year", in.Year, 2000, 9999)
	if in.Deadline != nil {
		v.date("deadline", *in.Deadline)
	}
	if !v.ok(w) {
		return
	}

	o, err := s.store.CreateObjective(r.Context(), in)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, o)
}

func (s *Server) handleUpdateObjective(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var p store.ObjectivePatch
	if !decodeJSON(w, r, &p, true) {
		return
	}
	var v validator
	if p.Title != nil {
		v.required("title", *p.Title)
	}
	if p.Progress != nil {
		v.between("progress", *p.Progress, 0, 100)
	}
	if p.Month != nil {
		v.between("month", *p.Month, 1, 12)
	}
	if p.Year != nil {
		v.between("year", *p.Year, 2000, 9999)
	}
	if p.Deadline != nil {
		v.date("deadline", *p.Deadline)
	}
	if !v.ok(w) {
		return
	}

	if err := s.store.UpdateObjective(r.Context(), id, p); err != nil {
		writeStoreError(w, r, err)
		return
	}
	o, err := s.store.GetObjective(r.Context(), id)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (s *Server) handleDeleteObjective(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	if err := s.store.DeleteObjective(r.Context(), id); err != nil {
		writeStoreError(w, r, err)
		return
	}
	statusOK(w, "deleted")
}
