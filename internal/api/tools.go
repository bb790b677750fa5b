package api

import (
	"net/http"

	"github.com/crovest/command-center/internal/store"
)

type toolErrorRequest struct {
	Error string `json:"error"`
}

func (s *Server) handleListTools(w http.ResponseWriter, r *http.Request) {
	tools, err := s.store.ListTools(r.Context())
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tools)
}

func (s *Server) handleCreateTool(w http.ResponseWriter, r *http.Request) {
	var in store.ToolInput
	if !decodeJSON(w, r, &in, false) {
		return
	}
	var v validator
	v.required("name", in.Name)
	v.httpURL("url", in.URL)
	v.httpURL("check_url", in.CheckURL)
	if !v.ok(w) {
		return
	}

	t, err := s.store.CreateTool(r.Context(), in)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (s *Server) handleUpdateTool(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var p store.ToolPatch
	if !decodeJSON(w, r, &p, true) {
		return
	}
	var v validator
	if p.Name != nil {
		v.required("name", *p.Name)
	}
	if p.URL != nil {
		v.httpURL("url", *p.URL)
	}
	if p.CheckURL != nil {
		v.httpURL("check_url", *p.CheckURL)
	}
	if p.Status != nil {
		v.required("status", *p.Status)
		v.oneOf("status", *p.Status, store.ToolStatuses)
	}
	if !v.ok(w) {
		return
	}

	if err := s.store.UpdateTool(r.Context(), id, p); err != nil {
		writeStoreError(w, r, err)
		return
	}
	t, err := s.store.GetTool(r.Context(), id)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleDeleteTool(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	if err := s.store.DeleteTool(r.Context(), id); err != nil {
		writeStoreError(w, r, err)
		return
	}
	statusOK(w, "deleted")
}

// handleToolError records a failure reported from outside the checker.
func (s *Server) handleToolError(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var req toolErrorRequest
	if !decodeJSON(w, r, &req, true) {
		return
	}
	if req.Error == "" {
		req.Error = "reported error"
	}

	t, err := s.store.RecordToolError(r.Context(), id, req.Error)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleToolReset(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	t, err := s.store.ResetToolErrors(r.Context(), id)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}
