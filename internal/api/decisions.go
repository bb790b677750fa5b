package api

import (
	"net/http"
)

type createDecisionRequest struct {
	Decision string `json:"decision"`
	Context  string `json:"context"`
}

func (s *Server) handleListDecisions(w http.ResponseWriter, r *http.Request) {
	decisions, err := s.store.ListDecisions(r.Context())
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, decisions)
}

func (s *Server) handleCreateDecision(w http.ResponseWriter, r *http.Request) {
	var req createDecisionRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}
	var v validator
	v.required("decision", req.Decision)
	if !v.ok(w) {
		return
	}

	d, err := s.store.CreateDecision(r.Context(), req.Decision, req.Context)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

func (s *Server) handleDeleteDecision(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	if err := s.store.DeleteDecision(r.Context(), id); err != nil {
		writeStoreError(w, r, err)
		return
	}
	statusOK(w, "deleted")
}
