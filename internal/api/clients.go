package api

import (
	"net/http"

	"github.com/crovest/command-center/internal/store"
)

func (s *Server) handleListClients(w http.ResponseWriter, r *http.Request) {
	clients, err := s.store.ListClients(r.Context())
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, clients)
}

func (s *Server) handleCreateClient(w http.ResponseWriter, r *http.Request) {
	var in store.ClientInput
	if !decodeJSON(w, r, &in, false) {
		return
	}
	var v validator
	v.required("name", in.Name)
	v.email("email", in.Email)
	v.oneOf("project_status", in.ProjectStatus, store.ProjectStatuses)
	if in.LastContact != nil {
		v.date("last_contact", *in.LastContact)
	}
	if !v.ok(w) {
		return
	}

	c, err := s.store.CreateClient(r.Context(), in)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) handleUpdateClient(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var p store.ClientPatch
	if !decodeJSON(w, r, &p, true) {
		return
	}
	var v validator
	if p.Name != nil {
		v.required("name", *p.Name)
	}
	if p.Email != nil {
		v.email("email", *p.Email)
	}
	if p.ProjectStatus != nil {
		v.required("project_status", *p.ProjectStatus)
		v.oneOf("project_status", *p.ProjectStatus, store.ProjectStatuses)
	}
	if p.LastContact != nil {
		v.date("last_contact", *p.LastContact)
	}
	if !v.ok(w) {
		return
	}

	if err := s.store.UpdateClient(r.Context(), id, p); err != nil {
		writeStoreError(w, r, err)
		return
	}
	c, err := s.store.GetClient(r.Context(), id)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleDeleteClient(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	if err := s.store.DeleteClient(r.Context(), id); err != nil {
		writeStoreError(w, r, err)
		return
	}
	statusOK(w, "deleted")
}
