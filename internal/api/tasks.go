package api

import (
	"net/http"

	"github.com/crovest/command-center/internal/store"
)

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.store.ListTasks(r.Context())
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var in store.TaskInput
	if !decodeJSON(w, r, &in, false) {
		return
	}
	var v validator
	v.required("title", in.Title)
	v.oneOf("status", in.Status, store.TaskStatuses)
	v.oneOf("priority", in.Priority, store.TaskPriorities)
	if !v.ok(w) {
		return
	}

	task, err := s.store.CreateTask(r.Context(), in)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

func (s *Server) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var p store.TaskPatch
	if !decodeJSON(w, r, &p, true) {
		return
	}
	var v validator
	if p.Title != nil {
		v.required("title", *p.Title)
	}
	if p.Status != nil {
		v.required("status", *p.Status)
		v.oneOf("status", *p.Status, store.TaskStatuses)
	}
	if p.Priority != nil {
		v.required("priority", *p.Priority)
		v.oneOf("priority", *p.Priority, store.TaskPriorities)
	}
	if !v.ok(w) {
		return
	}

	if err := s.store.UpdateTask(r.Context(), id, p); err != nil {
		writeStoreError(w, r, err)
		return
	}
	task, err := s.store.GetTask(r.Context(), id)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	if err := s.store.DeleteTask(r.Context(), id); err != nil {
		writeStoreError(w, r, err)
		return
	}
	statusOK(w, "deleted")
}
