package api

import (
	"net/http"

	"github.com/crovest/command-center/internal/store"
)

var todoStatuses = []string{store.TodoActive, store.TodoDone}

type createTodoRequest struct {
	Title    string `json:"title"`
	Priority int    `json:"priority"`
}

func (s *Server) handleListTodos(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	var v validator
	v.oneOf("status", status, todoStatuses)
	if !v.ok(w) {
		return
	}

	todos, err := s.store.ListTodos(r.Context(), status)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, todos)
}

func (s *Server) handleCreateTodo(w http.ResponseWriter, r *http.Request) {
	var req createTodoRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}
	var v validator
	v.required("title", req.Title)
	if req.Priority != 0 {
		v.between("priority", req.Priority, 1, 5)
	}
	if !v.ok(w) {
		return
	}

	id, err := s.store.CreateTodo(r.Context(), req.Title, req.Priority)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "status": "created"})
}

func (s *Server) handleUpdateTodo(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var p store.TodoPatch
	if !decodeJSON(w, r, &p, true) {
		return
	}
	var v validator
	if p.Title != nil {
		v.required("title", *p.Title)
	}
	if p.Status != nil {
		v.required("status", *p.Status)
		v.oneOf("status", *p.Status, todoStatuses)
	}
	if p.Priority != nil {
		v.between("priority", *p.Priority, 1, 5)
	}
	if !v.ok(w) {
		return
	}

	if err := s.store.UpdateTodo(r.Context(), id, p); err != nil {
		writeStoreError(w, r, err)
		return
	}
	todo, err := s.store.GetTodo(r.Context(), id)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, todo)
}

func (s *Server) handleDeleteTodo(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	if err := s.store.DeleteTodo(r.Context(), id); err != nil {
		writeStoreError(w, r, err)
		return
	}
	statusOK(w, "deleted")
}
