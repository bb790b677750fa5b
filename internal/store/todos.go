package store

import (
	"context"
	"fmt"
)

// Todo statuses.
const (
	TodoActive = "active"
	TodoDone   = "done"
)

// DefaultTodoPriority is used when a todo is created without a priority.
const DefaultTodoPriority = 3

// Todo is a single actionable item ordered by priority (1 is most urgent).
type Todo struct {
	ID        int64  `json:"id"`
	Title     string `json:"title"`
	Status    string `json:"status"`
	Priority  int    `json:"priority"`
	CreatedAt string `json:"created_at"`
}

// TodoPatch carries the fields of a partial todo update.
type TodoPatch struct {
	Title    *string `json:"title"`
	Status   *string `json:"status"`
	Priority *int    `json:"priority"`
}

const todoColumns = `id, title, status, priority, created_at`

func scanTodo(sc rowScanner, t *Todo) error {
	return sc.Scan(&t.ID, &t.Title, &t.Status, &t.Priority, &t.CreatedAt)
}

// ListTodos returns todos ordered by priority then id. A non-empty status
// restricts the result to that status.
func (s *Store) ListTodos(ctx context.Context, status string) ([]Todo, error) {
	query := `SELECT ` + todoColumns + ` FROM todos`
	var args []any
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY priority, id`

	rows, err := s.queryRows(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list todos: %w", err)
	}
	defer rows.Close()

	todos := []Todo{}
	for rows.Next() {
		var t Todo
		if err := scanTodo(rows, &t); err != nil {
			return nil, fmt.Errorf("store: scan todo: %w", err)
		}
		todos = append(todos, t)
	}
	return todos, rows.Err()
}

// GetTodo returns one todo by id.
func (s *Store) GetTodo(ctx context.Context, id int64) (*Todo, error) {
	var t Todo
	if err := scanTodo(s.queryRow(ctx, `SELECT `+todoColumns+` FROM todos WHERE id = ?`, id), &t); err != nil {
		return nil, notFoundOr(err, "get todo", id)
	}
	return &t, nil
}

// CreateTodo inserts an active todo and returns its id. A priority of zero
// falls back to DefaultTodoPriority.
func (s *Store) CreateTodo(ctx context.Context, title string, priority int) (int64, error) {
	if priority == 0 {
		priority = DefaultTodoPriority
	}
	id, err := s.insert(ctx, s.w(),
		`INSERT INTO todos (title, status, priority, created_at) VALUES (?, ?, ?, ?)`,
		title, TodoActive, priority, s.timestamp(),
	)
	if err != nil {
		return 0, fmt.Errorf("store: create todo: %w", err)
	}
	return id, nil
}

// UpdateTodo applies a partial update.
func (s *Store) UpdateTodo(ctx context.Context, id int64, p TodoPatch) error {
	var a assignments
	if p.Title != nil {
		a.set("title", *p.Title)
	}
	if p.Status != nil {
		a.set("status", *p.Status)
	}
	if p.Priority != nil {
		a.set("priority", *p.Priority)
	}
	return s.updateByID(ctx, "update todo", "todos", id, a)
}

// DeleteTodo removes a todo.
func (s *Store) DeleteTodo(ctx context.Context, id int64) error {
	return s.deleteByID(ctx, "delete todo", "todos", id)
}
