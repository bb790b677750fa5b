package store

import (
	"context"
	"fmt"
)

// Task board columns and priorities.
var (
	TaskStatuses   = []string{"todo", "in_progress", "done"}
	TaskPriorities = []string{"low", "medium", "high"}
)

// Task is a card on the kanban board.
type Task struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Status      string `json:"status"`
	Priority    string `json:"priority"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

// TaskInput is the body of a task creation.
type TaskInput struct {
	Title       string `json:"title"        yaml:"title"`
	Description string `json:"description"  yaml:"description"`
	Status      string `json:"status"       yaml:"status"`
	Priority    string `json:"priority"     yaml:"priority"`
}

// TaskPatch carries the fields of a partial task update.
type TaskPatch struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Status      *string `json:"status"`
	Priority    *string `json:"priority"`
}

const taskColumns = `id, title, description, status, priority, created_at, updated_at`

func scanTask(sc rowScanner, t *Task) error {
	return sc.Scan(&t.ID, &t.Title, &t.Description, &t.Status, &t.Priority, &t.CreatedAt, &t.UpdatedAt)
}

// ListTasks returns all tasks, newest first.
func (s *Store) ListTasks(ctx context.Context) ([]Task, error) {
	rows, err := s.queryRows(ctx, `SELECT `+taskColumns+` FROM tasks ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("store: list tasks: %w", err)
	}
	defer rows.Close()

	tasks := []Task{}
	for rows.Next() {
		var t Task
		if err := scanTask(rows, &t); err != nil {
			return nil, fmt.Errorf("store: scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// GetTask returns one task by id.
func (s *Store) GetTask(ctx context.Context, id int64) (*Task, error) {
	var t Task
	if err := scanTask(s.queryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id), &t); err != nil {
		return nil, notFoundOr(err, "get task", id)
	}
	return &t, nil
}

// CreateTask inserts a task and returns the stored row. Empty status and
// priority default to "todo" and "medium".
func (s *Store) CreateTask(ctx context.Context, in TaskInput) (*Task, error) {
	if in.Status == "" {
		in.Status = "todo"
	}
	if in.Priority == "" {
		in.Priority = "medium"
	}
	now := s.timestamp()
	id, err := s.insert(ctx, s.w(),
		`INSERT INTO tasks (title, description, status, priority, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		in.Title, in.Description, in.Status, in.Priority, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("store: create task: %w", err)
	}
	return &Task{
		ID:          id,
		Title:       in.Title,
		Description: in.Description,
		Status:      in.Status,
		Priority:    in.Priority,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// UpdateTask applies a partial update and bumps updated_at.
func (s *Store) UpdateTask(ctx context.Context, id int64, p TaskPatch) error {
	var a assignments
	if p.Title != nil {
		a.set("title", *p.Title)
	}
	if p.Description != nil {
		a.set("description", *p.Description)
	}
	if p.Status != nil {
		a.set("status", *p.Status)
	}
	if p.Priority != nil {
		a.set("priority", *p.Priority)
	}
	if !a.empty() {
		a.set("updated_at", s.timestamp())
	}
	return s.updateByID(ctx, "update task", "tasks", id, a)
}

// DeleteTask removes a task.
func (s *Store) DeleteTask(ctx context.Context, id int64) error {
	return s.deleteByID(ctx, "delete task", "tasks", id)
}

// IsEmpty reports whether none of the tables written by seeding has rows.
// Seeding only runs against an empty database.
func (s *Store) IsEmpty(ctx context.Context) (bool, error) {
	var n int64
	err := s.queryRow(ctx, `SELECT
		(SELECT COUNT(*) FROM tasks) + (SELECT COUNT(*) FROM todos) +
		(SELECT COUNT(*) FROM clients) + (SELECT COUNT(*) FROM objectives) +
		(SELECT COUNT(*) FROM bot_health) + (SELECT COUNT(*) FROM tools) +
		(SELECT COUNT(*) FROM habits)`).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("store: count seeded rows: %w", err)
	}
	return n == 0, nil
}
