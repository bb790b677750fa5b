package store

import (
	"context"
	"fmt"
)

// Objective is a monthly goal with a completion percentage.
type Objective struct {
	ID          int64   `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Deadline    *string `json:"deadline"`
	Progress    int     `json:"progress"`
	Month       int     `json:"month"`
	Year        int     `json:"year"`
	CreatedAt   string  `json:"created_at"`
	UpdatedAt   string  `json:"updated_at"`
}

// ObjectiveInput is the body of an objective creation.
type ObjectiveInput struct {
	Title       string  `json:"title"       yaml:"title"`
	Description string  `json:"description" yaml:"description"`
	Deadline    *string `json:"deadline"    yaml:"deadline"`
	Progress    int     `json:"progress"    yaml:"progress"`
	Month       int     `json:"month"       yaml:"month"`
	Year        int     `json:"year"        yaml:"year"`
}

// ObjectivePatch carries the fields of a partial objective update.
type ObjectivePatch struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Deadline    *string `json:"deadline"`
	Progress    *int    `json:"progress"`
	Month       *int    `json:"month"`
	Year        *int    `json:"year"`
}

const objectiveColumns = `id, title, description, deadline, progress, month, year, created_at, updated_at`

func scanObjective(sc rowScanner, o *Objective) error {
	return sc.Scan(&o.ID, &o.Title, &o.Description, &o.Deadline, &o.Progress, &o.Month, &o.Year, &o.CreatedAt, &o.UpdatedAt)
}

// ListObjectives returns objectives for one month when both month and year
// are set, ordered by deadline with undated objectives last. Otherwise every
// objective is returned, latest period first.
func (s *Store) ListObjectives(ctx context.Context, month, year int) ([]Objective, error) {
	query := `SELECT ` + objectiveColumns + ` FROM objectives`
	var args []any
	if month > 0 && year > 0 {
		query += ` WHERE month = ? AND year = ? ORDER BY deadline IS NULL, deadline, id`
		args = append(args, month, year)
	} else {
		query += ` ORDER BY year DESC, month DESC, deadline IS NULL, deadline, id`
	}

	rows, err := s.queryRows(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list objectives: %w", err)
	}
	defer rows.Close()

	out := []Objective{}
	for rows.Next() {
		var o Objective
		if err := scanObjective(rows, &o); err != nil {
			return nil, fmt.Errorf("store: scan objective: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// GetObjective returns one objective by id.
func (s *Store) GetObjective(ctx context.Context, id int64) (*Objective, error) {
	var o Objective
	if err := scanObjective(s.queryRow(ctx, `SELECT `+objectiveColumns+` FROM objectives WHERE id = ?`, id), &o); err != nil {
		return nil, notFoundOr(err, "get objective", id)
	}
	return &o, nil
}

// CreateObjective inserts an objective and returns the stored row. An empty
// deadline is stored as NULL, as UpdateObjective does.
func (s *Store) CreateObjective(ctx context.Context, in ObjectiveInput) (*Objective, error) {
	if in.Deadline != nil && *in.Deadline == "" {
		in.Deadline = nil
	}
	now := s.timestamp()
	id, err := s.insert(ctx, s.w(), `
		INSERT INTO objectives (title, description, deadline, progress, month, year, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		in.Title, in.Description, in.Deadline, in.Progress, in.Month, in.Year, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("store: create objective: %w", err)
	}
	return &Objective{
		ID:          id,
		Title:       in.Title,
		Description: in.Description,
		Deadline:    in.Deadline,
		Progress:    in.Progress,
		Month:       in.Month,
		Year:        in.Year,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// UpdateObjective applies a partial update and bumps updated_at. An empty
// deadline string clears the deadline.
func (s *Store) UpdateObjective(ctx context.Context, id int64, p ObjectivePatch) error {
	var a assignments
	if p.Title != nil {
		a.set("title", *p.Title)
	}
	if p.Description != nil {
		a.set("description", *p.Description)
	}
	if p.Deadline != nil {
		if *p.Deadline == "" {
			a.set("deadline", nil)
		} else {
			a.set("deadline", *p.Deadline)
		}
	}
	if p.Progress != nil {
		a.set("progress", *p.Progress)
	}
	if p.Month != nil {
		a.set("month", *p.Month)
	}
	if p.Year != nil {
		a.set("year", *p.Year)
	}
	if !a.empty() {
		a.set("updated_at", s.timestamp())
	}
	return s.updateByID(ctx, "update objective", "objectives", id, a)
}

// DeleteObjective removes an objective.
func (s *Store) DeleteObjective(ctx context.Context, id int64) error {
	return s.deleteByID(ctx, "delete objective", "objectives", id)
}
