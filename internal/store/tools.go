package store

import (
	"context"
	"fmt"
)

// Tool health states.
const (
	ToolUnknown = "unknown"
	ToolHealthy = "healthy"
	ToolError   = "error"
)

// ToolStatuses lists the accepted tool states.
var ToolStatuses = []string{ToolUnknown, ToolHealthy, ToolError}

// Tool is an external service whose health is tracked.
type Tool struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	URL         string  `json:"url"`
	CheckURL    string  `json:"check_url"`
	Status      string  `json:"status"`
	ErrorCount  int     `json:"error_count"`
	LastError   *string `json:"last_error"`
	LastChecked *string `json:"last_checked"`
	CreatedAt   string  `json:"created_at"`
}

// ToolInput is the body of a tool registration.
type ToolInput struct {
	Name     string `json:"name"      yaml:"name"`
	URL      string `json:"url"       yaml:"url"`
	CheckURL string `json:"check_url" yaml:"check_url"`
}

// ToolPatch carries the fields of a partial tool update.
type ToolPatch struct {
	Name     *string `json:"name"`
	URL      *string `json:"url"`
	CheckURL *string `json:"check_url"`
	Status   *string `json:"status"`
}

const toolColumns = `id, name, url, check_url, status, error_count, last_error, last_checked, created_at`

func scanTool(sc rowScanner, t *Tool) error {
	return sc.Scan(&t.ID, &t.Name, &t.URL, &t.CheckURL, &t.Status, &t.ErrorCount, &t.LastError, &t.LastChecked, &t.CreatedAt)
}

// ListTools returns every tool ordered by name.
func (s *Store) ListTools(ctx context.Context) ([]Tool, error) {
	rows, err := s.queryRows(ctx, `SELECT `+toolColumns+` FROM tools ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("store: list tools: %w", err)
	}
	defer rows.Close()

	out := []Tool{}
	for rows.Next() {
		var t Tool
		if err := scanTool(rows, &t); err != nil {
			return nil, fmt.Errorf("store: scan tool: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// GetTool returns one tool by id.
func (s *Store) GetTool(ctx context.Context, id int64) (*Tool, error) {
	var t Tool
	if err := scanTool(s.queryRow(ctx, `SELECT `+toolColumns+` FROM tools WHERE id = ?`, id), &t); err != nil {
		return nil, notFoundOr(err, "get tool", id)
	}
	return &t, nil
}

// CreateTool registers a tool. Names are unique; a duplicate returns
// ErrConflict.
func (s *Store) CreateTool(ctx context.Context, in ToolInput) (*Tool, error) {
	now := s.timestamp()
	id, err := s.insert(ctx, s.w(),
		`INSERT INTO tools (name, url, check_url, status, error_count, created_at) VALUES (?, ?, ?, ?, 0, ?)`,
		in.Name, in.URL, in.CheckURL, ToolUnknown, now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("store: create tool %q: %w", in.Name, ErrConflict)
		}
		return nil, fmt.Errorf("store: create tool: %w", err)
	}
	return &Tool{
		ID:        id,
		Name:      in.Name,
		URL:       in.URL,
		CheckURL:  in.CheckURL,
		Status:    ToolUnknown,
		CreatedAt: now,
	}, nil
}

// UpdateTool applies a partial update.
func (s *Store) UpdateTool(ctx context.Context, id int64, p ToolPatch) error {
	var a assignments
	if p.Name != nil {
		a.set("name", *p.Name)
	}
	if p.URL != nil {
		a.set("url", *p.URL)
	}
	if p.CheckURL != nil {
		a.set("check_url", *p.CheckURL)
	}
	if p.Status != nil {
		a.set("status", *p.Status)
	}
	return s.updateByID(ctx, "update tool", "tools", id, a)
}

// DeleteTool removes a tool.
func (s *Store) DeleteTool(ctx context.Context, id int64) error {
	return s.deleteByID(ctx, "delete tool", "tools", id)
}

// RecordToolError increments the error counter, marks the tool as erroring
// and remembers the message.
func (s *Store) RecordToolError(ctx context.Context, id int64, message string) (*Tool, error) {
	res, err := s.exec(ctx, s.w(), `
		UPDATE tools
		SET error_count = error_count + 1, status = ?, last_error = ?, last_checked = ?
		WHERE id = ?`,
		ToolError, message, s.timestamp(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("store: record tool error %d: %w", id, err)
	}
	if err := checkAffected(res, "record tool error", id); err != nil {
		return nil, err
	}
	return s.GetTool(ctx, id)
}

// MarkToolHealthy records a successful check. The error counter is kept so
// the history of failures stays visible until an explicit reset.
func (s *Store) MarkToolHealthy(ctx context.Context, id int64) error {
	res, err := s.exec(ctx, s.w(),
		`UPDATE tools SET status = ?, last_checked = ? WHERE id = ?`,
		ToolHealthy, s.timestamp(), id,
	)
	if err != nil {
		return fmt.Errorf("store: mark tool healthy %d: %w", id, err)
	}
	return checkAffected(res, "mark tool healthy", id)
}

// ResetToolErrors clears the error counter and returns the tool to "unknown".
func (s *Store) ResetToolErrors(ctx context.Context, id int64) (*Tool, error) {
	res, err := s.exec(ctx, s.w(),
		`UPDATE tools SET error_count = 0, status = ?, last_error = NULL WHERE id = ?`,
		ToolUnknown, id,
	)
	if err != nil {
		return nil, fmt.Errorf("store: reset tool errors %d: %w", id, err)
	}
	if err := checkAffected(res, "reset tool errors", id); err != nil {
		return nil, err
	}
	return s.GetTool(ctx, id)
}
