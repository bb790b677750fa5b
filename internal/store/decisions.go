package store

import (
	"context"
	"fmt"
)

// Decision records a choice that was made and why.
type Decision struct {
	ID        int64  `json:"id"`
	Decision  string `json:"decision"`
	Context   string `json:"context"`
	CreatedAt string `json:"created_at"`
}

// ListDecisions returns decisions newest first.
func (s *Store) ListDecisions(ctx context.Context) ([]Decision, error) {
	rows, err := s.queryRows(ctx, `SELECT id, decision, context, created_at FROM decisions ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("store: list decisions: %w", err)
	}
	defer rows.Close()

	out := []Decision{}
	for rows.Next() {
		var d Decision
		if err := rows.Scan(&d.ID, &d.Decision, &d.Context, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("store: scan decision: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// CreateDecision inserts a decision and returns the stored row.
func (s *Store) CreateDecision(ctx context.Context, decision, reason string) (*Decision, error) {
	now := s.timestamp()
	id, err := s.insert(ctx, s.w(),
		`INSERT INTO decisions (decision, context, created_at) VALUES (?, ?, ?)`,
		decision, reason, now,
	)
	if err != nil {
		return nil, fmt.Errorf("store: create decision: %w", err)
	}
	return &Decision{ID: id, Decision: decision, Context: reason, CreatedAt: now}, nil
}

// DeleteDecision removes a decision.
func (s *Store) DeleteDecision(ctx context.Context, id int64) error {
	return s.deleteByID(ctx, "delete decision", "decisions", id)
}
