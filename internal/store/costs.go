package store

import (
	"context"
	"fmt"
)

// BillingCycles lists the accepted billing cycles for a cost entry.
var BillingCycles = []string{"one_time", "monthly", "yearly"}

// Cost is one recurring or one-off expense.
type Cost struct {
	ID           int64   `json:"id"`
	Service      string  `json:"service"`
	Category     string  `json:"category"`
	Amount       float64 `json:"amount"`
	Currency     string  `json:"currency"`
	BillingCycle string  `json:"billing_cycle"`
	IncurredOn   string  `json:"incurred_on"`
	Notes        string  `json:"notes"`
	CreatedAt    string  `json:"created_at"`
}

// CostInput is the body of a cost creation. Empty fields take defaults:
// category "general", currency "USD", billing cycle "monthly", today's date.
type CostInput struct {
	Service      string  `json:"service"       yaml:"service"`
	Category     string  `json:"category"      yaml:"category"`
	Amount       float64 `json:"amount"        yaml:"amount"`
	Currency     string  `json:"currency"      yaml:"currency"`
	BillingCycle string  `json:"billing_cycle" yaml:"billing_cycle"`
	IncurredOn   string  `json:"incurred_on"   yaml:"incurred_on"`
	Notes        string  `json:"notes"         yaml:"notes"`
}

// CategoryTotal is one row of a cost summary.
type CategoryTotal struct {
	Category string  `json:"category"`
	Total    float64 `json:"total"`
	Count    int64   `json:"count"`
}

// CostSummary totals a month of costs by category.
type CostSummary struct {
	Month      int             `json:"month"`
	Year       int             `json:"year"`
	Total      float64         `json:"total"`
	Categories []CategoryTotal `json:"categories"`
}

const costColumns = `id, service, category, amount, currency, billing_cycle, incurred_on, notes, created_at`

// ListCosts returns costs newest first, restricted to one month when both
// month and year are set.
func (s *Store) ListCosts(ctx context.Context, month, year int) ([]Cost, error) {
	query := `SELECT ` + costColumns + ` FROM costs`
	var args []any
	if month > 0 && year > 0 {
		start, end := monthRange(month, year)
		query += ` WHERE incurred_on >= ? AND incurred_on < ?`
		args = append(args, start, end)
	}
	query += ` ORDER BY incurred_on DESC, id DESC`

	rows, err := s.queryRows(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list costs: %w", err)
	}
	defer rows.Close()

	out := []Cost{}
	for rows.Next() {
		var c Cost
		if err := rows.Scan(&c.ID, &c.Service, &c.Category, &c.Amount, &c.Currency, &c.BillingCycle, &c.IncurredOn, &c.Notes, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("store: scan cost: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// CreateCost inserts a cost entry and returns the stored row.
func (s *Store) CreateCost(ctx context.Context, in CostInput) (*Cost, error) {
	if in.Category == "" {
		in.Category = "general"
	}
	if in.Currency == "" {
		in.Currency = "USD"
	}
	if in.BillingCycle == "" {
		in.BillingCycle = "monthly"
	}
	if in.IncurredOn == "" {
		in.IncurredOn = s.Today()
	}
	now := s.timestamp()
	id, err := s.insert(ctx, s.w(), `
		INSERT INTO costs (service, category, amount, currency, billing_cycle, incurred_on, notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		in.Service, in.Category, in.Amount, in.Currency, in.BillingCycle, in.IncurredOn, in.Notes, now,
	)
	if err != nil {
		return nil, fmt.Errorf("store: create cost: %w", err)
	}
	return &Cost{
		ID:           id,
		Service:      in.Service,
		Category:     in.Category,
		Amount:       in.Amount,
		Currency:     in.Currency,
		BillingCycle: in.BillingCycle,
		IncurredOn:   in.IncurredOn,
		Notes:        in.Notes,
		CreatedAt:    now,
	}, nil
}

// DeleteCost removes a cost entry.
func (s *Store) DeleteCost(ctx context.Context, id int64) error {
	return s.deleteByID(ctx, "delete cost", "costs", id)
}

// SummarizeCosts totals the costs incurred in one month, per category.
func (s *Store) SummarizeCosts(ctx context.Context, month, year int) (*CostSummary, error) {
	start, end := monthRange(month, year)
	rows, err := s.queryRows(ctx, `
		SELECT category, COALESCE(SUM(amount), 0), COUNT(*)
		FROM costs
		WHERE incurred_on >= ? AND incurred_on < ?
		GROUP BY category
		ORDER BY category`, start, end)
	if err != nil {
		return nil, fmt.Errorf("store: summarize costs: %w", err)
	}
	defer rows.Close()

	sum := &CostSummary{Month: month, Year: year, Categories: []CategoryTotal{}}
	for rows.Next() {
		var ct CategoryTotal
		if err := rows.Scan(&ct.Category, &ct.Total, &ct.Count); err != nil {
			return nil, fmt.Errorf("store: scan cost summary: %w", err)
		}
		sum.Total += ct.Total
		sum.Categories = append(sum.Categories, ct)
	}
	return sum, rows.Err()
}
