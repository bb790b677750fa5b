package store

import (
	"context"
	"fmt"
	"time"
)

// DashboardSummary holds the headline counters shown on the dashboard.
type DashboardSummary struct {
	ActiveTodos        int64   `json:"active_todos"`
	PendingDecisions   int64   `json:"pending_decisions"`
	OpenTasks          int64   `json:"open_tasks"`
	BotsOnline         int64   `json:"bots_online"`
	BotsTotal          int64   `json:"bots_total"`
	ToolsErroring      int64   `json:"tools_erroring"`
	HabitsCheckedToday int64   `json:"habits_checked_today"`
	MonthCost          float64 `json:"month_cost"`
	Timestamp          string  `json:"timestamp"`
}

// DashboardSummary computes the dashboard counters in a single round trip.
func (s *Store) DashboardSummary(ctx context.Context) (*DashboardSummary, error) {
	now := s.now()
	start, end := monthRange(int(now.Month()), now.Year())

	d := &DashboardSummary{Timestamp: now.UTC().Format(time.RFC3339)}
	err := s.queryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM todos WHERE status = 'active'),
			(SELECT COUNT(*) FROM decisions),
			(SELECT COUNT(*) FROM tasks WHERE status <> 'done'),
			(SELECT COUNT(*) FROM bot_health WHERE status = 'online'),
			(SELECT COUNT(*) FROM bot_health),
			(SELECT COUNT(*) FROM tools WHERE status = 'error'),
			(SELECT COUNT(DISTINCT habit_id) FROM habit_logs WHERE log_date = ?),
			(SELECT COALESCE(SUM(amount), 0) FROM costs WHERE incurred_on >= ? AND incurred_on < ?)`,
		now.Format(dateLayout), start, end,
	).Scan(
		&d.ActiveTodos, &d.PendingDecisions, &d.OpenTasks,
		&d.BotsOnline, &d.BotsTotal, &d.ToolsErroring,
		&d.HabitsCheckedToday, &d.MonthCost,
	)
	if err != nil {
		return nil, fmt.Errorf("store: dashboard summary: %w", err)
	}
	return d, nil
}
