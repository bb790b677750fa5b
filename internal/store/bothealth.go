package store

import (
	"context"
	"fmt"
)

// BotStatuses lists the states a bot can report.
var BotStatuses = []string{"online", "offline", "error"}

// BotHealth is the latest heartbeat of one bot.
type BotHealth struct {
	ID            int64   `json:"id"`
	BotName       string  `json:"bot_name"`
	Status        string  `json:"status"`
	LastSeen      *string `json:"last_seen"`
	UptimeSeconds int64   `json:"uptime_seconds"`
	CreatedAt     string  `json:"created_at"`
	UpdatedAt     string  `json:"updated_at"`
}

// HealthReport is a heartbeat posted by a bot. LastSeen defaults to now.
type HealthReport struct {
	BotName       string `json:"bot_name"       yaml:"bot_name"`
	Status        string `json:"status"         yaml:"status"`
	UptimeSeconds int64  `json:"uptime_seconds" yaml:"uptime_seconds"`
	LastSeen      string `json:"-"              yaml:"last_seen"`
}

// ListBotHealth returns every bot, most recently seen first.
func (s *Store) ListBotHealth(ctx context.Context) ([]BotHealth, error) {
	rows, err := s.queryRows(ctx, `
		SELECT id, bot_name, status, last_seen, uptime_seconds, created_at, updated_at
		FROM bot_health
		ORDER BY last_seen IS NULL, last_seen DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("store: list bot health: %w", err)
	}
	defer rows.Close()

	out := []BotHealth{}
	for rows.Next() {
		var b BotHealth
		if err := rows.Scan(&b.ID, &b.BotName, &b.Status, &b.LastSeen, &b.UptimeSeconds, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, fmt.Errorf("store: scan bot health: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// ReportBotHealth upserts the health row keyed by bot name.
func (s *Store) ReportBotHealth(ctx context.Context, r HealthReport) error {
	now := s.timestamp()
	lastSeen := r.LastSeen
	if lastSeen == "" {
		lastSeen = now
	}
	_, err := s.exec(ctx, s.w(), `
		INSERT INTO bot_health (bot_name, status, last_seen, uptime_seconds, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (bot_name) DO UPDATE SET
			status = excluded.status,
			last_seen = excluded.last_seen,
			uptime_seconds = excluded.uptime_seconds,
			updated_at = excluded.updated_at`,
		r.BotName, r.Status, lastSeen, r.UptimeSeconds, now, now,
	)
	if err != nil {
		return fmt.Errorf("store: report bot health %q: %w", r.BotName, err)
	}
	return nil
}
