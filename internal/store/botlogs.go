package store

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// MaxBotLogLimit caps the number of bot log rows a single query returns.
const MaxBotLogLimit = 100

// BotLog is one line reported by a bot.
type BotLog struct {
	ID        int64  `json:"id"`
	BotName   string `json:"bot_name"`
	Level     string `json:"level"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// BotLogFilter narrows ListBotLogs. Zero values mean "no filter"; a Limit
// outside 1..MaxBotLogLimit is clamped to MaxBotLogLimit.
type BotLogFilter struct {
	Bot   string
	Level string
	Limit int
}

// ListBotLogs returns bot logs newest first.
func (s *Store) ListBotLogs(ctx context.Context, f BotLogFilter) ([]BotLog, error) {
	var (
		where []string
		args  []any
	)
	if f.Bot != "" {
		where = append(where, "bot_name = ?")
		args = append(args, f.Bot)
	}
	if f.Level != "" {
		where = append(where, "level = ?")
		args = append(args, normalizeLevel(f.Level))
	}

	limit := f.Limit
	if limit <= 0 || limit > MaxBotLogLimit {
		limit = MaxBotLogLimit
	}

	query := `SELECT id, bot_name, level, message, timestamp FROM bot_logs`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY timestamp DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.queryRows(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list bot logs: %w", err)
	}
	defer rows.Close()

	logs := []BotLog{}
	for rows.Next() {
		var l BotLog
		if err := rows.Scan(&l.ID, &l.BotName, &l.Level, &l.Message, &l.Timestamp); err != nil {
			return nil, fmt.Errorf("store: scan bot log: %w", err)
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

// normalizeLevel upper-cases level and folds WARN into WARNING, the
// spelling the log tailer emits.
func normalizeLevel(level string) string {
	level = strings.ToUpper(strings.TrimSpace(level))
	if level == "WARN" {
		return "WARNING"
	}
	return level
}

// CreateBotLog stores a bot log line. The level is normalised and defaults
// to INFO.
func (s *Store) CreateBotLog(ctx context.Context, botName, level, message string) (*BotLog, error) {
	level = normalizeLevel(level)
	if level == "" {
		level = "INFO"
	}
	now := s.timestamp()
	id, err := s.insert(ctx, s.w(),
		`INSERT INTO bot_logs (bot_name, level, message, timestamp) VALUES (?, ?, ?, ?)`,
		botName, level, message, now,
	)
	if err != nil {
		return nil, fmt.Errorf("store: create bot log: %w", err)
	}
	return &BotLog{ID: id, BotName: botName, Level: level, Message: message, Timestamp: now}, nil
}

// PruneBotLogs deletes bot logs older than retentionDays and returns the
// number of rows removed. A non-positive retention keeps everything.
func (s *Store) PruneBotLogs(ctx context.Context, retentionDays int) (int64, error) {
	if retentionDays <= 0 {
		return 0, nil
	}
	cutoff := s.now().UTC().AddDate(0, 0, -retentionDays).Format(time.RFC3339)
	res, err := s.exec(ctx, s.w(), `DELETE FROM bot_logs WHERE timestamp < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("store: prune bot logs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("store: prune bot logs rows affected: %w", err)
	}
	return n, nil
}
