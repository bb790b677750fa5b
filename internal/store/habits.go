package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// StreakWindowDays is the look-back window used to compute a habit's streak.
const StreakWindowDays = 30

// Habit is a recurring practice with a denormalized streak.
type Habit struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Description  string `json:"description"`
	Streak       int    `json:"streak"`
	CheckedToday bool   `json:"checked_today"`
	CreatedAt    string `json:"created_at"`
}

// HabitInput is the body of a habit creation.
type HabitInput struct {
	Name        string `json:"name"        yaml:"name"`
	Description string `json:"description" yaml:"description"`
}

// HabitLog is one completed day of a habit.
type HabitLog struct {
	ID        int64  `json:"id"`
	HabitID   int64  `json:"habit_id"`
	LogDate   string `json:"log_date"`
	CreatedAt string `json:"created_at"`
}

const habitSelect = `
	SELECT h.id, h.name, h.description, h.streak, h.created_at,
		EXISTS (SELECT 1 FROM habit_logs l WHERE l.habit_id = h.id AND l.log_date = ?)
	FROM habits h`

func scanHabit(sc rowScanner, h *Habit) error {
	return sc.Scan(&h.ID, &h.Name, &h.Description, &h.Streak, &h.CreatedAt, &h.CheckedToday)
}

// ListHabits returns every habit with whether it was checked in today.
func (s *Store) ListHabits(ctx context.Context) ([]Habit, error) {
	rows, err := s.queryRows(ctx, habitSelect+` ORDER BY h.id`, s.Today())
	if err != nil {
		return nil, fmt.Errorf("store: list habits: %w", err)
	}
	defer rows.Close()

	out := []Habit{}
	for rows.Next() {
		var h Habit
		if err := scanHabit(rows, &h); err != nil {
			return nil, fmt.Errorf("store: scan habit: %w", err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// GetHabit returns one habit by id.
func (s *Store) GetHabit(ctx context.Context, id int64) (*Habit, error) {
	var h Habit
	if err := scanHabit(s.queryRow(ctx, habitSelect+` WHERE h.id = ?`, s.Today(), id), &h); err != nil {
		return nil, notFoundOr(err, "get habit", id)
	}
	return &h, nil
}

// CreateHabit inserts a habit with an empty streak.
func (s *Store) CreateHabit(ctx context.Context, in HabitInput) (*Habit, error) {
	now := s.timestamp()
	id, err := s.insert(ctx, s.w(),
		`INSERT INTO habits (name, description, streak, created_at) VALUES (?, ?, 0, ?)`,
		in.Name, in.Description, now,
	)
	if err != nil {
		return nil, fmt.Errorf("store: create habit: %w", err)
	}
	return &Habit{ID: id, Name: in.Name, Description: in.Description, CreatedAt: now}, nil
}

// DeleteHabit removes a habit; its logs are removed by the cascade.
func (s *Store) DeleteHabit(ctx context.Context, id int64) error {
	return s.deleteByID(ctx, "delete habit", "habits", id)
}

// CheckInHabit marks date (YYYY-MM-DD, empty for today) as done. Checking in
// twice on the same day is a no-op.
func (s *Store) CheckInHabit(ctx context.Context, id int64, date string) (*Habit, error) {
	date = s.dateOrToday(date)
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := s.habitExists(ctx, tx, id); err != nil {
			return err
		}
		if _, err := s.exec(ctx, tx, `
			INSERT INTO habit_logs (habit_id, log_date, created_at) VALUES (?, ?, ?)
			ON CONFLICT (habit_id, log_date) DO NOTHING`,
			id, date, s.timestamp(),
		); err != nil {
			return err
		}
		return s.recalculateStreak(ctx, tx, id)
	})
	if err != nil {
		return nil, habitErr(err, "check in habit", id)
	}
	return s.GetHabit(ctx, id)
}

// UncheckHabit removes the log for date (empty for today), if any.
func (s *Store) UncheckHabit(ctx context.Context, id int64, date string) (*Habit, error) {
	date = s.dateOrToday(date)
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := s.habitExists(ctx, tx, id); err != nil {
			return err
		}
		if _, err := s.exec(ctx, tx, `DELETE FROM habit_logs WHERE habit_id = ? AND log_date = ?`, id, date); err != nil {
			return err
		}
		return s.recalculateStreak(ctx, tx, id)
	})
	if err != nil {
		return nil, habitErr(err, "uncheck habit", id)
	}
	return s.GetHabit(ctx, id)
}

// ToggleHabit flips the completion state of date (empty for today). It
// reports whether the date is checked after the toggle.
func (s *Store) ToggleHabit(ctx context.Context, id int64, date string) (*Habit, bool, error) {
	date = s.dateOrToday(date)
	var checked bool
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := s.habitExists(ctx, tx, id); err != nil {
			return err
		}
		res, err := s.exec(ctx, tx, `DELETE FROM habit_logs WHERE habit_id = ? AND log_date = ?`, id, date)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			if _, err := s.exec(ctx, tx,
				`INSERT INTO habit_logs (habit_id, log_date, created_at) VALUES (?, ?, ?)`,
				id, date, s.timestamp(),
			); err != nil {
				return err
			}
			checked = true
		}
		return s.recalculateStreak(ctx, tx, id)
	})
	if err != nil {
		return nil, false, habitErr(err, "toggle habit", id)
	}
	h, err := s.GetHabit(ctx, id)
	return h, checked, err
}

// ListHabitLogs returns the completed days of a habit, newest first.
func (s *Store) ListHabitLogs(ctx context.Context, id int64) ([]HabitLog, error) {
	if err := s.habitExists(ctx, s.r(), id); err != nil {
		return nil, habitErr(err, "list habit logs", id)
	}
	rows, err := s.queryRows(ctx,
		`SELECT id, habit_id, log_date, created_at FROM habit_logs WHERE habit_id = ? ORDER BY log_date DESC`, id)
	if err != nil {
		return nil, fmt.Errorf("store: list habit logs %d: %w", id, err)
	}
	defer rows.Close()

	out := []HabitLog{}
	for rows.Next() {
		var l HabitLog
		if err := rows.Scan(&l.ID, &l.HabitID, &l.LogDate, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("store: scan habit log: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// RecalculateStreak recomputes the streak of one habit from its logs.
func (s *Store) RecalculateStreak(ctx context.Context, id int64) error {
	if err := s.recalculateStreak(ctx, s.w(), id); err != nil {
		return fmt.Errorf("store: recalculate streak %d: %w", id, err)
	}
	return nil
}

// recalculateStreak sets streak to the number of distinct days logged within
// the trailing StreakWindowDays window.
func (s *Store) recalculateStreak(ctx context.Context, q execQuerier, id int64) error {
	cutoff := s.now().AddDate(0, 0, -StreakWindowDays).Format(dateLayout)
	_, err := s.exec(ctx, q, `
		UPDATE habits SET streak = (
			SELECT COUNT(DISTINCT log_date) FROM habit_logs
			WHERE habit_id = ? AND log_date >= ?
		) WHERE id = ?`,
		id, cutoff, id,
	)
	return err
}

func (s *Store) habitExists(ctx context.Context, q execQuerier, id int64) error {
	var one int
	err := q.QueryRowContext(ctx, s.rebind(`SELECT 1 FROM habits WHERE id = ?`), id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func (s *Store) dateOrToday(date string) string {
	if date == "" {
		return s.Today()
	}
	return date
}

func habitErr(err error, op string, id int64) error {
	if errors.Is(err, ErrNotFound) {
		return fmt.Errorf("store: %s %d: %w", op, id, ErrNotFound)
	}
	return fmt.Errorf("store: %s %d: %w", op, id, err)
}

// ValidDate reports whether s is a YYYY-MM-DD calendar date.
func ValidDate(s string) bool {
	_, err := time.Parse(dateLayout, s)
	return err == nil
}
