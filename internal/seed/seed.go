// Package seed loads sample records into a fresh database.
package seed

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/crovest/command-center/internal/store"
)

//go:embed sample.yaml
var sampleYAML []byte

// TodoSeed is a todo entry in a seed file.
type TodoSeed struct {
	Title    string `yaml:"title"`
	Priority int    `yaml:"priority"`
}

// Data is the document layout of a seed file.
type Data struct {
	Tasks      []store.TaskInput      `yaml:"tasks"`
	Clients    []store.ClientInput    `yaml:"clients"`
	Objectives []store.ObjectiveInput `yaml:"objectives"`
	Bots       []store.HealthReport   `yaml:"bots"`
	Todos      []TodoSeed             `yaml:"todos"`
	Tools      []store.ToolInput      `yaml:"tools"`
	Habits     []store.HabitInput     `yaml:"habits"`
}

// Result counts the records written by Apply.
type Result struct {
	Tasks      int
	Clients    int
	Objectives int
	Bots       int
	Todos      int
	Tools      int
	Habits     int
}

// Total returns the number of records written.
func (r Result) Total() int {
	return r.Tasks + r.Clients + r.Objectives + r.Bots + r.Todos + r.Tools + r.Habits
}

// Parse decodes a seed document. Unknown keys are rejected.
func Parse(r io.Reader) (*Data, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var d Data
	if err := dec.Decode(&d); err != nil {
		if errors.Is(err, io.EOF) {
			return &d, nil
		}
		return nil, fmt.Errorf("seed: parsing: %w", err)
	}
	return &d, nil
}

// ParseFile decodes the seed document at path.
func ParseFile(path string) (*Data, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("seed: opening %s: %w", path, err)
	}
	defer f.Close()
	return Parse(f)
}

// Sample returns the built-in sample data.
func Sample() *Data {
	d, err := Parse(bytes.NewReader(sampleYAML))
	if err != nil {
		panic(err)
	}
	return d
}

// Apply writes every record in d in one transaction, so a bad record leaves
// the database untouched. Objectives without a month or year are placed in
// the month of now. Tools whose name is already registered are skipped.
func Apply(ctx context.Context, st *store.Store, d *Data, now time.Time) (Result, error) {
	var res Result
	err := st.InTx(ctx, func(tx *store.Store) error {
		var err error
		res, err = apply(ctx, tx, d, now)
		return err
	})
	if err != nil {
		return Result{}, err
	}
	return res, nil
}

func apply(ctx context.Context, tx *store.Store, d *Data, now time.Time) (Result, error) {
	var res Result

	for _, t := range d.Tasks {
		if _, err := tx.CreateTask(ctx, t); err != nil {
			return res, fmt.Errorf("seed: task %q: %w", t.Title, err)
		}
		res.Tasks++
	}

	for _, c := range d.Clients {
		if _, err := tx.CreateClient(ctx, c); err != nil {
			return res, fmt.Errorf("seed: client %q: %w", c.Name, err)
		}
		res.Clients++
	}

	for _, o := range d.Objectives {
		if o.Month == 0 {
			o.Month = int(now.Month())
		}
		if o.Year == 0 {
			o.Year = now.Year()
		}
		if _, err := tx.CreateObjective(ctx, o); err != nil {
			return res, fmt.Errorf("seed: objective %q: %w", o.Title, err)
		}
		res.Objectives++
	}

	for _, b := range d.Bots {
		if err := tx.ReportBotHealth(ctx, b); err != nil {
			return res, fmt.Errorf("seed: bot %q: %w", b.BotName, err)
		}
		res.Bots++
	}

	for _, t := range d.Todos {
		if _, err := tx.CreateTodo(ctx, t.Title, t.Priority); err != nil {
			return res, fmt.Errorf("seed: todo %q: %w", t.Title, err)
		}
		res.Todos++
	}

	// A failed insert aborts a PostgreSQL transaction, so duplicates are
	// filtered up front instead of relying on ErrConflict.
	existing, err := tx.ListTools(ctx)
	if err != nil {
		return res, fmt.Errorf("seed: %w", err)
	}
	registered := make(map[string]bool, len(existing)+len(d.Tools))
	for _, t := range existing {
		registered[t.Name] = true
	}
	for _, t := range d.Tools {
		if registered[t.Name] {
			log.Debug().Str("tool", t.Name).Msg("seed: tool already registered")
			continue
		}
		if _, err := tx.CreateTool(ctx, t); err != nil {
			return res, fmt.Errorf("seed: tool %q: %w", t.Name, err)
		}
		registered[t.Name] = true
		res.Tools++
	}

	for _, h := range d.Habits {
		if _, err := tx.CreateHabit(ctx, h); err != nil {
			return res, fmt.Errorf("seed: habit %q: %w", h.Name, err)
		}
		res.Habits++
	}

	return res, nil
}

// ApplyIfEmpty applies the sample data when none of the seeded tables has
// rows yet. The check and the inserts share one transaction. It reports
// whether anything was written.
func ApplyIfEmpty(ctx context.Context, st *store.Store, now time.Time) (bool, error) {
	var res Result
	applied := false
	err := st.InTx(ctx, func(tx *store.Store) error {
		empty, err := tx.IsEmpty(ctx)
		if err != nil || !empty {
			return err
		}
		res, err = apply(ctx, tx, Sample(), now)
		applied = err == nil
		return err
	})
	if err != nil {
		return false, err
	}
	if applied {
		log.Info().Int("records", res.Total()).Msg("sample data seeded")
	}
	return applied, nil
}
