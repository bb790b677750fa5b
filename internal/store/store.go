package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver ("pgx")
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Dialect identifies the SQL backend behind a Store.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// Sentinel errors returned (wrapped) by Store methods.
var (
	ErrNotFound = errors.New("not found")
	ErrNoFields = errors.New("no fields to update")
	ErrConflict = errors.New("already exists")
)

const (
	dateLayout      = "2006-01-02"
	sqlitePragmas   = "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)"
	defaultReadPool = 4
)

// Options selects and tunes the backend opened by Open.
type Options struct {
	Driver       string // "sqlite" (default) or "postgres"
	Path         string // SQLite database file
	DSN          string // PostgreSQL connection string
	MaxOpenConns int
}

// Store is the persistence layer for the command center.
//
// On SQLite it uses a two-connection pattern: a single writer connection
// with MaxOpenConns=1 for serialised writes, and a separate query_only
// reader pool for concurrent reads. On PostgreSQL both handles share one
// pgx-backed pool.
type Store struct {
	dialect   Dialect
	writer    *sql.DB
	reader    *sql.DB
	path      string
	now       func() time.Time
	closeOnce sync.Once

	// tx is set on the Store handed to an InTx callback.
	tx *sql.Tx
}

// Open connects to the configured backend and applies pending migrations.
func Open(ctx context.Context, opts Options) (*Store, error) {
	var (
		s   *Store
		err error
	)
	switch Dialect(strings.ToLower(opts.Driver)) {
	case "", DialectSQLite:
		s, err = openSQLite(ctx, opts)
	case DialectPostgres:
		s, err = openPostgres(ctx, opts)
	default:
		return nil, fmt.Errorf("store: unsupported driver %q", opts.Driver)
	}
	if err != nil {
		return nil, err
	}

	if err := s.Migrate(ctx); err != nil {
		s.Close()
		return nil, fmt.Errorf("store: migrate: %w", err)
	}
	return s, nil
}

func openSQLite(ctx context.Context, opts Options) (*Store, error) {
	if opts.Path == "" {
		return nil, errors.New("store: sqlite path must not be empty")
	}
	dir := filepath.Dir(opts.Path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("store: create directory %s: %w", dir, err)
	}

	writer, err := sql.Open("sqlite", opts.Path+"?"+sqlitePragmas)
	if err != nil {
		return nil, fmt.Errorf("store: open writer: %w", err)
	}
	writer.SetMaxOpenConns(1)
	writer.SetMaxIdleConns(1)
	writer.SetConnMaxLifetime(0)

	if err := writer.PingContext(ctx); err != nil {
		writer.Close()
		return nil, fmt.Errorf("store: ping writer: %w", err)
	}

	reader, err := sql.Open("sqlite", opts.Path+"?"+sqlitePragmas+"&_pragma=query_only(ON)")
	if err != nil {
		writer.Close()
		return nil, fmt.Errorf("store: open reader: %w", err)
	}
	pool := opts.MaxOpenConns
	if pool < 1 {
		pool = defaultReadPool
	}
	reader.SetMaxOpenConns(pool)
	reader.SetMaxIdleConns(pool)
	reader.SetConnMaxLifetime(0)

	if err := reader.PingContext(ctx); err != nil {
		writer.Close()
		reader.Close()
		return nil, fmt.Errorf("store: ping reader: %w", err)
	}

	return &Store{
		dialect: DialectSQLite,
		writer:  writer,
		reader:  reader,
		path:    opts.Path,
		now:     time.Now,
	}, nil
}

func openPostgres(ctx context.Context, opts Options) (*Store, error) {
	if opts.DSN == "" {
		return nil, errors.New("store: postgres dsn must not be empty")
	}
	db, err := sql.Open("pgx", opts.DSN)
	if err != nil {
		return nil, fmt.Errorf("store: open postgres: %w", err)
	}
	pool := opts.MaxOpenConns
	if pool < 1 {
		pool = defaultReadPool
	}
	db.SetMaxOpenConns(pool)
	db.SetMaxIdleConns(pool)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: ping postgres: %w", err)
	}

	return &Store{
		dialect: DialectPostgres,
		writer:  db,
		reader:  db,
		now:     time.Now,
	}, nil
}

// Close closes the database handles. It is safe to call Close multiple times.
func (s *Store) Close() error {
	var firstErr error
	s.closeOnce.Do(func() {
		if s.writer != nil {
			if err := s.writer.Close(); err != nil {
				firstErr = err
			}
		}
		if s.reader != nil && s.reader != s.writer {
			if err := s.reader.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	})
	return firstErr
}

// Dialect reports which backend the store is connected to.
func (s *Store) Dialect() Dialect {
	return s.dialect
}

// Writer returns the writer database handle.
func (s *Store) Writer() *sql.DB {
	return s.writer
}

// Reader returns the reader database handle.
func (s *Store) Reader() *sql.DB {
	return s.reader
}

// Path returns the filesystem path of a SQLite database, empty for PostgreSQL.
func (s *Store) Path() string {
	return s.path
}

// Ping verifies that both database handles are alive.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.writer.PingContext(ctx); err != nil {
		return fmt.Errorf("store: writer ping: %w", err)
	}
	if err := s.reader.PingContext(ctx); err != nil {
		return fmt.Errorf("store: reader ping: %w", err)
	}
	return nil
}

// SetClock overrides the time source used for timestamps and "today".
func (s *Store) SetClock(now func() time.Time) {
	s.now = now
}

func (s *Store) timestamp() string {
	return s.now().UTC().Format(time.RFC3339)
}

// Today returns the current calendar date in YYYY-MM-DD form.
func (s *Store) Today() string {
	return s.now().Format(dateLayout)
}

// rebind rewrites ? placeholders into $1, $2, ... for PostgreSQL.
// Queries in this package never contain a literal question mark.
func (s *Store) rebind(query string) string {
	if s.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

type execQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *Store) exec(ctx context.Context, q execQuerier, query string, args ...any) (sql.Result, error) {
	return q.ExecContext(ctx, s.rebind(query), args...)
}

func (s *Store) queryRows(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.r().QueryContext(ctx, s.rebind(query), args...)
}

func (s *Store) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return s.r().QueryRowContext(ctx, s.rebind(query), args...)
}

// w is the handle for writes: the bound transaction if there is one.
func (s *Store) w() execQuerier {
	if s.tx != nil {
		return s.tx
	}
	return s.writer
}

// r is the handle for reads. Inside a transaction reads go through it so
// they see the uncommitted rows.
func (s *Store) r() execQuerier {
	if s.tx != nil {
		return s.tx
	}
	return s.reader
}

// insert runs an INSERT ... RETURNING id statement on q and returns the new id.
func (s *Store) insert(ctx context.Context, q execQuerier, query string, args ...any) (int64, error) {
	var id int64
	if err := q.QueryRowContext(ctx, s.rebind(query+" RETURNING id"), args...).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

// withTx runs fn inside a transaction on the writer handle. A Store that is
// already bound to a transaction reuses it.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	if s.tx != nil {
		return fn(s.tx)
	}
	tx, err := s.writer.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// InTx runs fn with a Store bound to one writer transaction. Everything fn
// does through that Store is committed together when fn returns nil and
// rolled back otherwise. The bound Store must not be used after fn returns
// and must not be closed.
func (s *Store) InTx(ctx context.Context, fn func(tx *Store) error) error {
	if s.tx != nil {
		return fn(s)
	}
	var fnErr error
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		fnErr = fn(&Store{dialect: s.dialect, writer: s.writer, reader: s.reader, path: s.path, now: s.now, tx: tx})
		return fnErr
	})
	if fnErr != nil {
		return fnErr
	}
	if err != nil {
		return fmt.Errorf("store: transaction: %w", err)
	}
	return nil
}

// assignments collects the SET clause of a partial update.
type assignments struct {
	cols []string
	args []any
}

func (a *assignments) set(col string, v any) {
	a.cols = append(a.cols, col+" = ?")
	a.args = append(a.args, v)
}

func (a *assignments) empty() bool {
	return len(a.cols) == 0
}

// updateByID applies a partial update to one row. It returns ErrNoFields when
// nothing is assigned and ErrNotFound when the row does not exist.
func (s *Store) updateByID(ctx context.Context, op, table string, id int64, a assignments) error {
	if a.empty() {
		return fmt.Errorf("store: %s %d: %w", op, id, ErrNoFields)
	}
	query := "UPDATE " + table + " SET " + strings.Join(a.cols, ", ") + " WHERE id = ?"
	res, err := s.exec(ctx, s.w(), query, append(a.args, id)...)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("store: %s %d: %w", op, id, ErrConflict)
		}
		return fmt.Errorf("store: %s %d: %w", op, id, err)
	}
	return checkAffected(res, op, id)
}

// deleteByID removes one row, returning ErrNotFound when it does not exist.
func (s *Store) deleteByID(ctx context.Context, op, table string, id int64) error {
	res, err := s.exec(ctx, s.w(), "DELETE FROM "+table+" WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("store: %s %d: %w", op, id, err)
	}
	return checkAffected(res, op, id)
}

func checkAffected(res sql.Result, op string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: %s %d rows affected: %w", op, id, err)
	}
	if n == 0 {
		return fmt.Errorf("store: %s %d: %w", op, id, ErrNotFound)
	}
	return nil
}

// notFoundOr maps sql.ErrNoRows to ErrNotFound and wraps everything else.
func notFoundOr(err error, op string, id int64) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("store: %s %d: %w", op, id, ErrNotFound)
	}
	return fmt.Errorf("store: %s %d: %w", op, id, err)
}

// isUniqueViolation reports whether err is a unique constraint failure on
// either backend.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
	}
	return false
}

// monthRange returns the first day of the month and the first day of the
// following month, both as YYYY-MM-DD.
func monthRange(month, year int) (string, string) {
	start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	return start.Format(dateLayout), start.AddDate(0, 1, 0).Format(dateLayout)
}
