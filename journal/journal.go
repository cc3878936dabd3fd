// Package journal persists the trade log and the position tag tables in
// SQLite or Postgres through database/sql.
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"github.com/rustyeddy/positions/identity"
)

// Supported database drivers.
const (
	SQLite   = "sqlite3"
	Postgres = "postgres"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// Store is the trade journal.
type Store struct {
	db     *sql.DB
	driver string
}

// Open connects to the journal and creates any missing tables.
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	switch driver {
	case SQLite:
		return NewSQLite(ctx, dsn)
	case Postgres:
		return NewPostgres(ctx, dsn)
	default:
		return nil, fmt.Errorf("unsupported journal driver %q", driver)
	}
}

// NewSQLite opens a SQLite journal at path. Transactions take the write
// lock when they begin so two recalculations of one group cannot
// interleave.
func NewSQLite(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open(SQLite, sqliteDSN(path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db, driver: SQLite}
	if err := s.migrate(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewPostgres opens a Postgres journal.
func NewPostgres(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open(Postgres, dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	s := &Store{db: db, driver: Postgres}
	if err := s.migrate(ctx, postgresSchema); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func sqliteDSN(path string) string {
	if strings.Contains(path, "?") {
		return path
	}
	return "file:" + path + "?_txlock=immediate&_busy_timeout=5000&_foreign_keys=on"
}

func (s *Store) migrate(ctx context.Context, ddl string) error {
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("schema migration: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// rebind rewrites ? placeholders into the driver's syntax.
func (s *Store) rebind(q string) string {
	if s.driver != Postgres {
		return q
	}
	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// retryable wraps lock contention and serialization failures in
// identity.ErrRetryable. Other errors pass through unchanged.
func retryable(err error) error {
	if err == nil {
		return nil
	}

	var se sqlite3.Error
	if errors.As(err, &se) && (se.Code == sqlite3.ErrBusy || se.Code == sqlite3.ErrLocked) {
		return fmt.Errorf("%w: %v", identity.ErrRetryable, err)
	}

	var pe *pq.Error
	if errors.As(err, &pe) {
		switch pe.Code {
		case "40001", "40P01", "55P03": // serialization_failure, deadlock_detected, lock_not_available
			return fmt.Errorf("%w: %v", identity.ErrRetryable, err)
		}
	}
	return err
}
