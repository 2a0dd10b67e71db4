// Package storage persists runs, players, time logs, cheat logs and solved seeds in SQLite.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	_ "modernc.org/sqlite" // Driver sqlite
)

var (
	// ErrNotFound is returned when the referenced run does not exist.
	ErrNotFound = errors.New("run not found")

	// ErrDuplicate is returned when a run id is already taken.
	ErrDuplicate = errors.New("run already exists")
)

// tables lists every application table in drop order.
var tables = []string{"cheat_logs", "time_logs", "players", "solved_seeds", "runs", "schema_migrations"}

// Repository manages the SQLite database connection.
type Repository struct {
	db  *sql.DB
	now func() time.Time
}

// New opens the SQLite database at dbPath, sets pool parameters and applies pending migrations.
func New(dbPath string) (*Repository, error) {
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_time_format=sqlite"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(1 * time.Hour)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}

	if err := runMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Repository{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}, nil
}

// SetClock replaces the time source used for new timestamps and live elapsed time.
// Not safe for use while requests are being served.
func (r *Repository) SetClock(now func() time.Time) {
	r.now = now
}

// Close closes the underlying database connection.
func (r *Repository) Close() error {
	return r.db.Close()
}

// Ping checks the database connection.
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// ResetSchema drops every table, including migration history, and re-applies all migrations.
// All recorded runs are lost.
func (r *Repository) ResetSchema(ctx context.Context) error {
	for _, table := range tables {
		if _, err := r.db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table); err != nil {
			return err
		}
	}

	return runMigrations(ctx, r.db)
}

// nullString maps an empty string to SQL NULL.
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
