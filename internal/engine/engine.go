// Package engine executes transformation artifacts and test queries
// against Postgres. It is the execution-side collaborator of the workflow:
// artifact runs, target clearing, schema introspection and read-only test
// queries all live behind its types.
package engine

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// DB is the database surface the engine needs. *sql.DB satisfies it.
type DB interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Config configures the database connection.
type Config struct {
	// DSN is the Postgres connection string.
	DSN string
	// PingTimeout bounds the startup connectivity check.
	PingTimeout time.Duration
	// MaxOpenConns bounds the pool size.
	MaxOpenConns int
}

// Open connects to Postgres through the pgx stdlib driver and verifies
// connectivity.
func Open(ctx context.Context, cfg Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, fmt.Errorf("database DSN is required")
	}

	db, err := sql.Open("pgx", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	pingTimeout := cfg.PingTimeout
	if pingTimeout <= 0 {
		pingTimeout = 5 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// Result is the outcome of one artifact execution. Execution failure is
// data that feeds the remediation loop, never a returned error.
type Result struct {
	// Success is true when the artifact ran to completion.
	Success bool
	// ErrorDetail carries the database error on failure.
	ErrorDetail string
}

// SQLEngine runs transformation artifacts against Postgres.
type SQLEngine struct {
	db DB
}

// NewSQLEngine creates an engine over the given database.
func NewSQLEngine(db DB) *SQLEngine {
	return &SQLEngine{db: db}
}

// Clear drops the target table so the next run starts from a clean slate.
// Without this, stale partial rows from a failed prior execution could be
// double-counted by a later successful one.
func (e *SQLEngine) Clear(ctx context.Context, target string) error {
	ident := quoteIdent(target)
	if ident == "" {
		return fmt.Errorf("invalid target table name %q", target)
	}
	if _, err := e.db.ExecContext(ctx, "DROP TABLE IF EXISTS "+ident); err != nil {
		return fmt.Errorf("clear target %s: %w", target, err)
	}
	return nil
}

// Run executes the artifact SQL inside a transaction. The caller is
// expected to have cleared the target first.
func (e *SQLEngine) Run(ctx context.Context, artifactSQL, target string) Result {
	conn, ok := e.db.(*sql.DB)
	if !ok {
		// Test doubles execute directly.
		if _, err := e.db.ExecContext(ctx, artifactSQL); err != nil {
			return Result{Success: false, ErrorDetail: err.Error()}
		}
		return Result{Success: true}
	}

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return Result{Success: false, ErrorDetail: err.Error()}
	}
	if _, err := tx.ExecContext(ctx, artifactSQL); err != nil {
		_ = tx.Rollback()
		return Result{Success: false, ErrorDetail: err.Error()}
	}
	if err := tx.Commit(); err != nil {
		return Result{Success: false, ErrorDetail: err.Error()}
	}
	return Result{Success: true}
}

// quoteIdent sanitizes and quotes a SQL identifier. Returns the empty
// string when nothing survives sanitization.
func quoteIdent(name string) string {
	var b strings.Builder
	for _, r := range name {
		if r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	out := strings.ToLower(b.String())
	if out == "" {
		return ""
	}
	return `"` + out + `"`
}
