// Package audit provides a SQLite-backed event trail for workflow runs.
// Appends are fire-and-forget: a buffered channel feeds a background
// writer, so audit logging can never block or fail a run.
package audit

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// EventType classifies audit events. The taxonomy follows the workflow's
// phases so a run's trail reads as a timeline.
type EventType string

const (
	EventStart                EventType = "start"
	EventInfo                 EventType = "info"
	EventResult               EventType = "result"
	EventSuccess              EventType = "success"
	EventError                EventType = "error"
	EventWarning              EventType = "warning"
	EventSpecGenerated        EventType = "spec_generated"
	EventCodeGenerated        EventType = "code_generated"
	EventExecutionCompleted   EventType = "execution_completed"
	EventTestsGenerated       EventType = "tests_generated"
	EventTestsExecuted        EventType = "tests_executed"
	EventValidationCompleted  EventType = "validation_completed"
	EventRemediationStarted   EventType = "remediation_started"
	EventRemediationCompleted EventType = "remediation_completed"
)

// Event is one audit record for a run.
type Event struct {
	RunID       string         `json:"run_id"`
	Type        EventType      `json:"type"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	Timestamp   time.Time      `json:"timestamp"`
}

// Logger is the audit sink consumed by the workflow. Append must never
// block and must never surface an error into the run.
type Logger interface {
	Append(runID string, ev Event)
}

// Log is the SQLite-backed Logger implementation.
type Log struct {
	db     *sql.DB
	path   string
	events chan Event
	done   chan struct{}
	once   sync.Once
}

// DefaultDBPath returns the audit database location under XDG data home.
func DefaultDBPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		home, _ := os.UserHomeDir()
		dataDir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataDir, "datamorph", "audit.db")
}

// Open opens (creating if needed) the audit log at the given path and
// starts the background writer.
func Open(path string) (*Log, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create audit directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open audit database: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	schema := `CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		type TEXT NOT NULL,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		metadata TEXT,
		created_at TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_events_run ON events(run_id, id);`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create events table: %w", err)
	}

	l := &Log{
		db:     db,
		path:   path,
		events: make(chan Event, 256),
		done:   make(chan struct{}),
	}
	go l.writer()
	return l, nil
}

// Path returns the database file location.
func (l *Log) Path() string {
	return l.path
}

// Append queues an event for the background writer. When the buffer is
// full the event is dropped with a log line; the run is never held up.
func (l *Log) Append(runID string, ev Event) {
	ev.RunID = runID
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}

	select {
	case l.events <- ev:
	default:
		log.Printf("[audit] buffer full, dropping %s event for run %s", ev.Type, runID)
	}
}

// writer drains the event channel into SQLite.
func (l *Log) writer() {
	defer close(l.done)
	for ev := range l.events {
		var meta any
		if len(ev.Metadata) > 0 {
			if data, err := json.Marshal(ev.Metadata); err == nil {
				meta = string(data)
			}
		}
		_, err := l.db.Exec(
			`INSERT INTO events (run_id, type, title, description, metadata, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
			ev.RunID, string(ev.Type), ev.Title, ev.Description, meta, ev.Timestamp,
		)
		if err != nil {
			log.Printf("[audit] write failed for run %s: %v", ev.RunID, err)
		}
	}
}

// Events returns the full trail for a run, oldest first.
func (l *Log) Events(runID string) ([]Event, error) {
	rows, err := l.db.Query(
		`SELECT type, title, description, metadata, created_at FROM events WHERE run_id = ? ORDER BY id`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var ev Event
		var typ string
		var meta sql.NullString
		if err := rows.Scan(&typ, &ev.Title, &ev.Description, &meta, &ev.Timestamp); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev.RunID = runID
		ev.Type = EventType(typ)
		if meta.Valid && meta.String != "" {
			_ = json.Unmarshal([]byte(meta.String), &ev.Metadata)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// Close drains pending events and closes the database.
func (l *Log) Close() error {
	l.once.Do(func() {
		close(l.events)
	})
	<-l.done
	return l.db.Close()
}

// Verify Log implements Logger at compile time.
var _ Logger = (*Log)(nil)

// Discard is a Logger that drops every event. Useful in tests and when
// auditing is disabled.
type Discard struct{}

// Append implements Logger.
func (Discard) Append(string, Event) {}

var _ Logger = Discard{}
