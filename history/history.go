// Package history - Journal der an die Engine gesendeten Programme
//
// Enthaelt:
// - Store: SQLite-Verbindung mit Schema-Initialisierung
// - Record: einen Eintrag pro Submission schreiben
// - List: Eintraege einer Session abfragen
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite-Treiber registrieren
)

// currentSchemaVersion definiert die aktuelle Schema-Version.
const currentSchemaVersion = 1

// Entry is one journaled submission.
type Entry struct {
	ID      int64
	Session string
	Time    time.Time
	Script  string
	// Outputs are the requested variables, comma separated.
	Outputs    string
	Statements int
	Duration   time.Duration
	// Error is empty for successful submissions.
	Error string
}

// Store umhuellt die SQLite-Verbindung.
// SQLite serialisiert Schreiber selbst, daher gibt es keine eigenen Locks.
type Store struct {
	conn *sql.DB
}

// Open opens or creates the journal at path.
func Open(path string) (*Store, error) {
	conn, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping history: %w", err)
	}

	s := &Store{conn: conn}
	if err := s.init(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("initialize history: %w", err)
	}
	return s, nil
}

func (s *Store) init() error {
	schema := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS meta (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		schema_version INTEGER NOT NULL DEFAULT %d
	);

	INSERT OR IGNORE INTO meta (id) VALUES (1);

	CREATE TABLE IF NOT EXISTS submissions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		script TEXT NOT NULL,
		outputs TEXT NOT NULL DEFAULT '',
		statements INTEGER NOT NULL DEFAULT 0,
		duration_ns INTEGER NOT NULL DEFAULT 0,
		error TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_submissions_session ON submissions(session, id);
	`, currentSchemaVersion)

	if _, err := s.conn.Exec(schema); err != nil {
		return err
	}

	var version int
	if err := s.conn.QueryRow("SELECT schema_version FROM meta WHERE id = 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version > currentSchemaVersion {
		return fmt.Errorf("history schema version %d is newer than supported version %d", version, currentSchemaVersion)
	}
	return nil
}

// Record appends e to the journal.
func (s *Store) Record(ctx context.Context, e Entry) error {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO submissions (session, created_at, script, outputs, statements, duration_ns, error)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.Session, e.Time.UTC(), e.Script, e.Outputs, e.Statements, int64(e.Duration), e.Error)
	if err != nil {
		return fmt.Errorf("record submission: %w", err)
	}
	return nil
}

// List returns the newest entries first. An empty session lists all
// sessions; limit <= 0 means no limit.
func (s *Store) List(ctx context.Context, session string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, session, created_at, script, outputs, statements, duration_ns, error
		FROM submissions
		WHERE ? = '' OR session = ?
		ORDER BY id DESC
		LIMIT ?`, session, session, limit)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var duration int64
		if err := rows.Scan(&e.ID, &e.Session, &e.Time, &e.Script, &e.Outputs, &e.Statements, &duration, &e.Error); err != nil {
			return nil, fmt.Errorf("scan submission: %w", err)
		}
		e.Duration = time.Duration(duration)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Close schliesst die Datenbankverbindung
func (s *Store) Close() error {
	_, _ = s.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE);")
	return s.conn.Close()
}
