// Package store persists session snapshots.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/xiaot623/helia/internal/domain"
)

// Persister is the load/save collaborator of the session orchestrator.
type Persister interface {
	// Load returns the last saved snapshot, or nil when nothing was saved.
	Load(ctx context.Context) (*domain.Snapshot, error)
	// Save replaces the stored snapshot.
	Save(ctx context.Context, snap domain.Snapshot) error
}

// Ensure SQLiteStore implements Persister interface.
var _ Persister = (*SQLiteStore)(nil)

const activeSessionKey = "active_session_id"

// SQLiteStore implements Persister using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// For in-memory SQLite, multiple connections create separate databases.
	// Keep a single connection to avoid schema/data disappearing across goroutines.
	if dsn == ":memory:" || strings.Contains(dsn, "mode=memory") {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// migrate runs database migrations.
func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			session_id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			position INTEGER NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			session_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			PRIMARY KEY (session_id, seq),
			FOREIGN KEY (session_id) REFERENCES sessions(session_id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS state (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\n%s", err, m)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Save replaces every stored session, message and the active id in one
// transaction.
func (s *SQLiteStore) Save(ctx context.Context, snap domain.Snapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM messages`); err != nil {
		return fmt.Errorf("failed to clear messages: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM sessions`); err != nil {
		return fmt.Errorf("failed to clear sessions: %w", err)
	}

	for pos, sess := range snap.Sessions {
		createdAt := sess.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now()
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO sessions (session_id, name, position, created_at) VALUES (?, ?, ?, ?)`,
			sess.ID, sess.Name, pos, createdAt); err != nil {
			return fmt.Errorf("failed to insert session %s: %w", sess.ID, err)
		}
		for seq, msg := range sess.History {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO messages (session_id, seq, role, content) VALUES (?, ?, ?, ?)`,
				sess.ID, seq, string(msg.Role), msg.Content); err != nil {
				return fmt.Errorf("failed to insert message %s/%d: %w", sess.ID, seq, err)
			}
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO state (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		activeSessionKey, snap.ActiveID); err != nil {
		return fmt.Errorf("failed to save active session: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit snapshot: %w", err)
	}
	return nil
}

// Load reads the stored snapshot. It returns nil when nothing was ever saved.
func (s *SQLiteStore) Load(ctx context.Context) (*domain.Snapshot, error) {
	var activeID string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM state WHERE key = ?`, activeSessionKey).Scan(&activeID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load active session: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id, name, created_at FROM sessions ORDER BY position ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to load sessions: %w", err)
	}
	defer rows.Close()

	snap := &domain.Snapshot{ActiveID: activeID, Sessions: []domain.Session{}}
	index := make(map[string]int)
	for rows.Next() {
		var sess domain.Session
		if err := rows.Scan(&sess.ID, &sess.Name, &sess.CreatedAt); err != nil {
			return nil, err
		}
		sess.History = []domain.Message{}
		index[sess.ID] = len(snap.Sessions)
		snap.Sessions = append(snap.Sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	msgRows, err := s.db.QueryContext(ctx,
		`SELECT session_id, role, content FROM messages ORDER BY session_id, seq ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}
	defer msgRows.Close()

	for msgRows.Next() {
		var sessionID, role, content string
		if err := msgRows.Scan(&sessionID, &role, &content); err != nil {
			return nil, err
		}
		i, ok := index[sessionID]
		if !ok {
			continue
		}
		if !domain.Role(role).Valid() {
			return nil, fmt.Errorf("session %s: unknown message role %q", sessionID, role)
		}
		snap.Sessions[i].History = append(snap.Sessions[i].History, domain.Message{
			Role:    domain.Role(role),
			Content: content,
		})
	}
	return snap, msgRows.Err()
}
