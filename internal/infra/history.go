package infra

import (
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	sqlcipher "github.com/mutecomm/go-sqlcipher/v4"

	"github.com/eliteGoblin/focusd/site_mon/internal/domain"
)

// Ensure sqlcipher driver is registered.
var _ = sqlcipher.ErrBusy

const historyDBName = "history.db"

// EncryptedHistory implements domain.SessionStore on a SQLCipher database.
type EncryptedHistory struct {
	db     *sql.DB
	dbPath string
}

// NewEncryptedHistory opens (or creates) the session database in dataDir.
// The key is passed to SQLCipher as a raw hex key.
func NewEncryptedHistory(dataDir string, key []byte) (*EncryptedHistory, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, historyDBName)
	dsn := fmt.Sprintf("%s?_pragma_key=x'%s'&_pragma_cipher_page_size=4096", dbPath, hex.EncodeToString(key))
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	// SQLite allows one writer.
	db.SetMaxOpenConns(1)

	h := &EncryptedHistory{db: db, dbPath: dbPath}
	if err := h.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare history database (wrong key?): %w", err)
	}
	return h, nil
}

func (h *EncryptedHistory) migrate() error {
	_, err := h.db.Exec(`
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		started_at INTEGER NOT NULL,
		duration_seconds INTEGER NOT NULL,
		ended_at INTEGER NOT NULL DEFAULT 0,
		completed INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_started_at ON sessions (started_at);
	`)
	return err
}

// Begin records a newly started session.
func (h *EncryptedHistory) Begin(s domain.Session) error {
	_, err := h.db.Exec(
		`INSERT INTO sessions (id, started_at, duration_seconds) VALUES (?, ?, ?)`,
		s.ID, s.StartedAt.UnixNano(), s.DurationSeconds,
	)
	if err != nil {
		return fmt.Errorf("failed to record session: %w", err)
	}
	return nil
}

// Complete marks a session as finished at endedAt.
func (h *EncryptedHistory) Complete(id string, endedAt time.Time) error {
	result, err := h.db.Exec(
		`UPDATE sessions SET ended_at = ?, completed = 1 WHERE id = ?`,
		endedAt.UnixNano(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to complete session: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("session %q not found", id)
	}
	return nil
}

// List returns up to limit sessions, most recent first. limit <= 0 means all.
func (h *EncryptedHistory) List(limit int) ([]domain.Session, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	rows, err := h.db.Query(
		`SELECT id, started_at, duration_seconds, ended_at, completed
		 FROM sessions ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []domain.Session
	for rows.Next() {
		var (
			s         domain.Session
			started   int64
			ended     int64
			completed int
		)
		if err := rows.Scan(&s.ID, &started, &s.DurationSeconds, &ended, &completed); err != nil {
			return nil, err
		}
		s.StartedAt = time.Unix(0, started)
		if ended > 0 {
			s.EndedAt = time.Unix(0, ended)
		}
		s.Completed = completed == 1
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// Path returns the database file path.
func (h *EncryptedHistory) Path() string {
	return h.dbPath
}

// Close releases the database connection.
func (h *EncryptedHistory) Close() error {
	if h.db != nil {
		return h.db.Close()
	}
	return nil
}

// Ensure EncryptedHistory implements domain.SessionStore.
var _ domain.SessionStore = (*EncryptedHistory)(nil)
