package session

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/natefinch/atomic"
	_ "modernc.org/sqlite"
)

// Store persists sessions as one JSON file each, with a SQLite index so
// listing does not have to parse every session file.
type Store struct {
	dir string
	db  *sql.DB
}

const indexSchema = `
CREATE TABLE IF NOT EXISTS sessions (
	id            TEXT PRIMARY KEY,
	name          TEXT NOT NULL,
	created_at    TEXT NOT NULL,
	updated_at    TEXT NOT NULL,
	message_count INTEGER NOT NULL,
	provider      TEXT NOT NULL DEFAULT '',
	model         TEXT NOT NULL DEFAULT ''
)`

// NewStore opens (creating if needed) a session store rooted at
// configPath/sessions.
func NewStore(configPath string) (*Store, error) {
	dir := filepath.Join(configPath, "sessions")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create session directory: %w", err)
	}

	db, err := sql.Open("sqlite", filepath.Join(dir, "index.db"))
	if err != nil {
		return nil, fmt.Errorf("failed to open session index: %w", err)
	}
	if _, err := db.Exec(indexSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize session index: %w", err)
	}

	return &Store{dir: dir, db: db}, nil
}

// Close releases the index database.
func (st *Store) Close() error {
	return st.db.Close()
}

func (st *Store) path(id string) string {
	return filepath.Join(st.dir, id+".json")
}

// Save persists a session and refreshes its index row. The file write is
// atomic so a crash never leaves a truncated session on disk.
func (st *Store) Save(s *Session) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	if err := atomic.WriteFile(st.path(s.ID), bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}

	_, err = st.db.Exec(`
		INSERT INTO sessions (id, name, created_at, updated_at, message_count, provider, model)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			updated_at = excluded.updated_at,
			message_count = excluded.message_count,
			provider = excluded.provider,
			model = excluded.model`,
		s.ID, s.Name,
		s.CreatedAt.UTC().Format(time.RFC3339Nano),
		s.UpdatedAt.UTC().Format(time.RFC3339Nano),
		len(s.Messages), s.Provider, s.Model,
	)
	if err != nil {
		return fmt.Errorf("failed to index session: %w", err)
	}
	return nil
}

// Load retrieves a session by id.
func (st *Store) Load(id string) (*Session, error) {
	data, err := os.ReadFile(st.path(id))
	if err != nil {
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}

	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &s, nil
}

// Delete removes a session file and its index row.
func (st *Store) Delete(id string) error {
	if err := os.Remove(st.path(id)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete session file: %w", err)
	}
	if _, err := st.db.Exec(`DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to unindex session: %w", err)
	}
	return nil
}

// List returns session metadata from the index, newest first.
func (st *Store) List() ([]Info, error) {
	rows, err := st.db.Query(`
		SELECT id, name, created_at, updated_at, message_count, provider, model
		FROM sessions
		ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query session index: %w", err)
	}
	defer rows.Close()

	var infos []Info
	for rows.Next() {
		var (
			info               Info
			createdS, updatedS string
		)
		if err := rows.Scan(&info.ID, &info.Name, &createdS, &updatedS, &info.MessageCount, &info.Provider, &info.Model); err != nil {
			return nil, fmt.Errorf("failed to scan session index row: %w", err)
		}
		info.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdS)
		info.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedS)
		infos = append(infos, info)
	}
	return infos, rows.Err()
}
