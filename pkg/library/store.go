package library

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	// sqlite3 driver
	_ "github.com/mattn/go-sqlite3"
)

// Store persists the library index between daemon runs so that start-up only
// has to re-read files that changed.
type Store interface {
	// Load returns every stored song ordered by id.
	Load(ctx context.Context) ([]Song, error)

	// Save replaces the stored index with songs.
	Save(ctx context.Context, songs []Song) error

	// Close releases any resources held by the store.
	Close() error
}

// MemoryStore keeps the index in memory; nothing survives a restart.
type MemoryStore struct {
	mu    sync.Mutex
	songs []Song
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Load(_ context.Context) ([]Song, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Song(nil), s.songs...), nil
}

func (s *MemoryStore) Save(_ context.Context, songs []Song) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.songs = append([]Song(nil), songs...)
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}

// SQLiteStore keeps the index in a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS songs (
	id       INTEGER PRIMARY KEY,
	path     TEXT    NOT NULL UNIQUE,
	rel      TEXT    NOT NULL,
	mod_time INTEGER NOT NULL,
	duration INTEGER NOT NULL,
	tags     TEXT    NOT NULL
);`

// NewSQLiteStore opens (creating if needed) the index database at path.
// Pass ":memory:" for a throwaway database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Every connection to ":memory:" is a separate database.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Load(ctx context.Context) ([]Song, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, path, rel, mod_time, duration, tags FROM songs ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query songs: %w", err)
	}
	defer rows.Close()

	var songs []Song
	for rows.Next() {
		var (
			song     Song
			modTime  int64
			duration int64
			tags     string
		)
		if err := rows.Scan(&song.ID, &song.Path, &song.Rel, &modTime, &duration, &tags); err != nil {
			return nil, fmt.Errorf("scan song: %w", err)
		}
		song.ModTime = time.Unix(0, modTime)
		song.Duration = time.Duration(duration)
		if err := json.Unmarshal([]byte(tags), &song.Tags); err != nil {
			return nil, fmt.Errorf("decode tags of %s: %w", song.Path, err)
		}
		songs = append(songs, song)
	}
	return songs, rows.Err()
}

func (s *SQLiteStore) Save(ctx context.Context, songs []Song) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM songs`); err != nil {
		return fmt.Errorf("clear songs: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO songs (id, path, rel, mod_time, duration, tags) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, song := range songs {
		tags, err := json.Marshal(song.Tags)
		if err != nil {
			return fmt.Errorf("encode tags of %s: %w", song.Path, err)
		}
		if _, err := stmt.ExecContext(ctx, song.ID, song.Path, song.Rel,
			song.ModTime.UnixNano(), int64(song.Duration), string(tags)); err != nil {
			return fmt.Errorf("insert %s: %w", song.Path, err)
		}
	}

	return tx.Commit()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
