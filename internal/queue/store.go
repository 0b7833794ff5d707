package queue

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/austinkregel/local-media/playbackclient/internal/types"

	_ "modernc.org/sqlite" // SQLite driver
)

const schema = `
	CREATE TABLE IF NOT EXISTS queue_state (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		current_index INTEGER NOT NULL DEFAULT -1,
		repeat_mode INTEGER NOT NULL DEFAULT 0,
		shuffle INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS queue_items (
		position INTEGER PRIMARY KEY,
		location TEXT NOT NULL,
		title TEXT,
		artist TEXT,
		album TEXT,
		duration INTEGER NOT NULL DEFAULT 0,
		art_path TEXT,
		media_type INTEGER NOT NULL DEFAULT 0
	);
`

// Store persists the queue in a SQLite database
type Store struct {
	db *sql.DB
}

// OpenStore opens (or creates) the queue database at path
func OpenStore(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create queue directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open queue database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create queue schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// Load returns the saved queue, or nil when nothing has been saved
func (s *Store) Load() (*State, error) {
	var state State
	var repeat int
	row := s.db.QueryRow(`SELECT current_index, repeat_mode, shuffle FROM queue_state WHERE id = 1`)
	err := row.Scan(&state.Index, &repeat, &state.Shuffle)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read queue state: %w", err)
	}
	state.Repeat = types.RepeatType(repeat)
	if !state.Repeat.Valid() {
		state.Repeat = types.RepeatNone
	}

	rows, err := s.db.Query(`
		SELECT location, title, artist, album, duration, art_path, media_type
		FROM queue_items
		ORDER BY position
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to read queue items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item types.MediaItem
		var title, artist, album, artPath sql.NullString
		var mediaType int
		if err := rows.Scan(&item.Location, &title, &artist, &album, &item.Duration, &artPath, &mediaType); err != nil {
			return nil, fmt.Errorf("failed to scan queue item: %w", err)
		}
		item.Title = title.String
		item.Artist = artist.String
		item.Album = album.String
		item.ArtPath = artPath.String
		item.Type = types.MediaType(mediaType)
		state.Items = append(state.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read queue items: %w", err)
	}

	if state.Index >= len(state.Items) {
		state.Index = len(state.Items) - 1
	}
	return &state, nil
}

// Save replaces the saved queue
func (s *Store) Save(state State) error {
	return withTx(s.db, func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM queue_items`); err != nil {
			return err
		}

		_, err := tx.Exec(`
			INSERT INTO queue_state (id, current_index, repeat_mode, shuffle)
			VALUES (1, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				current_index = excluded.current_index,
				repeat_mode = excluded.repeat_mode,
				shuffle = excluded.shuffle
		`, state.Index, int(state.Repeat), state.Shuffle)
		if err != nil {
			return err
		}

		stmt, err := tx.Prepare(`
			INSERT INTO queue_items (position, location, title, artist, album, duration, art_path, media_type)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for i, item := range state.Items {
			_, err := stmt.Exec(i, item.Location, item.Title, item.Artist, item.Album, item.Duration, item.ArtPath, int(item.Type))
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// withTx runs fn in a transaction, rolling back when it fails
func withTx(db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if err := fn(tx); err != nil {
		return fmt.Errorf("failed to save queue: %w", err)
	}
	return tx.Commit()
}
