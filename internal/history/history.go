// Package history persists download events to a local SQLite database so
// users can see what was fetched, when, and whether it succeeded.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

const schema = `
CREATE TABLE IF NOT EXISTS downloads (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	track_id    TEXT NOT NULL,
	track_name  TEXT NOT NULL,
	artist_name TEXT NOT NULL,
	is_sfx      INTEGER NOT NULL DEFAULT 0,
	url         TEXT NOT NULL,
	filename    TEXT NOT NULL,
	status      TEXT NOT NULL,
	error       TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_downloads_created_at ON downloads(created_at);
`

// Event statuses.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Event is one recorded download attempt.
type Event struct {
	ID         int64     `json:"id"`
	TrackID    string    `json:"trackId"`
	TrackName  string    `json:"trackName"`
	ArtistName string    `json:"artistName"`
	Sfx        bool      `json:"isSoundEffect"`
	URL        string    `json:"url"`
	Filename   string    `json:"filename"`
	Status     string    `json:"status"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Store is the SQLite-backed download log.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

// Open opens (creating if needed) the history database at path.
func Open(path string, logger *zap.Logger) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening history database: %w", err)
	}
	// WAL so history writes never block the API reading the listing.
	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("configuring history database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating history schema: %w", err)
	}
	return &Store{db: db, logger: logger}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Record appends one download event.
func (s *Store) Record(ctx context.Context, ev Event) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO downloads (track_id, track_name, artist_name, is_sfx, url, filename, status, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.TrackID, ev.TrackName, ev.ArtistName, boolToInt(ev.Sfx),
		ev.URL, ev.Filename, ev.Status, ev.Error)
	if err != nil {
		return fmt.Errorf("recording download event: %w", err)
	}
	s.logger.Debug("Recorded download event",
		zap.String("track_id", ev.TrackID),
		zap.String("status", ev.Status),
		zap.String("filename", ev.Filename))
	return nil
}

// List returns the most recent events, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, track_id, track_name, artist_name, is_sfx, url, filename, status, error, created_at
		FROM downloads ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing download events: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var events []Event
	for rows.Next() {
		var ev Event
		var sfx int
		if err := rows.Scan(&ev.ID, &ev.TrackID, &ev.TrackName, &ev.ArtistName, &sfx,
			&ev.URL, &ev.Filename, &ev.Status, &ev.Error, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning download event: %w", err)
		}
		ev.Sfx = sfx != 0
		events = append(events, ev)
	}
	return events, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
