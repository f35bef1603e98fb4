// Package history keeps completed transcriptions in a local SQLite file.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const FileName = "history.sqlite"

type Entry struct {
	ID        string        `json:"id"`
	Text      string        `json:"text"`
	Model     string        `json:"model"`
	Language  string        `json:"language"`
	Duration  time.Duration `json:"duration"`
	CreatedAt time.Time     `json:"created_at"`
	// HasAudio is set when the recording was kept as FLAC; fetch it with Audio.
	HasAudio bool `json:"has_audio"`
}

const schema = `
CREATE TABLE IF NOT EXISTS transcriptions (
	id TEXT PRIMARY KEY,
	text TEXT NOT NULL,
	model TEXT NOT NULL,
	language TEXT NOT NULL,
	durationMs INTEGER NOT NULL,
	audio BLOB,
	createdAt REAL NOT NULL
);
CREATE INDEX IF NOT EXISTS transcriptions_created ON transcriptions(createdAt);
`

type Store struct {
	db *sql.DB
}

func DefaultPath(dataDir string) string {
	return filepath.Join(dataDir, FileName)
}

// Open creates the database and schema if needed.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create history dir: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create history schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Add stores e, filling in ID and CreatedAt when empty. audio is optional
// FLAC data.
func (s *Store) Add(ctx context.Context, e Entry, audio []byte) (Entry, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	var blob any
	if len(audio) > 0 {
		blob = audio
		e.HasAudio = true
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO transcriptions (id, text, model, language, durationMs, audio, createdAt)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.Text, e.Model, e.Language, e.Duration.Milliseconds(), blob, unixSeconds(e.CreatedAt))
	if err != nil {
		return Entry{}, fmt.Errorf("insert transcription: %w", err)
	}
	return e, nil
}

// Recent returns up to n entries, newest first.
func (s *Store) Recent(ctx context.Context, n int) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, text, model, language, durationMs, audio IS NOT NULL, createdAt
		FROM transcriptions
		ORDER BY createdAt DESC
		LIMIT ?
	`, n)
	if err != nil {
		return nil, fmt.Errorf("query transcriptions: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Last returns the newest entry, or nil when the history is empty.
func (s *Store) Last(ctx context.Context) (*Entry, error) {
	entries, err := s.Recent(ctx, 1)
	if err != nil || len(entries) == 0 {
		return nil, err
	}
	return &entries[0], nil
}

// Audio returns the FLAC recording kept with id, or nil.
func (s *Store) Audio(ctx context.Context, id string) ([]byte, error) {
	var blob []byte
	err := s.db.QueryRowContext(ctx, `SELECT audio FROM transcriptions WHERE id = ?`, id).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("transcription %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("read audio: %w", err)
	}
	return blob, nil
}

// Prune keeps the newest keep entries and deletes the rest.
func (s *Store) Prune(ctx context.Context, keep int) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM transcriptions
		WHERE id NOT IN (SELECT id FROM transcriptions ORDER BY createdAt DESC LIMIT ?)
	`, keep)
	if err != nil {
		return 0, fmt.Errorf("prune transcriptions: %w", err)
	}
	return res.RowsAffected()
}

func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transcriptions`).Scan(&n)
	return n, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(r scanner) (Entry, error) {
	var e Entry
	var ms int64
	var created float64
	if err := r.Scan(&e.ID, &e.Text, &e.Model, &e.Language, &ms, &e.HasAudio, &created); err != nil {
		return Entry{}, fmt.Errorf("scan transcription: %w", err)
	}
	e.Duration = time.Duration(ms) * time.Millisecond
	e.CreatedAt = timeFromUnix(created)
	return e, nil
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

func timeFromUnix(f float64) time.Time {
	sec := int64(f)
	nsec := int64((f - float64(sec)) * 1e9)
	return time.Unix(sec, nsec)
}
