package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/theimaginaryfoundation/transcribe-o-bot/transcription"
)

// ErrNotFound is returned when no archived transcript has the requested ID.
var ErrNotFound = errors.New("archived transcript not found")

const schema = `
CREATE TABLE IF NOT EXISTS transcripts (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	category TEXT NOT NULL,
	confidence REAL NOT NULL,
	document TEXT NOT NULL,
	archivedAt REAL NOT NULL
);
CREATE INDEX IF NOT EXISTS transcripts_archived_at ON transcripts(archivedAt DESC);
`

// Record is a completed session as stored in the archive.
type Record struct {
	ID         string                            `json:"id"`
	Transcript transcription.Transcript          `json:"transcript"`
	Views      map[transcription.ViewKind]string `json:"views,omitempty"`
	Chat       []transcription.ChatMessage       `json:"chat,omitempty"`
	Notes      []transcription.Note              `json:"notes,omitempty"`
	ArchivedAt time.Time                         `json:"archived_at"`
}

// Summary is one row of List.
type Summary struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Category   string    `json:"category"`
	Confidence float64   `json:"confidence"`
	ArchivedAt time.Time `json:"archived_at"`
}

// RecordFromSnapshot keeps the transcript, the views that were computed successfully, the chat and the notes.
func RecordFromSnapshot(snap transcription.Snapshot) (Record, error) {
	if snap.Transcript == nil {
		return Record{}, transcription.ErrNotCompleted
	}
	rec := Record{
		ID:         snap.ID,
		Transcript: snap.Transcript.Clone(),
		Chat:       append([]transcription.ChatMessage(nil), snap.Chat...),
		Notes:      append([]transcription.Note(nil), snap.Notes...),
	}
	for kind, v := range snap.Views {
		if v.State != transcription.ViewReady {
			continue
		}
		if rec.Views == nil {
			rec.Views = make(map[transcription.ViewKind]string)
		}
		rec.Views[kind] = v.Text
	}
	return rec, nil
}

// Store is the SQLite archive of completed transcripts.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (creating if needed) the archive at path and applies the schema.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create archive dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Save inserts or replaces the record with rec.ID. ArchivedAt is set to the current time.
func (s *Store) Save(ctx context.Context, rec Record) (Record, error) {
	if rec.ID == "" {
		return Record{}, errors.New("archive: record id is empty")
	}
	rec.ArchivedAt = s.now().UTC()

	doc, err := json.Marshal(rec)
	if err != nil {
		return Record{}, fmt.Errorf("marshal record: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO transcripts (id, title, category, confidence, document, archivedAt)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			category = excluded.category,
			confidence = excluded.confidence,
			document = excluded.document,
			archivedAt = excluded.archivedAt
	`, rec.ID, rec.Transcript.Metadata.Title, rec.Transcript.Category, rec.Transcript.Confidence,
		string(doc), unixFromTime(rec.ArchivedAt))
	if err != nil {
		return Record{}, fmt.Errorf("insert transcript: %w", err)
	}
	return rec, nil
}

// SaveSnapshot archives a completed session snapshot.
func (s *Store) SaveSnapshot(ctx context.Context, snap transcription.Snapshot) (Record, error) {
	rec, err := RecordFromSnapshot(snap)
	if err != nil {
		return Record{}, err
	}
	return s.Save(ctx, rec)
}

func (s *Store) Get(ctx context.Context, id string) (Record, error) {
	var doc string
	err := s.db.QueryRowContext(ctx, `SELECT document FROM transcripts WHERE id = ?`, id).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("query transcript: %w", err)
	}
	var rec Record
	if err := json.Unmarshal([]byte(doc), &rec); err != nil {
		return Record{}, fmt.Errorf("decode transcript %s: %w", id, err)
	}
	return rec, nil
}

// List returns the newest archived transcripts first. limit <= 0 means no limit.
func (s *Store) List(ctx context.Context, limit int) ([]Summary, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, category, confidence, archivedAt
		FROM transcripts
		ORDER BY archivedAt DESC, id ASC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query transcripts: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var sum Summary
		var archivedAt float64
		if err := rows.Scan(&sum.ID, &sum.Title, &sum.Category, &sum.Confidence, &archivedAt); err != nil {
			return nil, fmt.Errorf("scan transcript: %w", err)
		}
		sum.ArchivedAt = timeFromUnix(archivedAt)
		out = append(out, sum)
	}
	return out, rows.Err()
}

func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM transcripts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete transcript: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func unixFromTime(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

func timeFromUnix(ts float64) time.Time {
	sec := int64(ts)
	nsec := int64((ts - float64(sec)) * 1e9)
	return time.Unix(sec, nsec).UTC()
}
