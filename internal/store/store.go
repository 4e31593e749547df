package store

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"batch-transcriber/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS transcription_records (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	text TEXT NOT NULL,
	enhanced_text TEXT NOT NULL DEFAULT '',
	audio_duration_ms INTEGER NOT NULL DEFAULT 0,
	audio_path TEXT NOT NULL,
	model_name TEXT NOT NULL,
	enhancement_model TEXT NOT NULL DEFAULT '',
	prompt_name TEXT NOT NULL DEFAULT '',
	transcribe_elapsed_ms INTEGER NOT NULL DEFAULT 0,
	enhance_elapsed_ms INTEGER NOT NULL DEFAULT 0,
	profile_name TEXT NOT NULL DEFAULT '',
	profile_emoji TEXT NOT NULL DEFAULT '',
	enhancement_request TEXT NOT NULL DEFAULT '',
	enhancement_response TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP NOT NULL
);
`

// Store provides SQLite-backed persistence for transcription records.
// Inserts accumulate in a pending transaction until Save commits them;
// this mirrors the insert/save contract the batch manager relies on.
// Not safe for concurrent writers.
type Store struct {
	db *sql.DB

	mu sync.Mutex
	tx *sql.Tx
}

// Open creates or migrates the database at the given path.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &Store{db: db}, nil
}

// Close discards any uncommitted inserts and closes the database.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.tx != nil {
		_ = s.tx.Rollback()
		s.tx = nil
	}
	s.mu.Unlock()
	return s.db.Close()
}

// Insert adds one record to the pending transaction and assigns its ID.
func (s *Store) Insert(rec *domain.TranscriptionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tx == nil {
		tx, err := s.db.Begin()
		if err != nil {
			return err
		}
		s.tx = tx
	}

	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	res, err := s.tx.Exec(`
		INSERT INTO transcription_records (
			text, enhanced_text, audio_duration_ms, audio_path, model_name,
			enhancement_model, prompt_name, transcribe_elapsed_ms, enhance_elapsed_ms,
			profile_name, profile_emoji, enhancement_request, enhancement_response, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rec.Text,
		rec.EnhancedText,
		rec.AudioDuration.Milliseconds(),
		rec.AudioPath,
		rec.ModelName,
		rec.EnhancementModel,
		rec.PromptName,
		rec.TranscribeElapsed.Milliseconds(),
		rec.EnhanceElapsed.Milliseconds(),
		rec.ProfileName,
		rec.ProfileEmoji,
		rec.EnhancementRequest,
		rec.EnhancementResponse,
		rec.CreatedAt,
	)
	if err != nil {
		return err
	}

	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	rec.ID = id
	return nil
}

// Save commits all pending inserts. Saving with nothing pending is a no-op.
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tx == nil {
		return nil
	}
	err := s.tx.Commit()
	s.tx = nil
	return err
}

// Get retrieves one committed record by ID.
func (s *Store) Get(id int64) (*domain.TranscriptionRecord, error) {
	row := s.db.QueryRow(`
		SELECT id, text, enhanced_text, audio_duration_ms, audio_path, model_name,
			enhancement_model, prompt_name, transcribe_elapsed_ms, enhance_elapsed_ms,
			profile_name, profile_emoji, enhancement_request, enhancement_response, created_at
		FROM transcription_records WHERE id = ?
	`, id)

	var rec domain.TranscriptionRecord
	var audioMs, transcribeMs, enhanceMs int64
	err := row.Scan(
		&rec.ID,
		&rec.Text,
		&rec.EnhancedText,
		&audioMs,
		&rec.AudioPath,
		&rec.ModelName,
		&rec.EnhancementModel,
		&rec.PromptName,
		&transcribeMs,
		&enhanceMs,
		&rec.ProfileName,
		&rec.ProfileEmoji,
		&rec.EnhancementRequest,
		&rec.EnhancementResponse,
		&rec.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	rec.AudioDuration = time.Duration(audioMs) * time.Millisecond
	rec.TranscribeElapsed = time.Duration(transcribeMs) * time.Millisecond
	rec.EnhanceElapsed = time.Duration(enhanceMs) * time.Millisecond
	return &rec, nil
}
