package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"voicerack/internal/catalog"
)

//go:embed schema.sql
var schemaSQL string

var (
	// ErrNotFound indicates the requested voice is not in the store.
	ErrNotFound = errors.New("voice not found")
	// ErrInvalidTransition indicates an illegal status move was attempted.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// Store is the in-memory installation state, backed by an in-memory SQLite
// database. All installed-state truth lives in the bundle manager; the store
// is rebuilt from it on every run and never persisted.
type Store struct {
	db  *sql.DB
	hub *Hub
}

// Open initializes the in-memory database and applies the schema. The
// returned store publishes every mutation to hub when hub is non-nil.
func Open(hub *Hub) (*Store, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// A pooled second connection would see its own empty :memory: database.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Store{db: db, hub: hub}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Hub returns the change-event hub attached to the store.
func (s *Store) Hub() *Hub {
	return s.hub
}

// InitialStatus derives the startup status of a voice from the bundle
// manager's installed set.
func InitialStatus(voice catalog.VoiceEntry, installed map[string]struct{}) Status {
	_, voiceInstalled := installed[voice.Ref]
	_, providerInstalled := installed[voice.ProviderRef]
	switch {
	case voiceInstalled && providerInstalled:
		return StatusInstalled
	case providerInstalled:
		return StatusProviderOnly
	default:
		return StatusUnavailable
	}
}

// Replace discards all rows and repopulates the store from a catalog
// snapshot, deriving each voice's initial status from the installed set.
func (s *Store) Replace(ctx context.Context, snapshot *catalog.Snapshot, installed map[string]struct{}) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM voices`); err != nil {
		return fmt.Errorf("clear voices: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	if snapshot != nil {
		for _, voice := range snapshot.Voices {
			status := InitialStatus(voice, installed)
			languages, err := json.Marshal(voice.Languages)
			if err != nil {
				return fmt.Errorf("encode languages: %w", err)
			}
			names, err := json.Marshal(voice.LanguageNames)
			if err != nil {
				return fmt.Errorf("encode language names: %w", err)
			}
			_, err = tx.ExecContext(ctx,
				`INSERT INTO voices (
                    ref, name, summary, remote, languages, language_names,
                    provider_ref, provider_name, download_size, status, updated_at
                ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				voice.Ref, voice.Name, voice.Summary, voice.Remote,
				string(languages), string(names),
				voice.ProviderRef, voice.ProviderName, voice.DownloadSize,
				status, now,
			)
			if err != nil {
				return fmt.Errorf("insert voice %s: %w", voice.Ref, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace tx: %w", err)
	}
	return nil
}

const itemColumns = `ref, name, summary, remote, languages, language_names,
    provider_ref, provider_name, download_size, status, phase,
    progress_percent, progress_message, failure_reason, error_message,
    operation_id, updated_at`

// Get returns a single voice by ref.
func (s *Store) Get(ctx context.Context, ref string) (*Item, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM voices WHERE ref = ?`, ref)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
	}
	return item, err
}

// List returns voices, optionally filtered by status, ordered by name.
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Item, error) {
	query := `SELECT ` + itemColumns + ` FROM voices`
	args := make([]any, 0, len(statuses))
	if len(statuses) > 0 {
		placeholders := make([]string, len(statuses))
		for i, status := range statuses {
			placeholders[i] = "?"
			args = append(args, status)
		}
		query += ` WHERE status IN (` + strings.Join(placeholders, ", ") + `)`
	}
	query += ` ORDER BY name, ref`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list voices: %w", err)
	}
	defer rows.Close()

	var items []*Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// ListByProvider returns the voices that depend on the given provider.
func (s *Store) ListByProvider(ctx context.Context, providerRef string) ([]*Item, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+itemColumns+` FROM voices WHERE provider_ref = ? ORDER BY name, ref`, providerRef)
	if err != nil {
		return nil, fmt.Errorf("list voices by provider: %w", err)
	}
	defer rows.Close()

	var items []*Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// BeginOperation transitions a voice into an in-flight status, recording the
// operation handle and initial phase. The transition is validated against
// the current status.
func (s *Store) BeginOperation(ctx context.Context, ref string, to Status, phase Phase, operationID string) (*Item, error) {
	item, err := s.Get(ctx, ref)
	if err != nil {
		return nil, err
	}
	if !CanTransition(item.Status, to) {
		return nil, fmt.Errorf("%w: %s -> %s for %s", ErrInvalidTransition, item.Status, to, ref)
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err = s.db.ExecContext(ctx,
		`UPDATE voices SET status = ?, phase = ?, operation_id = ?,
            progress_percent = 0, progress_message = '',
            failure_reason = '', error_message = '', updated_at = ?
         WHERE ref = ?`,
		to, phase, operationID, now, ref)
	if err != nil {
		return nil, fmt.Errorf("begin operation for %s: %w", ref, err)
	}

	s.publish(ChangeEvent{VoiceRef: ref, Status: to, Phase: phase})
	return s.Get(ctx, ref)
}

// SetPhase updates the sub-phase of an in-flight operation.
func (s *Store) SetPhase(ctx context.Context, ref string, phase Phase) error {
	item, err := s.Get(ctx, ref)
	if err != nil {
		return err
	}
	if !item.InFlight() {
		return fmt.Errorf("%w: phase change on %s status for %s", ErrInvalidTransition, item.Status, ref)
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err = s.db.ExecContext(ctx,
		`UPDATE voices SET phase = ?, progress_percent = 0, progress_message = '', updated_at = ? WHERE ref = ?`,
		phase, now, ref)
	if err != nil {
		return fmt.Errorf("set phase for %s: %w", ref, err)
	}

	s.publish(ChangeEvent{VoiceRef: ref, Status: item.Status, Phase: phase})
	return nil
}

// SetProgress records advisory progress for an in-flight operation.
func (s *Store) SetProgress(ctx context.Context, ref string, percent float64, message string) error {
	item, err := s.Get(ctx, ref)
	if err != nil {
		return err
	}
	if !item.InFlight() {
		return nil
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err = s.db.ExecContext(ctx,
		`UPDATE voices SET progress_percent = ?, progress_message = ?, updated_at = ? WHERE ref = ?`,
		percent, message, now, ref)
	if err != nil {
		return fmt.Errorf("set progress for %s: %w", ref, err)
	}

	s.publish(ChangeEvent{VoiceRef: ref, Status: item.Status, Phase: item.Phase, Percent: percent, Message: message})
	return nil
}

// FinishOperation transitions an in-flight voice to its terminal status and
// clears operation bookkeeping.
func (s *Store) FinishOperation(ctx context.Context, ref string, final Status) error {
	item, err := s.Get(ctx, ref)
	if err != nil {
		return err
	}
	if !CanTransition(item.Status, final) {
		return fmt.Errorf("%w: %s -> %s for %s", ErrInvalidTransition, item.Status, final, ref)
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err = s.db.ExecContext(ctx,
		`UPDATE voices SET status = ?, phase = '', operation_id = '',
            progress_percent = 0, progress_message = '', updated_at = ?
         WHERE ref = ?`,
		final, now, ref)
	if err != nil {
		return fmt.Errorf("finish operation for %s: %w", ref, err)
	}

	s.publish(ChangeEvent{VoiceRef: ref, Status: final})
	return nil
}

// Fail transitions an in-flight voice to failed with a classification and
// message.
func (s *Store) Fail(ctx context.Context, ref string, reason FailureReason, message string) error {
	item, err := s.Get(ctx, ref)
	if err != nil {
		return err
	}
	if !CanTransition(item.Status, StatusFailed) {
		return fmt.Errorf("%w: %s -> %s for %s", ErrInvalidTransition, item.Status, StatusFailed, ref)
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err = s.db.ExecContext(ctx,
		`UPDATE voices SET status = ?, phase = '', operation_id = '',
            failure_reason = ?, error_message = ?, updated_at = ?
         WHERE ref = ?`,
		StatusFailed, reason, message, now, ref)
	if err != nil {
		return fmt.Errorf("fail operation for %s: %w", ref, err)
	}

	s.publish(ChangeEvent{VoiceRef: ref, Status: StatusFailed, Reason: reason, Message: message})
	return nil
}

func (s *Store) publish(evt ChangeEvent) {
	if s.hub != nil {
		s.hub.Publish(evt)
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (*Item, error) {
	var item Item
	var languages, names, updatedAt string
	err := row.Scan(
		&item.Ref, &item.Name, &item.Summary, &item.Remote,
		&languages, &names,
		&item.ProviderRef, &item.ProviderName, &item.DownloadSize,
		&item.Status, &item.Phase,
		&item.ProgressPercent, &item.ProgressMessage,
		&item.FailureReason, &item.ErrorMessage,
		&item.OperationID, &updatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(languages), &item.Languages); err != nil {
		return nil, fmt.Errorf("decode languages for %s: %w", item.Ref, err)
	}
	if err := json.Unmarshal([]byte(names), &item.LanguageNames); err != nil {
		return nil, fmt.Errorf("decode language names for %s: %w", item.Ref, err)
	}
	if ts, err := time.Parse(time.RFC3339Nano, updatedAt); err == nil {
		item.UpdatedAt = ts
	}
	return &item, nil
}
