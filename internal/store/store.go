// Package store caches conversation summaries and unsent drafts in a
// local SQLite database so the inbox renders instantly on startup and
// composed text survives restarts.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/parleyhq/parley/internal/chat"
)

// ErrDraftNotFound reports a draft lookup for a conversation with no
// saved draft.
var ErrDraftNotFound = errors.New("no draft saved for conversation")

// Store wraps the local cache database.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the cache database at path.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=synchronous(NORMAL)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to cache database: %w", err)
	}

	s := &Store{db: db}
	if err := s.ensureSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) ensureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS conversations (
			id INTEGER PRIMARY KEY,
			archived INTEGER NOT NULL DEFAULT 0,
			last_activity_at TEXT NOT NULL,
			payload TEXT NOT NULL,
			cached_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS drafts (
			conversation_id INTEGER PRIMARY KEY,
			body TEXT NOT NULL,
			files_json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS conversations_activity_idx ON conversations(archived, last_activity_at)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to initialize cache schema: %w", err)
		}
	}
	return nil
}

// ReplaceConversations atomically replaces the cached conversation list
// with a fresh server snapshot.
func (s *Store) ReplaceConversations(ctx context.Context, conversations []chat.Conversation) error {
	return s.transactionWithRetry(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM conversations`); err != nil {
			return fmt.Errorf("failed to clear conversation cache: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO conversations (id, archived, last_activity_at, payload, cached_at)
			VALUES (?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare conversation insert: %w", err)
		}
		defer stmt.Close()

		cachedAt := time.Now().UTC().Format(time.RFC3339Nano)
		for i := range conversations {
			conv := conversations[i]
			payload, err := json.Marshal(conv)
			if err != nil {
				return fmt.Errorf("failed to marshal conversation %d: %w", conv.ID, err)
			}
			archived := 0
			if conv.Archived() {
				archived = 1
			}
			if _, err := stmt.ExecContext(ctx,
				conv.ID,
				archived,
				conv.LastActivityAt().UTC().Format(time.RFC3339Nano),
				string(payload),
				cachedAt,
			); err != nil {
				return fmt.Errorf("failed to insert conversation %d: %w", conv.ID, err)
			}
		}
		return nil
	})
}

// UpsertConversation refreshes a single cached conversation.
func (s *Store) UpsertConversation(ctx context.Context, conv chat.Conversation) error {
	payload, err := json.Marshal(conv)
	if err != nil {
		return fmt.Errorf("failed to marshal conversation %d: %w", conv.ID, err)
	}
	archived := 0
	if conv.Archived() {
		archived = 1
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO conversations (id, archived, last_activity_at, payload, cached_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			archived = excluded.archived,
			last_activity_at = excluded.last_activity_at,
			payload = excluded.payload,
			cached_at = excluded.cached_at
	`,
		conv.ID,
		archived,
		conv.LastActivityAt().UTC().Format(time.RFC3339Nano),
		string(payload),
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert conversation %d: %w", conv.ID, err)
	}
	return nil
}

// ListConversations returns cached conversations, newest activity
// first. Archived conversations are excluded unless includeArchived.
func (s *Store) ListConversations(ctx context.Context, includeArchived bool) ([]chat.Conversation, error) {
	query := `SELECT payload FROM conversations WHERE archived = 0 ORDER BY last_activity_at DESC`
	if includeArchived {
		query = `SELECT payload FROM conversations ORDER BY last_activity_at DESC`
	}

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query conversation cache: %w", err)
	}
	defer rows.Close()

	var conversations []chat.Conversation
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan conversation row: %w", err)
		}
		var conv chat.Conversation
		if err := json.Unmarshal([]byte(payload), &conv); err != nil {
			return nil, fmt.Errorf("failed to decode cached conversation: %w", err)
		}
		conversations = append(conversations, conv)
	}
	return conversations, rows.Err()
}

// SaveDraft persists the composer state for a conversation. An empty
// draft deletes any saved one instead.
func (s *Store) SaveDraft(ctx context.Context, conversationID int64, draft chat.Draft) error {
	if draft.Empty() {
		return s.DeleteDraft(ctx, conversationID)
	}

	files, err := json.Marshal(draft.Files)
	if err != nil {
		return fmt.Errorf("failed to marshal draft files: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO drafts (conversation_id, body, files_json, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(conversation_id) DO UPDATE SET
			body = excluded.body,
			files_json = excluded.files_json,
			updated_at = excluded.updated_at
	`,
		conversationID,
		draft.Body,
		string(files),
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to save draft for conversation %d: %w", conversationID, err)
	}
	return nil
}

// LoadDraft returns the saved draft for a conversation, or
// ErrDraftNotFound.
func (s *Store) LoadDraft(ctx context.Context, conversationID int64) (chat.Draft, error) {
	var (
		body      string
		filesJSON string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT body, files_json FROM drafts WHERE conversation_id = ?
	`, conversationID).Scan(&body, &filesJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return chat.Draft{}, ErrDraftNotFound
	}
	if err != nil {
		return chat.Draft{}, fmt.Errorf("failed to load draft for conversation %d: %w", conversationID, err)
	}

	draft := chat.Draft{Body: body}
	if err := json.Unmarshal([]byte(filesJSON), &draft.Files); err != nil {
		return chat.Draft{}, fmt.Errorf("failed to decode draft files: %w", err)
	}
	return draft, nil
}

// DeleteDraft removes the saved draft for a conversation, if any.
func (s *Store) DeleteDraft(ctx context.Context, conversationID int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM drafts WHERE conversation_id = ?`, conversationID); err != nil {
		return fmt.Errorf("failed to delete draft for conversation %d: %w", conversationID, err)
	}
	return nil
}
