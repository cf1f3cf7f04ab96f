// Copyright 2026 The switchroute Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package store persists chats and their message history in SQLite. The
// routing core never touches this package; only the chat endpoints do.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// ErrNotFound is returned when a chat or message id does not exist.
var ErrNotFound = errors.New("not found")

// Message roles as stored and as sent upstream.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Chat is one conversation owning an ordered message sequence.
type Chat struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}

// Message is one turn in a chat. ModelUsed and PredictedSemantic are only set
// on turns the router produced or annotated.
type Message struct {
	ID                string                 `json:"id"`
	ChatID            string                 `json:"chat_id"`
	Role              string                 `json:"role"`
	Content           string                 `json:"content"`
	ModelUsed         *string                `json:"model_used,omitempty"`
	PredictedSemantic *string                `json:"predicted_semantic,omitempty"`
	Metadata          map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt         time.Time              `json:"created_at"`
}

// AddMessageParams carries the optional annotations of a new message.
type AddMessageParams struct {
	Role              string
	Content           string
	ModelUsed         *string
	PredictedSemantic *string
	Metadata          map[string]interface{}
}

const schema = `
CREATE TABLE IF NOT EXISTS chats (
	id         TEXT PRIMARY KEY,
	title      TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS messages (
	id                 TEXT PRIMARY KEY,
	chat_id            TEXT NOT NULL REFERENCES chats(id) ON DELETE CASCADE,
	role               TEXT NOT NULL,
	content            TEXT NOT NULL,
	model_used         TEXT,
	predicted_semantic TEXT,
	metadata           TEXT,
	created_at         TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_messages_chat ON messages(chat_id, created_at);
`

// Store wraps the SQLite handle. Safe for concurrent use; SQLite serializes
// writers behind the busy timeout.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open creates or opens the database at path and applies the schema.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return NewWithDB(db), nil
}

// NewWithDB wraps an already opened handle. The schema is assumed applied;
// tests use this with a mock.
func NewWithDB(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// CreateChat inserts a new chat and returns it.
func (s *Store) CreateChat(ctx context.Context, title string) (*Chat, error) {
	chat := &Chat{
		ID:        uuid.NewString(),
		Title:     title,
		CreatedAt: s.now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chats (id, title, created_at) VALUES (?, ?, ?)`,
		chat.ID, chat.Title, chat.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert chat: %w", err)
	}
	return chat, nil
}

// ListChats returns every chat, newest first.
func (s *Store) ListChats(ctx context.Context) ([]Chat, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, created_at FROM chats ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	defer rows.Close()

	var chats []Chat
	for rows.Next() {
		var c Chat
		if err := rows.Scan(&c.ID, &c.Title, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan chat: %w", err)
		}
		chats = append(chats, c)
	}
	return chats, rows.Err()
}

// GetChat returns one chat by id, or ErrNotFound.
func (s *Store) GetChat(ctx context.Context, id string) (*Chat, error) {
	var c Chat
	err := s.db.QueryRowContext(ctx,
		`SELECT id, title, created_at FROM chats WHERE id = ?`, id).
		Scan(&c.ID, &c.Title, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get chat: %w", err)
	}
	return &c, nil
}

// AddMessage appends a message to a chat and returns it.
func (s *Store) AddMessage(ctx context.Context, chatID string, params AddMessageParams) (*Message, error) {
	msg := &Message{
		ID:                uuid.NewString(),
		ChatID:            chatID,
		Role:              params.Role,
		Content:           params.Content,
		ModelUsed:         params.ModelUsed,
		PredictedSemantic: params.PredictedSemantic,
		Metadata:          params.Metadata,
		CreatedAt:         s.now().UTC(),
	}

	var metadata sql.NullString
	if params.Metadata != nil {
		data, err := json.Marshal(params.Metadata)
		if err != nil {
			return nil, fmt.Errorf("encode message metadata: %w", err)
		}
		metadata = sql.NullString{String: string(data), Valid: true}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (id, chat_id, role, content, model_used, predicted_semantic, metadata, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.ChatID, msg.Role, msg.Content,
		nullable(params.ModelUsed), nullable(params.PredictedSemantic), metadata, msg.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}
	return msg, nil
}

// Messages returns a chat's full history in chronological order.
func (s *Store) Messages(ctx context.Context, chatID string) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, chat_id, role, content, model_used, predicted_semantic, metadata, created_at
		 FROM messages WHERE chat_id = ? ORDER BY created_at, rowid`, chatID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()
	return scanMessages(rows)
}

// RecentMessages returns the last k messages of a chat in chronological order.
func (s *Store) RecentMessages(ctx context.Context, chatID string, k int) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, chat_id, role, content, model_used, predicted_semantic, metadata, created_at
		 FROM messages WHERE chat_id = ? ORDER BY created_at DESC, rowid DESC LIMIT ?`, chatID, k)
	if err != nil {
		return nil, fmt.Errorf("recent messages: %w", err)
	}
	defer rows.Close()

	msgs, err := scanMessages(rows)
	if err != nil {
		return nil, err
	}
	// The query walks newest first; callers want chronological order.
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

func scanMessages(rows *sql.Rows) ([]Message, error) {
	var msgs []Message
	for rows.Next() {
		var m Message
		var modelUsed, predicted, metadata sql.NullString
		if err := rows.Scan(&m.ID, &m.ChatID, &m.Role, &m.Content,
			&modelUsed, &predicted, &metadata, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		if modelUsed.Valid {
			m.ModelUsed = &modelUsed.String
		}
		if predicted.Valid {
			m.PredictedSemantic = &predicted.String
		}
		if metadata.Valid {
			if err := json.Unmarshal([]byte(metadata.String), &m.Metadata); err != nil {
				return nil, fmt.Errorf("decode message metadata: %w", err)
			}
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

func nullable(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
