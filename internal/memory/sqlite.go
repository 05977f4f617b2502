package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // pure Go driver, no CGO

	cerrors "github.com/Aman-CERP/convorag/internal/errors"
)

// SQLiteStore is a MessageStore backed by a single SQLite file.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// OpenSQLiteStore opens (creating if needed) the message database at path.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, cerrors.New(cerrors.ErrCodeMessageStore, "failed to create message store directory", err)
	}

	db, err := sql.Open("sqlite", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, cerrors.New(cerrors.ErrCodeMessageStore, "failed to open message store", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// modernc.org/sqlite ignores most DSN pragmas.
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, cerrors.New(cerrors.ErrCodeMessageStore, "failed to set pragma", err).WithDetail("pragma", p)
		}
	}

	s := &SQLiteStore{db: db, path: path}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS messages (
		seq             INTEGER PRIMARY KEY AUTOINCREMENT,
		id              TEXT NOT NULL UNIQUE,
		user_id         TEXT NOT NULL,
		conversation_id TEXT NOT NULL,
		role            TEXT NOT NULL,
		content         TEXT NOT NULL,
		embedding       TEXT,
		created_at      INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_messages_conv ON messages(user_id, conversation_id, seq);

	CREATE TABLE IF NOT EXISTS summaries (
		user_id         TEXT NOT NULL,
		conversation_id TEXT NOT NULL,
		summary         TEXT NOT NULL,
		updated_at      INTEGER NOT NULL,
		PRIMARY KEY (user_id, conversation_id)
	);`
	if _, err := s.db.Exec(schema); err != nil {
		return cerrors.New(cerrors.ErrCodeMessageStore, "failed to initialize message schema", err)
	}
	return nil
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string { return s.path }

// Close closes the database.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// AddMessage stores m, assigning an id and timestamp when missing.
func (s *SQLiteStore) AddMessage(ctx context.Context, m Message) (Message, error) {
	if strings.TrimSpace(m.Content) == "" {
		return m, cerrors.ValidationError("message content is empty", nil)
	}
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}

	var emb any
	if len(m.Embedding) > 0 {
		data, err := json.Marshal(m.Embedding)
		if err != nil {
			return m, cerrors.New(cerrors.ErrCodeMessageStore, "failed to encode embedding", err)
		}
		emb = string(data)
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (id, user_id, conversation_id, role, content, embedding, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.UserID, m.ConversationID, m.Role, m.Content, emb, m.CreatedAt.UnixNano())
	if err != nil {
		return m, cerrors.New(cerrors.ErrCodeMessageStore, "failed to insert message", err)
	}
	return m, nil
}

// Recent returns the last n messages, oldest first.
func (s *SQLiteStore) Recent(ctx context.Context, userID, convID string, n int) ([]Message, error) {
	msgs, err := s.query(ctx,
		`SELECT id, user_id, conversation_id, role, content, embedding, created_at
		 FROM messages WHERE user_id = ? AND conversation_id = ?
		 ORDER BY seq DESC LIMIT ?`, userID, convID, n)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// Embedded returns the newest n messages that have an embedding.
func (s *SQLiteStore) Embedded(ctx context.Context, userID, convID string, n int) ([]Message, error) {
	return s.query(ctx,
		`SELECT id, user_id, conversation_id, role, content, embedding, created_at
		 FROM messages WHERE user_id = ? AND conversation_id = ? AND embedding IS NOT NULL
		 ORDER BY seq DESC LIMIT ?`, userID, convID, n)
}

func (s *SQLiteStore) query(ctx context.Context, q string, args ...any) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, cerrors.New(cerrors.ErrCodeMessageStore, "failed to query messages", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Message
	for rows.Next() {
		var (
			m       Message
			emb     sql.NullString
			created int64
		)
		if err := rows.Scan(&m.ID, &m.UserID, &m.ConversationID, &m.Role, &m.Content, &emb, &created); err != nil {
			return nil, cerrors.New(cerrors.ErrCodeMessageStore, "failed to scan message", err)
		}
		if emb.Valid && emb.String != "" {
			if err := json.Unmarshal([]byte(emb.String), &m.Embedding); err != nil {
				return nil, cerrors.New(cerrors.ErrCodeMessageStore, "failed to decode embedding", err).
					WithDetail("message", m.ID)
			}
		}
		m.CreatedAt = time.Unix(0, created).UTC()
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, cerrors.New(cerrors.ErrCodeMessageStore, "failed to read messages", err)
	}
	return out, nil
}

// Count returns the number of messages in a conversation.
func (s *SQLiteStore) Count(ctx context.Context, userID, convID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM messages WHERE user_id = ? AND conversation_id = ?`, userID, convID).Scan(&n)
	if err != nil {
		return 0, cerrors.New(cerrors.ErrCodeMessageStore, "failed to count messages", err)
	}
	return n, nil
}

// Summary returns the stored rolling summary.
func (s *SQLiteStore) Summary(ctx context.Context, userID, convID string) (string, bool, error) {
	var summary string
	err := s.db.QueryRowContext(ctx,
		`SELECT summary FROM summaries WHERE user_id = ? AND conversation_id = ?`, userID, convID).Scan(&summary)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, cerrors.New(cerrors.ErrCodeMessageStore, "failed to read summary", err)
	}
	return summary, true, nil
}

// SetSummary replaces the rolling summary.
func (s *SQLiteStore) SetSummary(ctx context.Context, userID, convID, summary string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO summaries (user_id, conversation_id, summary, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(user_id, conversation_id) DO UPDATE SET summary = excluded.summary, updated_at = excluded.updated_at`,
		userID, convID, summary, time.Now().UnixNano())
	if err != nil {
		return cerrors.New(cerrors.ErrCodeMessageStore, "failed to store summary", err)
	}
	return nil
}

// DeleteConversation removes a conversation's messages and summary.
func (s *SQLiteStore) DeleteConversation(ctx context.Context, userID, convID string) error {
	return s.exec(ctx, "delete conversation",
		[]string{
			`DELETE FROM messages WHERE user_id = ? AND conversation_id = ?`,
			`DELETE FROM summaries WHERE user_id = ? AND conversation_id = ?`,
		}, userID, convID)
}

// DeleteUser removes every conversation of a user.
func (s *SQLiteStore) DeleteUser(ctx context.Context, userID string) error {
	return s.exec(ctx, "delete user",
		[]string{
			`DELETE FROM messages WHERE user_id = ?`,
			`DELETE FROM summaries WHERE user_id = ?`,
		}, userID)
}

func (s *SQLiteStore) exec(ctx context.Context, op string, stmts []string, args ...any) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return cerrors.New(cerrors.ErrCodeMessageStore, fmt.Sprintf("failed to %s", op), err)
	}
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt, args...); err != nil {
			_ = tx.Rollback()
			return cerrors.New(cerrors.ErrCodeMessageStore, fmt.Sprintf("failed to %s", op), err)
		}
	}
	if err := tx.Commit(); err != nil {
		return cerrors.New(cerrors.ErrCodeMessageStore, fmt.Sprintf("failed to %s", op), err)
	}
	return nil
}

var _ MessageStore = (*SQLiteStore)(nil)
