// Package store is the local SQLite-backed persistence layer for research
// conversations and the usage-cost ledger.
//
// Notes:
// - One request appends at most two messages (user query, final answer).
// - WAL is enabled so the cost recorder can write while a request reads.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/overthelex/secondlayer-sub006/internal/contextpack/model"
)

type Store struct {
	db *sql.DB
}

func Open(path string) (*Store, error) {
	p := filepath.Clean(strings.TrimSpace(path))
	if p == "" {
		return nil, errors.New("missing db path")
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o700); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", p)
	if err != nil {
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// CostRecord is one model invocation's usage and price.
type CostRecord struct {
	ID              int64   `json:"id"`
	RequestID       string  `json:"request_id"`
	ConversationID  string  `json:"conversation_id"`
	Model           string  `json:"model"`
	Purpose         string  `json:"purpose"` // classify|plan|reason|synthesize|summarize|embed
	InputTokens     int64   `json:"input_tokens"`
	OutputTokens    int64   `json:"output_tokens"`
	CostUSD         float64 `json:"cost_usd"`
	Failed          bool    `json:"failed"`
	CreatedAtUnixMs int64   `json:"created_at_unix_ms"`
}

// AppendTurn persists one conversation message.
func (s *Store) AppendTurn(ctx context.Context, conversationID string, turn model.Turn) error {
	if s == nil || s.db == nil {
		return errors.New("store not open")
	}
	conversationID = strings.TrimSpace(conversationID)
	if conversationID == "" {
		return errors.New("missing conversation id")
	}
	role := strings.TrimSpace(turn.Role)
	if role == "" {
		role = "user"
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (conversation_id, role, content, created_at_unix_ms)
		VALUES (?, ?, ?, ?)
	`, conversationID, role, turn.Content, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("append turn: %w", err)
	}
	return nil
}

// History returns the conversation's messages in insertion order, capped to
// the most recent limit entries.
func (s *Store) History(ctx context.Context, conversationID string, limit int) ([]model.Turn, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("store not open")
	}
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT role, content FROM (
			SELECT id, role, content FROM messages
			WHERE conversation_id = ?
			ORDER BY id DESC LIMIT ?
		) ORDER BY id ASC
	`, strings.TrimSpace(conversationID), limit)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var turns []model.Turn
	for rows.Next() {
		var t model.Turn
		if err := rows.Scan(&t.Role, &t.Content); err != nil {
			return nil, err
		}
		turns = append(turns, t)
	}
	return turns, rows.Err()
}

// RecordCost appends one row to the cost ledger.
func (s *Store) RecordCost(ctx context.Context, r CostRecord) error {
	if s == nil || s.db == nil {
		return errors.New("store not open")
	}
	if strings.TrimSpace(r.RequestID) == "" {
		return errors.New("missing request id")
	}
	createdAt := r.CreatedAtUnixMs
	if createdAt <= 0 {
		createdAt = time.Now().UnixMilli()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cost_records
			(request_id, conversation_id, model, purpose, input_tokens, output_tokens, cost_usd, failed, created_at_unix_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, strings.TrimSpace(r.RequestID), strings.TrimSpace(r.ConversationID), strings.TrimSpace(r.Model),
		strings.TrimSpace(r.Purpose), r.InputTokens, r.OutputTokens, r.CostUSD, boolToInt(r.Failed), createdAt)
	if err != nil {
		return fmt.Errorf("record cost: %w", err)
	}
	return nil
}

// CostsByRequest returns the ledger rows for one request in insertion order.
func (s *Store) CostsByRequest(ctx context.Context, requestID string) ([]CostRecord, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("store not open")
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, request_id, conversation_id, model, purpose, input_tokens, output_tokens, cost_usd, failed, created_at_unix_ms
		FROM cost_records WHERE request_id = ? ORDER BY id ASC
	`, strings.TrimSpace(requestID))
	if err != nil {
		return nil, fmt.Errorf("list costs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []CostRecord
	for rows.Next() {
		var r CostRecord
		var failed int
		if err := rows.Scan(&r.ID, &r.RequestID, &r.ConversationID, &r.Model, &r.Purpose,
			&r.InputTokens, &r.OutputTokens, &r.CostUSD, &failed, &r.CreatedAtUnixMs); err != nil {
			return nil, err
		}
		r.Failed = failed != 0
		out = append(out, r)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func initSchema(db *sql.DB) error {
	if db == nil {
		return errors.New("nil db")
	}
	if _, err := db.Exec(`PRAGMA journal_mode=WAL;`); err != nil {
		return fmt.Errorf("pragma journal_mode: %w", err)
	}
	if _, err := db.Exec(`PRAGMA busy_timeout=3000;`); err != nil {
		return fmt.Errorf("pragma busy_timeout: %w", err)
	}
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			conversation_id TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at_unix_ms INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, id);

		CREATE TABLE IF NOT EXISTS cost_records (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			request_id TEXT NOT NULL,
			conversation_id TEXT NOT NULL,
			model TEXT NOT NULL,
			purpose TEXT NOT NULL,
			input_tokens INTEGER NOT NULL,
			output_tokens INTEGER NOT NULL,
			cost_usd REAL NOT NULL,
			failed INTEGER NOT NULL DEFAULT 0,
			created_at_unix_ms INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_cost_records_request ON cost_records(request_id, id);
	`)
	if err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}
