package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"menagerie/pkg/model"
)

// --- Messages ---

func (s *SQLiteStore) GetMessage(ctx context.Context, id string) (*model.Message, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, conversation_id, sender_type, content, created_at
		 FROM messages WHERE id = ?`, id)

	var m model.Message
	err := row.Scan(&m.ID, &m.ConversationID, &m.SenderType, &m.Content, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, err
	}
	return &m, nil
}

func (s *SQLiteStore) SaveMessage(ctx context.Context, m *model.Message) error {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (id, conversation_id, sender_type, content, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET content = excluded.content`,
		m.ID, m.ConversationID, m.SenderType, m.Content, m.CreatedAt)
	if err != nil {
		return err
	}

	// Keep the conversation's last-message pointer current
	_, err = s.db.ExecContext(ctx,
		`UPDATE conversations SET last_message_at = ? WHERE id = ? AND (last_message_at IS NULL OR last_message_at < ?)`,
		m.CreatedAt, m.ConversationID, m.CreatedAt)
	return err
}

// ListMessages returns the newest `limit` messages of a conversation in
// chronological order. limit <= 0 returns all.
func (s *SQLiteStore) ListMessages(ctx context.Context, conversationID string, limit int) ([]*model.Message, error) {
	query := `SELECT id, conversation_id, sender_type, content, created_at
		 FROM messages WHERE conversation_id = ? ORDER BY created_at, id`
	args := []any{conversationID}
	if limit > 0 {
		query = `SELECT id, conversation_id, sender_type, content, created_at FROM (
			SELECT id, conversation_id, sender_type, content, created_at
			FROM messages WHERE conversation_id = ? ORDER BY created_at DESC, id DESC LIMIT ?
		) ORDER BY created_at, id`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []*model.Message
	for rows.Next() {
		var m model.Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.SenderType, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		msgs = append(msgs, &m)
	}
	return msgs, rows.Err()
}

// deleteFromFailpoint, when set, is invoked inside the DeleteMessagesFrom
// transaction between the variation and message deletions. Tests use it to
// verify atomicity.
var deleteFromFailpoint func() error

// DeleteMessagesFrom deletes the anchor message and every message in the
// conversation with an equal or later timestamp, along with their variation
// sets, then recomputes the conversation's last-message pointer. The whole
// cascade runs in one transaction.
func (s *SQLiteStore) DeleteMessagesFrom(ctx context.Context, conversationID, fromMessageID, requesterID string) ([]string, error) {
	conv, err := s.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, fmt.Errorf("conversation %s: %w", conversationID, ErrNotFound)
	}
	if conv.UserID != requesterID {
		return nil, fmt.Errorf("conversation %s does not belong to %s: %w", conversationID, requesterID, ErrNotAuthorized)
	}

	var anchor time.Time
	err = s.db.QueryRowContext(ctx,
		`SELECT created_at FROM messages WHERE id = ? AND conversation_id = ?`,
		fromMessageID, conversationID).Scan(&anchor)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("message %s: %w", fromMessageID, ErrNotFound)
		}
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	// Timestamp-inclusive selection: the anchor and everything at or after it
	rows, err := tx.QueryContext(ctx,
		`SELECT id FROM messages WHERE conversation_id = ? AND created_at >= ?`,
		conversationID, anchor)
	if err != nil {
		return nil, err
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM message_variations WHERE message_id IN (`+placeholders+`)`, args...); err != nil {
		return nil, err
	}

	if deleteFromFailpoint != nil {
		if err := deleteFromFailpoint(); err != nil {
			return nil, err
		}
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM messages WHERE id IN (`+placeholders+`)`, args...); err != nil {
		return nil, err
	}

	// Recompute the last-message pointer from the survivors. Selecting the
	// column directly (rather than MAX) keeps its declared DATETIME type so
	// the driver returns a time.Time instead of a string.
	var last sql.NullTime
	if err := tx.QueryRowContext(ctx,
		`SELECT created_at FROM messages WHERE conversation_id = ?
		 ORDER BY created_at DESC LIMIT 1`,
		conversationID).Scan(&last); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	lastAt := time.Now().UTC()
	if last.Valid {
		lastAt = last.Time
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE conversations SET last_message_at = ? WHERE id = ?`,
		lastAt, conversationID); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return ids, nil
}

// --- Variations ---

// RecordOriginal inserts index 0 with is_original=true only if index 0 does
// not already exist for this message (idempotent bootstrap).
func (s *SQLiteStore) RecordOriginal(ctx context.Context, messageID, content string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO message_variations (message_id, idx, content, is_original, created_at)
		 VALUES (?, 0, ?, 1, ?)`,
		messageID, content, time.Now().UTC())
	return err
}

// AppendVariation inserts the content at max(existing indices)+1 (0 if none).
// Indices are never reused, even after deletions.
func (s *SQLiteStore) AppendVariation(ctx context.Context, messageID, content string) (index, total int, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, err
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	var next sql.NullInt64
	if err := tx.QueryRowContext(ctx,
		`SELECT MAX(idx) + 1 FROM message_variations WHERE message_id = ?`, messageID).Scan(&next); err != nil {
		return 0, 0, err
	}
	index = int(next.Int64) // NULL (no rows) scans as 0

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO message_variations (message_id, idx, content, is_original, created_at)
		 VALUES (?, ?, ?, 0, ?)`,
		messageID, index, content, time.Now().UTC()); err != nil {
		return 0, 0, err
	}

	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM message_variations WHERE message_id = ?`, messageID).Scan(&total); err != nil {
		return 0, 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, 0, err
	}
	return index, total, nil
}

// Regenerate replaces the entire variation set with a single index-0 original.
func (s *SQLiteStore) Regenerate(ctx context.Context, messageID, content string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM message_variations WHERE message_id = ?`, messageID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO message_variations (message_id, idx, content, is_original, created_at)
		 VALUES (?, 0, ?, 1, ?)`,
		messageID, content, time.Now().UTC()); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) ListVariations(ctx context.Context, messageID string) ([]*model.MessageVariation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT message_id, idx, content, is_original, created_at
		 FROM message_variations WHERE message_id = ? ORDER BY idx`, messageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var vars []*model.MessageVariation
	for rows.Next() {
		var v model.MessageVariation
		if err := rows.Scan(&v.MessageID, &v.Index, &v.Content, &v.IsOriginal, &v.CreatedAt); err != nil {
			return nil, err
		}
		vars = append(vars, &v)
	}
	return vars, rows.Err()
}
