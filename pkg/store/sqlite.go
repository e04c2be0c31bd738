package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"menagerie/pkg/db"
	"menagerie/pkg/model"
)

// SQLiteStore implements Store.
type SQLiteStore struct {
	db *db.DB
}

// NewSQLiteStore creates a new store.
func NewSQLiteStore(db *db.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Characters ---

func (s *SQLiteStore) GetCharacter(ctx context.Context, id string) (*model.Character, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, handle, persona, avatar_url, post_style, created_at
		 FROM characters WHERE id = ?`, id)
	return scanCharacter(row)
}

func (s *SQLiteStore) GetCharacterByHandle(ctx context.Context, handle string) (*model.Character, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, handle, persona, avatar_url, post_style, created_at
		 FROM characters WHERE handle = ?`, handle)
	return scanCharacter(row)
}

func scanCharacter(row *sql.Row) (*model.Character, error) {
	var c model.Character
	var avatarURL, postStyle sql.NullString
	err := row.Scan(&c.ID, &c.Name, &c.Handle, &c.Persona, &avatarURL, &postStyle, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, err
	}
	c.AvatarURL = avatarURL.String
	c.PostStyle = postStyle.String
	return &c, nil
}

func (s *SQLiteStore) GetAllCharacters(ctx context.Context) ([]*model.Character, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, handle, persona, avatar_url, post_style, created_at
		 FROM characters ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chars []*model.Character
	for rows.Next() {
		var c model.Character
		var avatarURL, postStyle sql.NullString
		if err := rows.Scan(&c.ID, &c.Name, &c.Handle, &c.Persona, &avatarURL, &postStyle, &c.CreatedAt); err != nil {
			return nil, err
		}
		c.AvatarURL = avatarURL.String
		c.PostStyle = postStyle.String
		chars = append(chars, &c)
	}
	return chars, rows.Err()
}

func (s *SQLiteStore) SaveCharacter(ctx context.Context, c *model.Character) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO characters (id, name, handle, persona, avatar_url, post_style, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			handle = excluded.handle,
			persona = excluded.persona,
			avatar_url = excluded.avatar_url,
			post_style = excluded.post_style`,
		c.ID, c.Name, c.Handle, c.Persona, c.AvatarURL, c.PostStyle, c.CreatedAt)
	return err
}

// --- Users ---

func (s *SQLiteStore) GetUser(ctx context.Context, id string) (*model.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, created_at FROM users WHERE id = ?`, id)

	var u model.User
	err := row.Scan(&u.ID, &u.Name, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

func (s *SQLiteStore) SaveUser(ctx context.Context, u *model.User) error {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, name, created_at) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET name = excluded.name`,
		u.ID, u.Name, u.CreatedAt)
	return err
}

// --- Conversations ---

func (s *SQLiteStore) GetConversation(ctx context.Context, id string) (*model.Conversation, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, character_id, last_message_at, created_at
		 FROM conversations WHERE id = ?`, id)

	var c model.Conversation
	var lastMessageAt sql.NullTime
	err := row.Scan(&c.ID, &c.UserID, &c.CharacterID, &lastMessageAt, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if lastMessageAt.Valid {
		c.LastMessageAt = lastMessageAt.Time
	}
	return &c, nil
}

func (s *SQLiteStore) SaveConversation(ctx context.Context, c *model.Conversation) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversations (id, user_id, character_id, last_message_at, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET last_message_at = excluded.last_message_at`,
		c.ID, c.UserID, c.CharacterID, c.LastMessageAt, c.CreatedAt)
	return err
}

func (s *SQLiteStore) ListConversations(ctx context.Context, userID string) ([]*model.Conversation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, character_id, last_message_at, created_at
		 FROM conversations WHERE user_id = ? ORDER BY last_message_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var convs []*model.Conversation
	for rows.Next() {
		var c model.Conversation
		var lastMessageAt sql.NullTime
		if err := rows.Scan(&c.ID, &c.UserID, &c.CharacterID, &lastMessageAt, &c.CreatedAt); err != nil {
			return nil, err
		}
		if lastMessageAt.Valid {
			c.LastMessageAt = lastMessageAt.Time
		}
		convs = append(convs, &c)
	}
	return convs, rows.Err()
}

// --- State ---

func (s *SQLiteStore) GetState(ctx context.Context, key string) (string, bool) {
	var val string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM persistent_state WHERE key = ?`, key).Scan(&val)
	if err != nil {
		return "", false
	}
	return val, true
}

func (s *SQLiteStore) SetState(ctx context.Context, key, val string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO persistent_state (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, val)
	return err
}

func (s *SQLiteStore) DeleteState(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM persistent_state WHERE key = ?`, key)
	return err
}
