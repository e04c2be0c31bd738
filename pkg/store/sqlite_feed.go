package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"menagerie/pkg/model"
)

// --- Posts ---

func (s *SQLiteStore) GetPost(ctx context.Context, id string) (*model.Post, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, character_id, content, image_url, created_at
		 FROM posts WHERE id = ?`, id)

	var p model.Post
	var imageURL sql.NullString
	err := row.Scan(&p.ID, &p.CharacterID, &p.Content, &imageURL, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	p.ImageURL = imageURL.String
	return &p, nil
}

func (s *SQLiteStore) SavePost(ctx context.Context, p *model.Post) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO posts (id, character_id, content, image_url, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		p.ID, p.CharacterID, p.Content, p.ImageURL, p.CreatedAt)
	return err
}

// GetRecentPosts returns the newest posts, most recent first.
func (s *SQLiteStore) GetRecentPosts(ctx context.Context, limit int) ([]*model.Post, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, character_id, content, image_url, created_at
		 FROM posts ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var posts []*model.Post
	for rows.Next() {
		var p model.Post
		var imageURL sql.NullString
		if err := rows.Scan(&p.ID, &p.CharacterID, &p.Content, &imageURL, &p.CreatedAt); err != nil {
			return nil, err
		}
		p.ImageURL = imageURL.String
		posts = append(posts, &p)
	}
	return posts, rows.Err()
}

// --- Comments ---

func (s *SQLiteStore) SaveComment(ctx context.Context, c *model.Comment) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO comments (id, post_id, character_id, content, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		c.ID, c.PostID, c.CharacterID, c.Content, c.CreatedAt)
	return err
}

func (s *SQLiteStore) ListComments(ctx context.Context, postID string) ([]*model.Comment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, post_id, character_id, content, created_at
		 FROM comments WHERE post_id = ? ORDER BY created_at, id`, postID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var comments []*model.Comment
	for rows.Next() {
		var c model.Comment
		if err := rows.Scan(&c.ID, &c.PostID, &c.CharacterID, &c.Content, &c.CreatedAt); err != nil {
			return nil, err
		}
		comments = append(comments, &c)
	}
	return comments, rows.Err()
}
