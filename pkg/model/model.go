package model

import (
	"time"
)

// SenderType identifies who authored a message.
type SenderType string

const (
	SenderUser      SenderType = "user"
	SenderCharacter SenderType = "character"
)

// Character is an autonomous AI persona that posts, comments, and chats.
type Character struct {
	ID        string    `json:"id"` // Primary Key
	Name      string    `json:"name"`
	Handle    string    `json:"handle"`  // e.g. "@marla"
	Persona   string    `json:"persona"` // System-prompt description of voice and interests
	AvatarURL string    `json:"avatar_url,omitempty"`
	PostStyle string    `json:"post_style,omitempty"` // Optional extra guidance for feed posts
	CreatedAt time.Time `json:"created_at"`
}

// DisplayName returns the best available name for the character.
func (c *Character) DisplayName() string {
	if c.Name != "" {
		return c.Name
	}
	return c.Handle
}

// User is a human account. The simulation typically has one.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Conversation is a direct-message thread between a user and a character.
type Conversation struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	CharacterID   string    `json:"character_id"`
	LastMessageAt time.Time `json:"last_message_at"`
	CreatedAt     time.Time `json:"created_at"`
}

// Message is a single direct message within a conversation.
type Message struct {
	ID             string     `json:"id"`
	ConversationID string     `json:"conversation_id"`
	SenderType     SenderType `json:"sender_type"`
	Content        string     `json:"content"`
	CreatedAt      time.Time  `json:"created_at"`
}

// MessageVariation is one alternative content for a generated message.
// Index 0 is reserved for the first-ever content of the message.
type MessageVariation struct {
	MessageID  string    `json:"message_id"`
	Index      int       `json:"index"`
	Content    string    `json:"content"`
	IsOriginal bool      `json:"is_original"`
	CreatedAt  time.Time `json:"created_at"`
}

// Post is a feed entry authored by a character.
type Post struct {
	ID          string    `json:"id"`
	CharacterID string    `json:"character_id"`
	Content     string    `json:"content"`
	ImageURL    string    `json:"image_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Comment is a character's reply to a post.
type Comment struct {
	ID          string    `json:"id"`
	PostID      string    `json:"post_id"`
	CharacterID string    `json:"character_id"`
	Content     string    `json:"content"`
	CreatedAt   time.Time `json:"created_at"`
}

// SchedulerConfig holds the autonomous content scheduler's tunables.
// Intervals are minutes; chances are probabilities in [0,1].
type SchedulerConfig struct {
	MinPostIntervalMinutes    int     `json:"min_post_interval_minutes"`
	MaxPostIntervalMinutes    int     `json:"max_post_interval_minutes"`
	MinCommentIntervalMinutes int     `json:"min_comment_interval_minutes"`
	MaxCommentIntervalMinutes int     `json:"max_comment_interval_minutes"`
	ImagePostChance           float64 `json:"image_post_chance"`
	CommentChance             float64 `json:"comment_chance"`
}

// SchedulerConfigPatch is a partial SchedulerConfig for runtime updates.
// Nil fields are left unchanged.
type SchedulerConfigPatch struct {
	MinPostIntervalMinutes    *int     `json:"min_post_interval_minutes,omitempty"`
	MaxPostIntervalMinutes    *int     `json:"max_post_interval_minutes,omitempty"`
	MinCommentIntervalMinutes *int     `json:"min_comment_interval_minutes,omitempty"`
	MaxCommentIntervalMinutes *int     `json:"max_comment_interval_minutes,omitempty"`
	ImagePostChance           *float64 `json:"image_post_chance,omitempty"`
	CommentChance             *float64 `json:"comment_chance,omitempty"`
}

// SchedulerStatus reports the scheduler's run state and live config.
type SchedulerStatus struct {
	Running bool            `json:"running"`
	Config  SchedulerConfig `json:"config"`
}
