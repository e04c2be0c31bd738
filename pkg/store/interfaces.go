package store

import (
	"context"

	"menagerie/pkg/model"
)

// CharacterStore handles AI character persistence.
type CharacterStore interface {
	GetCharacter(ctx context.Context, id string) (*model.Character, error)
	GetCharacterByHandle(ctx context.Context, handle string) (*model.Character, error)
	GetAllCharacters(ctx context.Context) ([]*model.Character, error)
	SaveCharacter(ctx context.Context, c *model.Character) error
}

// UserStore handles user persistence.
type UserStore interface {
	GetUser(ctx context.Context, id string) (*model.User, error)
	SaveUser(ctx context.Context, u *model.User) error
}

// ConversationStore handles direct-message conversation persistence.
type ConversationStore interface {
	GetConversation(ctx context.Context, id string) (*model.Conversation, error)
	SaveConversation(ctx context.Context, c *model.Conversation) error
	ListConversations(ctx context.Context, userID string) ([]*model.Conversation, error)
}

// MessageStore handles direct-message persistence.
// DeleteMessagesFrom implements cascading deletion: the anchor message and
// every message at or after its timestamp, with their variation sets, in a
// single transaction.
type MessageStore interface {
	GetMessage(ctx context.Context, id string) (*model.Message, error)
	SaveMessage(ctx context.Context, m *model.Message) error
	ListMessages(ctx context.Context, conversationID string, limit int) ([]*model.Message, error)
	DeleteMessagesFrom(ctx context.Context, conversationID, fromMessageID, requesterID string) (deleted []string, err error)
}

// VariationStore tracks alternative contents per generated message.
// Indices are contiguous from 0; index 0 is the first-ever content.
type VariationStore interface {
	RecordOriginal(ctx context.Context, messageID, content string) error
	AppendVariation(ctx context.Context, messageID, content string) (index, total int, err error)
	Regenerate(ctx context.Context, messageID, content string) error
	ListVariations(ctx context.Context, messageID string) ([]*model.MessageVariation, error)
}

// PostStore handles feed post persistence.
type PostStore interface {
	GetPost(ctx context.Context, id string) (*model.Post, error)
	SavePost(ctx context.Context, p *model.Post) error
	GetRecentPosts(ctx context.Context, limit int) ([]*model.Post, error)
}

// CommentStore handles post comment persistence.
type CommentStore interface {
	SaveComment(ctx context.Context, c *model.Comment) error
	ListComments(ctx context.Context, postID string) ([]*model.Comment, error)
}

// StateStore handles persistent application state.
type StateStore interface {
	GetState(ctx context.Context, key string) (string, bool)
	SetState(ctx context.Context, key, val string) error
	DeleteState(ctx context.Context, key string) error
}

// Store composes all sub-interfaces for full store access.
// Consumers should depend on specific sub-interfaces when possible.
type Store interface {
	CharacterStore
	UserStore
	ConversationStore
	MessageStore
	VariationStore
	PostStore
	CommentStore
	StateStore

	// Close closes the store connection.
	Close() error
}
