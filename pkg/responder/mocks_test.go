package responder

import (
	"context"
	"sort"
	"sync"
	"time"

	"menagerie/pkg/model"
	"menagerie/pkg/store"
)

// mockStore is an in-memory Store for orchestrator tests.
type mockStore struct {
	mu            sync.Mutex
	characters    map[string]*model.Character
	users         map[string]*model.User
	conversations map[string]*model.Conversation
	messages      map[string]*model.Message
	variations    map[string][]*model.MessageVariation
}

func newMockStore() *mockStore {
	return &mockStore{
		characters:    make(map[string]*model.Character),
		users:         make(map[string]*model.User),
		conversations: make(map[string]*model.Conversation),
		messages:      make(map[string]*model.Message),
		variations:    make(map[string][]*model.MessageVariation),
	}
}

func (m *mockStore) GetCharacter(ctx context.Context, id string) (*model.Character, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.characters[id], nil
}

func (m *mockStore) GetCharacterByHandle(ctx context.Context, handle string) (*model.Character, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.characters {
		if c.Handle == handle {
			return c, nil
		}
	}
	return nil, nil
}

func (m *mockStore) GetAllCharacters(ctx context.Context) ([]*model.Character, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Character
	for _, c := range m.characters {
		out = append(out, c)
	}
	return out, nil
}

func (m *mockStore) SaveCharacter(ctx context.Context, c *model.Character) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.characters[c.ID] = c
	return nil
}

func (m *mockStore) GetUser(ctx context.Context, id string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.users[id], nil
}

func (m *mockStore) SaveUser(ctx context.Context, u *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = u
	return nil
}

func (m *mockStore) GetConversation(ctx context.Context, id string) (*model.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.conversations[id], nil
}

func (m *mockStore) SaveConversation(ctx context.Context, c *model.Conversation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conversations[c.ID] = c
	return nil
}

func (m *mockStore) ListConversations(ctx context.Context, userID string) ([]*model.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Conversation
	for _, c := range m.conversations {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *mockStore) GetMessage(ctx context.Context, id string) (*model.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.messages[id], nil
}

func (m *mockStore) SaveMessage(ctx context.Context, msg *model.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages[msg.ID] = msg
	return nil
}

func (m *mockStore) ListMessages(ctx context.Context, conversationID string, limit int) ([]*model.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Message
	for _, msg := range m.messages {
		if msg.ConversationID == conversationID {
			out = append(out, msg)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (m *mockStore) DeleteMessagesFrom(ctx context.Context, conversationID, fromMessageID, requesterID string) ([]string, error) {
	return nil, store.ErrNotFound
}

func (m *mockStore) RecordOriginal(ctx context.Context, messageID, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, v := range m.variations[messageID] {
		if v.Index == 0 {
			return nil
		}
	}
	m.variations[messageID] = append(m.variations[messageID], &model.MessageVariation{
		MessageID: messageID, Index: 0, Content: content, IsOriginal: true, CreatedAt: time.Now(),
	})
	return nil
}

func (m *mockStore) AppendVariation(ctx context.Context, messageID, content string) (int, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	next := 0
	for _, v := range m.variations[messageID] {
		if v.Index >= next {
			next = v.Index + 1
		}
	}
	m.variations[messageID] = append(m.variations[messageID], &model.MessageVariation{
		MessageID: messageID, Index: next, Content: content, CreatedAt: time.Now(),
	})
	return next, len(m.variations[messageID]), nil
}

func (m *mockStore) Regenerate(ctx context.Context, messageID, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.variations[messageID] = []*model.MessageVariation{{
		MessageID: messageID, Index: 0, Content: content, IsOriginal: true, CreatedAt: time.Now(),
	}}
	return nil
}

func (m *mockStore) ListVariations(ctx context.Context, messageID string) ([]*model.MessageVariation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := append([]*model.MessageVariation(nil), m.variations[messageID]...)
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out, nil
}

func (m *mockStore) messageCount(conversationID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, msg := range m.messages {
		if msg.ConversationID == conversationID {
			n++
		}
	}
	return n
}

// mockSink records emitted events in order.
type mockSink struct {
	mu     sync.Mutex
	events []string
}

func (s *mockSink) Emit(event string, payload any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func (s *mockSink) snapshot() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.events...)
}

// waitFor blocks until the event appears or the timeout expires.
func (s *mockSink) waitFor(event string, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		for _, e := range s.snapshot() {
			if e == event {
				return true
			}
		}
		time.Sleep(2 * time.Millisecond)
	}
	return false
}

// mockLLM implements llm.Provider with a pluggable generate function.
type mockLLM struct {
	generate func(ctx context.Context, name, prompt string) (string, error)
}

func (m *mockLLM) GenerateText(ctx context.Context, name, prompt string) (string, error) {
	if m.generate != nil {
		return m.generate(ctx, name, prompt)
	}
	return "generated reply", nil
}

func (m *mockLLM) GenerateImage(ctx context.Context, name, prompt string) ([]byte, error) {
	return nil, nil
}

func (m *mockLLM) HealthCheck(ctx context.Context) error { return nil }
func (m *mockLLM) HasProfile(name string) bool           { return true }

// fastConfig returns near-instant delays so staged flows complete quickly.
type fastConfig struct {
	typingMin, typingMax     time.Duration
	deliveryMin, deliveryMax time.Duration
	timeout                  time.Duration
}

func (f *fastConfig) TypingDelayRange(ctx context.Context) (time.Duration, time.Duration) {
	return f.typingMin, f.typingMax
}

func (f *fastConfig) DeliveryDelayRange(ctx context.Context) (time.Duration, time.Duration) {
	return f.deliveryMin, f.deliveryMax
}

func (f *fastConfig) HistoryLimit(ctx context.Context) int { return 30 }

func (f *fastConfig) GenerationTimeout(ctx context.Context) time.Duration { return f.timeout }

// fastQueueConfig is a zero-delay dispatch queue config.
type fastQueueConfig struct{}

func (fastQueueConfig) DispatchMinDelay(ctx context.Context) time.Duration      { return 0 }
func (fastQueueConfig) DispatchSettleDelay(ctx context.Context) time.Duration   { return 0 }
func (fastQueueConfig) DispatchRetryDelays(ctx context.Context) []time.Duration { return nil }
func (fastQueueConfig) DispatchServerRetries(ctx context.Context) int           { return 0 }
func (fastQueueConfig) DispatchServerRetryDelay(ctx context.Context) time.Duration {
	return 0
}
