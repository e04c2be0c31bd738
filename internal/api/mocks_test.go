package api

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"menagerie/pkg/model"
	"menagerie/pkg/tracker"
)

// apiStore is an in-memory store backing handler tests.
type apiStore struct {
	mu            sync.Mutex
	characters    map[string]*model.Character
	conversations map[string]*model.Conversation
	messages      map[string]*model.Message
	variations    map[string][]*model.MessageVariation
	posts         []*model.Post
	comments      []*model.Comment

	deleteFromErr error
}

func newAPIStore() *apiStore {
	return &apiStore{
		characters:    make(map[string]*model.Character),
		conversations: make(map[string]*model.Conversation),
		messages:      make(map[string]*model.Message),
		variations:    make(map[string][]*model.MessageVariation),
	}
}

func (s *apiStore) GetCharacter(ctx context.Context, id string) (*model.Character, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.characters[id], nil
}

func (s *apiStore) GetCharacterByHandle(ctx context.Context, handle string) (*model.Character, error) {
	return nil, nil
}

func (s *apiStore) GetAllCharacters(ctx context.Context) ([]*model.Character, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.Character
	for _, c := range s.characters {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *apiStore) SaveCharacter(ctx context.Context, c *model.Character) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.characters[c.ID] = c
	return nil
}

func (s *apiStore) GetConversation(ctx context.Context, id string) (*model.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conversations[id], nil
}

func (s *apiStore) SaveConversation(ctx context.Context, c *model.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversations[c.ID] = c
	return nil
}

func (s *apiStore) ListConversations(ctx context.Context, userID string) ([]*model.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.Conversation
	for _, c := range s.conversations {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *apiStore) GetMessage(ctx context.Context, id string) (*model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.messages[id], nil
}

func (s *apiStore) SaveMessage(ctx context.Context, m *model.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[m.ID] = m
	return nil
}

func (s *apiStore) ListMessages(ctx context.Context, conversationID string, limit int) ([]*model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.Message
	for _, m := range s.messages {
		if m.ConversationID == conversationID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (s *apiStore) DeleteMessagesFrom(ctx context.Context, conversationID, fromMessageID, requesterID string) ([]string, error) {
	if s.deleteFromErr != nil {
		return nil, s.deleteFromErr
	}
	return []string{fromMessageID, "msg-after"}, nil
}

func (s *apiStore) RecordOriginal(ctx context.Context, messageID, content string) error { return nil }

func (s *apiStore) AppendVariation(ctx context.Context, messageID, content string) (int, int, error) {
	return 0, 0, nil
}

func (s *apiStore) Regenerate(ctx context.Context, messageID, content string) error { return nil }

func (s *apiStore) ListVariations(ctx context.Context, messageID string) ([]*model.MessageVariation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*model.MessageVariation(nil), s.variations[messageID]...), nil
}

func (s *apiStore) GetPost(ctx context.Context, id string) (*model.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.posts {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, nil
}

func (s *apiStore) SavePost(ctx context.Context, p *model.Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.posts = append(s.posts, p)
	return nil
}

func (s *apiStore) GetRecentPosts(ctx context.Context, limit int) ([]*model.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]*model.Post(nil), s.posts...)
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *apiStore) SaveComment(ctx context.Context, c *model.Comment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.comments = append(s.comments, c)
	return nil
}

func (s *apiStore) ListComments(ctx context.Context, postID string) ([]*model.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.Comment
	for _, c := range s.comments {
		if c.PostID == postID {
			out = append(out, c)
		}
	}
	return out, nil
}

// fakeResponder records trigger/cancel calls.
type fakeResponder struct {
	mu        sync.Mutex
	triggered []string
	cancelOK  bool
	err       error
}

func (f *fakeResponder) HandleResponse(ctx context.Context, conversationID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.triggered = append(f.triggered, conversationID)
	return f.err
}

func (f *fakeResponder) Cancel(conversationID string) bool { return f.cancelOK }

func (f *fakeResponder) triggerCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.triggered)
}

// fakeVariationService returns canned variation results.
type fakeVariationService struct {
	index, total int
	msg          *model.Message
	err          error
}

func (f *fakeVariationService) GenerateVariation(ctx context.Context, messageID string) (int, int, error) {
	return f.index, f.total, f.err
}

func (f *fakeVariationService) RegenerateMessage(ctx context.Context, messageID string) (*model.Message, error) {
	return f.msg, f.err
}

// fakeScheduler tracks control calls.
type fakeScheduler struct {
	mu      sync.Mutex
	running bool
	cfg     model.SchedulerConfig
}

func (f *fakeScheduler) Start() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.running = true
}

func (f *fakeScheduler) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.running = false
}

func (f *fakeScheduler) Status(ctx context.Context) model.SchedulerStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return model.SchedulerStatus{Running: f.running, Config: f.cfg}
}

func (f *fakeScheduler) UpdateConfig(ctx context.Context, patch model.SchedulerConfigPatch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if patch.ImagePostChance != nil {
		f.cfg.ImagePostChance = *patch.ImagePostChance
	}
	if patch.MinPostIntervalMinutes != nil {
		f.cfg.MinPostIntervalMinutes = *patch.MinPostIntervalMinutes
	}
	return nil
}

// testEnv bundles the wired server and its fakes.
type testEnv struct {
	handler   http.Handler
	store     *apiStore
	responder *fakeResponder
	varSvc    *fakeVariationService
	scheduler *fakeScheduler
}

func newTestEnv() *testEnv {
	st := newAPIStore()
	resp := &fakeResponder{}
	varSvc := &fakeVariationService{}
	sched := &fakeScheduler{}

	srv := NewServer("localhost:0",
		NewCharactersHandler(st),
		NewConversationsHandler(st, resp),
		NewMessagesHandler(st, varSvc),
		NewSchedulerHandler(sched),
		NewFeedHandler(st),
		NewStatsHandler(tracker.New()),
		nil, nil, func() {})

	return &testEnv{
		handler:   srv.Handler,
		store:     st,
		responder: resp,
		varSvc:    varSvc,
		scheduler: sched,
	}
}

func (e *testEnv) seedConversation() {
	ctx := context.Background()
	_ = e.store.SaveCharacter(ctx, &model.Character{ID: "char-1", Name: "Marla", Handle: "@marla"})
	_ = e.store.SaveConversation(ctx, &model.Conversation{ID: "conv-1", UserID: "user-1", CharacterID: "char-1"})
	_ = e.store.SaveMessage(ctx, &model.Message{
		ID: "msg-1", ConversationID: "conv-1", SenderType: model.SenderUser,
		Content: "hello", CreatedAt: time.Now(),
	})
}
