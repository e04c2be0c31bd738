package responder

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"menagerie/pkg/broadcast"
	"menagerie/pkg/dispatch"
	"menagerie/pkg/llm"
	"menagerie/pkg/model"
	"menagerie/pkg/prompt"
	"menagerie/pkg/store"
)

// Sink receives broadcast events. Fire-and-forget.
type Sink interface {
	Emit(event string, payload any)
}

// Store is the persistence surface the orchestrator needs.
type Store interface {
	store.CharacterStore
	store.UserStore
	store.ConversationStore
	store.MessageStore
	store.VariationStore
}

// Config provides the orchestrator's live-tunable settings.
type Config interface {
	TypingDelayRange(ctx context.Context) (min, max time.Duration)
	DeliveryDelayRange(ctx context.Context) (min, max time.Duration)
	HistoryLimit(ctx context.Context) int
	GenerationTimeout(ctx context.Context) time.Duration
}

type stage string

const (
	stageStarting    stage = "starting"
	stageGenerating  stage = "generating"
	stageTypingDelay stage = "typing_delay"
)

// responseState tracks one in-flight reply. Presence in the orchestrator's
// map is the per-conversation lock; every later stage compares its own
// pointer against the map entry before acting.
type responseState struct {
	characterID    string
	startedAt      time.Time
	stage          stage
	pendingContent string
	deliver        *time.Timer
}

// Orchestrator drives the staged reply sequence for direct messages:
// typing delay, generation through the shared dispatch queue, a delivery
// delay scaled to the reply length, then persistence and broadcast.
// At most one reply is in flight per conversation.
type Orchestrator struct {
	cfg   Config
	st    Store
	queue *dispatch.Queue
	llm   llm.Provider
	asm   *prompt.Assembler
	sink  Sink

	mu       sync.Mutex
	inflight map[string]*responseState
}

func NewOrchestrator(cfg Config, st Store, queue *dispatch.Queue, provider llm.Provider, asm *prompt.Assembler, sink Sink) *Orchestrator {
	return &Orchestrator{
		cfg:      cfg,
		st:       st,
		queue:    queue,
		llm:      provider,
		asm:      asm,
		sink:     sink,
		inflight: make(map[string]*responseState),
	}
}

// HandleResponse initiates a character reply for the conversation. If a reply
// is already in flight for the same conversation, it is cancelled and
// replaced by this one. The staged sequence runs in the background; the call
// returns immediately.
func (o *Orchestrator) HandleResponse(ctx context.Context, conversationID string) error {
	conv, err := o.st.GetConversation(ctx, conversationID)
	if err != nil || conv == nil {
		slog.Warn("Responder: conversation not found", "conversation", conversationID, "error", err)
		return store.ErrNotFound
	}
	ch, err := o.st.GetCharacter(ctx, conv.CharacterID)
	if err != nil || ch == nil {
		slog.Warn("Responder: character not found", "character", conv.CharacterID, "error", err)
		return store.ErrNotFound
	}
	user, err := o.st.GetUser(ctx, conv.UserID)
	if err != nil {
		return err
	}

	st := &responseState{
		characterID: ch.ID,
		startedAt:   time.Now(),
		stage:       stageStarting,
	}

	o.mu.Lock()
	if prev, ok := o.inflight[conversationID]; ok {
		// A newer trigger supersedes the in-flight reply.
		o.cancelLocked(conversationID, prev)
		slog.Info("Responder: replaced in-flight response", "conversation", conversationID)
	}
	o.inflight[conversationID] = st
	o.mu.Unlock()

	go o.run(conversationID, st, conv, ch, user)
	return nil
}

// Cancel aborts an in-flight reply. Reports whether there was one to cancel.
func (o *Orchestrator) Cancel(conversationID string) bool {
	o.mu.Lock()
	st, ok := o.inflight[conversationID]
	if ok {
		o.cancelLocked(conversationID, st)
	}
	o.mu.Unlock()
	return ok
}

// InFlight reports whether a reply is being orchestrated for the conversation.
func (o *Orchestrator) InFlight(conversationID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.inflight[conversationID]
	return ok
}

// cancelLocked removes the state entry and stops its delivery timer.
// Caller must hold o.mu. Cancellation is cooperative: an in-flight
// generation call completes its round trip and its result is discarded.
func (o *Orchestrator) cancelLocked(conversationID string, st *responseState) {
	if o.inflight[conversationID] != st {
		return
	}
	if st.deliver != nil {
		st.deliver.Stop()
	}
	delete(o.inflight, conversationID)
	o.sink.Emit(broadcast.EventTypingStopped, typingPayload(conversationID, st.characterID))
}

// current reports whether st is still the registered entry for the
// conversation. A false result means the reply was cancelled or replaced.
func (o *Orchestrator) current(conversationID string, st *responseState) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.inflight[conversationID] == st
}

func (o *Orchestrator) run(conversationID string, st *responseState, conv *model.Conversation, ch *model.Character, user *model.User) {
	ctx := context.Background()

	// Artificial pause before the typing indicator appears
	time.Sleep(randDuration(o.cfg.TypingDelayRange(ctx)))
	if !o.current(conversationID, st) {
		return
	}
	o.sink.Emit(broadcast.EventTypingStarted, typingPayload(conversationID, ch.ID))

	st.stage = stageGenerating
	text, err := o.generate(ctx, conversationID, ch, user)
	if err != nil {
		o.abort(conversationID, st, ch, fmt.Errorf("generation failed: %w", err))
		return
	}
	if !o.current(conversationID, st) {
		// Cancelled mid-generation; the result is discarded.
		o.sink.Emit(broadcast.EventTypingStopped, typingPayload(conversationID, ch.ID))
		return
	}

	st.stage = stageTypingDelay
	st.pendingContent = text
	delay := o.deliveryDelay(ctx, text)

	o.mu.Lock()
	if o.inflight[conversationID] != st {
		o.mu.Unlock()
		o.sink.Emit(broadcast.EventTypingStopped, typingPayload(conversationID, ch.ID))
		return
	}
	st.deliver = time.AfterFunc(delay, func() {
		o.deliverPending(conversationID, st, conv, ch)
	})
	o.mu.Unlock()
}

// generate builds the reply prompt and runs it through the shared dispatch
// queue. A generation exceeding the configured timeout is surfaced as a
// transient server error so the queue's retry policy applies.
func (o *Orchestrator) generate(ctx context.Context, conversationID string, ch *model.Character, user *model.User) (string, error) {
	history, err := o.st.ListMessages(ctx, conversationID, o.cfg.HistoryLimit(ctx))
	if err != nil {
		return "", err
	}

	promptText, err := o.asm.ForReply(ch, user, history)
	if err != nil {
		return "", err
	}

	return o.generateVia(ctx, "reply", promptText)
}

// deliverPending fires when the delivery timer elapses: persist the reply,
// record its original variation, and announce it.
func (o *Orchestrator) deliverPending(conversationID string, st *responseState, conv *model.Conversation, ch *model.Character) {
	o.mu.Lock()
	if o.inflight[conversationID] != st {
		o.mu.Unlock()
		return
	}
	delete(o.inflight, conversationID)
	o.mu.Unlock()

	ctx := context.Background()
	o.sink.Emit(broadcast.EventTypingStopped, typingPayload(conversationID, ch.ID))

	msg := &model.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		SenderType:     model.SenderCharacter,
		Content:        st.pendingContent,
		CreatedAt:      time.Now().UTC(),
	}
	if err := o.st.SaveMessage(ctx, msg); err != nil {
		slog.Error("Responder: failed to persist reply", "conversation", conversationID, "error", err)
		return
	}
	if err := o.st.RecordOriginal(ctx, msg.ID, msg.Content); err != nil {
		slog.Error("Responder: failed to record original variation", "message", msg.ID, "error", err)
	}

	o.sink.Emit(broadcast.EventNewDirectMessage, msg)
	slog.Info("Responder: delivered reply",
		"conversation", conversationID, "character", ch.Handle, "words", len(strings.Fields(msg.Content)))
}

// abort clears state after a stage failure. Errors never propagate upward;
// the user just sees the typing indicator disappear.
func (o *Orchestrator) abort(conversationID string, st *responseState, ch *model.Character, err error) {
	o.mu.Lock()
	if o.inflight[conversationID] == st {
		delete(o.inflight, conversationID)
	}
	o.mu.Unlock()
	o.sink.Emit(broadcast.EventTypingStopped, typingPayload(conversationID, ch.ID))
	slog.Error("Responder: response aborted", "conversation", conversationID, "error", err)
}

// deliveryDelay estimates how long the character "types" the reply:
// 60ms per word with 20% jitter, clamped to the configured range.
func (o *Orchestrator) deliveryDelay(ctx context.Context, text string) time.Duration {
	minD, maxD := o.cfg.DeliveryDelayRange(ctx)
	words := len(strings.Fields(text))

	base := time.Duration(words) * 60 * time.Millisecond
	jittered := time.Duration(float64(base) * (0.8 + rand.Float64()*0.4))

	if jittered < minD {
		return minD
	}
	if jittered > maxD {
		return maxD
	}
	return jittered
}

func randDuration(minD, maxD time.Duration) time.Duration {
	if maxD <= minD {
		return minD
	}
	return minD + time.Duration(rand.Int63n(int64(maxD-minD)))
}

func typingPayload(conversationID, characterID string) map[string]string {
	return map[string]string{
		"conversation_id": conversationID,
		"character_id":    characterID,
	}
}
