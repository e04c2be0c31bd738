package responder

import (
	"context"
	"errors"
	"testing"
	"time"

	"menagerie/pkg/broadcast"
	"menagerie/pkg/dispatch"
	"menagerie/pkg/llm"
	"menagerie/pkg/model"
	"menagerie/pkg/prompt"
)

// stubRenderer avoids template files in unit tests.
type stubRenderer struct{}

func (stubRenderer) Render(name string, data any) (string, error) { return "prompt:" + name, nil }

type fixture struct {
	orch  *Orchestrator
	store *mockStore
	sink  *mockSink
	llm   *mockLLM
}

func newFixture(t *testing.T, cfg *fastConfig) *fixture {
	t.Helper()

	if cfg == nil {
		cfg = &fastConfig{
			typingMin: time.Millisecond, typingMax: 2 * time.Millisecond,
			deliveryMin: time.Millisecond, deliveryMax: 2 * time.Millisecond,
		}
	}

	st := newMockStore()
	sink := &mockSink{}
	provider := &mockLLM{}
	orch := NewOrchestrator(cfg, st, dispatch.NewQueue(fastQueueConfig{}), provider,
		prompt.NewAssembler(stubRenderer{}), sink)

	seedConversation(st)
	return &fixture{orch: orch, store: st, sink: sink, llm: provider}
}

func seedConversation(st *mockStore) {
	ctx := context.Background()
	_ = st.SaveCharacter(ctx, &model.Character{ID: "char-1", Name: "Marla", Handle: "@marla", Persona: "painter"})
	_ = st.SaveUser(ctx, &model.User{ID: "user-1", Name: "Sam"})
	_ = st.SaveConversation(ctx, &model.Conversation{ID: "conv-1", UserID: "user-1", CharacterID: "char-1"})
	_ = st.SaveMessage(ctx, &model.Message{
		ID: "msg-1", ConversationID: "conv-1", SenderType: model.SenderUser,
		Content: "hello", CreatedAt: time.Now().Add(-time.Minute),
	})
}

func TestHandleResponse_DeliversReply(t *testing.T) {
	f := newFixture(t, nil)

	if err := f.orch.HandleResponse(context.Background(), "conv-1"); err != nil {
		t.Fatalf("HandleResponse() error = %v", err)
	}

	if !f.sink.waitFor(broadcast.EventNewDirectMessage, 2*time.Second) {
		t.Fatalf("reply never delivered; events = %v", f.sink.snapshot())
	}

	events := f.sink.snapshot()
	want := []string{broadcast.EventTypingStarted, broadcast.EventTypingStopped, broadcast.EventNewDirectMessage}
	if len(events) != len(want) {
		t.Fatalf("events = %v, want %v", events, want)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Fatalf("events = %v, want %v", events, want)
		}
	}

	if got := f.store.messageCount("conv-1"); got != 2 {
		t.Errorf("message count = %d, want user message + reply", got)
	}
	if f.orch.InFlight("conv-1") {
		t.Error("state entry not cleared after delivery")
	}

	// The reply's first content must be recorded as the original variation.
	msgs, _ := f.store.ListMessages(context.Background(), "conv-1", 0)
	reply := msgs[len(msgs)-1]
	vars, _ := f.store.ListVariations(context.Background(), reply.ID)
	if len(vars) != 1 || vars[0].Index != 0 || !vars[0].IsOriginal {
		t.Errorf("original variation not recorded: %+v", vars)
	}
}

func TestHandleResponse_UnknownConversation(t *testing.T) {
	f := newFixture(t, nil)

	if err := f.orch.HandleResponse(context.Background(), "nope"); err == nil {
		t.Error("expected error for unknown conversation")
	}
	if f.orch.InFlight("nope") {
		t.Error("state created for unknown conversation")
	}
}

func TestCancel_BeforeDeliveryTimerFires(t *testing.T) {
	f := newFixture(t, &fastConfig{
		typingMin: time.Millisecond, typingMax: 2 * time.Millisecond,
		deliveryMin: 150 * time.Millisecond, deliveryMax: 200 * time.Millisecond,
	})

	if err := f.orch.HandleResponse(context.Background(), "conv-1"); err != nil {
		t.Fatal(err)
	}
	if !f.sink.waitFor(broadcast.EventTypingStarted, time.Second) {
		t.Fatal("typing never started")
	}

	// Give the run goroutine time to arm the delivery timer, then cancel.
	deadline := time.Now().Add(time.Second)
	for !f.orch.InFlight("conv-1") && time.Now().Before(deadline) {
		time.Sleep(2 * time.Millisecond)
	}
	time.Sleep(20 * time.Millisecond)

	if !f.orch.Cancel("conv-1") {
		t.Fatal("Cancel() = false, want true")
	}

	// Wait out the would-be delivery window
	time.Sleep(300 * time.Millisecond)

	if got := f.store.messageCount("conv-1"); got != 1 {
		t.Errorf("message count = %d, cancelled reply must not persist", got)
	}

	events := f.sink.snapshot()
	if events[len(events)-1] != broadcast.EventTypingStopped {
		t.Errorf("last event = %q, want typing-stopped; events = %v", events[len(events)-1], events)
	}
}

func TestCancel_NothingInFlight(t *testing.T) {
	f := newFixture(t, nil)
	if f.orch.Cancel("conv-1") {
		t.Error("Cancel() = true with nothing in flight")
	}
}

func TestCancel_DuringGeneration(t *testing.T) {
	release := make(chan struct{})
	f := newFixture(t, &fastConfig{
		typingMin: time.Millisecond, typingMax: 2 * time.Millisecond,
		deliveryMin: time.Millisecond, deliveryMax: 2 * time.Millisecond,
	})
	f.llm.generate = func(ctx context.Context, name, prompt string) (string, error) {
		<-release
		return "late reply", nil
	}

	if err := f.orch.HandleResponse(context.Background(), "conv-1"); err != nil {
		t.Fatal(err)
	}
	if !f.sink.waitFor(broadcast.EventTypingStarted, time.Second) {
		t.Fatal("typing never started")
	}

	if !f.orch.Cancel("conv-1") {
		t.Fatal("Cancel() = false, want true")
	}
	close(release)

	// The in-flight generation completes and its result is discarded.
	time.Sleep(100 * time.Millisecond)
	if got := f.store.messageCount("conv-1"); got != 1 {
		t.Errorf("message count = %d, discarded result must not persist", got)
	}
}

func TestHandleResponse_ReplacesInFlight(t *testing.T) {
	release := make(chan struct{})
	first := true
	f := newFixture(t, nil)
	f.llm.generate = func(ctx context.Context, name, prompt string) (string, error) {
		if first {
			first = false
			<-release
			return "first reply", nil
		}
		return "second reply", nil
	}

	if err := f.orch.HandleResponse(context.Background(), "conv-1"); err != nil {
		t.Fatal(err)
	}
	if !f.sink.waitFor(broadcast.EventTypingStarted, time.Second) {
		t.Fatal("typing never started")
	}

	// Second trigger supersedes the first while it is blocked in generation.
	if err := f.orch.HandleResponse(context.Background(), "conv-1"); err != nil {
		t.Fatal(err)
	}
	close(release)

	if !f.sink.waitFor(broadcast.EventNewDirectMessage, 2*time.Second) {
		t.Fatal("replacement reply never delivered")
	}
	time.Sleep(100 * time.Millisecond)

	if got := f.store.messageCount("conv-1"); got != 2 {
		t.Errorf("message count = %d, only the replacement reply may persist", got)
	}
	msgs, _ := f.store.ListMessages(context.Background(), "conv-1", 0)
	if content := msgs[len(msgs)-1].Content; content != "second reply" {
		t.Errorf("delivered content = %q, want the replacement's", content)
	}
}

func TestGenerationError_ClearsState(t *testing.T) {
	f := newFixture(t, nil)
	f.llm.generate = func(ctx context.Context, name, prompt string) (string, error) {
		return "", errors.New("invalid api key")
	}

	if err := f.orch.HandleResponse(context.Background(), "conv-1"); err != nil {
		t.Fatal(err)
	}
	if !f.sink.waitFor(broadcast.EventTypingStopped, 2*time.Second) {
		t.Fatal("typing indicator never cleared after failure")
	}
	time.Sleep(50 * time.Millisecond)

	if got := f.store.messageCount("conv-1"); got != 1 {
		t.Errorf("message count = %d, failed generation must not persist", got)
	}
	if f.orch.InFlight("conv-1") {
		t.Error("state entry not cleared after failure")
	}
}

func TestGenerationTimeout_SurfacesAsTransient(t *testing.T) {
	f := newFixture(t, &fastConfig{
		typingMin: time.Millisecond, typingMax: 2 * time.Millisecond,
		deliveryMin: time.Millisecond, deliveryMax: 2 * time.Millisecond,
		timeout: 20 * time.Millisecond,
	})
	f.llm.generate = func(ctx context.Context, name, prompt string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}

	_, err := f.orch.generateVia(context.Background(), "reply", "prompt")
	if !llm.IsTransient(err) {
		t.Errorf("timeout error = %v, want transient server error", err)
	}
}

func TestDeliveryDelay_Clamped(t *testing.T) {
	f := newFixture(t, &fastConfig{
		deliveryMin: time.Second, deliveryMax: 8 * time.Second,
	})
	ctx := context.Background()

	if got := f.orch.deliveryDelay(ctx, "hi"); got != time.Second {
		t.Errorf("short text delay = %v, want clamp to min", got)
	}

	long := ""
	for i := 0; i < 500; i++ {
		long += "word "
	}
	if got := f.orch.deliveryDelay(ctx, long); got != 8*time.Second {
		t.Errorf("long text delay = %v, want clamp to max", got)
	}
}
