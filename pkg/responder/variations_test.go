package responder

import (
	"context"
	"errors"
	"testing"
	"time"

	"menagerie/pkg/model"
	"menagerie/pkg/store"
)

func seedGeneratedMessage(st *mockStore) *model.Message {
	ctx := context.Background()
	msg := &model.Message{
		ID: "msg-2", ConversationID: "conv-1", SenderType: model.SenderCharacter,
		Content: "original reply", CreatedAt: time.Now(),
	}
	_ = st.SaveMessage(ctx, msg)
	_ = st.RecordOriginal(ctx, msg.ID, msg.Content)
	return msg
}

func TestGenerateVariation_Appends(t *testing.T) {
	f := newFixture(t, nil)
	msg := seedGeneratedMessage(f.store)
	f.llm.generate = func(ctx context.Context, name, prompt string) (string, error) {
		return "another take", nil
	}

	index, total, err := f.orch.GenerateVariation(context.Background(), msg.ID)
	if err != nil {
		t.Fatalf("GenerateVariation() error = %v", err)
	}
	if index != 1 || total != 2 {
		t.Errorf("got index=%d total=%d, want 1 and 2", index, total)
	}

	vars, _ := f.store.ListVariations(context.Background(), msg.ID)
	if len(vars) != 2 || vars[0].Content != "original reply" || vars[1].Content != "another take" {
		t.Errorf("variations = %+v", vars)
	}
}

func TestGenerateVariation_RetrofitsOriginal(t *testing.T) {
	f := newFixture(t, nil)

	// A pre-tracking message with no variation set at all.
	msg := &model.Message{
		ID: "msg-old", ConversationID: "conv-1", SenderType: model.SenderCharacter,
		Content: "vintage reply", CreatedAt: time.Now(),
	}
	_ = f.store.SaveMessage(context.Background(), msg)

	index, total, err := f.orch.GenerateVariation(context.Background(), msg.ID)
	if err != nil {
		t.Fatalf("GenerateVariation() error = %v", err)
	}
	if index != 1 || total != 2 {
		t.Errorf("got index=%d total=%d, want retrofit original at 0 plus new at 1", index, total)
	}

	vars, _ := f.store.ListVariations(context.Background(), msg.ID)
	if vars[0].Content != "vintage reply" || !vars[0].IsOriginal {
		t.Errorf("index 0 should be the retrofitted original: %+v", vars[0])
	}
}

func TestGenerateVariation_NotFound(t *testing.T) {
	f := newFixture(t, nil)

	_, _, err := f.orch.GenerateVariation(context.Background(), "missing")
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestGenerateVariation_RejectsUserMessage(t *testing.T) {
	f := newFixture(t, nil)

	// msg-1 is the seeded user message.
	_, _, err := f.orch.GenerateVariation(context.Background(), "msg-1")
	if !errors.Is(err, store.ErrConflict) {
		t.Errorf("error = %v, want ErrConflict", err)
	}
}

func TestGenerateVariation_FailureLeavesSetUntouched(t *testing.T) {
	f := newFixture(t, nil)
	msg := seedGeneratedMessage(f.store)
	f.llm.generate = func(ctx context.Context, name, prompt string) (string, error) {
		return "", errors.New("backend exploded")
	}

	if _, _, err := f.orch.GenerateVariation(context.Background(), msg.ID); err == nil {
		t.Fatal("expected generation error")
	}

	vars, _ := f.store.ListVariations(context.Background(), msg.ID)
	if len(vars) != 1 || vars[0].Content != "original reply" {
		t.Errorf("prior set must survive a failed append: %+v", vars)
	}
}

func TestRegenerateMessage_CollapsesToSingleOriginal(t *testing.T) {
	f := newFixture(t, nil)
	msg := seedGeneratedMessage(f.store)
	_, _, _ = f.store.AppendVariation(context.Background(), msg.ID, "take two")
	_, _, _ = f.store.AppendVariation(context.Background(), msg.ID, "take three")

	f.llm.generate = func(ctx context.Context, name, prompt string) (string, error) {
		return "clean slate", nil
	}

	updated, err := f.orch.RegenerateMessage(context.Background(), msg.ID)
	if err != nil {
		t.Fatalf("RegenerateMessage() error = %v", err)
	}
	if updated.Content != "clean slate" {
		t.Errorf("message content = %q, want regenerated text", updated.Content)
	}

	vars, _ := f.store.ListVariations(context.Background(), msg.ID)
	if len(vars) != 1 || vars[0].Index != 0 || !vars[0].IsOriginal || vars[0].Content != "clean slate" {
		t.Errorf("variations after regenerate = %+v, want single index-0 original", vars)
	}
}
