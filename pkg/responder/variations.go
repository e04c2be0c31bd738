package responder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"menagerie/pkg/llm"
	"menagerie/pkg/model"
	"menagerie/pkg/store"
)

// GenerateVariation produces one more alternative content for a generated
// message and appends it to the message's variation set. The prior set is
// untouched on failure. Returns the new index and total count.
func (o *Orchestrator) GenerateVariation(ctx context.Context, messageID string) (index, total int, err error) {
	msg, ch, user, err := o.lookupGenerated(ctx, messageID)
	if err != nil {
		return 0, 0, err
	}

	// Retrofit: messages created before variation tracking get their
	// current content as index 0.
	if err := o.st.RecordOriginal(ctx, messageID, msg.Content); err != nil {
		return 0, 0, err
	}
	previous, err := o.st.ListVariations(ctx, messageID)
	if err != nil {
		return 0, 0, err
	}

	history, err := o.historyEndingAt(ctx, msg)
	if err != nil {
		return 0, 0, err
	}

	promptText, err := o.asm.ForVariation(ch, user, history, previous)
	if err != nil {
		return 0, 0, err
	}

	text, err := o.generateVia(ctx, "reply", promptText)
	if err != nil {
		return 0, 0, err
	}

	index, total, err = o.st.AppendVariation(ctx, messageID, text)
	if err != nil {
		return 0, 0, err
	}

	slog.Info("Responder: appended variation", "message", messageID, "index", index, "total", total)
	return index, total, nil
}

// RegenerateMessage replaces a generated message's content and collapses its
// variation set to a single index-0 original.
func (o *Orchestrator) RegenerateMessage(ctx context.Context, messageID string) (*model.Message, error) {
	msg, ch, user, err := o.lookupGenerated(ctx, messageID)
	if err != nil {
		return nil, err
	}

	history, err := o.historyEndingAt(ctx, msg)
	if err != nil {
		return nil, err
	}

	previous, err := o.st.ListVariations(ctx, messageID)
	if err != nil {
		return nil, err
	}

	promptText, err := o.asm.ForVariation(ch, user, history, previous)
	if err != nil {
		return nil, err
	}

	text, err := o.generateVia(ctx, "reply", promptText)
	if err != nil {
		return nil, err
	}

	if err := o.st.Regenerate(ctx, messageID, text); err != nil {
		return nil, err
	}

	msg.Content = text
	if err := o.st.SaveMessage(ctx, msg); err != nil {
		return nil, err
	}

	slog.Info("Responder: regenerated message", "message", messageID)
	return msg, nil
}

// lookupGenerated resolves a message and verifies it is a character message
// eligible for variation work, along with its character and user context.
func (o *Orchestrator) lookupGenerated(ctx context.Context, messageID string) (*model.Message, *model.Character, *model.User, error) {
	msg, err := o.st.GetMessage(ctx, messageID)
	if err != nil {
		return nil, nil, nil, err
	}
	if msg == nil {
		return nil, nil, nil, store.ErrNotFound
	}
	if msg.SenderType != model.SenderCharacter {
		return nil, nil, nil, fmt.Errorf("%w: message %s was not generated", store.ErrConflict, messageID)
	}

	conv, err := o.st.GetConversation(ctx, msg.ConversationID)
	if err != nil || conv == nil {
		return nil, nil, nil, store.ErrNotFound
	}
	ch, err := o.st.GetCharacter(ctx, conv.CharacterID)
	if err != nil || ch == nil {
		return nil, nil, nil, store.ErrNotFound
	}
	user, err := o.st.GetUser(ctx, conv.UserID)
	if err != nil {
		return nil, nil, nil, err
	}
	return msg, ch, user, nil
}

// historyEndingAt returns the conversation transcript up to and including
// the given message, bounded by the configured history limit.
func (o *Orchestrator) historyEndingAt(ctx context.Context, msg *model.Message) ([]*model.Message, error) {
	all, err := o.st.ListMessages(ctx, msg.ConversationID, 0)
	if err != nil {
		return nil, err
	}

	end := -1
	for i, m := range all {
		if m.ID == msg.ID {
			end = i
			break
		}
	}
	if end < 0 {
		return nil, fmt.Errorf("%w: message %s not in conversation %s", store.ErrNotFound, msg.ID, msg.ConversationID)
	}

	window := all[:end+1]
	if limit := o.cfg.HistoryLimit(ctx); limit > 0 && len(window) > limit {
		window = window[len(window)-limit:]
	}
	return window, nil
}

// generateVia runs a prompt through the shared dispatch queue with the
// configured generation timeout.
func (o *Orchestrator) generateVia(ctx context.Context, intent, promptText string) (string, error) {
	timeout := o.cfg.GenerationTimeout(ctx)
	return o.queue.SubmitWait(ctx, func(ctx context.Context) (string, error) {
		gctx := ctx
		if timeout > 0 {
			var cancel context.CancelFunc
			gctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		text, err := o.llm.GenerateText(gctx, intent, promptText)
		if err != nil && errors.Is(gctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("%w: generation timed out after %s", llm.ErrServerUnavailable, timeout)
		}
		return text, err
	})
}
