package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
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

// Store is the persistence surface the scheduler needs.
type Store interface {
	store.CharacterStore
	store.PostStore
	store.CommentStore
}

// Config provides the scheduler's live configuration. It is re-read at the
// start of every cycle so runtime updates take effect on the next decision.
type Config interface {
	SchedulerConfig(ctx context.Context) model.SchedulerConfig
	UpdateSchedulerConfig(ctx context.Context, patch model.SchedulerConfigPatch) error
}

// recentPostPool is how many recent posts a comment cycle chooses from.
const recentPostPool = 10

// Scheduler autonomously generates feed content on randomized timers. Two
// independent chains run while started, one for posts and one for comments;
// each sleeps a random interval, acts, and reschedules itself. A failed
// cycle is logged and skipped, never fatal to the chain.
type Scheduler struct {
	cfg       Config
	st        Store
	queue     *dispatch.Queue
	llm       llm.Provider
	asm       *prompt.Assembler
	sink      Sink
	imagesDir string

	// Overridable for tests; defaults to the configured random interval.
	intervalFn func(minMinutes, maxMinutes int) time.Duration

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
}

func New(cfg Config, st Store, queue *dispatch.Queue, provider llm.Provider, asm *prompt.Assembler, sink Sink, imagesDir string) *Scheduler {
	return &Scheduler{
		cfg:        cfg,
		st:         st,
		queue:      queue,
		llm:        provider,
		asm:        asm,
		sink:       sink,
		imagesDir:  imagesDir,
		intervalFn: randomInterval,
	}
}

// Start arms both timer chains. No-op if already running.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})

	go s.chain(s.stopCh, "posts", s.postIntervals, s.postCycle)
	go s.chain(s.stopCh, "comments", s.commentIntervals, s.commentCycle)
	slog.Info("Scheduler: started")
}

// Stop cancels both chains. Guarantees no new cycle begins after return; a
// cycle already in its action body runs to completion. No-op if stopped.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	s.running = false
	close(s.stopCh)
	slog.Info("Scheduler: stopped")
}

// Status reports the run state and the live configuration.
func (s *Scheduler) Status(ctx context.Context) model.SchedulerStatus {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()

	return model.SchedulerStatus{
		Running: running,
		Config:  s.cfg.SchedulerConfig(ctx),
	}
}

// UpdateConfig merges the patch into the live configuration. If the
// scheduler is running it restarts so new intervals apply from a fresh
// cycle instead of retroactively altering an armed timer.
func (s *Scheduler) UpdateConfig(ctx context.Context, patch model.SchedulerConfigPatch) error {
	if err := s.cfg.UpdateSchedulerConfig(ctx, patch); err != nil {
		return err
	}

	s.mu.Lock()
	running := s.running
	s.mu.Unlock()

	if running {
		s.Stop()
		s.Start()
	}
	return nil
}

// chain is one self-rescheduling timer loop. The stop channel passed at
// start is its liveness token; a Stop/Start pair leaves the old chain's
// token closed so stale loops cannot act or reschedule.
func (s *Scheduler) chain(stopCh chan struct{}, name string, intervals func(model.SchedulerConfig) (int, int), act func(ctx context.Context, cfg model.SchedulerConfig)) {
	ctx := context.Background()

	for {
		cfg := s.cfg.SchedulerConfig(ctx)
		minM, maxM := intervals(cfg)
		delay := s.intervalFn(minM, maxM)
		slog.Debug("Scheduler: next cycle scheduled", "chain", name, "delay", delay)

		select {
		case <-stopCh:
			return
		case <-time.After(delay):
		}

		// Re-check after waking; Stop may have raced the timer.
		select {
		case <-stopCh:
			return
		default:
		}

		// Config re-read so a runtime update affects this very action.
		act(ctx, s.cfg.SchedulerConfig(ctx))
	}
}

func (s *Scheduler) postIntervals(cfg model.SchedulerConfig) (int, int) {
	return cfg.MinPostIntervalMinutes, cfg.MaxPostIntervalMinutes
}

func (s *Scheduler) commentIntervals(cfg model.SchedulerConfig) (int, int) {
	return cfg.MinCommentIntervalMinutes, cfg.MaxCommentIntervalMinutes
}

// postCycle picks a random character and publishes a post in its voice,
// with an optional generated image.
func (s *Scheduler) postCycle(ctx context.Context, cfg model.SchedulerConfig) {
	chars, err := s.st.GetAllCharacters(ctx)
	if err != nil || len(chars) == 0 {
		slog.Warn("Scheduler: no characters for post cycle", "error", err)
		return
	}
	ch := chars[rand.Intn(len(chars))]

	recent, err := s.st.GetRecentPosts(ctx, recentPostPool)
	if err != nil {
		slog.Error("Scheduler: recent post lookup failed", "error", err)
		return
	}

	promptText, err := s.asm.ForPost(ch, recent)
	if err != nil {
		slog.Error("Scheduler: post prompt failed", "character", ch.Handle, "error", err)
		return
	}

	text, err := s.queue.SubmitWait(ctx, func(ctx context.Context) (string, error) {
		return s.llm.GenerateText(ctx, "post", promptText)
	})
	if err != nil {
		slog.Error("Scheduler: post generation failed", "character", ch.Handle, "error", err)
		return
	}

	post := &model.Post{
		ID:          uuid.NewString(),
		CharacterID: ch.ID,
		Content:     text,
		CreatedAt:   time.Now().UTC(),
	}

	if rand.Float64() < cfg.ImagePostChance {
		// An image is a bonus; its failure never sinks the post.
		if url, err := s.generatePostImage(ctx, ch, text); err != nil {
			slog.Warn("Scheduler: image generation failed, posting without",
				"character", ch.Handle, "error", err)
		} else {
			post.ImageURL = url
		}
	}

	if err := s.st.SavePost(ctx, post); err != nil {
		slog.Error("Scheduler: failed to persist post", "character", ch.Handle, "error", err)
		return
	}

	s.sink.Emit(broadcast.EventNewPost, post)
	slog.Info("Scheduler: published post", "character", ch.Handle, "post", post.ID, "image", post.ImageURL != "")
}

// commentCycle probabilistically has one character comment on another's
// recent post.
func (s *Scheduler) commentCycle(ctx context.Context, cfg model.SchedulerConfig) {
	if rand.Float64() >= cfg.CommentChance {
		return
	}

	posts, err := s.st.GetRecentPosts(ctx, recentPostPool)
	if err != nil || len(posts) == 0 {
		return
	}
	post := posts[rand.Intn(len(posts))]

	chars, err := s.st.GetAllCharacters(ctx)
	if err != nil {
		slog.Error("Scheduler: character lookup failed", "error", err)
		return
	}
	var eligible []*model.Character
	for _, c := range chars {
		if c.ID != post.CharacterID {
			eligible = append(eligible, c)
		}
	}
	if len(eligible) == 0 {
		// Single-character system; nobody can comment on their own post.
		return
	}
	ch := eligible[rand.Intn(len(eligible))]

	author, err := s.st.GetCharacter(ctx, post.CharacterID)
	if err != nil || author == nil {
		slog.Error("Scheduler: post author lookup failed", "post", post.ID, "error", err)
		return
	}
	existing, err := s.st.ListComments(ctx, post.ID)
	if err != nil {
		slog.Error("Scheduler: comment lookup failed", "post", post.ID, "error", err)
		return
	}

	promptText, err := s.asm.ForComment(ch, post, author, existing)
	if err != nil {
		slog.Error("Scheduler: comment prompt failed", "character", ch.Handle, "error", err)
		return
	}

	text, err := s.queue.SubmitWait(ctx, func(ctx context.Context) (string, error) {
		return s.llm.GenerateText(ctx, "comment", promptText)
	})
	if err != nil {
		slog.Error("Scheduler: comment generation failed", "character", ch.Handle, "error", err)
		return
	}

	comment := &model.Comment{
		ID:          uuid.NewString(),
		PostID:      post.ID,
		CharacterID: ch.ID,
		Content:     text,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.st.SaveComment(ctx, comment); err != nil {
		slog.Error("Scheduler: failed to persist comment", "post", post.ID, "error", err)
		return
	}

	s.sink.Emit(broadcast.EventNewComment, comment)
	slog.Info("Scheduler: published comment", "character", ch.Handle, "post", post.ID)
}

// generatePostImage renders an accompanying image and stores it under the
// images directory, returning the URL path it will be served from.
func (s *Scheduler) generatePostImage(ctx context.Context, ch *model.Character, caption string) (string, error) {
	if s.imagesDir == "" {
		return "", fmt.Errorf("images directory not configured")
	}

	imgPrompt, err := s.asm.ForImage(ch, caption)
	if err != nil {
		return "", err
	}

	data, err := s.llm.GenerateImage(ctx, "image", imgPrompt)
	if err != nil {
		return "", err
	}
	if len(data) == 0 {
		return "", fmt.Errorf("empty image payload")
	}

	if err := os.MkdirAll(s.imagesDir, 0o755); err != nil {
		return "", err
	}
	name := uuid.NewString() + ".png"
	if err := os.WriteFile(filepath.Join(s.imagesDir, name), data, 0o644); err != nil {
		return "", err
	}

	return "/api/images/" + name, nil
}

// randomInterval draws a uniform delay between the minute bounds, with
// millisecond granularity.
func randomInterval(minMinutes, maxMinutes int) time.Duration {
	minMs := int64(minMinutes) * 60_000
	maxMs := int64(maxMinutes) * 60_000
	if maxMs <= minMs {
		return time.Duration(minMs) * time.Millisecond
	}
	ms := rand.Int63n(maxMs-minMs+1) + minMs
	return time.Duration(ms) * time.Millisecond
}
