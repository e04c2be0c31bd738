package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"menagerie/pkg/llm"
	"menagerie/pkg/logging"
)

// Work is one unit of generation work executed by the queue.
type Work func(ctx context.Context) (string, error)

// Result carries the final outcome of a submitted work item. Retries are
// internal to the queue; only the terminal success or failure surfaces.
type Result struct {
	Text string
	Err  error
}

// Config provides the queue's pacing and retry settings. It is read fresh on
// every dispatch so operators can tune a running queue.
type Config interface {
	DispatchMinDelay(ctx context.Context) time.Duration
	DispatchSettleDelay(ctx context.Context) time.Duration
	DispatchRetryDelays(ctx context.Context) []time.Duration
	DispatchServerRetries(ctx context.Context) int
	DispatchServerRetryDelay(ctx context.Context) time.Duration
}

type request struct {
	work          Work
	result        chan Result // Buffered, receives exactly one Result
	retryCount    int         // Rate-limit retries consumed
	serverRetries int         // Transient server-error retries consumed
	enqueuedAt    time.Time
}

// Queue serializes all generation calls against the external backend.
// Requests dispatch in submission order, except that a retried request
// re-enters at the front of the queue after its backoff delay.
type Queue struct {
	cfg Config

	mu             sync.Mutex
	pending        []*request
	processing     bool
	lastDispatchAt time.Time
}

func NewQueue(cfg Config) *Queue {
	return &Queue{cfg: cfg}
}

// Submit enqueues work and returns a channel that receives exactly one Result.
// The channel stays silent while the queue retries retriable failures.
func (q *Queue) Submit(work Work) <-chan Result {
	r := &request{
		work:       work,
		result:     make(chan Result, 1),
		enqueuedAt: time.Now(),
	}

	q.mu.Lock()
	q.pending = append(q.pending, r)
	q.startLocked()
	q.mu.Unlock()

	return r.result
}

// SubmitWait enqueues work and blocks until it resolves or ctx is done.
// Cancelling ctx abandons the wait only; the queued work still runs.
func (q *Queue) SubmitWait(ctx context.Context, work Work) (string, error) {
	ch := q.Submit(work)
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		return res.Text, res.Err
	}
}

// Len reports the number of pending requests.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// startLocked launches the processing loop if it is not already running.
// Caller must hold q.mu.
func (q *Queue) startLocked() {
	if !q.processing {
		q.processing = true
		go q.process()
	}
}

func (q *Queue) process() {
	ctx := context.Background()

	for {
		q.mu.Lock()
		if len(q.pending) == 0 {
			q.processing = false
			q.mu.Unlock()
			return
		}
		r := q.pending[0]
		q.pending = q.pending[1:]
		last := q.lastDispatchAt
		q.mu.Unlock()

		// Minimum spacing between dispatch start times
		if wait := q.cfg.DispatchMinDelay(ctx) - time.Since(last); wait > 0 {
			logging.TraceDefault("Dispatch: pacing", "wait", wait, "queued", time.Since(r.enqueuedAt))
			time.Sleep(wait)
		}

		q.mu.Lock()
		q.lastDispatchAt = time.Now()
		q.mu.Unlock()

		text, err := r.work(ctx)
		switch {
		case err == nil:
			r.result <- Result{Text: text}
			// Settle before the next item so a fast success cannot
			// produce a back-to-back burst.
			time.Sleep(q.cfg.DispatchSettleDelay(ctx))

		case llm.IsRateLimited(err):
			table := q.cfg.DispatchRetryDelays(ctx)
			if r.retryCount < len(table) {
				delay := table[r.retryCount]
				r.retryCount++
				slog.Warn("Dispatch: rate limited, will retry",
					"attempt", r.retryCount, "delay", delay)
				q.reinsertAfter(r, delay)
			} else {
				slog.Error("Dispatch: rate-limit retries exhausted", "attempts", r.retryCount)
				r.result <- Result{Err: err}
			}

		case llm.IsTransient(err):
			if r.serverRetries < q.cfg.DispatchServerRetries(ctx) {
				delay := q.cfg.DispatchServerRetryDelay(ctx)
				r.serverRetries++
				slog.Warn("Dispatch: server error, will retry",
					"attempt", r.serverRetries, "delay", delay, "error", err)
				q.reinsertAfter(r, delay)
			} else {
				slog.Error("Dispatch: server-error retries exhausted", "error", err)
				r.result <- Result{Err: fmt.Errorf("service unavailable: %w", err)}
			}

		default:
			r.result <- Result{Err: err}
		}
	}
}

// reinsertAfter puts the request back at the front of the queue once the
// backoff delay elapses. The loop keeps draining other items meanwhile, so a
// retry wait never blocks requests behind it.
func (q *Queue) reinsertAfter(r *request, delay time.Duration) {
	time.AfterFunc(delay, func() {
		q.mu.Lock()
		q.pending = append([]*request{r}, q.pending...)
		q.startLocked()
		q.mu.Unlock()
	})
}
