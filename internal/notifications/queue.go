package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"quill/internal/middleware"
	"quill/internal/observability"

	"github.com/google/uuid"
)

// Pusher delivers one payload to one user through some transport.
type Pusher interface {
	Push(ctx context.Context, userID uint, payload string) error
}

// PushJob is one queued delivery.
type PushJob struct {
	ID          string
	RecipientID uint
	Payload     json.RawMessage
	EnqueuedAt  time.Time
}

// Envelope is the JSON frame a client receives for each notification.
type Envelope struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// QueueConfig sizes a PushQueue.
type QueueConfig struct {
	Size      int
	Workers   int
	Timeout   time.Duration
	Transport string
}

// PushQueue is the one-way hand-off between persistence and delivery.
// Enqueue never blocks; Run drains the queue with a fixed worker pool.
type PushQueue struct {
	jobs      chan PushJob
	pusher    Pusher
	workers   int
	timeout   time.Duration
	transport string
}

// NewPushQueue returns a queue delivering through pusher. Zero config values
// fall back to 256 slots, 2 workers and a 3s per-push timeout.
func NewPushQueue(pusher Pusher, cfg QueueConfig) *PushQueue {
	if cfg.Size <= 0 {
		cfg.Size = 256
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 3 * time.Second
	}
	if cfg.Transport == "" {
		cfg.Transport = "local"
	}
	return &PushQueue{
		jobs:      make(chan PushJob, cfg.Size),
		pusher:    pusher,
		workers:   cfg.Workers,
		timeout:   cfg.Timeout,
		transport: cfg.Transport,
	}
}

// Enqueue hands payload off for delivery. It returns false when the queue
// is full and the push was dropped.
func (q *PushQueue) Enqueue(recipientID uint, payload []byte) bool {
	job := PushJob{
		ID:          uuid.NewString(),
		RecipientID: recipientID,
		Payload:     payload,
		EnqueuedAt:  time.Now(),
	}
	select {
	case q.jobs <- job:
		observability.NotificationPushQueueDepth.Set(float64(len(q.jobs)))
		return true
	default:
		observability.NotificationPushes.WithLabelValues(q.transport, "dropped").Inc()
		return false
	}
}

// Len is the number of jobs waiting.
func (q *PushQueue) Len() int {
	return len(q.jobs)
}

// Run drains the queue until ctx is done. It blocks until every worker has
// returned.
func (q *PushQueue) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < q.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			q.work(ctx)
		}()
	}
	wg.Wait()
}

func (q *PushQueue) work(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-q.jobs:
			observability.NotificationPushQueueDepth.Set(float64(len(q.jobs)))
			q.deliver(ctx, job)
		}
	}
}

func (q *PushQueue) deliver(ctx context.Context, job PushJob) {
	frame, err := json.Marshal(Envelope{ID: job.ID, Type: "notification", Payload: job.Payload})
	if err != nil {
		observability.NotificationPushes.WithLabelValues(q.transport, "error").Inc()
		middleware.Logger.Error("failed to encode push", slog.String("push_id", job.ID), slog.String("error", err.Error()))
		return
	}

	pushCtx, cancel := context.WithTimeout(ctx, q.timeout)
	defer cancel()

	err = q.pusher.Push(pushCtx, job.RecipientID, string(frame))
	switch {
	case err == nil:
		observability.NotificationPushes.WithLabelValues(q.transport, "ok").Inc()
	case errors.Is(err, context.DeadlineExceeded):
		observability.NotificationPushes.WithLabelValues(q.transport, "timeout").Inc()
		middleware.Logger.Warn("notification push timed out",
			slog.String("push_id", job.ID),
			slog.Uint64("recipient_id", uint64(job.RecipientID)),
			slog.Duration("timeout", q.timeout),
		)
	default:
		observability.NotificationPushes.WithLabelValues(q.transport, "error").Inc()
		middleware.Logger.Warn("notification push failed",
			slog.String("push_id", job.ID),
			slog.Uint64("recipient_id", uint64(job.RecipientID)),
			slog.String("error", err.Error()),
		)
	}
}
