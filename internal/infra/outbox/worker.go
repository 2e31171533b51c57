package outbox

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

type Producer interface {
	Publish(ctx context.Context, topic string, key string, payload []byte, headers map[string]string) error
}

// Queue is the claim/ack side of the outbox store.
type Queue interface {
	Claim(ctx context.Context, workerID string) (*EventDocument, error)
	MarkSent(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, next time.Time, errMsg string) error
}

type Worker struct {
	Queue       Queue
	Producer    Producer
	Logger      *slog.Logger
	Interval    time.Duration
	TopicPrefix string
	Source      string
	ID          string
	Backoff     []time.Duration
	Now         func() time.Time
}

var ErrWorkerNotConfigured = errors.New("outbox: worker missing dependencies")

// Run publishes due records until ctx ends. Each tick drains everything due.
func (w *Worker) Run(ctx context.Context) error {
	if w.Queue == nil || w.Producer == nil {
		return ErrWorkerNotConfigured
	}
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	ticker := time.NewTicker(w.interval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := w.Drain(ctx); err != nil && ctx.Err() == nil {
				w.logger().Error("outbox drain failed", slog.Any("err", err))
			}
		}
	}
}

// Drain publishes records until none are due and returns how many were sent.
func (w *Worker) Drain(ctx context.Context) (int, error) {
	sent := 0
	for ctx.Err() == nil {
		ok, err := w.processOnce(ctx)
		if err != nil {
			return sent, err
		}
		if !ok {
			return sent, nil
		}
		sent++
	}
	return sent, nil
}

// processOnce reports false when there was nothing to claim. A failed publish
// is rescheduled and counts as processed.
func (w *Worker) processOnce(ctx context.Context) (bool, error) {
	doc, err := w.Queue.Claim(ctx, w.ID)
	if err != nil || doc == nil {
		return false, err
	}
	payload, err := EncodeCloudEvent(doc, w.source())
	if err != nil {
		return true, w.fail(ctx, doc, err)
	}
	headers := map[string]string{"content-type": CloudEventsContent}
	for k, v := range doc.Headers {
		headers[k] = v
	}
	if err := w.Producer.Publish(ctx, TopicFor(w.TopicPrefix, doc.Name), doc.Aggregate, payload, headers); err != nil {
		return true, w.fail(ctx, doc, err)
	}
	return true, w.Queue.MarkSent(ctx, doc.ID)
}

func (w *Worker) fail(ctx context.Context, doc *EventDocument, cause error) error {
	next := w.nextRetry(doc.Attempts)
	w.logger().Warn("outbox publish failed",
		slog.String("event_id", doc.ID),
		slog.String("event", doc.Name),
		slog.Int("attempts", doc.Attempts+1),
		slog.Time("next_attempt_at", next),
		slog.Any("err", cause),
	)
	return w.Queue.MarkFailed(ctx, doc.ID, next, cause.Error())
}

func (w *Worker) interval() time.Duration {
	if w.Interval <= 0 {
		return 500 * time.Millisecond
	}
	return w.Interval
}

func (w *Worker) nextRetry(attempts int) time.Time {
	now := time.Now()
	if w.Now != nil {
		now = w.Now()
	}
	if attempts < len(w.Backoff) {
		return now.Add(w.Backoff[attempts])
	}
	if len(w.Backoff) > 0 {
		return now.Add(w.Backoff[len(w.Backoff)-1])
	}
	return now.Add(5 * time.Second)
}

func (w *Worker) source() string {
	if w.Source != "" {
		return w.Source
	}
	return "app://tinyhouse"
}

func (w *Worker) logger() *slog.Logger {
	if w.Logger != nil {
		return w.Logger
	}
	return slog.Default()
}
