// Package worker drains the event outbox into Kafka.
package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/twmb/franz-go/pkg/kgo"

	"khural/internal/events"
)

// batchSize bounds how many outbox rows one drain pass picks up.
const batchSize = 100

// Broker is the producing slice of kgo.Client, narrowed for testability.
type Broker interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

// Worker polls the outbox and publishes pending events. Publishing is
// at-least-once: a crash between produce and mark re-publishes the batch,
// and consumers dedupe on event ID.
type Worker struct {
	store    events.Store
	broker   Broker
	topic    string
	interval time.Duration
	logger   *slog.Logger
}

// New builds an outbox worker.
func New(store events.Store, broker Broker, topic string, interval time.Duration, logger *slog.Logger) *Worker {
	return &Worker{
		store:    store,
		broker:   broker,
		topic:    topic,
		interval: interval,
		logger:   logger,
	}
}

// Run drains the outbox on a fixed interval until ctx is cancelled.
// Publish failures are logged and retried on the next tick rather than
// stopping the worker.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.Drain(ctx); err != nil {
				w.logger.ErrorContext(ctx, "outbox drain failed", "error", err)
			}
		}
	}
}

// Drain publishes one batch of pending events. Exported for tests and for
// a final flush on shutdown.
func (w *Worker) Drain(ctx context.Context) error {
	pending, err := w.store.Pending(ctx, batchSize)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		return nil
	}

	records := make([]*kgo.Record, len(pending))
	for i, event := range pending {
		records[i] = &kgo.Record{
			Topic: w.topic,
			Key:   []byte(event.ElectionID.String()),
			Value: event.Payload,
		}
	}

	if err := w.broker.ProduceSync(ctx, records...).FirstErr(); err != nil {
		return err
	}

	ids := make([]uuid.UUID, len(pending))
	for i, event := range pending {
		ids[i] = event.ID
	}
	if err := w.store.MarkPublished(ctx, ids, time.Now().UTC()); err != nil {
		return err
	}

	w.logger.InfoContext(ctx, "published lifecycle events", "count", len(pending))
	return nil
}
