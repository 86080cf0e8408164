package audit

import (
	"context"
	"encoding/json"
	"log/slog"
)

// producer is the slice of the Kafka client the worker needs.
type producer interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

// Worker drains the publisher's event stream into Kafka. Publish failures
// are logged and skipped; the store already holds the authoritative copy.
type Worker struct {
	producer producer
	topic    string
	inbox    <-chan Event
	logger   *slog.Logger
}

func NewWorker(p producer, topic string, inbox <-chan Event, logger *slog.Logger) *Worker {
	return &Worker{producer: p, topic: topic, inbox: inbox, logger: logger}
}

func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-w.inbox:
			value, err := json.Marshal(event)
			if err != nil {
				w.logger.ErrorContext(ctx, "marshal audit event", "error", err)
				continue
			}
			key := []byte(event.SessionID.String())
			if err := w.producer.Publish(ctx, w.topic, key, value); err != nil {
				w.logger.WarnContext(ctx, "publish audit event",
					"action", event.Action,
					"error", err,
				)
			}
		}
	}
}
