// Package notify announces finished index builds on the index.complete topic
// so running search services can reload.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/keyword-search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/keyword-search/pkg/resilience"
)

// IndexComplete is the payload of an index.complete event.
type IndexComplete struct {
	Generation uint64    `json:"generation"`
	Documents  int       `json:"documents"`
	Terms      int       `json:"terms"`
	Path       string    `json:"path"`
	BuiltAt    time.Time `json:"built_at"`
}

// Publisher is the producer side used by Notifier. *kafka.Producer
// satisfies it.
type Publisher interface {
	Publish(ctx context.Context, event kafka.Event) error
}

type Notifier struct {
	pub    Publisher
	retry  resilience.RetryConfig
	logger *slog.Logger
}

// New returns a Notifier that retries failed publishes with retry.
func New(pub Publisher, retry resilience.RetryConfig) *Notifier {
	return &Notifier{
		pub:    pub,
		retry:  retry,
		logger: slog.Default().With("component", "build-notifier"),
	}
}

// IndexComplete publishes ev keyed by the segment path, so every event for
// one index lands on the same partition in order.
func (n *Notifier) IndexComplete(ctx context.Context, ev IndexComplete) error {
	event := kafka.Event{Key: ev.Path, Value: ev}
	err := resilience.Retry(ctx, "publish index.complete", n.retry, func(ctx context.Context) error {
		return n.pub.Publish(ctx, event)
	})
	if err != nil {
		return fmt.Errorf("publishing index.complete for generation %d: %w", ev.Generation, err)
	}
	n.logger.Info("index.complete published",
		"path", ev.Path,
		"generation", ev.Generation,
		"documents", ev.Documents,
	)
	return nil
}
