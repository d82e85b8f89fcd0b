// Package notify tells the rest of the platform that a new index has been
// published: it emits an index-complete event and drops the searcher's
// cached query results.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/fingertips/internal/indexer/pipeline"
	"github.com/Adithya-Monish-Kumar-K/fingertips/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/fingertips/pkg/resilience"
)

// IndexComplete is the event published after a successful run.
type IndexComplete struct {
	RunID       string    `json:"run_id"`
	OutputPath  string    `json:"output_path"`
	Documents   int       `json:"documents"`
	Skipped     int       `json:"skipped"`
	Segments    int       `json:"segments"`
	Terms       int       `json:"terms"`
	Bytes       int64     `json:"bytes"`
	CompletedAt time.Time `json:"completed_at"`
}

// EventPublisher is satisfied by *kafka.Producer.
type EventPublisher interface {
	Publish(ctx context.Context, event kafka.Event) error
}

// CacheInvalidator is satisfied by *redis.Client.
type CacheInvalidator interface {
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

// Notifier announces finished runs. Either collaborator may be nil.
type Notifier struct {
	publisher    EventPublisher
	cache        CacheInvalidator
	cachePattern string
	retry        resilience.RetryConfig
	now          func() time.Time
	logger       *slog.Logger
}

func New(publisher EventPublisher, cache CacheInvalidator, cachePattern string) *Notifier {
	return &Notifier{
		publisher:    publisher,
		cache:        cache,
		cachePattern: cachePattern,
		retry: resilience.RetryConfig{
			MaxAttempts:  3,
			InitialDelay: 200 * time.Millisecond,
		},
		now:    time.Now,
		logger: slog.Default().With("component", "notifier"),
	}
}

// Complete publishes the event for res, retrying transient failures, and
// then invalidates the query cache. The index is already in place when this
// runs, so callers treat a failure as a warning rather than a failed run.
func (n *Notifier) Complete(ctx context.Context, res *pipeline.Result) error {
	event := IndexComplete{
		RunID:       res.RunID,
		OutputPath:  res.OutputPath,
		Documents:   res.Documents,
		Skipped:     len(res.Skipped),
		Segments:    res.Segments,
		Terms:       res.Terms,
		Bytes:       res.Bytes,
		CompletedAt: n.now().UTC(),
	}
	if n.publisher != nil {
		err := resilience.Retry(ctx, "publish index complete", n.retry, func() error {
			return n.publisher.Publish(ctx, kafka.Event{Key: res.RunID, Value: event})
		})
		if err != nil {
			return fmt.Errorf("publishing index complete event: %w", err)
		}
		n.logger.Info("index complete event published", "run_id", res.RunID)
	}
	if n.cache != nil && n.cachePattern != "" {
		deleted, err := n.cache.FlushByPattern(ctx, n.cachePattern)
		if err != nil {
			return fmt.Errorf("invalidating query cache: %w", err)
		}
		n.logger.Info("query cache invalidated", "pattern", n.cachePattern, "keys", deleted)
	}
	return nil
}
