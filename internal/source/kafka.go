package source

import (
	"context"
	"fmt"
	"time"

	"github.com/Adithya-Monish-Kumar-K/fingertips/internal/indexer/pipeline"
	"github.com/Adithya-Monish-Kumar-K/fingertips/pkg/config"
	sperrors "github.com/Adithya-Monish-Kumar-K/fingertips/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/fingertips/pkg/kafka"
)

// IngestEvent is the payload of a message on the document ingest topic.
type IngestEvent struct {
	DocumentID string    `json:"document_id"`
	Title      string    `json:"title"`
	Body       string    `json:"body"`
	ShardID    int       `json:"shard_id"`
	IngestedAt time.Time `json:"ingested_at"`
}

// Text is the indexed text of the event: title then body.
func (e IngestEvent) Text() string {
	if e.Body == "" {
		return e.Title
	}
	return e.Title + " " + e.Body
}

// Kafka reads one partition of the ingest topic up to the end offset seen
// when the run starts. A message that does not decode is yielded as
// unreadable.
type Kafka struct {
	Config    config.KafkaConfig
	Topic     string
	Partition int
}

func (k *Kafka) Documents(ctx context.Context, yield func(pipeline.Document) error) error {
	topic := k.Topic
	if topic == "" {
		topic = k.Config.Topics.DocumentIngest
	}
	n := 0
	return kafka.ReadPartition(ctx, k.Config, topic, k.Partition, func(ctx context.Context, key, value []byte) error {
		n++
		return yield(decodeIngest(fmt.Sprintf("%s/%d#%d", topic, k.Partition, n), value))
	})
}

func decodeIngest(fallbackHint string, value []byte) pipeline.Document {
	event, err := kafka.DecodeJSON[IngestEvent](value)
	if err != nil {
		return pipeline.Document{Hint: fallbackHint, Err: sperrors.Read("decoding ingest event", fallbackHint, err)}
	}
	hint := event.DocumentID
	if hint == "" {
		hint = fallbackHint
	}
	return pipeline.Document{Hint: hint, Body: []byte(event.Text())}
}
