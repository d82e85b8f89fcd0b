package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/segmentio/kafka-go"

	"github.com/Adithya-Monish-Kumar-K/fingertips/pkg/config"
)

// MessageHandler is a callback invoked for each Kafka message. Returning an
// error stops the read.
type MessageHandler func(ctx context.Context, key []byte, value []byte) error

// ReadPartition hands every message of one topic partition to handler, from
// the oldest retained offset up to the end offset observed when the call
// starts. Messages produced after that are left for the next call, which
// makes the read finite.
func ReadPartition(ctx context.Context, cfg config.KafkaConfig, topic string, partition int, handler MessageHandler) error {
	if len(cfg.Brokers) == 0 {
		return fmt.Errorf("no kafka brokers configured")
	}
	logger := slog.Default().With("component", "kafka-reader", "topic", topic, "partition", partition)

	conn, err := kafka.DialLeader(ctx, "tcp", cfg.Brokers[0], topic, partition)
	if err != nil {
		return fmt.Errorf("dialing partition leader: %w", err)
	}
	first, last, err := conn.ReadOffsets()
	conn.Close()
	if err != nil {
		return fmt.Errorf("reading partition offsets: %w", err)
	}
	if last <= first {
		logger.Info("partition empty", "offset", last)
		return nil
	}
	logger.Info("reading partition", "first_offset", first, "last_offset", last)

	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:   cfg.Brokers,
		Topic:     topic,
		Partition: partition,
		MinBytes:  1,
		MaxBytes:  10e6,
	})
	defer r.Close()
	if err := r.SetOffset(first); err != nil {
		return fmt.Errorf("seeking to offset %d: %w", first, err)
	}
	for {
		msg, err := r.FetchMessage(ctx)
		if err != nil {
			return fmt.Errorf("fetching message: %w", err)
		}
		logger.Debug("message received",
			"offset", msg.Offset,
			"key", string(msg.Key),
			"value_size", len(msg.Value),
		)
		if err := handler(ctx, msg.Key, msg.Value); err != nil {
			return err
		}
		if msg.Offset >= last-1 {
			return nil
		}
	}
}

// DecodeJSON is a generic helper that unmarshals a Kafka message value into T.
func DecodeJSON[T any](value []byte) (T, error) {
	var result T
	if err := json.Unmarshal(value, &result); err != nil {
		return result, fmt.Errorf("decoding kafka message: %w", err)
	}
	return result, nil
}

// Ping dials the first reachable broker and asks it for the cluster's
// broker list.
func Ping(ctx context.Context, cfg config.KafkaConfig) error {
	var lastErr error
	for _, broker := range cfg.Brokers {
		conn, err := kafka.DialContext(ctx, "tcp", broker)
		if err != nil {
			lastErr = err
			continue
		}
		_, err = conn.Brokers()
		conn.Close()
		if err == nil {
			return nil
		}
		lastErr = err
	}
	if lastErr == nil {
		return fmt.Errorf("no kafka brokers configured")
	}
	return fmt.Errorf("pinging kafka: %w", lastErr)
}
