// Package producer publishes classification records to Kafka.
package producer

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/mwvgroup/pittgoogle-user/internal/events"
	kafkautil "github.com/mwvgroup/pittgoogle-user/pkg/kafka"
)

// Producer wraps a Kafka writer. Each publication names its own topic.
type Producer struct {
	writer  *kafka.Writer
	brokers []string
}

// NewProducer creates a synchronous Kafka producer. When topic is set it
// is created up front if missing.
func NewProducer(brokers string, topic string) (*Producer, error) {
	if err := kafkautil.ValidateProducerParams(brokers, topic); err != nil {
		return nil, err
	}
	brokerList := kafkautil.ParseBrokers(brokers)

	slog.Info("Initializing Kafka producer",
		"brokers", brokerList,
		"topic", topic,
	)
	kafkautil.EnsureTopic(brokerList[0], topic, 3)

	return &Producer{
		writer:  kafkautil.NewWriter(brokerList, ""),
		brokers: brokerList,
	}, nil
}

// Publish writes one record keyed by the publication's key, with its
// attributes as headers.
func (p *Producer) Publish(ctx context.Context, pub *events.Publication) error {
	msg := kafka.Message{
		Topic:   pub.Topic,
		Key:     []byte(pub.Key),
		Value:   pub.Data,
		Headers: Headers(pub.Attributes),
		Time:    time.Now(),
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("%w: failed to write message to Kafka topic %s: %v", events.ErrSinkError, pub.Topic, err)
	}

	slog.Debug("Published classification",
		"topic", pub.Topic,
		"key", pub.Key,
		"bytes", len(pub.Data),
	)
	return nil
}

// Headers converts attributes to Kafka headers in key order.
func Headers(attrs map[string]string) []kafka.Header {
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	headers := make([]kafka.Header, 0, len(keys))
	for _, k := range keys {
		headers = append(headers, kafka.Header{Key: k, Value: []byte(attrs[k])})
	}
	return headers
}

// Close closes the Kafka writer.
func (p *Producer) Close() error {
	slog.Info("Closing Kafka producer", "brokers", p.brokers)
	if err := p.writer.Close(); err != nil {
		slog.Error("Error closing Kafka producer", "error", err)
		return err
	}
	return nil
}
