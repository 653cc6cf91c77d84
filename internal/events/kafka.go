package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
)

// Mirror produces every persisted response to a Kafka topic for external
// consumers. Delivery is best-effort: a broker failure is logged and never
// blocks the response pipeline.
type Mirror struct {
	writer *kafka.Writer
}

// NewMirror creates a Kafka mirror for the given brokers and topic.
func NewMirror(brokers, topic string) *Mirror {
	addrs := strings.Split(brokers, ",")
	for i := range addrs {
		addrs[i] = strings.TrimSpace(addrs[i])
	}
	return &Mirror{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(addrs...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			AllowAutoTopicCreation: true,
			WriteTimeout:           5 * time.Second,
		},
	}
}

// Publish sends one response to the topic, keyed by conversation id so a
// conversation's responses stay ordered within a partition.
func (m *Mirror) Publish(resp Response) {
	payload, err := json.Marshal(resp)
	if err != nil {
		slog.Warn("Kafka mirror: marshal response failed", "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err = m.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(resp.ConversationID),
		Value: payload,
	})
	if err != nil {
		slog.Warn("Kafka mirror: write failed", "topic", m.writer.Topic, "error", err)
	}
}

// Close releases the underlying writer.
func (m *Mirror) Close() error {
	return m.writer.Close()
}
