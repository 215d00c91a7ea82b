package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/example/booking-manager/internal/application"
)

// DefaultTopic is used when the configuration leaves the topic empty.
const DefaultTopic = "booking.notifications"

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// KafkaSink publishes notifications keyed by recipient so one user's events
// keep their order within a partition.
type KafkaSink struct {
	writer messageWriter
	topic  string
}

var _ application.NotificationSink = (*KafkaSink)(nil)

// NewKafkaSink builds a synchronous producer for topic.
func NewKafkaSink(brokers []string, topic string) *KafkaSink {
	if topic == "" {
		topic = DefaultTopic
	}
	return &KafkaSink{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			BatchTimeout: 50 * time.Millisecond,
			RequiredAcks: kafka.RequireOne,
		},
		topic: topic,
	}
}

// Deliver publishes one message per notification.
func (s *KafkaSink) Deliver(ctx context.Context, notifications []application.Notification) error {
	if len(notifications) == 0 {
		return nil
	}
	messages := make([]kafka.Message, 0, len(notifications))
	for _, n := range notifications {
		payload, err := json.Marshal(EventFrom(n))
		if err != nil {
			return fmt.Errorf("encode notification %s: %w", n.ID, err)
		}
		messages = append(messages, kafka.Message{
			Key:   []byte(n.UserID),
			Value: payload,
			Time:  n.CreatedAt,
		})
	}
	if err := s.writer.WriteMessages(ctx, messages...); err != nil {
		return fmt.Errorf("publish to %s: %w", s.topic, err)
	}
	return nil
}

// Close flushes and closes the producer.
func (s *KafkaSink) Close() error {
	return s.writer.Close()
}

// Consumer reads notification events and hands them to a sink, typically
// the local websocket hub. Every instance uses its own group so each one
// sees every event.
type Consumer struct {
	reader messageReader
	sink   application.NotificationSink
	logger *slog.Logger
}

// NewConsumer subscribes groupID to topic.
func NewConsumer(brokers []string, groupID, topic string, sink application.NotificationSink, logger *slog.Logger) *Consumer {
	if topic == "" {
		topic = DefaultTopic
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:           brokers,
			GroupID:           groupID,
			Topic:             topic,
			StartOffset:       kafka.LastOffset,
			HeartbeatInterval: 3 * time.Second,
			SessionTimeout:    30 * time.Second,
		}),
		sink:   sink,
		logger: logger.With(slog.String("component", "notify_consumer"), slog.String("topic", topic)),
	}
}

// Run relays events until ctx is cancelled or the reader fails. Undecodable
// messages and sink failures are logged and skipped.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("read notification event: %w", err)
		}

		event, err := decodeEvent(msg.Value)
		if err != nil {
			c.logger.WarnContext(ctx, "skipping notification event", slog.Int64("offset", msg.Offset), slog.Any("error", err))
			continue
		}
		if err := c.sink.Deliver(ctx, []application.Notification{event.Notification()}); err != nil {
			c.logger.WarnContext(ctx, "notification relay failed", slog.String("notification_id", event.ID), slog.Any("error", err))
		}
	}
}

// Close closes the reader.
func (c *Consumer) Close() error {
	return c.reader.Close()
}
