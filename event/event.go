// Package event publishes catalog changes for downstream consumers.
package event

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ewintr.nl/conceptube/config"
	"ewintr.nl/conceptube/model"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"golang.org/x/exp/slog"
)

const (
	TypeVideoIngested = "video.ingested"
	TypeVideoDeleted  = "video.deleted"
)

type Event struct {
	Type      string               `json:"type"`
	ID        uuid.UUID            `json:"id"`
	YoutubeID model.YoutubeVideoID `json:"videoId"`
	At        time.Time            `json:"at"`
}

func New(eventType string, video *model.Video, at time.Time) Event {
	return Event{
		Type:      eventType,
		ID:        video.ID,
		YoutubeID: video.YoutubeID,
		At:        at.UTC(),
	}
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// Nop drops every event. Used when no brokers are configured.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error { return nil }

// messageWriter is the part of *kafka.Writer the publisher needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Kafka writes events as JSON, keyed by YouTube id so all events of one video
// land on the same partition.
type Kafka struct {
	writer messageWriter
	logger *slog.Logger
}

func NewKafka(cfg config.KafkaConfig, logger *slog.Logger) *Kafka {
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		MaxAttempts:  3,
		RequiredAcks: kafka.RequireAll,
	}

	return newKafka(w, logger.With(slog.String("component", "kafka-publisher"), slog.String("topic", cfg.Topic)))
}

func newKafka(w messageWriter, logger *slog.Logger) *Kafka {
	return &Kafka{
		writer: w,
		logger: logger,
	}
}

func (k *Kafka) Publish(ctx context.Context, e Event) error {
	value, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshaling event: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(e.YoutubeID),
		Value: value,
	}
	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publishing to kafka: %w", err)
	}
	k.logger.Debug("event published", slog.String("type", e.Type), slog.String("video", string(e.YoutubeID)))

	return nil
}

func (k *Kafka) Close() error {
	return k.writer.Close()
}
