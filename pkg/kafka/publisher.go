// Package kafka publishes order events to a Kafka topic.
package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/abgdnv/coinmarket/pkg/config"
	"github.com/abgdnv/coinmarket/pkg/messaging"
	"github.com/segmentio/kafka-go"
)

// SubjectHeader carries the event subject, since every event shares one topic.
const SubjectHeader = "subject"

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Publisher struct {
	w            messageWriter
	writeTimeout time.Duration
}

// NewWriter builds a kafka writer for the configured brokers and topic.
// Messages with the same key land on the same partition.
func NewWriter(cfg config.KafkaConfig) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(cfg.BrokerList()...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		WriteTimeout: cfg.WriteTimeout,
	}
}

func NewPublisher(w messageWriter, writeTimeout time.Duration) *Publisher {
	return &Publisher{w: w, writeTimeout: writeTimeout}
}

func (p *Publisher) Publish(ctx context.Context, event messaging.Event) error {
	data, err := event.Payload()
	if err != nil {
		return fmt.Errorf("failed to get event payload: %w", err)
	}
	if p.writeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.writeTimeout)
		defer cancel()
	}
	msg := kafka.Message{
		Key:     []byte(event.Subject()),
		Value:   data,
		Headers: []kafka.Header{{Key: SubjectHeader, Value: []byte(event.Subject())}},
		Time:    time.Now().UTC(),
	}
	if err := p.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write kafka message: %w", err)
	}
	return nil
}

func (p *Publisher) Close() error {
	return p.w.Close()
}
