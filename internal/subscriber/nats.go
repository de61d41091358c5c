// Package subscriber consumes order lifecycle events from NATS JetStream and turns them into notifications.
package subscriber

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/abgdnv/coinmarket/pkg/config"
	"github.com/abgdnv/coinmarket/pkg/messaging"
	"github.com/abgdnv/coinmarket/pkg/messaging/events"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

const tracerName = "github.com/abgdnv/coinmarket/internal/subscriber"

var errUnknownSubject = errors.New("unknown subject")

// ackableMsg is the part of jetstream.Msg the handler needs.
type ackableMsg interface {
	Subject() string
	Data() []byte
	Ack() error
	Nak() error
}

// Notification is what a buyer or shop gets told about an order event.
type Notification struct {
	Recipient string
	Message   string
	OrderID   int
	carrier   propagation.MapCarrier
}

// Start creates the durable consumer on stream and runs the configured number of workers until ctx is done.
func Start(ctx context.Context, js jetstream.JetStream, stream string, subscriberCfg config.SubscriberConfig, logger *slog.Logger) error {
	cfg := jetstream.ConsumerConfig{
		FilterSubject: subscriberCfg.Subject,
		Durable:       subscriberCfg.Consumer,
		AckPolicy:     jetstream.AckExplicitPolicy,
	}
	consumer, err := js.CreateOrUpdateConsumer(ctx, stream, cfg)
	if err != nil {
		return fmt.Errorf("failed to create consumer %s: %w", subscriberCfg.Consumer, err)
	}
	g, gCtx := errgroup.WithContext(ctx)
	for i := 0; i < subscriberCfg.Workers; i++ {
		wLogger := logger.With("worker", i)
		g.Go(func() error {
			return runWorker(gCtx, consumer, subscriberCfg.Timeout, subscriberCfg.Interval, wLogger)
		})
	}
	return g.Wait()
}

// runWorker fetches messages one at a time and hands them to handleMessage.
func runWorker(ctx context.Context, consumer jetstream.Consumer, timeout time.Duration, interval time.Duration, logger *slog.Logger) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			batch, err := consumer.Fetch(1, jetstream.FetchMaxWait(timeout))
			if err != nil {
				if errors.Is(err, nats.ErrTimeout) {
					continue
				}
				logger.Error("failed to fetch messages", "error", err)
				time.Sleep(interval)
				continue
			}
			for msg := range batch.Messages() {
				handleMessage(ctx, msg, logger)
			}
			if err := batch.Error(); err != nil && !errors.Is(err, nats.ErrTimeout) {
				logger.Warn("fetch finished with error", "error", err)
			}
		}
	}
}

// handleMessage decodes one event, logs the resulting notification and acknowledges it.
// Undecodable payloads are negatively acknowledged; events on unknown subjects are dropped.
func handleMessage(ctx context.Context, msg ackableMsg, logger *slog.Logger) {
	if msg == nil {
		logger.Error("received nil message")
		return
	}
	n, err := decode(msg.Subject(), msg.Data())
	if err != nil {
		if errors.Is(err, errUnknownSubject) {
			logger.Warn("dropping event", "subject", msg.Subject())
			if err := msg.Ack(); err != nil {
				logger.Error("failed to ack message", "error", err)
			}
			return
		}
		logger.Error("failed to unmarshal message", "error", err, "subject", msg.Subject())
		if err := msg.Nak(); err != nil {
			logger.Error("failed to nack message", "error", err)
		}
		return
	}

	ctx = otel.GetTextMapPropagator().Extract(ctx, n.carrier)
	ctx, span := otel.Tracer(tracerName).Start(ctx, "notify "+msg.Subject(),
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(attribute.Int("order.id", n.OrderID)))
	defer span.End()

	logger.InfoContext(ctx, "notification sent",
		slog.String("subject", msg.Subject()),
		slog.Int("order_id", n.OrderID),
		slog.String("recipient", n.Recipient),
		slog.String("message", n.Message))

	if err := msg.Ack(); err != nil {
		logger.ErrorContext(ctx, "failed to ack message", "error", err)
	}
}

// decode maps an event payload to the notification it produces.
func decode(subject string, data []byte) (Notification, error) {
	switch subject {
	case messaging.OrdersPlacedSubject:
		var e events.OrderPlaced
		if err := json.Unmarshal(data, &e); err != nil {
			return Notification{}, err
		}
		return Notification{
			Recipient: e.AccountID,
			Message:   fmt.Sprintf("order %d placed: %d line(s), %s coins", e.OrderID, len(e.Lines), e.Total.String()),
			OrderID:   e.OrderID,
			carrier:   e.Carrier,
		}, nil
	case messaging.OrdersDeclinedSubject:
		var e events.OrderDeclined
		if err := json.Unmarshal(data, &e); err != nil {
			return Notification{}, err
		}
		return Notification{
			Recipient: e.AccountID,
			Message:   fmt.Sprintf("shop %s declined a line of order %d, %s coins refunded", e.ShopID, e.OrderID, e.Refunded.String()),
			OrderID:   e.OrderID,
			carrier:   e.Carrier,
		}, nil
	case messaging.OrdersDeliveredSubject:
		var e events.OrderDelivered
		if err := json.Unmarshal(data, &e); err != nil {
			return Notification{}, err
		}
		return Notification{
			Recipient: e.AccountID,
			Message:   fmt.Sprintf("shop %s delivered a line of order %d", e.ShopID, e.OrderID),
			OrderID:   e.OrderID,
			carrier:   e.Carrier,
		}, nil
	default:
		return Notification{}, errUnknownSubject
	}
}
