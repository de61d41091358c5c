package subscriber

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/abgdnv/coinmarket/pkg/config"
	"github.com/abgdnv/coinmarket/pkg/messaging"
	"github.com/abgdnv/coinmarket/pkg/messaging/events"
	pnats "github.com/abgdnv/coinmarket/pkg/nats"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/nats"
	"golang.org/x/sync/errgroup"
)

const skipIntegrationTests = "MARKET_SKIP_INTEGRATION_TESTS"
const natsImg = "nats:2.11.6-alpine"

type SubscriberSuite struct {
	suite.Suite
	ctx           context.Context
	logger        *slog.Logger
	natsContainer *nats.NATSContainer
	js            jetstream.JetStream
	closeConn     func()
}

func (s *SubscriberSuite) SetupSuite() {
	s.ctx = context.Background()
	s.logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))

	var err error
	s.natsContainer, err = nats.Run(s.ctx, natsImg)
	require.NoError(s.T(), err, "Failed to run NATS container")

	natsURL, err := s.natsContainer.ConnectionString(s.ctx)
	require.NoError(s.T(), err)
	nc, err := pnats.NewClient(natsURL, 5*time.Second)
	require.NoError(s.T(), err, "Failed to connect to NATS")
	s.closeConn = nc.Close

	s.js, err = pnats.NewJetStreamContext(nc)
	require.NoError(s.T(), err, "Failed to get JetStream context")
}

func (s *SubscriberSuite) TearDownSuite() {
	s.closeConn()
	if err := testcontainers.TerminateContainer(s.natsContainer); err != nil {
		s.logger.Error("Failed to terminate NATS container", "error", err)
	}
}

func TestSubscriberIntegration(t *testing.T) {
	if os.Getenv(skipIntegrationTests) == "1" {
		t.Skip("Skipping integration tests based on " + skipIntegrationTests + " env var")
	}
	suite.Run(t, new(SubscriberSuite))
}

// TestConsumesPublishedEvents publishes through the production publisher and waits until every
// message, the broken one included, has been settled by the consumer.
func (s *SubscriberSuite) TestConsumesPublishedEvents() {
	// given
	streamName := "ORDERS_" + uuid.NewString()[:8]
	consumerName := "notifier_" + uuid.NewString()[:8]
	_, err := pnats.EnsureStream(s.ctx, s.js, streamName, messaging.OrdersSubjects)
	require.NoError(s.T(), err)

	testCtx, cancel := context.WithTimeout(s.ctx, 10*time.Second)
	g, gCtx := errgroup.WithContext(testCtx)
	s.T().Cleanup(func() {
		cancel()
		require.ErrorIs(s.T(), g.Wait(), context.Canceled)
	})

	cfg := config.SubscriberConfig{
		Subject:  messaging.OrdersSubjects,
		Consumer: consumerName,
		Timeout:  200 * time.Millisecond,
		Interval: 200 * time.Millisecond,
		Workers:  2,
	}
	g.Go(func() error {
		return Start(gCtx, s.js, streamName, cfg, s.logger)
	})

	// when
	publisher := pnats.NewPublisher(s.js)
	require.NoError(s.T(), publisher.Publish(s.ctx, events.OrderPlaced{
		OrderID: 1001, AccountID: "u-1", Total: decimal.NewFromInt(10), PlacedAt: time.Now(),
	}))
	require.NoError(s.T(), publisher.Publish(s.ctx, events.OrderDelivered{
		LineID: uuid.New(), OrderID: 1001, AccountID: "u-1", ShopID: "Acme", DeliveredAt: time.Now(),
	}))

	// then
	require.Eventually(s.T(), func() bool {
		consumer, err := s.js.Consumer(s.ctx, streamName, consumerName)
		if err != nil {
			return false
		}
		info, err := consumer.Info(s.ctx)
		if err != nil {
			return false
		}
		return info.NumPending == 0 && info.NumAckPending == 0 && info.AckFloor.Stream == 2
	}, 8*time.Second, 100*time.Millisecond, "events were not consumed in time")
}
