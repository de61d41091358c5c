// Package service provides the business logic of the marketplace: purchases, order handling and the catalog.
package service

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"slices"
	"time"

	marketerrors "github.com/abgdnv/coinmarket/internal/errors"
	"github.com/abgdnv/coinmarket/internal/store"
	"github.com/abgdnv/coinmarket/internal/store/db"
	"github.com/abgdnv/coinmarket/pkg/messaging"
	"github.com/abgdnv/coinmarket/pkg/messaging/events"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
)

// OrderService defines the purchase and order-handling operations.
type OrderService interface {
	// PlaceOrder validates every line, debits the buyer and decrements stock, then appends the order lines.
	// Returns ErrAccountNotFound, ErrProductNotFound, ErrInsufficientStock, ErrInsufficientFunds or ErrStockChanged.
	PlaceOrder(ctx context.Context, order PlaceOrderDto) (*PlaceOrderResultDto, error)

	// PlaceSingleItemOrder takes one unit of a product for the buyer without debiting coins.
	PlaceSingleItemOrder(ctx context.Context, order SingleItemOrderDto) (*OrderLineDto, error)

	// DeclineOrder rejects a pending line, refunds its total and restores the stock.
	// Returns ErrOrderLineNotFound or ErrOrderLineNotPending.
	DeclineOrder(ctx context.Context, lineID uuid.UUID) (*OrderLineDto, error)

	// DeliverOrder marks a line delivered. Returns ErrOrderLineNotFound.
	DeliverOrder(ctx context.Context, lineID uuid.UUID) (*OrderLineDto, error)

	ListPendingOrders(ctx context.Context, shopID string) ([]OrderGroupDto, error)
	ListDeliveredOrders(ctx context.Context, shopID string) ([]OrderLineDto, error)
	ListUnseenOrdersForAccount(ctx context.Context, accountID string) ([]UnseenOrderDto, error)

	// MarkOrderViewed is idempotent; unknown order ids are not an error.
	MarkOrderViewed(ctx context.Context, orderID int32) error

	// AccountMonthlyReport lists the buyer's delivered lines created in the month.
	AccountMonthlyReport(ctx context.Context, accountID string, month, year int) ([]OrderLineDto, error)

	// ShopMonthlyReport lists every line of the shop created in the month.
	ShopMonthlyReport(ctx context.Context, shopID string, month, year int) ([]OrderLineDto, error)

	ShopRevenue(ctx context.Context, shopID string) (*RevenueDto, error)
}

// OrderSvc implements OrderService.
type OrderSvc struct {
	store     store.Store
	publisher messaging.Publisher
	validate  *validator.Validate
	logger    *slog.Logger

	placedCounter    metric.Int64Counter
	declinedCounter  metric.Int64Counter
	deliveredCounter metric.Int64Counter

	now     func() time.Time
	orderID func() int32
}

// Option customises an OrderSvc.
type Option func(*OrderSvc)

// WithClock replaces the wall clock used to stamp order lines.
func WithClock(now func() time.Time) Option {
	return func(s *OrderSvc) { s.now = now }
}

// WithOrderIDs replaces the order id generator.
func WithOrderIDs(next func() int32) Option {
	return func(s *OrderSvc) { s.orderID = next }
}

// NewOrderService creates the order service on top of st, publishing lifecycle events through publisher.
func NewOrderService(st store.Store, publisher messaging.Publisher, logger *slog.Logger, opts ...Option) *OrderSvc {
	meter := otel.Meter("coinmarket/orders")
	s := &OrderSvc{
		store:            st,
		publisher:        publisher,
		validate:         NewValidator(),
		logger:           logger.With("component", "order-service"),
		placedCounter:    mustCounter(meter, "orders_placed", "Total number of placed orders"),
		declinedCounter:  mustCounter(meter, "orders_declined", "Total number of declined order lines"),
		deliveredCounter: mustCounter(meter, "orders_delivered", "Total number of delivered order lines"),
		now:              func() time.Time { return time.Now().UTC() },
		orderID:          randomOrderID,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func mustCounter(meter metric.Meter, name, description string) metric.Int64Counter {
	c, err := meter.Int64Counter(name, metric.WithDescription(description))
	if err != nil {
		panic(fmt.Sprintf("failed to create %s counter: %v", name, err))
	}
	return c
}

// randomOrderID draws a 4-digit order id. Ids are not checked for uniqueness, so two orders may share one.
func randomOrderID() int32 {
	return 1000 + rand.Int32N(9000)
}

// stockKey identifies one product inside one shop collection.
type stockKey struct {
	shopID     string
	collection string
	product    string
}

func (s *OrderSvc) PlaceOrder(ctx context.Context, order PlaceOrderDto) (*PlaceOrderResultDto, error) {
	if err := validateStruct(s.validate, order); err != nil {
		return nil, err
	}

	account, err := s.store.GetAccount(ctx, order.AccountID)
	if err != nil {
		return nil, err
	}

	// Resolve every line and sum the requested quantity per product before touching anything.
	// Sums are int64 so repeated lines cannot wrap past the int32 stock range.
	collections := make(map[string]string)
	requested := make(map[stockKey]int64)
	keys := make([]stockKey, 0, len(order.Lines))
	total := decimal.Zero
	for _, line := range order.Lines {
		collection, ok := collections[line.ShopID]
		if !ok {
			shop, err := s.store.GetShop(ctx, line.ShopID)
			if err != nil {
				if errors.Is(err, marketerrors.ErrShopNotFound) {
					return nil, fmt.Errorf("shop %s: %w", line.ShopID, marketerrors.ErrProductNotFound)
				}
				return nil, err
			}
			collection = shop.Collection
			collections[line.ShopID] = collection
		}
		key := stockKey{shopID: line.ShopID, collection: collection, product: line.ProductName}
		if _, seen := requested[key]; !seen {
			keys = append(keys, key)
		}
		requested[key] += int64(line.Quantity)
		total = total.Add(line.Price.Mul(decimal.NewFromInt32(line.Quantity)))
	}
	for _, key := range keys {
		product, err := s.store.GetProduct(ctx, key.collection, key.product)
		if err != nil {
			return nil, fmt.Errorf("product %s in shop %s: %w", key.product, key.shopID, err)
		}
		if int64(product.Quantity) < requested[key] {
			s.logger.WarnContext(ctx, "Insufficient stock", "shop", key.shopID, "product", key.product,
				"available", product.Quantity, "requested", requested[key])
			return nil, fmt.Errorf("product %s in shop %s. Available: %d, Requested: %d: %w",
				key.product, key.shopID, product.Quantity, requested[key], marketerrors.ErrInsufficientStock)
		}
	}
	if account.Coins.LessThan(total) {
		return nil, fmt.Errorf("balance %s, total %s: %w", account.Coins, total, marketerrors.ErrInsufficientFunds)
	}

	balance, err := s.store.DebitCoins(ctx, account.ID, total)
	if err != nil {
		return nil, err
	}

	// Decrement in a fixed key order.
	slices.SortFunc(keys, func(a, b stockKey) int {
		return cmp.Or(cmp.Compare(a.collection, b.collection), cmp.Compare(a.product, b.product))
	})
	decremented := make([]stockKey, 0, len(keys))
	for _, key := range keys {
		if _, err := s.store.DecrementStock(ctx, key.collection, key.product, int32(requested[key])); err != nil {
			s.compensate(ctx, account.ID, total, decremented, requested)
			if errors.Is(err, marketerrors.ErrInsufficientStock) {
				return nil, fmt.Errorf("product %s in shop %s: %w", key.product, key.shopID, marketerrors.ErrStockChanged)
			}
			return nil, err
		}
		decremented = append(decremented, key)
	}

	orderID := s.orderID()
	createdAt := s.now()
	params := make([]db.CreateOrderLineParams, 0, len(order.Lines))
	for _, line := range order.Lines {
		params = append(params, db.CreateOrderLineParams{
			ID:          uuid.New(),
			OrderID:     orderID,
			AccountID:   account.ID,
			ShopID:      line.ShopID,
			ProductName: line.ProductName,
			Quantity:    line.Quantity,
			UnitPrice:   line.Price,
			LineTotal:   line.Price.Mul(decimal.NewFromInt32(line.Quantity)),
			Status:      db.StatusPending,
			CreatedAt:   createdAt,
		})
	}
	lines, err := s.store.InsertOrderLines(ctx, params)
	if err != nil {
		s.compensate(ctx, account.ID, total, decremented, requested)
		return nil, err
	}

	s.placedCounter.Add(ctx, 1)
	s.publishPlaced(ctx, orderID, account.ID, total, lines, createdAt)
	s.logger.InfoContext(ctx, "Order placed", "order_id", orderID, "account_id", account.ID, "total", total.String())

	return &PlaceOrderResultDto{
		OrderID: orderID,
		Balance: balance,
		Total:   total,
		Lines:   toOrderLineDtos(lines),
	}, nil
}

// compensate undoes the debit and the stock decrements of a purchase that could not complete.
// Failures are logged; the caller gets the error that triggered the rollback.
func (s *OrderSvc) compensate(ctx context.Context, accountID string, amount decimal.Decimal, decremented []stockKey, requested map[stockKey]int64) {
	for _, key := range decremented {
		if _, err := s.store.IncrementStock(ctx, key.collection, key.product, int32(requested[key])); err != nil {
			s.logger.ErrorContext(ctx, "Failed to restore stock", "shop", key.shopID, "product", key.product,
				"quantity", requested[key], "error", err)
		}
	}
	if _, err := s.store.CreditCoins(ctx, accountID, amount); err != nil {
		s.logger.ErrorContext(ctx, "Failed to refund purchase", "account_id", accountID, "amount", amount.String(), "error", err)
	}
}

func (s *OrderSvc) PlaceSingleItemOrder(ctx context.Context, order SingleItemOrderDto) (*OrderLineDto, error) {
	if err := validateStruct(s.validate, order); err != nil {
		return nil, err
	}
	account, err := s.store.GetAccount(ctx, order.AccountID)
	if err != nil {
		return nil, err
	}
	shop, err := s.store.GetShop(ctx, order.ShopID)
	if err != nil {
		if errors.Is(err, marketerrors.ErrShopNotFound) {
			return nil, fmt.Errorf("shop %s: %w", order.ShopID, marketerrors.ErrProductNotFound)
		}
		return nil, err
	}
	product, err := s.store.GetProduct(ctx, shop.Collection, order.ProductName)
	if err != nil {
		return nil, err
	}
	if product.Quantity < 1 {
		return nil, fmt.Errorf("product %s in shop %s: %w", product.Name, shop.Name, marketerrors.ErrInsufficientStock)
	}
	if _, err := s.store.DecrementStock(ctx, shop.Collection, product.Name, 1); err != nil {
		if errors.Is(err, marketerrors.ErrInsufficientStock) {
			return nil, fmt.Errorf("product %s in shop %s: %w", product.Name, shop.Name, marketerrors.ErrStockChanged)
		}
		return nil, err
	}

	orderID := s.orderID()
	createdAt := s.now()
	lines, err := s.store.InsertOrderLines(ctx, []db.CreateOrderLineParams{{
		ID:          uuid.New(),
		OrderID:     orderID,
		AccountID:   account.ID,
		ShopID:      shop.Name,
		ProductName: product.Name,
		Quantity:    1,
		UnitPrice:   product.Price,
		LineTotal:   product.Price,
		Status:      db.StatusPending,
		CreatedAt:   createdAt,
	}})
	if err != nil {
		if _, restoreErr := s.store.IncrementStock(ctx, shop.Collection, product.Name, 1); restoreErr != nil {
			s.logger.ErrorContext(ctx, "Failed to restore stock", "shop", shop.Name, "product", product.Name, "error", restoreErr)
		}
		return nil, err
	}

	s.placedCounter.Add(ctx, 1)
	s.publishPlaced(ctx, orderID, account.ID, product.Price, lines, createdAt)

	dto := toOrderLineDto(lines[0])
	return &dto, nil
}

func (s *OrderSvc) DeclineOrder(ctx context.Context, lineID uuid.UUID) (*OrderLineDto, error) {
	line, err := s.store.RejectPendingLine(ctx, lineID)
	if err != nil {
		return nil, err
	}

	// The transition above happens once per line, so the refund and the restock below do too.
	if _, err := s.store.CreditCoins(ctx, line.AccountID, line.LineTotal); err != nil {
		s.logger.ErrorContext(ctx, "Failed to refund declined line", "line_id", lineID, "error", err)
		return nil, err
	}
	shop, err := s.store.GetShop(ctx, line.ShopID)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to resolve shop of declined line", "line_id", lineID, "error", err)
		return nil, err
	}
	if _, err := s.store.IncrementStock(ctx, shop.Collection, line.ProductName, line.Quantity); err != nil {
		s.logger.ErrorContext(ctx, "Failed to restore stock of declined line", "line_id", lineID, "error", err)
		return nil, err
	}

	s.declinedCounter.Add(ctx, 1)
	s.publish(ctx, events.OrderDeclined{
		Carrier:    carrierFrom(ctx),
		LineID:     line.ID,
		OrderID:    int(line.OrderID),
		AccountID:  line.AccountID,
		ShopID:     line.ShopID,
		Refunded:   line.LineTotal,
		DeclinedAt: s.now(),
	})

	dto := toOrderLineDto(*line)
	return &dto, nil
}

func (s *OrderSvc) DeliverOrder(ctx context.Context, lineID uuid.UUID) (*OrderLineDto, error) {
	line, err := s.store.DeliverLine(ctx, lineID)
	if err != nil {
		return nil, err
	}

	s.deliveredCounter.Add(ctx, 1)
	s.publish(ctx, events.OrderDelivered{
		Carrier:     carrierFrom(ctx),
		LineID:      line.ID,
		OrderID:     int(line.OrderID),
		AccountID:   line.AccountID,
		ShopID:      line.ShopID,
		DeliveredAt: s.now(),
	})

	dto := toOrderLineDto(*line)
	return &dto, nil
}

func (s *OrderSvc) ListPendingOrders(ctx context.Context, shopID string) ([]OrderGroupDto, error) {
	lines, err := s.store.ListPendingByShop(ctx, shopID)
	if err != nil {
		return nil, err
	}
	return groupByOrder(lines), nil
}

func (s *OrderSvc) ListDeliveredOrders(ctx context.Context, shopID string) ([]OrderLineDto, error) {
	lines, err := s.store.ListDeliveredByShop(ctx, shopID)
	if err != nil {
		return nil, err
	}
	return toOrderLineDtos(lines), nil
}

func (s *OrderSvc) ListUnseenOrdersForAccount(ctx context.Context, accountID string) ([]UnseenOrderDto, error) {
	lines, err := s.store.ListUnseenByAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return groupUnseen(lines), nil
}

func (s *OrderSvc) MarkOrderViewed(ctx context.Context, orderID int32) error {
	n, err := s.store.MarkOrderViewed(ctx, orderID)
	if err != nil {
		return err
	}
	s.logger.DebugContext(ctx, "Order marked viewed", "order_id", orderID, "lines", n)
	return nil
}

func (s *OrderSvc) AccountMonthlyReport(ctx context.Context, accountID string, month, year int) ([]OrderLineDto, error) {
	from, to, err := reportRange(month, year)
	if err != nil {
		return nil, err
	}
	lines, err := s.store.ListDeliveredByAccountBetween(ctx, accountID, from, to)
	if err != nil {
		return nil, err
	}
	return toOrderLineDtos(lines), nil
}

func (s *OrderSvc) ShopMonthlyReport(ctx context.Context, shopID string, month, year int) ([]OrderLineDto, error) {
	from, to, err := reportRange(month, year)
	if err != nil {
		return nil, err
	}
	lines, err := s.store.ListByShopBetween(ctx, shopID, from, to)
	if err != nil {
		return nil, err
	}
	return toOrderLineDtos(lines), nil
}

func (s *OrderSvc) ShopRevenue(ctx context.Context, shopID string) (*RevenueDto, error) {
	total, err := s.store.ShopRevenue(ctx, shopID)
	if err != nil {
		return nil, err
	}
	return &RevenueDto{ShopID: shopID, Total: total}, nil
}

func (s *OrderSvc) publishPlaced(ctx context.Context, orderID int32, accountID string, total decimal.Decimal, lines []db.OrderLine, at time.Time) {
	placed := make([]events.PlacedLine, 0, len(lines))
	for _, l := range lines {
		placed = append(placed, events.PlacedLine{
			LineID:      l.ID,
			ShopID:      l.ShopID,
			ProductName: l.ProductName,
			Quantity:    int(l.Quantity),
			LineTotal:   l.LineTotal,
		})
	}
	s.publish(ctx, events.OrderPlaced{
		Carrier:   carrierFrom(ctx),
		OrderID:   int(orderID),
		AccountID: accountID,
		Total:     total,
		Lines:     placed,
		PlacedAt:  at,
	})
}

// publish sends event on a best effort basis. The order outcome never depends on it.
func (s *OrderSvc) publish(ctx context.Context, event messaging.Event) {
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish event", "subject", event.Subject(), "error", err)
	}
}

// carrierFrom captures the trace context so consumers can continue the trace.
func carrierFrom(ctx context.Context) propagation.MapCarrier {
	carrier := make(propagation.MapCarrier)
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	return carrier
}
