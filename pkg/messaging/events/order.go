// Package events holds the order lifecycle events published by the marketplace.
package events

import (
	"encoding/json"
	"time"

	"github.com/abgdnv/coinmarket/pkg/messaging"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/propagation"
)

type PlacedLine struct {
	LineID      uuid.UUID       `json:"line_id"`
	ShopID      string          `json:"shop_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	LineTotal   decimal.Decimal `json:"line_total"`
}

// OrderPlaced is emitted once per purchase, single-item purchases included.
type OrderPlaced struct {
	Carrier   propagation.MapCarrier `json:"carrier,omitempty"`
	OrderID   int                    `json:"order_id"`
	AccountID string                 `json:"account_id"`
	Total     decimal.Decimal        `json:"total"`
	Lines     []PlacedLine           `json:"lines"`
	PlacedAt  time.Time              `json:"placed_at"`
}

func (o OrderPlaced) Subject() string { return messaging.OrdersPlacedSubject }

func (o OrderPlaced) Payload() ([]byte, error) { return json.Marshal(o) }

// OrderDeclined is emitted after a shop rejects a pending line and the buyer was refunded.
type OrderDeclined struct {
	Carrier    propagation.MapCarrier `json:"carrier,omitempty"`
	LineID     uuid.UUID              `json:"line_id"`
	OrderID    int                    `json:"order_id"`
	AccountID  string                 `json:"account_id"`
	ShopID     string                 `json:"shop_id"`
	Refunded   decimal.Decimal        `json:"refunded"`
	DeclinedAt time.Time              `json:"declined_at"`
}

func (o OrderDeclined) Subject() string { return messaging.OrdersDeclinedSubject }

func (o OrderDeclined) Payload() ([]byte, error) { return json.Marshal(o) }

type OrderDelivered struct {
	Carrier     propagation.MapCarrier `json:"carrier,omitempty"`
	LineID      uuid.UUID              `json:"line_id"`
	OrderID     int                    `json:"order_id"`
	AccountID   string                 `json:"account_id"`
	ShopID      string                 `json:"shop_id"`
	DeliveredAt time.Time              `json:"delivered_at"`
}

func (o OrderDelivered) Subject() string { return messaging.OrdersDeliveredSubject }

func (o OrderDelivered) Payload() ([]byte, error) { return json.Marshal(o) }
