// Package store provides the storage contracts of the marketplace and their implementations.
package store

import (
	"context"
	"fmt"
	"time"

	marketerrors "github.com/abgdnv/coinmarket/internal/errors"
	"github.com/abgdnv/coinmarket/internal/store/db"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AccountStore holds buyer accounts and their coin balances.
type AccountStore interface {
	// CreateAccount returns ErrAccountExists if the id is taken.
	CreateAccount(ctx context.Context, params *db.CreateAccountParams) (*db.Account, error)

	// GetAccount returns ErrAccountNotFound if no account exists with the given id.
	GetAccount(ctx context.Context, id string) (*db.Account, error)

	// DebitCoins atomically subtracts amount if the balance covers it and returns the new balance.
	// Returns ErrAccountNotFound or ErrInsufficientFunds.
	DebitCoins(ctx context.Context, id string, amount decimal.Decimal) (decimal.Decimal, error)

	// CreditCoins adds amount and returns the new balance.
	CreditCoins(ctx context.Context, id string, amount decimal.Decimal) (decimal.Decimal, error)
}

// ShopStore is the registry of shops and their product collections.
type ShopStore interface {
	// CreateShop returns ErrShopExists if the name or the collection is taken.
	CreateShop(ctx context.Context, params *db.CreateShopParams) (*db.Shop, error)

	// GetShop returns ErrShopNotFound if no shop exists with the given name.
	GetShop(ctx context.Context, name string) (*db.Shop, error)
}

// ProductStore holds the per-shop product collections.
type ProductStore interface {
	// CreateProduct returns ErrProductExists if the collection already holds a product with that name.
	CreateProduct(ctx context.Context, params *db.CreateProductParams) (*db.Product, error)

	// GetProduct returns ErrProductNotFound if the collection holds no such product.
	GetProduct(ctx context.Context, collection, name string) (*db.Product, error)

	// UpdateProduct overwrites price and quantity. Returns ErrProductNotFound.
	UpdateProduct(ctx context.Context, params *db.UpdateProductParams) (*db.Product, error)

	// DecrementStock atomically subtracts n if at least n units are available and returns the remaining quantity.
	// Returns ErrProductNotFound or ErrInsufficientStock, and ErrValidation when n is not positive.
	DecrementStock(ctx context.Context, collection, name string, n int32) (int32, error)

	// IncrementStock adds n units back and returns the new quantity.
	// Returns ErrProductNotFound, and ErrValidation when n is not positive.
	IncrementStock(ctx context.Context, collection, name string, n int32) (int32, error)
}

// OrderLedger is the shared ledger of order lines.
type OrderLedger interface {
	// InsertOrderLines appends all lines or none of them.
	InsertOrderLines(ctx context.Context, lines []db.CreateOrderLineParams) ([]db.OrderLine, error)

	// GetOrderLine returns ErrOrderLineNotFound if the line does not exist.
	GetOrderLine(ctx context.Context, id uuid.UUID) (*db.OrderLine, error)

	// RejectPendingLine moves a pending, undelivered line to Rejected and clears viewed, in one step.
	// Returns ErrOrderLineNotFound or ErrOrderLineNotPending.
	RejectPendingLine(ctx context.Context, id uuid.UUID) (*db.OrderLine, error)

	// DeliverLine moves a pending, undelivered line to Success and marks it delivered.
	// Returns ErrOrderLineNotFound or ErrOrderLineNotPending.
	DeliverLine(ctx context.Context, id uuid.UUID) (*db.OrderLine, error)

	// MarkOrderViewed flags every line of the order as viewed and returns how many lines matched.
	MarkOrderViewed(ctx context.Context, orderID int32) (int64, error)

	// The list methods return lines newest first.
	ListPendingByShop(ctx context.Context, shopID string) ([]db.OrderLine, error)
	ListDeliveredByShop(ctx context.Context, shopID string) ([]db.OrderLine, error)
	ListUnseenByAccount(ctx context.Context, accountID string) ([]db.OrderLine, error)
	ListDeliveredByAccountBetween(ctx context.Context, accountID string, from, to time.Time) ([]db.OrderLine, error)
	ListByShopBetween(ctx context.Context, shopID string, from, to time.Time) ([]db.OrderLine, error)

	// ShopRevenue sums line totals over every line of the shop.
	ShopRevenue(ctx context.Context, shopID string) (decimal.Decimal, error)
}

// Store groups every collection the services work with.
type Store interface {
	AccountStore
	ShopStore
	ProductStore
	OrderLedger
}

func checkStockDelta(n int32) error {
	if n <= 0 {
		return fmt.Errorf("stock delta %d: %w", n, marketerrors.ErrValidation)
	}
	return nil
}
