package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	marketerrors "github.com/abgdnv/coinmarket/internal/errors"
	"github.com/abgdnv/coinmarket/internal/store/db"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type PgStore struct {
	db *pgxpool.Pool
	q  *db.Queries
}

// NewPgStore creates a new instance of Store using a PostgreSQL connection pool.
func NewPgStore(dbp *pgxpool.Pool) *PgStore {
	return &PgStore{
		db: dbp,
		q:  db.New(dbp),
	}
}

// internalErr tags err as an internal store failure while keeping it inspectable.
func internalErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", marketerrors.ErrInternal, op, err)
}

func (p *PgStore) CreateAccount(ctx context.Context, params *db.CreateAccountParams) (*db.Account, error) {
	account, err := p.q.CreateAccount(ctx, *params)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, marketerrors.ErrAccountExists
		}
		return nil, internalErr("create account", err)
	}
	return &account, nil
}

func (p *PgStore) GetAccount(ctx context.Context, id string) (*db.Account, error) {
	account, err := p.q.GetAccount(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, marketerrors.ErrAccountNotFound
		}
		return nil, internalErr("get account", err)
	}
	return &account, nil
}

func (p *PgStore) DebitCoins(ctx context.Context, id string, amount decimal.Decimal) (decimal.Decimal, error) {
	coins, err := p.q.DebitAccount(ctx, db.DebitAccountParams{ID: id, Amount: amount})
	if err == nil {
		return coins, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, internalErr("debit account", err)
	}
	// The condition failed: either the account is gone or it cannot cover the amount.
	if _, err := p.GetAccount(ctx, id); err != nil {
		return decimal.Zero, err
	}
	return decimal.Zero, marketerrors.ErrInsufficientFunds
}

func (p *PgStore) CreditCoins(ctx context.Context, id string, amount decimal.Decimal) (decimal.Decimal, error) {
	coins, err := p.q.CreditAccount(ctx, db.CreditAccountParams{ID: id, Amount: amount})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, marketerrors.ErrAccountNotFound
		}
		return decimal.Zero, internalErr("credit account", err)
	}
	return coins, nil
}

func (p *PgStore) CreateShop(ctx context.Context, params *db.CreateShopParams) (*db.Shop, error) {
	shop, err := p.q.CreateShop(ctx, *params)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, marketerrors.ErrShopExists
		}
		return nil, internalErr("create shop", err)
	}
	return &shop, nil
}

func (p *PgStore) GetShop(ctx context.Context, name string) (*db.Shop, error) {
	shop, err := p.q.GetShop(ctx, name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, marketerrors.ErrShopNotFound
		}
		return nil, internalErr("get shop", err)
	}
	return &shop, nil
}

func (p *PgStore) CreateProduct(ctx context.Context, params *db.CreateProductParams) (*db.Product, error) {
	product, err := p.q.CreateProduct(ctx, *params)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, marketerrors.ErrProductExists
		}
		return nil, internalErr("create product", err)
	}
	return &product, nil
}

func (p *PgStore) GetProduct(ctx context.Context, collection, name string) (*db.Product, error) {
	product, err := p.q.GetProduct(ctx, db.GetProductParams{Collection: collection, Name: name})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, marketerrors.ErrProductNotFound
		}
		return nil, internalErr("get product", err)
	}
	return &product, nil
}

func (p *PgStore) UpdateProduct(ctx context.Context, params *db.UpdateProductParams) (*db.Product, error) {
	product, err := p.q.UpdateProduct(ctx, *params)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, marketerrors.ErrProductNotFound
		}
		return nil, internalErr("update product", err)
	}
	return &product, nil
}

func (p *PgStore) DecrementStock(ctx context.Context, collection, name string, n int32) (int32, error) {
	if err := checkStockDelta(n); err != nil {
		return 0, err
	}
	quantity, err := p.q.DecrementStock(ctx, db.StockParams{Collection: collection, Name: name, Quantity: n})
	if err == nil {
		return quantity, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, internalErr("decrement stock", err)
	}
	if _, err := p.GetProduct(ctx, collection, name); err != nil {
		return 0, err
	}
	return 0, marketerrors.ErrInsufficientStock
}

func (p *PgStore) IncrementStock(ctx context.Context, collection, name string, n int32) (int32, error) {
	if err := checkStockDelta(n); err != nil {
		return 0, err
	}
	quantity, err := p.q.IncrementStock(ctx, db.StockParams{Collection: collection, Name: name, Quantity: n})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, marketerrors.ErrProductNotFound
		}
		return 0, internalErr("increment stock", err)
	}
	return quantity, nil
}

func (p *PgStore) InsertOrderLines(ctx context.Context, lines []db.CreateOrderLineParams) ([]db.OrderLine, error) {
	var created []db.OrderLine

	txErr := p.withTransaction(ctx, func(qtx *db.Queries) error {
		created = make([]db.OrderLine, 0, len(lines))
		for _, line := range lines {
			orderLine, err := qtx.CreateOrderLine(ctx, line)
			if errors.Is(err, pgx.ErrNoRows) {
				return marketerrors.ErrConflict
			}
			if err != nil {
				return internalErr("create order line", err)
			}
			created = append(created, orderLine)
		}
		return nil
	})

	if txErr != nil {
		return nil, txErr
	}
	return created, nil
}

func (p *PgStore) GetOrderLine(ctx context.Context, id uuid.UUID) (*db.OrderLine, error) {
	line, err := p.q.GetOrderLine(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, marketerrors.ErrOrderLineNotFound
		}
		return nil, internalErr("get order line", err)
	}
	return &line, nil
}

func (p *PgStore) RejectPendingLine(ctx context.Context, id uuid.UUID) (*db.OrderLine, error) {
	line, err := p.q.RejectPendingOrderLine(ctx, id)
	if err == nil {
		return &line, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, internalErr("reject order line", err)
	}
	// Check if the line exists, or it has already left the pending state.
	if _, err := p.GetOrderLine(ctx, id); err != nil {
		return nil, err
	}
	return nil, marketerrors.ErrOrderLineNotPending
}

func (p *PgStore) DeliverLine(ctx context.Context, id uuid.UUID) (*db.OrderLine, error) {
	line, err := p.q.DeliverOrderLine(ctx, id)
	if err == nil {
		return &line, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, internalErr("deliver order line", err)
	}
	if _, err := p.GetOrderLine(ctx, id); err != nil {
		return nil, err
	}
	return nil, marketerrors.ErrOrderLineNotPending
}

func (p *PgStore) MarkOrderViewed(ctx context.Context, orderID int32) (int64, error) {
	n, err := p.q.MarkOrderViewed(ctx, orderID)
	if err != nil {
		return 0, internalErr("mark order viewed", err)
	}
	return n, nil
}

func (p *PgStore) ListPendingByShop(ctx context.Context, shopID string) ([]db.OrderLine, error) {
	lines, err := p.q.ListPendingOrderLinesByShop(ctx, shopID)
	if err != nil {
		return nil, internalErr("list pending order lines", err)
	}
	return lines, nil
}

func (p *PgStore) ListDeliveredByShop(ctx context.Context, shopID string) ([]db.OrderLine, error) {
	lines, err := p.q.ListDeliveredOrderLinesByShop(ctx, shopID)
	if err != nil {
		return nil, internalErr("list delivered order lines", err)
	}
	return lines, nil
}

func (p *PgStore) ListUnseenByAccount(ctx context.Context, accountID string) ([]db.OrderLine, error) {
	lines, err := p.q.ListUnseenOrderLinesByAccount(ctx, accountID)
	if err != nil {
		return nil, internalErr("list unseen order lines", err)
	}
	return lines, nil
}

func (p *PgStore) ListDeliveredByAccountBetween(ctx context.Context, accountID string, from, to time.Time) ([]db.OrderLine, error) {
	lines, err := p.q.ListDeliveredOrderLinesByAccountBetween(ctx, db.PeriodParams{Owner: accountID, From: from, To: to})
	if err != nil {
		return nil, internalErr("list account report lines", err)
	}
	return lines, nil
}

func (p *PgStore) ListByShopBetween(ctx context.Context, shopID string, from, to time.Time) ([]db.OrderLine, error) {
	lines, err := p.q.ListOrderLinesByShopBetween(ctx, db.PeriodParams{Owner: shopID, From: from, To: to})
	if err != nil {
		return nil, internalErr("list shop report lines", err)
	}
	return lines, nil
}

func (p *PgStore) ShopRevenue(ctx context.Context, shopID string) (decimal.Decimal, error) {
	total, err := p.q.SumLineTotalsByShop(ctx, shopID)
	if err != nil {
		return decimal.Zero, internalErr("sum shop revenue", err)
	}
	return total, nil
}

func (p *PgStore) withTransaction(ctx context.Context, fn func(qtx *db.Queries) error) error {
	tx, err := p.db.Begin(ctx)
	if err != nil {
		return marketerrors.ErrTransactionBegin
	}
	qtx := p.q.WithTx(tx)

	err = fn(qtx)
	if err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			return marketerrors.ErrTransactionRollback
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return marketerrors.ErrTransactionCommit
	}

	return nil
}
