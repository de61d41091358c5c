package store

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	marketerrors "github.com/abgdnv/coinmarket/internal/errors"
	"github.com/abgdnv/coinmarket/internal/store/db"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedMemoryStore(t *testing.T) *MemoryStore {
	t.Helper()
	ctx := context.Background()
	m := NewMemoryStore()
	_, err := m.CreateAccount(ctx, &db.CreateAccountParams{ID: "u-100", DisplayName: "Ann", Coins: decimal.NewFromInt(100)})
	require.NoError(t, err)
	_, err = m.CreateShop(ctx, &db.CreateShopParams{Name: "Acme", OwnerName: "Bob", Collection: "acme"})
	require.NoError(t, err)
	_, err = m.CreateProduct(ctx, &db.CreateProductParams{Collection: "acme", Name: "Pen", Price: decimal.NewFromInt(5), Quantity: 10})
	require.NoError(t, err)
	return m
}

func TestMemoryStore_Accounts(t *testing.T) {
	ctx := context.Background()
	m := seedMemoryStore(t)

	_, err := m.CreateAccount(ctx, &db.CreateAccountParams{ID: "u-100", DisplayName: "dup"})
	assert.ErrorIs(t, err, marketerrors.ErrAccountExists)

	_, err = m.GetAccount(ctx, "missing")
	assert.ErrorIs(t, err, marketerrors.ErrAccountNotFound)

	coins, err := m.DebitCoins(ctx, "u-100", decimal.RequireFromString("15.5"))
	require.NoError(t, err)
	assert.True(t, coins.Equal(decimal.RequireFromString("84.5")))

	_, err = m.DebitCoins(ctx, "u-100", decimal.NewFromInt(85))
	assert.ErrorIs(t, err, marketerrors.ErrInsufficientFunds)

	_, err = m.DebitCoins(ctx, "missing", decimal.NewFromInt(1))
	assert.ErrorIs(t, err, marketerrors.ErrAccountNotFound)

	coins, err = m.CreditCoins(ctx, "u-100", decimal.RequireFromString("0.5"))
	require.NoError(t, err)
	assert.True(t, coins.Equal(decimal.NewFromInt(85)))
}

func TestMemoryStore_ShopsAndProducts(t *testing.T) {
	ctx := context.Background()
	m := seedMemoryStore(t)

	_, err := m.CreateShop(ctx, &db.CreateShopParams{Name: "Acme", Collection: "acme"})
	assert.ErrorIs(t, err, marketerrors.ErrShopExists)
	_, err = m.CreateShop(ctx, &db.CreateShopParams{Name: "ACME", Collection: "acme"})
	assert.ErrorIs(t, err, marketerrors.ErrShopExists, "collection clash")

	_, err = m.CreateProduct(ctx, &db.CreateProductParams{Collection: "acme", Name: "Pen"})
	assert.ErrorIs(t, err, marketerrors.ErrProductExists)

	_, err = m.GetProduct(ctx, "acme", "Ink")
	assert.ErrorIs(t, err, marketerrors.ErrProductNotFound)
	_, err = m.GetProduct(ctx, "nowhere", "Pen")
	assert.ErrorIs(t, err, marketerrors.ErrProductNotFound)

	updated, err := m.UpdateProduct(ctx, &db.UpdateProductParams{Collection: "acme", Name: "Pen", Price: decimal.NewFromInt(6), Quantity: 3})
	require.NoError(t, err)
	assert.Equal(t, int32(3), updated.Quantity)

	left, err := m.DecrementStock(ctx, "acme", "Pen", 3)
	require.NoError(t, err)
	assert.Equal(t, int32(0), left)

	_, err = m.DecrementStock(ctx, "acme", "Pen", 1)
	assert.ErrorIs(t, err, marketerrors.ErrInsufficientStock)

	restored, err := m.IncrementStock(ctx, "acme", "Pen", 2)
	require.NoError(t, err)
	assert.Equal(t, int32(2), restored)
}

func TestMemoryStore_StockDeltaMustBePositive(t *testing.T) {
	ctx := context.Background()
	m := seedMemoryStore(t)

	for _, n := range []int32{0, -1, -2147483648} {
		_, err := m.DecrementStock(ctx, "acme", "Pen", n)
		assert.ErrorIs(t, err, marketerrors.ErrValidation, "decrement by %d", n)
		_, err = m.IncrementStock(ctx, "acme", "Pen", n)
		assert.ErrorIs(t, err, marketerrors.ErrValidation, "increment by %d", n)
	}

	product, err := m.GetProduct(ctx, "acme", "Pen")
	require.NoError(t, err)
	assert.Equal(t, int32(10), product.Quantity)
}

func newLine(orderID int32, createdAt time.Time) db.CreateOrderLineParams {
	return db.CreateOrderLineParams{
		ID:          uuid.New(),
		OrderID:     orderID,
		AccountID:   "u-100",
		ShopID:      "Acme",
		ProductName: "Pen",
		Quantity:    1,
		UnitPrice:   decimal.NewFromInt(5),
		LineTotal:   decimal.NewFromInt(5),
		Status:      db.StatusPending,
		CreatedAt:   createdAt,
	}
}

func TestMemoryStore_OrderLedger(t *testing.T) {
	ctx := context.Background()
	m := seedMemoryStore(t)
	t0 := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	lines, err := m.InsertOrderLines(ctx, []db.CreateOrderLineParams{
		newLine(1111, t0),
		newLine(1111, t0),
		newLine(2222, t0.Add(time.Hour)),
	})
	require.NoError(t, err)
	require.Len(t, lines, 3)

	t.Run("pending lists newest first", func(t *testing.T) {
		pending, err := m.ListPendingByShop(ctx, "Acme")
		require.NoError(t, err)
		require.Len(t, pending, 3)
		assert.Equal(t, int32(2222), pending[0].OrderID)
	})

	t.Run("reject is a one-shot transition", func(t *testing.T) {
		rejected, err := m.RejectPendingLine(ctx, lines[0].ID)
		require.NoError(t, err)
		assert.Equal(t, db.StatusRejected, rejected.Status)
		assert.False(t, rejected.Viewed)

		_, err = m.RejectPendingLine(ctx, lines[0].ID)
		assert.ErrorIs(t, err, marketerrors.ErrOrderLineNotPending)

		_, err = m.RejectPendingLine(ctx, uuid.New())
		assert.ErrorIs(t, err, marketerrors.ErrOrderLineNotFound)
	})

	t.Run("delivered lines cannot be rejected", func(t *testing.T) {
		delivered, err := m.DeliverLine(ctx, lines[2].ID)
		require.NoError(t, err)
		assert.True(t, delivered.Delivered)
		assert.Equal(t, db.StatusSuccess, delivered.Status)

		_, err = m.RejectPendingLine(ctx, lines[2].ID)
		assert.ErrorIs(t, err, marketerrors.ErrOrderLineNotPending)

		list, err := m.ListDeliveredByShop(ctx, "Acme")
		require.NoError(t, err)
		assert.Len(t, list, 1)
	})

	t.Run("deliver only moves pending lines", func(t *testing.T) {
		testCases := []struct {
			name    string
			id      uuid.UUID
			wantErr error
		}{
			{name: "rejected line", id: lines[0].ID, wantErr: marketerrors.ErrOrderLineNotPending},
			{name: "already delivered line", id: lines[2].ID, wantErr: marketerrors.ErrOrderLineNotPending},
			{name: "unknown line", id: uuid.New(), wantErr: marketerrors.ErrOrderLineNotFound},
		}
		for _, tc := range testCases {
			t.Run(tc.name, func(t *testing.T) {
				_, err := m.DeliverLine(ctx, tc.id)
				assert.ErrorIs(t, err, tc.wantErr)
			})
		}

		rejected, err := m.GetOrderLine(ctx, lines[0].ID)
		require.NoError(t, err)
		assert.Equal(t, db.StatusRejected, rejected.Status)
		assert.False(t, rejected.Delivered)

		list, err := m.ListDeliveredByShop(ctx, "Acme")
		require.NoError(t, err)
		assert.Len(t, list, 1)
	})

	t.Run("mark viewed touches every line of the order", func(t *testing.T) {
		n, err := m.MarkOrderViewed(ctx, 1111)
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)

		unseen, err := m.ListUnseenByAccount(ctx, "u-100")
		require.NoError(t, err)
		require.Len(t, unseen, 1)
		assert.Equal(t, int32(2222), unseen[0].OrderID)
	})

	t.Run("period queries are inclusive", func(t *testing.T) {
		byShop, err := m.ListByShopBetween(ctx, "Acme", t0, t0)
		require.NoError(t, err)
		assert.Len(t, byShop, 2)

		byAccount, err := m.ListDeliveredByAccountBetween(ctx, "u-100", t0, t0.Add(time.Hour))
		require.NoError(t, err)
		assert.Len(t, byAccount, 1)
	})

	t.Run("revenue sums every line", func(t *testing.T) {
		total, err := m.ShopRevenue(ctx, "Acme")
		require.NoError(t, err)
		assert.True(t, total.Equal(decimal.NewFromInt(15)))
	})
}

func TestMemoryStore_InsertIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	m := seedMemoryStore(t)
	bad := newLine(3333, time.Now())
	bad.AccountID = "ghost"

	_, err := m.InsertOrderLines(ctx, []db.CreateOrderLineParams{newLine(3333, time.Now()), bad})

	require.ErrorIs(t, err, marketerrors.ErrAccountNotFound)
	unseen, err := m.ListUnseenByAccount(ctx, "u-100")
	require.NoError(t, err)
	assert.Empty(t, unseen)
}

func TestMemoryStore_InsertRejectsDuplicateLineID(t *testing.T) {
	ctx := context.Background()
	m := seedMemoryStore(t)
	line := newLine(4444, time.Now())
	_, err := m.InsertOrderLines(ctx, []db.CreateOrderLineParams{line})
	require.NoError(t, err)

	_, err = m.InsertOrderLines(ctx, []db.CreateOrderLineParams{newLine(5555, time.Now()), line})

	require.ErrorIs(t, err, marketerrors.ErrConflict)
	unseen, err := m.ListUnseenByAccount(ctx, "u-100")
	require.NoError(t, err)
	assert.Len(t, unseen, 1)
}

func TestMemoryStore_ConcurrentDecrementNeverOversells(t *testing.T) {
	ctx := context.Background()
	m := seedMemoryStore(t)

	var wg sync.WaitGroup
	var sold atomic.Int32
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := m.DecrementStock(ctx, "acme", "Pen", 1); err == nil {
				sold.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(10), sold.Load())
	product, err := m.GetProduct(ctx, "acme", "Pen")
	require.NoError(t, err)
	assert.Equal(t, int32(0), product.Quantity)
}

func TestMemoryStore_ConcurrentDebitNeverOverdraws(t *testing.T) {
	ctx := context.Background()
	m := seedMemoryStore(t)

	var wg sync.WaitGroup
	var paid atomic.Int32
	for range 30 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := m.DebitCoins(ctx, "u-100", decimal.NewFromInt(7)); err == nil {
				paid.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(14), paid.Load())
	account, err := m.GetAccount(ctx, "u-100")
	require.NoError(t, err)
	assert.True(t, account.Coins.Equal(decimal.NewFromInt(2)))
}
