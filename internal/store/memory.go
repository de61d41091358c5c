package store

import (
	"context"
	"slices"
	"sync"
	"time"

	marketerrors "github.com/abgdnv/coinmarket/internal/errors"
	"github.com/abgdnv/coinmarket/internal/store/db"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MemoryStore keeps every collection in process memory. One mutex guards all of them,
// so each method observes and mutates a consistent snapshot.
type MemoryStore struct {
	mu       sync.RWMutex
	accounts map[string]db.Account
	shops    map[string]db.Shop
	// collection -> product name -> product
	products map[string]map[string]db.Product
	lines    map[uuid.UUID]db.OrderLine
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts: make(map[string]db.Account),
		shops:    make(map[string]db.Shop),
		products: make(map[string]map[string]db.Product),
		lines:    make(map[uuid.UUID]db.OrderLine),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (m *MemoryStore) CreateAccount(_ context.Context, params *db.CreateAccountParams) (*db.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[params.ID]; ok {
		return nil, marketerrors.ErrAccountExists
	}
	account := db.Account{
		ID:          params.ID,
		DisplayName: params.DisplayName,
		Coins:       params.Coins,
		CreatedAt:   m.now(),
	}
	m.accounts[params.ID] = account
	return &account, nil
}

func (m *MemoryStore) GetAccount(_ context.Context, id string) (*db.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	account, ok := m.accounts[id]
	if !ok {
		return nil, marketerrors.ErrAccountNotFound
	}
	return &account, nil
}

func (m *MemoryStore) DebitCoins(_ context.Context, id string, amount decimal.Decimal) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	account, ok := m.accounts[id]
	if !ok {
		return decimal.Zero, marketerrors.ErrAccountNotFound
	}
	if account.Coins.LessThan(amount) {
		return decimal.Zero, marketerrors.ErrInsufficientFunds
	}
	account.Coins = account.Coins.Sub(amount)
	m.accounts[id] = account
	return account.Coins, nil
}

func (m *MemoryStore) CreditCoins(_ context.Context, id string, amount decimal.Decimal) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	account, ok := m.accounts[id]
	if !ok {
		return decimal.Zero, marketerrors.ErrAccountNotFound
	}
	account.Coins = account.Coins.Add(amount)
	m.accounts[id] = account
	return account.Coins, nil
}

func (m *MemoryStore) CreateShop(_ context.Context, params *db.CreateShopParams) (*db.Shop, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.shops[params.Name]; ok {
		return nil, marketerrors.ErrShopExists
	}
	if _, ok := m.products[params.Collection]; ok {
		return nil, marketerrors.ErrShopExists
	}
	shop := db.Shop{
		Name:       params.Name,
		OwnerName:  params.OwnerName,
		Collection: params.Collection,
		CreatedAt:  m.now(),
	}
	m.shops[params.Name] = shop
	m.products[params.Collection] = make(map[string]db.Product)
	return &shop, nil
}

func (m *MemoryStore) GetShop(_ context.Context, name string) (*db.Shop, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	shop, ok := m.shops[name]
	if !ok {
		return nil, marketerrors.ErrShopNotFound
	}
	return &shop, nil
}

func (m *MemoryStore) CreateProduct(_ context.Context, params *db.CreateProductParams) (*db.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	collection, ok := m.products[params.Collection]
	if !ok {
		return nil, marketerrors.ErrShopNotFound
	}
	if _, ok := collection[params.Name]; ok {
		return nil, marketerrors.ErrProductExists
	}
	product := db.Product{
		Collection: params.Collection,
		Name:       params.Name,
		Price:      params.Price,
		Quantity:   params.Quantity,
		Category:   params.Category,
		UpdatedAt:  m.now(),
	}
	collection[params.Name] = product
	return &product, nil
}

func (m *MemoryStore) GetProduct(_ context.Context, collection, name string) (*db.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	product, ok := m.products[collection][name]
	if !ok {
		return nil, marketerrors.ErrProductNotFound
	}
	return &product, nil
}

func (m *MemoryStore) UpdateProduct(_ context.Context, params *db.UpdateProductParams) (*db.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	product, ok := m.products[params.Collection][params.Name]
	if !ok {
		return nil, marketerrors.ErrProductNotFound
	}
	product.Price = params.Price
	product.Quantity = params.Quantity
	product.UpdatedAt = m.now()
	m.products[params.Collection][params.Name] = product
	return &product, nil
}

func (m *MemoryStore) DecrementStock(_ context.Context, collection, name string, n int32) (int32, error) {
	if err := checkStockDelta(n); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	product, ok := m.products[collection][name]
	if !ok {
		return 0, marketerrors.ErrProductNotFound
	}
	if product.Quantity < n {
		return 0, marketerrors.ErrInsufficientStock
	}
	product.Quantity -= n
	product.UpdatedAt = m.now()
	m.products[collection][name] = product
	return product.Quantity, nil
}

func (m *MemoryStore) IncrementStock(_ context.Context, collection, name string, n int32) (int32, error) {
	if err := checkStockDelta(n); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	product, ok := m.products[collection][name]
	if !ok {
		return 0, marketerrors.ErrProductNotFound
	}
	product.Quantity += n
	product.UpdatedAt = m.now()
	m.products[collection][name] = product
	return product.Quantity, nil
}

func (m *MemoryStore) InsertOrderLines(_ context.Context, lines []db.CreateOrderLineParams) ([]db.OrderLine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, line := range lines {
		if _, ok := m.lines[line.ID]; ok {
			return nil, marketerrors.ErrConflict
		}
		if _, ok := m.accounts[line.AccountID]; !ok {
			return nil, marketerrors.ErrAccountNotFound
		}
	}
	created := make([]db.OrderLine, 0, len(lines))
	for _, line := range lines {
		createdAt := line.CreatedAt
		if createdAt.IsZero() {
			createdAt = m.now()
		}
		orderLine := db.OrderLine{
			ID:          line.ID,
			OrderID:     line.OrderID,
			AccountID:   line.AccountID,
			ShopID:      line.ShopID,
			ProductName: line.ProductName,
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPrice,
			LineTotal:   line.LineTotal,
			Status:      line.Status,
			CreatedAt:   createdAt,
		}
		m.lines[line.ID] = orderLine
		created = append(created, orderLine)
	}
	return created, nil
}

func (m *MemoryStore) GetOrderLine(_ context.Context, id uuid.UUID) (*db.OrderLine, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	line, ok := m.lines[id]
	if !ok {
		return nil, marketerrors.ErrOrderLineNotFound
	}
	return &line, nil
}

func (m *MemoryStore) RejectPendingLine(_ context.Context, id uuid.UUID) (*db.OrderLine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	line, ok := m.lines[id]
	if !ok {
		return nil, marketerrors.ErrOrderLineNotFound
	}
	if line.Status != db.StatusPending || line.Delivered {
		return nil, marketerrors.ErrOrderLineNotPending
	}
	line.Status = db.StatusRejected
	line.Viewed = false
	m.lines[id] = line
	return &line, nil
}

func (m *MemoryStore) DeliverLine(_ context.Context, id uuid.UUID) (*db.OrderLine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	line, ok := m.lines[id]
	if !ok {
		return nil, marketerrors.ErrOrderLineNotFound
	}
	if line.Status != db.StatusPending || line.Delivered {
		return nil, marketerrors.ErrOrderLineNotPending
	}
	line.Status = db.StatusSuccess
	line.Delivered = true
	m.lines[id] = line
	return &line, nil
}

func (m *MemoryStore) MarkOrderViewed(_ context.Context, orderID int32) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, line := range m.lines {
		if line.OrderID == orderID {
			line.Viewed = true
			m.lines[id] = line
			n++
		}
	}
	return n, nil
}

// filter returns the matching lines newest first, ties broken by id like the SQL queries.
func (m *MemoryStore) filter(match func(db.OrderLine) bool) []db.OrderLine {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []db.OrderLine{}
	for _, line := range m.lines {
		if match(line) {
			out = append(out, line)
		}
	}
	slices.SortFunc(out, func(a, b db.OrderLine) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return slices.Compare(a.ID[:], b.ID[:])
	})
	return out
}

func (m *MemoryStore) ListPendingByShop(_ context.Context, shopID string) ([]db.OrderLine, error) {
	return m.filter(func(l db.OrderLine) bool {
		return l.ShopID == shopID && !l.Delivered && l.Status != db.StatusRejected
	}), nil
}

func (m *MemoryStore) ListDeliveredByShop(_ context.Context, shopID string) ([]db.OrderLine, error) {
	return m.filter(func(l db.OrderLine) bool {
		return l.ShopID == shopID && l.Delivered
	}), nil
}

func (m *MemoryStore) ListUnseenByAccount(_ context.Context, accountID string) ([]db.OrderLine, error) {
	return m.filter(func(l db.OrderLine) bool {
		return l.AccountID == accountID && !l.Viewed
	}), nil
}

func (m *MemoryStore) ListDeliveredByAccountBetween(_ context.Context, accountID string, from, to time.Time) ([]db.OrderLine, error) {
	return m.filter(func(l db.OrderLine) bool {
		return l.AccountID == accountID && l.Delivered && within(l.CreatedAt, from, to)
	}), nil
}

func (m *MemoryStore) ListByShopBetween(_ context.Context, shopID string, from, to time.Time) ([]db.OrderLine, error) {
	return m.filter(func(l db.OrderLine) bool {
		return l.ShopID == shopID && within(l.CreatedAt, from, to)
	}), nil
}

func (m *MemoryStore) ShopRevenue(_ context.Context, shopID string) (decimal.Decimal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	total := decimal.Zero
	for _, line := range m.lines {
		if line.ShopID == shopID {
			total = total.Add(line.LineTotal)
		}
	}
	return total, nil
}

// within reports whether t lies in the closed interval [from, to].
func within(t, from, to time.Time) bool {
	return !t.Before(from) && !t.After(to)
}
