package service

import (
	"time"

	"github.com/abgdnv/coinmarket/internal/store/db"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CartLineDto is one entry of a purchase. Price is the unit price the buyer saw.
type CartLineDto struct {
	ShopID      string          `json:"shop_id" validate:"required"`
	ProductName string          `json:"product_name" validate:"required"`
	Quantity    int32           `json:"quantity" validate:"required,min=1"`
	Price       decimal.Decimal `json:"price" validate:"gte=0"`
}

// PlaceOrderDto represents the data transfer object for a multi-line purchase.
type PlaceOrderDto struct {
	AccountID string        `json:"account_id" validate:"required"`
	Lines     []CartLineDto `json:"lines" validate:"required,min=1,dive"`
}

type SingleItemOrderDto struct {
	AccountID   string `json:"account_id" validate:"required"`
	ShopID      string `json:"shop_id" validate:"required"`
	ProductName string `json:"product_name" validate:"required"`
}

type OrderLineDto struct {
	ID          uuid.UUID       `json:"id"`
	OrderID     int32           `json:"order_id"`
	AccountID   string          `json:"account_id"`
	ShopID      string          `json:"shop_id"`
	ProductName string          `json:"product_name"`
	Quantity    int32           `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	LineTotal   decimal.Decimal `json:"line_total"`
	Status      string          `json:"status"`
	Delivered   bool            `json:"delivered"`
	Viewed      bool            `json:"viewed"`
	CreatedAt   string          `json:"created_at"`
}

// PlaceOrderResultDto is returned by a successful purchase.
type PlaceOrderResultDto struct {
	OrderID int32           `json:"order_id"`
	Balance decimal.Decimal `json:"balance"`
	Total   decimal.Decimal `json:"total"`
	Lines   []OrderLineDto  `json:"lines"`
}

// OrderGroupDto holds the lines of one order as seen by a shop.
type OrderGroupDto struct {
	OrderID   int32          `json:"order_id"`
	CreatedAt string         `json:"created_at"`
	Lines     []OrderLineDto `json:"lines"`
}

type UnseenProductDto struct {
	LineID      uuid.UUID       `json:"line_id"`
	ProductName string          `json:"product_name"`
	Quantity    int32           `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	LineTotal   decimal.Decimal `json:"line_total"`
	Status      string          `json:"status"`
}

// UnseenOrderDto is one order the buyer has not looked at yet. Status, ShopID and
// TotalAmount come from the first line seen for the order.
type UnseenOrderDto struct {
	OrderID     int32              `json:"order_id"`
	Status      string             `json:"status"`
	ShopID      string             `json:"shop_id"`
	TotalAmount decimal.Decimal    `json:"total_amount"`
	CreatedAt   string             `json:"created_at"`
	Products    []UnseenProductDto `json:"products"`
}

type RevenueDto struct {
	ShopID string          `json:"shop_id"`
	Total  decimal.Decimal `json:"total"`
}

type AccountCreateDto struct {
	ID          string `json:"id" validate:"required,max=64"`
	DisplayName string `json:"display_name" validate:"required,max=128"`
}

type AccountDto struct {
	ID          string          `json:"id"`
	DisplayName string          `json:"display_name"`
	Coins       decimal.Decimal `json:"coins"`
	CreatedAt   string          `json:"created_at"`
}

type CoinsDto struct {
	Amount decimal.Decimal `json:"amount" validate:"gt=0"`
}

type ShopCreateDto struct {
	Name      string `json:"name" validate:"required,max=63"`
	OwnerName string `json:"owner_name" validate:"required,max=128"`
}

type ShopDto struct {
	Name       string `json:"name"`
	OwnerName  string `json:"owner_name"`
	Collection string `json:"collection"`
	CreatedAt  string `json:"created_at"`
}

type ProductCreateDto struct {
	Name     string          `json:"name" validate:"required,max=255"`
	Price    decimal.Decimal `json:"price" validate:"gte=0"`
	Quantity int32           `json:"quantity" validate:"gte=0"`
	Category string          `json:"category" validate:"max=64"`
}

type ProductUpdateDto struct {
	Price    decimal.Decimal `json:"price" validate:"gte=0"`
	Quantity int32           `json:"quantity" validate:"gte=0"`
}

type ProductDto struct {
	ShopID   string          `json:"shop_id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Quantity int32           `json:"quantity"`
	Category string          `json:"category"`
}

func toOrderLineDto(line db.OrderLine) OrderLineDto {
	return OrderLineDto{
		ID:          line.ID,
		OrderID:     line.OrderID,
		AccountID:   line.AccountID,
		ShopID:      line.ShopID,
		ProductName: line.ProductName,
		Quantity:    line.Quantity,
		UnitPrice:   line.UnitPrice,
		LineTotal:   line.LineTotal,
		Status:      line.Status,
		Delivered:   line.Delivered,
		Viewed:      line.Viewed,
		CreatedAt:   line.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func toOrderLineDtos(lines []db.OrderLine) []OrderLineDto {
	out := make([]OrderLineDto, 0, len(lines))
	for _, line := range lines {
		out = append(out, toOrderLineDto(line))
	}
	return out
}

func toAccountDto(account *db.Account) *AccountDto {
	return &AccountDto{
		ID:          account.ID,
		DisplayName: account.DisplayName,
		Coins:       account.Coins,
		CreatedAt:   account.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func toShopDto(shop *db.Shop) *ShopDto {
	return &ShopDto{
		Name:       shop.Name,
		OwnerName:  shop.OwnerName,
		Collection: shop.Collection,
		CreatedAt:  shop.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func toProductDto(shopID string, product *db.Product) *ProductDto {
	return &ProductDto{
		ShopID:   shopID,
		Name:     product.Name,
		Price:    product.Price,
		Quantity: product.Quantity,
		Category: product.Category,
	}
}
