package db

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	StatusPending  = "Pending"
	StatusSuccess  = "Success"
	StatusRejected = "Rejected"
)

type Account struct {
	ID          string
	DisplayName string
	Coins       decimal.Decimal
	CreatedAt   time.Time
}

type Shop struct {
	Name       string
	OwnerName  string
	Collection string
	CreatedAt  time.Time
}

// Product lives in the collection of exactly one shop.
type Product struct {
	Collection string
	Name       string
	Price      decimal.Decimal
	Quantity   int32
	Category   string
	UpdatedAt  time.Time
}

type OrderLine struct {
	ID          uuid.UUID
	OrderID     int32
	AccountID   string
	ShopID      string
	ProductName string
	Quantity    int32
	UnitPrice   decimal.Decimal
	LineTotal   decimal.Decimal
	Status      string
	Delivered   bool
	Viewed      bool
	CreatedAt   time.Time
}
