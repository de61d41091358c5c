package db

import (
	"context"

	"github.com/shopspring/decimal"
)

const productColumns = `collection, name, price, quantity, category, updated_at`

func scanProduct(row interface{ Scan(...any) error }) (Product, error) {
	var i Product
	err := row.Scan(&i.Collection, &i.Name, &i.Price, &i.Quantity, &i.Category, &i.UpdatedAt)
	return i, err
}

const createProduct = `-- name: CreateProduct :one
INSERT INTO products (collection, name, price, quantity, category)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (collection, name) DO NOTHING
RETURNING ` + productColumns

type CreateProductParams struct {
	Collection string
	Name       string
	Price      decimal.Decimal
	Quantity   int32
	Category   string
}

func (q *Queries) CreateProduct(ctx context.Context, arg CreateProductParams) (Product, error) {
	return scanProduct(q.db.QueryRow(ctx, createProduct, arg.Collection, arg.Name, arg.Price, arg.Quantity, arg.Category))
}

const getProduct = `-- name: GetProduct :one
SELECT ` + productColumns + ` FROM products
WHERE collection = $1 AND name = $2
`

type GetProductParams struct {
	Collection string
	Name       string
}

func (q *Queries) GetProduct(ctx context.Context, arg GetProductParams) (Product, error) {
	return scanProduct(q.db.QueryRow(ctx, getProduct, arg.Collection, arg.Name))
}

const updateProduct = `-- name: UpdateProduct :one
UPDATE products
SET price = $3, quantity = $4, updated_at = now()
WHERE collection = $1 AND name = $2
RETURNING ` + productColumns

type UpdateProductParams struct {
	Collection string
	Name       string
	Price      decimal.Decimal
	Quantity   int32
}

func (q *Queries) UpdateProduct(ctx context.Context, arg UpdateProductParams) (Product, error) {
	return scanProduct(q.db.QueryRow(ctx, updateProduct, arg.Collection, arg.Name, arg.Price, arg.Quantity))
}

const decrementStock = `-- name: DecrementStock :one
UPDATE products
SET quantity = quantity - $3, updated_at = now()
WHERE collection = $1 AND name = $2 AND quantity >= $3
RETURNING quantity
`

type StockParams struct {
	Collection string
	Name       string
	Quantity   int32
}

// DecrementStock returns pgx.ErrNoRows when the product is missing or holds fewer than Quantity units.
func (q *Queries) DecrementStock(ctx context.Context, arg StockParams) (int32, error) {
	row := q.db.QueryRow(ctx, decrementStock, arg.Collection, arg.Name, arg.Quantity)
	var quantity int32
	err := row.Scan(&quantity)
	return quantity, err
}

const incrementStock = `-- name: IncrementStock :one
UPDATE products
SET quantity = quantity + $3, updated_at = now()
WHERE collection = $1 AND name = $2
RETURNING quantity
`

func (q *Queries) IncrementStock(ctx context.Context, arg StockParams) (int32, error) {
	row := q.db.QueryRow(ctx, incrementStock, arg.Collection, arg.Name, arg.Quantity)
	var quantity int32
	err := row.Scan(&quantity)
	return quantity, err
}
