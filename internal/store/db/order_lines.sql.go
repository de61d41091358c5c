package db

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const orderLineColumns = `id, order_id, account_id, shop_id, product_name, quantity, unit_price, line_total, status, delivered, viewed, created_at`

func scanOrderLine(row interface{ Scan(...any) error }) (OrderLine, error) {
	var i OrderLine
	err := row.Scan(
		&i.ID,
		&i.OrderID,
		&i.AccountID,
		&i.ShopID,
		&i.ProductName,
		&i.Quantity,
		&i.UnitPrice,
		&i.LineTotal,
		&i.Status,
		&i.Delivered,
		&i.Viewed,
		&i.CreatedAt,
	)
	return i, err
}

func collectOrderLines(rows pgx.Rows, err error) ([]OrderLine, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []OrderLine{}
	for rows.Next() {
		i, err := scanOrderLine(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const createOrderLine = `-- name: CreateOrderLine :one
INSERT INTO order_lines (id, order_id, account_id, shop_id, product_name, quantity, unit_price, line_total, status, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (id) DO NOTHING
RETURNING ` + orderLineColumns

type CreateOrderLineParams struct {
	ID          uuid.UUID
	OrderID     int32
	AccountID   string
	ShopID      string
	ProductName string
	Quantity    int32
	UnitPrice   decimal.Decimal
	LineTotal   decimal.Decimal
	Status      string
	CreatedAt   time.Time
}

func (q *Queries) CreateOrderLine(ctx context.Context, arg CreateOrderLineParams) (OrderLine, error) {
	row := q.db.QueryRow(ctx, createOrderLine,
		arg.ID,
		arg.OrderID,
		arg.AccountID,
		arg.ShopID,
		arg.ProductName,
		arg.Quantity,
		arg.UnitPrice,
		arg.LineTotal,
		arg.Status,
		arg.CreatedAt,
	)
	return scanOrderLine(row)
}

const getOrderLine = `-- name: GetOrderLine :one
SELECT ` + orderLineColumns + ` FROM order_lines
WHERE id = $1
`

func (q *Queries) GetOrderLine(ctx context.Context, id uuid.UUID) (OrderLine, error) {
	return scanOrderLine(q.db.QueryRow(ctx, getOrderLine, id))
}

const rejectPendingOrderLine = `-- name: RejectPendingOrderLine :one
UPDATE order_lines
SET status = 'Rejected', viewed = false
WHERE id = $1 AND status = 'Pending' AND delivered = false
RETURNING ` + orderLineColumns

// RejectPendingOrderLine returns pgx.ErrNoRows when the line is missing or no longer pending.
func (q *Queries) RejectPendingOrderLine(ctx context.Context, id uuid.UUID) (OrderLine, error) {
	return scanOrderLine(q.db.QueryRow(ctx, rejectPendingOrderLine, id))
}

const deliverOrderLine = `-- name: DeliverOrderLine :one
UPDATE order_lines
SET status = 'Success', delivered = true
WHERE id = $1 AND status = 'Pending' AND delivered = false
RETURNING ` + orderLineColumns

// DeliverOrderLine returns pgx.ErrNoRows when the line is missing or no longer pending.
func (q *Queries) DeliverOrderLine(ctx context.Context, id uuid.UUID) (OrderLine, error) {
	return scanOrderLine(q.db.QueryRow(ctx, deliverOrderLine, id))
}

const markOrderViewed = `-- name: MarkOrderViewed :execrows
UPDATE order_lines
SET viewed = true
WHERE order_id = $1
`

func (q *Queries) MarkOrderViewed(ctx context.Context, orderID int32) (int64, error) {
	result, err := q.db.Exec(ctx, markOrderViewed, orderID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const listPendingOrderLinesByShop = `-- name: ListPendingOrderLinesByShop :many
SELECT ` + orderLineColumns + ` FROM order_lines
WHERE shop_id = $1 AND delivered = false AND status <> 'Rejected'
ORDER BY created_at DESC, id
`

func (q *Queries) ListPendingOrderLinesByShop(ctx context.Context, shopID string) ([]OrderLine, error) {
	return collectOrderLines(q.db.Query(ctx, listPendingOrderLinesByShop, shopID))
}

const listDeliveredOrderLinesByShop = `-- name: ListDeliveredOrderLinesByShop :many
SELECT ` + orderLineColumns + ` FROM order_lines
WHERE shop_id = $1 AND delivered = true
ORDER BY created_at DESC, id
`

func (q *Queries) ListDeliveredOrderLinesByShop(ctx context.Context, shopID string) ([]OrderLine, error) {
	return collectOrderLines(q.db.Query(ctx, listDeliveredOrderLinesByShop, shopID))
}

const listUnseenOrderLinesByAccount = `-- name: ListUnseenOrderLinesByAccount :many
SELECT ` + orderLineColumns + ` FROM order_lines
WHERE account_id = $1 AND viewed = false
ORDER BY created_at DESC, id
`

func (q *Queries) ListUnseenOrderLinesByAccount(ctx context.Context, accountID string) ([]OrderLine, error) {
	return collectOrderLines(q.db.Query(ctx, listUnseenOrderLinesByAccount, accountID))
}

type PeriodParams struct {
	Owner string
	From  time.Time
	To    time.Time
}

const listDeliveredOrderLinesByAccountBetween = `-- name: ListDeliveredOrderLinesByAccountBetween :many
SELECT ` + orderLineColumns + ` FROM order_lines
WHERE account_id = $1 AND delivered = true AND created_at >= $2 AND created_at <= $3
ORDER BY created_at DESC, id
`

func (q *Queries) ListDeliveredOrderLinesByAccountBetween(ctx context.Context, arg PeriodParams) ([]OrderLine, error) {
	return collectOrderLines(q.db.Query(ctx, listDeliveredOrderLinesByAccountBetween, arg.Owner, arg.From, arg.To))
}

const listOrderLinesByShopBetween = `-- name: ListOrderLinesByShopBetween :many
SELECT ` + orderLineColumns + ` FROM order_lines
WHERE shop_id = $1 AND created_at >= $2 AND created_at <= $3
ORDER BY created_at DESC, id
`

func (q *Queries) ListOrderLinesByShopBetween(ctx context.Context, arg PeriodParams) ([]OrderLine, error) {
	return collectOrderLines(q.db.Query(ctx, listOrderLinesByShopBetween, arg.Owner, arg.From, arg.To))
}

const sumLineTotalsByShop = `-- name: SumLineTotalsByShop :one
SELECT COALESCE(SUM(line_total), 0)::numeric FROM order_lines
WHERE shop_id = $1
`

func (q *Queries) SumLineTotalsByShop(ctx context.Context, shopID string) (decimal.Decimal, error) {
	row := q.db.QueryRow(ctx, sumLineTotalsByShop, shopID)
	var total decimal.Decimal
	err := row.Scan(&total)
	return total, err
}
