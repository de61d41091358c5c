package db

import (
	"context"
)

const createShop = `-- name: CreateShop :one
INSERT INTO shops (name, owner_name, collection)
VALUES ($1, $2, $3)
ON CONFLICT DO NOTHING
RETURNING name, owner_name, collection, created_at
`

type CreateShopParams struct {
	Name       string
	OwnerName  string
	Collection string
}

func (q *Queries) CreateShop(ctx context.Context, arg CreateShopParams) (Shop, error) {
	row := q.db.QueryRow(ctx, createShop, arg.Name, arg.OwnerName, arg.Collection)
	var i Shop
	err := row.Scan(&i.Name, &i.OwnerName, &i.Collection, &i.CreatedAt)
	return i, err
}

const getShop = `-- name: GetShop :one
SELECT name, owner_name, collection, created_at FROM shops
WHERE name = $1
`

func (q *Queries) GetShop(ctx context.Context, name string) (Shop, error) {
	row := q.db.QueryRow(ctx, getShop, name)
	var i Shop
	err := row.Scan(&i.Name, &i.OwnerName, &i.Collection, &i.CreatedAt)
	return i, err
}
