package db

import (
	"context"

	"github.com/shopspring/decimal"
)

const createAccount = `-- name: CreateAccount :one
INSERT INTO accounts (id, display_name, coins)
VALUES ($1, $2, $3)
ON CONFLICT (id) DO NOTHING
RETURNING id, display_name, coins, created_at
`

type CreateAccountParams struct {
	ID          string
	DisplayName string
	Coins       decimal.Decimal
}

func (q *Queries) CreateAccount(ctx context.Context, arg CreateAccountParams) (Account, error) {
	row := q.db.QueryRow(ctx, createAccount, arg.ID, arg.DisplayName, arg.Coins)
	var i Account
	err := row.Scan(&i.ID, &i.DisplayName, &i.Coins, &i.CreatedAt)
	return i, err
}

const getAccount = `-- name: GetAccount :one
SELECT id, display_name, coins, created_at FROM accounts
WHERE id = $1
`

func (q *Queries) GetAccount(ctx context.Context, id string) (Account, error) {
	row := q.db.QueryRow(ctx, getAccount, id)
	var i Account
	err := row.Scan(&i.ID, &i.DisplayName, &i.Coins, &i.CreatedAt)
	return i, err
}

const debitAccount = `-- name: DebitAccount :one
UPDATE accounts
SET coins = coins - $2
WHERE id = $1 AND coins >= $2
RETURNING coins
`

type DebitAccountParams struct {
	ID     string
	Amount decimal.Decimal
}

// DebitAccount returns pgx.ErrNoRows when the account is missing or cannot cover the amount.
func (q *Queries) DebitAccount(ctx context.Context, arg DebitAccountParams) (decimal.Decimal, error) {
	row := q.db.QueryRow(ctx, debitAccount, arg.ID, arg.Amount)
	var coins decimal.Decimal
	err := row.Scan(&coins)
	return coins, err
}

const creditAccount = `-- name: CreditAccount :one
UPDATE accounts
SET coins = coins + $2
WHERE id = $1
RETURNING coins
`

type CreditAccountParams struct {
	ID     string
	Amount decimal.Decimal
}

func (q *Queries) CreditAccount(ctx context.Context, arg CreditAccountParams) (decimal.Decimal, error) {
	row := q.db.QueryRow(ctx, creditAccount, arg.ID, arg.Amount)
	var coins decimal.Decimal
	err := row.Scan(&coins)
	return coins, err
}
