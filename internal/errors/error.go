// Package errors provides the sentinel errors of the marketplace and their classification.
package errors

import "errors"

var ErrNotFound = errors.New("not found")
var ErrAccountNotFound = errors.New("account not found")
var ErrShopNotFound = errors.New("shop not found")
var ErrProductNotFound = errors.New("product not found")
var ErrOrderLineNotFound = errors.New("order line not found")

var ErrInsufficientStock = errors.New("insufficient stock")
var ErrInsufficientFunds = errors.New("insufficient funds")

var ErrConflict = errors.New("conflict")
var ErrAccountExists = errors.New("account already exists")
var ErrShopExists = errors.New("shop already exists")
var ErrProductExists = errors.New("product already exists")
var ErrOrderLineNotPending = errors.New("order line is no longer pending")
var ErrStockChanged = errors.New("stock changed concurrently")

var ErrValidation = errors.New("validation failed")
var ErrInvalidShopName = errors.New("invalid shop name")
var ErrInvalidMonth = errors.New("month must be between 1 and 12")

var ErrInternal = errors.New("internal error")
var ErrTransactionBegin = errors.New("failed to begin transaction")
var ErrTransactionCommit = errors.New("failed to commit transaction")
var ErrTransactionRollback = errors.New("failed to rollback transaction")

// Kind classifies an error for the transport layer.
type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindProductNotFound
	KindInsufficientStock
	KindInsufficientFunds
	KindConflict
	KindValidation
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "NotFound"
	case KindProductNotFound:
		return "ProductNotFound"
	case KindInsufficientStock:
		return "InsufficientStock"
	case KindInsufficientFunds:
		return "InsufficientFunds"
	case KindConflict:
		return "Conflict"
	case KindValidation:
		return "ValidationError"
	default:
		return "InternalError"
	}
}

// KindOf maps err to its Kind. Unknown errors, nil excluded, are internal.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindInternal
	case errors.Is(err, ErrProductNotFound):
		return KindProductNotFound
	case errors.Is(err, ErrNotFound),
		errors.Is(err, ErrAccountNotFound),
		errors.Is(err, ErrShopNotFound),
		errors.Is(err, ErrOrderLineNotFound):
		return KindNotFound
	case errors.Is(err, ErrInsufficientStock):
		return KindInsufficientStock
	case errors.Is(err, ErrInsufficientFunds):
		return KindInsufficientFunds
	case errors.Is(err, ErrConflict),
		errors.Is(err, ErrAccountExists),
		errors.Is(err, ErrShopExists),
		errors.Is(err, ErrProductExists),
		errors.Is(err, ErrOrderLineNotPending),
		errors.Is(err, ErrStockChanged):
		return KindConflict
	case errors.Is(err, ErrValidation),
		errors.Is(err, ErrInvalidShopName),
		errors.Is(err, ErrInvalidMonth):
		return KindValidation
	default:
		return KindInternal
	}
}

// IsNotFound reports whether err is any of the not-found errors, product included.
func IsNotFound(err error) bool {
	k := KindOf(err)
	return k == KindNotFound || k == KindProductNotFound
}
