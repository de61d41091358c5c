package service

import (
	"fmt"
	"reflect"

	marketerrors "github.com/abgdnv/coinmarket/internal/errors"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// NewValidator returns a validator that understands decimal.Decimal fields,
// so tags like gte=0 and gt=0 apply to prices and coin amounts.
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
	return v
}

// validateStruct runs v on dto and tags failures as validation errors.
func validateStruct(v *validator.Validate, dto any) error {
	if err := v.Struct(dto); err != nil {
		return fmt.Errorf("%w: %w", marketerrors.ErrValidation, err)
	}
	return nil
}
