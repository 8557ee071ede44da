// Package apperr holds the error taxonomy shared by the store, services and
// HTTP layer.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrProductUnavailable = errors.New("product unavailable")
	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrNotReserved        = errors.New("stock not reserved")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrInvalidSignature   = errors.New("invalid signature")
	ErrAlreadySettled     = errors.New("order already settled")
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrProductReferenced  = errors.New("product referenced by order history")
	ErrConflict           = errors.New("conflict")
	ErrValidation         = errors.New("validation failed")
	ErrGateway            = errors.New("payment gateway error")
)

// InsufficientStockError carries the quantity a caller could still get.
type InsufficientStockError struct {
	ProductID string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: requested=%d, available=%d",
		e.ProductID, e.Requested, e.Available)
}

func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

func InsufficientStock(productID string, requested, available int) error {
	if available < 0 {
		available = 0
	}
	return &InsufficientStockError{ProductID: productID, Requested: requested, Available: available}
}

// Validation wraps a client input problem so it maps to 400.
func Validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// NotFound names the missing entity.
func NotFound(entity, id string) error {
	return fmt.Errorf("%s %s: %w", entity, id, ErrNotFound)
}
