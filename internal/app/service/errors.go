package service

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/petalhouse/petalhouse-backend/internal/app/model"
)

var (
	ErrValidation                  = errors.New("validation failed")
	ErrProductNotFound             = errors.New("product not found")
	ErrProductUnavailable          = errors.New("product is not available")
	ErrInsufficientStock           = errors.New("insufficient stock")
	ErrInsufficientProductQuantity = errors.New("insufficient product quantity")
	ErrCartItemNotFound            = errors.New("cart item not found")
	ErrOrderNotFound               = errors.New("order not found")
	ErrOrderItemNotFound           = errors.New("order item not found")
	ErrInvalidTransition           = errors.New("invalid order status transition")
	ErrStatusConflict              = errors.New("order changed concurrently")
	ErrPersistence                 = errors.New("persistence failure")
)

// ValidationError lists offending fields and their messages.
type ValidationError struct {
	Fields map[string]string
}

func newValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: message}}
}

func (e *ValidationError) add(field, message string) {
	if e.Fields == nil {
		e.Fields = map[string]string{}
	}
	e.Fields[field] = message
}

func (e *ValidationError) orNil() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// InsufficientStockError is a single product shortfall.
type InsufficientStockError struct {
	ProductID uint
	Name      string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

// Shortfall describes one line that could not be fulfilled.
type Shortfall struct {
	ProductID uint   `json:"product_id"`
	Name      string `json:"name"`
	Requested int    `json:"requested"`
	Available int    `json:"available"`
}

// InsufficientProductQuantityError aborts a whole order and names every
// product that fell short.
type InsufficientProductQuantityError struct {
	Shortfalls []Shortfall
}

func (e *InsufficientProductQuantityError) Error() string {
	names := make([]string, 0, len(e.Shortfalls))
	for _, s := range e.Shortfalls {
		names = append(names, fmt.Sprintf("%s (available %d)", s.Name, s.Available))
	}
	return "insufficient product quantity: " + strings.Join(names, ", ")
}

func (e *InsufficientProductQuantityError) Unwrap() error { return ErrInsufficientProductQuantity }

func newShortfallError(shortfalls []Shortfall) *InsufficientProductQuantityError {
	sort.Slice(shortfalls, func(i, j int) bool { return shortfalls[i].ProductID < shortfalls[j].ProductID })
	return &InsufficientProductQuantityError{Shortfalls: shortfalls}
}

// TransitionError is returned for a status change the state machine forbids.
type TransitionError struct {
	From model.OrderStatus
	To   model.OrderStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot move order from %q to %q", e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// PersistenceError wraps a storage failure with the step that failed.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() []error { return []error{ErrPersistence, e.Err} }

func persistenceError(op string, err error) error {
	return &PersistenceError{Op: op, Err: err}
}
