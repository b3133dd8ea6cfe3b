package services

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/repositories"
)

var (
	// ErrOrderValidation signals malformed or incomplete cart or customer data.
	ErrOrderValidation = errors.New("order: validation failed")
	// ErrEmptyCart indicates checkout of a cart without items.
	ErrEmptyCart = errors.New("order: cart is empty")
	// ErrUnsupportedCurrency indicates the cart currency is not sold.
	ErrUnsupportedCurrency = errors.New("order: unsupported currency")
	// ErrOrderNumberExhausted indicates every generated order number collided. Retryable.
	ErrOrderNumberExhausted = errors.New("order: order number attempts exhausted")
	// ErrOrderNotFound indicates the order could not be located.
	ErrOrderNotFound = errors.New("order: not found")
	// ErrOrderConflict indicates optimistic concurrency conflicts or duplicates.
	ErrOrderConflict = errors.New("order: conflict")
	// ErrAmountMismatch indicates a notification amount or currency differs from the order.
	ErrAmountMismatch = errors.New("order: payment amount mismatch")
	// ErrPaymentReferenceConflict indicates a notification reference is already held by another order.
	ErrPaymentReferenceConflict = errors.New("order: payment reference belongs to another order")
	// ErrOrderUnavailable indicates the order store could not be reached.
	ErrOrderUnavailable = errors.New("order: storage unavailable")
)

// ValidationError lists field level problems. It matches ErrOrderValidation with errors.Is.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if e == nil || len(e.Fields) == 0 {
		return ErrOrderValidation.Error()
	}
	keys := slices.Sorted(maps.Keys(e.Fields))
	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, key+": "+e.Fields[key])
	}
	return fmt.Sprintf("%s: %s", ErrOrderValidation, strings.Join(parts, "; "))
}

func (e *ValidationError) Unwrap() error {
	return ErrOrderValidation
}

func (e *ValidationError) add(field, message string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	if _, exists := e.Fields[field]; !exists {
		e.Fields[field] = message
	}
}

func (e *ValidationError) orNil() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

func mapOrderRepositoryError(err error) error {
	if err == nil {
		return nil
	}

	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrOrderNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrOrderConflict, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("%w: %v", ErrOrderUnavailable, err)
		}
	}

	return err
}
