// Package pricing holds the pure money arithmetic shared by carts and orders.
// All amounts are integers in the currency's minor unit.
package pricing

import (
	"errors"
	"fmt"
	"math"
	"strings"

	domain "github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/domain"
)

var (
	// ErrInvalidQuantity is returned when a product quantity is below 1 or a service quantity is not 1.
	ErrInvalidQuantity = errors.New("pricing: invalid quantity")
	// ErrInvalidPrice is returned for negative unit prices.
	ErrInvalidPrice = errors.New("pricing: invalid price")
	// ErrCurrencyMismatch is returned when items of one collection use different currencies.
	ErrCurrencyMismatch = errors.New("pricing: currency mismatch")
	// ErrAmountOverflow is returned when a total does not fit into int64.
	ErrAmountOverflow = errors.New("pricing: amount overflow")
)

// LineTotal returns unitPrice × quantity for the item.
func LineTotal(item domain.LineItem) (int64, error) {
	if err := ValidateQuantity(item.Kind, item.Quantity); err != nil {
		return 0, err
	}
	if item.UnitPrice < 0 {
		return 0, fmt.Errorf("%w: %s has negative unit price", ErrInvalidPrice, item.ID())
	}
	qty := int64(item.Quantity)
	if item.UnitPrice > 0 && qty > math.MaxInt64/item.UnitPrice {
		return 0, fmt.Errorf("%w: %s", ErrAmountOverflow, item.ID())
	}
	return item.UnitPrice * qty, nil
}

// Subtotal sums LineTotal over items. Every item must carry the same currency; items with
// an empty currency inherit the currency of the others.
func Subtotal(items []domain.LineItem) (int64, error) {
	var (
		total    int64
		currency string
	)
	for _, item := range items {
		code := NormalizeCurrency(item.Currency)
		if code != "" {
			if currency == "" {
				currency = code
			} else if currency != code {
				return 0, fmt.Errorf("%w: %s and %s", ErrCurrencyMismatch, currency, code)
			}
		}
		line, err := LineTotal(item)
		if err != nil {
			return 0, err
		}
		if total > math.MaxInt64-line {
			return 0, ErrAmountOverflow
		}
		total += line
	}
	return total, nil
}

// ValidateQuantity checks the quantity rule for the given item kind.
func ValidateQuantity(kind domain.ItemKind, quantity int) error {
	switch kind {
	case domain.ItemKindService:
		if quantity != 1 {
			return fmt.Errorf("%w: service quantity must be 1", ErrInvalidQuantity)
		}
	case domain.ItemKindProduct:
		if quantity < 1 {
			return fmt.Errorf("%w: product quantity must be at least 1", ErrInvalidQuantity)
		}
	default:
		return fmt.Errorf("%w: unknown item kind %q", ErrInvalidQuantity, kind)
	}
	return nil
}

// NormalizeCurrency upper-cases and trims an ISO 4217 code.
func NormalizeCurrency(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
