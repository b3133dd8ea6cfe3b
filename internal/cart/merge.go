// Package cart implements the client-held cart: a versioned value object whose
// mutations go through a single merge policy and are written through to a Store.
package cart

import (
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/domain"
	"github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/pricing"
)

var (
	// ErrInvalidItem indicates the line item is malformed.
	ErrInvalidItem = errors.New("cart: invalid item")
	// ErrDuplicateBooking indicates a service slot is already present in the cart.
	ErrDuplicateBooking = errors.New("cart: duplicate booking")
	// ErrItemNotFound indicates no line item matches the identifier.
	ErrItemNotFound = errors.New("cart: item not found")
	// ErrQuantityImmutable indicates a quantity update was attempted on a service item.
	ErrQuantityImmutable = errors.New("cart: service quantity is fixed")
)

const (
	bookingDateLayout = "2006-01-02"
	bookingTimeLayout = "15:04"
)

// MinQuantity is the floor applied when a product quantity update would drop below it.
const MinQuantity = 1

// NormalizeItem trims identifiers and validates kind-specific fields. Service items always
// carry quantity 1; a zero product quantity defaults to 1.
func NormalizeItem(item domain.LineItem) (domain.LineItem, error) {
	item.ReferenceID = strings.TrimSpace(item.ReferenceID)
	item.Name = strings.TrimSpace(item.Name)
	item.Currency = pricing.NormalizeCurrency(item.Currency)
	item.BookingDate = strings.TrimSpace(item.BookingDate)
	item.BookingTime = strings.TrimSpace(item.BookingTime)
	item.Kind = domain.ItemKind(strings.ToLower(strings.TrimSpace(string(item.Kind))))

	if item.ReferenceID == "" {
		return domain.LineItem{}, fmt.Errorf("%w: referenceId is required", ErrInvalidItem)
	}
	if !item.Kind.Valid() {
		return domain.LineItem{}, fmt.Errorf("%w: unsupported kind %q", ErrInvalidItem, item.Kind)
	}
	if item.UnitPrice < 0 {
		return domain.LineItem{}, fmt.Errorf("%w: unitPrice must not be negative", ErrInvalidItem)
	}

	switch item.Kind {
	case domain.ItemKindService:
		if item.Quantity == 0 {
			item.Quantity = 1
		}
		if item.BookingDate != "" {
			if _, err := time.Parse(bookingDateLayout, item.BookingDate); err != nil {
				return domain.LineItem{}, fmt.Errorf("%w: bookingDate must be YYYY-MM-DD", ErrInvalidItem)
			}
		}
		if item.BookingTime != "" {
			if item.BookingDate == "" {
				return domain.LineItem{}, fmt.Errorf("%w: bookingTime requires bookingDate", ErrInvalidItem)
			}
			if _, err := time.Parse(bookingTimeLayout, item.BookingTime); err != nil {
				return domain.LineItem{}, fmt.Errorf("%w: bookingTime must be HH:MM", ErrInvalidItem)
			}
		}
	case domain.ItemKindProduct:
		if item.Quantity == 0 {
			item.Quantity = 1
		}
		if item.BookingDate != "" || item.BookingTime != "" {
			return domain.LineItem{}, fmt.Errorf("%w: products cannot carry booking fields", ErrInvalidItem)
		}
	}

	if err := pricing.ValidateQuantity(item.Kind, item.Quantity); err != nil {
		return domain.LineItem{}, err
	}
	return item, nil
}

// Merge returns items with item added according to the identity-key policy: products with
// the same key sum quantities, a repeated service slot fails with ErrDuplicateBooking and
// anything else is appended. The input slice is never modified.
func Merge(items []domain.LineItem, item domain.LineItem) ([]domain.LineItem, error) {
	normalized, err := NormalizeItem(item)
	if err != nil {
		return nil, err
	}

	key := normalized.Key()
	out := make([]domain.LineItem, 0, len(items)+1)
	merged := false
	for _, existing := range items {
		if existing.Key() != key {
			out = append(out, existing)
			continue
		}
		if normalized.Kind == domain.ItemKindService {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateBooking, key)
		}
		existing.Quantity += normalized.Quantity
		if normalized.Name != "" {
			existing.Name = normalized.Name
		}
		existing.UnitPrice = normalized.UnitPrice
		out = append(out, existing)
		merged = true
	}
	if !merged {
		out = append(out, normalized)
	}
	return out, nil
}

// SetQuantity returns items with the product identified by itemID set to quantity. Values
// below MinQuantity are clamped.
func SetQuantity(items []domain.LineItem, itemID string, quantity int) ([]domain.LineItem, error) {
	id := strings.TrimSpace(itemID)
	out := make([]domain.LineItem, len(items))
	copy(out, items)
	for i := range out {
		if out[i].ID() != id {
			continue
		}
		if out[i].Kind == domain.ItemKindService {
			return nil, fmt.Errorf("%w: %s", ErrQuantityImmutable, id)
		}
		if quantity < MinQuantity {
			quantity = MinQuantity
		}
		out[i].Quantity = quantity
		return out, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrItemNotFound, id)
}

// Remove returns items without the entry identified by itemID. Missing ids are ignored.
func Remove(items []domain.LineItem, itemID string) []domain.LineItem {
	id := strings.TrimSpace(itemID)
	out := make([]domain.LineItem, 0, len(items))
	for _, existing := range items {
		if existing.ID() == id {
			continue
		}
		out = append(out, existing)
	}
	return out
}
