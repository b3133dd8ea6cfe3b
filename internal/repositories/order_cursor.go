package repositories

import (
	"fmt"
	"time"

	domain "github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/domain"
	"github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/platform/pagination"
)

// OrderCursor is the keyset position after the last order of a page. Listings are ordered by
// CreatedAt descending, then OrderNumber descending.
type OrderCursor struct {
	CreatedAt   time.Time `json:"createdAt"`
	OrderNumber string    `json:"orderNumber"`
}

// EncodeOrderCursor renders the page token pointing after order.
func EncodeOrderCursor(order domain.Order) (string, error) {
	return pagination.Encode(OrderCursor{CreatedAt: order.CreatedAt.UTC(), OrderNumber: order.OrderNumber})
}

// DecodeOrderCursor parses a token produced by EncodeOrderCursor. An empty token yields ok=false.
func DecodeOrderCursor(token string) (OrderCursor, bool, error) {
	cursor, ok, err := pagination.Decode[OrderCursor](token)
	if err != nil || !ok {
		return OrderCursor{}, false, err
	}
	if cursor.CreatedAt.IsZero() || cursor.OrderNumber == "" {
		return OrderCursor{}, false, fmt.Errorf("%w: incomplete order cursor", pagination.ErrInvalidPageToken)
	}
	cursor.CreatedAt = cursor.CreatedAt.UTC()
	return cursor, true, nil
}

// After reports whether order sorts after the cursor position.
func (c OrderCursor) After(order domain.Order) bool {
	if order.CreatedAt.Equal(c.CreatedAt) {
		return order.OrderNumber < c.OrderNumber
	}
	return order.CreatedAt.Before(c.CreatedAt)
}

// NormalizePageSize clamps size to (0, max], using fallback for non-positive input.
func NormalizePageSize(size, fallback, max int) int {
	if size <= 0 {
		size = fallback
	}
	if max > 0 && size > max {
		size = max
	}
	return size
}
