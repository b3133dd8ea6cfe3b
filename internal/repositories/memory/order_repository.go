// Package memory provides in-process repositories for tests and local development.
package memory

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	domain "github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/domain"
	"github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/repositories"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// OrderRepository keeps orders in a map keyed by order number.
type OrderRepository struct {
	mu         sync.RWMutex
	orders     map[string]domain.Order
	references map[string]string
}

var _ repositories.OrderRepository = (*OrderRepository)(nil)

// NewOrderRepository constructs an empty OrderRepository.
func NewOrderRepository() *OrderRepository {
	return &OrderRepository{
		orders:     make(map[string]domain.Order),
		references: make(map[string]string),
	}
}

// Insert implements repositories.OrderRepository.
func (r *OrderRepository) Insert(_ context.Context, order domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	number := strings.TrimSpace(order.OrderNumber)
	if _, exists := r.orders[number]; exists {
		return repositories.NewConflict("orders.insert", "order number %s already exists", number)
	}
	if order.PaymentReference != "" {
		key := referenceKey(order.PaymentProvider, order.PaymentReference)
		if _, taken := r.references[key]; taken {
			return repositories.NewConflict("orders.insert", "payment reference %s already assigned", order.PaymentReference)
		}
		r.references[key] = number
	}
	if order.Version == 0 {
		order.Version = 1
	}
	r.orders[number] = order.Clone()
	return nil
}

// FindByNumber implements repositories.OrderRepository.
func (r *OrderRepository) FindByNumber(_ context.Context, orderNumber string) (domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	order, ok := r.orders[strings.TrimSpace(orderNumber)]
	if !ok {
		return domain.Order{}, repositories.NewNotFound("orders.find", "order %s not found", orderNumber)
	}
	return order.Clone(), nil
}

// FindByPaymentReference implements repositories.OrderRepository.
func (r *OrderRepository) FindByPaymentReference(_ context.Context, provider, reference string) (domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	number, ok := r.references[referenceKey(provider, reference)]
	if !ok {
		return domain.Order{}, repositories.NewNotFound("orders.find_by_reference", "no order for reference %s", reference)
	}
	return r.orders[number].Clone(), nil
}

// Update implements repositories.OrderRepository. Only lifecycle fields are written.
func (r *OrderRepository) Update(_ context.Context, order domain.Order, expectedVersion int64) (domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	number := strings.TrimSpace(order.OrderNumber)
	stored, ok := r.orders[number]
	if !ok {
		return domain.Order{}, repositories.NewNotFound("orders.update", "order %s not found", number)
	}
	if stored.Version != expectedVersion {
		return domain.Order{}, repositories.NewConflict("orders.update", "order %s version %d, expected %d", number, stored.Version, expectedVersion)
	}

	if order.PaymentReference != stored.PaymentReference && order.PaymentReference != "" {
		key := referenceKey(stored.PaymentProvider, order.PaymentReference)
		if owner, taken := r.references[key]; taken && owner != number {
			return domain.Order{}, repositories.NewReferenceTaken("orders.update", order.PaymentReference)
		}
		r.references[key] = number
	}

	updated := stored.Clone()
	updated.Status = order.Status
	updated.PaymentReference = order.PaymentReference
	updated.PaymentStatusRaw = order.PaymentStatusRaw
	updated.PaidAt = order.PaidAt
	updated.NeedsReview = order.NeedsReview
	updated.ReviewReason = order.ReviewReason
	updated.History = append([]domain.StatusChange(nil), order.History...)
	updated.UpdatedAt = order.UpdatedAt
	updated.Version = stored.Version + 1

	r.orders[number] = updated
	return updated.Clone(), nil
}

// List implements repositories.OrderRepository using the shared keyset cursor.
func (r *OrderRepository) List(_ context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	cursor, hasCursor, err := repositories.DecodeOrderCursor(filter.PageToken)
	if err != nil {
		return domain.CursorPage[domain.Order]{}, err
	}

	r.mu.RLock()
	matches := make([]domain.Order, 0, len(r.orders))
	for _, order := range r.orders {
		if !matchesFilter(order, filter) {
			continue
		}
		if hasCursor && !cursor.After(order) {
			continue
		}
		matches = append(matches, order.Clone())
	}
	r.mu.RUnlock()

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].CreatedAt.Equal(matches[j].CreatedAt) {
			return matches[i].OrderNumber > matches[j].OrderNumber
		}
		return matches[i].CreatedAt.After(matches[j].CreatedAt)
	})

	size := repositories.NormalizePageSize(filter.PageSize, defaultPageSize, maxPageSize)
	page := domain.CursorPage[domain.Order]{Items: matches}
	if len(matches) > size {
		page.Items = matches[:size]
		token, err := repositories.EncodeOrderCursor(page.Items[size-1])
		if err != nil {
			return domain.CursorPage[domain.Order]{}, err
		}
		page.NextPageToken = token
	}
	return page, nil
}

// ListStalePending implements repositories.OrderRepository.
func (r *OrderRepository) ListStalePending(_ context.Context, createdBefore time.Time, limit int) ([]domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stale := make([]domain.Order, 0)
	for _, order := range r.orders {
		if order.Status == domain.OrderStatusPending && order.CreatedAt.Before(createdBefore) {
			stale = append(stale, order.Clone())
		}
	}
	sort.Slice(stale, func(i, j int) bool { return stale[i].CreatedAt.Before(stale[j].CreatedAt) })
	if limit > 0 && len(stale) > limit {
		stale = stale[:limit]
	}
	return stale, nil
}

func matchesFilter(order domain.Order, filter repositories.OrderListFilter) bool {
	if len(filter.Status) > 0 && !slices.Contains(filter.Status, order.Status) {
		return false
	}
	if filter.NeedsReview != nil && order.NeedsReview != *filter.NeedsReview {
		return false
	}
	if filter.CreatedAfter != nil && !order.CreatedAt.After(*filter.CreatedAfter) {
		return false
	}
	if filter.CreatedBefore != nil && !order.CreatedAt.Before(*filter.CreatedBefore) {
		return false
	}
	return true
}

func referenceKey(provider, reference string) string {
	return strings.ToLower(strings.TrimSpace(provider)) + "|" + strings.TrimSpace(reference)
}
