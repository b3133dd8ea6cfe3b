package repositories

import (
	"context"
	"time"

	domain "github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/domain"
)

// Registry exposes the storage adapters used by the order pipeline.
type Registry interface {
	Close(ctx context.Context) error

	Orders() OrderRepository
	Notifications() NotificationRepository
	Catalog() CatalogRepository
	Health() HealthRepository

	UnitOfWork
}

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// UnitOfWork allows grouping repository operations in a transactional boundary when supported.
type UnitOfWork interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// OrderListFilter narrows admin order listings.
type OrderListFilter struct {
	Status        []domain.OrderStatus
	NeedsReview   *bool
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
	PageSize      int
	PageToken     string
}

// OrderRepository is the persistence boundary for orders.
type OrderRepository interface {
	// Insert stores a new order. A duplicate order number yields a RepositoryError with IsConflict.
	Insert(ctx context.Context, order domain.Order) error
	FindByNumber(ctx context.Context, orderNumber string) (domain.Order, error)
	// FindByPaymentReference returns the order carrying the provider reference, IsNotFound otherwise.
	FindByPaymentReference(ctx context.Context, provider, reference string) (domain.Order, error)
	// Update replaces the mutable fields when the stored version equals expectedVersion and bumps
	// the version. A stale expectedVersion yields IsConflict.
	Update(ctx context.Context, order domain.Order, expectedVersion int64) (domain.Order, error)
	List(ctx context.Context, filter OrderListFilter) (domain.CursorPage[domain.Order], error)
	ListStalePending(ctx context.Context, createdBefore time.Time, limit int) ([]domain.Order, error)
}

// NotificationRepository keeps the audit trail of payment notifications.
type NotificationRepository interface {
	Record(ctx context.Context, record domain.NotificationRecord) error
	ListByOrder(ctx context.Context, orderNumber string) ([]domain.NotificationRecord, error)
}

// CatalogRepository resolves authoritative prices for checkout repricing.
type CatalogRepository interface {
	Lookup(ctx context.Context, referenceID string, kind domain.ItemKind) (domain.CatalogEntry, error)
}

// HealthRepository probes storage and broker dependencies for /readyz.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.SystemHealthReport, error)
}
