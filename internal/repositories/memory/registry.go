package memory

import (
	"context"
	"sync"

	domain "github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/domain"
	"github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/repositories"
)

// Registry bundles the in-memory repositories.
type Registry struct {
	orders        *OrderRepository
	notifications *NotificationRepository
	catalog       *CatalogRepository
	health        repositories.HealthRepository
	txMu          sync.Mutex
}

var _ repositories.Registry = (*Registry)(nil)

// NewRegistry constructs a Registry whose catalog is seeded with entries.
func NewRegistry(entries ...domain.CatalogEntry) *Registry {
	health, _ := repositories.NewDependencyHealthRepository([]repositories.DependencyCheck{
		{Name: "memory", Check: func(context.Context) error { return nil }},
	})
	return &Registry{
		orders:        NewOrderRepository(),
		notifications: NewNotificationRepository(),
		catalog:       NewCatalogRepository(entries...),
		health:        health,
	}
}

func (r *Registry) Orders() repositories.OrderRepository { return r.orders }

func (r *Registry) Notifications() repositories.NotificationRepository { return r.notifications }

func (r *Registry) Catalog() repositories.CatalogRepository { return r.catalog }

func (r *Registry) Health() repositories.HealthRepository { return r.health }

// RunInTx serialises fn against other transactions of this registry.
func (r *Registry) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	r.txMu.Lock()
	defer r.txMu.Unlock()
	return fn(ctx)
}

// Close implements repositories.Registry.
func (r *Registry) Close(context.Context) error { return nil }
