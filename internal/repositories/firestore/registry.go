package firestore

import (
	"context"
	"errors"

	pfirestore "github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/platform/firestore"
	"github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/repositories"
)

// Registry bundles the Firestore stores behind repositories.Registry.
type Registry struct {
	provider      *pfirestore.Provider
	orders        *OrderRepository
	notifications *NotificationRepository
	catalog       *CatalogRepository
	health        repositories.HealthRepository
}

var _ repositories.Registry = (*Registry)(nil)

// NewRegistry wires the stores on provider. extraChecks join the Firestore probe in readiness.
func NewRegistry(provider *pfirestore.Provider, extraChecks ...repositories.DependencyCheck) (*Registry, error) {
	if provider == nil {
		return nil, errors.New("firestore registry: provider is required")
	}
	orders, err := NewOrderRepository(provider)
	if err != nil {
		return nil, err
	}
	notifications, err := NewNotificationRepository(provider)
	if err != nil {
		return nil, err
	}
	catalog, err := NewCatalogRepository(provider)
	if err != nil {
		return nil, err
	}
	checks := append([]repositories.DependencyCheck{{
		Name:  "firestore",
		Check: func(ctx context.Context) error { return provider.Ping(ctx, ordersCollection) },
	}}, extraChecks...)
	health, err := repositories.NewDependencyHealthRepository(checks)
	if err != nil {
		return nil, err
	}
	return &Registry{
		provider:      provider,
		orders:        orders,
		notifications: notifications,
		catalog:       catalog,
		health:        health,
	}, nil
}

func (r *Registry) Orders() repositories.OrderRepository { return r.orders }

func (r *Registry) Notifications() repositories.NotificationRepository { return r.notifications }

func (r *Registry) Catalog() repositories.CatalogRepository { return r.catalog }

// CatalogWriter exposes Put for seeding.
func (r *Registry) CatalogWriter() *CatalogRepository { return r.catalog }

func (r *Registry) Health() repositories.HealthRepository { return r.health }

// RunInTx runs fn directly; each order write is its own version-checked transaction.
func (r *Registry) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// Close releases the Firestore client.
func (r *Registry) Close(ctx context.Context) error {
	return r.provider.Close(ctx)
}
