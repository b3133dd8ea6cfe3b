package di

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/cart"
	"github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/platform/config"
	"github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/platform/observability"
	"github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/repositories"
	"github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/services"
)

// Services bundles the service-layer contracts that handlers rely upon. Concrete implementations
// are assembled via dependency injection in NewContainer.
type Services struct {
	Cart       services.CartService
	Checkout   services.CheckoutService
	Orders     services.OrderService
	Reconciler services.PaymentReconciler
	System     services.SystemService
	Payments   services.PaymentGateway
}

// Infrastructure carries the adapters built by the process entrypoint. Payments and CartStore
// are required; the remaining fields fall back to no-op or process defaults.
type Infrastructure struct {
	CartStore cart.Store
	Payments  services.PaymentGateway
	Events    services.OrderEventPublisher
	Meter     metric.Meter
	Logger    *zap.Logger
	Build     services.BuildInfo
	Clock     func() time.Time
}

// Container wires repositories, services, and background infrastructure for runtime use.
type Container struct {
	Config       config.Config
	Repositories repositories.Registry
	Services     Services
}

// NewContainer constructs the runtime dependencies. Production wiring provides the registry
// selected by API_STORAGE_BACKEND, while tests can supply in-memory registries.
func NewContainer(ctx context.Context, cfg config.Config, reg repositories.Registry, infra Infrastructure) (*Container, error) {
	if reg == nil {
		return nil, errors.New("repositories registry is required")
	}
	if infra.CartStore == nil {
		return nil, errors.New("cart store is required")
	}
	if infra.Payments == nil {
		return nil, errors.New("payment gateway is required")
	}

	svc, err := buildServices(ctx, reg, cfg, infra)
	if err != nil {
		return nil, err
	}

	return &Container{
		Config:       cfg,
		Repositories: reg,
		Services:     svc,
	}, nil
}

// Close releases resources such as repository clients, background workers, or caches.
func (c *Container) Close(ctx context.Context) error {
	if c == nil || c.Repositories == nil {
		return nil
	}
	return c.Repositories.Close(ctx)
}

func buildServices(_ context.Context, reg repositories.Registry, cfg config.Config, infra Infrastructure) (Services, error) {
	clock := infra.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := infra.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	events := infra.Events

	svc := Services{Payments: infra.Payments}

	cartSvc, err := services.NewCartService(services.CartServiceDeps{
		Store:   infra.CartStore,
		Catalog: reg.Catalog(),
		Clock:   clock,
		Logger:  observability.EventLogger(logger.Named("cart")),
	})
	if err != nil {
		return Services{}, fmt.Errorf("build cart service: %w", err)
	}
	svc.Cart = cartSvc

	numbers, err := services.NewOrderNumberGenerator(cfg.Checkout.OrderNumberPrefix, nil)
	if err != nil {
		return Services{}, fmt.Errorf("build order number generator: %w", err)
	}
	factory, err := services.NewOrderFactory(services.OrderFactoryDeps{
		Orders:              reg.Orders(),
		Catalog:             reg.Catalog(),
		SupportedCurrencies: cfg.Checkout.SupportedCurrencies,
		NumberGenerator:     numbers,
		MaxNumberAttempts:   cfg.Checkout.MaxNumberAttempts,
		Clock:               clock,
		Events:              events,
		Logger:              observability.EventLogger(logger.Named("orders")),
	})
	if err != nil {
		return Services{}, fmt.Errorf("build order factory: %w", err)
	}

	checkoutSvc, err := services.NewCheckoutService(services.CheckoutServiceDeps{
		Factory:   factory,
		Payments:  infra.Payments,
		CartStore: infra.CartStore,
		URLs: services.CheckoutURLs{
			SuccessURL:    cfg.Checkout.SuccessURL,
			CancelURL:     cfg.Checkout.CancelURL,
			NotifyBaseURL: cfg.Server.PublicBaseURL,
		},
		Clock:  clock,
		Logger: observability.EventLogger(logger.Named("checkout")),
	})
	if err != nil {
		return Services{}, fmt.Errorf("build checkout service: %w", err)
	}
	svc.Checkout = checkoutSvc

	orderSvc, err := services.NewOrderService(services.OrderServiceDeps{
		Orders:        reg.Orders(),
		Notifications: reg.Notifications(),
		UnitOfWork:    reg,
		Clock:         clock,
		Events:        events,
		Logger:        observability.EventLogger(logger.Named("orders")),
	})
	if err != nil {
		return Services{}, fmt.Errorf("build order service: %w", err)
	}
	svc.Orders = orderSvc

	reconciler, err := services.NewPaymentReconciler(services.PaymentReconcilerDeps{
		Orders:        reg.Orders(),
		Notifications: reg.Notifications(),
		MaxRetries:    cfg.Checkout.ReconcileRetries,
		Clock:         clock,
		Events:        events,
		Meter:         infra.Meter,
		Logger:        observability.EventLogger(logger.Named("reconciler")),
	})
	if err != nil {
		return Services{}, fmt.Errorf("build payment reconciler: %w", err)
	}
	svc.Reconciler = reconciler

	if healthRepo := reg.Health(); healthRepo != nil {
		build := infra.Build
		if build.Environment == "" {
			build.Environment = cfg.Security.Environment
		}
		if build.StartedAt.IsZero() {
			build.StartedAt = clock().UTC()
		}
		systemSvc, err := services.NewSystemService(services.SystemServiceDeps{
			HealthRepository: healthRepo,
			Clock:            clock,
			Build:            build,
		})
		if err != nil {
			return Services{}, fmt.Errorf("build system service: %w", err)
		}
		svc.System = systemSvc
	}

	return svc, nil
}
