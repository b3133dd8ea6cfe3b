package main

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/cart"
	domain "github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/domain"
	"github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/payments"
	"github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/platform/config"
	"github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/platform/events"
	pfirestore "github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/platform/firestore"
	"github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/platform/idempotency"
	"github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/platform/observability"
	"github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/platform/secrets"
	"github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/repositories"
	firestoreRepo "github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/repositories/firestore"
	memoryRepo "github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/repositories/memory"
	postgresRepo "github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/repositories/postgres"
	"github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/services"
)

func openRegistry(ctx context.Context, cfg config.Config, provider *pfirestore.Provider, checks []repositories.DependencyCheck) (repositories.Registry, error) {
	switch cfg.Storage.Backend {
	case config.StorageFirestore:
		reg, err := firestoreRepo.NewRegistry(provider, checks...)
		if err != nil {
			return nil, err
		}
		return reg, nil
	case config.StoragePostgres:
		if cfg.Postgres.MigrateOnStart {
			if err := postgresRepo.MigrateUp(cfg.Postgres.DSN); err != nil {
				return nil, err
			}
		}
		reg, err := postgresRepo.Open(ctx, withPoolMaxConns(cfg.Postgres.DSN, cfg.Postgres.MaxConns), checks...)
		if err != nil {
			return nil, err
		}
		return reg, nil
	default:
		var entries []domain.CatalogEntry
		if path := strings.TrimSpace(cfg.Storage.CatalogSeedFile); path != "" {
			seeded, err := memoryRepo.LoadCatalogSeedFile(path)
			if err != nil {
				return nil, err
			}
			entries = seeded
		}
		return memoryRepo.NewRegistry(entries...), nil
	}
}

// withPoolMaxConns appends pgxpool's pool_max_conns to dsn unless it is already present.
func withPoolMaxConns(dsn string, maxConns int) string {
	if maxConns <= 0 || strings.Contains(dsn, "pool_max_conns") {
		return dsn
	}
	if strings.Contains(dsn, "://") {
		parsed, err := url.Parse(dsn)
		if err != nil {
			return dsn
		}
		query := parsed.Query()
		query.Set("pool_max_conns", strconv.Itoa(maxConns))
		parsed.RawQuery = query.Encode()
		return parsed.String()
	}
	return strings.TrimSpace(dsn) + " pool_max_conns=" + strconv.Itoa(maxConns)
}

func newCartStore(cfg config.Config, client *redis.Client) (cart.Store, error) {
	if client == nil {
		return cart.NewMemoryStore(), nil
	}
	store, err := cart.NewRedisStore(client,
		cart.WithTTL(cfg.Redis.CartTTL),
		cart.WithKeyPrefix(cfg.Redis.KeyPrefix),
	)
	if err != nil {
		return nil, err
	}
	return store, nil
}

func newIdempotencyStore(client *redis.Client, provider *pfirestore.Provider) (idempotency.Store, error) {
	switch {
	case client != nil:
		store, err := idempotency.NewRedisStore(client, "")
		if err != nil {
			return nil, err
		}
		return store, nil
	case provider != nil:
		store, err := idempotency.NewFirestoreStore(provider)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return idempotency.NewMemoryStore(), nil
	}
}

func newPaymentManager(cfg config.Config, logger *zap.Logger) (*payments.Manager, error) {
	providers := make(map[string]payments.Provider, 3)

	if cfg.Payments.Stripe.APIKey != "" {
		stripeProvider, err := payments.NewStripeProvider(payments.StripeProviderConfig{
			APIKey:        cfg.Payments.Stripe.APIKey,
			WebhookSecret: cfg.Payments.Stripe.WebhookSecret,
			AccountID:     cfg.Payments.Stripe.AccountID,
			Logger:        observability.EventLogger(logger.Named("stripe")),
			Clock:         time.Now,
		})
		if err != nil {
			return nil, err
		}
		providers["stripe"] = stripeProvider
	}

	if cfg.Payments.LiqPay.PublicKey != "" {
		liqpayProvider, err := payments.NewLiqPayProvider(payments.LiqPayProviderConfig{
			PublicKey:   cfg.Payments.LiqPay.PublicKey,
			PrivateKey:  cfg.Payments.LiqPay.PrivateKey,
			CheckoutURL: cfg.Payments.LiqPay.CheckoutURL,
			Sandbox:     cfg.Payments.LiqPay.Sandbox,
			Logger:      observability.EventLogger(logger.Named("liqpay")),
			Clock:       time.Now,
		})
		if err != nil {
			return nil, err
		}
		providers["liqpay"] = liqpayProvider
	}

	if cfg.Payments.Manual.InstructionsURL != "" {
		manualProvider, err := payments.NewManualProvider(payments.ManualProviderConfig{
			InstructionsURL: cfg.Payments.Manual.InstructionsURL,
			Clock:           time.Now,
		})
		if err != nil {
			return nil, err
		}
		providers["manual"] = manualProvider
	}

	return payments.NewManager(providers,
		payments.WithDefaultProvider(cfg.Payments.DefaultProvider),
		payments.WithCurrencyRoutes(cfg.Payments.CurrencyRoutes),
	)
}

// newEventPublisher returns a no-op publisher when neither Pub/Sub nor Kafka is configured.
func newEventPublisher(ctx context.Context, cfg config.Config) (services.OrderEventPublisher, func() error, error) {
	noop := func() error { return nil }

	switch {
	case strings.TrimSpace(cfg.PubSub.Topic) != "":
		client, err := pubsub.NewClient(ctx, cfg.PubSub.ProjectID)
		if err != nil {
			return nil, noop, fmt.Errorf("pubsub client: %w", err)
		}
		publisher, err := events.NewPubSubPublisher(client.Topic(cfg.PubSub.Topic))
		if err != nil {
			_ = client.Close()
			return nil, noop, err
		}
		return publisher, func() error {
			publisher.Stop()
			return client.Close()
		}, nil
	case len(cfg.Kafka.Brokers) > 0:
		publisher, err := events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			return nil, noop, err
		}
		return publisher, publisher.Close, nil
	default:
		return nil, noop, nil
	}
}

func dependencyChecks(fetcher *secrets.Fetcher, client *redis.Client) []repositories.DependencyCheck {
	var checks []repositories.DependencyCheck
	if client != nil {
		checks = append(checks, repositories.DependencyCheck{
			Name:    "redis",
			Timeout: time.Second,
			Check: func(ctx context.Context) error {
				return client.Ping(ctx).Err()
			},
		})
	}
	if fetcher != nil {
		const secretHealthReference = "secret://system/healthz?version=latest"
		checks = append(checks, repositories.DependencyCheck{
			Name:    "secretManager",
			Timeout: time.Second,
			Check: func(ctx context.Context) error {
				// A missing probe secret still proves Secret Manager answered.
				if _, err := fetcher.Resolve(ctx, secretHealthReference); err != nil && !errors.Is(err, secrets.ErrNotFound) {
					return err
				}
				return nil
			},
		})
	}
	return checks
}

