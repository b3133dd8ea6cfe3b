// Command api serves the order pipeline: carts, checkout, order lookup, payment notifications and
// the internal stale order reaper.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/di"
	"github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/handlers"
	"github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/platform/auth"
	"github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/platform/config"
	pfirestore "github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/platform/firestore"
	"github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/platform/idempotency"
	"github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/platform/observability"
	"github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/services"
)

const (
	meterName       = "purity-fashion-studio/api"
	shutdownTimeout = 10 * time.Second
)

func main() {
	logger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err = run(ctx, logger.Named("api"))
	stop()
	if err != nil {
		logger.Error("api exited", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
	_ = logger.Sync()
}

// run wires every dependency, serves until ctx is cancelled and then drains in reverse order.
func run(ctx context.Context, logger *zap.Logger) error {
	startedAt := time.Now().UTC()
	ctx = observability.WithLogger(ctx, logger)

	raw, err := config.EnvironmentValues()
	if err != nil {
		return fmt.Errorf("read environment: %w", err)
	}
	env := envValues(raw)

	fetcher, err := openSecretFetcher(ctx, logger, env)
	if err != nil {
		return fmt.Errorf("secret fetcher: %w", err)
	}
	defer closeWith(logger, "secret fetcher", fetcher.Close)

	cfg, err := config.Load(ctx,
		config.WithSecretResolver(config.SecretResolverFunc(fetcher.Resolve)),
		config.WithRequiredSecrets(requiredSecrets(env)...),
	)
	if err != nil {
		var missing *config.MissingSecretsError
		if errors.As(err, &missing) {
			logger.Error("missing required secrets", zap.Strings("secrets", missing.RedactedNames()))
		}
		return fmt.Errorf("load configuration: %w", err)
	}

	var redisClient *redis.Client
	if addr := strings.TrimSpace(cfg.Redis.Addr); addr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer closeWith(logger, "redis", redisClient.Close)
	}

	var firestoreProvider *pfirestore.Provider
	if cfg.Storage.Backend == config.StorageFirestore {
		firestoreProvider = pfirestore.NewProvider(cfg.Firestore)
		defer closeWith(logger, "firestore", func() error {
			closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return firestoreProvider.Close(closeCtx)
		})
	}

	registry, err := openRegistry(ctx, cfg, firestoreProvider, dependencyChecks(fetcher, redisClient))
	if err != nil {
		return fmt.Errorf("order storage %q: %w", cfg.Storage.Backend, err)
	}
	cartStore, err := newCartStore(cfg, redisClient)
	if err != nil {
		return fmt.Errorf("cart store: %w", err)
	}
	paymentManager, err := newPaymentManager(cfg, logger.Named("payments"))
	if err != nil {
		return fmt.Errorf("payment manager: %w", err)
	}
	publisher, closePublisher, err := newEventPublisher(ctx, cfg)
	if err != nil {
		return fmt.Errorf("order event publisher: %w", err)
	}
	defer closeWith(logger, "order event publisher", closePublisher)

	buildInfo := buildInfoFromEnv(env, cfg.Security.Environment, startedAt)
	container, err := di.NewContainer(ctx, cfg, registry, di.Infrastructure{
		CartStore: cartStore,
		Payments:  paymentManager,
		Events:    publisher,
		Meter:     otel.GetMeterProvider().Meter(meterName),
		Logger:    logger,
		Build:     buildInfo,
		Clock:     time.Now,
	})
	if err != nil {
		return fmt.Errorf("services: %w", err)
	}
	defer closeWith(logger, "order storage", func() error {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return container.Close(closeCtx)
	})

	idempotencyStore, err := newIdempotencyStore(redisClient, firestoreProvider)
	if err != nil {
		return fmt.Errorf("idempotency store: %w", err)
	}
	sweeper := idempotency.NewSweeper(idempotencyStore, cfg.Idempotency.CleanupInterval, cfg.Idempotency.CleanupBatchSize, logger.Named("idempotency"))
	sweeper.Start(ctx)
	defer sweeper.Stop()

	routes, err := routerOptions(ctx, logger, cfg, container.Services, paymentManager.Has("manual"), buildInfo)
	if err != nil {
		return err
	}
	routes = append(routes, handlers.WithGroupMiddleware(handlers.GroupCheckout, idempotency.Middleware(
		idempotencyStore,
		idempotency.WithHeader(cfg.Idempotency.Header),
		idempotency.WithTTL(cfg.Idempotency.TTL),
		idempotency.WithOptionalKey(),
		idempotency.WithLogger(observability.NewPrintfAdapter(logger.Named("idempotency"))),
	)))

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      otelhttp.NewHandler(handlers.NewRouter(routes...), "api", otelhttp.WithMeterProvider(otel.GetMeterProvider())),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	return serve(ctx, logger.Named("http"), server,
		zap.String("storage", cfg.Storage.Backend),
		zap.Strings("providers", paymentManager.Providers()),
	)
}

func routerOptions(ctx context.Context, logger *zap.Logger, cfg config.Config, svc di.Services, manualEnabled bool, build services.BuildInfo) ([]handlers.Option, error) {
	projectID := traceProjectID(cfg)
	httpLogger := logger.Named("http")
	authLogger := logger.Named("auth")

	var webhookOpts []handlers.WebhookOption
	if manualEnabled {
		webhookOpts = append(webhookOpts, handlers.WithProviderMiddleware("manual", manualCallbackGuard(authLogger, cfg.Security.HMAC)))
	}

	opts := []handlers.Option{
		handlers.WithMiddlewares(
			observability.InjectLoggerMiddleware(httpLogger),
			observability.TraceMiddleware(projectID),
			observability.RecoveryMiddleware(httpLogger),
			observability.RequestLoggerMiddleware(projectID),
		),
		handlers.WithHealthHandlers(handlers.NewHealthHandlers(
			handlers.WithHealthBuildInfo(build),
			handlers.WithHealthSystemService(svc.System),
		)),
		handlers.WithGroup(handlers.GroupCheckout, handlers.NewCheckoutHandlers(svc.Checkout).Routes),
		handlers.WithGroup(handlers.GroupCart, handlers.NewCartHandlers(svc.Cart).Routes),
		handlers.WithGroup(handlers.GroupOrders, handlers.NewOrderHandlers(svc.Orders, handlers.WithLookupRateLimit(cfg.RateLimits.LookupPerMinute)).Routes),
		handlers.WithGroup(handlers.GroupWebhooks, handlers.NewWebhookHandlers(svc.Payments, svc.Reconciler, webhookOpts...).Routes),
		handlers.WithGroup(handlers.GroupInternal, handlers.NewInternalOrderHandlers(svc.Orders, cfg.Checkout.StalePendingAge).Routes),
	}

	if strings.TrimSpace(cfg.Firebase.ProjectID) != "" {
		verifier, err := auth.NewFirebaseVerifier(ctx, cfg.Firebase)
		if err != nil {
			return nil, fmt.Errorf("firebase verifier: %w", err)
		}
		admin := handlers.NewAdminOrderHandlers(auth.NewAuthenticator(verifier), svc.Orders)
		opts = append(opts, handlers.WithGroup(handlers.GroupAdmin, admin.Routes))
	} else {
		authLogger.Warn("auth: firebase project not configured; admin routes are disabled")
	}

	opts = append(opts, handlers.WithGroupMiddleware(handlers.GroupInternal, serviceTokenGuard(authLogger, cfg.Security.OIDC)))
	return opts, nil
}

// serve blocks until ctx is cancelled or the listener fails, then shuts the server down.
func serve(ctx context.Context, logger *zap.Logger, server *http.Server, fields ...zap.Field) error {
	logger = logger.With(zap.String("addr", server.Addr))
	listenErr := make(chan error, 1)
	go func() {
		logger.Info("order pipeline api listening", fields...)
		listenErr <- server.ListenAndServe()
	}()

	select {
	case err := <-listenErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutdown signal received; draining requests")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	return nil
}

func closeWith(logger *zap.Logger, name string, closeFn func() error) {
	if err := closeFn(); err != nil {
		logger.Warn(name+" close error", zap.Error(err))
	}
}

func buildInfoFromEnv(env envValues, environment string, started time.Time) services.BuildInfo {
	return services.BuildInfo{
		Version:     env.getOr("dev", "API_BUILD_VERSION"),
		CommitSHA:   env.getOr("unknown", "API_BUILD_COMMIT_SHA"),
		Environment: firstNonEmpty(strings.TrimSpace(environment), "local"),
		StartedAt:   started,
	}
}

func traceProjectID(cfg config.Config) string {
	return firstNonEmpty(strings.TrimSpace(cfg.Firebase.ProjectID), strings.TrimSpace(cfg.Firestore.ProjectID))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
