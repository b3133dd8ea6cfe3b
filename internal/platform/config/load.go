package config

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// Option customises Load and EnvironmentValues.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile         string
	envMap          map[string]string
	useSystemEnv    bool
	secrets         SecretResolver
	requiredSecrets []string
}

func newLoaderOptions(opts []Option) loaderOptions {
	options := loaderOptions{envFile: defaultEnvFile, useSystemEnv: true}
	for _, opt := range opts {
		opt(&options)
	}
	return options
}

// WithEnvFile overrides the dotenv path. An empty path disables the file.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) { o.envFile = path }
}

// WithEnvMap layers values above the process environment.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) { o.envMap = values }
}

// WithoutSystemEnv ignores the process environment.
func WithoutSystemEnv() Option {
	return func(o *loaderOptions) { o.useSystemEnv = false }
}

// WithSecretResolver sets the resolver for secret:// references.
func WithSecretResolver(resolver SecretResolver) Option {
	return func(o *loaderOptions) { o.secrets = resolver }
}

// WithRequiredSecrets names secret-bearing fields that must resolve to a non-empty value, using
// the loader's field names such as "Payments.Stripe.APIKey" or "Security.HMAC.Secrets[manual]".
func WithRequiredSecrets(names ...string) Option {
	return func(o *loaderOptions) { o.requiredSecrets = append(o.requiredSecrets, names...) }
}

// EnvironmentValues returns the merged environment Load would see (dotenv, then OS environment,
// then WithEnvMap). The entrypoint uses it to configure the secret fetcher before calling Load.
func EnvironmentValues(opts ...Option) (map[string]string, error) {
	options := newLoaderOptions(opts)
	dotenv, err := readDotEnv(options.envFile)
	if err != nil {
		return nil, err
	}
	return newSource(options, dotenv).flatten(), nil
}

// Load reads the configuration, resolves secret references and validates the result.
func Load(ctx context.Context, opts ...Option) (Config, error) {
	options := newLoaderOptions(opts)
	dotenv, err := readDotEnv(options.envFile)
	if err != nil {
		return Config{}, err
	}

	cfg := read(newSource(options, dotenv))
	applyDerivedDefaults(&cfg)

	secrets := &secretSet{resolver: options.secrets, values: make(map[string]string)}
	if err := resolveSecrets(ctx, &cfg, secrets); err != nil {
		return Config{}, err
	}
	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	if missing := secrets.missing(options.requiredSecrets); missing != nil {
		return Config{}, missing
	}
	return cfg, nil
}

func read(env source) Config {
	return Config{
		Server: ServerConfig{
			Port:          env.str("API_SERVER_PORT", defaultPort),
			ReadTimeout:   env.duration("API_SERVER_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout:  env.duration("API_SERVER_WRITE_TIMEOUT", defaultWriteTimeout),
			IdleTimeout:   env.duration("API_SERVER_IDLE_TIMEOUT", defaultIdleTimeout),
			PublicBaseURL: env.str("API_SERVER_PUBLIC_BASE_URL", ""),
		},
		Firebase: FirebaseConfig{
			ProjectID:       env.str("API_FIREBASE_PROJECT_ID", ""),
			CredentialsFile: env.str("API_FIREBASE_CREDENTIALS_FILE", ""),
		},
		Storage: StorageConfig{
			Backend:         env.lower("API_STORAGE_BACKEND", defaultStorageBackend),
			CatalogSeedFile: env.str("API_STORAGE_CATALOG_SEED_FILE", ""),
		},
		Firestore: FirestoreConfig{
			ProjectID:    env.str("API_FIRESTORE_PROJECT_ID", ""),
			EmulatorHost: env.str("API_FIRESTORE_EMULATOR_HOST", ""),
		},
		Postgres: PostgresConfig{
			DSN:            env.str("API_POSTGRES_DSN", ""),
			MaxConns:       env.integer("API_POSTGRES_MAX_CONNS", defaultPostgresMaxConns),
			MigrateOnStart: env.flag("API_POSTGRES_MIGRATE_ON_START", false),
		},
		Redis: RedisConfig{
			Addr:      env.str("API_REDIS_ADDR", ""),
			Password:  env.str("API_REDIS_PASSWORD", ""),
			DB:        env.integer("API_REDIS_DB", 0),
			CartTTL:   env.duration("API_REDIS_CART_TTL", defaultCartTTL),
			KeyPrefix: env.str("API_REDIS_KEY_PREFIX", defaultCartKeyPrefix),
		},
		PubSub: PubSubConfig{
			ProjectID: env.str("API_PUBSUB_PROJECT_ID", ""),
			Topic:     env.str("API_PUBSUB_ORDER_TOPIC", ""),
		},
		Kafka: KafkaConfig{
			Brokers: env.list("API_KAFKA_BROKERS"),
			Topic:   env.str("API_KAFKA_ORDER_TOPIC", ""),
		},
		Payments: PaymentsConfig{
			DefaultProvider: env.lower("API_PAYMENTS_DEFAULT_PROVIDER", ""),
			CurrencyRoutes:  env.pairs("API_PAYMENTS_CURRENCY_ROUTES"),
			Stripe: StripeConfig{
				APIKey:        env.str("API_PAYMENTS_STRIPE_API_KEY", ""),
				WebhookSecret: env.str("API_PAYMENTS_STRIPE_WEBHOOK_SECRET", ""),
				AccountID:     env.str("API_PAYMENTS_STRIPE_ACCOUNT_ID", ""),
			},
			LiqPay: LiqPayConfig{
				PublicKey:   env.str("API_PAYMENTS_LIQPAY_PUBLIC_KEY", ""),
				PrivateKey:  env.str("API_PAYMENTS_LIQPAY_PRIVATE_KEY", ""),
				CheckoutURL: env.str("API_PAYMENTS_LIQPAY_CHECKOUT_URL", ""),
				Sandbox:     env.flag("API_PAYMENTS_LIQPAY_SANDBOX", false),
			},
			Manual: ManualConfig{
				InstructionsURL: env.str("API_PAYMENTS_MANUAL_INSTRUCTIONS_URL", ""),
			},
		},
		Checkout: CheckoutConfig{
			OrderNumberPrefix:   strings.ToUpper(env.str("API_CHECKOUT_ORDER_PREFIX", defaultOrderNumberPrefix)),
			SupportedCurrencies: upperAll(env.list("API_CHECKOUT_CURRENCIES")),
			SuccessURL:          env.str("API_CHECKOUT_SUCCESS_URL", ""),
			CancelURL:           env.str("API_CHECKOUT_CANCEL_URL", ""),
			MaxNumberAttempts:   env.integer("API_CHECKOUT_MAX_NUMBER_ATTEMPTS", defaultMaxNumberAttempts),
			ReconcileRetries:    env.integer("API_CHECKOUT_RECONCILE_RETRIES", defaultReconcileRetries),
			StalePendingAge:     env.duration("API_CHECKOUT_STALE_PENDING_AGE", defaultStalePendingAge),
		},
		RateLimits: RateLimitConfig{
			LookupPerMinute: env.integer("API_RATELIMIT_LOOKUP_PER_MIN", defaultLookupPerMinute),
		},
		Security: SecurityConfig{
			Environment: env.lower("API_SECURITY_ENVIRONMENT", defaultSecurityEnvironment),
			OIDC: OIDCConfig{
				JWKSURL:   env.str("API_SECURITY_OIDC_JWKS_URL", defaultOIDCJWKSURL),
				Audience:  env.str("API_SECURITY_OIDC_AUDIENCE", ""),
				Audiences: env.pairs("API_SECURITY_OIDC_AUDIENCES"),
				Issuers:   env.list("API_SECURITY_OIDC_ISSUERS"),
			},
			HMAC: HMACConfig{
				Secrets:         env.pairs("API_SECURITY_HMAC_SECRETS"),
				SignatureHeader: env.str("API_SECURITY_HMAC_HEADER_SIGNATURE", defaultHMACSignatureHeader),
				TimestampHeader: env.str("API_SECURITY_HMAC_HEADER_TIMESTAMP", defaultHMACTimestampHeader),
				NonceHeader:     env.str("API_SECURITY_HMAC_HEADER_NONCE", defaultHMACNonceHeader),
				ClockSkew:       env.duration("API_SECURITY_HMAC_CLOCK_SKEW", defaultHMACClockSkew),
				NonceTTL:        env.duration("API_SECURITY_HMAC_NONCE_TTL", defaultHMACNonceTTL),
			},
		},
		Idempotency: IdempotencyConfig{
			Header:           env.str("API_IDEMPOTENCY_HEADER", defaultIdempotencyHeader),
			TTL:              env.duration("API_IDEMPOTENCY_TTL", defaultIdempotencyTTL),
			CleanupInterval:  env.duration("API_IDEMPOTENCY_CLEANUP_INTERVAL", defaultIdempotencyInterval),
			CleanupBatchSize: env.integer("API_IDEMPOTENCY_CLEANUP_BATCH", defaultIdempotencyBatchSize),
		},
	}
}

// applyDerivedDefaults fills settings whose default depends on other settings.
func applyDerivedDefaults(cfg *Config) {
	if cfg.Firestore.ProjectID == "" {
		cfg.Firestore.ProjectID = cfg.Firebase.ProjectID
	}
	if cfg.PubSub.ProjectID == "" {
		cfg.PubSub.ProjectID = cfg.Firestore.ProjectID
	}

	oidc := &cfg.Security.OIDC
	if len(oidc.Issuers) == 0 {
		oidc.Issuers = append([]string(nil), defaultOIDCIssuers...)
	}
	if oidc.Audience == "" {
		oidc.Audience = oidc.Audiences[cfg.Security.Environment]
	}
}

func resolveSecrets(ctx context.Context, cfg *Config, secrets *secretSet) error {
	fields := map[string]*string{
		"Payments.Stripe.APIKey":        &cfg.Payments.Stripe.APIKey,
		"Payments.Stripe.WebhookSecret": &cfg.Payments.Stripe.WebhookSecret,
		"Payments.LiqPay.PrivateKey":    &cfg.Payments.LiqPay.PrivateKey,
		"Postgres.DSN":                  &cfg.Postgres.DSN,
		"Redis.Password":                &cfg.Redis.Password,
	}
	for name, value := range cfg.Security.HMAC.Secrets {
		resolved := value
		if err := secrets.resolve(ctx, fmt.Sprintf("Security.HMAC.Secrets[%s]", name), &resolved); err != nil {
			return err
		}
		cfg.Security.HMAC.Secrets[name] = resolved
	}

	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := secrets.resolve(ctx, name, fields[name]); err != nil {
			return err
		}
	}
	return nil
}
