// Package config loads the API's runtime settings from API_* environment variables, an optional
// .env file and Secret Manager references.
package config

import "time"

const (
	defaultEnvFile = ".env"

	defaultPort         = "8080"
	defaultReadTimeout  = 15 * time.Second
	defaultWriteTimeout = 30 * time.Second
	defaultIdleTimeout  = 120 * time.Second

	defaultStorageBackend   = StorageMemory
	defaultPostgresMaxConns = 10
	defaultCartTTL          = 7 * 24 * time.Hour
	defaultCartKeyPrefix    = "cart:"

	defaultOrderNumberPrefix = "PFS"
	defaultMaxNumberAttempts = 5
	defaultReconcileRetries  = 5
	defaultStalePendingAge   = 24 * time.Hour
	defaultLookupPerMinute   = 30

	defaultSecurityEnvironment = "local"
	defaultOIDCJWKSURL         = "https://www.googleapis.com/oauth2/v3/certs"
	defaultHMACSignatureHeader = "X-Signature"
	defaultHMACTimestampHeader = "X-Signature-Timestamp"
	defaultHMACNonceHeader     = "X-Signature-Nonce"
	defaultHMACClockSkew       = 5 * time.Minute
	defaultHMACNonceTTL        = 5 * time.Minute

	defaultIdempotencyHeader    = "Idempotency-Key"
	defaultIdempotencyTTL       = 24 * time.Hour
	defaultIdempotencyInterval  = time.Hour
	defaultIdempotencyBatchSize = 200
)

// Issuers accepted on service tokens when API_SECURITY_OIDC_ISSUERS is unset.
var defaultOIDCIssuers = []string{"https://accounts.google.com", "https://cloud.google.com/iap"}

// Order store backends accepted by API_STORAGE_BACKEND.
const (
	StorageMemory    = "memory"
	StorageFirestore = "firestore"
	StoragePostgres  = "postgres"
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Server      ServerConfig
	Firebase    FirebaseConfig
	Storage     StorageConfig
	Firestore   FirestoreConfig
	Postgres    PostgresConfig
	Redis       RedisConfig
	PubSub      PubSubConfig
	Kafka       KafkaConfig
	Payments    PaymentsConfig
	Checkout    CheckoutConfig
	RateLimits  RateLimitConfig
	Security    SecurityConfig
	Idempotency IdempotencyConfig
}

// ServerConfig configures HTTP server parameters.
type ServerConfig struct {
	Port          string
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
	IdleTimeout   time.Duration
	// PublicBaseURL is the externally reachable origin used to build provider callback URLs.
	PublicBaseURL string
}

// FirebaseConfig stores Firebase project settings used for staff authentication.
type FirebaseConfig struct {
	ProjectID       string
	CredentialsFile string
}

// StorageConfig selects the order store backend. CatalogSeedFile is a YAML price list loaded
// into the memory backend's catalog.
type StorageConfig struct {
	Backend         string
	CatalogSeedFile string
}

// FirestoreConfig stores database parameters.
type FirestoreConfig struct {
	ProjectID    string
	EmulatorHost string
}

// PostgresConfig configures the relational order store.
type PostgresConfig struct {
	DSN            string
	MaxConns       int
	MigrateOnStart bool
}

// RedisConfig configures cart session persistence. An empty Addr keeps carts in memory.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	CartTTL   time.Duration
	KeyPrefix string
}

// PubSubConfig configures order event publishing to Pub/Sub.
type PubSubConfig struct {
	ProjectID string
	Topic     string
}

// KafkaConfig configures order event publishing to Kafka.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// PaymentsConfig collects provider credentials and routing.
type PaymentsConfig struct {
	DefaultProvider string
	CurrencyRoutes  map[string]string
	Stripe          StripeConfig
	LiqPay          LiqPayConfig
	Manual          ManualConfig
}

// StripeConfig holds Stripe credentials.
type StripeConfig struct {
	APIKey        string
	WebhookSecret string
	AccountID     string
}

// LiqPayConfig holds LiqPay merchant keys.
type LiqPayConfig struct {
	PublicKey   string
	PrivateKey  string
	CheckoutURL string
	Sandbox     bool
}

// ManualConfig enables the bank transfer provider when InstructionsURL is set.
type ManualConfig struct {
	InstructionsURL string
}

// CheckoutConfig controls order creation and redirects.
type CheckoutConfig struct {
	OrderNumberPrefix   string
	SupportedCurrencies []string
	SuccessURL          string
	CancelURL           string
	MaxNumberAttempts   int
	ReconcileRetries    int
	StalePendingAge     time.Duration
}

// RateLimitConfig controls request throttling on public lookups.
type RateLimitConfig struct {
	LookupPerMinute int
}

// SecurityConfig groups server-to-server authentication settings.
type SecurityConfig struct {
	Environment string
	OIDC        OIDCConfig
	HMAC        HMACConfig
}

// OIDCConfig controls Google-signed token verification.
type OIDCConfig struct {
	JWKSURL   string
	Audience  string
	Audiences map[string]string
	Issuers   []string
}

// HMACConfig captures webhook signing expectations.
type HMACConfig struct {
	Secrets         map[string]string
	SignatureHeader string
	TimestampHeader string
	NonceHeader     string
	ClockSkew       time.Duration
	NonceTTL        time.Duration
}

// IdempotencyConfig controls idempotency middleware behaviour.
type IdempotencyConfig struct {
	Header           string
	TTL              time.Duration
	CleanupInterval  time.Duration
	CleanupBatchSize int
}
