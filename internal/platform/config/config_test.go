package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func baseEnv() map[string]string {
	return map[string]string{
		"API_SERVER_PUBLIC_BASE_URL":           "https://api.purity.test",
		"API_PAYMENTS_MANUAL_INSTRUCTIONS_URL": "https://purity.test/pay/bank",
		"API_CHECKOUT_SUCCESS_URL":             "https://purity.test/checkout/success?order={orderNumber}",
		"API_CHECKOUT_CANCEL_URL":              "https://purity.test/checkout/cancel",
	}
}

func withEnv(extra map[string]string) map[string]string {
	env := baseEnv()
	for k, v := range extra {
		env[k] = v
	}
	return env
}

func TestLoadWithDefaults(t *testing.T) {
	cfg, err := Load(context.Background(), WithEnvMap(baseEnv()), WithoutSystemEnv(), WithEnvFile(""))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("expected default port 8080, got %s", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 15*time.Second {
		t.Errorf("unexpected read timeout: %s", cfg.Server.ReadTimeout)
	}
	if cfg.Storage.Backend != StorageMemory {
		t.Errorf("expected memory backend by default, got %s", cfg.Storage.Backend)
	}
	if cfg.Checkout.OrderNumberPrefix != "PFS" {
		t.Errorf("unexpected order prefix %s", cfg.Checkout.OrderNumberPrefix)
	}
	if cfg.Checkout.MaxNumberAttempts != defaultMaxNumberAttempts {
		t.Errorf("unexpected max attempts %d", cfg.Checkout.MaxNumberAttempts)
	}
	if cfg.Checkout.StalePendingAge != 24*time.Hour {
		t.Errorf("unexpected stale pending age %s", cfg.Checkout.StalePendingAge)
	}
	if len(cfg.Checkout.SupportedCurrencies) != 0 {
		t.Errorf("expected no configured currencies, got %v", cfg.Checkout.SupportedCurrencies)
	}
	if cfg.Redis.Addr != "" || cfg.Redis.CartTTL != defaultCartTTL {
		t.Errorf("unexpected redis defaults %#v", cfg.Redis)
	}
	if cfg.RateLimits.LookupPerMinute != defaultLookupPerMinute {
		t.Errorf("unexpected lookup rate limit: %d", cfg.RateLimits.LookupPerMinute)
	}
	if cfg.Security.Environment != "local" {
		t.Errorf("expected default security environment local, got %s", cfg.Security.Environment)
	}
	if cfg.Security.OIDC.JWKSURL != defaultOIDCJWKSURL {
		t.Errorf("expected default jwks url %s, got %s", defaultOIDCJWKSURL, cfg.Security.OIDC.JWKSURL)
	}
	if len(cfg.Security.OIDC.Issuers) != 2 {
		t.Errorf("expected default issuers, got %v", cfg.Security.OIDC.Issuers)
	}
	if cfg.Security.HMAC.SignatureHeader != defaultHMACSignatureHeader {
		t.Errorf("expected default signature header, got %s", cfg.Security.HMAC.SignatureHeader)
	}
	if cfg.Idempotency.Header != defaultIdempotencyHeader {
		t.Errorf("expected default idempotency header, got %s", cfg.Idempotency.Header)
	}
	if cfg.Idempotency.TTL != defaultIdempotencyTTL {
		t.Errorf("unexpected default idempotency ttl: %s", cfg.Idempotency.TTL)
	}
}

func TestLoadWithOverridesAndSecrets(t *testing.T) {
	env := withEnv(map[string]string{
		"API_SERVER_PORT":                    "9090",
		"API_SERVER_IDLE_TIMEOUT":            "2m",
		"API_FIREBASE_PROJECT_ID":            "purity-prod",
		"API_STORAGE_BACKEND":                "Postgres",
		"API_POSTGRES_DSN":                   "secret://postgres/dsn",
		"API_POSTGRES_MAX_CONNS":             "20",
		"API_POSTGRES_MIGRATE_ON_START":      "true",
		"API_REDIS_ADDR":                     "redis:6379",
		"API_REDIS_PASSWORD":                 "secret://redis/password",
		"API_REDIS_CART_TTL":                 "48h",
		"API_PUBSUB_ORDER_TOPIC":             "orders",
		"API_PAYMENTS_DEFAULT_PROVIDER":      "LiqPay",
		"API_PAYMENTS_CURRENCY_ROUTES":       "UAH=liqpay,EUR=stripe",
		"API_PAYMENTS_STRIPE_API_KEY":        "secret://stripe/api",
		"API_PAYMENTS_STRIPE_WEBHOOK_SECRET": "secret://stripe/webhook",
		"API_PAYMENTS_LIQPAY_PUBLIC_KEY":     "sandbox_i000",
		"API_PAYMENTS_LIQPAY_PRIVATE_KEY":    "secret://liqpay/private",
		"API_PAYMENTS_LIQPAY_SANDBOX":        "yes",
		"API_CHECKOUT_ORDER_PREFIX":          "pur",
		"API_CHECKOUT_CURRENCIES":            "uah, eur",
		"API_CHECKOUT_STALE_PENDING_AGE":     "6h",
		"API_SECURITY_ENVIRONMENT":           "prod",
		"API_SECURITY_OIDC_AUDIENCES":        "prod=https://api.purity.test,stg=https://stg.purity.test",
		"API_SECURITY_HMAC_SECRETS":          "manual=secret://hmac/manual,ops=ops-secret",
		"API_SECURITY_HMAC_CLOCK_SKEW":       "3m",
		"API_IDEMPOTENCY_HEADER":             "X-Idem-Key",
		"API_IDEMPOTENCY_TTL":                "48h",
	})

	secrets := map[string]string{
		"secret://postgres/dsn":   "postgres://orders:pw@db:5432/orders",
		"secret://redis/password": "redis-pw",
		"secret://stripe/api":     "sk_test",
		"secret://stripe/webhook": "whsec",
		"secret://liqpay/private": "liqpay-private",
		"secret://hmac/manual":    "manual-hmac",
	}

	resolver := SecretResolverFunc(func(_ context.Context, ref string) (string, error) {
		if v, ok := secrets[ref]; ok {
			return v, nil
		}
		return "", &SecretError{Ref: ref, Err: errSecretResolverNotConfigured}
	})

	cfg, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""), WithSecretResolver(resolver))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "9090" || cfg.Server.IdleTimeout != 2*time.Minute {
		t.Errorf("unexpected server config %#v", cfg.Server)
	}
	if cfg.Storage.Backend != StoragePostgres {
		t.Errorf("expected postgres backend, got %s", cfg.Storage.Backend)
	}
	if cfg.Postgres.DSN != "postgres://orders:pw@db:5432/orders" || cfg.Postgres.MaxConns != 20 || !cfg.Postgres.MigrateOnStart {
		t.Errorf("unexpected postgres config %#v", cfg.Postgres)
	}
	if cfg.Redis.Password != "redis-pw" || cfg.Redis.CartTTL != 48*time.Hour {
		t.Errorf("unexpected redis config %#v", cfg.Redis)
	}
	if cfg.PubSub.ProjectID != "purity-prod" {
		t.Errorf("expected pubsub project to default to firebase project, got %s", cfg.PubSub.ProjectID)
	}
	if cfg.Payments.DefaultProvider != "liqpay" {
		t.Errorf("unexpected default provider %s", cfg.Payments.DefaultProvider)
	}
	if cfg.Payments.CurrencyRoutes["uah"] != "liqpay" {
		t.Errorf("unexpected currency routes %v", cfg.Payments.CurrencyRoutes)
	}
	if cfg.Payments.Stripe.APIKey != "sk_test" || cfg.Payments.Stripe.WebhookSecret != "whsec" {
		t.Errorf("expected resolved stripe secrets, got %#v", cfg.Payments.Stripe)
	}
	if cfg.Payments.LiqPay.PrivateKey != "liqpay-private" || !cfg.Payments.LiqPay.Sandbox {
		t.Errorf("unexpected liqpay config %#v", cfg.Payments.LiqPay)
	}
	if cfg.Checkout.OrderNumberPrefix != "PUR" {
		t.Errorf("expected uppercase prefix, got %s", cfg.Checkout.OrderNumberPrefix)
	}
	if len(cfg.Checkout.SupportedCurrencies) != 2 || cfg.Checkout.SupportedCurrencies[0] != "UAH" {
		t.Errorf("unexpected currencies %v", cfg.Checkout.SupportedCurrencies)
	}
	if cfg.Checkout.StalePendingAge != 6*time.Hour {
		t.Errorf("unexpected stale age %s", cfg.Checkout.StalePendingAge)
	}
	if cfg.Security.OIDC.Audience != "https://api.purity.test" {
		t.Errorf("expected audience selected by environment, got %s", cfg.Security.OIDC.Audience)
	}
	if cfg.Security.HMAC.Secrets["manual"] != "manual-hmac" {
		t.Errorf("expected resolved manual hmac secret, got %s", cfg.Security.HMAC.Secrets["manual"])
	}
	if cfg.Security.HMAC.Secrets["ops"] != "ops-secret" {
		t.Errorf("expected plain ops secret, got %s", cfg.Security.HMAC.Secrets["ops"])
	}
	if cfg.Security.HMAC.ClockSkew != 3*time.Minute {
		t.Errorf("unexpected clock skew %s", cfg.Security.HMAC.ClockSkew)
	}
	if cfg.Idempotency.Header != "X-Idem-Key" || cfg.Idempotency.TTL != 48*time.Hour {
		t.Errorf("unexpected idempotency config %#v", cfg.Idempotency)
	}
}

func TestLoadDotEnvFallback(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env.test")
	content := "API_SERVER_PORT=7070\n" +
		"export API_SERVER_PUBLIC_BASE_URL=\"https://api.purity.test\"\n" +
		"API_PAYMENTS_MANUAL_INSTRUCTIONS_URL=https://purity.test/pay\n" +
		"# comment\n" +
		"API_CHECKOUT_SUCCESS_URL=https://purity.test/ok\n" +
		"API_CHECKOUT_CANCEL_URL=https://purity.test/cancel\n"
	if err := os.WriteFile(envPath, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write dotenv file: %v", err)
	}

	cfg, err := Load(context.Background(), WithEnvFile(envPath), WithoutSystemEnv())
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "7070" {
		t.Errorf("expected port from dotenv 7070, got %s", cfg.Server.Port)
	}
	if cfg.Server.PublicBaseURL != "https://api.purity.test" {
		t.Errorf("expected quoted export to be unwrapped, got %s", cfg.Server.PublicBaseURL)
	}
}

func TestLoadMissingRequired(t *testing.T) {
	_, err := Load(context.Background(), WithEnvMap(map[string]string{}), WithoutSystemEnv(), WithEnvFile(""))
	var validation *ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	fields := map[string]bool{}
	for _, f := range validation.Fields() {
		fields[f] = true
	}
	for _, want := range []string{"Server.PublicBaseURL", "Payments", "Checkout.SuccessURL", "Checkout.CancelURL"} {
		if !fields[want] {
			t.Errorf("expected %s in missing fields %v", want, validation.Fields())
		}
	}
}

func TestLoadValidatesBackendRequirements(t *testing.T) {
	cases := map[string]struct {
		env  map[string]string
		want string
	}{
		"unknown backend":      {env: map[string]string{"API_STORAGE_BACKEND": "mysql"}, want: "Storage.Backend"},
		"postgres without dsn": {env: map[string]string{"API_STORAGE_BACKEND": "postgres"}, want: "Postgres.DSN"},
		"firestore no project": {env: map[string]string{"API_STORAGE_BACKEND": "firestore"}, want: "Firestore.ProjectID"},
		"kafka without topic":  {env: map[string]string{"API_KAFKA_BROKERS": "kafka:9092"}, want: "Kafka.Topic"},
		"two event backends": {env: map[string]string{
			"API_KAFKA_BROKERS":      "kafka:9092",
			"API_KAFKA_ORDER_TOPIC":  "orders",
			"API_PUBSUB_PROJECT_ID":  "p",
			"API_PUBSUB_ORDER_TOPIC": "orders",
		}, want: "Kafka.Brokers"},
		"stripe without webhook secret": {env: map[string]string{"API_PAYMENTS_STRIPE_API_KEY": "sk"}, want: "Payments.Stripe.WebhookSecret"},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(context.Background(), WithEnvMap(withEnv(tc.env)), WithoutSystemEnv(), WithEnvFile(""))
			var validation *ValidationError
			if !errors.As(err, &validation) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			found := false
			for _, f := range validation.Fields() {
				if f == tc.want {
					found = true
				}
			}
			if !found {
				t.Fatalf("expected %s in %v", tc.want, validation.Fields())
			}
		})
	}
}

func TestLoadSecretResolverError(t *testing.T) {
	env := withEnv(map[string]string{
		"API_PAYMENTS_STRIPE_API_KEY":        "secret://missing",
		"API_PAYMENTS_STRIPE_WEBHOOK_SECRET": "whsec",
	})

	_, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	var secretErr *SecretError
	if !errors.As(err, &secretErr) {
		t.Fatalf("expected SecretError, got %T", err)
	}
	if secretErr.Ref != "secret://missing" {
		t.Errorf("unexpected secret ref %s", secretErr.Ref)
	}
}

func TestEnvironmentValuesMergesSources(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env.test")
	content := "API_FIREBASE_PROJECT_ID=dot-project\nAPI_SECRET_FALLBACK_FILE=.dot.local\n"
	if err := os.WriteFile(envPath, []byte(content), 0o600); err != nil {
		t.Fatalf("failed writing env file: %v", err)
	}

	t.Setenv("API_FIREBASE_PROJECT_ID", "os-project")
	t.Setenv("API_SECRET_PROJECT_IDS", "prod=project-prod")

	overrides := map[string]string{
		"API_FIREBASE_PROJECT_ID": "override-project",
	}

	values, err := EnvironmentValues(WithEnvFile(envPath), WithEnvMap(overrides))
	if err != nil {
		t.Fatalf("EnvironmentValues returned error: %v", err)
	}

	if got := values["API_FIREBASE_PROJECT_ID"]; got != "override-project" {
		t.Fatalf("expected override project, got %s", got)
	}
	if got := values["API_SECRET_FALLBACK_FILE"]; got != ".dot.local" {
		t.Fatalf("expected dotenv fallback file, got %s", got)
	}
	if got := values["API_SECRET_PROJECT_IDS"]; got != "prod=project-prod" {
		t.Fatalf("expected system env project map, got %s", got)
	}
}

func TestLoadMissingRequiredSecrets(t *testing.T) {
	_, err := Load(context.Background(),
		WithEnvMap(baseEnv()),
		WithoutSystemEnv(),
		WithEnvFile(""),
		WithRequiredSecrets("Payments.LiqPay.PrivateKey"),
	)
	var missing *MissingSecretsError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingSecretsError, got %T", err)
	}
	expectedRedacted := redactSecretName("Payments.LiqPay.PrivateKey")
	if got := missing.RedactedNames(); len(got) != 1 || got[0] != expectedRedacted {
		t.Fatalf("unexpected redacted names %v", got)
	}
	if names := missing.Names(); len(names) != 1 || names[0] != "Payments.LiqPay.PrivateKey" {
		t.Fatalf("unexpected names %v", names)
	}
	if strings.Contains(err.Error(), "LiqPay") {
		t.Fatalf("error must not leak field names: %s", err)
	}
}

func TestLoadSupportsLegacySecretScheme(t *testing.T) {
	env := withEnv(map[string]string{
		"API_PAYMENTS_LIQPAY_PUBLIC_KEY":  "public",
		"API_PAYMENTS_LIQPAY_PRIVATE_KEY": "sm://liqpay/private",
	})

	resolver := SecretResolverFunc(func(_ context.Context, ref string) (string, error) {
		if ref == "secret://liqpay/private" {
			return "legacy-secret", nil
		}
		return "", &SecretError{Ref: ref, Err: errors.New("not found")}
	})

	cfg, err := Load(context.Background(),
		WithEnvMap(env),
		WithoutSystemEnv(),
		WithEnvFile(""),
		WithSecretResolver(resolver),
	)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Payments.LiqPay.PrivateKey != "legacy-secret" {
		t.Fatalf("expected legacy secret, got %s", cfg.Payments.LiqPay.PrivateKey)
	}
}

func TestParseDotEnv(t *testing.T) {
	input := strings.Join([]string{
		"# payments",
		"",
		"API_PAYMENTS_LIQPAY_PUBLIC_KEY = sandbox_i000",
		"export API_CHECKOUT_ORDER_PREFIX='pfs'",
		`API_CHECKOUT_SUCCESS_URL="https://purity.test/ok?order={orderNumber}"`,
		"API_SECURITY_HMAC_SECRETS=manual=abc,ops=def",
		"not a pair",
		"=orphan",
	}, "\n")

	values, err := parseDotEnv(strings.NewReader(input))
	if err != nil {
		t.Fatalf("parseDotEnv: %v", err)
	}
	want := map[string]string{
		"API_PAYMENTS_LIQPAY_PUBLIC_KEY": "sandbox_i000",
		"API_CHECKOUT_ORDER_PREFIX":      "pfs",
		"API_CHECKOUT_SUCCESS_URL":       "https://purity.test/ok?order={orderNumber}",
		"API_SECURITY_HMAC_SECRETS":      "manual=abc,ops=def",
	}
	if len(values) != len(want) {
		t.Fatalf("expected %d values, got %v", len(want), values)
	}
	for key, value := range want {
		if values[key] != value {
			t.Errorf("%s: expected %q, got %q", key, value, values[key])
		}
	}
}

func TestSourceLayering(t *testing.T) {
	env := source{layers: []map[string]string{
		{"API_SERVER_PORT": "", "API_REDIS_DB": "x"},
		{"API_SERVER_PORT": "9000", "API_PAYMENTS_CURRENCY_ROUTES": "UAH=LiqPay, eur= ,=stripe,USD=stripe"},
	}}

	if got := env.str("API_SERVER_PORT", "8080"); got != "8080" {
		t.Errorf("empty value in a higher layer should fall back to default, got %s", got)
	}
	if got := env.integer("API_REDIS_DB", 3); got != 3 {
		t.Errorf("unparseable integer should fall back, got %d", got)
	}
	routes := env.pairs("API_PAYMENTS_CURRENCY_ROUTES")
	if len(routes) != 2 || routes["uah"] != "LiqPay" || routes["usd"] != "stripe" {
		t.Errorf("unexpected routes %v", routes)
	}
	if flat := env.flatten(); flat["API_SERVER_PORT"] != "" {
		t.Errorf("expected top layer to win when flattening, got %q", flat["API_SERVER_PORT"])
	}
}
