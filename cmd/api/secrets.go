package main

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/platform/config"
	"github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/platform/secrets"
)

// envValues is the merged environment as returned by config.EnvironmentValues.
type envValues map[string]string

func (e envValues) get(key string) string {
	return strings.TrimSpace(e[key])
}

func (e envValues) getOr(fallback string, keys ...string) string {
	for _, key := range keys {
		if value := e.get(key); value != "" {
			return value
		}
	}
	return fallback
}

// pairs reads "k=v,k2=v2"; entries without a key or value are dropped.
func (e envValues) pairs(key string) map[string]string {
	out := make(map[string]string)
	for entry := range strings.SplitSeq(e[key], ",") {
		k, v, ok := strings.Cut(entry, "=")
		k, v = strings.TrimSpace(k), strings.TrimSpace(v)
		if ok && k != "" && v != "" {
			out[k] = v
		}
	}
	return out
}

func openSecretFetcher(ctx context.Context, logger *zap.Logger, env envValues) (*secrets.Fetcher, error) {
	opts := []secrets.Option{
		secrets.WithEnvironment(strings.ToLower(env.getOr("local", "API_SECURITY_ENVIRONMENT"))),
		secrets.WithLogger(logger.Named("secrets")),
		secrets.WithFallbackFile(env.getOr(".secrets.local", "API_SECRET_FALLBACK_FILE")),
		secrets.WithMeter(otel.GetMeterProvider().Meter(meterName)),
	}
	if project := env.getOr("", "API_SECRET_DEFAULT_PROJECT_ID", "API_FIREBASE_PROJECT_ID"); project != "" {
		opts = append(opts, secrets.WithDefaultProject(project))
	}
	if projects := env.pairs("API_SECRET_PROJECT_IDS"); len(projects) > 0 {
		byEnv := make(map[string]string, len(projects))
		for name, project := range projects {
			byEnv[strings.ToLower(name)] = project
		}
		opts = append(opts, secrets.WithProjectMap(byEnv))
	}
	if pins := versionPins(env.pairs("API_SECRET_VERSION_PINS")); len(pins) > 0 {
		opts = append(opts, secrets.WithVersionPins(pins))
	}
	if raw := env.get("API_SECRET_CACHE_TTL"); raw != "" {
		ttl, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("API_SECRET_CACHE_TTL: %w", err)
		}
		opts = append(opts, secrets.WithCacheTTL(ttl))
	}
	if file := env.get("API_FIREBASE_CREDENTIALS_FILE"); file != "" {
		opts = append(opts, secrets.WithClientOptions(option.WithCredentialsFile(file)))
	}
	return secrets.NewFetcher(ctx, opts...)
}

// versionPins keys pins by secret:// reference; sm:// and bare names are accepted, as is an
// "env:" scope prefix.
func versionPins(raw map[string]string) map[string]string {
	pins := make(map[string]string, len(raw))
	for ref, version := range raw {
		scope := ""
		if i := strings.Index(ref, ":"); i > 0 && !strings.HasPrefix(ref[i:], "://") {
			scope, ref = ref[:i+1], ref[i+1:]
		}
		name := strings.TrimPrefix(strings.TrimPrefix(ref, "secret://"), "sm://")
		pins[scope+"secret://"+name] = version
	}
	return pins
}

// requiredSecrets names the config fields that must resolve for the features env turns on.
func requiredSecrets(env envValues) []string {
	var names []string
	if env.get("API_PAYMENTS_STRIPE_API_KEY") != "" {
		names = append(names, "Payments.Stripe.APIKey", "Payments.Stripe.WebhookSecret")
	}
	if env.get("API_PAYMENTS_LIQPAY_PUBLIC_KEY") != "" {
		names = append(names, "Payments.LiqPay.PrivateKey")
	}
	if strings.EqualFold(env.get("API_STORAGE_BACKEND"), config.StoragePostgres) {
		names = append(names, "Postgres.DSN")
	}
	for provider := range env.pairs("API_SECURITY_HMAC_SECRETS") {
		names = append(names, "Security.HMAC.Secrets["+strings.ToLower(provider)+"]")
	}
	slices.Sort(names)
	return names
}
