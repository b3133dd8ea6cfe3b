package main

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/platform/auth"
	"github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/platform/config"
	"github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/platform/httpx"
	"github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/platform/observability"
)

type middleware = func(http.Handler) http.Handler

var errCallbackSecretMissing = errors.New("auth: callback secret not configured")

// callbackSecrets serves the configured HMAC secrets by provider name.
type callbackSecrets map[string]string

func (s callbackSecrets) GetSecret(_ context.Context, provider string) (string, error) {
	if secret := s[strings.ToLower(strings.TrimSpace(provider))]; secret != "" {
		return secret, nil
	}
	return "", errCallbackSecretMissing
}

// serviceTokenGuard protects /internal with OIDC tokens minted for the stale order reaper.
// Without a JWKS endpoint every internal request is refused with 503.
func serviceTokenGuard(logger *zap.Logger, oidc config.OIDCConfig) middleware {
	if strings.TrimSpace(oidc.JWKSURL) == "" {
		logger.Warn("auth: OIDC JWKS url not configured; internal routes will reject requests")
		return refuseUnauthenticated
	}
	if strings.TrimSpace(oidc.Audience) == "" {
		logger.Warn("auth: OIDC audience not configured; internal routes will reject requests")
	}
	printf := observability.NewPrintfAdapter(logger)
	keys := auth.NewKeySet(oidc.JWKSURL, auth.WithKeySetLogger(printf))
	return auth.NewServiceTokenVerifier(keys, auth.WithServiceTokenLogger(printf)).Require(oidc.Audience, oidc.Issuers)
}

// manualCallbackGuard verifies signed notifications for the manual provider. Without a "manual"
// secret every notification is refused with 503.
func manualCallbackGuard(logger *zap.Logger, hmac config.HMACConfig) middleware {
	secrets := make(callbackSecrets, len(hmac.Secrets))
	for provider, secret := range hmac.Secrets {
		if secret = strings.TrimSpace(secret); secret != "" {
			secrets[provider] = secret
		}
	}
	if _, ok := secrets["manual"]; !ok {
		logger.Warn("auth: manual provider enabled without an HMAC secret; manual notifications will be rejected")
		return refuseUnsigned
	}
	verifier := auth.NewCallbackVerifier(secrets, auth.NewMemoryNonceStore(),
		auth.WithCallbackLogger(observability.NewPrintfAdapter(logger)),
		auth.WithCallbackHeaders(hmac.SignatureHeader, hmac.TimestampHeader, hmac.NonceHeader),
		auth.WithCallbackClockSkew(hmac.ClockSkew),
		auth.WithCallbackNonceTTL(hmac.NonceTTL),
	)
	return verifier.Require("manual")
}

func refuseUnsigned(http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteError(r.Context(), w, httpx.NewError("verification_unavailable", "notification signing is not configured", http.StatusServiceUnavailable))
	})
}

func refuseUnauthenticated(http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteError(r.Context(), w, httpx.NewError("authentication_unavailable", "service authentication is not configured", http.StatusServiceUnavailable))
	})
}
