package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	jose "github.com/go-jose/go-jose/v4"
	jwt "github.com/golang-jwt/jwt/v4"

	"github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/platform/httpx"
)

// Logger captures the printf-style logging used by the auth package.
type Logger interface {
	Printf(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Printf(string, ...any) {}

var (
	// ErrKeySetUnavailable wraps transport or decoding failures while fetching signing keys.
	ErrKeySetUnavailable = errors.New("auth: signing keys unavailable")
	// ErrSigningKeyNotFound is returned when a token names a kid absent from the key set.
	ErrSigningKeyNotFound = errors.New("auth: signing key not found")
	// ErrServiceTokenInvalid reports a service token that failed signature or claim checks.
	ErrServiceTokenInvalid = errors.New("auth: service token invalid")
)

const (
	defaultKeySetTTL      = time.Hour
	minUnknownKidInterval = time.Minute
)

// KeySet caches the RSA signing keys published at a JWKS endpoint.
type KeySet struct {
	url    string
	client *http.Client
	logger Logger
	now    func() time.Time
	ttl    time.Duration

	mu        sync.Mutex
	keys      map[string]any
	fetchedAt time.Time
	validFor  time.Duration
}

// KeySetOption customises a KeySet.
type KeySetOption func(*KeySet)

// WithKeySetHTTPClient overrides the client used to fetch the key set.
func WithKeySetHTTPClient(client *http.Client) KeySetOption {
	return func(k *KeySet) {
		if client != nil {
			k.client = client
		}
	}
}

// WithKeySetLogger reports refreshes and fetch failures.
func WithKeySetLogger(logger Logger) KeySetOption {
	return func(k *KeySet) {
		if logger != nil {
			k.logger = logger
		}
	}
}

// WithKeySetTTL sets the cache lifetime used when the endpoint sends no max-age.
func WithKeySetTTL(d time.Duration) KeySetOption {
	return func(k *KeySet) {
		if d > 0 {
			k.ttl = d
		}
	}
}

// WithKeySetClock injects the time source.
func WithKeySetClock(now func() time.Time) KeySetOption {
	return func(k *KeySet) {
		if now != nil {
			k.now = now
		}
	}
}

// NewKeySet returns a lazily populated key set for url.
func NewKeySet(url string, opts ...KeySetOption) *KeySet {
	k := &KeySet{
		url:    strings.TrimSpace(url),
		client: &http.Client{Timeout: 5 * time.Second},
		logger: nopLogger{},
		now:    time.Now,
		ttl:    defaultKeySetTTL,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(k)
		}
	}
	return k
}

// Key returns the public key for kid. Expired sets are refetched; an unknown kid triggers at most
// one refetch per minute.
func (k *KeySet) Key(ctx context.Context, kid string) (any, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	now := k.now()
	stale := k.keys == nil || now.Sub(k.fetchedAt) >= k.validFor
	if !stale {
		if key, ok := k.keys[kid]; ok {
			return key, nil
		}
		if now.Sub(k.fetchedAt) < minUnknownKidInterval {
			return nil, fmt.Errorf("%w: %s", ErrSigningKeyNotFound, kid)
		}
	}

	if err := k.fetchLocked(ctx); err != nil {
		return nil, err
	}
	if key, ok := k.keys[kid]; ok {
		return key, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrSigningKeyNotFound, kid)
}

func (k *KeySet) fetchLocked(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, k.url, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrKeySetUnavailable, err)
	}
	resp, err := k.client.Do(req)
	if err != nil {
		k.logger.Printf("auth: key set fetch failed: %v", err)
		return fmt.Errorf("%w: %v", ErrKeySetUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrKeySetUnavailable, resp.StatusCode)
	}

	var set jose.JSONWebKeySet
	if err := json.NewDecoder(resp.Body).Decode(&set); err != nil {
		return fmt.Errorf("%w: decode: %v", ErrKeySetUnavailable, err)
	}
	keys := make(map[string]any, len(set.Keys))
	for _, jwk := range set.Keys {
		if jwk.KeyID == "" || !jwk.Valid() || !jwk.IsPublic() {
			continue
		}
		keys[jwk.KeyID] = jwk.Key
	}
	if len(keys) == 0 {
		return fmt.Errorf("%w: no usable keys", ErrKeySetUnavailable)
	}

	k.keys = keys
	k.fetchedAt = k.now()
	k.validFor = k.ttl
	if maxAge, ok := cacheMaxAge(resp.Header.Get("Cache-Control")); ok {
		k.validFor = maxAge
	}
	k.logger.Printf("auth: loaded %d signing keys, valid for %s", len(keys), k.validFor)
	return nil
}

func cacheMaxAge(header string) (time.Duration, bool) {
	for _, directive := range strings.Split(header, ",") {
		name, value, ok := strings.Cut(strings.TrimSpace(directive), "=")
		if !ok || !strings.EqualFold(name, "max-age") {
			continue
		}
		seconds, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil || seconds <= 0 {
			return 0, false
		}
		return time.Duration(seconds) * time.Second, true
	}
	return 0, false
}

// ServicePrincipal is the workload identity behind a verified service token.
type ServicePrincipal struct {
	Subject string
	Email   string
	Issuer  string
}

type servicePrincipalKey struct{}

// ServicePrincipalFromContext returns the principal stored by ServiceTokenVerifier.Require.
func ServicePrincipalFromContext(ctx context.Context) (*ServicePrincipal, bool) {
	principal, ok := ctx.Value(servicePrincipalKey{}).(*ServicePrincipal)
	return principal, ok && principal != nil
}

type serviceClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// ServiceTokenVerifier checks RS256 OIDC tokens minted for scheduled jobs such as the stale
// order reaper.
type ServiceTokenVerifier struct {
	keys   *KeySet
	logger Logger
	now    func() time.Time
}

// ServiceTokenOption customises a ServiceTokenVerifier.
type ServiceTokenOption func(*ServiceTokenVerifier)

// WithServiceTokenLogger reports rejected tokens.
func WithServiceTokenLogger(logger Logger) ServiceTokenOption {
	return func(v *ServiceTokenVerifier) {
		if logger != nil {
			v.logger = logger
		}
	}
}

// WithServiceTokenClock injects the time used for exp/nbf checks.
func WithServiceTokenClock(now func() time.Time) ServiceTokenOption {
	return func(v *ServiceTokenVerifier) {
		if now != nil {
			v.now = now
		}
	}
}

// NewServiceTokenVerifier validates tokens against keys.
func NewServiceTokenVerifier(keys *KeySet, opts ...ServiceTokenOption) *ServiceTokenVerifier {
	v := &ServiceTokenVerifier{keys: keys, logger: nopLogger{}, now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(v)
		}
	}
	return v
}

// Verify parses raw and checks signature, lifetime, audience and, when issuers is non-empty, issuer.
func (v *ServiceTokenVerifier) Verify(ctx context.Context, raw, audience string, issuers []string) (*ServicePrincipal, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	claims := &serviceClaims{}
	_, err := parser.ParseWithClaims(raw, claims, func(token *jwt.Token) (any, error) {
		kid, _ := token.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("token missing kid header")
		}
		return v.keys.Key(ctx, kid)
	})
	if err != nil {
		if errors.Is(err, ErrKeySetUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrServiceTokenInvalid, err)
	}

	now := v.now()
	switch {
	case !claims.VerifyExpiresAt(now, true):
		return nil, fmt.Errorf("%w: expired", ErrServiceTokenInvalid)
	case !claims.VerifyNotBefore(now, false):
		return nil, fmt.Errorf("%w: not yet valid", ErrServiceTokenInvalid)
	case !claims.VerifyAudience(audience, true):
		return nil, fmt.Errorf("%w: audience mismatch", ErrServiceTokenInvalid)
	}
	if len(issuers) > 0 && !containsTrimmed(issuers, claims.Issuer) {
		return nil, fmt.Errorf("%w: issuer %q not allowed", ErrServiceTokenInvalid, claims.Issuer)
	}

	return &ServicePrincipal{Subject: claims.Subject, Email: claims.Email, Issuer: claims.Issuer}, nil
}

// Require guards a route group with service tokens issued for audience.
func (v *ServiceTokenVerifier) Require(audience string, issuers []string) func(http.Handler) http.Handler {
	audience = strings.TrimSpace(audience)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if audience == "" || v == nil || v.keys == nil {
				httpx.WriteError(ctx, w, httpx.NewError("verification_unavailable", "service token verification not configured", http.StatusServiceUnavailable))
				return
			}
			raw, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "service token missing", http.StatusUnauthorized))
				return
			}
			principal, err := v.Verify(ctx, raw, audience, issuers)
			if err != nil {
				v.logger.Printf("auth: service token rejected: %v", err)
				if errors.Is(err, ErrKeySetUnavailable) {
					httpx.WriteError(ctx, w, httpx.NewError("verification_unavailable", "signing keys unavailable", http.StatusServiceUnavailable))
					return
				}
				httpx.WriteError(ctx, w, httpx.NewError("invalid_token", "service token verification failed", http.StatusUnauthorized))
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(ctx, servicePrincipalKey{}, principal)))
		})
	}
}

func containsTrimmed(values []string, target string) bool {
	for _, value := range values {
		if strings.TrimSpace(value) == target {
			return true
		}
	}
	return false
}
