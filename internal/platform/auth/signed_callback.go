package auth

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/platform/httpx"
)

// Default headers carried by signed payment callbacks.
const (
	DefaultSignatureHeader = "X-Signature"
	DefaultTimestampHeader = "X-Signature-Timestamp"
	DefaultNonceHeader     = "X-Signature-Nonce"
)

const (
	defaultClockSkew       = 5 * time.Minute
	defaultNonceTTL        = 10 * time.Minute
	maxSignedCallbackBytes = 64 << 10
)

// SecretProvider resolves the shared secret for a callback source.
type SecretProvider interface {
	GetSecret(ctx context.Context, name string) (string, error)
}

// SecretProviderFunc adapts a function to SecretProvider.
type SecretProviderFunc func(context.Context, string) (string, error)

// GetSecret implements SecretProvider.
func (f SecretProviderFunc) GetSecret(ctx context.Context, name string) (string, error) {
	return f(ctx, name)
}

// NonceStore remembers nonces until they expire so a captured callback cannot be replayed.
type NonceStore interface {
	// Claim records key until expiry and reports false when the key is already held.
	Claim(ctx context.Context, key string, expiry time.Time) (bool, error)
}

// MemoryNonceStore is a process-local NonceStore.
type MemoryNonceStore struct {
	mu     sync.Mutex
	now    func() time.Time
	nonces map[string]time.Time
}

// NewMemoryNonceStore returns an empty store.
func NewMemoryNonceStore() *MemoryNonceStore {
	return &MemoryNonceStore{now: time.Now, nonces: make(map[string]time.Time)}
}

// Claim implements NonceStore.
func (s *MemoryNonceStore) Claim(_ context.Context, key string, expiry time.Time) (bool, error) {
	if key == "" {
		return false, errors.New("auth: nonce key required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for k, exp := range s.nonces {
		if !exp.After(now) {
			delete(s.nonces, k)
		}
	}
	if _, held := s.nonces[key]; held {
		return false, nil
	}
	s.nonces[key] = expiry
	return true, nil
}

// CallbackError describes why a signed callback was rejected.
type CallbackError struct {
	Code   string
	Status int
	Err    error
}

func (e *CallbackError) Error() string {
	if e.Err != nil {
		return "auth: " + e.Code + ": " + e.Err.Error()
	}
	return "auth: " + e.Code
}

func (e *CallbackError) Unwrap() error { return e.Err }

func rejected(code string, status int, err error) *CallbackError {
	return &CallbackError{Code: code, Status: status, Err: err}
}

// CallbackVerifier authenticates provider callbacks signed with HMAC-SHA256 over
// "METHOD\nPATH\nTIMESTAMP\nNONCE\nhex(sha256(body))".
type CallbackVerifier struct {
	secrets SecretProvider
	nonces  NonceStore
	logger  Logger
	now     func() time.Time

	signatureHeader string
	timestampHeader string
	nonceHeader     string
	clockSkew       time.Duration
	nonceTTL        time.Duration
}

// CallbackOption customises a CallbackVerifier.
type CallbackOption func(*CallbackVerifier)

// WithCallbackLogger reports rejected callbacks.
func WithCallbackLogger(logger Logger) CallbackOption {
	return func(v *CallbackVerifier) {
		if logger != nil {
			v.logger = logger
		}
	}
}

// WithCallbackClock injects the time source used for skew checks.
func WithCallbackClock(now func() time.Time) CallbackOption {
	return func(v *CallbackVerifier) {
		if now != nil {
			v.now = now
		}
	}
}

// WithCallbackHeaders overrides the header names; empty values keep the defaults.
func WithCallbackHeaders(signature, timestamp, nonce string) CallbackOption {
	return func(v *CallbackVerifier) {
		if signature != "" {
			v.signatureHeader = signature
		}
		if timestamp != "" {
			v.timestampHeader = timestamp
		}
		if nonce != "" {
			v.nonceHeader = nonce
		}
	}
}

// WithCallbackClockSkew sets the accepted distance between the signed timestamp and now.
func WithCallbackClockSkew(d time.Duration) CallbackOption {
	return func(v *CallbackVerifier) {
		if d > 0 {
			v.clockSkew = d
		}
	}
}

// WithCallbackNonceTTL sets how long nonces are remembered.
func WithCallbackNonceTTL(d time.Duration) CallbackOption {
	return func(v *CallbackVerifier) {
		if d > 0 {
			v.nonceTTL = d
		}
	}
}

// NewCallbackVerifier builds a verifier resolving secrets by name from secrets.
func NewCallbackVerifier(secrets SecretProvider, nonces NonceStore, opts ...CallbackOption) *CallbackVerifier {
	v := &CallbackVerifier{
		secrets:         secrets,
		nonces:          nonces,
		logger:          nopLogger{},
		now:             time.Now,
		signatureHeader: DefaultSignatureHeader,
		timestampHeader: DefaultTimestampHeader,
		nonceHeader:     DefaultNonceHeader,
		clockSkew:       defaultClockSkew,
		nonceTTL:        defaultNonceTTL,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(v)
		}
	}
	return v
}

// Require rejects requests not signed with the secret called secretName. The body is restored
// for the next handler.
func (v *CallbackVerifier) Require(secretName string) func(http.Handler) http.Handler {
	secretName = strings.TrimSpace(secretName)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if err := v.Verify(r, secretName); err != nil {
				var cbErr *CallbackError
				if !errors.As(err, &cbErr) {
					cbErr = rejected("signature_invalid", http.StatusUnauthorized, err)
				}
				v.logger.Printf("auth: callback for %q rejected: %v", secretName, err)
				httpx.WriteError(ctx, w, httpx.NewError(cbErr.Code, "callback signature verification failed", cbErr.Status))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Verify checks the signature headers of r against secretName and consumes its nonce.
func (v *CallbackVerifier) Verify(r *http.Request, secretName string) error {
	ctx := r.Context()
	if secretName == "" || v.secrets == nil || v.nonces == nil {
		return rejected("verification_unavailable", http.StatusServiceUnavailable, errors.New("verifier not configured"))
	}
	secret, err := v.secrets.GetSecret(ctx, secretName)
	if err != nil || secret == "" {
		return rejected("verification_unavailable", http.StatusServiceUnavailable, err)
	}

	rawSignature := strings.TrimSpace(r.Header.Get(v.signatureHeader))
	rawTimestamp := strings.TrimSpace(r.Header.Get(v.timestampHeader))
	nonce := strings.TrimSpace(r.Header.Get(v.nonceHeader))
	if rawSignature == "" || rawTimestamp == "" || nonce == "" {
		return rejected("signature_missing", http.StatusUnauthorized, errors.New("signature, timestamp and nonce headers are required"))
	}

	signedAt, err := parseSignedTimestamp(rawTimestamp)
	if err != nil {
		return rejected("timestamp_invalid", http.StatusUnauthorized, err)
	}
	now := v.now()
	if skew := now.Sub(signedAt); skew > v.clockSkew || skew < -v.clockSkew {
		return rejected("timestamp_skew", http.StatusUnauthorized, nil)
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxSignedCallbackBytes+1))
	if err != nil {
		return rejected("invalid_body", http.StatusBadRequest, err)
	}
	if len(body) > maxSignedCallbackBytes {
		return rejected("invalid_body", http.StatusRequestEntityTooLarge, errors.New("body too large"))
	}
	_ = r.Body.Close()
	r.Body = io.NopCloser(bytes.NewReader(body))

	signature, err := decodeSignature(rawSignature)
	if err != nil {
		return rejected("signature_invalid", http.StatusUnauthorized, err)
	}
	expected := CallbackSignature([]byte(secret), r.Method, r.URL.EscapedPath(), rawTimestamp, nonce, body)
	if !hmac.Equal(signature, expected) {
		return rejected("signature_mismatch", http.StatusUnauthorized, nil)
	}

	fresh, err := v.nonces.Claim(ctx, secretName+"::"+nonce, now.Add(v.nonceTTL))
	if err != nil {
		return rejected("verification_unavailable", http.StatusServiceUnavailable, err)
	}
	if !fresh {
		return rejected("nonce_replay", http.StatusUnauthorized, nil)
	}
	return nil
}

// CallbackSignature computes the raw HMAC a sender attaches (hex or base64 encoded) to a callback.
func CallbackSignature(secret []byte, method, path, timestamp, nonce string, body []byte) []byte {
	if path == "" {
		path = "/"
	}
	digest := sha256.Sum256(body)
	mac := hmac.New(sha256.New, secret)
	_, _ = io.WriteString(mac, strings.Join([]string{
		strings.ToUpper(method),
		path,
		timestamp,
		nonce,
		hex.EncodeToString(digest[:]),
	}, "\n"))
	return mac.Sum(nil)
}

func decodeSignature(value string) ([]byte, error) {
	if decoded, err := hex.DecodeString(value); err == nil {
		return decoded, nil
	}
	if decoded, err := base64.StdEncoding.DecodeString(value); err == nil {
		return decoded, nil
	}
	return nil, errors.New("signature must be hex or base64 encoded")
}

func parseSignedTimestamp(value string) (time.Time, error) {
	if seconds, err := strconv.ParseInt(value, 10, 64); err == nil {
		return time.Unix(seconds, 0).UTC(), nil
	}
	ts, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, errors.New("timestamp must be unix seconds or RFC 3339")
	}
	return ts.UTC(), nil
}
