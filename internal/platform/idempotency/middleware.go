package idempotency

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/platform/auth"
	"github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/platform/httpx"
)

const (
	// ReplayHeader is set on responses served from a stored reservation.
	ReplayHeader = "X-Idempotent-Replay"

	defaultHeader  = "Idempotency-Key"
	clientIDHeader = "X-Client-ID"
	maxKeyLength   = 255
)

// Logger receives store failures that do not change the response.
type Logger interface {
	Printf(format string, args ...any)
}

type options struct {
	header   string
	ttl      time.Duration
	methods  []string
	optional bool
	now      func() time.Time
	logger   Logger
}

// MiddlewareOption customises Middleware.
type MiddlewareOption func(*options)

// WithHeader names the request header carrying the key.
func WithHeader(name string) MiddlewareOption {
	return func(o *options) {
		if name = strings.TrimSpace(name); name != "" {
			o.header = name
		}
	}
}

// WithTTL sets how long a response stays replayable.
func WithTTL(ttl time.Duration) MiddlewareOption {
	return func(o *options) { o.ttl = normalizeTTL(ttl) }
}

// WithMethods limits which methods are guarded. The default is POST only.
func WithMethods(methods ...string) MiddlewareOption {
	return func(o *options) {
		o.methods = o.methods[:0]
		for _, m := range methods {
			if m = strings.ToUpper(strings.TrimSpace(m)); m != "" {
				o.methods = append(o.methods, m)
			}
		}
	}
}

// WithOptionalKey passes requests without a key straight through instead of rejecting them.
func WithOptionalKey() MiddlewareOption {
	return func(o *options) { o.optional = true }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) MiddlewareOption {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithLogger sets where store failures are reported.
func WithLogger(logger Logger) MiddlewareOption {
	return func(o *options) { o.logger = logger }
}

// Middleware guards the wrapped handler so that a repeated request with the same key, caller and
// payload receives the first response again instead of running twice. Reusing a key for a
// different payload is rejected with 409; a retry while the first attempt is still running gets
// 409 as well. 5xx responses are not stored so the caller may retry.
func Middleware(store Store, opts ...MiddlewareOption) func(http.Handler) http.Handler {
	o := options{header: defaultHeader, ttl: DefaultTTL, methods: []string{http.MethodPost}, now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if store == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	guarded := make(map[string]bool, len(o.methods))
	for _, m := range o.methods {
		guarded[m] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if !guarded[r.Method] {
				next.ServeHTTP(w, r)
				return
			}
			key := strings.TrimSpace(r.Header.Get(o.header))
			switch {
			case key == "" && o.optional:
				next.ServeHTTP(w, r)
				return
			case key == "":
				httpx.WriteError(ctx, w, httpx.NewError("idempotency_key_required", o.header+" header is required", http.StatusBadRequest))
				return
			case len(key) > maxKeyLength:
				httpx.WriteError(ctx, w, httpx.NewError("idempotency_key_invalid", o.header+" header is too long", http.StatusBadRequest))
				return
			}

			body, err := bufferBody(r)
			if err != nil {
				httpx.WriteError(ctx, w, httpx.NewError("invalid_body", "unable to read request body", http.StatusBadRequest))
				return
			}

			caller := callerOf(r)
			scoped := caller + "|" + key
			fingerprint := fingerprintOf(r, caller, body)

			res, err := store.Reserve(ctx, scoped, fingerprint, o.now(), o.ttl)
			switch {
			case errors.Is(err, ErrFingerprintMismatch):
				httpx.WriteError(ctx, w, httpx.NewError("idempotency_key_reused", "idempotency key was used for a different request", http.StatusConflict))
				return
			case err != nil:
				o.logf("idempotency: reserve %s: %v", caller, err)
				httpx.WriteError(ctx, w, httpx.NewError("idempotency_unavailable", "unable to process idempotency key", http.StatusServiceUnavailable))
				return
			}

			switch res.State {
			case StateReplay:
				replay(w, res.Record.Response)
				return
			case StateInFlight:
				httpx.WriteError(ctx, w, httpx.NewError("idempotency_in_progress", "a request with this idempotency key is still running", http.StatusConflict))
				return
			}

			rec := newRecorder()
			next.ServeHTTP(rec, r)
			resp := rec.response()

			if resp.Status >= http.StatusInternalServerError {
				if err := store.Release(ctx, scoped); err != nil {
					o.logf("idempotency: release after %d: %v", resp.Status, err)
				}
			} else if err := store.Complete(ctx, scoped, fingerprint, resp, o.now(), o.ttl); err != nil {
				// The handler already ran; report its result but free the key for a retry.
				o.logf("idempotency: complete %s: %v", caller, err)
				if err := store.Release(ctx, scoped); err != nil {
					o.logf("idempotency: release after failed complete: %v", err)
				}
			}
			rec.flush(w)
		})
	}
}

func (o options) logf(format string, args ...any) {
	if o.logger != nil {
		o.logger.Printf(format, args...)
	}
}

// callerOf scopes keys to whoever sent the request: an authenticated staff member or service,
// otherwise the shopper's cart session.
func callerOf(r *http.Request) string {
	ctx := r.Context()
	if staff, ok := auth.StaffFromContext(ctx); ok && staff.UID != "" {
		return "staff:" + staff.UID
	}
	if svc, ok := auth.ServicePrincipalFromContext(ctx); ok && svc.Subject != "" {
		return "service:" + svc.Subject
	}
	if client := strings.TrimSpace(r.Header.Get(clientIDHeader)); client != "" {
		return "client:" + client
	}
	return "anonymous"
}

func fingerprintOf(r *http.Request, caller string, body []byte) string {
	h := sha256.New()
	for _, part := range []string{r.Method, r.URL.Path, r.URL.RawQuery, r.Header.Get("Content-Type"), caller} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

func bufferBody(r *http.Request) ([]byte, error) {
	if r.Body == nil || r.Body == http.NoBody {
		return nil, nil
	}
	body, err := io.ReadAll(r.Body)
	_ = r.Body.Close()
	if err != nil {
		return nil, err
	}
	r.Body = io.NopCloser(bytes.NewReader(body))
	return body, nil
}

func replay(w http.ResponseWriter, resp Response) {
	header := w.Header()
	for name, values := range resp.Header {
		header[name] = append([]string(nil), values...)
	}
	header.Set(ReplayHeader, "true")
	status := resp.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_, _ = w.Write(resp.Body)
}
