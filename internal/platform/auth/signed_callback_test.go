package auth

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"
)

type mapSecretProvider map[string]string

func (m mapSecretProvider) GetSecret(_ context.Context, name string) (string, error) {
	if secret, ok := m[name]; ok {
		return secret, nil
	}
	return "", errors.New("secret not found")
}

const callbackPath = "/api/v1/webhooks/payments/manual"

var callbackNow = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func signedCallback(t *testing.T, secret string, body []byte, timestamp, nonce string, encode func([]byte) string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, callbackPath, bytes.NewReader(body))
	sig := CallbackSignature([]byte(secret), http.MethodPost, callbackPath, timestamp, nonce, body)
	req.Header.Set(DefaultSignatureHeader, encode(sig))
	req.Header.Set(DefaultTimestampHeader, timestamp)
	req.Header.Set(DefaultNonceHeader, nonce)
	return req
}

func newTestCallbackVerifier() *CallbackVerifier {
	return NewCallbackVerifier(mapSecretProvider{"manual": "bank-secret"}, NewMemoryNonceStore(),
		WithCallbackClock(func() time.Time { return callbackNow }),
	)
}

func TestCallbackVerifierAcceptsAndRestoresBody(t *testing.T) {
	verifier := newTestCallbackVerifier()
	body := []byte(`{"orderNumber":"PFS-1","status":"paid"}`)
	timestamp := strconv.FormatInt(callbackNow.Unix(), 10)

	var forwarded []byte
	handler := verifier.Require("manual")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		forwarded, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusAccepted)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, signedCallback(t, "bank-secret", body, timestamp, "n-1", hex.EncodeToString))
	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rr.Code, rr.Body.String())
	}
	if !bytes.Equal(forwarded, body) {
		t.Fatalf("expected body restored, got %q", forwarded)
	}

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, signedCallback(t, "bank-secret", body, callbackNow.Format(time.RFC3339), "n-2", base64.StdEncoding.EncodeToString))
	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected base64 RFC3339 variant accepted, got %d", rr.Code)
	}
}

func TestCallbackVerifierRejections(t *testing.T) {
	body := []byte(`{"orderNumber":"PFS-1","status":"paid"}`)
	now := strconv.FormatInt(callbackNow.Unix(), 10)
	stale := strconv.FormatInt(callbackNow.Add(-time.Hour).Unix(), 10)

	tests := []struct {
		name   string
		secret string
		req    func(t *testing.T) *http.Request
		code   string
		status int
	}{
		{
			name:   "wrong secret",
			secret: "manual",
			req: func(t *testing.T) *http.Request {
				return signedCallback(t, "guess", body, now, "n", hex.EncodeToString)
			},
			code:   "signature_mismatch",
			status: http.StatusUnauthorized,
		},
		{
			name:   "stale timestamp",
			secret: "manual",
			req: func(t *testing.T) *http.Request {
				return signedCallback(t, "bank-secret", body, stale, "n", hex.EncodeToString)
			},
			code:   "timestamp_skew",
			status: http.StatusUnauthorized,
		},
		{
			name:   "missing headers",
			secret: "manual",
			req: func(t *testing.T) *http.Request {
				return httptest.NewRequest(http.MethodPost, callbackPath, bytes.NewReader(body))
			},
			code:   "signature_missing",
			status: http.StatusUnauthorized,
		},
		{
			name:   "tampered body",
			secret: "manual",
			req: func(t *testing.T) *http.Request {
				req := signedCallback(t, "bank-secret", body, now, "n", hex.EncodeToString)
				req.Body = io.NopCloser(bytes.NewReader([]byte(`{"orderNumber":"PFS-1","status":"paid","amount":1}`)))
				return req
			},
			code:   "signature_mismatch",
			status: http.StatusUnauthorized,
		},
		{
			name:   "unknown secret",
			secret: "stripe",
			req: func(t *testing.T) *http.Request {
				return signedCallback(t, "bank-secret", body, now, "n", hex.EncodeToString)
			},
			code:   "verification_unavailable",
			status: http.StatusServiceUnavailable,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := newTestCallbackVerifier().Verify(tc.req(t), tc.secret)
			var cbErr *CallbackError
			if !errors.As(err, &cbErr) {
				t.Fatalf("expected CallbackError, got %v", err)
			}
			if cbErr.Code != tc.code || cbErr.Status != tc.status {
				t.Fatalf("expected %s/%d, got %s/%d", tc.code, tc.status, cbErr.Code, cbErr.Status)
			}
		})
	}
}

func TestCallbackVerifierRejectsReplayedNonce(t *testing.T) {
	verifier := newTestCallbackVerifier()
	body := []byte(`{"orderNumber":"PFS-1","status":"paid"}`)
	timestamp := strconv.FormatInt(callbackNow.Unix(), 10)

	if err := verifier.Verify(signedCallback(t, "bank-secret", body, timestamp, "once", hex.EncodeToString), "manual"); err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	err := verifier.Verify(signedCallback(t, "bank-secret", body, timestamp, "once", hex.EncodeToString), "manual")
	var cbErr *CallbackError
	if !errors.As(err, &cbErr) || cbErr.Code != "nonce_replay" {
		t.Fatalf("expected nonce_replay, got %v", err)
	}
}

func TestMemoryNonceStoreExpires(t *testing.T) {
	store := NewMemoryNonceStore()
	now := callbackNow
	store.now = func() time.Time { return now }

	ok, err := store.Claim(context.Background(), "manual::a", now.Add(time.Minute))
	if err != nil || !ok {
		t.Fatalf("expected first claim, got %v %v", ok, err)
	}
	if ok, _ := store.Claim(context.Background(), "manual::a", now.Add(time.Minute)); ok {
		t.Fatal("expected second claim rejected")
	}
	now = now.Add(2 * time.Minute)
	if ok, _ := store.Claim(context.Background(), "manual::a", now.Add(time.Minute)); !ok {
		t.Fatal("expected claim after expiry")
	}
	if _, err := store.Claim(context.Background(), "", now); err == nil {
		t.Fatal("expected empty key error")
	}
}
