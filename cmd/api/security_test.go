package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/platform/config"
)

func TestGuardsFailClosedWithoutConfiguration(t *testing.T) {
	tests := []struct {
		name     string
		guard    middleware
		wantCode string
	}{
		{name: "internal without jwks", guard: serviceTokenGuard(zap.NewNop(), config.OIDCConfig{Audience: "reaper"}), wantCode: "authentication_unavailable"},
		{name: "internal with blank jwks", guard: serviceTokenGuard(zap.NewNop(), config.OIDCConfig{JWKSURL: "  "}), wantCode: "authentication_unavailable"},
		{name: "manual without secret", guard: manualCallbackGuard(zap.NewNop(), config.HMACConfig{Secrets: map[string]string{"manual": " "}}), wantCode: "verification_unavailable"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.guard == nil {
				t.Fatalf("expected a guard, got nil")
			}
			reached := false
			handler := tc.guard(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				reached = true
				w.WriteHeader(http.StatusNoContent)
			}))

			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/internal/orders/reap-stale", nil))

			if reached {
				t.Fatalf("expected request to be refused before the handler")
			}
			if rr.Code != http.StatusServiceUnavailable {
				t.Fatalf("expected status 503, got %d", rr.Code)
			}
			var body map[string]any
			if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
				t.Fatalf("failed to decode error: %v", err)
			}
			if body["error"] != tc.wantCode {
				t.Fatalf("expected error %q, got %v", tc.wantCode, body["error"])
			}
		})
	}
}
