package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/domain"
	"github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/services"
)

type routerStubSystemService struct {
	report services.SystemHealthReport
}

func (s *routerStubSystemService) HealthReport(context.Context) (services.SystemHealthReport, error) {
	return s.report, nil
}

func serve(router http.Handler, method, path string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(method, path, nil))
	return rr
}

func errorCode(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("expected JSON body: %v", err)
	}
	code, _ := body["error"].(string)
	return code
}

func TestNewRouterDefaults(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	health := NewHealthHandlers(
		WithHealthSystemService(&routerStubSystemService{report: services.SystemHealthReport{
			Status:      domain.HealthStatusOK,
			GeneratedAt: now,
			Checks:      map[string]domain.SystemHealthCheck{"orders": {Status: domain.HealthStatusOK}},
		}}),
		WithHealthClock(func() time.Time { return now }),
	)
	router := NewRouter(WithHealthHandlers(health))

	cases := []struct {
		method   string
		path     string
		want     int
		wantCode string
	}{
		{method: http.MethodGet, path: "/healthz", want: http.StatusOK},
		{method: http.MethodGet, path: "/readyz", want: http.StatusOK},
		{method: http.MethodGet, path: "/api/v1/admin/orders", want: http.StatusNotImplemented, wantCode: "not_implemented"},
		{method: http.MethodPost, path: "/api/v1/checkout", want: http.StatusNotImplemented, wantCode: "not_implemented"},
		{method: http.MethodGet, path: "/does/not/exist", want: http.StatusNotFound, wantCode: "route_not_found"},
		{method: http.MethodPost, path: "/healthz", want: http.StatusMethodNotAllowed, wantCode: "method_not_allowed"},
	}
	for _, tc := range cases {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			rr := serve(router, tc.method, tc.path)
			if rr.Code != tc.want {
				t.Fatalf("expected status %d, got %d", tc.want, rr.Code)
			}
			if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
				t.Fatalf("expected JSON content type, got %q", ct)
			}
			if tc.wantCode != "" {
				if code := errorCode(t, rr); code != tc.wantCode {
					t.Fatalf("expected error %q, got %q", tc.wantCode, code)
				}
			}
		})
	}
}

func TestNewRouterGroupMiddlewareIsScoped(t *testing.T) {
	var hits []string
	marker := func(name string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				hits = append(hits, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	created := func(r chi.Router) {
		r.Post("/", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusCreated) })
	}

	router := NewRouter(
		WithGroup(GroupCheckout, created),
		WithGroupMiddleware(GroupCheckout, marker("checkout")),
		WithGroup(GroupCart, created),
		WithGroupMiddleware(GroupWebhooks, marker("webhooks")),
	)

	if rr := serve(router, http.MethodPost, "/api/v1/checkout"); rr.Code != http.StatusCreated {
		t.Fatalf("expected checkout route, got %d", rr.Code)
	}
	if rr := serve(router, http.MethodPost, "/api/v1/cart"); rr.Code != http.StatusCreated {
		t.Fatalf("expected cart route, got %d", rr.Code)
	}
	serve(router, http.MethodPost, "/api/v1/webhooks/payments/stripe")

	if len(hits) != 2 || hits[0] != "checkout" || hits[1] != "webhooks" {
		t.Fatalf("expected checkout then webhooks middleware, got %v", hits)
	}
}

func TestNewRouterCustomGroup(t *testing.T) {
	router := NewRouter(WithGroup("/catalog", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })
	}))
	if rr := serve(router, http.MethodGet, "/api/v1/catalog"); rr.Code != http.StatusNoContent {
		t.Fatalf("expected custom group to be mounted, got %d", rr.Code)
	}
}
