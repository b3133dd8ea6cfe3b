package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/domain"
	"github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/services"
)

func newOrderRouter(h *OrderHandlers) http.Handler {
	router := chi.NewRouter()
	router.Route("/orders", h.Routes)
	return router
}

func TestOrderHandlersLookupSuccess(t *testing.T) {
	now := time.Date(2024, 5, 20, 9, 0, 0, 0, time.UTC)
	svc := &stubOrderService{
		lookupFunc: func(ctx context.Context, orderNumber, email string) (services.Order, error) {
			if orderNumber != "PFS-0A1B2C-7KQ9XZ" || email != "olena@example.com" {
				t.Fatalf("unexpected lookup %q %q", orderNumber, email)
			}
			return sampleOrder(now), nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/orders/PFS-0A1B2C-7KQ9XZ?email=olena@example.com", nil)
	rr := httptest.NewRecorder()
	newOrderRouter(NewOrderHandlers(svc)).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if rr.Header().Get("Cache-Control") != "no-store" {
		t.Fatalf("expected no-store cache header")
	}

	var resp customerOrderPayload
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Status != string(domain.OrderStatusPaid) || resp.AwaitingPayment {
		t.Fatalf("unexpected status payload %+v", resp)
	}
	if resp.Total != 600000 || len(resp.Items) != 2 {
		t.Fatalf("unexpected totals %+v", resp)
	}
	if resp.Items[1].LineTotal != 350000 {
		t.Fatalf("expected product line total 350000, got %d", resp.Items[1].LineTotal)
	}
	if resp.PaidAt == "" {
		t.Fatalf("expected paidAt to be set")
	}
}

func TestOrderHandlersLookupPendingIsNotFailure(t *testing.T) {
	svc := &stubOrderService{
		lookupFunc: func(context.Context, string, string) (services.Order, error) {
			order := sampleOrder(time.Now())
			order.Status = domain.OrderStatusPending
			order.PaidAt = nil
			return order, nil
		},
	}
	rr := httptest.NewRecorder()
	newOrderRouter(NewOrderHandlers(svc)).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/orders/PFS-1?email=a@b.co", nil))

	var resp customerOrderPayload
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !resp.AwaitingPayment || resp.StatusDescription != "Awaiting payment confirmation." {
		t.Fatalf("expected pending order to await payment, got %+v", resp)
	}
}

func TestOrderHandlersLookupErrors(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		err        error
		wantStatus int
	}{
		{name: "missing email", path: "/orders/PFS-1", wantStatus: http.StatusBadRequest},
		{name: "email mismatch", path: "/orders/PFS-1?email=x@y.co", err: fmt.Errorf("%w: PFS-1", services.ErrOrderNotFound), wantStatus: http.StatusNotFound},
		{name: "storage down", path: "/orders/PFS-1?email=x@y.co", err: services.ErrOrderUnavailable, wantStatus: http.StatusServiceUnavailable},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc := &stubOrderService{
				lookupFunc: func(context.Context, string, string) (services.Order, error) {
					return services.Order{}, tc.err
				},
			}
			rr := httptest.NewRecorder()
			newOrderRouter(NewOrderHandlers(svc)).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, tc.path, nil))
			if rr.Code != tc.wantStatus {
				t.Fatalf("expected status %d, got %d", tc.wantStatus, rr.Code)
			}
		})
	}
}

func TestOrderHandlersLookupRateLimited(t *testing.T) {
	now := time.Date(2024, 5, 20, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	svc := &stubOrderService{
		lookupFunc: func(context.Context, string, string) (services.Order, error) {
			return sampleOrder(now), nil
		},
	}
	router := newOrderRouter(NewOrderHandlers(svc, WithLookupRateLimit(2), WithLookupClock(clock)))

	send := func(remote string) int {
		req := httptest.NewRequest(http.MethodGet, "/orders/PFS-1?email=olena@example.com", nil)
		req.RemoteAddr = remote
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		return rr.Code
	}

	for i := 0; i < 2; i++ {
		if code := send("10.0.0.1:5000"); code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, code)
		}
	}
	if code := send("10.0.0.1:5001"); code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after limit, got %d", code)
	}
	if code := send("10.0.0.2:5000"); code != http.StatusOK {
		t.Fatalf("expected other address to pass, got %d", code)
	}

	now = now.Add(2 * time.Minute)
	if code := send("10.0.0.1:5000"); code != http.StatusOK {
		t.Fatalf("expected window reset, got %d", code)
	}
}
