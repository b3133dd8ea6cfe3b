package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/domain"
	"github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/payments"
	"github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/services"
)

func newWebhookRouter(h *WebhookHandlers) http.Handler {
	router := chi.NewRouter()
	router.Route("/webhooks", h.Routes)
	return router
}

func TestWebhookHandlersRecordsNotification(t *testing.T) {
	received := time.Date(2024, 5, 20, 9, 30, 0, 0, time.UTC)
	amount := int64(600000)
	gateway := &stubPaymentGateway{
		providers: map[string]bool{"liqpay": true},
		parseFunc: func(ctx context.Context, provider string, req payments.NotificationRequest) (services.PaymentNotification, error) {
			if provider != "liqpay" {
				t.Fatalf("unexpected provider %q", provider)
			}
			if string(req.Body) != "data=abc&signature=sig" {
				t.Fatalf("unexpected body %q", req.Body)
			}
			if !req.ReceivedAt.Equal(received) {
				t.Fatalf("expected receive time from clock, got %s", req.ReceivedAt)
			}
			return services.PaymentNotification{
				Provider:         "liqpay",
				Reference:        "liqpay-123",
				CorrelationToken: "PFS-0A1B2C-7KQ9XZ",
				RawStatus:        "success",
				Amount:           &amount,
				Currency:         "UAH",
			}, nil
		},
	}
	reconciler := &stubReconciler{
		reconcileFunc: func(ctx context.Context, n services.PaymentNotification) (services.ReconcileResult, error) {
			return services.ReconcileResult{
				Record:  services.NotificationRecord{OrderNumber: n.CorrelationToken, Outcome: domain.NotificationApplied},
				Applied: true,
			}, nil
		},
	}

	handler := NewWebhookHandlers(gateway, reconciler, WithWebhookClock(func() time.Time { return received }))
	req := httptest.NewRequest(http.MethodPost, "/webhooks/payments/LiqPay", strings.NewReader("data=abc&signature=sig"))
	rr := httptest.NewRecorder()

	newWebhookRouter(handler).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp webhookResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Status != "recorded" || resp.Outcome != "applied" || !resp.Applied {
		t.Fatalf("unexpected response %+v", resp)
	}
	if resp.OrderNumber != "PFS-0A1B2C-7KQ9XZ" {
		t.Fatalf("expected order number, got %q", resp.OrderNumber)
	}
}

func TestWebhookHandlersBusinessOutcomesStillAcknowledge(t *testing.T) {
	gateway := &stubPaymentGateway{
		providers: map[string]bool{"stripe": true},
		parseFunc: func(context.Context, string, payments.NotificationRequest) (services.PaymentNotification, error) {
			return services.PaymentNotification{Provider: "stripe", Reference: "cs_1", RawStatus: "complete"}, nil
		},
	}
	reconciler := &stubReconciler{
		reconcileFunc: func(context.Context, services.PaymentNotification) (services.ReconcileResult, error) {
			return services.ReconcileResult{
				Record: services.NotificationRecord{Outcome: domain.NotificationAmountMismatch},
				Err:    services.ErrAmountMismatch,
			}, nil
		},
	}

	rr := httptest.NewRecorder()
	newWebhookRouter(NewWebhookHandlers(gateway, reconciler)).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/webhooks/payments/stripe", strings.NewReader(`{}`)))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "amount_mismatch") {
		t.Fatalf("expected amount mismatch outcome, got %s", rr.Body.String())
	}
}

func TestWebhookHandlersRecordedProcessingFailureAcknowledges(t *testing.T) {
	gateway := &stubPaymentGateway{
		providers: map[string]bool{"stripe": true},
		parseFunc: func(context.Context, string, payments.NotificationRequest) (services.PaymentNotification, error) {
			return services.PaymentNotification{Provider: "stripe", Reference: "cs_1", RawStatus: "complete"}, nil
		},
	}
	reconciler := &stubReconciler{
		reconcileFunc: func(context.Context, services.PaymentNotification) (services.ReconcileResult, error) {
			return services.ReconcileResult{
				Record: services.NotificationRecord{Outcome: domain.NotificationReceived},
				Err:    fmt.Errorf("%w: 5 attempts", services.ErrOrderConflict),
			}, nil
		},
	}

	rr := httptest.NewRecorder()
	newWebhookRouter(NewWebhookHandlers(gateway, reconciler)).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/webhooks/payments/stripe", strings.NewReader(`{}`)))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected recorded notification to be acknowledged, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "received") {
		t.Fatalf("expected received outcome, got %s", rr.Body.String())
	}
}

func TestWebhookHandlersFailures(t *testing.T) {
	tests := []struct {
		name           string
		provider       string
		parseErr       error
		reconcileErr   error
		wantStatus     int
		wantCode       string
		wantReconciled bool
	}{
		{name: "unknown provider", provider: "paypal", wantStatus: http.StatusNotFound, wantCode: "unknown_provider"},
		{name: "bad signature", provider: "stripe", parseErr: fmt.Errorf("stripe: %w", payments.ErrInvalidSignature), wantStatus: http.StatusBadRequest, wantCode: "invalid_signature"},
		{name: "malformed", provider: "stripe", parseErr: payments.ErrMalformedNotification, wantStatus: http.StatusBadRequest, wantCode: "invalid_notification"},
		{name: "not recorded", provider: "stripe", reconcileErr: services.ErrNotificationNotRecorded, wantStatus: http.StatusServiceUnavailable, wantCode: "notification_not_recorded", wantReconciled: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			gateway := &stubPaymentGateway{
				providers: map[string]bool{"stripe": true},
				parseFunc: func(context.Context, string, payments.NotificationRequest) (services.PaymentNotification, error) {
					if tc.parseErr != nil {
						return services.PaymentNotification{}, tc.parseErr
					}
					return services.PaymentNotification{Provider: "stripe", Reference: "cs_1", RawStatus: "complete"}, nil
				},
			}
			reconciler := &stubReconciler{
				reconcileFunc: func(context.Context, services.PaymentNotification) (services.ReconcileResult, error) {
					return services.ReconcileResult{}, tc.reconcileErr
				},
			}

			rr := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/webhooks/payments/"+tc.provider, strings.NewReader(`{"id":"evt_1"}`))
			newWebhookRouter(NewWebhookHandlers(gateway, reconciler)).ServeHTTP(rr, req)

			if rr.Code != tc.wantStatus {
				t.Fatalf("expected status %d, got %d", tc.wantStatus, rr.Code)
			}
			var body map[string]any
			if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
				t.Fatalf("failed to decode error: %v", err)
			}
			if body["error"] != tc.wantCode {
				t.Fatalf("expected error %q, got %v", tc.wantCode, body["error"])
			}
			if got := reconciler.calls > 0; got != tc.wantReconciled {
				t.Fatalf("expected reconciled=%v, got %v", tc.wantReconciled, got)
			}
		})
	}
}

func TestWebhookHandlersIgnoredEvent(t *testing.T) {
	gateway := &stubPaymentGateway{
		providers: map[string]bool{"stripe": true},
		parseFunc: func(context.Context, string, payments.NotificationRequest) (services.PaymentNotification, error) {
			return services.PaymentNotification{}, payments.ErrIgnoredEvent
		},
	}
	reconciler := &stubReconciler{}

	rr := httptest.NewRecorder()
	newWebhookRouter(NewWebhookHandlers(gateway, reconciler)).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/webhooks/payments/stripe", strings.NewReader(`{"type":"customer.created"}`)))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if reconciler.calls != 0 {
		t.Fatalf("expected ignored events to skip reconciliation")
	}
}

func TestWebhookHandlersProviderMiddleware(t *testing.T) {
	guard := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("X-Signature") != "ok" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
	gateway := &stubPaymentGateway{
		providers: map[string]bool{"manual": true, "stripe": true},
		parseFunc: func(_ context.Context, provider string, _ payments.NotificationRequest) (services.PaymentNotification, error) {
			return services.PaymentNotification{Provider: provider, Reference: "ref", RawStatus: "paid"}, nil
		},
	}
	reconciler := &stubReconciler{
		reconcileFunc: func(context.Context, services.PaymentNotification) (services.ReconcileResult, error) {
			return services.ReconcileResult{Record: services.NotificationRecord{Outcome: domain.NotificationApplied}, Applied: true}, nil
		},
	}
	router := newWebhookRouter(NewWebhookHandlers(gateway, reconciler, WithProviderMiddleware("manual", guard)))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/webhooks/payments/manual", strings.NewReader(`{}`)))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected guarded provider to reject unsigned request, got %d", rr.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/webhooks/payments/manual", strings.NewReader(`{}`))
	req.Header.Set("X-Signature", "ok")
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected signed request to pass, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/webhooks/payments/stripe", strings.NewReader(`{}`)))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected unguarded provider to pass, got %d", rr.Code)
	}
}

func TestWebhookHandlersGuardAppliesToAnyProviderCasing(t *testing.T) {
	denyAll := func(http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		})
	}
	gateway := &stubPaymentGateway{
		providers: map[string]bool{"manual": true},
		parseFunc: func(_ context.Context, provider string, _ payments.NotificationRequest) (services.PaymentNotification, error) {
			return services.PaymentNotification{Provider: provider, Reference: "ref", RawStatus: "paid"}, nil
		},
	}
	reconciler := &stubReconciler{
		reconcileFunc: func(context.Context, services.PaymentNotification) (services.ReconcileResult, error) {
			return services.ReconcileResult{Record: services.NotificationRecord{Outcome: domain.NotificationApplied}, Applied: true}, nil
		},
	}
	router := newWebhookRouter(NewWebhookHandlers(gateway, reconciler, WithProviderMiddleware("manual", denyAll)))

	for _, segment := range []string{"manual", "Manual", "MANUAL", "mAnUaL"} {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/webhooks/payments/"+segment, strings.NewReader(`{}`)))
		if rr.Code != http.StatusUnauthorized {
			t.Fatalf("%s: expected guard to reject, got %d", segment, rr.Code)
		}
	}
	if reconciler.calls != 0 {
		t.Fatalf("expected no notification to reach the reconciler, got %d", reconciler.calls)
	}
}
