package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/payments"
	"github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/platform/httpx"
	"github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/platform/observability"
	"github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/services"
)

const maxWebhookBodySize = 256 * 1024

// WebhookHandlers receives payment provider callbacks and hands them to the reconciler.
type WebhookHandlers struct {
	gateway    services.PaymentGateway
	reconciler services.PaymentReconciler
	clock      func() time.Time
	guards     map[string][]func(http.Handler) http.Handler
}

// WebhookOption customises WebhookHandlers.
type WebhookOption func(*WebhookHandlers)

// WithWebhookClock overrides the receive timestamp clock.
func WithWebhookClock(clock func() time.Time) WebhookOption {
	return func(h *WebhookHandlers) {
		if clock != nil {
			h.clock = clock
		}
	}
}

// WithProviderMiddleware applies middleware to a single provider's callback route, typically
// an HMAC guard for providers without their own signature scheme.
func WithProviderMiddleware(provider string, mw ...func(http.Handler) http.Handler) WebhookOption {
	return func(h *WebhookHandlers) {
		key := strings.ToLower(strings.TrimSpace(provider))
		if key == "" {
			return
		}
		h.guards[key] = append(h.guards[key], mw...)
	}
}

// NewWebhookHandlers constructs payment webhook handlers.
func NewWebhookHandlers(gateway services.PaymentGateway, reconciler services.PaymentReconciler, opts ...WebhookOption) *WebhookHandlers {
	h := &WebhookHandlers{
		gateway:    gateway,
		reconciler: reconciler,
		clock:      time.Now,
		guards:     make(map[string][]func(http.Handler) http.Handler),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes registers /payments/{provider}. The provider segment is matched case-insensitively and
// a guarded provider is always served through its middleware chain.
func (h *WebhookHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	guarded := make(map[string]http.Handler, len(h.guards))
	for provider, guards := range h.guards {
		guarded[provider] = chi.Chain(guards...).Handler(h.receiveFor(provider))
	}
	r.Post("/payments/{provider}", func(w http.ResponseWriter, req *http.Request) {
		provider := strings.ToLower(strings.TrimSpace(chi.URLParam(req, "provider")))
		if next, ok := guarded[provider]; ok {
			next.ServeHTTP(w, req)
			return
		}
		h.receive(w, req, provider)
	})
}

type webhookResponse struct {
	Status      string `json:"status"`
	Outcome     string `json:"outcome,omitempty"`
	OrderNumber string `json:"orderNumber,omitempty"`
	Applied     bool   `json:"applied"`
}

func (h *WebhookHandlers) receiveFor(provider string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.receive(w, r, provider)
	}
}

func (h *WebhookHandlers) receive(w http.ResponseWriter, r *http.Request, provider string) {
	ctx := r.Context()
	provider = strings.ToLower(strings.TrimSpace(provider))
	if h.gateway == nil || h.reconciler == nil {
		httpx.WriteError(ctx, w, httpx.NewError("webhooks_unavailable", "payment webhooks are not configured", http.StatusServiceUnavailable))
		return
	}
	if !h.gateway.Has(provider) {
		httpx.WriteError(ctx, w, httpx.NewError("unknown_provider", "payment provider is not supported", http.StatusNotFound))
		return
	}

	body, err := httpx.ReadBody(r, maxWebhookBodySize)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.BodyError("invalid_notification", err))
		return
	}

	logger := observability.FromContext(ctx).With(zap.String("provider", provider))
	notification, err := h.gateway.ParseNotification(ctx, provider, payments.NotificationRequest{
		Headers:    r.Header.Clone(),
		Body:       body,
		ReceivedAt: h.clock().UTC(),
	})
	switch {
	case errors.Is(err, payments.ErrIgnoredEvent):
		httpx.WriteJSON(w, http.StatusOK, webhookResponse{Status: "ignored"})
		return
	case errors.Is(err, payments.ErrInvalidSignature):
		logger.Warn("payment notification rejected", zap.Error(err))
		httpx.WriteError(ctx, w, httpx.NewError("invalid_signature", "notification signature is invalid", http.StatusBadRequest))
		return
	case err != nil:
		logger.Warn("payment notification unparseable", zap.Error(err))
		httpx.WriteError(ctx, w, httpx.NewError("invalid_notification", "notification could not be parsed", http.StatusBadRequest))
		return
	}

	result, err := h.reconciler.Reconcile(ctx, notification)
	if err != nil {
		logger.Error("payment notification not reconciled", zap.Error(err), zap.String("reference", notification.Reference))
		httpx.WriteError(ctx, w, httpx.NewError("notification_not_recorded", "notification could not be recorded; retry later", http.StatusServiceUnavailable))
		return
	}
	if result.Err != nil {
		logger.Warn("payment notification recorded with outcome error", zap.Error(result.Err), zap.String("outcome", string(result.Record.Outcome)))
	}

	httpx.WriteJSON(w, http.StatusOK, webhookResponse{
		Status:      "recorded",
		Outcome:     string(result.Record.Outcome),
		OrderNumber: result.Record.OrderNumber,
		Applied:     result.Applied,
	})
}
