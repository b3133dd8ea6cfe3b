package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/platform/httpx"
	"github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/services"
)

const maxStalePendingLimit = 500

// InternalOrderHandlers serves service-to-service order endpoints. Authentication is applied
// by the router's internal middleware group.
type InternalOrderHandlers struct {
	orders     services.OrderService
	defaultAge time.Duration
}

// NewInternalOrderHandlers constructs internal handlers. defaultAge applies when olderThan is omitted.
func NewInternalOrderHandlers(orders services.OrderService, defaultAge time.Duration) *InternalOrderHandlers {
	return &InternalOrderHandlers{orders: orders, defaultAge: defaultAge}
}

// Routes registers internal order endpoints under the provided router.
func (h *InternalOrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/orders/stale-pending", h.listStalePending)
}

type stalePendingOrderPayload struct {
	OrderNumber     string `json:"orderNumber"`
	Total           int64  `json:"total"`
	Currency        string `json:"currency"`
	PaymentProvider string `json:"paymentProvider"`
	Version         int64  `json:"version"`
	CreatedAt       string `json:"createdAt"`
}

type stalePendingResponse struct {
	OlderThan string                     `json:"olderThan"`
	Items     []stalePendingOrderPayload `json:"items"`
}

func (h *InternalOrderHandlers) listStalePending(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("orders_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	query := r.URL.Query()
	olderThan := h.defaultAge
	if raw := strings.TrimSpace(query.Get("olderThan")); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil || parsed <= 0 {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "olderThan must be a positive duration such as 24h", http.StatusBadRequest))
			return
		}
		olderThan = parsed
	}

	limit, err := parseBoundedInt(query.Get("limit"), 0, maxStalePendingLimit)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "limit "+err.Error(), http.StatusBadRequest))
		return
	}

	orders, err := h.orders.ListStalePending(ctx, olderThan, limit)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	items := make([]stalePendingOrderPayload, 0, len(orders))
	for _, order := range orders {
		items = append(items, stalePendingOrderPayload{
			OrderNumber:     order.OrderNumber,
			Total:           order.Total,
			Currency:        order.Currency,
			PaymentProvider: order.PaymentProvider,
			Version:         order.Version,
			CreatedAt:       formatTime(order.CreatedAt),
		})
	}
	httpx.WriteJSON(w, http.StatusOK, stalePendingResponse{OlderThan: olderThan.String(), Items: items})
}
