package handlers

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/domain"
	"github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/platform/httpx"
	"github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/pricing"
	"github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/services"
)

const defaultLookupPerMinute = 30

// OrderHandlers serves the customer facing order status lookup.
type OrderHandlers struct {
	orders  services.OrderService
	limiter *windowLimiter
}

// OrderOption customises OrderHandlers.
type OrderOption func(*orderHandlerConfig)

type orderHandlerConfig struct {
	perMinute int
	clock     func() time.Time
}

// WithLookupRateLimit caps lookups per client address per minute. Zero disables limiting.
func WithLookupRateLimit(perMinute int) OrderOption {
	return func(cfg *orderHandlerConfig) {
		cfg.perMinute = perMinute
	}
}

// WithLookupClock overrides the rate limiter clock.
func WithLookupClock(clock func() time.Time) OrderOption {
	return func(cfg *orderHandlerConfig) {
		if clock != nil {
			cfg.clock = clock
		}
	}
}

// NewOrderHandlers constructs the customer lookup handlers.
func NewOrderHandlers(orders services.OrderService, opts ...OrderOption) *OrderHandlers {
	cfg := orderHandlerConfig{perMinute: defaultLookupPerMinute, clock: time.Now}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &OrderHandlers{
		orders:  orders,
		limiter: newWindowLimiter(cfg.perMinute, time.Minute, cfg.clock),
	}
}

// Routes registers order endpoints under the provided router.
func (h *OrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/{orderNumber}", h.lookup)
}

type customerOrderPayload struct {
	OrderNumber       string            `json:"orderNumber"`
	Status            string            `json:"status"`
	Items             []lineItemPayload `json:"items"`
	Subtotal          int64             `json:"subtotal"`
	Total             int64             `json:"total"`
	Currency          string            `json:"currency"`
	FormattedTotal    string            `json:"formattedTotal"`
	PaymentProvider   string            `json:"paymentProvider"`
	PaidAt            string            `json:"paidAt,omitempty"`
	CreatedAt         string            `json:"createdAt"`
	UpdatedAt         string            `json:"updatedAt"`
	AwaitingPayment   bool              `json:"awaitingPayment"`
	StatusDescription string            `json:"statusDescription"`
}

func (h *OrderHandlers) lookup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("orders_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}
	if ok, wait := h.limiter.allow(clientAddress(r)); !ok {
		w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
		httpx.WriteError(ctx, w, httpx.NewError("rate_limited", "too many lookups; try again later", http.StatusTooManyRequests))
		return
	}

	orderNumber := strings.TrimSpace(chi.URLParam(r, "orderNumber"))
	email := strings.TrimSpace(r.URL.Query().Get("email"))
	if orderNumber == "" || email == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order number and email are required", http.StatusBadRequest))
		return
	}

	order, err := h.orders.LookupForCustomer(ctx, orderNumber, email)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	httpx.WriteJSON(w, http.StatusOK, buildCustomerOrderPayload(order))
}

func buildCustomerOrderPayload(order domain.Order) customerOrderPayload {
	items := make([]lineItemPayload, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, newLineItemPayload(item))
	}
	return customerOrderPayload{
		OrderNumber:       order.OrderNumber,
		Status:            string(order.Status),
		Items:             items,
		Subtotal:          order.Subtotal,
		Total:             order.Total,
		Currency:          order.Currency,
		FormattedTotal:    pricing.Format(order.Total, order.Currency, order.Locale),
		PaymentProvider:   order.PaymentProvider,
		PaidAt:            formatTimePointer(order.PaidAt),
		CreatedAt:         formatTime(order.CreatedAt),
		UpdatedAt:         formatTime(order.UpdatedAt),
		AwaitingPayment:   order.Status == domain.OrderStatusPending || order.Status == domain.OrderStatusProcessing,
		StatusDescription: describeStatus(order.Status),
	}
}

// describeStatus gives the storefront a neutral sentence. Pending orders are never described
// as failed.
func describeStatus(status domain.OrderStatus) string {
	switch status {
	case domain.OrderStatusPending:
		return "Awaiting payment confirmation."
	case domain.OrderStatusProcessing:
		return "Payment is being processed."
	case domain.OrderStatusPaid:
		return "Payment received."
	case domain.OrderStatusFailed:
		return "Payment failed."
	case domain.OrderStatusCancelled:
		return "Order cancelled."
	case domain.OrderStatusCompleted:
		return "Order completed."
	case domain.OrderStatusRefunded:
		return "Payment refunded."
	default:
		return ""
	}
}

func clientAddress(r *http.Request) string {
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err != nil {
		return strings.TrimSpace(r.RemoteAddr)
	}
	return host
}
