package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/domain"
	"github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/platform/auth"
	"github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/platform/httpx"
	"github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/services"
)

const (
	defaultAdminOrderPageSize = 50
	maxAdminOrderPageSize     = 200
	maxTransitionBodySize     = 8 * 1024
)

var validOrderStatuses = map[domain.OrderStatus]struct{}{
	domain.OrderStatusPending:    {},
	domain.OrderStatusProcessing: {},
	domain.OrderStatusPaid:       {},
	domain.OrderStatusFailed:     {},
	domain.OrderStatusCancelled:  {},
	domain.OrderStatusCompleted:  {},
	domain.OrderStatusRefunded:   {},
}

// AdminOrderHandlers exposes staff order listings, detail with notification history and the
// admin-only status override.
type AdminOrderHandlers struct {
	authn  *auth.Authenticator
	orders services.OrderService
}

// NewAdminOrderHandlers constructs admin order handlers guarded by Firebase authentication.
func NewAdminOrderHandlers(authn *auth.Authenticator, orders services.OrderService) *AdminOrderHandlers {
	return &AdminOrderHandlers{authn: authn, orders: orders}
}

// Routes registers admin order endpoints under the provided router.
func (h *AdminOrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	readers := r
	admins := r
	if h.authn != nil {
		readers = r.With(h.authn.RequireRole(auth.RoleStaff))
		admins = r.With(h.authn.RequireRole(auth.RoleAdmin))
	}
	readers.Get("/orders", h.listOrders)
	readers.Get("/orders/{orderNumber}", h.getOrder)
	admins.Post("/orders/{orderNumber}:transition", h.transitionOrder)
}

type adminOrderPayload struct {
	ID               string                `json:"id"`
	OrderNumber      string                `json:"orderNumber"`
	Status           string                `json:"status"`
	Items            []lineItemPayload     `json:"items"`
	Subtotal         int64                 `json:"subtotal"`
	Total            int64                 `json:"total"`
	Currency         string                `json:"currency"`
	Locale           string                `json:"locale,omitempty"`
	Customer         customerPayload       `json:"customer"`
	PaymentProvider  string                `json:"paymentProvider"`
	PaymentReference string                `json:"paymentReference,omitempty"`
	PaymentStatusRaw string                `json:"paymentStatusRaw,omitempty"`
	PaidAt           string                `json:"paidAt,omitempty"`
	NeedsReview      bool                  `json:"needsReview"`
	ReviewReason     string                `json:"reviewReason,omitempty"`
	History          []statusChangePayload `json:"history,omitempty"`
	Version          int64                 `json:"version"`
	CreatedAt        string                `json:"createdAt"`
	UpdatedAt        string                `json:"updatedAt"`
}

type statusChangePayload struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Actor  string `json:"actor,omitempty"`
	Reason string `json:"reason,omitempty"`
	At     string `json:"at"`
}

type notificationPayload struct {
	ID           string `json:"id"`
	Provider     string `json:"provider"`
	Reference    string `json:"reference,omitempty"`
	RawStatus    string `json:"rawStatus,omitempty"`
	Amount       *int64 `json:"amount,omitempty"`
	Currency     string `json:"currency,omitempty"`
	EventID      string `json:"eventId,omitempty"`
	Outcome      string `json:"outcome"`
	TargetStatus string `json:"targetStatus,omitempty"`
	Detail       string `json:"detail,omitempty"`
	ReceivedAt   string `json:"receivedAt"`
	ProcessedAt  string `json:"processedAt,omitempty"`
}

type adminOrderListResponse struct {
	Items         []adminOrderPayload `json:"items"`
	NextPageToken string              `json:"nextPageToken,omitempty"`
}

type adminOrderDetailResponse struct {
	Order         adminOrderPayload     `json:"order"`
	Notifications []notificationPayload `json:"notifications"`
}

type transitionRequest struct {
	Status           string `json:"status"`
	Reason           string `json:"reason"`
	PaymentReference string `json:"paymentReference"`
	ExpectedVersion  *int64 `json:"expectedVersion"`
}

func (h *AdminOrderHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("orders_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	query := r.URL.Query()
	filter := services.OrderListFilter{PageToken: strings.TrimSpace(query.Get("page_token"))}

	for _, raw := range parseFilterValues(query["status"]) {
		status := domain.OrderStatus(raw)
		if _, ok := validOrderStatuses[status]; !ok {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "unknown status filter "+raw, http.StatusBadRequest))
			return
		}
		filter.Status = append(filter.Status, status)
	}

	if raw := strings.TrimSpace(query.Get("needs_review")); raw != "" {
		flag, err := strconv.ParseBool(raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "needs_review must be a boolean", http.StatusBadRequest))
			return
		}
		filter.NeedsReview = &flag
	}

	if raw := strings.TrimSpace(query.Get("created_after")); raw != "" {
		ts, err := parseTimeParam(raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "created_after "+err.Error(), http.StatusBadRequest))
			return
		}
		filter.CreatedAfter = &ts
	}
	if raw := strings.TrimSpace(query.Get("created_before")); raw != "" {
		ts, err := parseTimeParam(raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "created_before "+err.Error(), http.StatusBadRequest))
			return
		}
		filter.CreatedBefore = &ts
	}

	pageSize, err := parseBoundedInt(query.Get("page_size"), defaultAdminOrderPageSize, maxAdminOrderPageSize)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "page_size "+err.Error(), http.StatusBadRequest))
		return
	}
	filter.PageSize = pageSize

	page, err := h.orders.ListOrders(ctx, filter)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	items := make([]adminOrderPayload, 0, len(page.Items))
	for _, order := range page.Items {
		payload := buildAdminOrderPayload(order)
		payload.History = nil
		items = append(items, payload)
	}
	httpx.WriteJSON(w, http.StatusOK, adminOrderListResponse{Items: items, NextPageToken: page.NextPageToken})
}

func (h *AdminOrderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("orders_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	detail, err := h.orders.GetOrderDetail(ctx, chi.URLParam(r, "orderNumber"))
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	notifications := make([]notificationPayload, 0, len(detail.Notifications))
	for _, record := range detail.Notifications {
		notifications = append(notifications, notificationPayload{
			ID:           record.ID,
			Provider:     record.Provider,
			Reference:    record.Reference,
			RawStatus:    record.RawStatus,
			Amount:       record.Amount,
			Currency:     record.Currency,
			EventID:      record.EventID,
			Outcome:      string(record.Outcome),
			TargetStatus: string(record.TargetStatus),
			Detail:       record.Detail,
			ReceivedAt:   formatTime(record.ReceivedAt),
			ProcessedAt:  formatTime(record.ProcessedAt),
		})
	}

	w.Header().Set("ETag", strconv.Quote(strconv.FormatInt(detail.Order.Version, 10)))
	httpx.WriteJSON(w, http.StatusOK, adminOrderDetailResponse{
		Order:         buildAdminOrderPayload(detail.Order),
		Notifications: notifications,
	})
}

func (h *AdminOrderHandlers) transitionOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("orders_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	staff, ok := auth.StaffFromContext(ctx)
	if !ok || strings.TrimSpace(staff.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return
	}

	var req transitionRequest
	if err := httpx.DecodeJSON(r, maxTransitionBodySize, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.BodyError("invalid_request", err))
		return
	}

	target := domain.OrderStatus(strings.ToLower(strings.TrimSpace(req.Status)))
	if _, ok := validOrderStatuses[target]; !ok {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "status must be a known order status", http.StatusBadRequest))
		return
	}

	expected := req.ExpectedVersion
	if expected == nil {
		if ifMatch := strings.Trim(strings.TrimSpace(r.Header.Get("If-Match")), `"`); ifMatch != "" {
			version, err := strconv.ParseInt(ifMatch, 10, 64)
			if err != nil {
				httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "If-Match must carry the order version", http.StatusBadRequest))
				return
			}
			expected = &version
		}
	}

	order, err := h.orders.OverrideStatus(ctx, services.OverrideStatusCommand{
		OrderNumber:      chi.URLParam(r, "orderNumber"),
		TargetStatus:     target,
		ExpectedVersion:  expected,
		PaymentReference: strings.TrimSpace(req.PaymentReference),
		ActorID:          staff.UID,
		Reason:           strings.TrimSpace(req.Reason),
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	w.Header().Set("ETag", strconv.Quote(strconv.FormatInt(order.Version, 10)))
	httpx.WriteJSON(w, http.StatusOK, buildAdminOrderPayload(order))
}

func buildAdminOrderPayload(order domain.Order) adminOrderPayload {
	items := make([]lineItemPayload, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, newLineItemPayload(item))
	}
	history := make([]statusChangePayload, 0, len(order.History))
	for _, change := range order.History {
		history = append(history, statusChangePayload{
			From:   string(change.From),
			To:     string(change.To),
			Actor:  change.Actor,
			Reason: change.Reason,
			At:     formatTime(change.At),
		})
	}
	return adminOrderPayload{
		ID:               order.ID,
		OrderNumber:      order.OrderNumber,
		Status:           string(order.Status),
		Items:            items,
		Subtotal:         order.Subtotal,
		Total:            order.Total,
		Currency:         order.Currency,
		Locale:           order.Locale,
		Customer:         newCustomerPayload(order.Customer),
		PaymentProvider:  order.PaymentProvider,
		PaymentReference: order.PaymentReference,
		PaymentStatusRaw: order.PaymentStatusRaw,
		PaidAt:           formatTimePointer(order.PaidAt),
		NeedsReview:      order.NeedsReview,
		ReviewReason:     order.ReviewReason,
		History:          history,
		Version:          order.Version,
		CreatedAt:        formatTime(order.CreatedAt),
		UpdatedAt:        formatTime(order.UpdatedAt),
	}
}
