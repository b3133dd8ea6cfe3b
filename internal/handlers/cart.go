package handlers

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/domain"
	"github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/platform/httpx"
	"github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/services"
)

const (
	maxCartBodySize = 16 * 1024
	clientIDHeader  = "X-Client-ID"
)

// CartHandlers exposes the cart session keyed by the X-Client-ID header. A missing header mints a
// new client id which is echoed back on the response.
type CartHandlers struct {
	carts services.CartService
}

// NewCartHandlers constructs cart handlers.
func NewCartHandlers(carts services.CartService) *CartHandlers {
	return &CartHandlers{carts: carts}
}

// Routes registers cart endpoints under the provided router.
func (h *CartHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/", h.getCart)
	r.Delete("/", h.clearCart)
	r.Post("/items", h.addItem)
	r.Patch("/items/{itemId}", h.updateItem)
	r.Delete("/items/{itemId}", h.removeItem)
}

type cartResponse struct {
	ClientID          string            `json:"clientId"`
	Currency          string            `json:"currency,omitempty"`
	Items             []lineItemPayload `json:"items"`
	ItemsCount        int               `json:"itemsCount"`
	Subtotal          int64             `json:"subtotal"`
	FormattedSubtotal string            `json:"formattedSubtotal,omitempty"`
	Version           int64             `json:"version"`
	UpdatedAt         string            `json:"updatedAt,omitempty"`
}

type addCartItemRequest struct {
	ReferenceID string `json:"referenceId"`
	Kind        string `json:"kind"`
	Name        string `json:"name"`
	UnitPrice   int64  `json:"unitPrice"`
	Quantity    int    `json:"quantity"`
	Currency    string `json:"currency"`
	BookingDate string `json:"bookingDate"`
	BookingTime string `json:"bookingTime"`
}

type updateCartItemRequest struct {
	Quantity *int `json:"quantity"`
}

func (h *CartHandlers) getCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	clientID, ok := h.clientID(w, r)
	if !ok {
		return
	}
	view, err := h.carts.Get(ctx, clientID)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeCartResponse(w, http.StatusOK, clientID, view)
}

func (h *CartHandlers) addItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	clientID, ok := h.clientID(w, r)
	if !ok {
		return
	}

	var req addCartItemRequest
	if err := httpx.DecodeJSON(r, maxCartBodySize, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.BodyError("invalid_request", err))
		return
	}

	item := lineItemPayload{
		ReferenceID: req.ReferenceID,
		Kind:        req.Kind,
		Name:        req.Name,
		UnitPrice:   req.UnitPrice,
		Quantity:    req.Quantity,
		Currency:    req.Currency,
		BookingDate: req.BookingDate,
		BookingTime: req.BookingTime,
	}.toDomain()
	if item.Quantity == 0 {
		item.Quantity = 1
	}

	view, err := h.carts.AddItem(ctx, services.CartItemCommand{
		ClientID: clientID,
		Currency: strings.TrimSpace(req.Currency),
		Item:     item,
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeCartResponse(w, http.StatusOK, clientID, view)
}

func (h *CartHandlers) updateItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	clientID, ok := h.clientID(w, r)
	if !ok {
		return
	}
	itemID, ok := cartItemID(w, r)
	if !ok {
		return
	}

	var req updateCartItemRequest
	if err := httpx.DecodeJSON(r, maxCartBodySize, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.BodyError("invalid_request", err))
		return
	}
	if req.Quantity == nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "quantity is required", http.StatusBadRequest))
		return
	}

	view, err := h.carts.UpdateQuantity(ctx, clientID, itemID, *req.Quantity)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeCartResponse(w, http.StatusOK, clientID, view)
}

func (h *CartHandlers) removeItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	clientID, ok := h.clientID(w, r)
	if !ok {
		return
	}
	itemID, ok := cartItemID(w, r)
	if !ok {
		return
	}
	view, err := h.carts.RemoveItem(ctx, clientID, itemID)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeCartResponse(w, http.StatusOK, clientID, view)
}

func (h *CartHandlers) clearCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	clientID, ok := h.clientID(w, r)
	if !ok {
		return
	}
	view, err := h.carts.Clear(ctx, clientID)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeCartResponse(w, http.StatusOK, clientID, view)
}

func (h *CartHandlers) clientID(w http.ResponseWriter, r *http.Request) (string, bool) {
	if h.carts == nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("cart_unavailable", "cart service unavailable", http.StatusServiceUnavailable))
		return "", false
	}
	clientID := strings.TrimSpace(r.Header.Get(clientIDHeader))
	if clientID == "" {
		clientID = h.carts.NewClientID()
	}
	w.Header().Set(clientIDHeader, clientID)
	return clientID, true
}

func cartItemID(w http.ResponseWriter, r *http.Request) (string, bool) {
	raw := chi.URLParam(r, "itemId")
	itemID, err := url.PathUnescape(raw)
	if err != nil || strings.TrimSpace(itemID) == "" {
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_request", "item id is required", http.StatusBadRequest))
		return "", false
	}
	return strings.TrimSpace(itemID), true
}

func writeCartResponse(w http.ResponseWriter, status int, clientID string, view services.CartView) {
	items := make([]lineItemPayload, 0, len(view.Cart.Items))
	for _, item := range view.Cart.Items {
		items = append(items, newLineItemPayload(item))
	}
	w.Header().Set("Cache-Control", "no-store, no-cache, max-age=0, must-revalidate")
	if view.Cart.Version > 0 {
		w.Header().Set("ETag", strconv.Quote(strconv.FormatInt(view.Cart.Version, 10)))
	}
	httpx.WriteJSON(w, status, cartResponse{
		ClientID:          clientID,
		Currency:          view.Cart.Currency,
		Items:             items,
		ItemsCount:        countUnits(view.Cart.Items),
		Subtotal:          view.Subtotal,
		FormattedSubtotal: view.FormattedSubtotal,
		Version:           view.Cart.Version,
		UpdatedAt:         formatTime(view.Cart.UpdatedAt),
	})
}

func countUnits(items []domain.LineItem) int {
	total := 0
	for _, item := range items {
		total += item.Quantity
	}
	return total
}
