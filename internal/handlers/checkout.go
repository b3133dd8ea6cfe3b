package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/domain"
	"github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/platform/httpx"
	"github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/pricing"
	"github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/services"
)

const (
	maxCheckoutRequestBody = 32 * 1024
	idempotencyKeyHeader   = "Idempotency-Key"
)

// CheckoutHandlers exposes the anonymous storefront checkout submission.
type CheckoutHandlers struct {
	checkout services.CheckoutService
}

// NewCheckoutHandlers constructs checkout handlers.
func NewCheckoutHandlers(checkout services.CheckoutService) *CheckoutHandlers {
	return &CheckoutHandlers{checkout: checkout}
}

// Routes registers checkout endpoints under the provided router.
func (h *CheckoutHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/", h.submit)
}

type checkoutRequest struct {
	Cart            checkoutCartRequest `json:"cart"`
	Customer        customerPayload     `json:"customer"`
	PaymentProvider string              `json:"paymentProvider"`
	Locale          string              `json:"locale"`
}

type checkoutCartRequest struct {
	Currency string            `json:"currency"`
	Items    []lineItemPayload `json:"items"`
}

type lineItemPayload struct {
	ID          string `json:"id,omitempty"`
	ReferenceID string `json:"referenceId"`
	Kind        string `json:"kind"`
	Name        string `json:"name"`
	UnitPrice   int64  `json:"unitPrice"`
	Quantity    int    `json:"quantity"`
	Currency    string `json:"currency,omitempty"`
	BookingDate string `json:"bookingDate,omitempty"`
	BookingTime string `json:"bookingTime,omitempty"`
	LineTotal   int64  `json:"lineTotal,omitempty"`
}

type customerPayload struct {
	FirstName string          `json:"firstName"`
	LastName  string          `json:"lastName"`
	Email     string          `json:"email"`
	Phone     string          `json:"phone"`
	Address   *addressPayload `json:"address,omitempty"`
}

type addressPayload struct {
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	Region     string `json:"region,omitempty"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
}

type checkoutResponse struct {
	OrderNumber         string                 `json:"orderNumber"`
	Total               int64                  `json:"total"`
	Currency            string                 `json:"currency"`
	Status              string                 `json:"status"`
	PaymentRedirectInfo paymentRedirectPayload `json:"paymentRedirectInfo"`
}

type paymentRedirectPayload struct {
	Provider   string            `json:"provider"`
	SessionID  string            `json:"sessionId,omitempty"`
	URL        string            `json:"url,omitempty"`
	Method     string            `json:"method,omitempty"`
	FormFields map[string]string `json:"formFields,omitempty"`
	ExpiresAt  string            `json:"expiresAt,omitempty"`
}

func (h *CheckoutHandlers) submit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.checkout == nil {
		httpx.WriteError(ctx, w, httpx.NewError("checkout_unavailable", "checkout service unavailable", http.StatusServiceUnavailable))
		return
	}

	var req checkoutRequest
	if err := httpx.DecodeJSON(r, maxCheckoutRequestBody, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.BodyError("invalid_request", err))
		return
	}

	items := make([]domain.LineItem, 0, len(req.Cart.Items))
	for _, item := range req.Cart.Items {
		items = append(items, item.toDomain())
	}

	result, err := h.checkout.Checkout(ctx, services.CheckoutCommand{
		Cart: domain.Cart{
			ClientID: strings.TrimSpace(r.Header.Get(clientIDHeader)),
			Currency: req.Cart.Currency,
			Items:    items,
		},
		Customer:        req.Customer.toDomain(),
		PaymentProvider: strings.TrimSpace(req.PaymentProvider),
		Locale:          strings.TrimSpace(req.Locale),
		ClientID:        strings.TrimSpace(r.Header.Get(clientIDHeader)),
		IdempotencyKey:  strings.TrimSpace(r.Header.Get(idempotencyKeyHeader)),
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	redirect := result.Redirect
	httpx.WriteJSON(w, http.StatusCreated, checkoutResponse{
		OrderNumber: result.Order.OrderNumber,
		Total:       result.Order.Total,
		Currency:    result.Order.Currency,
		Status:      string(result.Order.Status),
		PaymentRedirectInfo: paymentRedirectPayload{
			Provider:   redirect.Provider,
			SessionID:  redirect.ID,
			URL:        redirect.RedirectURL,
			Method:     redirect.Method,
			FormFields: redirect.FormFields,
			ExpiresAt:  formatTime(redirect.ExpiresAt),
		},
	})
}

func (p lineItemPayload) toDomain() domain.LineItem {
	return domain.LineItem{
		ReferenceID: strings.TrimSpace(p.ReferenceID),
		Kind:        domain.ItemKind(strings.ToLower(strings.TrimSpace(p.Kind))),
		Name:        strings.TrimSpace(p.Name),
		UnitPrice:   p.UnitPrice,
		Quantity:    p.Quantity,
		Currency:    strings.TrimSpace(p.Currency),
		BookingDate: strings.TrimSpace(p.BookingDate),
		BookingTime: strings.TrimSpace(p.BookingTime),
	}
}

func (p customerPayload) toDomain() domain.Customer {
	customer := domain.Customer{
		FirstName: p.FirstName,
		LastName:  p.LastName,
		Email:     p.Email,
		Phone:     p.Phone,
	}
	if p.Address != nil {
		customer.Address = &domain.Address{
			Line1:      p.Address.Line1,
			Line2:      p.Address.Line2,
			City:       p.Address.City,
			Region:     p.Address.Region,
			PostalCode: p.Address.PostalCode,
			Country:    p.Address.Country,
		}
	}
	return customer
}

func newLineItemPayload(item domain.LineItem) lineItemPayload {
	lineTotal, _ := pricing.LineTotal(item)
	return lineItemPayload{
		ID:          item.ID(),
		ReferenceID: item.ReferenceID,
		Kind:        string(item.Kind),
		Name:        item.Name,
		UnitPrice:   item.UnitPrice,
		Quantity:    item.Quantity,
		Currency:    item.Currency,
		BookingDate: item.BookingDate,
		BookingTime: item.BookingTime,
		LineTotal:   lineTotal,
	}
}

func newCustomerPayload(customer domain.Customer) customerPayload {
	payload := customerPayload{
		FirstName: customer.FirstName,
		LastName:  customer.LastName,
		Email:     customer.Email,
		Phone:     customer.Phone,
	}
	if addr := customer.Address; addr != nil {
		payload.Address = &addressPayload{
			Line1:      addr.Line1,
			Line2:      addr.Line2,
			City:       addr.City,
			Region:     addr.Region,
			PostalCode: addr.PostalCode,
			Country:    addr.Country,
		}
	}
	return payload
}
