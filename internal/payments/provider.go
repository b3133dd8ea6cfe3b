// Package payments adapts payment service providers (Stripe, LiqPay and a manual bank transfer
// flow) to one checkout and notification contract.
package payments

import (
	"context"
	"errors"
	"net/http"
	"time"

	domain "github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/domain"
)

var (
	ErrUnsupportedProvider   = errors.New("payments: unsupported provider")
	ErrInvalidSignature      = errors.New("payments: invalid notification signature")
	ErrMalformedNotification = errors.New("payments: malformed notification")
	// ErrIgnoredEvent marks an authentic event that says nothing about payment status.
	ErrIgnoredEvent = errors.New("payments: event ignored")
)

type CheckoutLineItem struct {
	Name     string
	SKU      string
	Quantity int64
	Amount   int64
	Currency string
}

// CheckoutSessionRequest is what a provider needs to build a payment redirect for one order.
// Amounts are minor units.
type CheckoutSessionRequest struct {
	OrderNumber    string
	Amount         int64
	Currency       string
	Description    string
	CustomerEmail  string
	SuccessURL     string
	CancelURL      string
	NotifyURL      string
	Locale         string
	Metadata       map[string]string
	IdempotencyKey string
	Items          []CheckoutLineItem
}

// CheckoutSession tells the storefront where to send the shopper. POST sessions carry
// FormFields to submit; GET sessions only a URL.
type CheckoutSession struct {
	ID          string
	Provider    string
	RedirectURL string
	Method      string
	FormFields  map[string]string
	ExpiresAt   time.Time
}

type NotificationRequest struct {
	Headers    http.Header
	Body       []byte
	ReceivedAt time.Time
}

// Provider is one PSP adapter. ParseNotification must verify authenticity before decoding and
// return ErrInvalidSignature when it fails.
type Provider interface {
	CreateCheckoutSession(ctx context.Context, req CheckoutSessionRequest) (CheckoutSession, error)
	ParseNotification(ctx context.Context, req NotificationRequest) (domain.PaymentNotification, error)
}
