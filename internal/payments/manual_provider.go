package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	domain "github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/domain"
)

// ManualProviderConfig configures the manual (bank transfer / cash on visit) provider.
type ManualProviderConfig struct {
	InstructionsURL string
	Clock           func() time.Time
}

// ManualProvider redirects shoppers to payment instructions. Status updates arrive as JSON from
// back-office tooling; authenticity is enforced by the HMAC middleware in front of the webhook route.
type ManualProvider struct {
	instructions *url.URL
	clock        func() time.Time
}

type manualNotification struct {
	OrderNumber string `json:"orderNumber"`
	Reference   string `json:"reference"`
	Status      string `json:"status"`
	Amount      *int64 `json:"amount"`
	Currency    string `json:"currency"`
	EventID     string `json:"eventId"`
}

// NewManualProvider parses the instructions URL.
func NewManualProvider(cfg ManualProviderConfig) (*ManualProvider, error) {
	raw := strings.TrimSpace(cfg.InstructionsURL)
	if raw == "" {
		return nil, errors.New("manual: instructions url is required")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("manual: parse instructions url: %w", err)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &ManualProvider{
		instructions: parsed,
		clock:        func() time.Time { return clock().UTC() },
	}, nil
}

// CreateCheckoutSession points the shopper at the instructions page for the order.
func (p *ManualProvider) CreateCheckoutSession(_ context.Context, req CheckoutSessionRequest) (CheckoutSession, error) {
	target := *p.instructions
	query := target.Query()
	query.Set("order", req.OrderNumber)
	target.RawQuery = query.Encode()
	return CheckoutSession{
		ID:          req.OrderNumber,
		Provider:    "manual",
		RedirectURL: target.String(),
		ExpiresAt:   p.clock().Add(7 * 24 * time.Hour),
	}, nil
}

// ParseNotification decodes the JSON status update.
func (p *ManualProvider) ParseNotification(_ context.Context, req NotificationRequest) (domain.PaymentNotification, error) {
	decoder := json.NewDecoder(bytes.NewReader(req.Body))
	decoder.DisallowUnknownFields()
	var body manualNotification
	if err := decoder.Decode(&body); err != nil {
		return domain.PaymentNotification{}, fmt.Errorf("%w: %v", ErrMalformedNotification, err)
	}
	orderNumber := strings.TrimSpace(body.OrderNumber)
	if orderNumber == "" || strings.TrimSpace(body.Status) == "" {
		return domain.PaymentNotification{}, fmt.Errorf("%w: orderNumber and status are required", ErrMalformedNotification)
	}
	return domain.PaymentNotification{
		Reference:        strings.TrimSpace(body.Reference),
		CorrelationToken: orderNumber,
		RawStatus:        body.Status,
		Amount:           body.Amount,
		Currency:         strings.ToUpper(strings.TrimSpace(body.Currency)),
		EventID:          strings.TrimSpace(body.EventID),
		ReceivedAt:       req.ReceivedAt,
		Payload:          req.Body,
	}, nil
}
