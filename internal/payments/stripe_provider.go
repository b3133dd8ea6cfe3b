package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"
	"github.com/stripe/stripe-go/v78/webhook"

	domain "github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/domain"
)

const (
	stripeSignatureHeader = "Stripe-Signature"
	orderNumberMetadata   = "order_number"
)

// StripeLogger defines the logging contract for Stripe provider operations.
type StripeLogger func(ctx context.Context, event string, fields map[string]any)

type stripeSessionAPI interface {
	New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

// StripeProviderConfig configures the StripeProvider.
type StripeProviderConfig struct {
	APIKey        string
	WebhookSecret string
	AccountID     string
	Backends      *stripe.Backends
	Logger        StripeLogger
	Clock         func() time.Time
	Sessions      stripeSessionAPI
}

// StripeProvider creates Stripe Checkout sessions and verifies Stripe webhooks.
type StripeProvider struct {
	sessions      stripeSessionAPI
	webhookSecret string
	account       string
	clock         func() time.Time
	logger        StripeLogger
}

// NewStripeProvider constructs a Stripe Provider using the given configuration.
func NewStripeProvider(cfg StripeProviderConfig) (*StripeProvider, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" && cfg.Sessions == nil {
		return nil, errors.New("stripe: api key is required")
	}
	secret := strings.TrimSpace(cfg.WebhookSecret)
	if secret == "" {
		return nil, errors.New("stripe: webhook secret is required")
	}

	sessions := cfg.Sessions
	if sessions == nil {
		sessions = client.New(apiKey, cfg.Backends).CheckoutSessions
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &StripeProvider{
		sessions:      sessions,
		webhookSecret: secret,
		account:       strings.TrimSpace(cfg.AccountID),
		clock:         func() time.Time { return clock().UTC() },
		logger:        logger,
	}, nil
}

// CreateCheckoutSession creates a Stripe Checkout session carrying the order number as correlation token.
func (p *StripeProvider) CreateCheckoutSession(ctx context.Context, req CheckoutSessionRequest) (CheckoutSession, error) {
	if p == nil {
		return CheckoutSession{}, errors.New("stripe: provider is nil")
	}

	metadata := map[string]string{orderNumberMetadata: req.OrderNumber}
	maps.Copy(metadata, req.Metadata)

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(req.SuccessURL),
		CancelURL:         stripe.String(req.CancelURL),
		ClientReferenceID: stripe.String(req.OrderNumber),
		Metadata:          metadata,
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: maps.Clone(metadata),
		},
	}
	params.Context = ctx
	if key := strings.TrimSpace(req.IdempotencyKey); key != "" {
		params.SetIdempotencyKey(key)
	}
	if p.account != "" {
		params.SetStripeAccount(p.account)
	}
	if email := strings.TrimSpace(req.CustomerEmail); email != "" {
		params.CustomerEmail = stripe.String(email)
	}
	if req.Locale != "" {
		params.Locale = stripe.String(strings.ReplaceAll(strings.ToLower(req.Locale), "_", "-"))
	}

	for _, item := range req.Items {
		params.LineItems = append(params.LineItems, &stripe.CheckoutSessionLineItemParams{
			Quantity: stripe.Int64(max(item.Quantity, 1)),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(strings.ToLower(defaultString(item.Currency, req.Currency))),
				UnitAmount: stripe.Int64(item.Amount),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name:     stripe.String(defaultString(item.Name, item.SKU)),
					Metadata: map[string]string{"sku": item.SKU},
				},
			},
		})
	}
	if len(params.LineItems) == 0 {
		params.LineItems = []*stripe.CheckoutSessionLineItemParams{{
			Quantity: stripe.Int64(1),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(strings.ToLower(req.Currency)),
				UnitAmount: stripe.Int64(req.Amount),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(defaultString(req.Description, "Order "+req.OrderNumber)),
				},
			},
		}}
	}

	session, err := p.sessions.New(params)
	if err != nil {
		return CheckoutSession{}, fmt.Errorf("stripe: create checkout session: %w", err)
	}

	p.logger(ctx, "payments.stripe.session.created", map[string]any{
		"sessionId":   session.ID,
		"orderNumber": req.OrderNumber,
		"currency":    session.Currency,
	})

	expiresAt := p.clock().Add(24 * time.Hour)
	if session.ExpiresAt != 0 {
		expiresAt = time.Unix(session.ExpiresAt, 0).UTC()
	}
	return CheckoutSession{
		ID:          session.ID,
		Provider:    "stripe",
		RedirectURL: session.URL,
		ExpiresAt:   expiresAt,
	}, nil
}

// ParseNotification verifies the Stripe-Signature header and normalises the checkout, payment
// intent and refund events listed in the status table. Every other event type yields
// ErrIgnoredEvent.
func (p *StripeProvider) ParseNotification(ctx context.Context, req NotificationRequest) (domain.PaymentNotification, error) {
	if p == nil {
		return domain.PaymentNotification{}, errors.New("stripe: provider is nil")
	}
	event, err := webhook.ConstructEventWithOptions(req.Body, req.Headers.Get(stripeSignatureHeader), p.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return domain.PaymentNotification{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	if event.Data == nil {
		return domain.PaymentNotification{}, fmt.Errorf("%w: event %s has no data", ErrMalformedNotification, event.ID)
	}

	notification := domain.PaymentNotification{
		RawStatus:  string(event.Type),
		EventID:    event.ID,
		ReceivedAt: req.ReceivedAt,
		Payload:    req.Body,
	}

	eventType := string(event.Type)
	if _, known := MapStatus("stripe", eventType); !known {
		p.logger(ctx, "payments.stripe.event.ignored", map[string]any{"eventId": event.ID, "type": eventType})
		return domain.PaymentNotification{}, fmt.Errorf("%w: %s", ErrIgnoredEvent, eventType)
	}

	switch {
	case strings.HasPrefix(eventType, "checkout.session."):
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return domain.PaymentNotification{}, fmt.Errorf("%w: %v", ErrMalformedNotification, err)
		}
		if session.PaymentIntent != nil {
			notification.Reference = session.PaymentIntent.ID
		}
		notification.CorrelationToken = defaultString(session.ClientReferenceID, session.Metadata[orderNumberMetadata])
		notification.Currency = strings.ToUpper(string(session.Currency))
		amount := session.AmountTotal
		notification.Amount = &amount
		if event.Type == "checkout.session.completed" && session.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
			notification.RawStatus = eventType + ".unpaid"
		}
	case strings.HasPrefix(eventType, "payment_intent."):
		var intent stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
			return domain.PaymentNotification{}, fmt.Errorf("%w: %v", ErrMalformedNotification, err)
		}
		notification.Reference = intent.ID
		notification.CorrelationToken = intent.Metadata[orderNumberMetadata]
		notification.Currency = strings.ToUpper(string(intent.Currency))
		amount := intent.Amount
		notification.Amount = &amount
	case eventType == "charge.refunded":
		var charge stripe.Charge
		if err := json.Unmarshal(event.Data.Raw, &charge); err != nil {
			return domain.PaymentNotification{}, fmt.Errorf("%w: %v", ErrMalformedNotification, err)
		}
		if charge.PaymentIntent != nil {
			notification.Reference = charge.PaymentIntent.ID
		}
		notification.CorrelationToken = charge.Metadata[orderNumberMetadata]
		notification.Currency = strings.ToUpper(string(charge.Currency))
		amount := charge.Amount
		notification.Amount = &amount
		if charge.AmountRefunded < charge.Amount {
			notification.RawStatus = eventType + ".partial"
		}
	default:
		p.logger(ctx, "payments.stripe.event.ignored", map[string]any{"eventId": event.ID, "type": eventType})
		return domain.PaymentNotification{}, fmt.Errorf("%w: %s", ErrIgnoredEvent, eventType)
	}

	if notification.Reference == "" && notification.CorrelationToken == "" {
		return domain.PaymentNotification{}, fmt.Errorf("%w: event %s has no payment reference", ErrMalformedNotification, event.ID)
	}
	return notification, nil
}

func defaultString(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}
