package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/cart"
	"github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/payments"
	"github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/platform/textutil"
	"github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/pricing"
)

const (
	orderNumberPlaceholder = "{orderNumber}"
	webhookPathPrefix      = "/api/v1/webhooks/payments/"
)

// ErrCheckoutPaymentFailed indicates the order was stored but the PSP redirect could not be created.
var ErrCheckoutPaymentFailed = errors.New("checkout: payment session failed")

// PaymentSessionError reports a PSP failure after the order was persisted. The order stays pending
// and can be paid later under OrderNumber.
type PaymentSessionError struct {
	OrderNumber string
	Err         error
}

func (e *PaymentSessionError) Error() string {
	return fmt.Sprintf("%s for order %s: %v", ErrCheckoutPaymentFailed, e.OrderNumber, e.Err)
}

func (e *PaymentSessionError) Unwrap() []error {
	return []error{ErrCheckoutPaymentFailed, e.Err}
}

// CheckoutURLs holds the redirect targets handed to providers. SuccessURL and CancelURL may contain
// {orderNumber}; NotifyBaseURL is the public origin of this API.
type CheckoutURLs struct {
	SuccessURL    string
	CancelURL     string
	NotifyBaseURL string
}

// CheckoutServiceDeps wires the dependencies required by the checkout service.
type CheckoutServiceDeps struct {
	Factory   OrderFactory
	Payments  PaymentGateway
	CartStore cart.Store
	URLs      CheckoutURLs
	Clock     func() time.Time
	Logger    func(ctx context.Context, event string, fields map[string]any)
}

type checkoutService struct {
	factory   OrderFactory
	payments  PaymentGateway
	cartStore cart.Store
	urls      CheckoutURLs
	clock     func() time.Time
	logger    func(ctx context.Context, event string, fields map[string]any)
}

var _ CheckoutService = (*checkoutService)(nil)

// NewCheckoutService constructs a CheckoutService validating required dependencies.
func NewCheckoutService(deps CheckoutServiceDeps) (CheckoutService, error) {
	if deps.Factory == nil {
		return nil, errors.New("checkout service: order factory is required")
	}
	if deps.Payments == nil {
		return nil, errors.New("checkout service: payment gateway is required")
	}
	if strings.TrimSpace(deps.URLs.SuccessURL) == "" || strings.TrimSpace(deps.URLs.CancelURL) == "" {
		return nil, errors.New("checkout service: success and cancel urls are required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	urls := deps.URLs
	urls.NotifyBaseURL = strings.TrimRight(strings.TrimSpace(urls.NotifyBaseURL), "/")

	return &checkoutService{
		factory:   deps.Factory,
		payments:  deps.Payments,
		cartStore: deps.CartStore,
		urls:      urls,
		clock: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

// Checkout persists the order, requests the provider redirect and clears the client's cart.
func (s *checkoutService) Checkout(ctx context.Context, cmd CheckoutCommand) (CheckoutResult, error) {
	provider, err := s.payments.Resolve(payments.PaymentContext{
		PreferredProvider: cmd.PaymentProvider,
		Currency:          pricing.NormalizeCurrency(cmd.Cart.Currency),
	})
	if err != nil {
		verr := &ValidationError{}
		verr.add("paymentProvider", "is not supported")
		return CheckoutResult{}, verr
	}

	order, err := s.factory.Create(ctx, CreateOrderCommand{
		Cart:            cmd.Cart,
		Customer:        cmd.Customer,
		PaymentProvider: provider,
		Locale:          cmd.Locale,
	})
	if err != nil {
		return CheckoutResult{}, err
	}

	session, err := s.payments.CreateCheckoutSession(ctx, payments.PaymentContext{PreferredProvider: provider}, s.sessionRequest(order, cmd))
	if err != nil {
		s.logger(ctx, "checkout.payment_session.failed", map[string]any{
			"orderNumber": order.OrderNumber,
			"provider":    provider,
			"error":       err.Error(),
		})
		return CheckoutResult{Order: order}, &PaymentSessionError{OrderNumber: order.OrderNumber, Err: err}
	}

	s.clearCart(ctx, cmd.ClientID)

	s.logger(ctx, "checkout.completed", map[string]any{
		"orderNumber": order.OrderNumber,
		"provider":    session.Provider,
		"sessionId":   session.ID,
	})
	return CheckoutResult{Order: order, Redirect: session}, nil
}

func (s *checkoutService) sessionRequest(order Order, cmd CheckoutCommand) payments.CheckoutSessionRequest {
	items := make([]payments.CheckoutLineItem, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, payments.CheckoutLineItem{
			Name:     item.Name,
			SKU:      item.ReferenceID,
			Quantity: int64(item.Quantity),
			Amount:   item.UnitPrice,
			Currency: item.Currency,
		})
	}

	notifyURL := ""
	if s.urls.NotifyBaseURL != "" {
		notifyURL = s.urls.NotifyBaseURL + webhookPathPrefix + order.PaymentProvider
	}

	idempotencyKey := "checkout:" + order.OrderNumber
	if key := strings.TrimSpace(cmd.IdempotencyKey); key != "" {
		idempotencyKey = "checkout:" + key
	}

	return payments.CheckoutSessionRequest{
		OrderNumber:    order.OrderNumber,
		Amount:         order.Total,
		Currency:       order.Currency,
		Description:    "Order " + order.OrderNumber,
		CustomerEmail:  order.Customer.Email,
		SuccessURL:     expandOrderURL(s.urls.SuccessURL, order.OrderNumber),
		CancelURL:      expandOrderURL(s.urls.CancelURL, order.OrderNumber),
		NotifyURL:      notifyURL,
		Locale:         order.Locale,
		Metadata:       textutil.Metadata("order_id", order.ID, "client_id", cmd.ClientID),
		IdempotencyKey: idempotencyKey,
		Items:          items,
	}
}

func (s *checkoutService) clearCart(ctx context.Context, clientID string) {
	if s.cartStore == nil || strings.TrimSpace(clientID) == "" {
		return
	}
	key, err := canonicalClientID(clientID)
	if err != nil {
		s.logger(ctx, "checkout.cart_clear.skipped", map[string]any{
			"clientId": clientID,
			"error":    err.Error(),
		})
		return
	}
	aggregator, err := cart.NewAggregator(cart.AggregatorDeps{
		Store:    s.cartStore,
		ClientID: key,
		Clock:    s.clock,
		Logger:   s.logger,
	})
	if err == nil {
		err = aggregator.Hydrate(ctx)
	}
	if err == nil {
		_, err = aggregator.Clear(ctx)
	}
	if err != nil {
		s.logger(ctx, "checkout.cart_clear.failed", map[string]any{
			"clientId": clientID,
			"error":    err.Error(),
		})
	}
}

func expandOrderURL(template, orderNumber string) string {
	return strings.ReplaceAll(strings.TrimSpace(template), orderNumberPlaceholder, orderNumber)
}
