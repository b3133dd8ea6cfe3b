package handlers

import (
	"context"
	"errors"
	"time"

	domain "github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/domain"
	"github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/payments"
	"github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/services"
)

var errStubNotConfigured = errors.New("stub: not configured")

type stubCheckoutService struct {
	checkoutFunc func(ctx context.Context, cmd services.CheckoutCommand) (services.CheckoutResult, error)
}

func (s *stubCheckoutService) Checkout(ctx context.Context, cmd services.CheckoutCommand) (services.CheckoutResult, error) {
	if s.checkoutFunc == nil {
		return services.CheckoutResult{}, errStubNotConfigured
	}
	return s.checkoutFunc(ctx, cmd)
}

type stubOrderService struct {
	lookupFunc   func(ctx context.Context, orderNumber, email string) (services.Order, error)
	listFunc     func(ctx context.Context, filter services.OrderListFilter) (domain.CursorPage[services.Order], error)
	detailFunc   func(ctx context.Context, orderNumber string) (services.OrderDetail, error)
	overrideFunc func(ctx context.Context, cmd services.OverrideStatusCommand) (services.Order, error)
	staleFunc    func(ctx context.Context, olderThan time.Duration, limit int) ([]services.Order, error)
}

func (s *stubOrderService) LookupForCustomer(ctx context.Context, orderNumber, email string) (services.Order, error) {
	if s.lookupFunc == nil {
		return services.Order{}, errStubNotConfigured
	}
	return s.lookupFunc(ctx, orderNumber, email)
}

func (s *stubOrderService) ListOrders(ctx context.Context, filter services.OrderListFilter) (domain.CursorPage[services.Order], error) {
	if s.listFunc == nil {
		return domain.CursorPage[services.Order]{}, errStubNotConfigured
	}
	return s.listFunc(ctx, filter)
}

func (s *stubOrderService) GetOrderDetail(ctx context.Context, orderNumber string) (services.OrderDetail, error) {
	if s.detailFunc == nil {
		return services.OrderDetail{}, errStubNotConfigured
	}
	return s.detailFunc(ctx, orderNumber)
}

func (s *stubOrderService) OverrideStatus(ctx context.Context, cmd services.OverrideStatusCommand) (services.Order, error) {
	if s.overrideFunc == nil {
		return services.Order{}, errStubNotConfigured
	}
	return s.overrideFunc(ctx, cmd)
}

func (s *stubOrderService) ListStalePending(ctx context.Context, olderThan time.Duration, limit int) ([]services.Order, error) {
	if s.staleFunc == nil {
		return nil, errStubNotConfigured
	}
	return s.staleFunc(ctx, olderThan, limit)
}

type stubCartService struct {
	newClientID  string
	getFunc      func(ctx context.Context, clientID string) (services.CartView, error)
	addFunc      func(ctx context.Context, cmd services.CartItemCommand) (services.CartView, error)
	quantityFunc func(ctx context.Context, clientID, itemID string, quantity int) (services.CartView, error)
	removeFunc   func(ctx context.Context, clientID, itemID string) (services.CartView, error)
	clearFunc    func(ctx context.Context, clientID string) (services.CartView, error)
}

func (s *stubCartService) NewClientID() string {
	return s.newClientID
}

func (s *stubCartService) Get(ctx context.Context, clientID string) (services.CartView, error) {
	if s.getFunc == nil {
		return services.CartView{}, errStubNotConfigured
	}
	return s.getFunc(ctx, clientID)
}

func (s *stubCartService) AddItem(ctx context.Context, cmd services.CartItemCommand) (services.CartView, error) {
	if s.addFunc == nil {
		return services.CartView{}, errStubNotConfigured
	}
	return s.addFunc(ctx, cmd)
}

func (s *stubCartService) UpdateQuantity(ctx context.Context, clientID, itemID string, quantity int) (services.CartView, error) {
	if s.quantityFunc == nil {
		return services.CartView{}, errStubNotConfigured
	}
	return s.quantityFunc(ctx, clientID, itemID, quantity)
}

func (s *stubCartService) RemoveItem(ctx context.Context, clientID, itemID string) (services.CartView, error) {
	if s.removeFunc == nil {
		return services.CartView{}, errStubNotConfigured
	}
	return s.removeFunc(ctx, clientID, itemID)
}

func (s *stubCartService) Clear(ctx context.Context, clientID string) (services.CartView, error) {
	if s.clearFunc == nil {
		return services.CartView{}, errStubNotConfigured
	}
	return s.clearFunc(ctx, clientID)
}

type stubPaymentGateway struct {
	providers map[string]bool
	parseFunc func(ctx context.Context, provider string, req payments.NotificationRequest) (services.PaymentNotification, error)
}

func (s *stubPaymentGateway) Has(provider string) bool {
	return s.providers[provider]
}

func (s *stubPaymentGateway) Resolve(payments.PaymentContext) (string, error) {
	return "", errStubNotConfigured
}

func (s *stubPaymentGateway) CreateCheckoutSession(context.Context, payments.PaymentContext, payments.CheckoutSessionRequest) (payments.CheckoutSession, error) {
	return payments.CheckoutSession{}, errStubNotConfigured
}

func (s *stubPaymentGateway) ParseNotification(ctx context.Context, provider string, req payments.NotificationRequest) (services.PaymentNotification, error) {
	if s.parseFunc == nil {
		return services.PaymentNotification{}, errStubNotConfigured
	}
	return s.parseFunc(ctx, provider, req)
}

type stubReconciler struct {
	calls         int
	reconcileFunc func(ctx context.Context, notification services.PaymentNotification) (services.ReconcileResult, error)
}

func (s *stubReconciler) Reconcile(ctx context.Context, notification services.PaymentNotification) (services.ReconcileResult, error) {
	s.calls++
	if s.reconcileFunc == nil {
		return services.ReconcileResult{}, errStubNotConfigured
	}
	return s.reconcileFunc(ctx, notification)
}

var (
	_ services.CheckoutService   = (*stubCheckoutService)(nil)
	_ services.OrderService      = (*stubOrderService)(nil)
	_ services.CartService       = (*stubCartService)(nil)
	_ services.PaymentGateway    = (*stubPaymentGateway)(nil)
	_ services.PaymentReconciler = (*stubReconciler)(nil)
)

func sampleOrder(now time.Time) services.Order {
	paidAt := now.Add(5 * time.Minute)
	return services.Order{
		ID:          "01HZX3J3K8S0M2B9Q4VYB0T7ZC",
		OrderNumber: "PFS-0A1B2C-7KQ9XZ",
		Items: []services.LineItem{
			{ReferenceID: "styling-session", Kind: domain.ItemKindService, Name: "Personal styling", UnitPrice: 250000, Quantity: 1, Currency: "UAH", BookingDate: "2024-06-01", BookingTime: "10:00"},
			{ReferenceID: "silk-scarf", Kind: domain.ItemKindProduct, Name: "Silk scarf", UnitPrice: 175000, Quantity: 2, Currency: "UAH"},
		},
		Subtotal: 600000,
		Total:    600000,
		Currency: "UAH",
		Customer: services.Customer{
			FirstName: "Olena",
			LastName:  "Koval",
			Email:     "olena@example.com",
			Phone:     "+380501234567",
		},
		Locale:           "uk",
		Status:           domain.OrderStatusPaid,
		PaymentProvider:  "liqpay",
		PaymentReference: "liqpay-123",
		PaymentStatusRaw: "success",
		PaidAt:           &paidAt,
		History: []services.StatusChange{
			{From: domain.OrderStatusPending, To: domain.OrderStatusProcessing, Actor: "liqpay", At: paidAt},
			{From: domain.OrderStatusProcessing, To: domain.OrderStatusPaid, Actor: "liqpay", At: paidAt},
		},
		Version:   3,
		CreatedAt: now,
		UpdatedAt: paidAt,
	}
}
