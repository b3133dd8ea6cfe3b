package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/domain"
	"github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/platform/pagination"
	"github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/repositories"
)

const (
	defaultStalePendingAge   = 24 * time.Hour
	defaultStalePendingLimit = 100
	maxStalePendingLimit     = 500
)

// OrderServiceDeps bundles collaborators required to construct the order service.
type OrderServiceDeps struct {
	Orders        repositories.OrderRepository
	Notifications repositories.NotificationRepository
	UnitOfWork    repositories.UnitOfWork
	Clock         func() time.Time
	Events        OrderEventPublisher
	Logger        func(ctx context.Context, event string, fields map[string]any)
}

type orderService struct {
	orders        repositories.OrderRepository
	notifications repositories.NotificationRepository
	unitOfWork    repositories.UnitOfWork
	machine       OrderStateMachine
	clock         func() time.Time
	events        OrderEventPublisher
	logger        func(context.Context, string, map[string]any)
}

var _ OrderService = (*orderService)(nil)

// NewOrderService wires dependencies into a concrete OrderService implementation.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Orders == nil {
		return nil, errors.New("order service: order repository is required")
	}

	unit := deps.UnitOfWork
	if unit == nil {
		unit = noopUnitOfWork{}
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &orderService{
		orders:        deps.Orders,
		notifications: deps.Notifications,
		unitOfWork:    unit,
		clock: func() time.Time {
			return clock().UTC()
		},
		events: deps.Events,
		logger: logger,
	}, nil
}

// LookupForCustomer returns the order only when email matches the customer on it, so order
// numbers alone do not disclose order details.
func (s *orderService) LookupForCustomer(ctx context.Context, orderNumber, email string) (Order, error) {
	orderNumber = strings.TrimSpace(orderNumber)
	email = strings.ToLower(strings.TrimSpace(email))
	if orderNumber == "" || email == "" {
		return Order{}, fmt.Errorf("%w: order number and email are required", ErrOrderValidation)
	}

	order, err := s.orders.FindByNumber(ctx, orderNumber)
	if err != nil {
		return Order{}, mapOrderRepositoryError(err)
	}
	if !strings.EqualFold(order.Customer.Email, email) {
		return Order{}, fmt.Errorf("%w: %s", ErrOrderNotFound, orderNumber)
	}
	return order, nil
}

func (s *orderService) ListOrders(ctx context.Context, filter OrderListFilter) (domain.CursorPage[Order], error) {
	page, err := s.orders.List(ctx, filter)
	if errors.Is(err, pagination.ErrInvalidPageToken) {
		return domain.CursorPage[Order]{}, fmt.Errorf("%w: %v", ErrOrderValidation, err)
	}
	if err != nil {
		return domain.CursorPage[Order]{}, mapOrderRepositoryError(err)
	}
	return page, nil
}

func (s *orderService) GetOrderDetail(ctx context.Context, orderNumber string) (OrderDetail, error) {
	orderNumber = strings.TrimSpace(orderNumber)
	if orderNumber == "" {
		return OrderDetail{}, fmt.Errorf("%w: order number is required", ErrOrderValidation)
	}

	order, err := s.orders.FindByNumber(ctx, orderNumber)
	if err != nil {
		return OrderDetail{}, mapOrderRepositoryError(err)
	}

	detail := OrderDetail{Order: order, Notifications: []NotificationRecord{}}
	if s.notifications != nil {
		records, err := s.notifications.ListByOrder(ctx, orderNumber)
		if err != nil {
			return OrderDetail{}, mapOrderRepositoryError(err)
		}
		detail.Notifications = records
	}
	return detail, nil
}

// OverrideStatus applies a staff transition through the state machine. Reaching the target
// already counts as success and leaves the order untouched.
func (s *orderService) OverrideStatus(ctx context.Context, cmd OverrideStatusCommand) (Order, error) {
	orderNumber := strings.TrimSpace(cmd.OrderNumber)
	target := domain.OrderStatus(strings.ToLower(strings.TrimSpace(string(cmd.TargetStatus))))
	actor := strings.TrimSpace(cmd.ActorID)
	if orderNumber == "" {
		return Order{}, fmt.Errorf("%w: order number is required", ErrOrderValidation)
	}
	if target == "" {
		return Order{}, fmt.Errorf("%w: target status is required", ErrOrderValidation)
	}
	if actor == "" {
		return Order{}, fmt.Errorf("%w: actor is required", ErrOrderValidation)
	}

	var (
		before  Order
		updated Order
		applied bool
	)
	err := s.unitOfWork.RunInTx(ctx, func(txCtx context.Context) error {
		order, err := s.orders.FindByNumber(txCtx, orderNumber)
		if err != nil {
			return mapOrderRepositoryError(err)
		}
		if cmd.ExpectedVersion != nil && *cmd.ExpectedVersion != order.Version {
			return fmt.Errorf("%w: expected version %d but was %d", ErrOrderConflict, *cmd.ExpectedVersion, order.Version)
		}

		next, err := s.machine.Advance(order, target, TransitionEvidence{
			PaymentReference: cmd.PaymentReference,
			Actor:            actor,
			Reason:           strings.TrimSpace(cmd.Reason),
		}, s.clock())
		if errors.Is(err, ErrAlreadyInState) {
			updated = order
			return nil
		}
		if err != nil {
			return err
		}
		next.NeedsReview = false
		next.ReviewReason = ""

		saved, err := s.orders.Update(txCtx, next, order.Version)
		if err != nil {
			return mapOrderRepositoryError(err)
		}
		before, updated, applied = order, saved, true
		return nil
	})
	if err != nil {
		return Order{}, err
	}

	if applied {
		s.logger(ctx, "order.status.overridden", map[string]any{
			"orderNumber": updated.OrderNumber,
			"from":        string(before.Status),
			"to":          string(updated.Status),
			"actor":       actor,
		})
		s.publishEvent(ctx, OrderEvent{
			Type:           orderEventStatusChanged,
			OrderID:        updated.ID,
			OrderNumber:    updated.OrderNumber,
			PreviousStatus: string(before.Status),
			CurrentStatus:  string(updated.Status),
			ActorID:        actor,
			OccurredAt:     updated.UpdatedAt,
		})
	}
	return updated, nil
}

// ListStalePending returns pending orders older than olderThan for an external reaper.
func (s *orderService) ListStalePending(ctx context.Context, olderThan time.Duration, limit int) ([]Order, error) {
	if olderThan <= 0 {
		olderThan = defaultStalePendingAge
	}
	switch {
	case limit <= 0:
		limit = defaultStalePendingLimit
	case limit > maxStalePendingLimit:
		limit = maxStalePendingLimit
	}
	orders, err := s.orders.ListStalePending(ctx, s.clock().Add(-olderThan), limit)
	if err != nil {
		return nil, mapOrderRepositoryError(err)
	}
	return orders, nil
}

func (s *orderService) publishEvent(ctx context.Context, event OrderEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishOrderEvent(ctx, event); err != nil {
		s.logger(ctx, "order.event.publish.failed", map[string]any{
			"type":   event.Type,
			"order":  event.OrderNumber,
			"error":  err.Error(),
			"status": event.CurrentStatus,
		})
	}
}

type noopUnitOfWork struct{}

func (noopUnitOfWork) RunInTx(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}
