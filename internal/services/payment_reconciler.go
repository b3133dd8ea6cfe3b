package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	domain "github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/domain"
	"github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/payments"
	"github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/pricing"
	"github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/repositories"
)

const (
	notificationIDPrefix         = "ntf_"
	reconcilerActor              = "payment-reconciler"
	defaultReconcileUpdateRetry  = 3
	reconcilerMetricNamespace    = "github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/services"
	reconcileOutcomeMetricName   = "payments.reconcile.outcomes"
	reconcileOutcomeMetricDetail = "Count of payment notifications by provider and outcome"
)

// ErrNotificationNotRecorded indicates the audit record could not be written. Providers should retry.
var ErrNotificationNotRecorded = errors.New("reconcile: notification not recorded")

// PaymentReconcilerDeps bundles collaborators required to construct the reconciler.
type PaymentReconcilerDeps struct {
	Orders        repositories.OrderRepository
	Notifications repositories.NotificationRepository
	StatusMapper  func(provider, rawStatus string) (domain.OrderStatus, bool)
	MaxRetries    int
	Clock         func() time.Time
	IDGenerator   func() string
	Events        OrderEventPublisher
	Meter         metric.Meter
	Logger        func(ctx context.Context, event string, fields map[string]any)
}

type paymentReconciler struct {
	orders        repositories.OrderRepository
	notifications repositories.NotificationRepository
	mapStatus     func(provider, rawStatus string) (domain.OrderStatus, bool)
	machine       OrderStateMachine
	maxRetries    int
	clock         func() time.Time
	newID         func() string
	events        OrderEventPublisher
	outcomes      metric.Int64Counter
	logger        func(context.Context, string, map[string]any)
}

var _ PaymentReconciler = (*paymentReconciler)(nil)

// NewPaymentReconciler wires dependencies into a concrete PaymentReconciler implementation.
func NewPaymentReconciler(deps PaymentReconcilerDeps) (PaymentReconciler, error) {
	if deps.Orders == nil {
		return nil, errors.New("payment reconciler: order repository is required")
	}
	if deps.Notifications == nil {
		return nil, errors.New("payment reconciler: notification repository is required")
	}

	mapper := deps.StatusMapper
	if mapper == nil {
		mapper = payments.MapStatus
	}
	retries := deps.MaxRetries
	if retries <= 0 {
		retries = defaultReconcileUpdateRetry
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return ulid.Make().String()
		}
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	meter := deps.Meter
	if meter == nil {
		meter = otel.GetMeterProvider().Meter(reconcilerMetricNamespace)
	}
	outcomes, err := meter.Int64Counter(reconcileOutcomeMetricName, metric.WithDescription(reconcileOutcomeMetricDetail))
	if err != nil {
		return nil, fmt.Errorf("payment reconciler: register metric: %w", err)
	}

	return &paymentReconciler{
		orders:        deps.Orders,
		notifications: deps.Notifications,
		mapStatus:     mapper,
		maxRetries:    retries,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:    idGen,
		events:   deps.Events,
		outcomes: outcomes,
		logger:   logger,
	}, nil
}

// Reconcile applies the notification to its order. Every call produces a NotificationRecord;
// business rejections are reported through the result and only a failure to record is returned
// as an error.
func (r *paymentReconciler) Reconcile(ctx context.Context, notification PaymentNotification) (ReconcileResult, error) {
	notification.Provider = strings.ToLower(strings.TrimSpace(notification.Provider))
	notification.Reference = strings.TrimSpace(notification.Reference)
	notification.CorrelationToken = strings.TrimSpace(notification.CorrelationToken)
	notification.RawStatus = strings.TrimSpace(notification.RawStatus)
	notification.Currency = pricing.NormalizeCurrency(notification.Currency)
	if notification.ReceivedAt.IsZero() {
		notification.ReceivedAt = r.clock()
	}

	record := NotificationRecord{
		ID:         notificationIDPrefix + r.newID(),
		Provider:   notification.Provider,
		Reference:  notification.Reference,
		RawStatus:  notification.RawStatus,
		Amount:     notification.Amount,
		Currency:   notification.Currency,
		EventID:    notification.EventID,
		DedupeKey:  NotificationDedupeKey(notification),
		Outcome:    domain.NotificationReceived,
		ReceivedAt: notification.ReceivedAt,
	}

	result, procErr := r.process(ctx, notification, &record)
	record.ProcessedAt = r.clock()
	result.Record = record

	if err := r.notifications.Record(ctx, record); err != nil {
		r.logger(ctx, "payments.reconcile.record_failed", map[string]any{
			"provider":  record.Provider,
			"reference": record.Reference,
			"outcome":   string(record.Outcome),
			"error":     err.Error(),
		})
		return result, fmt.Errorf("%w: %v", ErrNotificationNotRecorded, err)
	}

	r.outcomes.Add(ctx, 1, metric.WithAttributes(
		attribute.String("provider", record.Provider),
		attribute.String("outcome", string(record.Outcome)),
	))
	r.logger(ctx, "payments.reconcile.outcome", map[string]any{
		"provider":    record.Provider,
		"reference":   record.Reference,
		"orderNumber": record.OrderNumber,
		"rawStatus":   record.RawStatus,
		"outcome":     string(record.Outcome),
		"detail":      record.Detail,
	})

	if procErr != nil {
		r.logger(ctx, "payments.reconcile.unprocessed", map[string]any{
			"provider":  record.Provider,
			"reference": record.Reference,
			"error":     procErr.Error(),
		})
		if result.Err == nil {
			result.Err = procErr
		}
	}
	return result, nil
}

func (r *paymentReconciler) process(ctx context.Context, notification PaymentNotification, record *NotificationRecord) (ReconcileResult, error) {
	result := ReconcileResult{}

	target, known := r.mapStatus(notification.Provider, notification.RawStatus)
	if known {
		record.TargetStatus = target
	}

	for attempt := 1; attempt <= r.maxRetries; attempt++ {
		order, err := r.findOrder(ctx, notification)
		if err != nil {
			if errors.Is(err, ErrOrderNotFound) {
				record.Outcome = domain.NotificationOrderNotFound
				record.Detail = "no order matches reference or correlation token"
				return result, nil
			}
			record.Detail = err.Error()
			return result, err
		}
		record.OrderNumber = order.OrderNumber

		next, outcome, detail, businessErr := r.decide(order, notification, target, known)
		record.Outcome = outcome
		record.Detail = detail
		result.Err = businessErr
		if next == nil {
			current := order
			result.Order = &current
			return result, nil
		}

		updated, err := r.orders.Update(ctx, *next, order.Version)
		if err == nil {
			result.Order = &updated
			result.Applied = outcome == domain.NotificationApplied
			if result.Applied {
				r.publishTransition(ctx, order, updated)
			}
			return result, nil
		}

		if errors.Is(err, repositories.ErrPaymentReferenceTaken) {
			return r.rejectReferenceClash(ctx, order, notification, record), nil
		}
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsConflict() {
			r.logger(ctx, "payments.reconcile.conflict", map[string]any{
				"orderNumber": order.OrderNumber,
				"attempt":     attempt,
			})
			continue
		}
		record.Outcome = domain.NotificationReceived
		record.Detail = err.Error()
		return result, mapOrderRepositoryError(err)
	}

	record.Outcome = domain.NotificationReceived
	record.Detail = "order update conflicts exhausted retries"
	result.Err = nil
	return result, fmt.Errorf("%w: %d attempts", ErrOrderConflict, r.maxRetries)
}

// rejectReferenceClash flags order when the notification reference already belongs to a
// different order. The flag write is attempted once; the record carries the outcome either way.
func (r *paymentReconciler) rejectReferenceClash(ctx context.Context, order Order, notification PaymentNotification, record *NotificationRecord) ReconcileResult {
	detail := fmt.Sprintf("payment reference %s already belongs to another order", notification.Reference)
	record.Outcome = domain.NotificationRejectedIllegal
	record.Detail = detail

	current := order
	result := ReconcileResult{Order: &current, Err: fmt.Errorf("%w: %s", ErrPaymentReferenceConflict, notification.Reference)}
	flagged, err := r.orders.Update(ctx, flagForReview(order, detail, r.clock()), order.Version)
	if err != nil {
		r.logger(ctx, "payments.reconcile.flag_failed", map[string]any{
			"orderNumber": order.OrderNumber,
			"error":       err.Error(),
		})
		return result
	}
	result.Order = &flagged
	return result
}

// decide computes the order to persist for this notification. A nil order means no write.
func (r *paymentReconciler) decide(order Order, notification PaymentNotification, target OrderStatus, known bool) (*Order, domain.NotificationOutcome, string, error) {
	now := r.clock()

	if order.PaymentProvider != "" && order.PaymentProvider != notification.Provider {
		flagged := flagForReview(order, fmt.Sprintf("notification from %s for %s order", notification.Provider, order.PaymentProvider), now)
		return &flagged, domain.NotificationRejectedIllegal, "provider mismatch", nil
	}

	if !known {
		if IsTerminal(order.Status) {
			return nil, domain.NotificationUnknownStatus, "status not in mapping table; order closed", nil
		}
		updated := flagForReview(order, "unrecognized provider status "+strconv.Quote(notification.RawStatus), now)
		updated.PaymentStatusRaw = notification.RawStatus
		return &updated, domain.NotificationUnknownStatus, "status not in mapping table", nil
	}

	evidence := TransitionEvidence{
		PaymentReference: notification.Reference,
		RawStatus:        notification.RawStatus,
		Actor:            reconcilerActor,
		Reason:           notification.Provider + ":" + notification.RawStatus,
	}
	next, err := r.machine.Advance(order, target, evidence, now)
	switch {
	case errors.Is(err, ErrAlreadyInState):
		return nil, domain.NotificationDuplicate, "order already " + string(target), nil
	case errors.Is(err, ErrOrderClosed):
		return nil, domain.NotificationRejectedClosed, err.Error(), nil
	case err != nil:
		return nil, domain.NotificationRejectedIllegal, err.Error(), nil
	}

	if mismatch := amountMismatch(order, notification); mismatch != "" {
		flagged := flagForReview(order, mismatch, now)
		return &flagged, domain.NotificationAmountMismatch, mismatch, fmt.Errorf("%w: %s", ErrAmountMismatch, mismatch)
	}

	return &next, domain.NotificationApplied, fmt.Sprintf("%s -> %s", order.Status, next.Status), nil
}

func (r *paymentReconciler) findOrder(ctx context.Context, notification PaymentNotification) (Order, error) {
	if notification.Reference != "" {
		order, err := r.orders.FindByPaymentReference(ctx, notification.Provider, notification.Reference)
		if err == nil {
			return order, nil
		}
		if mapped := mapOrderRepositoryError(err); !errors.Is(mapped, ErrOrderNotFound) {
			return Order{}, mapped
		}
	}
	if notification.CorrelationToken != "" {
		order, err := r.orders.FindByNumber(ctx, notification.CorrelationToken)
		if err != nil {
			return Order{}, mapOrderRepositoryError(err)
		}
		if order.PaymentReference != "" && notification.Reference != "" && order.PaymentReference != notification.Reference {
			return Order{}, fmt.Errorf("%w: order %s is bound to a different payment reference", ErrOrderNotFound, order.OrderNumber)
		}
		return order, nil
	}
	return Order{}, ErrOrderNotFound
}

func (r *paymentReconciler) publishTransition(ctx context.Context, before, after Order) {
	if r.events == nil {
		return
	}
	event := OrderEvent{
		Type:           orderEventStatusChanged,
		OrderID:        after.ID,
		OrderNumber:    after.OrderNumber,
		PreviousStatus: string(before.Status),
		CurrentStatus:  string(after.Status),
		ActorID:        reconcilerActor,
		OccurredAt:     after.UpdatedAt,
		Metadata: map[string]any{
			"provider":  after.PaymentProvider,
			"reference": after.PaymentReference,
		},
	}
	if err := r.events.PublishOrderEvent(ctx, event); err != nil {
		r.logger(ctx, "order.event.publish.failed", map[string]any{
			"type":  event.Type,
			"order": after.OrderNumber,
			"error": err.Error(),
		})
	}
}

func flagForReview(order Order, reason string, at time.Time) Order {
	flagged := order.Clone()
	flagged.NeedsReview = true
	flagged.ReviewReason = reason
	flagged.UpdatedAt = at
	return flagged
}

func amountMismatch(order Order, notification PaymentNotification) string {
	if notification.Currency != "" && notification.Currency != order.Currency {
		return fmt.Sprintf("currency %s does not match order currency %s", notification.Currency, order.Currency)
	}
	if notification.Amount != nil && *notification.Amount != order.Total {
		return fmt.Sprintf("amount %d does not match order total %d", *notification.Amount, order.Total)
	}
	return ""
}

// NotificationDedupeKey fingerprints the provider facts of a notification so redeliveries of the
// same event share a key in the audit trail.
func NotificationDedupeKey(notification PaymentNotification) string {
	amount := ""
	if notification.Amount != nil {
		amount = strconv.FormatInt(*notification.Amount, 10)
	}
	sum := sha256.Sum256([]byte(strings.Join([]string{
		strings.ToLower(strings.TrimSpace(notification.Provider)),
		strings.TrimSpace(notification.Reference),
		strings.ToLower(strings.TrimSpace(notification.RawStatus)),
		amount,
		strings.ToUpper(strings.TrimSpace(notification.Currency)),
		strings.TrimSpace(notification.EventID),
	}, "|")))
	return hex.EncodeToString(sum[:])
}
