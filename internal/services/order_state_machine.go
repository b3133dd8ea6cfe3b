package services

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	domain "github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/domain"
)

var (
	// ErrIllegalTransition indicates the target status is not reachable from the current status.
	ErrIllegalTransition = errors.New("order: illegal status transition")
	// ErrOrderClosed indicates the order is terminal or settled and no longer accepts the transition.
	ErrOrderClosed = errors.New("order: order is closed")
	// ErrAlreadyInState indicates the order already has the target status. Callers treat it as success.
	ErrAlreadyInState = errors.New("order: already in target status")
	// ErrPaymentReferenceRequired indicates a transition to paid without a payment reference.
	ErrPaymentReferenceRequired = errors.New("order: payment reference required")
)

var orderStateTransitions = map[domain.OrderStatus][]domain.OrderStatus{
	domain.OrderStatusPending:    {domain.OrderStatusProcessing},
	domain.OrderStatusProcessing: {domain.OrderStatusPaid, domain.OrderStatusFailed, domain.OrderStatusCancelled},
	domain.OrderStatusPaid:       {domain.OrderStatusCompleted, domain.OrderStatusRefunded},
}

var terminalStatuses = []domain.OrderStatus{
	domain.OrderStatusCompleted,
	domain.OrderStatusRefunded,
	domain.OrderStatusCancelled,
	domain.OrderStatusFailed,
}

// TransitionEvidence describes why a transition happens.
type TransitionEvidence struct {
	PaymentReference string
	RawStatus        string
	Actor            string
	Reason           string
}

// OrderStateMachine enforces the order status graph. It is pure: orders are copied, never mutated
// in place, and nothing is persisted.
type OrderStateMachine struct{}

// IsTerminal reports whether no further transition is permitted from status.
func IsTerminal(status domain.OrderStatus) bool {
	return slices.Contains(terminalStatuses, status)
}

// CanTransition reports whether target is a direct successor of current.
func CanTransition(current, target domain.OrderStatus) bool {
	next, ok := orderStateTransitions[current]
	if !ok {
		return false
	}
	return slices.Contains(next, target)
}

// Transition applies a single step of the status graph.
func (OrderStateMachine) Transition(order Order, target OrderStatus, evidence TransitionEvidence, at time.Time) (Order, error) {
	if err := checkTransition(order.Status, target); err != nil {
		return order, err
	}
	if !CanTransition(order.Status, target) {
		return order, fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, order.Status, target)
	}
	return applyTransition(order.Clone(), target, evidence, at)
}

// Advance applies the shortest legal path from the current status to target as one unit, so a
// pending order receiving a final provider outcome moves through processing in a single write.
func (m OrderStateMachine) Advance(order Order, target OrderStatus, evidence TransitionEvidence, at time.Time) (Order, error) {
	if err := checkTransition(order.Status, target); err != nil {
		return order, err
	}
	path := shortestPath(order.Status, target)
	if len(path) == 0 {
		return order, fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, order.Status, target)
	}
	current := order.Clone()
	for _, step := range path {
		next, err := applyTransition(current, step, evidence, at)
		if err != nil {
			return order, err
		}
		current = next
	}
	return current, nil
}

func checkTransition(current, target domain.OrderStatus) error {
	if current == target {
		return fmt.Errorf("%w: %s", ErrAlreadyInState, target)
	}
	if IsTerminal(current) {
		return fmt.Errorf("%w: status %s is terminal", ErrOrderClosed, current)
	}
	if current == domain.OrderStatusPaid && !CanTransition(current, target) {
		return fmt.Errorf("%w: paid order cannot move to %s", ErrOrderClosed, target)
	}
	return nil
}

func applyTransition(order Order, target OrderStatus, evidence TransitionEvidence, at time.Time) (Order, error) {
	reference := strings.TrimSpace(evidence.PaymentReference)
	if target == domain.OrderStatusPaid {
		if reference == "" {
			reference = order.PaymentReference
		}
		if reference == "" {
			return order, ErrPaymentReferenceRequired
		}
		paidAt := at
		order.PaidAt = &paidAt
	}
	if order.PaymentReference == "" && reference != "" {
		order.PaymentReference = reference
	}
	if raw := strings.TrimSpace(evidence.RawStatus); raw != "" {
		order.PaymentStatusRaw = raw
	}

	order.History = append(order.History, domain.StatusChange{
		From:   order.Status,
		To:     target,
		Actor:  evidence.Actor,
		Reason: evidence.Reason,
		At:     at,
	})
	order.Status = target
	order.UpdatedAt = at
	return order, nil
}

func shortestPath(from, to domain.OrderStatus) []domain.OrderStatus {
	type node struct {
		status domain.OrderStatus
		path   []domain.OrderStatus
	}
	visited := map[domain.OrderStatus]bool{from: true}
	queue := []node{{status: from}}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, next := range orderStateTransitions[current.status] {
			if visited[next] {
				continue
			}
			path := append(slices.Clone(current.path), next)
			if next == to {
				return path
			}
			visited[next] = true
			queue = append(queue, node{status: next, path: path})
		}
	}
	return nil
}
