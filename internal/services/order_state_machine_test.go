package services

import (
	"errors"
	"testing"
	"time"

	domain "github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/domain"
)

func orderInStatus(status domain.OrderStatus) Order {
	return Order{
		OrderNumber: "PFS-TEST",
		Status:      status,
		Total:       6000,
		Currency:    "UAH",
		Version:     1,
	}
}

func TestOrderStateMachineTransitionTable(t *testing.T) {
	machine := OrderStateMachine{}
	at := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	evidence := TransitionEvidence{PaymentReference: "pay_1", RawStatus: "success", Actor: "test"}

	cases := []struct {
		name    string
		from    domain.OrderStatus
		to      domain.OrderStatus
		wantErr error
	}{
		{"pending to processing", domain.OrderStatusPending, domain.OrderStatusProcessing, nil},
		{"processing to paid", domain.OrderStatusProcessing, domain.OrderStatusPaid, nil},
		{"processing to failed", domain.OrderStatusProcessing, domain.OrderStatusFailed, nil},
		{"processing to cancelled", domain.OrderStatusProcessing, domain.OrderStatusCancelled, nil},
		{"paid to completed", domain.OrderStatusPaid, domain.OrderStatusCompleted, nil},
		{"paid to refunded", domain.OrderStatusPaid, domain.OrderStatusRefunded, nil},
		{"pending to paid skips a step", domain.OrderStatusPending, domain.OrderStatusPaid, ErrIllegalTransition},
		{"pending to refunded", domain.OrderStatusPending, domain.OrderStatusRefunded, ErrIllegalTransition},
		{"paid to failed is settled", domain.OrderStatusPaid, domain.OrderStatusFailed, ErrOrderClosed},
		{"paid to processing is settled", domain.OrderStatusPaid, domain.OrderStatusProcessing, ErrOrderClosed},
		{"failed is terminal", domain.OrderStatusFailed, domain.OrderStatusPaid, ErrOrderClosed},
		{"refunded is terminal", domain.OrderStatusRefunded, domain.OrderStatusPaid, ErrOrderClosed},
		{"cancelled is terminal", domain.OrderStatusCancelled, domain.OrderStatusProcessing, ErrOrderClosed},
		{"completed is terminal", domain.OrderStatusCompleted, domain.OrderStatusRefunded, ErrOrderClosed},
		{"same status", domain.OrderStatusPaid, domain.OrderStatusPaid, ErrAlreadyInState},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			order := orderInStatus(tc.from)
			got, err := machine.Transition(order, tc.to, evidence, at)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("expected %v, got %v", tc.wantErr, err)
				}
				if got.Status != tc.from {
					t.Fatalf("status changed on rejected transition: %s", got.Status)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Status != tc.to {
				t.Fatalf("expected status %s, got %s", tc.to, got.Status)
			}
			if len(got.History) != 1 || got.History[0].From != tc.from || got.History[0].To != tc.to {
				t.Fatalf("unexpected history %#v", got.History)
			}
			if order.Status != tc.from || len(order.History) != 0 {
				t.Fatalf("input order was mutated")
			}
		})
	}
}

func TestOrderStateMachinePaidRequiresReference(t *testing.T) {
	machine := OrderStateMachine{}
	at := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

	_, err := machine.Transition(orderInStatus(domain.OrderStatusProcessing), domain.OrderStatusPaid, TransitionEvidence{}, at)
	if !errors.Is(err, ErrPaymentReferenceRequired) {
		t.Fatalf("expected ErrPaymentReferenceRequired, got %v", err)
	}

	paid, err := machine.Transition(orderInStatus(domain.OrderStatusProcessing), domain.OrderStatusPaid, TransitionEvidence{PaymentReference: "pay_9"}, at)
	if err != nil {
		t.Fatalf("transition: %v", err)
	}
	if paid.PaidAt == nil || !paid.PaidAt.Equal(at) {
		t.Fatalf("expected paidAt %s, got %v", at, paid.PaidAt)
	}
	if paid.PaymentReference != "pay_9" {
		t.Fatalf("expected payment reference recorded, got %q", paid.PaymentReference)
	}
}

func TestOrderStateMachineAdvanceWalksShortestPath(t *testing.T) {
	machine := OrderStateMachine{}
	at := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

	paid, err := machine.Advance(orderInStatus(domain.OrderStatusPending), domain.OrderStatusPaid, TransitionEvidence{PaymentReference: "X", RawStatus: "success"}, at)
	if err != nil {
		t.Fatalf("advance: %v", err)
	}
	if paid.Status != domain.OrderStatusPaid || paid.PaymentStatusRaw != "success" {
		t.Fatalf("unexpected order %#v", paid)
	}
	if len(paid.History) != 2 || paid.History[0].To != domain.OrderStatusProcessing || paid.History[1].To != domain.OrderStatusPaid {
		t.Fatalf("expected pending->processing->paid history, got %#v", paid.History)
	}

	if _, err := machine.Advance(paid, domain.OrderStatusFailed, TransitionEvidence{}, at); !errors.Is(err, ErrOrderClosed) {
		t.Fatalf("expected ErrOrderClosed for paid->failed, got %v", err)
	}
	if _, err := machine.Advance(paid, domain.OrderStatusPaid, TransitionEvidence{}, at); !errors.Is(err, ErrAlreadyInState) {
		t.Fatalf("expected ErrAlreadyInState, got %v", err)
	}

	// A failed reference check part-way leaves the input untouched.
	pending := orderInStatus(domain.OrderStatusPending)
	got, err := machine.Advance(pending, domain.OrderStatusPaid, TransitionEvidence{}, at)
	if !errors.Is(err, ErrPaymentReferenceRequired) {
		t.Fatalf("expected ErrPaymentReferenceRequired, got %v", err)
	}
	if got.Status != domain.OrderStatusPending || len(got.History) != 0 {
		t.Fatalf("expected unchanged order, got %#v", got)
	}
}

func TestIsTerminal(t *testing.T) {
	for _, status := range []domain.OrderStatus{domain.OrderStatusCompleted, domain.OrderStatusRefunded, domain.OrderStatusCancelled, domain.OrderStatusFailed} {
		if !IsTerminal(status) {
			t.Fatalf("expected %s terminal", status)
		}
	}
	for _, status := range []domain.OrderStatus{domain.OrderStatusPending, domain.OrderStatusProcessing, domain.OrderStatusPaid} {
		if IsTerminal(status) {
			t.Fatalf("expected %s non-terminal", status)
		}
	}
}
