package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/domain"
	"github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/repositories"
)

func sampleOrder(number string, createdAt time.Time) domain.Order {
	return domain.Order{
		ID:              "ord_" + number,
		OrderNumber:     number,
		Items:           []domain.LineItem{{ReferenceID: "A", Kind: domain.ItemKindProduct, UnitPrice: 1000, Quantity: 1, Currency: "UAH"}},
		Subtotal:        1000,
		Total:           1000,
		Currency:        "UAH",
		Status:          domain.OrderStatusPending,
		PaymentProvider: "liqpay",
		CreatedAt:       createdAt,
		UpdatedAt:       createdAt,
	}
}

func TestOrderRepositoryInsertEnforcesUniqueNumber(t *testing.T) {
	repo := NewOrderRepository()
	ctx := context.Background()
	now := time.Now()

	if err := repo.Insert(ctx, sampleOrder("PFS-1", now)); err != nil {
		t.Fatalf("insert: %v", err)
	}
	err := repo.Insert(ctx, sampleOrder("PFS-1", now))
	if !repositories.IsConflict(err) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestOrderRepositoryUpdateChecksVersionAndFreezesContent(t *testing.T) {
	repo := NewOrderRepository()
	ctx := context.Background()
	now := time.Now()
	if err := repo.Insert(ctx, sampleOrder("PFS-2", now)); err != nil {
		t.Fatalf("insert: %v", err)
	}

	stored, err := repo.FindByNumber(ctx, "PFS-2")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	stored.Status = domain.OrderStatusProcessing
	stored.PaymentReference = "pay_1"
	stored.Total = 1
	stored.Items = nil

	updated, err := repo.Update(ctx, stored, stored.Version)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Version != stored.Version+1 {
		t.Fatalf("expected version bump, got %d", updated.Version)
	}
	if updated.Total != 1000 || len(updated.Items) != 1 {
		t.Fatalf("expected commercial content frozen, got %#v", updated)
	}

	if _, err := repo.Update(ctx, stored, stored.Version); !repositories.IsConflict(err) {
		t.Fatalf("expected stale version conflict, got %v", err)
	}

	byRef, err := repo.FindByPaymentReference(ctx, "LiqPay", "pay_1")
	if err != nil {
		t.Fatalf("find by reference: %v", err)
	}
	if byRef.OrderNumber != "PFS-2" {
		t.Fatalf("unexpected order %s", byRef.OrderNumber)
	}
}

func TestOrderRepositoryUpdateRejectsReferenceHeldElsewhere(t *testing.T) {
	repo := NewOrderRepository()
	ctx := context.Background()
	now := time.Now()
	for _, number := range []string{"PFS-3", "PFS-4"} {
		if err := repo.Insert(ctx, sampleOrder(number, now)); err != nil {
			t.Fatalf("insert %s: %v", number, err)
		}
	}

	first, _ := repo.FindByNumber(ctx, "PFS-3")
	first.PaymentReference = "pay_shared"
	if _, err := repo.Update(ctx, first, first.Version); err != nil {
		t.Fatalf("bind reference: %v", err)
	}

	second, _ := repo.FindByNumber(ctx, "PFS-4")
	second.PaymentReference = "pay_shared"
	_, err := repo.Update(ctx, second, second.Version)
	if !errors.Is(err, repositories.ErrPaymentReferenceTaken) {
		t.Fatalf("expected ErrPaymentReferenceTaken, got %v", err)
	}
	if !repositories.IsConflict(err) {
		t.Fatalf("expected conflict kind, got %v", err)
	}
}

func TestOrderRepositoryListAndStalePending(t *testing.T) {
	repo := NewOrderRepository()
	ctx := context.Background()
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	for i, number := range []string{"PFS-A", "PFS-B", "PFS-C"} {
		if err := repo.Insert(ctx, sampleOrder(number, base.Add(time.Duration(i)*time.Hour))); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	page, err := repo.List(ctx, repositories.OrderListFilter{PageSize: 2})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page.Items) != 2 || page.Items[0].OrderNumber != "PFS-C" || page.NextPageToken == "" {
		t.Fatalf("unexpected first page %#v", page)
	}
	next, err := repo.List(ctx, repositories.OrderListFilter{PageSize: 2, PageToken: page.NextPageToken})
	if err != nil {
		t.Fatalf("list next: %v", err)
	}
	if len(next.Items) != 1 || next.NextPageToken != "" {
		t.Fatalf("unexpected second page %#v", next)
	}

	stale, err := repo.ListStalePending(ctx, base.Add(90*time.Minute), 10)
	if err != nil {
		t.Fatalf("stale: %v", err)
	}
	if len(stale) != 2 || stale[0].OrderNumber != "PFS-A" {
		t.Fatalf("unexpected stale orders %#v", stale)
	}
}
