package repositories

import (
	"errors"
	"testing"
	"time"

	domain "github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/domain"
	"github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/platform/pagination"
)

func TestOrderCursorRoundTrip(t *testing.T) {
	created := time.Date(2026, 3, 1, 10, 0, 0, 123, time.FixedZone("EET", 2*3600))
	token, err := EncodeOrderCursor(domain.Order{OrderNumber: "PFS-000123", CreatedAt: created})
	if err != nil {
		t.Fatalf("EncodeOrderCursor: %v", err)
	}
	cursor, ok, err := DecodeOrderCursor(token)
	if err != nil || !ok {
		t.Fatalf("DecodeOrderCursor: ok=%v err=%v", ok, err)
	}
	if !cursor.CreatedAt.Equal(created) || cursor.CreatedAt.Location() != time.UTC || cursor.OrderNumber != "PFS-000123" {
		t.Fatalf("unexpected cursor %+v", cursor)
	}

	if !cursor.After(domain.Order{OrderNumber: "PFS-000122", CreatedAt: created}) {
		t.Fatal("lower order number at the same instant sorts after the cursor")
	}
	if cursor.After(domain.Order{OrderNumber: "PFS-000001", CreatedAt: created.Add(time.Second)}) {
		t.Fatal("newer order sorts before the cursor")
	}
}

func TestDecodeOrderCursorRejectsIncompleteToken(t *testing.T) {
	token, err := pagination.Encode(OrderCursor{OrderNumber: "PFS-1"})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if _, _, err := DecodeOrderCursor(token); !errors.Is(err, pagination.ErrInvalidPageToken) {
		t.Fatalf("expected ErrInvalidPageToken, got %v", err)
	}
	if _, ok, err := DecodeOrderCursor(""); ok || err != nil {
		t.Fatalf("expected empty token to yield no cursor, got ok=%v err=%v", ok, err)
	}
}

func TestNormalizePageSize(t *testing.T) {
	cases := []struct{ size, want int }{{0, 20}, {-3, 20}, {5, 5}, {500, 100}}
	for _, tc := range cases {
		if got := NormalizePageSize(tc.size, 20, 100); got != tc.want {
			t.Errorf("NormalizePageSize(%d) = %d, want %d", tc.size, got, tc.want)
		}
	}
}
