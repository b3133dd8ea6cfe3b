package pricing

import (
	"errors"
	"math"
	"testing"

	domain "github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/domain"
)

func TestLineTotal(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		item    domain.LineItem
		want    int64
		wantErr error
	}{
		{
			name: "product multiplies quantity",
			item: domain.LineItem{ReferenceID: "scarf", Kind: domain.ItemKindProduct, UnitPrice: 1250, Quantity: 3},
			want: 3750,
		},
		{
			name: "service with quantity one",
			item: domain.LineItem{ReferenceID: "styling", Kind: domain.ItemKindService, UnitPrice: 5000, Quantity: 1},
			want: 5000,
		},
		{
			name:    "product below one",
			item:    domain.LineItem{ReferenceID: "scarf", Kind: domain.ItemKindProduct, UnitPrice: 1250, Quantity: 0},
			wantErr: ErrInvalidQuantity,
		},
		{
			name:    "service with quantity two",
			item:    domain.LineItem{ReferenceID: "styling", Kind: domain.ItemKindService, UnitPrice: 5000, Quantity: 2},
			wantErr: ErrInvalidQuantity,
		},
		{
			name:    "negative price",
			item:    domain.LineItem{ReferenceID: "scarf", Kind: domain.ItemKindProduct, UnitPrice: -1, Quantity: 1},
			wantErr: ErrInvalidPrice,
		},
		{
			name:    "overflow",
			item:    domain.LineItem{ReferenceID: "scarf", Kind: domain.ItemKindProduct, UnitPrice: math.MaxInt64 / 2, Quantity: 3},
			wantErr: ErrAmountOverflow,
		},
		{
			name: "free item",
			item: domain.LineItem{ReferenceID: "gift", Kind: domain.ItemKindProduct, UnitPrice: 0, Quantity: 4},
			want: 0,
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := LineTotal(tc.item)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("expected %v, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, got)
			}
		})
	}
}

func TestSubtotal(t *testing.T) {
	t.Parallel()

	items := []domain.LineItem{
		{ReferenceID: "A", Kind: domain.ItemKindProduct, UnitPrice: 1000, Quantity: 1, Currency: "UAH"},
		{ReferenceID: "B", Kind: domain.ItemKindService, UnitPrice: 5000, Quantity: 1, Currency: "uah", BookingDate: "2024-06-01", BookingTime: "10:00"},
	}
	got, err := Subtotal(items)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 6000 {
		t.Fatalf("expected 6000, got %d", got)
	}

	if total, err := Subtotal(nil); err != nil || total != 0 {
		t.Fatalf("expected empty subtotal 0, got %d err %v", total, err)
	}

	mixed := append(items, domain.LineItem{ReferenceID: "C", Kind: domain.ItemKindProduct, UnitPrice: 10, Quantity: 1, Currency: "EUR"})
	if _, err := Subtotal(mixed); !errors.Is(err, ErrCurrencyMismatch) {
		t.Fatalf("expected currency mismatch, got %v", err)
	}
}

func TestFormat(t *testing.T) {
	t.Parallel()

	cases := []struct {
		amount   int64
		currency string
		locale   string
		want     string
	}{
		{amount: 123456, currency: "USD", locale: "en", want: "$1,234.56"},
		{amount: 1500, currency: "jpy", locale: "en-US", want: "¥1,500"},
		{amount: -1000, currency: "USD", locale: "", want: "-$10.00"},
		{amount: 5, currency: "USD", locale: "not a locale", want: "$0.05"},
		{amount: 42, currency: "???", locale: "en", want: "42 ???"},
	}
	for _, tc := range cases {
		if got := Format(tc.amount, tc.currency, tc.locale); got != tc.want {
			t.Errorf("Format(%d, %q, %q) = %q, want %q", tc.amount, tc.currency, tc.locale, got, tc.want)
		}
	}
}
