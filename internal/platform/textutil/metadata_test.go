package textutil

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestMetadata(t *testing.T) {
	cases := []struct {
		name  string
		pairs []string
		want  map[string]string
	}{
		{
			name:  "trims and keeps filled pairs",
			pairs: []string{" order_id ", " ord_1 ", "client_id", "cart-9"},
			want:  map[string]string{"order_id": "ord_1", "client_id": "cart-9"},
		},
		{
			name:  "skips blank keys and values",
			pairs: []string{"order_id", "ord_1", "client_id", "  ", " ", "x"},
			want:  map[string]string{"order_id": "ord_1"},
		},
		{
			name:  "ignores dangling key",
			pairs: []string{"order_id", "ord_1", "client_id"},
			want:  map[string]string{"order_id": "ord_1"},
		},
		{
			name:  "nil when empty",
			pairs: []string{"client_id", ""},
			want:  nil,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if diff := cmp.Diff(tc.want, Metadata(tc.pairs...)); diff != "" {
				t.Fatalf("Metadata mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestMetadataClipsLongEntries(t *testing.T) {
	got := Metadata(strings.Repeat("k", 50), strings.Repeat("v", 600))
	for key, value := range got {
		if len(key) != maxMetadataKey || len(value) != maxMetadataValue {
			t.Fatalf("expected clipped entry, got key %d value %d", len(key), len(value))
		}
	}
	if len(got) != 1 {
		t.Fatalf("expected one entry, got %d", len(got))
	}
}
