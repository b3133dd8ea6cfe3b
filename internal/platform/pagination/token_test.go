package pagination

import (
	"encoding/base64"
	"errors"
	"testing"
	"time"
)

type testCursor struct {
	CreatedAt time.Time `json:"t"`
	Number    string    `json:"n"`
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	want := testCursor{CreatedAt: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC), Number: "PFS-000123"}
	token, err := Encode(want)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	got, ok, err := Decode[testCursor](" " + token + " ")
	if err != nil || !ok {
		t.Fatalf("Decode: ok=%v err=%v", ok, err)
	}
	if !got.CreatedAt.Equal(want.CreatedAt) || got.Number != want.Number {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
}

func TestDecodeBlankToken(t *testing.T) {
	if _, ok, err := Decode[testCursor]("  "); ok || err != nil {
		t.Fatalf("expected no cursor and no error, got ok=%v err=%v", ok, err)
	}
}

func TestDecodeInvalidToken(t *testing.T) {
	tests := map[string]string{
		"not base64":    "not base64!",
		"not json":      base64.RawURLEncoding.EncodeToString([]byte("plain")),
		"foreign shape": base64.RawURLEncoding.EncodeToString([]byte(`{"startAfter":["x"]}`)),
	}
	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			if _, _, err := Decode[testCursor](token); !errors.Is(err, ErrInvalidPageToken) {
				t.Fatalf("expected ErrInvalidPageToken, got %v", err)
			}
		})
	}
}
