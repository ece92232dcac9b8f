package pagination

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestNormalizeLimit(t *testing.T) {
	cases := []struct {
		input int
		want  int
	}{
		{0, DefaultLimit},
		{-10, DefaultLimit},
		{1, 1},
		{50, 50},
		{MaxLimit, MaxLimit},
		{MaxLimit + 1, MaxLimit},
		{10000, MaxLimit},
	}
	for _, tc := range cases {
		if got := NormalizeLimit(tc.input); got != tc.want {
			t.Fatalf("NormalizeLimit(%d) = %d, want %d", tc.input, got, tc.want)
		}
	}
}

func TestLimitWithBuffer(t *testing.T) {
	if got := LimitWithBuffer(25); got != 26 {
		t.Fatalf("LimitWithBuffer(25) = %d, want 26", got)
	}
	if got := LimitWithBuffer(0); got != DefaultLimit+1 {
		t.Fatalf("LimitWithBuffer(0) = %d, want %d", got, DefaultLimit+1)
	}
}

func TestCursorRoundTrip(t *testing.T) {
	original := Cursor{
		CreatedAt: time.Date(2026, 3, 14, 9, 26, 53, 589793000, time.UTC),
		ID:        uuid.New(),
	}

	parsed, err := ParseCursor(EncodeCursor(original))
	if err != nil {
		t.Fatalf("ParseCursor: %v", err)
	}
	if parsed == nil {
		t.Fatal("expected cursor, got nil")
	}
	if !parsed.CreatedAt.Equal(original.CreatedAt) {
		t.Fatalf("created_at mismatch: %s vs %s", parsed.CreatedAt, original.CreatedAt)
	}
	if parsed.ID != original.ID {
		t.Fatalf("id mismatch: %s vs %s", parsed.ID, original.ID)
	}
}

func TestParseCursorEmpty(t *testing.T) {
	for _, value := range []string{"", "   "} {
		cursor, err := ParseCursor(value)
		if err != nil {
			t.Fatalf("ParseCursor(%q): %v", value, err)
		}
		if cursor != nil {
			t.Fatalf("ParseCursor(%q) should return nil cursor", value)
		}
	}
}

func TestParseCursorInvalid(t *testing.T) {
	cases := []struct {
		name  string
		value string
	}{
		{"not base64", "!!!not-base64!!!"},
		{"missing separator", base64.StdEncoding.EncodeToString([]byte("no-separator-here"))},
		{"bad timestamp", base64.StdEncoding.EncodeToString([]byte("yesterday|" + uuid.NewString()))},
		{"bad id", base64.StdEncoding.EncodeToString([]byte(time.Now().UTC().Format(time.RFC3339Nano) + "|not-a-uuid"))},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ParseCursor(tc.value); err == nil {
				t.Fatalf("expected error for %q", tc.value)
			}
		})
	}
}
