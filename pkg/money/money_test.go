package money

import (
	"testing"

	"github.com/shopspring/decimal"

	pkgerrors "github.com/digimartlabs/digimart-backend/pkg/errors"
)

func TestParseCents(t *testing.T) {
	cases := []struct {
		input string
		want  Cents
	}{
		{"19.99", 1999},
		{"0.01", 1},
		{"0", 0},
		{"100", 10000},
		{"19.995", 2000},
		{"19.994", 1999},
		{"-5.50", -550},
	}
	for _, tc := range cases {
		got, err := ParseCents(tc.input)
		if err != nil {
			t.Fatalf("ParseCents(%q): %v", tc.input, err)
		}
		if got != tc.want {
			t.Fatalf("ParseCents(%q) = %d, want %d", tc.input, got, tc.want)
		}
	}
}

func TestParseCentsRejectsGarbage(t *testing.T) {
	_, err := ParseCents("nineteen")
	if err == nil {
		t.Fatal("expected error")
	}
	typed := pkgerrors.As(err)
	if typed == nil {
		t.Fatalf("expected pkgerrors.Error, got %T", err)
	}
	if typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected code %s, got %s", pkgerrors.CodeValidation, typed.Code())
	}
}

func TestFormat(t *testing.T) {
	cases := []struct {
		cents Cents
		want  string
	}{
		{1999, "19.99"},
		{100, "1.00"},
		{5, "0.05"},
		{0, "0.00"},
		{-550, "-5.50"},
	}
	for _, tc := range cases {
		if got := Format(tc.cents); got != tc.want {
			t.Fatalf("Format(%d) = %q, want %q", tc.cents, got, tc.want)
		}
	}
}

func TestDecimalRoundTrip(t *testing.T) {
	d := decimal.RequireFromString("42.37")
	cents := FromDecimal(d)
	if cents != 4237 {
		t.Fatalf("FromDecimal = %d, want 4237", cents)
	}
	if !ToDecimal(cents).Equal(d) {
		t.Fatalf("ToDecimal(%d) = %s, want %s", cents, ToDecimal(cents), d)
	}
}

func TestDiscountedUnitPrice(t *testing.T) {
	cases := []struct {
		price    Cents
		discount int
		want     Cents
	}{
		{1000, 25, 750},
		{1000, 0, 1000},
		{1000, -5, 1000},
		{1000, 100, 0},
		{1000, 150, 0},
		{999, 33, 669},
		{1, 50, 1},
	}
	for _, tc := range cases {
		if got := DiscountedUnitPrice(tc.price, tc.discount); got != tc.want {
			t.Fatalf("DiscountedUnitPrice(%d, %d) = %d, want %d", tc.price, tc.discount, got, tc.want)
		}
	}
}

func TestLineTotal(t *testing.T) {
	if got := LineTotal(750, 3); got != 2250 {
		t.Fatalf("LineTotal = %d, want 2250", got)
	}
}

func TestNetAmount(t *testing.T) {
	if got := NetAmount(10000, 100, 30, 20); got != 9850 {
		t.Fatalf("NetAmount = %d, want 9850", got)
	}
	if got := NetAmount(100, 100, 0, 0); got != 0 {
		t.Fatalf("NetAmount = %d, want 0", got)
	}
}
