package stable

import (
	"errors"
	"testing"
)

func TestParsePegPrice(t *testing.T) {
	valid := map[string]uint64{
		"1.0025": 10_025,
		"1":      10_000,
		"0.0001": 1,
		"1.9999": 19_999,
		" 0.5 ":  5_000,
		"1.2500": 12_500,
	}
	for raw, want := range valid {
		got, err := ParsePegPrice(raw)
		if err != nil {
			t.Fatalf("parse %q: %v", raw, err)
		}
		if got != want {
			t.Fatalf("parse %q = %d, want %d", raw, got, want)
		}
	}
	for _, raw := range []string{"2", "2.0", "0", "-1", "1.00001", "abc", ""} {
		if _, err := ParsePegPrice(raw); !errors.Is(err, ErrInvalidPegPrice) {
			t.Fatalf("parse %q: expected invalid peg price, got %v", raw, err)
		}
	}
}

func TestFormatPegPrice(t *testing.T) {
	if got := FormatPegPrice(10_025); got != "1.0025" {
		t.Fatalf("format = %q", got)
	}
	if got := FormatPegPrice(5_000); got != "0.5000" {
		t.Fatalf("format = %q", got)
	}
}

func TestSetPegPriceBounds(t *testing.T) {
	cfg, _, _ := quoteFixture(t)
	if err := cfg.SetPegPriceUSD(19_999); err != nil {
		t.Fatalf("set peg: %v", err)
	}
	if err := cfg.SetPegPriceUSD(20_000); !errors.Is(err, ErrOutOfBounds) {
		t.Fatalf("expected out of bounds, got %v", err)
	}
	if err := cfg.SetPegPriceUSD(0); !errors.Is(err, ErrOutOfBounds) {
		t.Fatalf("expected out of bounds, got %v", err)
	}
	if cfg.PegPriceUSD != 19_999 {
		t.Fatalf("failed updates must not change peg, got %d", cfg.PegPriceUSD)
	}
}
