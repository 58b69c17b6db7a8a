package crypto

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestAddressTextRoundTrip(t *testing.T) {
	var a Address
	for i := range a {
		a[i] = byte(i + 1)
	}
	parsed, err := ParseAddress("  " + a.String() + "\n")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if parsed != a {
		t.Fatalf("round trip mismatch: %s vs %s", parsed, a)
	}
	raw, err := json.Marshal(map[string]Address{"a": a})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded map[string]Address
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded["a"] != a {
		t.Fatalf("json round trip mismatch")
	}
}

func TestZeroAddress(t *testing.T) {
	var zero Address
	if !zero.IsZero() {
		t.Fatalf("zero address not reported as zero")
	}
	if got := zero.String(); got != strings.Repeat("1", 32) {
		t.Fatalf("unexpected zero rendering %q", got)
	}
	parsed, err := ParseAddress(zero.String())
	if err != nil || !parsed.IsZero() {
		t.Fatalf("zero address must parse back: %v", err)
	}
}

func TestParseAddressRejects(t *testing.T) {
	for _, raw := range []string{"", "   ", "0OIl", "abc"} {
		if _, err := ParseAddress(raw); err == nil {
			t.Fatalf("expected %q to be rejected", raw)
		}
	}
}

func TestBytesIsACopy(t *testing.T) {
	a := Address{1, 2, 3}
	b := a.Bytes()
	b[0] = 9
	if a[0] != 1 {
		t.Fatalf("Bytes must not alias the address")
	}
}

func TestDeriverSeparatesSeeds(t *testing.T) {
	var program Address
	program[0] = 7
	d := NewDeriver(program)
	mint := Address{10}
	vault, err := d.Vault(mint)
	if err != nil {
		t.Fatalf("vault: %v", err)
	}
	benefactor, err := d.Benefactor(mint)
	if err != nil {
		t.Fatalf("benefactor: %v", err)
	}
	if vault == benefactor {
		t.Fatalf("seed tags must separate derivations")
	}
	again, _, err := d.Derive(SeedVault, mint[:])
	if err != nil || again != vault {
		t.Fatalf("derivation must be deterministic")
	}
	var nilDeriver *Deriver
	if _, _, err := nilDeriver.Derive(SeedConfig); err == nil {
		t.Fatalf("expected error from unconfigured deriver")
	}
}
