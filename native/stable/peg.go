package stable

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ParsePegPrice converts a display price such as "1.0025" to its 4-decimal integer. More
// than four fractional digits, non-positive values and values of 2 or more are rejected.
func ParsePegPrice(raw string) (uint64, error) {
	trimmed := strings.TrimSpace(raw)
	d, err := decimal.NewFromString(trimmed)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidPegPrice, raw)
	}
	scaled := d.Shift(PegPriceDecimals)
	if !scaled.IsInteger() {
		return 0, fmt.Errorf("%w: %q has more than %d decimals", ErrInvalidPegPrice, raw, PegPriceDecimals)
	}
	if scaled.Sign() <= 0 || !scaled.BigInt().IsUint64() {
		return 0, fmt.Errorf("%w: %q", ErrInvalidPegPrice, raw)
	}
	price := scaled.BigInt().Uint64()
	if err := ValidatePegPrice(price); err != nil {
		return 0, err
	}
	return price, nil
}

// FormatPegPrice renders a 4-decimal peg price, e.g. 10025 as "1.0025".
func FormatPegPrice(price uint64) string {
	return decimal.NewFromInt(int64(price)).Shift(-PegPriceDecimals).StringFixed(PegPriceDecimals)
}
