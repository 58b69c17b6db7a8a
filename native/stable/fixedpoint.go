package stable

import (
	"math/big"

	"github.com/holiman/uint256"
)

const (
	// PegPriceDecimals is the precision of Config.PegPriceUSD and the vault oracle bounds.
	PegPriceDecimals = 4
	// OraclePriceDecimals is the precision of oracle prices entering the pricing engine.
	OraclePriceDecimals = 8
	// FeeRateDenominator expresses fee rates in basis points.
	FeeRateDenominator = 10_000
	// MaxTokenDecimals bounds the decimals accepted for either mint.
	MaxTokenDecimals = 18
)

var (
	pegScale   = uint256.NewInt(10_000)
	boundScale = uint256.NewInt(10_000) // 10^(OraclePriceDecimals-PegPriceDecimals)
	feeDenom   = uint256.NewInt(FeeRateDenominator)
	maxUint128 = new(uint256.Int).Sub(new(uint256.Int).Lsh(uint256.NewInt(1), 128), uint256.NewInt(1))
)

// CeilDiv returns ceil(n/d). It is only used where rounding must favour the protocol.
func CeilDiv(n, d *uint256.Int) (*uint256.Int, error) {
	if d == nil || d.IsZero() {
		return nil, ErrDivisionByZero
	}
	q, r := new(uint256.Int), new(uint256.Int)
	q.DivMod(n, d, r)
	if !r.IsZero() {
		q.AddUint64(q, 1)
	}
	return q, nil
}

// FloorDiv returns floor(n/d).
func FloorDiv(n, d *uint256.Int) (*uint256.Int, error) {
	if d == nil || d.IsZero() {
		return nil, ErrDivisionByZero
	}
	return new(uint256.Int).Div(n, d), nil
}

// Pow10 returns 10^decimals for token decimals in [0, 18].
func Pow10(decimals uint8) (*uint256.Int, error) {
	if decimals > MaxTokenDecimals {
		return nil, ErrInvalidDecimals
	}
	return new(uint256.Int).Exp(uint256.NewInt(10), uint256.NewInt(uint64(decimals))), nil
}

func mulAll(factors ...*uint256.Int) (*uint256.Int, error) {
	acc := uint256.NewInt(1)
	for _, f := range factors {
		if _, overflow := acc.MulOverflow(acc, f); overflow {
			return nil, ErrArithmeticOverflow
		}
	}
	return acc, nil
}

func toUint64(v *uint256.Int) (uint64, error) {
	if !v.IsUint64() {
		return 0, ErrArithmeticOverflow
	}
	return v.Uint64(), nil
}

func newU(v uint64) *uint256.Int { return uint256.NewInt(v) }

func checkedAdd(a, b uint64) (uint64, error) {
	if a > ^uint64(0)-b {
		return 0, ErrArithmeticOverflow
	}
	return a + b, nil
}

func checkedSub(a, b uint64) (uint64, error) {
	if b > a {
		return 0, ErrArithmeticUnderflow
	}
	return a - b, nil
}

func minUint64(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}

// FeeAmount returns ceil(amount*rate/10000) and fails when the fee would exceed the amount.
func FeeAmount(amount uint64, rateBps uint16) (uint64, error) {
	product := new(uint256.Int).Mul(uint256.NewInt(amount), uint256.NewInt(uint64(rateBps)))
	fee, err := CeilDiv(product, feeDenom)
	if err != nil {
		return 0, err
	}
	if fee.Gt(uint256.NewInt(amount)) {
		return 0, ErrFeeExceedsAmount
	}
	return fee.Uint64(), nil
}

// Total128 is a cumulative 128-bit counter.
type Total128 struct {
	v uint256.Int
}

// NewTotal128 builds a counter from a 256-bit value, rejecting anything wider than 128 bits.
func NewTotal128(v *uint256.Int) (Total128, error) {
	if v == nil {
		return Total128{}, nil
	}
	if v.Gt(maxUint128) {
		return Total128{}, ErrArithmeticOverflow
	}
	return Total128{v: *v}, nil
}

// Add returns the counter incremented by amount.
func (t Total128) Add(amount uint64) (Total128, error) {
	sum := new(uint256.Int).AddUint64(&t.v, amount)
	if sum.Gt(maxUint128) {
		return t, ErrArithmeticOverflow
	}
	return Total128{v: *sum}, nil
}

// Int returns a copy of the counter value.
func (t Total128) Int() *uint256.Int {
	return new(uint256.Int).Set(&t.v)
}

// Big returns the counter as a big.Int.
func (t Total128) Big() *big.Int {
	return t.v.ToBig()
}

// Total128FromBig converts a stored counter, rejecting negative or oversized values.
func Total128FromBig(v *big.Int) (Total128, error) {
	if v == nil {
		return Total128{}, nil
	}
	if v.Sign() < 0 {
		return Total128{}, ErrArithmeticUnderflow
	}
	u, overflow := uint256.FromBig(v)
	if overflow {
		return Total128{}, ErrArithmeticOverflow
	}
	return NewTotal128(u)
}

// String renders the counter in base 10.
func (t Total128) String() string {
	return t.v.Dec()
}

// MarshalText implements encoding.TextMarshaler.
func (t Total128) MarshalText() ([]byte, error) {
	return []byte(t.v.Dec()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Total128) UnmarshalText(text []byte) error {
	v, err := uint256.FromDecimal(string(text))
	if err != nil {
		return ErrInvalidInput
	}
	parsed, err := NewTotal128(v)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
