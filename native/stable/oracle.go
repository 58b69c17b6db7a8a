package stable

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"

	"pegvault/crypto"
)

const (
	// MaxOracles is the number of oracle slots per vault.
	MaxOracles = 5
	// MaxConfidenceBps bounds both per-feed confidence and cross-feed spread.
	MaxConfidenceBps = 200
)

// OracleKind tags the oracle variants.
type OracleKind string

const (
	OracleKindEmpty               OracleKind = "empty"
	OracleKindPyth                OracleKind = "pyth"
	OracleKindSwitchboardOnDemand OracleKind = "switchboard_on_demand"
	OracleKindDoves               OracleKind = "doves"
)

// OracleConfig is the sealed sum of oracle variants. A nil OracleConfig is an empty slot.
type OracleConfig interface {
	Kind() OracleKind
	sealedOracle()
}

// EmptyOracle marks an unused slot.
type EmptyOracle struct{}

// PythOracle reads a Pyth pull feed.
type PythOracle struct {
	FeedID  [32]byte
	Account crypto.Address
}

// SwitchboardOnDemandOracle reads a Switchboard on-demand feed account.
type SwitchboardOnDemandOracle struct {
	Account crypto.Address
}

// DovesOracle reads a Doves aggregated price account.
type DovesOracle struct {
	Account crypto.Address
}

func (EmptyOracle) Kind() OracleKind               { return OracleKindEmpty }
func (PythOracle) Kind() OracleKind                { return OracleKindPyth }
func (SwitchboardOnDemandOracle) Kind() OracleKind { return OracleKindSwitchboardOnDemand }
func (DovesOracle) Kind() OracleKind               { return OracleKindDoves }

func (EmptyOracle) sealedOracle()               {}
func (PythOracle) sealedOracle()                {}
func (SwitchboardOnDemandOracle) sealedOracle() {}
func (DovesOracle) sealedOracle()               {}

// IsEmptyOracle reports whether a slot is unused.
func IsEmptyOracle(o OracleConfig) bool {
	switch o.(type) {
	case nil, EmptyOracle:
		return true
	case PythOracle, SwitchboardOnDemandOracle, DovesOracle:
		return false
	default:
		return true
	}
}

// OracleAccount returns the account a configured oracle reads from.
func OracleAccount(o OracleConfig) (crypto.Address, bool) {
	switch cfg := o.(type) {
	case PythOracle:
		return cfg.Account, true
	case SwitchboardOnDemandOracle:
		return cfg.Account, true
	case DovesOracle:
		return cfg.Account, true
	case nil, EmptyOracle:
		return crypto.Address{}, false
	default:
		return crypto.Address{}, false
	}
}

// OracleSlots is the fixed oracle list of a vault.
type OracleSlots [MaxOracles]OracleConfig

// HasOracle reports whether at least one slot is configured.
func (s OracleSlots) HasOracle() bool {
	for _, o := range s {
		if !IsEmptyOracle(o) {
			return true
		}
	}
	return false
}

// Configured returns the non-empty slots in index order.
func (s OracleSlots) Configured() []OracleConfig {
	out := make([]OracleConfig, 0, MaxOracles)
	for _, o := range s {
		if !IsEmptyOracle(o) {
			out = append(out, o)
		}
	}
	return out
}

type oracleJSON struct {
	Kind    OracleKind      `json:"kind"`
	FeedID  string          `json:"feedId,omitempty"`
	Account *crypto.Address `json:"account,omitempty"`
}

// EncodeOracle converts a variant to its tagged JSON form.
func EncodeOracle(o OracleConfig) ([]byte, error) {
	var payload oracleJSON
	switch cfg := o.(type) {
	case nil, EmptyOracle:
		payload.Kind = OracleKindEmpty
	case PythOracle:
		account := cfg.Account
		payload = oracleJSON{Kind: OracleKindPyth, FeedID: hex.EncodeToString(cfg.FeedID[:]), Account: &account}
	case SwitchboardOnDemandOracle:
		account := cfg.Account
		payload = oracleJSON{Kind: OracleKindSwitchboardOnDemand, Account: &account}
	case DovesOracle:
		account := cfg.Account
		payload = oracleJSON{Kind: OracleKindDoves, Account: &account}
	default:
		return nil, fmt.Errorf("%w: oracle %T", ErrInvalidInput, o)
	}
	return json.Marshal(payload)
}

// DecodeOracle parses the tagged JSON form of a variant.
func DecodeOracle(raw []byte) (OracleConfig, error) {
	var payload oracleJSON
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("%w: decode oracle: %v", ErrInvalidInput, err)
	}
	account := func() (crypto.Address, error) {
		if payload.Account == nil || payload.Account.IsZero() {
			return crypto.Address{}, fmt.Errorf("%w: oracle account required", ErrInvalidInput)
		}
		return *payload.Account, nil
	}
	switch OracleKind(strings.ToLower(string(payload.Kind))) {
	case OracleKindEmpty, "":
		return EmptyOracle{}, nil
	case OracleKindPyth:
		acct, err := account()
		if err != nil {
			return nil, err
		}
		feed, err := hex.DecodeString(strings.TrimPrefix(payload.FeedID, "0x"))
		if err != nil || len(feed) != 32 {
			return nil, fmt.Errorf("%w: pyth feed id must be 32 bytes of hex", ErrInvalidInput)
		}
		out := PythOracle{Account: acct}
		copy(out.FeedID[:], feed)
		return out, nil
	case OracleKindSwitchboardOnDemand:
		acct, err := account()
		if err != nil {
			return nil, err
		}
		return SwitchboardOnDemandOracle{Account: acct}, nil
	case OracleKindDoves:
		acct, err := account()
		if err != nil {
			return nil, err
		}
		return DovesOracle{Account: acct}, nil
	default:
		return nil, fmt.Errorf("%w: oracle kind %q", ErrInvalidInput, payload.Kind)
	}
}

// MarshalJSON implements json.Marshaler.
func (s OracleSlots) MarshalJSON() ([]byte, error) {
	raw := make([]json.RawMessage, len(s))
	for i, o := range s {
		encoded, err := EncodeOracle(o)
		if err != nil {
			return nil, err
		}
		raw[i] = encoded
	}
	return json.Marshal(raw)
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *OracleSlots) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) > MaxOracles {
		return fmt.Errorf("%w: %d oracle slots", ErrInvalidIndex, len(raw))
	}
	var out OracleSlots
	for i, entry := range raw {
		o, err := DecodeOracle(entry)
		if err != nil {
			return err
		}
		out[i] = o
	}
	*s = out
	return nil
}

// OracleSample is one observed price for a configured oracle, already scaled to
// OraclePriceDecimals.
type OracleSample struct {
	Kind        OracleKind     `json:"kind"`
	Account     crypto.Address `json:"account"`
	Price       uint64         `json:"price"`
	Confidence  uint64         `json:"confidence"`
	PublishTime int64          `json:"publishTime"`
}

// AggregateOraclePrice validates one sample per configured oracle (matched positionally
// against the non-empty slots) and returns the most conservative price.
func AggregateOraclePrice(v Vault, samples []OracleSample, now int64) (uint64, error) {
	configured := v.Oracles.Configured()
	if len(configured) == 0 {
		return 0, ErrNoValidOracle
	}
	if len(samples) < len(configured) {
		return 0, fmt.Errorf("%w: have %d, need %d", ErrMissingOracleSample, len(samples), len(configured))
	}
	prices := make([]uint64, 0, len(configured))
	for i, o := range configured {
		sample := samples[i]
		account, _ := OracleAccount(o)
		if sample.Kind != o.Kind() || sample.Account != account {
			return 0, fmt.Errorf("%w: slot %d expects %s %s", ErrBadOracle, i, o.Kind(), account)
		}
		if err := checkSample(sample, v.StalenessThreshold, now); err != nil {
			return 0, err
		}
		prices = append(prices, sample.Price)
	}
	lowest, highest := prices[0], prices[0]
	for _, p := range prices[1:] {
		lowest = minUint64(lowest, p)
		if p > highest {
			highest = p
		}
	}
	// (high-low)/low > MaxConfidenceBps/10000, compared without flooring.
	if len(prices) > 1 && exceedsBps(highest-lowest, lowest) {
		return 0, fmt.Errorf("%w: spread %d over %d", ErrPriceConfidenceTooWide, highest-lowest, lowest)
	}
	return lowest, nil
}

func checkSample(sample OracleSample, staleness uint64, now int64) error {
	if sample.Price == 0 {
		return fmt.Errorf("%w: zero price from %s", ErrBadOracle, sample.Account)
	}
	if sample.PublishTime > now {
		return fmt.Errorf("%w: publish time in the future", ErrBadOracle)
	}
	if uint64(now-sample.PublishTime) > staleness {
		return fmt.Errorf("%w: stale price from %s", ErrBadOracle, sample.Account)
	}
	if !withinBps(sample.Confidence, sample.Price) {
		return fmt.Errorf("%w: %s", ErrPriceConfidenceTooWide, sample.Account)
	}
	return nil
}

// bpsSides returns part*10000 and base*MaxConfidenceBps; neither can overflow 256 bits.
func bpsSides(part, base uint64) (*uint256.Int, *uint256.Int) {
	lhs := new(uint256.Int).Mul(uint256.NewInt(part), feeDenom)
	rhs := new(uint256.Int).Mul(uint256.NewInt(base), uint256.NewInt(MaxConfidenceBps))
	return lhs, rhs
}

// exceedsBps reports part/base > MaxConfidenceBps bps.
func exceedsBps(part, base uint64) bool {
	lhs, rhs := bpsSides(part, base)
	return lhs.Gt(rhs)
}

// withinBps reports part/base < MaxConfidenceBps bps.
func withinBps(part, base uint64) bool {
	lhs, rhs := bpsSides(part, base)
	return lhs.Lt(rhs)
}

// ScaleOraclePrice converts a feed mantissa and base-10 exponent to the 8-decimal integer
// domain, flooring any precision beyond 8 decimals.
func ScaleOraclePrice(mantissa int64, exponent int32) (uint64, error) {
	if mantissa <= 0 {
		return 0, ErrInvalidOracleInput
	}
	shift := int64(OraclePriceDecimals) + int64(exponent)
	value := uint256.NewInt(uint64(mantissa))
	switch {
	case shift > 38 || shift < -38:
		return 0, fmt.Errorf("%w: exponent %d", ErrInvalidInput, exponent)
	case shift >= 0:
		factor := new(uint256.Int).Exp(uint256.NewInt(10), uint256.NewInt(uint64(shift)))
		if _, overflow := value.MulOverflow(value, factor); overflow {
			return 0, ErrArithmeticOverflow
		}
	default:
		factor := new(uint256.Int).Exp(uint256.NewInt(10), uint256.NewInt(uint64(-shift)))
		value.Div(value, factor)
	}
	out, err := toUint64(value)
	if err != nil {
		return 0, err
	}
	if out == 0 {
		return 0, ErrInvalidOracleInput
	}
	return out, nil
}

// ParseOraclePrice converts a decimal USD price such as "0.99985" to 8-decimal units.
func ParseOraclePrice(raw string) (uint64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("%w: oracle price %q", ErrInvalidInput, raw)
	}
	scaled := d.Shift(OraclePriceDecimals).Truncate(0)
	if scaled.Sign() <= 0 {
		return 0, ErrInvalidOracleInput
	}
	bi := scaled.BigInt()
	if !bi.IsUint64() {
		return 0, ErrArithmeticOverflow
	}
	return bi.Uint64(), nil
}

// FormatOraclePrice renders an 8-decimal price for display.
func FormatOraclePrice(price uint64) string {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(price), -OraclePriceDecimals).String()
}
