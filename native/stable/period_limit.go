package stable

import (
	"fmt"
	"strings"
)

const (
	// MaxPeriodLimits is the number of rolling-window slots each scope carries.
	MaxPeriodLimits = 4
	// MinPeriodDurationSeconds is the shortest accepted non-zero window.
	MinPeriodDurationSeconds = 30
	// MaxPeriodDurationSeconds is the longest accepted window (30 days).
	MaxPeriodDurationSeconds = 86_400 * 30
)

// Operation selects which side of a period limit is evaluated.
type Operation string

const (
	OperationMint   Operation = "mint"
	OperationRedeem Operation = "redeem"
)

// ParseOperation validates an operation tag.
func ParseOperation(raw string) (Operation, error) {
	op := Operation(strings.ToLower(strings.TrimSpace(raw)))
	if !op.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownOperation, raw)
	}
	return op, nil
}

// Valid reports whether op is mint or redeem.
func (op Operation) Valid() bool {
	return op == OperationMint || op == OperationRedeem
}

// LimitScope names the owner of a period-limit list.
type LimitScope string

const (
	ScopeConfig     LimitScope = "config"
	ScopeVault      LimitScope = "vault"
	ScopeBenefactor LimitScope = "benefactor"
)

// PeriodLimit is a single rolling window. A zero duration disables the slot.
type PeriodLimit struct {
	DurationSeconds uint64 `json:"durationSeconds"`
	MaxMintAmount   uint64 `json:"maxMintAmount"`
	MaxRedeemAmount uint64 `json:"maxRedeemAmount"`
	MintedAmount    uint64 `json:"mintedAmount"`
	RedeemedAmount  uint64 `json:"redeemedAmount"`
	WindowStart     int64  `json:"windowStart"`
}

// PeriodLimits is the fixed slot list embedded in Config, Vault and Benefactor.
type PeriodLimits [MaxPeriodLimits]PeriodLimit

// Enabled reports whether the slot enforces anything.
func (p PeriodLimit) Enabled() bool { return p.DurationSeconds != 0 }

// Expired reports whether the window has fully elapsed at now. Counters of an expired
// window are treated as zero even before they are physically reset.
func (p PeriodLimit) Expired(now int64) bool {
	if p.DurationSeconds == 0 {
		return false
	}
	elapsed := now - p.WindowStart
	if elapsed < 0 {
		return false
	}
	return uint64(elapsed) >= p.DurationSeconds
}

// Max returns the configured cap for op.
func (p PeriodLimit) Max(op Operation) uint64 {
	if op == OperationRedeem {
		return p.MaxRedeemAmount
	}
	return p.MaxMintAmount
}

// Used returns the effective usage for op at now.
func (p PeriodLimit) Used(op Operation, now int64) uint64 {
	if p.Expired(now) {
		return 0
	}
	if op == OperationRedeem {
		return p.RedeemedAmount
	}
	return p.MintedAmount
}

// Remaining returns the capacity left for op at now, floored at zero.
func (p PeriodLimit) Remaining(op Operation, now int64) uint64 {
	limit, used := p.Max(op), p.Used(op, now)
	if used >= limit {
		return 0
	}
	return limit - used
}

// Roll physically resets an expired window, starting a new one at now.
func (p *PeriodLimit) Roll(now int64) {
	if p.DurationSeconds == 0 || !p.Expired(now) {
		return
	}
	p.MintedAmount = 0
	p.RedeemedAmount = 0
	p.WindowStart = now
}

// Record rolls the window and adds amount to the op counter.
func (p *PeriodLimit) Record(op Operation, amount uint64, now int64) error {
	if p.DurationSeconds == 0 {
		return nil
	}
	p.Roll(now)
	counter := &p.MintedAmount
	if op == OperationRedeem {
		counter = &p.RedeemedAmount
	}
	if *counter > ^uint64(0)-amount {
		return ErrArithmeticOverflow
	}
	*counter += amount
	return nil
}

// Update replaces duration and caps, leaving counters and window start untouched.
func (p *PeriodLimit) Update(durationSeconds, maxMint, maxRedeem uint64) error {
	if err := ValidatePeriodDuration(durationSeconds); err != nil {
		return err
	}
	p.DurationSeconds = durationSeconds
	p.MaxMintAmount = maxMint
	p.MaxRedeemAmount = maxRedeem
	return nil
}

// Reset zeroes counters and restarts the window at now. Duration and caps are kept.
func (p *PeriodLimit) Reset(now int64) {
	p.MintedAmount = 0
	p.RedeemedAmount = 0
	p.WindowStart = now
}

// ValidatePeriodDuration accepts 0 (disabled) or a duration between 30 seconds and 30 days.
func ValidatePeriodDuration(durationSeconds uint64) error {
	if durationSeconds == 0 {
		return nil
	}
	if durationSeconds < MinPeriodDurationSeconds || durationSeconds > MaxPeriodDurationSeconds {
		return fmt.Errorf("%w: %ds", ErrInvalidPeriodLimit, durationSeconds)
	}
	return nil
}

// Update applies PeriodLimit.Update to slot index.
func (l *PeriodLimits) Update(index int, durationSeconds, maxMint, maxRedeem uint64) error {
	if index < 0 || index >= MaxPeriodLimits {
		return fmt.Errorf("%w: %d", ErrInvalidIndex, index)
	}
	return l[index].Update(durationSeconds, maxMint, maxRedeem)
}

// Reset applies PeriodLimit.Reset to slot index.
func (l *PeriodLimits) Reset(index int, now int64) error {
	if index < 0 || index >= MaxPeriodLimits {
		return fmt.Errorf("%w: %d", ErrInvalidIndex, index)
	}
	l[index].Reset(now)
	return nil
}

// Record adds amount to every enabled slot.
func (l *PeriodLimits) Record(op Operation, amount uint64, now int64) error {
	for i := range l {
		if err := l[i].Record(op, amount, now); err != nil {
			return err
		}
	}
	return nil
}

// violation returns the first slot in index order that cannot absorb amount.
func (l PeriodLimits) violation(scope LimitScope, op Operation, amount uint64, now int64) *PeriodLimitViolation {
	for i, slot := range l {
		if !slot.Enabled() {
			continue
		}
		remaining := slot.Remaining(op, now)
		if amount > remaining {
			return &PeriodLimitViolation{
				Scope:           scope,
				Index:           i,
				Operation:       op,
				RemainingAmount: remaining,
			}
		}
	}
	return nil
}

// FindPeriodLimitViolation checks config, vault and benefactor limits in that order and
// returns the first violation found, or nil when amount fits every active window. It does
// not mutate any counters.
func FindPeriodLimitViolation(amount uint64, op Operation, b Benefactor, cfg Config, v Vault, now int64) (*PeriodLimitViolation, error) {
	if amount == 0 {
		return nil, ErrZeroAmount
	}
	if !op.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownOperation, string(op))
	}
	if violation := cfg.PeriodLimits.violation(ScopeConfig, op, amount, now); violation != nil {
		return violation, nil
	}
	if violation := v.PeriodLimits.violation(ScopeVault, op, amount, now); violation != nil {
		return violation, nil
	}
	if violation := b.PeriodLimits.violation(ScopeBenefactor, op, amount, now); violation != nil {
		return violation, nil
	}
	return nil, nil
}
