package stable

import (
	"fmt"
	"strings"

	"pegvault/crypto"
)

// BenefactorStatus toggles whether a counterparty may mint or redeem.
type BenefactorStatus uint8

const (
	BenefactorDisabled BenefactorStatus = iota
	BenefactorActive
)

func (s BenefactorStatus) String() string {
	switch s {
	case BenefactorDisabled:
		return "Disabled"
	case BenefactorActive:
		return "Active"
	default:
		return fmt.Sprintf("BenefactorStatus(%d)", uint8(s))
	}
}

// ParseBenefactorStatus resolves a status by name.
func ParseBenefactorStatus(raw string) (BenefactorStatus, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "disabled":
		return BenefactorDisabled, nil
	case "active":
		return BenefactorActive, nil
	default:
		return 0, fmt.Errorf("%w: benefactor status %q", ErrUnknownStatus, raw)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s BenefactorStatus) MarshalText() ([]byte, error) {
	if s > BenefactorActive {
		return nil, fmt.Errorf("%w: benefactor status %d", ErrUnknownStatus, uint8(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *BenefactorStatus) UnmarshalText(text []byte) error {
	parsed, err := ParseBenefactorStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Benefactor is a counterparty allowed to mint and redeem under its own fees and limits.
type Benefactor struct {
	Authority     crypto.Address   `json:"authority"`
	Status        BenefactorStatus `json:"status"`
	MintFeeRate   uint16           `json:"mintFeeRate"`
	RedeemFeeRate uint16           `json:"redeemFeeRate"`
	TotalMinted   Total128         `json:"totalMinted"`
	TotalRedeemed Total128         `json:"totalRedeemed"`
	PeriodLimits  PeriodLimits     `json:"periodLimits"`
}

// NewBenefactor creates a disabled benefactor with validated fee rates.
func NewBenefactor(authority crypto.Address, mintFeeRate, redeemFeeRate uint16) (Benefactor, error) {
	if authority.IsZero() {
		return Benefactor{}, fmt.Errorf("%w: benefactor authority required", ErrInvalidInput)
	}
	b := Benefactor{Authority: authority, Status: BenefactorDisabled}
	if err := b.UpdateFeeRates(mintFeeRate, redeemFeeRate); err != nil {
		return Benefactor{}, err
	}
	return b, nil
}

// Active reports whether the benefactor may transact.
func (b Benefactor) Active() bool { return b.Status == BenefactorActive }

// Disable turns an active benefactor off.
func (b *Benefactor) Disable() error {
	if b.Status != BenefactorActive {
		return ErrBenefactorDisabled
	}
	b.Status = BenefactorDisabled
	return nil
}

// SetStatus switches status.
func (b *Benefactor) SetStatus(status BenefactorStatus) error {
	if status > BenefactorActive {
		return fmt.Errorf("%w: benefactor status %d", ErrUnknownStatus, uint8(status))
	}
	b.Status = status
	return nil
}

// UpdateFeeRates sets both rates; each must be at most FeeRateDenominator.
func (b *Benefactor) UpdateFeeRates(mintFeeRate, redeemFeeRate uint16) error {
	if mintFeeRate > FeeRateDenominator || redeemFeeRate > FeeRateDenominator {
		return fmt.Errorf("%w: mint %d, redeem %d", ErrInvalidFeeRate, mintFeeRate, redeemFeeRate)
	}
	b.MintFeeRate = mintFeeRate
	b.RedeemFeeRate = redeemFeeRate
	return nil
}

// FeeRate returns the rate charged for op.
func (b Benefactor) FeeRate(op Operation) uint16 {
	if op == OperationRedeem {
		return b.RedeemFeeRate
	}
	return b.MintFeeRate
}
