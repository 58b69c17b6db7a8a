package stable

import (
	"fmt"
	"strings"

	"pegvault/crypto"
)

const (
	// DefaultStalenessThreshold is applied to newly created vaults, in seconds.
	DefaultStalenessThreshold = 300
	// DefaultMinOraclePriceUSD is 0.5000 at PegPriceDecimals.
	DefaultMinOraclePriceUSD = 5_000
	// DefaultMaxOraclePriceUSD is 1.0000 at PegPriceDecimals.
	DefaultMaxOraclePriceUSD = 10_000
)

// VaultStatus toggles whether a vault accepts mint and redeem.
type VaultStatus uint8

const (
	VaultDisabled VaultStatus = iota
	VaultEnabled
)

func (s VaultStatus) String() string {
	switch s {
	case VaultDisabled:
		return "Disabled"
	case VaultEnabled:
		return "Enabled"
	default:
		return fmt.Sprintf("VaultStatus(%d)", uint8(s))
	}
}

// ParseVaultStatus resolves a status by name.
func ParseVaultStatus(raw string) (VaultStatus, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "disabled":
		return VaultDisabled, nil
	case "enabled":
		return VaultEnabled, nil
	default:
		return 0, fmt.Errorf("%w: vault status %q", ErrUnknownStatus, raw)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s VaultStatus) MarshalText() ([]byte, error) {
	if s > VaultEnabled {
		return nil, fmt.Errorf("%w: vault status %d", ErrUnknownStatus, uint8(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *VaultStatus) UnmarshalText(text []byte) error {
	parsed, err := ParseVaultStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Vault is the custody and configuration record of one collateral mint.
type Vault struct {
	Mint               crypto.Address `json:"mint"`
	Custodian          crypto.Address `json:"custodian"`
	TokenAccount       crypto.Address `json:"tokenAccount"`
	TokenProgram       crypto.Address `json:"tokenProgram"`
	Status             VaultStatus    `json:"status"`
	StalenessThreshold uint64         `json:"stalenessThreshold"`
	MinOraclePriceUSD  uint64         `json:"minOraclePriceUsd"`
	MaxOraclePriceUSD  uint64         `json:"maxOraclePriceUsd"`
	Decimals           uint8          `json:"decimals"`
	// Balance is the collateral held by the vault token account and available to redeem.
	Balance uint64 `json:"balance"`
	// CustodianBalance is collateral forwarded to the custodian by mints and withdrawals.
	CustodianBalance uint64       `json:"custodianBalance"`
	TotalMinted      Total128     `json:"totalMinted"`
	TotalRedeemed    Total128     `json:"totalRedeemed"`
	Oracles          OracleSlots  `json:"oracles"`
	PeriodLimits     PeriodLimits `json:"periodLimits"`
}

// NewVault creates a disabled vault with default oracle bounds.
func NewVault(cfg Config, mint, tokenAccount, tokenProgram crypto.Address, decimals uint8) (Vault, error) {
	if mint.IsZero() {
		return Vault{}, fmt.Errorf("%w: collateral mint required", ErrInvalidVaultMint)
	}
	if mint == cfg.Mint {
		return Vault{}, fmt.Errorf("%w: collateral mint equals stable mint", ErrInvalidVaultMint)
	}
	if decimals > MaxTokenDecimals {
		return Vault{}, fmt.Errorf("%w: %d", ErrInvalidDecimals, decimals)
	}
	v := Vault{
		Mint:               mint,
		TokenAccount:       tokenAccount,
		TokenProgram:       tokenProgram,
		Status:             VaultDisabled,
		StalenessThreshold: DefaultStalenessThreshold,
		MinOraclePriceUSD:  DefaultMinOraclePriceUSD,
		MaxOraclePriceUSD:  DefaultMaxOraclePriceUSD,
		Decimals:           decimals,
	}
	for i := range v.Oracles {
		v.Oracles[i] = EmptyOracle{}
	}
	return v, nil
}

// Enabled reports whether the vault accepts mint and redeem.
func (v Vault) Enabled() bool { return v.Status == VaultEnabled }

// Disable turns an enabled vault off.
func (v *Vault) Disable() error {
	if v.Status != VaultEnabled {
		return ErrVaultDisabled
	}
	v.Status = VaultDisabled
	return nil
}

// SetStatus switches status. Enabling needs a custodian and at least one oracle.
func (v *Vault) SetStatus(status VaultStatus) error {
	switch status {
	case VaultEnabled:
		if v.Custodian.IsZero() {
			return fmt.Errorf("%w: vault has no custodian", ErrInvalidCustodian)
		}
		if !v.Oracles.HasOracle() {
			return ErrNoValidOracle
		}
	case VaultDisabled:
	default:
		return fmt.Errorf("%w: vault status %d", ErrUnknownStatus, uint8(status))
	}
	v.Status = status
	return nil
}

// UpdateOracle replaces one slot. Clearing the last configured oracle disables the vault.
func (v *Vault) UpdateOracle(index int, oracle OracleConfig) error {
	if index < 0 || index >= MaxOracles {
		return fmt.Errorf("%w: oracle index %d", ErrInvalidIndex, index)
	}
	if IsEmptyOracle(oracle) {
		oracle = EmptyOracle{}
	}
	v.Oracles[index] = oracle
	if !v.Oracles.HasOracle() {
		v.Status = VaultDisabled
	}
	return nil
}

// SetCustodian reassigns the custodian.
func (v *Vault) SetCustodian(custodian crypto.Address) error {
	if custodian.IsZero() {
		return fmt.Errorf("%w: custodian required", ErrInvalidCustodian)
	}
	v.Custodian = custodian
	return nil
}

// SetStalenessThreshold sets the maximum oracle age in seconds.
func (v *Vault) SetStalenessThreshold(seconds uint64) {
	v.StalenessThreshold = seconds
}

// SetMinOraclePrice requires 0 < min < max.
func (v *Vault) SetMinOraclePrice(price uint64) error {
	if price == 0 || price >= v.MaxOraclePriceUSD {
		return fmt.Errorf("%w: min %d, max %d", ErrInvalidOracleBounds, price, v.MaxOraclePriceUSD)
	}
	v.MinOraclePriceUSD = price
	return nil
}

// SetMaxOraclePrice requires max > min.
func (v *Vault) SetMaxOraclePrice(price uint64) error {
	if price <= v.MinOraclePriceUSD {
		return fmt.Errorf("%w: min %d, max %d", ErrInvalidOracleBounds, v.MinOraclePriceUSD, price)
	}
	v.MaxOraclePriceUSD = price
	return nil
}

// Withdraw moves collateral from the vault to the custodian.
func (v *Vault) Withdraw(amount uint64) error {
	if amount == 0 {
		return ErrZeroAmount
	}
	if !v.Enabled() {
		return ErrVaultDisabled
	}
	if amount > v.Balance {
		return fmt.Errorf("%w: balance %d, requested %d", ErrVaultDry, v.Balance, amount)
	}
	custodian, err := checkedAdd(v.CustodianBalance, amount)
	if err != nil {
		return err
	}
	v.Balance -= amount
	v.CustodianBalance = custodian
	return nil
}

// Deposit credits collateral to the vault token account.
func (v *Vault) Deposit(amount uint64) error {
	if amount == 0 {
		return ErrZeroAmount
	}
	balance, err := checkedAdd(v.Balance, amount)
	if err != nil {
		return err
	}
	v.Balance = balance
	return nil
}

// checkOraclePrice enforces the vault bounds rescaled to OraclePriceDecimals. The upper
// bound is only applied when checkMax is set.
func (v Vault) checkOraclePrice(price uint64, checkMax bool) error {
	lower, err := mulAll(newU(v.MinOraclePriceUSD), boundScale)
	if err != nil {
		return err
	}
	p := newU(price)
	if p.Lt(lower) {
		return fmt.Errorf("%w: %d below %s", ErrOraclePriceOutOfBounds, price, lower.Dec())
	}
	if !checkMax {
		return nil
	}
	upper, err := mulAll(newU(v.MaxOraclePriceUSD), boundScale)
	if err != nil {
		return err
	}
	if p.Gt(upper) {
		return fmt.Errorf("%w: %d above %s", ErrOraclePriceOutOfBounds, price, upper.Dec())
	}
	return nil
}
