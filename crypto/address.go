package crypto

import (
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"
)

// Address is a 32-byte ledger account key rendered as base58.
type Address [32]byte

// Seed tags used to derive entity addresses.
var (
	SeedConfig     = []byte("config")
	SeedAuthority  = []byte("authority")
	SeedVault      = []byte("vault")
	SeedBenefactor = []byte("benefactor")
	SeedOperator   = []byte("operator")
)

// ParseAddress decodes a base58 address.
func ParseAddress(raw string) (Address, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Address{}, fmt.Errorf("address required")
	}
	pk, err := solana.PublicKeyFromBase58(trimmed)
	if err != nil {
		return Address{}, fmt.Errorf("invalid address %q: %w", trimmed, err)
	}
	return Address(pk), nil
}

// MustParseAddress is ParseAddress for constants and tests.
func MustParseAddress(raw string) Address {
	addr, err := ParseAddress(raw)
	if err != nil {
		panic(err)
	}
	return addr
}

// String renders the address in base58.
func (a Address) String() string {
	return solana.PublicKey(a).String()
}

// IsZero reports whether the address is the all-zero key.
func (a Address) IsZero() bool {
	return a == Address{}
}

// Bytes returns a copy of the raw key.
func (a Address) Bytes() []byte {
	out := make([]byte, len(a))
	copy(out, a[:])
	return out
}

// MarshalText implements encoding.TextMarshaler.
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := ParseAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Deriver maps a seed tag plus a distinguishing key to a unique program-owned address.
type Deriver struct {
	program solana.PublicKey
}

// NewDeriver binds derivations to the owning program id.
func NewDeriver(programID Address) *Deriver {
	return &Deriver{program: solana.PublicKey(programID)}
}

// Derive returns the off-curve address for the seeds and its bump.
func (d *Deriver) Derive(seeds ...[]byte) (Address, uint8, error) {
	if d == nil {
		return Address{}, 0, fmt.Errorf("deriver not configured")
	}
	pk, bump, err := solana.FindProgramAddress(seeds, d.program)
	if err != nil {
		return Address{}, 0, fmt.Errorf("derive address: %w", err)
	}
	return Address(pk), bump, nil
}

// Config derives the singleton config address.
func (d *Deriver) Config() (Address, error) {
	addr, _, err := d.Derive(SeedConfig)
	return addr, err
}

// Authority derives the signing authority of the program.
func (d *Deriver) Authority() (Address, error) {
	addr, _, err := d.Derive(SeedAuthority)
	return addr, err
}

// Vault derives the vault address for a collateral mint.
func (d *Deriver) Vault(mint Address) (Address, error) {
	addr, _, err := d.Derive(SeedVault, mint[:])
	return addr, err
}

// Benefactor derives the benefactor address for an authority.
func (d *Deriver) Benefactor(authority Address) (Address, error) {
	addr, _, err := d.Derive(SeedBenefactor, authority[:])
	return addr, err
}

// Operator derives the operator address for an authority.
func (d *Deriver) Operator(authority Address) (Address, error) {
	addr, _, err := d.Derive(SeedOperator, authority[:])
	return addr, err
}
