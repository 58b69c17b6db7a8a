package stable

import (
	"fmt"

	"pegvault/crypto"
)

const (
	// DefaultPegPriceUSD is 1.0000 at PegPriceDecimals.
	DefaultPegPriceUSD = 10_000
	// MaxPegPriceUSD is the exclusive upper bound of the peg (2.0000).
	MaxPegPriceUSD = 20_000
)

// Config is the global protocol record.
type Config struct {
	Mint              crypto.Address `json:"mint"`
	Authority         crypto.Address `json:"authority"`
	TokenProgram      crypto.Address `json:"tokenProgram"`
	Decimals          uint8          `json:"decimals"`
	PegPriceUSD       uint64         `json:"pegPriceUsd"`
	MintRedeemEnabled bool           `json:"mintRedeemEnabled"`
	PeriodLimits      PeriodLimits   `json:"periodLimits"`
}

// NewConfig returns the record written at initialisation: peg 1.0000 and paused.
func NewConfig(mint, authority, tokenProgram crypto.Address, decimals uint8) (Config, error) {
	if mint.IsZero() {
		return Config{}, fmt.Errorf("%w: stable mint required", ErrInvalidInput)
	}
	if decimals > MaxTokenDecimals {
		return Config{}, fmt.Errorf("%w: %d", ErrInvalidDecimals, decimals)
	}
	return Config{
		Mint:         mint,
		Authority:    authority,
		TokenProgram: tokenProgram,
		Decimals:     decimals,
		PegPriceUSD:  DefaultPegPriceUSD,
	}, nil
}

// Paused reports whether mint and redeem are halted.
func (c Config) Paused() bool { return !c.MintRedeemEnabled }

// Pause halts mint and redeem. Pausing an already paused protocol fails.
func (c *Config) Pause() error {
	if !c.MintRedeemEnabled {
		return ErrProtocolPaused
	}
	c.MintRedeemEnabled = false
	return nil
}

// SetMintRedeemEnabled sets the pause flag explicitly.
func (c *Config) SetMintRedeemEnabled(enabled bool) {
	c.MintRedeemEnabled = enabled
}

// SetPegPriceUSD updates the peg; it must lie in (0, 2.0000).
func (c *Config) SetPegPriceUSD(price uint64) error {
	if err := ValidatePegPrice(price); err != nil {
		return err
	}
	c.PegPriceUSD = price
	return nil
}

// ValidatePegPrice checks 0 < price < MaxPegPriceUSD.
func ValidatePegPrice(price uint64) error {
	if price == 0 || price >= MaxPegPriceUSD {
		return fmt.Errorf("%w: %d", ErrInvalidPegPrice, price)
	}
	return nil
}
