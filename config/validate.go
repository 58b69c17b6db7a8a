package config

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"pegvault/native/stable"
)

// Validate performs the structural checks that do not need protocol state. Semantic
// checks (bounds, fee rates, role names) run when the bootstrap batch is applied.
func Validate(g *Genesis) error {
	if g == nil {
		return fmt.Errorf("genesis required")
	}
	if strings.TrimSpace(g.Protocol.Admin) == "" {
		return fmt.Errorf("protocol: admin required")
	}
	if strings.TrimSpace(g.Protocol.Mint) == "" {
		return fmt.Errorf("protocol: mint required")
	}
	if err := validateSlots("protocol", g.PeriodLimits); err != nil {
		return err
	}
	seen := map[string]struct{}{}
	for i, v := range g.Vaults {
		key := strings.TrimSpace(v.Mint)
		if key == "" {
			return fmt.Errorf("vaults[%d]: mint required", i)
		}
		if _, dup := seen[key]; dup {
			return fmt.Errorf("vaults[%d]: duplicate mint %s", i, key)
		}
		seen[key] = struct{}{}
		if v.Enabled && strings.TrimSpace(v.Custodian) == "" {
			return fmt.Errorf("vaults[%d]: enabled vault needs a custodian", i)
		}
		if len(v.Oracles) > stable.MaxOracles {
			return fmt.Errorf("vaults[%d]: at most %d oracles", i, stable.MaxOracles)
		}
		if err := validateSlots(fmt.Sprintf("vaults[%d]", i), v.PeriodLimits); err != nil {
			return err
		}
	}
	for i, b := range g.Benefactors {
		if strings.TrimSpace(b.Authority) == "" {
			return fmt.Errorf("benefactors[%d]: authority required", i)
		}
		if err := validateSlots(fmt.Sprintf("benefactors[%d]", i), b.PeriodLimits); err != nil {
			return err
		}
	}
	for i, o := range g.Operators {
		if strings.TrimSpace(o.Authority) == "" {
			return fmt.Errorf("operators[%d]: authority required", i)
		}
		if strings.TrimSpace(o.Authority) == strings.TrimSpace(g.Protocol.Admin) {
			return fmt.Errorf("operators[%d]: admin is created implicitly", i)
		}
	}
	return nil
}

func validateSlots(owner string, limits []PeriodLimit) error {
	used := map[int]struct{}{}
	for _, l := range limits {
		if l.Slot < 0 || l.Slot >= stable.MaxPeriodLimits {
			return fmt.Errorf("%s: period limit slot %d out of range", owner, l.Slot)
		}
		if _, dup := used[l.Slot]; dup {
			return fmt.Errorf("%s: period limit slot %d set twice", owner, l.Slot)
		}
		used[l.Slot] = struct{}{}
	}
	return nil
}

// parseBound converts a USD price such as "0.9950" to 4-decimal units.
func parseBound(raw string) (uint64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid price %q", raw)
	}
	scaled := d.Shift(stable.PegPriceDecimals)
	if !scaled.IsInteger() {
		return 0, fmt.Errorf("price %q has more than %d decimals", raw, stable.PegPriceDecimals)
	}
	if scaled.Sign() <= 0 {
		return 0, fmt.Errorf("price %q must be positive", raw)
	}
	bi := scaled.BigInt()
	if !bi.IsUint64() {
		return 0, fmt.Errorf("price %q too large", raw)
	}
	return bi.Uint64(), nil
}
