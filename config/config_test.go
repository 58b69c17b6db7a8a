package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"pegvault/crypto"
	"pegvault/native/stable"
)

const testNow = int64(1_700_000_000)

func addr(b byte) crypto.Address {
	var a crypto.Address
	a[0] = b
	a[31] = b
	return a
}

func writeGenesis(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "genesis.toml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write genesis: %v", err)
	}
	return path
}

func sampleGenesis() string {
	return fmt.Sprintf(`
[Protocol]
Admin = "%s"
Mint = "%s"
Decimals = 6
PegPrice = "1.0025"
Enabled = true

[[PeriodLimits]]
Slot = 0
DurationSeconds = 86400
MaxMintAmount = 1000000000000
MaxRedeemAmount = 1000000000000

[[Operators]]
Authority = "%s"
Roles = ["PegManager", "PeriodManager"]

[[Vaults]]
Mint = "%s"
TokenAccount = "%s"
Custodian = "%s"
Decimals = 6
Enabled = true
StalenessSeconds = 120
MinOraclePrice = "0.9900"
MaxOraclePrice = "1.0100"
Balance = 5000000000

  [[Vaults.Oracles]]
  Slot = 0
  Kind = "doves"
  Account = "%s"

  [[Vaults.Oracles]]
  Slot = 2
  Kind = "pyth"
  Account = "%s"
  FeedID = "%s"

[[Benefactors]]
Authority = "%s"
MintFeeBps = 10
RedeemFeeBps = 20
Active = true

  [[Benefactors.PeriodLimits]]
  Slot = 3
  DurationSeconds = 3600
  MaxMintAmount = 500000000
  MaxRedeemAmount = 500000000
`, addr(100), addr(1), addr(60), addr(10), addr(11), addr(50), addr(41), addr(40), strings.Repeat("ab", 32), addr(20))
}

func TestLoadBuildsProtocolState(t *testing.T) {
	g, err := Load(writeGenesis(t, sampleGenesis()))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	st, err := g.Build(testNow)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if st.Config.PegPriceUSD != 10_025 || st.Config.Paused() {
		t.Fatalf("unexpected config: %+v", st.Config)
	}
	if st.Config.PeriodLimits[0].DurationSeconds != 86_400 {
		t.Fatalf("config period limit missing: %+v", st.Config.PeriodLimits)
	}
	op, err := st.Operator(addr(60))
	if err != nil {
		t.Fatalf("operator: %v", err)
	}
	if !op.Role.Has(stable.RolePegManager) || !op.Role.Has(stable.RolePeriodManager) || op.Role.Has(stable.RoleAdmin) {
		t.Fatalf("unexpected roles %s", op.Role)
	}
	vault, err := st.Vault(addr(10))
	if err != nil {
		t.Fatalf("vault: %v", err)
	}
	if !vault.Enabled() || vault.Balance != 5_000_000_000 || vault.StalenessThreshold != 120 {
		t.Fatalf("unexpected vault: %+v", vault)
	}
	if vault.MinOraclePriceUSD != 9_900 || vault.MaxOraclePriceUSD != 10_100 {
		t.Fatalf("bounds not applied: %d %d", vault.MinOraclePriceUSD, vault.MaxOraclePriceUSD)
	}
	pyth, ok := vault.Oracles[2].(stable.PythOracle)
	if !ok || pyth.FeedID[0] != 0xab || pyth.Account != addr(40) {
		t.Fatalf("pyth slot not configured: %#v", vault.Oracles[2])
	}
	benefactor, err := st.Benefactor(addr(20))
	if err != nil {
		t.Fatalf("benefactor: %v", err)
	}
	if !benefactor.Active() || benefactor.RedeemFeeRate != 20 || benefactor.PeriodLimits[3].MaxMintAmount != 500_000_000 {
		t.Fatalf("unexpected benefactor: %+v", benefactor)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	contents := sampleGenesis() + "\nSupply = 5\n"
	_, err := Load(writeGenesis(t, contents))
	if err == nil || !strings.Contains(err.Error(), "unknown keys") {
		t.Fatalf("expected unknown key rejection, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	base := func() *Genesis {
		return &Genesis{Protocol: Protocol{Admin: addr(100).String(), Mint: addr(1).String()}}
	}
	cases := map[string]func(*Genesis){
		"missing admin":     func(g *Genesis) { g.Protocol.Admin = "" },
		"slot out of range": func(g *Genesis) { g.PeriodLimits = []PeriodLimit{{Slot: stable.MaxPeriodLimits}} },
		"duplicate slot":    func(g *Genesis) { g.PeriodLimits = []PeriodLimit{{Slot: 1}, {Slot: 1}} },
		"duplicate vault": func(g *Genesis) {
			g.Vaults = []Vault{{Mint: addr(10).String()}, {Mint: addr(10).String()}}
		},
		"enabled without custodian": func(g *Genesis) {
			g.Vaults = []Vault{{Mint: addr(10).String(), Enabled: true}}
		},
		"admin listed as operator": func(g *Genesis) {
			g.Operators = []Operator{{Authority: addr(100).String()}}
		},
	}
	for name, mutate := range cases {
		g := base()
		mutate(g)
		if err := Validate(g); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
	if err := Validate(base()); err != nil {
		t.Fatalf("minimal genesis should validate: %v", err)
	}
}

func TestBuildSurfacesProtocolErrors(t *testing.T) {
	g := &Genesis{Protocol: Protocol{Admin: addr(100).String(), Mint: addr(1).String(), PegPrice: "2.5"}}
	if _, err := g.Build(testNow); !errors.Is(err, stable.ErrInvalidPegPrice) {
		t.Fatalf("expected peg rejection, got %v", err)
	}
	g.Protocol.PegPrice = ""
	g.Benefactors = []Benefactor{{Authority: addr(20).String(), MintFeeBps: 10_001}}
	if _, err := g.Build(testNow); !errors.Is(err, stable.ErrInvalidFeeRate) {
		t.Fatalf("expected fee rejection, got %v", err)
	}
}

func TestBoundOrderingBelowDefaults(t *testing.T) {
	actions, err := boundActions(addr(10), "0.2000", "0.3000")
	if err != nil {
		t.Fatalf("bounds: %v", err)
	}
	if _, ok := actions[0].(stable.SetMinOraclePrice); !ok {
		t.Fatalf("min must be lowered before max when both sit below the default min: %#v", actions)
	}
	if _, err := parseBound("0.12345"); err == nil {
		t.Fatalf("expected precision error")
	}
}

func TestPersistRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "genesis.toml")
	if err := Persist(path, Template(addr(100), addr(1), addr(10))); err != nil {
		t.Fatalf("persist: %v", err)
	}
	g, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	st, err := g.Build(testNow)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if !st.Config.Paused() || len(st.Vaults) != 1 || st.Vaults[addr(10)].MinOraclePriceUSD != 9_900 {
		t.Fatalf("unexpected template state: %+v", st)
	}
}
