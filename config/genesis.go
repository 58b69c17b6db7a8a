package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"pegvault/crypto"
	"pegvault/native/stable"
)

// Genesis describes the protocol state a fresh ledger is bootstrapped with.
type Genesis struct {
	Protocol     Protocol      `toml:"Protocol"`
	PeriodLimits []PeriodLimit `toml:"PeriodLimits,omitempty"`
	Operators    []Operator    `toml:"Operators,omitempty"`
	Vaults       []Vault       `toml:"Vaults,omitempty"`
	Benefactors  []Benefactor  `toml:"Benefactors,omitempty"`
}

// Protocol holds the global record. Admin becomes the root operator.
type Protocol struct {
	Admin        string `toml:"Admin"`
	Mint         string `toml:"Mint"`
	Authority    string `toml:"Authority"`
	TokenProgram string `toml:"TokenProgram"`
	Decimals     uint8  `toml:"Decimals"`
	PegPrice     string `toml:"PegPrice,omitempty"`
	Enabled      bool   `toml:"Enabled"`
}

// PeriodLimit configures one rolling-window slot.
type PeriodLimit struct {
	Slot            int    `toml:"Slot"`
	DurationSeconds uint64 `toml:"DurationSeconds"`
	MaxMintAmount   uint64 `toml:"MaxMintAmount"`
	MaxRedeemAmount uint64 `toml:"MaxRedeemAmount"`
}

// Operator grants roles to an authority beyond the root operator.
type Operator struct {
	Authority string   `toml:"Authority"`
	Roles     []string `toml:"Roles"`
	Disabled  bool     `toml:"Disabled,omitempty"`
}

// Oracle is one oracle slot of a vault.
type Oracle struct {
	Slot    int    `toml:"Slot"`
	Kind    string `toml:"Kind"`
	Account string `toml:"Account"`
	FeedID  string `toml:"FeedID,omitempty"`
}

// Vault registers a collateral mint.
type Vault struct {
	Mint             string        `toml:"Mint"`
	TokenAccount     string        `toml:"TokenAccount"`
	TokenProgram     string        `toml:"TokenProgram"`
	Custodian        string        `toml:"Custodian"`
	Decimals         uint8         `toml:"Decimals"`
	Enabled          bool          `toml:"Enabled"`
	StalenessSeconds uint64        `toml:"StalenessSeconds,omitempty"`
	MinOraclePrice   string        `toml:"MinOraclePrice,omitempty"`
	MaxOraclePrice   string        `toml:"MaxOraclePrice,omitempty"`
	Balance          uint64        `toml:"Balance,omitempty"`
	Oracles          []Oracle      `toml:"Oracles"`
	PeriodLimits     []PeriodLimit `toml:"PeriodLimits,omitempty"`
}

// Benefactor registers a party allowed to mint and redeem.
type Benefactor struct {
	Authority    string        `toml:"Authority"`
	MintFeeBps   uint16        `toml:"MintFeeBps"`
	RedeemFeeBps uint16        `toml:"RedeemFeeBps"`
	Active       bool          `toml:"Active"`
	PeriodLimits []PeriodLimit `toml:"PeriodLimits,omitempty"`
}

// Load decodes a genesis file. Unknown keys are rejected so typos do not silently drop
// configuration.
func Load(path string) (*Genesis, error) {
	g := &Genesis{}
	meta, err := toml.DecodeFile(path, g)
	if err != nil {
		return nil, fmt.Errorf("genesis %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, key := range undecoded {
			keys = append(keys, key.String())
		}
		return nil, fmt.Errorf("genesis %s: unknown keys %s", path, strings.Join(keys, ", "))
	}
	if err := Validate(g); err != nil {
		return nil, fmt.Errorf("genesis %s: %w", path, err)
	}
	return g, nil
}

// Persist writes g as TOML, creating parent directories as needed.
func Persist(path string, g *Genesis) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(g)
}

// Template returns a minimal single-vault genesis, useful as a starting point.
func Template(admin, mint, collateral crypto.Address) *Genesis {
	return &Genesis{
		Protocol: Protocol{
			Admin:    admin.String(),
			Mint:     mint.String(),
			Decimals: 6,
			PegPrice: "1.0000",
		},
		Vaults: []Vault{{
			Mint:           collateral.String(),
			Decimals:       6,
			MinOraclePrice: "0.9900",
			MaxOraclePrice: "1.0000",
		}},
	}
}

// Admin returns the root operator that signs the bootstrap batch.
func (g *Genesis) Admin() (crypto.Address, error) {
	return crypto.ParseAddress(g.Protocol.Admin)
}

// Build applies the bootstrap batch to an empty state.
func (g *Genesis) Build(now int64) (stable.State, error) {
	admin, err := g.Admin()
	if err != nil {
		return stable.State{}, fmt.Errorf("protocol admin: %w", err)
	}
	actions, err := g.Actions()
	if err != nil {
		return stable.State{}, err
	}
	st, _, err := stable.ApplyBatch(stable.NewState(), admin, actions, now)
	if err != nil {
		return stable.State{}, fmt.Errorf("apply genesis: %w", err)
	}
	return st, nil
}

// Actions translates the genesis into the instruction sequence the root operator signs.
func (g *Genesis) Actions() ([]stable.Action, error) {
	p := g.Protocol
	mint, err := crypto.ParseAddress(p.Mint)
	if err != nil {
		return nil, fmt.Errorf("protocol mint: %w", err)
	}
	authority, err := optionalAddress(p.Authority)
	if err != nil {
		return nil, fmt.Errorf("protocol authority: %w", err)
	}
	program, err := optionalAddress(p.TokenProgram)
	if err != nil {
		return nil, fmt.Errorf("protocol token program: %w", err)
	}
	actions := []stable.Action{stable.InitConfig{Mint: mint, Authority: authority, TokenProgram: program, Decimals: p.Decimals}}
	if strings.TrimSpace(p.PegPrice) != "" {
		peg, err := stable.ParsePegPrice(p.PegPrice)
		if err != nil {
			return nil, err
		}
		actions = append(actions, stable.SetPegPriceUSD{PegPriceUSD: peg})
	}
	actions = append(actions, limitActions(stable.ScopeConfig, crypto.Address{}, g.PeriodLimits)...)

	for i, o := range g.Operators {
		op, err := operatorActions(o)
		if err != nil {
			return nil, fmt.Errorf("operators[%d]: %w", i, err)
		}
		actions = append(actions, op...)
	}
	for i, v := range g.Vaults {
		va, err := vaultActions(v)
		if err != nil {
			return nil, fmt.Errorf("vaults[%d]: %w", i, err)
		}
		actions = append(actions, va...)
	}
	for i, b := range g.Benefactors {
		ba, err := benefactorActions(b)
		if err != nil {
			return nil, fmt.Errorf("benefactors[%d]: %w", i, err)
		}
		actions = append(actions, ba...)
	}
	if p.Enabled {
		actions = append(actions, stable.UpdatePauseFlag{MintRedeemEnabled: true})
	}
	return actions, nil
}

func operatorActions(o Operator) ([]stable.Action, error) {
	authority, err := crypto.ParseAddress(o.Authority)
	if err != nil {
		return nil, err
	}
	roles := stable.RoleSet(0)
	for _, name := range o.Roles {
		set, err := stable.ParseRoleSet(name)
		if err != nil {
			return nil, err
		}
		roles |= set
	}
	actions := []stable.Action{stable.CreateOperator{Authority: authority, Role: roles}}
	if o.Disabled {
		actions = append(actions, stable.SetOperatorStatus{Authority: authority, Status: stable.OperatorDisabled})
	}
	return actions, nil
}

func vaultActions(v Vault) ([]stable.Action, error) {
	mint, err := crypto.ParseAddress(v.Mint)
	if err != nil {
		return nil, fmt.Errorf("mint: %w", err)
	}
	tokenAccount, err := optionalAddress(v.TokenAccount)
	if err != nil {
		return nil, fmt.Errorf("token account: %w", err)
	}
	program, err := optionalAddress(v.TokenProgram)
	if err != nil {
		return nil, fmt.Errorf("token program: %w", err)
	}
	actions := []stable.Action{stable.CreateVault{Mint: mint, TokenAccount: tokenAccount, TokenProgram: program, Decimals: v.Decimals}}
	if strings.TrimSpace(v.Custodian) != "" {
		custodian, err := crypto.ParseAddress(v.Custodian)
		if err != nil {
			return nil, fmt.Errorf("custodian: %w", err)
		}
		actions = append(actions, stable.SetCustodian{Mint: mint, Custodian: custodian})
	}
	if v.StalenessSeconds > 0 {
		actions = append(actions, stable.SetStalenessThreshold{Mint: mint, Seconds: v.StalenessSeconds})
	}
	bounds, err := boundActions(mint, v.MinOraclePrice, v.MaxOraclePrice)
	if err != nil {
		return nil, err
	}
	actions = append(actions, bounds...)
	for _, o := range v.Oracles {
		oracle, err := o.config()
		if err != nil {
			return nil, fmt.Errorf("oracle slot %d: %w", o.Slot, err)
		}
		actions = append(actions, stable.UpdateOracle{Mint: mint, Index: o.Slot, Oracle: stable.OracleValue{OracleConfig: oracle}})
	}
	actions = append(actions, limitActions(stable.ScopeVault, mint, v.PeriodLimits)...)
	if v.Balance > 0 {
		actions = append(actions, stable.DepositCollateral{Mint: mint, Amount: v.Balance})
	}
	if v.Enabled {
		actions = append(actions, stable.SetVaultStatus{Mint: mint, Status: stable.VaultEnabled})
	}
	return actions, nil
}

// boundActions orders the two bound updates so the min < max invariant holds after each.
func boundActions(mint crypto.Address, rawMin, rawMax string) ([]stable.Action, error) {
	var minPrice, maxPrice uint64
	var err error
	if strings.TrimSpace(rawMin) != "" {
		if minPrice, err = parseBound(rawMin); err != nil {
			return nil, fmt.Errorf("min oracle price: %w", err)
		}
	}
	if strings.TrimSpace(rawMax) != "" {
		if maxPrice, err = parseBound(rawMax); err != nil {
			return nil, fmt.Errorf("max oracle price: %w", err)
		}
	}
	setMin := stable.SetMinOraclePrice{Mint: mint, Price: minPrice}
	setMax := stable.SetMaxOraclePrice{Mint: mint, Price: maxPrice}
	switch {
	case minPrice == 0 && maxPrice == 0:
		return nil, nil
	case minPrice == 0:
		return []stable.Action{setMax}, nil
	case maxPrice == 0:
		return []stable.Action{setMin}, nil
	case maxPrice > stable.DefaultMinOraclePriceUSD:
		return []stable.Action{setMax, setMin}, nil
	default:
		return []stable.Action{setMin, setMax}, nil
	}
}

func benefactorActions(b Benefactor) ([]stable.Action, error) {
	authority, err := crypto.ParseAddress(b.Authority)
	if err != nil {
		return nil, err
	}
	actions := []stable.Action{stable.CreateBenefactor{Authority: authority, MintFeeRate: b.MintFeeBps, RedeemFeeRate: b.RedeemFeeBps}}
	actions = append(actions, limitActions(stable.ScopeBenefactor, authority, b.PeriodLimits)...)
	if b.Active {
		actions = append(actions, stable.SetBenefactorStatus{Authority: authority, Status: stable.BenefactorActive})
	}
	return actions, nil
}

func limitActions(scope stable.LimitScope, target crypto.Address, limits []PeriodLimit) []stable.Action {
	out := make([]stable.Action, 0, len(limits))
	for _, l := range limits {
		out = append(out, stable.UpdatePeriodLimit{
			Scope:           scope,
			Target:          target,
			Index:           l.Slot,
			DurationSeconds: l.DurationSeconds,
			MaxMintAmount:   l.MaxMintAmount,
			MaxRedeemAmount: l.MaxRedeemAmount,
		})
	}
	return out
}

func (o Oracle) config() (stable.OracleConfig, error) {
	fields := map[string]string{"kind": o.Kind}
	if account := strings.TrimSpace(o.Account); account != "" {
		fields["account"] = account
	}
	if feed := strings.TrimSpace(o.FeedID); feed != "" {
		fields["feedId"] = feed
	}
	payload, err := json.Marshal(fields)
	if err != nil {
		return nil, err
	}
	return stable.DecodeOracle(payload)
}

func optionalAddress(raw string) (crypto.Address, error) {
	if strings.TrimSpace(raw) == "" {
		return crypto.Address{}, nil
	}
	return crypto.ParseAddress(raw)
}
