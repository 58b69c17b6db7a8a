package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"pegvault/crypto"
	"pegvault/native/stable"
)

// addressFlag is a required base58 address.
type addressFlag struct {
	addr crypto.Address
	set  bool
}

func (a *addressFlag) String() string {
	if a == nil || !a.set {
		return ""
	}
	return a.addr.String()
}

func (a *addressFlag) Set(raw string) error {
	parsed, err := crypto.ParseAddress(raw)
	if err != nil {
		return err
	}
	a.addr, a.set = parsed, true
	return nil
}

func addrFlag(fs *flag.FlagSet, name, usage string) *addressFlag {
	a := &addressFlag{}
	fs.Var(a, name, usage)
	return a
}

func required(name string, flags ...*addressFlag) error {
	for _, f := range flags {
		if !f.set {
			return fmt.Errorf("%s: missing required address flag", name)
		}
	}
	return nil
}

// actionBuilder registers flags and returns the constructor to call after parsing.
type actionBuilder func(fs *flag.FlagSet) func() (stable.Action, error)

var batchActions = map[string]actionBuilder{
	"pause": func(fs *flag.FlagSet) func() (stable.Action, error) {
		return func() (stable.Action, error) { return stable.Pause{}, nil }
	},
	"unpause": func(fs *flag.FlagSet) func() (stable.Action, error) {
		return func() (stable.Action, error) { return stable.UpdatePauseFlag{MintRedeemEnabled: true}, nil }
	},
	"set-peg": func(fs *flag.FlagSet) func() (stable.Action, error) {
		price := fs.String("price", "", "Peg price in USD, e.g. 1.0025")
		return func() (stable.Action, error) {
			parsed, err := stable.ParsePegPrice(*price)
			if err != nil {
				return nil, err
			}
			return stable.SetPegPriceUSD{PegPriceUSD: parsed}, nil
		}
	},
	"period-limit": func(fs *flag.FlagSet) func() (stable.Action, error) {
		scope := fs.String("scope", "config", "config, vault or benefactor")
		target := addrFlag(fs, "target", "Vault mint or benefactor authority")
		index := fs.Int("index", 0, "Slot index")
		duration := fs.Duration("duration", 24*time.Hour, "Window length; 0 disables the slot")
		maxMint := fs.Uint64("max-mint", 0, "Mint cap per window")
		maxRedeem := fs.Uint64("max-redeem", 0, "Redeem cap per window")
		return func() (stable.Action, error) {
			s, err := parseScope(*scope, target)
			if err != nil {
				return nil, err
			}
			return stable.UpdatePeriodLimit{
				Scope:           s,
				Target:          target.addr,
				Index:           *index,
				DurationSeconds: uint64(duration.Seconds()),
				MaxMintAmount:   *maxMint,
				MaxRedeemAmount: *maxRedeem,
			}, nil
		}
	},
	"reset-period-limit": func(fs *flag.FlagSet) func() (stable.Action, error) {
		scope := fs.String("scope", "config", "config, vault or benefactor")
		target := addrFlag(fs, "target", "Vault mint or benefactor authority")
		index := fs.Int("index", 0, "Slot index")
		return func() (stable.Action, error) {
			s, err := parseScope(*scope, target)
			if err != nil {
				return nil, err
			}
			return stable.ResetPeriodLimit{Scope: s, Target: target.addr, Index: *index}, nil
		}
	},
	"create-operator": func(fs *flag.FlagSet) func() (stable.Action, error) {
		authority := addrFlag(fs, "authority", "Operator authority")
		roles := fs.String("roles", "None", "Roles in Name|Name form or an integer mask")
		return func() (stable.Action, error) {
			if err := required("create-operator", authority); err != nil {
				return nil, err
			}
			set, err := stable.ParseRoleSet(*roles)
			if err != nil {
				return nil, err
			}
			return stable.CreateOperator{Authority: authority.addr, Role: set}, nil
		}
	},
	"grant-role":  roleBuilder(true),
	"revoke-role": roleBuilder(false),
	"vault-status": func(fs *flag.FlagSet) func() (stable.Action, error) {
		vault := addrFlag(fs, "vault", "Collateral mint")
		status := fs.String("status", "enabled", "enabled or disabled")
		return func() (stable.Action, error) {
			if err := required("vault-status", vault); err != nil {
				return nil, err
			}
			parsed, err := stable.ParseVaultStatus(*status)
			if err != nil {
				return nil, err
			}
			return stable.SetVaultStatus{Mint: vault.addr, Status: parsed}, nil
		}
	},
	"benefactor-status": func(fs *flag.FlagSet) func() (stable.Action, error) {
		authority := addrFlag(fs, "benefactor", "Benefactor authority")
		status := fs.String("status", "active", "active or disabled")
		return func() (stable.Action, error) {
			if err := required("benefactor-status", authority); err != nil {
				return nil, err
			}
			parsed, err := stable.ParseBenefactorStatus(*status)
			if err != nil {
				return nil, err
			}
			return stable.SetBenefactorStatus{Authority: authority.addr, Status: parsed}, nil
		}
	},
	"set-fees": func(fs *flag.FlagSet) func() (stable.Action, error) {
		authority := addrFlag(fs, "benefactor", "Benefactor authority")
		mintBps := fs.Uint("mint-bps", 0, "Mint fee in basis points")
		redeemBps := fs.Uint("redeem-bps", 0, "Redeem fee in basis points")
		return func() (stable.Action, error) {
			if err := required("set-fees", authority); err != nil {
				return nil, err
			}
			if *mintBps > stable.FeeRateDenominator || *redeemBps > stable.FeeRateDenominator {
				return nil, stable.ErrInvalidFeeRate
			}
			return stable.UpdateFeeRates{Authority: authority.addr, MintFeeRate: uint16(*mintBps), RedeemFeeRate: uint16(*redeemBps)}, nil
		}
	},
	"deposit":  collateralBuilder(true),
	"withdraw": collateralBuilder(false),
	"mint":     exchangeBuilder(stable.OperationMint),
	"redeem":   exchangeBuilder(stable.OperationRedeem),
	"raw": func(fs *flag.FlagSet) func() (stable.Action, error) {
		kind := fs.String("kind", "", "Instruction kind, e.g. set_custodian")
		payload := fs.String("payload", "{}", "Instruction payload as JSON")
		return func() (stable.Action, error) {
			return stable.Instruction{Kind: *kind, Payload: json.RawMessage(*payload)}.Decode()
		}
	},
}

func roleBuilder(grant bool) actionBuilder {
	return func(fs *flag.FlagSet) func() (stable.Action, error) {
		authority := addrFlag(fs, "operator", "Operator authority")
		role := fs.String("role", "", "Role name, e.g. PegManager")
		return func() (stable.Action, error) {
			if err := required("role", authority); err != nil {
				return nil, err
			}
			parsed, err := stable.ParseRole(*role)
			if err != nil {
				return nil, err
			}
			if grant {
				return stable.GrantRole{Authority: authority.addr, Role: parsed}, nil
			}
			return stable.RevokeRole{Authority: authority.addr, Role: parsed}, nil
		}
	}
}

func collateralBuilder(deposit bool) actionBuilder {
	return func(fs *flag.FlagSet) func() (stable.Action, error) {
		vault := addrFlag(fs, "vault", "Collateral mint")
		amount := fs.Uint64("amount", 0, "Amount in collateral base units")
		return func() (stable.Action, error) {
			if err := required("collateral", vault); err != nil {
				return nil, err
			}
			if deposit {
				return stable.DepositCollateral{Mint: vault.addr, Amount: *amount}, nil
			}
			return stable.WithdrawCollateral{Mint: vault.addr, Amount: *amount}, nil
		}
	}
}

// sampleFlag collects oracle readings given as kind:account:price[:publishTime[:confidence]].
type sampleFlag struct {
	samples []stable.OracleSample
	now     func() time.Time
}

func (s *sampleFlag) String() string {
	if s == nil {
		return ""
	}
	parts := make([]string, 0, len(s.samples))
	for _, sample := range s.samples {
		parts = append(parts, fmt.Sprintf("%s:%s:%s", sample.Kind, sample.Account, stable.FormatOraclePrice(sample.Price)))
	}
	return strings.Join(parts, ",")
}

func (s *sampleFlag) Set(raw string) error {
	fields := strings.Split(raw, ":")
	if len(fields) < 3 || len(fields) > 5 {
		return fmt.Errorf("sample %q: want kind:account:price[:publishTime[:confidence]]", raw)
	}
	kind := stable.OracleKind(strings.ToLower(strings.TrimSpace(fields[0])))
	switch kind {
	case stable.OracleKindPyth, stable.OracleKindSwitchboardOnDemand, stable.OracleKindDoves:
	default:
		return fmt.Errorf("sample %q: unknown oracle kind %q", raw, fields[0])
	}
	account, err := crypto.ParseAddress(fields[1])
	if err != nil {
		return fmt.Errorf("sample %q: %w", raw, err)
	}
	price, err := stable.ParseOraclePrice(fields[2])
	if err != nil {
		return fmt.Errorf("sample %q: %w", raw, err)
	}
	sample := stable.OracleSample{Kind: kind, Account: account, Price: price, PublishTime: s.now().Unix()}
	if len(fields) > 3 {
		if sample.PublishTime, err = strconv.ParseInt(fields[3], 10, 64); err != nil {
			return fmt.Errorf("sample %q: publish time: %w", raw, err)
		}
	}
	if len(fields) > 4 {
		if sample.Confidence, err = stable.ParseOraclePrice(fields[4]); err != nil {
			return fmt.Errorf("sample %q: confidence: %w", raw, err)
		}
	}
	s.samples = append(s.samples, sample)
	return nil
}

func exchangeBuilder(op stable.Operation) actionBuilder {
	return func(fs *flag.FlagSet) func() (stable.Action, error) {
		vault := addrFlag(fs, "vault", "Collateral mint")
		amount := fs.Uint64("amount", 0, "Input amount in base units")
		minOut := fs.Uint64("min-out", 0, "Minimum acceptable output")
		samples := &sampleFlag{now: time.Now}
		fs.Var(samples, "sample", "Oracle reading kind:account:price[:publishTime[:confidence]], repeatable")
		return func() (stable.Action, error) {
			if err := required(string(op), vault); err != nil {
				return nil, err
			}
			if len(samples.samples) == 0 {
				return nil, fmt.Errorf("%s: at least one -sample is required", op)
			}
			req := stable.ExchangeRequest{Vault: vault.addr, AmountIn: *amount, MinAmountOut: *minOut, Samples: samples.samples}
			if op == stable.OperationMint {
				return stable.Mint{ExchangeRequest: req}, nil
			}
			return stable.Redeem{ExchangeRequest: req}, nil
		}
	}
}

func parseScope(raw string, target *addressFlag) (stable.LimitScope, error) {
	switch scope := stable.LimitScope(strings.ToLower(strings.TrimSpace(raw))); scope {
	case stable.ScopeConfig:
		return scope, nil
	case stable.ScopeVault, stable.ScopeBenefactor:
		if !target.set {
			return "", fmt.Errorf("-target is required for scope %s", scope)
		}
		return scope, nil
	default:
		return "", fmt.Errorf("unknown scope %q", raw)
	}
}

// splitActions breaks "a -x 1 -- b -y 2" into per-action argument lists.
func splitActions(args []string) [][]string {
	var out [][]string
	current := []string{}
	for _, arg := range args {
		if arg == "--" {
			if len(current) > 0 {
				out = append(out, current)
			}
			current = []string{}
			continue
		}
		current = append(current, arg)
	}
	if len(current) > 0 {
		out = append(out, current)
	}
	return out
}

func runBatch(args []string, stdout io.Writer) error {
	groups := splitActions(args)
	if len(groups) == 0 {
		names := make([]string, 0, len(batchActions))
		for name := range batchActions {
			names = append(names, name)
		}
		sort.Strings(names)
		fmt.Fprintf(stdout, "Usage: stablectl batch <action> [flags] [-- <action> [flags]...]\nActions: %s\n", strings.Join(names, ", "))
		return errUsage
	}
	instrs := make([]stable.Instruction, 0, len(groups))
	for i, group := range groups {
		builder, ok := batchActions[group[0]]
		if !ok {
			return fmt.Errorf("action %d: unknown action %q", i, group[0])
		}
		fs := newFlagSet(group[0], stdout)
		build := builder(fs)
		if err := fs.Parse(group[1:]); err != nil {
			return err
		}
		if fs.NArg() > 0 {
			return fmt.Errorf("action %d (%s): unexpected arguments %v", i, group[0], fs.Args())
		}
		action, err := build()
		if err != nil {
			return fmt.Errorf("action %d (%s): %w", i, group[0], err)
		}
		instr, err := stable.NewInstruction(action)
		if err != nil {
			return err
		}
		instrs = append(instrs, instr)
	}
	return printJSON(stdout, map[string]interface{}{"instructions": instrs})
}
