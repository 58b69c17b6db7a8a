package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	genesis "pegvault/config"
	"pegvault/crypto"
	"pegvault/native/stable"
)

const defaultGenesis = "./genesis.toml"

var errUsage = errors.New("usage")

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		usage(stderr)
		return 1
	}
	var err error
	switch args[0] {
	case "peg":
		err = runPeg(args[1:], stdout)
	case "roles":
		err = runRoles(args[1:], stdout)
	case "quote-mint":
		err = runQuote(stable.OperationMint, args[1:], stdout)
	case "quote-redeem":
		err = runQuote(stable.OperationRedeem, args[1:], stdout)
	case "limit-check":
		err = runLimitCheck(args[1:], stdout)
	case "batch":
		err = runBatch(args[1:], stdout)
	case "genesis":
		err = runGenesis(args[1:], stdout)
	case "derive":
		err = runDerive(args[1:], stdout)
	case "help", "-h", "--help":
		usage(stdout)
		return 0
	default:
		usage(stderr)
		return 1
	}
	if errors.Is(err, errUsage) || errors.Is(err, flag.ErrHelp) {
		return 2
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "Usage: stablectl <command> [flags]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  peg           convert between a display peg price and its 4-decimal integer")
	fmt.Fprintln(w, "  roles         render or parse an operator role mask")
	fmt.Fprintln(w, "  quote-mint    quote a mint against a genesis file")
	fmt.Fprintln(w, "  quote-redeem  quote a redeem against a genesis file")
	fmt.Fprintln(w, "  limit-check   check an amount against the period limits of a genesis file")
	fmt.Fprintln(w, "  batch         build instruction JSON for POST /v1/batches")
	fmt.Fprintln(w, "  genesis       write a genesis template")
	fmt.Fprintln(w, "  derive        derive program-owned account addresses")
}

func newFlagSet(name string, out io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(out)
	return fs
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func runPeg(args []string, stdout io.Writer) error {
	fs := newFlagSet("peg", stdout)
	price := fs.String("price", "", "Display price, e.g. 1.0025")
	scaled := fs.Uint64("scaled", 0, "4-decimal integer price, e.g. 10025")
	if err := fs.Parse(args); err != nil {
		return err
	}
	switch {
	case *price != "" && *scaled != 0:
		return fmt.Errorf("pass either -price or -scaled")
	case *price != "":
		parsed, err := stable.ParsePegPrice(*price)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "%d\n", parsed)
	case *scaled != 0:
		if err := stable.ValidatePegPrice(*scaled); err != nil {
			return err
		}
		fmt.Fprintln(stdout, stable.FormatPegPrice(*scaled))
	default:
		fs.Usage()
		return errUsage
	}
	return nil
}

func runRoles(args []string, stdout io.Writer) error {
	fs := newFlagSet("roles", stdout)
	mask := fs.String("mask", "", "Role mask as an integer (0x prefix allowed) or Name|Name form")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*mask) == "" {
		fs.Usage()
		return errUsage
	}
	roles, err := stable.ParseRoleSet(*mask)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "mask: 0x%x\n", uint64(roles))
	fmt.Fprintf(stdout, "roles: %s\n", roles)
	return nil
}

type quoteOutput struct {
	Operation   string      `json:"operation"`
	OraclePrice string      `json:"oraclePrice"`
	PegPrice    string      `json:"pegPrice"`
	Quote       interface{} `json:"quote"`
}

func runQuote(op stable.Operation, args []string, stdout io.Writer) error {
	fs := newFlagSet("quote-"+string(op), stdout)
	genesisPath := fs.String("genesis", defaultGenesis, "Path to the genesis TOML file")
	vaultFlag := fs.String("vault", "", "Collateral mint of the vault")
	benefactorFlag := fs.String("benefactor", "", "Benefactor authority")
	amount := fs.Uint64("amount", 0, "Input amount in base units")
	oracle := fs.String("oracle", "1.00000000", "Oracle price in USD, up to 8 decimals")
	if err := fs.Parse(args); err != nil {
		return err
	}
	st, err := loadState(*genesisPath, time.Now().Unix())
	if err != nil {
		return err
	}
	v, b, err := lookupPair(st, *vaultFlag, *benefactorFlag)
	if err != nil {
		return err
	}
	price, err := stable.ParseOraclePrice(*oracle)
	if err != nil {
		return err
	}
	out := quoteOutput{
		Operation:   string(op),
		OraclePrice: stable.FormatOraclePrice(price),
		PegPrice:    stable.FormatPegPrice(st.Config.PegPriceUSD),
	}
	if op == stable.OperationMint {
		out.Quote, err = stable.GetMintQuote(*amount, st.Config, b, v, price)
	} else {
		out.Quote, err = stable.GetRedeemQuote(*amount, st.Config, b, v, price)
	}
	if err != nil {
		return err
	}
	return printJSON(stdout, out)
}

type limitOutput struct {
	Allowed   bool                         `json:"allowed"`
	Violation *stable.PeriodLimitViolation `json:"violation,omitempty"`
}

func runLimitCheck(args []string, stdout io.Writer) error {
	fs := newFlagSet("limit-check", stdout)
	genesisPath := fs.String("genesis", defaultGenesis, "Path to the genesis TOML file")
	vaultFlag := fs.String("vault", "", "Collateral mint of the vault")
	benefactorFlag := fs.String("benefactor", "", "Benefactor authority")
	opFlag := fs.String("op", "mint", "Operation: mint or redeem")
	amount := fs.Uint64("amount", 0, "Amount in stable base units")
	at := fs.Int64("at", 0, "Unix time to evaluate at (default: now)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	op, err := stable.ParseOperation(*opFlag)
	if err != nil {
		return err
	}
	now := *at
	if now == 0 {
		now = time.Now().Unix()
	}
	st, err := loadState(*genesisPath, now)
	if err != nil {
		return err
	}
	v, b, err := lookupPair(st, *vaultFlag, *benefactorFlag)
	if err != nil {
		return err
	}
	violation, err := stable.FindPeriodLimitViolation(*amount, op, b, st.Config, v, now)
	if err != nil {
		return err
	}
	return printJSON(stdout, limitOutput{Allowed: violation == nil, Violation: violation})
}

func runGenesis(args []string, stdout io.Writer) error {
	fs := newFlagSet("genesis", stdout)
	out := fs.String("out", defaultGenesis, "Output path")
	admin := fs.String("admin", "", "Root operator authority")
	mint := fs.String("mint", "", "Stable asset mint")
	collateral := fs.String("collateral", "", "Collateral mint of the first vault")
	force := fs.Bool("force", false, "Overwrite an existing file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	names := []string{"admin", "mint", "collateral"}
	addrs := make([]crypto.Address, len(names))
	for i, raw := range []string{*admin, *mint, *collateral} {
		parsed, err := crypto.ParseAddress(raw)
		if err != nil {
			return fmt.Errorf("-%s: %w", names[i], err)
		}
		addrs[i] = parsed
	}
	if !*force {
		if _, err := os.Stat(*out); err == nil {
			return fmt.Errorf("genesis file %s already exists (use --force to overwrite)", *out)
		} else if !os.IsNotExist(err) {
			return err
		}
	}
	if err := genesis.Persist(*out, genesis.Template(addrs[0], addrs[1], addrs[2])); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "wrote %s\n", *out)
	return nil
}

func loadState(path string, now int64) (stable.State, error) {
	g, err := genesis.Load(path)
	if err != nil {
		return stable.State{}, err
	}
	return g.Build(now)
}

func lookupPair(st stable.State, vaultRaw, benefactorRaw string) (stable.Vault, stable.Benefactor, error) {
	mint, err := crypto.ParseAddress(vaultRaw)
	if err != nil {
		return stable.Vault{}, stable.Benefactor{}, fmt.Errorf("-vault: %w", err)
	}
	authority, err := crypto.ParseAddress(benefactorRaw)
	if err != nil {
		return stable.Vault{}, stable.Benefactor{}, fmt.Errorf("-benefactor: %w", err)
	}
	v, err := st.Vault(mint)
	if err != nil {
		return stable.Vault{}, stable.Benefactor{}, err
	}
	b, err := st.Benefactor(authority)
	if err != nil {
		return stable.Vault{}, stable.Benefactor{}, err
	}
	return v, b, nil
}

type deriveOutput struct {
	Config     string `json:"config"`
	Authority  string `json:"authority"`
	Vault      string `json:"vault,omitempty"`
	Benefactor string `json:"benefactor,omitempty"`
	Operator   string `json:"operator,omitempty"`
}

func runDerive(args []string, stdout io.Writer) error {
	fs := newFlagSet("derive", stdout)
	program := addrFlag(fs, "program", "Program id owning the accounts")
	vault := addrFlag(fs, "vault", "Collateral mint")
	benefactor := addrFlag(fs, "benefactor", "Benefactor authority")
	operator := addrFlag(fs, "operator", "Operator authority")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if !program.set {
		fs.Usage()
		return errUsage
	}
	d := crypto.NewDeriver(program.addr)
	var out deriveOutput
	cfg, err := d.Config()
	if err != nil {
		return err
	}
	authority, err := d.Authority()
	if err != nil {
		return err
	}
	out.Config, out.Authority = cfg.String(), authority.String()
	derived := []struct {
		flag   *addressFlag
		derive func(crypto.Address) (crypto.Address, error)
		dst    *string
	}{
		{vault, d.Vault, &out.Vault},
		{benefactor, d.Benefactor, &out.Benefactor},
		{operator, d.Operator, &out.Operator},
	}
	for _, entry := range derived {
		if !entry.flag.set {
			continue
		}
		addr, err := entry.derive(entry.flag.addr)
		if err != nil {
			return err
		}
		*entry.dst = addr.String()
	}
	return printJSON(stdout, out)
}
