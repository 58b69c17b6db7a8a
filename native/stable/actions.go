package stable

import (
	"encoding/json"
	"fmt"

	"pegvault/core/events"
	"pegvault/crypto"
)

// Action is one state-mutating instruction. Actions are applied through ApplyBatch.
type Action interface {
	Kind() string
	apply(tx *batchTx) error
}

// batchTx is the working set of a batch being applied.
type batchTx struct {
	st      *State
	signer  crypto.Address
	now     int64
	emitter events.Emitter
	result  *BatchResult
}

func (tx *batchTx) managed(action, target string) {
	tx.emitter.Emit(events.StableManagement{Action: action, Signer: tx.signer, Target: target})
}

func (tx *batchTx) vault(mint crypto.Address) (Vault, error) { return tx.st.Vault(mint) }

func (tx *batchTx) benefactor(authority crypto.Address) (Benefactor, error) {
	return tx.st.Benefactor(authority)
}

func (tx *batchTx) operator(authority crypto.Address) (Operator, error) {
	return tx.st.Operator(authority)
}

// InitConfig creates the global record and a root operator for the signer holding every
// role bit. The protocol starts paused at a 1.0000 peg.
type InitConfig struct {
	Mint         crypto.Address `json:"mint"`
	Authority    crypto.Address `json:"authority"`
	TokenProgram crypto.Address `json:"tokenProgram"`
	Decimals     uint8          `json:"decimals"`
}

func (InitConfig) Kind() string { return "init_config" }

func (a InitConfig) apply(tx *batchTx) error {
	if tx.st.Initialized {
		return ErrAlreadyInitialized
	}
	cfg, err := NewConfig(a.Mint, a.Authority, a.TokenProgram, a.Decimals)
	if err != nil {
		return err
	}
	root, err := NewOperator(tx.signer, AllRoles)
	if err != nil {
		return err
	}
	tx.st.Config = cfg
	tx.st.Operators[root.Authority] = root
	tx.st.Initialized = true
	tx.managed(a.Kind(), a.Mint.String())
	return nil
}

// Pause halts mint and redeem.
type Pause struct{}

func (Pause) Kind() string { return "pause" }

func (a Pause) apply(tx *batchTx) error {
	if err := tx.st.authorize(tx.signer, RoleGlobalDisabler); err != nil {
		return err
	}
	if err := tx.st.Config.Pause(); err != nil {
		return err
	}
	tx.managed(a.Kind(), "config")
	return nil
}

// UpdatePauseFlag sets the mint/redeem flag explicitly.
type UpdatePauseFlag struct {
	MintRedeemEnabled bool `json:"mintRedeemEnabled"`
}

func (UpdatePauseFlag) Kind() string { return "update_pause_flag" }

func (a UpdatePauseFlag) apply(tx *batchTx) error {
	if err := tx.st.authorize(tx.signer, RoleAdmin); err != nil {
		return err
	}
	tx.st.Config.SetMintRedeemEnabled(a.MintRedeemEnabled)
	tx.managed(a.Kind(), "config")
	return nil
}

// SetPegPriceUSD updates the peg at 4 decimals.
type SetPegPriceUSD struct {
	PegPriceUSD uint64 `json:"pegPriceUsd"`
}

func (SetPegPriceUSD) Kind() string { return "set_peg_price_usd" }

func (a SetPegPriceUSD) apply(tx *batchTx) error {
	if err := tx.st.authorize(tx.signer, RolePegManager); err != nil {
		return err
	}
	if err := tx.st.Config.SetPegPriceUSD(a.PegPriceUSD); err != nil {
		return err
	}
	tx.managed(a.Kind(), FormatPegPrice(a.PegPriceUSD))
	return nil
}

// UpdatePeriodLimit sets duration and caps of one slot without touching its counters.
// Target is the vault mint or benefactor authority and is ignored for the config scope.
type UpdatePeriodLimit struct {
	Scope           LimitScope     `json:"scope"`
	Target          crypto.Address `json:"target"`
	Index           int            `json:"index"`
	DurationSeconds uint64         `json:"durationSeconds"`
	MaxMintAmount   uint64         `json:"maxMintAmount"`
	MaxRedeemAmount uint64         `json:"maxRedeemAmount"`
}

func (UpdatePeriodLimit) Kind() string { return "update_period_limit" }

func (a UpdatePeriodLimit) apply(tx *batchTx) error {
	if err := tx.st.authorize(tx.signer, RolePeriodManager); err != nil {
		return err
	}
	err := tx.withLimits(a.Scope, a.Target, func(l *PeriodLimits) error {
		return l.Update(a.Index, a.DurationSeconds, a.MaxMintAmount, a.MaxRedeemAmount)
	})
	if err != nil {
		return err
	}
	tx.managed(a.Kind(), fmt.Sprintf("%s[%d]", a.Scope, a.Index))
	return nil
}

// ResetPeriodLimit zeroes one slot's counters and restarts its window.
type ResetPeriodLimit struct {
	Scope  LimitScope     `json:"scope"`
	Target crypto.Address `json:"target"`
	Index  int            `json:"index"`
}

func (ResetPeriodLimit) Kind() string { return "reset_period_limit" }

func (a ResetPeriodLimit) apply(tx *batchTx) error {
	if err := tx.st.authorize(tx.signer, RolePeriodManager); err != nil {
		return err
	}
	err := tx.withLimits(a.Scope, a.Target, func(l *PeriodLimits) error {
		return l.Reset(a.Index, tx.now)
	})
	if err != nil {
		return err
	}
	tx.managed(a.Kind(), fmt.Sprintf("%s[%d]", a.Scope, a.Index))
	return nil
}

func (tx *batchTx) withLimits(scope LimitScope, target crypto.Address, fn func(*PeriodLimits) error) error {
	switch scope {
	case ScopeConfig:
		return fn(&tx.st.Config.PeriodLimits)
	case ScopeVault:
		v, err := tx.vault(target)
		if err != nil {
			return err
		}
		if err := fn(&v.PeriodLimits); err != nil {
			return err
		}
		tx.st.Vaults[target] = v
		return nil
	case ScopeBenefactor:
		b, err := tx.benefactor(target)
		if err != nil {
			return err
		}
		if err := fn(&b.PeriodLimits); err != nil {
			return err
		}
		tx.st.Benefactors[target] = b
		return nil
	default:
		return fmt.Errorf("%w: limit scope %q", ErrInvalidInput, scope)
	}
}

// CreateVault registers a disabled vault for a collateral mint.
type CreateVault struct {
	Mint         crypto.Address `json:"mint"`
	TokenAccount crypto.Address `json:"tokenAccount"`
	TokenProgram crypto.Address `json:"tokenProgram"`
	Decimals     uint8          `json:"decimals"`
}

func (CreateVault) Kind() string { return "create_vault" }

func (a CreateVault) apply(tx *batchTx) error {
	if err := tx.st.authorize(tx.signer, RoleVaultManager); err != nil {
		return err
	}
	if _, exists := tx.st.Vaults[a.Mint]; exists {
		return fmt.Errorf("%w: vault %s", ErrEntityExists, a.Mint)
	}
	v, err := NewVault(tx.st.Config, a.Mint, a.TokenAccount, a.TokenProgram, a.Decimals)
	if err != nil {
		return err
	}
	tx.st.Vaults[a.Mint] = v
	tx.managed(a.Kind(), a.Mint.String())
	return nil
}

// vaultAction runs fn against a vault after checking role and stores the result.
func (tx *batchTx) vaultAction(kind string, role Role, mint crypto.Address, fn func(*Vault) error) error {
	if err := tx.st.authorize(tx.signer, role); err != nil {
		return err
	}
	v, err := tx.vault(mint)
	if err != nil {
		return err
	}
	if err := fn(&v); err != nil {
		return err
	}
	tx.st.Vaults[mint] = v
	tx.managed(kind, mint.String())
	return nil
}

// DisableVault is the one-way kill switch for a vault.
type DisableVault struct {
	Mint crypto.Address `json:"mint"`
}

func (DisableVault) Kind() string { return "disable_vault" }

func (a DisableVault) apply(tx *batchTx) error {
	return tx.vaultAction(a.Kind(), RoleVaultDisabler, a.Mint, (*Vault).Disable)
}

// SetVaultStatus enables or disables a vault.
type SetVaultStatus struct {
	Mint   crypto.Address `json:"mint"`
	Status VaultStatus    `json:"status"`
}

func (SetVaultStatus) Kind() string { return "set_vault_status" }

func (a SetVaultStatus) apply(tx *batchTx) error {
	return tx.vaultAction(a.Kind(), RoleVaultManager, a.Mint, func(v *Vault) error {
		return v.SetStatus(a.Status)
	})
}

// OracleValue carries an OracleConfig through JSON.
type OracleValue struct {
	OracleConfig
}

// MarshalJSON implements json.Marshaler.
func (o OracleValue) MarshalJSON() ([]byte, error) { return EncodeOracle(o.OracleConfig) }

// UnmarshalJSON implements json.Unmarshaler.
func (o *OracleValue) UnmarshalJSON(data []byte) error {
	cfg, err := DecodeOracle(data)
	if err != nil {
		return err
	}
	o.OracleConfig = cfg
	return nil
}

// UpdateOracle replaces one oracle slot of a vault.
type UpdateOracle struct {
	Mint   crypto.Address `json:"mint"`
	Index  int            `json:"index"`
	Oracle OracleValue    `json:"oracle"`
}

func (UpdateOracle) Kind() string { return "update_oracle" }

func (a UpdateOracle) apply(tx *batchTx) error {
	return tx.vaultAction(a.Kind(), RoleVaultManager, a.Mint, func(v *Vault) error {
		return v.UpdateOracle(a.Index, a.Oracle.OracleConfig)
	})
}

// SetCustodian reassigns a vault's custodian.
type SetCustodian struct {
	Mint      crypto.Address `json:"mint"`
	Custodian crypto.Address `json:"custodian"`
}

func (SetCustodian) Kind() string { return "set_custodian" }

func (a SetCustodian) apply(tx *batchTx) error {
	return tx.vaultAction(a.Kind(), RoleVaultManager, a.Mint, func(v *Vault) error {
		return v.SetCustodian(a.Custodian)
	})
}

// SetStalenessThreshold sets a vault's maximum oracle age.
type SetStalenessThreshold struct {
	Mint    crypto.Address `json:"mint"`
	Seconds uint64         `json:"seconds"`
}

func (SetStalenessThreshold) Kind() string { return "set_staleness_threshold" }

func (a SetStalenessThreshold) apply(tx *batchTx) error {
	return tx.vaultAction(a.Kind(), RoleVaultManager, a.Mint, func(v *Vault) error {
		v.SetStalenessThreshold(a.Seconds)
		return nil
	})
}

// SetMinOraclePrice sets a vault's lower oracle bound at 4 decimals.
type SetMinOraclePrice struct {
	Mint  crypto.Address `json:"mint"`
	Price uint64         `json:"price"`
}

func (SetMinOraclePrice) Kind() string { return "set_min_oracle_price" }

func (a SetMinOraclePrice) apply(tx *batchTx) error {
	return tx.vaultAction(a.Kind(), RoleVaultManager, a.Mint, func(v *Vault) error {
		return v.SetMinOraclePrice(a.Price)
	})
}

// SetMaxOraclePrice sets a vault's upper oracle bound at 4 decimals.
type SetMaxOraclePrice struct {
	Mint  crypto.Address `json:"mint"`
	Price uint64         `json:"price"`
}

func (SetMaxOraclePrice) Kind() string { return "set_max_oracle_price" }

func (a SetMaxOraclePrice) apply(tx *batchTx) error {
	return tx.vaultAction(a.Kind(), RoleVaultManager, a.Mint, func(v *Vault) error {
		return v.SetMaxOraclePrice(a.Price)
	})
}

// WithdrawCollateral moves vault collateral to the custodian.
type WithdrawCollateral struct {
	Mint   crypto.Address `json:"mint"`
	Amount uint64         `json:"amount"`
}

func (WithdrawCollateral) Kind() string { return "withdraw_collateral" }

func (a WithdrawCollateral) apply(tx *batchTx) error {
	return tx.vaultAction(a.Kind(), RoleCollateralManager, a.Mint, func(v *Vault) error {
		return v.Withdraw(a.Amount)
	})
}

// DepositCollateral credits collateral to a vault so it can honour redeems.
type DepositCollateral struct {
	Mint   crypto.Address `json:"mint"`
	Amount uint64         `json:"amount"`
}

func (DepositCollateral) Kind() string { return "deposit_collateral" }

func (a DepositCollateral) apply(tx *batchTx) error {
	return tx.vaultAction(a.Kind(), RoleCollateralManager, a.Mint, func(v *Vault) error {
		return v.Deposit(a.Amount)
	})
}

// CreateBenefactor registers a disabled benefactor.
type CreateBenefactor struct {
	Authority     crypto.Address `json:"authority"`
	MintFeeRate   uint16         `json:"mintFeeRate"`
	RedeemFeeRate uint16         `json:"redeemFeeRate"`
}

func (CreateBenefactor) Kind() string { return "create_benefactor" }

func (a CreateBenefactor) apply(tx *batchTx) error {
	if err := tx.st.authorize(tx.signer, RoleBenefactorManager); err != nil {
		return err
	}
	if _, exists := tx.st.Benefactors[a.Authority]; exists {
		return fmt.Errorf("%w: benefactor %s", ErrEntityExists, a.Authority)
	}
	b, err := NewBenefactor(a.Authority, a.MintFeeRate, a.RedeemFeeRate)
	if err != nil {
		return err
	}
	tx.st.Benefactors[a.Authority] = b
	tx.managed(a.Kind(), a.Authority.String())
	return nil
}

func (tx *batchTx) benefactorAction(kind string, role Role, authority crypto.Address, fn func(*Benefactor) error) error {
	if err := tx.st.authorize(tx.signer, role); err != nil {
		return err
	}
	b, err := tx.benefactor(authority)
	if err != nil {
		return err
	}
	if err := fn(&b); err != nil {
		return err
	}
	tx.st.Benefactors[authority] = b
	tx.managed(kind, authority.String())
	return nil
}

// DisableBenefactor is the one-way kill switch for a benefactor.
type DisableBenefactor struct {
	Authority crypto.Address `json:"authority"`
}

func (DisableBenefactor) Kind() string { return "disable_benefactor" }

func (a DisableBenefactor) apply(tx *batchTx) error {
	return tx.benefactorAction(a.Kind(), RoleBenefactorDisabler, a.Authority, (*Benefactor).Disable)
}

// SetBenefactorStatus activates or disables a benefactor.
type SetBenefactorStatus struct {
	Authority crypto.Address   `json:"authority"`
	Status    BenefactorStatus `json:"status"`
}

func (SetBenefactorStatus) Kind() string { return "set_benefactor_status" }

func (a SetBenefactorStatus) apply(tx *batchTx) error {
	return tx.benefactorAction(a.Kind(), RoleBenefactorManager, a.Authority, func(b *Benefactor) error {
		return b.SetStatus(a.Status)
	})
}

// UpdateFeeRates sets both fee rates of a benefactor.
type UpdateFeeRates struct {
	Authority     crypto.Address `json:"authority"`
	MintFeeRate   uint16         `json:"mintFeeRate"`
	RedeemFeeRate uint16         `json:"redeemFeeRate"`
}

func (UpdateFeeRates) Kind() string { return "update_fee_rates" }

func (a UpdateFeeRates) apply(tx *batchTx) error {
	return tx.benefactorAction(a.Kind(), RoleBenefactorManager, a.Authority, func(b *Benefactor) error {
		return b.UpdateFeeRates(a.MintFeeRate, a.RedeemFeeRate)
	})
}

// Closure describes a deleted record and who received its reclaimed resources.
type Closure struct {
	Kind     string         `json:"kind"`
	Address  crypto.Address `json:"address"`
	Receiver crypto.Address `json:"receiver"`
}

func (tx *batchTx) close(kind string, address, receiver crypto.Address) error {
	if receiver.IsZero() {
		return fmt.Errorf("%w: receiver required", ErrInvalidInput)
	}
	closure := Closure{Kind: kind, Address: address, Receiver: receiver}
	tx.result.Closures = append(tx.result.Closures, closure)
	tx.emitter.Emit(events.StableAccountClosed{Kind: kind, Address: address, Receiver: receiver})
	return nil
}

// DeleteBenefactor removes a benefactor record.
type DeleteBenefactor struct {
	Authority crypto.Address `json:"authority"`
	Receiver  crypto.Address `json:"receiver"`
}

func (DeleteBenefactor) Kind() string { return "delete_benefactor" }

func (a DeleteBenefactor) apply(tx *batchTx) error {
	if err := tx.st.authorize(tx.signer, RoleBenefactorManager); err != nil {
		return err
	}
	if _, err := tx.benefactor(a.Authority); err != nil {
		return err
	}
	if err := tx.close("benefactor", a.Authority, a.Receiver); err != nil {
		return err
	}
	delete(tx.st.Benefactors, a.Authority)
	tx.managed(a.Kind(), a.Authority.String())
	return nil
}

// CreateOperator registers an enabled operator with an initial role set.
type CreateOperator struct {
	Authority crypto.Address `json:"authority"`
	Role      RoleSet        `json:"role"`
}

func (CreateOperator) Kind() string { return "create_operator" }

func (a CreateOperator) apply(tx *batchTx) error {
	if err := tx.st.authorize(tx.signer, RoleAdmin); err != nil {
		return err
	}
	if _, exists := tx.st.Operators[a.Authority]; exists {
		return fmt.Errorf("%w: operator %s", ErrEntityExists, a.Authority)
	}
	o, err := NewOperator(a.Authority, a.Role)
	if err != nil {
		return err
	}
	tx.st.Operators[a.Authority] = o
	tx.managed(a.Kind(), a.Authority.String())
	return nil
}

// DeleteOperator closes another operator's record.
type DeleteOperator struct {
	Authority crypto.Address `json:"authority"`
	Receiver  crypto.Address `json:"receiver"`
}

func (DeleteOperator) Kind() string { return "delete_operator" }

func (a DeleteOperator) apply(tx *batchTx) error {
	if err := tx.st.authorize(tx.signer, RoleAdmin); err != nil {
		return err
	}
	if a.Authority == tx.signer {
		return ErrOperatorCannotDeleteItself
	}
	if _, err := tx.operator(a.Authority); err != nil {
		return err
	}
	if err := tx.close("operator", a.Authority, a.Receiver); err != nil {
		return err
	}
	delete(tx.st.Operators, a.Authority)
	tx.managed(a.Kind(), a.Authority.String())
	return nil
}

func (tx *batchTx) operatorAction(kind string, authority crypto.Address, fn func(*Operator) error) error {
	if err := tx.st.authorize(tx.signer, RoleAdmin); err != nil {
		return err
	}
	o, err := tx.operator(authority)
	if err != nil {
		return err
	}
	if err := fn(&o); err != nil {
		return err
	}
	tx.st.Operators[authority] = o
	tx.managed(kind, authority.String())
	return nil
}

// SetOperatorStatus enables or disables an operator.
type SetOperatorStatus struct {
	Authority crypto.Address `json:"authority"`
	Status    OperatorStatus `json:"status"`
}

func (SetOperatorStatus) Kind() string { return "set_operator_status" }

func (a SetOperatorStatus) apply(tx *batchTx) error {
	return tx.operatorAction(a.Kind(), a.Authority, func(o *Operator) error {
		return o.SetStatus(a.Status)
	})
}

// SetOperatorRole replaces an operator's role set.
type SetOperatorRole struct {
	Authority crypto.Address `json:"authority"`
	Role      RoleSet        `json:"role"`
}

func (SetOperatorRole) Kind() string { return "set_operator_role" }

func (a SetOperatorRole) apply(tx *batchTx) error {
	return tx.operatorAction(a.Kind(), a.Authority, func(o *Operator) error {
		o.SetRole(a.Role)
		return nil
	})
}

// GrantRole adds one role to an operator.
type GrantRole struct {
	Authority crypto.Address `json:"authority"`
	Role      Role           `json:"role"`
}

func (GrantRole) Kind() string { return "grant_role" }

func (a GrantRole) apply(tx *batchTx) error {
	return tx.operatorAction(a.Kind(), a.Authority, func(o *Operator) error {
		return o.GrantRole(a.Role)
	})
}

// RevokeRole removes one role from an operator.
type RevokeRole struct {
	Authority crypto.Address `json:"authority"`
	Role      Role           `json:"role"`
}

func (RevokeRole) Kind() string { return "revoke_role" }

func (a RevokeRole) apply(tx *batchTx) error {
	return tx.operatorAction(a.Kind(), a.Authority, func(o *Operator) error {
		return o.RevokeRole(a.Role)
	})
}

// Mint exchanges collateral for the stable asset. The signer must be the benefactor.
type Mint struct {
	ExchangeRequest
}

func (Mint) Kind() string { return "mint" }

func (a Mint) apply(tx *batchTx) error {
	req := a.ExchangeRequest
	if req.Benefactor.IsZero() {
		req.Benefactor = tx.signer
	}
	if req.Benefactor != tx.signer {
		return fmt.Errorf("%w: signer is not the benefactor", ErrUnauthorized)
	}
	quote, price, err := executeMint(tx.st, req, tx.now)
	if err != nil {
		return err
	}
	tx.result.MintQuotes = append(tx.result.MintQuotes, quote)
	tx.emitter.Emit(events.StableMinted{
		Vault:          req.Vault,
		Benefactor:     req.Benefactor,
		AmountIn:       quote.AmountIn,
		NetAmount:      quote.NetAmount,
		OraclePrice:    price,
		OneToOneAmount: quote.OneToOneAmount,
		OracleAmount:   quote.OracleAmount,
		MintAmount:     quote.MintAmount,
	})
	return nil
}

// Redeem burns the stable asset for collateral. The signer must be the benefactor.
type Redeem struct {
	ExchangeRequest
}

func (Redeem) Kind() string { return "redeem" }

func (a Redeem) apply(tx *batchTx) error {
	req := a.ExchangeRequest
	if req.Benefactor.IsZero() {
		req.Benefactor = tx.signer
	}
	if req.Benefactor != tx.signer {
		return fmt.Errorf("%w: signer is not the benefactor", ErrUnauthorized)
	}
	quote, price, err := executeRedeem(tx.st, req, tx.now)
	if err != nil {
		return err
	}
	tx.result.RedeemQuotes = append(tx.result.RedeemQuotes, quote)
	tx.emitter.Emit(events.StableRedeemed{
		Vault:          req.Vault,
		Benefactor:     req.Benefactor,
		AmountIn:       quote.AmountIn,
		NetAmount:      quote.NetAmount,
		OraclePrice:    price,
		OneToOneAmount: quote.OneToOneAmount,
		OracleAmount:   quote.OracleAmount,
		RedeemAmount:   quote.RedeemAmount,
	})
	return nil
}

var actionFactories = map[string]func() Action{}

func registerAction(factory func() Action) {
	actionFactories[factory().Kind()] = factory
}

func init() {
	registerAction(func() Action { return &InitConfig{} })
	registerAction(func() Action { return &Pause{} })
	registerAction(func() Action { return &UpdatePauseFlag{} })
	registerAction(func() Action { return &SetPegPriceUSD{} })
	registerAction(func() Action { return &UpdatePeriodLimit{} })
	registerAction(func() Action { return &ResetPeriodLimit{} })
	registerAction(func() Action { return &CreateVault{} })
	registerAction(func() Action { return &DisableVault{} })
	registerAction(func() Action { return &SetVaultStatus{} })
	registerAction(func() Action { return &UpdateOracle{} })
	registerAction(func() Action { return &SetCustodian{} })
	registerAction(func() Action { return &SetStalenessThreshold{} })
	registerAction(func() Action { return &SetMinOraclePrice{} })
	registerAction(func() Action { return &SetMaxOraclePrice{} })
	registerAction(func() Action { return &WithdrawCollateral{} })
	registerAction(func() Action { return &DepositCollateral{} })
	registerAction(func() Action { return &CreateBenefactor{} })
	registerAction(func() Action { return &DisableBenefactor{} })
	registerAction(func() Action { return &SetBenefactorStatus{} })
	registerAction(func() Action { return &UpdateFeeRates{} })
	registerAction(func() Action { return &DeleteBenefactor{} })
	registerAction(func() Action { return &CreateOperator{} })
	registerAction(func() Action { return &DeleteOperator{} })
	registerAction(func() Action { return &SetOperatorStatus{} })
	registerAction(func() Action { return &SetOperatorRole{} })
	registerAction(func() Action { return &GrantRole{} })
	registerAction(func() Action { return &RevokeRole{} })
	registerAction(func() Action { return &Mint{} })
	registerAction(func() Action { return &Redeem{} })
}

// Instruction is the tagged wire form of an Action.
type Instruction struct {
	Kind    string          `json:"kind"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewInstruction wraps an action for transport.
func NewInstruction(a Action) (Instruction, error) {
	if a == nil {
		return Instruction{}, fmt.Errorf("%w: nil action", ErrUnknownInstruction)
	}
	payload, err := json.Marshal(a)
	if err != nil {
		return Instruction{}, fmt.Errorf("encode %s: %w", a.Kind(), err)
	}
	return Instruction{Kind: a.Kind(), Payload: payload}, nil
}

// Decode resolves the instruction to its Action.
func (i Instruction) Decode() (Action, error) {
	factory, ok := actionFactories[i.Kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownInstruction, i.Kind)
	}
	action := factory()
	if len(i.Payload) > 0 {
		if err := json.Unmarshal(i.Payload, action); err != nil {
			return nil, fmt.Errorf("%w: decode %s: %v", ErrInvalidInput, i.Kind, err)
		}
	}
	return derefAction(action), nil
}

// derefAction returns the value form of a decoded action so callers can type switch on
// the same types they construct.
func derefAction(a Action) Action {
	switch v := a.(type) {
	case *InitConfig:
		return *v
	case *Pause:
		return *v
	case *UpdatePauseFlag:
		return *v
	case *SetPegPriceUSD:
		return *v
	case *UpdatePeriodLimit:
		return *v
	case *ResetPeriodLimit:
		return *v
	case *CreateVault:
		return *v
	case *DisableVault:
		return *v
	case *SetVaultStatus:
		return *v
	case *UpdateOracle:
		return *v
	case *SetCustodian:
		return *v
	case *SetStalenessThreshold:
		return *v
	case *SetMinOraclePrice:
		return *v
	case *SetMaxOraclePrice:
		return *v
	case *WithdrawCollateral:
		return *v
	case *DepositCollateral:
		return *v
	case *CreateBenefactor:
		return *v
	case *DisableBenefactor:
		return *v
	case *SetBenefactorStatus:
		return *v
	case *UpdateFeeRates:
		return *v
	case *DeleteBenefactor:
		return *v
	case *CreateOperator:
		return *v
	case *DeleteOperator:
		return *v
	case *SetOperatorStatus:
		return *v
	case *SetOperatorRole:
		return *v
	case *GrantRole:
		return *v
	case *RevokeRole:
		return *v
	case *Mint:
		return *v
	case *Redeem:
		return *v
	default:
		return a
	}
}
