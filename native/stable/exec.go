package stable

import (
	"fmt"

	"pegvault/crypto"
)

// ExchangeRequest describes a mint or redeem. A vault with configured oracles is priced
// only from Samples; OraclePriceUSD is honoured solely for vaults without any oracle.
type ExchangeRequest struct {
	Vault          crypto.Address `json:"vault"`
	Benefactor     crypto.Address `json:"benefactor"`
	AmountIn       uint64         `json:"amountIn"`
	MinAmountOut   uint64         `json:"minAmountOut"`
	OraclePriceUSD uint64         `json:"oraclePriceUsd,omitempty"`
	Samples        []OracleSample `json:"samples,omitempty"`
}

type exchangeContext struct {
	vault      Vault
	benefactor Benefactor
	price      uint64
}

func (s State) prepareExchange(req ExchangeRequest, now int64) (exchangeContext, error) {
	if !s.Initialized {
		return exchangeContext{}, ErrNotInitialized
	}
	if s.Config.Paused() {
		return exchangeContext{}, ErrProtocolPaused
	}
	v, err := s.Vault(req.Vault)
	if err != nil {
		return exchangeContext{}, err
	}
	if !v.Enabled() {
		return exchangeContext{}, fmt.Errorf("%w: %s", ErrVaultDisabled, req.Vault)
	}
	b, err := s.Benefactor(req.Benefactor)
	if err != nil {
		return exchangeContext{}, err
	}
	if !b.Active() {
		return exchangeContext{}, fmt.Errorf("%w: %s", ErrBenefactorDisabled, req.Benefactor)
	}
	price := req.OraclePriceUSD
	switch {
	case len(req.Samples) > 0:
		price, err = AggregateOraclePrice(v, req.Samples, now)
		if err != nil {
			return exchangeContext{}, err
		}
	case v.Oracles.HasOracle():
		return exchangeContext{}, fmt.Errorf("%w: vault %s is priced from its configured oracles", ErrMissingOracleSample, req.Vault)
	}
	return exchangeContext{vault: v, benefactor: b, price: price}, nil
}

// recordAll rolls and records amount on every scope. Config is only written back once
// every counter has been updated; the vault and benefactor are returned to the caller.
func (s *State) recordAll(op Operation, amount uint64, ctx exchangeContext, now int64) (Vault, Benefactor, error) {
	cfg, v, b := s.Config, ctx.vault, ctx.benefactor
	if err := cfg.PeriodLimits.Record(op, amount, now); err != nil {
		return Vault{}, Benefactor{}, err
	}
	if err := v.PeriodLimits.Record(op, amount, now); err != nil {
		return Vault{}, Benefactor{}, err
	}
	if err := b.PeriodLimits.Record(op, amount, now); err != nil {
		return Vault{}, Benefactor{}, err
	}
	var err error
	if op == OperationMint {
		if v.TotalMinted, err = v.TotalMinted.Add(amount); err != nil {
			return Vault{}, Benefactor{}, err
		}
		if b.TotalMinted, err = b.TotalMinted.Add(amount); err != nil {
			return Vault{}, Benefactor{}, err
		}
	} else {
		if v.TotalRedeemed, err = v.TotalRedeemed.Add(amount); err != nil {
			return Vault{}, Benefactor{}, err
		}
		if b.TotalRedeemed, err = b.TotalRedeemed.Add(amount); err != nil {
			return Vault{}, Benefactor{}, err
		}
	}
	s.Config = cfg
	return v, b, nil
}

// ExecuteMint quotes, limit-checks and records a mint. The state is only modified when
// every check passes.
func ExecuteMint(st *State, req ExchangeRequest, now int64) (MintQuote, error) {
	quote, _, err := executeMint(st, req, now)
	return quote, err
}

func executeMint(st *State, req ExchangeRequest, now int64) (MintQuote, uint64, error) {
	ctx, err := st.prepareExchange(req, now)
	if err != nil {
		return MintQuote{}, 0, err
	}
	quote, err := GetMintQuote(req.AmountIn, st.Config, ctx.benefactor, ctx.vault, ctx.price)
	if err != nil {
		return MintQuote{}, 0, err
	}
	if quote.MintAmount == 0 {
		return MintQuote{}, 0, fmt.Errorf("%w: mint amount rounds to zero", ErrZeroAmount)
	}
	violation, err := FindPeriodLimitViolation(quote.MintAmount, OperationMint, ctx.benefactor, st.Config, ctx.vault, now)
	if err != nil {
		return MintQuote{}, 0, err
	}
	if violation != nil {
		return MintQuote{}, 0, violation
	}
	if quote.MintAmount < req.MinAmountOut {
		return MintQuote{}, 0, fmt.Errorf("%w: %d < %d", ErrSlippageExceeded, quote.MintAmount, req.MinAmountOut)
	}
	custodian, err := checkedAdd(ctx.vault.CustodianBalance, req.AmountIn)
	if err != nil {
		return MintQuote{}, 0, err
	}
	v, b, err := st.recordAll(OperationMint, quote.MintAmount, ctx, now)
	if err != nil {
		return MintQuote{}, 0, err
	}
	v.CustodianBalance = custodian
	st.Vaults[v.Mint] = v
	st.Benefactors[b.Authority] = b
	return quote, ctx.price, nil
}

// ExecuteRedeem quotes, limit-checks and records a redeem. Limits are evaluated on the
// net burn amount; the vault must hold the collateral being paid out.
func ExecuteRedeem(st *State, req ExchangeRequest, now int64) (RedeemQuote, error) {
	quote, _, err := executeRedeem(st, req, now)
	return quote, err
}

func executeRedeem(st *State, req ExchangeRequest, now int64) (RedeemQuote, uint64, error) {
	ctx, err := st.prepareExchange(req, now)
	if err != nil {
		return RedeemQuote{}, 0, err
	}
	quote, err := GetRedeemQuote(req.AmountIn, st.Config, ctx.benefactor, ctx.vault, ctx.price)
	if err != nil {
		return RedeemQuote{}, 0, err
	}
	if quote.NetAmount == 0 {
		return RedeemQuote{}, 0, fmt.Errorf("%w: net redeem amount is zero", ErrZeroAmount)
	}
	violation, err := FindPeriodLimitViolation(quote.NetAmount, OperationRedeem, ctx.benefactor, st.Config, ctx.vault, now)
	if err != nil {
		return RedeemQuote{}, 0, err
	}
	if violation != nil {
		return RedeemQuote{}, 0, violation
	}
	if quote.RedeemAmount == 0 {
		return RedeemQuote{}, 0, fmt.Errorf("%w: redeem amount rounds to zero", ErrZeroAmount)
	}
	if quote.RedeemAmount < req.MinAmountOut {
		return RedeemQuote{}, 0, fmt.Errorf("%w: %d < %d", ErrSlippageExceeded, quote.RedeemAmount, req.MinAmountOut)
	}
	if ctx.vault.Balance < quote.RedeemAmount {
		return RedeemQuote{}, 0, fmt.Errorf("%w: balance %d, owed %d", ErrVaultDry, ctx.vault.Balance, quote.RedeemAmount)
	}
	v, b, err := st.recordAll(OperationRedeem, quote.NetAmount, ctx, now)
	if err != nil {
		return RedeemQuote{}, 0, err
	}
	v.Balance -= quote.RedeemAmount
	st.Vaults[v.Mint] = v
	st.Benefactors[b.Authority] = b
	return quote, ctx.price, nil
}

// PreviewMint returns the quote ExecuteMint would produce without recording anything.
// The oracle price the quote was computed at is returned alongside.
func PreviewMint(st State, req ExchangeRequest, now int64) (MintQuote, uint64, error) {
	working := st.Clone()
	return executeMint(&working, req, now)
}

// PreviewRedeem is the redeem counterpart of PreviewMint.
func PreviewRedeem(st State, req ExchangeRequest, now int64) (RedeemQuote, uint64, error) {
	working := st.Clone()
	return executeRedeem(&working, req, now)
}
