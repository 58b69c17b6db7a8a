package stable

import (
	"errors"
	"reflect"
	"testing"

	"pegvault/core/events"
	"pegvault/crypto"
)

var (
	testAdmin      = testAddr(100)
	testCollateral = testAddr(10)
	testBenefactor = testAddr(20)
	testDoves      = testAddr(41)
)

func mustApply(t *testing.T, st State, signer crypto.Address, actions ...Action) (State, BatchResult) {
	t.Helper()
	next, result, err := ApplyBatch(st, signer, actions, testNow)
	if err != nil {
		t.Fatalf("apply batch: %v", err)
	}
	return next, result
}

// liveState returns an initialised, unpaused protocol with one enabled vault holding
// collateral and one active benefactor.
func liveState(t *testing.T) State {
	t.Helper()
	st, _ := mustApply(t, NewState(), testAdmin,
		InitConfig{Mint: testAddr(1), Authority: testAddr(2), TokenProgram: testAddr(3), Decimals: 6},
		CreateVault{Mint: testCollateral, TokenAccount: testAddr(11), TokenProgram: testAddr(3), Decimals: 6},
		SetCustodian{Mint: testCollateral, Custodian: testAddr(50)},
		UpdateOracle{Mint: testCollateral, Index: 0, Oracle: OracleValue{DovesOracle{Account: testDoves}}},
		SetVaultStatus{Mint: testCollateral, Status: VaultEnabled},
		CreateBenefactor{Authority: testBenefactor, MintFeeRate: 25, RedeemFeeRate: 25},
		SetBenefactorStatus{Authority: testBenefactor, Status: BenefactorActive},
		DepositCollateral{Mint: testCollateral, Amount: 5_000_000_000},
		UpdatePauseFlag{MintRedeemEnabled: true},
	)
	return st
}

// dovesAt is a fresh sample from the vault's only configured feed.
func dovesAt(price uint64) []OracleSample {
	return []OracleSample{{Kind: OracleKindDoves, Account: testDoves, Price: price, PublishTime: testNow}}
}

func mintAt(amount, price uint64) Mint {
	return Mint{ExchangeRequest{Vault: testCollateral, AmountIn: amount, Samples: dovesAt(price)}}
}

func redeemAt(amount, price uint64) Redeem {
	return Redeem{ExchangeRequest{Vault: testCollateral, AmountIn: amount, Samples: dovesAt(price)}}
}

func TestInitConfigCreatesRootOperator(t *testing.T) {
	st, result := mustApply(t, NewState(), testAdmin,
		InitConfig{Mint: testAddr(1), Authority: testAddr(2), TokenProgram: testAddr(3), Decimals: 6})
	if !st.Initialized || !st.Config.Paused() || st.Config.PegPriceUSD != DefaultPegPriceUSD {
		t.Fatalf("unexpected config after init: %+v", st.Config)
	}
	root, err := st.Operator(testAdmin)
	if err != nil {
		t.Fatalf("root operator: %v", err)
	}
	if root.Role != AllRoles || root.Status != OperatorEnabled {
		t.Fatalf("unexpected root operator: %+v", root)
	}
	if len(result.Events) != 1 || result.Events[0].EventType() != events.TypeStableManagement {
		t.Fatalf("expected one management event, got %+v", result.Events)
	}
	_, _, err = ApplyBatch(st, testAdmin, []Action{InitConfig{Mint: testAddr(1)}}, testNow)
	if !errors.Is(err, ErrAlreadyInitialized) {
		t.Fatalf("expected already initialised, got %v", err)
	}
}

func TestApplyBatchRejectsBeforeInit(t *testing.T) {
	if _, _, err := ApplyBatch(NewState(), testAdmin, nil, testNow); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected invalid input for empty batch, got %v", err)
	}
	_, _, err := ApplyBatch(NewState(), testAdmin, []Action{CreateVault{Mint: testCollateral}}, testNow)
	if !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected not initialised, got %v", err)
	}
}

func TestApplyBatchIsAtomic(t *testing.T) {
	st := liveState(t)
	_, _, err := ApplyBatch(st, testAdmin, []Action{
		UpdatePauseFlag{MintRedeemEnabled: false},
		DepositCollateral{Mint: testCollateral, Amount: 1},
		SetPegPriceUSD{PegPriceUSD: 20_000},
	}, testNow)
	var batchErr *BatchError
	if !errors.As(err, &batchErr) {
		t.Fatalf("expected batch error, got %v", err)
	}
	if batchErr.Index != 2 || batchErr.Kind != "set_peg_price_usd" || !errors.Is(err, ErrOutOfBounds) {
		t.Fatalf("unexpected batch error: %+v", batchErr)
	}
	if st.Config.Paused() {
		t.Fatalf("failed batch must not pause the protocol")
	}
	if st.Vaults[testCollateral].Balance != 5_000_000_000 {
		t.Fatalf("failed batch must not change balances, got %d", st.Vaults[testCollateral].Balance)
	}
}

func TestBatchAuthorization(t *testing.T) {
	st := liveState(t)
	if _, _, err := ApplyBatch(st, testAddr(77), []Action{Pause{}}, testNow); !errors.Is(err, ErrUnknownOperator) {
		t.Fatalf("expected unknown operator, got %v", err)
	}
	st, _ = mustApply(t, st, testAdmin, CreateOperator{Authority: testAddr(60), Role: NewRoleSet(RoleVaultManager)})
	if _, _, err := ApplyBatch(st, testAddr(60), []Action{Pause{}}, testNow); !errors.Is(err, ErrMissingRole) {
		t.Fatalf("expected missing role, got %v", err)
	}
	st, _ = mustApply(t, st, testAdmin, GrantRole{Authority: testAddr(60), Role: RoleGlobalDisabler})
	st, _ = mustApply(t, st, testAddr(60), Pause{})
	if !st.Config.Paused() {
		t.Fatalf("pause did not apply")
	}
	if _, _, err := ApplyBatch(st, testAddr(60), []Action{Pause{}}, testNow); !errors.Is(err, ErrProtocolPaused) {
		t.Fatalf("expected pausing twice to fail, got %v", err)
	}
	if _, _, err := ApplyBatch(st, testAdmin, []Action{DeleteOperator{Authority: testAdmin, Receiver: testAddr(9)}}, testNow); !errors.Is(err, ErrOperatorCannotDeleteItself) {
		t.Fatalf("expected self delete rejection, got %v", err)
	}
	st, result := mustApply(t, st, testAdmin, DeleteOperator{Authority: testAddr(60), Receiver: testAddr(9)})
	if _, ok := st.Operators[testAddr(60)]; ok {
		t.Fatalf("operator not deleted")
	}
	if len(result.Closures) != 1 || result.Closures[0].Receiver != testAddr(9) || result.Closures[0].Kind != "operator" {
		t.Fatalf("unexpected closures: %+v", result.Closures)
	}
}

func TestMintAndRedeemLifecycle(t *testing.T) {
	st := liveState(t)
	st, result := mustApply(t, st, testBenefactor, mintAt(1_000_000_000, 100_000_000))
	if len(result.MintQuotes) != 1 || result.MintQuotes[0].MintAmount != 997_500_000 {
		t.Fatalf("unexpected mint quotes: %+v", result.MintQuotes)
	}
	vault := st.Vaults[testCollateral]
	if vault.CustodianBalance != 1_000_000_000 || vault.Balance != 5_000_000_000 {
		t.Fatalf("mint collateral should go to the custodian: %+v", vault)
	}
	if vault.TotalMinted.String() != "997500000" || st.Benefactors[testBenefactor].TotalMinted.String() != "997500000" {
		t.Fatalf("totals not recorded: vault %s benefactor %s", vault.TotalMinted, st.Benefactors[testBenefactor].TotalMinted)
	}
	flat := events.Flatten(result.Events)
	if len(flat) != 1 || flat[0].Type != events.TypeStableMinted {
		t.Fatalf("expected minted event, got %+v", flat)
	}
	if flat[0].Attr("mintAmount") != "997500000" || flat[0].Attr("benefactor") != testBenefactor.String() {
		t.Fatalf("unexpected minted attributes: %v", flat[0].Attributes)
	}

	st, result = mustApply(t, st, testBenefactor, redeemAt(1_000_000_000, 100_000_000))
	if len(result.RedeemQuotes) != 1 || result.RedeemQuotes[0].RedeemAmount != 997_500_000 {
		t.Fatalf("unexpected redeem quotes: %+v", result.RedeemQuotes)
	}
	vault = st.Vaults[testCollateral]
	if vault.Balance != 4_002_500_000 {
		t.Fatalf("redeem should pay from the vault balance, got %d", vault.Balance)
	}
	if vault.TotalRedeemed.String() != "997500000" {
		t.Fatalf("redeem total should record the net amount, got %s", vault.TotalRedeemed)
	}
}

func TestMintUsesAggregatedSamples(t *testing.T) {
	st := liveState(t)
	mint := mintAt(1_000_000_000, 0)
	mint.Samples = []OracleSample{{Kind: OracleKindDoves, Account: testDoves, Price: 99_000_000, PublishTime: testNow - 5}}
	_, result := mustApply(t, st, testBenefactor, mint)
	if result.MintQuotes[0].MintAmount != 990_000_000 {
		t.Fatalf("expected oracle valuation from samples, got %d", result.MintQuotes[0].MintAmount)
	}
	mint.Samples[0].PublishTime = testNow - DefaultStalenessThreshold - 1
	if _, _, err := ApplyBatch(st, testBenefactor, []Action{mint}, testNow); !errors.Is(err, ErrBadOracle) {
		t.Fatalf("expected stale sample rejection, got %v", err)
	}
}

func TestCallerPriceCannotReplaceConfiguredOracles(t *testing.T) {
	st := liveState(t)
	sampled := mintAt(1_000_000_000, 95_000_000)
	_, result := mustApply(t, st, testBenefactor, sampled)
	if got := result.MintQuotes[0].MintAmount; got != 950_000_000 {
		t.Fatalf("expected the depegged feed to cap the mint, got %d", got)
	}

	bare := Mint{ExchangeRequest{Vault: testCollateral, AmountIn: 1_000_000_000, OraclePriceUSD: 100_000_000}}
	_, _, err := ApplyBatch(st, testBenefactor, []Action{bare}, testNow)
	if !errors.Is(err, ErrMissingOracleSample) || Kind(err) != "invalid_input" {
		t.Fatalf("expected a caller-supplied price to be refused, got %v", err)
	}
	redeem := Redeem{ExchangeRequest{Vault: testCollateral, Benefactor: testBenefactor, AmountIn: 1_000_000, OraclePriceUSD: 100_000_000}}
	if _, _, err := PreviewRedeem(st, redeem.ExchangeRequest, testNow); !errors.Is(err, ErrMissingOracleSample) {
		t.Fatalf("expected previews to refuse a caller-supplied price, got %v", err)
	}

	// Samples win over a conflicting caller price.
	sampled.OraclePriceUSD = 100_000_000
	_, result = mustApply(t, st, testBenefactor, sampled)
	if got := result.MintQuotes[0].MintAmount; got != 950_000_000 {
		t.Fatalf("caller price must not override samples, got %d", got)
	}
}

func TestExchangePreconditions(t *testing.T) {
	st := liveState(t)
	cases := map[string]struct {
		signer crypto.Address
		prep   []Action
		action Action
		want   error
	}{
		"foreign benefactor": {
			signer: testAdmin,
			action: Mint{ExchangeRequest{Vault: testCollateral, Benefactor: testBenefactor, AmountIn: 1_000, Samples: dovesAt(100_000_000)}},
			want:   ErrUnauthorized,
		},
		"paused": {
			signer: testBenefactor,
			prep:   []Action{Pause{}},
			action: mintAt(1_000, 100_000_000),
			want:   ErrProtocolPaused,
		},
		"vault disabled": {
			signer: testBenefactor,
			prep:   []Action{DisableVault{Mint: testCollateral}},
			action: redeemAt(1_000, 100_000_000),
			want:   ErrVaultDisabled,
		},
		"benefactor disabled": {
			signer: testBenefactor,
			prep:   []Action{DisableBenefactor{Authority: testBenefactor}},
			action: mintAt(1_000, 100_000_000),
			want:   ErrBenefactorDisabled,
		},
		"slippage": {
			signer: testBenefactor,
			action: Mint{ExchangeRequest{Vault: testCollateral, AmountIn: 1_000_000_000, MinAmountOut: 997_500_001, Samples: dovesAt(100_000_000)}},
			want:   ErrSlippageExceeded,
		},
		"vault dry": {
			signer: testBenefactor,
			prep:   []Action{WithdrawCollateral{Mint: testCollateral, Amount: 4_999_999_000}},
			action: redeemAt(2_000_000, 100_000_000),
			want:   ErrVaultDry,
		},
		"redeem above max bound": {
			signer: testBenefactor,
			action: redeemAt(1_000, 100_000_001),
			want:   ErrOraclePriceOutOfBounds,
		},
		"benefactor limit": {
			signer: testBenefactor,
			prep: []Action{UpdatePeriodLimit{
				Scope: ScopeBenefactor, Target: testBenefactor, Index: 0,
				DurationSeconds: 3600, MaxMintAmount: 500_000_000, MaxRedeemAmount: 500_000_000,
			}},
			action: mintAt(1_000_000_000, 100_000_000),
			want:   ErrPeriodLimitExceeded,
		},
	}
	for name, tc := range cases {
		working := st
		if len(tc.prep) > 0 {
			working, _ = mustApply(t, st, testAdmin, tc.prep...)
		}
		_, _, err := ApplyBatch(working, tc.signer, []Action{tc.action}, testNow)
		if !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", name, tc.want, err)
		}
	}
}

func TestPeriodLimitViolationSurfacesThroughBatch(t *testing.T) {
	st, _ := mustApply(t, liveState(t), testAdmin, UpdatePeriodLimit{
		Scope: ScopeVault, Target: testCollateral, Index: 1,
		DurationSeconds: 60, MaxMintAmount: 1_000_000_000, MaxRedeemAmount: 1,
	})
	st, _ = mustApply(t, st, testBenefactor, mintAt(1_000_000_000, 100_000_000))
	_, _, err := ApplyBatch(st, testBenefactor, []Action{mintAt(3_000_000, 100_000_000)}, testNow+30)
	var violation *PeriodLimitViolation
	if !errors.As(err, &violation) {
		t.Fatalf("expected violation, got %v", err)
	}
	if violation.Scope != ScopeVault || violation.Index != 1 || violation.RemainingAmount != 2_500_000 {
		t.Fatalf("unexpected violation: %+v", violation)
	}
	// The window rolls over once the duration has elapsed.
	if _, _, err := ApplyBatch(st, testBenefactor, []Action{mintAt(10_000, 100_000_000)}, testNow+60); err != nil {
		t.Fatalf("mint after window expiry: %v", err)
	}
	st, _ = mustApply(t, st, testAdmin, ResetPeriodLimit{Scope: ScopeVault, Target: testCollateral, Index: 1})
	if st.Vaults[testCollateral].PeriodLimits[1].MintedAmount != 0 {
		t.Fatalf("reset did not clear counters")
	}
}

func TestDeleteBenefactorRecordsClosure(t *testing.T) {
	st := liveState(t)
	if _, _, err := ApplyBatch(st, testAdmin, []Action{DeleteBenefactor{Authority: testBenefactor}}, testNow); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected receiver requirement, got %v", err)
	}
	st, result := mustApply(t, st, testAdmin, DeleteBenefactor{Authority: testBenefactor, Receiver: testAddr(9)})
	if _, ok := st.Benefactors[testBenefactor]; ok {
		t.Fatalf("benefactor still present")
	}
	if len(result.Closures) != 1 || result.Closures[0].Kind != "benefactor" {
		t.Fatalf("unexpected closures: %+v", result.Closures)
	}
	flat := events.Flatten(result.Events)
	if len(flat) != 2 || flat[0].Type != events.TypeStableAccountClosed {
		t.Fatalf("unexpected events: %+v", flat)
	}
}

func TestInstructionRoundTrip(t *testing.T) {
	var feed [32]byte
	feed[5] = 7
	actions := []Action{
		UpdateOracle{Mint: testCollateral, Index: 2, Oracle: OracleValue{PythOracle{FeedID: feed, Account: testAddr(40)}}},
		CreateOperator{Authority: testAddr(60), Role: NewRoleSet(RolePegManager, RoleVaultDisabler)},
		UpdatePeriodLimit{Scope: ScopeConfig, Index: 3, DurationSeconds: 86_400, MaxMintAmount: 9, MaxRedeemAmount: 8},
		SetVaultStatus{Mint: testCollateral, Status: VaultEnabled},
		Mint{ExchangeRequest{Vault: testCollateral, AmountIn: 12, MinAmountOut: 10, OraclePriceUSD: 100_000_000}},
		Pause{},
	}
	for _, action := range actions {
		instr, err := NewInstruction(action)
		if err != nil {
			t.Fatalf("encode %s: %v", action.Kind(), err)
		}
		decoded, err := instr.Decode()
		if err != nil {
			t.Fatalf("decode %s: %v", action.Kind(), err)
		}
		if !reflect.DeepEqual(decoded, action) {
			t.Fatalf("%s round trip mismatch:\n got %#v\nwant %#v", action.Kind(), decoded, action)
		}
	}
	if _, err := (Instruction{Kind: "burn_everything"}).Decode(); !errors.Is(err, ErrUnknownInstruction) {
		t.Fatalf("expected unknown instruction, got %v", err)
	}
}

func TestApplyInstructions(t *testing.T) {
	st := liveState(t)
	instr, err := NewInstruction(SetPegPriceUSD{PegPriceUSD: 10_025})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	next, _, err := ApplyInstructions(st, testAdmin, []Instruction{instr}, testNow)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if next.Config.PegPriceUSD != 10_025 {
		t.Fatalf("peg not updated: %d", next.Config.PegPriceUSD)
	}
	_, _, err = ApplyInstructions(st, testAdmin, []Instruction{instr, {Kind: "nope"}}, testNow)
	var batchErr *BatchError
	if !errors.As(err, &batchErr) || batchErr.Index != 1 {
		t.Fatalf("expected decode failure at index 1, got %v", err)
	}
}

func TestPreviewLeavesStateUntouched(t *testing.T) {
	st := liveState(t)
	req := ExchangeRequest{Vault: testCollateral, Benefactor: testBenefactor, AmountIn: 1_000_000_000}
	req.Samples = []OracleSample{{Kind: OracleKindDoves, Account: testDoves, Price: 99_000_000, PublishTime: testNow}}
	quote, price, err := PreviewMint(st, req, testNow)
	if err != nil {
		t.Fatalf("preview mint: %v", err)
	}
	if quote.MintAmount != 990_000_000 || price != 99_000_000 {
		t.Fatalf("unexpected preview: %+v at %d", quote, price)
	}
	if st.Vaults[testCollateral].CustodianBalance != 0 || st.Vaults[testCollateral].PeriodLimits != (PeriodLimits{}) {
		t.Fatalf("preview must not record: %+v", st.Vaults[testCollateral])
	}
	req.Samples = dovesAt(100_000_000)
	req.AmountIn = 6_000_000_000
	if _, _, err := PreviewRedeem(st, req, testNow); !errors.Is(err, ErrVaultDry) {
		t.Fatalf("expected dry vault from preview, got %v", err)
	}
}
