package stable

import (
	"errors"
	"testing"

	"github.com/holiman/uint256"

	"pegvault/crypto"
)

func testAddr(b byte) crypto.Address {
	var a crypto.Address
	a[0] = b
	a[31] = b
	return a
}

func quoteFixture(t *testing.T) (Config, Vault, Benefactor) {
	t.Helper()
	cfg, err := NewConfig(testAddr(1), testAddr(2), testAddr(3), 6)
	if err != nil {
		t.Fatalf("new config: %v", err)
	}
	vault, err := NewVault(cfg, testAddr(10), testAddr(11), testAddr(3), 6)
	if err != nil {
		t.Fatalf("new vault: %v", err)
	}
	benefactor, err := NewBenefactor(testAddr(20), 25, 25)
	if err != nil {
		t.Fatalf("new benefactor: %v", err)
	}
	return cfg, vault, benefactor
}

func TestCeilDiv(t *testing.T) {
	cases := []struct {
		n, d, want uint64
	}{
		{0, 7, 0},
		{1, 7, 1},
		{7, 7, 1},
		{8, 7, 2},
		{25_000_000_000, 10_000, 2_500_000},
	}
	for _, tc := range cases {
		got, err := CeilDiv(uint256.NewInt(tc.n), uint256.NewInt(tc.d))
		if err != nil {
			t.Fatalf("ceilDiv(%d, %d): %v", tc.n, tc.d, err)
		}
		if got.Uint64() != tc.want {
			t.Fatalf("ceilDiv(%d, %d) = %d, want %d", tc.n, tc.d, got.Uint64(), tc.want)
		}
	}
	if _, err := CeilDiv(uint256.NewInt(1), uint256.NewInt(0)); !errors.Is(err, ErrArithmetic) {
		t.Fatalf("expected arithmetic error for zero divisor, got %v", err)
	}
}

func TestFeeAmountBounds(t *testing.T) {
	for _, amount := range []uint64{0, 1, 3, 9_999, 1_000_000_007} {
		for _, rate := range []uint16{0, 1, 25, 5_000, 9_999, 10_000} {
			fee, err := FeeAmount(amount, rate)
			if err != nil {
				t.Fatalf("fee(%d, %d): %v", amount, rate, err)
			}
			if fee > amount {
				t.Fatalf("fee(%d, %d) = %d exceeds amount", amount, rate, fee)
			}
			product := amount * uint64(rate)
			want := product / FeeRateDenominator
			if product%FeeRateDenominator != 0 {
				want++
			}
			if fee != want {
				t.Fatalf("fee(%d, %d) = %d, want %d", amount, rate, fee, want)
			}
		}
	}
	if _, err := FeeAmount(100, 10_001); !errors.Is(err, ErrFeeExceedsAmount) {
		t.Fatalf("expected fee exceeds amount, got %v", err)
	}
}

func TestMintQuoteFullFee(t *testing.T) {
	cfg, vault, benefactor := quoteFixture(t)
	benefactor.MintFeeRate = FeeRateDenominator
	quote, err := GetMintQuote(1_000_000, cfg, benefactor, vault, 100_000_000)
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if quote.FeeAmount != 1_000_000 || quote.NetAmount != 0 {
		t.Fatalf("expected full fee, got fee=%d net=%d", quote.FeeAmount, quote.NetAmount)
	}
	if quote.MintAmount != 0 {
		t.Fatalf("expected zero mint amount, got %d", quote.MintAmount)
	}
}

func TestMintQuoteScenario(t *testing.T) {
	cfg, vault, benefactor := quoteFixture(t)
	quote, err := GetMintQuote(1_000_000_000, cfg, benefactor, vault, 100_000_000)
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	want := MintQuote{
		AmountIn:       1_000_000_000,
		FeeAmount:      2_500_000,
		NetAmount:      997_500_000,
		OracleAmount:   1_000_000_000,
		OneToOneAmount: 997_500_000,
		MintAmount:     997_500_000,
	}
	if quote != want {
		t.Fatalf("unexpected quote: %+v", quote)
	}
}

func TestMintQuoteTakesLowerValuation(t *testing.T) {
	cfg, vault, benefactor := quoteFixture(t)
	for _, price := range []uint64{50_000_000, 99_000_000, 99_750_000, 100_000_000, 101_000_000, 150_000_000} {
		quote, err := GetMintQuote(1_000_000_000, cfg, benefactor, vault, price)
		if err != nil {
			t.Fatalf("quote at %d: %v", price, err)
		}
		want := quote.OracleAmount
		if quote.OneToOneAmount < want {
			want = quote.OneToOneAmount
		}
		if quote.MintAmount != want {
			t.Fatalf("price %d: mint %d is not min(%d, %d)", price, quote.MintAmount, quote.OracleAmount, quote.OneToOneAmount)
		}
	}
	quote, err := GetMintQuote(1_000_000_000, cfg, benefactor, vault, 99_000_000)
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if quote.MintAmount != 990_000_000 {
		t.Fatalf("expected oracle valuation to bind, got %d", quote.MintAmount)
	}
}

func TestMintQuoteDecimalMismatch(t *testing.T) {
	cfg, vault, benefactor := quoteFixture(t)
	cfg.Decimals = 9
	benefactor.MintFeeRate = 0
	quote, err := GetMintQuote(1_000_000, cfg, benefactor, vault, 100_000_000)
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if quote.OracleAmount != 1_000_000_000 || quote.OneToOneAmount != 1_000_000_000 {
		t.Fatalf("unexpected scaling: %+v", quote)
	}

	cfg.Decimals = 6
	vault.Decimals = 9
	quote, err = GetMintQuote(1_000_000_000, cfg, benefactor, vault, 100_000_000)
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if quote.MintAmount != 1_000_000 {
		t.Fatalf("expected 1_000_000, got %d", quote.MintAmount)
	}
}

func TestRedeemQuoteDecimalMismatch(t *testing.T) {
	cfg, vault, benefactor := quoteFixture(t)
	cfg.Decimals = 9
	benefactor.RedeemFeeRate = 0
	quote, err := GetRedeemQuote(1_000_000_000, cfg, benefactor, vault, 100_000_000)
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if quote.OracleAmount != 1_000_000 || quote.RedeemAmount != 1_000_000 {
		t.Fatalf("unexpected scaling: %+v", quote)
	}

	cfg.Decimals = 6
	vault.Decimals = 9
	quote, err = GetRedeemQuote(1_000_000, cfg, benefactor, vault, 100_000_000)
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if quote.OneToOneAmount != 1_000_000_000 || quote.RedeemAmount != 1_000_000_000 {
		t.Fatalf("expected 1_000_000_000, got %+v", quote)
	}
}

func TestQuoteRejectsDecimalsAboveEighteen(t *testing.T) {
	if _, err := Pow10(MaxTokenDecimals); err != nil {
		t.Fatalf("pow10(18): %v", err)
	}
	if _, err := Pow10(MaxTokenDecimals + 1); !errors.Is(err, ErrInvalidDecimals) {
		t.Fatalf("expected invalid decimals, got %v", err)
	}
	cases := map[string]func(*Config, *Vault){
		"stable mint": func(c *Config, _ *Vault) { c.Decimals = 19 },
		"vault mint":  func(_ *Config, v *Vault) { v.Decimals = 19 },
	}
	for name, mutate := range cases {
		cfg, vault, benefactor := quoteFixture(t)
		mutate(&cfg, &vault)
		_, err := GetMintQuote(1_000, cfg, benefactor, vault, 100_000_000)
		if !errors.Is(err, ErrInvalidDecimals) || Kind(err) != "invalid_input" {
			t.Fatalf("%s mint: expected invalid decimals, got %v", name, err)
		}
		_, err = GetRedeemQuote(1_000, cfg, benefactor, vault, 100_000_000)
		if !errors.Is(err, ErrInvalidDecimals) {
			t.Fatalf("%s redeem: expected invalid decimals, got %v", name, err)
		}
	}
}

func TestQuoteOutputOverflow(t *testing.T) {
	cfg, vault, benefactor := quoteFixture(t)
	cfg.Decimals = 18
	vault.Decimals = 0
	benefactor.MintFeeRate = 0
	// 1e6 whole collateral units become 1e24 stable base units.
	_, err := GetMintQuote(1_000_000, cfg, benefactor, vault, 100_000_000)
	if !errors.Is(err, ErrArithmeticOverflow) || Kind(err) != "arithmetic_error" {
		t.Fatalf("expected overflow, got %v", err)
	}
	quote, err := GetMintQuote(18, cfg, benefactor, vault, 100_000_000)
	if err != nil || quote.MintAmount != 18_000_000_000_000_000_000 {
		t.Fatalf("largest whole mint that fits: %+v %v", quote, err)
	}

	cfg.Decimals = 0
	vault.Decimals = 18
	benefactor.RedeemFeeRate = 0
	if _, err := GetRedeemQuote(1_000_000, cfg, benefactor, vault, 100_000_000); !errors.Is(err, ErrArithmeticOverflow) {
		t.Fatalf("expected redeem overflow, got %v", err)
	}
}

func TestTotal128Overflow(t *testing.T) {
	near := new(uint256.Int).SubUint64(maxUint128, 5)
	total, err := NewTotal128(near)
	if err != nil {
		t.Fatalf("new total: %v", err)
	}
	full, err := total.Add(5)
	if err != nil {
		t.Fatalf("add up to the limit: %v", err)
	}
	if !full.Int().Eq(maxUint128) {
		t.Fatalf("expected 2^128-1, got %s", full)
	}
	kept, err := full.Add(1)
	if !errors.Is(err, ErrArithmeticOverflow) {
		t.Fatalf("expected overflow past 2^128-1, got %v", err)
	}
	if !kept.Int().Eq(maxUint128) {
		t.Fatalf("failed add must leave the counter unchanged, got %s", kept)
	}
	wide := new(uint256.Int).AddUint64(maxUint128, 1)
	if _, err := NewTotal128(wide); !errors.Is(err, ErrArithmeticOverflow) {
		t.Fatalf("expected a 129-bit value to be refused, got %v", err)
	}
}

func TestOracleAtPegMatchesOneToOne(t *testing.T) {
	cfg, vault, benefactor := quoteFixture(t)
	benefactor.MintFeeRate = 0
	for _, decimals := range [][2]uint8{{6, 6}, {6, 9}, {9, 6}, {0, 6}, {8, 2}} {
		cfg.Decimals, vault.Decimals = decimals[0], decimals[1]
		for _, amount := range []uint64{1, 999, 1_000_000, 123_456_789} {
			quote, err := GetMintQuote(amount, cfg, benefactor, vault, 100_000_000)
			if err != nil {
				t.Fatalf("quote decimals=%v amount=%d: %v", decimals, amount, err)
			}
			diff := int64(quote.OracleAmount) - int64(quote.OneToOneAmount)
			if diff < -1 || diff > 1 {
				t.Fatalf("decimals=%v amount=%d: oracle %d vs 1:1 %d", decimals, amount, quote.OracleAmount, quote.OneToOneAmount)
			}
		}
	}
}

func TestMintQuoteOracleBounds(t *testing.T) {
	cfg, vault, benefactor := quoteFixture(t)
	_, err := GetMintQuote(1_000, cfg, benefactor, vault, 49_999_999)
	if !errors.Is(err, ErrInvalidInput) || !errors.Is(err, ErrOutOfBounds) {
		t.Fatalf("expected bound error to match both kinds, got %v", err)
	}
	// Mint enforces the minimum only.
	if _, err := GetMintQuote(1_000, cfg, benefactor, vault, 150_000_000); err != nil {
		t.Fatalf("mint above max bound should quote: %v", err)
	}
}

func TestMintQuotePreconditions(t *testing.T) {
	cfg, vault, benefactor := quoteFixture(t)
	if _, err := GetMintQuote(0, cfg, benefactor, vault, 100_000_000); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected invalid input for zero amount, got %v", err)
	}
	if _, err := GetMintQuote(1, cfg, benefactor, vault, 0); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected invalid input for zero oracle, got %v", err)
	}
	cfg.PegPriceUSD = 0
	if _, err := GetMintQuote(1, cfg, benefactor, vault, 100_000_000); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected invalid input for zero peg, got %v", err)
	}
}

func TestRedeemQuoteScenario(t *testing.T) {
	cfg, vault, benefactor := quoteFixture(t)
	quote, err := GetRedeemQuote(1_000_000_000, cfg, benefactor, vault, 100_000_000)
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	want := RedeemQuote{
		AmountIn:       1_000_000_000,
		FeeAmount:      2_500_000,
		NetAmount:      997_500_000,
		OracleAmount:   1_000_000_000,
		OneToOneAmount: 997_500_000,
		RedeemAmount:   997_500_000,
	}
	if quote != want {
		t.Fatalf("unexpected quote: %+v", quote)
	}
}

func TestRedeemQuoteEnforcesBothBounds(t *testing.T) {
	cfg, vault, benefactor := quoteFixture(t)
	if _, err := GetRedeemQuote(1_000, cfg, benefactor, vault, 100_000_001); !errors.Is(err, ErrOutOfBounds) {
		t.Fatalf("expected upper bound violation, got %v", err)
	}
	if _, err := GetRedeemQuote(1_000, cfg, benefactor, vault, 49_000_000); !errors.Is(err, ErrOutOfBounds) {
		t.Fatalf("expected lower bound violation, got %v", err)
	}
	if _, err := GetRedeemQuote(1_000, cfg, benefactor, vault, 100_000_000); err != nil {
		t.Fatalf("price at upper bound should quote: %v", err)
	}
}

func TestRedeemQuoteBelowPegPaysLess(t *testing.T) {
	cfg, vault, benefactor := quoteFixture(t)
	benefactor.RedeemFeeRate = 0
	vault.MinOraclePriceUSD = 9_000
	quote, err := GetRedeemQuote(1_000_000, cfg, benefactor, vault, 95_000_000)
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	// A depegged collateral would pay out more units at oracle price; 1:1 caps it.
	if quote.OracleAmount <= quote.OneToOneAmount || quote.RedeemAmount != quote.OneToOneAmount {
		t.Fatalf("expected 1:1 to cap payout: %+v", quote)
	}
}
