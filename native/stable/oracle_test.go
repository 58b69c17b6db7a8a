package stable

import (
	"encoding/json"
	"errors"
	"testing"
)

func oracleVault(t *testing.T) Vault {
	t.Helper()
	_, vault, _ := quoteFixture(t)
	var feed [32]byte
	feed[0] = 0xaa
	if err := vault.UpdateOracle(0, PythOracle{FeedID: feed, Account: testAddr(40)}); err != nil {
		t.Fatalf("update oracle: %v", err)
	}
	if err := vault.UpdateOracle(3, DovesOracle{Account: testAddr(41)}); err != nil {
		t.Fatalf("update oracle: %v", err)
	}
	return vault
}

func TestAggregateOraclePriceTakesMinimum(t *testing.T) {
	vault := oracleVault(t)
	samples := []OracleSample{
		{Kind: OracleKindPyth, Account: testAddr(40), Price: 100_010_000, Confidence: 10_000, PublishTime: testNow - 10},
		{Kind: OracleKindDoves, Account: testAddr(41), Price: 99_990_000, Confidence: 0, PublishTime: testNow},
	}
	price, err := AggregateOraclePrice(vault, samples, testNow)
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	if price != 99_990_000 {
		t.Fatalf("expected minimum price, got %d", price)
	}
}

func TestAggregateOraclePriceRejects(t *testing.T) {
	vault := oracleVault(t)
	good := func() []OracleSample {
		return []OracleSample{
			{Kind: OracleKindPyth, Account: testAddr(40), Price: 100_000_000, PublishTime: testNow},
			{Kind: OracleKindDoves, Account: testAddr(41), Price: 100_000_000, PublishTime: testNow},
		}
	}
	cases := map[string]struct {
		mutate func([]OracleSample) []OracleSample
		want   error
	}{
		"missing sample": {func(s []OracleSample) []OracleSample { return s[:1] }, ErrMissingOracleSample},
		"wrong account": {func(s []OracleSample) []OracleSample {
			s[1].Account = testAddr(99)
			return s
		}, ErrBadOracle},
		"wrong kind": {func(s []OracleSample) []OracleSample {
			s[0].Kind = OracleKindSwitchboardOnDemand
			return s
		}, ErrBadOracle},
		"stale": {func(s []OracleSample) []OracleSample {
			s[0].PublishTime = testNow - DefaultStalenessThreshold - 1
			return s
		}, ErrBadOracle},
		"zero price": {func(s []OracleSample) []OracleSample {
			s[1].Price = 0
			return s
		}, ErrBadOracle},
		"wide confidence": {func(s []OracleSample) []OracleSample {
			s[0].Confidence = 2_000_000
			return s
		}, ErrPriceConfidenceTooWide},
		"wide spread": {func(s []OracleSample) []OracleSample {
			s[1].Price = 102_100_000
			return s
		}, ErrPriceConfidenceTooWide},
		"spread of 200.5 bps": {func(s []OracleSample) []OracleSample {
			s[1].Price = 102_005_000
			return s
		}, ErrPriceConfidenceTooWide},
		"spread one unit over 200 bps": {func(s []OracleSample) []OracleSample {
			s[0].Price = 102_000_001
			return s
		}, ErrPriceConfidenceTooWide},
	}
	for name, tc := range cases {
		_, err := AggregateOraclePrice(vault, tc.mutate(good()), testNow)
		if !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", name, tc.want, err)
		}
	}
	// Exactly at the staleness threshold the sample is still fresh.
	samples := good()
	samples[0].PublishTime = testNow - DefaultStalenessThreshold
	if _, err := AggregateOraclePrice(vault, samples, testNow); err != nil {
		t.Fatalf("boundary staleness: %v", err)
	}
	// A spread of exactly 200 bps is accepted.
	samples = good()
	samples[1].Price = 102_000_000
	if price, err := AggregateOraclePrice(vault, samples, testNow); err != nil || price != 100_000_000 {
		t.Fatalf("boundary spread: %d %v", price, err)
	}
	// Confidence must stay strictly below 200 bps of the price.
	samples = good()
	samples[0].Confidence = 1_999_999
	if _, err := AggregateOraclePrice(vault, samples, testNow); err != nil {
		t.Fatalf("confidence just under the gate: %v", err)
	}
}

func TestAggregateOraclePriceNoOracle(t *testing.T) {
	_, vault, _ := quoteFixture(t)
	if _, err := AggregateOraclePrice(vault, nil, testNow); !errors.Is(err, ErrNoValidOracle) {
		t.Fatalf("expected no valid oracle, got %v", err)
	}
}

func TestScaleOraclePrice(t *testing.T) {
	cases := []struct {
		mantissa int64
		expo     int32
		want     uint64
	}{
		{100_000_000, -8, 100_000_000},
		{99_985, -5, 99_985_000},
		{1_000_123_456_789, -12, 100_012_345},
		{1, 0, 100_000_000},
	}
	for _, tc := range cases {
		got, err := ScaleOraclePrice(tc.mantissa, tc.expo)
		if err != nil {
			t.Fatalf("scale(%d, %d): %v", tc.mantissa, tc.expo, err)
		}
		if got != tc.want {
			t.Fatalf("scale(%d, %d) = %d, want %d", tc.mantissa, tc.expo, got, tc.want)
		}
	}
	if _, err := ScaleOraclePrice(-5, -8); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected invalid input for negative mantissa, got %v", err)
	}
	if _, err := ScaleOraclePrice(1, -12); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected invalid input when price floors to zero, got %v", err)
	}
}

func TestParseOraclePrice(t *testing.T) {
	got, err := ParseOraclePrice("0.99985")
	if err != nil || got != 99_985_000 {
		t.Fatalf("parse: %d %v", got, err)
	}
	if _, err := ParseOraclePrice("0"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if FormatOraclePrice(100_012_345) != "1.00012345" {
		t.Fatalf("format = %q", FormatOraclePrice(100_012_345))
	}
}

func TestVaultOracleLifecycle(t *testing.T) {
	vault := oracleVault(t)
	if err := vault.SetStatus(VaultEnabled); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("enabling without custodian should fail, got %v", err)
	}
	if err := vault.SetCustodian(testAddr(50)); err != nil {
		t.Fatalf("set custodian: %v", err)
	}
	if err := vault.SetStatus(VaultEnabled); err != nil {
		t.Fatalf("enable: %v", err)
	}
	if err := vault.UpdateOracle(0, nil); err != nil {
		t.Fatalf("clear slot 0: %v", err)
	}
	if !vault.Enabled() {
		t.Fatalf("vault should stay enabled while an oracle remains")
	}
	if err := vault.UpdateOracle(3, EmptyOracle{}); err != nil {
		t.Fatalf("clear slot 3: %v", err)
	}
	if vault.Enabled() {
		t.Fatalf("removing the last oracle must disable the vault")
	}
	if err := vault.UpdateOracle(MaxOracles, EmptyOracle{}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected invalid index, got %v", err)
	}
}

func TestOracleSlotsJSON(t *testing.T) {
	vault := oracleVault(t)
	raw, err := json.Marshal(vault.Oracles)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded OracleSlots
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	pyth, ok := decoded[0].(PythOracle)
	if !ok || pyth.Account != testAddr(40) || pyth.FeedID[0] != 0xaa {
		t.Fatalf("pyth slot lost: %#v", decoded[0])
	}
	if _, ok := decoded[3].(DovesOracle); !ok {
		t.Fatalf("doves slot lost: %#v", decoded[3])
	}
	if !IsEmptyOracle(decoded[1]) {
		t.Fatalf("slot 1 should be empty")
	}
}
