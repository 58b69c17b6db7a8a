package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"pegvault/core/events"
	"pegvault/crypto"
)

func TestRecordEventLabelsByDomainSubject(t *testing.T) {
	m := Stable()
	var vault crypto.Address
	vault[0] = 10
	minted := events.StableMinted{Vault: vault, AmountIn: 1_000, MintAmount: 997}.Event()
	redeemed := events.StableRedeemed{Vault: vault, AmountIn: 500, RedeemAmount: 498}.Event()
	paused := events.StableManagement{Action: "pause", Target: "config"}.Event()

	mintedCount := m.events.WithLabelValues(events.TypeStableMinted, vault.String())
	mintVolume := m.volume.WithLabelValues("mint", vault.String())
	redeemVolume := m.volume.WithLabelValues("redeem", vault.String())
	pauseCount := m.events.WithLabelValues(events.TypeStableManagement, "pause")
	beforeMinted := testutil.ToFloat64(mintedCount)
	beforeMint := testutil.ToFloat64(mintVolume)
	beforeRedeem := testutil.ToFloat64(redeemVolume)
	beforePause := testutil.ToFloat64(pauseCount)

	m.RecordEvent(*minted)
	m.RecordEvent(*minted)
	m.RecordEvent(*redeemed)
	m.RecordEvent(*paused)

	if got := testutil.ToFloat64(mintedCount) - beforeMinted; got != 2 {
		t.Fatalf("expected 2 mint events, got %v", got)
	}
	if got := testutil.ToFloat64(mintVolume) - beforeMint; got != 1_994 {
		t.Fatalf("mint volume must count stable units minted, got %v", got)
	}
	if got := testutil.ToFloat64(redeemVolume) - beforeRedeem; got != 500 {
		t.Fatalf("redeem volume must count stable units burned, got %v", got)
	}
	if got := testutil.ToFloat64(pauseCount) - beforePause; got != 1 {
		t.Fatalf("expected management event keyed by action, got %v", got)
	}

	var nilMetrics *StableMetrics
	nilMetrics.RecordEvent(*paused)
}
