package stable

import (
	"reflect"
	"strings"
	"testing"

	"pegvault/storage"
)

func TestStoreEmptyLoadsUninitialised(t *testing.T) {
	store := NewStore(storage.NewKV(storage.NewMemDB()))
	st, err := store.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if st.Initialized || len(st.Vaults) != 0 || len(st.Operators) != 0 {
		t.Fatalf("expected empty state, got %+v", st)
	}
}

func TestStoreRoundTrip(t *testing.T) {
	st := liveState(t)
	var feed [32]byte
	feed[31] = 0x42
	st, _ = mustApply(t, st, testAdmin,
		UpdateOracle{Mint: testCollateral, Index: 4, Oracle: OracleValue{PythOracle{FeedID: feed, Account: testAddr(40)}}},
		UpdatePeriodLimit{Scope: ScopeConfig, Index: 2, DurationSeconds: 3600, MaxMintAmount: 1 << 40, MaxRedeemAmount: 1 << 40},
		CreateOperator{Authority: testAddr(60), Role: NewRoleSet(RolePegManager) | RoleSet(1<<33)},
	)
	st, _ = mustApply(t, st, testBenefactor, mintAt(1_000_000_000, 100_000_000))

	store := NewStore(storage.NewKV(storage.NewMemDB()))
	if err := store.Save(st); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !reflect.DeepEqual(loaded, st) {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", loaded, st)
	}
	if loaded.Operators[testAddr(60)].Role.UnknownMask() != 1<<33 {
		t.Fatalf("unknown role bits lost")
	}
}

func TestStoreSaveDeletesRemovedRecords(t *testing.T) {
	st := liveState(t)
	st, _ = mustApply(t, st, testAdmin, CreateOperator{Authority: testAddr(60), Role: NewRoleSet(RoleAdmin)})
	store := NewStore(storage.NewKV(storage.NewMemDB()))
	if err := store.Save(st); err != nil {
		t.Fatalf("save: %v", err)
	}
	st, _ = mustApply(t, st, testAdmin,
		DeleteOperator{Authority: testAddr(60), Receiver: testAddr(9)},
		DeleteBenefactor{Authority: testBenefactor, Receiver: testAddr(9)},
	)
	if err := store.Save(st); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(loaded.Benefactors) != 0 || len(loaded.Operators) != 1 {
		t.Fatalf("deleted records resurfaced: %+v", loaded)
	}
}

func TestStoreLoadFailsOnDanglingIndex(t *testing.T) {
	st, _ := mustApply(t, liveState(t), testAdmin, CreateOperator{Authority: testAddr(60), Role: NewRoleSet(RoleAdmin)})
	cases := map[string][]byte{
		"vault":      stableVaultKey(testCollateral),
		"benefactor": stableBenefactorKey(testBenefactor),
		"operator":   stableOperatorKey(testAddr(60)),
	}
	for name, key := range cases {
		db := storage.NewMemDB()
		store := NewStore(storage.NewKV(db))
		if err := store.Save(st); err != nil {
			t.Fatalf("%s: save: %v", name, err)
		}
		if err := db.Delete(key); err != nil {
			t.Fatalf("%s: delete: %v", name, err)
		}
		_, err := store.Load()
		if err == nil || !strings.Contains(err.Error(), name) || !strings.Contains(err.Error(), "missing") {
			t.Fatalf("%s: expected missing record error, got %v", name, err)
		}
	}
}
