package stable

import (
	"fmt"
	"math/big"

	"pegvault/crypto"
	"pegvault/storage"
)

// Storage is the persistence surface the store needs.
type Storage interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVWrite(writes []storage.KVWrite) error
}

type storedPeriodLimit struct {
	DurationSeconds uint64
	MaxMintAmount   uint64
	MaxRedeemAmount uint64
	MintedAmount    uint64
	RedeemedAmount  uint64
	WindowStart     uint64
}

type storedConfig struct {
	Mint              [32]byte
	Authority         [32]byte
	TokenProgram      [32]byte
	Decimals          uint8
	PegPriceUSD       uint64
	MintRedeemEnabled bool
	PeriodLimits      []storedPeriodLimit
}

type storedOracle struct {
	Kind    string
	FeedID  [32]byte
	Account [32]byte
}

type storedVault struct {
	Mint               [32]byte
	Custodian          [32]byte
	TokenAccount       [32]byte
	TokenProgram       [32]byte
	Status             uint8
	StalenessThreshold uint64
	MinOraclePriceUSD  uint64
	MaxOraclePriceUSD  uint64
	Decimals           uint8
	Balance            uint64
	CustodianBalance   uint64
	TotalMinted        *big.Int
	TotalRedeemed      *big.Int
	Oracles            []storedOracle
	PeriodLimits       []storedPeriodLimit
}

type storedBenefactor struct {
	Authority     [32]byte
	Status        uint8
	MintFeeRate   uint16
	RedeemFeeRate uint16
	TotalMinted   *big.Int
	TotalRedeemed *big.Int
	PeriodLimits  []storedPeriodLimit
}

type storedOperator struct {
	Authority [32]byte
	Role      uint64
	Status    uint8
}

type storedIndex struct {
	Initialized bool
	Vaults      [][32]byte
	Benefactors [][32]byte
	Operators   [][32]byte
}

// Store persists State snapshots as RLP records.
type Store struct {
	kv Storage
}

// NewStore constructs a Store backed by the provided storage.
func NewStore(kv Storage) *Store {
	return &Store{kv: kv}
}

// Load reads the full state. An empty store yields an uninitialised state.
func (s *Store) Load() (State, error) {
	if s == nil || s.kv == nil {
		return State{}, fmt.Errorf("stable: store not initialised")
	}
	st := NewState()
	var index storedIndex
	ok, err := s.kv.KVGet(stableIndexKey, &index)
	if err != nil {
		return State{}, fmt.Errorf("stable: load index: %w", err)
	}
	if !ok {
		return st, nil
	}
	st.Initialized = index.Initialized
	if index.Initialized {
		var cfg storedConfig
		ok, err := s.kv.KVGet(stableConfigKey, &cfg)
		if err != nil {
			return State{}, fmt.Errorf("stable: load config: %w", err)
		}
		if !ok {
			return State{}, fmt.Errorf("stable: config missing from initialised store")
		}
		st.Config = cfg.decode()
	}
	for _, raw := range index.Vaults {
		var rec storedVault
		ok, err := s.kv.KVGet(stableVaultKey(raw), &rec)
		if err != nil {
			return State{}, fmt.Errorf("stable: load vault %s: %w", crypto.Address(raw), err)
		}
		if !ok {
			return State{}, fmt.Errorf("stable: vault %s missing from index", crypto.Address(raw))
		}
		v, err := rec.decode()
		if err != nil {
			return State{}, fmt.Errorf("stable: decode vault %s: %w", crypto.Address(raw), err)
		}
		st.Vaults[v.Mint] = v
	}
	for _, raw := range index.Benefactors {
		var rec storedBenefactor
		ok, err := s.kv.KVGet(stableBenefactorKey(raw), &rec)
		if err != nil {
			return State{}, fmt.Errorf("stable: load benefactor %s: %w", crypto.Address(raw), err)
		}
		if !ok {
			return State{}, fmt.Errorf("stable: benefactor %s missing from index", crypto.Address(raw))
		}
		b, err := rec.decode()
		if err != nil {
			return State{}, fmt.Errorf("stable: decode benefactor %s: %w", crypto.Address(raw), err)
		}
		st.Benefactors[b.Authority] = b
	}
	for _, raw := range index.Operators {
		var rec storedOperator
		ok, err := s.kv.KVGet(stableOperatorKey(raw), &rec)
		if err != nil {
			return State{}, fmt.Errorf("stable: load operator %s: %w", crypto.Address(raw), err)
		}
		if !ok {
			return State{}, fmt.Errorf("stable: operator %s missing from index", crypto.Address(raw))
		}
		o := rec.decode()
		st.Operators[o.Authority] = o
	}
	return st, nil
}

// Save writes st atomically, deleting records that are no longer present. Extra writes
// are committed in the same batch.
func (s *Store) Save(st State, extra ...storage.KVWrite) error {
	if s == nil || s.kv == nil {
		return fmt.Errorf("stable: store not initialised")
	}
	var previous storedIndex
	if _, err := s.kv.KVGet(stableIndexKey, &previous); err != nil {
		return fmt.Errorf("stable: load index: %w", err)
	}
	index := storedIndex{Initialized: st.Initialized}
	writes := make([]storage.KVWrite, 0, 2+len(st.Vaults)+len(st.Benefactors)+len(st.Operators))
	if st.Initialized {
		writes = append(writes, storage.KVWrite{Key: stableConfigKey, Value: encodeConfig(st.Config)})
	}
	for _, mint := range sortedKeys(st.Vaults) {
		index.Vaults = append(index.Vaults, mint)
		writes = append(writes, storage.KVWrite{Key: stableVaultKey(mint), Value: encodeVault(st.Vaults[mint])})
	}
	for _, authority := range sortedKeys(st.Benefactors) {
		index.Benefactors = append(index.Benefactors, authority)
		writes = append(writes, storage.KVWrite{Key: stableBenefactorKey(authority), Value: encodeBenefactor(st.Benefactors[authority])})
	}
	for _, authority := range sortedKeys(st.Operators) {
		index.Operators = append(index.Operators, authority)
		writes = append(writes, storage.KVWrite{Key: stableOperatorKey(authority), Value: encodeOperator(st.Operators[authority])})
	}
	for _, raw := range previous.Benefactors {
		if _, ok := st.Benefactors[raw]; !ok {
			writes = append(writes, storage.KVWrite{Key: stableBenefactorKey(raw)})
		}
	}
	for _, raw := range previous.Operators {
		if _, ok := st.Operators[raw]; !ok {
			writes = append(writes, storage.KVWrite{Key: stableOperatorKey(raw)})
		}
	}
	writes = append(writes, extra...)
	writes = append(writes, storage.KVWrite{Key: stableIndexKey, Value: &index})
	return s.kv.KVWrite(writes)
}

func encodePeriodLimits(limits PeriodLimits) []storedPeriodLimit {
	out := make([]storedPeriodLimit, len(limits))
	for i, l := range limits {
		out[i] = storedPeriodLimit{
			DurationSeconds: l.DurationSeconds,
			MaxMintAmount:   l.MaxMintAmount,
			MaxRedeemAmount: l.MaxRedeemAmount,
			MintedAmount:    l.MintedAmount,
			RedeemedAmount:  l.RedeemedAmount,
			WindowStart:     uint64(l.WindowStart),
		}
	}
	return out
}

func decodePeriodLimits(stored []storedPeriodLimit) PeriodLimits {
	var out PeriodLimits
	for i := 0; i < len(stored) && i < MaxPeriodLimits; i++ {
		l := stored[i]
		out[i] = PeriodLimit{
			DurationSeconds: l.DurationSeconds,
			MaxMintAmount:   l.MaxMintAmount,
			MaxRedeemAmount: l.MaxRedeemAmount,
			MintedAmount:    l.MintedAmount,
			RedeemedAmount:  l.RedeemedAmount,
			WindowStart:     int64(l.WindowStart),
		}
	}
	return out
}

func encodeConfig(c Config) *storedConfig {
	return &storedConfig{
		Mint:              c.Mint,
		Authority:         c.Authority,
		TokenProgram:      c.TokenProgram,
		Decimals:          c.Decimals,
		PegPriceUSD:       c.PegPriceUSD,
		MintRedeemEnabled: c.MintRedeemEnabled,
		PeriodLimits:      encodePeriodLimits(c.PeriodLimits),
	}
}

func (c storedConfig) decode() Config {
	return Config{
		Mint:              c.Mint,
		Authority:         c.Authority,
		TokenProgram:      c.TokenProgram,
		Decimals:          c.Decimals,
		PegPriceUSD:       c.PegPriceUSD,
		MintRedeemEnabled: c.MintRedeemEnabled,
		PeriodLimits:      decodePeriodLimits(c.PeriodLimits),
	}
}

func encodeOracle(o OracleConfig) storedOracle {
	switch cfg := o.(type) {
	case PythOracle:
		return storedOracle{Kind: string(OracleKindPyth), FeedID: cfg.FeedID, Account: cfg.Account}
	case SwitchboardOnDemandOracle:
		return storedOracle{Kind: string(OracleKindSwitchboardOnDemand), Account: cfg.Account}
	case DovesOracle:
		return storedOracle{Kind: string(OracleKindDoves), Account: cfg.Account}
	case nil, EmptyOracle:
		return storedOracle{Kind: string(OracleKindEmpty)}
	default:
		return storedOracle{Kind: string(OracleKindEmpty)}
	}
}

func (o storedOracle) decode() (OracleConfig, error) {
	switch OracleKind(o.Kind) {
	case OracleKindEmpty, "":
		return EmptyOracle{}, nil
	case OracleKindPyth:
		return PythOracle{FeedID: o.FeedID, Account: o.Account}, nil
	case OracleKindSwitchboardOnDemand:
		return SwitchboardOnDemandOracle{Account: o.Account}, nil
	case OracleKindDoves:
		return DovesOracle{Account: o.Account}, nil
	default:
		return nil, fmt.Errorf("%w: oracle kind %q", ErrInvalidInput, o.Kind)
	}
}

func encodeVault(v Vault) *storedVault {
	oracles := make([]storedOracle, len(v.Oracles))
	for i, o := range v.Oracles {
		oracles[i] = encodeOracle(o)
	}
	return &storedVault{
		Mint:               v.Mint,
		Custodian:          v.Custodian,
		TokenAccount:       v.TokenAccount,
		TokenProgram:       v.TokenProgram,
		Status:             uint8(v.Status),
		StalenessThreshold: v.StalenessThreshold,
		MinOraclePriceUSD:  v.MinOraclePriceUSD,
		MaxOraclePriceUSD:  v.MaxOraclePriceUSD,
		Decimals:           v.Decimals,
		Balance:            v.Balance,
		CustodianBalance:   v.CustodianBalance,
		TotalMinted:        v.TotalMinted.Big(),
		TotalRedeemed:      v.TotalRedeemed.Big(),
		Oracles:            oracles,
		PeriodLimits:       encodePeriodLimits(v.PeriodLimits),
	}
}

func (r storedVault) decode() (Vault, error) {
	v := Vault{
		Mint:               r.Mint,
		Custodian:          r.Custodian,
		TokenAccount:       r.TokenAccount,
		TokenProgram:       r.TokenProgram,
		Status:             VaultStatus(r.Status),
		StalenessThreshold: r.StalenessThreshold,
		MinOraclePriceUSD:  r.MinOraclePriceUSD,
		MaxOraclePriceUSD:  r.MaxOraclePriceUSD,
		Decimals:           r.Decimals,
		Balance:            r.Balance,
		CustodianBalance:   r.CustodianBalance,
		PeriodLimits:       decodePeriodLimits(r.PeriodLimits),
	}
	if v.Status > VaultEnabled {
		return Vault{}, fmt.Errorf("%w: vault status %d", ErrUnknownStatus, r.Status)
	}
	var err error
	if v.TotalMinted, err = Total128FromBig(r.TotalMinted); err != nil {
		return Vault{}, err
	}
	if v.TotalRedeemed, err = Total128FromBig(r.TotalRedeemed); err != nil {
		return Vault{}, err
	}
	for i := 0; i < len(r.Oracles) && i < MaxOracles; i++ {
		o, err := r.Oracles[i].decode()
		if err != nil {
			return Vault{}, err
		}
		v.Oracles[i] = o
	}
	return v, nil
}

func encodeBenefactor(b Benefactor) *storedBenefactor {
	return &storedBenefactor{
		Authority:     b.Authority,
		Status:        uint8(b.Status),
		MintFeeRate:   b.MintFeeRate,
		RedeemFeeRate: b.RedeemFeeRate,
		TotalMinted:   b.TotalMinted.Big(),
		TotalRedeemed: b.TotalRedeemed.Big(),
		PeriodLimits:  encodePeriodLimits(b.PeriodLimits),
	}
}

func (r storedBenefactor) decode() (Benefactor, error) {
	b := Benefactor{
		Authority:     r.Authority,
		Status:        BenefactorStatus(r.Status),
		MintFeeRate:   r.MintFeeRate,
		RedeemFeeRate: r.RedeemFeeRate,
		PeriodLimits:  decodePeriodLimits(r.PeriodLimits),
	}
	if b.Status > BenefactorActive {
		return Benefactor{}, fmt.Errorf("%w: benefactor status %d", ErrUnknownStatus, r.Status)
	}
	var err error
	if b.TotalMinted, err = Total128FromBig(r.TotalMinted); err != nil {
		return Benefactor{}, err
	}
	if b.TotalRedeemed, err = Total128FromBig(r.TotalRedeemed); err != nil {
		return Benefactor{}, err
	}
	return b, nil
}

func encodeOperator(o Operator) *storedOperator {
	return &storedOperator{Authority: o.Authority, Role: uint64(o.Role), Status: uint8(o.Status)}
}

func (r storedOperator) decode() Operator {
	return Operator{Authority: r.Authority, Role: RoleSet(r.Role), Status: OperatorStatus(r.Status)}
}
