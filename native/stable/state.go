package stable

import (
	"fmt"
	"sort"

	"pegvault/crypto"
)

// State is a snapshot of every protocol record. Vaults are keyed by collateral mint,
// benefactors and operators by authority.
type State struct {
	Initialized bool                          `json:"initialized"`
	Config      Config                        `json:"config"`
	Vaults      map[crypto.Address]Vault      `json:"vaults"`
	Benefactors map[crypto.Address]Benefactor `json:"benefactors"`
	Operators   map[crypto.Address]Operator   `json:"operators"`
}

// NewState returns an empty, uninitialised state.
func NewState() State {
	return State{
		Vaults:      make(map[crypto.Address]Vault),
		Benefactors: make(map[crypto.Address]Benefactor),
		Operators:   make(map[crypto.Address]Operator),
	}
}

// Clone returns a deep copy. Entity records are plain values, so copying the maps is
// sufficient.
func (s State) Clone() State {
	out := State{
		Initialized: s.Initialized,
		Config:      s.Config,
		Vaults:      make(map[crypto.Address]Vault, len(s.Vaults)),
		Benefactors: make(map[crypto.Address]Benefactor, len(s.Benefactors)),
		Operators:   make(map[crypto.Address]Operator, len(s.Operators)),
	}
	for k, v := range s.Vaults {
		out.Vaults[k] = v
	}
	for k, b := range s.Benefactors {
		out.Benefactors[k] = b
	}
	for k, o := range s.Operators {
		out.Operators[k] = o
	}
	return out
}

// Vault looks up a vault by collateral mint.
func (s State) Vault(mint crypto.Address) (Vault, error) {
	v, ok := s.Vaults[mint]
	if !ok {
		return Vault{}, fmt.Errorf("%w: vault %s", ErrEntityNotFound, mint)
	}
	return v, nil
}

// Benefactor looks up a benefactor by authority.
func (s State) Benefactor(authority crypto.Address) (Benefactor, error) {
	b, ok := s.Benefactors[authority]
	if !ok {
		return Benefactor{}, fmt.Errorf("%w: benefactor %s", ErrEntityNotFound, authority)
	}
	return b, nil
}

// Operator looks up an operator by authority.
func (s State) Operator(authority crypto.Address) (Operator, error) {
	o, ok := s.Operators[authority]
	if !ok {
		return Operator{}, fmt.Errorf("%w: operator %s", ErrEntityNotFound, authority)
	}
	return o, nil
}

// authorize resolves the signer's operator record and checks role.
func (s State) authorize(signer crypto.Address, role Role) error {
	if !s.Initialized {
		return ErrNotInitialized
	}
	o, ok := s.Operators[signer]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownOperator, signer)
	}
	return o.Authorize(role)
}

// sortedKeys returns map keys in byte order so persistence is deterministic.
func sortedKeys[V any](m map[crypto.Address]V) []crypto.Address {
	keys := make([]crypto.Address, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return string(keys[i][:]) < string(keys[j][:])
	})
	return keys
}
