package events

import (
	"strconv"
	"strings"

	"pegvault/core/types"
	"pegvault/crypto"
)

const (
	// TypeStableMinted is emitted when collateral is exchanged for the stable asset.
	TypeStableMinted = "stable.minted"
	// TypeStableRedeemed is emitted when the stable asset is burned for collateral.
	TypeStableRedeemed = "stable.redeemed"
	// TypeStableManagement is emitted for every applied management action.
	TypeStableManagement = "stable.management"
	// TypeStableAccountClosed is emitted when a record is deleted and its resources reclaimed.
	TypeStableAccountClosed = "stable.account_closed"
)

// StableMinted mirrors the quote breakdown of an executed mint.
type StableMinted struct {
	Vault          crypto.Address
	Benefactor     crypto.Address
	AmountIn       uint64
	NetAmount      uint64
	OraclePrice    uint64
	OneToOneAmount uint64
	OracleAmount   uint64
	MintAmount     uint64
}

func (StableMinted) EventType() string { return TypeStableMinted }

func (e StableMinted) Event() *types.Event {
	return &types.Event{
		Type: TypeStableMinted,
		Attributes: map[string]string{
			"vault":          e.Vault.String(),
			"benefactor":     e.Benefactor.String(),
			"amountIn":       formatUint(e.AmountIn),
			"netAmount":      formatUint(e.NetAmount),
			"oraclePrice":    formatUint(e.OraclePrice),
			"oneToOneAmount": formatUint(e.OneToOneAmount),
			"oracleAmount":   formatUint(e.OracleAmount),
			"mintAmount":     formatUint(e.MintAmount),
		},
	}
}

// StableRedeemed mirrors the quote breakdown of an executed redeem.
type StableRedeemed struct {
	Vault          crypto.Address
	Benefactor     crypto.Address
	AmountIn       uint64
	NetAmount      uint64
	OraclePrice    uint64
	OneToOneAmount uint64
	OracleAmount   uint64
	RedeemAmount   uint64
}

func (StableRedeemed) EventType() string { return TypeStableRedeemed }

func (e StableRedeemed) Event() *types.Event {
	return &types.Event{
		Type: TypeStableRedeemed,
		Attributes: map[string]string{
			"vault":          e.Vault.String(),
			"benefactor":     e.Benefactor.String(),
			"amountIn":       formatUint(e.AmountIn),
			"netAmount":      formatUint(e.NetAmount),
			"oraclePrice":    formatUint(e.OraclePrice),
			"oneToOneAmount": formatUint(e.OneToOneAmount),
			"oracleAmount":   formatUint(e.OracleAmount),
			"redeemAmount":   formatUint(e.RedeemAmount),
		},
	}
}

// StableManagement records which management action a signer applied and to what.
type StableManagement struct {
	Action string
	Signer crypto.Address
	Target string
}

func (StableManagement) EventType() string { return TypeStableManagement }

func (e StableManagement) Event() *types.Event {
	return &types.Event{
		Type: TypeStableManagement,
		Attributes: map[string]string{
			"action": strings.TrimSpace(e.Action),
			"signer": e.Signer.String(),
			"target": strings.TrimSpace(e.Target),
		},
	}
}

// StableAccountClosed reports a deleted record and the receiver of its resources.
type StableAccountClosed struct {
	Kind     string
	Address  crypto.Address
	Receiver crypto.Address
}

func (StableAccountClosed) EventType() string { return TypeStableAccountClosed }

func (e StableAccountClosed) Event() *types.Event {
	return &types.Event{
		Type: TypeStableAccountClosed,
		Attributes: map[string]string{
			"kind":     strings.TrimSpace(e.Kind),
			"address":  e.Address.String(),
			"receiver": e.Receiver.String(),
		},
	}
}

func formatUint(v uint64) string {
	return strconv.FormatUint(v, 10)
}
