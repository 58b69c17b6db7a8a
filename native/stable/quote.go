package stable

import (
	"fmt"

	"github.com/holiman/uint256"
)

// MintQuote is the breakdown of a prospective mint.
type MintQuote struct {
	AmountIn       uint64 `json:"amountIn"`
	FeeAmount      uint64 `json:"feeAmount"`
	NetAmount      uint64 `json:"netAmount"`
	OracleAmount   uint64 `json:"oracleAmount"`
	OneToOneAmount uint64 `json:"oneToOneAmount"`
	MintAmount     uint64 `json:"mintAmount"`
}

// RedeemQuote is the breakdown of a prospective redeem.
type RedeemQuote struct {
	AmountIn       uint64 `json:"amountIn"`
	FeeAmount      uint64 `json:"feeAmount"`
	NetAmount      uint64 `json:"netAmount"`
	OracleAmount   uint64 `json:"oracleAmount"`
	OneToOneAmount uint64 `json:"oneToOneAmount"`
	RedeemAmount   uint64 `json:"redeemAmount"`
}

type quoteInputs struct {
	amountIn   *uint256.Int
	net        *uint256.Int
	fee        uint64
	netAmount  uint64
	peg        *uint256.Int
	oracle     *uint256.Int
	lpScale    *uint256.Int
	vaultScale *uint256.Int
}

func prepareQuote(amountIn uint64, rate uint16, cfg Config, v Vault, oraclePriceUSD uint64, checkMax bool) (quoteInputs, error) {
	if amountIn == 0 {
		return quoteInputs{}, ErrZeroAmount
	}
	if cfg.PegPriceUSD == 0 {
		return quoteInputs{}, ErrInvalidPegInput
	}
	if oraclePriceUSD == 0 {
		return quoteInputs{}, ErrInvalidOracleInput
	}
	if err := v.checkOraclePrice(oraclePriceUSD, checkMax); err != nil {
		return quoteInputs{}, err
	}
	lpScale, err := Pow10(cfg.Decimals)
	if err != nil {
		return quoteInputs{}, fmt.Errorf("stable decimals: %w", err)
	}
	vaultScale, err := Pow10(v.Decimals)
	if err != nil {
		return quoteInputs{}, fmt.Errorf("vault decimals: %w", err)
	}
	fee, err := FeeAmount(amountIn, rate)
	if err != nil {
		return quoteInputs{}, err
	}
	net, err := checkedSub(amountIn, fee)
	if err != nil {
		return quoteInputs{}, err
	}
	return quoteInputs{
		amountIn:   newU(amountIn),
		net:        newU(net),
		fee:        fee,
		netAmount:  net,
		peg:        newU(cfg.PegPriceUSD),
		oracle:     newU(oraclePriceUSD),
		lpScale:    lpScale,
		vaultScale: vaultScale,
	}, nil
}

// ratio computes floor(prod(num)/prod(den)) and narrows the result to uint64.
func ratio(num, den []*uint256.Int) (uint64, error) {
	n, err := mulAll(num...)
	if err != nil {
		return 0, err
	}
	d, err := mulAll(den...)
	if err != nil {
		return 0, err
	}
	q, err := FloorDiv(n, d)
	if err != nil {
		return 0, err
	}
	return toUint64(q)
}

// GetMintQuote prices a deposit of amountIn collateral units against the stable asset.
// The result is the lesser of the oracle valuation and the fee-adjusted 1:1 valuation.
func GetMintQuote(amountIn uint64, cfg Config, b Benefactor, v Vault, oraclePriceUSD uint64) (MintQuote, error) {
	in, err := prepareQuote(amountIn, b.MintFeeRate, cfg, v, oraclePriceUSD, false)
	if err != nil {
		return MintQuote{}, err
	}
	// Peg is rescaled to oracle precision so the price ratio is dimensionless.
	oracleAmount, err := ratio(
		[]*uint256.Int{in.amountIn, in.oracle, in.lpScale},
		[]*uint256.Int{in.peg, boundScale, in.vaultScale},
	)
	if err != nil {
		return MintQuote{}, err
	}
	oneToOne, err := ratio(
		[]*uint256.Int{in.net, pegScale, in.lpScale},
		[]*uint256.Int{in.peg, in.vaultScale},
	)
	if err != nil {
		return MintQuote{}, err
	}
	return MintQuote{
		AmountIn:       amountIn,
		FeeAmount:      in.fee,
		NetAmount:      in.netAmount,
		OracleAmount:   oracleAmount,
		OneToOneAmount: oneToOne,
		MintAmount:     minUint64(oracleAmount, oneToOne),
	}, nil
}

// GetRedeemQuote prices a burn of amountIn stable units against vault collateral. The oracle
// price must sit inside both vault bounds.
func GetRedeemQuote(amountIn uint64, cfg Config, b Benefactor, v Vault, oraclePriceUSD uint64) (RedeemQuote, error) {
	in, err := prepareQuote(amountIn, b.RedeemFeeRate, cfg, v, oraclePriceUSD, true)
	if err != nil {
		return RedeemQuote{}, err
	}
	oracleAmount, err := ratio(
		[]*uint256.Int{in.amountIn, in.peg, boundScale, in.vaultScale},
		[]*uint256.Int{in.oracle, in.lpScale},
	)
	if err != nil {
		return RedeemQuote{}, err
	}
	oneToOne, err := ratio(
		[]*uint256.Int{in.net, in.peg, in.vaultScale},
		[]*uint256.Int{pegScale, in.lpScale},
	)
	if err != nil {
		return RedeemQuote{}, err
	}
	return RedeemQuote{
		AmountIn:       amountIn,
		FeeAmount:      in.fee,
		NetAmount:      in.netAmount,
		OracleAmount:   oracleAmount,
		OneToOneAmount: oneToOne,
		RedeemAmount:   minUint64(oracleAmount, oneToOne),
	}, nil
}
