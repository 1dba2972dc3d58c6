// Package pools holds tracked-pool identity and liquidity depth analysis.
package pools

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// TokenSet names the recognized base/quote token contracts on the target
// network. USDbC is accepted as a USDC-equivalent quote asset.
type TokenSet struct {
	WETH  common.Address
	USDC  common.Address
	USDbC common.Address
}

// Info identifies a validated pool and its token pair.
type Info struct {
	Name     string
	Address  common.Address
	Token0   common.Address
	Token1   common.Address
	IsStable bool
}

// IsWETHUSD reports whether the pool pairs WETH against a recognized USD
// stable asset.
func (i Info) IsWETHUSD(t TokenSet) bool {
	hasWETH := i.Token0 == t.WETH || i.Token1 == t.WETH
	hasUSD := i.Token0 == t.USDC || i.Token1 == t.USDC ||
		i.Token0 == t.USDbC || i.Token1 == t.USDbC
	return hasWETH && hasUSD
}

// OrientReserves maps raw (reserve0, reserve1) onto (weth, usd) order and
// reports the quote token's decimals.
func (i Info) OrientReserves(r0, r1 *big.Int, t TokenSet) (weth, usd *big.Int, usdDecimals int32, err error) {
	switch {
	case i.Token0 == t.WETH:
		return r0, r1, quoteDecimals(i.Token1, t), nil
	case i.Token1 == t.WETH:
		return r1, r0, quoteDecimals(i.Token0, t), nil
	default:
		return nil, nil, 0, fmt.Errorf("pool %s is not a WETH/USD pool", i.Name)
	}
}

func quoteDecimals(token common.Address, t TokenSet) int32 {
	if token == t.USDC || token == t.USDbC {
		return 6
	}
	return 18
}

// ToHumanUnits converts raw reserve integers into human-denominated amounts.
func ToHumanUnits(weth, usd *big.Int, usdDecimals int32) (wethAmount, usdAmount decimal.Decimal) {
	return decimal.NewFromBigInt(weth, -18), decimal.NewFromBigInt(usd, -usdDecimals)
}
