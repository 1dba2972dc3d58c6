package pools

import "github.com/shopspring/decimal"

// DepthQuality classifies total pool liquidity.
type DepthQuality int

const (
	DepthPoor DepthQuality = iota
	DepthFair
	DepthGood
	DepthExcellent
)

func (q DepthQuality) String() string {
	switch q {
	case DepthExcellent:
		return "Excellent"
	case DepthGood:
		return "Good"
	case DepthFair:
		return "Fair"
	default:
		return "Poor"
	}
}

var (
	excellentMinUSD = decimal.NewFromInt(10_000_000)
	goodMinUSD      = decimal.NewFromInt(1_000_000)
	fairMinUSD      = decimal.NewFromInt(100_000)
)

// Depth summarizes one side of pool liquidity in human units.
type Depth struct {
	WETHReserves      decimal.Decimal
	USDReserves       decimal.Decimal
	TotalLiquidityUSD decimal.Decimal
	Quality           DepthQuality
}

// AnalyzeDepth values both reserve sides at the given WETH price and grades
// the combined liquidity.
func AnalyzeDepth(wethReserves, usdReserves, wethPriceUSD decimal.Decimal) Depth {
	total := wethReserves.Mul(wethPriceUSD).Add(usdReserves)
	return Depth{
		WETHReserves:      wethReserves,
		USDReserves:       usdReserves,
		TotalLiquidityUSD: total,
		Quality:           gradeDepth(total),
	}
}

func gradeDepth(totalUSD decimal.Decimal) DepthQuality {
	switch {
	case totalUSD.GreaterThan(excellentMinUSD):
		return DepthExcellent
	case totalUSD.GreaterThan(goodMinUSD):
		return DepthGood
	case totalUSD.GreaterThan(fairMinUSD):
		return DepthFair
	default:
		return DepthPoor
	}
}
