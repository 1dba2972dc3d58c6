package pools

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

var testTokens = TokenSet{
	WETH:  common.HexToAddress("0x4200000000000000000000000000000000000006"),
	USDC:  common.HexToAddress("0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913"),
	USDbC: common.HexToAddress("0xd9aAEc86B65D86f6A7B5B1b0c42FFA531710b6CA"),
}

func TestIsWETHUSD(t *testing.T) {
	cases := []struct {
		name   string
		t0, t1 common.Address
		want   bool
	}{
		{"weth/usdc", testTokens.WETH, testTokens.USDC, true},
		{"usdbc/weth reversed", testTokens.USDbC, testTokens.WETH, true},
		{"usdc/usdbc no weth", testTokens.USDC, testTokens.USDbC, false},
		{"weth/unknown", testTokens.WETH, common.HexToAddress("0x01"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			info := Info{Name: tc.name, Token0: tc.t0, Token1: tc.t1}
			if got := info.IsWETHUSD(testTokens); got != tc.want {
				t.Fatalf("IsWETHUSD = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestOrientReserves(t *testing.T) {
	r0 := big.NewInt(100)
	r1 := big.NewInt(200)

	info := Info{Name: "weth-first", Token0: testTokens.WETH, Token1: testTokens.USDC}
	weth, usd, dec, err := info.OrientReserves(r0, r1, testTokens)
	if err != nil {
		t.Fatalf("OrientReserves: %v", err)
	}
	if weth.Cmp(r0) != 0 || usd.Cmp(r1) != 0 || dec != 6 {
		t.Fatalf("got weth=%v usd=%v dec=%d, want 100/200/6", weth, usd, dec)
	}

	info = Info{Name: "weth-second", Token0: testTokens.USDbC, Token1: testTokens.WETH}
	weth, usd, dec, err = info.OrientReserves(r0, r1, testTokens)
	if err != nil {
		t.Fatalf("OrientReserves: %v", err)
	}
	if weth.Cmp(r1) != 0 || usd.Cmp(r0) != 0 || dec != 6 {
		t.Fatalf("got weth=%v usd=%v dec=%d, want 200/100/6", weth, usd, dec)
	}

	info = Info{Name: "no-weth", Token0: testTokens.USDC, Token1: testTokens.USDbC}
	if _, _, _, err := info.OrientReserves(r0, r1, testTokens); err == nil {
		t.Fatal("expected error for non-WETH pool")
	}
}

func TestToHumanUnits(t *testing.T) {
	// 2.5 WETH and 7500 USDC in raw units.
	weth := new(big.Int)
	weth.SetString("2500000000000000000", 10)
	usd := big.NewInt(7_500_000_000)

	wethAmt, usdAmt := ToHumanUnits(weth, usd, 6)
	if !wethAmt.Equal(decimal.RequireFromString("2.5")) {
		t.Fatalf("weth = %s, want 2.5", wethAmt)
	}
	if !usdAmt.Equal(decimal.NewFromInt(7500)) {
		t.Fatalf("usd = %s, want 7500", usdAmt)
	}
}

func TestAnalyzeDepthGrades(t *testing.T) {
	price := decimal.NewFromInt(3000)
	cases := []struct {
		name string
		weth int64
		usd  int64
		want DepthQuality
	}{
		{"excellent", 2000, 5_000_000, DepthExcellent}, // 6M + 5M = 11M
		{"good", 300, 500_000, DepthGood},              // 900k + 500k = 1.4M
		{"fair", 30, 60_000, DepthFair},                // 90k + 60k = 150k
		{"poor", 10, 20_000, DepthPoor},                // 30k + 20k = 50k
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := AnalyzeDepth(decimal.NewFromInt(tc.weth), decimal.NewFromInt(tc.usd), price)
			if d.Quality != tc.want {
				t.Fatalf("quality = %s, want %s (total %s)", d.Quality, tc.want, d.TotalLiquidityUSD)
			}
		})
	}
}

func TestAnalyzeDepthBoundaries(t *testing.T) {
	price := decimal.NewFromInt(1)
	// Thresholds are strict: exactly at a boundary stays in the lower tier.
	if d := AnalyzeDepth(decimal.Zero, decimal.NewFromInt(10_000_000), price); d.Quality != DepthGood {
		t.Fatalf("10M = %s, want Good", d.Quality)
	}
	if d := AnalyzeDepth(decimal.Zero, decimal.NewFromInt(1_000_000), price); d.Quality != DepthFair {
		t.Fatalf("1M = %s, want Fair", d.Quality)
	}
	if d := AnalyzeDepth(decimal.Zero, decimal.NewFromInt(100_000), price); d.Quality != DepthPoor {
		t.Fatalf("100k = %s, want Poor", d.Quality)
	}
}
