// Package fetcher provides the external price and pool-state collaborators.
package fetcher

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/ironcrypto/aero-arb-mm-bot/internal/pools"
)

// ReferencePriceFetcher retrieves the centralized-exchange reference price.
type ReferencePriceFetcher interface {
	FetchPrice(ctx context.Context) (decimal.Decimal, error)
}

// PoolClient reads tracked-pool state over Ethereum RPC.
type PoolClient interface {
	Reserves(ctx context.Context, poolName string, pool common.Address) (*big.Int, *big.Int, error)
	Identity(ctx context.Context, poolName string, pool common.Address) (pools.Info, error)
}
