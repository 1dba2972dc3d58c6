package fetcher

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/ironcrypto/aero-arb-mm-bot/internal/pools"
	"github.com/ironcrypto/aero-arb-mm-bot/internal/resilience"
)

const aerodromePoolABIJSON = `[
{"inputs":[],"name":"getReserves","outputs":[{"internalType":"uint256","name":"_reserve0","type":"uint256"},{"internalType":"uint256","name":"_reserve1","type":"uint256"},{"internalType":"uint256","name":"_blockTimestampLast","type":"uint256"}],"stateMutability":"view","type":"function"},
{"inputs":[],"name":"token0","outputs":[{"internalType":"address","name":"","type":"address"}],"stateMutability":"view","type":"function"},
{"inputs":[],"name":"token1","outputs":[{"internalType":"address","name":"","type":"address"}],"stateMutability":"view","type":"function"},
{"inputs":[],"name":"stable","outputs":[{"internalType":"bool","name":"","type":"bool"}],"stateMutability":"view","type":"function"}]`

var aerodromePoolABI abi.ABI

func init() {
	parsed, err := abi.JSON(strings.NewReader(aerodromePoolABIJSON))
	if err != nil {
		panic("failed to parse aerodrome pool ABI: " + err.Error())
	}
	aerodromePoolABI = parsed
}

// PoolOptions parameterise the on-chain pool client.
type PoolOptions struct {
	RPCURL  string
	Tokens  pools.TokenSet
	Timeout time.Duration
}

// Pool reads reserves and identity from Aerodrome pool contracts over
// Ethereum RPC. The client connection is established lazily.
type Pool struct {
	opts      PoolOptions
	logger    zerolog.Logger
	retry     resilience.RetryConfig
	client    *ethclient.Client
	clientMux sync.Mutex
}

// NewPool builds a pool client; no connection is made until the first call.
func NewPool(opts PoolOptions, logger zerolog.Logger) *Pool {
	return &Pool{
		opts:   opts,
		logger: logger.With().Str("component", "pool_fetcher").Logger(),
		retry:  resilience.DefaultRetryConfig(),
	}
}

type reservePair struct {
	r0 *big.Int
	r1 *big.Int
}

// Reserves returns the raw reserve amounts. Zero reserves on either side are
// reported as a contract error.
func (p *Pool) Reserves(ctx context.Context, poolName string, pool common.Address) (*big.Int, *big.Int, error) {
	label := fmt.Sprintf("get reserves for %s", poolName)
	pair, err := resilience.Retry(ctx, p.retry, label, p.logger, func(ctx context.Context) (reservePair, error) {
		r0, r1, err := p.reservesOnce(ctx, pool)
		return reservePair{r0: r0, r1: r1}, err
	})
	if err != nil {
		return nil, nil, err
	}
	if pair.r0.Sign() == 0 || pair.r1.Sign() == 0 {
		return nil, nil, resilience.ContractErr(pool.Hex(), fmt.Sprintf("pool %s has zero reserves", poolName), nil)
	}
	return pair.r0, pair.r1, nil
}

func (p *Pool) reservesOnce(ctx context.Context, pool common.Address) (*big.Int, *big.Int, error) {
	client, err := p.getClient(ctx)
	if err != nil {
		return nil, nil, err
	}

	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	payload, err := aerodromePoolABI.Pack("getReserves")
	if err != nil {
		return nil, nil, err
	}
	res, err := client.CallContract(ctx, ethereum.CallMsg{To: &pool, Data: payload}, nil)
	if err != nil {
		return nil, nil, err
	}

	outputs, err := aerodromePoolABI.Unpack("getReserves", res)
	if err != nil {
		return nil, nil, resilience.ContractErr(pool.Hex(), "failed to decode reserves", err)
	}
	if len(outputs) != 3 {
		return nil, nil, resilience.ContractErr(pool.Hex(), "unexpected getReserves response", nil)
	}
	r0, ok0 := outputs[0].(*big.Int)
	r1, ok1 := outputs[1].(*big.Int)
	if !ok0 || !ok1 {
		return nil, nil, resilience.ContractErr(pool.Hex(), "failed to decode reserve amounts", nil)
	}
	return r0, r1, nil
}

// Identity reads token0/token1/stable from the pool contract. Used once at
// startup to confirm a configured pool really is a WETH/USD pair.
func (p *Pool) Identity(ctx context.Context, poolName string, pool common.Address) (pools.Info, error) {
	client, err := p.getClient(ctx)
	if err != nil {
		return pools.Info{}, err
	}

	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	token0, err := p.callAddress(ctx, client, pool, "token0")
	if err != nil {
		return pools.Info{}, err
	}
	token1, err := p.callAddress(ctx, client, pool, "token1")
	if err != nil {
		return pools.Info{}, err
	}
	isStable, err := p.callBool(ctx, client, pool, "stable")
	if err != nil {
		return pools.Info{}, err
	}

	info := pools.Info{
		Name:     poolName,
		Address:  pool,
		Token0:   token0,
		Token1:   token1,
		IsStable: isStable,
	}
	p.logger.Debug().
		Str("pool", poolName).
		Str("token0", token0.Hex()).
		Str("token1", token1.Hex()).
		Bool("stable", isStable).
		Msg("pool identity fetched")
	return info, nil
}

// ValidatePool confirms the pool pairs WETH against a recognized USD asset.
func (p *Pool) ValidatePool(ctx context.Context, poolName string, pool common.Address) (pools.Info, error) {
	info, err := p.Identity(ctx, poolName, pool)
	if err != nil {
		return pools.Info{}, err
	}
	if !info.IsWETHUSD(p.opts.Tokens) {
		return pools.Info{}, resilience.ContractErr(pool.Hex(),
			fmt.Sprintf("pool %s is not a recognized WETH/USD pair", poolName), nil)
	}
	return info, nil
}

// Price computes the WETH price in USD from current reserves.
func (p *Pool) Price(ctx context.Context, info pools.Info) (decimal.Decimal, error) {
	r0, r1, err := p.Reserves(ctx, info.Name, info.Address)
	if err != nil {
		return decimal.Decimal{}, err
	}
	weth, usd, usdDecimals, err := info.OrientReserves(r0, r1, p.opts.Tokens)
	if err != nil {
		return decimal.Decimal{}, resilience.ContractErr(info.Address.Hex(), err.Error(), nil)
	}

	wethAmount, usdAmount := pools.ToHumanUnits(weth, usd, usdDecimals)
	if wethAmount.IsZero() {
		return decimal.Decimal{}, resilience.ContractErr(info.Address.Hex(), "weth reserve rounds to zero", nil)
	}

	price := usdAmount.Div(wethAmount)
	if price.LessThan(referenceMinPrice) || price.GreaterThan(referenceMaxPrice) {
		return decimal.Decimal{}, resilience.PriceValidationErr(info.Name, price, "price outside valid range")
	}
	return price, nil
}

// Depth analyzes current pool liquidity at the given fair value.
func (p *Pool) Depth(ctx context.Context, info pools.Info, fairValue decimal.Decimal) (pools.Depth, error) {
	r0, r1, err := p.Reserves(ctx, info.Name, info.Address)
	if err != nil {
		return pools.Depth{}, err
	}
	weth, usd, usdDecimals, err := info.OrientReserves(r0, r1, p.opts.Tokens)
	if err != nil {
		return pools.Depth{}, resilience.ContractErr(info.Address.Hex(), err.Error(), nil)
	}
	wethAmount, usdAmount := pools.ToHumanUnits(weth, usd, usdDecimals)
	return pools.AnalyzeDepth(wethAmount, usdAmount, fairValue), nil
}

func (p *Pool) callAddress(ctx context.Context, client *ethclient.Client, pool common.Address, method string) (common.Address, error) {
	outputs, err := p.call(ctx, client, pool, method)
	if err != nil {
		return common.Address{}, err
	}
	addr, ok := outputs[0].(common.Address)
	if !ok {
		return common.Address{}, resilience.ContractErr(pool.Hex(), "failed to decode "+method, nil)
	}
	return addr, nil
}

func (p *Pool) callBool(ctx context.Context, client *ethclient.Client, pool common.Address, method string) (bool, error) {
	outputs, err := p.call(ctx, client, pool, method)
	if err != nil {
		return false, err
	}
	b, ok := outputs[0].(bool)
	if !ok {
		return false, resilience.ContractErr(pool.Hex(), "failed to decode "+method, nil)
	}
	return b, nil
}

func (p *Pool) call(ctx context.Context, client *ethclient.Client, pool common.Address, method string) ([]interface{}, error) {
	payload, err := aerodromePoolABI.Pack(method)
	if err != nil {
		return nil, err
	}
	res, err := client.CallContract(ctx, ethereum.CallMsg{To: &pool, Data: payload}, nil)
	if err != nil {
		return nil, err
	}
	outputs, err := aerodromePoolABI.Unpack(method, res)
	if err != nil {
		return nil, resilience.ContractErr(pool.Hex(), "failed to decode "+method, err)
	}
	if len(outputs) != 1 {
		return nil, resilience.ContractErr(pool.Hex(), "unexpected "+method+" response", nil)
	}
	return outputs, nil
}

func (p *Pool) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := p.opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return context.WithTimeout(ctx, timeout)
}

func (p *Pool) getClient(ctx context.Context) (*ethclient.Client, error) {
	p.clientMux.Lock()
	defer p.clientMux.Unlock()

	if p.client != nil {
		return p.client, nil
	}
	if p.opts.RPCURL == "" {
		return nil, errors.New("ethereum rpc url not configured")
	}

	client, err := ethclient.DialContext(ctx, p.opts.RPCURL)
	if err != nil {
		return nil, err
	}
	p.client = client
	return client, nil
}

var _ PoolClient = (*Pool)(nil)
