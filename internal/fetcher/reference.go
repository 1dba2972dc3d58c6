package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/ironcrypto/aero-arb-mm-bot/internal/resilience"
)

const referenceTickerPath = "/api/v3/ticker/price"

// Prices outside this band are treated as corrupt feed data, not market moves.
var (
	referenceMinPrice = decimal.NewFromInt(100)
	referenceMaxPrice = decimal.NewFromInt(100_000)
)

// ReferenceOptions parameterise the Binance ticker fetcher.
type ReferenceOptions struct {
	BaseURL   string
	Symbol    string
	Timeout   time.Duration
	UserAgent string
}

// Reference fetches the spot price from the Binance ticker endpoint, with
// internal retry and a sanity band on the result.
type Reference struct {
	opts    ReferenceOptions
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
	retry   resilience.RetryConfig
}

// NewReference constructs a reference price fetcher.
func NewReference(opts ReferenceOptions, logger zerolog.Logger) *Reference {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.binance.com"
	}
	if opts.Symbol == "" {
		opts.Symbol = "ETHUSDC"
	}

	retry := resilience.DefaultRetryConfig()
	retry.MaxAttempts = 5
	retry.InitialDelay = 200 * time.Millisecond

	return &Reference{
		opts:    opts,
		logger:  logger.With().Str("component", "reference_fetcher").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
		retry:   retry,
	}
}

// FetchPrice returns the current reference price. Transient failures are
// retried internally; a price outside the sanity band is returned as a
// price-validation error without retrying.
func (r *Reference) FetchPrice(ctx context.Context) (decimal.Decimal, error) {
	price, err := resilience.Retry(ctx, r.retry, "reference price fetch", r.logger, r.fetchOnce)
	if err != nil {
		return decimal.Decimal{}, err
	}

	if price.LessThan(referenceMinPrice) || price.GreaterThan(referenceMaxPrice) {
		return decimal.Decimal{}, resilience.PriceValidationErr(r.opts.Symbol, price, "price outside valid range")
	}
	return price, nil
}

func (r *Reference) fetchOnce(ctx context.Context) (decimal.Decimal, error) {
	endpoint := fmt.Sprintf("%s%s?symbol=%s", r.baseURL, referenceTickerPath, r.opts.Symbol)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return decimal.Decimal{}, err
	}
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(r.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	} else {
		req.Header.Set("User-Agent", "arbwatcher/1.0")
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return decimal.Decimal{}, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return decimal.Decimal{}, err
	}

	if resp.StatusCode != http.StatusOK {
		return decimal.Decimal{}, fmt.Errorf("ticker api error (%d): %s", resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	var ticker tickerResponse
	if err := json.Unmarshal(payload, &ticker); err != nil {
		return decimal.Decimal{}, resilience.ParseErr("ticker response", err)
	}
	if ticker.Price == "" {
		return decimal.Decimal{}, resilience.ParseErr("ticker response", fmt.Errorf("missing price field"))
	}

	price, err := decimal.NewFromString(ticker.Price)
	if err != nil {
		return decimal.Decimal{}, resilience.ParseErr("ticker price", err)
	}
	return price, nil
}

type tickerResponse struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
}

var _ ReferencePriceFetcher = (*Reference)(nil)
