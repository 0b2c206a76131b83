package market

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"
)

var ErrNoQuote = errors.New("market: no quote for pair")

type searchResponse struct {
	Pairs []dexPair `json:"pairs"`
}

type dexPair struct {
	ChainID     string `json:"chainId"`
	DexID       string `json:"dexId"`
	PairAddress string `json:"pairAddress"`
	BaseToken   struct {
		Symbol string `json:"symbol"`
	} `json:"baseToken"`
	QuoteToken struct {
		Symbol string `json:"symbol"`
	} `json:"quoteToken"`
	PriceNative string `json:"priceNative"`
	Liquidity   struct {
		USD float64 `json:"usd"`
	} `json:"liquidity"`
}

// sameSymbol treats wrapped natives (WMATIC, WETH) as their underlying.
func sameSymbol(got, want string) bool {
	got, want = strings.ToUpper(got), strings.ToUpper(want)
	return got == want || got == "W"+want || "W"+got == want
}

// Quote returns the price of the pair's base token in its quote token,
// taken from the most liquid matching pool.
func (c *Client) Quote(ctx context.Context, pair string) (decimal.Decimal, error) {
	base, quote, ok := strings.Cut(pair, "/")
	if !ok {
		return decimal.Zero, fmt.Errorf("malformed pair %q", pair)
	}

	u := c.baseURL + "/latest/dex/search?q=" + url.QueryEscape(base+"/"+quote)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("fetch quote: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, fmt.Errorf("quote API returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return decimal.Zero, fmt.Errorf("read response: %w", err)
	}

	var sr searchResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return decimal.Zero, fmt.Errorf("parse quote response: %w", err)
	}

	var (
		best     decimal.Decimal
		bestLiq  = -1.0
		bestPool string
	)
	for _, p := range sr.Pairs {
		if !sameSymbol(p.BaseToken.Symbol, base) || !sameSymbol(p.QuoteToken.Symbol, quote) {
			continue
		}
		price, err := decimal.NewFromString(p.PriceNative)
		if err != nil || !price.IsPositive() {
			continue
		}
		if p.Liquidity.USD > bestLiq {
			best, bestLiq, bestPool = price, p.Liquidity.USD, p.PairAddress
		}
	}
	if bestLiq < 0 {
		return decimal.Zero, fmt.Errorf("%w %s", ErrNoQuote, pair)
	}

	c.logger.Debug("quote fetched", "pair", pair, "price", best.String(), "pool", bestPool)
	return best, nil
}
