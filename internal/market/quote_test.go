package market

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/camuig/agentfi/internal/config"
	"github.com/camuig/agentfi/internal/logger"
)

const searchBody = `{"schemaVersion":"1.0.0","pairs":[
 {"chainId":"polygon","pairAddress":"0x1","baseToken":{"symbol":"WMATIC"},"quoteToken":{"symbol":"USDC"},"priceNative":"0.5100","liquidity":{"usd":1000}},
 {"chainId":"polygon","pairAddress":"0x2","baseToken":{"symbol":"WMATIC"},"quoteToken":{"symbol":"USDC"},"priceNative":"0.5200","liquidity":{"usd":90000}},
 {"chainId":"polygon","pairAddress":"0x3","baseToken":{"symbol":"MATICX"},"quoteToken":{"symbol":"USDC"},"priceNative":"0.9","liquidity":{"usd":500000}},
 {"chainId":"polygon","pairAddress":"0x4","baseToken":{"symbol":"USDC"},"quoteToken":{"symbol":"WMATIC"},"priceNative":"1.9","liquidity":{"usd":900000}}
]}`

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg, err := config.Parse(nil)
	require.NoError(t, err)
	cfg.Market.BaseURL = srv.URL
	return NewClient(cfg, logger.Nop())
}

func TestQuote_MostLiquidMatch(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/latest/dex/search", r.URL.Path)
		assert.Equal(t, "MATIC/USDC", r.URL.Query().Get("q"))
		w.Write([]byte(searchBody))
	})

	price, err := client.Quote(context.Background(), "MATIC/USDC")
	require.NoError(t, err)
	assert.Equal(t, "0.52", price.String())
}

func TestQuote_Errors(t *testing.T) {
	t.Run("no match", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"pairs":[]}`))
		})
		_, err := client.Quote(context.Background(), "MATIC/USDC")
		assert.ErrorIs(t, err, ErrNoQuote)
	})

	t.Run("bad status", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		})
		_, err := client.Quote(context.Background(), "MATIC/USDC")
		assert.Error(t, err)
	})

	t.Run("malformed pair", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			t.Error("unexpected request")
		})
		_, err := client.Quote(context.Background(), "MATICUSDC")
		assert.Error(t, err)
	})
}
