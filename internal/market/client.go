package market

import (
	"net/http"

	"github.com/camuig/agentfi/internal/config"
	"github.com/camuig/agentfi/internal/logger"
)

// Client reads spot prices from a DexScreener-compatible API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     *logger.Logger
}

func NewClient(cfg *config.Config, log *logger.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: cfg.MarketTimeout()},
		baseURL:    cfg.Market.BaseURL,
		logger:     log,
	}
}
