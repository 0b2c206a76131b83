package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Database DatabaseConfig `yaml:"database"`
	AI       AIConfig       `yaml:"ai"`
	Chain    ChainConfig    `yaml:"chain"`
	Signals  SignalsConfig  `yaml:"signals"`
	Market   MarketConfig   `yaml:"market"`
	Telegram TelegramConfig `yaml:"telegram"`
	Web      WebConfig      `yaml:"web"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type DatabaseConfig struct {
	Driver string `yaml:"driver"` // sqlite or postgres
	DSN    string `yaml:"dsn"`
}

type AIConfig struct {
	Enabled        bool    `yaml:"enabled"`
	APIKey         string  `yaml:"api_key"`
	BaseURL        string  `yaml:"base_url"`
	Model          string  `yaml:"model"`
	Temperature    float32 `yaml:"temperature"`
	MaxTokens      int     `yaml:"max_tokens"`
	TimeoutSeconds int     `yaml:"timeout_seconds"`
	Seed           int64   `yaml:"seed"`
}

type ChainConfig struct {
	RPCURL          string            `yaml:"rpc_url"`
	ChainID         int64             `yaml:"chain_id"`
	ChainName       string            `yaml:"chain_name"`
	CurrencySymbol  string            `yaml:"currency_symbol"`
	ExplorerURL     string            `yaml:"explorer_url"`
	RegistryAddress string            `yaml:"registry_address"`
	ExecutorAddress string            `yaml:"executor_address"`
	PrivateKey      string            `yaml:"private_key"`
	AutoApprove     bool              `yaml:"auto_approve"`
	Tokens          map[string]string `yaml:"tokens"`
	Networks        []NetworkConfig   `yaml:"networks"`
}

// NetworkConfig is a network the wallet recognizes without having to add it.
type NetworkConfig struct {
	ChainID        int64  `yaml:"chain_id"`
	Name           string `yaml:"name"`
	RPCURL         string `yaml:"rpc_url"`
	CurrencySymbol string `yaml:"currency_symbol"`
	ExplorerURL    string `yaml:"explorer_url"`
}

type SignalsConfig struct {
	Enabled          bool   `yaml:"enabled"`
	DefaultTokenPair string `yaml:"default_token_pair"`
	AutoExecute      bool   `yaml:"auto_execute"`
	Interval         string `yaml:"interval"`
}

type MarketConfig struct {
	BaseURL        string `yaml:"base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type TelegramConfig struct {
	Enabled  bool   `yaml:"enabled"`
	BotToken string `yaml:"bot_token"`
	ChatID   int64  `yaml:"chat_id"`
}

type WebConfig struct {
	Port int `yaml:"port"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML config, expanding ${VAR} references from the environment.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	setDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

func setDefaults(cfg *Config) {
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "sqlite"
	}
	if cfg.Database.DSN == "" && cfg.Database.Driver == "sqlite" {
		cfg.Database.DSN = "data/agentfi.db"
	}
	if cfg.AI.BaseURL == "" {
		cfg.AI.BaseURL = "https://api.groq.com/openai/v1"
	}
	if cfg.AI.Model == "" {
		cfg.AI.Model = "llama-3.1-8b-instant"
	}
	if cfg.AI.Temperature == 0 {
		cfg.AI.Temperature = 0.3
	}
	if cfg.AI.MaxTokens == 0 {
		cfg.AI.MaxTokens = 1000
	}
	if cfg.AI.TimeoutSeconds == 0 {
		cfg.AI.TimeoutSeconds = 60
	}
	if cfg.Chain.ChainID == 0 {
		cfg.Chain.ChainID = 80002
	}
	if cfg.Chain.ChainName == "" {
		cfg.Chain.ChainName = "Polygon Amoy Testnet"
	}
	if cfg.Chain.CurrencySymbol == "" {
		cfg.Chain.CurrencySymbol = "MATIC"
	}
	if cfg.Chain.RPCURL == "" {
		cfg.Chain.RPCURL = "https://rpc-amoy.polygon.technology"
	}
	if cfg.Chain.ExplorerURL == "" {
		cfg.Chain.ExplorerURL = "https://amoy.polygonscan.com/"
	}
	if len(cfg.Chain.Tokens) == 0 {
		cfg.Chain.Tokens = map[string]string{
			"MATIC": "0x0000000000000000000000000000000000001010",
			"USDC":  "0x41E94Eb019C0762f9Bfcf9Fb1E58725BfB0e7582",
		}
	}
	if cfg.Signals.DefaultTokenPair == "" {
		cfg.Signals.DefaultTokenPair = "MATIC/USDC"
	}
	if cfg.Signals.Interval == "" {
		cfg.Signals.Interval = "15m"
	}
	if cfg.Market.BaseURL == "" {
		cfg.Market.BaseURL = "https://api.dexscreener.com"
	}
	if cfg.Market.TimeoutSeconds == 0 {
		cfg.Market.TimeoutSeconds = 10
	}
	if cfg.Web.Port == 0 {
		cfg.Web.Port = 8080
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
}

func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported database.driver %q", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}
	if c.AI.Enabled && c.AI.APIKey == "" {
		return fmt.Errorf("ai.api_key is required when ai is enabled")
	}
	if c.Chain.ChainID <= 0 {
		return fmt.Errorf("chain.chain_id must be positive")
	}
	for name, addr := range map[string]string{
		"chain.registry_address": c.Chain.RegistryAddress,
		"chain.executor_address": c.Chain.ExecutorAddress,
	} {
		if addr != "" && !common.IsHexAddress(addr) {
			return fmt.Errorf("invalid %s %q", name, addr)
		}
	}
	for symbol, addr := range c.Chain.Tokens {
		if !common.IsHexAddress(addr) {
			return fmt.Errorf("invalid chain.tokens.%s address %q", symbol, addr)
		}
	}
	for i, n := range c.Chain.Networks {
		if n.ChainID <= 0 || n.RPCURL == "" {
			return fmt.Errorf("chain.networks[%d]: chain_id and rpc_url are required", i)
		}
	}
	if !strings.Contains(c.Signals.DefaultTokenPair, "/") {
		return fmt.Errorf("invalid signals.default_token_pair %q", c.Signals.DefaultTokenPair)
	}
	interval, err := time.ParseDuration(c.Signals.Interval)
	if err != nil {
		return fmt.Errorf("invalid signals.interval %q: %w", c.Signals.Interval, err)
	}
	if interval <= 0 {
		return fmt.Errorf("signals.interval must be positive, got %q", c.Signals.Interval)
	}
	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == 0 {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
	}
	return nil
}

// ChainEnabled reports whether contract addresses are configured for on-chain writes.
func (c *Config) ChainEnabled() bool {
	return c.Chain.RegistryAddress != "" && c.Chain.ExecutorAddress != ""
}

// HomeNetwork is the network definition the ledger client expects to be on.
func (c *Config) HomeNetwork() NetworkConfig {
	return NetworkConfig{
		ChainID:        c.Chain.ChainID,
		Name:           c.Chain.ChainName,
		RPCURL:         c.Chain.RPCURL,
		CurrencySymbol: c.Chain.CurrencySymbol,
		ExplorerURL:    c.Chain.ExplorerURL,
	}
}

func (c *Config) SignalInterval() time.Duration {
	d, _ := time.ParseDuration(c.Signals.Interval)
	return d
}

func (c *Config) AITimeout() time.Duration {
	return time.Duration(c.AI.TimeoutSeconds) * time.Second
}

func (c *Config) MarketTimeout() time.Duration {
	return time.Duration(c.Market.TimeoutSeconds) * time.Second
}
