// Package chain submits agent lifecycle and trade transactions to the
// registry and executor contracts through a user-controlled wallet.
package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"

	"github.com/camuig/agentfi/internal/config"
	"github.com/camuig/agentfi/internal/logger"
	"github.com/camuig/agentfi/internal/storage"
)

const (
	// DefaultGasLimit is used when estimation fails.
	DefaultGasLimit = uint64(300000)

	// ExecutionDeadline bounds how long a submitted swap stays valid on-chain.
	ExecutionDeadline = 3600 * time.Second
)

// EthClient abstracts go-ethereum client for testing
type EthClient interface {
	ChainID(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	Close()
}

// Submission is a sent, unconfirmed transaction.
type Submission struct {
	TxHash   string
	Nonce    uint64
	GasLimit uint64
}

// OnChainAgent is the registry's view of an agent.
type OnChainAgent struct {
	ID              *big.Int            `json:"id"`
	Owner           string              `json:"owner"`
	Name            string              `json:"name"`
	Strategy        storage.Strategy    `json:"strategy"`
	RiskLevel       storage.RiskLevel   `json:"risk_level"`
	AllocatedAmount decimal.Decimal     `json:"allocated_amount"`
	Status          storage.AgentStatus `json:"status"`
	ConfigHash      string              `json:"config_hash"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
}

type Client struct {
	eth         EthClient
	wallet      Wallet
	registry    common.Address
	executor    common.Address
	registryABI abi.ABI
	executorABI abi.ABI
	home        Network
	tokens      map[string]common.Address
	logger      *logger.Logger
	now         func() time.Time
}

// NewClient builds a ledger client. wallet may be nil, in which case reads
// work and every wallet operation fails with ErrUnsupportedWallet.
func NewClient(eth EthClient, wallet Wallet, cfg *config.Config, log *logger.Logger) (*Client, error) {
	if !cfg.ChainEnabled() {
		return nil, fmt.Errorf("chain.registry_address and chain.executor_address are required")
	}

	regABI, err := abi.JSON(strings.NewReader(registryABI))
	if err != nil {
		return nil, fmt.Errorf("parse registry ABI: %w", err)
	}
	execABI, err := abi.JSON(strings.NewReader(executorABI))
	if err != nil {
		return nil, fmt.Errorf("parse executor ABI: %w", err)
	}

	tokens := make(map[string]common.Address, len(cfg.Chain.Tokens))
	for symbol, addr := range cfg.Chain.Tokens {
		tokens[strings.ToUpper(symbol)] = common.HexToAddress(addr)
	}

	return &Client{
		eth:         eth,
		wallet:      wallet,
		registry:    common.HexToAddress(cfg.Chain.RegistryAddress),
		executor:    common.HexToAddress(cfg.Chain.ExecutorAddress),
		registryABI: regABI,
		executorABI: execABI,
		home:        NetworkFromConfig(cfg.HomeNetwork()),
		tokens:      tokens,
		logger:      log,
		now:         time.Now,
	}, nil
}

// Dial connects to the configured RPC endpoint and opens a key wallet when
// a private key is configured.
func Dial(ctx context.Context, cfg *config.Config, approve Approver, log *logger.Logger) (*Client, error) {
	eth, err := ethclient.DialContext(ctx, cfg.Chain.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial rpc: %w", err)
	}

	var wallet Wallet
	if cfg.Chain.PrivateKey != "" {
		key, err := ParsePrivateKey(cfg.Chain.PrivateKey)
		if err != nil {
			eth.Close()
			return nil, err
		}
		networks := make([]Network, 0, len(cfg.Chain.Networks))
		for _, n := range cfg.Chain.Networks {
			networks = append(networks, NetworkFromConfig(n))
		}
		wallet = NewKeyWallet(key, approve, networks...)
	}

	client, err := NewClient(eth, wallet, cfg, log)
	if err != nil {
		eth.Close()
		return nil, err
	}
	return client, nil
}

func (c *Client) Close() {
	c.eth.Close()
}

// HomeChainID is the chain every submission is sent to.
func (c *Client) HomeChainID() int64 {
	return c.home.ChainID.Int64()
}

// Connect returns the connected account, or "" when there is no wallet
// session or no account is connected.
func (c *Client) Connect(ctx context.Context) (string, error) {
	if c.wallet == nil {
		return "", nil
	}
	accounts, err := c.wallet.Accounts(ctx)
	if err != nil {
		return "", fmt.Errorf("read accounts: %w", err)
	}
	if len(accounts) == 0 {
		return "", nil
	}
	return accounts[0].Hex(), nil
}

// RequestConnection asks the user to connect and returns the first account.
func (c *Client) RequestConnection(ctx context.Context) (string, error) {
	if c.wallet == nil {
		return "", ErrUnsupportedWallet
	}
	accounts, err := c.wallet.RequestAccounts(ctx)
	if err != nil {
		return "", err
	}
	if len(accounts) == 0 {
		return "", ErrNoAccount
	}
	c.logger.Info("wallet connected", "account", accounts[0].Hex())
	return accounts[0].Hex(), nil
}

// CheckNetwork reports whether the wallet is on the home network.
func (c *Client) CheckNetwork(ctx context.Context) (bool, error) {
	if c.wallet == nil {
		return false, ErrUnsupportedWallet
	}
	id, err := c.wallet.ChainID(ctx)
	if err != nil {
		return false, fmt.Errorf("read wallet chain id: %w", err)
	}
	return id.Cmp(c.home.ChainID) == 0, nil
}

// EnsureNetwork switches the wallet to expected, adding the network
// definition first when the wallet does not recognize it.
func (c *Client) EnsureNetwork(ctx context.Context, expected int64) error {
	if c.wallet == nil {
		return ErrUnsupportedWallet
	}
	want := big.NewInt(expected)

	current, err := c.wallet.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("read wallet chain id: %w", err)
	}
	if current.Cmp(want) == 0 {
		return nil
	}

	err = c.wallet.SwitchChain(ctx, want)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrUnrecognizedChain) {
		return fmt.Errorf("switch chain: %w", err)
	}
	if want.Cmp(c.home.ChainID) != 0 {
		return fmt.Errorf("no network definition for chain %d: %w", expected, err)
	}

	c.logger.Info("adding network to wallet", "chain_id", expected, "name", c.home.Name)
	if err := c.wallet.AddChain(ctx, c.home); err != nil {
		return fmt.Errorf("add chain: %w", err)
	}
	if err := c.wallet.SwitchChain(ctx, want); err != nil {
		return fmt.Errorf("switch chain: %w", err)
	}
	return nil
}

// Ping checks that the RPC endpoint is reachable and serves the home chain.
func (c *Client) Ping(ctx context.Context) error {
	id, err := c.eth.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("read rpc chain id: %w", err)
	}
	if id.Cmp(c.home.ChainID) != 0 {
		return fmt.Errorf("%w: rpc serves chain %s, expected %s", ErrWrongNetwork, id, c.home.ChainID)
	}
	return nil
}

func (c *Client) signer(ctx context.Context, signer string) (common.Address, error) {
	if c.wallet == nil {
		return common.Address{}, ErrUnsupportedWallet
	}
	connected, err := c.Connect(ctx)
	if err != nil {
		return common.Address{}, err
	}
	if connected == "" {
		return common.Address{}, fmt.Errorf("%w: no connected account", ErrAccountMismatch)
	}
	if !strings.EqualFold(connected, signer) {
		return common.Address{}, fmt.Errorf("%w: connected %s, signer %s", ErrAccountMismatch, connected, signer)
	}
	return common.HexToAddress(connected), nil
}

// fees uses the agent's gas settings when both are present and parse,
// otherwise the node's suggestion over the latest base fee.
func (c *Client) fees(ctx context.Context, gas *storage.GasSettings) (tip, feeCap *big.Int, err error) {
	if gas != nil && gas.MaxFeePerGas != "" && gas.MaxPriorityFeePerGas != "" {
		tip, errTip := GweiToWei(gas.MaxPriorityFeePerGas)
		feeCap, errCap := GweiToWei(gas.MaxFeePerGas)
		if errTip == nil && errCap == nil && feeCap.Cmp(tip) >= 0 {
			return tip, feeCap, nil
		}
		c.logger.Warn("ignoring invalid gas settings", "max_fee", gas.MaxFeePerGas, "max_priority_fee", gas.MaxPriorityFeePerGas)
	}

	tip, err = c.eth.SuggestGasTipCap(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("suggest tip: %w", err)
	}
	head, err := c.eth.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("latest header: %w", err)
	}
	feeCap = new(big.Int).Set(tip)
	if head.BaseFee != nil {
		feeCap.Add(feeCap, new(big.Int).Mul(head.BaseFee, big.NewInt(2)))
	}
	return tip, feeCap, nil
}

func (c *Client) submit(ctx context.Context, op, signer string, to common.Address, data []byte, gas *storage.GasSettings) (*Submission, error) {
	from, err := c.signer(ctx, signer)
	if err != nil {
		return nil, err
	}

	if err := c.EnsureNetwork(ctx, c.HomeChainID()); err != nil {
		return nil, &TxError{Op: "ensure_network", Err: err}
	}

	nonce, err := c.eth.PendingNonceAt(ctx, from)
	if err != nil {
		return nil, &TxError{Op: "nonce", Err: err}
	}

	tip, feeCap, err := c.fees(ctx, gas)
	if err != nil {
		return nil, &TxError{Op: "gas_price", Err: err}
	}

	gasLimit, err := c.eth.EstimateGas(ctx, ethereum.CallMsg{
		From:      from,
		To:        &to,
		GasTipCap: tip,
		GasFeeCap: feeCap,
		Value:     big.NewInt(0),
		Data:      data,
	})
	if err != nil {
		c.logger.Debug("gas estimation failed, using default", "op", op, "error", err)
		gasLimit = DefaultGasLimit
	}

	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   c.home.ChainID,
		Nonce:     nonce,
		GasTipCap: tip,
		GasFeeCap: feeCap,
		Gas:       gasLimit,
		To:        &to,
		Value:     big.NewInt(0),
		Data:      data,
	})

	signed, err := c.wallet.SignTx(ctx, from, tx)
	if err != nil {
		return nil, &TxError{Op: "sign", Err: err}
	}

	if err := c.eth.SendTransaction(ctx, signed); err != nil {
		return nil, &TxError{Op: "send", TxHash: signed.Hash().Hex(), Err: err}
	}

	c.logger.Info("transaction submitted",
		"op", op,
		"tx_hash", signed.Hash().Hex(),
		"nonce", nonce,
		"gas_limit", gasLimit)

	return &Submission{TxHash: signed.Hash().Hex(), Nonce: nonce, GasLimit: gasLimit}, nil
}

func gasOf(agent *storage.Agent) *storage.GasSettings {
	if agent == nil {
		return nil
	}
	g := agent.GasSettings.Data()
	return &g
}

// SubmitRegisterAgent mirrors a stored agent into the registry.
func (c *Client) SubmitRegisterAgent(ctx context.Context, agent *storage.Agent, signer string) (*Submission, error) {
	strategy, err := StrategyCode(agent.Strategy)
	if err != nil {
		return nil, err
	}
	risk, err := RiskCode(agent.RiskLevel)
	if err != nil {
		return nil, err
	}
	hash, err := ConfigHash(agent)
	if err != nil {
		return nil, err
	}

	data, err := c.registryABI.Pack("registerAgent", agent.Name, strategy, risk, ToWei(agent.AllocatedAmount), [32]byte(hash))
	if err != nil {
		return nil, &TxError{Op: "pack", Err: err}
	}
	return c.submit(ctx, "register_agent", signer, c.registry, data, gasOf(agent))
}

func (c *Client) SubmitUpdateStatus(ctx context.Context, agentID string, status storage.AgentStatus, signer string) (*Submission, error) {
	key, err := AgentKey(agentID)
	if err != nil {
		return nil, err
	}
	code, err := StatusCode(status)
	if err != nil {
		return nil, err
	}

	data, err := c.registryABI.Pack("updateAgentStatus", key, code)
	if err != nil {
		return nil, &TxError{Op: "pack", Err: err}
	}
	return c.submit(ctx, "update_status", signer, c.registry, data, nil)
}

// TradeAmounts derives the swap size from the signal's position size and
// the agent's allocation, bounded below by the slippage tolerance.
func TradeAmounts(agent *storage.Agent, signal *storage.TradingSignal) (amountIn, minOut *big.Int) {
	hundred := decimal.NewFromInt(100)
	in := agent.AllocatedAmount.Mul(decimal.NewFromInt(int64(signal.PositionSize))).Div(hundred)
	out := in.Mul(hundred.Sub(agent.SlippageTolerance)).Div(hundred)
	return ToWei(in), ToWei(out)
}

func (c *Client) tradeTokens(pair string, typ storage.SignalType) (in, out common.Address, err error) {
	baseSym, quoteSym, ok := strings.Cut(pair, "/")
	if !ok {
		return in, out, fmt.Errorf("malformed pair %q", pair)
	}
	base, ok := c.tokens[strings.ToUpper(baseSym)]
	if !ok {
		return in, out, fmt.Errorf("%w: %s", ErrUnknownToken, baseSym)
	}
	quote, ok := c.tokens[strings.ToUpper(quoteSym)]
	if !ok {
		return in, out, fmt.Errorf("%w: %s", ErrUnknownToken, quoteSym)
	}

	switch typ {
	case storage.SignalBuy:
		return quote, base, nil
	case storage.SignalSell:
		return base, quote, nil
	default:
		return in, out, fmt.Errorf("%w: %s", ErrNotExecutable, typ)
	}
}

// SubmitExecuteSignal sends a swap for a BUY or SELL signal.
func (c *Client) SubmitExecuteSignal(ctx context.Context, agent *storage.Agent, signal *storage.TradingSignal, signer string) (*Submission, error) {
	tokenIn, tokenOut, err := c.tradeTokens(signal.TokenPair, signal.SignalType)
	if err != nil {
		return nil, err
	}

	amountIn, minOut := TradeAmounts(agent, signal)
	if amountIn.Sign() <= 0 {
		return nil, fmt.Errorf("%w: zero trade amount", ErrNotExecutable)
	}

	key, err := AgentKey(agent.ID)
	if err != nil {
		return nil, err
	}
	signalKey, err := SignalKey(signal.ID)
	if err != nil {
		return nil, err
	}

	data, err := c.executorABI.Pack("executeSignal", tradeSignal{
		AgentID:      key,
		TokenIn:      tokenIn,
		TokenOut:     tokenOut,
		AmountIn:     amountIn,
		MinAmountOut: minOut,
		Deadline:     big.NewInt(c.now().Add(ExecutionDeadline).Unix()),
		SignalID:     signalKey,
	})
	if err != nil {
		return nil, &TxError{Op: "pack", Err: err}
	}
	return c.submit(ctx, "execute_signal", signer, c.executor, data, gasOf(agent))
}

// ReadAgent fetches the registry's projection of an agent.
func (c *Client) ReadAgent(ctx context.Context, agentID string) (*OnChainAgent, error) {
	key, err := AgentKey(agentID)
	if err != nil {
		return nil, err
	}
	data, err := c.registryABI.Pack("getAgent", key)
	if err != nil {
		return nil, fmt.Errorf("pack getAgent: %w", err)
	}

	out, err := c.eth.CallContract(ctx, ethereum.CallMsg{To: &c.registry, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("call getAgent: %w", err)
	}

	values, err := c.registryABI.Unpack("getAgent", out)
	if err != nil {
		return nil, fmt.Errorf("unpack getAgent: %w", err)
	}
	if len(values) != 1 {
		return nil, fmt.Errorf("unpack getAgent: %d values", len(values))
	}
	raw, err := toRawAgent(values[0])
	if err != nil {
		return nil, err
	}

	agent := &OnChainAgent{
		ID:              raw.ID,
		Owner:           storage.NormalizeAddress(raw.Owner.Hex()),
		Name:            raw.Name,
		AllocatedAmount: FromWei(raw.AllocatedAmount),
		ConfigHash:      common.Hash(raw.ConfigHash).Hex(),
		CreatedAt:       time.Unix(raw.CreatedAt.Int64(), 0).UTC(),
		UpdatedAt:       time.Unix(raw.UpdatedAt.Int64(), 0).UTC(),
	}
	agent.Strategy, _ = reverse(strategyCodes, raw.Strategy)
	agent.RiskLevel, _ = reverse(riskCodes, raw.RiskLevel)
	agent.Status, _ = reverse(statusCodes, raw.Status)
	return agent, nil
}

func toRawAgent(v any) (raw rawAgent, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("convert getAgent result: %v", r)
		}
	}()
	raw = *abi.ConvertType(v, new(rawAgent)).(*rawAgent)
	return raw, nil
}
