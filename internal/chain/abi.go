package chain

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/camuig/agentfi/internal/storage"
)

const registryABI = `[
	{"type":"function","name":"registerAgent","stateMutability":"nonpayable",
	 "inputs":[{"name":"_name","type":"string"},{"name":"_strategy","type":"uint8"},{"name":"_riskLevel","type":"uint8"},{"name":"_allocatedAmount","type":"uint256"},{"name":"_configHash","type":"bytes32"}],
	 "outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"updateAgentStatus","stateMutability":"nonpayable",
	 "inputs":[{"name":"_agentId","type":"uint256"},{"name":"_newStatus","type":"uint8"}],
	 "outputs":[]},
	{"type":"function","name":"getAgent","stateMutability":"view",
	 "inputs":[{"name":"_agentId","type":"uint256"}],
	 "outputs":[{"name":"","type":"tuple","components":[
		{"name":"id","type":"uint256"},
		{"name":"owner","type":"address"},
		{"name":"name","type":"string"},
		{"name":"strategy","type":"uint8"},
		{"name":"riskLevel","type":"uint8"},
		{"name":"allocatedAmount","type":"uint256"},
		{"name":"status","type":"uint8"},
		{"name":"configHash","type":"bytes32"},
		{"name":"createdAt","type":"uint256"},
		{"name":"updatedAt","type":"uint256"}]}]}
]`

const executorABI = `[
	{"type":"function","name":"executeSignal","stateMutability":"nonpayable",
	 "inputs":[{"name":"_signal","type":"tuple","components":[
		{"name":"agentId","type":"uint256"},
		{"name":"tokenIn","type":"address"},
		{"name":"tokenOut","type":"address"},
		{"name":"amountIn","type":"uint256"},
		{"name":"minAmountOut","type":"uint256"},
		{"name":"deadline","type":"uint256"},
		{"name":"signalId","type":"bytes32"}]}],
	 "outputs":[{"name":"","type":"uint256"}]}
]`

// tradeSignal mirrors the executor's signal tuple.
type tradeSignal struct {
	AgentID      *big.Int       `abi:"agentId"`
	TokenIn      common.Address `abi:"tokenIn"`
	TokenOut     common.Address `abi:"tokenOut"`
	AmountIn     *big.Int       `abi:"amountIn"`
	MinAmountOut *big.Int       `abi:"minAmountOut"`
	Deadline     *big.Int       `abi:"deadline"`
	SignalID     [32]byte       `abi:"signalId"`
}

// rawAgent mirrors the registry's agent tuple, field for field.
type rawAgent struct {
	ID              *big.Int       `abi:"id"`
	Owner           common.Address `abi:"owner"`
	Name            string         `abi:"name"`
	Strategy        uint8          `abi:"strategy"`
	RiskLevel       uint8          `abi:"riskLevel"`
	AllocatedAmount *big.Int       `abi:"allocatedAmount"`
	Status          uint8          `abi:"status"`
	ConfigHash      [32]byte       `abi:"configHash"`
	CreatedAt       *big.Int       `abi:"createdAt"`
	UpdatedAt       *big.Int       `abi:"updatedAt"`
}

var (
	strategyCodes = map[storage.Strategy]uint8{
		storage.StrategyTrend:         0,
		storage.StrategyMomentum:      1,
		storage.StrategyMeanReversion: 2,
	}
	riskCodes = map[storage.RiskLevel]uint8{
		storage.RiskLow:    0,
		storage.RiskMedium: 1,
		storage.RiskHigh:   2,
	}
	statusCodes = map[storage.AgentStatus]uint8{
		storage.StatusCreated: 0,
		storage.StatusActive:  1,
		storage.StatusPaused:  2,
		storage.StatusStopped: 3,
	}
)

func StrategyCode(s storage.Strategy) (uint8, error) {
	code, ok := strategyCodes[s]
	if !ok {
		return 0, fmt.Errorf("unknown strategy %q", s)
	}
	return code, nil
}

func RiskCode(r storage.RiskLevel) (uint8, error) {
	code, ok := riskCodes[r]
	if !ok {
		return 0, fmt.Errorf("unknown risk level %q", r)
	}
	return code, nil
}

func StatusCode(s storage.AgentStatus) (uint8, error) {
	code, ok := statusCodes[s]
	if !ok {
		return 0, fmt.Errorf("unknown status %q", s)
	}
	return code, nil
}

func reverse[K comparable](m map[K]uint8, code uint8) (K, bool) {
	for k, v := range m {
		if v == code {
			return k, true
		}
	}
	var zero K
	return zero, false
}
