package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/camuig/agentfi/internal/storage"
)

const (
	flowGenerateSignal = "generate_signal"
	flowSettleSignal   = "settle_signal"
)

type GenerateSignalResult struct {
	Signal *storage.TradingSignal `json:"signal"`
	// TxHash is set only when the signal was submitted for execution.
	TxHash string `json:"tx_hash,omitempty"`
	Steps  Steps  `json:"steps"`
}

func (r *GenerateSignalResult) Executed() bool {
	return r.TxHash != ""
}

func (r *GenerateSignalResult) Degraded() bool {
	return r.Steps.Degraded()
}

// GenerateSignal produces a signal for the agent and, when autoExecute is set
// and the signal is actionable, submits it to the ledger on behalf of wallet.
// An empty wallet means the agent's owner.
func (o *Orchestrator) GenerateSignal(ctx context.Context, agentID, wallet string, autoExecute bool) (*GenerateSignalResult, error) {
	f := newFlow(flowGenerateSignal, o.logger, "agent_id", agentID)
	res := &GenerateSignalResult{}

	var agent *storage.Agent
	err := f.run(StepGenerateSignal, func() (string, error) {
		var err error
		agent, err = o.store.GetAgent(ctx, agentID)
		if err != nil {
			return "", err
		}
		res.Signal, err = o.signals.Generate(ctx, agent)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s %d%%", res.Signal.SignalType, res.Signal.ConfidenceScore), nil
	})
	if err != nil {
		o.notifier.NotifyError("generate signal "+agentID, err)
		return nil, f.fail(ErrSignalGenerationFailed, StepGenerateSignal, err)
	}
	if wallet == "" {
		wallet = agent.WalletAddress
	}

	if autoExecute && res.Signal.SignalType != storage.SignalHold {
		res.TxHash = o.execute(ctx, f, agent, res.Signal, wallet)
	}

	_ = f.run(StepTouchAgent, func() (string, error) {
		return "", o.store.TouchLastSignal(ctx, agent.ID, o.now())
	})

	res.Steps = f.finish()
	o.notifier.NotifySignal(agent, res.Signal, res.TxHash)
	return res, nil
}

// execute runs the precondition, submission and settlement steps and returns
// the transaction hash, or "" when nothing was submitted.
func (o *Orchestrator) execute(ctx context.Context, f *flow, agent *storage.Agent, signal *storage.TradingSignal, wallet string) string {
	if o.ledger == nil {
		f.skip(StepPreconditions, ErrLedgerNotConfigured.Error())
		return ""
	}

	err := f.run(StepPreconditions, func() (string, error) {
		connected, err := o.ledger.Connect(ctx)
		switch {
		case err != nil:
			return "", err
		case connected == "":
			return "", skipStep("wallet not connected")
		case !strings.EqualFold(connected, wallet):
			return "", skipStep("wallet address mismatch")
		}
		return connected, nil
	})
	if err != nil {
		return ""
	}

	var txHash string
	var gasLimit uint64
	err = f.run(StepLedgerExecute, func() (string, error) {
		sub, err := o.ledger.SubmitExecuteSignal(ctx, agent, signal, wallet)
		if err != nil {
			return "", err
		}
		txHash, gasLimit = sub.TxHash, sub.GasLimit
		return sub.TxHash, nil
	})
	if err != nil {
		return ""
	}

	_ = f.run(StepSettle, func() (string, error) {
		price := o.executionPrice(ctx, signal)
		settled, applied, err := o.settle(ctx, signal.ID, price, gasLimit, txHash)
		if err != nil {
			return "", err
		}
		*signal = *settled
		if !applied {
			return "already executed", nil
		}
		return price.String(), nil
	})
	return txHash
}

// executionPrice is the current quote for the signal's pair, or its price
// target when no quote is available.
func (o *Orchestrator) executionPrice(ctx context.Context, signal *storage.TradingSignal) decimal.Decimal {
	if o.quoter != nil {
		price, err := o.quoter.Quote(ctx, signal.TokenPair)
		if err == nil && price.IsPositive() {
			return price
		}
		o.logger.Debug("quote unavailable for settlement", "pair", signal.TokenPair, "error", err)
	}
	if signal.PriceTarget != nil {
		return *signal.PriceTarget
	}
	return decimal.Zero
}

func (o *Orchestrator) settle(ctx context.Context, signalID string, price decimal.Decimal, gasUsed uint64, txHash string) (*storage.TradingSignal, bool, error) {
	signal, applied, err := o.store.MarkSignalExecuted(ctx, signalID, storage.Execution{
		At:      o.now(),
		Price:   price,
		GasUsed: gasUsed,
		TxHash:  txHash,
	})
	if err != nil {
		return nil, false, fmt.Errorf("mark signal executed: %w", err)
	}
	if applied {
		if _, err := o.store.IncrementTrades(ctx, signal.AgentID); err != nil {
			o.logger.Warn("failed to count trade", "agent_id", signal.AgentID, "error", err)
		}
	}
	return signal, applied, nil
}

type SettleResult struct {
	Signal *storage.TradingSignal `json:"signal"`
	// Applied is false when the signal had already been executed.
	Applied bool `json:"applied"`
}

// SettleSignal records an execution for a signal. Settling the same signal
// twice leaves the first execution in place.
func (o *Orchestrator) SettleSignal(ctx context.Context, signalID string, price decimal.Decimal, gasUsed uint64, txHash string) (*SettleResult, error) {
	f := newFlow(flowSettleSignal, o.logger, "signal_id", signalID)

	var res SettleResult
	err := f.run(StepSettle, func() (string, error) {
		signal, applied, err := o.settle(ctx, signalID, price, gasUsed, txHash)
		if err != nil {
			return "", err
		}
		res = SettleResult{Signal: signal, Applied: applied}
		if !applied {
			return "already executed", nil
		}
		return txHash, nil
	})
	if err != nil {
		return nil, f.fail(ErrSettlementFailed, StepSettle, err)
	}
	f.finish()
	return &res, nil
}
