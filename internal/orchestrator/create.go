package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"

	"github.com/camuig/agentfi/internal/ai"
	"github.com/camuig/agentfi/internal/storage"
)

const flowCreateAgent = "create_agent"

type CreateAgentInput struct {
	WalletAddress     string               `json:"wallet_address"`
	Name              string               `json:"name"`
	Strategy          storage.Strategy     `json:"strategy"`
	RiskLevel         storage.RiskLevel    `json:"risk_level"`
	AllocatedAmount   decimal.Decimal      `json:"allocated_amount"`
	TokenPairs        []string             `json:"token_pairs"`
	GasSettings       *storage.GasSettings `json:"gas_settings,omitempty"`
	SlippageTolerance decimal.Decimal      `json:"slippage_tolerance"`
	// Status defaults to created. An agent created active is seeded with a first signal.
	Status storage.AgentStatus `json:"status,omitempty"`
}

func (in *CreateAgentInput) agent() *storage.Agent {
	gas := storage.DefaultGasSettings()
	if in.GasSettings != nil {
		gas = *in.GasSettings
	}
	pairs := make([]string, 0, len(in.TokenPairs))
	for _, p := range in.TokenPairs {
		pairs = append(pairs, strings.ToUpper(strings.TrimSpace(p)))
	}
	if len(pairs) == 0 {
		pairs = storage.DefaultTokenPairs()
	}
	slippage := in.SlippageTolerance
	if slippage.IsZero() {
		slippage = storage.DefaultSlippageTolerance
	}
	return &storage.Agent{
		WalletAddress:     in.WalletAddress,
		Name:              strings.TrimSpace(in.Name),
		Strategy:          in.Strategy,
		RiskLevel:         in.RiskLevel,
		AllocatedAmount:   in.AllocatedAmount,
		Status:            in.Status,
		TokenPairs:        datatypes.JSONSlice[string](pairs),
		GasSettings:       datatypes.NewJSONType(gas),
		SlippageTolerance: slippage,
	}
}

type CreateAgentResult struct {
	Agent *storage.Agent `json:"agent"`
	// TxHash is empty when the on-chain registration did not happen; it can
	// be retried later without touching the stored agent.
	TxHash        string                 `json:"tx_hash,omitempty"`
	Analysis      *ai.MarketAnalysis     `json:"analysis,omitempty"`
	InitialSignal *storage.TradingSignal `json:"initial_signal,omitempty"`
	Steps         Steps                  `json:"steps"`
}

// OnChain reports whether the registration transaction was submitted.
func (r *CreateAgentResult) OnChain() bool {
	return r.TxHash != ""
}

func (r *CreateAgentResult) Degraded() bool {
	return r.Steps.Degraded()
}

// CreateAgent stores the agent, then registers it on-chain and seeds it with
// a market analysis. Only the store write can fail the call.
func (o *Orchestrator) CreateAgent(ctx context.Context, in CreateAgentInput) (*CreateAgentResult, error) {
	f := newFlow(flowCreateAgent, o.logger, "wallet", storage.NormalizeAddress(in.WalletAddress))
	res := &CreateAgentResult{}

	if in.Status != "" && in.Status != storage.StatusCreated && in.Status != storage.StatusActive {
		err := fmt.Errorf("agents start as created or active, got %q: %w", in.Status, storage.ErrValidation)
		f.record(StepResult{Name: StepDBWrite, Status: StepFailed, Err: err, Error: err.Error()})
		return nil, f.fail(ErrCreationFailed, StepDBWrite, err)
	}

	agent := in.agent()
	err := f.run(StepDBWrite, func() (string, error) {
		if err := o.store.CreateAgent(ctx, agent); err != nil {
			return "", err
		}
		return agent.ID, nil
	})
	if err != nil {
		o.notifier.NotifyError("create agent "+in.Name, err)
		return nil, f.fail(ErrCreationFailed, StepDBWrite, err)
	}
	res.Agent = agent
	f.logger = f.logger.With("agent_id", agent.ID)

	if o.ledger == nil {
		f.skip(StepLedgerWrite, ErrLedgerNotConfigured.Error())
	} else {
		_ = f.run(StepLedgerWrite, func() (string, error) {
			sub, err := o.ledger.SubmitRegisterAgent(ctx, agent, in.WalletAddress)
			if err != nil {
				return "", err
			}
			res.TxHash = sub.TxHash
			if updated, err := o.store.SetAgentRegistration(ctx, agent.ID, sub.TxHash); err != nil {
				f.logger.Warn("failed to record registration tx", "tx_hash", sub.TxHash, "error", err)
			} else {
				res.Agent = updated
			}
			return sub.TxHash, nil
		})
	}

	_ = f.run(StepAISeed, func() (string, error) {
		analysis, err := o.signals.AnalyzeMarket(ctx, agent.TokenPairs)
		if err != nil {
			return "", fmt.Errorf("analyze market: %w", err)
		}
		res.Analysis = analysis
		if agent.Status != storage.StatusActive {
			return fmt.Sprintf("sentiment %s", analysis.Sentiment), nil
		}
		signal, err := o.signals.Generate(ctx, agent)
		if err != nil {
			return "", fmt.Errorf("generate first signal: %w", err)
		}
		res.InitialSignal = signal
		if err := o.store.TouchLastSignal(ctx, agent.ID, o.now()); err != nil {
			f.logger.Warn("failed to touch last signal time", "error", err)
		}
		return fmt.Sprintf("sentiment %s, first signal %s", analysis.Sentiment, signal.SignalType), nil
	})

	res.Steps = f.finish()
	o.notifier.NotifyAgentCreated(res.Agent, res.TxHash)
	return res, nil
}

const flowRetryRegistration = "retry_registration"

// RetryRegistration submits the on-chain registration for a stored agent
// whose original attempt did not go through. Unlike in CreateAgent the
// ledger step is the whole point here, so its failure is returned.
func (o *Orchestrator) RetryRegistration(ctx context.Context, agentID, wallet string) (*storage.Agent, string, error) {
	f := newFlow(flowRetryRegistration, o.logger, "agent_id", agentID)

	var agent *storage.Agent
	err := f.run(StepLoadAgent, func() (string, error) {
		var err error
		agent, err = o.store.GetAgent(ctx, agentID)
		if err != nil {
			return "", err
		}
		if agent.RegistrationTxHash != nil {
			return "", fmt.Errorf("agent already registered in %s: %w", *agent.RegistrationTxHash, storage.ErrConflict)
		}
		return "", nil
	})
	if err != nil {
		return nil, "", f.fail(ErrRegistrationFailed, StepLoadAgent, err)
	}
	if o.ledger == nil {
		return nil, "", f.fail(ErrRegistrationFailed, StepLedgerWrite, ErrLedgerNotConfigured)
	}
	if wallet == "" {
		wallet = agent.WalletAddress
	}

	var txHash string
	err = f.run(StepLedgerWrite, func() (string, error) {
		sub, err := o.ledger.SubmitRegisterAgent(ctx, agent, wallet)
		if err != nil {
			return "", err
		}
		txHash = sub.TxHash
		return txHash, nil
	})
	if err != nil {
		return nil, "", f.fail(ErrRegistrationFailed, StepLedgerWrite, err)
	}

	err = f.run(StepDBUpdate, func() (string, error) {
		updated, err := o.store.SetAgentRegistration(ctx, agentID, txHash)
		if err == nil {
			agent = updated
		}
		return "", err
	})
	f.finish()
	return agent, txHash, err
}
