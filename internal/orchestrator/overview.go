package orchestrator

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/camuig/agentfi/internal/ai"
	"github.com/camuig/agentfi/internal/chain"
	"github.com/camuig/agentfi/internal/storage"
)

const (
	flowAgentOverview = "agent_overview"

	overviewSignalLimit = 10
)

// AgentOverview combines the stored agent with its on-chain projection and a
// market read. Only the stored agent and its signals are required.
type AgentOverview struct {
	Agent       *storage.Agent          `json:"agent"`
	Signals     []storage.TradingSignal `json:"signals"`
	Accuracy    *storage.SignalAccuracy `json:"accuracy,omitempty"`
	OnChain     *chain.OnChainAgent     `json:"on_chain,omitempty"`
	Analysis    *ai.MarketAnalysis      `json:"analysis,omitempty"`
	ChainSynced bool                    `json:"chain_synced"`
	LastUpdated time.Time               `json:"last_updated"`
	Steps       Steps                   `json:"steps"`
}

func (o *Orchestrator) AgentOverview(ctx context.Context, agentID string) (*AgentOverview, error) {
	f := newFlow(flowAgentOverview, o.logger, "agent_id", agentID)
	res := &AgentOverview{}

	err := f.run(StepLoadAgent, func() (string, error) {
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			res.Agent, err = o.store.GetAgent(gctx, agentID)
			return err
		})
		g.Go(func() error {
			var err error
			res.Signals, err = o.store.ListSignalsByAgent(gctx, agentID, overviewSignalLimit)
			return err
		})
		if err := g.Wait(); err != nil {
			return "", err
		}
		return fmt.Sprintf("%d signals", len(res.Signals)), nil
	})
	if err != nil {
		return nil, f.fail(ErrLoadFailed, StepLoadAgent, err)
	}

	_ = f.run(StepAccuracy, func() (string, error) {
		var err error
		res.Accuracy, err = o.store.SignalAccuracy(ctx, agentID)
		return "", err
	})

	if o.ledger == nil {
		f.skip(StepReadChain, ErrLedgerNotConfigured.Error())
	} else {
		_ = f.run(StepReadChain, func() (string, error) {
			var err error
			res.OnChain, err = o.ledger.ReadAgent(ctx, agentID)
			return "", err
		})
	}
	res.ChainSynced = res.OnChain != nil

	_ = f.run(StepAnalyzeMarket, func() (string, error) {
		var err error
		res.Analysis, err = o.signals.AnalyzeMarket(ctx, res.Agent.TokenPairs)
		return "", err
	})

	res.LastUpdated = o.now().UTC()
	res.Steps = f.finish()
	return res, nil
}
