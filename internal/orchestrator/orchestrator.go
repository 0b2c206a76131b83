// Package orchestrator sequences the record store, the signal generator and
// the ledger into the agent use cases. Only the record store write (or the
// signal generation) is critical in each flow; ledger and AI follow-ups are
// best-effort and reported as step results.
package orchestrator

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/camuig/agentfi/internal/ai"
	"github.com/camuig/agentfi/internal/chain"
	"github.com/camuig/agentfi/internal/logger"
	"github.com/camuig/agentfi/internal/storage"
)

// RecordStore is the source of truth. *storage.Repository implements it.
type RecordStore interface {
	CreateAgent(ctx context.Context, agent *storage.Agent) error
	GetAgent(ctx context.Context, id string) (*storage.Agent, error)
	UpdateAgentStatus(ctx context.Context, id string, status storage.AgentStatus) (*storage.Agent, error)
	SetAgentRegistration(ctx context.Context, id, txHash string) (*storage.Agent, error)
	TouchLastSignal(ctx context.Context, id string, at time.Time) error
	IncrementTrades(ctx context.Context, id string) (*storage.Agent, error)
	GetSignal(ctx context.Context, id string) (*storage.TradingSignal, error)
	ListSignalsByAgent(ctx context.Context, agentID string, limit int) ([]storage.TradingSignal, error)
	MarkSignalExecuted(ctx context.Context, id string, exec storage.Execution) (*storage.TradingSignal, bool, error)
	SignalAccuracy(ctx context.Context, agentID string) (*storage.SignalAccuracy, error)
	Ping(ctx context.Context) error
}

// SignalGenerator is implemented by *ai.Service.
type SignalGenerator interface {
	Generate(ctx context.Context, agent *storage.Agent) (*storage.TradingSignal, error)
	AnalyzeMarket(ctx context.Context, pairs []string) (*ai.MarketAnalysis, error)
	Probe(ctx context.Context) (string, error)
}

// Ledger is implemented by *chain.Client. Submissions return once the
// transaction is sent; nothing waits for confirmation.
type Ledger interface {
	Connect(ctx context.Context) (string, error)
	CheckNetwork(ctx context.Context) (bool, error)
	HomeChainID() int64
	Ping(ctx context.Context) error
	SubmitRegisterAgent(ctx context.Context, agent *storage.Agent, signer string) (*chain.Submission, error)
	SubmitUpdateStatus(ctx context.Context, agentID string, status storage.AgentStatus, signer string) (*chain.Submission, error)
	SubmitExecuteSignal(ctx context.Context, agent *storage.Agent, signal *storage.TradingSignal, signer string) (*chain.Submission, error)
	ReadAgent(ctx context.Context, agentID string) (*chain.OnChainAgent, error)
}

type Quoter interface {
	Quote(ctx context.Context, pair string) (decimal.Decimal, error)
}

// Notifier is implemented by *telegram.Notifier.
type Notifier interface {
	NotifyAgentCreated(agent *storage.Agent, txHash string)
	NotifySignal(agent *storage.Agent, signal *storage.TradingSignal, txHash string)
	NotifyStatusChanged(agent *storage.Agent, from storage.AgentStatus, txHash string)
	NotifyError(op string, err error)
}

type nopNotifier struct{}

func (nopNotifier) NotifyAgentCreated(*storage.Agent, string) {}
func (nopNotifier) NotifySignal(*storage.Agent, *storage.TradingSignal, string) {}
func (nopNotifier) NotifyStatusChanged(*storage.Agent, storage.AgentStatus, string) {}
func (nopNotifier) NotifyError(string, error) {}

type Orchestrator struct {
	store    RecordStore
	signals  SignalGenerator
	ledger   Ledger
	quoter   Quoter
	notifier Notifier
	logger   *logger.Logger
	now      func() time.Time
}

// New wires the orchestrator. ledger, quoter and notifier may be nil: ledger
// steps are then skipped, settlement falls back to the signal's price target
// and notifications are dropped.
func New(
	store RecordStore,
	signals SignalGenerator,
	ledger Ledger,
	quoter Quoter,
	notifier Notifier,
	log *logger.Logger,
) *Orchestrator {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &Orchestrator{
		store:    store,
		signals:  signals,
		ledger:   ledger,
		quoter:   quoter,
		notifier: notifier,
		logger:   log,
		now:      time.Now,
	}
}
