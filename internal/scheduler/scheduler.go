package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/camuig/agentfi/internal/config"
	"github.com/camuig/agentfi/internal/logger"
	"github.com/camuig/agentfi/internal/orchestrator"
	"github.com/camuig/agentfi/internal/storage"
)

type AgentLister interface {
	ListAgentsByStatus(ctx context.Context, status storage.AgentStatus) ([]storage.Agent, error)
}

type SignalRunner interface {
	GenerateSignal(ctx context.Context, agentID, wallet string, autoExecute bool) (*orchestrator.GenerateSignalResult, error)
}

type ErrorNotifier interface {
	NotifyError(op string, err error)
}

// Scheduler generates a signal for every active agent on a fixed interval.
type Scheduler struct {
	agents   AgentLister
	runner   SignalRunner
	notifier ErrorNotifier
	config   *config.Config
	logger   *logger.Logger
}

func NewScheduler(
	agents AgentLister,
	runner SignalRunner,
	notifier ErrorNotifier,
	cfg *config.Config,
	log *logger.Logger,
) *Scheduler {
	return &Scheduler{
		agents:   agents,
		runner:   runner,
		notifier: notifier,
		config:   cfg,
		logger:   log,
	}
}

func (s *Scheduler) Run(ctx context.Context) {
	interval := s.config.SignalInterval()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("scheduler started", "interval", interval.String(), "auto_execute", s.config.Signals.AutoExecute)

	// Run immediately on start
	s.runCycle(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return
		case <-ticker.C:
			s.runCycle(ctx)
		}
	}
}

// CycleStats summarizes one pass over the active agents.
type CycleStats struct {
	Agents   int
	Signals  int
	Executed int
	Failed   int
}

func (s *Scheduler) runCycle(ctx context.Context) (stats CycleStats) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("panic in scheduler cycle", "panic", fmt.Sprint(r))
			s.notifier.NotifyError("scheduler panic", fmt.Errorf("%v", r))
		}
	}()

	agents, err := s.agents.ListAgentsByStatus(ctx, storage.StatusActive)
	if err != nil {
		s.logger.Error("list active agents", "error", err)
		return stats
	}
	stats.Agents = len(agents)
	if len(agents) == 0 {
		s.logger.Info("no active agents, skipping cycle")
		return stats
	}

	s.logger.Info("starting signal cycle", "agents", len(agents))

	for _, agent := range agents {
		if ctx.Err() != nil {
			break
		}
		s.runAgent(ctx, &agent, &stats)
	}

	s.logger.Info("signal cycle completed",
		"signals", stats.Signals,
		"executed", stats.Executed,
		"failed", stats.Failed)
	return stats
}

func (s *Scheduler) runAgent(ctx context.Context, agent *storage.Agent, stats *CycleStats) {
	defer func() {
		if r := recover(); r != nil {
			stats.Failed++
			s.logger.Error("panic generating signal", "agent_id", agent.ID, "panic", fmt.Sprint(r))
		}
	}()

	res, err := s.runner.GenerateSignal(ctx, agent.ID, agent.WalletAddress, s.config.Signals.AutoExecute)
	if err != nil {
		stats.Failed++
		s.logger.Error("generate signal", "agent_id", agent.ID, "error", err)
		return
	}
	stats.Signals++
	if res.Executed() {
		stats.Executed++
	}
}
