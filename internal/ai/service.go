package ai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/camuig/agentfi/internal/config"
	"github.com/camuig/agentfi/internal/logger"
	"github.com/camuig/agentfi/internal/metrics"
	"github.com/camuig/agentfi/internal/storage"
)

// Generator produces an unpersisted signal. *RemoteClient implements it.
type Generator interface {
	Generate(ctx context.Context, req *Request) (*Signal, error)
}

type SignalStore interface {
	CreateSignal(ctx context.Context, signal *storage.TradingSignal) error
}

type Quoter interface {
	Quote(ctx context.Context, pair string) (decimal.Decimal, error)
}

// Service picks a generator and persists the result. It is the only place
// signals are written.
type Service struct {
	remote Generator
	sim    *Simulator
	store  SignalStore
	quoter Quoter
	cfg    *config.Config
	logger *logger.Logger
	now    func() time.Time
}

// NewService wires the generator. remote and quoter may be nil.
func NewService(remote Generator, sim *Simulator, store SignalStore, quoter Quoter, cfg *config.Config, log *logger.Logger) *Service {
	return &Service{
		remote: remote,
		sim:    sim,
		store:  store,
		quoter: quoter,
		cfg:    cfg,
		logger: log,
		now:    time.Now,
	}
}

func (s *Service) request(ctx context.Context, agent *storage.Agent) *Request {
	req := &Request{
		AgentID:         agent.ID,
		TokenPair:       agent.PrimaryPair(s.cfg.Signals.DefaultTokenPair),
		Strategy:        agent.Strategy,
		RiskLevel:       agent.RiskLevel,
		AllocatedAmount: agent.AllocatedAmount,
		Now:             s.now(),
	}
	if s.quoter != nil {
		price, err := s.quoter.Quote(ctx, req.TokenPair)
		if err != nil {
			s.logger.Debug("quote unavailable for prompt", "pair", req.TokenPair, "error", err)
		} else {
			req.Quote = &price
		}
	}
	return req
}

// candidate tries the remote path first and falls back to the simulator on any failure.
func (s *Service) candidate(ctx context.Context, req *Request) *Signal {
	if s.remote != nil {
		signal, err := s.remote.Generate(ctx, req)
		if err == nil {
			return signal
		}
		if !errors.Is(err, ErrNotConfigured) {
			s.logger.Warn("remote signal generation failed, using local fallback",
				"agent_id", req.AgentID,
				"pair", req.TokenPair,
				"error", err)
		}
	}
	return s.sim.Generate(req)
}

// Generate produces, persists and returns a signal for the agent's primary pair.
func (s *Service) Generate(ctx context.Context, agent *storage.Agent) (*storage.TradingSignal, error) {
	req := s.request(ctx, agent)
	signal := s.candidate(ctx, req)

	record := signal.Record(agent.ID)
	if err := s.store.CreateSignal(ctx, record); err != nil {
		return nil, fmt.Errorf("persist signal: %w", err)
	}
	metrics.SignalsGenerated.WithLabelValues(signal.Source, string(signal.Type)).Inc()

	s.logger.Info("signal generated",
		"agent_id", agent.ID,
		"signal_id", record.ID,
		"type", record.SignalType,
		"confidence", record.ConfidenceScore,
		"position_size", record.PositionSize,
		"source", record.Source)

	return record, nil
}

// Probe generates an unpersisted signal for the default pair. With a remote
// endpoint configured its failure is reported instead of falling back.
func (s *Service) Probe(ctx context.Context) (string, error) {
	req := &Request{
		AgentID:         "health-check",
		TokenPair:       s.cfg.Signals.DefaultTokenPair,
		Strategy:        storage.StrategyTrend,
		RiskLevel:       storage.RiskMedium,
		AllocatedAmount: decimal.NewFromInt(100),
		Now:             s.now(),
	}
	if s.remote != nil {
		_, err := s.remote.Generate(ctx, req)
		switch {
		case err == nil:
			return SourceRemote, nil
		case !errors.Is(err, ErrNotConfigured):
			return SourceRemote, err
		}
	}
	s.sim.Generate(req)
	return SourceLocal, nil
}

func (s *Service) AnalyzeMarket(ctx context.Context, pairs []string) (*MarketAnalysis, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(pairs) == 0 {
		pairs = []string{s.cfg.Signals.DefaultTokenPair}
	}
	return s.sim.AnalyzeMarket(pairs), nil
}
