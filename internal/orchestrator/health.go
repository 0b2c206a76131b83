package orchestrator

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/camuig/agentfi/internal/metrics"
)

const (
	ComponentDatabase   = "database"
	ComponentAI         = "ai"
	ComponentBlockchain = "blockchain"
)

type Health struct {
	Database   bool              `json:"database"`
	AI         bool              `json:"ai"`
	Blockchain bool              `json:"blockchain"`
	Overall    bool              `json:"overall"`
	Details    map[string]string `json:"details,omitempty"`
	CheckedAt  time.Time         `json:"checked_at"`
}

type probe struct {
	component string
	check     func(ctx context.Context) (string, error)
}

// HealthCheck probes the three systems concurrently. A failing or panicking
// probe does not stop the others; Overall is true only when all pass.
func (o *Orchestrator) HealthCheck(ctx context.Context) *Health {
	probes := []probe{
		{ComponentDatabase, func(ctx context.Context) (string, error) {
			return "", o.store.Ping(ctx)
		}},
		{ComponentAI, func(ctx context.Context) (string, error) {
			source, err := o.signals.Probe(ctx)
			return "source " + source, err
		}},
		{ComponentBlockchain, o.probeLedger},
	}

	passed := make([]bool, len(probes))
	details := make([]string, len(probes))

	var g errgroup.Group
	for i, p := range probes {
		g.Go(func() error {
			passed[i], details[i] = o.runProbe(ctx, p)
			return nil
		})
	}
	_ = g.Wait()

	h := &Health{Details: make(map[string]string, len(probes)), CheckedAt: o.now().UTC()}
	for i, p := range probes {
		switch p.component {
		case ComponentDatabase:
			h.Database = passed[i]
		case ComponentAI:
			h.AI = passed[i]
		case ComponentBlockchain:
			h.Blockchain = passed[i]
		}
		if details[i] != "" {
			h.Details[p.component] = details[i]
		}
	}
	h.Overall = h.Database && h.AI && h.Blockchain

	o.logger.Info("system health check",
		"database", h.Database,
		"ai", h.AI,
		"blockchain", h.Blockchain,
		"overall", h.Overall)
	return h
}

func (o *Orchestrator) runProbe(ctx context.Context, p probe) (ok bool, detail string) {
	defer func() {
		if r := recover(); r != nil {
			ok, detail = false, fmt.Sprintf("panic: %v", r)
			o.logger.Error("health probe panicked", "component", p.component, "panic", fmt.Sprint(r))
		}
		gauge := 0.0
		if ok {
			gauge = 1
		}
		metrics.HealthStatus.WithLabelValues(p.component).Set(gauge)
	}()

	detail, err := p.check(ctx)
	if err != nil {
		o.logger.Warn("health probe failed", "component", p.component, "error", err)
		return false, err.Error()
	}
	return true, detail
}

// probeLedger checks that the RPC endpoint serves the home chain and that
// the wallet is on it.
func (o *Orchestrator) probeLedger(ctx context.Context) (string, error) {
	if o.ledger == nil {
		return "", ErrLedgerNotConfigured
	}
	if err := o.ledger.Ping(ctx); err != nil {
		return "", err
	}
	ok, err := o.ledger.CheckNetwork(ctx)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("wallet is not on chain %d", o.ledger.HomeChainID())
	}
	return fmt.Sprintf("chain %d", o.ledger.HomeChainID()), nil
}
