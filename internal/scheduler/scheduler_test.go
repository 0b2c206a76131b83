package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/camuig/agentfi/internal/config"
	"github.com/camuig/agentfi/internal/logger"
	"github.com/camuig/agentfi/internal/orchestrator"
	"github.com/camuig/agentfi/internal/storage"
)

type fakeLister struct {
	agents []storage.Agent
	err    error
	status storage.AgentStatus
}

func (f *fakeLister) ListAgentsByStatus(ctx context.Context, status storage.AgentStatus) ([]storage.Agent, error) {
	f.status = status
	return f.agents, f.err
}

type call struct {
	agentID, wallet string
	autoExecute     bool
}

type fakeRunner struct {
	mu     sync.Mutex
	calls  []call
	fail   map[string]error
	panics map[string]bool
	txHash string
}

func (f *fakeRunner) GenerateSignal(ctx context.Context, agentID, wallet string, autoExecute bool) (*orchestrator.GenerateSignalResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, call{agentID, wallet, autoExecute})
	f.mu.Unlock()
	if f.panics[agentID] {
		panic("nil agent")
	}
	if err := f.fail[agentID]; err != nil {
		return nil, err
	}
	return &orchestrator.GenerateSignalResult{
		Signal: &storage.TradingSignal{AgentID: agentID, SignalType: storage.SignalBuy},
		TxHash: f.txHash,
	}, nil
}

type fakeNotifier struct {
	errors []string
}

func (f *fakeNotifier) NotifyError(op string, err error) {
	f.errors = append(f.errors, op)
}

func testConfig(autoExecute bool) *config.Config {
	return &config.Config{Signals: config.SignalsConfig{Interval: "1h", AutoExecute: autoExecute}}
}

func activeAgents(ids ...string) []storage.Agent {
	agents := make([]storage.Agent, len(ids))
	for i, id := range ids {
		agents[i] = storage.Agent{ID: id, WalletAddress: "0xowner" + id, Status: storage.StatusActive}
	}
	return agents
}

func TestRunCycle_GeneratesForEveryActiveAgent(t *testing.T) {
	lister := &fakeLister{agents: activeAgents("a", "b")}
	runner := &fakeRunner{txHash: "0x01"}
	s := NewScheduler(lister, runner, &fakeNotifier{}, testConfig(true), logger.Nop())

	stats := s.runCycle(context.Background())

	assert.Equal(t, storage.StatusActive, lister.status)
	assert.Equal(t, []call{{"a", "0xownera", true}, {"b", "0xownerb", true}}, runner.calls)
	assert.Equal(t, CycleStats{Agents: 2, Signals: 2, Executed: 2}, stats)
}

func TestRunCycle_OneFailureDoesNotStopCycle(t *testing.T) {
	runner := &fakeRunner{
		fail:   map[string]error{"a": errors.New("generator down")},
		panics: map[string]bool{"b": true},
	}
	s := NewScheduler(&fakeLister{agents: activeAgents("a", "b", "c")}, runner, &fakeNotifier{}, testConfig(false), logger.Nop())

	stats := s.runCycle(context.Background())

	assert.Len(t, runner.calls, 3)
	assert.Equal(t, CycleStats{Agents: 3, Signals: 1, Executed: 0, Failed: 2}, stats)
}

func TestRunCycle_ListFailure(t *testing.T) {
	runner := &fakeRunner{}
	s := NewScheduler(&fakeLister{err: errors.New("db closed")}, runner, &fakeNotifier{}, testConfig(false), logger.Nop())

	stats := s.runCycle(context.Background())
	assert.Empty(t, runner.calls)
	assert.Zero(t, stats.Agents)
}

func TestRun_StopsOnCancel(t *testing.T) {
	runner := &fakeRunner{}
	s := NewScheduler(&fakeLister{agents: activeAgents("a")}, runner, &fakeNotifier{}, testConfig(false), logger.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return len(runnerCalls(runner)) > 0 }, time.Second, 10*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
}

func runnerCalls(r *fakeRunner) []call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]call(nil), r.calls...)
}
