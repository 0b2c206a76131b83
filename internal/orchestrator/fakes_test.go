package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/camuig/agentfi/internal/ai"
	"github.com/camuig/agentfi/internal/chain"
	"github.com/camuig/agentfi/internal/storage"
)

type counter struct {
	mu    sync.Mutex
	calls map[string]int
}

func (c *counter) hit(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.calls == nil {
		c.calls = make(map[string]int)
	}
	c.calls[name]++
}

func (c *counter) called(name string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[name]
}

func (c *counter) total() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, v := range c.calls {
		n += v
	}
	return n
}

type fakeStore struct {
	counter
	mu      sync.Mutex
	agents  map[string]*storage.Agent
	signals map[string]*storage.TradingSignal

	createErr error
	updateErr error
	touchErr  error
	pingErr   error
	pingPanic bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		agents:  make(map[string]*storage.Agent),
		signals: make(map[string]*storage.TradingSignal),
	}
}

func notFound(op string) error {
	return &storage.StoreError{Op: op, Kind: storage.ErrNotFound}
}

func (s *fakeStore) CreateAgent(ctx context.Context, agent *storage.Agent) error {
	s.hit("CreateAgent")
	if s.createErr != nil {
		return s.createErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if agent.ID == "" {
		agent.ID = uuid.NewString()
	}
	if agent.Status == "" {
		agent.Status = storage.StatusCreated
	}
	agent.WalletAddress = storage.NormalizeAddress(agent.WalletAddress)
	agent.CurrentBalance = agent.AllocatedAmount
	cp := *agent
	s.agents[agent.ID] = &cp
	return nil
}

func (s *fakeStore) GetAgent(ctx context.Context, id string) (*storage.Agent, error) {
	s.hit("GetAgent")
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.agents[id]
	if !ok {
		return nil, notFound("get agent")
	}
	cp := *a
	return &cp, nil
}

func (s *fakeStore) mutate(id string, fn func(a *storage.Agent)) (*storage.Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.agents[id]
	if !ok {
		return nil, notFound("update agent")
	}
	fn(a)
	cp := *a
	return &cp, nil
}

func (s *fakeStore) UpdateAgentStatus(ctx context.Context, id string, status storage.AgentStatus) (*storage.Agent, error) {
	s.hit("UpdateAgentStatus")
	if s.updateErr != nil {
		return nil, s.updateErr
	}
	return s.mutate(id, func(a *storage.Agent) { a.Status = status })
}

func (s *fakeStore) SetAgentRegistration(ctx context.Context, id, txHash string) (*storage.Agent, error) {
	s.hit("SetAgentRegistration")
	return s.mutate(id, func(a *storage.Agent) { a.RegistrationTxHash = &txHash })
}

func (s *fakeStore) TouchLastSignal(ctx context.Context, id string, at time.Time) error {
	s.hit("TouchLastSignal")
	if s.touchErr != nil {
		return s.touchErr
	}
	_, err := s.mutate(id, func(a *storage.Agent) { a.LastSignalAt = &at })
	return err
}

func (s *fakeStore) IncrementTrades(ctx context.Context, id string) (*storage.Agent, error) {
	s.hit("IncrementTrades")
	return s.mutate(id, func(a *storage.Agent) { a.TotalTrades++ })
}

func (s *fakeStore) putSignal(sig *storage.TradingSignal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *sig
	s.signals[sig.ID] = &cp
}

func (s *fakeStore) GetSignal(ctx context.Context, id string) (*storage.TradingSignal, error) {
	s.hit("GetSignal")
	s.mu.Lock()
	defer s.mu.Unlock()
	sig, ok := s.signals[id]
	if !ok {
		return nil, notFound("get signal")
	}
	cp := *sig
	return &cp, nil
}

func (s *fakeStore) ListSignalsByAgent(ctx context.Context, agentID string, limit int) ([]storage.TradingSignal, error) {
	s.hit("ListSignalsByAgent")
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []storage.TradingSignal
	for _, sig := range s.signals {
		if sig.AgentID == agentID && len(out) < limit {
			out = append(out, *sig)
		}
	}
	return out, nil
}

func (s *fakeStore) MarkSignalExecuted(ctx context.Context, id string, exec storage.Execution) (*storage.TradingSignal, bool, error) {
	s.hit("MarkSignalExecuted")
	s.mu.Lock()
	defer s.mu.Unlock()
	sig, ok := s.signals[id]
	if !ok {
		return nil, false, notFound("mark signal executed")
	}
	applied := !sig.Executed
	if applied {
		at, price, gas, hash := exec.At, exec.Price, exec.GasUsed, exec.TxHash
		sig.Executed = true
		sig.ExecutedAt = &at
		sig.ExecutionPrice = &price
		sig.GasUsed = &gas
		sig.TransactionHash = &hash
	}
	cp := *sig
	return &cp, applied, nil
}

func (s *fakeStore) SignalAccuracy(ctx context.Context, agentID string) (*storage.SignalAccuracy, error) {
	s.hit("SignalAccuracy")
	signals, _ := s.ListSignalsByAgent(ctx, agentID, 1000)
	return &storage.SignalAccuracy{TotalSignals: len(signals)}, nil
}

func (s *fakeStore) Ping(ctx context.Context) error {
	s.hit("Ping")
	if s.pingPanic {
		panic("connection pool exhausted")
	}
	return s.pingErr
}

type fakeSignals struct {
	counter
	store *fakeStore

	next       storage.SignalType
	genErr     error
	analyzeErr error
	probeErr   error
}

func (g *fakeSignals) Generate(ctx context.Context, agent *storage.Agent) (*storage.TradingSignal, error) {
	g.hit("Generate")
	if g.genErr != nil {
		return nil, g.genErr
	}
	typ := g.next
	if typ == "" {
		typ = storage.SignalBuy
	}
	target := decimal.RequireFromString("1.25")
	sig := &storage.TradingSignal{
		ID:              uuid.NewString(),
		AgentID:         agent.ID,
		SignalType:      typ,
		TokenPair:       agent.PrimaryPair("MATIC/USDC"),
		ConfidenceScore: 80,
		Reasoning:       "test",
		PriceTarget:     &target,
		PositionSize:    ai.PositionSize(agent.RiskLevel, 80),
		Source:          ai.SourceLocal,
	}
	g.store.putSignal(sig)
	return sig, nil
}

func (g *fakeSignals) AnalyzeMarket(ctx context.Context, pairs []string) (*ai.MarketAnalysis, error) {
	g.hit("AnalyzeMarket")
	if g.analyzeErr != nil {
		return nil, g.analyzeErr
	}
	return &ai.MarketAnalysis{Sentiment: ai.SentimentBullish, Volatility: ai.VolatilityMedium}, nil
}

func (g *fakeSignals) Probe(ctx context.Context) (string, error) {
	g.hit("Probe")
	return ai.SourceLocal, g.probeErr
}

type fakeLedger struct {
	counter
	mu      sync.Mutex
	account string
	nonce   uint64

	connectErr error
	submitErr  error
	readErr    error
	pingErr    error
	offNetwork bool
	panicOn    string
}

func (l *fakeLedger) maybePanic(name string) {
	if l.panicOn == name {
		panic(name + " blew up")
	}
}

func (l *fakeLedger) submission() (*chain.Submission, error) {
	if l.submitErr != nil {
		return nil, l.submitErr
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.nonce++
	return &chain.Submission{TxHash: fmt.Sprintf("0x%064x", l.nonce), Nonce: l.nonce, GasLimit: 150000}, nil
}

func (l *fakeLedger) Connect(ctx context.Context) (string, error) {
	l.hit("Connect")
	return l.account, l.connectErr
}

func (l *fakeLedger) CheckNetwork(ctx context.Context) (bool, error) {
	l.hit("CheckNetwork")
	return !l.offNetwork, nil
}

func (l *fakeLedger) HomeChainID() int64 { return 80002 }

func (l *fakeLedger) Ping(ctx context.Context) error {
	l.hit("Ping")
	return l.pingErr
}

func (l *fakeLedger) SubmitRegisterAgent(ctx context.Context, agent *storage.Agent, signer string) (*chain.Submission, error) {
	l.hit("SubmitRegisterAgent")
	l.maybePanic("SubmitRegisterAgent")
	return l.submission()
}

func (l *fakeLedger) SubmitUpdateStatus(ctx context.Context, agentID string, status storage.AgentStatus, signer string) (*chain.Submission, error) {
	l.hit("SubmitUpdateStatus")
	return l.submission()
}

func (l *fakeLedger) SubmitExecuteSignal(ctx context.Context, agent *storage.Agent, signal *storage.TradingSignal, signer string) (*chain.Submission, error) {
	l.hit("SubmitExecuteSignal")
	return l.submission()
}

func (l *fakeLedger) ReadAgent(ctx context.Context, agentID string) (*chain.OnChainAgent, error) {
	l.hit("ReadAgent")
	if l.readErr != nil {
		return nil, l.readErr
	}
	return &chain.OnChainAgent{Name: "mirror", Status: storage.StatusCreated}, nil
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []string
}

func (n *fakeNotifier) add(format string, args ...any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, fmt.Sprintf(format, args...))
}

func (n *fakeNotifier) NotifyAgentCreated(agent *storage.Agent, txHash string) {
	n.add("created %s tx=%t", agent.Name, txHash != "")
}

func (n *fakeNotifier) NotifySignal(agent *storage.Agent, signal *storage.TradingSignal, txHash string) {
	n.add("signal %s tx=%t", signal.SignalType, txHash != "")
}

func (n *fakeNotifier) NotifyStatusChanged(agent *storage.Agent, from storage.AgentStatus, txHash string) {
	n.add("status %s->%s tx=%t", from, agent.Status, txHash != "")
}

func (n *fakeNotifier) NotifyError(op string, err error) {
	n.add("error %s", op)
}
