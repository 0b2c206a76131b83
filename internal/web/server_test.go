package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/camuig/agentfi/internal/config"
	"github.com/camuig/agentfi/internal/logger"
	"github.com/camuig/agentfi/internal/orchestrator"
	"github.com/camuig/agentfi/internal/storage"
)

type fakeFlows struct {
	createIn    orchestrator.CreateAgentInput
	createErr   error
	autoExecute *bool
	wallet      string
	statusErr   error
	status      storage.AgentStatus
	overviewErr error
	settled     string
	healthy     bool
}

func (f *fakeFlows) CreateAgent(ctx context.Context, in orchestrator.CreateAgentInput) (*orchestrator.CreateAgentResult, error) {
	f.createIn = in
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &orchestrator.CreateAgentResult{
		Agent: &storage.Agent{ID: "agent-1", Name: in.Name, Status: storage.StatusCreated},
		Steps: orchestrator.Steps{
			{Name: orchestrator.StepDBWrite, Status: orchestrator.StepSucceeded},
			{Name: orchestrator.StepLedgerWrite, Status: orchestrator.StepFailed, Error: "execution reverted"},
		},
	}, nil
}

func (f *fakeFlows) GenerateSignal(ctx context.Context, agentID, wallet string, autoExecute bool) (*orchestrator.GenerateSignalResult, error) {
	f.autoExecute = &autoExecute
	f.wallet = wallet
	return &orchestrator.GenerateSignalResult{
		Signal: &storage.TradingSignal{ID: "sig-1", AgentID: agentID, SignalType: storage.SignalBuy},
		TxHash: "0xabc",
		Steps:  orchestrator.Steps{{Name: orchestrator.StepGenerateSignal, Status: orchestrator.StepSucceeded}},
	}, nil
}

func (f *fakeFlows) UpdateStatus(ctx context.Context, agentID string, status storage.AgentStatus, wallet string) (*orchestrator.UpdateStatusResult, error) {
	f.status = status
	if f.statusErr != nil {
		return nil, f.statusErr
	}
	return &orchestrator.UpdateStatusResult{
		Agent:     &storage.Agent{ID: agentID, Status: status},
		DBSuccess: true,
	}, nil
}

func (f *fakeFlows) SettleSignal(ctx context.Context, signalID string, price decimal.Decimal, gasUsed uint64, txHash string) (*orchestrator.SettleResult, error) {
	f.settled = signalID + "@" + price.String()
	return &orchestrator.SettleResult{Signal: &storage.TradingSignal{ID: signalID, Executed: true}, Applied: true}, nil
}

func (f *fakeFlows) AgentOverview(ctx context.Context, agentID string) (*orchestrator.AgentOverview, error) {
	if f.overviewErr != nil {
		return nil, f.overviewErr
	}
	return &orchestrator.AgentOverview{Agent: &storage.Agent{ID: agentID}}, nil
}

func (f *fakeFlows) HealthCheck(ctx context.Context) *orchestrator.Health {
	return &orchestrator.Health{Database: true, AI: true, Blockchain: f.healthy, Overall: f.healthy}
}

type fakeStore struct {
	agents  []storage.Agent
	deleted []string
	balance decimal.Decimal
}

func (f *fakeStore) ListAgentsByWallet(ctx context.Context, wallet string) ([]storage.Agent, error) {
	return f.agents, nil
}

func (f *fakeStore) UpdateAgentBalance(ctx context.Context, id string, balance, pnl decimal.Decimal) (*storage.Agent, error) {
	if id == "missing" {
		return nil, &storage.StoreError{Op: "update agent balance", Kind: storage.ErrNotFound}
	}
	f.balance = balance
	return &storage.Agent{ID: id, CurrentBalance: balance, TotalPnL: pnl}, nil
}

func (f *fakeStore) DeleteAgent(ctx context.Context, id string) error {
	if id == "missing" {
		return &storage.StoreError{Op: "delete agent", Kind: storage.ErrNotFound}
	}
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeStore) ListSignalsByAgent(ctx context.Context, agentID string, limit int) ([]storage.TradingSignal, error) {
	return nil, nil
}

func (f *fakeStore) ListRecentSignalsByWallet(ctx context.Context, wallet string, limit int) ([]storage.RecentSignal, error) {
	return []storage.RecentSignal{{
		TradingSignal: storage.TradingSignal{SignalType: storage.SignalSell, TokenPair: "MATIC/USDC", CreatedAt: time.Now()},
		AgentName:     "Trend Rider",
	}}, nil
}

func (f *fakeStore) GetProfile(ctx context.Context, wallet string) (*storage.UserProfile, error) {
	if wallet == "0xnobody" {
		return nil, &storage.StoreError{Op: "get profile", Kind: storage.ErrNotFound}
	}
	return &storage.UserProfile{WalletAddress: wallet, TotalAgents: 1}, nil
}

func (f *fakeStore) UpdateProfilePreferences(ctx context.Context, wallet string, prefs map[string]any, risk *storage.RiskLevel) (*storage.UserProfile, error) {
	return &storage.UserProfile{WalletAddress: wallet, NotificationPreferences: datatypes.JSONMap(prefs), PreferredRiskLevel: risk}, nil
}

func newTestServer(flows *fakeFlows, store *fakeStore) http.Handler {
	cfg := &config.Config{
		Web:     config.WebConfig{Port: 0},
		Chain:   config.ChainConfig{ChainID: 80002, ExplorerURL: "https://amoy.polygonscan.com/"},
		Signals: config.SignalsConfig{AutoExecute: true},
	}
	return NewServer(flows, store, cfg, logger.Nop()).Handler()
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestCreateAgent(t *testing.T) {
	flows := &fakeFlows{}
	h := newTestServer(flows, &fakeStore{})

	w := do(t, h, http.MethodPost, "/api/agents", `{
		"wallet_address": "0xabc",
		"name": "Trend Rider",
		"strategy": "trend",
		"risk_level": "medium",
		"allocated_amount": 1000,
		"token_pairs": ["MATIC/USDC"],
		"slippage_tolerance": "0.5"
	}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	assert.Equal(t, "1000", flows.createIn.AllocatedAmount.String())
	assert.Equal(t, "0.5", flows.createIn.SlippageTolerance.String())

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, false, body["on_chain"])
	assert.Equal(t, true, body["degraded"])
	assert.NotContains(t, body, "tx_hash")
	steps := body["steps"].([]any)
	assert.Len(t, steps, 2)
}

func TestDeleteAgent(t *testing.T) {
	store := &fakeStore{}
	h := newTestServer(&fakeFlows{}, store)

	w := do(t, h, http.MethodDelete, "/api/agents/agent-1", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, []string{"agent-1"}, store.deleted)

	w = do(t, h, http.MethodDelete, "/api/agents/missing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpdateBalance(t *testing.T) {
	store := &fakeStore{}
	h := newTestServer(&fakeFlows{}, store)

	w := do(t, h, http.MethodPut, "/api/agents/agent-1/balance", `{"current_balance": "1100.5", "total_pnl": "100.5"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "1100.5", store.balance.String())

	w = do(t, h, http.MethodPut, "/api/agents/agent-1/balance", `{"balance": 1}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, h, http.MethodPut, "/api/agents/missing/balance", `{"current_balance": 1}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", &orchestrator.FlowError{Kind: orchestrator.ErrCreationFailed, Err: &storage.StoreError{Kind: storage.ErrValidation}}, http.StatusBadRequest},
		{"conflict", &orchestrator.FlowError{Kind: orchestrator.ErrCreationFailed, Err: &storage.StoreError{Kind: storage.ErrConflict}}, http.StatusConflict},
		{"connection", &orchestrator.FlowError{Kind: orchestrator.ErrCreationFailed, Err: &storage.StoreError{Kind: storage.ErrConnection}}, http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestServer(&fakeFlows{createErr: tt.err}, &fakeStore{})
			w := do(t, h, http.MethodPost, "/api/agents", `{"name":"x"}`)
			assert.Equal(t, tt.want, w.Code)
			assert.Contains(t, w.Body.String(), `"error"`)
		})
	}
}

func TestCreateAgent_BadBody(t *testing.T) {
	h := newTestServer(&fakeFlows{}, &fakeStore{})

	w := do(t, h, http.MethodPost, "/api/agents", `{"unknown_field": 1}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, h, http.MethodPost, "/api/agents", `not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpdateStatus(t *testing.T) {
	flows := &fakeFlows{}
	h := newTestServer(flows, &fakeStore{})

	w := do(t, h, http.MethodPatch, "/api/agents/agent-1/status", `{"status":"paused","wallet":"0xabc"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, storage.StatusPaused, flows.status)
	assert.Contains(t, w.Body.String(), `"db_success":true`)

	flows.statusErr = &orchestrator.FlowError{
		Kind: orchestrator.ErrStatusUpdateFailed,
		Err:  errors.Join(orchestrator.ErrInvalidTransition, errors.New("stopped -> active")),
	}
	w = do(t, h, http.MethodPatch, "/api/agents/agent-1/status", `{"status":"active"}`)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestGenerateSignal_AutoExecuteOverride(t *testing.T) {
	flows := &fakeFlows{}
	h := newTestServer(flows, &fakeStore{})

	w := do(t, h, http.MethodPost, "/api/agents/agent-1/signals", "")
	require.Equal(t, http.StatusCreated, w.Code)
	require.NotNil(t, flows.autoExecute)
	assert.True(t, *flows.autoExecute, "defaults to config")
	assert.Contains(t, w.Body.String(), `"executed":true`)

	w = do(t, h, http.MethodPost, "/api/agents/agent-1/signals", `{"wallet":"0xdef","auto_execute":false}`)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.False(t, *flows.autoExecute)
	assert.Equal(t, "0xdef", flows.wallet)
}

func TestAgentOverview_NotFound(t *testing.T) {
	flows := &fakeFlows{overviewErr: &orchestrator.FlowError{
		Kind: orchestrator.ErrLoadFailed,
		Err:  &storage.StoreError{Op: "get agent", Kind: storage.ErrNotFound},
	}}
	h := newTestServer(flows, &fakeStore{})

	w := do(t, h, http.MethodGet, "/api/agents/missing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListEndpoints(t *testing.T) {
	h := newTestServer(&fakeFlows{}, &fakeStore{})

	w := do(t, h, http.MethodGet, "/api/agents", "")
	assert.Equal(t, http.StatusBadRequest, w.Code, "wallet is required")

	w = do(t, h, http.MethodGet, "/api/agents?wallet=0xabc", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())

	w = do(t, h, http.MethodGet, "/api/agents/agent-1/signals?limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, h, http.MethodGet, "/api/agents/agent-1/signals?limit=5", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())

	w = do(t, h, http.MethodGet, "/api/signals?wallet=0xabc", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"agent_name":"Trend Rider"`)
}

func TestProfiles(t *testing.T) {
	h := newTestServer(&fakeFlows{}, &fakeStore{})

	w := do(t, h, http.MethodGet, "/api/profiles/0xabc", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total_agents":1`)

	w = do(t, h, http.MethodGet, "/api/profiles/0xnobody", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, h, http.MethodPut, "/api/profiles/0xabc/preferences",
		`{"notification_preferences":{"email":true},"preferred_risk_level":"low"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"preferred_risk_level":"low"`)
}

func TestSettleSignal(t *testing.T) {
	flows := &fakeFlows{}
	h := newTestServer(flows, &fakeStore{})

	w := do(t, h, http.MethodPost, "/api/signals/sig-1/settle", `{"execution_price":"0.91","gas_used":21000}`)
	assert.Equal(t, http.StatusBadRequest, w.Code, "tx_hash is required")

	w = do(t, h, http.MethodPost, "/api/signals/sig-1/settle", `{"execution_price":"0.91","gas_used":21000,"tx_hash":"0xaaa"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "sig-1@0.91", flows.settled)
	assert.Contains(t, w.Body.String(), `"applied":true`)
}

func TestHealth(t *testing.T) {
	w := do(t, newTestServer(&fakeFlows{healthy: true}, &fakeStore{}), http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"overall":true`)

	w = do(t, newTestServer(&fakeFlows{healthy: false}, &fakeStore{}), http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestDashboard(t *testing.T) {
	hash := "0x5c504ed432cb51138bcf09aa5e8a410dd4a1e204ef84bfed1be16dfba1b22060"
	store := &fakeStore{agents: []storage.Agent{{
		ID:                 "agent-1",
		Name:               "Trend Rider",
		Strategy:           storage.StrategyTrend,
		RiskLevel:          storage.RiskMedium,
		Status:             storage.StatusActive,
		AllocatedAmount:    decimal.NewFromInt(1000),
		TokenPairs:         datatypes.JSONSlice[string]{"MATIC/USDC", "ETH/USDC"},
		RegistrationTxHash: &hash,
	}}}
	h := newTestServer(&fakeFlows{healthy: true}, store)

	w := do(t, h, http.MethodGet, "/?wallet=0xabc", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "Trend Rider")
	assert.Contains(t, body, "MATIC/USDC, ETH/USDC")
	assert.Contains(t, body, "https://amoy.polygonscan.com/tx/"+hash)
	assert.Contains(t, body, `class="SELL"`)

	w = do(t, h, http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	h := newTestServer(&fakeFlows{healthy: true}, &fakeStore{})
	do(t, h, http.MethodGet, "/api/health", "")

	w := do(t, h, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `path="GET /api/health"`)
}
