package web

import (
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/camuig/agentfi/internal/orchestrator"
	"github.com/camuig/agentfi/internal/storage"
)

const (
	defaultSignalLimit = 20
	maxSignalLimit     = 200
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := s.flows.HealthCheck(r.Context())
	status := http.StatusOK
	if !health.Overall {
		status = http.StatusServiceUnavailable
	}
	s.writeJSON(w, status, health)
}

func (s *Server) handleCreateAgent(w http.ResponseWriter, r *http.Request) {
	var in orchestrator.CreateAgentInput
	if err := decode(w, r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.flows.CreateAgent(r.Context(), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, struct {
		*orchestrator.CreateAgentResult
		OnChain  bool `json:"on_chain"`
		Degraded bool `json:"degraded"`
	}{res, res.OnChain(), res.Degraded()})
}

func (s *Server) handleListAgents(w http.ResponseWriter, r *http.Request) {
	wallet := r.URL.Query().Get("wallet")
	if wallet == "" {
		s.writeError(w, r, fmt.Errorf("%w: wallet is required", errBadRequest))
		return
	}
	agents, err := s.repo.ListAgentsByWallet(r.Context(), wallet)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if agents == nil {
		agents = []storage.Agent{}
	}
	s.writeJSON(w, http.StatusOK, agents)
}

func (s *Server) handleAgentOverview(w http.ResponseWriter, r *http.Request) {
	overview, err := s.flows.AgentOverview(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, overview)
}

func (s *Server) handleDeleteAgent(w http.ResponseWriter, r *http.Request) {
	if err := s.repo.DeleteAgent(r.Context(), r.PathValue("id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type balanceRequest struct {
	CurrentBalance decimal.Decimal `json:"current_balance"`
	TotalPnL       decimal.Decimal `json:"total_pnl"`
}

func (s *Server) handleUpdateBalance(w http.ResponseWriter, r *http.Request) {
	var req balanceRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	agent, err := s.repo.UpdateAgentBalance(r.Context(), r.PathValue("id"), req.CurrentBalance, req.TotalPnL)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, agent)
}

type updateStatusRequest struct {
	Status storage.AgentStatus `json:"status"`
	Wallet string              `json:"wallet"`
}

func (s *Server) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.flows.UpdateStatus(r.Context(), r.PathValue("id"), req.Status, req.Wallet)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, struct {
		*orchestrator.UpdateStatusResult
		Degraded bool `json:"degraded"`
	}{res, res.Degraded()})
}

type generateSignalRequest struct {
	Wallet string `json:"wallet"`
	// AutoExecute overrides signals.auto_execute when set.
	AutoExecute *bool `json:"auto_execute"`
}

func (s *Server) handleGenerateSignal(w http.ResponseWriter, r *http.Request) {
	var req generateSignalRequest
	if r.ContentLength != 0 {
		if err := decode(w, r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
	}
	autoExecute := s.config.Signals.AutoExecute
	if req.AutoExecute != nil {
		autoExecute = *req.AutoExecute
	}

	res, err := s.flows.GenerateSignal(r.Context(), r.PathValue("id"), req.Wallet, autoExecute)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, struct {
		*orchestrator.GenerateSignalResult
		Executed bool `json:"executed"`
		Degraded bool `json:"degraded"`
	}{res, res.Executed(), res.Degraded()})
}

func (s *Server) handleListSignals(w http.ResponseWriter, r *http.Request) {
	limit, err := queryLimit(r, defaultSignalLimit, maxSignalLimit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	signals, err := s.repo.ListSignalsByAgent(r.Context(), r.PathValue("id"), limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if signals == nil {
		signals = []storage.TradingSignal{}
	}
	s.writeJSON(w, http.StatusOK, signals)
}

func (s *Server) handleRecentSignals(w http.ResponseWriter, r *http.Request) {
	wallet := r.URL.Query().Get("wallet")
	if wallet == "" {
		s.writeError(w, r, fmt.Errorf("%w: wallet is required", errBadRequest))
		return
	}
	limit, err := queryLimit(r, defaultSignalLimit, maxSignalLimit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	signals, err := s.repo.ListRecentSignalsByWallet(r.Context(), wallet, limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if signals == nil {
		signals = []storage.RecentSignal{}
	}
	s.writeJSON(w, http.StatusOK, signals)
}

type settleRequest struct {
	ExecutionPrice decimal.Decimal `json:"execution_price"`
	GasUsed        uint64          `json:"gas_used"`
	TxHash         string          `json:"tx_hash"`
}

func (s *Server) handleSettleSignal(w http.ResponseWriter, r *http.Request) {
	var req settleRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.TxHash == "" {
		s.writeError(w, r, fmt.Errorf("%w: tx_hash is required", errBadRequest))
		return
	}
	res, err := s.flows.SettleSignal(r.Context(), r.PathValue("id"), req.ExecutionPrice, req.GasUsed, req.TxHash)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := s.repo.GetProfile(r.Context(), r.PathValue("wallet"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, profile)
}

type preferencesRequest struct {
	NotificationPreferences map[string]any     `json:"notification_preferences"`
	PreferredRiskLevel      *storage.RiskLevel `json:"preferred_risk_level"`
}

func (s *Server) handleUpdatePreferences(w http.ResponseWriter, r *http.Request) {
	var req preferencesRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	profile, err := s.repo.UpdateProfilePreferences(r.Context(), r.PathValue("wallet"), req.NotificationPreferences, req.PreferredRiskLevel)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, profile)
}
