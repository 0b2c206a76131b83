package web

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/camuig/agentfi/internal/config"
	"github.com/camuig/agentfi/internal/logger"
	"github.com/camuig/agentfi/internal/metrics"
	"github.com/camuig/agentfi/internal/orchestrator"
	"github.com/camuig/agentfi/internal/storage"
)

// Flows is implemented by *orchestrator.Orchestrator.
type Flows interface {
	CreateAgent(ctx context.Context, in orchestrator.CreateAgentInput) (*orchestrator.CreateAgentResult, error)
	GenerateSignal(ctx context.Context, agentID, wallet string, autoExecute bool) (*orchestrator.GenerateSignalResult, error)
	UpdateStatus(ctx context.Context, agentID string, status storage.AgentStatus, wallet string) (*orchestrator.UpdateStatusResult, error)
	SettleSignal(ctx context.Context, signalID string, price decimal.Decimal, gasUsed uint64, txHash string) (*orchestrator.SettleResult, error)
	AgentOverview(ctx context.Context, agentID string) (*orchestrator.AgentOverview, error)
	HealthCheck(ctx context.Context) *orchestrator.Health
}

// Store is the part of the record store served without a flow.
type Store interface {
	ListAgentsByWallet(ctx context.Context, wallet string) ([]storage.Agent, error)
	UpdateAgentBalance(ctx context.Context, id string, balance, pnl decimal.Decimal) (*storage.Agent, error)
	DeleteAgent(ctx context.Context, id string) error
	ListSignalsByAgent(ctx context.Context, agentID string, limit int) ([]storage.TradingSignal, error)
	ListRecentSignalsByWallet(ctx context.Context, wallet string, limit int) ([]storage.RecentSignal, error)
	GetProfile(ctx context.Context, wallet string) (*storage.UserProfile, error)
	UpdateProfilePreferences(ctx context.Context, wallet string, prefs map[string]any, risk *storage.RiskLevel) (*storage.UserProfile, error)
}

type Server struct {
	httpServer *http.Server
	flows      Flows
	repo       Store
	config     *config.Config
	logger     *logger.Logger
}

func NewServer(flows Flows, repo Store, cfg *config.Config, log *logger.Logger) *Server {
	s := &Server{
		flows:  flows,
		repo:   repo,
		config: cfg,
		logger: log,
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Web.Port),
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 2 * time.Minute, // flows wait on AI and wallet approval
	}

	return s
}

// Handler returns the routed, instrumented handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleDashboard)
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("GET /api/health", s.handleHealth)

	mux.HandleFunc("POST /api/agents", s.handleCreateAgent)
	mux.HandleFunc("GET /api/agents", s.handleListAgents)
	mux.HandleFunc("GET /api/agents/{id}", s.handleAgentOverview)
	mux.HandleFunc("DELETE /api/agents/{id}", s.handleDeleteAgent)
	mux.HandleFunc("PATCH /api/agents/{id}/status", s.handleUpdateStatus)
	mux.HandleFunc("PUT /api/agents/{id}/balance", s.handleUpdateBalance)
	mux.HandleFunc("POST /api/agents/{id}/signals", s.handleGenerateSignal)
	mux.HandleFunc("GET /api/agents/{id}/signals", s.handleListSignals)

	mux.HandleFunc("GET /api/signals", s.handleRecentSignals)
	mux.HandleFunc("POST /api/signals/{id}/settle", s.handleSettleSignal)

	mux.HandleFunc("GET /api/profiles/{wallet}", s.handleGetProfile)
	mux.HandleFunc("PUT /api/profiles/{wallet}/preferences", s.handleUpdatePreferences)

	return metrics.Middleware(mux)
}

func (s *Server) Start() error {
	s.logger.Info("web server starting", "port", s.config.Web.Port)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("web server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
