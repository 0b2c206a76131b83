package web

import (
	"embed"
	"html/template"
	"net/http"
	"strings"

	"github.com/camuig/agentfi/internal/orchestrator"
	"github.com/camuig/agentfi/internal/storage"
)

//go:embed templates/dashboard.html
var templateFS embed.FS

var dashboardTmpl = template.Must(template.New("dashboard.html").Funcs(template.FuncMap{
	"short": shortHex,
	"join":  strings.Join,
}).ParseFS(templateFS, "templates/dashboard.html"))

type DashboardData struct {
	Wallet      string
	Health      *orchestrator.Health
	Profile     *storage.UserProfile
	Agents      []storage.Agent
	Signals     []storage.RecentSignal
	ChainID     int64
	ExplorerURL string
	AutoExecute bool
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	data := DashboardData{
		Wallet:      strings.TrimSpace(r.URL.Query().Get("wallet")),
		ChainID:     s.config.Chain.ChainID,
		ExplorerURL: strings.TrimRight(s.config.Chain.ExplorerURL, "/"),
		AutoExecute: s.config.Signals.AutoExecute,
	}

	data.Health = s.flows.HealthCheck(r.Context())

	if data.Wallet != "" {
		if profile, err := s.repo.GetProfile(r.Context(), data.Wallet); err == nil {
			data.Profile = profile
		}
		if agents, err := s.repo.ListAgentsByWallet(r.Context(), data.Wallet); err == nil {
			data.Agents = agents
		} else {
			s.logger.Error("list agents for dashboard", "error", err)
		}
		if signals, err := s.repo.ListRecentSignalsByWallet(r.Context(), data.Wallet, defaultSignalLimit); err == nil {
			data.Signals = signals
		} else {
			s.logger.Error("list signals for dashboard", "error", err)
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := dashboardTmpl.Execute(w, data); err != nil {
		s.logger.Error("execute template", "error", err)
	}
}

func shortHex(s string) string {
	if len(s) <= 14 {
		return s
	}
	return s[:8] + "…" + s[len(s)-6:]
}
