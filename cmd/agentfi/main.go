package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/camuig/agentfi/internal/ai"
	"github.com/camuig/agentfi/internal/chain"
	"github.com/camuig/agentfi/internal/config"
	"github.com/camuig/agentfi/internal/logger"
	"github.com/camuig/agentfi/internal/market"
	"github.com/camuig/agentfi/internal/metrics"
	"github.com/camuig/agentfi/internal/orchestrator"
	"github.com/camuig/agentfi/internal/scheduler"
	"github.com/camuig/agentfi/internal/storage"
	"github.com/camuig/agentfi/internal/telegram"
	"github.com/camuig/agentfi/internal/web"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	// .env is optional; real environment variables take precedence
	_ = godotenv.Load()

	// Load config
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	// Init logger
	log := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	log.Info("starting agentfi",
		"chain_id", cfg.Chain.ChainID,
		"ai_enabled", cfg.AI.Enabled,
		"chain_enabled", cfg.ChainEnabled())

	// Init database
	db, err := storage.NewDatabase(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		log.Error("database init failed", "error", err)
		os.Exit(1)
	}
	repo := storage.NewRepository(db)

	// Context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if sqlDB, err := db.DB(); err == nil {
		go metrics.StartDBStatsCollector(ctx, sqlDB, 15*time.Second)
	}

	// Init services
	notifier := telegram.NewNotifier(cfg, log)
	quotes := market.NewClient(cfg, log)

	var remote ai.Generator
	if cfg.AI.Enabled {
		remote = ai.NewRemoteClient(cfg, log)
	}
	signals := ai.NewService(remote, ai.NewSimulator(cfg.AI.Seed), repo, quotes, cfg, log)

	var ledger orchestrator.Ledger
	if cfg.ChainEnabled() {
		approve := chain.PromptApprover(os.Stdin, os.Stderr)
		if cfg.Chain.AutoApprove {
			approve = chain.AutoApprove
		}
		client, err := chain.Dial(ctx, cfg, approve, log)
		if err != nil {
			log.Error("ledger client init failed, on-chain steps disabled", "error", err)
		} else {
			defer client.Close()
			if account, err := client.RequestConnection(ctx); err != nil {
				log.Warn("wallet not connected", "error", err)
			} else {
				log.Info("ledger connected", "account", account, "chain_id", client.HomeChainID())
			}
			ledger = client
		}
	} else {
		log.Warn("contract addresses not configured, on-chain steps disabled")
	}

	orch := orchestrator.New(repo, signals, ledger, quotes, notifier, log)
	webServer := web.NewServer(orch, repo, cfg, log)

	// Start scheduler in goroutine
	if cfg.Signals.Enabled {
		sched := scheduler.NewScheduler(repo, orch, notifier, cfg, log)
		go sched.Run(ctx)
	}

	// Start web server in goroutine
	go func() {
		if err := webServer.Start(); err != nil {
			log.Error("web server error", "error", err)
		}
	}()

	health := orch.HealthCheck(ctx)
	notifier.NotifyStatus(fmt.Sprintf("🤖 AgentFi started (db %t, ai %t, chain %t)",
		health.Database, health.AI, health.Blockchain))

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Info("shutdown signal received", "signal", sig.String())

	// Graceful shutdown
	cancel() // stop scheduler

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := webServer.Shutdown(shutdownCtx); err != nil {
		log.Error("web server shutdown error", "error", err)
	}

	if sqlDB, err := db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			log.Error("database close error", "error", err)
		}
	}

	notifier.NotifyStatus("🛑 AgentFi stopped")
	log.Info("agentfi stopped")
}
