package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/camuig/agentfi/internal/chain"
	"github.com/camuig/agentfi/internal/config"
	"github.com/camuig/agentfi/internal/logger"
	"github.com/camuig/agentfi/internal/orchestrator"
	"github.com/camuig/agentfi/internal/storage"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	dryRun := flag.Bool("dry-run", false, "list unregistered agents without submitting")
	wallet := flag.String("wallet", "", "only agents owned by this wallet")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level, cfg.Logging.Format)

	db, err := storage.NewDatabase(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		fmt.Fprintf(os.Stderr, "database init error: %v\n", err)
		os.Exit(1)
	}
	repo := storage.NewRepository(db)

	ctx := context.Background()
	agents, err := repo.ListUnregisteredAgents(ctx, *wallet)
	if err != nil {
		fmt.Fprintf(os.Stderr, "list agents error: %v\n", err)
		os.Exit(1)
	}

	if len(agents) == 0 {
		fmt.Println("All agents are registered on-chain.")
		return
	}

	fmt.Printf("Found %d unregistered agent(s):\n\n", len(agents))
	for _, a := range agents {
		fmt.Printf("  %s  %-20s %s  %s\n", a.ID, a.Name, a.Status, a.WalletAddress)
	}
	fmt.Println()

	if *dryRun {
		fmt.Println("Dry run, nothing submitted.")
		return
	}

	if !cfg.ChainEnabled() {
		fmt.Fprintln(os.Stderr, "chain is not configured, set the contract addresses first")
		os.Exit(1)
	}

	approve := chain.PromptApprover(os.Stdin, os.Stdout)
	if cfg.Chain.AutoApprove {
		approve = chain.AutoApprove
	}
	client, err := chain.Dial(ctx, cfg, approve, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "chain init error: %v\n", err)
		os.Exit(1)
	}
	defer client.Close()

	account, err := client.RequestConnection(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "wallet connection error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Submitting from %s on chain %d\n\n", account, client.HomeChainID())

	orch := orchestrator.New(repo, nil, client, nil, nil, log)

	var registered, failed int
	for _, a := range agents {
		_, txHash, err := orch.RetryRegistration(ctx, a.ID, "")
		if err != nil {
			fmt.Fprintf(os.Stderr, "  [FAIL] %s: %v\n", a.Name, err)
			failed++
			continue
		}
		fmt.Printf("  [OK]   %s: %s\n", a.Name, txHash)
		registered++
	}

	fmt.Printf("\nDone: %d registered, %d failed.\n", registered, failed)
	if failed > 0 {
		os.Exit(1)
	}
}
