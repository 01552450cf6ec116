package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"CoinSentinel/internal/config"
	"CoinSentinel/internal/history"
	"CoinSentinel/internal/market"
	"CoinSentinel/internal/report"
	"CoinSentinel/internal/retry"
	"CoinSentinel/internal/scheduler"
	"CoinSentinel/internal/selector"

	"github.com/joho/godotenv"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("[INFO] CoinSentinel starting...")

	// .env is optional; real deployments use environment variables
	if err := godotenv.Load(); err == nil {
		log.Println("[INFO] loaded .env file")
	}

	// Load config
	cfgPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("[FATAL] load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("[FATAL] config validation: %v", err)
	}

	// Init exchange client
	client := market.NewUpbitClient(cfg.Upbit.BaseURL, cfg.Upbit.AccessKey, cfg.Upbit.SecretKey)
	log.Printf("[INFO] market data source: %s", client.Name())

	var account market.Account
	if cfg.Upbit.AccessKey != "" && cfg.Upbit.SecretKey != "" {
		account = client
	} else {
		log.Println("[WARN] no API keys configured, held-coin pinning disabled")
	}

	// Init archive
	var archive history.Archive
	if cfg.Database.SQLitePath != "" {
		sa, err := history.NewSQLiteArchive(cfg.Database.SQLitePath)
		if err != nil {
			log.Printf("[WARN] init sqlite archive failed, using in-memory: %v", err)
			archive = history.NewMemoryArchive()
		} else {
			archive = sa
			defer sa.Close()
		}
	} else {
		archive = history.NewMemoryArchive()
	}

	if tickers, err := archive.Tickers(); err == nil && len(tickers) > 0 {
		log.Printf("[INFO] archive holds %d tickers", len(tickers))
	}

	policy := retry.DefaultPolicy()

	// Init history store and report formatter
	store := history.NewStore(archive, client, policy)
	fm := report.NewFormatter(store)

	// Init coin selector
	th := selector.Thresholds{
		MinTradeValue:     cfg.Selection.MinTradeValue,
		MinVolatility:     cfg.Selection.MinVolatility,
		MaxVolatility:     cfg.Selection.MaxVolatility,
		MomentumThreshold: cfg.Selection.MomentumThreshold,
		DipMinRate:        cfg.Selection.DipMinRate,
		DipMaxRate:        cfg.Selection.DipMaxRate,
		DipMinVolatility:  cfg.Selection.DipMinVolatility,
		TargetMomentum:    cfg.Selection.TargetMomentum,
		TargetDip:         cfg.Selection.TargetDip,
		CandidatePoolSize: cfg.Selection.CandidatePoolSize,
	}
	sel := selector.NewSelector(client, account, policy, th, cfg.Upbit.Quote, cfg.Selection.MajorsFile)

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Init scheduler; start tracking the pinned majors until the first
	// selection cycle runs
	majors := selector.LoadMajors(cfg.Selection.MajorsFile)
	sched := scheduler.NewScheduler(ctx, store, sel, client, fm, policy, majors)
	if err := sched.RegisterAll(cfg.Schedule.CaptureCron, cfg.Schedule.SelectionCron); err != nil {
		log.Fatalf("[FATAL] register cron tasks: %v", err)
	}
	sched.Start()
	defer sched.Stop()

	// Optional: run selection immediately on start
	if os.Getenv("RUN_ON_START") == "true" {
		log.Println("[INFO] RUN_ON_START enabled, executing selection cycle now")
		go sched.RunSelectionNow()
	}

	log.Println("[INFO] CoinSentinel is running. Press Ctrl+C to stop.")

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("[INFO] shutdown signal received, stopping...")
	cancel()
	log.Println("[INFO] CoinSentinel stopped")
}
