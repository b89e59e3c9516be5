package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/vitos/trade_bridge/internal/config"
	"github.com/vitos/trade_bridge/internal/domain"
	"github.com/vitos/trade_bridge/internal/infrastructure/alert"
	"github.com/vitos/trade_bridge/internal/infrastructure/broker"
	"github.com/vitos/trade_bridge/internal/infrastructure/cache"
	"github.com/vitos/trade_bridge/internal/infrastructure/logger"
	"github.com/vitos/trade_bridge/internal/infrastructure/storage"
	"github.com/vitos/trade_bridge/internal/scheduler"
	"github.com/vitos/trade_bridge/internal/usecase"
	"github.com/vitos/trade_bridge/internal/web"
	"github.com/vitos/trade_bridge/internal/worker"
)

func main() {
	// 1. Config
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 2. Logger
	log, err := logger.New(cfg.Logging.Level)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if !cfg.Trading.ExecutionEnabled {
		log.Warn("execution disabled, running in observation mode")
	}

	// 3. Storage and cache
	store, err := storage.NewPostgresStore(cfg.Database.DSN())
	if err != nil {
		log.Fatal("Failed to init postgres", zap.Error(err))
	}
	defer store.Close()

	kv, err := cache.NewSQLiteCache(cfg.Cache.DBPath)
	if err != nil {
		log.Fatal("Failed to init cache", zap.Error(err))
	}
	defer kv.Close()

	// 4. Terminal bridge and alerting
	mt5 := broker.NewMT5Adapter(cfg.Bridge.RESTURL, cfg.Bridge.WSURL, log)
	alerter := alert.NewWebhookAlerter(cfg.Alerting.WebhookURL, log)

	// 5. Strategy profile
	profiles, err := usecase.LoadProfiles(cfg.Trading.StrategyProfilesFile)
	if err != nil {
		log.Fatal("Failed to load strategy profiles", zap.Error(err))
	}
	profile, ok := profiles[cfg.Trading.StrategyProfile]
	if !ok {
		log.Fatal("Unknown strategy profile", zap.String("profile", cfg.Trading.StrategyProfile))
	}

	// 6. Core services
	pool := worker.NewPool(cfg.Worker.MaxWorkers, time.Duration(cfg.Worker.WorkerTimeout)*time.Second, log)
	sched := scheduler.New(pool, log)

	risk := usecase.NewRiskEngine(usecase.RiskConfig{
		MaxDailyLossPct:      cfg.Risk.MaxDailyLossPct,
		RiskPerTradePct:      cfg.Risk.RiskPerTradePct,
		MaxSimultaneousClass: cfg.Risk.MaxTradesPerClass,
		MaxSimultaneousTotal: cfg.Risk.MaxSimultaneousTrades,
		MaxConsecutiveLosses: cfg.Risk.MaxConsecutiveLosses,
	}, kv, alerter, log)

	syncer := usecase.NewSyncService(mt5, mt5, store, risk, cfg.ClassifySymbol, log)
	analyzer := usecase.NewAnalyzer(profile, log)
	executor := usecase.NewExecutor(mt5, log, cfg.Trading.ExecutionEnabled)

	symbols := make([]usecase.SymbolSpec, 0)
	for _, s := range cfg.Trading.ForexPairs {
		symbols = append(symbols, usecase.SymbolSpec{
			Symbol: s, Timeframe: cfg.Trading.ForexTimeframe, Class: domain.AssetForex,
		})
	}
	if cfg.Trading.CryptoEnabled {
		for _, s := range cfg.Trading.CryptoPairs {
			symbols = append(symbols, usecase.SymbolSpec{
				Symbol: s, Timeframe: cfg.Trading.CryptoTimeframe, Class: domain.AssetCrypto,
			})
		}
	}

	orch := usecase.NewOrchestrator(usecase.OrchestratorConfig{
		Symbols:          symbols,
		PriceFetchEvery:  cfg.Jobs.PriceFetchInterval,
		MetricsSyncEvery: cfg.Jobs.MetricsSyncInterval,
		TradesSyncEvery:  cfg.Jobs.TradesSyncInterval,
		AnalysisEvery:    cfg.Jobs.CryptoAnalysisInterval,
		RiskUpdateEvery:  cfg.Jobs.RiskUpdateInterval,
		HistoryBars:      cfg.Jobs.HistoryBars,
	}, pool, sched, syncer, risk, analyzer, executor, mt5, mt5, log)

	// 7. Prime state, then start streaming and scheduling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	initCtx, initCancel := context.WithTimeout(ctx, 30*time.Second)
	if err := orch.InitialSync(initCtx); err != nil {
		log.Error("Initial sync incomplete", zap.Error(err))
	}
	initCancel()

	streamSymbols := make([]string, 0, len(symbols))
	for _, s := range symbols {
		streamSymbols = append(streamSymbols, s.Symbol)
	}
	mt5.StartStream(ctx, streamSymbols)

	if err := orch.RegisterJobs(); err != nil {
		log.Fatal("Failed to register jobs", zap.Error(err))
	}
	sched.Start()

	// 8. Status API
	srv := web.NewServer(cfg.ServerPort, pool, sched, risk, log)
	go func() {
		if err := srv.Start(); err != nil {
			log.Error("Status API stopped", zap.Error(err))
		}
	}()

	log.Info("bridge bot started",
		zap.Int("symbols", len(symbols)),
		zap.String("profile", profile.Name),
		zap.Bool("execution_enabled", cfg.Trading.ExecutionEnabled))

	// 9. Wait for shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	orch.Shutdown(shutdownCtx)
	if err := srv.Stop(shutdownCtx); err != nil {
		log.Error("Status API shutdown failed", zap.Error(err))
	}
	cancel() // ends the quote stream
	log.Info("bye")
}
