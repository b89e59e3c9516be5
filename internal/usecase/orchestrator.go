package usecase

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/vitos/trade_bridge/internal/domain"
	"github.com/vitos/trade_bridge/internal/scheduler"
	"github.com/vitos/trade_bridge/internal/worker"
)

// SymbolSpec binds a tradable symbol to its candle timeframe and asset class.
type SymbolSpec struct {
	Symbol    string
	Timeframe string
	Class     domain.AssetClass
}

// OrchestratorConfig holds the job intervals in seconds and the candle window
// used for analysis.
type OrchestratorConfig struct {
	Symbols          []SymbolSpec
	PriceFetchEvery  int
	MetricsSyncEvery int
	TradesSyncEvery  int
	AnalysisEvery    int
	RiskUpdateEvery  int
	HistoryBars      int
}

func (c *OrchestratorConfig) applyDefaults() {
	if c.PriceFetchEvery <= 0 {
		c.PriceFetchEvery = 30
	}
	if c.MetricsSyncEvery <= 0 {
		c.MetricsSyncEvery = 60
	}
	if c.TradesSyncEvery <= 0 {
		c.TradesSyncEvery = 30
	}
	if c.AnalysisEvery <= 0 {
		c.AnalysisEvery = 300
	}
	if c.RiskUpdateEvery <= 0 {
		c.RiskUpdateEvery = 60
	}
	if c.HistoryBars <= 0 {
		c.HistoryBars = 100
	}
}

// Orchestrator owns the recurring jobs: price sync, account metrics, trade
// sync, signal analysis and risk metric updates. It is the only place where
// the analyzer, the risk engine and the executor meet.
type Orchestrator struct {
	cfg      OrchestratorConfig
	pool     *worker.Pool
	sched    *scheduler.Scheduler
	syncer   *SyncService
	risk     *RiskEngine
	analyzer *Analyzer
	executor *Executor
	broker   domain.Broker
	market   domain.MarketData
	logger   *zap.Logger
}

func NewOrchestrator(
	cfg OrchestratorConfig,
	pool *worker.Pool,
	sched *scheduler.Scheduler,
	syncer *SyncService,
	risk *RiskEngine,
	analyzer *Analyzer,
	executor *Executor,
	broker domain.Broker,
	market domain.MarketData,
	logger *zap.Logger,
) *Orchestrator {
	cfg.applyDefaults()
	return &Orchestrator{
		cfg:      cfg,
		pool:     pool,
		sched:    sched,
		syncer:   syncer,
		risk:     risk,
		analyzer: analyzer,
		executor: executor,
		broker:   broker,
		market:   market,
		logger:   logger,
	}
}

// RegisterJobs wires all recurring jobs into the scheduler. Risk metric
// updates run at critical priority so they jump the queue ahead of price
// fetches and analysis.
func (o *Orchestrator) RegisterJobs() error {
	jobs := []struct {
		name     string
		interval int
		priority worker.Priority
		fn       func(ctx context.Context) error
	}{
		{"sync_prices", o.cfg.PriceFetchEvery, worker.PriorityNormal, o.fanOutPriceSync},
		{"sync_metrics", o.cfg.MetricsSyncEvery, worker.PriorityHigh, o.syncer.SyncAccountMetrics},
		{"sync_trades", o.cfg.TradesSyncEvery, worker.PriorityHigh, o.syncer.SyncTrades},
		{"analyze_symbols", o.cfg.AnalysisEvery, worker.PriorityNormal, o.analyzeAll},
		{"update_risk", o.cfg.RiskUpdateEvery, worker.PriorityCritical, o.risk.UpdateMetricsCache},
	}
	for _, j := range jobs {
		if err := o.sched.AddJob(j.name, j.interval, scheduler.UnitSeconds, j.priority, j.fn); err != nil {
			return fmt.Errorf("register job %s: %w", j.name, err)
		}
	}
	return nil
}

// InitialSync primes account metrics and the position baseline through the
// pool before the scheduler starts, so the first analysis cycle never runs
// against an empty picture.
func (o *Orchestrator) InitialSync(ctx context.Context) error {
	tasks := []*worker.Task{
		{Name: "initial_sync_metrics", Priority: worker.PriorityHigh, Fn: o.syncer.SyncAccountMetrics},
		{Name: "initial_sync_trades", Priority: worker.PriorityHigh, Fn: o.syncer.SyncTrades},
	}
	handles := make([]*worker.Handle, 0, len(tasks))
	for _, t := range tasks {
		h, err := o.pool.Submit(t)
		if err != nil {
			return fmt.Errorf("submit %s: %w", t.Name, err)
		}
		handles = append(handles, h)
	}
	for i, h := range handles {
		if err := h.Wait(ctx); err != nil {
			return fmt.Errorf("%s: %w", tasks[i].Name, err)
		}
	}
	return nil
}

// fanOutPriceSync enqueues one price sync task per symbol so a stuck symbol
// never blocks the rest.
func (o *Orchestrator) fanOutPriceSync(ctx context.Context) error {
	for _, spec := range o.cfg.Symbols {
		spec := spec
		task := &worker.Task{
			Name:     "sync_prices:" + spec.Symbol,
			Priority: worker.PriorityNormal,
			Fn: func(ctx context.Context) error {
				return o.syncer.SyncPrices(ctx, spec.Symbol, spec.Timeframe, o.cfg.HistoryBars)
			},
		}
		if err := o.pool.Enqueue(task); err != nil {
			return fmt.Errorf("enqueue price sync for %s: %w", spec.Symbol, err)
		}
	}
	return nil
}

func (o *Orchestrator) analyzeAll(ctx context.Context) error {
	var firstErr error
	for _, spec := range o.cfg.Symbols {
		if err := o.AnalyzeAndTrade(ctx, spec); err != nil {
			o.logger.Error("analysis cycle failed",
				zap.String("symbol", spec.Symbol), zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// AnalyzeAndTrade runs one full signal cycle for a symbol: fetch candles,
// analyze, pass the risk gate, size, execute, register. Positions opened by
// other paths between the gate check and the order are tolerated; the limits
// re-converge on the next trade sync.
func (o *Orchestrator) AnalyzeAndTrade(ctx context.Context, spec SymbolSpec) error {
	candles, err := o.market.FetchBars(ctx, spec.Symbol, spec.Timeframe, o.cfg.HistoryBars)
	if err != nil {
		return fmt.Errorf("fetch bars %s: %w", spec.Symbol, err)
	}

	sig := o.analyzer.Analyze(spec.Symbol, candles)
	if sig == nil {
		return nil
	}

	snap, err := o.broker.GetAccountSnapshot(ctx)
	if err != nil {
		return fmt.Errorf("account snapshot: %w", err)
	}

	decision := o.risk.CanOpenPosition(ctx, spec.Class, snap.Balance)
	if !decision.Allowed {
		o.logger.Info("signal blocked by risk gate",
			zap.String("symbol", spec.Symbol),
			zap.String("side", string(sig.Side)),
			zap.String("reason", decision.Reason))
		return nil
	}

	inst, err := o.broker.GetInstrument(ctx, spec.Symbol)
	if err != nil {
		return fmt.Errorf("instrument %s: %w", spec.Symbol, err)
	}

	// The streak multiplier shrinks the risk budget before sizing so lot
	// step rounding and min/max clamps still apply to the final size.
	riskPct := o.risk.RiskPerTrade() * decision.SizeMultiplier
	volume, err := o.executor.SizePosition(snap.Balance, sig.Entry, sig.StopLoss, riskPct, inst)
	if err != nil {
		return fmt.Errorf("size position %s: %w", spec.Symbol, err)
	}

	result := o.executor.ExecuteSignal(ctx, sig, volume)
	if result.Status != StatusExecuted {
		return nil
	}

	o.risk.RegisterPositionOpened(ctx, spec.Class)
	if err := o.syncer.SyncTrades(ctx); err != nil {
		o.logger.Error("trade sync after execution failed", zap.Error(err))
	}
	return nil
}

// Shutdown stops the scheduler, drains the queue within ctx and then shuts
// the pool down waiting for in-flight tasks.
func (o *Orchestrator) Shutdown(ctx context.Context) {
	o.sched.Stop()
	if err := o.pool.Drain(ctx); err != nil {
		o.logger.Warn("queue not fully drained before shutdown", zap.Error(err))
	}
	o.pool.Shutdown(true)
}
