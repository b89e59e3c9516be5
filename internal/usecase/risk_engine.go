package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vitos/trade_bridge/internal/domain"
)

const (
	riskStateKey   = "risk:daily_state"
	riskMetricsKey = "risk:metrics"
	riskStateTTL   = 24 * time.Hour
)

// RiskConfig holds the daily trading limits.
type RiskConfig struct {
	MaxDailyLossPct      float64
	RiskPerTradePct      float64
	MaxSimultaneousClass int // open positions per asset class
	MaxSimultaneousTotal int
	MaxConsecutiveLosses int
	SizeReduction        float64   // position size multiplier after a loss streak
	WarnFractions        []float64 // fractions of the loss limit that trigger warning alerts
}

func (c *RiskConfig) applyDefaults() {
	if c.MaxDailyLossPct <= 0 {
		c.MaxDailyLossPct = 10
	}
	if c.RiskPerTradePct <= 0 {
		c.RiskPerTradePct = 2
	}
	if c.MaxSimultaneousClass <= 0 {
		c.MaxSimultaneousClass = 3
	}
	if c.MaxSimultaneousTotal <= 0 {
		c.MaxSimultaneousTotal = 2 * c.MaxSimultaneousClass
	}
	if c.MaxConsecutiveLosses <= 0 {
		c.MaxConsecutiveLosses = 3
	}
	if c.SizeReduction <= 0 || c.SizeReduction >= 1 {
		c.SizeReduction = 0.5
	}
	if len(c.WarnFractions) == 0 {
		c.WarnFractions = []float64{0.5, 0.8, 0.9}
	}
}

// Decision is the outcome of a pre-trade risk check.
type Decision struct {
	Allowed        bool
	Reason         string
	SizeMultiplier float64
}

// RiskEngine tracks daily trading limits. All state lives behind one mutex
// and is persisted to the cache after every mutation, so a restart within the
// same day resumes with the stop flag and size multiplier intact. The state
// rolls over automatically on the first call of a new day.
type RiskEngine struct {
	cfg     RiskConfig
	cache   domain.Cache
	alerter domain.Alerter
	logger  *zap.Logger

	mu       sync.Mutex
	state    *domain.DailyRiskState
	warnedAt float64 // highest warning fraction already alerted today
	timeNow  func() time.Time
}

func NewRiskEngine(cfg RiskConfig, cache domain.Cache, alerter domain.Alerter, logger *zap.Logger) *RiskEngine {
	cfg.applyDefaults()
	return &RiskEngine{
		cfg:     cfg,
		cache:   cache,
		alerter: alerter,
		logger:  logger,
		timeNow: time.Now,
	}
}

func (r *RiskEngine) loadState() *domain.DailyRiskState {
	raw, ok, err := r.cache.Get(riskStateKey)
	if err != nil {
		r.logger.Error("failed to load risk state from cache", zap.Error(err))
	}
	if !ok {
		return r.freshState()
	}
	var st domain.DailyRiskState
	if err := json.Unmarshal([]byte(raw), &st); err != nil {
		r.logger.Error("corrupt risk state in cache, starting fresh", zap.Error(err))
		return r.freshState()
	}
	if st.Date != r.today() {
		return r.freshState()
	}
	if st.PnLByClass == nil {
		st.PnLByClass = map[domain.AssetClass]float64{}
	}
	if st.OpenByClass == nil {
		st.OpenByClass = map[domain.AssetClass]int{}
	}
	r.logger.Info("resumed risk state",
		zap.String("date", st.Date),
		zap.Bool("trading_stopped", st.TradingStopped),
		zap.Float64("size_multiplier", st.SizeMultiplier))
	return &st
}

func (r *RiskEngine) freshState() *domain.DailyRiskState {
	return &domain.DailyRiskState{
		Date:           r.today(),
		PnLByClass:     map[domain.AssetClass]float64{},
		OpenByClass:    map[domain.AssetClass]int{},
		SizeMultiplier: 1.0,
	}
}

func (r *RiskEngine) today() string {
	return r.timeNow().UTC().Format("2006-01-02")
}

// rollover loads the persisted state on first touch and discards yesterday's
// state on the first touch of a new day. Callers must hold r.mu.
func (r *RiskEngine) rollover() {
	if r.state == nil {
		r.state = r.loadState()
	}
	if r.state.Date != r.today() {
		r.logger.Info("new trading day, resetting risk state",
			zap.String("previous", r.state.Date))
		r.state = r.freshState()
		r.warnedAt = 0
	}
}

// persist writes the current state to the cache. Callers must hold r.mu.
func (r *RiskEngine) persist() {
	raw, err := json.Marshal(r.state)
	if err != nil {
		r.logger.Error("failed to marshal risk state", zap.Error(err))
		return
	}
	if err := r.cache.Set(riskStateKey, string(raw), riskStateTTL); err != nil {
		r.logger.Error("failed to persist risk state", zap.Error(err))
	}
}

// RiskPerTrade is the percent of balance risked on a single position.
func (r *RiskEngine) RiskPerTrade() float64 { return r.cfg.RiskPerTradePct }

// CanOpenPosition runs the pre-trade checks in order: stop flag, daily loss
// limit, per-class and total position caps. A hit loss streak does not deny
// the trade, it shrinks it through the returned multiplier.
func (r *RiskEngine) CanOpenPosition(ctx context.Context, class domain.AssetClass, balance float64) Decision {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rollover()

	if r.state.TradingStopped {
		metricRiskDenials.WithLabelValues("trading_stopped").Inc()
		return Decision{Reason: "trading stopped for the day"}
	}

	if r.state.InitialBalance == 0 {
		r.state.InitialBalance = balance
	}
	r.state.CurrentBalance = balance
	lossPct := 0.0
	if r.state.InitialBalance > 0 && balance < r.state.InitialBalance {
		lossPct = (r.state.InitialBalance - balance) / r.state.InitialBalance * 100
	}
	r.state.LossPct = lossPct

	if lossPct >= r.cfg.MaxDailyLossPct {
		r.state.TradingStopped = true
		r.persist()
		msg := fmt.Sprintf("daily loss %.2f%% reached the %.2f%% limit, trading stopped until tomorrow",
			lossPct, r.cfg.MaxDailyLossPct)
		r.logger.Error("daily loss limit hit", zap.Float64("loss_pct", lossPct))
		r.alerter.PublishAlert(ctx, "daily loss limit", msg)
		metricRiskDenials.WithLabelValues("daily_loss_limit").Inc()
		return Decision{Reason: msg}
	}
	var crossed float64
	for _, f := range r.cfg.WarnFractions {
		if lossPct >= r.cfg.MaxDailyLossPct*f && f > crossed {
			crossed = f
		}
	}
	if crossed > r.warnedAt {
		r.warnedAt = crossed
		r.logger.Warn("daily loss approaching the limit",
			zap.Float64("loss_pct", lossPct),
			zap.Float64("limit_pct", r.cfg.MaxDailyLossPct))
		r.alerter.PublishAlert(ctx, "daily loss warning",
			fmt.Sprintf("daily loss at %.2f%% of balance, limit is %.2f%%", lossPct, r.cfg.MaxDailyLossPct))
	}

	if r.state.OpenByClass[class] >= r.cfg.MaxSimultaneousClass {
		r.persist()
		metricRiskDenials.WithLabelValues("class_limit").Inc()
		return Decision{Reason: fmt.Sprintf("max simultaneous %s positions reached (%d)",
			class, r.cfg.MaxSimultaneousClass)}
	}
	if r.state.OpenTotal() >= r.cfg.MaxSimultaneousTotal {
		r.persist()
		metricRiskDenials.WithLabelValues("total_limit").Inc()
		return Decision{Reason: fmt.Sprintf("max simultaneous positions reached (%d)",
			r.cfg.MaxSimultaneousTotal)}
	}

	if r.state.ConsecutiveLosses >= r.cfg.MaxConsecutiveLosses {
		r.state.SizeMultiplier = r.cfg.SizeReduction
	}
	r.persist()
	return Decision{Allowed: true, SizeMultiplier: r.state.SizeMultiplier}
}

// RegisterPositionOpened records a newly opened position.
func (r *RiskEngine) RegisterPositionOpened(ctx context.Context, class domain.AssetClass) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rollover()
	r.state.OpenByClass[class]++
	r.persist()
}

// RegisterPositionClosed records the realized result of a closed position.
// A winning trade resets the loss streak and the size multiplier; a breakeven
// close counts against the streak like a loss.
func (r *RiskEngine) RegisterPositionClosed(ctx context.Context, class domain.AssetClass, profit float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rollover()

	if r.state.OpenByClass[class] > 0 {
		r.state.OpenByClass[class]--
	}
	r.state.TotalPnL += profit
	r.state.PnLByClass[class] += profit
	r.state.TotalTrades++

	if profit > 0 {
		r.state.WinningTrades++
		r.state.ConsecutiveLosses = 0
		r.state.SizeMultiplier = 1.0
	} else {
		r.state.LosingTrades++
		r.state.ConsecutiveLosses++
		if r.state.ConsecutiveLosses == r.cfg.MaxConsecutiveLosses {
			r.state.SizeMultiplier = r.cfg.SizeReduction
			r.logger.Warn("loss streak reached, reducing position size",
				zap.Int("consecutive_losses", r.state.ConsecutiveLosses),
				zap.Float64("multiplier", r.cfg.SizeReduction))
			r.alerter.PublishAlert(ctx, "loss streak",
				fmt.Sprintf("%d consecutive losses, position size reduced to %.0f%%",
					r.state.ConsecutiveLosses, r.cfg.SizeReduction*100))
		}
	}
	r.persist()
}

// ResetDaily wipes today's state. Meant for the manual recovery path, not the
// automatic midnight rollover.
func (r *RiskEngine) ResetDaily(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.cache.Delete(riskStateKey); err != nil {
		return fmt.Errorf("delete risk state: %w", err)
	}
	r.state = r.freshState()
	r.warnedAt = 0
	r.logger.Info("daily risk state reset")
	r.alerter.PublishAlert(ctx, "risk reset", "daily risk state was reset manually")
	return nil
}

// Report returns a copy of the current state.
func (r *RiskEngine) Report() domain.DailyRiskState {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rollover()

	st := *r.state
	st.PnLByClass = make(map[domain.AssetClass]float64, len(r.state.PnLByClass))
	for k, v := range r.state.PnLByClass {
		st.PnLByClass[k] = v
	}
	st.OpenByClass = make(map[domain.AssetClass]int, len(r.state.OpenByClass))
	for k, v := range r.state.OpenByClass {
		st.OpenByClass[k] = v
	}
	return st
}

// UpdateMetricsCache mirrors the headline numbers into a cache hash for
// external consumers.
func (r *RiskEngine) UpdateMetricsCache(ctx context.Context) error {
	st := r.Report()
	fields := map[string]string{
		"date":               st.Date,
		"initial_balance":    strconv.FormatFloat(st.InitialBalance, 'f', 2, 64),
		"current_balance":    strconv.FormatFloat(st.CurrentBalance, 'f', 2, 64),
		"total_pnl":          strconv.FormatFloat(st.TotalPnL, 'f', 2, 64),
		"loss_pct":           strconv.FormatFloat(st.LossPct, 'f', 2, 64),
		"consecutive_losses": strconv.Itoa(st.ConsecutiveLosses),
		"open_positions":     strconv.Itoa(st.OpenTotal()),
		"total_trades":       strconv.Itoa(st.TotalTrades),
		"winning_trades":     strconv.Itoa(st.WinningTrades),
		"losing_trades":      strconv.Itoa(st.LosingTrades),
		"trading_stopped":    strconv.FormatBool(st.TradingStopped),
		"size_multiplier":    strconv.FormatFloat(st.SizeMultiplier, 'f', 2, 64),
	}
	if err := r.cache.HashSet(riskMetricsKey, fields); err != nil {
		return fmt.Errorf("update risk metrics cache: %w", err)
	}
	return nil
}
