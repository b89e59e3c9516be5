package usecase

import (
	"context"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/vitos/trade_bridge/internal/domain"
)

func newTestRiskEngine(cfg RiskConfig, cache *fakeCache, alerter *fakeAlerter) *RiskEngine {
	if cache == nil {
		cache = newFakeCache()
	}
	if alerter == nil {
		alerter = &fakeAlerter{}
	}
	r := NewRiskEngine(cfg, cache, alerter, zap.NewNop())
	r.timeNow = func() time.Time {
		return time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)
	}
	return r
}

func TestDailyLossLimitStopsTrading(t *testing.T) {
	alerter := &fakeAlerter{}
	r := newTestRiskEngine(RiskConfig{MaxDailyLossPct: 10}, nil, alerter)
	ctx := context.Background()

	// Establish the initial balance.
	if d := r.CanOpenPosition(ctx, domain.AssetCrypto, 10000); !d.Allowed {
		t.Fatalf("first check denied: %s", d.Reason)
	}

	// 11% down: denied and stopped for the day.
	d := r.CanOpenPosition(ctx, domain.AssetCrypto, 8900)
	if d.Allowed {
		t.Fatal("trade allowed past the daily loss limit")
	}
	if !strings.Contains(d.Reason, "limit") {
		t.Fatalf("unexpected denial reason: %s", d.Reason)
	}
	if got := r.Report(); !got.TradingStopped || got.LossPct != 11 {
		t.Fatalf("state after limit hit: stopped=%v loss=%.2f", got.TradingStopped, got.LossPct)
	}
	if alert, ok := alerter.last(); !ok || alert.Title != "daily loss limit" {
		t.Fatalf("missing critical alert, got %+v", alert)
	}

	// Recovery within the day does not re-enable trading.
	if d := r.CanOpenPosition(ctx, domain.AssetCrypto, 10000); d.Allowed {
		t.Fatal("trading resumed same day after stop")
	}
}

func TestLossWarningStillAllows(t *testing.T) {
	alerter := &fakeAlerter{}
	r := newTestRiskEngine(RiskConfig{MaxDailyLossPct: 10}, nil, alerter)
	ctx := context.Background()

	r.CanOpenPosition(ctx, domain.AssetForex, 10000)
	d := r.CanOpenPosition(ctx, domain.AssetForex, 9500)
	if !d.Allowed {
		t.Fatalf("5%% loss denied: %s", d.Reason)
	}
	if alert, ok := alerter.last(); !ok || alert.Title != "daily loss warning" {
		t.Fatalf("expected a warning alert, got %+v", alert)
	}
	if got := r.Report(); got.TradingStopped {
		t.Fatal("warning level stopped trading")
	}

	// The same level does not re-alert, a deeper one does.
	r.CanOpenPosition(ctx, domain.AssetForex, 9500)
	if alerter.count() != 1 {
		t.Fatalf("alerts after repeat check = %d, want 1", alerter.count())
	}
	r.CanOpenPosition(ctx, domain.AssetForex, 9100)
	if alerter.count() != 2 {
		t.Fatalf("alerts after 9%% loss = %d, want 2", alerter.count())
	}
}

func TestSimultaneousPositionLimits(t *testing.T) {
	r := newTestRiskEngine(RiskConfig{MaxSimultaneousClass: 2, MaxSimultaneousTotal: 3}, nil, nil)
	ctx := context.Background()

	r.RegisterPositionOpened(ctx, domain.AssetCrypto)
	r.RegisterPositionOpened(ctx, domain.AssetCrypto)

	if d := r.CanOpenPosition(ctx, domain.AssetCrypto, 10000); d.Allowed {
		t.Fatal("third crypto position allowed past the class limit")
	}
	// Another class is still fine.
	if d := r.CanOpenPosition(ctx, domain.AssetForex, 10000); !d.Allowed {
		t.Fatalf("forex denied by crypto limit: %s", d.Reason)
	}

	r.RegisterPositionOpened(ctx, domain.AssetForex)
	if d := r.CanOpenPosition(ctx, domain.AssetForex, 10000); d.Allowed {
		t.Fatal("fourth position allowed past the total limit")
	}

	// Closing one frees a slot.
	r.RegisterPositionClosed(ctx, domain.AssetCrypto, 15)
	if d := r.CanOpenPosition(ctx, domain.AssetForex, 10000); !d.Allowed {
		t.Fatalf("slot not freed after close: %s", d.Reason)
	}
}

func TestLossStreakShrinksSize(t *testing.T) {
	alerter := &fakeAlerter{}
	r := newTestRiskEngine(RiskConfig{MaxConsecutiveLosses: 3, SizeReduction: 0.5}, nil, alerter)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		r.RegisterPositionOpened(ctx, domain.AssetCrypto)
		r.RegisterPositionClosed(ctx, domain.AssetCrypto, -20)
	}

	d := r.CanOpenPosition(ctx, domain.AssetCrypto, 10000)
	if !d.Allowed {
		t.Fatalf("loss streak denied the trade: %s", d.Reason)
	}
	if d.SizeMultiplier != 0.5 {
		t.Fatalf("multiplier = %.2f, want 0.5", d.SizeMultiplier)
	}
	if alert, ok := alerter.last(); !ok || alert.Title != "loss streak" {
		t.Fatalf("missing loss streak alert, got %+v", alert)
	}

	// One winning trade restores full size.
	r.RegisterPositionOpened(ctx, domain.AssetCrypto)
	r.RegisterPositionClosed(ctx, domain.AssetCrypto, 40)
	d = r.CanOpenPosition(ctx, domain.AssetCrypto, 10000)
	if d.SizeMultiplier != 1.0 {
		t.Fatalf("multiplier after win = %.2f, want 1.0", d.SizeMultiplier)
	}
	if got := r.Report(); got.ConsecutiveLosses != 0 {
		t.Fatalf("consecutive losses after win = %d, want 0", got.ConsecutiveLosses)
	}
}

func TestBreakevenCloseKeepsStreak(t *testing.T) {
	r := newTestRiskEngine(RiskConfig{MaxConsecutiveLosses: 3, SizeReduction: 0.5}, nil, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		r.RegisterPositionOpened(ctx, domain.AssetCrypto)
		r.RegisterPositionClosed(ctx, domain.AssetCrypto, -20)
	}

	// Closing flat is not a win: the streak and the reduced size stay.
	r.RegisterPositionOpened(ctx, domain.AssetCrypto)
	r.RegisterPositionClosed(ctx, domain.AssetCrypto, 0)

	got := r.Report()
	if got.ConsecutiveLosses != 4 {
		t.Fatalf("consecutive losses after breakeven = %d, want 4", got.ConsecutiveLosses)
	}
	if got.WinningTrades != 0 {
		t.Fatalf("breakeven counted as a win: %+v", got)
	}
	if d := r.CanOpenPosition(ctx, domain.AssetCrypto, 10000); d.SizeMultiplier != 0.5 {
		t.Fatalf("multiplier after breakeven = %.2f, want 0.5", d.SizeMultiplier)
	}
}

func TestTradeCountedOnClose(t *testing.T) {
	r := newTestRiskEngine(RiskConfig{}, nil, nil)
	ctx := context.Background()

	r.RegisterPositionOpened(ctx, domain.AssetCrypto)
	if got := r.Report(); got.TotalTrades != 0 {
		t.Fatalf("open position already counted as a trade: %d", got.TotalTrades)
	}

	r.RegisterPositionClosed(ctx, domain.AssetCrypto, 25)
	got := r.Report()
	if got.TotalTrades != 1 || got.WinningTrades != 1 {
		t.Fatalf("counters after close: %+v", got)
	}
	if got.TotalTrades != got.WinningTrades+got.LosingTrades {
		t.Fatalf("totals out of balance: %+v", got)
	}
}

func TestResetDaily(t *testing.T) {
	cache := newFakeCache()
	r := newTestRiskEngine(RiskConfig{MaxDailyLossPct: 10}, cache, nil)
	ctx := context.Background()

	r.CanOpenPosition(ctx, domain.AssetCrypto, 10000)
	r.CanOpenPosition(ctx, domain.AssetCrypto, 8900)
	if got := r.Report(); !got.TradingStopped {
		t.Fatal("precondition: trading should be stopped")
	}

	if err := r.ResetDaily(ctx); err != nil {
		t.Fatal(err)
	}
	got := r.Report()
	if got.TradingStopped || got.LossPct != 0 || got.InitialBalance != 0 {
		t.Fatalf("state after reset: %+v", got)
	}
	if _, ok, _ := cache.Get("risk:daily_state"); ok {
		t.Fatal("cached state not deleted on reset")
	}
	if d := r.CanOpenPosition(ctx, domain.AssetCrypto, 10000); !d.Allowed {
		t.Fatalf("trading still blocked after reset: %s", d.Reason)
	}
}

func TestStopFlagSurvivesRestart(t *testing.T) {
	cache := newFakeCache()
	r := newTestRiskEngine(RiskConfig{MaxDailyLossPct: 10}, cache, nil)
	ctx := context.Background()

	r.CanOpenPosition(ctx, domain.AssetCrypto, 10000)
	r.CanOpenPosition(ctx, domain.AssetCrypto, 8900)

	// A second engine over the same cache picks up the stop flag.
	r2 := newTestRiskEngine(RiskConfig{MaxDailyLossPct: 10}, cache, nil)
	if d := r2.CanOpenPosition(ctx, domain.AssetCrypto, 10000); d.Allowed {
		t.Fatal("restarted engine forgot the stop flag")
	}
}

func TestRolloverOnNewDay(t *testing.T) {
	r := newTestRiskEngine(RiskConfig{MaxDailyLossPct: 10}, nil, nil)
	ctx := context.Background()

	r.CanOpenPosition(ctx, domain.AssetCrypto, 10000)
	r.CanOpenPosition(ctx, domain.AssetCrypto, 8900)

	r.timeNow = func() time.Time {
		return time.Date(2025, 3, 11, 0, 5, 0, 0, time.UTC)
	}
	if d := r.CanOpenPosition(ctx, domain.AssetCrypto, 8900); !d.Allowed {
		t.Fatalf("new day still blocked: %s", d.Reason)
	}
	if got := r.Report(); got.Date != "2025-03-11" || got.InitialBalance != 8900 {
		t.Fatalf("state after rollover: %+v", got)
	}
}

func TestUpdateMetricsCache(t *testing.T) {
	cache := newFakeCache()
	r := newTestRiskEngine(RiskConfig{}, cache, nil)
	ctx := context.Background()

	r.CanOpenPosition(ctx, domain.AssetCrypto, 10000)
	r.RegisterPositionOpened(ctx, domain.AssetCrypto)
	if err := r.UpdateMetricsCache(ctx); err != nil {
		t.Fatal(err)
	}

	fields, err := cache.HashGetAll("risk:metrics")
	if err != nil {
		t.Fatal(err)
	}
	if fields["open_positions"] != "1" || fields["trading_stopped"] != "false" {
		t.Fatalf("unexpected metrics fields: %v", fields)
	}
	if fields["current_balance"] != "10000.00" {
		t.Fatalf("current_balance = %q", fields["current_balance"])
	}
}
