package usecase

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/vitos/trade_bridge/internal/domain"
)

// Analyzer turns a candle window into a trade signal according to its
// strategy profile. Long setups are evaluated before short ones; when both
// would qualify, long wins.
type Analyzer struct {
	profile StrategyProfile
	logger  *zap.Logger
	timeNow func() time.Time
}

func NewAnalyzer(profile StrategyProfile, logger *zap.Logger) *Analyzer {
	return &Analyzer{
		profile: profile,
		logger:  logger,
		timeNow: time.Now,
	}
}

func (a *Analyzer) Profile() StrategyProfile { return a.profile }

func (a *Analyzer) minBars() int {
	n := a.profile.RSIPeriod + 1
	for _, p := range []int{a.profile.EMASlow, a.profile.MACDSlow, a.profile.BBPeriod, a.profile.VolumePeriod} {
		if p > n {
			n = p
		}
	}
	return n
}

// Analyze returns a signal for the candle window, or nil when no setup
// qualifies. Candles must be oldest first.
func (a *Analyzer) Analyze(symbol string, candles []domain.Candle) *domain.TradeSignal {
	if len(candles) < a.minBars() {
		a.logger.Warn("not enough candles for analysis",
			zap.String("symbol", symbol),
			zap.Int("have", len(candles)),
			zap.Int("need", a.minBars()))
		return nil
	}

	now := a.timeNow().UTC()
	for _, h := range a.profile.AvoidHours {
		if now.Hour() == h {
			a.logger.Debug("skipping low-liquidity hour",
				zap.String("symbol", symbol), zap.Int("hour", h))
			return nil
		}
	}

	closes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
	}
	last := candles[len(candles)-1]

	curRSI := rsi(closes, a.profile.RSIPeriod)
	curEMAFast := emaLast(closes, a.profile.EMAFast)
	curEMASlow := emaLast(closes, a.profile.EMASlow)
	curHist := macdHistogram(closes, a.profile.MACDFast, a.profile.MACDSlow, a.profile.MACDSignal)
	bbUpper, bbMiddle, bbLower := bollinger(closes, a.profile.BBPeriod, a.profile.BBStdDev)
	curVWAP := vwap(candles)
	avgVol := averageVolume(candles, a.profile.VolumePeriod)

	a.logger.Debug("indicator snapshot",
		zap.String("symbol", symbol),
		zap.Float64("rsi", curRSI),
		zap.Float64("ema_fast", curEMAFast),
		zap.Float64("ema_slow", curEMASlow),
		zap.Float64("macd_hist", curHist),
		zap.Float64("bb_upper", bbUpper),
		zap.Float64("bb_middle", bbMiddle),
		zap.Float64("bb_lower", bbLower),
		zap.Float64("vwap", curVWAP),
		zap.Float64("avg_volume", avgVol))

	if !a.volumeOK(last.Volume, avgVol) {
		a.logger.Debug("volume below threshold",
			zap.String("symbol", symbol),
			zap.Float64("volume", last.Volume),
			zap.Float64("avg_volume", avgVol))
		return nil
	}

	type condition struct {
		name string
		met  bool
	}
	evaluate := func(conds []condition) (int, string) {
		met := 0
		names := make([]string, 0, len(conds))
		for _, c := range conds {
			if c.met {
				met++
				names = append(names, c.name)
			}
		}
		return met, strings.Join(names, ",")
	}

	longConds := []condition{
		{"rsi", curRSI < a.profile.RSIOversold},
		{"ema", curEMAFast > curEMASlow},
		{"macd", curHist > 0},
		{"vwap", last.Close > curVWAP},
	}
	if met, names := evaluate(longConds); met >= a.profile.MinConditions {
		return a.signal(symbol, domain.SideLong, last.Close, met, len(longConds), names)
	}

	shortConds := []condition{
		{"rsi", curRSI > a.profile.RSIOverbought},
		{"ema", curEMAFast < curEMASlow},
		{"macd", curHist < 0},
		{"vwap", last.Close < curVWAP},
	}
	if met, names := evaluate(shortConds); met >= a.profile.MinConditions {
		return a.signal(symbol, domain.SideShort, last.Close, met, len(shortConds), names)
	}

	return nil
}

func (a *Analyzer) volumeOK(current, avg float64) bool {
	threshold := avg * a.profile.VolumeMultiplier
	if a.profile.StrictVolume {
		return current > threshold
	}
	return current >= threshold
}

func (a *Analyzer) signal(symbol string, side domain.Side, entry float64, met, total int, names string) *domain.TradeSignal {
	sl, tp := a.stopTake(entry, side)
	sig := &domain.TradeSignal{
		Symbol:     symbol,
		Side:       side,
		Strategy:   a.profile.Name,
		Entry:      entry,
		StopLoss:   sl,
		TakeProfit: tp,
		Confidence: float64(met) / float64(total),
		Reason:     fmt.Sprintf("%d/%d conditions met: %s", met, total, names),
		Timestamp:  a.timeNow().UTC(),
	}
	a.logger.Info("trade signal detected",
		zap.String("symbol", symbol),
		zap.String("side", string(side)),
		zap.String("strategy", a.profile.Name),
		zap.Float64("entry", entry),
		zap.Float64("stop_loss", sl),
		zap.Float64("take_profit", tp),
		zap.String("reason", sig.Reason))
	metricSignalsDetected.WithLabelValues(symbol, string(side)).Inc()
	return sig
}

// stopTake derives stop loss and take profit from fixed percent offsets,
// direction aware.
func (a *Analyzer) stopTake(entry float64, side domain.Side) (sl, tp float64) {
	if side == domain.SideLong {
		return entry * (1 - a.profile.StopLossPct/100), entry * (1 + a.profile.TakeProfitPct/100)
	}
	return entry * (1 + a.profile.StopLossPct/100), entry * (1 - a.profile.TakeProfitPct/100)
}
