package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/vitos/trade_bridge/internal/domain"
)

var (
	ErrInvalidStopDistance = errors.New("stop distance must be positive")
	ErrInvalidPointSize    = errors.New("instrument point size must be positive")
	ErrInvalidPipValue     = errors.New("instrument pip value must be positive")
)

// ExecutionStatus is the final state of an execution attempt.
type ExecutionStatus string

const (
	StatusExecuted ExecutionStatus = "executed"
	StatusSkipped  ExecutionStatus = "skipped"  // execution disabled
	StatusRejected ExecutionStatus = "rejected" // broker said no
	StatusFailed   ExecutionStatus = "failed"   // transport or bridge error
)

// ExecutionResult reports what happened to a signal. A broker rejection is a
// regular result, not an error.
type ExecutionResult struct {
	Status     ExecutionStatus `json:"status"`
	Ticket     int64           `json:"ticket,omitempty"`
	Volume     float64         `json:"volume,omitempty"`
	Price      float64         `json:"price,omitempty"`
	Reason     string          `json:"reason,omitempty"`
	BrokerCode int             `json:"broker_code,omitempty"`
}

// Executor is the last gate before the broker. It sizes positions from the
// account risk budget and honors a global execution switch: with the switch
// off every signal is analyzed and logged but nothing is sent out.
type Executor struct {
	broker    domain.Broker
	logger    *zap.Logger
	enabled   atomic.Bool
	deviation int // max slippage in points
	magic     int
}

func NewExecutor(broker domain.Broker, logger *zap.Logger, enabled bool) *Executor {
	e := &Executor{
		broker:    broker,
		logger:    logger,
		deviation: 20,
		magic:     230984,
	}
	e.enabled.Store(enabled)
	return e
}

func (e *Executor) Enabled() bool { return e.enabled.Load() }

func (e *Executor) SetEnabled(on bool) {
	e.enabled.Store(on)
	e.logger.Info("execution switch changed", zap.Bool("enabled", on))
}

// SizePosition converts the account risk budget into lots. Cash settled
// instruments divide risk by the raw stop distance; everything else goes
// through point size and pip value. Lots are rounded to the nearest volume
// step, then clamped. Broken instrument metadata is an error, never silently
// coerced into a tradable size.
func (e *Executor) SizePosition(balance, entry, stop, riskPct float64, inst domain.Instrument) (float64, error) {
	dist := math.Abs(entry - stop)
	if dist <= 0 {
		return 0, fmt.Errorf("%s: %w", inst.Symbol, ErrInvalidStopDistance)
	}
	riskAmount := balance * riskPct / 100

	var lots float64
	if inst.CashSettled {
		lots = riskAmount / dist
	} else {
		if inst.PointSize <= 0 {
			return 0, fmt.Errorf("%s: %w", inst.Symbol, ErrInvalidPointSize)
		}
		if inst.PipValue <= 0 {
			return 0, fmt.Errorf("%s: %w", inst.Symbol, ErrInvalidPipValue)
		}
		pipDistance := dist / inst.PointSize
		lots = riskAmount / (pipDistance * inst.PipValue)
	}

	if inst.VolumeStep > 0 {
		lots = math.Round(lots/inst.VolumeStep) * inst.VolumeStep
	}
	if inst.VolumeMin > 0 && lots < inst.VolumeMin {
		lots = inst.VolumeMin
	}
	if inst.VolumeMax > 0 && lots > inst.VolumeMax {
		lots = inst.VolumeMax
	}
	return lots, nil
}

// ExecuteSignal sends the order for a sized signal. The signal's entry price
// is only a reference from the analyzed candle; the order itself is priced at
// the current ask (long) or bid (short).
func (e *Executor) ExecuteSignal(ctx context.Context, sig *domain.TradeSignal, volume float64) ExecutionResult {
	if !e.enabled.Load() {
		e.logger.Info("execution disabled, signal not sent",
			zap.String("symbol", sig.Symbol),
			zap.String("side", string(sig.Side)),
			zap.Float64("volume", volume))
		metricOrdersExecuted.WithLabelValues(string(StatusSkipped)).Inc()
		return ExecutionResult{Status: StatusSkipped, Volume: volume, Reason: "execution disabled"}
	}

	quote, err := e.broker.GetCurrentPrice(ctx, sig.Symbol)
	if err != nil {
		e.logger.Error("price fetch failed",
			zap.String("symbol", sig.Symbol), zap.Error(err))
		metricOrdersExecuted.WithLabelValues(string(StatusFailed)).Inc()
		return ExecutionResult{Status: StatusFailed, Volume: volume, Reason: err.Error()}
	}
	price := quote.Ask
	if sig.Side == domain.SideShort {
		price = quote.Bid
	}
	if price <= 0 {
		e.logger.Error("no tradable price",
			zap.String("symbol", sig.Symbol),
			zap.Float64("bid", quote.Bid), zap.Float64("ask", quote.Ask))
		metricOrdersExecuted.WithLabelValues(string(StatusFailed)).Inc()
		return ExecutionResult{Status: StatusFailed, Volume: volume, Reason: "no tradable price"}
	}

	req := domain.OrderRequest{
		Symbol:     sig.Symbol,
		Side:       sig.Side,
		Volume:     volume,
		Price:      price,
		StopLoss:   sig.StopLoss,
		TakeProfit: sig.TakeProfit,
		Deviation:  e.deviation,
		Magic:      e.magic,
		Comment:    sig.Strategy,
	}

	res, err := e.broker.SendOrder(ctx, req)
	if err != nil {
		e.logger.Error("order send failed",
			zap.String("symbol", sig.Symbol), zap.Error(err))
		metricOrdersExecuted.WithLabelValues(string(StatusFailed)).Inc()
		return ExecutionResult{Status: StatusFailed, Volume: volume, Reason: err.Error()}
	}
	if !res.OK {
		e.logger.Warn("order rejected by broker",
			zap.String("symbol", sig.Symbol),
			zap.String("reason", res.Reason),
			zap.Int("broker_code", res.BrokerCode))
		metricOrdersExecuted.WithLabelValues(string(StatusRejected)).Inc()
		return ExecutionResult{
			Status:     StatusRejected,
			Volume:     volume,
			Reason:     res.Reason,
			BrokerCode: res.BrokerCode,
		}
	}

	e.logger.Info("order executed",
		zap.String("symbol", sig.Symbol),
		zap.String("side", string(sig.Side)),
		zap.Float64("volume", volume),
		zap.Int64("ticket", res.Ticket),
		zap.Float64("price", res.Price))
	metricOrdersExecuted.WithLabelValues(string(StatusExecuted)).Inc()
	return ExecutionResult{
		Status: StatusExecuted,
		Ticket: res.Ticket,
		Volume: volume,
		Price:  res.Price,
	}
}
