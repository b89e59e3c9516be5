package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vitos/trade_bridge/internal/domain"
)

// SyncService keeps the database in step with the terminal: price history,
// account metrics and the set of open positions. It also watches for tickets
// that disappear between polls, which is the only way the bridge learns that
// a stop loss or take profit fired on the terminal side.
type SyncService struct {
	market   domain.MarketData
	broker   domain.Broker
	store    domain.Store
	risk     *RiskEngine
	classify func(symbol string) domain.AssetClass
	logger   *zap.Logger

	mu        sync.Mutex
	lastKnown map[int64]domain.Position
	primed    bool

	timeNow func() time.Time
}

func NewSyncService(
	market domain.MarketData,
	broker domain.Broker,
	store domain.Store,
	risk *RiskEngine,
	classify func(symbol string) domain.AssetClass,
	logger *zap.Logger,
) *SyncService {
	return &SyncService{
		market:    market,
		broker:    broker,
		store:     store,
		risk:      risk,
		classify:  classify,
		logger:    logger,
		lastKnown: map[int64]domain.Position{},
		timeNow:   time.Now,
	}
}

// SyncPrices fetches the latest candles for one symbol and stores them.
func (s *SyncService) SyncPrices(ctx context.Context, symbol, timeframe string, bars int) error {
	candles, err := s.market.FetchBars(ctx, symbol, timeframe, bars)
	if err != nil {
		return fmt.Errorf("fetch bars %s %s: %w", symbol, timeframe, err)
	}
	if len(candles) == 0 {
		s.logger.Warn("no candles returned",
			zap.String("symbol", symbol), zap.String("timeframe", timeframe))
		return nil
	}
	stored, err := s.store.StorePriceData(symbol, timeframe, candles)
	if err != nil {
		return fmt.Errorf("store price data %s: %w", symbol, err)
	}
	s.logger.Debug("price data synced",
		zap.String("symbol", symbol),
		zap.String("timeframe", timeframe),
		zap.Int("fetched", len(candles)),
		zap.Int("stored", stored))
	return nil
}

// SyncAccountMetrics stores an account snapshot and refreshes the cached risk
// metrics.
func (s *SyncService) SyncAccountMetrics(ctx context.Context) error {
	snap, err := s.broker.GetAccountSnapshot(ctx)
	if err != nil {
		return fmt.Errorf("account snapshot: %w", err)
	}
	if err := s.store.StoreAccountSnapshot(snap); err != nil {
		return fmt.Errorf("store account snapshot: %w", err)
	}
	if err := s.risk.UpdateMetricsCache(ctx); err != nil {
		s.logger.Error("risk metrics cache update failed", zap.Error(err))
	}
	return nil
}

// SyncTrades mirrors the open positions into the database and settles every
// ticket that vanished since the previous poll. The realized profit of a
// vanished ticket is approximated by its last observed floating profit; the
// terminal does not report the final number through the positions endpoint.
func (s *SyncService) SyncTrades(ctx context.Context) error {
	positions, err := s.broker.GetPositions(ctx)
	if err != nil {
		return fmt.Errorf("get positions: %w", err)
	}
	if err := s.store.SyncActiveTrades(positions); err != nil {
		return fmt.Errorf("sync active trades: %w", err)
	}

	current := make(map[int64]domain.Position, len(positions))
	for _, p := range positions {
		current[p.Ticket] = p
	}

	s.mu.Lock()
	var closed []domain.Position
	if s.primed {
		for ticket, p := range s.lastKnown {
			if _, ok := current[ticket]; !ok {
				closed = append(closed, p)
			}
		}
	}
	s.lastKnown = current
	s.primed = true
	s.mu.Unlock()

	for _, p := range closed {
		s.settleClosedPosition(ctx, p)
	}
	return nil
}

func (s *SyncService) settleClosedPosition(ctx context.Context, p domain.Position) {
	class := s.classify(p.Symbol)
	s.risk.RegisterPositionClosed(ctx, class, p.Profit)

	entry := domain.TradeHistoryEntry{
		Ticket:     p.Ticket,
		Symbol:     p.Symbol,
		Side:       p.Side,
		Volume:     p.Volume,
		OpenPrice:  p.OpenPrice,
		ClosePrice: p.CurrentPrice,
		Profit:     p.Profit,
		Strategy:   p.Strategy,
		ClosedAt:   s.timeNow().UTC(),
	}
	if err := s.store.AppendTradeHistory(entry); err != nil {
		s.logger.Error("failed to record closed trade",
			zap.Int64("ticket", p.Ticket), zap.Error(err))
	}
	s.logger.Info("position closed on terminal",
		zap.Int64("ticket", p.Ticket),
		zap.String("symbol", p.Symbol),
		zap.Float64("profit", p.Profit))
}
