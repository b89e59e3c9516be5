package domain

import (
	"context"
	"time"
)

// MarketData supplies historical OHLCV bars for a symbol, oldest first.
type MarketData interface {
	FetchBars(ctx context.Context, symbol, timeframe string, count int) ([]Candle, error)
}

// Broker defines the interface for interacting with the trading terminal.
// A rejected order is a normal OrderResult, not an error; errors mean the
// terminal could not be reached or answered garbage.
type Broker interface {
	GetAccountSnapshot(ctx context.Context) (AccountSnapshot, error)
	GetPositions(ctx context.Context) ([]Position, error)
	GetInstrument(ctx context.Context, symbol string) (Instrument, error)
	GetCurrentPrice(ctx context.Context, symbol string) (Quote, error)
	SendOrder(ctx context.Context, req OrderRequest) (OrderResult, error)
	ClosePosition(ctx context.Context, ticket int64) (OrderResult, error)
}

// Store defines persistence operations for market and account data.
type Store interface {
	StorePriceData(symbol, timeframe string, candles []Candle) (int, error)
	StoreAccountSnapshot(snap AccountSnapshot) error
	SyncActiveTrades(positions []Position) error
	AppendTradeHistory(entry TradeHistoryEntry) error
}

// Cache is a durable key-value cache. The risk engine uses it to keep the
// daily risk state across restarts within the same trading day.
type Cache interface {
	Set(key, value string, ttl time.Duration) error
	Get(key string) (string, bool, error)
	HashSet(name string, fields map[string]string) error
	HashGetAll(name string) (map[string]string, error)
	Delete(key string) error
}

// Alerter is a fire-and-forget notification sink. Implementations must never
// block trading control flow on delivery.
type Alerter interface {
	PublishAlert(ctx context.Context, title, message string)
}
