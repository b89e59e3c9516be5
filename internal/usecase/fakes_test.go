package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/vitos/trade_bridge/internal/domain"
)

// fakeCache is an in-memory domain.Cache without TTL expiry.
type fakeCache struct {
	mu     sync.Mutex
	kv     map[string]string
	hashes map[string]map[string]string
}

func newFakeCache() *fakeCache {
	return &fakeCache{
		kv:     map[string]string{},
		hashes: map[string]map[string]string{},
	}
}

func (c *fakeCache) Set(key, value string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.kv[key] = value
	return nil
}

func (c *fakeCache) Get(key string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.kv[key]
	return v, ok, nil
}

func (c *fakeCache) HashSet(name string, fields map[string]string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	h, ok := c.hashes[name]
	if !ok {
		h = map[string]string{}
		c.hashes[name] = h
	}
	for k, v := range fields {
		h[k] = v
	}
	return nil
}

func (c *fakeCache) HashGetAll(name string) (map[string]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := map[string]string{}
	for k, v := range c.hashes[name] {
		out[k] = v
	}
	return out, nil
}

func (c *fakeCache) Delete(key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.kv, key)
	delete(c.hashes, key)
	return nil
}

type alertRecord struct {
	Title   string
	Message string
}

type fakeAlerter struct {
	mu     sync.Mutex
	alerts []alertRecord
}

func (a *fakeAlerter) PublishAlert(ctx context.Context, title, message string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.alerts = append(a.alerts, alertRecord{Title: title, Message: message})
}

func (a *fakeAlerter) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.alerts)
}

func (a *fakeAlerter) last() (alertRecord, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.alerts) == 0 {
		return alertRecord{}, false
	}
	return a.alerts[len(a.alerts)-1], true
}

// fakeBroker serves canned data and records orders.
type fakeBroker struct {
	mu          sync.Mutex
	account     domain.AccountSnapshot
	positions   []domain.Position
	instruments map[string]domain.Instrument
	quotes      map[string]domain.Quote
	quoteErr    error
	orderResult domain.OrderResult
	orderErr    error
	orders      []domain.OrderRequest
}

func (b *fakeBroker) GetAccountSnapshot(ctx context.Context) (domain.AccountSnapshot, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.account, nil
}

func (b *fakeBroker) GetPositions(ctx context.Context) ([]domain.Position, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]domain.Position, len(b.positions))
	copy(out, b.positions)
	return out, nil
}

func (b *fakeBroker) GetInstrument(ctx context.Context, symbol string) (domain.Instrument, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.instruments[symbol], nil
}

func (b *fakeBroker) GetCurrentPrice(ctx context.Context, symbol string) (domain.Quote, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.quoteErr != nil {
		return domain.Quote{}, b.quoteErr
	}
	return b.quotes[symbol], nil
}

func (b *fakeBroker) SendOrder(ctx context.Context, req domain.OrderRequest) (domain.OrderResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.orders = append(b.orders, req)
	return b.orderResult, b.orderErr
}

func (b *fakeBroker) ClosePosition(ctx context.Context, ticket int64) (domain.OrderResult, error) {
	return domain.OrderResult{OK: true, Ticket: ticket}, nil
}

func (b *fakeBroker) setPositions(positions []domain.Position) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.positions = positions
}

func (b *fakeBroker) sentOrders() []domain.OrderRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]domain.OrderRequest, len(b.orders))
	copy(out, b.orders)
	return out
}

// fakeMarket returns canned candles per symbol.
type fakeMarket struct {
	mu      sync.Mutex
	candles map[string][]domain.Candle
	err     error
}

func (m *fakeMarket) FetchBars(ctx context.Context, symbol, timeframe string, count int) ([]domain.Candle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return m.candles[symbol], nil
}

// fakeStore records everything written to it.
type fakeStore struct {
	mu        sync.Mutex
	prices    map[string][]domain.Candle
	snapshots []domain.AccountSnapshot
	active    []domain.Position
	history   []domain.TradeHistoryEntry
}

func newFakeStore() *fakeStore {
	return &fakeStore{prices: map[string][]domain.Candle{}}
}

func (s *fakeStore) StorePriceData(symbol, timeframe string, candles []domain.Candle) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prices[symbol] = append(s.prices[symbol], candles...)
	return len(candles), nil
}

func (s *fakeStore) StoreAccountSnapshot(snap domain.AccountSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots = append(s.snapshots, snap)
	return nil
}

func (s *fakeStore) SyncActiveTrades(positions []domain.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = make([]domain.Position, len(positions))
	copy(s.active, positions)
	return nil
}

func (s *fakeStore) AppendTradeHistory(entry domain.TradeHistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, entry)
	return nil
}

func (s *fakeStore) tradeHistory() []domain.TradeHistoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.TradeHistoryEntry, len(s.history))
	copy(out, s.history)
	return out
}
