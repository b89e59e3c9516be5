package storage

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/vitos/trade_bridge/internal/domain"
)

const (
	upsertPriceQuery = `INSERT INTO price_data (symbol, timeframe, bar_time, open, high, low, close, volume)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (symbol, timeframe, bar_time) DO UPDATE SET
			open = EXCLUDED.open, high = EXCLUDED.high, low = EXCLUDED.low,
			close = EXCLUDED.close, volume = EXCLUDED.volume`

	insertSnapshotQuery = `INSERT INTO account_metrics
		(balance, equity, margin, free_margin, profit, leverage, open_positions, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	insertActiveTradeQuery = `INSERT INTO active_trades
		(ticket, symbol, side, volume, open_price, current_price, stop_loss, take_profit, profit, strategy, opened_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	insertHistoryQuery = `INSERT INTO trade_history
		(ticket, symbol, side, volume, open_price, close_price, profit, strategy, closed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
)

// PostgresStore persists market data, account snapshots and trades.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	store := &PostgresStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, err
	}
	return store, nil
}

// NewPostgresStoreWithDB wraps an existing connection without touching the
// schema. Used by tests.
func NewPostgresStoreWithDB(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS price_data (
			symbol TEXT NOT NULL,
			timeframe TEXT NOT NULL,
			bar_time BIGINT NOT NULL,
			open DOUBLE PRECISION NOT NULL,
			high DOUBLE PRECISION NOT NULL,
			low DOUBLE PRECISION NOT NULL,
			close DOUBLE PRECISION NOT NULL,
			volume DOUBLE PRECISION NOT NULL,
			PRIMARY KEY (symbol, timeframe, bar_time)
		)`,
		`CREATE TABLE IF NOT EXISTS account_metrics (
			id BIGSERIAL PRIMARY KEY,
			balance DOUBLE PRECISION NOT NULL,
			equity DOUBLE PRECISION NOT NULL,
			margin DOUBLE PRECISION NOT NULL,
			free_margin DOUBLE PRECISION NOT NULL,
			profit DOUBLE PRECISION NOT NULL,
			leverage INTEGER NOT NULL,
			open_positions INTEGER NOT NULL,
			recorded_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS active_trades (
			ticket BIGINT PRIMARY KEY,
			symbol TEXT NOT NULL,
			side TEXT NOT NULL,
			volume DOUBLE PRECISION NOT NULL,
			open_price DOUBLE PRECISION NOT NULL,
			current_price DOUBLE PRECISION NOT NULL,
			stop_loss DOUBLE PRECISION NOT NULL,
			take_profit DOUBLE PRECISION NOT NULL,
			profit DOUBLE PRECISION NOT NULL,
			strategy TEXT,
			opened_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS trade_history (
			id BIGSERIAL PRIMARY KEY,
			ticket BIGINT NOT NULL,
			symbol TEXT NOT NULL,
			side TEXT NOT NULL,
			volume DOUBLE PRECISION NOT NULL,
			open_price DOUBLE PRECISION NOT NULL,
			close_price DOUBLE PRECISION NOT NULL,
			profit DOUBLE PRECISION NOT NULL,
			strategy TEXT,
			closed_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_trade_history_closed_at ON trade_history(closed_at)`,
	}
	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

// StorePriceData upserts a candle batch and returns the number of rows
// written.
func (s *PostgresStore) StorePriceData(symbol, timeframe string, candles []domain.Candle) (int, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(upsertPriceQuery)
	if err != nil {
		return 0, fmt.Errorf("prepare price upsert: %w", err)
	}
	defer stmt.Close()

	stored := 0
	for _, c := range candles {
		if _, err := stmt.Exec(symbol, timeframe, c.Time, c.Open, c.High, c.Low, c.Close, c.Volume); err != nil {
			return stored, fmt.Errorf("upsert candle %s@%d: %w", symbol, c.Time, err)
		}
		stored++
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return stored, nil
}

func (s *PostgresStore) StoreAccountSnapshot(snap domain.AccountSnapshot) error {
	_, err := s.db.Exec(insertSnapshotQuery,
		snap.Balance, snap.Equity, snap.Margin, snap.FreeMargin,
		snap.Profit, snap.Leverage, snap.OpenPositions, snap.Time)
	if err != nil {
		return fmt.Errorf("insert account snapshot: %w", err)
	}
	return nil
}

// SyncActiveTrades replaces the active trades table with the current position
// set, in one transaction.
func (s *PostgresStore) SyncActiveTrades(positions []domain.Position) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM active_trades`); err != nil {
		return fmt.Errorf("clear active trades: %w", err)
	}
	for _, p := range positions {
		if _, err := tx.Exec(insertActiveTradeQuery,
			p.Ticket, p.Symbol, string(p.Side), p.Volume, p.OpenPrice,
			p.CurrentPrice, p.StopLoss, p.TakeProfit, p.Profit,
			p.Strategy, p.OpenedAt); err != nil {
			return fmt.Errorf("insert active trade %d: %w", p.Ticket, err)
		}
	}
	return tx.Commit()
}

func (s *PostgresStore) AppendTradeHistory(entry domain.TradeHistoryEntry) error {
	_, err := s.db.Exec(insertHistoryQuery,
		entry.Ticket, entry.Symbol, string(entry.Side), entry.Volume,
		entry.OpenPrice, entry.ClosePrice, entry.Profit, entry.Strategy,
		entry.ClosedAt)
	if err != nil {
		return fmt.Errorf("insert trade history %d: %w", entry.Ticket, err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
