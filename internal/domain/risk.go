package domain

type AssetClass string

const (
	AssetForex  AssetClass = "forex"
	AssetCrypto AssetClass = "crypto"
)

// DailyRiskState is the per-day risk ledger. Exactly one live instance exists
// per calendar date; it is owned by the risk engine and all mutation goes
// through RegisterPositionOpened / RegisterPositionClosed there.
type DailyRiskState struct {
	Date              string                 `json:"date"` // YYYY-MM-DD
	InitialBalance    float64                `json:"initial_balance"`
	CurrentBalance    float64                `json:"current_balance"`
	TotalPnL          float64                `json:"total_pnl"`
	PnLByClass        map[AssetClass]float64 `json:"pnl_by_class"`
	LossPct           float64                `json:"loss_pct"` // >= 0, gains never push it negative
	ConsecutiveLosses int                    `json:"consecutive_losses"`
	OpenByClass       map[AssetClass]int     `json:"open_by_class"`
	TotalTrades       int                    `json:"total_trades"`
	WinningTrades     int                    `json:"winning_trades"`
	LosingTrades      int                    `json:"losing_trades"`
	TradingStopped    bool                   `json:"trading_stopped"` // monotone within a day
	SizeMultiplier    float64                `json:"size_multiplier"` // in (0, 1]
}

// OpenTotal returns the total number of tracked open positions.
func (s *DailyRiskState) OpenTotal() int {
	total := 0
	for _, n := range s.OpenByClass {
		total += n
	}
	return total
}
