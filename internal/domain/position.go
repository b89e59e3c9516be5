package domain

import "time"

type Side string

const (
	SideLong  Side = "LONG"
	SideShort Side = "SHORT"
)

// Position represents an open position on the terminal.
type Position struct {
	Ticket       int64     `json:"ticket"`
	Symbol       string    `json:"symbol"`
	Side         Side      `json:"side"`
	Volume       float64   `json:"volume"`
	OpenPrice    float64   `json:"open_price"`
	CurrentPrice float64   `json:"current_price"`
	StopLoss     float64   `json:"stop_loss"`
	TakeProfit   float64   `json:"take_profit"`
	Profit       float64   `json:"profit"` // floating P/L in account currency
	Strategy     string    `json:"strategy"`
	OpenedAt     time.Time `json:"opened_at"`
}

// AccountSnapshot is a point-in-time view of the trading account.
type AccountSnapshot struct {
	Balance       float64   `json:"balance"`
	Equity        float64   `json:"equity"`
	Margin        float64   `json:"margin"`
	FreeMargin    float64   `json:"free_margin"`
	Profit        float64   `json:"profit"`
	Leverage      int       `json:"leverage"`
	OpenPositions int       `json:"open_positions"`
	Time          time.Time `json:"time"`
}

// OrderRequest describes a market order to be sent to the broker.
type OrderRequest struct {
	Symbol     string  `json:"symbol"`
	Side       Side    `json:"side"`
	Volume     float64 `json:"volume"`
	Price      float64 `json:"price"`
	StopLoss   float64 `json:"stop_loss"`
	TakeProfit float64 `json:"take_profit"`
	Deviation  int     `json:"deviation"` // max slippage in points
	Magic      int     `json:"magic"`
	Comment    string  `json:"comment"`
}

// OrderResult is the broker's answer to an order request. A rejection is a
// normal result, not an error: OK is false and Reason/BrokerCode explain why.
type OrderResult struct {
	OK         bool    `json:"ok"`
	Ticket     int64   `json:"ticket"`
	Price      float64 `json:"price"`
	Reason     string  `json:"reason"`
	BrokerCode int     `json:"broker_code"`
}

// TradeHistoryEntry records a closed position.
type TradeHistoryEntry struct {
	Ticket     int64     `json:"ticket"`
	Symbol     string    `json:"symbol"`
	Side       Side      `json:"side"`
	Volume     float64   `json:"volume"`
	OpenPrice  float64   `json:"open_price"`
	ClosePrice float64   `json:"close_price"`
	Profit     float64   `json:"profit"`
	Strategy   string    `json:"strategy"`
	ClosedAt   time.Time `json:"closed_at"`
}
