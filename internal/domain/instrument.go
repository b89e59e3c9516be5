package domain

// Instrument holds the trading constraints of a symbol as reported by the
// broker. Position sizing must respect all of them.
type Instrument struct {
	Symbol       string  `json:"symbol"`
	PointSize    float64 `json:"point_size"`    // smallest price increment
	ContractSize float64 `json:"contract_size"` // units per lot (100000 for forex, 1 for crypto CFDs)
	PipValue     float64 `json:"pip_value"`     // account-currency value of one point per lot
	VolumeStep   float64 `json:"volume_step"`
	VolumeMin    float64 `json:"volume_min"`
	VolumeMax    float64 `json:"volume_max"`
	CashSettled  bool    `json:"cash_settled"` // unit-priced asset: lots = risk / stop distance
}

// Quote is the current tradable bid/ask for a symbol.
type Quote struct {
	Symbol string  `json:"symbol"`
	Bid    float64 `json:"bid"`
	Ask    float64 `json:"ask"`
	Time   int64   `json:"time"`
}

type Candle struct {
	Time   int64   `json:"time"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}
