package domain

import "time"

// TradeSignal is a directional trading signal produced by the analyzer.
// It is consumed once by the execution gate and then discarded.
type TradeSignal struct {
	Symbol     string    `json:"symbol"`
	Side       Side      `json:"side"`
	Strategy   string    `json:"strategy"`
	Entry      float64   `json:"entry"`
	StopLoss   float64   `json:"stop_loss"`
	TakeProfit float64   `json:"take_profit"`
	Confidence float64   `json:"confidence"` // fraction of conditions met, 0..1
	Reason     string    `json:"reason"`
	Timestamp  time.Time `json:"timestamp"`
}

// RiskRewardRatio returns the reward-to-risk ratio of the signal, or 0 when
// the stop distance is degenerate.
func (s *TradeSignal) RiskRewardRatio() float64 {
	risk := s.Entry - s.StopLoss
	reward := s.TakeProfit - s.Entry
	if s.Side == SideShort {
		risk, reward = -risk, -reward
	}
	if risk <= 0 {
		return 0
	}
	return reward / risk
}
