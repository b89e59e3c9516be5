package broker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/vitos/trade_bridge/internal/domain"
)

const (
	wsReconnectDelay = 5 * time.Second
	wsReadTimeout    = 60 * time.Second
	wsPingInterval   = 20 * time.Second
)

type wsQuote struct {
	Symbol string  `json:"symbol"`
	Bid    float64 `json:"bid"`
	Ask    float64 `json:"ask"`
	Time   int64   `json:"time"`
}

// StartStream keeps a websocket subscription for the given symbols alive
// until ctx is cancelled, feeding the quote cache that GetCurrentPrice reads
// first. Connection failures back off and reconnect; the REST fallback covers
// the gaps.
func (a *MT5Adapter) StartStream(ctx context.Context, symbols []string) {
	go func() {
		for {
			if err := a.streamOnce(ctx, symbols); err != nil {
				a.logger.Warn("quote stream interrupted", zap.Error(err))
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(wsReconnectDelay):
			}
		}
	}()
}

func (a *MT5Adapter) streamOnce(ctx context.Context, symbols []string) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, a.wsURL, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	sub := map[string]interface{}{
		"action":  "subscribe",
		"symbols": symbols,
	}
	if err := conn.WriteJSON(sub); err != nil {
		return err
	}
	a.logger.Info("quote stream connected", zap.Strings("symbols", symbols))

	// Close the connection when ctx ends so ReadMessage unblocks.
	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(wsPingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				conn.Close()
				return
			case <-done:
				return
			case <-ticker.C:
				_ = conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
			}
		}
	}()

	for {
		_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		var q wsQuote
		if err := json.Unmarshal(msg, &q); err != nil || q.Symbol == "" {
			continue
		}
		a.storeQuote(domain.Quote{Symbol: q.Symbol, Bid: q.Bid, Ask: q.Ask, Time: q.Time})
	}
}

func (a *MT5Adapter) storeQuote(q domain.Quote) {
	a.mu.Lock()
	a.lastQuotes[q.Symbol] = q
	a.quotedAt[q.Symbol] = time.Now()
	a.mu.Unlock()
}
