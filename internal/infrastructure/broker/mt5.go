package broker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vitos/trade_bridge/internal/domain"
)

// quoteFreshness is how long a streamed quote is preferred over a REST call.
const quoteFreshness = 5 * time.Second

// MT5Adapter talks to the bridge service running next to the MetaTrader 5
// terminal: REST for account state, candles and orders, a websocket stream
// for live quotes. It implements domain.Broker and domain.MarketData.
type MT5Adapter struct {
	baseURL string
	wsURL   string
	client  *http.Client
	logger  *zap.Logger

	mu         sync.Mutex
	lastQuotes map[string]domain.Quote
	quotedAt   map[string]time.Time
}

func NewMT5Adapter(baseURL, wsURL string, logger *zap.Logger) *MT5Adapter {
	return &MT5Adapter{
		baseURL:    baseURL,
		wsURL:      wsURL,
		client:     &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
		lastQuotes: map[string]domain.Quote{},
		quotedAt:   map[string]time.Time{},
	}
}

func (a *MT5Adapter) sendRequest(ctx context.Context, method, path string, payload interface{}) ([]byte, error) {
	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal payload: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("bridge request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("bridge error %d on %s: %s", resp.StatusCode, path, string(respBody))
	}
	return respBody, nil
}

func (a *MT5Adapter) GetAccountSnapshot(ctx context.Context) (domain.AccountSnapshot, error) {
	resp, err := a.sendRequest(ctx, http.MethodGet, "/api/account", nil)
	if err != nil {
		return domain.AccountSnapshot{}, err
	}

	var result struct {
		Balance       float64 `json:"balance"`
		Equity        float64 `json:"equity"`
		Margin        float64 `json:"margin"`
		FreeMargin    float64 `json:"free_margin"`
		Profit        float64 `json:"profit"`
		Leverage      int     `json:"leverage"`
		OpenPositions int     `json:"open_positions"`
	}
	if err := json.Unmarshal(resp, &result); err != nil {
		return domain.AccountSnapshot{}, fmt.Errorf("decode account: %w", err)
	}
	return domain.AccountSnapshot{
		Balance:       result.Balance,
		Equity:        result.Equity,
		Margin:        result.Margin,
		FreeMargin:    result.FreeMargin,
		Profit:        result.Profit,
		Leverage:      result.Leverage,
		OpenPositions: result.OpenPositions,
		Time:          time.Now().UTC(),
	}, nil
}

func (a *MT5Adapter) GetPositions(ctx context.Context) ([]domain.Position, error) {
	resp, err := a.sendRequest(ctx, http.MethodGet, "/api/positions", nil)
	if err != nil {
		return nil, err
	}

	var result struct {
		Positions []struct {
			Ticket       int64   `json:"ticket"`
			Symbol       string  `json:"symbol"`
			Type         string  `json:"type"` // "buy" or "sell"
			Volume       float64 `json:"volume"`
			OpenPrice    float64 `json:"open_price"`
			CurrentPrice float64 `json:"current_price"`
			StopLoss     float64 `json:"sl"`
			TakeProfit   float64 `json:"tp"`
			Profit       float64 `json:"profit"`
			Comment      string  `json:"comment"`
			OpenTime     int64   `json:"open_time"`
		} `json:"positions"`
	}
	if err := json.Unmarshal(resp, &result); err != nil {
		return nil, fmt.Errorf("decode positions: %w", err)
	}

	positions := make([]domain.Position, 0, len(result.Positions))
	for _, p := range result.Positions {
		side := domain.SideLong
		if p.Type == "sell" {
			side = domain.SideShort
		}
		positions = append(positions, domain.Position{
			Ticket:       p.Ticket,
			Symbol:       p.Symbol,
			Side:         side,
			Volume:       p.Volume,
			OpenPrice:    p.OpenPrice,
			CurrentPrice: p.CurrentPrice,
			StopLoss:     p.StopLoss,
			TakeProfit:   p.TakeProfit,
			Profit:       p.Profit,
			Strategy:     p.Comment,
			OpenedAt:     time.Unix(p.OpenTime, 0).UTC(),
		})
	}
	return positions, nil
}

func (a *MT5Adapter) GetInstrument(ctx context.Context, symbol string) (domain.Instrument, error) {
	resp, err := a.sendRequest(ctx, http.MethodGet, "/api/symbols/"+url.PathEscape(symbol), nil)
	if err != nil {
		return domain.Instrument{}, err
	}

	var result struct {
		Symbol       string  `json:"symbol"`
		Point        float64 `json:"point"`
		ContractSize float64 `json:"contract_size"`
		TickValue    float64 `json:"tick_value"`
		VolumeStep   float64 `json:"volume_step"`
		VolumeMin    float64 `json:"volume_min"`
		VolumeMax    float64 `json:"volume_max"`
		CashSettled  bool    `json:"cash_settled"`
	}
	if err := json.Unmarshal(resp, &result); err != nil {
		return domain.Instrument{}, fmt.Errorf("decode instrument %s: %w", symbol, err)
	}
	return domain.Instrument{
		Symbol:       result.Symbol,
		PointSize:    result.Point,
		ContractSize: result.ContractSize,
		PipValue:     result.TickValue,
		VolumeStep:   result.VolumeStep,
		VolumeMin:    result.VolumeMin,
		VolumeMax:    result.VolumeMax,
		CashSettled:  result.CashSettled,
	}, nil
}

// GetCurrentPrice prefers a fresh streamed quote and falls back to REST.
func (a *MT5Adapter) GetCurrentPrice(ctx context.Context, symbol string) (domain.Quote, error) {
	a.mu.Lock()
	quote, ok := a.lastQuotes[symbol]
	at := a.quotedAt[symbol]
	a.mu.Unlock()
	if ok && time.Since(at) < quoteFreshness {
		return quote, nil
	}

	resp, err := a.sendRequest(ctx, http.MethodGet, "/api/price/"+url.PathEscape(symbol), nil)
	if err != nil {
		return domain.Quote{}, err
	}
	var result domain.Quote
	if err := json.Unmarshal(resp, &result); err != nil {
		return domain.Quote{}, fmt.Errorf("decode quote %s: %w", symbol, err)
	}
	if result.Symbol == "" {
		result.Symbol = symbol
	}
	return result, nil
}

// FetchBars returns up to count candles, oldest first.
func (a *MT5Adapter) FetchBars(ctx context.Context, symbol, timeframe string, count int) ([]domain.Candle, error) {
	path := fmt.Sprintf("/api/bars?symbol=%s&timeframe=%s&count=%d",
		url.QueryEscape(symbol), url.QueryEscape(timeframe), count)
	resp, err := a.sendRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	var result struct {
		Bars []domain.Candle `json:"bars"`
	}
	if err := json.Unmarshal(resp, &result); err != nil {
		return nil, fmt.Errorf("decode bars %s: %w", symbol, err)
	}
	return result.Bars, nil
}

// SendOrder submits a market order. A terminal rejection comes back as a
// result with OK=false, not as an error.
func (a *MT5Adapter) SendOrder(ctx context.Context, req domain.OrderRequest) (domain.OrderResult, error) {
	payload := map[string]interface{}{
		"symbol":    req.Symbol,
		"side":      string(req.Side),
		"volume":    req.Volume,
		"price":     req.Price,
		"sl":        req.StopLoss,
		"tp":        req.TakeProfit,
		"deviation": req.Deviation,
		"magic":     req.Magic,
		"comment":   req.Comment,
	}
	resp, err := a.sendRequest(ctx, http.MethodPost, "/api/order", payload)
	if err != nil {
		return domain.OrderResult{}, err
	}

	var result struct {
		Success bool    `json:"success"`
		Ticket  int64   `json:"ticket"`
		Price   float64 `json:"price"`
		Retcode int     `json:"retcode"`
		Comment string  `json:"comment"`
	}
	if err := json.Unmarshal(resp, &result); err != nil {
		return domain.OrderResult{}, fmt.Errorf("decode order result: %w", err)
	}
	return domain.OrderResult{
		OK:         result.Success,
		Ticket:     result.Ticket,
		Price:      result.Price,
		Reason:     result.Comment,
		BrokerCode: result.Retcode,
	}, nil
}

func (a *MT5Adapter) ClosePosition(ctx context.Context, ticket int64) (domain.OrderResult, error) {
	path := fmt.Sprintf("/api/positions/%d/close", ticket)
	resp, err := a.sendRequest(ctx, http.MethodPost, path, nil)
	if err != nil {
		return domain.OrderResult{}, err
	}

	var result struct {
		Success bool    `json:"success"`
		Price   float64 `json:"price"`
		Retcode int     `json:"retcode"`
		Comment string  `json:"comment"`
	}
	if err := json.Unmarshal(resp, &result); err != nil {
		return domain.OrderResult{}, fmt.Errorf("decode close result: %w", err)
	}
	return domain.OrderResult{
		OK:         result.Success,
		Ticket:     ticket,
		Price:      result.Price,
		Reason:     result.Comment,
		BrokerCode: result.Retcode,
	}, nil
}
