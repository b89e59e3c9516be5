package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"sort"

	"github.com/vitos/trade_bridge/internal/domain"
	"github.com/vitos/trade_bridge/internal/infrastructure/cache"
)

// check_status prints the persisted daily risk state and cached metrics, for
// poking at a running (or crashed) bot without touching the HTTP API.
func main() {
	dbPath := flag.String("cache", "cache.db", "path to the cache database")
	flag.Parse()

	kv, err := cache.NewSQLiteCache(*dbPath)
	if err != nil {
		fmt.Printf("Failed to open cache: %v\n", err)
		os.Exit(1)
	}
	defer kv.Close()

	raw, ok, err := kv.Get("risk:daily_state")
	if err != nil {
		fmt.Printf("Failed to read risk state: %v\n", err)
		os.Exit(1)
	}
	if !ok {
		fmt.Println("No daily risk state in cache (fresh day or reset).")
	} else {
		var st domain.DailyRiskState
		if err := json.Unmarshal([]byte(raw), &st); err != nil {
			fmt.Printf("Corrupt risk state: %v\nraw: %s\n", err, raw)
			os.Exit(1)
		}
		fmt.Printf("Daily risk state (%s):\n", st.Date)
		fmt.Printf("  initial balance:    %.2f\n", st.InitialBalance)
		fmt.Printf("  current balance:    %.2f\n", st.CurrentBalance)
		fmt.Printf("  total pnl:          %.2f\n", st.TotalPnL)
		fmt.Printf("  loss pct:           %.2f%%\n", st.LossPct)
		fmt.Printf("  consecutive losses: %d\n", st.ConsecutiveLosses)
		fmt.Printf("  open positions:     %d\n", st.OpenTotal())
		fmt.Printf("  trades (w/l):       %d (%d/%d)\n", st.TotalTrades, st.WinningTrades, st.LosingTrades)
		fmt.Printf("  trading stopped:    %v\n", st.TradingStopped)
		fmt.Printf("  size multiplier:    %.2f\n", st.SizeMultiplier)
	}

	fields, err := kv.HashGetAll("risk:metrics")
	if err != nil {
		fmt.Printf("Failed to read metrics: %v\n", err)
		os.Exit(1)
	}
	if len(fields) == 0 {
		fmt.Println("No cached metrics.")
		return
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fmt.Println("Cached metrics:")
	for _, k := range keys {
		fmt.Printf("  %-20s %s\n", k, fields[k])
	}
}
