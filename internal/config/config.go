package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/vitos/trade_bridge/internal/domain"
)

// Config holds the full bridge configuration, loaded from the environment.
type Config struct {
	Bridge     BridgeConfig
	Database   DatabaseConfig
	Cache      CacheConfig
	Trading    TradingConfig
	Risk       RiskConfig
	Jobs       JobsConfig
	Worker     WorkerConfig
	Alerting   AlertingConfig
	Logging    LoggingConfig
	ServerPort int
}

// BridgeConfig points at the MT5 terminal bridge endpoints.
type BridgeConfig struct {
	RESTURL string
	WSURL   string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	Name     string
	User     string
	Password string
	SSLMode  string
}

// DSN renders the lib/pq connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		d.Host, d.Port, d.Name, d.User, d.Password, d.SSLMode)
}

type CacheConfig struct {
	DBPath string
}

// TradingConfig lists the traded symbols and their timeframes.
type TradingConfig struct {
	ForexPairs           []string
	ForexTimeframe       string
	CryptoEnabled        bool
	CryptoPairs          []string
	CryptoTimeframe      string
	ExecutionEnabled     bool
	StrategyProfile      string
	StrategyProfilesFile string
}

type RiskConfig struct {
	MaxDailyLossPct       float64
	RiskPerTradePct       float64
	MaxSimultaneousTrades int // total open positions across all classes
	MaxTradesPerClass     int
	MaxConsecutiveLosses  int
}

// JobsConfig holds the recurring job intervals in seconds.
type JobsConfig struct {
	PriceFetchInterval     int
	MetricsSyncInterval    int
	TradesSyncInterval     int
	CryptoAnalysisInterval int
	RiskUpdateInterval     int
	HistoryBars            int
}

type WorkerConfig struct {
	MaxWorkers    int
	WorkerTimeout int // seconds
}

type AlertingConfig struct {
	WebhookURL string
}

type LoggingConfig struct {
	Level string
}

// Load reads the configuration from a .env file (if present) and the
// environment. Execution is disabled unless explicitly switched on.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Bridge: BridgeConfig{
			RESTURL: getEnv("BRIDGE_REST_URL", "http://localhost:5001"),
			WSURL:   getEnv("BRIDGE_WS_URL", "ws://localhost:5001/ws"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("POSTGRES_HOST", "localhost"),
			Port:     getEnvAsInt("POSTGRES_PORT", 5432),
			Name:     getEnv("POSTGRES_DB", "trade_bridge"),
			User:     getEnv("POSTGRES_USER", "postgres"),
			Password: getEnv("POSTGRES_PASSWORD", ""),
			SSLMode:  getEnv("POSTGRES_SSL_MODE", "disable"),
		},
		Cache: CacheConfig{
			DBPath: getEnv("CACHE_DB_PATH", "cache.db"),
		},
		Trading: TradingConfig{
			ForexPairs:           getEnvAsSlice("FOREX_PAIRS", []string{"EURUSD", "GBPUSD"}),
			ForexTimeframe:       getEnv("FOREX_TIMEFRAME", "H1"),
			CryptoEnabled:        getEnvAsBool("CRYPTO_ENABLED", true),
			CryptoPairs:          getEnvAsSlice("CRYPTO_PAIRS", []string{"BTCUSD", "ETHUSD"}),
			CryptoTimeframe:      getEnv("CRYPTO_TIMEFRAME", "H1"),
			ExecutionEnabled:     getEnvAsBool("EXECUTION_ENABLED", false),
			StrategyProfile:      getEnv("STRATEGY_PROFILE", "crypto_relaxed"),
			StrategyProfilesFile: getEnv("STRATEGY_PROFILES_FILE", "profiles.yaml"),
		},
		Risk: RiskConfig{
			MaxDailyLossPct:       getEnvAsFloat("MAX_DAILY_LOSS_PCT", 10),
			RiskPerTradePct:       getEnvAsFloat("RISK_PER_TRADE", 2),
			MaxSimultaneousTrades: getEnvAsInt("MAX_SIMULTANEOUS_TRADES", 3),
			MaxTradesPerClass:     getEnvAsInt("MAX_TRADES_PER_CLASS", 3),
			MaxConsecutiveLosses:  getEnvAsInt("MAX_CONSECUTIVE_LOSSES", 3),
		},
		Jobs: JobsConfig{
			PriceFetchInterval:     getEnvAsInt("PRICE_FETCH_INTERVAL", 30),
			MetricsSyncInterval:    getEnvAsInt("METRICS_SYNC_INTERVAL", 60),
			TradesSyncInterval:     getEnvAsInt("TRADES_SYNC_INTERVAL", 30),
			CryptoAnalysisInterval: getEnvAsInt("CRYPTO_ANALYSIS_INTERVAL", 300),
			RiskUpdateInterval:     getEnvAsInt("RISK_UPDATE_INTERVAL", 60),
			HistoryBars:            getEnvAsInt("HISTORY_BARS", 100),
		},
		Worker: WorkerConfig{
			MaxWorkers:    getEnvAsInt("MAX_WORKERS", 4),
			WorkerTimeout: getEnvAsInt("WORKER_TIMEOUT", 300),
		},
		Alerting: AlertingConfig{
			WebhookURL: getEnv("ALERT_WEBHOOK_URL", ""),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		ServerPort: getEnvAsInt("SERVER_PORT", 8080),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.ServerPort < 1 || c.ServerPort > 65535 {
		return fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", c.ServerPort)
	}
	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("POSTGRES_PORT must be between 1 and 65535, got %d", c.Database.Port)
	}
	if c.Risk.MaxDailyLossPct <= 0 || c.Risk.MaxDailyLossPct > 100 {
		return fmt.Errorf("MAX_DAILY_LOSS_PCT must be in (0, 100], got %v", c.Risk.MaxDailyLossPct)
	}
	if c.Risk.RiskPerTradePct <= 0 || c.Risk.RiskPerTradePct > c.Risk.MaxDailyLossPct {
		return fmt.Errorf("RISK_PER_TRADE must be positive and not exceed MAX_DAILY_LOSS_PCT, got %v", c.Risk.RiskPerTradePct)
	}
	if c.Worker.MaxWorkers < 1 {
		return fmt.Errorf("MAX_WORKERS must be at least 1, got %d", c.Worker.MaxWorkers)
	}
	if c.Worker.WorkerTimeout <= 0 {
		return fmt.Errorf("WORKER_TIMEOUT must be positive, got %d", c.Worker.WorkerTimeout)
	}
	return nil
}

// ClassifySymbol maps a symbol to its asset class based on the configured
// pair lists. Unknown symbols default to forex, the conservative side for
// the per-class limits.
func (c *Config) ClassifySymbol(symbol string) domain.AssetClass {
	for _, s := range c.Trading.CryptoPairs {
		if strings.EqualFold(s, symbol) {
			return domain.AssetCrypto
		}
	}
	return domain.AssetForex
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvAsSlice(key string, fallback []string) []string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
