// Package config loads the screener configuration from the environment using Viper
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/xhit/go-str2duration/v2"
)

// EnvPrefix is prepended to every variable, eg: SCREENER_TELEGRAM_TOKEN
const EnvPrefix = "SCREENER"

// Storage drivers
const (
	DriverBunt   = "bunt"
	DriverSQLite = "sqlite"
)

// AppConfig holds the application configuration
type AppConfig struct {
	Telegram  TelegramConfig
	Storage   StorageConfig
	Exchanges ExchangeConfig
	Universe  UniverseConfig

	ProxyURL        string
	AdminAccessKey  string
	CoinGlassAPIKey string
	EvalInterval    time.Duration
	CacheTTL        time.Duration
	MetricsAddr     string

	// ReplayDir switches the exchanges to recorded candles, one sub directory per exchange
	ReplayDir string
}

// TelegramConfig holds the bot credentials
type TelegramConfig struct {
	Token string
}

// StorageConfig selects the persistence backend
type StorageConfig struct {
	Driver string
	Path   string
}

// ExchangeConfig holds the outbound limits shared by the exchange gateways
type ExchangeConfig struct {
	Enabled        []string
	MaxConcurrency int
	RequestTimeout time.Duration
}

// UniverseConfig controls the monitored symbols
type UniverseConfig struct {
	Symbols    []string
	TopN       int
	Interval   time.Duration
	QuoteAsset string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("STORAGE_DRIVER", DriverBunt)
	v.SetDefault("STORAGE_PATH", "./screener.db")
	v.SetDefault("EXCHANGES", "binance,bybit")
	v.SetDefault("EVAL_INTERVAL", "5m")
	v.SetDefault("UNIVERSE_TOP_N", 30)
	v.SetDefault("UNIVERSE_INTERVAL", "1h")
	v.SetDefault("UNIVERSE_SYMBOLS", "")
	v.SetDefault("QUOTE_ASSET", "USDT")
	v.SetDefault("CACHE_TTL", "5m")
	v.SetDefault("MAX_CONCURRENCY", 5)
	v.SetDefault("REQUEST_TIMEOUT", "10s")
	v.SetDefault("METRICS_ADDR", "")
	v.SetDefault("REPLAY_DIR", "")
}

// LoadAppConfig reads the configuration from SCREENER_ prefixed variables
func LoadAppConfig() (*AppConfig, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	return load(v)
}

func load(v *viper.Viper) (*AppConfig, error) {
	setDefaults(v)

	durations := map[string]*time.Duration{}
	config := &AppConfig{
		Telegram: TelegramConfig{
			Token: v.GetString("TELEGRAM_TOKEN"),
		},
		Storage: StorageConfig{
			Driver: strings.ToLower(v.GetString("STORAGE_DRIVER")),
			Path:   v.GetString("STORAGE_PATH"),
		},
		Exchanges: ExchangeConfig{
			Enabled:        splitList(v.GetString("EXCHANGES"), strings.ToLower),
			MaxConcurrency: v.GetInt("MAX_CONCURRENCY"),
		},
		Universe: UniverseConfig{
			Symbols:    splitList(v.GetString("UNIVERSE_SYMBOLS"), strings.ToUpper),
			TopN:       v.GetInt("UNIVERSE_TOP_N"),
			QuoteAsset: strings.ToUpper(v.GetString("QUOTE_ASSET")),
		},
		ProxyURL:        v.GetString("PROXY_URL"),
		AdminAccessKey:  v.GetString("ADMIN_ACCESS_KEY"),
		CoinGlassAPIKey: v.GetString("COINGLASS_API_KEY"),
		MetricsAddr:     v.GetString("METRICS_ADDR"),
		ReplayDir:       v.GetString("REPLAY_DIR"),
	}

	durations["EVAL_INTERVAL"] = &config.EvalInterval
	durations["UNIVERSE_INTERVAL"] = &config.Universe.Interval
	durations["CACHE_TTL"] = &config.CacheTTL
	durations["REQUEST_TIMEOUT"] = &config.Exchanges.RequestTimeout

	for key, target := range durations {
		duration, err := str2duration.ParseDuration(v.GetString(key))
		if err != nil {
			return nil, fmt.Errorf("invalid %s_%s: %w", EnvPrefix, key, err)
		}
		*target = duration
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks the storage driver and the exchange names
func (c *AppConfig) Validate() error {
	switch c.Storage.Driver {
	case DriverBunt, DriverSQLite:
	default:
		return fmt.Errorf("unknown storage driver %q, use %s or %s", c.Storage.Driver, DriverBunt, DriverSQLite)
	}

	for _, name := range c.Exchanges.Enabled {
		if name != "binance" && name != "bybit" {
			return fmt.Errorf("unknown exchange %q", name)
		}
	}

	if len(c.Exchanges.Enabled) == 0 {
		return fmt.Errorf("at least one exchange must be enabled")
	}

	return nil
}

func splitList(value string, normalize func(string) string) []string {
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, normalize(item))
		}
	}
	return items
}
