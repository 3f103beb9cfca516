package core

import (
	"slices"
	"time"
)

// Identity is the stable numeric handle of a chat user
type Identity int64

// ExchangeName identifies a supported exchange
type ExchangeName string

const (
	ExchangeBinance ExchangeName = "Binance"
	ExchangeBybit   ExchangeName = "Bybit"
)

// Direction is the alert category of a move
type Direction string

const (
	DirectionPump Direction = "pump"
	DirectionDump Direction = "dump"
)

// Directions lists the categories in evaluation order, pump first
var Directions = []Direction{DirectionPump, DirectionDump}

// Timeframes supported by every exchange adapter
var Timeframes = []string{"1m", "5m", "15m", "30m", "1h"}

// ValidTimeframe reports whether tf is one of the supported timeframes
func ValidTimeframe(tf string) bool {
	return slices.Contains(Timeframes, tf)
}

// Default settings applied on first activation
const (
	DefaultTimeframe    = "15m"
	DefaultThresholdPct = 1.0
	DefaultDailyQuota   = 5
	MaxThresholdPct     = 100.0
	MaxDailyQuota       = 100
)

// CategorySettings are the per-direction alert parameters
type CategorySettings struct {
	Enabled      bool    `json:"enabled"`
	Timeframe    string  `json:"timeframe"`
	ThresholdPct float64 `json:"threshold_pct"`
	DailyQuota   int     `json:"daily_quota"`
	SentToday    int     `json:"sent_today"`
}

// Remaining returns how many alerts may still be sent today
func (c CategorySettings) Remaining() int {
	return max(c.DailyQuota-c.SentToday, 0)
}

// ExchangeToggles enables or disables each exchange
type ExchangeToggles struct {
	Binance bool `json:"binance"`
	Bybit   bool `json:"bybit"`
}

// Settings is the per-identity configuration consumed by the evaluation loop
type Settings struct {
	Identity       Identity         `json:"identity" gorm:"primaryKey;autoIncrement:false"`
	Username       string           `json:"username"`
	Exchanges      ExchangeToggles  `json:"exchanges" gorm:"embedded;embeddedPrefix:exchange_"`
	SignalsEnabled bool             `json:"signals_enabled"`
	IsAdmin        bool             `json:"is_admin"`
	Pump           CategorySettings `json:"pump" gorm:"embedded;embeddedPrefix:pump_"`
	Dump           CategorySettings `json:"dump" gorm:"embedded;embeddedPrefix:dump_"`
	LastReset      time.Time        `json:"last_reset"`
}

// NewSettings returns the default settings for an identity
func NewSettings(id Identity, username string) *Settings {
	category := CategorySettings{
		Enabled:      true,
		Timeframe:    DefaultTimeframe,
		ThresholdPct: DefaultThresholdPct,
		DailyQuota:   DefaultDailyQuota,
	}

	return &Settings{
		Identity:       id,
		Username:       username,
		Exchanges:      ExchangeToggles{Binance: true, Bybit: true},
		SignalsEnabled: true,
		Pump:           category,
		Dump:           category,
	}
}

// Category returns the mutable settings of a direction
func (s *Settings) Category(direction Direction) *CategorySettings {
	if direction == DirectionDump {
		return &s.Dump
	}
	return &s.Pump
}

// ExchangeEnabled reports whether alerts are wanted from the exchange
func (s *Settings) ExchangeEnabled(name ExchangeName) bool {
	switch name {
	case ExchangeBinance:
		return s.Exchanges.Binance
	case ExchangeBybit:
		return s.Exchanges.Bybit
	default:
		return false
	}
}

// CanDispatch is the dispatch gate: global, category and exchange toggles plus quota
func (s *Settings) CanDispatch(direction Direction, exchange ExchangeName) bool {
	category := s.Category(direction)
	return s.SignalsEnabled &&
		category.Enabled &&
		s.ExchangeEnabled(exchange) &&
		category.SentToday < category.DailyQuota
}
