// Package config loads the market engine's settings from an optional YAML
// file, a .env file and the process environment.
package config

import (
	"log/slog"
	"time"

	"github.com/cogmarket/market-engine/internal/instrument"
	"github.com/cogmarket/market-engine/internal/simulator"
)

// Config is the root configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Log        LogConfig        `yaml:"log"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Market     MarketConfig     `yaml:"market"`
	Simulation SimulationConfig `yaml:"simulation"`
	Orders     OrdersConfig     `yaml:"orders"`
	Alerts     AlertsConfig     `yaml:"alerts"`
	Admin      AdminConfig      `yaml:"admin"`
	Risk       RiskConfig       `yaml:"risk"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Port            string        `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// LogConfig selects the slog handler and level.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn or error
	Format string `yaml:"format"` // json or text
}

// SlogLevel parses Level. Validate rejects unknown levels, so the fallback
// to info only applies to configs that skipped validation.
func (l LogConfig) SlogLevel() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(l.Level)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

// DatabaseConfig selects PostgreSQL. An empty URL runs on the in-memory store.
type DatabaseConfig struct {
	URL      string `yaml:"url"`
	MaxConns int32  `yaml:"max_conns"`
	MinConns int32  `yaml:"min_conns"`
}

// RedisConfig enables the read-through cache in front of PostgreSQL.
type RedisConfig struct {
	URL      string        `yaml:"url"`
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

// MarketConfig holds the instrument set and market cadence.
type MarketConfig struct {
	UpdateInterval  time.Duration           `yaml:"update_interval"`
	TickTimeout     time.Duration           `yaml:"tick_timeout"`
	EvaluateTimeout time.Duration           `yaml:"evaluate_timeout"`
	HistoryCap      int                     `yaml:"history_cap"`
	OpTimeout       time.Duration           `yaml:"op_timeout"`
	StartingBalance int64                   `yaml:"starting_balance"` // Spurs
	Instruments     []instrument.Definition `yaml:"instruments"`
}

// SimulationConfig holds the price model coefficients.
type SimulationConfig struct {
	simulator.Params `yaml:",inline"`

	ActivityDecay float64 `yaml:"activity_decay"`

	// Seed makes the random walk reproducible. Unset seeds from the clock.
	Seed *int64 `yaml:"seed"`
}

// OrdersConfig configures limit orders.
type OrdersConfig struct {
	DefaultTTL time.Duration `yaml:"default_ttl"`
}

// AlertsConfig configures price alerts.
type AlertsConfig struct {
	MaxPerUser int `yaml:"max_per_user"`
}

// AdminConfig configures the moderator API and market events.
type AdminConfig struct {
	Token           string        `yaml:"token"`
	EventCooldown   time.Duration `yaml:"event_cooldown"`
	HeatBuff        float64       `yaml:"heat_buff"`
	RatingMaxImpact float64       `yaml:"rating_max_impact"`
}

// RiskConfig is the own-team trading policy.
type RiskConfig struct {
	PreventOwnTeam   *bool `yaml:"prevent_own_team"`
	MaxOwnTeamShares int64 `yaml:"max_own_team_shares"`
}

// PreventsOwnTeam reports the effective policy, true when unset.
func (r RiskConfig) PreventsOwnTeam() bool {
	return r.PreventOwnTeam == nil || *r.PreventOwnTeam
}
