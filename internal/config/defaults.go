package config

import (
	"time"

	"github.com/cogmarket/market-engine/internal/instrument"
	"github.com/cogmarket/market-engine/internal/money"
	"github.com/cogmarket/market-engine/internal/simulator"
	"github.com/cogmarket/market-engine/internal/validate"
)

// Default values for optional configuration fields.
const (
	DefaultPort             = "8080"
	DefaultReadTimeout      = 10 * time.Second
	DefaultWriteTimeout     = 10 * time.Second
	DefaultIdleTimeout      = 60 * time.Second
	DefaultRequestTimeout   = 30 * time.Second
	DefaultShutdownTimeout  = 5 * time.Second
	DefaultLogLevel         = "info"
	DefaultLogFormat        = "json"
	DefaultMaxConns         = 10
	DefaultMinConns         = 2
	DefaultCacheTTL         = 30 * time.Second
	DefaultUpdateInterval   = 180 * time.Second
	DefaultTickTimeout      = 60 * time.Second
	DefaultEvaluateTimeout  = 30 * time.Second
	DefaultHistoryCap       = 10000
	DefaultOpTimeout        = 5 * time.Second
	DefaultStartingBalance  = 10 * money.SpursPerCog
	DefaultStartingPrice    = money.SpursPerCog
	DefaultVolatility       = 0.02
	DefaultActivityDecay    = 0.95
	DefaultOrderTTL         = 24 * time.Hour
	DefaultMaxAlertsPerUser = 10
	DefaultEventCooldown    = time.Hour
	DefaultHeatBuff         = 0.25
	DefaultRatingMaxImpact  = 0.15
	DefaultMaxOwnTeamShares = 5
)

// DefaultInstruments are the team stocks listed when the config names none.
func DefaultInstruments() []instrument.Definition {
	teams := []struct{ symbol, name string }{
		{"STMP", "Team Steampire"},
		{"VOC", "Team VOC"},
		{"CRAV", "Team Crava"},
		{"ROSE", "Team Rose"},
		{"VIOL", "Team Violet"},
		{"POT", "Team Potchi"},
	}
	defs := make([]instrument.Definition, 0, len(teams))
	for _, t := range teams {
		defs = append(defs, instrument.Definition{
			Symbol:        t.symbol,
			Name:          t.name,
			StartingPrice: DefaultStartingPrice,
			Volatility:    DefaultVolatility,
		})
	}
	return defs
}

func (c *Config) applyDefaults() {
	// Server
	if c.Server.Port == "" {
		c.Server.Port = DefaultPort
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = DefaultReadTimeout
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = DefaultWriteTimeout
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = DefaultIdleTimeout
	}
	if c.Server.RequestTimeout == 0 {
		c.Server.RequestTimeout = DefaultRequestTimeout
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = DefaultShutdownTimeout
	}

	// Log
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}

	// Storage
	if c.Database.MaxConns == 0 {
		c.Database.MaxConns = DefaultMaxConns
	}
	if c.Database.MinConns == 0 {
		c.Database.MinConns = DefaultMinConns
	}
	if c.Redis.CacheTTL == 0 {
		c.Redis.CacheTTL = DefaultCacheTTL
	}

	// Market
	if c.Market.UpdateInterval == 0 {
		c.Market.UpdateInterval = DefaultUpdateInterval
	}
	if c.Market.TickTimeout == 0 {
		c.Market.TickTimeout = DefaultTickTimeout
	}
	if c.Market.EvaluateTimeout == 0 {
		c.Market.EvaluateTimeout = DefaultEvaluateTimeout
	}
	if c.Market.HistoryCap == 0 {
		c.Market.HistoryCap = DefaultHistoryCap
	}
	if c.Market.OpTimeout == 0 {
		c.Market.OpTimeout = DefaultOpTimeout
	}
	if c.Market.StartingBalance == 0 {
		c.Market.StartingBalance = DefaultStartingBalance
	}
	if len(c.Market.Instruments) == 0 {
		c.Market.Instruments = DefaultInstruments()
	}
	for i := range c.Market.Instruments {
		d := &c.Market.Instruments[i]
		d.Symbol = validate.NormalizeSymbol(d.Symbol)
		if d.StartingPrice == 0 {
			d.StartingPrice = DefaultStartingPrice
		}
		if d.Volatility == 0 {
			d.Volatility = DefaultVolatility
		}
		if d.Name == "" {
			d.Name = d.Symbol
		}
	}

	// Simulation
	def := simulator.DefaultParams()
	p := &c.Simulation.Params
	if p.ActivityImpact == 0 {
		p.ActivityImpact = def.ActivityImpact
	}
	if p.MomentumImpact == 0 {
		p.MomentumImpact = def.MomentumImpact
	}
	if p.MomentumPersistence == 0 {
		p.MomentumPersistence = def.MomentumPersistence
	}
	if p.MomentumBlend == 0 {
		p.MomentumBlend = def.MomentumBlend
	}
	if p.MeanReversion == 0 {
		p.MeanReversion = def.MeanReversion
	}
	if p.MaxVolatilityMultiplier == 0 {
		p.MaxVolatilityMultiplier = def.MaxVolatilityMultiplier
	}
	if c.Simulation.ActivityDecay == 0 {
		c.Simulation.ActivityDecay = DefaultActivityDecay
	}

	// Orders, alerts
	if c.Orders.DefaultTTL == 0 {
		c.Orders.DefaultTTL = DefaultOrderTTL
	}
	if c.Alerts.MaxPerUser == 0 {
		c.Alerts.MaxPerUser = DefaultMaxAlertsPerUser
	}

	// Admin
	if c.Admin.EventCooldown == 0 {
		c.Admin.EventCooldown = DefaultEventCooldown
	}
	if c.Admin.HeatBuff == 0 {
		c.Admin.HeatBuff = DefaultHeatBuff
	}
	if c.Admin.RatingMaxImpact == 0 {
		c.Admin.RatingMaxImpact = DefaultRatingMaxImpact
	}

	// Risk
	if c.Risk.MaxOwnTeamShares == 0 {
		c.Risk.MaxOwnTeamShares = DefaultMaxOwnTeamShares
	}
}
