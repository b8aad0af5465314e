package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/cogmarket/market-engine/internal/validate"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error, got %q", c.Log.Level)
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return fmt.Errorf("log.format must be json or text, got %q", c.Log.Format)
	}

	if c.Server.Port == "" {
		return errors.New("server.port is required")
	}

	if c.Database.MaxConns < 1 {
		return errors.New("database.max_conns must be >= 1")
	}
	if c.Database.MinConns < 0 {
		return errors.New("database.min_conns must be >= 0")
	}
	if c.Database.MinConns > c.Database.MaxConns {
		return fmt.Errorf("database.min_conns (%d) cannot exceed max_conns (%d)", c.Database.MinConns, c.Database.MaxConns)
	}
	if c.Redis.URL != "" && c.Database.URL == "" {
		return errors.New("redis.url requires database.url")
	}

	if c.Market.UpdateInterval <= 0 {
		return errors.New("market.update_interval must be > 0")
	}
	if c.Market.TickTimeout <= 0 {
		return errors.New("market.tick_timeout must be > 0")
	}
	if c.Market.EvaluateTimeout <= 0 {
		return errors.New("market.evaluate_timeout must be > 0")
	}
	if c.Market.HistoryCap < 1 {
		return errors.New("market.history_cap must be >= 1")
	}
	if err := validate.Balance(c.Market.StartingBalance); err != nil {
		return fmt.Errorf("market.starting_balance: %w", err)
	}
	if len(c.Market.Instruments) == 0 {
		return errors.New("market.instruments must not be empty")
	}
	seen := make(map[string]bool, len(c.Market.Instruments))
	for i, d := range c.Market.Instruments {
		prefix := fmt.Sprintf("market.instruments[%d]", i)
		if err := validate.Symbol(d.Symbol); err != nil {
			return fmt.Errorf("%s.symbol: %w", prefix, err)
		}
		if seen[d.Symbol] {
			return fmt.Errorf("%s.symbol %q is listed twice", prefix, d.Symbol)
		}
		seen[d.Symbol] = true
		if err := validate.Price(d.StartingPrice); err != nil {
			return fmt.Errorf("%s.starting_price: %w", prefix, err)
		}
		if d.Volatility <= 0 {
			return fmt.Errorf("%s.volatility must be > 0", prefix)
		}
	}

	if c.Simulation.ActivityDecay <= 0 || c.Simulation.ActivityDecay >= 1 {
		return fmt.Errorf("simulation.activity_decay must be in (0, 1), got %v", c.Simulation.ActivityDecay)
	}
	if c.Simulation.MomentumBlend < 0 || c.Simulation.MomentumBlend > 1 {
		return fmt.Errorf("simulation.momentum_blend must be in [0, 1], got %v", c.Simulation.MomentumBlend)
	}
	if c.Simulation.MaxVolatilityMultiplier <= 0 {
		return errors.New("simulation.max_volatility_multiplier must be > 0")
	}

	if c.Orders.DefaultTTL <= 0 {
		return errors.New("orders.default_ttl must be > 0")
	}
	if c.Alerts.MaxPerUser < 1 {
		return errors.New("alerts.max_per_user must be >= 1")
	}

	if c.Admin.EventCooldown <= 0 {
		return errors.New("admin.event_cooldown must be > 0")
	}
	if c.Admin.HeatBuff <= 0 {
		return errors.New("admin.heat_buff must be > 0")
	}
	if c.Admin.RatingMaxImpact <= 0 || c.Admin.RatingMaxImpact >= 1 {
		return fmt.Errorf("admin.rating_max_impact must be in (0, 1), got %v", c.Admin.RatingMaxImpact)
	}

	if c.Risk.MaxOwnTeamShares < 0 {
		return errors.New("risk.max_own_team_shares must be >= 0")
	}
	return nil
}
