package trade

import "github.com/go-chi/chi/v5"

// Mount registers every handler on r. The server mounts it under /api/v1.
func (s *Service) Mount(r chi.Router) {
	if s.hub != nil {
		// WebSocket endpoint for real-time price updates.
		r.Get("/ws", s.HandleWS)
	}

	// Markets.
	r.Get("/markets", s.ListMarkets)
	r.Get("/markets/{symbol}", s.GetMarket)
	r.Get("/markets/{symbol}/price", s.GetPrice)
	r.Get("/markets/{symbol}/history", s.GetMarketHistory)

	// Accounts and portfolio queries.
	r.Post("/accounts", s.CreateAccount)
	r.Get("/accounts/{userID}", s.GetAccount)
	r.Get("/accounts/{userID}/portfolio", s.GetPortfolio)
	r.Get("/accounts/{userID}/orders", s.ListUserOrders)
	r.Get("/accounts/{userID}/alerts", s.ListUserAlerts)
	r.Get("/accounts/{userID}/transactions", s.ListTransactions)
	r.Get("/leaderboard", s.Leaderboard)

	// Trading.
	r.Post("/trade", s.ExecuteTrade)
	r.Post("/orders", s.CreateOrder)
	r.Delete("/orders/{orderID}", s.CancelOrder)
	r.Post("/alerts", s.CreateAlert)
	r.Delete("/alerts/{alertID}", s.CancelAlert)
	r.Post("/activity/{symbol}", s.RecordActivity)

	r.Route("/admin", func(r chi.Router) {
		r.Use(s.RequireAdmin)
		r.Post("/markets/reset", s.AdminResetMarket)
		r.Post("/markets/{symbol}/price", s.AdminSetPrice)
		r.Post("/markets/{symbol}/reset", s.AdminResetPrice)
		r.Post("/markets/{symbol}/heat", s.AdminHeat)
		r.Post("/markets/{symbol}/rating", s.AdminRateBuild)
		r.Post("/markets/{symbol}/cooldown", s.AdminCooldown)
		r.Delete("/markets/{symbol}/cooldown", s.AdminLiftCooldown)
		r.Post("/accounts/{userID}/balance", s.AdminAdjustBalance)
		r.Post("/activity/reset", s.AdminResetActivity)
		r.Post("/cycle", s.AdminRunCycle)
		r.Get("/actions", s.AdminActions)
	})
}
