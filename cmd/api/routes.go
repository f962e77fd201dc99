package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"finsync/internal/shared/config"
	"finsync/internal/shared/middleware"
)

// SetupRoutes configures all HTTP routes and returns the final handler with middleware.
func SetupRoutes(deps *Dependencies, cfg *config.Config, log zerolog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.Logging(log))
	r.Use(middleware.CORS(cfg.Server.AllowedHosts))
	r.Use(middleware.RouteMetrics)
	if cfg.TLS.Enabled {
		r.Use(middleware.HSTS)
		r.Use(middleware.SecureCookies)
	}

	r.Get("/health", deps.HealthHandler.HandleHealth)
	r.Get("/api/health", deps.HealthHandler.HandleHealth)
	r.Get("/api/plaid/configured", deps.PlaidHandler.HandleConfigured)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(deps.JWT))

		r.Route("/api/plaid", func(r chi.Router) {
			r.Get("/link-token", deps.PlaidHandler.HandleLinkToken)
			r.Post("/exchange-token", deps.PlaidHandler.HandleExchangeToken)
			r.Post("/sync", deps.PlaidHandler.HandleSync)
			r.Post("/disconnect", deps.PlaidHandler.HandleDisconnect)
			r.Get("/items", deps.PlaidHandler.HandleListItems)
		})

		r.Route("/api/accounts", func(r chi.Router) {
			r.Get("/", deps.AccountHandler.HandleListAccounts)
			r.Post("/", deps.AccountHandler.HandleCreateAccount)
			r.Delete("/{id}", deps.AccountHandler.HandleDeleteAccount)
		})

		r.Route("/api/transactions", func(r chi.Router) {
			r.Get("/", deps.TransactionHandler.HandleListTransactions)
			r.Post("/", deps.TransactionHandler.HandleCreateTransaction)
			r.Patch("/{id}", deps.TransactionHandler.HandleUpdateTransaction)
			r.Delete("/{id}", deps.TransactionHandler.HandleDeleteTransaction)
		})

		r.Route("/api/budgets", func(r chi.Router) {
			r.Get("/", deps.BudgetHandler.HandleListBudgets)
			r.Post("/", deps.BudgetHandler.HandleSetBudget)
			r.Delete("/{id}", deps.BudgetHandler.HandleDeleteBudget)
		})

		r.Post("/api/notifications/register-device", deps.NotificationHandler.HandleRegisterDevice)
	})

	// otelhttp sits outermost so the server span covers every middleware.
	return middleware.Telemetry(r)
}
