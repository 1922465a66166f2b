/**
 * @description
 * This file sets up the HTTP router for the pix-service. It defines the API
 * endpoints, associates them with their corresponding handlers, and applies any
 * necessary middleware, such as for authentication.
 *
 * @dependencies
 * - net/http: Standard Go library for HTTP functionality.
 * - github.com/go-chi/chi/v5: A lightweight and idiomatic router for Go.
 * - github.com/go-chi/cors: CORS middleware for the browser clients.
 */

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// Routes creates and returns the router for the pix service.
func Routes(h *PixHandlers, jwtSecret string) http.Handler {
	r := chi.NewRouter()

	// Add standard middleware for logging, panic recovery, and timeouts.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Idempotency-Key", "X-Correlation-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("healthy"))
	})

	// Public endpoints
	r.Post("/auth/register", h.RegisterHandler)
	r.Post("/auth/login", h.LoginHandler)

	// Provider-style callbacks: settlement confirmations carry no user
	// session, only the target record id.
	r.Post("/pix/transactions/confirm", h.ConfirmTransactionHandler)
	r.Post("/pix/charges/confirm", h.ConfirmChargeHandler)

	// Group routes that require authentication.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(jwtSecret))

		r.Post("/pix/transactions", h.CreateTransactionHandler)
		r.Get("/pix/transactions/{id}", h.GetTransactionHandler)
		r.Delete("/pix/transactions/{id}", h.CancelTransactionHandler)
		r.Get("/pix/statement", h.GetStatementHandler)
		r.Get("/pix/balance", h.GetBalanceHandler)

		r.Post("/pix/charges", h.IssueChargeHandler)

		r.Post("/boletos/query", h.QueryBoletoHandler)
		r.Post("/boletos", h.PayBoletoHandler)
		r.Get("/boletos", h.ListBoletosHandler)

		r.Post("/loans/simulations", h.SimulateInstallmentsHandler)
		r.Get("/loans/simulations", h.ListSimulationsHandler)

		r.Post("/cards", h.CreateCardHandler)
		r.Get("/cards", h.ListCardsHandler)
		r.Get("/cards/{id}", h.GetCardHandler)
		r.Delete("/cards/{id}", h.DeleteCardHandler)
		r.Post("/cards/{id}/block-toggle", h.ToggleCardBlockHandler)
		r.Put("/cards/{id}/limit", h.UpdateCardLimitHandler)

		r.Post("/fraud/check", h.CheckFraudHandler)
	})

	return r
}
