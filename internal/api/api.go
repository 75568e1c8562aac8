// Package api sets up the HTTP routes and middleware for the PromptVs REST API.
package api

import (
	"net/http"

	"github.com/Manjussha/promptvs/internal/api/handlers"
	"github.com/Manjussha/promptvs/internal/tokenizer"
	"github.com/Manjussha/promptvs/internal/ws"
)

// Deps holds all dependencies injected into the API handlers.
type Deps struct {
	Runner    handlers.Runner
	Estimator handlers.Estimator
	Budget    handlers.Budget
	Keys      handlers.Keys
	Hub       *ws.Hub
	Model     string
	Pricing   tokenizer.PricingTable
}

// SetupRoutes registers all HTTP routes on the given ServeMux.
// Uses Go 1.22 method+pattern routing syntax.
func SetupRoutes(mux *http.ServeMux, deps *Deps) {
	h := handlers.New(deps.Runner, deps.Estimator, deps.Budget, deps.Keys, deps.Hub, deps.Model, deps.Pricing)

	// Status
	mux.HandleFunc("GET /api/v1/status", h.Status)
	mux.HandleFunc("GET /api/v1/usage", h.GetUsage)

	// Inputs and live estimate
	mux.HandleFunc("GET /api/v1/inputs", h.GetInputs)
	mux.Handle("PUT /api/v1/inputs", csrfGuard(http.HandlerFunc(h.UpdateInputs)))
	mux.HandleFunc("GET /api/v1/estimate", h.GetEstimate)

	// Comparison
	mux.Handle("POST /api/v1/run", csrfGuard(http.HandlerFunc(h.Run)))
	mux.HandleFunc("GET /api/v1/results", h.GetResults)

	// Settings
	mux.HandleFunc("GET /api/v1/settings/api-key", h.GetAPIKey)
	mux.Handle("PUT /api/v1/settings/api-key", csrfGuard(http.HandlerFunc(h.UpdateAPIKey)))

	// Live updates
	mux.HandleFunc("GET /ws", deps.Hub.ServeWS)
}

// csrfGuard enforces X-CSRF-Token header on mutating requests.
func csrfGuard(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-CSRF-Token") == "" {
			http.Error(w, `{"success":false,"error":"missing CSRF token"}`, http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
