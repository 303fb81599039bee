/**
 * @description
 * This file sets up the HTTP router: partner webhook routes behind their
 * respective allow-lists, the first-party card API behind bearer auth, and a
 * health check. Standard middleware handles logging, panic recovery, and
 * request timeouts.
 *
 * @dependencies
 * - net/http, time: Standard Go libraries.
 * - github.com/go-chi/chi/v5, github.com/go-chi/cors: Routing and CORS.
 */

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// RouterConfig carries the security settings the router needs.
type RouterConfig struct {
	BearerSecret       string
	VisaCIDRAllowlist  []string
	FirstDataCertSerials []string
	AllowedOrigins     []string
}

// Routes creates and returns the service router.
func Routes(h *Handlers, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Add standard middleware for logging, panic recovery, and timeouts.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("healthy"))
	})

	// Visa endpoint messages, gated by source CIDR.
	r.Group(func(r chi.Router) {
		r.Use(CIDRAllowlistMiddleware(cfg.VisaCIDRAllowlist))
		r.Post("/visa/authorization", h.VisaWebhookHandler)
		r.Post("/visa/clearing", h.VisaWebhookHandler)
		r.Post("/visa/statementcredit", h.VisaWebhookHandler)
	})

	// First Data SOAP service, gated by client certificate serial.
	r.Group(func(r chi.Router) {
		r.Use(CertSerialAllowlistMiddleware(cfg.FirstDataCertSerials))
		r.Post("/firstdata/soap", h.FirstDataSOAPHandler)
	})

	// First-party card API, gated by bearer token.
	r.Group(func(r chi.Router) {
		r.Use(BearerAuthMiddleware(cfg.BearerSecret))
		r.Post("/cards", h.AddCardHandler)
		r.Delete("/cards/{cardID}", h.RemoveCardHandler)
	})

	return r
}
