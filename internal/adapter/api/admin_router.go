package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/V4T54L/classroll/internal/adapter/api/handler"
	"github.com/V4T54L/classroll/internal/adapter/api/middleware"
)

// NewAdminRouter creates and configures the HTTP router for operators. It is
// meant to listen on an internal address only.
func NewAdminRouter(adminHandler *handler.AdminHandler, gatherer prometheus.Gatherer, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logging(logger))
	r.Use(chimw.Recoverer)

	r.Get("/health", adminHandler.HealthCheck)
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	// Registry tokens
	r.Get("/admin/tenants/{tenantID}/registry-token", adminHandler.TokenStatus)
	r.Delete("/admin/tenants/{tenantID}/registry-token", adminHandler.ClearToken)

	return r
}
