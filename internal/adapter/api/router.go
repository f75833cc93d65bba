package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/V4T54L/classroll/internal/adapter/api/handler"
	"github.com/V4T54L/classroll/internal/adapter/api/middleware"
	"github.com/V4T54L/classroll/internal/pkg/config"
)

// NewRouter creates and configures the main HTTP router. Everything but the
// health check requires a bearer token.
func NewRouter(
	cfg *config.Config,
	logger *slog.Logger,
	attendanceHandler *handler.AttendanceHandler,
	registryHandler *handler.RegistryHandler,
) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logging(logger))
	r.Use(chimw.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWTSecret, cfg.JWTIssuer, logger))

		r.Route("/classes/{classCode}/attendance", func(r chi.Router) {
			r.Get("/data", attendanceHandler.Data)
			r.Post("/save", attendanceHandler.Save)
			r.Get("/export.csv", attendanceHandler.ExportCSV)
		})
		r.Post("/attendance/bulk", attendanceHandler.Bulk)

		r.Get("/schools", registryHandler.Schools)
		r.Get("/schools/{schoolCode}/classes", registryHandler.Classes)
		r.Get("/students/{ra}", registryHandler.Student)
	})

	return r
}
