package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/V4T54L/classroll/internal/adapter/registry"
	"github.com/V4T54L/classroll/internal/domain"
	"github.com/V4T54L/classroll/internal/usecase"
)

// RosterService is the registry lookup surface exposed over HTTP.
type RosterService interface {
	Schools(ctx context.Context, creds domain.Credentials, district string) ([]domain.School, error)
	Classes(ctx context.Context, creds domain.Credentials, q registry.ClassesQuery) ([]domain.ClassInfo, error)
	StudentProfile(ctx context.Context, creds domain.Credentials, ra domain.RA) (domain.StudentProfile, error)
}

// RegistryHandler passes directory lookups through to the registry with the
// caller's tenant credentials.
type RegistryHandler struct {
	credentials usecase.CredentialsSource
	roster      RosterService
	logger      *slog.Logger
}

// NewRegistryHandler creates a new RegistryHandler.
func NewRegistryHandler(credentials usecase.CredentialsSource, roster RosterService, logger *slog.Logger) *RegistryHandler {
	return &RegistryHandler{
		credentials: credentials,
		roster:      roster,
		logger:      logger.With("component", "registry_handler"),
	}
}

// Schools lists the schools of a district.
// GET /schools?district=CODE
func (h *RegistryHandler) Schools(w http.ResponseWriter, r *http.Request) {
	creds, ok := h.resolve(w, r)
	if !ok {
		return
	}
	schools, err := h.roster.Schools(r.Context(), creds, strings.TrimSpace(r.URL.Query().Get("district")))
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"schools": schools})
}

// Classes lists the classes of a school for a school year.
// GET /schools/{schoolCode}/classes?year=YYYY&teaching_type=&grade=
func (h *RegistryHandler) Classes(w http.ResponseWriter, r *http.Request) {
	creds, ok := h.resolve(w, r)
	if !ok {
		return
	}
	query := r.URL.Query()
	classes, err := h.roster.Classes(r.Context(), creds, registry.ClassesQuery{
		SchoolYear:   strings.TrimSpace(query.Get("year")),
		SchoolCode:   strings.TrimSpace(chi.URLParam(r, "schoolCode")),
		TeachingType: strings.TrimSpace(query.Get("teaching_type")),
		Grade:        strings.TrimSpace(query.Get("grade")),
	})
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"classes": classes})
}

// Student returns the registry profile of a student.
// GET /students/{ra}
func (h *RegistryHandler) Student(w http.ResponseWriter, r *http.Request) {
	ra, err := domain.ParseRA(chi.URLParam(r, "ra"))
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	creds, ok := h.resolve(w, r)
	if !ok {
		return
	}
	profile, err := h.roster.StudentProfile(r.Context(), creds, ra)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (h *RegistryHandler) resolve(w http.ResponseWriter, r *http.Request) (domain.Credentials, bool) {
	p, ok := principal(w, r)
	if !ok {
		return domain.Credentials{}, false
	}
	creds, err := h.credentials.Resolve(r.Context(), p.TenantID)
	if err != nil {
		respondError(w, r, h.logger, err)
		return domain.Credentials{}, false
	}
	return creds, true
}
