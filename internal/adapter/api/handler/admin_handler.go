package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/V4T54L/classroll/internal/adapter/api/middleware"
	"github.com/V4T54L/classroll/internal/domain"
	"github.com/V4T54L/classroll/internal/usecase"
)

// TenantCache drops cached tenant settings.
type TenantCache interface {
	Forget(tenantID uuid.UUID)
}

type tokenStatus struct {
	TenantID  uuid.UUID  `json:"tenant_id"`
	Cached    bool       `json:"cached"`
	Valid     bool       `json:"valid"`
	IssuedAt  *time.Time `json:"issued_at,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	RequestID string     `json:"request_id,omitempty"`
}

// AdminHandler handles HTTP requests for registry token administration.
type AdminHandler struct {
	credentials   usecase.CredentialsSource
	tokens        domain.TokenStore
	tenants       TenantCache
	refreshBuffer time.Duration
	now           func() time.Time
	logger        *slog.Logger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(credentials usecase.CredentialsSource, tokens domain.TokenStore, tenants TenantCache, refreshBuffer time.Duration, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		credentials:   credentials,
		tokens:        tokens,
		tenants:       tenants,
		refreshBuffer: refreshBuffer,
		now:           time.Now,
		logger:        logger.With("component", "admin_handler"),
	}
}

// HealthCheck is a simple health check endpoint.
func (h *AdminHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// TokenStatus reports whether a registry token is cached for the tenant.
// The token value is never returned.
// GET /admin/tenants/{tenantID}/registry-token
func (h *AdminHandler) TokenStatus(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenantID(w, r)
	if !ok {
		return
	}
	creds, err := h.credentials.Resolve(r.Context(), tenantID)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	token, found, err := h.tokens.Get(r.Context(), creds.Key())
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	status := tokenStatus{TenantID: tenantID, Cached: found}
	if found {
		status.Valid = token.IsValid(h.now(), h.refreshBuffer)
		status.IssuedAt = &token.IssuedAt
		status.ExpiresAt = &token.ExpiresAt
		status.RequestID = token.RequestID
	}
	writeJSON(w, http.StatusOK, status)
}

// ClearToken drops the tenant's cached registry token and settings so the
// next call re-reads the tenant and authenticates again.
// DELETE /admin/tenants/{tenantID}/registry-token
func (h *AdminHandler) ClearToken(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenantID(w, r)
	if !ok {
		return
	}
	creds, err := h.credentials.Resolve(r.Context(), tenantID)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	if err := h.tokens.Invalidate(r.Context(), creds.Key()); err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	h.tenants.Forget(tenantID)

	h.logger.Info("registry token cleared", "tenant_id", tenantID, "request_id", middleware.RequestIDFrom(r.Context()))
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) tenantID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "tenantID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, domain.KindValidation.String(), "tenantID must be a uuid")
		return uuid.Nil, false
	}
	return id, true
}
