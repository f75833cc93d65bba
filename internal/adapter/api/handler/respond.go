package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/V4T54L/classroll/internal/adapter/api/middleware"
	"github.com/V4T54L/classroll/internal/domain"
)

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorBody{Error: code, Message: message})
}

// respondError maps a classified error onto an HTTP status. Business errors
// keep the registry's message verbatim.
func respondError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	if errors.Is(err, domain.ErrTenantNotFound) {
		writeError(w, http.StatusNotFound, "tenant_not_found", "tenant is not registered")
		return
	}
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		writeError(w, http.StatusRequestEntityTooLarge, "payload_too_large", "request body exceeds "+strconv.FormatInt(maxBytesErr.Limit, 10)+" bytes")
		return
	}

	kind := domain.KindOf(err)
	status := http.StatusInternalServerError
	message := err.Error()
	switch kind {
	case domain.KindValidation:
		status = http.StatusBadRequest
	case domain.KindEditWindowClosed:
		status = http.StatusForbidden
	case domain.KindBusiness:
		status = http.StatusUnprocessableEntity
		var bizErr *domain.BusinessError
		if errors.As(err, &bizErr) {
			message = bizErr.Message
		}
	case domain.KindAuth, domain.KindRequestFailed:
		status = http.StatusBadGateway
	case domain.KindTransport:
		status = http.StatusGatewayTimeout
	case domain.KindConfiguration:
		status = http.StatusInternalServerError
	default:
		logger.Error("request failed", "path", r.URL.Path, "request_id", middleware.RequestIDFrom(r.Context()), "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}

	if status >= http.StatusInternalServerError {
		logger.Warn("request failed", "path", r.URL.Path, "request_id", middleware.RequestIDFrom(r.Context()), "kind", kind.String(), "error", err)
	}
	writeError(w, status, kind.String(), message)
}

// decodeJSON reads a JSON body of at most maxBytes into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, maxBytes int64, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return err
		}
		return &domain.ValidationError{Field: "body", Reason: strings.TrimPrefix(err.Error(), "json: ")}
	}
	return nil
}

// principal returns the caller or answers 401 when the route was not authenticated.
func principal(w http.ResponseWriter, r *http.Request) (middleware.Principal, bool) {
	p, ok := middleware.PrincipalFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing_token", "")
	}
	return p, ok
}

func parseDiscipline(value string) (*int64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(value, 10, 64)
	if err != nil || id <= 0 {
		return nil, &domain.ValidationError{Field: "discipline", Reason: "must be a positive integer"}
	}
	return &id, nil
}
