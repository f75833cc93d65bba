package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/V4T54L/classroll/internal/adapter/metrics"
	"github.com/V4T54L/classroll/internal/adapter/pii"
	"github.com/V4T54L/classroll/internal/domain"
)

const validateUserPath = "/Usuario/ValidarUsuario"

// maxResponseBytes bounds how much of a registry response is read.
const maxResponseBytes = 8 << 20

type validateUserResponse struct {
	Token     string          `json:"outAutenticacao"`
	User      json.RawMessage `json:"outUsuario"`
	RequestID flexString      `json:"outRequestID"`
	Erro      json.RawMessage `json:"outErro"`
}

// Authenticator exchanges credentials for a registry session token.
type Authenticator struct {
	httpClient *http.Client
	validity   time.Duration
	now        func() time.Time
	redactor   *pii.Redactor
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// NewAuthenticator creates an Authenticator. validity is the fixed lifetime
// the registry grants a token; it is not read from the response.
func NewAuthenticator(httpClient *http.Client, validity time.Duration, redactor *pii.Redactor, logger *slog.Logger, m *metrics.Metrics) *Authenticator {
	if validity <= 0 {
		validity = domain.DefaultTokenValidity
	}
	return &Authenticator{
		httpClient: httpClient,
		validity:   validity,
		now:        time.Now,
		redactor:   redactor,
		logger:     logger.With("component", "registry_authenticator"),
		metrics:    m,
	}
}

// Authenticate performs exactly one basic-auth credential exchange. It never retries.
func (a *Authenticator) Authenticate(ctx context.Context, creds domain.Credentials) (domain.AuthToken, error) {
	if err := creds.Validate(); err != nil {
		a.metrics.RegistryAuthenticated("configuration")
		return domain.AuthToken{}, err
	}

	endpoint := strings.TrimRight(creds.BaseURL, "/") + validateUserPath
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		a.metrics.RegistryAuthenticated("configuration")
		return domain.AuthToken{}, &domain.ConfigurationError{TenantID: creds.TenantID, Missing: []string{"base_url (" + err.Error() + ")"}}
	}
	req.SetBasicAuth(creds.Username, creds.Password)
	req.Header.Set("Accept", "application/json")

	issuedAt := a.now()
	resp, err := a.httpClient.Do(req)
	if err != nil {
		a.metrics.RegistryAuthenticated("transport")
		return domain.AuthToken{}, &domain.TransportError{Op: "authenticate", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		a.metrics.RegistryAuthenticated("transport")
		return domain.AuthToken{}, &domain.TransportError{Op: "authenticate", Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		a.metrics.RegistryAuthenticated("rejected")
		a.logger.Warn("registry rejected credential exchange",
			"tenant_id", creds.TenantID,
			"status", resp.StatusCode,
			"body", a.redactor.ForLog(body),
		)
		return domain.AuthToken{}, &domain.AuthError{
			Reason: fmt.Sprintf("credential exchange answered %d", resp.StatusCode),
			Err:    &domain.RequestFailedError{Status: resp.StatusCode, Body: truncate(body)},
		}
	}

	var payload validateUserResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		a.metrics.RegistryAuthenticated("rejected")
		return domain.AuthToken{}, &domain.AuthError{Reason: "credential exchange returned an undecodable body", Err: err}
	}
	if msg := errorMessage(payload.Erro); msg != "" {
		a.metrics.RegistryAuthenticated("rejected")
		return domain.AuthToken{}, &domain.AuthError{Reason: "credential exchange refused", Err: &domain.BusinessError{Message: msg}}
	}
	if strings.TrimSpace(payload.Token) == "" {
		a.metrics.RegistryAuthenticated("rejected")
		return domain.AuthToken{}, &domain.AuthError{Reason: "credential exchange returned no token", Err: errors.New("outAutenticacao is empty")}
	}

	a.metrics.RegistryAuthenticated("ok")
	token := domain.AuthToken{
		Value:          payload.Token,
		CredentialsKey: creds.Key(),
		TenantID:       creds.TenantID,
		User:           rawText(payload.User),
		RequestID:      string(payload.RequestID),
		IssuedAt:       issuedAt,
		ExpiresAt:      issuedAt.Add(a.validity),
	}
	a.logger.Debug("obtained registry token", "tenant_id", creds.TenantID, "request_id", token.RequestID, "expires_at", token.ExpiresAt)
	return token, nil
}
