package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/V4T54L/classroll/internal/adapter/metrics"
	"github.com/V4T54L/classroll/internal/adapter/pii"
	"github.com/V4T54L/classroll/internal/domain"
)

const (
	tracerName     = "github.com/V4T54L/classroll/internal/adapter/registry"
	defaultTimeout = 30 * time.Second
)

// TokenIssuer performs the credential exchange. *Authenticator implements it.
type TokenIssuer interface {
	Authenticate(ctx context.Context, creds domain.Credentials) (domain.AuthToken, error)
}

// Options tune a Client. Zero values select the defaults.
type Options struct {
	Timeout       time.Duration
	RefreshBuffer time.Duration
	RateLimit     float64 // requests per second; zero disables limiting
	RateBurst     int
}

// Client issues authenticated calls to the remote registry.
type Client struct {
	httpClient    *http.Client
	issuer        TokenIssuer
	tokens        domain.TokenStore
	limiter       *rate.Limiter
	refreshGroup  singleflight.Group
	timeout       time.Duration
	refreshBuffer time.Duration
	now           func() time.Time
	redactor      *pii.Redactor
	logger        *slog.Logger
	metrics       *metrics.Metrics
}

// NewClient creates a registry client.
func NewClient(httpClient *http.Client, issuer TokenIssuer, tokens domain.TokenStore, opts Options, redactor *pii.Redactor, logger *slog.Logger, m *metrics.Metrics) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.RefreshBuffer <= 0 {
		opts.RefreshBuffer = domain.DefaultRefreshBuffer
	}
	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.RateLimit > 0 {
		burst := opts.RateBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}
	return &Client{
		httpClient:    httpClient,
		issuer:        issuer,
		tokens:        tokens,
		limiter:       limiter,
		timeout:       opts.Timeout,
		refreshBuffer: opts.RefreshBuffer,
		now:           time.Now,
		redactor:      redactor,
		logger:        logger.With("component", "registry_client"),
		metrics:       m,
	}
}

func (c *Client) Get(ctx context.Context, creds domain.Credentials, path string, query url.Values) (json.RawMessage, error) {
	return c.Do(ctx, creds, http.MethodGet, path, query, nil)
}

func (c *Client) Post(ctx context.Context, creds domain.Credentials, path string, query url.Values, payload any) (json.RawMessage, error) {
	return c.Do(ctx, creds, http.MethodPost, path, query, payload)
}

func (c *Client) Put(ctx context.Context, creds domain.Credentials, path string, query url.Values, payload any) (json.RawMessage, error) {
	return c.Do(ctx, creds, http.MethodPut, path, query, payload)
}

func (c *Client) Delete(ctx context.Context, creds domain.Credentials, path string, query url.Values) (json.RawMessage, error) {
	return c.Do(ctx, creds, http.MethodDelete, path, query, nil)
}

// Do sends one logical request. On an authorization failure the cached token
// is dropped, a new one is obtained and the call is retried as DecideRetry
// allows. A successful HTTP status carrying outErro fails with *domain.BusinessError.
func (c *Client) Do(ctx context.Context, creds domain.Credentials, method, path string, query url.Values, payload any) (json.RawMessage, error) {
	switch method {
	case http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete:
	default:
		return nil, &domain.ValidationError{Field: "method", Reason: method + " is not supported"}
	}
	if err := creds.Validate(); err != nil {
		return nil, err
	}

	var body []byte
	if payload != nil {
		var err error
		if body, err = json.Marshal(payload); err != nil {
			return nil, fmt.Errorf("failed to encode registry payload: %w", err)
		}
	}

	key := creds.Key()
	forceRefresh := false
	for attempt := 1; ; attempt++ {
		token, err := c.token(ctx, creds, forceRefresh)
		if err != nil {
			return nil, err
		}

		raw, err := c.send(ctx, creds, token, method, path, query, body)
		if err == nil {
			return raw, nil
		}

		kind := domain.KindOf(err)
		if kind == domain.KindAuth {
			if invErr := c.tokens.Invalidate(ctx, key); invErr != nil {
				c.logger.Warn("failed to invalidate rejected registry token", "tenant_id", creds.TenantID, "error", invErr)
			}
		}
		if DecideRetry(attempt, kind) == Fail {
			if kind == domain.KindAuth && attempt > 1 {
				return nil, &domain.AuthError{Reason: "registry rejected a freshly issued token", Err: err}
			}
			return nil, err
		}
		c.logger.Info("registry rejected session token, re-authenticating", "tenant_id", creds.TenantID, "path", path, "attempt", attempt)
		forceRefresh = true
	}
}

// token returns a usable token for creds, authenticating when the cache has
// none or forceRefresh is set. Concurrent refreshes of one key share a single
// credential exchange, bounded by the client timeout.
func (c *Client) token(ctx context.Context, creds domain.Credentials, forceRefresh bool) (domain.AuthToken, error) {
	key := creds.Key()
	if !forceRefresh {
		cached, ok, err := c.tokens.Get(ctx, key)
		switch {
		case err != nil:
			c.logger.Warn("token store unavailable, authenticating directly", "tenant_id", creds.TenantID, "error", err)
		case ok && cached.IsValid(c.now(), c.refreshBuffer):
			return cached, nil
		}
	}

	// The exchange ignores the cancellation of whichever caller started it;
	// every caller waits on its own ctx.
	ch := c.refreshGroup.DoChan(string(key), func() (interface{}, error) {
		authCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()
		token, err := c.issuer.Authenticate(authCtx, creds)
		if err != nil {
			return domain.AuthToken{}, err
		}
		if err := c.tokens.Put(authCtx, key, token); err != nil {
			c.logger.Warn("failed to cache registry token", "tenant_id", creds.TenantID, "error", err)
		}
		return token, nil
	})
	select {
	case <-ctx.Done():
		return domain.AuthToken{}, &domain.TransportError{Op: "authenticate", Err: ctx.Err()}
	case res := <-ch:
		if res.Err != nil {
			return domain.AuthToken{}, res.Err
		}
		if res.Shared {
			c.logger.Debug("joined in-flight registry authentication", "tenant_id", creds.TenantID)
		}
		return res.Val.(domain.AuthToken), nil
	}
}

func (c *Client) send(ctx context.Context, creds domain.Credentials, token domain.AuthToken, method, path string, query url.Values, body []byte) (json.RawMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	ctx, span := otel.Tracer(tracerName).Start(ctx, "registry "+method+" "+path)
	defer span.End()
	span.SetAttributes(
		attribute.String("http.request.method", method),
		attribute.String("registry.path", path),
		attribute.String("tenant.id", creds.TenantID.String()),
	)

	start := time.Now()
	raw, status, err := c.roundTrip(ctx, token, creds.BaseURL, method, path, query, body)
	outcome := "ok"
	if err != nil {
		outcome = domain.KindOf(err).String()
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
	}
	if status != 0 {
		span.SetAttributes(attribute.Int("http.response.status_code", status))
	}
	c.metrics.ObserveRegistryCall(method, outcome, time.Since(start))
	return raw, err
}

func (c *Client) roundTrip(ctx context.Context, token domain.AuthToken, baseURL, method, path string, query url.Values, body []byte) (json.RawMessage, int, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, 0, &domain.TransportError{Op: "rate limit " + path, Err: err}
	}

	endpoint := strings.TrimRight(baseURL, "/") + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build registry request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token.Value)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, &domain.TransportError{Op: method + " " + path, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, resp.StatusCode, &domain.TransportError{Op: method + " " + path, Err: err}
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, resp.StatusCode, &domain.AuthError{
			Reason: "registry rejected the session token",
			Err:    &domain.RequestFailedError{Status: resp.StatusCode, Body: truncate(raw)},
		}
	case resp.StatusCode >= 200 && resp.StatusCode <= 299:
		if msg := businessError(raw); msg != "" {
			c.logger.Info("registry reported a business error", "path", path, "message", msg)
			return nil, resp.StatusCode, &domain.BusinessError{Message: msg}
		}
		return json.RawMessage(raw), resp.StatusCode, nil
	default:
		c.logger.Warn("registry request failed",
			"method", method,
			"path", path,
			"status", resp.StatusCode,
			"body", c.redactor.ForLog(raw),
		)
		return nil, resp.StatusCode, &domain.RequestFailedError{Status: resp.StatusCode, Body: truncate(raw)}
	}
}

// ErrNoContent is returned by decoders when a successful response has no body.
var ErrNoContent = errors.New("registry returned an empty body")
