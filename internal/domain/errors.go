package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrTenantNotFound is returned when a tenant has no row in storage.
var ErrTenantNotFound = errors.New("tenant not found")

// ErrorKind classifies errors raised by the registry integration and the reconciler.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindConfiguration
	KindAuth
	KindTransport
	KindBusiness
	KindRequestFailed
	KindEditWindowClosed
	KindValidation
)

func (k ErrorKind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindAuth:
		return "auth"
	case KindTransport:
		return "transport"
	case KindBusiness:
		return "business"
	case KindRequestFailed:
		return "request_failed"
	case KindEditWindowClosed:
		return "edit_window_closed"
	case KindValidation:
		return "validation"
	default:
		return "unknown"
	}
}

// ConfigurationError means required registry credentials or routing codes are missing.
type ConfigurationError struct {
	TenantID uuid.UUID
	Missing  []string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("registry credentials incomplete for tenant %s: missing %s", e.TenantID, strings.Join(e.Missing, ", "))
}

// AuthError means the registry refused the credential exchange, returned no
// token, or rejected a freshly issued token.
type AuthError struct {
	Reason string
	Err    error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return "registry authentication failed: " + e.Reason + ": " + e.Err.Error()
	}
	return "registry authentication failed: " + e.Reason
}

func (e *AuthError) Unwrap() error { return e.Err }

// TransportError wraps network and timeout failures talking to the registry.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("registry transport error during %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// BusinessError is a domain error the registry reported inside a successful HTTP response.
type BusinessError struct {
	Message string
}

func (e *BusinessError) Error() string { return e.Message }

// RequestFailedError is a non-2xx registry response not otherwise classified.
type RequestFailedError struct {
	Status int
	Body   string
}

func (e *RequestFailedError) Error() string {
	return fmt.Sprintf("registry request failed with status %d: %s", e.Status, e.Body)
}

// EditWindowClosedError rejects a mutation of attendance outside its own day.
type EditWindowClosedError struct {
	Date  time.Time
	Today time.Time
}

func (e *EditWindowClosedError) Error() string {
	return fmt.Sprintf("attendance for %s can no longer be edited (today is %s)", e.Date.Format(DateLayout), e.Today.Format(DateLayout))
}

// ValidationError is malformed input rejected before any remote call or write.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// KindOf returns the kind of the first classified error in err's chain.
func KindOf(err error) ErrorKind {
	var (
		cfgErr      *ConfigurationError
		authErr     *AuthError
		transErr    *TransportError
		bizErr      *BusinessError
		reqErr      *RequestFailedError
		windowErr   *EditWindowClosedError
		validateErr *ValidationError
	)
	switch {
	case err == nil:
		return KindUnknown
	case errors.As(err, &cfgErr):
		return KindConfiguration
	case errors.As(err, &authErr):
		return KindAuth
	case errors.As(err, &transErr):
		return KindTransport
	case errors.As(err, &bizErr):
		return KindBusiness
	case errors.As(err, &reqErr):
		return KindRequestFailed
	case errors.As(err, &windowErr):
		return KindEditWindowClosed
	case errors.As(err, &validateErr):
		return KindValidation
	default:
		return KindUnknown
	}
}
