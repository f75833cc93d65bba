package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultRefreshBuffer keeps a token from being used when it would expire mid-flight.
	DefaultRefreshBuffer = 5 * time.Minute
	// DefaultTokenValidity is the validity window the registry grants on every credential exchange.
	DefaultTokenValidity = 30 * time.Minute
	// DefaultRAState is the issuing state assumed for an RA when none is given.
	DefaultRAState = "SP"
)

// CredentialsKey identifies one credential set. Tokens are cached per key so
// tenants never observe each other's tokens.
type CredentialsKey string

// Credentials are everything needed to talk to the remote registry on behalf of a tenant.
type Credentials struct {
	TenantID            uuid.UUID
	BaseURL             string
	Username            string
	Password            string
	DistrictCode        string
	MunicipalityCode    string
	NetworkTypeCode     string
	TeachingNetworkCode string
}

// Validate reports every missing field at once.
func (c Credentials) Validate() error {
	var missing []string
	check := func(name, value string) {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, name)
		}
	}
	check("base_url", c.BaseURL)
	check("username", c.Username)
	check("password", c.Password)
	check("district_code", c.DistrictCode)
	check("municipality_code", c.MunicipalityCode)
	check("network_type_code", c.NetworkTypeCode)
	check("teaching_network_code", c.TeachingNetworkCode)
	if len(missing) > 0 {
		return &ConfigurationError{TenantID: c.TenantID, Missing: missing}
	}
	return nil
}

// Key derives the cache key for these credentials. The password is left out
// so rotating it does not orphan a still-valid token under a new key.
func (c Credentials) Key() CredentialsKey {
	h := sha256.New()
	for _, part := range []string{
		strings.TrimRight(c.BaseURL, "/"),
		c.Username,
		c.DistrictCode,
		c.MunicipalityCode,
		c.NetworkTypeCode,
		c.TeachingNetworkCode,
	} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return CredentialsKey(hex.EncodeToString(h.Sum(nil))[:32])
}

// AuthToken is a session token issued by the remote registry.
// Tenants with identical credentials share one token under the same key, so
// TenantID names the tenant whose exchange issued it, not every tenant using it.
type AuthToken struct {
	Value          string         `json:"value"`
	CredentialsKey CredentialsKey `json:"credentials_key"`
	TenantID       uuid.UUID      `json:"tenant_id"`
	User           string         `json:"user,omitempty"`
	RequestID      string         `json:"request_id,omitempty"`
	IssuedAt       time.Time      `json:"issued_at"`
	ExpiresAt      time.Time      `json:"expires_at"`
}

// IsValid reports whether the token can still be used at now, keeping buffer
// of headroom before it expires.
func (t AuthToken) IsValid(now time.Time, buffer time.Duration) bool {
	if t.Value == "" {
		return false
	}
	return now.Add(buffer).Before(t.ExpiresAt)
}

// CacheTTL is how long the token may sit in a cache: its remaining lifetime minus buffer.
func (t AuthToken) CacheTTL(now time.Time, buffer time.Duration) time.Duration {
	return t.ExpiresAt.Sub(now) - buffer
}

// RA is a student's registration number.
type RA struct {
	Number string `json:"number"`
	Digit  string `json:"digit"`
	State  string `json:"state"`
}

// ParseRA accepts the canonical "number-digit" form, e.g. "123-0".
func ParseRA(value string) (RA, error) {
	value = strings.TrimSpace(value)
	number, digit, ok := strings.Cut(value, "-")
	if !ok || number == "" || len(digit) != 1 {
		return RA{}, &ValidationError{Field: "ra", Reason: "must have the form number-digit"}
	}
	for _, r := range number {
		if r < '0' || r > '9' {
			return RA{}, &ValidationError{Field: "ra", Reason: "number must be numeric"}
		}
	}
	d := strings.ToUpper(digit)
	if !(d[0] >= '0' && d[0] <= '9') && d != "X" {
		return RA{}, &ValidationError{Field: "ra", Reason: "check digit must be 0-9 or X"}
	}
	return RA{Number: number, Digit: d, State: DefaultRAState}, nil
}

func (r RA) String() string {
	if r.Digit == "" {
		return r.Number
	}
	return r.Number + "-" + r.Digit
}
