package middleware

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSecret = "test-secret"
	testIssuer = "classroll"
)

var testPrincipal = Principal{
	TenantID: uuid.MustParse("0b6a3a40-8c1c-4a57-b5a1-0f1a4c9e2d10"),
	UserID:   uuid.MustParse("5c9d2e7f-1a3b-4c5d-8e9f-a0b1c2d3e4f5"),
	Role:     "teacher",
}

func TestTokenRoundTrip(t *testing.T) {
	token, err := NewToken(testSecret, testIssuer, testPrincipal, time.Hour)
	require.NoError(t, err)

	p, err := ParseToken(testSecret, testIssuer, token)
	require.NoError(t, err)
	assert.Equal(t, testPrincipal, p)
}

func TestParseToken_Rejects(t *testing.T) {
	sign := func(claims jwt.Claims, method jwt.SigningMethod, key interface{}) string {
		s, err := jwt.NewWithClaims(method, claims).SignedString(key)
		require.NoError(t, err)
		return s
	}
	valid := func() Claims {
		return Claims{
			TenantID: testPrincipal.TenantID.String(),
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   testPrincipal.UserID.String(),
				Issuer:    testIssuer,
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
		}
	}

	expired := valid()
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
	noExpiry := valid()
	noExpiry.ExpiresAt = nil
	otherIssuer := valid()
	otherIssuer.Issuer = "someone-else"
	badTenant := valid()
	badTenant.TenantID = "school-1"
	badSubject := valid()
	badSubject.Subject = ""

	tests := map[string]string{
		"wrong secret":      sign(valid(), jwt.SigningMethodHS256, []byte("other")),
		"expired":           sign(expired, jwt.SigningMethodHS256, []byte(testSecret)),
		"no expiry":         sign(noExpiry, jwt.SigningMethodHS256, []byte(testSecret)),
		"other issuer":      sign(otherIssuer, jwt.SigningMethodHS256, []byte(testSecret)),
		"tenant not a uuid": sign(badTenant, jwt.SigningMethodHS256, []byte(testSecret)),
		"missing subject":   sign(badSubject, jwt.SigningMethodHS256, []byte(testSecret)),
		"other algorithm":   sign(valid(), jwt.SigningMethodHS512, []byte(testSecret)),
		"garbage":           "not.a.token",
	}
	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseToken(testSecret, testIssuer, token)
			assert.Error(t, err)
		})
	}
}

func TestAuth(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	var seen Principal
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := PrincipalFrom(r.Context())
		require.True(t, ok)
		seen = p
		w.WriteHeader(http.StatusNoContent)
	})
	handler := Auth(testSecret, testIssuer, logger)(next)

	token, err := NewToken(testSecret, testIssuer, testPrincipal, time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantError  string
	}{
		{name: "valid", header: "Bearer " + token, wantStatus: http.StatusNoContent},
		{name: "scheme is case-insensitive", header: "bearer " + token, wantStatus: http.StatusNoContent},
		{name: "missing header", header: "", wantStatus: http.StatusUnauthorized, wantError: "missing_token"},
		{name: "basic scheme", header: "Basic dXNlcjpwYXNz", wantStatus: http.StatusUnauthorized, wantError: "missing_token"},
		{name: "invalid token", header: "Bearer nope", wantStatus: http.StatusUnauthorized, wantError: "invalid_token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = Principal{}
			req := httptest.NewRequest(http.MethodGet, "/classes/1/attendance/data", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			assert.Equal(t, tt.wantStatus, rr.Code)
			if tt.wantError == "" {
				assert.Equal(t, testPrincipal, seen)
				return
			}
			var body map[string]string
			require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
			assert.Equal(t, tt.wantError, body["error"])
			assert.Equal(t, Principal{}, seen)
		})
	}
}
