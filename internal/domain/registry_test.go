package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthToken_IsValid(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	buffer := DefaultRefreshBuffer

	t.Run("expires one second inside the buffer", func(t *testing.T) {
		tok := AuthToken{Value: "abc", ExpiresAt: now.Add(buffer - time.Second)}
		assert.False(t, tok.IsValid(now, buffer))
	})

	t.Run("expires one second after the buffer", func(t *testing.T) {
		tok := AuthToken{Value: "abc", ExpiresAt: now.Add(buffer + time.Second)}
		assert.True(t, tok.IsValid(now, buffer))
	})

	t.Run("expires exactly at the buffer edge", func(t *testing.T) {
		tok := AuthToken{Value: "abc", ExpiresAt: now.Add(buffer)}
		assert.False(t, tok.IsValid(now, buffer))
	})

	t.Run("empty value is never valid", func(t *testing.T) {
		tok := AuthToken{ExpiresAt: now.Add(time.Hour)}
		assert.False(t, tok.IsValid(now, buffer))
	})
}

func TestAuthToken_CacheTTL(t *testing.T) {
	now := time.Now()
	tok := AuthToken{Value: "abc", IssuedAt: now, ExpiresAt: now.Add(DefaultTokenValidity)}
	assert.Equal(t, 25*time.Minute, tok.CacheTTL(now, DefaultRefreshBuffer))
}

func TestCredentials_Validate(t *testing.T) {
	tenant := uuid.New()

	t.Run("complete", func(t *testing.T) {
		creds := Credentials{
			TenantID:            tenant,
			BaseURL:             "https://registry.example",
			Username:            "user",
			Password:            "secret",
			DistrictCode:        "10",
			MunicipalityCode:    "9668",
			NetworkTypeCode:     "2",
			TeachingNetworkCode: "1",
		}
		require.NoError(t, creds.Validate())
	})

	t.Run("lists every missing field", func(t *testing.T) {
		creds := Credentials{TenantID: tenant, BaseURL: "https://registry.example", Username: "user"}
		err := creds.Validate()
		require.Error(t, err)

		var cfgErr *ConfigurationError
		require.True(t, errors.As(err, &cfgErr))
		assert.Equal(t, []string{"password", "district_code", "municipality_code", "network_type_code", "teaching_network_code"}, cfgErr.Missing)
		assert.Equal(t, KindConfiguration, KindOf(err))
	})
}

func TestCredentials_Key(t *testing.T) {
	a := Credentials{BaseURL: "https://registry.example/", Username: "u", DistrictCode: "1", MunicipalityCode: "2", NetworkTypeCode: "3", TeachingNetworkCode: "4", Password: "p1"}
	b := a
	b.BaseURL = "https://registry.example"
	b.Password = "p2"
	c := a
	c.Username = "other"

	assert.Equal(t, a.Key(), b.Key(), "trailing slash and password must not change the key")
	assert.NotEqual(t, a.Key(), c.Key())
	assert.Len(t, string(a.Key()), 32)
}

func TestParseRA(t *testing.T) {
	tests := []struct {
		in      string
		want    RA
		wantErr bool
	}{
		{in: "123-0", want: RA{Number: "123", Digit: "0", State: "SP"}},
		{in: " 000111222-x ", want: RA{Number: "000111222", Digit: "X", State: "SP"}},
		{in: "1230", wantErr: true},
		{in: "12a-1", wantErr: true},
		{in: "123-", wantErr: true},
		{in: "123-12", wantErr: true},
		{in: "123-Y", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%q", tt.in), func(t *testing.T) {
			got, err := ParseRA(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, KindValidation, KindOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want.Number+"-"+tt.want.Digit, got.String())
		})
	}
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindAuth, KindOf(fmt.Errorf("wrapped: %w", &AuthError{Reason: "rejected"})))
	assert.Equal(t, KindTransport, KindOf(&TransportError{Op: "authenticate", Err: errors.New("dial tcp")}))
	assert.Equal(t, KindBusiness, KindOf(&BusinessError{Message: "X"}))
	assert.Equal(t, KindRequestFailed, KindOf(&RequestFailedError{Status: 500}))
	assert.Equal(t, KindEditWindowClosed, KindOf(&EditWindowClosedError{}))
	assert.Equal(t, KindUnknown, KindOf(errors.New("plain")))
	assert.Equal(t, KindUnknown, KindOf(nil))
}

func TestIsEmptyEntry(t *testing.T) {
	present := StatusPresent
	blank := Status("")
	spaces := "   "
	note := "arrived late"

	assert.True(t, IsEmptyEntry(nil, nil))
	assert.True(t, IsEmptyEntry(&blank, &spaces))
	assert.False(t, IsEmptyEntry(&present, nil))
	assert.False(t, IsEmptyEntry(nil, &note))
}
