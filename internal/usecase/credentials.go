package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/V4T54L/classroll/internal/domain"
)

// RegistryDefaults are the process-wide registry settings used when a tenant
// has no override for a field.
type RegistryDefaults struct {
	BaseURL             string
	Username            string
	Password            string
	DistrictCode        string
	MunicipalityCode    string
	NetworkTypeCode     string
	TeachingNetworkCode string
}

// CredentialsResolver builds the registry credentials of a tenant.
type CredentialsResolver struct {
	tenants  domain.TenantRepository
	defaults RegistryDefaults
}

// NewCredentialsResolver creates a CredentialsResolver.
func NewCredentialsResolver(tenants domain.TenantRepository, defaults RegistryDefaults) *CredentialsResolver {
	return &CredentialsResolver{tenants: tenants, defaults: defaults}
}

// Resolve merges the tenant's overrides over the defaults field by field and
// fails with a *domain.ConfigurationError naming every field still missing.
func (r *CredentialsResolver) Resolve(ctx context.Context, tenantID uuid.UUID) (domain.Credentials, error) {
	settings, err := r.tenants.RegistrySettings(ctx, tenantID)
	if err != nil {
		return domain.Credentials{}, fmt.Errorf("failed to load registry settings for tenant %s: %w", tenantID, err)
	}

	creds := domain.Credentials{
		TenantID:            tenantID,
		BaseURL:             pick(settings.BaseURL, r.defaults.BaseURL),
		Username:            pick(settings.Username, r.defaults.Username),
		Password:            pick(settings.Password, r.defaults.Password),
		DistrictCode:        pick(settings.DistrictCode, r.defaults.DistrictCode),
		MunicipalityCode:    pick(settings.MunicipalityCode, r.defaults.MunicipalityCode),
		NetworkTypeCode:     pick(settings.NetworkTypeCode, r.defaults.NetworkTypeCode),
		TeachingNetworkCode: pick(settings.TeachingNetworkCode, r.defaults.TeachingNetworkCode),
	}
	if err := creds.Validate(); err != nil {
		return domain.Credentials{}, err
	}
	return creds, nil
}

func pick(override, fallback string) string {
	if strings.TrimSpace(override) != "" {
		return override
	}
	return fallback
}
