package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/V4T54L/classroll/internal/adapter/metrics"
	"github.com/V4T54L/classroll/internal/domain"
)

const tenantSettingsQuery = `
	SELECT id, name, registry_base_url, registry_username, registry_password,
		district_code, municipality_code, network_type_code, teaching_network_code
	FROM tenants
	WHERE id = $1`

type cacheEntry struct {
	settings  domain.TenantRegistrySettings
	expiresAt time.Time
}

// TenantRepository implements domain.TenantRepository using PostgreSQL as the
// source of truth and an in-memory, time-based cache.
type TenantRepository struct {
	db       *sql.DB
	logger   *slog.Logger
	cache    map[uuid.UUID]cacheEntry
	mu       sync.RWMutex
	cacheTTL time.Duration
	now      func() time.Time
	metrics  *metrics.Metrics
}

// NewTenantRepository creates a new instance of the PostgreSQL tenant repository.
func NewTenantRepository(db *sql.DB, logger *slog.Logger, cacheTTL time.Duration, m *metrics.Metrics) *TenantRepository {
	return &TenantRepository{
		db:       db,
		logger:   logger.With("component", "tenant_repository"),
		cache:    make(map[uuid.UUID]cacheEntry),
		cacheTTL: cacheTTL,
		now:      time.Now,
		metrics:  m,
	}
}

// RegistrySettings returns the tenant's registry overrides. It first checks a
// local cache and falls back to the database when the entry is missing or stale.
func (r *TenantRepository) RegistrySettings(ctx context.Context, tenantID uuid.UUID) (domain.TenantRegistrySettings, error) {
	r.mu.RLock()
	entry, found := r.cache[tenantID]
	r.mu.RUnlock()

	if found && r.now().Before(entry.expiresAt) {
		r.metrics.TenantCacheHit()
		return entry.settings, nil
	}
	r.metrics.TenantCacheMiss()

	r.mu.Lock()
	defer r.mu.Unlock()

	// Another goroutine may have filled the entry while we waited for the lock.
	entry, found = r.cache[tenantID]
	if found && r.now().Before(entry.expiresAt) {
		return entry.settings, nil
	}

	var s domain.TenantRegistrySettings
	var baseURL, username, password sql.NullString
	var district, municipality, networkType, teachingNetwork sql.NullString
	err := r.db.QueryRowContext(ctx, tenantSettingsQuery, tenantID).Scan(
		&s.TenantID, &s.Name, &baseURL, &username, &password,
		&district, &municipality, &networkType, &teachingNetwork,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.TenantRegistrySettings{}, domain.ErrTenantNotFound
	}
	if err != nil {
		r.logger.Error("failed to load tenant settings", "tenant_id", tenantID, "error", err)
		// Errors are not cached; the next request retries the database.
		return domain.TenantRegistrySettings{}, fmt.Errorf("failed to query tenant %s: %w", tenantID, err)
	}
	s.BaseURL = baseURL.String
	s.Username = username.String
	s.Password = password.String
	s.DistrictCode = district.String
	s.MunicipalityCode = municipality.String
	s.NetworkTypeCode = networkType.String
	s.TeachingNetworkCode = teachingNetwork.String

	r.cache[tenantID] = cacheEntry{settings: s, expiresAt: r.now().Add(r.cacheTTL)}
	return s, nil
}

// Forget drops a tenant from the cache so the next lookup reads the database.
func (r *TenantRepository) Forget(tenantID uuid.UUID) {
	r.mu.Lock()
	delete(r.cache, tenantID)
	r.mu.Unlock()
}
