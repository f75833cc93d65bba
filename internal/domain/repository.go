package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// TokenStore caches registry tokens per credential set.
// Implementations must be safe for concurrent use; the last Put wins.
type TokenStore interface {
	// Get returns the cached token, if any, without checking its validity.
	Get(ctx context.Context, key CredentialsKey) (AuthToken, bool, error)

	// Put stores the token with a TTL shorter than its real expiry so the
	// cache evicts it before the registry does.
	Put(ctx context.Context, key CredentialsKey, token AuthToken) error

	// Invalidate drops the cached token immediately.
	Invalidate(ctx context.Context, key CredentialsKey) error
}

// AttendanceRepository persists attendance records keyed by AttendanceKey.
type AttendanceRepository interface {
	// ListByClassDate returns the rows of one class day and discipline.
	// A nil discipline selects the rows recorded for the whole class.
	ListByClassDate(ctx context.Context, tenantID uuid.UUID, classCode string, date time.Time, disciplineID *int64) ([]AttendanceRecord, error)

	// ApplyBatch upserts or deletes every edit of the batch in one transaction.
	ApplyBatch(ctx context.Context, batch AttendanceBatch) (ApplyResult, error)

	// BulkUpsert merges records on the composite key in a single statement,
	// updating only the mutable fields.
	BulkUpsert(ctx context.Context, records []AttendanceRecord) (int, error)
}

// TenantRegistrySettings holds per-tenant overrides of the registry
// credentials. Empty fields fall back to the process-wide defaults.
type TenantRegistrySettings struct {
	TenantID            uuid.UUID
	Name                string
	BaseURL             string
	Username            string
	Password            string
	DistrictCode        string
	MunicipalityCode    string
	NetworkTypeCode     string
	TeachingNetworkCode string
}

// TenantRepository looks up tenant registry settings.
type TenantRepository interface {
	// RegistrySettings returns ErrTenantNotFound when the tenant does not exist.
	RegistrySettings(ctx context.Context, tenantID uuid.UUID) (TenantRegistrySettings, error)
}
