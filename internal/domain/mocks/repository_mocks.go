package mocks

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/V4T54L/classroll/internal/domain"
)

// MockAttendanceRepository is an in-memory domain.AttendanceRepository for testing.
// It keeps at most one row per composite key, like the real table.
type MockAttendanceRepository struct {
	mu       sync.Mutex
	rows     map[string]domain.AttendanceRecord
	nextID   int64
	Batches  []domain.AttendanceBatch
	ListErr  error
	ApplyErr error
	BulkErr  error
}

// NewMockAttendanceRepository creates an empty repository.
func NewMockAttendanceRepository() *MockAttendanceRepository {
	return &MockAttendanceRepository{rows: make(map[string]domain.AttendanceRecord)}
}

func (m *MockAttendanceRepository) ListByClassDate(ctx context.Context, tenantID uuid.UUID, classCode string, date time.Time, disciplineID *int64) ([]domain.AttendanceRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	var out []domain.AttendanceRecord
	for _, r := range m.rows {
		if r.TenantID == tenantID && r.ClassCode == classCode &&
			r.Date.Format(domain.DateLayout) == date.Format(domain.DateLayout) &&
			sameDiscipline(r.DisciplineID, disciplineID) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StudentRA < out[j].StudentRA })
	return out, nil
}

func (m *MockAttendanceRepository) ApplyBatch(ctx context.Context, batch domain.AttendanceBatch) (domain.ApplyResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Batches = append(m.Batches, batch)
	if m.ApplyErr != nil {
		return domain.ApplyResult{}, m.ApplyErr
	}
	var res domain.ApplyResult
	for _, e := range batch.Edits {
		rec := domain.AttendanceRecord{
			TenantID:     batch.TenantID,
			SchoolCode:   batch.Snapshot.SchoolCode,
			SchoolName:   batch.Snapshot.SchoolName,
			ClassCode:    batch.ClassCode,
			ClassName:    batch.Snapshot.ClassName,
			TeachingType: batch.Snapshot.TeachingType,
			Date:         batch.Date,
			StudentRA:    e.StudentRA,
			DisciplineID: batch.DisciplineID,
			Status:       e.Status,
			Note:         e.Note,
			RecordedBy:   batch.RecordedBy,
			UpdatedAt:    batch.At,
		}
		key := rec.Key().String()
		if rec.IsEmpty() {
			if _, ok := m.rows[key]; ok {
				delete(m.rows, key)
				res.Deleted++
			}
			continue
		}
		m.upsertLocked(key, rec)
		res.Upserted++
	}
	return res, nil
}

func (m *MockAttendanceRepository) BulkUpsert(ctx context.Context, records []domain.AttendanceRecord) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.BulkErr != nil {
		return 0, m.BulkErr
	}
	for _, rec := range records {
		m.upsertLocked(rec.Key().String(), rec)
	}
	return len(records), nil
}

// Rows returns a snapshot of every stored row.
func (m *MockAttendanceRepository) Rows() []domain.AttendanceRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.AttendanceRecord, 0, len(m.rows))
	for _, r := range m.rows {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key().String() < out[j].Key().String() })
	return out
}

// Seed stores records directly, bypassing any rule.
func (m *MockAttendanceRepository) Seed(records ...domain.AttendanceRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range records {
		m.upsertLocked(rec.Key().String(), rec)
	}
}

func (m *MockAttendanceRepository) upsertLocked(key string, rec domain.AttendanceRecord) {
	if existing, ok := m.rows[key]; ok {
		rec.ID = existing.ID
		rec.CreatedAt = existing.CreatedAt
	} else {
		m.nextID++
		rec.ID = m.nextID
		rec.CreatedAt = rec.UpdatedAt
	}
	m.rows[key] = rec
}

func sameDiscipline(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// MockTenantRepository is a map-backed domain.TenantRepository.
type MockTenantRepository struct {
	mu       sync.Mutex
	Settings map[uuid.UUID]domain.TenantRegistrySettings
	Err      error
	Calls    int
}

func (m *MockTenantRepository) RegistrySettings(ctx context.Context, tenantID uuid.UUID) (domain.TenantRegistrySettings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++
	if m.Err != nil {
		return domain.TenantRegistrySettings{}, m.Err
	}
	s, ok := m.Settings[tenantID]
	if !ok {
		return domain.TenantRegistrySettings{}, domain.ErrTenantNotFound
	}
	return s, nil
}
