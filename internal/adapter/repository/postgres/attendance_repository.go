package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/V4T54L/classroll/internal/domain"
)

const (
	attendanceTable   = "attendance_records"
	attendanceImport  = "attendance_records_import"
	naturalKeyName    = "attendance_records_natural_key"
	attendanceColumns = "id, tenant_id, school_code, school_name, class_code, class_name, teaching_type, date, student_ra, discipline_id, status, note, recorded_by, created_at, updated_at"
)

const listAttendanceQuery = `
	SELECT ` + attendanceColumns + `
	FROM ` + attendanceTable + `
	WHERE tenant_id = $1 AND class_code = $2 AND date = $3 AND discipline_id IS NOT DISTINCT FROM $4
	ORDER BY student_ra`

const upsertAttendanceQuery = `
	INSERT INTO ` + attendanceTable + ` (tenant_id, school_code, school_name, class_code, class_name, teaching_type, date, student_ra, discipline_id, status, note, recorded_by, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $13)
	ON CONFLICT ON CONSTRAINT ` + naturalKeyName + ` DO UPDATE SET
		status = EXCLUDED.status,
		note = EXCLUDED.note,
		recorded_by = EXCLUDED.recorded_by,
		school_code = EXCLUDED.school_code,
		school_name = EXCLUDED.school_name,
		class_name = EXCLUDED.class_name,
		teaching_type = EXCLUDED.teaching_type,
		updated_at = EXCLUDED.updated_at`

const deleteAttendanceQuery = `
	DELETE FROM ` + attendanceTable + `
	WHERE tenant_id = $1 AND class_code = $2 AND date = $3 AND student_ra = $4 AND discipline_id IS NOT DISTINCT FROM $5`

const mergeImportQuery = `
	INSERT INTO ` + attendanceTable + ` (tenant_id, school_code, school_name, class_code, class_name, teaching_type, date, student_ra, discipline_id, status, note, recorded_by, created_at, updated_at)
	SELECT tenant_id, school_code, school_name, class_code, class_name, teaching_type, date, student_ra, discipline_id, status, note, recorded_by, created_at, updated_at
	FROM ` + attendanceImport + `
	ON CONFLICT ON CONSTRAINT ` + naturalKeyName + ` DO UPDATE SET
		status = EXCLUDED.status,
		note = EXCLUDED.note,
		recorded_by = EXCLUDED.recorded_by,
		school_code = EXCLUDED.school_code,
		school_name = EXCLUDED.school_name,
		class_name = EXCLUDED.class_name,
		teaching_type = EXCLUDED.teaching_type,
		updated_at = EXCLUDED.updated_at`

// AttendanceRepository implements domain.AttendanceRepository on PostgreSQL.
type AttendanceRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewAttendanceRepository creates a new PostgreSQL attendance repository.
func NewAttendanceRepository(db *sql.DB, logger *slog.Logger) *AttendanceRepository {
	return &AttendanceRepository{db: db, logger: logger.With("component", "attendance_repository")}
}

func (r *AttendanceRepository) ListByClassDate(ctx context.Context, tenantID uuid.UUID, classCode string, date time.Time, disciplineID *int64) ([]domain.AttendanceRecord, error) {
	rows, err := r.db.QueryContext(ctx, listAttendanceQuery, tenantID, classCode, date.Format(domain.DateLayout), disciplineID)
	if err != nil {
		return nil, fmt.Errorf("failed to query attendance: %w", err)
	}
	defer rows.Close()

	var out []domain.AttendanceRecord
	for rows.Next() {
		rec, err := scanAttendance(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read attendance rows: %w", err)
	}
	return out, nil
}

// ApplyBatch runs every edit in one transaction. Each upsert is a single
// INSERT ... ON CONFLICT statement so concurrent editors cannot create duplicates.
func (r *AttendanceRepository) ApplyBatch(ctx context.Context, batch domain.AttendanceBatch) (domain.ApplyResult, error) {
	var res domain.ApplyResult
	if len(batch.Edits) == 0 {
		return res, nil
	}

	txn, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return res, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer txn.Rollback() // no-op after Commit

	upsert, err := txn.PrepareContext(ctx, upsertAttendanceQuery)
	if err != nil {
		return res, fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer upsert.Close()

	del, err := txn.PrepareContext(ctx, deleteAttendanceQuery)
	if err != nil {
		return res, fmt.Errorf("failed to prepare delete: %w", err)
	}
	defer del.Close()

	date := batch.Date.Format(domain.DateLayout)
	for _, e := range batch.Edits {
		if domain.IsEmptyEntry(e.Status, e.Note) {
			result, err := del.ExecContext(ctx, batch.TenantID, batch.ClassCode, date, e.StudentRA, batch.DisciplineID)
			if err != nil {
				return domain.ApplyResult{}, fmt.Errorf("failed to delete attendance of %s: %w", e.StudentRA, err)
			}
			n, err := result.RowsAffected()
			if err != nil {
				return domain.ApplyResult{}, err
			}
			res.Deleted += int(n)
			continue
		}

		_, err := upsert.ExecContext(ctx,
			batch.TenantID,
			batch.Snapshot.SchoolCode,
			batch.Snapshot.SchoolName,
			batch.ClassCode,
			batch.Snapshot.ClassName,
			batch.Snapshot.TeachingType,
			date,
			e.StudentRA,
			batch.DisciplineID,
			statusArg(e.Status),
			e.Note,
			batch.RecordedBy,
			batch.At,
		)
		if err != nil {
			return domain.ApplyResult{}, fmt.Errorf("failed to upsert attendance of %s: %w", e.StudentRA, err)
		}
		res.Upserted++
	}

	if err := txn.Commit(); err != nil {
		return domain.ApplyResult{}, fmt.Errorf("failed to commit attendance batch: %w", err)
	}
	return res, nil
}

// BulkUpsert stages records with COPY into a temporary table and merges them
// into attendance_records with a single statement.
func (r *AttendanceRepository) BulkUpsert(ctx context.Context, records []domain.AttendanceRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	txn, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer txn.Rollback()

	_, err = txn.ExecContext(ctx, `CREATE TEMP TABLE `+attendanceImport+` (LIKE `+attendanceTable+` INCLUDING DEFAULTS) ON COMMIT DROP`)
	if err != nil {
		return 0, fmt.Errorf("failed to create import table: %w", err)
	}

	stmt, err := txn.PrepareContext(ctx, pq.CopyIn(attendanceImport,
		"tenant_id", "school_code", "school_name", "class_code", "class_name", "teaching_type",
		"date", "student_ra", "discipline_id", "status", "note", "recorded_by", "created_at", "updated_at"))
	if err != nil {
		return 0, fmt.Errorf("failed to prepare copy: %w", err)
	}

	for _, rec := range records {
		_, err = stmt.ExecContext(ctx,
			rec.TenantID.String(),
			rec.SchoolCode,
			rec.SchoolName,
			rec.ClassCode,
			rec.ClassName,
			rec.TeachingType,
			rec.Date.Format(domain.DateLayout),
			rec.StudentRA,
			rec.DisciplineID,
			statusArg(rec.Status),
			rec.Note,
			rec.RecordedBy.String(),
			rec.CreatedAt,
			rec.UpdatedAt,
		)
		if err != nil {
			_ = stmt.Close()
			return 0, fmt.Errorf("failed to stage attendance of %s: %w", rec.StudentRA, err)
		}
	}
	if _, err := stmt.ExecContext(ctx); err != nil {
		_ = stmt.Close()
		return 0, fmt.Errorf("failed to flush copy: %w", err)
	}
	if err := stmt.Close(); err != nil {
		return 0, fmt.Errorf("failed to close copy: %w", err)
	}

	result, err := txn.ExecContext(ctx, mergeImportQuery)
	if err != nil {
		return 0, fmt.Errorf("failed to merge attendance: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}

	if err := txn.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit bulk upsert: %w", err)
	}
	r.logger.Debug("bulk upsert merged", "staged", len(records), "affected", n)
	return int(n), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAttendance(s rowScanner) (domain.AttendanceRecord, error) {
	var (
		rec        domain.AttendanceRecord
		discipline sql.NullInt64
		status     sql.NullString
		note       sql.NullString
	)
	err := s.Scan(
		&rec.ID,
		&rec.TenantID,
		&rec.SchoolCode,
		&rec.SchoolName,
		&rec.ClassCode,
		&rec.ClassName,
		&rec.TeachingType,
		&rec.Date,
		&rec.StudentRA,
		&discipline,
		&status,
		&note,
		&rec.RecordedBy,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		return domain.AttendanceRecord{}, fmt.Errorf("failed to scan attendance row: %w", err)
	}
	if discipline.Valid {
		rec.DisciplineID = &discipline.Int64
	}
	if status.Valid {
		s := domain.Status(status.String)
		rec.Status = &s
	}
	if note.Valid {
		rec.Note = &note.String
	}
	return rec, nil
}

func statusArg(s *domain.Status) any {
	if s == nil || *s == "" {
		return nil
	}
	return string(*s)
}
