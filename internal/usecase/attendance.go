package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/V4T54L/classroll/internal/adapter/metrics"
	"github.com/V4T54L/classroll/internal/domain"
)

// CredentialsSource resolves the registry credentials of a tenant.
type CredentialsSource interface {
	Resolve(ctx context.Context, tenantID uuid.UUID) (domain.Credentials, error)
}

// RosterSource fetches a class roster from the registry.
type RosterSource interface {
	ClassRoster(ctx context.Context, creds domain.Credentials, classCode string) (domain.ClassRoster, error)
}

// ViewQuery selects one class day.
type ViewQuery struct {
	TenantID     uuid.UUID
	ClassCode    string
	Date         string
	DisciplineID *int64
}

// SaveEntry is one student's submitted attendance. Nil or blank status and
// note together clear the stored record.
type SaveEntry struct {
	RA     string
	Status *domain.Status
	Note   *string
}

// SaveCommand submits the attendance of one class day.
type SaveCommand struct {
	TenantID     uuid.UUID
	UserID       uuid.UUID
	ClassCode    string
	Date         string
	DisciplineID *int64
	Entries      []SaveEntry
}

// BulkRecord is one row of a bulk upsert. The denormalised names are taken as given.
type BulkRecord struct {
	SchoolCode   string
	SchoolName   string
	ClassCode    string
	ClassName    string
	TeachingType string
	Date         string
	RA           string
	DisciplineID *int64
	Status       *domain.Status
	Note         *string
}

// AttendanceReconciler merges the registry roster with local attendance
// records and applies edits while the class day is still open.
type AttendanceReconciler struct {
	credentials CredentialsSource
	roster      RosterSource
	repo        domain.AttendanceRepository
	location    *time.Location
	now         func() time.Time
	logger      *slog.Logger
	metrics     *metrics.Metrics
}

// NewAttendanceReconciler creates an AttendanceReconciler. Today is evaluated in loc.
func NewAttendanceReconciler(credentials CredentialsSource, roster RosterSource, repo domain.AttendanceRepository, loc *time.Location, logger *slog.Logger, m *metrics.Metrics) *AttendanceReconciler {
	if loc == nil {
		loc = time.UTC
	}
	return &AttendanceReconciler{
		credentials: credentials,
		roster:      roster,
		repo:        repo,
		location:    loc,
		now:         time.Now,
		logger:      logger.With("component", "attendance_reconciler"),
		metrics:     m,
	}
}

// Today returns the current calendar date in the configured location.
func (uc *AttendanceReconciler) Today() time.Time {
	return civilDate(uc.now().In(uc.location))
}

// View builds the attendance sheet of a class day. Registry failures are
// returned unchanged; no placeholder roster is substituted.
func (uc *AttendanceReconciler) View(ctx context.Context, q ViewQuery) (domain.AttendanceView, error) {
	date, err := parseDate("date", q.Date)
	if err != nil {
		return domain.AttendanceView{}, err
	}
	classCode := strings.TrimSpace(q.ClassCode)

	creds, err := uc.credentials.Resolve(ctx, q.TenantID)
	if err != nil {
		return domain.AttendanceView{}, err
	}
	roster, err := uc.roster.ClassRoster(ctx, creds, classCode)
	if err != nil {
		return domain.AttendanceView{}, err
	}
	records, err := uc.repo.ListByClassDate(ctx, q.TenantID, classCode, date, q.DisciplineID)
	if err != nil {
		return domain.AttendanceView{}, fmt.Errorf("failed to list attendance of class %s: %w", classCode, err)
	}

	byRA := make(map[string]domain.AttendanceRecord, len(records))
	for _, rec := range records {
		byRA[rec.StudentRA] = rec
	}

	view := domain.AttendanceView{
		Date: date.Format(domain.DateLayout),
		Class: domain.ClassSummary{
			Code:   classCode,
			Name:   roster.Name(),
			Shift:  roster.Shift,
			School: roster.SchoolName,
		},
		Students: make([]domain.StudentAttendance, 0, len(roster.Students)),
		Editable: date.Equal(uc.Today()),
	}
	for _, student := range roster.Students {
		ra := student.RA.String()
		row := domain.StudentAttendance{RA: ra, Name: student.Name, Number: student.Number}
		if rec, ok := byRA[ra]; ok {
			row.Status = rec.Status
			row.Note = rec.Note
			delete(byRA, ra)
		}
		view.Students = append(view.Students, row)
	}
	if len(byRA) > 0 {
		uc.logger.Debug("local records without a roster entry", "class_code", classCode, "date", view.Date, "count", len(byRA))
	}
	return view, nil
}

// Save applies the edits of one class day in a single transaction. A date
// other than today is rejected before anything else happens.
func (uc *AttendanceReconciler) Save(ctx context.Context, cmd SaveCommand) (domain.ApplyResult, error) {
	date, err := parseDate("date", cmd.Date)
	if err != nil {
		return domain.ApplyResult{}, err
	}
	if err := uc.checkEditable(date); err != nil {
		return domain.ApplyResult{}, err
	}

	edits, err := normaliseEntries(cmd.Entries)
	if err != nil {
		return domain.ApplyResult{}, err
	}
	classCode := strings.TrimSpace(cmd.ClassCode)

	creds, err := uc.credentials.Resolve(ctx, cmd.TenantID)
	if err != nil {
		return domain.ApplyResult{}, err
	}
	roster, err := uc.roster.ClassRoster(ctx, creds, classCode)
	if err != nil {
		return domain.ApplyResult{}, err
	}

	res, err := uc.repo.ApplyBatch(ctx, domain.AttendanceBatch{
		TenantID:     cmd.TenantID,
		ClassCode:    classCode,
		Date:         date,
		DisciplineID: cmd.DisciplineID,
		RecordedBy:   cmd.UserID,
		Snapshot:     roster.Snapshot(),
		Edits:        edits,
		At:           uc.now().UTC(),
	})
	if err != nil {
		return domain.ApplyResult{}, fmt.Errorf("failed to save attendance of class %s: %w", classCode, err)
	}

	uc.metrics.AttendanceWritten("upsert", res.Upserted)
	uc.metrics.AttendanceWritten("delete", res.Deleted)
	uc.logger.Info("attendance saved",
		"tenant_id", cmd.TenantID,
		"class_code", classCode,
		"date", cmd.Date,
		"upserted", res.Upserted,
		"deleted", res.Deleted,
	)
	return res, nil
}

// BulkUpsert merges many records across classes in one statement. Every
// record must belong to today; the batch is rejected as a whole otherwise.
func (uc *AttendanceReconciler) BulkUpsert(ctx context.Context, tenantID, userID uuid.UUID, records []BulkRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	at := uc.now().UTC()
	rows := make([]domain.AttendanceRecord, 0, len(records))
	seen := make(map[string]int, len(records))
	for i, r := range records {
		field := fmt.Sprintf("records[%d]", i)
		date, err := parseDate(field+".date", r.Date)
		if err != nil {
			return 0, err
		}
		if err := uc.checkEditable(date); err != nil {
			return 0, err
		}
		ra, err := domain.ParseRA(r.RA)
		if err != nil {
			return 0, relabel(err, field+".ra")
		}
		if strings.TrimSpace(r.ClassCode) == "" {
			return 0, &domain.ValidationError{Field: field + ".class_code", Reason: "is required"}
		}
		if domain.IsEmptyEntry(r.Status, r.Note) {
			return 0, &domain.ValidationError{Field: field, Reason: "status or note is required"}
		}
		if err := checkStatus(field+".status", r.Status); err != nil {
			return 0, err
		}

		rec := domain.AttendanceRecord{
			TenantID:     tenantID,
			SchoolCode:   r.SchoolCode,
			SchoolName:   r.SchoolName,
			ClassCode:    strings.TrimSpace(r.ClassCode),
			ClassName:    r.ClassName,
			TeachingType: r.TeachingType,
			Date:         date,
			StudentRA:    ra.String(),
			DisciplineID: r.DisciplineID,
			Status:       nilIfBlankStatus(r.Status),
			Note:         nilIfBlank(r.Note),
			RecordedBy:   userID,
			CreatedAt:    at,
			UpdatedAt:    at,
		}
		key := rec.Key().String()
		if prev, dup := seen[key]; dup {
			return 0, &domain.ValidationError{Field: field, Reason: fmt.Sprintf("duplicates records[%d]", prev)}
		}
		seen[key] = i
		rows = append(rows, rec)
	}

	n, err := uc.repo.BulkUpsert(ctx, rows)
	if err != nil {
		return 0, fmt.Errorf("failed to bulk upsert attendance: %w", err)
	}
	uc.metrics.AttendanceWritten("bulk_upsert", n)
	uc.logger.Info("attendance bulk upserted", "tenant_id", tenantID, "rows", n)
	return n, nil
}

func (uc *AttendanceReconciler) checkEditable(date time.Time) error {
	today := uc.Today()
	if date.Equal(today) {
		return nil
	}
	uc.metrics.EditWindowClosed()
	return &domain.EditWindowClosedError{Date: date, Today: today}
}

func normaliseEntries(entries []SaveEntry) ([]domain.AttendanceEdit, error) {
	edits := make([]domain.AttendanceEdit, 0, len(entries))
	seen := make(map[string]int, len(entries))
	for i, e := range entries {
		field := fmt.Sprintf("records[%d]", i)
		ra, err := domain.ParseRA(e.RA)
		if err != nil {
			return nil, relabel(err, field+".ra")
		}
		if prev, dup := seen[ra.String()]; dup {
			return nil, &domain.ValidationError{Field: field + ".ra", Reason: fmt.Sprintf("duplicates records[%d]", prev)}
		}
		seen[ra.String()] = i
		if err := checkStatus(field+".status", e.Status); err != nil {
			return nil, err
		}
		edits = append(edits, domain.AttendanceEdit{
			StudentRA: ra.String(),
			Status:    nilIfBlankStatus(e.Status),
			Note:      nilIfBlank(e.Note),
		})
	}
	return edits, nil
}

// relabel moves a validation error onto the request field it came from.
func relabel(err error, field string) error {
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		return &domain.ValidationError{Field: field, Reason: verr.Reason}
	}
	return err
}

func checkStatus(field string, s *domain.Status) error {
	if s == nil || *s == "" || s.Valid() {
		return nil
	}
	return &domain.ValidationError{Field: field, Reason: "must be one of [present absent justified]"}
}

func nilIfBlankStatus(s *domain.Status) *domain.Status {
	if s == nil || *s == "" {
		return nil
	}
	return s
}

func nilIfBlank(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}

// parseDate reads a calendar date as midnight UTC.
func parseDate(field, value string) (time.Time, error) {
	t, err := time.Parse(domain.DateLayout, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, &domain.ValidationError{Field: field, Reason: "must be a date in YYYY-MM-DD form"}
	}
	return t, nil
}

func civilDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
