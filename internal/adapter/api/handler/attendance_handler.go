package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/V4T54L/classroll/internal/domain"
	"github.com/V4T54L/classroll/internal/pkg/validation"
	"github.com/V4T54L/classroll/internal/usecase"
)

// AttendanceService is the attendance use case as seen by the HTTP layer.
type AttendanceService interface {
	Today() time.Time
	View(ctx context.Context, q usecase.ViewQuery) (domain.AttendanceView, error)
	Save(ctx context.Context, cmd usecase.SaveCommand) (domain.ApplyResult, error)
	BulkUpsert(ctx context.Context, tenantID, userID uuid.UUID, records []usecase.BulkRecord) (int, error)
}

type saveRecord struct {
	RA     string         `json:"ra" validate:"required"`
	Status *domain.Status `json:"status"`
	Note   *string        `json:"note" validate:"omitempty,max=500"`
}

type saveRequest struct {
	Date         string       `json:"date" validate:"required,datetime=2006-01-02"`
	DisciplineID *int64       `json:"discipline_id" validate:"omitempty,min=1"`
	Records      []saveRecord `json:"records" validate:"dive"`
}

type saveResponse struct {
	Success  bool `json:"success"`
	Upserted int  `json:"upserted"`
	Deleted  int  `json:"deleted"`
}

type bulkRecord struct {
	SchoolCode   string         `json:"school_code" validate:"required,numeric"`
	SchoolName   string         `json:"school_name"`
	ClassCode    string         `json:"class_code" validate:"required,numeric"`
	ClassName    string         `json:"class_name"`
	TeachingType string         `json:"teaching_type"`
	Date         string         `json:"date" validate:"required,datetime=2006-01-02"`
	RA           string         `json:"ra" validate:"required"`
	DisciplineID *int64         `json:"discipline_id" validate:"omitempty,min=1"`
	Status       *domain.Status `json:"status"`
	Note         *string        `json:"note" validate:"omitempty,max=500"`
}

type bulkRequest struct {
	Records []bulkRecord `json:"records" validate:"required,min=1,max=5000,dive"`
}

// AttendanceHandler serves the attendance sheet of a class day.
type AttendanceHandler struct {
	svc          AttendanceService
	validate     *validation.Validator
	logger       *slog.Logger
	maxBodyBytes int64
}

// NewAttendanceHandler creates a new AttendanceHandler.
func NewAttendanceHandler(svc AttendanceService, validate *validation.Validator, logger *slog.Logger, maxBodyBytes int64) *AttendanceHandler {
	return &AttendanceHandler{
		svc:          svc,
		validate:     validate,
		logger:       logger.With("component", "attendance_handler"),
		maxBodyBytes: maxBodyBytes,
	}
}

// Data returns the merged roster and attendance of a class day.
// GET /classes/{classCode}/attendance/data?date=YYYY-MM-DD&discipline=ID
func (h *AttendanceHandler) Data(w http.ResponseWriter, r *http.Request) {
	view, ok := h.view(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// Save applies the submitted attendance of a class day.
// POST /classes/{classCode}/attendance/save
func (h *AttendanceHandler) Save(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	classCode, err := h.classCode(r)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	var req saveRequest
	if err := decodeJSON(w, r, h.maxBodyBytes, &req); err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	entries := make([]usecase.SaveEntry, len(req.Records))
	for i, rec := range req.Records {
		entries[i] = usecase.SaveEntry{RA: rec.RA, Status: rec.Status, Note: rec.Note}
	}
	res, err := h.svc.Save(r.Context(), usecase.SaveCommand{
		TenantID:     p.TenantID,
		UserID:       p.UserID,
		ClassCode:    classCode,
		Date:         req.Date,
		DisciplineID: req.DisciplineID,
		Entries:      entries,
	})
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, saveResponse{Success: true, Upserted: res.Upserted, Deleted: res.Deleted})
}

// Bulk merges records of several classes of today in one statement.
// POST /attendance/bulk
func (h *AttendanceHandler) Bulk(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	var req bulkRequest
	if err := decodeJSON(w, r, h.maxBodyBytes, &req); err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	records := make([]usecase.BulkRecord, len(req.Records))
	for i, rec := range req.Records {
		records[i] = usecase.BulkRecord{
			SchoolCode:   rec.SchoolCode,
			SchoolName:   rec.SchoolName,
			ClassCode:    rec.ClassCode,
			ClassName:    rec.ClassName,
			TeachingType: rec.TeachingType,
			Date:         rec.Date,
			RA:           rec.RA,
			DisciplineID: rec.DisciplineID,
			Status:       rec.Status,
			Note:         rec.Note,
		}
	}
	n, err := h.svc.BulkUpsert(r.Context(), p.TenantID, p.UserID, records)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "affected": n})
}

// ExportCSV streams the merged sheet of a class day as CSV.
// GET /classes/{classCode}/attendance/export.csv?date=YYYY-MM-DD&discipline=ID
func (h *AttendanceHandler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	view, ok := h.view(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+exportFilename(view)+`"`)
	w.WriteHeader(http.StatusOK)
	if err := writeAttendanceCSV(w, view); err != nil {
		h.logger.Warn("csv export interrupted", "class_code", view.Class.Code, "date", view.Date, "error", err)
	}
}

func (h *AttendanceHandler) view(w http.ResponseWriter, r *http.Request) (domain.AttendanceView, bool) {
	p, ok := principal(w, r)
	if !ok {
		return domain.AttendanceView{}, false
	}
	classCode, err := h.classCode(r)
	if err != nil {
		respondError(w, r, h.logger, err)
		return domain.AttendanceView{}, false
	}
	query := r.URL.Query()
	discipline, err := parseDiscipline(query.Get("discipline"))
	if err != nil {
		respondError(w, r, h.logger, err)
		return domain.AttendanceView{}, false
	}
	date := strings.TrimSpace(query.Get("date"))
	if date == "" {
		date = h.svc.Today().Format(domain.DateLayout)
	}

	view, err := h.svc.View(r.Context(), usecase.ViewQuery{
		TenantID:     p.TenantID,
		ClassCode:    classCode,
		Date:         date,
		DisciplineID: discipline,
	})
	if err != nil {
		respondError(w, r, h.logger, err)
		return domain.AttendanceView{}, false
	}
	return view, true
}

func (h *AttendanceHandler) classCode(r *http.Request) (string, error) {
	code := strings.TrimSpace(chi.URLParam(r, "classCode"))
	if err := h.validate.Var(code, "required,numeric", "classCode"); err != nil {
		return "", err
	}
	return code, nil
}
