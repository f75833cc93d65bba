package domain

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DateLayout is the calendar-date format used on the wire and in storage.
const DateLayout = "2006-01-02"

// Status is the recorded attendance of one student. A missing record means unset.
type Status string

const (
	StatusPresent   Status = "present"
	StatusAbsent    Status = "absent"
	StatusJustified Status = "justified"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPresent, StatusAbsent, StatusJustified:
		return true
	}
	return false
}

// AttendanceKey is the composite natural key of an attendance row.
// A nil DisciplineID applies to the whole class regardless of subject.
type AttendanceKey struct {
	TenantID     uuid.UUID
	ClassCode    string
	Date         time.Time
	StudentRA    string
	DisciplineID *int64
}

// String renders the key for maps and logs.
func (k AttendanceKey) String() string {
	discipline := "*"
	if k.DisciplineID != nil {
		discipline = strconv.FormatInt(*k.DisciplineID, 10)
	}
	return strings.Join([]string{k.TenantID.String(), k.ClassCode, k.Date.Format(DateLayout), k.StudentRA, discipline}, "|")
}

// AttendanceRecord is one locally stored attendance row.
type AttendanceRecord struct {
	ID           int64     `json:"id"`
	TenantID     uuid.UUID `json:"tenant_id"`
	SchoolCode   string    `json:"school_code"`
	SchoolName   string    `json:"school_name"`
	ClassCode    string    `json:"class_code"`
	ClassName    string    `json:"class_name"`
	TeachingType string    `json:"teaching_type"`
	Date         time.Time `json:"date"`
	StudentRA    string    `json:"student_ra"`
	DisciplineID *int64    `json:"discipline_id"`
	Status       *Status   `json:"status"`
	Note         *string   `json:"note"`
	RecordedBy   uuid.UUID `json:"recorded_by"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Key returns the composite natural key of the record.
func (r AttendanceRecord) Key() AttendanceKey {
	return AttendanceKey{
		TenantID:     r.TenantID,
		ClassCode:    r.ClassCode,
		Date:         r.Date,
		StudentRA:    r.StudentRA,
		DisciplineID: r.DisciplineID,
	}
}

// IsEmpty reports whether neither status nor note carry a value.
func (r AttendanceRecord) IsEmpty() bool {
	return IsEmptyEntry(r.Status, r.Note)
}

// IsEmptyEntry is the rule that decides between delete and upsert.
func IsEmptyEntry(status *Status, note *string) bool {
	return (status == nil || *status == "") && (note == nil || strings.TrimSpace(*note) == "")
}

// ClassSnapshot holds the denormalised names copied onto each record for reporting.
type ClassSnapshot struct {
	SchoolCode   string
	SchoolName   string
	ClassName    string
	TeachingType string
}

// AttendanceEdit is one incoming change for a student.
type AttendanceEdit struct {
	StudentRA string
	Status    *Status
	Note      *string
}

// AttendanceBatch is a set of edits for a single class, date and discipline.
type AttendanceBatch struct {
	TenantID     uuid.UUID
	ClassCode    string
	Date         time.Time
	DisciplineID *int64
	RecordedBy   uuid.UUID
	Snapshot     ClassSnapshot
	Edits        []AttendanceEdit
	At           time.Time
}

// ApplyResult counts what a batch did to storage.
type ApplyResult struct {
	Upserted int `json:"upserted"`
	Deleted  int `json:"deleted"`
}

// ClassRosterEntry is a student as listed by the registry for a class.
type ClassRosterEntry struct {
	RA            RA     `json:"ra"`
	Name          string `json:"name"`
	Number        int    `json:"number"`
	EnrolledFrom  string `json:"enrolled_from,omitempty"`
	EnrolledUntil string `json:"enrolled_until,omitempty"`
	Situation     string `json:"situation,omitempty"`
}

// ClassRoster is the registry's view of a class.
type ClassRoster struct {
	ClassCode        string             `json:"class_code"`
	SchoolCode       string             `json:"school_code"`
	SchoolName       string             `json:"school_name"`
	SchoolYear       string             `json:"school_year"`
	TeachingTypeCode string             `json:"teaching_type_code"`
	TeachingType     string             `json:"teaching_type"`
	Grade            string             `json:"grade"`
	Section          string             `json:"section"`
	Shift            string             `json:"shift"`
	Students         []ClassRosterEntry `json:"students"`
}

// Name is the human label of the class, e.g. "6 A".
func (c ClassRoster) Name() string {
	return strings.TrimSpace(strings.TrimSpace(c.Grade) + " " + strings.TrimSpace(c.Section))
}

// Snapshot extracts the fields denormalised onto attendance records.
func (c ClassRoster) Snapshot() ClassSnapshot {
	return ClassSnapshot{
		SchoolCode:   c.SchoolCode,
		SchoolName:   c.SchoolName,
		ClassName:    c.Name(),
		TeachingType: c.TeachingType,
	}
}

// ClassSummary describes a class in the view header.
type ClassSummary struct {
	Code   string `json:"code"`
	Name   string `json:"name"`
	Shift  string `json:"shift"`
	School string `json:"school"`
}

// StudentAttendance is one row of the merged view. Nil status means not yet recorded.
type StudentAttendance struct {
	RA     string  `json:"ra"`
	Name   string  `json:"name"`
	Number int     `json:"number"`
	Status *Status `json:"status"`
	Note   *string `json:"note"`
}

// AttendanceView merges the remote roster with local records for one class day.
type AttendanceView struct {
	Date     string              `json:"date"`
	Class    ClassSummary        `json:"class"`
	Students []StudentAttendance `json:"students"`
	Editable bool                `json:"editable"`
}

// School is an entry of the registry's school directory.
type School struct {
	Code         string `json:"code"`
	Name         string `json:"name"`
	DistrictCode string `json:"district_code"`
	District     string `json:"district"`
	Municipality string `json:"municipality"`
}

// ClassInfo is an entry of the registry's class listing for a school.
type ClassInfo struct {
	Code             string `json:"code"`
	SchoolCode       string `json:"school_code"`
	SchoolYear       string `json:"school_year"`
	TeachingTypeCode string `json:"teaching_type_code"`
	TeachingType     string `json:"teaching_type"`
	Grade            string `json:"grade"`
	Section          string `json:"section"`
	Shift            string `json:"shift"`
	Room             string `json:"room,omitempty"`
}

// StudentProfile is the subset of the registry's student record the service exposes.
type StudentProfile struct {
	RA          RA     `json:"ra"`
	Name        string `json:"name"`
	SocialName  string `json:"social_name,omitempty"`
	BirthDate   string `json:"birth_date,omitempty"`
	Gender      string `json:"gender,omitempty"`
	MotherName  string `json:"mother_name,omitempty"`
	FatherName  string `json:"father_name,omitempty"`
	Nationality string `json:"nationality,omitempty"`
	Email       string `json:"email,omitempty"`
}
