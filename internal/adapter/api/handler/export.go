package handler

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/V4T54L/classroll/internal/domain"
)

// exportColumn describes one CSV column of the attendance export.
type exportColumn struct {
	Header string
	Value  func(v domain.AttendanceView, s domain.StudentAttendance) string
}

var attendanceColumns = []exportColumn{
	{Header: "date", Value: func(v domain.AttendanceView, _ domain.StudentAttendance) string { return v.Date }},
	{Header: "school", Value: func(v domain.AttendanceView, _ domain.StudentAttendance) string { return v.Class.School }},
	{Header: "class_code", Value: func(v domain.AttendanceView, _ domain.StudentAttendance) string { return v.Class.Code }},
	{Header: "class_name", Value: func(v domain.AttendanceView, _ domain.StudentAttendance) string { return v.Class.Name }},
	{Header: "number", Value: func(_ domain.AttendanceView, s domain.StudentAttendance) string { return strconv.Itoa(s.Number) }},
	{Header: "ra", Value: func(_ domain.AttendanceView, s domain.StudentAttendance) string { return s.RA }},
	{Header: "name", Value: func(_ domain.AttendanceView, s domain.StudentAttendance) string { return s.Name }},
	{Header: "status", Value: func(_ domain.AttendanceView, s domain.StudentAttendance) string {
		if s.Status == nil {
			return ""
		}
		return string(*s.Status)
	}},
	{Header: "note", Value: func(_ domain.AttendanceView, s domain.StudentAttendance) string {
		if s.Note == nil {
			return ""
		}
		return *s.Note
	}},
}

func writeAttendanceCSV(w io.Writer, view domain.AttendanceView) error {
	cw := csv.NewWriter(w)
	header := make([]string, len(attendanceColumns))
	for i, col := range attendanceColumns {
		header[i] = col.Header
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	row := make([]string, len(attendanceColumns))
	for _, s := range view.Students {
		for i, col := range attendanceColumns {
			row[i] = col.Value(view, s)
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func exportFilename(view domain.AttendanceView) string {
	return "attendance-" + view.Class.Code + "-" + view.Date + ".csv"
}
