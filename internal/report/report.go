// Package report renders attendance data as CSV and XLSX downloads.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/xuri/excelize/v2"

	"smartattend/internal/attendance"
	"smartattend/internal/roster"
)

func statusText(status int) string {
	if status == attendance.StatusPresent {
		return "Present"
	}
	return "Absent"
}

var recordHeader = []string{"student_id", "name", "date", "time", "status", "course", "method"}

func recordRow(r attendance.Record, names map[string]string) []string {
	return []string{r.StudentID, names[r.StudentID], r.Date, r.Time, statusText(r.Status), r.Course, r.Method}
}

// RecordsCSV writes attendance records as CSV. names maps student IDs to
// display names.
func RecordsCSV(w io.Writer, records []attendance.Record, names map[string]string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(recordHeader); err != nil {
		return err
	}
	for _, r := range records {
		if err := cw.Write(recordRow(r, names)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// RecordsXLSX writes attendance records as an xlsx workbook.
func RecordsXLSX(w io.Writer, records []attendance.Record, names map[string]string) error {
	rows := make([][]string, 0, len(records)+1)
	rows = append(rows, recordHeader)
	for _, r := range records {
		rows = append(rows, recordRow(r, names))
	}
	return writeXLSX(w, "Attendance", rows)
}

var rosterHeader = []string{"student_id", "name", "course"}

// RosterCSV writes the student roster as CSV.
func RosterCSV(w io.Writer, students []roster.Student) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(rosterHeader); err != nil {
		return err
	}
	for _, s := range students {
		if err := cw.Write([]string{s.StudentID, s.Name, s.Course}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// RosterXLSX writes the student roster as an xlsx workbook.
func RosterXLSX(w io.Writer, students []roster.Student) error {
	rows := make([][]string, 0, len(students)+1)
	rows = append(rows, rosterHeader)
	for _, s := range students {
		rows = append(rows, []string{s.StudentID, s.Name, s.Course})
	}
	return writeXLSX(w, "Students", rows)
}

func pivotRows(p *attendance.Pivot) [][]string {
	header := append([]string{"student_id", "name", "course"}, p.Dates...)
	rows := [][]string{header}
	for _, r := range p.Rows {
		row := []string{r.StudentID, r.Name, r.Course}
		for _, d := range p.Dates {
			row = append(row, strconv.Itoa(r.Days[d]))
		}
		rows = append(rows, row)
	}
	return rows
}

// PivotCSV writes the student-by-date matrix as CSV.
func PivotCSV(w io.Writer, p *attendance.Pivot) error {
	cw := csv.NewWriter(w)
	for _, row := range pivotRows(p) {
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// PivotXLSX writes the student-by-date matrix as an xlsx workbook.
func PivotXLSX(w io.Writer, p *attendance.Pivot) error {
	return writeXLSX(w, "Pivot", pivotRows(p))
}

func writeXLSX(w io.Writer, sheet string, rows [][]string) error {
	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return err
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		cells := make([]any, len(row))
		for j, v := range row {
			cells[j] = v
		}
		if err := f.SetSheetRow(sheet, cell, &cells); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}
	return f.Write(w)
}
