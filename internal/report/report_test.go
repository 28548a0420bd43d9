package report

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"smartattend/internal/attendance"
	"smartattend/internal/roster"
)

var testRecords = []attendance.Record{
	{StudentID: "STU001", Date: "2026-03-02", Time: "09:00:00", Status: attendance.StatusPresent, Course: "CS101", Method: attendance.MethodCameraScan},
	{StudentID: "STU002", Date: "2026-03-02", Time: "09:05:00", Status: attendance.StatusAbsent, Course: "CS101", Method: attendance.MethodManualEntry},
}

var testNames = map[string]string{"STU001": "Ann", "STU002": "Ben"}

func TestRecordsCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := RecordsCSV(&buf, testRecords, testNames); err != nil {
		t.Fatalf("RecordsCSV: %v", err)
	}

	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(rows))
	}
	if strings.Join(rows[0], ",") != "student_id,name,date,time,status,course,method" {
		t.Errorf("header = %v", rows[0])
	}
	if rows[1][1] != "Ann" || rows[1][4] != "Present" {
		t.Errorf("row 1 = %v", rows[1])
	}
	if rows[2][4] != "Absent" {
		t.Errorf("row 2 = %v", rows[2])
	}
}

func TestRecordsXLSX(t *testing.T) {
	var buf bytes.Buffer
	if err := RecordsXLSX(&buf, testRecords, testNames); err != nil {
		t.Fatalf("RecordsXLSX: %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("open xlsx: %v", err)
	}
	defer f.Close()

	if name := f.GetSheetName(0); name != "Attendance" {
		t.Errorf("sheet = %q, want Attendance", name)
	}
	rows, err := f.GetRows("Attendance")
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(rows))
	}
	if rows[1][0] != "STU001" || rows[1][4] != "Present" {
		t.Errorf("row 1 = %v", rows[1])
	}
}

func TestRosterCSV(t *testing.T) {
	students := []roster.Student{
		{StudentID: "STU001", Name: "Ann", Course: "CS101"},
	}
	var buf bytes.Buffer
	if err := RosterCSV(&buf, students); err != nil {
		t.Fatalf("RosterCSV: %v", err)
	}
	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	if len(rows) != 2 || rows[1][0] != "STU001" {
		t.Errorf("rows = %v", rows)
	}
}

func TestPivotCSV(t *testing.T) {
	p := &attendance.Pivot{
		Dates: []string{"2026-03-01", "2026-03-02"},
		Rows: []attendance.PivotRow{
			{StudentID: "STU001", Name: "Ann", Course: "CS101", Days: map[string]int{"2026-03-02": 1}},
		},
	}
	var buf bytes.Buffer
	if err := PivotCSV(&buf, p); err != nil {
		t.Fatalf("PivotCSV: %v", err)
	}
	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	if len(rows[0]) != 5 {
		t.Errorf("header = %v", rows[0])
	}
	// Unmarked day reads 0, marked day reads 1.
	if rows[1][3] != "0" || rows[1][4] != "1" {
		t.Errorf("row = %v", rows[1])
	}
}

func TestPivotCSVEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := PivotCSV(&buf, &attendance.Pivot{}); err != nil {
		t.Fatalf("PivotCSV: %v", err)
	}
	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	if len(rows) != 1 {
		t.Errorf("rows = %v, want header only", rows)
	}
}
