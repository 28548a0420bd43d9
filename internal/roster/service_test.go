package roster

import (
	"bytes"
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"smartattend/internal/auth"
	"smartattend/internal/codes"
	"smartattend/internal/store"
)

var (
	alice = &auth.Identity{Username: "alice", Role: auth.RoleTeacher}
	bob   = &auth.Identity{Username: "bob", Role: auth.RoleTeacher}
	boss  = &auth.Identity{Username: "boss", Role: auth.RoleAdmin}
)

func testService(t *testing.T) *Service {
	t.Helper()
	st, err := store.OpenJSON(t.TempDir())
	if err != nil {
		t.Fatalf("OpenJSON: %v", err)
	}
	gen, err := codes.NewGenerator(t.TempDir())
	if err != nil {
		t.Fatalf("NewGenerator: %v", err)
	}
	return NewService(st.Students, gen)
}

func TestAdd(t *testing.T) {
	s := testService(t)
	ctx := context.Background()

	student, err := s.Add(ctx, alice, " STU001 ", " Ann ", "CS101")
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if student.StudentID != "STU001" || student.Name != "Ann" {
		t.Errorf("student = %+v, want trimmed fields", student)
	}
	if student.CreatedBy != "alice" {
		t.Errorf("created_by = %q, want alice", student.CreatedBy)
	}
	for _, path := range []string{student.QRPath, student.BarcodePath} {
		if _, err := os.Stat(path); err != nil {
			t.Errorf("code image missing: %v", err)
		}
	}

	if _, err := s.Add(ctx, alice, "", "Noid", ""); err == nil {
		t.Error("empty student ID accepted")
	}
	if _, err := s.Add(ctx, alice, "STU002", "", ""); err == nil {
		t.Error("empty name accepted")
	}
}

func TestAddDuplicate(t *testing.T) {
	s := testService(t)
	ctx := context.Background()

	if _, err := s.Add(ctx, alice, "STU001", "Ann", ""); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if _, err := s.Add(ctx, alice, "STU001", "Other", ""); !errors.Is(err, ErrDuplicate) {
		t.Errorf("duplicate Add = %v, want ErrDuplicate", err)
	}
	// IDs are unique across owners too.
	if _, err := s.Add(ctx, bob, "STU001", "Other", ""); !errors.Is(err, ErrDuplicate) {
		t.Errorf("cross-owner duplicate Add = %v, want ErrDuplicate", err)
	}
}

func TestListScoping(t *testing.T) {
	s := testService(t)
	ctx := context.Background()

	if _, err := s.Add(ctx, alice, "STU001", "Ann", ""); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if _, err := s.Add(ctx, bob, "STU002", "Ben", ""); err != nil {
		t.Fatalf("Add: %v", err)
	}

	got, err := s.List(ctx, alice)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 1 || got[0].StudentID != "STU001" {
		t.Errorf("alice sees %v", got)
	}

	got, err = s.List(ctx, boss)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("admin sees %d students, want 2", len(got))
	}

	n, err := s.Count(ctx, bob)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 1 {
		t.Errorf("bob count = %d, want 1", n)
	}

	// Get resolves regardless of owner.
	student, err := s.Get(ctx, "STU002")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if student.CreatedBy != "bob" {
		t.Errorf("Get created_by = %q", student.CreatedBy)
	}
}

func TestImportCSV(t *testing.T) {
	s := testService(t)
	ctx := context.Background()

	if _, err := s.Add(ctx, alice, "STU002", "Existing", ""); err != nil {
		t.Fatalf("Add: %v", err)
	}

	input := strings.Join([]string{
		"student_id,name,course",
		"STU001,Ann,CS101",
		"STU002,Duplicate,CS101",
		",Anon,CS101",
		"STU003,Carl",
	}, "\n")

	inserted, skipped, err := s.ImportCSV(ctx, alice, strings.NewReader(input))
	if err != nil {
		t.Fatalf("ImportCSV: %v", err)
	}
	if inserted != 2 {
		t.Errorf("inserted = %d, want 2", inserted)
	}
	if skipped != 1 {
		t.Errorf("skipped = %d, want 1", skipped)
	}

	students, err := s.List(ctx, alice)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(students) != 3 {
		t.Errorf("roster size = %d, want 3", len(students))
	}
}

func TestImportCSVColumnOrder(t *testing.T) {
	s := testService(t)
	ctx := context.Background()

	input := "Name,Course,Student_ID\nAnn,CS101,STU001\n"
	inserted, _, err := s.ImportCSV(ctx, alice, strings.NewReader(input))
	if err != nil {
		t.Fatalf("ImportCSV: %v", err)
	}
	if inserted != 1 {
		t.Fatalf("inserted = %d, want 1", inserted)
	}
	student, err := s.Get(ctx, "STU001")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if student.Name != "Ann" || student.Course != "CS101" {
		t.Errorf("student = %+v", student)
	}
}

func TestImportExcel(t *testing.T) {
	s := testService(t)
	ctx := context.Background()

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	rows := [][]any{
		{"Student ID", "Name", "Course"},
		{"STU001", "Ann", "CS101"},
		{"STU002", "Ben", ""},
		{"", "Anon", "CS101"},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatalf("cell name: %v", err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			t.Fatalf("SetSheetRow: %v", err)
		}
	}
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatalf("write xlsx: %v", err)
	}

	inserted, skipped, err := s.ImportExcel(ctx, alice, &buf)
	if err != nil {
		t.Fatalf("ImportExcel: %v", err)
	}
	if inserted != 2 || skipped != 0 {
		t.Errorf("inserted, skipped = %d, %d, want 2, 0", inserted, skipped)
	}
}

func TestCodePaths(t *testing.T) {
	s := testService(t)
	ctx := context.Background()

	if _, err := s.Add(ctx, alice, "STU001", "Ann", ""); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if _, err := s.Add(ctx, bob, "STU002", "Ben", ""); err != nil {
		t.Fatalf("Add: %v", err)
	}

	paths, err := s.CodePaths(ctx, alice)
	if err != nil {
		t.Fatalf("CodePaths: %v", err)
	}
	if len(paths) != 2 {
		t.Errorf("paths = %v, want qr and barcode for STU001 only", paths)
	}
}
