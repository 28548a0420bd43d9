// Package roster manages the student register: creation with code
// generation, CSV/Excel import and owner-scoped listing.
package roster

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/xuri/excelize/v2"

	"smartattend/internal/auth"
	"smartattend/internal/codes"
	"smartattend/internal/store"
)

// ErrDuplicate reports that a student ID is already registered.
var ErrDuplicate = errors.New("student ID already exists")

// Student is one roster entry. Every record carries its owner.
type Student struct {
	StudentID   string `bson:"student_id" json:"student_id"`
	Name        string `bson:"name" json:"name"`
	Course      string `bson:"course" json:"course"`
	QRPath      string `bson:"qr_path" json:"qr_path"`
	BarcodePath string `bson:"barcode_path" json:"barcode_path"`
	CreatedBy   string `bson:"created_by" json:"created_by"`
}

type Service struct {
	students store.Collection
	codes    *codes.Generator
}

func NewService(students store.Collection, gen *codes.Generator) *Service {
	return &Service{students: students, codes: gen}
}

// Add registers a student and renders their QR and barcode images.
func (s *Service) Add(ctx context.Context, actor *auth.Identity, studentID, name, course string) (*Student, error) {
	studentID = strings.TrimSpace(studentID)
	name = strings.TrimSpace(name)
	if studentID == "" || name == "" {
		return nil, errors.New("student ID and name are required")
	}
	var existing Student
	if err := s.students.FindOne(ctx, store.Filter{"student_id": studentID}, &existing); err == nil {
		return nil, ErrDuplicate
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	qrPath, err := s.codes.QR(studentID)
	if err != nil {
		return nil, err
	}
	barcodePath, err := s.codes.Barcode(studentID)
	if err != nil {
		return nil, err
	}

	student := Student{
		StudentID:   studentID,
		Name:        name,
		Course:      strings.TrimSpace(course),
		QRPath:      qrPath,
		BarcodePath: barcodePath,
		CreatedBy:   actor.Username,
	}
	if err := s.students.InsertOne(ctx, student); err != nil {
		return nil, err
	}
	return &student, nil
}

// List returns the caller's students.
func (s *Service) List(ctx context.Context, actor *auth.Identity) ([]Student, error) {
	var students []Student
	if err := s.students.Find(ctx, auth.Scope(actor), &students); err != nil {
		return nil, err
	}
	return students, nil
}

// Get looks a student up by ID regardless of owner: public link and scan
// flows need to resolve codes for students they do not own.
func (s *Service) Get(ctx context.Context, studentID string) (*Student, error) {
	var student Student
	if err := s.students.FindOne(ctx, store.Filter{"student_id": studentID}, &student); err != nil {
		return nil, err
	}
	return &student, nil
}

// Count returns the caller's student count.
func (s *Service) Count(ctx context.Context, actor *auth.Identity) (int64, error) {
	return s.students.CountDocuments(ctx, auth.Scope(actor))
}

// ImportCSV ingests rows of student_id,name,course (header required).
// Duplicates and incomplete rows are skipped.
func (s *Service) ImportCSV(ctx context.Context, actor *auth.Identity, r io.Reader) (inserted, skipped int, err error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	header, err := reader.Read()
	if err != nil {
		return 0, 0, fmt.Errorf("read csv header: %w", err)
	}
	idx := columnIndex(header)
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return inserted, skipped, fmt.Errorf("read csv row: %w", err)
		}
		ins, skip := s.importRow(ctx, actor, field(row, idx["student_id"]), field(row, idx["name"]), field(row, idx["course"]))
		inserted += ins
		skipped += skip
	}
	return inserted, skipped, nil
}

// ImportExcel ingests the first sheet of an xlsx file: column A student
// ID, column B name, column C course, header row skipped.
func (s *Service) ImportExcel(ctx context.Context, actor *auth.Identity, r io.Reader) (inserted, skipped int, err error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return 0, 0, fmt.Errorf("open excel file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			log.Printf("close excel file: %v", cerr)
		}
	}()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return 0, 0, errors.New("excel file does not contain any sheets")
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return 0, 0, fmt.Errorf("read sheet %s: %w", sheet, err)
	}
	for i, row := range rows {
		if i == 0 {
			continue
		}
		ins, skip := s.importRow(ctx, actor, field(row, 0), field(row, 1), field(row, 2))
		inserted += ins
		skipped += skip
	}
	return inserted, skipped, nil
}

func (s *Service) importRow(ctx context.Context, actor *auth.Identity, id, name, course string) (inserted, skipped int) {
	if strings.TrimSpace(id) == "" || strings.TrimSpace(name) == "" {
		return 0, 0
	}
	_, err := s.Add(ctx, actor, id, name, course)
	switch {
	case err == nil:
		return 1, 0
	case errors.Is(err, ErrDuplicate):
		return 0, 1
	default:
		log.Printf("import %s failed: %v", id, err)
		return 0, 0
	}
}

// CodePaths collects the QR and barcode image paths of the caller's
// students, for ZIP bundling.
func (s *Service) CodePaths(ctx context.Context, actor *auth.Identity) ([]string, error) {
	students, err := s.List(ctx, actor)
	if err != nil {
		return nil, err
	}
	paths := make([]string, 0, len(students)*2)
	for _, st := range students {
		if st.QRPath != "" {
			paths = append(paths, st.QRPath)
		}
		if st.BarcodePath != "" {
			paths = append(paths, st.BarcodePath)
		}
	}
	return paths, nil
}

func columnIndex(header []string) map[string]int {
	idx := map[string]int{"student_id": -1, "name": -1, "course": -1}
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	return idx
}

func field(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}
