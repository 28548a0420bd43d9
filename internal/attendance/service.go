// Package attendance records and queries attendance marks. One record
// exists per student per day; every record carries the owner it is
// isolated under.
package attendance

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"smartattend/internal/auth"
	"smartattend/internal/roster"
	"smartattend/internal/store"
)

// Marking methods.
const (
	MethodCameraScan    = "camera_scan"
	MethodScannerDevice = "scanner_device"
	MethodManualEntry   = "manual_entry"
	MethodManualEdit    = "manual_edit"
	MethodBulkEntry     = "bulk_entry"
	MethodSessionLink   = "session_link"
	MethodPersonalLink  = "personal_link"
)

const (
	StatusPresent = 1
	StatusAbsent  = 0
)

var (
	// ErrAlreadyMarked reports a duplicate mark for a student and date.
	ErrAlreadyMarked = errors.New("attendance already recorded for this date")
	// ErrUnknownStudent reports a mark for a student not in the roster.
	ErrUnknownStudent = errors.New("student not found")
	// ErrForbidden reports an edit on a record the caller does not own.
	ErrForbidden = errors.New("no permission to edit this record")
)

var markedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "attendance_marked_total",
	Help: "Attendance records created, by marking method.",
}, []string{"method"})

// Record is one attendance mark.
type Record struct {
	StudentID    string     `bson:"student_id" json:"student_id"`
	Date         string     `bson:"date" json:"date"`
	Time         string     `bson:"time" json:"time"`
	Status       int        `bson:"status" json:"status"`
	Course       string     `bson:"course" json:"course"`
	Method       string     `bson:"method" json:"method"`
	TS           time.Time  `bson:"ts" json:"ts"`
	CreatedBy    string     `bson:"created_by" json:"created_by"`
	LastModified *time.Time `bson:"last_modified,omitempty" json:"last_modified,omitempty"`
	ModifiedBy   string     `bson:"modified_by,omitempty" json:"modified_by,omitempty"`
}

type Service struct {
	records  store.Collection
	students *roster.Service
}

func NewService(records store.Collection, students *roster.Service) *Service {
	return &Service{records: records, students: students}
}

// Mark records attendance for a student. ownerOverride attributes the
// record to someone other than the actor; public link flows use it so
// link-collected marks land in the link creator's data slice.
func (s *Service) Mark(ctx context.Context, actor *auth.Identity, ownerOverride, studentID string, status int, when time.Time, course, method string) (*Record, error) {
	if when.IsZero() {
		when = time.Now()
	}
	date := when.Format("2006-01-02")

	var existing Record
	err := s.records.FindOne(ctx, store.Filter{"student_id": studentID, "date": date}, &existing)
	if err == nil {
		return nil, ErrAlreadyMarked
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	createdBy := ownerOverride
	if createdBy == "" && actor != nil {
		createdBy = actor.Username
	}
	if createdBy == "" {
		createdBy = "anonymous"
	}

	rec := Record{
		StudentID: studentID,
		Date:      date,
		Time:      when.Format("15:04:05"),
		Status:    status,
		Course:    course,
		Method:    method,
		TS:        when.UTC(),
		CreatedBy: createdBy,
	}
	if err := s.records.InsertOne(ctx, rec); err != nil {
		return nil, err
	}
	markedTotal.WithLabelValues(method).Inc()
	return &rec, nil
}

// MarkScanned resolves a scanned code payload (the student ID) and marks
// the student present for the chosen date.
func (s *Service) MarkScanned(ctx context.Context, actor *auth.Identity, code string, when time.Time, method string) (*Record, *roster.Student, error) {
	student, err := s.students.Get(ctx, code)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil, ErrUnknownStudent
		}
		return nil, nil, err
	}
	rec, err := s.Mark(ctx, actor, "", student.StudentID, StatusPresent, when, student.Course, method)
	if err != nil {
		return nil, student, err
	}
	return rec, student, nil
}

// BulkEntry is one student's status in a bulk submission.
type BulkEntry struct {
	StudentID string `json:"student_id"`
	Course    string `json:"course"`
	Status    int    `json:"status"`
}

// BulkResult summarizes a bulk submission.
type BulkResult struct {
	Marked  int `json:"marked"`
	Already int `json:"already"`
	Errors  int `json:"errors"`
}

// Bulk marks a list of students for one date.
func (s *Service) Bulk(ctx context.Context, actor *auth.Identity, when time.Time, entries []BulkEntry) BulkResult {
	var res BulkResult
	for _, e := range entries {
		_, err := s.Mark(ctx, actor, "", e.StudentID, e.Status, when, e.Course, MethodBulkEntry)
		switch {
		case err == nil:
			res.Marked++
		case errors.Is(err, ErrAlreadyMarked):
			res.Already++
		default:
			res.Errors++
		}
	}
	return res
}

// Query filters attendance listings.
type Query struct {
	Start   string // inclusive, YYYY-MM-DD
	End     string // inclusive, YYYY-MM-DD
	Date    string // exact date
	Student string
	Course  string
}

// List returns the caller's records matching the query, newest first.
func (s *Service) List(ctx context.Context, actor *auth.Identity, q Query) ([]Record, error) {
	filter := store.Filter{}
	switch {
	case q.Date != "":
		filter["date"] = q.Date
	case q.Start != "" && q.End != "":
		filter["date"] = store.Filter{"$gte": q.Start, "$lte": q.End}
	case q.Start != "":
		filter["date"] = store.Filter{"$gte": q.Start}
	case q.End != "":
		filter["date"] = store.Filter{"$lte": q.End}
	}
	if q.Student != "" {
		filter["student_id"] = q.Student
	}
	if q.Course != "" && q.Course != "All" {
		filter["course"] = q.Course
	}

	var records []Record
	if err := s.records.Find(ctx, auth.Scoped(actor, filter), &records); err != nil {
		return nil, err
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].Date != records[j].Date {
			return records[i].Date > records[j].Date
		}
		return records[i].StudentID < records[j].StudentID
	})
	return records, nil
}

// UpdateStatus edits the status of an existing record. Non-admins may
// only touch records they own.
func (s *Service) UpdateStatus(ctx context.Context, actor *auth.Identity, studentID, date string, status int) error {
	var rec Record
	if err := s.records.FindOne(ctx, store.Filter{"student_id": studentID, "date": date}, &rec); err != nil {
		return err
	}
	if !actor.IsAdmin() && rec.CreatedBy != actor.Username {
		return ErrForbidden
	}
	return s.records.UpdateOne(ctx, store.Filter{"student_id": studentID, "date": date}, store.Update{"$set": map[string]any{
		"status":        status,
		"last_modified": time.Now().UTC(),
		"modified_by":   actor.Username,
	}}, false)
}

// Stats summarizes a record set.
type Stats struct {
	Present int     `json:"present"`
	Absent  int     `json:"absent"`
	Total   int     `json:"total"`
	Rate    float64 `json:"rate"`
}

func Summarize(records []Record) Stats {
	var st Stats
	for _, r := range records {
		st.Total++
		if r.Status == StatusPresent {
			st.Present++
		} else {
			st.Absent++
		}
	}
	if st.Total > 0 {
		st.Rate = float64(st.Present) / float64(st.Total) * 100
	}
	return st
}

// Count returns the caller's record count, optionally for one date.
func (s *Service) Count(ctx context.Context, actor *auth.Identity, date string) (int64, error) {
	filter := store.Filter{}
	if date != "" {
		filter["date"] = date
	}
	return s.records.CountDocuments(ctx, auth.Scoped(actor, filter))
}

// Pivot is the student-by-date matrix the dashboard renders.
type Pivot struct {
	Dates []string   `json:"dates"`
	Rows  []PivotRow `json:"rows"`
}

type PivotRow struct {
	StudentID string         `json:"student_id"`
	Name      string         `json:"name"`
	Course    string         `json:"course"`
	Days      map[string]int `json:"days"`
}

// BuildPivot crosses the caller's roster with their attendance over a
// date range. Days without a mark read as absent.
func (s *Service) BuildPivot(ctx context.Context, actor *auth.Identity, start, end time.Time, course string) (*Pivot, error) {
	students, err := s.students.List(ctx, actor)
	if err != nil {
		return nil, err
	}

	var dates []string
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d.Format("2006-01-02"))
	}

	records, err := s.List(ctx, actor, Query{
		Start:  start.Format("2006-01-02"),
		End:    end.Format("2006-01-02"),
		Course: course,
	})
	if err != nil {
		return nil, err
	}
	byStudent := map[string]map[string]int{}
	for _, r := range records {
		if byStudent[r.StudentID] == nil {
			byStudent[r.StudentID] = map[string]int{}
		}
		if r.Status > byStudent[r.StudentID][r.Date] {
			byStudent[r.StudentID][r.Date] = r.Status
		}
	}

	pivot := &Pivot{Dates: dates}
	for _, st := range students {
		if course != "" && course != "All" && st.Course != course {
			continue
		}
		row := PivotRow{StudentID: st.StudentID, Name: st.Name, Course: st.Course, Days: map[string]int{}}
		for _, d := range dates {
			row.Days[d] = byStudent[st.StudentID][d]
		}
		pivot.Rows = append(pivot.Rows, row)
	}
	sort.Slice(pivot.Rows, func(i, j int) bool {
		if pivot.Rows[i].Course != pivot.Rows[j].Course {
			return pivot.Rows[i].Course < pivot.Rows[j].Course
		}
		return pivot.Rows[i].StudentID < pivot.Rows[j].StudentID
	})
	return pivot, nil
}
