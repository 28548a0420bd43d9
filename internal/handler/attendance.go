package handler

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"smartattend/internal/attendance"
	"smartattend/internal/auth"
	"smartattend/internal/report"
	"smartattend/internal/store"
)

func parseDate(raw string) (time.Time, error) {
	if raw == "" {
		return time.Now(), nil
	}
	day, err := time.ParseInLocation("2006-01-02", raw, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, want YYYY-MM-DD", raw)
	}
	// Keep the wall-clock time of the marking moment on backdated entries.
	now := time.Now()
	return time.Date(day.Year(), day.Month(), day.Day(), now.Hour(), now.Minute(), now.Second(), 0, time.Local), nil
}

// scan marks a student present from a scanned QR/barcode payload.
func (h *Handler) scan(c *gin.Context) {
	var req struct {
		Code   string `json:"code" binding:"required"`
		Date   string `json:"date"`
		Method string `json:"method"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	when, err := parseDate(req.Date)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	method := attendance.MethodCameraScan
	if req.Method == "scanner" {
		method = attendance.MethodScannerDevice
	}

	rec, student, err := h.marks.MarkScanned(c.Request.Context(), auth.CurrentIdentity(c), req.Code, when, method)
	switch {
	case errors.Is(err, attendance.ErrUnknownStudent):
		c.JSON(http.StatusNotFound, gin.H{"error": "student not found in database"})
	case errors.Is(err, attendance.ErrAlreadyMarked):
		c.JSON(http.StatusConflict, gin.H{"error": "attendance already marked", "student": student.Name})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusCreated, gin.H{"record": rec, "student": student.Name})
	}
}

func (h *Handler) manualEntry(c *gin.Context) {
	var req struct {
		StudentID string `json:"student_id" binding:"required"`
		Status    *int   `json:"status" binding:"required"`
		Date      string `json:"date"`
		Course    string `json:"course"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	when, err := parseDate(req.Date)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	student, err := h.students.Get(c.Request.Context(), req.StudentID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "student not found in database"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	course := req.Course
	if course == "" {
		course = student.Course
	}
	rec, err := h.marks.Mark(c.Request.Context(), auth.CurrentIdentity(c), "", req.StudentID, *req.Status, when, course, attendance.MethodManualEntry)
	if errors.Is(err, attendance.ErrAlreadyMarked) {
		c.JSON(http.StatusConflict, gin.H{"error": "attendance already recorded", "student": student.Name})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"record": rec, "student": student.Name})
}

func (h *Handler) bulkEntry(c *gin.Context) {
	var req struct {
		Date    string                 `json:"date"`
		Entries []attendance.BulkEntry `json:"entries" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	when, err := parseDate(req.Date)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	res := h.marks.Bulk(c.Request.Context(), auth.CurrentIdentity(c), when, req.Entries)
	c.JSON(http.StatusOK, res)
}

func (h *Handler) editRecord(c *gin.Context) {
	var req struct {
		StudentID string `json:"student_id" binding:"required"`
		Date      string `json:"date" binding:"required"`
		Status    *int   `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	err := h.marks.UpdateStatus(c.Request.Context(), auth.CurrentIdentity(c), req.StudentID, req.Date, *req.Status)
	switch {
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "attendance record not found"})
	case errors.Is(err, attendance.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusOK, gin.H{"message": "attendance updated"})
	}
}

func (h *Handler) recordQuery(c *gin.Context) attendance.Query {
	return attendance.Query{
		Start:   c.Query("start"),
		End:     c.Query("end"),
		Date:    c.Query("date"),
		Student: c.Query("student"),
		Course:  c.Query("course"),
	}
}

func (h *Handler) listRecords(c *gin.Context) {
	actor := auth.CurrentIdentity(c)
	records, err := h.marks.List(c.Request.Context(), actor, h.recordQuery(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	names, err := h.studentNames(c)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	type namedRecord struct {
		attendance.Record
		Name string `json:"name"`
	}
	out := make([]namedRecord, 0, len(records))
	for _, r := range records {
		out = append(out, namedRecord{Record: r, Name: names[r.StudentID]})
	}
	c.JSON(http.StatusOK, gin.H{"records": out, "stats": attendance.Summarize(records)})
}

func (h *Handler) exportRecords(c *gin.Context) {
	actor := auth.CurrentIdentity(c)
	records, err := h.marks.List(c.Request.Context(), actor, h.recordQuery(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	names, err := h.studentNames(c)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if c.DefaultQuery("format", "csv") == "xlsx" {
		c.Header("Content-Disposition", `attachment; filename="attendance.xlsx"`)
		c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		if err := report.RecordsXLSX(c.Writer, records, names); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}
	c.Header("Content-Disposition", `attachment; filename="attendance.csv"`)
	c.Header("Content-Type", "text/csv")
	if err := report.RecordsCSV(c.Writer, records, names); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func (h *Handler) pivotRange(c *gin.Context) (time.Time, time.Time, error) {
	start := time.Now().AddDate(0, 0, -7)
	end := time.Now()
	var err error
	if raw := c.Query("start"); raw != "" {
		if start, err = time.ParseInLocation("2006-01-02", raw, time.Local); err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid start date %q", raw)
		}
	}
	if raw := c.Query("end"); raw != "" {
		if end, err = time.ParseInLocation("2006-01-02", raw, time.Local); err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid end date %q", raw)
		}
	}
	return start, end, nil
}

func (h *Handler) pivot(c *gin.Context) {
	start, end, err := h.pivotRange(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	p, err := h.marks.BuildPivot(c.Request.Context(), auth.CurrentIdentity(c), start, end, c.Query("course"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if c.Query("format") == "csv" {
		c.Header("Content-Disposition", `attachment; filename="attendance_pivot.csv"`)
		c.Header("Content-Type", "text/csv")
		if err := report.PivotCSV(c.Writer, p); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}
	if c.Query("format") == "xlsx" {
		c.Header("Content-Disposition", `attachment; filename="attendance_pivot.xlsx"`)
		c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		if err := report.PivotXLSX(c.Writer, p); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Handler) dashboard(c *gin.Context) {
	actor := auth.CurrentIdentity(c)
	ctx := c.Request.Context()
	today := time.Now().Format("2006-01-02")

	studentCount, err := h.students.Count(ctx, actor)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	todayCount, err := h.marks.Count(ctx, actor, today)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	p, err := h.marks.BuildPivot(ctx, actor, time.Now().AddDate(0, 0, -7), time.Now(), c.Query("course"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"today":       today,
		"students":    studentCount,
		"marks_today": todayCount,
		"pivot":       p,
	})
}

func (h *Handler) studentNames(c *gin.Context) (map[string]string, error) {
	students, err := h.students.List(c.Request.Context(), auth.CurrentIdentity(c))
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(students))
	for _, s := range students {
		names[s.StudentID] = s.Name
	}
	return names, nil
}
