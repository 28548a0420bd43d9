package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"smartattend/internal/auth"
	"smartattend/internal/codes"
	"smartattend/internal/report"
	"smartattend/internal/roster"
	"smartattend/internal/store"
)

func (h *Handler) listStudents(c *gin.Context) {
	students, err := h.students.List(c.Request.Context(), auth.CurrentIdentity(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"students": students})
}

func (h *Handler) addStudent(c *gin.Context) {
	var req struct {
		StudentID string `json:"student_id" binding:"required"`
		Name      string `json:"name" binding:"required"`
		Course    string `json:"course"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	student, err := h.students.Add(c.Request.Context(), auth.CurrentIdentity(c), req.StudentID, req.Name, req.Course)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, roster.ErrDuplicate) {
			status = http.StatusConflict
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"student": student})
}

func (h *Handler) importStudentsCSV(c *gin.Context) {
	h.importStudents(c, false)
}

func (h *Handler) importStudentsExcel(c *gin.Context) {
	h.importStudents(c, true)
}

func (h *Handler) importStudents(c *gin.Context, excel bool) {
	file, _, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file field required"})
		return
	}
	defer file.Close()

	actor := auth.CurrentIdentity(c)
	var inserted, skipped int
	if excel {
		inserted, skipped, err = h.students.ImportExcel(c.Request.Context(), actor, file)
	} else {
		inserted, skipped, err = h.students.ImportCSV(c.Request.Context(), actor, file)
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"inserted": inserted, "skipped": skipped})
}

func (h *Handler) exportStudents(c *gin.Context) {
	students, err := h.students.List(c.Request.Context(), auth.CurrentIdentity(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if c.DefaultQuery("format", "csv") == "xlsx" {
		c.Header("Content-Disposition", `attachment; filename="students.xlsx"`)
		c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		if err := report.RosterXLSX(c.Writer, students); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}
	c.Header("Content-Disposition", `attachment; filename="students.csv"`)
	c.Header("Content-Type", "text/csv")
	if err := report.RosterCSV(c.Writer, students); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func (h *Handler) studentCodesZip(c *gin.Context) {
	paths, err := h.students.CodePaths(c.Request.Context(), auth.CurrentIdentity(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Header("Content-Disposition", `attachment; filename="student_codes.zip"`)
	c.Header("Content-Type", "application/zip")
	if err := codes.WriteZip(c.Writer, paths); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func (h *Handler) studentQR(c *gin.Context) {
	h.serveStudentImage(c, func(s *roster.Student) string { return s.QRPath })
}

func (h *Handler) studentBarcode(c *gin.Context) {
	h.serveStudentImage(c, func(s *roster.Student) string { return s.BarcodePath })
}

func (h *Handler) serveStudentImage(c *gin.Context, path func(*roster.Student) string) {
	student, err := h.students.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "student not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	actor := auth.CurrentIdentity(c)
	if !actor.IsAdmin() && student.CreatedBy != actor.Username {
		c.JSON(http.StatusForbidden, gin.H{"error": "not your student"})
		return
	}
	p := path(student)
	if p == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "image not generated"})
		return
	}
	c.File(p)
}
