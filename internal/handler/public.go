package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"smartattend/internal/attendance"
	"smartattend/internal/links"
)

// Public link endpoints. No login: possession of the token is the
// credential, and marks are attributed to the link creator.

func linkStatus(err error) int {
	switch {
	case errors.Is(err, links.ErrLinkInvalid):
		return http.StatusNotFound
	case errors.Is(err, links.ErrLinkInactive), errors.Is(err, links.ErrLinkExhausted):
		return http.StatusGone
	case errors.Is(err, attendance.ErrUnknownStudent):
		return http.StatusNotFound
	case errors.Is(err, attendance.ErrAlreadyMarked):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) sessionInfo(c *gin.Context) {
	link, err := h.links.ResolveSession(c.Request.Context(), c.Param("token"))
	if err != nil {
		c.JSON(linkStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"description": link.Description,
		"course":      link.Course,
		"expires_at":  link.ExpiresAt,
	})
}

func (h *Handler) sessionMark(c *gin.Context) {
	var req struct {
		StudentID string `json:"student_id" binding:"required"`
		Name      string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rec, nameMismatch, err := h.links.MarkViaSession(c.Request.Context(), c.Param("token"), req.StudentID, req.Name)
	if err != nil {
		c.JSON(linkStatus(err), gin.H{"error": err.Error()})
		return
	}
	resp := gin.H{"record": rec}
	if nameMismatch {
		resp["warning"] = "name doesn't match our records, attendance was still marked"
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *Handler) studentLinkInfo(c *gin.Context) {
	link, student, err := h.links.ResolveStudentLink(c.Request.Context(), c.Param("token"))
	if err != nil {
		c.JSON(linkStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"student":    student.Name,
		"expires_at": link.ExpiresAt,
		"uses":       link.Uses,
		"max_uses":   link.MaxUses,
	})
}

func (h *Handler) studentLinkMark(c *gin.Context) {
	rec, err := h.links.MarkViaStudentLink(c.Request.Context(), c.Param("token"))
	if err != nil {
		c.JSON(linkStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"record": rec})
}
