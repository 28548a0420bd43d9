package handler

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"smartattend/internal/attendance"
	"smartattend/internal/auth"
)

func (h *Handler) createSessionLink(c *gin.Context) {
	var req struct {
		Description   string `json:"description" binding:"required"`
		Course        string `json:"course"`
		DurationHours int    `json:"duration_hours"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	link, err := h.links.CreateSession(c.Request.Context(), auth.CurrentIdentity(c),
		req.Description, req.Course, time.Duration(req.DurationHours)*time.Hour)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"session": link,
		"url":     fmt.Sprintf("%s/a/session/%s", h.cfg.BaseURL, link.SessionID),
	})
}

func (h *Handler) createStudentLink(c *gin.Context) {
	var req struct {
		StudentID     string `json:"student_id" binding:"required"`
		DurationHours int    `json:"duration_hours"`
		MaxUses       int    `json:"max_uses"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	link, err := h.links.CreateStudentLink(c.Request.Context(), auth.CurrentIdentity(c),
		req.StudentID, time.Duration(req.DurationHours)*time.Hour, req.MaxUses)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, attendance.ErrUnknownStudent) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"link": link,
		"url":  fmt.Sprintf("%s/a/link/%s", h.cfg.BaseURL, link.LinkID),
	})
}

func (h *Handler) listLinks(c *gin.Context) {
	actor := auth.CurrentIdentity(c)
	ctx := c.Request.Context()
	sessions, err := h.links.ActiveSessions(ctx, actor)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	studentLinks, err := h.links.ActiveStudentLinks(ctx, actor)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": sessions, "student_links": studentLinks})
}
