package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"smartattend/internal/auth"
)

func (h *Handler) changePassword(c *gin.Context) {
	var req struct {
		CurrentPassword string `json:"current_password" binding:"required"`
		NewPassword     string `json:"new_password" binding:"required"`
		ConfirmPassword string `json:"confirm_password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.NewPassword != req.ConfirmPassword {
		c.JSON(http.StatusBadRequest, gin.H{"error": "new passwords do not match"})
		return
	}
	id := auth.CurrentIdentity(c)
	if err := h.users.ChangePassword(c.Request.Context(), id.Username, req.CurrentPassword, req.NewPassword); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "password updated successfully"})
}

func (h *Handler) settingsInfo(c *gin.Context) {
	actor := auth.CurrentIdentity(c)
	ctx := c.Request.Context()
	studentCount, err := h.students.Count(ctx, actor)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	markCount, err := h.marks.Count(ctx, actor, "")
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"backend":            h.store.Backend,
		"students":           studentCount,
		"attendance_records": markCount,
	})
}
