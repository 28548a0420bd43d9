package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"smartattend/internal/auth"
)

// Admin-only teacher management.

func (h *Handler) listUsers(c *gin.Context) {
	users, err := h.users.ListUsers(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	type userView struct {
		Username       string `json:"username"`
		Name           string `json:"name"`
		Email          string `json:"email"`
		Role           string `json:"role"`
		Status         string `json:"status"`
		FailedAttempts int    `json:"failed_attempts"`
		IsLocked       bool   `json:"is_locked"`
	}
	out := make([]userView, 0, len(users))
	for _, u := range users {
		out = append(out, userView{
			Username:       u.Username,
			Name:           u.Name,
			Email:          u.Email,
			Role:           u.Role,
			Status:         u.Status,
			FailedAttempts: u.FailedAttempts,
			IsLocked:       u.IsLocked,
		})
	}
	c.JSON(http.StatusOK, gin.H{"users": out})
}

func (h *Handler) createTeacher(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Name     string `json:"name"`
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
		Role     string `json:"role"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	role := req.Role
	if role == "" {
		role = auth.RoleTeacher
	}
	if err := h.users.CreateUser(c.Request.Context(), req.Username, req.Password, req.Email, req.Name, role); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "teacher created", "username": req.Username, "role": role})
}

func (h *Handler) unlockUser(c *gin.Context) {
	if err := h.users.UnlockAccount(c.Request.Context(), c.Param("username")); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "account unlocked"})
}

func (h *Handler) setUserRole(c *gin.Context) {
	var req struct {
		Role string `json:"role" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.users.SetRole(c.Request.Context(), c.Param("username"), req.Role); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "role updated"})
}

func (h *Handler) setUserStatus(c *gin.Context) {
	var req struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.users.SetStatus(c.Request.Context(), c.Param("username"), req.Status); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "status updated"})
}

func (h *Handler) deleteUser(c *gin.Context) {
	if err := h.users.DeleteUser(c.Request.Context(), c.Param("username")); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "user deleted"})
}
