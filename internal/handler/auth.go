package handler

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"smartattend/internal/auth"
)

func (h *Handler) signup(c *gin.Context) {
	var req struct {
		Username        string `json:"username" binding:"required"`
		Email           string `json:"email" binding:"required"`
		Name            string `json:"name"`
		Password        string `json:"password" binding:"required"`
		ConfirmPassword string `json:"confirm_password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Password != req.ConfirmPassword {
		c.JSON(http.StatusBadRequest, gin.H{"error": "passwords do not match"})
		return
	}
	if err := h.users.CreateUser(c.Request.Context(), req.Username, req.Password, req.Email, req.Name, auth.RoleTeacher); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "user created successfully"})
}

func (h *Handler) login(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	id, err := h.users.Authenticate(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	if err := auth.SaveSession(c, id); err != nil {
		log.Printf("save session for %s: %v", id.Username, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "session save failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": id})
}

func (h *Handler) logout(c *gin.Context) {
	if err := auth.ClearSession(c); err != nil {
		log.Printf("clear session: %v", err)
	}
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

func (h *Handler) me(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"user": auth.CurrentIdentity(c)})
}

var unlockAreas = map[string]bool{
	auth.AreaManual:   true,
	auth.AreaBulk:     true,
	auth.AreaLinks:    true,
	auth.AreaSettings: true,
	auth.AreaTeachers: true,
}

// unlockArea performs the fresh password check guarding sensitive areas
// and hands back a short-lived unlock token for it.
func (h *Handler) unlockArea(c *gin.Context) {
	area := c.Param("area")
	if !unlockAreas[area] {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown area"})
		return
	}
	var req struct {
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	id := auth.CurrentIdentity(c)
	if _, err := h.users.Authenticate(c.Request.Context(), id.Username, req.Password); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	token, exp, err := h.reauth.Issue(id.Username, area)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "expires_at": exp.Unix()})
}

func (h *Handler) passwordResetRequest(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	token, err := h.users.GenerateResetToken(c.Request.Context(), req.Username)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	// No mail transport is configured; the token is handed back for the
	// operator to deliver out of band.
	c.JSON(http.StatusOK, gin.H{"reset_token": token})
}

func (h *Handler) passwordResetConfirm(c *gin.Context) {
	var req struct {
		Token       string `json:"token" binding:"required"`
		NewPassword string `json:"new_password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.users.ResetPassword(c.Request.Context(), req.Token, req.NewPassword); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "password reset successfully"})
}
