// Package handler wires the HTTP surface: JSON endpoints for the
// authenticated teacher/admin areas plus the public link flows.
package handler

import (
	"github.com/gin-gonic/gin"

	"smartattend/internal/attendance"
	"smartattend/internal/auth"
	"smartattend/internal/config"
	"smartattend/internal/links"
	"smartattend/internal/roster"
	"smartattend/internal/store"
)

type Handler struct {
	cfg      config.App
	store    *store.Store
	users    *auth.Manager
	reauth   *auth.Reauth
	students *roster.Service
	marks    *attendance.Service
	links    *links.Service
}

func New(cfg config.App, st *store.Store, users *auth.Manager, reauth *auth.Reauth,
	students *roster.Service, marks *attendance.Service, linkSvc *links.Service) *Handler {
	return &Handler{
		cfg:      cfg,
		store:    st,
		users:    users,
		reauth:   reauth,
		students: students,
		marks:    marks,
		links:    linkSvc,
	}
}

// Register mounts all routes on the engine.
func (h *Handler) Register(r *gin.Engine) {
	// Public link flows, no login.
	pub := r.Group("/a")
	pub.GET("/session/:token", h.sessionInfo)
	pub.POST("/session/:token", h.sessionMark)
	pub.GET("/link/:token", h.studentLinkInfo)
	pub.POST("/link/:token", h.studentLinkMark)

	api := r.Group("/api")
	api.POST("/signup", h.signup)
	api.POST("/login", h.login)
	api.POST("/password-reset/request", h.passwordResetRequest)
	api.POST("/password-reset/confirm", h.passwordResetConfirm)

	authed := api.Group("", auth.RequireLogin(h.users))
	authed.POST("/logout", h.logout)
	authed.GET("/me", h.me)
	authed.POST("/reauth/:area", h.unlockArea)

	authed.GET("/dashboard", h.dashboard)

	students := authed.Group("/students")
	students.GET("", h.listStudents)
	students.POST("", h.addStudent)
	students.POST("/import", h.importStudentsCSV)
	students.POST("/import-excel", h.importStudentsExcel)
	students.GET("/export", h.exportStudents)
	students.GET("/codes.zip", h.studentCodesZip)
	students.GET("/:id/qr", h.studentQR)
	students.GET("/:id/barcode", h.studentBarcode)

	att := authed.Group("/attendance")
	att.POST("/scan", h.scan)
	att.GET("", h.listRecords)
	att.GET("/export", h.exportRecords)
	att.GET("/pivot", h.pivot)

	manual := att.Group("", h.reauth.RequireUnlock(auth.AreaManual))
	manual.POST("", h.manualEntry)
	manual.PUT("", h.editRecord)

	att.POST("/bulk", h.reauth.RequireUnlock(auth.AreaBulk), h.bulkEntry)

	linkArea := authed.Group("/links", h.reauth.RequireUnlock(auth.AreaLinks))
	linkArea.GET("", h.listLinks)
	linkArea.POST("/sessions", h.createSessionLink)
	linkArea.POST("/students", h.createStudentLink)

	settings := authed.Group("/settings", h.reauth.RequireUnlock(auth.AreaSettings))
	settings.GET("", h.settingsInfo)
	settings.POST("/password", h.changePassword)

	teachers := authed.Group("/teachers", auth.RequireAdmin(), h.reauth.RequireUnlock(auth.AreaTeachers))
	teachers.GET("", h.listUsers)
	teachers.POST("", h.createTeacher)
	teachers.POST("/:username/unlock", h.unlockUser)
	teachers.PUT("/:username/role", h.setUserRole)
	teachers.PUT("/:username/status", h.setUserStatus)
	teachers.DELETE("/:username", h.deleteUser)
}
