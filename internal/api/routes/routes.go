package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/archstudio/intake/internal/api/handlers"
	"github.com/archstudio/intake/internal/api/middleware"
)

type Deps struct {
	Auth       middleware.JWTConfig
	Recordings *handlers.RecordingHandler
	Runs       *handlers.RunHandler
	Checklists *handlers.ChecklistHandler
	Learnings  *handlers.LearningHandler
	WS         *handlers.WSHandler
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	// Protected routes (JWT)
	auth := r.Group("/")
	auth.Use(middleware.JWTAuth(d.Auth))

	stage := auth.Group("/projects/:project_id/stages/:stage")
	stage.GET("/recordings", d.Recordings.List)
	stage.POST("/recordings", d.Recordings.Upload)
	stage.POST("/recordings/:recording_id/reanalyze", d.Recordings.Reanalyze)
	stage.GET("/checklist", d.Checklists.Get)
	stage.PATCH("/checklist/items/:item_id", d.Checklists.EditItem)

	auth.GET("/runs/:run_id", d.Runs.Get)
	auth.POST("/runs/:run_id/cancel", d.Runs.Cancel)

	auth.GET("/learnings", d.Learnings.List)
	auth.POST("/learnings", middleware.RequireAdmin(), d.Learnings.Create)

	// WebSocket
	auth.GET("/ws/runs/:run_id", d.WS.RunProgress)
	auth.GET("/ws/capture/:project_id/:stage", d.WS.Capture)
}
