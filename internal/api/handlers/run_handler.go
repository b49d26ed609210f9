package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/archstudio/intake/internal/services"
)

type RunHandler struct {
	runs services.RunService
}

func NewRunHandler(runs services.RunService) *RunHandler {
	return &RunHandler{runs: runs}
}

func (h *RunHandler) Get(c *gin.Context) {
	if _, ok := requireUserID(c); !ok {
		return
	}
	run, err := h.runs.Get(c.Request.Context(), c.Param("run_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, run)
}

// Cancel requests cancellation. The run stops at its next checkpoint.
func (h *RunHandler) Cancel(c *gin.Context) {
	if _, ok := requireUserID(c); !ok {
		return
	}
	runID := c.Param("run_id")
	if err := h.runs.Cancel(c.Request.Context(), runID); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"run_id": runID, "status": "cancelling"})
}
