package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/archstudio/intake/internal/checklist"
	"github.com/archstudio/intake/internal/services"
	"github.com/archstudio/intake/internal/utils"
)

type ChecklistHandler struct {
	svc services.ChecklistService
}

func NewChecklistHandler(svc services.ChecklistService) *ChecklistHandler {
	return &ChecklistHandler{svc: svc}
}

// Get returns the stage checklist, seeding it from the template on first use.
func (h *ChecklistHandler) Get(c *gin.Context) {
	if _, ok := requireUserID(c); !ok {
		return
	}
	items, err := h.svc.Ensure(c.Request.Context(), c.Param("project_id"), c.Param("stage"), c.Query("project_type"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

type editItemReq struct {
	Checked *bool   `json:"checked"`
	Notes   *string `json:"notes"`
}

func (h *ChecklistHandler) EditItem(c *gin.Context) {
	if _, ok := requireUserID(c); !ok {
		return
	}
	var req editItemReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "ChecklistHandler.EditItem", "invalid json body", err))
		return
	}
	items, err := h.svc.EditItem(c.Request.Context(), c.Param("project_id"), c.Param("stage"), checklist.Edit{
		ID:      c.Param("item_id"),
		Checked: req.Checked,
		Notes:   req.Notes,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}
