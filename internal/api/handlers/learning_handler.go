package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/archstudio/intake/internal/analysis"
	"github.com/archstudio/intake/internal/models"
	"github.com/archstudio/intake/internal/services"
	"github.com/archstudio/intake/internal/utils"
)

type LearningHandler struct {
	svc services.LearningService
}

func NewLearningHandler(svc services.LearningService) *LearningHandler {
	return &LearningHandler{svc: svc}
}

func (h *LearningHandler) List(c *gin.Context) {
	if _, ok := requireUserID(c); !ok {
		return
	}
	limit := analysis.MaxLearnings
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 200 {
			writeError(c, utils.E(utils.CodeInvalidArgument, "LearningHandler.List", "limit must be between 1 and 200", err))
			return
		}
		limit = n
	}
	rows, err := h.svc.Recent(c.Request.Context(), c.Query("stage"), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"learnings": rows})
}

type createLearningReq struct {
	Stage       string `json:"stage"`
	Field       string `json:"field" binding:"required"`
	Original    string `json:"original"`
	Corrected   string `json:"corrected" binding:"required"`
	Explanation string `json:"explanation"`
}

func (h *LearningHandler) Create(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	var req createLearningReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "LearningHandler.Create", "invalid json body", err))
		return
	}
	l, err := h.svc.Create(c.Request.Context(), models.Learning{
		Stage:       req.Stage,
		Field:       req.Field,
		Original:    req.Original,
		Corrected:   req.Corrected,
		Explanation: req.Explanation,
		CreatedBy:   userID,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, l)
}
