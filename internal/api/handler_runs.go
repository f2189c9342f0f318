package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"production-output-backend/internal/ledger"
)

// PostRun handles POST /api/runs: a size change on a machine.
func (h *Handler) PostRun(c *gin.Context) {
	var req ledger.StartRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	run, err := h.ledger.StartRun(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, run)
}

// GetRuns handles GET /api/runs, optionally narrowed by ?machine=.
func (h *Handler) GetRuns(c *gin.Context) {
	if machine := strings.TrimSpace(c.Query("machine")); machine != "" {
		c.JSON(http.StatusOK, h.ledger.History(machine))
		return
	}
	c.JSON(http.StatusOK, h.ledger.HistoryAll())
}
