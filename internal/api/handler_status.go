package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetStatusTable handles GET /api/status. An optional ?at= (RFC 3339) evaluates
// elapsed hours at that instant instead of now.
func (h *Handler) GetStatusTable(c *gin.Context) {
	at, err := h.instantFromQuery(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, h.dashboard.StatusTable(at))
}

// GetMachineStatus handles GET /api/machines/:machine/status.
func (h *Handler) GetMachineStatus(c *gin.Context) {
	at, err := h.instantFromQuery(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, h.ledger.CurrentStatus(c.Param("machine"), at))
}
