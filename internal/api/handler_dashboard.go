package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetKPIs handles GET /api/dashboard/kpis.
func (h *Handler) GetKPIs(c *gin.Context) {
	f, err := h.filterFromQuery(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	at, err := h.instantFromQuery(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	kpis, err := h.dashboard.KPIs(c.Request.Context(), f, at)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, kpis)
}

// GetSizeTotals handles GET /api/dashboard/sizes.
func (h *Handler) GetSizeTotals(c *gin.Context) {
	f, err := h.filterFromQuery(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	totals, err := h.dashboard.BySize(c.Request.Context(), f)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, totals)
}

// GetSizeComparison handles GET /api/dashboard/compare?size=. The size filter
// itself is replaced by the compared size.
func (h *Handler) GetSizeComparison(c *gin.Context) {
	f, err := h.filterFromQuery(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	rows, err := h.dashboard.CompareSize(c.Request.Context(), c.Query("size"), f)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}
