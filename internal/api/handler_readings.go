package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"production-output-backend/internal/dashboard"
	"production-output-backend/internal/deviation"
	"production-output-backend/internal/reading"
)

// PostReading handles POST /api/readings. Deviation in the body is ignored.
func (h *Handler) PostReading(c *gin.Context) {
	var in reading.Input
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rec, err := h.recorder.Submit(c.Request.Context(), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, dashboard.Row{
		OutputReading: rec,
		Tolerance:     deviation.Classify(rec.DeviationPct, h.recorder.Band()),
	})
}

// GetReadings handles GET /api/readings with the dashboard filter.
func (h *Handler) GetReadings(c *gin.Context) {
	f, err := h.filterFromQuery(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	rows, err := h.dashboard.Readings(c.Request.Context(), f)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}
