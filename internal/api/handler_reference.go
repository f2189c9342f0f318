package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"production-output-backend/internal/parse"
)

// GetReference handles GET /api/reference.
func (h *Handler) GetReference(c *gin.Context) {
	c.JSON(http.StatusOK, h.reference.List())
}

// LookupReference handles GET /api/reference/lookup. The size may be given as
// size and pn, or as a single sizePn descriptor.
func (h *Handler) LookupReference(c *gin.Context) {
	material := c.Query("material")
	machine := c.Query("machine")
	size, pn := c.Query("size"), c.Query("pn")
	if raw := strings.TrimSpace(c.Query("sizePn")); raw != "" {
		desc, err := parse.ParseSizePN(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		size, pn = desc.Size, desc.PressureRating
	}

	rate, ok := h.reference.Lookup(material, parse.NormalizeSize(size), pn, machine)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no expected output defined"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"rate": rate})
}

type putReferenceRequest struct {
	Material       string   `json:"material" binding:"required"`
	Size           string   `json:"size" binding:"required"`
	PressureRating string   `json:"pressureRating" binding:"required"`
	MachineID      string   `json:"machineId" binding:"required"`
	Rate           *float64 `json:"rate" binding:"required"`
}

// PutReference handles PUT /api/reference.
func (h *Handler) PutReference(c *gin.Context) {
	var req putReferenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	entry, err := h.reference.Upsert(c.Request.Context(), req.Material, parse.NormalizeSize(req.Size), req.PressureRating, req.MachineID, *req.Rate)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

// DeleteReference handles DELETE /api/reference/:id.
func (h *Handler) DeleteReference(c *gin.Context) {
	if err := h.reference.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
