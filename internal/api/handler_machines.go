package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"production-output-backend/internal/catalog"
)

// MaterialResponse is one selectable material with its size choices.
type MaterialResponse struct {
	Name string `json:"name"`
	catalog.MaterialSpec
	SizePNChoices []string `json:"sizePnChoices"`
}

// GetMaterials handles GET /api/materials.
func (h *Handler) GetMaterials(c *gin.Context) {
	names := catalog.Materials()
	materials := make([]MaterialResponse, 0, len(names))
	for _, name := range names {
		spec, _ := catalog.Spec(name)
		materials = append(materials, MaterialResponse{
			Name:          name,
			MaterialSpec:  spec,
			SizePNChoices: catalog.SizePNChoices(name),
		})
	}
	c.JSON(http.StatusOK, gin.H{"materials": materials, "machines": catalog.Machines})
}

// MachineResponse represents the API response for a single machine.
type MachineResponse struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	ReadingCount int64  `json:"readingCount"`
	RunCount     int64  `json:"runCount"`
}

// GetMachines handles GET /api/machines: every machine that has logged a run
// or reading, with its activity counts.
func (h *Handler) GetMachines(c *gin.Context) {
	machines, err := h.store.ListMachines(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve machines"})
		return
	}

	responses := make([]MachineResponse, 0, len(machines))
	for _, m := range machines {
		responses = append(responses, MachineResponse{
			ID:           m.ID,
			Name:         m.DisplayName,
			ReadingCount: m.ReadingCount,
			RunCount:     m.RunCount,
		})
	}
	c.JSON(http.StatusOK, responses)
}
