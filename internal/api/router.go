package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"production-output-backend/internal/mw"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(h *Handler, limiter *mw.IPRateLimiter, responses mw.ResponseStore, cacheTTL time.Duration, logger *zap.Logger) *gin.Engine {
	r := gin.Default()

	caching := mw.Cache(responses, cacheTTL, logger)

	api := r.Group("/api")
	api.Use(mw.RateLimiter(limiter))
	{
		api.GET("/materials", h.GetMaterials)
		api.GET("/machines", caching, h.GetMachines)
		// Live elapsed hours are never cached.
		api.GET("/status", h.GetStatusTable)
		api.GET("/machines/:machine/status", h.GetMachineStatus)

		// Writes go through the cache so a success purges it.
		api.POST("/runs", caching, h.PostRun)
		api.GET("/runs", caching, h.GetRuns)
		api.POST("/readings", caching, h.PostReading)
		api.GET("/readings", caching, h.GetReadings)

		api.GET("/reference", caching, h.GetReference)
		api.GET("/reference/lookup", caching, h.LookupReference)
		api.PUT("/reference", caching, h.PutReference)
		api.DELETE("/reference/:id", caching, h.DeleteReference)

		api.GET("/dashboard/kpis", h.GetKPIs)
		api.GET("/dashboard/sizes", caching, h.GetSizeTotals)
		api.GET("/dashboard/compare", caching, h.GetSizeComparison)

		api.GET("/export/readings.xlsx", h.ExportReadings)
		api.GET("/export/runs.xlsx", h.ExportRuns)
		api.POST("/import/runs", caching, h.ImportRuns)

		api.GET("/subscriptions", h.GetSubscription)
		api.PUT("/subscriptions", h.PutSubscription)
		api.DELETE("/subscriptions", h.DeleteSubscription)
		api.GET("/vapid_public_key", h.GetVAPIDPublicKey)
	}

	return r
}
