package api

import (
	"github.com/gin-gonic/gin"
	"vitals-service/internal/logging"
	"vitals-service/internal/ws"
)

func NewRouter(h *Handler, hub *ws.Hub, logger *logging.Logger, basePath string) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLoggingMiddleware(logger))

	api := r.Group(basePath)
	{
		// Ingestion
		api.POST("/medical-data", h.SubmitReading)
		api.POST("/medical-data/batch", h.SubmitBatch)

		// Reading queries
		api.GET("/medical-data/latest", h.GetLatestReading)
		api.GET("/medical-data/history", h.GetReadingHistory)

		// Alerts
		api.GET("/alerts", h.GetAlerts)
		api.POST("/alerts/:id/acknowledge", h.AcknowledgeAlert)

		// Dashboard stream
		api.GET("/ws/alerts", StreamAlerts(hub, logger))

		// Health; also the device connectivity probe
		api.GET("/health", h.Health)
	}

	return r
}
