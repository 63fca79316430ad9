package routes

import (
	"github.com/gin-gonic/gin"

	"voicepipe/internal/api/v1/handlers"
	"voicepipe/internal/api/v1/services"
)

// ServiceContainer holds all services needed by handlers
type ServiceContainer struct {
	VoiceService  services.VoiceService
	ExportService services.ExportService
}

// RegisterRoutes registers all voice API routes on the given group.
func RegisterRoutes(router *gin.RouterGroup, container *ServiceContainer) {
	voiceHandler := handlers.NewVoiceHandler(container.VoiceService)

	voice := router.Group("/voice")
	{
		voice.POST("/upload", voiceHandler.Upload)
		voice.POST("/transcribe", voiceHandler.Transcribe)
		voice.POST("/transcribe/batch", voiceHandler.BatchTranscribe)
		voice.POST("/quality", voiceHandler.AnalyzeQuality)
		voice.GET("/quality/:id", voiceHandler.GetQuality)

		if container.ExportService != nil {
			exportHandler := handlers.NewExportHandler(container.ExportService)
			voice.GET("/export", exportHandler.Download)
		}

		voice.GET("", voiceHandler.List)
		voice.GET("/:id", voiceHandler.Get)
		voice.GET("/:id/segments", voiceHandler.Segments)
		voice.GET("/:id/url", voiceHandler.SignedURL)
		voice.PATCH("/:id/status", voiceHandler.UpdateStatus)
	}
}
