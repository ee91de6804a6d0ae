package routes

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"webtestflow/recorder/internal/api/handlers"
	"webtestflow/recorder/internal/api/middleware"
	"webtestflow/recorder/pkg/auth"
)

func SetupRoutes(h *handlers.Handlers, authManager *auth.Manager, logger *zap.Logger) *gin.Engine {
	router := gin.New()

	// Global middleware
	router.Use(middleware.Logger(logger.Named("http")))
	router.Use(middleware.CORSMiddleware())
	router.Use(gin.Recovery())

	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", handlers.HealthCheck)
		v1.POST("/auth/login", h.Login)

		// The review surface is reached through a signed hand-off ticket.
		review := v1.Group("/review")
		{
			review.GET("", h.OpenReview)
			review.GET("/:id", h.GetReview)
			review.DELETE("/:id/steps/:index", h.RemoveStep)
			review.PUT("/:id/steps/:index/identifier", h.ChooseIdentifier)
			review.GET("/:id/export", h.ExportReview)
		}

		protected := v1.Group("")
		protected.Use(middleware.AuthMiddleware(authManager))
		{
			recording := protected.Group("/recording")
			{
				recording.POST("/start", h.StartRecording)
				recording.POST("/stop", h.StopRecording)
				recording.POST("/pause", h.PauseRecording)
				recording.POST("/resume", h.ResumeRecording)
				recording.GET("/status", h.GetRecordingStatus)
				recording.GET("/steps", h.GetRecordingSteps)
			}

			protected.GET("/ws/channel", h.ChannelWebSocket)
		}
	}

	return router
}
