package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"webtestflow/recorder/internal/recorder"
	"webtestflow/recorder/internal/review"
	"webtestflow/recorder/pkg/auth"
)

// Handlers serves the operator popup and the review surface.
type Handlers struct {
	coord   *recorder.Coordinator
	reviews *review.Service
	auth    *auth.Manager
	logger  *zap.Logger
}

func New(coord *recorder.Coordinator, reviews *review.Service, authManager *auth.Manager, logger *zap.Logger) *Handlers {
	return &Handlers{
		coord:   coord,
		reviews: reviews,
		auth:    authManager,
		logger:  logger.Named("api"),
	}
}

func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"code":    200,
		"message": "success",
		"data": gin.H{
			"status":    "healthy",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		},
	})
}
