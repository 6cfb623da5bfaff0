package api

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"cvIntake/internal/api/middleware"
	"cvIntake/internal/ingest"
	"cvIntake/internal/storage"
)

// RegisterRoutes 注册 API 路由，不包含 /api 前缀。
func RegisterRoutes(
	router *gin.Engine,
	db *gorm.DB,
	pipeline *ingest.Pipeline,
	storageClient *storage.Client,
	asynqClient *asynq.Client,
	redisClient *redis.Client,
	logger *slog.Logger,
	callbackToken string,
	maxUploadsPerDay int,
) {
	// nil 的 *asynq.Client 不能直接塞进接口，否则 nil 判断失效。
	var enqueuer taskEnqueuer
	if asynqClient != nil {
		enqueuer = asynqClient
	}

	appHandler := NewApplicationHandler(db, pipeline, storageClient, enqueuer, redisClient, logger, maxUploadsPerDay)
	callbackHandler := NewCallbackHandler(db, logger)

	v1 := router.Group("/v1")
	{
		apps := v1.Group("/applications")
		{
			apps.GET("", appHandler.List)
			apps.POST("", appHandler.Ingest)
			apps.GET("/:id", appHandler.GetOne)
			apps.GET("/:id/analysis", appHandler.GetAnalysis)
			apps.DELETE("/:id", appHandler.Delete)
		}

		callback := v1.Group("/integrations/callback")
		{
			callback.GET("", callbackHandler.Liveness)
			callback.POST("", middleware.BearerAuthMiddleware(callbackToken), callbackHandler.Handle)
		}
	}
}
