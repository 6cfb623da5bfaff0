package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"cvIntake/internal/analysis"
	"cvIntake/internal/api"
	"cvIntake/internal/config"
	"cvIntake/internal/database"
	"cvIntake/internal/ingest"
	"cvIntake/internal/ocr"
	"cvIntake/internal/storage"
)

func main() {
	cfg := config.MustLoad()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	db, err := database.InitDatabase(cfg.Database)
	if err != nil {
		log.Fatalf("init database: %v", err)
	}
	log.Printf("database connection ready")

	if err := db.AutoMigrate(&database.Application{}, &database.AIAnalysis{}); err != nil {
		log.Fatalf("auto migrate: %v", err)
	}
	log.Printf("database migrated")

	storageClient, err := storage.NewClient(cfg.MinIO)
	if err != nil {
		log.Fatalf("init storage client: %v", err)
	}
	log.Printf("storage client ready, bucket=%s", cfg.MinIO.Bucket)

	redisAddr := fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)
	redisClient := redis.NewClient(&redis.Options{Addr: redisAddr})
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error("close redis client failed", slog.Any("error", err))
		}
	}()
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		log.Fatalf("ping redis: %v", err)
	}

	asynqClient := asynq.NewClient(asynq.RedisClientOpt{Addr: redisAddr})
	defer func() {
		if err := asynqClient.Close(); err != nil {
			logger.Error("close asynq client failed", slog.Any("error", err))
		}
	}()

	scanner := ingest.NewClamdScanner(cfg.Ingest.ClamdAddr)
	if scanner == nil {
		logger.Warn("clamd address not configured, uploads are not scanned")
	}

	pipeline := ingest.NewPipeline(
		db,
		storageClient,
		ocr.NewClient(cfg.OCR),
		analysis.NewClient(cfg.Automation),
		scannerOrNil(scanner),
		logger,
	)

	router := api.NewRouter(logger)
	api.RegisterRoutes(
		router,
		db,
		pipeline,
		storageClient,
		asynqClient,
		redisClient,
		logger,
		cfg.Automation.CallbackToken,
		cfg.Ingest.MaxUploadsPerDay,
	)

	address := fmt.Sprintf(":%d", cfg.API.Port)
	logger.Info("api listening", slog.String("address", address))
	if err := router.Run(address); err != nil {
		log.Fatalf("failed to start api server: %v", err)
	}
}

// scannerOrNil 把空的具体指针转换成真正的 nil 接口。
func scannerOrNil(s *ingest.ClamdScanner) ingest.Scanner {
	if s == nil {
		return nil
	}
	return s
}
