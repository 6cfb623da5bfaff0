// Package worker consumes queued maintenance tasks.
package worker

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	"cvIntake/internal/storage"
	"cvIntake/internal/tasks"
)

// CleanupTaskHandler 负责删除已被移除申请的远端简历文件。
type CleanupTaskHandler struct {
	storage *storage.Client
	logger  *slog.Logger
}

// NewCleanupTaskHandler 创建任务处理器。
func NewCleanupTaskHandler(storageClient *storage.Client, logger *slog.Logger) *CleanupTaskHandler {
	return &CleanupTaskHandler{
		storage: storageClient,
		logger:  logger,
	}
}

// ProcessTask 实现 asynq.Handler。
// 清理失败只记录日志，不返回错误：删除是尽力而为的，绝不重试。
func (h *CleanupTaskHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload tasks.FileCleanupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		h.logger.Error("unmarshal cleanup payload failed", slog.Any("error", err))
		return nil
	}

	log := h.logger.With(
		slog.String("correlation_id", payload.CorrelationID),
		slog.Uint64("application_id", uint64(payload.ApplicationID)),
		slog.String("object_key", payload.ObjectKey),
	)

	if payload.ObjectKey == "" {
		log.Warn("cleanup task without object key, skipping")
		return nil
	}

	if err := h.storage.DeleteObject(ctx, payload.ObjectKey); err != nil {
		log.Error("delete remote resume file failed", slog.Any("error", err))
		return nil
	}

	log.Info("remote resume file removed")
	return nil
}
