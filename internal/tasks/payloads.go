package tasks

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

// 任务类型常量，确保队列生产者与消费者一致。
const (
	TypeFileCleanup = "storage:cleanup"
)

// FileCleanupPayload 描述删除申请后需要清理的远端文件。
type FileCleanupPayload struct {
	ApplicationID uint   `json:"application_id"`
	ObjectKey     string `json:"object_key"`
	CorrelationID string `json:"correlation_id"`
}

// NewFileCleanupTask 构造一个远端文件清理任务。
// 清理是尽力而为的：入队方应使用 MaxRetry(0)。
func NewFileCleanupTask(applicationID uint, objectKey string, correlationID string) (*asynq.Task, error) {
	payload, err := json.Marshal(FileCleanupPayload{
		ApplicationID: applicationID,
		ObjectKey:     objectKey,
		CorrelationID: correlationID,
	})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeFileCleanup, payload), nil
}
