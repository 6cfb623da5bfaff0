package database

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Application 生命周期状态。一条记录只会沿
// uploaded → processing → analyzed | failed 推进；
// completed 仅由回调在人工复核后设置。
const (
	StatusUploaded   = "uploaded"
	StatusProcessing = "processing"
	StatusAnalyzed   = "analyzed"
	StatusFailed     = "failed"
	StatusCompleted  = "completed"
)

// ValidStatus reports whether s is a member of the status enum.
func ValidStatus(s string) bool {
	switch s {
	case StatusUploaded, StatusProcessing, StatusAnalyzed, StatusFailed, StatusCompleted:
		return true
	}
	return false
}

// Application 表示一份提交的简历及其处理状态。
// FileHash 上的唯一索引是并发重复上传时的最终防线。
type Application struct {
	gorm.Model
	FullName       string      `gorm:"size:255;not null"`
	Email          string      `gorm:"size:255"`
	ResumeText     string      `gorm:"type:text"`
	ResumeFileLink string      `gorm:"size:512;not null"`
	FileHash       string      `gorm:"size:64;uniqueIndex;not null"`
	Status         string      `gorm:"size:32;index"`
	Analysis       *AIAnalysis `gorm:"foreignKey:ApplicationID;constraint:OnDelete:CASCADE"`
}

// AIAnalysis 表示外部分析工作流对一份申请的评估结果。
// 每份申请最多一条（application_id 唯一索引）。
type AIAnalysis struct {
	gorm.Model
	ApplicationID       uint           `gorm:"uniqueIndex;not null"`
	Summary             string         `gorm:"type:text"`
	QualificationStatus string         `gorm:"size:8"`
	FitScore            int
	Skills              datatypes.JSON `gorm:"type:jsonb"`
	InterviewQuestions  datatypes.JSON `gorm:"type:jsonb"`
	AnalyzedAt          time.Time
}
