package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"cvIntake/internal/api/middleware"
	"cvIntake/internal/database"
	"cvIntake/internal/ingest"
	"cvIntake/internal/tasks"
)

// 单个上传文件的大小上限。
const maxUploadBytes = 10 << 20

var errInvalidApplicationID = errors.New("invalid application id")

// batchProcessor 由 ingest.Pipeline 实现。
type batchProcessor interface {
	ProcessBatch(ctx context.Context, files []ingest.FileInput) []ingest.FileResult
}

// fileStorage 覆盖删除申请时需要的存储操作。
type fileStorage interface {
	ObjectKeyFromLink(link string) string
	DeleteObject(ctx context.Context, objectKey string) error
}

// taskEnqueuer 由 asynq.Client 实现。
type taskEnqueuer interface {
	Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// ApplicationHandler 负责申请记录的查询、摄入与删除。
type ApplicationHandler struct {
	db               *gorm.DB
	pipeline         batchProcessor
	storage          fileStorage
	enqueuer         taskEnqueuer
	redisClient      *redis.Client
	logger           *slog.Logger
	maxUploadsPerDay int
}

// NewApplicationHandler 构造 ApplicationHandler。
// enqueuer 与 redisClient 可为 nil：前者退化为同步清理，后者关闭限流。
func NewApplicationHandler(
	db *gorm.DB,
	pipeline batchProcessor,
	storage fileStorage,
	enqueuer taskEnqueuer,
	redisClient *redis.Client,
	logger *slog.Logger,
	maxUploadsPerDay int,
) *ApplicationHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ApplicationHandler{
		db:               db,
		pipeline:         pipeline,
		storage:          storage,
		enqueuer:         enqueuer,
		redisClient:      redisClient,
		logger:           logger,
		maxUploadsPerDay: maxUploadsPerDay,
	}
}

type analysisResponse struct {
	ApplicationID       uint      `json:"applicationId"`
	Summary             string    `json:"summary"`
	QualificationStatus string    `json:"qualificationStatus"`
	FitScore            int       `json:"fitScore"`
	Skills              []string  `json:"skills"`
	InterviewQuestions  []string  `json:"interviewQuestions"`
	AnalyzedAt          time.Time `json:"analyzedAt"`
}

type applicationResponse struct {
	ID             uint              `json:"id"`
	FullName       string            `json:"fullName"`
	Email          string            `json:"email"`
	ResumeText     string            `json:"resumeText"`
	ResumeFileLink string            `json:"resumeFileLink"`
	FileHash       string            `json:"fileHash"`
	Status         string            `json:"status"`
	CreatedAt      time.Time         `json:"createdAt"`
	Analysis       *analysisResponse `json:"analysis,omitempty"`
}

func stringList(data datatypes.JSON) []string {
	if len(data) == 0 {
		return []string{}
	}
	var out []string
	if err := json.Unmarshal(data, &out); err != nil || out == nil {
		return []string{}
	}
	return out
}

func newAnalysisResponse(rec database.AIAnalysis) *analysisResponse {
	return &analysisResponse{
		ApplicationID:       rec.ApplicationID,
		Summary:             rec.Summary,
		QualificationStatus: rec.QualificationStatus,
		FitScore:            rec.FitScore,
		Skills:              stringList(rec.Skills),
		InterviewQuestions:  stringList(rec.InterviewQuestions),
		AnalyzedAt:          rec.AnalyzedAt,
	}
}

func newApplicationResponse(app database.Application) applicationResponse {
	resp := applicationResponse{
		ID:             app.ID,
		FullName:       app.FullName,
		Email:          app.Email,
		ResumeText:     app.ResumeText,
		ResumeFileLink: app.ResumeFileLink,
		FileHash:       app.FileHash,
		Status:         app.Status,
		CreatedAt:      app.CreatedAt,
	}
	if app.Analysis != nil {
		resp.Analysis = newAnalysisResponse(*app.Analysis)
	}
	return resp
}

// List 返回全部申请记录，最新在前，并带上各自的分析结果。
func (h *ApplicationHandler) List(c *gin.Context) {
	ctx := c.Request.Context()

	var apps []database.Application
	if err := h.db.WithContext(ctx).
		Preload("Analysis").
		Order("created_at DESC").
		Find(&apps).Error; err != nil {
		Internal(c, "failed to list applications")
		return
	}

	items := make([]applicationResponse, 0, len(apps))
	for _, app := range apps {
		items = append(items, newApplicationResponse(app))
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "applications": items})
}

// Ingest 处理 POST /applications 的两种形态：
// multipart 表单（批量上传简历文件）或 JSON 体（带外部分字段更新）。
func (h *ApplicationHandler) Ingest(c *gin.Context) {
	if strings.HasPrefix(c.ContentType(), "multipart/form-data") {
		h.ingestFiles(c)
		return
	}
	h.partialUpdate(c)
}

func (h *ApplicationHandler) ingestFiles(c *gin.Context) {
	log := middleware.LoggerFromContext(c)
	ctx := c.Request.Context()

	if !h.allowUpload(ctx, c.ClientIP(), log) {
		TooManyRequests(c, "daily upload limit reached")
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		BadRequest(c, "malformed multipart form")
		return
	}
	fileHeaders := form.File["resume"]
	if len(fileHeaders) == 0 {
		BadRequest(c, "no resumes uploaded")
		return
	}

	inputs := make([]ingest.FileInput, 0, len(fileHeaders))
	for _, header := range fileHeaders {
		if header.Size > maxUploadBytes {
			BadRequest(c, fmt.Sprintf("file %q exceeds the %d byte limit", header.Filename, maxUploadBytes))
			return
		}
		file, err := header.Open()
		if err != nil {
			Internal(c, "failed to open uploaded file")
			return
		}
		data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
		file.Close()
		if err != nil {
			Internal(c, "failed to read uploaded file")
			return
		}
		inputs = append(inputs, ingest.FileInput{
			Name:        header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Data:        data,
		})
	}

	results := h.pipeline.ProcessBatch(ctx, inputs)

	c.JSON(http.StatusOK, gin.H{
		"success":        true,
		"totalProcessed": len(results),
		"results":        results,
	})
}

// allowUpload 基于 Redis 的按天计数限流；Redis 不可用时放行。
func (h *ApplicationHandler) allowUpload(ctx context.Context, clientIP string, log *slog.Logger) bool {
	if h.redisClient == nil || h.maxUploadsPerDay <= 0 {
		return true
	}
	key := fmt.Sprintf("ingest_quota:%s:%s", clientIP, time.Now().UTC().Format("2006-01-02"))
	count, err := incrWithTTL(ctx, h.redisClient, key, 24*time.Hour)
	if err != nil {
		log.Warn("upload rate counter unavailable", slog.Any("error", err))
		return true
	}
	return count <= int64(h.maxUploadsPerDay)
}

type partialUpdateRequest struct {
	ApplicationID  uint   `json:"applicationId"`
	FullName       string `json:"fullName"`
	Email          string `json:"email"`
	ResumeFileLink string `json:"resumeFileLink"`
	ResumeText     string `json:"resumeText"`
	Status         string `json:"status"`
}

// applyPartialUpdate 只更新请求中出现的非空字段（last-write-wins）。
func applyPartialUpdate(ctx context.Context, db *gorm.DB, req partialUpdateRequest) (*database.Application, error) {
	var app database.Application
	if err := db.WithContext(ctx).First(&app, req.ApplicationID).Error; err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if req.FullName != "" {
		updates["full_name"] = req.FullName
	}
	if req.Email != "" {
		updates["email"] = strings.ToLower(strings.TrimSpace(req.Email))
	}
	if req.ResumeFileLink != "" {
		updates["resume_file_link"] = req.ResumeFileLink
	}
	if req.ResumeText != "" {
		updates["resume_text"] = req.ResumeText
	}
	if req.Status != "" {
		if !database.ValidStatus(req.Status) {
			return nil, fmt.Errorf("%w: %q", errInvalidStatus, req.Status)
		}
		updates["status"] = req.Status
	}

	if len(updates) > 0 {
		if err := db.WithContext(ctx).Model(&app).Updates(updates).Error; err != nil {
			return nil, err
		}
		if err := db.WithContext(ctx).First(&app, app.ID).Error; err != nil {
			return nil, err
		}
	}
	return &app, nil
}

var errInvalidStatus = errors.New("invalid status")

func (h *ApplicationHandler) partialUpdate(c *gin.Context) {
	var req partialUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	if req.ApplicationID == 0 {
		BadRequest(c, "missing applicationId")
		return
	}

	app, err := applyPartialUpdate(c.Request.Context(), h.db, req)
	if err != nil {
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			NotFound(c, "application not found")
		case errors.Is(err, errInvalidStatus):
			BadRequest(c, err.Error())
		default:
			Internal(c, "failed to update application")
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "application": newApplicationResponse(*app)})
}

func (h *ApplicationHandler) applicationFromParam(c *gin.Context, preloadAnalysis bool) (*database.Application, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return nil, errInvalidApplicationID
	}

	query := h.db.WithContext(c.Request.Context())
	if preloadAnalysis {
		query = query.Preload("Analysis")
	}
	var app database.Application
	if err := query.First(&app, uint(id)).Error; err != nil {
		return nil, err
	}
	return &app, nil
}

// GetOne 返回指定申请记录。
func (h *ApplicationHandler) GetOne(c *gin.Context) {
	app, err := h.applicationFromParam(c, true)
	if err != nil {
		switch {
		case errors.Is(err, errInvalidApplicationID):
			BadRequest(c, "invalid application id")
		case errors.Is(err, gorm.ErrRecordNotFound):
			NotFound(c, "application not found")
		default:
			Internal(c, "failed to query application")
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "application": newApplicationResponse(*app)})
}

// GetAnalysis 返回指定申请的分析结果。
func (h *ApplicationHandler) GetAnalysis(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		BadRequest(c, "invalid application id")
		return
	}

	var rec database.AIAnalysis
	if err := h.db.WithContext(c.Request.Context()).
		Where("application_id = ?", uint(id)).
		First(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, "analysis not found")
			return
		}
		Internal(c, "failed to query analysis")
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "analysis": newAnalysisResponse(rec)})
}

// Delete 删除申请：远端文件尽力清理，分析记录与申请记录级联删除。
func (h *ApplicationHandler) Delete(c *gin.Context) {
	log := middleware.LoggerFromContext(c)

	app, err := h.applicationFromParam(c, false)
	if err != nil {
		switch {
		case errors.Is(err, errInvalidApplicationID):
			BadRequest(c, "invalid application id")
		case errors.Is(err, gorm.ErrRecordNotFound):
			NotFound(c, "application not found")
		default:
			Internal(c, "failed to query application")
		}
		return
	}

	ctx := c.Request.Context()
	h.cleanupRemoteFile(ctx, log, app, middleware.GetCorrelationID(c))

	// 硬删除：保留软删除行会让 file_hash 唯一索引挡住同内容的重新上传。
	if err := h.db.WithContext(ctx).Unscoped().
		Where("application_id = ?", app.ID).
		Delete(&database.AIAnalysis{}).Error; err != nil {
		Internal(c, "failed to delete analysis records")
		return
	}
	if err := h.db.WithContext(ctx).Unscoped().Delete(&database.Application{}, app.ID).Error; err != nil {
		Internal(c, "failed to delete application")
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "deleted successfully"})
}

// cleanupRemoteFile 尽力删除远端文件：优先入队异步任务（不重试），
// 无队列或入队失败时退化为同步删除；任何失败只记录日志。
func (h *ApplicationHandler) cleanupRemoteFile(ctx context.Context, log *slog.Logger, app *database.Application, correlationID string) {
	objectKey := h.storage.ObjectKeyFromLink(app.ResumeFileLink)
	if objectKey == "" {
		log.Warn("no storage object derivable from resume link",
			slog.Uint64("application_id", uint64(app.ID)),
			slog.String("resume_file_link", app.ResumeFileLink),
		)
		return
	}

	if h.enqueuer != nil {
		task, err := tasks.NewFileCleanupTask(app.ID, objectKey, correlationID)
		if err == nil {
			if _, err := h.enqueuer.Enqueue(task, asynq.MaxRetry(0)); err == nil {
				return
			}
			log.Warn("enqueue file cleanup failed, deleting inline", slog.String("object_key", objectKey))
		}
	}

	if err := h.storage.DeleteObject(ctx, objectKey); err != nil {
		log.Error("delete remote resume file failed",
			slog.String("object_key", objectKey),
			slog.Any("error", err),
		)
	}
}
