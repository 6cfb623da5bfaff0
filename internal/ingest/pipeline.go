// Package ingest turns uploaded resume files into stored, text-extracted,
// analyzed application records. Files in a batch are processed one after
// another and fail independently.
package ingest

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"cvIntake/internal/analysis"
	"cvIntake/internal/database"
	"cvIntake/internal/errcode"
	"cvIntake/internal/metrics"
	"cvIntake/internal/textproc"
)

// 抽取文本少于该长度视为不可用，记录转为 failed。
const minUsableTextLen = 20

// FileStore uploads resume files and exposes their public links.
type FileStore interface {
	UploadFile(ctx context.Context, objectKey string, reader io.Reader, size int64, contentType string) (*minio.UploadInfo, error)
	PublicURL(objectKey string) string
}

// TextExtractor runs OCR/PDF text extraction over raw file bytes.
type TextExtractor interface {
	ExtractText(ctx context.Context, filename string, data []byte) (string, error)
}

// Analyzer requests a candidate evaluation from the external workflow.
type Analyzer interface {
	RequestAnalysis(ctx context.Context, req analysis.Request) (*analysis.Result, error)
}

// Scanner optionally vets file bytes before any other processing.
type Scanner interface {
	Scan(ctx context.Context, data []byte) error
}

// Pipeline 按固定顺序处理单个上传文件：
// 类型校验 → 去重 → 远端上传 → 建档(uploaded) → processing →
// 文本抽取 → 清洗入库 → 请求分析 → 落库(analyzed)。
// 建档之后的任何失败都会把该记录标记为 failed，但不影响批次中的其他文件。
type Pipeline struct {
	db        *gorm.DB
	store     FileStore
	extractor TextExtractor
	analyzer  Analyzer
	scanner   Scanner
	logger    *slog.Logger
}

// NewPipeline 构造 Pipeline。scanner 可为 nil（不做病毒扫描）。
func NewPipeline(db *gorm.DB, store FileStore, extractor TextExtractor, analyzer Analyzer, scanner Scanner, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		db:        db,
		store:     store,
		extractor: extractor,
		analyzer:  analyzer,
		scanner:   scanner,
		logger:    logger,
	}
}

// Outcome tags one file's result within a batch.
type Outcome string

const (
	OutcomeSuccess   Outcome = "success"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeFailure   Outcome = "failure"
)

// FileInput is one uploaded file.
type FileInput struct {
	Name        string
	ContentType string
	Data        []byte
}

// FileResult is the per-file entry of a batch response.
type FileResult struct {
	FileName      string  `json:"fileName"`
	Outcome       Outcome `json:"outcome"`
	ApplicationID uint    `json:"applicationId,omitempty"`
	FullName      string  `json:"fullName,omitempty"`
	Email         string  `json:"email,omitempty"`
	Status        string  `json:"status,omitempty"`
	ErrorCode     int     `json:"errorCode,omitempty"`
	Error         string  `json:"error,omitempty"`
}

// Success reports whether the entry is a success outcome.
func (r FileResult) Success() bool { return r.Outcome == OutcomeSuccess }

// ProcessBatch 逐个处理 files，返回与输入等长的结果列表。
// 单个文件的失败只体现在它自己的结果条目里。
func (p *Pipeline) ProcessBatch(ctx context.Context, files []FileInput) []FileResult {
	results := make([]FileResult, 0, len(files))
	for _, file := range files {
		result := p.ProcessFile(ctx, file)
		metrics.ObserveIngestOutcome(string(result.Outcome))
		results = append(results, result)
	}
	return results
}

// ProcessFile runs the full state machine for one file.
func (p *Pipeline) ProcessFile(ctx context.Context, file FileInput) FileResult {
	log := p.logger.With(slog.String("file", file.Name))

	fail := func(code int, err error) FileResult {
		log.Warn("file rejected before record creation", slog.Int("code", code), slog.Any("error", err))
		return FileResult{
			FileName:  file.Name,
			Outcome:   OutcomeFailure,
			ErrorCode: code,
			Error:     err.Error(),
		}
	}

	if !isPDF(file.ContentType) {
		return fail(errcode.InvalidFileType, fmt.Errorf("unsupported media type %q, only PDF is accepted", file.ContentType))
	}

	if p.scanner != nil {
		if err := p.scanner.Scan(ctx, file.Data); err != nil {
			return fail(errcode.MaliciousFile, fmt.Errorf("file rejected by malware scan: %w", err))
		}
	}

	// 去重严格先于远端上传，重复文件不消耗存储。
	sum := sha256.Sum256(file.Data)
	fileHash := hex.EncodeToString(sum[:])

	var existing database.Application
	err := p.db.WithContext(ctx).Where("file_hash = ?", fileHash).First(&existing).Error
	switch {
	case err == nil:
		log.Info("duplicate upload detected", slog.Uint64("existing_id", uint64(existing.ID)))
		return duplicateResult(file.Name, existing)
	case errors.Is(err, gorm.ErrRecordNotFound):
		// new content, proceed
	default:
		return fail(errcode.SystemError, fmt.Errorf("duplicate lookup: %w", err))
	}

	objectKey := fmt.Sprintf("incoming/%s%s", uuid.NewString(), fileExt(file.Name))
	if _, err := p.store.UploadFile(ctx, objectKey, bytes.NewReader(file.Data), int64(len(file.Data)), file.ContentType); err != nil {
		return fail(errcode.SystemError, fmt.Errorf("upload to file storage: %w", err))
	}
	fileLink := p.store.PublicURL(objectKey)

	app := database.Application{
		FullName:       textproc.DisplayNameFromFilename(file.Name),
		Email:          "",
		ResumeText:     "",
		ResumeFileLink: fileLink,
		FileHash:       fileHash,
		Status:         database.StatusUploaded,
	}
	if err := p.db.WithContext(ctx).Create(&app).Error; err != nil {
		if isUniqueViolation(err) {
			// 并发上传相同内容时唯一索引兜底；按重复处理而不是报错。
			// 已上传的对象留在存储里，由胜出的那条记录引用同内容文件。
			log.Info("duplicate upload lost create race", slog.String("orphan_object", objectKey))
			var winner database.Application
			if lookupErr := p.db.WithContext(ctx).Where("file_hash = ?", fileHash).First(&winner).Error; lookupErr == nil {
				return duplicateResult(file.Name, winner)
			}
			return duplicateResult(file.Name, database.Application{})
		}
		return fail(errcode.SystemError, fmt.Errorf("create application record: %w", err))
	}

	log = log.With(slog.Uint64("application_id", uint64(app.ID)))
	log.Info("application record created", slog.String("status", app.Status))

	if err := p.process(ctx, log, &app, file); err != nil {
		p.markFailed(ctx, log, &app, err)
		result := FileResult{
			FileName:      file.Name,
			Outcome:       OutcomeFailure,
			ApplicationID: app.ID,
			FullName:      app.FullName,
			Status:        database.StatusFailed,
			ErrorCode:     failureCode(err),
			Error:         err.Error(),
		}
		return result
	}

	log.Info("application analyzed", slog.String("email", app.Email))
	return FileResult{
		FileName:      file.Name,
		Outcome:       OutcomeSuccess,
		ApplicationID: app.ID,
		FullName:      app.FullName,
		Email:         app.Email,
		Status:        app.Status,
	}
}

// ErrNoUsableText 表示抽取结果为空或过短。
var ErrNoUsableText = errors.New("extraction produced no usable text")

// process covers every step after record creation; any error here moves the
// record to failed.
func (p *Pipeline) process(ctx context.Context, log *slog.Logger, app *database.Application, file FileInput) error {
	if err := p.updateStatus(ctx, app, database.StatusProcessing); err != nil {
		return fmt.Errorf("mark processing: %w", err)
	}

	rawText, err := p.extractor.ExtractText(ctx, file.Name, file.Data)
	if err != nil {
		return fmt.Errorf("extract text: %w", err)
	}
	if len(strings.TrimSpace(rawText)) < minUsableTextLen {
		return ErrNoUsableText
	}

	resumeText := textproc.Normalize(rawText)
	email := textproc.ExtractEmail(resumeText)
	if email != textproc.EmailNotFound {
		email = strings.ToLower(email)
	}

	updates := map[string]any{
		"resume_text": resumeText,
		"email":       email,
	}
	if err := p.db.WithContext(ctx).Model(app).Updates(updates).Error; err != nil {
		return fmt.Errorf("persist extracted text: %w", err)
	}
	app.ResumeText = resumeText
	app.Email = email

	result, err := p.analyzer.RequestAnalysis(ctx, analysis.Request{
		ApplicationID:  app.ID,
		FullName:       app.FullName,
		ResumeText:     app.ResumeText,
		ResumeFileLink: app.ResumeFileLink,
	})
	if err != nil {
		return fmt.Errorf("request analysis: %w", err)
	}

	record, err := newAnalysisRecord(app.ID, result)
	if err != nil {
		return err
	}
	if err := p.db.WithContext(ctx).Create(record).Error; err != nil {
		return fmt.Errorf("create analysis record: %w", err)
	}

	if err := p.updateStatus(ctx, app, database.StatusAnalyzed); err != nil {
		return fmt.Errorf("mark analyzed: %w", err)
	}

	log.Info("analysis stored",
		slog.Int("fit_score", result.FitScore),
		slog.String("qualification", result.QualificationStatus),
	)
	return nil
}

func (p *Pipeline) updateStatus(ctx context.Context, app *database.Application, status string) error {
	if err := p.db.WithContext(ctx).Model(app).Update("status", status).Error; err != nil {
		return err
	}
	app.Status = status
	return nil
}

func (p *Pipeline) markFailed(ctx context.Context, log *slog.Logger, app *database.Application, cause error) {
	log.Error("file processing failed", slog.Any("error", cause))
	if err := p.updateStatus(ctx, app, database.StatusFailed); err != nil {
		log.Error("mark record failed", slog.Any("error", err))
	}
}

func newAnalysisRecord(applicationID uint, result *analysis.Result) (*database.AIAnalysis, error) {
	skills, err := json.Marshal(result.Skills)
	if err != nil {
		return nil, fmt.Errorf("marshal skills: %w", err)
	}
	questions, err := json.Marshal(result.InterviewQuestions)
	if err != nil {
		return nil, fmt.Errorf("marshal interview questions: %w", err)
	}
	return &database.AIAnalysis{
		ApplicationID:       applicationID,
		Summary:             result.Summary,
		QualificationStatus: result.QualificationStatus,
		FitScore:            result.FitScore,
		Skills:              datatypes.JSON(skills),
		InterviewQuestions:  datatypes.JSON(questions),
		AnalyzedAt:          result.AnalyzedAt,
	}, nil
}

func duplicateResult(fileName string, existing database.Application) FileResult {
	return FileResult{
		FileName:      fileName,
		Outcome:       OutcomeDuplicate,
		ApplicationID: existing.ID,
		FullName:      existing.FullName,
		Status:        existing.Status,
		ErrorCode:     errcode.DuplicateContent,
		Error:         "identical file content already ingested",
	}
}

func failureCode(err error) int {
	if errors.Is(err, ErrNoUsableText) {
		return errcode.NoUsableText
	}
	return errcode.SystemError
}

func isPDF(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "application/pdf"
}

func fileExt(name string) string {
	ext := strings.ToLower(path.Ext(name))
	if ext == "" {
		return ".pdf"
	}
	return ext
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "unique constraint")
}
