package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"cvIntake/internal/api/middleware"
	"cvIntake/internal/database"
)

// CallbackHandler 接收自动化工作流的异步回调。
// 认证由路由上的 BearerAuthMiddleware 完成。
type CallbackHandler struct {
	db     *gorm.DB
	logger *slog.Logger
}

// NewCallbackHandler 构造 CallbackHandler。
func NewCallbackHandler(db *gorm.DB, logger *slog.Logger) *CallbackHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &CallbackHandler{db: db, logger: logger}
}

type callbackAnalysis struct {
	Summary             string   `json:"summary"`
	QualificationStatus string   `json:"qualificationStatus"`
	FitScore            int      `json:"fitScore"`
	Skills              []string `json:"skills"`
	InterviewQuestions  []string `json:"interviewQuestions"`
}

type callbackRequest struct {
	ApplicationID  uint              `json:"applicationId"`
	FullName       string            `json:"fullName"`
	Email          string            `json:"email"`
	ResumeFileLink string            `json:"resumeFileLink"`
	ResumeText     string            `json:"resumeText"`
	Status         string            `json:"status"`
	Analysis       *callbackAnalysis `json:"analysis"`
}

// Handle 应用回调中出现的字段（部分更新），并可附带结构化分析结果。
// 目标记录不存在时不产生任何写入。
func (h *CallbackHandler) Handle(c *gin.Context) {
	log := middleware.LoggerFromContext(c)

	var req callbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	if req.ApplicationID == 0 {
		BadRequest(c, "missing applicationId")
		return
	}

	ctx := c.Request.Context()

	app, err := applyPartialUpdate(ctx, h.db, partialUpdateRequest{
		ApplicationID:  req.ApplicationID,
		FullName:       req.FullName,
		Email:          req.Email,
		ResumeFileLink: req.ResumeFileLink,
		ResumeText:     req.ResumeText,
		Status:         req.Status,
	})
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

	if req.Analysis != nil {
		if err := h.upsertAnalysis(c, app, req); err != nil {
			Internal(c, "failed to store analysis")
			return
		}
	}

	log.Info("callback applied",
		slog.Uint64("application_id", uint64(app.ID)),
		slog.String("status", app.Status),
		slog.Bool("with_analysis", req.Analysis != nil),
	)

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"message":     "application updated successfully",
		"application": newApplicationResponse(*app),
	})
}

func (h *CallbackHandler) upsertAnalysis(c *gin.Context, app *database.Application, req callbackRequest) error {
	ctx := c.Request.Context()
	payload := req.Analysis

	skills, err := json.Marshal(orEmpty(payload.Skills))
	if err != nil {
		return err
	}
	questions, err := json.Marshal(orEmpty(payload.InterviewQuestions))
	if err != nil {
		return err
	}

	score := payload.FitScore
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	var rec database.AIAnalysis
	err = h.db.WithContext(ctx).Where("application_id = ?", app.ID).First(&rec).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		rec = database.AIAnalysis{ApplicationID: app.ID}
	case err != nil:
		return err
	}

	rec.Summary = payload.Summary
	rec.QualificationStatus = payload.QualificationStatus
	rec.FitScore = score
	rec.Skills = datatypes.JSON(skills)
	rec.InterviewQuestions = datatypes.JSON(questions)
	rec.AnalyzedAt = time.Now().UTC()

	if err := h.db.WithContext(ctx).Save(&rec).Error; err != nil {
		return err
	}

	// 回调未显式给出状态时，带分析结果的回调意味着记录已完成分析。
	if req.Status == "" && app.Status != database.StatusAnalyzed {
		if err := h.db.WithContext(ctx).Model(app).
			Update("status", database.StatusAnalyzed).Error; err != nil {
			return err
		}
		app.Status = database.StatusAnalyzed
	}
	return nil
}

func orEmpty(list []string) []string {
	if list == nil {
		return []string{}
	}
	return list
}

// Liveness 供自动化平台探活。
func (h *CallbackHandler) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "callback endpoint is ready",
	})
}
