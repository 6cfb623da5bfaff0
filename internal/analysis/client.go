package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"cvIntake/internal/config"
)

// Request carries the fields the automation workflow needs to evaluate a
// candidate.
type Request struct {
	ApplicationID  uint   `json:"applicationId"`
	FullName       string `json:"fullName"`
	ResumeText     string `json:"resumeText"`
	ResumeFileLink string `json:"resumeFileLink"`
}

// Client 调用外部自动化工作流（webhook）对候选人进行评估。
type Client struct {
	webhookURL string
	token      string
	httpClient *http.Client
}

// NewClient 构造 webhook 客户端。
func NewClient(cfg config.AutomationConfig) *Client {
	return &Client{
		webhookURL: strings.TrimSpace(cfg.WebhookURL),
		token:      strings.TrimSpace(cfg.Token),
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}
}

// webhook 响应把序列化的评估结果装在 analysis 字段里。
type webhookEnvelope struct {
	Analysis string `json:"analysis"`
}

// RequestAnalysis posts the candidate to the workflow and parses the
// evaluation embedded in the response.
func (c *Client) RequestAnalysis(ctx context.Context, req Request) (*Result, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal analysis request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build analysis request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request analysis webhook: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read analysis response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("analysis webhook status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	// 优先尝试信封格式；不是 JSON 信封时退回整个响应体。
	serialized := string(body)
	var envelope webhookEnvelope
	if err := json.Unmarshal(body, &envelope); err == nil && strings.TrimSpace(envelope.Analysis) != "" {
		serialized = envelope.Analysis
	}

	return ParseResult(serialized)
}
