// Package ocr calls the external PDF text-extraction provider.
package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"cvIntake/internal/config"
)

// Client 调用外部 OCR 服务，从 PDF 原始字节中抽取文本。
type Client struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
}

// NewClient 构造 OCR 客户端。
func NewClient(cfg config.OCRConfig) *Client {
	return &Client{
		endpoint:   strings.TrimSpace(cfg.Endpoint),
		apiKey:     strings.TrimSpace(cfg.APIKey),
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

type parseResult struct {
	ParsedText string `json:"ParsedText"`
}

type parseResponse struct {
	ParsedResults         []parseResult   `json:"ParsedResults"`
	IsErroredOnProcessing bool            `json:"IsErroredOnProcessing"`
	ErrorMessage          json.RawMessage `json:"ErrorMessage"`
}

// ExtractText 将文件字节提交给 OCR 服务并返回抽取出的原始文本。
// 多页结果按顺序拼接；文本是否可用由调用方判定。
func (c *Client) ExtractText(ctx context.Context, filename string, data []byte) (string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("build ocr request body: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("write ocr request body: %w", err)
	}
	if err := writer.WriteField("filetype", "PDF"); err != nil {
		return "", fmt.Errorf("write ocr request field: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("close ocr request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, body)
	if err != nil {
		return "", fmt.Errorf("build ocr request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("apikey", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request ocr service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 8*1024))
		return "", fmt.Errorf("ocr service status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var parsed parseResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode ocr response: %w", err)
	}

	if parsed.IsErroredOnProcessing {
		return "", fmt.Errorf("ocr processing failed: %s", strings.TrimSpace(string(parsed.ErrorMessage)))
	}

	var b strings.Builder
	for _, result := range parsed.ParsedResults {
		if result.ParsedText == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(result.ParsedText)
	}
	return b.String(), nil
}
