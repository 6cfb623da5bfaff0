package ingest

import (
	"bytes"
	"context"
	"fmt"

	"github.com/dutchcoders/go-clamd"
)

// ClamdScanner sends file bytes through a clamd instance before ingestion.
type ClamdScanner struct {
	addr string
}

// NewClamdScanner 构造扫描器；addr 为空时返回 nil（不启用扫描）。
func NewClamdScanner(addr string) *ClamdScanner {
	if addr == "" {
		return nil
	}
	return &ClamdScanner{addr: addr}
}

// Scan 通过 clamd 流式扫描文件内容，发现威胁时返回错误。
func (s *ClamdScanner) Scan(_ context.Context, data []byte) error {
	client := clamd.NewClamd(s.addr)

	abortChan := make(chan bool)
	defer close(abortChan)

	scanChan, err := client.ScanStream(bytes.NewReader(data), abortChan)
	if err != nil {
		return fmt.Errorf("scan stream: %w", err)
	}

	for result := range scanChan {
		if result.Status != clamd.RES_OK {
			return fmt.Errorf("threat detected: %s", result.Description)
		}
	}
	return nil
}
