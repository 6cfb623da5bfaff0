package ocr

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"cvIntake/internal/config"
)

func TestExtractText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("apikey") != "test-key" {
			t.Errorf("missing apikey header")
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		if _, _, err := r.FormFile("file"); err != nil {
			t.Errorf("missing file part: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ParsedResults":[{"ParsedText":"page one"},{"ParsedText":"page two"}],"IsErroredOnProcessing":false}`))
	}))
	defer server.Close()

	c := NewClient(config.OCRConfig{Endpoint: server.URL, APIKey: "test-key"})
	text, err := c.ExtractText(context.Background(), "resume.pdf", []byte("%PDF-1.4"))
	if err != nil {
		t.Fatalf("ExtractText: %v", err)
	}
	if text != "page one\npage two" {
		t.Fatalf("unexpected text: %q", text)
	}
}

func TestExtractTextProviderError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ParsedResults":[],"IsErroredOnProcessing":true,"ErrorMessage":["Unable to recognize the file type"]}`))
	}))
	defer server.Close()

	c := NewClient(config.OCRConfig{Endpoint: server.URL, APIKey: "test-key"})
	if _, err := c.ExtractText(context.Background(), "resume.pdf", []byte("junk")); err == nil {
		t.Fatal("expected error for errored processing")
	}
}

func TestExtractTextBadStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusForbidden)
	}))
	defer server.Close()

	c := NewClient(config.OCRConfig{Endpoint: server.URL, APIKey: "test-key"})
	if _, err := c.ExtractText(context.Background(), "resume.pdf", []byte("%PDF-1.4")); err == nil {
		t.Fatal("expected error for non-2xx status")
	}
}
