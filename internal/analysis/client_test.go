package analysis

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"cvIntake/internal/config"
)

func TestRequestAnalysis(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer secret-token" {
			t.Errorf("bad authorization header: %q", r.Header.Get("Authorization"))
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"analysis":"{\"summary\"=>\"fine\", \"qualification_status\"=>\"PASS\", \"fit_score\"=>70, \"skills\"=>[], \"interview_questions\"=>[]}"}`))
	}))
	defer server.Close()

	c := NewClient(config.AutomationConfig{WebhookURL: server.URL, Token: "secret-token"})
	result, err := c.RequestAnalysis(context.Background(), Request{ApplicationID: 1, FullName: "jane doe"})
	if err != nil {
		t.Fatalf("RequestAnalysis: %v", err)
	}
	if result.Summary != "fine" || result.FitScore != 70 {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestRequestAnalysisBareBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"summary"=>"bare", "qualification_status"=>"FAIL", "fit_score"=>5}`))
	}))
	defer server.Close()

	c := NewClient(config.AutomationConfig{WebhookURL: server.URL, Token: "secret-token"})
	result, err := c.RequestAnalysis(context.Background(), Request{ApplicationID: 2})
	if err != nil {
		t.Fatalf("RequestAnalysis: %v", err)
	}
	if result.Summary != "bare" {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestRequestAnalysisNon2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "workflow disabled", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	c := NewClient(config.AutomationConfig{WebhookURL: server.URL, Token: "secret-token"})
	if _, err := c.RequestAnalysis(context.Background(), Request{ApplicationID: 3}); err == nil {
		t.Fatal("expected error for non-2xx response")
	}
}
