package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/minio/minio-go/v7"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"cvIntake/internal/analysis"
	"cvIntake/internal/database"
	"cvIntake/internal/errcode"
	"cvIntake/internal/textproc"
)

type fakeStore struct {
	uploaded map[string][]byte
	failNext bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{uploaded: map[string][]byte{}}
}

func (s *fakeStore) UploadFile(_ context.Context, objectKey string, reader io.Reader, _ int64, _ string) (*minio.UploadInfo, error) {
	if s.failNext {
		s.failNext = false
		return nil, errors.New("storage unavailable")
	}
	b, _ := io.ReadAll(reader)
	s.uploaded[objectKey] = b
	return &minio.UploadInfo{Key: objectKey}, nil
}

func (s *fakeStore) PublicURL(objectKey string) string {
	return "https://files.example.invalid/resumes/" + objectKey
}

type fakeExtractor struct {
	text string
	err  error
}

func (e *fakeExtractor) ExtractText(context.Context, string, []byte) (string, error) {
	return e.text, e.err
}

type fakeAnalyzer struct {
	result *analysis.Result
	err    error
	calls  int
}

func (a *fakeAnalyzer) RequestAnalysis(_ context.Context, _ analysis.Request) (*analysis.Result, error) {
	a.calls++
	if a.err != nil {
		return nil, a.err
	}
	return a.result, nil
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&database.Application{}, &database.AIAnalysis{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func passingAnalyzer() *fakeAnalyzer {
	return &fakeAnalyzer{result: &analysis.Result{
		Summary:             "solid candidate",
		QualificationStatus: analysis.QualificationPass,
		FitScore:            81,
		Skills:              []string{"Go"},
		InterviewQuestions:  []string{"Tell me about a production incident."},
	}}
}

// After normalization the letters join up; the email stays extractable
// because it is bounded by the colon before it and the parenthesis after.
const extractedText = "J a n e D o e, Backend Engineer. Contact: jane.doe @ company . com (primary) ten years of experience"

func pdfInput(name string, content []byte) FileInput {
	return FileInput{Name: name, ContentType: "application/pdf", Data: content}
}

func countApplications(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var n int64
	if err := db.Model(&database.Application{}).Count(&n).Error; err != nil {
		t.Fatalf("count applications: %v", err)
	}
	return n
}

func TestProcessFileSuccess(t *testing.T) {
	db := newTestDB(t)
	store := newFakeStore()
	analyzer := passingAnalyzer()
	p := NewPipeline(db, store, &fakeExtractor{text: extractedText}, analyzer, nil, nil)

	result := p.ProcessFile(context.Background(), pdfInput("jane_doe-resume.pdf", []byte("%PDF-1.4 jane")))
	if result.Outcome != OutcomeSuccess {
		t.Fatalf("outcome = %s (%s)", result.Outcome, result.Error)
	}
	if result.FullName != "jane doe resume" {
		t.Errorf("full name = %q", result.FullName)
	}
	if result.Email != "jane.doe@company.com" {
		t.Errorf("email = %q", result.Email)
	}

	var app database.Application
	if err := db.First(&app, result.ApplicationID).Error; err != nil {
		t.Fatalf("load application: %v", err)
	}
	if app.Status != database.StatusAnalyzed {
		t.Errorf("status = %q", app.Status)
	}
	if app.ResumeFileLink == "" || app.FileHash == "" {
		t.Error("file link or hash missing")
	}

	var rec database.AIAnalysis
	if err := db.Where("application_id = ?", app.ID).First(&rec).Error; err != nil {
		t.Fatalf("load analysis: %v", err)
	}
	if rec.FitScore != 81 || rec.QualificationStatus != analysis.QualificationPass {
		t.Errorf("analysis = %+v", rec)
	}
	if len(store.uploaded) != 1 {
		t.Errorf("uploaded %d objects, want 1", len(store.uploaded))
	}
}

func TestProcessFileDuplicate(t *testing.T) {
	db := newTestDB(t)
	store := newFakeStore()
	analyzer := passingAnalyzer()
	p := NewPipeline(db, store, &fakeExtractor{text: extractedText}, analyzer, nil, nil)

	content := []byte("%PDF-1.4 identical bytes")
	first := p.ProcessFile(context.Background(), pdfInput("first.pdf", content))
	if first.Outcome != OutcomeSuccess {
		t.Fatalf("first outcome = %s (%s)", first.Outcome, first.Error)
	}

	second := p.ProcessFile(context.Background(), pdfInput("second.pdf", content))
	if second.Outcome != OutcomeDuplicate {
		t.Fatalf("second outcome = %s", second.Outcome)
	}
	if second.ApplicationID != first.ApplicationID {
		t.Errorf("duplicate should reference existing record %d, got %d", first.ApplicationID, second.ApplicationID)
	}
	if second.ErrorCode != errcode.DuplicateContent {
		t.Errorf("error code = %d", second.ErrorCode)
	}

	if n := countApplications(t, db); n != 1 {
		t.Errorf("application count = %d, want 1", n)
	}
	if len(store.uploaded) != 1 {
		t.Errorf("duplicate must not reach storage; uploaded %d objects", len(store.uploaded))
	}
	if analyzer.calls != 1 {
		t.Errorf("duplicate must not reach the analysis webhook; calls = %d", analyzer.calls)
	}
}

func TestProcessBatchNonPDFEntry(t *testing.T) {
	db := newTestDB(t)
	p := NewPipeline(db, newFakeStore(), &fakeExtractor{text: extractedText}, passingAnalyzer(), nil, nil)

	files := []FileInput{
		pdfInput("ok.pdf", []byte("%PDF-1.4 one")),
		{Name: "notes.txt", ContentType: "text/plain", Data: []byte("plain text")},
		pdfInput("also_ok.pdf", []byte("%PDF-1.4 two")),
	}
	results := p.ProcessBatch(context.Background(), files)
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}
	if results[1].Outcome != OutcomeFailure || results[1].ErrorCode != errcode.InvalidFileType {
		t.Errorf("entry 1 = %+v", results[1])
	}
	if results[0].Outcome != OutcomeSuccess || results[2].Outcome != OutcomeSuccess {
		t.Errorf("pdf entries should succeed: %+v / %+v", results[0], results[2])
	}
	if n := countApplications(t, db); n != 2 {
		t.Errorf("application count = %d, want 2 (no record for the rejected file)", n)
	}
}

func TestProcessFileStorageFailureCreatesNoRecord(t *testing.T) {
	db := newTestDB(t)
	store := newFakeStore()
	store.failNext = true
	p := NewPipeline(db, store, &fakeExtractor{text: extractedText}, passingAnalyzer(), nil, nil)

	result := p.ProcessFile(context.Background(), pdfInput("resume.pdf", []byte("%PDF-1.4")))
	if result.Outcome != OutcomeFailure {
		t.Fatalf("outcome = %s", result.Outcome)
	}
	if n := countApplications(t, db); n != 0 {
		t.Errorf("application count = %d, want 0", n)
	}
}

func TestProcessFileNoUsableTextMarksFailed(t *testing.T) {
	db := newTestDB(t)
	p := NewPipeline(db, newFakeStore(), &fakeExtractor{text: "   \n "}, passingAnalyzer(), nil, nil)

	result := p.ProcessFile(context.Background(), pdfInput("scan.pdf", []byte("%PDF-1.4 scanned")))
	if result.Outcome != OutcomeFailure {
		t.Fatalf("outcome = %s", result.Outcome)
	}
	if result.ErrorCode != errcode.NoUsableText {
		t.Errorf("error code = %d", result.ErrorCode)
	}

	var app database.Application
	if err := db.First(&app, result.ApplicationID).Error; err != nil {
		t.Fatalf("load application: %v", err)
	}
	if app.Status != database.StatusFailed {
		t.Errorf("status = %q, want failed", app.Status)
	}

	var analyses int64
	db.Model(&database.AIAnalysis{}).Count(&analyses)
	if analyses != 0 {
		t.Errorf("no analysis record may exist for a failed extraction, got %d", analyses)
	}
}

func TestProcessFileWebhookFailureMarksFailed(t *testing.T) {
	db := newTestDB(t)
	p := NewPipeline(db, newFakeStore(), &fakeExtractor{text: extractedText}, &fakeAnalyzer{err: errors.New("webhook unreachable")}, nil, nil)

	result := p.ProcessFile(context.Background(), pdfInput("resume.pdf", []byte("%PDF-1.4")))
	if result.Outcome != OutcomeFailure {
		t.Fatalf("outcome = %s", result.Outcome)
	}

	var app database.Application
	if err := db.First(&app, result.ApplicationID).Error; err != nil {
		t.Fatalf("load application: %v", err)
	}
	if app.Status != database.StatusFailed {
		t.Errorf("status = %q, want failed", app.Status)
	}
	// 抽取文本在 webhook 失败前已入库，便于重新提交时排查。
	if app.Email != "jane.doe@company.com" {
		t.Errorf("email = %q", app.Email)
	}
}

func TestProcessBatchIndependentFailures(t *testing.T) {
	db := newTestDB(t)
	store := newFakeStore()
	p := NewPipeline(db, store, &fakeExtractor{text: extractedText}, passingAnalyzer(), nil, nil)

	files := make([]FileInput, 0, 4)
	for i := 0; i < 3; i++ {
		files = append(files, pdfInput(fmt.Sprintf("resume_%d.pdf", i), []byte(fmt.Sprintf("%%PDF-1.4 body %d", i))))
	}
	files = append(files, FileInput{Name: "bad.docx", ContentType: "application/msword", Data: []byte("doc")})

	results := p.ProcessBatch(context.Background(), files)
	if len(results) != len(files) {
		t.Fatalf("got %d results, want %d", len(results), len(files))
	}
	succeeded := 0
	for _, r := range results {
		if r.Success() {
			succeeded++
		}
	}
	if succeeded != 3 {
		t.Errorf("succeeded = %d, want 3", succeeded)
	}
}

func TestProcessFileEmailSentinel(t *testing.T) {
	db := newTestDB(t)
	p := NewPipeline(db, newFakeStore(), &fakeExtractor{text: "A resume without any contact address at all"}, passingAnalyzer(), nil, nil)

	result := p.ProcessFile(context.Background(), pdfInput("resume.pdf", []byte("%PDF-1.4")))
	if result.Outcome != OutcomeSuccess {
		t.Fatalf("outcome = %s (%s)", result.Outcome, result.Error)
	}
	if result.Email != textproc.EmailNotFound {
		t.Errorf("email = %q, want sentinel", result.Email)
	}
}
