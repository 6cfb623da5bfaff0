// Package analysis talks to the external automation workflow that scores a
// candidate, and parses its loosely structured responses.
package analysis

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrBadPayload marks an analysis payload that could not be parsed.
// Callers treat it as an upstream failure, never as a crash.
var ErrBadPayload = errors.New("unparsable analysis payload")

// Qualification outcomes reported by the workflow.
const (
	QualificationPass = "PASS"
	QualificationFail = "FAIL"
)

// Result is a parsed candidate evaluation.
type Result struct {
	Summary             string
	QualificationStatus string
	FitScore            int
	Skills              []string
	InterviewQuestions  []string
	AnalyzedAt          time.Time
}

type rawResult struct {
	Summary             string   `json:"summary"`
	QualificationStatus string   `json:"qualification_status"`
	FitScore            float64  `json:"fit_score"`
	Skills              []string `json:"skills"`
	InterviewQuestions  []string `json:"interview_questions"`
}

// ParseResult decodes the serialized evaluation embedded in a workflow
// response. The workflow emits hash-rocket key/value delimiters
// ("key"=>"value"); those are rewritten to colons before JSON decoding.
// Values containing "=>" are an accepted casualty of that rewrite.
func ParseResult(raw string) (*Result, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("%w: empty payload", ErrBadPayload)
	}

	jsonText := strings.ReplaceAll(raw, "=>", ":")

	var decoded rawResult
	if err := json.Unmarshal([]byte(jsonText), &decoded); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadPayload, err)
	}

	qualification := strings.ToUpper(strings.TrimSpace(decoded.QualificationStatus))
	switch qualification {
	case QualificationPass, QualificationFail:
	default:
		return nil, fmt.Errorf("%w: unknown qualification status %q", ErrBadPayload, decoded.QualificationStatus)
	}

	score := int(decoded.FitScore)
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	result := &Result{
		Summary:             strings.TrimSpace(decoded.Summary),
		QualificationStatus: qualification,
		FitScore:            score,
		Skills:              decoded.Skills,
		InterviewQuestions:  decoded.InterviewQuestions,
		AnalyzedAt:          time.Now().UTC(),
	}
	if result.Skills == nil {
		result.Skills = []string{}
	}
	if result.InterviewQuestions == nil {
		result.InterviewQuestions = []string{}
	}
	return result, nil
}
