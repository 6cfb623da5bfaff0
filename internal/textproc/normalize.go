// Package textproc cleans raw text coming back from PDF extraction and
// derives applicant-facing fields from it. Extraction engines tend to insert
// stray whitespace between individual characters, so the cleanup here is
// aggressive about removing whitespace between adjacent word characters.
package textproc

import (
	"regexp"
	"strings"
)

// EmailNotFound is returned by ExtractEmail when no address is present.
const EmailNotFound = "no-email-found"

// FallbackName is used when a filename yields no usable display name.
const FallbackName = "Unknown Applicant"

var (
	newlineRe     = regexp.MustCompile(`\r?\n`)
	interCharWSRe = regexp.MustCompile(`([a-zA-Z0-9])\s+([a-zA-Z0-9@.])`)
	aroundAtRe    = regexp.MustCompile(`\s*@\s*`)
	aroundDotRe   = regexp.MustCompile(`\s*\.\s*`)
	multiSpaceRe  = regexp.MustCompile(`\s+`)

	emailRe = regexp.MustCompile(`\b[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}\b`)

	fileExtRe = regexp.MustCompile(`\.[^/.]+$`)
	nameSepRe = regexp.MustCompile(`[_\-]+`)
)

// Normalize cleans raw extracted resume text: newlines become spaces,
// whitespace wedged between adjacent word characters is removed, runs of
// whitespace collapse to a single space, and the result is trimmed.
// Normalize is idempotent.
func Normalize(raw string) string {
	s := newlineRe.ReplaceAllString(raw, " ")

	// RE2 has no lookahead, so removing whitespace between adjacent word
	// characters has to run to a fixpoint: each pass consumes the second
	// character of a match and may expose a new adjacency.
	for {
		next := interCharWSRe.ReplaceAllString(s, "$1$2")
		if next == s {
			break
		}
		s = next
	}

	s = aroundAtRe.ReplaceAllString(s, "@")
	s = aroundDotRe.ReplaceAllString(s, ".")
	s = multiSpaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// ExtractEmail returns the first email address in text, or EmailNotFound.
// It never fails; callers can store the result unconditionally.
func ExtractEmail(text string) string {
	if match := emailRe.FindString(text); match != "" {
		return match
	}
	return EmailNotFound
}

// DisplayNameFromFilename derives an applicant display name from an uploaded
// filename: the extension is stripped, runs of underscores and hyphens become
// single spaces, and whitespace is collapsed. An empty result falls back to
// FallbackName.
func DisplayNameFromFilename(filename string) string {
	name := fileExtRe.ReplaceAllString(filename, "")
	name = nameSepRe.ReplaceAllString(name, " ")
	name = multiSpaceRe.ReplaceAllString(name, " ")
	name = strings.TrimSpace(name)
	if name == "" {
		return FallbackName
	}
	return name
}
