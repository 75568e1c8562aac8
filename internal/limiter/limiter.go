// Package limiter detects remote quota-exhaustion signals in Gemini errors.
package limiter

import (
	"net/http"
	"strings"
)

// Keywords that mark a Gemini error as quota exhaustion. Matched case-insensitively.
var geminiPatterns = []string{
	"429",
	"resource_exhausted",
	"resource exhausted",
	"quota",
}

// Detector checks error text and status codes for rate limit signals.
type Detector struct {
	keywords []string
}

// New creates a Detector for the Gemini API.
func New() *Detector {
	return &Detector{keywords: geminiPatterns}
}

// DetectLimit returns true if the text contains a rate limit signal.
func (d *Detector) DetectLimit(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range d.keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// DetectStatus returns true for HTTP 429 Too Many Requests.
func (d *Detector) DetectStatus(code int) bool {
	return code == http.StatusTooManyRequests
}

// Detect combines the status code and text checks.
func (d *Detector) Detect(code int, text string) bool {
	return d.DetectStatus(code) || d.DetectLimit(text)
}
