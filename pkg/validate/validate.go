// Package validate checks and normalises user input before it reaches
// the chat engine, and escapes engine output before it leaves the API.
package validate

import (
	"regexp"
	"strings"
)

// Input length bounds.
const (
	MaxMessageLen   = 2000
	MaxSymptomsLen  = 1000
	MinSessionIDLen = 10
	MaxSessionIDLen = 100
)

var (
	sessionIDPattern = regexp.MustCompile(`^[a-zA-Z0-9-]+$`)
	symptomPattern   = regexp.MustCompile(`^[a-zA-Z0-9\s,.\-()]+$`)

	// suspiciousPatterns flag likely injection attempts in free text.
	// This is a second line of defence behind the security gate, applied
	// to the message field itself rather than the raw request.
	suspiciousPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)<script.*?>`),
		regexp.MustCompile(`(?i)javascript:`),
		regexp.MustCompile(`(?i)on\w+\s*=`),
		regexp.MustCompile(`(?i)eval\s*\(`),
		regexp.MustCompile(`(?i)exec\s*\(`),
		regexp.MustCompile(`(?i)system\s*\(`),
		regexp.MustCompile(`(?i)import\s+`),
		regexp.MustCompile(`(?i)from\s+\w+\s+import`),
		regexp.MustCompile(`__\w+__`),
		regexp.MustCompile(`\.\./`),
		regexp.MustCompile(`(?i)file://`),
		regexp.MustCompile(`(?i)https?://`),
	}

	separatorRun = regexp.MustCompile(`[;|]+`)
	commaRun     = regexp.MustCompile(`,+`)
)

// SessionID validates a session identifier: 10 to 100 characters,
// alphanumeric and hyphens only (UUIDs pass).
func SessionID(id string) (ok bool, reason string) {
	if id == "" {
		return false, "session ID must be a non-empty string"
	}
	if len(id) < MinSessionIDLen || len(id) > MaxSessionIDLen {
		return false, "invalid session ID format"
	}
	if !sessionIDPattern.MatchString(id) {
		return false, "session ID contains invalid characters"
	}
	return true, ""
}

// Message validates a chat message and returns the cleaned text.
func Message(message string) (ok bool, cleaned string, reason string) {
	if strings.TrimSpace(message) == "" {
		return false, "", "message cannot be empty"
	}
	if len(message) > MaxMessageLen {
		return false, "", "message is too long (max 2000 characters)"
	}
	for _, p := range suspiciousPatterns {
		if p.MatchString(message) {
			return false, "", "invalid content detected in message"
		}
	}
	cleaned = strings.Join(strings.Fields(message), " ")
	if cleaned == "" {
		return false, "", "no valid content found after cleaning"
	}
	return true, cleaned, ""
}

// Symptoms validates a symptom description and returns the cleaned,
// separator-normalised text.
func Symptoms(symptoms string) (ok bool, cleaned string, reason string) {
	if strings.TrimSpace(symptoms) == "" {
		return false, "", "symptoms cannot be empty"
	}
	if len(symptoms) > MaxSymptomsLen {
		return false, "", "symptoms description is too long (max 1000 characters)"
	}
	for _, p := range suspiciousPatterns {
		if p.MatchString(symptoms) {
			return false, "", "invalid characters detected in symptoms"
		}
	}

	cleaned = strings.Join(strings.Fields(symptoms), " ")
	cleaned = separatorRun.ReplaceAllString(cleaned, ",")
	cleaned = commaRun.ReplaceAllString(cleaned, ",")
	cleaned = strings.Trim(cleaned, ",")
	if cleaned == "" {
		return false, "", "no valid symptoms found after cleaning"
	}
	if !symptomPattern.MatchString(cleaned) {
		return false, "", "symptoms contain invalid characters"
	}
	return true, cleaned, ""
}

// outputReplacer HTML-entity encodes the characters that matter for
// XSS when responses are embedded in a page.
var outputReplacer = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#x27;",
)

// SanitizeOutput escapes text destined for clients.
func SanitizeOutput(text string) string {
	if text == "" {
		return ""
	}
	return outputReplacer.Replace(text)
}
