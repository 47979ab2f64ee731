package activitylog

import (
	"regexp"
	"strings"
	"time"

	"github.com/tendant/simple-secure/pkg/principal"
)

type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

const maxEventLength = 80

// Entry is one activity log row.
type Entry struct {
	ID        int64                  `json:"id"`
	CreatedAt time.Time              `json:"created_at"`
	Severity  Severity               `json:"severity"`
	Event     string                 `json:"event"`
	Message   string                 `json:"message"`
	Context   map[string]interface{} `json:"context,omitempty"`
	UserID    principal.ID           `json:"user_id,omitempty"`
	SiteID    int64                  `json:"site_id,omitempty"`
}

// ParseSeverity returns the severity named by s and whether it was recognised.
func ParseSeverity(s string) (Severity, bool) {
	switch sev := Severity(strings.ToLower(strings.TrimSpace(s))); sev {
	case SeverityInfo, SeverityWarning, SeverityError:
		return sev, true
	default:
		return "", false
	}
}

// NormalizeSeverity maps unknown severities to info.
func NormalizeSeverity(s string) Severity {
	if sev, ok := ParseSeverity(s); ok {
		return sev
	}
	return SeverityInfo
}

// SanitizeEvent lowercases the event name and keeps only [a-z0-9_-].
func SanitizeEvent(event string) string {
	event = strings.ToLower(event)
	var b strings.Builder
	for _, r := range event {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' || r == '-' {
			b.WriteRune(r)
		}
	}
	out := b.String()
	if len(out) > maxEventLength {
		out = out[:maxEventLength]
	}
	return out
}

var (
	scriptOrStyle = regexp.MustCompile(`(?is)<(script|style)[^>]*>.*?</(script|style)>`)
	anyTag        = regexp.MustCompile(`(?s)<[^>]*>`)
)

// StripTags removes markup from a message, dropping script and style bodies.
func StripTags(message string) string {
	message = scriptOrStyle.ReplaceAllString(message, "")
	message = anyTag.ReplaceAllString(message, "")
	return strings.TrimSpace(message)
}
