package guess

import (
	"regexp"
	"strings"
)

const maxTitleRunes = 120

var (
	appliedTitle = regexp.MustCompile(`(?i)(application for|applied for|applied to|your application[:\-]\s*)(.+)`)
	labeledTitle = regexp.MustCompile(`(?i)(position|role|title)[:\-]\s*(.+)`)
)

// Title guesses the job title from a subject line. It never fails: when no
// known phrasing matches, the subject itself (capped at 120 characters) is
// the best available guess.
func Title(subject string) string {
	if subject == "" {
		return ""
	}

	if m := appliedTitle.FindStringSubmatch(subject); m != nil {
		return strings.Trim(strings.TrimSpace(m[2]), " -:")
	}
	if m := labeledTitle.FindStringSubmatch(subject); m != nil {
		return strings.TrimSpace(m[2])
	}

	runes := []rune(subject)
	if len(runes) < maxTitleRunes {
		return strings.TrimSpace(subject)
	}
	trimmed := []rune(strings.TrimSpace(subject))
	if len(trimmed) > maxTitleRunes {
		trimmed = trimmed[:maxTitleRunes]
	}
	return string(trimmed)
}
