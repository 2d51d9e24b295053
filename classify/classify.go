// Package classify labels application mail with a lifecycle status.
package classify

import (
	"regexp"
	"strings"

	"github.com/dhcgn/application-tracker/model"
)

// Category pairs a status with the patterns that trigger it.
type Category struct {
	Status   model.Status
	Patterns []*regexp.Regexp
}

// Categories is evaluated in order; the first category with a matching
// pattern decides the status. Offer precedes Interview, and Rejected
// precedes Submitted.
var Categories = []Category{
	{Status: model.StatusOffer, Patterns: mustCompile(
		`\boffer\b`,
		`congratulations.*offer`,
		`\boffer letter\b`,
	)},
	{Status: model.StatusInterview, Patterns: mustCompile(
		`\binterview\b`,
		`\bschedule.*interview\b`,
		`\bphone screen\b`,
		`\btechnical interview\b`,
	)},
	{Status: model.StatusRejected, Patterns: mustCompile(
		`\bnot selected\b`,
		`\bwe regret\b`,
		`\bunfortunately\b`,
		`\brejected\b`,
	)},
	{Status: model.StatusSubmitted, Patterns: mustCompile(
		`\bapplication received\b`,
		`\bthank you for applying\b`,
		`\bapplication submitted\b`,
	)},
	{Status: model.StatusAssessment, Patterns: mustCompile(
		`\bassess(ment|ment link)\b`,
		`\bcode challenge\b`,
		`\bonline test\b`,
	)},
}

// Status returns the label for text, Unknown when nothing matches.
func Status(text string) model.Status {
	status, _ := Match(text)
	return status
}

// Match is Status plus the pattern that decided it (empty for Unknown).
func Match(text string) (model.Status, string) {
	if text == "" {
		return model.StatusUnknown, ""
	}

	lower := strings.ToLower(text)
	for _, category := range Categories {
		for _, re := range category.Patterns {
			if re.MatchString(lower) {
				return category.Status, re.String()
			}
		}
	}
	return model.StatusUnknown, ""
}

func mustCompile(patterns ...string) []*regexp.Regexp {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, pattern := range patterns {
		compiled = append(compiled, regexp.MustCompile(pattern))
	}
	return compiled
}
