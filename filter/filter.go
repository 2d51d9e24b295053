// Package filter narrows a run to messages whose headers or body text
// match user supplied regular expressions.
package filter

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/dhcgn/application-tracker/extract"
	"github.com/dhcgn/application-tracker/model"
)

var ErrModeConflict = errors.New("include and exclude filters are mutually exclusive")

// Options captures the filtering configuration.
type Options struct {
	IncludeHeader []string
	IncludeBody   []string
	ExcludeHeader []string
	ExcludeBody   []string
}

// Filter holds compiled regex patterns for filtering messages.
type Filter struct {
	includeMode    bool
	excludeMode    bool
	includeHeader  []*regexp.Regexp
	includeBody    []*regexp.Regexp
	excludeHeader  []*regexp.Regexp
	excludeBody    []*regexp.Regexp
	needHeaderText bool
	needBodyText   bool
}

// New compiles the patterns in opts. Include and exclude patterns cannot
// be combined.
func New(opts Options) (*Filter, error) {
	includeHeader, err := compilePatterns(opts.IncludeHeader)
	if err != nil {
		return nil, fmt.Errorf("compile include-header pattern: %w", err)
	}
	includeBody, err := compilePatterns(opts.IncludeBody)
	if err != nil {
		return nil, fmt.Errorf("compile include-body pattern: %w", err)
	}
	excludeHeader, err := compilePatterns(opts.ExcludeHeader)
	if err != nil {
		return nil, fmt.Errorf("compile exclude-header pattern: %w", err)
	}
	excludeBody, err := compilePatterns(opts.ExcludeBody)
	if err != nil {
		return nil, fmt.Errorf("compile exclude-body pattern: %w", err)
	}

	includeActive := len(includeHeader) > 0 || len(includeBody) > 0
	excludeActive := len(excludeHeader) > 0 || len(excludeBody) > 0
	if includeActive && excludeActive {
		return nil, ErrModeConflict
	}

	return &Filter{
		includeMode:    includeActive,
		excludeMode:    excludeActive,
		includeHeader:  includeHeader,
		includeBody:    includeBody,
		excludeHeader:  excludeHeader,
		excludeBody:    excludeBody,
		needHeaderText: len(includeHeader) > 0 || len(excludeHeader) > 0,
		needBodyText:   len(includeBody) > 0 || len(excludeBody) > 0,
	}, nil
}

// Active reports whether any pattern was configured.
func (f *Filter) Active() bool {
	return f != nil && (f.includeMode || f.excludeMode)
}

// Allows reports whether msg passes the filter. Header patterns see the
// headers as "Name: Value" lines; body patterns see the extracted text,
// or the snippet when no text part exists. A nil filter allows everything.
func (f *Filter) Allows(msg *model.Message) bool {
	if !f.Active() {
		return true
	}

	var headerText, bodyText string
	if f.needHeaderText {
		headerText = HeaderText(msg.Headers)
	}
	if f.needBodyText {
		var ok bool
		if bodyText, ok = extract.Text(msg.Payload); !ok {
			bodyText = msg.Snippet
		}
	}
	return f.Match(headerText, bodyText)
}

// Match applies the patterns to already rendered header and body text.
func (f *Filter) Match(headerText, bodyText string) bool {
	if f.includeMode {
		return matchAny(f.includeHeader, headerText) || matchAny(f.includeBody, bodyText)
	}

	if f.excludeMode {
		if matchAny(f.excludeHeader, headerText) || matchAny(f.excludeBody, bodyText) {
			return false
		}
	}

	return true
}

// HeaderText renders headers one "Name: Value" per line, in order.
func HeaderText(headers []model.Header) string {
	var b strings.Builder
	for _, h := range headers {
		b.WriteString(h.Name)
		b.WriteString(": ")
		b.WriteString(h.Value)
		b.WriteByte('\n')
	}
	return b.String()
}

func compilePatterns(patterns []string) ([]*regexp.Regexp, error) {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, pattern := range patterns {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" {
			continue
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("compile %q: %w", pattern, err)
		}
		compiled = append(compiled, re)
	}
	return compiled, nil
}

func matchAny(patterns []*regexp.Regexp, text string) bool {
	for _, re := range patterns {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}
