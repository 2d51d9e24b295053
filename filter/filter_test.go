package filter

import (
	"errors"
	"testing"

	"github.com/dhcgn/application-tracker/extract"
	"github.com/dhcgn/application-tracker/model"
)

func message(subject, from, body string) *model.Message {
	return &model.Message{
		ID: "m1",
		Headers: []model.Header{
			{Name: "Subject", Value: subject},
			{Name: "From", Value: from},
		},
		Payload: &model.Part{
			MimeType: "text/plain",
			Data:     extract.EncodeBase64URL([]byte(body)),
		},
	}
}

func TestFilter_Allows_IncludeMode(t *testing.T) {
	f, err := New(Options{IncludeHeader: []string{"Subject: Interview"}})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if !f.Allows(message("Interview invitation", "hr@globex.io", "Hello")) {
		t.Error("Expected message to be allowed (header matches)")
	}
	if f.Allows(message("Newsletter", "hr@globex.io", "Interview tips")) {
		t.Error("Expected message to be filtered out (header doesn't match)")
	}
}

func TestFilter_Allows_ExcludeMode(t *testing.T) {
	f, err := New(Options{ExcludeHeader: []string{"From: .*@linkedin\\.com"}})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if !f.Allows(message("Application received", "jobs@acme.com", "Thanks")) {
		t.Error("Expected message to be allowed (sender not excluded)")
	}
	if f.Allows(message("Jobs you may like", "jobs-noreply@linkedin.com", "Thanks")) {
		t.Error("Expected message to be filtered out (sender excluded)")
	}
}

func TestFilter_MutuallyExclusive(t *testing.T) {
	_, err := New(Options{
		IncludeHeader: []string{"test"},
		ExcludeBody:   []string{"spam"},
	})
	if !errors.Is(err, ErrModeConflict) {
		t.Errorf("New() error = %v, want ErrModeConflict", err)
	}
}

func TestFilter_InvalidPattern(t *testing.T) {
	if _, err := New(Options{IncludeBody: []string{"("}}); err == nil {
		t.Error("Expected error for invalid regular expression")
	}
}

func TestFilter_NoFilters(t *testing.T) {
	f, err := New(Options{IncludeHeader: []string{"  "}})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if f.Active() {
		t.Error("blank patterns should not activate the filter")
	}
	if !f.Allows(message("Any", "a@b.c", "Any body content")) {
		t.Error("Expected message to be allowed when no filters are active")
	}

	var nilFilter *Filter
	if !nilFilter.Allows(message("Any", "a@b.c", "x")) {
		t.Error("nil filter should allow everything")
	}
}

func TestFilter_BodyFiltering(t *testing.T) {
	f, err := New(Options{IncludeBody: []string{"(?i)coding challenge"}})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if !f.Allows(message("Next steps", "hr@acme.com", "Please complete the Coding Challenge")) {
		t.Error("Expected message to be allowed (body matches)")
	}
	if f.Allows(message("Next steps", "hr@acme.com", "We will call you")) {
		t.Error("Expected message to be filtered out (body doesn't match)")
	}

	snippetOnly := &model.Message{ID: "m2", Snippet: "coding challenge inside"}
	if !f.Allows(snippetOnly) {
		t.Error("Expected snippet to be used when there is no text part")
	}
}

func TestHeaderText(t *testing.T) {
	tests := []struct {
		name    string
		headers []model.Header
		want    string
	}{
		{name: "empty", headers: nil, want: ""},
		{
			name:    "ordered lines",
			headers: []model.Header{{Name: "Subject", Value: "Hi"}, {Name: "From", Value: "a@b.c"}},
			want:    "Subject: Hi\nFrom: a@b.c\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HeaderText(tt.headers); got != tt.want {
				t.Errorf("HeaderText() = %q, want %q", got, tt.want)
			}
		})
	}
}
