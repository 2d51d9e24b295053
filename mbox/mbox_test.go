package mbox

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/dhcgn/application-tracker/extract"
	"github.com/dhcgn/application-tracker/source"
)

const fixture = "testdata/applications.mbox"

func TestNewReader_LoadsDistinctMessages(t *testing.T) {
	r, err := NewReader(Options{Path: fixture}, nil)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	defer r.Close()

	if r.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", r.Len())
	}
}

func TestReader_ListPage(t *testing.T) {
	r, err := NewReader(Options{Path: fixture}, nil)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}

	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{name: "no query", query: "", want: []string{"acme-1@acme.com", "globex-1@globex.io", ""}},
		{name: "subject match", query: "application", want: []string{"acme-1@acme.com"}},
		{name: "body match ignores case", query: "INTERVIEW", want: []string{"globex-1@globex.io"}},
		{name: "no match", query: "offer letter", want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ids, err := source.CollectIDs(context.Background(), r, tt.query, 10)
			if err != nil {
				t.Fatalf("CollectIDs: %v", err)
			}
			if len(ids) != len(tt.want) {
				t.Fatalf("got %v, want %v", ids, tt.want)
			}
			for i, want := range tt.want {
				if want == "" {
					if !strings.HasPrefix(ids[i], "sha256:") {
						t.Errorf("ids[%d] = %q, want content hash id", i, ids[i])
					}
					continue
				}
				if ids[i] != want {
					t.Errorf("ids[%d] = %q, want %q", i, ids[i], want)
				}
			}
		})
	}
}

func TestReader_Paging(t *testing.T) {
	r, err := NewReader(Options{Path: fixture}, nil)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}

	first, err := r.ListPage(context.Background(), "", "", 2)
	if err != nil {
		t.Fatalf("ListPage: %v", err)
	}
	if len(first.IDs) != 2 || first.NextPageToken != "2" {
		t.Fatalf("first page = %+v", first)
	}

	second, err := r.ListPage(context.Background(), "", first.NextPageToken, 2)
	if err != nil {
		t.Fatalf("ListPage: %v", err)
	}
	if len(second.IDs) != 1 || second.NextPageToken != "" {
		t.Fatalf("second page = %+v", second)
	}
}

func TestReader_Fetch(t *testing.T) {
	r, err := NewReader(Options{Path: fixture}, nil)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}

	msg, err := r.Fetch(context.Background(), "globex-1@globex.io")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	text, ok := extract.Text(msg.Payload)
	if !ok || !strings.Contains(text, "interview") {
		t.Errorf("text = %q, ok = %v", text, ok)
	}

	first, err := r.Fetch(context.Background(), "acme-1@acme.com")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if !strings.Contains(first.Snippet, "Thank you for applying") {
		t.Errorf("repeated message replaced the first one: snippet %q", first.Snippet)
	}

	if _, err := r.Fetch(context.Background(), "missing"); !errors.Is(err, ErrUnknownID) {
		t.Errorf("err = %v, want ErrUnknownID", err)
	}
}

func TestReader_QuotedFromLineStaysInBody(t *testing.T) {
	r, err := NewReader(Options{Path: fixture}, nil)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}

	ids, err := source.CollectIDs(context.Background(), r, "weekly digest", 10)
	if err != nil || len(ids) != 1 {
		t.Fatalf("ids = %v, err = %v", ids, err)
	}
	msg, err := r.Fetch(context.Background(), ids[0])
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	text, _ := extract.Text(msg.Payload)
	if !strings.Contains(text, "From the archive") {
		t.Errorf("quoted From line missing from body: %q", text)
	}
}

func TestNewReader_Errors(t *testing.T) {
	if _, err := NewReader(Options{Path: "  "}, nil); err == nil {
		t.Error("expected error for empty path")
	}
	_, err := NewReader(Options{Path: filepath.Join(t.TempDir(), "missing.mbox")}, nil)
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("err = %v, want os.ErrNotExist", err)
	}
}

func TestNewReader_EmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.mbox")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	r, err := NewReader(Options{Path: path}, nil)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}

	page, err := r.ListPage(context.Background(), "", "", 10)
	if err != nil {
		t.Fatalf("ListPage: %v", err)
	}
	if !reflect.DeepEqual(page, source.Page{}) {
		t.Errorf("page = %+v, want empty", page)
	}
}
