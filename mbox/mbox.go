// Package mbox serves messages from a local mbox file.
package mbox

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	mboxlib "github.com/emersion/go-mbox"

	"github.com/dhcgn/application-tracker/extract"
	"github.com/dhcgn/application-tracker/filter"
	"github.com/dhcgn/application-tracker/model"
	"github.com/dhcgn/application-tracker/rawmail"
	"github.com/dhcgn/application-tracker/source"
)

var ErrUnknownID = errors.New("message id not found in mbox")

type Options struct {
	Path string
}

type entry struct {
	msg *model.Message
	// lower-cased headers and body text, matched against queries
	text string
}

// Reader loads the whole mbox file up front. Messages that cannot be
// parsed are logged and skipped; repeated ids keep their first message.
type Reader struct {
	path    string
	logger  *slog.Logger
	entries []entry
	byID    map[string]int

	searched bool
	query    string
	ids      []string
}

var _ source.Source = (*Reader)(nil)

func NewReader(opts Options, logger *slog.Logger) (*Reader, error) {
	path := strings.TrimSpace(opts.Path)
	if path == "" {
		return nil, fmt.Errorf("mbox path is empty")
	}
	if logger == nil {
		logger = slog.Default()
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open mbox: %w", err)
	}
	defer file.Close()

	r := &Reader{path: path, logger: logger, byID: make(map[string]int)}
	if err := r.load(file); err != nil {
		return nil, err
	}
	logger.Debug("mbox loaded", "path", path, "messages", len(r.entries))
	return r, nil
}

func (r *Reader) load(src io.Reader) error {
	reader := mboxlib.NewReader(src)
	for idx := 0; ; idx++ {
		msgReader, err := reader.NextMessage()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("mbox message %d: %w", idx, err)
		}

		raw, err := io.ReadAll(msgReader)
		if err != nil {
			return fmt.Errorf("mbox message %d read: %w", idx, err)
		}

		msg, err := rawmail.Parse(raw)
		if err != nil {
			r.logger.Warn("skipping unparsable mbox message", "index", idx, "err", err)
			continue
		}
		if _, dup := r.byID[msg.ID]; dup {
			r.logger.Debug("skipping repeated mbox message", "index", idx, "messageID", msg.ID)
			continue
		}

		r.byID[msg.ID] = len(r.entries)
		r.entries = append(r.entries, entry{msg: msg, text: searchText(msg)})
	}
}

func searchText(msg *model.Message) string {
	body, ok := extract.Text(msg.Payload)
	if !ok {
		body = msg.Snippet
	}
	return strings.ToLower(filter.HeaderText(msg.Headers) + "\n" + body)
}

// ListPage returns ids in file order. A non-empty query keeps messages
// whose headers or text contain it, ignoring case.
func (r *Reader) ListPage(ctx context.Context, query, pageToken string, pageSize int) (source.Page, error) {
	if err := ctx.Err(); err != nil {
		return source.Page{}, err
	}
	if !r.searched || query != r.query {
		r.search(query)
	}
	return source.OffsetPage(r.ids, pageToken, pageSize)
}

func (r *Reader) search(query string) {
	needle := strings.ToLower(strings.TrimSpace(query))
	r.ids = r.ids[:0]
	for _, e := range r.entries {
		if needle == "" || strings.Contains(e.text, needle) {
			r.ids = append(r.ids, e.msg.ID)
		}
	}
	r.query = query
	r.searched = true
}

func (r *Reader) Fetch(ctx context.Context, id string) (*model.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	i, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownID, id)
	}
	return r.entries[i].msg, nil
}

// Len reports how many distinct messages were loaded.
func (r *Reader) Len() int {
	return len(r.entries)
}

func (r *Reader) Close() error {
	r.entries = nil
	r.byID = nil
	return nil
}
