// Package gmail searches and reads messages through the Gmail API.
package gmail

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/dhcgn/application-tracker/model"
	"github.com/dhcgn/application-tracker/source"
)

const user = "me"

// DefaultQuery targets application vocabulary and the usual job board senders.
const DefaultQuery = `subject:(application OR "application received" OR applied OR "we received your application" OR interview OR offer OR rejected) OR (from:linkedin.com OR from:indeed.com OR from:jobs@)`

var ErrCredentialsMissing = errors.New("gmail credentials file not found")

type Options struct {
	CredentialsPath string
	TokenPath       string
}

type Client struct {
	srv *gmail.Service
}

var _ source.Source = (*Client)(nil)

// NewClient builds an authorized Gmail client. The OAuth client secret is
// read from CredentialsPath; the user token is cached at TokenPath and
// obtained interactively on first use.
func NewClient(ctx context.Context, opts Options) (*Client, error) {
	secret, err := os.ReadFile(opts.CredentialsPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrCredentialsMissing, opts.CredentialsPath)
	}
	if err != nil {
		return nil, fmt.Errorf("read client secret file: %w", err)
	}

	httpClient, err := oauthClient(ctx, secret, opts.TokenPath, os.Stdin, os.Stdout)
	if err != nil {
		return nil, err
	}

	srv, err := gmail.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("create gmail service: %w", err)
	}
	return &Client{srv: srv}, nil
}

// ListPage returns one page of message ids matching query.
func (c *Client) ListPage(ctx context.Context, query, pageToken string, pageSize int) (source.Page, error) {
	call := c.srv.Users.Messages.List(user).
		Q(query).
		MaxResults(int64(pageSize)).
		Context(ctx)
	if pageToken != "" {
		call = call.PageToken(pageToken)
	}

	res, err := call.Do()
	if err != nil {
		return source.Page{}, fmt.Errorf("list messages: %w", err)
	}

	page := source.Page{NextPageToken: res.NextPageToken}
	for _, m := range res.Messages {
		page.IDs = append(page.IDs, m.Id)
	}
	slog.Debug("gmail page listed", "ids", len(page.IDs), "hasNext", page.NextPageToken != "")
	return page, nil
}

// Fetch reads the full message with headers and body parts.
func (c *Client) Fetch(ctx context.Context, id string) (*model.Message, error) {
	msg, err := c.srv.Users.Messages.Get(user, id).Format("full").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("get message %s: %w", id, err)
	}
	return toMessage(msg), nil
}

// Close is a no-op; the HTTP client holds no per-run resources.
func (c *Client) Close() error {
	return nil
}

func toMessage(msg *gmail.Message) *model.Message {
	out := &model.Message{
		ID:       msg.Id,
		ThreadID: msg.ThreadId,
		Snippet:  msg.Snippet,
	}
	if msg.Payload != nil {
		out.Headers = toHeaders(msg.Payload.Headers)
		out.Payload = toPart(msg.Payload)
	}
	return out
}

func toPart(p *gmail.MessagePart) *model.Part {
	if p == nil {
		return nil
	}
	part := &model.Part{
		MimeType: p.MimeType,
		Headers:  toHeaders(p.Headers),
	}
	if p.Body != nil {
		part.Data = p.Body.Data
	}
	for _, child := range p.Parts {
		if child != nil {
			part.Parts = append(part.Parts, toPart(child))
		}
	}
	return part
}

func toHeaders(headers []*gmail.MessagePartHeader) []model.Header {
	if len(headers) == 0 {
		return nil
	}
	out := make([]model.Header, 0, len(headers))
	for _, h := range headers {
		if h != nil {
			out = append(out, model.Header{Name: h.Name, Value: h.Value})
		}
	}
	return out
}
