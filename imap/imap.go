// Package imap reads messages from a mailbox folder over IMAP.
package imap

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"slices"
	"strconv"
	"strings"

	imapv2 "github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"

	"github.com/dhcgn/application-tracker/model"
	"github.com/dhcgn/application-tracker/rawmail"
	"github.com/dhcgn/application-tracker/source"
)

var (
	ErrUnknownID       = errors.New("message id was not listed")
	ErrMessageNotFound = errors.New("message not found on server")
)

type Options struct {
	Host               string
	Port               int
	Username           string
	Password           string
	UseTLS             bool
	StartTLS           bool
	InsecureSkipVerify bool
	Folder             string
}

// Client is a read-only view of one folder. Message ids are the
// Message-Id headers of the listed messages; messages without one get a
// synthetic id built from the folder's UIDVALIDITY and the UID.
type Client struct {
	opts        Options
	logger      *slog.Logger
	client      *imapclient.Client
	cleanup     func()
	uidValidity uint32

	searched bool
	query    string
	uidKeys  []string
	uids     map[string]imapv2.UID
}

var _ source.Source = (*Client)(nil)

func NewClient(ctx context.Context, opts Options, logger *slog.Logger) (*Client, error) {
	if opts.Host == "" {
		return nil, fmt.Errorf("imap host is empty")
	}
	if opts.Port <= 0 {
		return nil, fmt.Errorf("imap port must be positive")
	}
	if logger == nil {
		logger = slog.Default()
	}

	c := &Client{opts: opts, logger: logger, uids: make(map[string]imapv2.UID)}
	if err := c.dial(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Client) dial(ctx context.Context) error {
	address := net.JoinHostPort(c.opts.Host, strconv.Itoa(c.opts.Port))
	options := &imapclient.Options{}

	if c.opts.UseTLS || c.opts.StartTLS {
		options.TLSConfig = &tls.Config{
			ServerName:         c.opts.Host,
			InsecureSkipVerify: c.opts.InsecureSkipVerify,
		}
	}

	var (
		client *imapclient.Client
		err    error
	)
	switch {
	case c.opts.UseTLS:
		client, err = imapclient.DialTLS(address, options)
	case c.opts.StartTLS:
		client, err = imapclient.DialStartTLS(address, options)
	default:
		client, err = imapclient.DialInsecure(address, options)
	}
	if err != nil {
		return fmt.Errorf("dial imap %s: %w", address, err)
	}

	if err := client.Login(c.opts.Username, c.opts.Password).Wait(); err != nil {
		_ = client.Close()
		return fmt.Errorf("imap login failed: %w", err)
	}

	selected, err := client.Select(c.folder(), &imapv2.SelectOptions{ReadOnly: true}).Wait()
	if err != nil {
		_ = client.Close()
		return fmt.Errorf("select mailbox %s: %w", c.folder(), err)
	}
	c.uidValidity = selected.UIDValidity

	c.logger.Debug("imap connection established", "address", address, "user", c.opts.Username,
		"folder", c.folder(), "messages", selected.NumMessages, "tls", c.opts.UseTLS)

	stopClose := context.AfterFunc(ctx, func() {
		_ = client.Close()
	})

	c.client = client
	c.cleanup = func() {
		stopClose()
		if ctx.Err() == nil {
			if err := client.Logout().Wait(); err != nil {
				c.logger.Warn("imap logout failed", "err", err)
			}
		}
		if err := client.Close(); err != nil {
			c.logger.Debug("imap connection closed", "err", err)
		}
	}
	return nil
}

// ListPage searches the folder once per query, newest first, and pages
// through the result by offset. Each page is resolved to message ids with
// one ENVELOPE fetch.
func (c *Client) ListPage(ctx context.Context, query, pageToken string, pageSize int) (source.Page, error) {
	if err := ctx.Err(); err != nil {
		return source.Page{}, err
	}
	if !c.searched || query != c.query {
		if err := c.search(query); err != nil {
			return source.Page{}, err
		}
	}

	page, err := source.OffsetPage(c.uidKeys, pageToken, pageSize)
	if err != nil {
		return source.Page{}, err
	}
	if len(page.IDs) == 0 {
		return page, nil
	}

	ids, err := c.resolve(page.IDs)
	if err != nil {
		return source.Page{}, err
	}
	return source.Page{IDs: ids, NextPageToken: page.NextPageToken}, nil
}

func (c *Client) search(query string) error {
	criteria := &imapv2.SearchCriteria{}
	if q := strings.TrimSpace(query); q != "" {
		criteria.Text = []string{q}
	}

	data, err := c.client.UIDSearch(criteria, nil).Wait()
	if err != nil {
		return fmt.Errorf("search mailbox %s: %w", c.folder(), err)
	}

	uids := data.AllUIDs()
	slices.Reverse(uids)

	c.uidKeys = make([]string, len(uids))
	for i, uid := range uids {
		c.uidKeys[i] = strconv.FormatUint(uint64(uid), 10)
	}
	c.query = query
	c.searched = true
	c.logger.Debug("imap search done", "folder", c.folder(), "query", query, "matches", len(uids))
	return nil
}

func (c *Client) resolve(keys []string) ([]string, error) {
	uids := make([]imapv2.UID, 0, len(keys))
	for _, key := range keys {
		n, err := strconv.ParseUint(key, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid uid %q: %w", key, err)
		}
		uids = append(uids, imapv2.UID(n))
	}

	cmd := c.client.Fetch(imapv2.UIDSetNum(uids...), &imapv2.FetchOptions{UID: true, Envelope: true})
	bufs, err := cmd.Collect()
	if err != nil {
		return nil, fmt.Errorf("fetch envelopes: %w", err)
	}

	byUID := make(map[imapv2.UID]string, len(bufs))
	for _, buf := range bufs {
		id := ""
		if buf.Envelope != nil {
			id = strings.Trim(strings.TrimSpace(buf.Envelope.MessageID), "<>")
		}
		if id == "" {
			id = c.syntheticID(buf.UID)
		}
		byUID[buf.UID] = id
	}

	ids := make([]string, 0, len(uids))
	for _, uid := range uids {
		id, ok := byUID[uid]
		if !ok {
			// expunged between search and fetch
			continue
		}
		c.uids[id] = uid
		ids = append(ids, id)
	}
	return ids, nil
}

// Fetch downloads the full message without setting \Seen.
func (c *Client) Fetch(ctx context.Context, id string) (*model.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	uid, ok := c.uids[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownID, id)
	}

	section := &imapv2.FetchItemBodySection{Peek: true}
	cmd := c.client.Fetch(imapv2.UIDSetNum(uid), &imapv2.FetchOptions{
		UID:         true,
		BodySection: []*imapv2.FetchItemBodySection{section},
	})
	defer cmd.Close()

	msg := cmd.Next()
	if msg == nil {
		return nil, fmt.Errorf("%w: uid %d", ErrMessageNotFound, uid)
	}
	buf, err := msg.Collect()
	if err != nil {
		return nil, fmt.Errorf("collect message uid %d: %w", uid, err)
	}
	raw := buf.FindBodySection(section)
	if raw == nil {
		return nil, fmt.Errorf("%w: uid %d has no body", ErrMessageNotFound, uid)
	}

	parsed, err := rawmail.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("message uid %d: %w", uid, err)
	}
	if parsed.ID != id {
		if parsed.ThreadID == parsed.ID {
			parsed.ThreadID = id
		}
		parsed.ID = id
	}
	return parsed, nil
}

func (c *Client) Close() error {
	if c.cleanup != nil {
		c.cleanup()
		c.cleanup = nil
	}
	return nil
}

func (c *Client) syntheticID(uid imapv2.UID) string {
	return fmt.Sprintf("imap:%s:%d:%d", c.folder(), c.uidValidity, uid)
}

func (c *Client) folder() string {
	if c.opts.Folder == "" {
		return "INBOX"
	}
	return c.opts.Folder
}
