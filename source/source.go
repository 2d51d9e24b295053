// Package source defines the mail retrieval collaborator used by the runner.
package source

import (
	"context"
	"fmt"
	"strconv"

	"github.com/dhcgn/application-tracker/model"
)

// MaxPageSize is the largest page requested from a source.
const MaxPageSize = 500

// Page is one page of a message id search.
type Page struct {
	IDs []string
	// NextPageToken is empty on the last page.
	NextPageToken string
}

type Lister interface {
	ListPage(ctx context.Context, query, pageToken string, pageSize int) (Page, error)
}

type Fetcher interface {
	Fetch(ctx context.Context, id string) (*model.Message, error)
}

// Source is a mailbox that can be searched and read message by message.
type Source interface {
	Lister
	Fetcher
	Close() error
}

// CollectIDs pages through the search results one page at a time until limit
// ids are gathered, a page comes back empty or no continuation token is
// returned. The result never exceeds limit.
func CollectIDs(ctx context.Context, l Lister, query string, limit int) ([]string, error) {
	if limit <= 0 {
		return nil, nil
	}

	pageSize := min(limit, MaxPageSize)

	var (
		ids   []string
		token string
	)
	for page := 1; ; page++ {
		res, err := l.ListPage(ctx, query, token, pageSize)
		if err != nil {
			return nil, fmt.Errorf("list page %d: %w", page, err)
		}
		if len(res.IDs) == 0 {
			break
		}

		ids = append(ids, res.IDs...)
		if len(ids) >= limit || res.NextPageToken == "" {
			break
		}
		token = res.NextPageToken
	}

	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

// OffsetPage slices a fully known id list into pages whose continuation
// token is the decimal offset of the next page. Sources that cannot page on
// the server side use it.
func OffsetPage(all []string, pageToken string, pageSize int) (Page, error) {
	offset := 0
	if pageToken != "" {
		n, err := strconv.Atoi(pageToken)
		if err != nil || n < 0 {
			return Page{}, fmt.Errorf("invalid page token %q", pageToken)
		}
		offset = n
	}
	if pageSize <= 0 {
		pageSize = MaxPageSize
	}
	if offset >= len(all) {
		return Page{}, nil
	}

	end := min(offset+pageSize, len(all))
	page := Page{IDs: append([]string(nil), all[offset:end]...)}
	if end < len(all) {
		page.NextPageToken = strconv.Itoa(end)
	}
	return page, nil
}
