package source

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pagedLister struct {
	pages []Page
	calls []string
	sizes []int
	err   error
}

func (p *pagedLister) ListPage(_ context.Context, query, pageToken string, pageSize int) (Page, error) {
	p.calls = append(p.calls, pageToken)
	p.sizes = append(p.sizes, pageSize)
	if p.err != nil {
		return Page{}, p.err
	}
	idx := len(p.calls) - 1
	if idx >= len(p.pages) {
		return Page{}, nil
	}
	return p.pages[idx], nil
}

func ids(prefix string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("%s%d", prefix, i)
	}
	return out
}

func TestCollectIDs_FollowsTokensUntilLastPage(t *testing.T) {
	l := &pagedLister{pages: []Page{
		{IDs: ids("a", 3), NextPageToken: "p2"},
		{IDs: ids("b", 2), NextPageToken: "p3"},
		{IDs: ids("c", 1)},
	}}

	got, err := CollectIDs(context.Background(), l, "q", 100)

	require.NoError(t, err)
	assert.Len(t, got, 6)
	assert.Equal(t, []string{"", "p2", "p3"}, l.calls)
}

func TestCollectIDs_StopsAtMax(t *testing.T) {
	l := &pagedLister{pages: []Page{
		{IDs: ids("a", 3), NextPageToken: "p2"},
		{IDs: ids("b", 3), NextPageToken: "p3"},
		{IDs: ids("c", 3), NextPageToken: "p4"},
	}}

	got, err := CollectIDs(context.Background(), l, "q", 4)

	require.NoError(t, err)
	assert.Equal(t, []string{"a0", "a1", "a2", "b0"}, got)
	assert.Len(t, l.calls, 2)
	assert.Equal(t, 4, l.sizes[0])
}

func TestCollectIDs_StopsOnEmptyPage(t *testing.T) {
	l := &pagedLister{pages: []Page{
		{IDs: ids("a", 2), NextPageToken: "p2"},
		{NextPageToken: "p3"},
		{IDs: ids("c", 2)},
	}}

	got, err := CollectIDs(context.Background(), l, "q", 100)

	require.NoError(t, err)
	assert.Equal(t, []string{"a0", "a1"}, got)
}

func TestCollectIDs_PageSizeCapped(t *testing.T) {
	l := &pagedLister{}

	_, err := CollectIDs(context.Background(), l, "q", 5000)

	require.NoError(t, err)
	assert.Equal(t, []int{MaxPageSize}, l.sizes)
}

func TestCollectIDs_Error(t *testing.T) {
	boom := errors.New("boom")
	l := &pagedLister{err: boom}

	_, err := CollectIDs(context.Background(), l, "q", 10)

	assert.ErrorIs(t, err, boom)
}

func TestCollectIDs_NonPositiveMax(t *testing.T) {
	l := &pagedLister{}

	got, err := CollectIDs(context.Background(), l, "q", 0)

	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Empty(t, l.calls)
}

func TestOffsetPage(t *testing.T) {
	all := ids("m", 5)

	first, err := OffsetPage(all, "", 2)
	require.NoError(t, err)
	assert.Equal(t, Page{IDs: []string{"m0", "m1"}, NextPageToken: "2"}, first)

	last, err := OffsetPage(all, "4", 2)
	require.NoError(t, err)
	assert.Equal(t, Page{IDs: []string{"m4"}}, last)

	past, err := OffsetPage(all, "9", 2)
	require.NoError(t, err)
	assert.Empty(t, past.IDs)

	_, err = OffsetPage(all, "x", 2)
	assert.Error(t, err)
}
