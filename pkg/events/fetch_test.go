package events

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	pages []*Page
	err   error
	calls []ListOptions
}

var _ Source = (*fakeSource)(nil)

func (f *fakeSource) ListEvents(_ context.Context, _ string, opts ListOptions) (*Page, error) {
	f.calls = append(f.calls, opts)
	if f.err != nil {
		return nil, f.err
	}
	if len(f.pages) == 0 {
		return &Page{}, nil
	}
	p := f.pages[0]
	f.pages = f.pages[1:]
	return p, nil
}

func at(sec int) time.Time {
	return time.Date(2024, 1, 1, 0, 0, sec, 0, time.UTC)
}

func TestFetcher_DrainsAllPagesInOneCall(t *testing.T) {
	src := &fakeSource{pages: []*Page{
		{Events: []Event{{ID: "a", Timestamp: at(1)}, {ID: "b", Timestamp: at(2)}}, NextPageToken: "t1"},
		{Events: []Event{{ID: "c", Timestamp: at(3)}}, NextPageToken: "t2"},
		{Events: []Event{{ID: "d", Timestamp: at(4)}}},
	}}
	f := NewFetcher(src)
	f.PageSize = 2

	got, err := f.FetchSince(context.Background(), "p1", at(0))
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b", "c", "d"}, ids(got))

	require.Len(t, src.calls, 3)
	require.Equal(t, ListOptions{Since: at(0), MaxResults: 2}, src.calls[0])
	require.Equal(t, ListOptions{PageToken: "t1", MaxResults: 2}, src.calls[1])
	require.Equal(t, ListOptions{PageToken: "t2", MaxResults: 2}, src.calls[2])
}

func TestFetcher_SortsStablyByTimestamp(t *testing.T) {
	src := &fakeSource{pages: []*Page{
		{Events: []Event{{ID: "late", Timestamp: at(5)}, {ID: "tie1", Timestamp: at(2)}, {ID: "tie2", Timestamp: at(2)}, {ID: "early", Timestamp: at(1)}}},
	}}

	got, err := NewFetcher(src).FetchSince(context.Background(), "p1", time.Time{})
	require.NoError(t, err)
	require.Equal(t, []string{"early", "tie1", "tie2", "late"}, ids(got))
}

func TestFetcher_StopsAtPageLimit(t *testing.T) {
	src := &fakeSource{pages: []*Page{
		{Events: []Event{{ID: "a"}}, NextPageToken: "t1"},
		{Events: []Event{{ID: "b"}}, NextPageToken: "t2"},
		{Events: []Event{{ID: "c"}}},
	}}
	f := NewFetcher(src)
	f.MaxPages = 2

	got, err := f.FetchSince(context.Background(), "p1", time.Time{})
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, ids(got))
	require.Len(t, src.calls, 2)
}

func TestFetcher_PropagatesSourceErrors(t *testing.T) {
	boom := errors.New("connection reset")
	src := &fakeSource{err: boom}

	_, err := NewFetcher(src).FetchSince(context.Background(), "p1", time.Time{})
	require.Error(t, err)
	require.Equal(t, boom, errors.Cause(err))
	require.Len(t, src.calls, 1)
}

func ids(evs []Event) []string {
	out := make([]string, 0, len(evs))
	for _, e := range evs {
		out = append(out, e.ID)
	}
	return out
}
