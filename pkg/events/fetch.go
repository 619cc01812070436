package events

import (
	"context"
	"sort"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	DefaultPageSize = 100
	DefaultMaxPages = 50
)

// ListOptions select one page of the feed. Results are always ordered oldest
// first. Since is ignored by sources when PageToken is set, because the token
// already encodes the original query.
type ListOptions struct {
	Since      time.Time
	PageToken  string
	MaxResults int
}

type Source interface {
	ListEvents(ctx context.Context, pipelineID string, opts ListOptions) (*Page, error)
}

type Fetcher struct {
	Source   Source
	PageSize int
	MaxPages int
}

func NewFetcher(src Source) *Fetcher {
	return &Fetcher{Source: src, PageSize: DefaultPageSize, MaxPages: DefaultMaxPages}
}

// FetchSince drains every page of events at or after since and returns them
// sorted by timestamp. A zero since fetches from the start of the feed.
func (f *Fetcher) FetchSince(ctx context.Context, pipelineID string, since time.Time) ([]Event, error) {
	if f.Source == nil {
		return nil, errors.New("events fetcher has no source")
	}
	size := f.PageSize
	if size <= 0 {
		size = DefaultPageSize
	}
	maxPages := f.MaxPages
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}

	var out []Event
	opts := ListOptions{Since: since, MaxResults: size}
	for page := 0; ; page++ {
		p, err := f.Source.ListEvents(ctx, pipelineID, opts)
		if err != nil {
			return nil, errors.Wrapf(err, "list events for pipeline %s", pipelineID)
		}
		out = append(out, p.Events...)
		if p.NextPageToken == "" {
			break
		}
		if page+1 >= maxPages {
			log.Warn().Str("pipeline", pipelineID).Int("pages", page+1).Msg("event page limit reached, continuing next poll")
			break
		}
		opts = ListOptions{PageToken: p.NextPageToken, MaxResults: size}
	}

	SortByTimestamp(out)
	return out, nil
}

// SortByTimestamp orders events oldest first, keeping the source order for
// identical timestamps.
func SortByTimestamp(evs []Event) {
	sort.SliceStable(evs, func(i, j int) bool {
		return evs[i].Timestamp.Before(evs[j].Timestamp)
	})
}
