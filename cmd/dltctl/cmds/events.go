package cmds

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/go-go-golems/dltctl/pkg/eventjs"
	"github.com/go-go-golems/dltctl/pkg/events"
	"github.com/go-go-golems/dltctl/pkg/monitor"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// parseSince accepts a relative duration ("15m", meaning that long ago) or
// anything dateparse understands.
func parseSince(s string, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if d, err := time.ParseDuration(s); err == nil {
		if d < 0 {
			d = -d
		}
		return now.Add(-d).UTC(), nil
	}
	t, err := dateparse.ParseIn(s, time.UTC)
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "parse --since %q", s)
	}
	return t.UTC(), nil
}

type eventsOptions struct {
	PipelineID string
	Since      string
	Limit      int
	Follow     bool
	Summary    bool
	Verbose    bool
	Scripts    []string
	JSTimeout  string
}

func filterEvents(ctx context.Context, f monitor.Filter, evs []events.Event) []events.Event {
	if f == nil {
		return evs
	}
	out := evs[:0:0]
	for _, ev := range evs {
		next, keep, err := f.Apply(ctx, ev)
		if err != nil {
			log.Warn().Err(err).Str("event", ev.ID).Msg("event filter failed, showing event unchanged")
			out = append(out, ev)
			continue
		}
		if keep {
			out = append(out, next)
		}
	}
	return out
}

func printSummary(w *workspace, evs []events.Event) {
	groups := events.GroupByType(evs)
	types := make([]string, 0, len(groups))
	for t, g := range groups {
		if len(g) > 0 {
			types = append(types, string(t))
		}
	}
	sort.Strings(types)
	for _, t := range types {
		w.printer.Statusf("%-22s %d", t, len(groups[events.Type(t)]))
	}
	w.printer.Statusf("%-22s %d", "total", len(evs))
}

func newEventsCmd() *cobra.Command {
	var o eventsOptions

	cmd := &cobra.Command{
		Use:   "events",
		Short: "List or follow the pipeline event feed",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			w, err := newWorkspace(cmd)
			if err != nil {
				return err
			}
			defer w.Close()

			id := o.PipelineID
			if id == "" {
				s, err := w.loadCreated()
				if err != nil {
					return err
				}
				id = s.ID
			}
			since, err := parseSince(o.Since, time.Now())
			if err != nil {
				return err
			}

			var filter monitor.Filter
			if len(o.Scripts) > 0 {
				chain, err := eventjs.LoadChainFromFiles(ctx, o.Scripts, eventjs.Options{HookTimeout: o.JSTimeout})
				if err != nil {
					return err
				}
				defer func() {
					if err := chain.Close(context.Background()); err != nil {
						log.Warn().Err(err).Msg("close event scripts")
					}
				}()
				filter = chain
			}

			if o.Follow {
				c := monitor.Cursor{Since: since}
				if o.Since == "" {
					if c, err = w.cursor(ctx, id); err != nil {
						return err
					}
				}
				return w.watch(ctx, id, c, watchOptions{Verbose: o.Verbose, Filter: filter})
			}

			evs, err := events.NewFetcher(w.client).FetchSince(ctx, id, since)
			if err != nil {
				return err
			}
			evs = filterEvents(ctx, filter, evs)
			if o.Limit > 0 && len(evs) > o.Limit {
				evs = evs[len(evs)-o.Limit:]
			}

			if o.Summary {
				printSummary(w, evs)
				return nil
			}
			if len(evs) == 0 {
				w.printer.Statusf("No events for pipeline %s", id)
				return nil
			}
			for _, ev := range evs {
				w.printer.Event(events.Classify(ev), o.Verbose)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&o.PipelineID, "pipeline-id", "", "Pipeline id (defaults to the id in pipeline.json)")
	cmd.Flags().StringVar(&o.Since, "since", "", "Only events at or after this time (timestamp or duration such as 30m)")
	cmd.Flags().IntVar(&o.Limit, "limit", 50, "Show at most this many of the newest events (0 for all)")
	cmd.Flags().BoolVarP(&o.Follow, "follow", "f", false, "Keep polling until the current update ends")
	cmd.Flags().BoolVar(&o.Summary, "summary", false, "Print event counts per type instead of the events")
	cmd.Flags().BoolVarP(&o.Verbose, "verbose-events", "v", false, "Print every field of each event")
	cmd.Flags().StringArrayVar(&o.Scripts, "js", nil, "JavaScript filter/transform script (repeatable)")
	cmd.Flags().StringVar(&o.JSTimeout, "js-timeout", "50ms", "Time limit for each JavaScript hook call")
	return cmd
}
