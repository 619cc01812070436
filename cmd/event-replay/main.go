package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/go-go-golems/dltctl/pkg/display"
	"github.com/go-go-golems/dltctl/pkg/eventjs"
	"github.com/go-go-golems/dltctl/pkg/events"
	"github.com/go-go-golems/dltctl/pkg/monitor"
	"github.com/go-go-golems/glazed/pkg/cmds/logging"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var version = "dev"

type options struct {
	scripts    []string
	inputPath  string
	page       bool
	jsTimeout  string
	verbose    bool
	pipelineID string
	cancelOK   bool
}

func main() {
	opts := options{}

	rootCmd := &cobra.Command{
		Use:     "event-replay",
		Short:   "Replay saved pipeline events through the monitor and optional JavaScript hooks",
		Version: version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return logging.InitLoggerFromCobra(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), cmd, opts)
		},
	}

	cobra.CheckErr(logging.AddLoggingLayerToRootCommand(rootCmd, "event-replay"))

	rootCmd.Flags().StringArrayVar(&opts.scripts, "js", nil, "JavaScript filter/transform script (repeatable)")
	rootCmd.Flags().StringVar(&opts.inputPath, "input", "", "Input file path (default: stdin)")
	rootCmd.Flags().BoolVar(&opts.page, "page", false, "Input is one events page response instead of one event per line")
	rootCmd.Flags().StringVar(&opts.jsTimeout, "js-timeout", "0", "Per-hook JS timeout (e.g. 50ms, 200ms)")
	rootCmd.Flags().BoolVarP(&opts.verbose, "verbose-events", "v", false, "Print every field of each event")
	rootCmd.Flags().StringVar(&opts.pipelineID, "pipeline-id", "replay", "Pipeline id used in the outcome line")
	rootCmd.Flags().BoolVar(&opts.cancelOK, "cancel-is-success", false, "Treat a canceled update as success")

	cobra.CheckErr(rootCmd.Execute())
}

// readEvents accepts one raw event record per line; malformed lines are
// reported and skipped.
func readEvents(r io.Reader, stderr io.Writer) ([]events.Event, error) {
	var out []events.Event
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	var lineNumber int
	for sc.Scan() {
		lineNumber++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		ev, err := events.ParseString(line)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "event-replay: line %d: %v\n", lineNumber, err)
			continue
		}
		out = append(out, ev)
	}
	return out, errors.Wrap(sc.Err(), "read events")
}

// staticSource serves a fixed set of events as a single page.
type staticSource struct {
	events []events.Event
}

func (s staticSource) ListEvents(_ context.Context, _ string, opts events.ListOptions) (*events.Page, error) {
	page := &events.Page{}
	for _, ev := range s.events {
		if !opts.Since.IsZero() && ev.Timestamp.Before(opts.Since) {
			continue
		}
		page.Events = append(page.Events, ev)
	}
	return page, nil
}

func run(ctx context.Context, cmd *cobra.Command, opts options) error {
	var r io.Reader = cmd.InOrStdin()
	if opts.inputPath != "" {
		f, err := os.Open(opts.inputPath)
		if err != nil {
			return err
		}
		defer func() { _ = f.Close() }()
		r = f
	}

	var evs []events.Event
	if opts.page {
		b, err := io.ReadAll(r)
		if err != nil {
			return errors.Wrap(err, "read page")
		}
		p, err := events.ParsePage(b)
		if err != nil {
			return err
		}
		evs = p.Events
	} else {
		var err error
		if evs, err = readEvents(r, cmd.ErrOrStderr()); err != nil {
			return err
		}
	}

	printer := display.NewPrinter(cmd.OutOrStdout())
	m := monitor.New(events.NewFetcher(staticSource{events: evs}), printer, monitor.Options{
		// one pass over the input, then the second poll finds nothing new
		MaxPollsWithoutEvents: 1,
		Verbose:               opts.verbose,
		CancelIsSuccess:       opts.cancelOK,
	})

	if len(opts.scripts) > 0 {
		chain, err := eventjs.LoadChainFromFiles(ctx, opts.scripts, eventjs.Options{HookTimeout: opts.jsTimeout})
		if err != nil {
			return err
		}
		defer func() { _ = chain.Close(ctx) }()
		m.Filter = chain
		defer func() {
			for _, mod := range chain.Modules {
				st := mod.Stats()
				printer.Statusf("%s: seen=%d dropped=%d changed=%d errors=%d timeouts=%d",
					mod.Name(), st.EventsSeen, st.EventsDropped, st.EventsChanged, st.HookErrors, st.HookTimeouts)
			}
		}()
	}

	o, err := m.Stream(ctx, opts.pipelineID, time.Time{})
	if err != nil {
		return err
	}
	return o.Err()
}
