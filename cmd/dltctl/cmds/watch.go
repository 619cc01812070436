package cmds

import (
	"context"

	"github.com/go-go-golems/dltctl/pkg/events"
	"github.com/go-go-golems/dltctl/pkg/monitor"
	"github.com/pkg/errors"
)

const (
	continuousMaxPolls = 10
	stopMaxPolls       = 5
)

type watchOptions struct {
	MaxPolls        int
	CancelIsSuccess bool
	Verbose         bool
	Filter          monitor.Filter
	Sink            monitor.Sink
}

// cursor marks where the events of whatever the command is about to trigger
// begin: at the newest existing timestamp, skipping the events already there.
func (w *workspace) cursor(ctx context.Context, pipelineID string) (monitor.Cursor, error) {
	latest, err := w.client.LatestEventTime(ctx, pipelineID)
	if err != nil {
		return monitor.Cursor{}, errors.Wrap(err, "read latest event time")
	}
	if latest.IsZero() {
		return monitor.Cursor{}, nil
	}
	evs, err := events.NewFetcher(w.client).FetchSince(ctx, pipelineID, latest)
	if err != nil {
		return monitor.Cursor{}, errors.Wrap(err, "read events at the latest timestamp")
	}
	c := monitor.Cursor{Since: latest}
	for _, ev := range evs {
		if ev.Timestamp.Equal(latest) {
			c.Seen = append(c.Seen, ev)
		}
	}
	return c, nil
}

func (w *workspace) monitorOptions(wo watchOptions) monitor.Options {
	maxPolls := wo.MaxPolls
	if maxPolls <= 0 {
		maxPolls = w.profile.MaxPollsWithoutEvents
	}
	return monitor.Options{
		MaxPollsWithoutEvents: maxPolls,
		PollInterval:          w.profile.PollInterval,
		Verbose:               wo.Verbose,
		CancelIsSuccess:       wo.CancelIsSuccess,
	}
}

func (w *workspace) newMonitor(wo watchOptions) *monitor.Monitor {
	sink := wo.Sink
	if sink == nil {
		sink = w.printer
	}
	m := monitor.New(events.NewFetcher(w.client), sink, w.monitorOptions(wo))
	m.Filter = wo.Filter
	return m
}

// watch streams events until the update ends and turns the outcome into the
// command's result.
func (w *workspace) watch(ctx context.Context, pipelineID string, c monitor.Cursor, wo watchOptions) error {
	o, err := w.newMonitor(wo).StreamFrom(ctx, pipelineID, c)
	if err != nil {
		return err
	}
	return w.settle(ctx, o, wo.CancelIsSuccess)
}

// settle maps an outcome to an error. An idle stream says nothing about the
// update, so the latest update state decides.
func (w *workspace) settle(ctx context.Context, o monitor.Outcome, cancelIsSuccess bool) error {
	if err := o.Err(); err != nil {
		return err
	}
	if !o.Idle() {
		return nil
	}

	p, err := w.client.GetPipeline(ctx, o.PipelineID)
	if err != nil {
		return errors.Wrap(err, "check latest update")
	}
	upd, ok := p.LatestUpdate()
	if !ok {
		return nil
	}
	w.printer.Statusf("Latest update %s is %s", upd.UpdateID, upd.State)
	switch upd.State {
	case "FAILED":
		return errors.Errorf("update %s of pipeline %s is FAILED", upd.UpdateID, o.PipelineID)
	case "CANCELED":
		if !cancelIsSuccess {
			return errors.Errorf("update %s of pipeline %s is CANCELED", upd.UpdateID, o.PipelineID)
		}
	}
	return nil
}
