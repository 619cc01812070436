package cmds

import (
	"context"
	stderrors "errors"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/go-go-golems/dltctl/pkg/monitor"
	"github.com/go-go-golems/dltctl/pkg/tui"
	"github.com/go-go-golems/dltctl/pkg/tui/models"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newTuiCmd() *cobra.Command {
	var altScreen bool
	var start bool
	var fullRefresh bool
	var exitOnFinish bool

	cmd := &cobra.Command{
		Use:   "tui",
		Short: "Watch the pipeline in an interactive terminal UI",
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := newWorkspace(cmd)
			if err != nil {
				return err
			}
			defer w.Close()

			s, err := w.loadCreated()
			if err != nil {
				return err
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			c, err := w.cursor(ctx, s.ID)
			if err != nil {
				return err
			}

			bus, err := tui.NewInMemoryBus(0)
			if err != nil {
				return err
			}
			tui.RegisterDomainToUITransformer(bus)

			model := models.NewRootModel(s.ID)
			model.ExitOnFinish = exitOnFinish
			programOptions := []tea.ProgramOption{
				tea.WithInput(cmd.InOrStdin()),
				tea.WithOutput(cmd.OutOrStdout()),
			}
			if altScreen {
				programOptions = append(programOptions, tea.WithAltScreen())
			}
			program := tea.NewProgram(model, programOptions...)
			tui.RegisterUIForwarder(bus, program)

			sink := tui.NewBusSink(bus.Publisher())
			wo := watchOptions{Sink: sink}
			if s.Continuous {
				wo.MaxPolls = continuousMaxPolls
			}

			var outcome monitor.Outcome
			eg, egCtx := errgroup.WithContext(ctx)
			eg.Go(func() error {
				err := bus.Run(egCtx)
				if stderrors.Is(err, context.Canceled) {
					return nil
				}
				return err
			})
			eg.Go(func() error {
				select {
				case <-bus.Running():
				case <-egCtx.Done():
					return nil
				}
				if start {
					updateID, err := w.client.StartUpdate(egCtx, s.ID, fullRefresh)
					if err != nil {
						return errors.Wrapf(err, "start pipeline %s", s.ID)
					}
					sink.Status("Started update " + updateID)
				}
				o, err := w.newMonitor(wo).StreamFrom(egCtx, s.ID, c)
				if stderrors.Is(err, context.Canceled) {
					return nil
				}
				outcome = o
				return err
			})
			eg.Go(func() error {
				_, err := program.Run()
				cancel()
				if stderrors.Is(err, context.Canceled) || stderrors.Is(err, tea.ErrProgramKilled) {
					return nil
				}
				return err
			})

			if err := eg.Wait(); err != nil {
				return errors.Wrap(err, "tui")
			}
			if outcome.Kind == "" {
				log.Debug().Msg("tui closed before the stream finished")
				return nil
			}

			settleCtx, settleCancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer settleCancel()
			return w.settle(settleCtx, outcome, false)
		},
	}

	cmd.Flags().BoolVar(&altScreen, "alt-screen", true, "Use the terminal alternate screen buffer")
	cmd.Flags().BoolVar(&start, "start", false, "Start an update before watching")
	cmd.Flags().BoolVar(&fullRefresh, "full-refresh", false, "With --start, reset and recompute all tables")
	cmd.Flags().BoolVar(&exitOnFinish, "exit-on-finish", false, "Quit as soon as the update ends")
	return cmd
}
