package cmds

import (
	"io"

	"github.com/go-go-golems/dltctl/pkg/api"
	"github.com/go-go-golems/dltctl/pkg/warehouse"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newQueryCmd() *cobra.Command {
	var warehouseID string

	cmd := &cobra.Command{
		Use:   "query <sql>",
		Short: "Run a SQL statement on a running SQL warehouse to check pipeline output",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			w, err := newWorkspace(cmd)
			if err != nil {
				return err
			}
			defer w.Close()

			var wh api.Warehouse
			if warehouseID != "" {
				if wh, err = w.client.GetWarehouse(ctx, warehouseID); err != nil {
					return errors.Wrapf(err, "get warehouse %s", warehouseID)
				}
				if !wh.IsRunning() {
					return errors.Errorf("warehouse %s is %s, not RUNNING", wh.ID, wh.State)
				}
			} else if wh, err = warehouse.PickRunning(ctx, w.client); err != nil {
				return err
			}
			w.printer.Statusf("Querying warehouse %s (%s)", wh.Name, wh.ID)

			db, err := warehouse.Open(wh, w.profile.Token)
			if err != nil {
				return err
			}
			defer func() {
				if err := db.Close(); err != nil {
					log.Debug().Err(err).Msg("close warehouse connection")
				}
			}()

			res, err := warehouse.Query(ctx, db, args[0])
			if err != nil {
				return err
			}
			_, err = io.WriteString(cmd.OutOrStdout(), res.Render())
			return err
		},
	}

	cmd.Flags().StringVar(&warehouseID, "warehouse-id", "", "Use this warehouse instead of the first running one")
	return cmd
}
