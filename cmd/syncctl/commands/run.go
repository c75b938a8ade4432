package commands

import (
	"fmt"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/dog-boarding/backend/internal/app"
	"github.com/dog-boarding/backend/internal/storage/models"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Runs one sync now and prints its result as JSON.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e := envFrom(cmd)
			svc := app.NewSyncService(e.cfg, e.backend, nil, e.log)

			res, err := svc.Run(cmd.Context())
			if err != nil {
				return err
			}

			out, err := json.MarshalIndent(res, "", "  ")
			if err != nil {
				return fmt.Errorf("encoding result: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))

			if res.Status == models.SyncStatusFailed {
				return fmt.Errorf("sync failed after %d of %d appointments", res.AppointmentsFailed, res.AppointmentsFound)
			}
			return nil
		},
	}
}
