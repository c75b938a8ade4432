package commands

import (
	"errors"
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/dog-boarding/backend/internal/storage/models"
)

func newHistoryCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history [--limit N]",
		Short: "Lists recent sync runs, newest first.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit < 1 {
				return errors.New("--limit must be at least 1")
			}

			e := envFrom(cmd)
			if e.backend.SyncLogs == nil {
				return errors.New("Supabase configuration missing")
			}

			logs, err := e.backend.SyncLogs.List(cmd.Context(), limit)
			if err != nil {
				return err
			}

			t := table.NewWriter()
			t.SetStyle(table.StyleRounded)
			t.SetOutputMirror(cmd.OutOrStdout())
			t.AppendHeader(table.Row{"Started", "Status", "Found", "Created", "Updated", "Failed", "Duration", "ID"})
			for _, l := range logs {
				t.AppendRow(table.Row{
					l.StartedAt.Local().Format(time.DateTime),
					l.Status,
					l.AppointmentsFound,
					l.AppointmentsCreated,
					l.AppointmentsUpdated,
					l.AppointmentsFailed,
					formatDuration(l),
					l.ID,
				})
			}
			t.Render()
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Number of runs to show")
	return cmd
}

func formatDuration(l models.SyncLog) string {
	if l.Status == models.SyncStatusRunning {
		return "-"
	}
	return fmt.Sprint(time.Duration(l.DurationMS) * time.Millisecond)
}
