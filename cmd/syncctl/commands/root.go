// Package commands implements syncctl, the operator CLI for running a sync
// by hand and inspecting sync history.
package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/dog-boarding/backend/internal/app"
	"github.com/dog-boarding/backend/internal/config"
	"github.com/dog-boarding/backend/internal/logging"
)

// env is what every subcommand works against, opened before it runs.
type env struct {
	cfg     *config.Config
	backend *app.Backend
	log     zerolog.Logger
}

type envKey struct{}

func envFrom(cmd *cobra.Command) *env {
	e, _ := cmd.Context().Value(envKey{}).(*env)
	return e
}

// NewRootCmd builds the syncctl command tree.
func NewRootCmd() *cobra.Command {
	var dataDir string

	root := &cobra.Command{
		Use:           "syncctl",
		Short:         "syncctl runs and inspects the external booking sync.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if dataDir != "" {
				cfg.Storage.DataDir = dataDir
			}

			logging.Init(logging.Config{Level: cfg.Logging.Level, Format: "console", Output: cmd.ErrOrStderr()})
			log := logging.Logger()

			backend, err := app.OpenBackend(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}

			cmd.SetContext(context.WithValue(cmd.Context(), envKey{}, &env{cfg: cfg, backend: backend, log: log}))
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if e := envFrom(cmd); e != nil {
				return e.backend.Close()
			}
			return nil
		},
	}
	root.PersistentFlags().StringVar(&dataDir, "data", "", "Data directory for the SQLite database (overrides DATA_DIR)")

	root.AddCommand(newRunCmd(), newHistoryCmd())
	return root
}

// ExecuteContext runs syncctl and exits non-zero on error.
func ExecuteContext(ctx context.Context) {
	if err := NewRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
