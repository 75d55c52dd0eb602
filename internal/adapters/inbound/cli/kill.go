package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abdidvp/lintfix/internal/adapters/outbound/engine"
)

func newKillCmd(a *app) *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "kill",
		Short: "Stop the engine service",
		Long:  "Stop the long-running analysis engine service, whether this or another process started it.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			baseDir, err := absPath(path)
			if err != nil {
				return err
			}
			cfg, err := a.loadConfig(baseDir)
			if err != nil {
				return err
			}

			err = a.engineController(cfg, baseDir).Kill(cmd.Context())
			switch {
			case errors.Is(err, engine.ErrNotRunning):
				fmt.Fprintln(cmd.OutOrStdout(), "engine service is not running")
				return nil
			case err != nil:
				return fmt.Errorf("stopping engine: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "engine service stopped")
			return nil
		},
	}

	cmd.Flags().StringVar(&path, "path", "", "Project path (defaults to current working directory)")
	return cmd
}
