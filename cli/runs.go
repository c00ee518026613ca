package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/flowgate/flowgate/engine/breakpoint"
	"github.com/flowgate/flowgate/engine/core"
)

func RunsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "runs",
		Short: "List stored runs and their states",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := setup()
			if err != nil {
				return err
			}
			store := breakpoint.NewStore(cfg.Runtime.StoreDir)
			snaps, err := store.List()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(snaps) == 0 {
				fmt.Fprintln(out, "no runs recorded")
				return nil
			}
			for _, snap := range snaps {
				line := fmt.Sprintf("%s  %-10s  %s", snap.RunID, snap.Status, snap.WorkflowID)
				if snap.Breakpoint != nil && snap.Status == core.StatusSuspended {
					line += fmt.Sprintf("  awaiting: %s", snap.Breakpoint.Question)
				}
				fmt.Fprintln(out, line)
			}
			return nil
		},
	}
}
