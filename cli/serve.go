package cli

import (
	"github.com/spf13/cobra"

	"github.com/flowgate/flowgate/engine/breakpoint"
	"github.com/flowgate/flowgate/engine/server"
)

func ServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the run decision API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			store := breakpoint.NewStore(cfg.Runtime.StoreDir)
			srv := server.NewServer(cfg.Server.Addr(), store, breakpoint.NewHub(), log)
			return srv.Start(cmd.Context())
		},
	}
}
