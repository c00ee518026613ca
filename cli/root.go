package cli

import (
	"github.com/spf13/cobra"

	"github.com/flowgate/flowgate/pkg/config"
	"github.com/flowgate/flowgate/pkg/logger"
)

func RootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "flowgate",
		Short: "Gated workflow runner for agent task pipelines",
	}

	root.AddCommand(
		RunCmd(),
		ResumeCmd(),
		RunsCmd(),
		ServeCmd(),
	)

	return root
}

// setup loads the process configuration and builds the root logger every
// command starts from.
func setup() (*config.Config, logger.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	log := logger.New(&logger.Config{
		Level: logger.LogLevel(cfg.Log.Level),
		JSON:  cfg.Log.JSON,
	})
	return cfg, log, nil
}
