package cli

import (
	"fmt"
	"os"

	"sage-backend/pkg/config"
	"sage-backend/pkg/logger"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "sage",
	Short: "Sage mail backend",
	Long:  "Sage serves threaded mail views with AI summaries over HTTP and SSE.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveCmd.RunE(cmd, args)
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(inspectCmd)
}

// Execute runs the root command. It exits the process on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	return cfg, logger.New(cfg.LogLevel, cfg.LogPretty), nil
}
