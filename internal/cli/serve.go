package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"palate/internal/app"
	"palate/internal/logging"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the task worker",
	Long: `Serve the JSON API under /api/v1 with health and Prometheus endpoints, and
process scheduled embedding and profile tasks. Both run supervised and are
restarted on failure. If the embedding configuration changed, dishes are
re-embedded and profiles recomputed before serving starts. Stops on SIGINT
or SIGTERM after finishing accepted tasks.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}

	a, err := app.Open(cfg, rootDir)
	if err != nil {
		return fmt.Errorf("failed to open palate database: %w", err)
	}
	defer a.Close()

	if a.Rebuilt {
		logging.Info().Msg("embedding configuration changed, re-embedding catalogue and recomputing profiles")
	}
	logging.Info().Str("addr", cfg.Server.Addr).Msg("palate serving")
	if err := a.Serve(commandContext(cmd), app.DefaultSupervisorConfig()); err != nil {
		return err
	}
	logging.Info().Msg("palate stopped")
	return nil
}
