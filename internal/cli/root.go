package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"palate/config"
	"palate/internal/app"
	"palate/internal/logging"
)

var (
	cfgFile string
	cfg     *config.Config
	rootDir string
)

var rootCmd = &cobra.Command{
	Use:   "palate",
	Short: "Taste-profile dish recommendations",
	Long: `Palate keeps a catalogue of dishes with flavor profiles and semantic embeddings,
learns each user's taste from likes and dislikes, and recommends dishes they
have not tried yet.

Example usage:
  palate dish import menus/           # Import menu files
  palate rate alice pad-thai like     # Record a rating
  palate recommend alice -n 5         # Nearest unrated dishes
  palate serve                        # Run the HTTP API`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error

		if rootDir == "" {
			rootDir, err = os.Getwd()
			if err != nil {
				return fmt.Errorf("failed to get working directory: %w", err)
			}
		}

		if cfgFile != "" {
			cfg, err = config.Load(cfgFile)
		} else {
			cfg, err = config.LoadFromDir(rootDir)
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		logging.Init(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
		return nil
	},
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./palate.yaml)")
	rootCmd.PersistentFlags().StringVarP(&rootDir, "dir", "d", "", "data directory (default is current directory)")
}

func GetConfig() *config.Config {
	return cfg
}

func GetRootDir() string {
	return rootDir
}

// commandContext tags the command's context with a correlation id so every
// log line and scheduled task of one invocation can be tied together.
func commandContext(cmd *cobra.Command) context.Context {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return logging.EnsureCorrelationID(ctx)
}

// openApp opens the database and starts the background worker.
func openApp() (*app.App, error) {
	a, err := app.Open(cfg, rootDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open palate database: %w", err)
	}
	if a.Rebuilt {
		fmt.Println("Embedding configuration changed; stored embeddings and profiles were discarded.")
		fmt.Println("Run 'palate dish embed --missing' and 'palate profile recompute --all' to rebuild them,")
		fmt.Println("or 'palate serve', which rebuilds them on start.")
	}
	a.Start()
	return a, nil
}

// closeApp lets scheduled tasks finish, then releases the database.
func closeApp(a *app.App) {
	if err := a.Shutdown(cfg.Worker.TaskTimeout); err != nil {
		logging.Error().Err(err).Msg("failed to shut down cleanly")
	}
}
