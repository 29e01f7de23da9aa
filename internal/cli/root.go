// Package cli provides the command-line interface for vidextract.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"jamesfarrell.me/vidextract/internal/app"
	"jamesfarrell.me/vidextract/internal/config"
	"jamesfarrell.me/vidextract/internal/logging"
)

var (
	// Global flags
	cfgFile   string
	dbProfile string
	verbose   bool
	jsonOut   bool

	cfg    *config.Config
	logger zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "vidextract",
	Short: "Find and search the notable moments of videos",
	Long: `vidextract segments a video into scenes, describes each scene's frame and
the audio track, asks a language model for the notable moments and stores them
as searchable events.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_ = godotenv.Load()

		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		if dbProfile != "" {
			cfg.DatabaseURL, err = config.DatabaseURL(dbProfile)
			if err != nil {
				return err
			}
		}

		level := cfg.Log.Level
		if verbose {
			level = "debug"
		}
		logger = logging.New(level, cfg.Log.Format, cmd.ErrOrStderr())
		return nil
	},
}

// Execute runs the root command. Commands stop when ctx is done.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./vidextract.yaml)")
	rootCmd.PersistentFlags().StringVar(&dbProfile, "db", "", "database profile, reads DATABASE_URL_<PROFILE>")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "print JSON instead of text")

	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(eventsCmd)
	rootCmd.AddCommand(resetDBCmd)
	rootCmd.AddCommand(watchCmd)
}

// openApp connects to the event store. Callers must closeApp the result.
func openApp(ctx context.Context) (*app.App, error) {
	return app.New(ctx, cfg, logger)
}

func closeApp(a *app.App) {
	if err := a.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to release resources: %v\n", err)
	}
}
