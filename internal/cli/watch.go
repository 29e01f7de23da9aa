package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"jamesfarrell.me/vidextract/internal/storage/postgres"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print events as they are saved",
	Long: `Listen for saved-event notifications and print one line per saved batch
until interrupted.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer closeApp(a)

	out := cmd.OutOrStdout()
	logger.Info().Msg("waiting for saved events")

	err = a.Events.Listen(ctx, cfg.DatabaseURL, func(n postgres.EventsSaved) {
		if jsonOut {
			json.NewEncoder(out).Encode(n)
			return
		}
		fmt.Fprintf(out, "%s: %d events saved %v\n", n.VideoFilename, len(n.IDs), n.IDs)
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
