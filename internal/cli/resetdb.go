package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"jamesfarrell.me/vidextract/internal/storage/db"
)

var resetConfirm bool

var resetDBCmd = &cobra.Command{
	Use:   "reset-db",
	Short: "Drop and recreate the events table",
	Long: `Drop the events table with every saved event and recreate it empty.
Event ids start again from 1.`,
	Args: cobra.NoArgs,
	RunE: runResetDB,
}

func init() {
	resetDBCmd.Flags().BoolVar(&resetConfirm, "yes", false, "confirm that all events will be deleted")
}

func runResetDB(cmd *cobra.Command, args []string) error {
	if !resetConfirm {
		return errors.New("refusing to delete all events without --yes")
	}

	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer closeApp(a)

	if err := a.Events.Reset(ctx); err != nil {
		return fmt.Errorf("reset database: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Events table recreated on %s\n", db.MaskDatabaseURL(cfg.DatabaseURL))
	return nil
}
