package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"jamesfarrell.me/vidextract/internal/storage/models"
)

var searchLimit int

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search saved events by meaning",
	Long: `Search every saved event by cosine similarity between the query and the
event descriptions.

Examples:
  vidextract search "a dog catches a frisbee"
  vidextract search "crowd cheering" --limit 10`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

var eventsCmd = &cobra.Command{
	Use:   "events <video_filename>",
	Short: "List the saved events of one video",
	Args:  cobra.ExactArgs(1),
	RunE:  runEvents,
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 5, "max results")
}

func runSearch(cmd *cobra.Command, args []string) error {
	if searchLimit < 0 {
		return fmt.Errorf("limit must not be negative")
	}

	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer closeApp(a)

	events, err := a.Events.Search(ctx, args[0], searchLimit)
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}
	return printEvents(cmd.OutOrStdout(), events)
}

func runEvents(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer closeApp(a)

	events, err := a.Events.GetByFilename(ctx, args[0])
	if err != nil {
		return fmt.Errorf("list events: %w", err)
	}
	return printEvents(cmd.OutOrStdout(), events)
}

func printEvents(out io.Writer, events []models.Event) error {
	if jsonOut {
		if events == nil {
			events = []models.Event{}
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(events)
	}

	if len(events) == 0 {
		fmt.Fprintln(out, "No events found.")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTIME\tSCORE\tVIDEO\tDESCRIPTION")
	for _, e := range events {
		score := "-"
		if e.Similarity != nil {
			score = fmt.Sprintf("%.3f", *e.Similarity)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", e.ID, clock(e.Timestamp), score, e.VideoFilename, e.Description)
	}
	return tw.Flush()
}

// clock formats seconds as M:SS.s.
func clock(seconds float64) string {
	m := int(seconds) / 60
	s := seconds - float64(m*60)
	return fmt.Sprintf("%d:%04.1f", m, s)
}
