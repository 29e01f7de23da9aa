package cli

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"jamesfarrell.me/vidextract/internal/pipeline"
)

var (
	analyzeName   string
	analyzeNoSave bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <video>",
	Short: "Analyze a video and save its moments as events",
	Long: `Analyze a video file end to end: scenes, objects, captions, sound events and
transcript are assembled into an analysis document, a language model picks the
notable moments and each moment is saved as a searchable event.

Examples:
  vidextract analyze match.mp4
  vidextract analyze /tmp/upload-123.mp4 --name match.mp4
  vidextract analyze match.mp4 --no-save --json`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeName, "name", "", "video filename to store events under (default: base name of the file)")
	analyzeCmd.Flags().BoolVar(&analyzeNoSave, "no-save", false, "only build the analysis document")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	videoPath := args[0]

	name := analyzeName
	if name == "" {
		name = filepath.Base(videoPath)
	}

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer closeApp(a)

	pipe, err := a.Pipeline(ctx)
	if err != nil {
		return err
	}

	var res *pipeline.Result
	if analyzeNoSave {
		res, err = pipe.Analyze(ctx, videoPath, name)
	} else {
		res, err = pipe.Process(ctx, videoPath, name)
	}
	if err != nil {
		return err
	}

	return printResult(cmd, res)
}

func printResult(cmd *cobra.Command, res *pipeline.Result) error {
	out := cmd.OutOrStdout()

	if jsonOut {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if res.Report == nil {
			return enc.Encode(res.Document)
		}
		return enc.Encode(map[string]any{
			"run_id":  res.RunID,
			"moments": res.Moments,
			"report":  res.Report,
		})
	}

	doc := res.Document
	fmt.Fprintf(out, "Analyzed %s: %d shots, %d sound events, %d transcript segments\n",
		doc.VideoName, doc.ShotCount, len(doc.SoundEvents), len(doc.Transcript))
	if res.ArchivePath != "" {
		fmt.Fprintf(out, "Analysis written to %s\n", res.ArchivePath)
	}
	if res.Report == nil {
		return nil
	}

	fmt.Fprintf(out, "Moments: %d selected, %d saved, %d skipped\n",
		len(res.Moments), res.Report.Saved(), res.Report.Skipped())
	for _, item := range res.Report.Items {
		if item.Skipped {
			fmt.Fprintf(out, "  moment %d skipped: %s\n", item.Index, item.Reason)
		}
	}
	return nil
}
