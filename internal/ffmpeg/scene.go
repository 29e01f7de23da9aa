package ffmpeg

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	ffmpeggo "github.com/u2takey/ffmpeg-go"
)

// SceneCuts returns the timestamps, in seconds, where ffmpeg's scene score
// exceeds threshold. Every frame is scored, so a fixed threshold always yields
// the same cuts for the same file.
func (e *Executor) SceneCuts(ctx context.Context, input string, threshold float64) ([]float64, error) {
	e.logger.Debug().
		Str("input", input).
		Float64("threshold", threshold).
		Msg("detecting scene changes")

	args := ffmpeggo.Input(input).
		Output("-", ffmpeggo.KwArgs{
			"vf": fmt.Sprintf("select='gt(scene,%f)',showinfo", threshold),
			"f":  "null",
		}).
		GetArgs()

	stderr, err := e.run(ctx, args, nil)
	if err != nil {
		return nil, fmt.Errorf("scene detection failed: %w", err)
	}

	cuts := parseShowinfo(stderr)
	e.logger.Debug().Int("cuts", len(cuts)).Msg("scene detection complete")
	return cuts, nil
}

// parseShowinfo extracts pts_time values from showinfo filter output.
func parseShowinfo(output string) []float64 {
	var cuts []float64
	for _, line := range strings.Split(output, "\n") {
		if !strings.Contains(line, "Parsed_showinfo") {
			continue
		}
		_, after, found := strings.Cut(line, "pts_time:")
		if !found {
			continue
		}
		fields := strings.Fields(after)
		if len(fields) == 0 {
			continue
		}
		if seconds, err := strconv.ParseFloat(fields[0], 64); err == nil {
			cuts = append(cuts, seconds)
		}
	}
	return cuts
}
