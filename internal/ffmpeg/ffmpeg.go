package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"

	"github.com/rs/zerolog"
)

// Executor runs the ffmpeg and ffprobe binaries.
type Executor struct {
	logger      zerolog.Logger
	ffmpegPath  string
	ffprobePath string
	threads     int
}

// New creates a new ffmpeg executor
func New(logger zerolog.Logger, threads int) (*Executor, error) {
	ffmpegPath, err := exec.LookPath("ffmpeg")
	if err != nil {
		return nil, fmt.Errorf("ffmpeg not found in PATH: %w", err)
	}

	ffprobePath, err := exec.LookPath("ffprobe")
	if err != nil {
		return nil, fmt.Errorf("ffprobe not found in PATH: %w", err)
	}

	return &Executor{
		logger:      logger.With().Str("component", "ffmpeg").Logger(),
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
		threads:     threads,
	}, nil
}

// run executes ffmpeg with args and returns its stderr. Stdout goes to
// stdout when non-nil.
func (e *Executor) run(ctx context.Context, args []string, stdout io.Writer) (string, error) {
	base := []string{"-hide_banner", "-nostdin"}
	if e.threads > 0 {
		base = append(base, "-threads", fmt.Sprintf("%d", e.threads))
	}
	args = append(base, args...)

	e.logger.Debug().Strs("args", args).Msg("executing ffmpeg")

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, e.ffmpegPath, args...)
	cmd.Stdout = stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return stderr.String(), ctx.Err()
		}
		return stderr.String(), fmt.Errorf("ffmpeg execution failed: %w: %s", err, lastLines(stderr.String(), 3))
	}
	return stderr.String(), nil
}

func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, " | ")
}

var (
	ErrNoAudio = errors.New("video has no audio track")
	ErrNoFrame = errors.New("no frame decoded")
)
