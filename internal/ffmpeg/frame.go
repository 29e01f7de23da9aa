package ffmpeg

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"

	ffmpeggo "github.com/u2takey/ffmpeg-go"
)

// GrabFrame seeks to at seconds and decodes exactly one frame. Seeking past
// the last frame returns ErrNoFrame.
func (e *Executor) GrabFrame(ctx context.Context, input string, at float64) (image.Image, error) {
	args := ffmpeggo.Input(input, ffmpeggo.KwArgs{"ss": fmt.Sprintf("%.3f", at)}).
		Output("pipe:", ffmpeggo.KwArgs{
			"vframes": 1,
			"f":       "image2pipe",
			"vcodec":  "png",
		}).
		GetArgs()

	var stdout bytes.Buffer
	if _, err := e.run(ctx, args, &stdout); err != nil {
		if ctx.Err() == nil && stdout.Len() == 0 {
			return nil, fmt.Errorf("frame grab at %.3fs: %w: %v", at, ErrNoFrame, err)
		}
		return nil, fmt.Errorf("frame grab at %.3fs: %w", at, err)
	}
	if stdout.Len() == 0 {
		return nil, fmt.Errorf("frame grab at %.3fs: %w", at, ErrNoFrame)
	}

	img, err := png.Decode(&stdout)
	if err != nil {
		return nil, fmt.Errorf("decode frame at %.3fs: %w", at, err)
	}
	return img, nil
}
