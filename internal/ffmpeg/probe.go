package ffmpeg

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
)

// VideoInfo is the subset of ffprobe metadata the pipeline needs.
type VideoInfo struct {
	FilePath   string
	Duration   float64
	Width      int
	Height     int
	FPS        float64
	VideoCodec string
	HasVideo   bool
	HasAudio   bool
	AudioCodec string
}

// ProbeVideo extracts metadata from a video file
func (e *Executor) ProbeVideo(ctx context.Context, filePath string) (*VideoInfo, error) {
	if filePath == "" {
		return nil, fmt.Errorf("file path is required")
	}

	args := []string{
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		filePath,
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, e.ffprobePath, args...)
	cmd.Stderr = &stderr
	output, err := cmd.Output()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("ffprobe failed: %w: %s", err, lastLines(stderr.String(), 3))
	}

	info, err := parseProbe(output)
	if err != nil {
		return nil, err
	}
	info.FilePath = filePath
	return info, nil
}

func parseProbe(output []byte) (*VideoInfo, error) {
	var probe probeResult
	if err := json.Unmarshal(output, &probe); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	info := &VideoInfo{}
	if dur, err := strconv.ParseFloat(probe.Format.Duration, 64); err == nil {
		info.Duration = dur
	}

	for _, stream := range probe.Streams {
		switch stream.CodecType {
		case "video":
			if info.HasVideo {
				continue
			}
			info.HasVideo = true
			info.Width = stream.Width
			info.Height = stream.Height
			info.VideoCodec = stream.CodecName
			info.FPS = parseFrameRate(stream.RFrameRate)
			if info.Duration == 0 {
				if dur, err := strconv.ParseFloat(stream.Duration, 64); err == nil {
					info.Duration = dur
				}
			}
		case "audio":
			if !info.HasAudio {
				info.HasAudio = true
				info.AudioCodec = stream.CodecName
			}
		}
	}

	if !info.HasVideo {
		return nil, fmt.Errorf("no video stream found")
	}
	return info, nil
}

// parseFrameRate parses ffprobe rates such as "30000/1001".
func parseFrameRate(rate string) float64 {
	var num, den float64
	if _, err := fmt.Sscanf(rate, "%f/%f", &num, &den); err != nil || den == 0 {
		return 0
	}
	return num / den
}

// probeResult matches ffprobe JSON output structure
type probeResult struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
	Streams []struct {
		CodecType  string `json:"codec_type"`
		CodecName  string `json:"codec_name"`
		Width      int    `json:"width"`
		Height     int    `json:"height"`
		RFrameRate string `json:"r_frame_rate"`
		Duration   string `json:"duration"`
	} `json:"streams"`
}
