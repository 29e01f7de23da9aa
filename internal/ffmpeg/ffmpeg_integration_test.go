package ffmpeg

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// skipIfNoFFmpeg skips the test if ffmpeg is not available
func skipIfNoFFmpeg(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping ffmpeg integration test in short mode")
	}
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not found in PATH")
	}
	if _, err := exec.LookPath("ffprobe"); err != nil {
		t.Skip("ffprobe not found in PATH")
	}
}

// makeTestVideo renders two 2s solid-colour segments, so there is one hard
// cut at 2s, optionally with a sine tone.
func makeTestVideo(t *testing.T, withAudio bool) string {
	t.Helper()
	out := filepath.Join(t.TempDir(), "cut.mp4")

	args := []string{"-hide_banner", "-loglevel", "error",
		"-f", "lavfi", "-i", "color=c=red:s=160x120:r=25:d=2",
		"-f", "lavfi", "-i", "color=c=blue:s=160x120:r=25:d=2",
	}
	if withAudio {
		args = append(args, "-f", "lavfi", "-i", "sine=frequency=440:sample_rate=44100:duration=4")
	}
	args = append(args, "-filter_complex", "[0:v][1:v]concat=n=2:v=1:a=0[v]", "-map", "[v]")
	if withAudio {
		args = append(args, "-map", "2:a", "-c:a", "aac")
	}
	args = append(args, "-c:v", "libx264", "-pix_fmt", "yuv420p", "-y", out)

	cmd := exec.Command("ffmpeg", args...)
	if output, err := cmd.CombinedOutput(); err != nil {
		t.Skipf("could not render test video: %v: %s", err, output)
	}
	return out
}

func newTestExecutor(t *testing.T) *Executor {
	t.Helper()
	e, err := New(zerolog.Nop(), 1)
	require.NoError(t, err)
	return e
}

func TestIntegration_ProbeVideo(t *testing.T) {
	skipIfNoFFmpeg(t)
	e := newTestExecutor(t)
	video := makeTestVideo(t, true)

	info, err := e.ProbeVideo(context.Background(), video)
	require.NoError(t, err)

	assert.InDelta(t, 4.0, info.Duration, 0.1)
	assert.Equal(t, 160, info.Width)
	assert.True(t, info.HasAudio)
}

func TestIntegration_ProbeUnreadable(t *testing.T) {
	skipIfNoFFmpeg(t)
	e := newTestExecutor(t)

	bogus := filepath.Join(t.TempDir(), "bogus.mp4")
	require.NoError(t, os.WriteFile(bogus, []byte("not a video"), 0o644))

	_, err := e.ProbeVideo(context.Background(), bogus)
	assert.Error(t, err)
}

func TestIntegration_SceneCuts(t *testing.T) {
	skipIfNoFFmpeg(t)
	e := newTestExecutor(t)
	video := makeTestVideo(t, false)

	cuts, err := e.SceneCuts(context.Background(), video, 0.3)
	require.NoError(t, err)
	require.Len(t, cuts, 1)
	assert.InDelta(t, 2.0, cuts[0], 0.05)

	again, err := e.SceneCuts(context.Background(), video, 0.3)
	require.NoError(t, err)
	assert.Equal(t, cuts, again)
}

func TestIntegration_GrabFrame(t *testing.T) {
	skipIfNoFFmpeg(t)
	e := newTestExecutor(t)
	video := makeTestVideo(t, false)

	img, err := e.GrabFrame(context.Background(), video, 3.0)
	require.NoError(t, err)
	assert.Equal(t, 160, img.Bounds().Dx())

	r, g, b, _ := img.At(80, 60).RGBA()
	assert.Greater(t, b, r)
	assert.Greater(t, b, g)

	_, err = e.GrabFrame(context.Background(), video, 60)
	assert.True(t, errors.Is(err, ErrNoFrame))
}

func TestIntegration_ExtractAudio(t *testing.T) {
	skipIfNoFFmpeg(t)
	e := newTestExecutor(t)
	ctx := context.Background()

	out := filepath.Join(t.TempDir(), "audio.wav")
	require.NoError(t, e.ExtractAudio(ctx, makeTestVideo(t, true), out, DefaultWhisperFormat()))

	stat, err := os.Stat(out)
	require.NoError(t, err)
	assert.Greater(t, stat.Size(), int64(16000))

	err = e.ExtractAudio(ctx, makeTestVideo(t, false), filepath.Join(t.TempDir(), "none.wav"), DefaultWhisperFormat())
	assert.True(t, errors.Is(err, ErrNoAudio))
}

func TestIntegration_ExtractSpeechFromTrack(t *testing.T) {
	skipIfNoFFmpeg(t)
	e := newTestExecutor(t)
	ctx := context.Background()
	dir := t.TempDir()

	wavPath := filepath.Join(dir, "audio.wav")
	require.NoError(t, e.ExtractAudio(ctx, makeTestVideo(t, true), wavPath, DefaultWhisperFormat()))

	flacPath := filepath.Join(dir, "speech.flac")
	require.NoError(t, e.ExtractAudio(ctx, wavPath, flacPath, SpeechFormat()))

	wavStat, err := os.Stat(wavPath)
	require.NoError(t, err)
	flacStat, err := os.Stat(flacPath)
	require.NoError(t, err)
	assert.Greater(t, flacStat.Size(), int64(0))
	assert.Less(t, flacStat.Size(), wavStat.Size())
}
