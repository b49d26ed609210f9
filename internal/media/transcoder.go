package media

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// FFmpegCommand is the default transcoder binary.
const FFmpegCommand = "ffmpeg"

// CommandRunner executes an external command. Tests replace it.
type CommandRunner func(ctx context.Context, name string, args ...string) error

// Transcoder extracts and re-encodes a time range of a source file.
// durationSec <= 0 means "until the end of the input".
type Transcoder interface {
	Extract(ctx context.Context, source string, startSec, durationSec int, dest string) error
}

// FFmpeg re-encodes audio to mono, low-bitrate Opus in an Ogg container at the
// policy sample rate.
type FFmpeg struct {
	binary string
	policy Policy
	runner CommandRunner
}

func NewFFmpeg(binary string, policy Policy) *FFmpeg {
	if binary == "" {
		binary = FFmpegCommand
	}
	return &FFmpeg{binary: binary, policy: policy}
}

// WithCommandRunner sets a custom command runner (for testing).
func (f *FFmpeg) WithCommandRunner(runner CommandRunner) *FFmpeg {
	f.runner = runner
	return f
}

func (f *FFmpeg) Extract(ctx context.Context, source string, startSec, durationSec int, dest string) error {
	if source == "" || dest == "" {
		return fmt.Errorf("ffmpeg extract: source and dest required")
	}
	if startSec < 0 {
		return fmt.Errorf("ffmpeg extract: invalid start %d", startSec)
	}
	args := buildExtractArgs(source, startSec, durationSec, dest, f.policy)
	return f.run(ctx, args...)
}

func (f *FFmpeg) run(ctx context.Context, args ...string) error {
	if f.runner != nil {
		return f.runner(ctx, f.binary, args...)
	}
	cmd := exec.CommandContext(ctx, f.binary, args...) //nolint:gosec
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("ffmpeg extract: %w: %s", err, strings.TrimSpace(string(output)))
	}
	return nil
}

func buildExtractArgs(source string, startSec, durationSec int, dest string, p Policy) []string {
	args := []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
	}
	if durationSec > 0 {
		args = append(args,
			"-ss", strconv.Itoa(startSec),
			"-t", strconv.Itoa(durationSec),
		)
	}
	args = append(args,
		"-i", source,
		"-vn",
		"-sn",
		"-dn",
		"-ac", strconv.Itoa(p.Channels),
		"-ar", strconv.Itoa(p.SampleRateHz),
		"-c:a", "libopus",
		"-b:a", fmt.Sprintf("%dk", p.BitrateKbps),
		"-application", "voip",
		dest,
	)
	return args
}
