package transcode

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Options control the preview encode.
type Options struct {
	Height       int
	CRF          int
	Preset       string
	AudioBitrate string
	Timeout      time.Duration
}

// DefaultOptions produce a 720p H.264/AAC MP4 that starts playing before it is fully downloaded.
var DefaultOptions = Options{
	Height:       720,
	CRF:          23,
	Preset:       "fast",
	AudioBitrate: "128k",
}

// Transcoder turns a staged video into a web preview. The returned file sits
// next to the input and belongs to the caller.
type Transcoder interface {
	Transcode(ctx context.Context, inputPath string, opts Options) (string, error)
}

type FFmpeg struct {
	Path string
}

func NewFFmpeg(path string) *FFmpeg {
	if path == "" {
		path = "ffmpeg"
	}
	return &FFmpeg{Path: path}
}

// Check reports whether the binary can be found.
func (f *FFmpeg) Check() error {
	if _, err := exec.LookPath(f.Path); err != nil {
		return fmt.Errorf("%w: %s not found: %v", ErrTranscode, f.Path, err)
	}
	return nil
}

// PreviewPath is where Transcode writes the preview for inputPath.
func PreviewPath(inputPath string) string {
	return strings.TrimSuffix(inputPath, filepath.Ext(inputPath)) + ".preview.mp4"
}

func (f *FFmpeg) Transcode(ctx context.Context, inputPath string, opts Options) (string, error) {
	opts = withDefaults(opts)
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	out := PreviewPath(inputPath)
	cmd := exec.CommandContext(ctx, f.Path, Args(inputPath, out, opts)...)

	stderr := &tailBuffer{limit: 2048}
	cmd.Stderr = stderr

	if err := cmd.Run(); err != nil {
		_ = os.Remove(out)
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		return "", fmt.Errorf("%w: ffmpeg %s: %v: %s", ErrTranscode, filepath.Base(inputPath), err, stderr.String())
	}

	if info, err := os.Stat(out); err != nil || info.Size() == 0 {
		_ = os.Remove(out)
		return "", fmt.Errorf("%w: ffmpeg produced no output for %s", ErrTranscode, filepath.Base(inputPath))
	}
	return out, nil
}

// Args is the ffmpeg command line for one preview encode.
func Args(in, out string, opts Options) []string {
	opts = withDefaults(opts)
	return []string{
		"-hide_banner", "-loglevel", "error",
		"-i", in,
		"-vf", fmt.Sprintf("scale=-2:%d", opts.Height),
		"-c:v", "libx264",
		"-crf", strconv.Itoa(opts.CRF),
		"-preset", opts.Preset,
		"-c:a", "aac",
		"-b:a", opts.AudioBitrate,
		"-movflags", "+faststart",
		"-y", out,
	}
}

func withDefaults(o Options) Options {
	if o.Height <= 0 {
		o.Height = DefaultOptions.Height
	}
	if o.CRF <= 0 {
		o.CRF = DefaultOptions.CRF
	}
	if o.Preset == "" {
		o.Preset = DefaultOptions.Preset
	}
	if o.AudioBitrate == "" {
		o.AudioBitrate = DefaultOptions.AudioBitrate
	}
	return o
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	buf   bytes.Buffer
	limit int
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.buf.Write(p)
	if extra := t.buf.Len() - t.limit; extra > 0 {
		t.buf.Next(extra)
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	return strings.TrimSpace(t.buf.String())
}
