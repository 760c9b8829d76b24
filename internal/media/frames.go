package media

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// FrameExtractor cuts periodic frames out of a video with ffmpeg.
type FrameExtractor struct {
	// FFmpegPath is the ffmpeg binary; defaults to "ffmpeg" on PATH.
	FFmpegPath string
	// Interval between captured frames; defaults to 30s.
	Interval time.Duration
}

func (f *FrameExtractor) bin() string {
	if f.FFmpegPath != "" {
		return f.FFmpegPath
	}
	return "ffmpeg"
}

// Available reports whether the ffmpeg binary can be found.
func (f *FrameExtractor) Available() bool {
	_, err := exec.LookPath(f.bin())
	return err == nil
}

// ExtractFrames writes one PNG per interval into dir, named
// <talkID>_frame_NNNN.png, and returns the paths in capture order.
func (f *FrameExtractor) ExtractFrames(ctx context.Context, videoPath, dir, talkID string) ([]string, error) {
	interval := f.Interval
	if interval <= 0 {
		interval = 30 * time.Second
	}

	pattern := filepath.Join(dir, talkID+"_frame_%04d.png")
	cmd := exec.CommandContext(ctx, f.bin(),
		"-hide_banner", "-loglevel", "error",
		"-i", videoPath,
		"-vf", fmt.Sprintf("fps=1/%d", int(interval.Seconds())),
		"-vsync", "vfr",
		pattern,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg frames: %w: %s", err, tail(stderr.String(), 300))
	}

	frames, err := filepath.Glob(filepath.Join(dir, talkID+"_frame_*.png"))
	if err != nil {
		return nil, fmt.Errorf("glob frames: %w", err)
	}
	sort.Strings(frames)
	return frames, nil
}

// FrameLabel derives the sequence label from a frame image path, e.g.
// "talk_01_frame_0004.png" -> "0004".
func FrameLabel(framePath string) string {
	base := filepath.Base(framePath)
	ext := filepath.Ext(base)
	base = base[:len(base)-len(ext)]
	if i := strings.LastIndexByte(base, '_'); i >= 0 {
		return base[i+1:]
	}
	return base
}
