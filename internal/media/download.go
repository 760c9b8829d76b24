// Package media shells out to yt-dlp and ffmpeg for the pieces of the pipeline
// that stay delegated to external tools: fetching talk audio/video and cutting
// frames for slide OCR.
package media

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// Downloader fetches talk media with yt-dlp.
type Downloader struct {
	// YtDlpPath is the yt-dlp binary; defaults to "yt-dlp" on PATH.
	YtDlpPath string
}

func (d *Downloader) bin() string {
	if d.YtDlpPath != "" {
		return d.YtDlpPath
	}
	return "yt-dlp"
}

// Available reports whether the yt-dlp binary can be found.
func (d *Downloader) Available() bool {
	_, err := exec.LookPath(d.bin())
	return err == nil
}

// DownloadAudio fetches the best audio stream for url and converts it to a
// 16 kHz wav (the rate speech models expect). Returns the audio file path.
func (d *Downloader) DownloadAudio(ctx context.Context, url, dir, talkID string) (string, error) {
	outTmpl := filepath.Join(dir, talkID+".%(ext)s")
	cmd := exec.CommandContext(ctx, d.bin(),
		"-f", "bestaudio/best",
		"-x", "--audio-format", "wav",
		"--postprocessor-args", "ffmpeg:-ar 16000",
		"-o", outTmpl,
		url,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("yt-dlp audio %s: %w: %s", url, err, tail(stderr.String(), 300))
	}

	audioPath := filepath.Join(dir, talkID+".wav")
	if _, err := os.Stat(audioPath); err != nil {
		return "", fmt.Errorf("audio file missing after download: %s", audioPath)
	}
	return audioPath, nil
}

// DownloadVideo fetches a low-resolution rendition (≤480p) for frame
// extraction. Returns the video file path.
func (d *Downloader) DownloadVideo(ctx context.Context, url, dir, talkID string) (string, error) {
	videoPath := filepath.Join(dir, talkID+"_video.mp4")
	cmd := exec.CommandContext(ctx, d.bin(),
		"-f", "best[height<=480]",
		"-o", videoPath,
		url,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("yt-dlp video %s: %w: %s", url, err, tail(stderr.String(), 300))
	}
	if _, err := os.Stat(videoPath); err != nil {
		return "", fmt.Errorf("video file missing after download: %s", videoPath)
	}
	return videoPath, nil
}

// tail returns the last n bytes of s; tool stderr ends with the useful part.
func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
