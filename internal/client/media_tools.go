package client

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/stemsync/karaoke/internal/config"
)

// MediaTools wraps the external programs used by the separation pipeline
type MediaTools interface {
	VideoID(ctx context.Context, sourceURL string) (string, error)
	DownloadAudio(ctx context.Context, sourceURL, outPath string) error
	DownloadVideo(ctx context.Context, sourceURL, outPath string) error
	MuxKaraoke(ctx context.Context, instrumentalPath, originalPath, videoPath, outPath string) error
}

// karaokeFilter puts the instrumental on the left channel and the original
// mix on the right.
const karaokeFilter = "[0:a]pan=mono|c0=c0[left];[1:a]pan=mono|c0=c0[right];[left][right]join=inputs=2:channel_layout=stereo[a]"

type runFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

// ExecTools implements MediaTools with yt-dlp and ffmpeg binaries
type ExecTools struct {
	ytdlp  string
	ffmpeg string
	run    runFunc
}

// NewExecTools creates MediaTools backed by the configured binaries
func NewExecTools(cfg *config.ToolsConfig) *ExecTools {
	return &ExecTools{
		ytdlp:  cfg.YtDlpPath,
		ffmpeg: cfg.FFmpegPath,
		run:    runCommand,
	}
}

// VideoID resolves the video id of sourceURL
func (t *ExecTools) VideoID(ctx context.Context, sourceURL string) (string, error) {
	out, err := t.run(ctx, t.ytdlp, "--get-id", sourceURL)
	if err != nil {
		return "", fmt.Errorf("failed to fetch video info: %w", err)
	}
	id := strings.TrimSpace(string(out))
	if id == "" {
		return "", fmt.Errorf("failed to fetch video info: empty id")
	}
	return id, nil
}

// DownloadAudio extracts the audio track of sourceURL as WAV
func (t *ExecTools) DownloadAudio(ctx context.Context, sourceURL, outPath string) error {
	if _, err := t.run(ctx, t.ytdlp, "-x", "--audio-format", "wav", "-o", outPath, sourceURL); err != nil {
		return fmt.Errorf("failed to download audio: %w", err)
	}
	return nil
}

// DownloadVideo fetches the best video-only stream of sourceURL
func (t *ExecTools) DownloadVideo(ctx context.Context, sourceURL, outPath string) error {
	if _, err := t.run(ctx, t.ytdlp, "-f", "bestvideo", "-o", outPath, sourceURL); err != nil {
		return fmt.Errorf("failed to download video: %w", err)
	}
	return nil
}

// MuxKaraoke writes outPath with the video stream copied and a stereo AAC
// track built from the instrumental (left) and original audio (right).
func (t *ExecTools) MuxKaraoke(ctx context.Context, instrumentalPath, originalPath, videoPath, outPath string) error {
	args := []string{
		"-y",
		"-i", instrumentalPath,
		"-i", originalPath,
		"-i", videoPath,
		"-filter_complex", karaokeFilter,
		"-map", "2:v", "-map", "[a]",
		"-c:v", "copy", "-c:a", "aac", "-b:a", "192k",
		outPath,
	}
	if _, err := t.run(ctx, t.ffmpeg, args...); err != nil {
		return fmt.Errorf("failed to merge audio channels: %w", err)
	}
	return nil
}

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return out, fmt.Errorf("%s: %w", name, err)
		}
		return out, fmt.Errorf("%s: %w: %s", name, err, lastLine(msg))
	}
	return out, nil
}

func lastLine(s string) string {
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
