package engine

import (
	"fmt"
	"os"
	"time"

	"github.com/tanq16/telegrab/internal/config"
)

// YtdlpEngine drives yt-dlp for metadata probes and downloads. The binary
// and ffmpeg are resolved once at construction.
type YtdlpEngine struct {
	ytdlpPath  string
	ffmpegPath string
	scratchDir string
	timeout    time.Duration
}

func New(cfg *config.Config) (*YtdlpEngine, error) {
	if err := os.MkdirAll(cfg.DownloadDir, 0755); err != nil {
		return nil, fmt.Errorf("error creating download directory: %v", err)
	}
	ytdlpPath := cfg.YtdlpPath
	if ytdlpPath == "" {
		var err error
		ytdlpPath, err = EnsureYtdlp(cfg.DownloadDir)
		if err != nil {
			return nil, fmt.Errorf("error ensuring yt-dlp: %v", err)
		}
	}
	ffmpegPath := cfg.FfmpegPath
	if ffmpegPath == "" {
		var err error
		ffmpegPath, err = EnsureFFmpeg()
		if err != nil {
			return nil, fmt.Errorf("error ensuring ffmpeg: %v", err)
		}
	}
	return &YtdlpEngine{
		ytdlpPath:  ytdlpPath,
		ffmpegPath: ffmpegPath,
		scratchDir: cfg.DownloadDir,
		timeout:    time.Duration(cfg.FetchTimeout),
	}, nil
}
