package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tanq16/telegrab/internal/types"
)

type probeFormat struct {
	FormatID string  `json:"format_id"`
	Ext      string  `json:"ext"`
	Height   int     `json:"height"`
	TBR      float64 `json:"tbr"`
	Vcodec   string  `json:"vcodec"`
	Acodec   string  `json:"acodec"`
}

type probeEntry struct {
	URL        string `json:"url"`
	WebpageURL string `json:"webpage_url"`
	Title      string `json:"title"`
}

type probePayload struct {
	Type    string        `json:"_type"`
	Title   string        `json:"title"`
	Formats []probeFormat `json:"formats"`
	Entries []probeEntry  `json:"entries"`
}

// Probe fetches metadata without downloading. Playlists come back flat, so
// large collections stay cheap to inspect.
func (e *YtdlpEngine) Probe(ctx context.Context, url string) (*types.ProbeResult, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}
	args := []string{"-J", "--flat-playlist", "--no-warnings", url}
	cmd := exec.CommandContext(ctx, e.ytdlpPath, args...)
	log.Debug().Str("op", "engine/probe").Msgf("Executing yt-dlp command: %s", cmd.String())

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		log.Error().Str("op", "engine/probe").Err(err).Msgf("yt-dlp probe failed for %s", url)
		return nil, fmt.Errorf("yt-dlp probe failed: %s", stderrTail(stderr.String(), err))
	}

	var payload probePayload
	if err := json.Unmarshal(stdout.Bytes(), &payload); err != nil {
		return nil, fmt.Errorf("error parsing probe output: %v", err)
	}

	if payload.Type == "playlist" {
		info := &types.CollectionInfo{Title: payload.Title}
		for _, entry := range payload.Entries {
			entryURL := entry.WebpageURL
			if entryURL == "" {
				entryURL = entry.URL
			}
			if entryURL == "" {
				continue
			}
			info.Entries = append(info.Entries, types.CollectionEntry{URL: entryURL, Title: entry.Title})
		}
		if len(info.Entries) == 0 {
			return nil, fmt.Errorf("playlist %q has no retrievable entries", payload.Title)
		}
		return &types.ProbeResult{Collection: info}, nil
	}

	info := &types.ItemInfo{Title: payload.Title}
	for _, f := range payload.Formats {
		info.Formats = append(info.Formats, types.MediaFormat{
			FormatID:   f.FormatID,
			Ext:        f.Ext,
			Height:     f.Height,
			Bitrate:    f.TBR,
			VideoCodec: f.Vcodec,
			AudioCodec: f.Acodec,
		})
	}
	return &types.ProbeResult{Item: info}, nil
}

// stderrTail keeps the last meaningful yt-dlp line so user-facing errors
// stay short.
func stderrTail(stderr string, fallback error) string {
	lines := strings.Split(strings.TrimSpace(stderr), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if line != "" {
			return strings.TrimPrefix(line, "ERROR: ")
		}
	}
	return fallback.Error()
}
