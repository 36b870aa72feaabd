package engine

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tanq16/telegrab/internal/types"
)

// Fetch downloads one job's media into the scratch directory. Output files
// carry the job ID as a prefix so leftovers are always attributable to one
// job. A nil artifact with a nil error means yt-dlp reported success but
// produced nothing usable; the caller classifies that separately.
func (e *YtdlpEngine) Fetch(ctx context.Context, job *types.Job, sink func(types.Progress)) (*types.Artifact, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}
	outputTemplate := filepath.Join(e.scratchDir, job.ID+"-%(title)s.%(ext)s")
	args := []string{
		"--progress",
		"--newline",
		"--no-warnings",
		"-f", job.Selector,
		"--ffmpeg-location", e.ffmpegPath,
		"-o", outputTemplate,
		"--no-playlist",
		job.SourceURL,
	}
	cmd := exec.CommandContext(ctx, e.ytdlpPath, args...)
	log.Debug().Str("op", "engine/fetch").Msgf("Executing yt-dlp command: %s", cmd.String())

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("error creating stdout pipe: %v", err)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("error starting yt-dlp: %v", err)
	}

	go streamProgress(stdout, sink)
	if err := cmd.Wait(); err != nil {
		log.Error().Str("op", "engine/fetch").Err(err).Msgf("yt-dlp fetch failed for %s", job.SourceURL)
		return nil, fmt.Errorf("yt-dlp failed: %s", stderrTail(stderr.String(), err))
	}
	log.Info().Str("op", "engine/fetch").Msgf("yt-dlp download completed for %s", job.SourceURL)
	return e.collectArtifact(job)
}

func streamProgress(reader io.Reader, sink func(types.Progress)) {
	scanner := bufio.NewScanner(reader)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || sink == nil {
			continue
		}
		if progress, ok := ParseProgressLine(line); ok {
			sink(progress)
		}
	}
}

// collectArtifact locates the file yt-dlp produced for this job by its ID
// prefix, skipping partial-download leftovers.
func (e *YtdlpEngine) collectArtifact(job *types.Job) (*types.Artifact, error) {
	matches, err := filepath.Glob(filepath.Join(e.scratchDir, job.ID+"-*"))
	if err != nil {
		return nil, fmt.Errorf("error scanning scratch directory: %v", err)
	}
	var best *types.Artifact
	for _, path := range matches {
		ext := filepath.Ext(path)
		if ext == ".part" || ext == ".ytdl" || ext == ".tmp" {
			continue
		}
		stat, err := os.Stat(path)
		if err != nil || stat.IsDir() {
			continue
		}
		if best == nil || stat.Size() > best.SizeBytes {
			best = &types.Artifact{
				LocalPath: path,
				SizeBytes: stat.Size(),
				Title:     artifactTitle(path, job),
			}
		}
	}
	return best, nil
}

func artifactTitle(path string, job *types.Job) string {
	if job.Title != "" {
		return job.Title
	}
	base := filepath.Base(path)
	base = strings.TrimPrefix(base, job.ID+"-")
	return strings.TrimSuffix(base, filepath.Ext(base))
}
