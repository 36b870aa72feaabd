package catalog

import (
	"fmt"
	"sort"

	"github.com/tanq16/telegrab/internal/types"
)

// Option is one selectable entry of a format menu. IDs are short stable
// tokens ("audio", "v1080", "best") that fit Telegram's callback-data cap.
type Option struct {
	ID        string
	Label     string
	Selector  string
	AudioOnly bool
}

const (
	// SelectorBest is the best-effort selector used for the always-present
	// fallback entry and for playlist entries that get no per-item menu.
	SelectorBest  = "bestvideo+bestaudio/best"
	selectorAudio = "bestaudio[ext=m4a]/bestaudio"

	maxMenuEntries = 10
	maxIDLength    = 60 // transport callback payload is capped at 64 bytes
)

var resolutionLadder = []int{2160, 1440, 1080, 720, 480, 360, 240, 144}

func selectorForHeight(height int) string {
	return fmt.Sprintf("bestvideo[height<=%d][ext=mp4]+bestaudio[ext=m4a]/bestvideo[height<=%d]+bestaudio/best", height, height)
}

// Build turns the raw encoding list for one item into an ordered menu. It is
// pure and deterministic; IDs are unique and at most one entry is
// audio-only (always first). An empty result means nothing is selectable.
func Build(formats []types.MediaFormat) []Option {
	usable := false
	hasAudio := false
	for _, f := range formats {
		if f.HasVideo() || f.HasAudio() {
			usable = true
		}
		if f.HasAudio() {
			hasAudio = true
		}
	}
	if !usable {
		return nil
	}

	sorted := make([]types.MediaFormat, len(formats))
	copy(sorted, formats)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Height != sorted[j].Height {
			return sorted[i].Height > sorted[j].Height
		}
		return sorted[i].Bitrate > sorted[j].Bitrate
	})

	var options []Option
	if hasAudio {
		options = append(options, Option{
			ID:        "audio",
			Label:     "Audio only",
			Selector:  selectorAudio,
			AudioOnly: true,
		})
	}

	emitted := make(map[int]bool)
	for _, f := range sorted {
		if !f.HasVideo() || f.Height <= 0 {
			continue
		}
		rung := ladderRung(f.Height)
		if emitted[rung] {
			continue
		}
		emitted[rung] = true
		options = append(options, Option{
			ID:       fmt.Sprintf("v%d", rung),
			Label:    fmt.Sprintf("%dp", rung),
			Selector: selectorForHeight(rung),
		})
	}

	options = append(options, Option{
		ID:       "best",
		Label:    "Best available",
		Selector: SelectorBest,
	})

	kept := options[:0]
	for _, opt := range options {
		if len(opt.ID) > maxIDLength {
			continue
		}
		kept = append(kept, opt)
		if len(kept) == maxMenuEntries {
			break
		}
	}
	return kept
}

// ladderRung maps an encoding height to the smallest ladder entry at or
// above it, so the rung's height-capped selector can still fetch the
// encoding. Heights above the top rung clamp down to it.
func ladderRung(height int) int {
	if height > resolutionLadder[0] {
		return resolutionLadder[0]
	}
	rung := 0
	for _, r := range resolutionLadder {
		if r >= height {
			rung = r
		}
	}
	return rung
}
