package engine

import (
	"regexp"
	"strconv"

	"github.com/tanq16/telegrab/internal/types"
)

// Matches yt-dlp --newline progress output, e.g.
// [download]  42.1% of ~  10.00MiB at    1.25MiB/s ETA 00:05
// [download] 100% of 10.00MiB in 00:08
var progressRegex = regexp.MustCompile(`^\[download\]\s+([0-9.]+)%(?:\s+of\s+~?\s*([0-9.]+)(KiB|MiB|GiB|TiB|B))?(?:\s+at\s+(\S+))?(?:\s+ETA\s+(\S+))?`)

var unitBytes = map[string]float64{
	"B":   1,
	"KiB": 1024,
	"MiB": 1024 * 1024,
	"GiB": 1024 * 1024 * 1024,
	"TiB": 1024 * 1024 * 1024 * 1024,
}

// ParseProgressLine extracts a progress event from one line of yt-dlp
// output. Non-progress lines report ok=false.
func ParseProgressLine(line string) (types.Progress, bool) {
	matches := progressRegex.FindStringSubmatch(line)
	if matches == nil {
		return types.Progress{}, false
	}
	percent, err := strconv.ParseFloat(matches[1], 64)
	if err != nil {
		return types.Progress{}, false
	}
	progress := types.Progress{
		Percent: percent,
		Speed:   matches[4],
		ETA:     matches[5],
	}
	if matches[2] != "" {
		if total, err := strconv.ParseFloat(matches[2], 64); err == nil {
			progress.TotalBytes = int64(total * unitBytes[matches[3]])
		}
	}
	return progress, true
}
