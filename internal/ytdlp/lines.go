package ytdlp

import (
	"math"
	"strconv"
	"strings"
)

const (
	progressMarker      = "[download]"
	thumbnailLineMarker = "[info] Writing thumbnail"
	thumbnailPathMarker = "Writing thumbnail to: "
)

// ParseProgress extracts the integer percentage from a download progress
// line. The token right before the first '%' is parsed, floored and clamped
// to [0, 100].
func ParseProgress(line string) (int, bool) {
	if !strings.Contains(line, progressMarker) || !strings.Contains(line, "%") {
		return 0, false
	}
	fields := strings.Fields(strings.SplitN(line, "%", 2)[0])
	if len(fields) == 0 {
		return 0, false
	}
	value, err := strconv.ParseFloat(fields[len(fields)-1], 64)
	if err != nil || math.IsNaN(value) {
		return 0, false
	}
	value = math.Floor(value)
	switch {
	case value < 0:
		return 0, true
	case value > 100:
		return 100, true
	}
	return int(value), true
}

// ParseThumbnailPath returns the file path from a line reporting that the tool
// wrote its own thumbnail.
func ParseThumbnailPath(line string) (string, bool) {
	if !strings.Contains(line, thumbnailLineMarker) {
		return "", false
	}
	parts := strings.SplitN(line, thumbnailPathMarker, 2)
	if len(parts) < 2 {
		return "", false
	}
	path := strings.TrimSpace(parts[1])
	return path, path != ""
}
