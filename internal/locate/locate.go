// Package locate finds the media file a finished download produced.
package locate

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tanq16/porygon/internal/ytdlp"
)

var (
	ErrNotFound    = errors.New("downloaded file not found")
	ErrDirNotFound = errors.New("output directory not found")
)

var mediaExtensions = []string{".mp4", ".mp3"}

type candidate struct {
	name    string
	modTime time.Time
}

// Resolve returns the path of the file downloaded for title into dir.
// The expected name is tried first; otherwise the immediate entries of dir
// whose name contains title (case-insensitive) and carries a media extension
// are considered, newest first with name as the final tie-break.
func Resolve(dir, title, format string) (string, error) {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return "", fmt.Errorf("%w: %s", ErrDirNotFound, dir)
	}

	expected := filepath.Join(dir, title+ytdlp.MediaExtension(format))
	if fi, err := os.Stat(expected); err == nil && !fi.IsDir() {
		return expected, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDirNotFound, err)
	}
	needle := strings.ToLower(title)
	var matches []candidate
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		lower := strings.ToLower(entry.Name())
		if !strings.Contains(lower, needle) || !hasMediaExtension(lower) {
			continue
		}
		fi, err := entry.Info()
		if err != nil {
			continue
		}
		matches = append(matches, candidate{name: entry.Name(), modTime: fi.ModTime()})
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("%w: %q in %s", ErrNotFound, title, dir)
	}

	sort.Slice(matches, func(i, j int) bool {
		if !matches[i].modTime.Equal(matches[j].modTime) {
			return matches[i].modTime.After(matches[j].modTime)
		}
		return matches[i].name < matches[j].name
	})
	if len(matches) > 1 {
		log.Debug().Str("op", "locate/resolve").Msgf("%d candidates for %q, picked %s", len(matches), title, matches[0].name)
	}
	return filepath.Join(dir, matches[0].name), nil
}

func hasMediaExtension(name string) bool {
	for _, ext := range mediaExtensions {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}
