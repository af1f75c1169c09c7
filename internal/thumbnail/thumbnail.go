// Package thumbnail derives cache paths for preview images and fetches them.
package thumbnail

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tanq16/porygon/internal/utils"
)

// Fetcher stores the image at url into dest.
type Fetcher interface {
	Fetch(ctx context.Context, url, dest string) error
}

var pathReplacer = strings.NewReplacer("/", "_", "\\", "_")

// PathForTitle is where a download's thumbnail is stored next to its media.
func PathForTitle(dir, title string) string {
	return filepath.Join(dir, pathReplacer.Replace(title)+"_thumbnail.jpg")
}

// PathForRecord is the cache path of a lazily fetched thumbnail for the
// history record at storage index.
func PathForRecord(tempDir string, index int) string {
	return filepath.Join(tempDir, fmt.Sprintf("history_thumbnail_%d.jpg", index))
}

func Exists(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

type HTTPFetcher struct {
	client utils.HTTPDoer
}

func NewHTTPFetcher(client utils.HTTPDoer) *HTTPFetcher {
	return &HTTPFetcher{client: client}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, url, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("error fetching thumbnail: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("bad status: %s", resp.Status)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return fmt.Errorf("error creating thumbnail directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".thumb-*")
	if err != nil {
		return fmt.Errorf("error creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		return fmt.Errorf("error writing thumbnail: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return fmt.Errorf("error moving thumbnail into place: %w", err)
	}
	log.Debug().Str("op", "thumbnail/fetch").Msgf("Stored %s", dest)
	return nil
}
