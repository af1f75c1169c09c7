package ytdlp

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"

	"github.com/rs/zerolog/log"
	"github.com/tanq16/porygon/internal/utils"
)

const releaseURL = "https://github.com/yt-dlp/yt-dlp/releases/latest/download/%s"

func releaseAsset(goos, goarch string) (string, error) {
	switch {
	case goos == "windows" && goarch == "amd64":
		return "yt-dlp.exe", nil
	case goos == "windows" && goarch == "arm64":
		return "yt-dlp_arm64.exe", nil
	case goos == "linux" && goarch == "amd64":
		return "yt-dlp_linux", nil
	case goos == "linux" && goarch == "arm64":
		return "yt-dlp_linux_aarch64", nil
	case goos == "darwin":
		return "yt-dlp_macos", nil
	default:
		return "", fmt.Errorf("unsupported OS/arch: %s/%s", goos, goarch)
	}
}

// Install downloads the latest release binary for this platform into dir.
func Install(ctx context.Context, client utils.HTTPDoer, dir string) (string, error) {
	asset, err := releaseAsset(runtime.GOOS, runtime.GOARCH)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("error creating install directory: %w", err)
	}
	dest := filepath.Join(dir, binaryName())
	log.Debug().Str("op", "ytdlp/install").Msgf("Fetching %s into %s", asset, dest)
	if err := downloadFile(ctx, client, fmt.Sprintf(releaseURL, asset), dest); err != nil {
		return "", err
	}
	if runtime.GOOS != "windows" {
		if err := os.Chmod(dest, 0755); err != nil {
			return "", fmt.Errorf("error setting permissions: %w", err)
		}
	}
	return dest, nil
}

func downloadFile(ctx context.Context, client utils.HTTPDoer, url, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("bad status: %s", resp.Status)
	}
	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer out.Close()
	_, err = io.Copy(out, resp.Body)
	return err
}
