// Package ytdlp wraps the external downloader tool: locating it, building
// its command lines, running it and classifying its output lines.
package ytdlp

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

const ToolName = "yt-dlp"

// Recognized format options. They double as UI labels.
const (
	FormatHigh   = "High Quality Video (mp4)"
	FormatMedium = "Medium Quality Video (mp4)"
	FormatLow    = "Low Quality Video (mp4)"
	FormatAudio  = "Audio Only (mp3)"
)

var ErrToolNotFound = errors.New("yt-dlp not found")

var formatOrder = []string{FormatHigh, FormatMedium, FormatLow, FormatAudio}

var formatArgs = map[string][]string{
	FormatHigh:   {"-f", "bestvideo[ext=mp4]+bestaudio[ext=m4a]/best[ext=mp4]/best"},
	FormatMedium: {"-f", "bestvideo[height<=720][ext=mp4]+bestaudio[ext=m4a]/best[height<=720][ext=mp4]/best[height<=720]"},
	FormatLow:    {"-f", "bestvideo[height<=480][ext=mp4]+bestaudio[ext=m4a]/best[height<=480][ext=mp4]/best[height<=480]"},
	FormatAudio:  {"-x", "--audio-format", "mp3"},
}

// Formats returns the format options in display order.
func Formats() []string {
	return append([]string(nil), formatOrder...)
}

func IsKnownFormat(option string) bool {
	_, ok := formatArgs[option]
	return ok
}

// FormatArgs returns a copy of the argument template for option.
func FormatArgs(option string) ([]string, bool) {
	args, ok := formatArgs[option]
	if !ok {
		return nil, false
	}
	return append([]string(nil), args...), true
}

func IsAudioOnly(option string) bool {
	return strings.Contains(option, "Audio Only")
}

// MediaExtension is the extension the tool is expected to produce for option.
func MediaExtension(option string) string {
	if IsAudioOnly(option) {
		return ".mp3"
	}
	return ".mp4"
}

func TitleArgs(url string) []string {
	return []string{"--get-title", url}
}

func ThumbnailArgs(url string) []string {
	return []string{"--get-thumbnail", url}
}

// DownloadArgs builds the content-fetch invocation. Unknown options add no
// format arguments and leave the choice to the tool.
func DownloadArgs(option, outputDir, url string) []string {
	args, _ := FormatArgs(option)
	args = append(args, "--write-thumbnail")
	args = append(args, "-o", outputDir+"/%(title)s.%(ext)s")
	return append(args, url)
}

// Locate resolves the tool binary: an explicit path first, then PATH, then
// the directory holding the running executable.
func Locate(configured string) (string, error) {
	if configured != "" {
		path, err := exec.LookPath(configured)
		if err != nil {
			return "", fmt.Errorf("%w: %s: %v", ErrToolNotFound, configured, err)
		}
		return path, nil
	}
	path, err := exec.LookPath(ToolName)
	if err == nil {
		return path, nil
	}
	execPath, err := os.Executable()
	if err == nil {
		local := filepath.Join(filepath.Dir(execPath), binaryName())
		if _, err := os.Stat(local); err == nil {
			return local, nil
		}
	}
	return "", fmt.Errorf("%w in PATH, run `porygon setup` or pass --tool", ErrToolNotFound)
}

func binaryName() string {
	if runtime.GOOS == "windows" {
		return ToolName + ".exe"
	}
	return ToolName
}
