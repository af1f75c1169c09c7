// Package platform hands paths and URLs to the operating system.
package platform

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/rs/zerolog/log"
)

const (
	osDarwin  = "darwin"
	osWindows = "windows"
)

// Reveal shows path in the file manager. Directories are opened directly;
// on Linux a file reveals its parent directory.
func Reveal(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to get absolute path: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return err
	}
	name, args := revealCommand(runtime.GOOS, abs, info.IsDir())
	return start(name, args...)
}

// Open hands a file path or URL to the default application.
func Open(target string) error {
	if !isURL(target) {
		abs, err := filepath.Abs(target)
		if err != nil {
			return fmt.Errorf("failed to get absolute path: %w", err)
		}
		target = abs
	}
	name, args := openCommand(runtime.GOOS, target)
	return start(name, args...)
}

func revealCommand(goos, path string, isDir bool) (string, []string) {
	switch {
	case goos == osDarwin && isDir:
		return "open", []string{path}
	case goos == osDarwin:
		return "open", []string{"-R", path}
	case goos == osWindows && isDir:
		return "explorer", []string{path}
	case goos == osWindows:
		return "explorer", []string{"/select," + path}
	case !isDir:
		return "xdg-open", []string{filepath.Dir(path)}
	default:
		return "xdg-open", []string{path}
	}
}

func openCommand(goos, target string) (string, []string) {
	switch goos {
	case osDarwin:
		return "open", []string{target}
	case osWindows:
		return "cmd", []string{"/c", "start", "", target}
	default:
		return "xdg-open", []string{target}
	}
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// start launches the helper without waiting for it.
func start(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to run %s: %w", name, err)
	}
	log.Debug().Str("op", "platform/start").Msgf("started %s %s", name, strings.Join(args, " "))
	go cmd.Wait()
	return nil
}
