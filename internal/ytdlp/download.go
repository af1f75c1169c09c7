package ytdlp

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Runner executes the tool. Output is used for metadata-only queries and
// Stream for the content fetch.
type Runner interface {
	Output(ctx context.Context, args ...string) (string, error)
	Stream(ctx context.Context, args []string, onLine func(string)) (int, error)
}

// ExitError reports a non-zero exit of a metadata query.
type ExitError struct {
	Code   int
	Stderr string
}

func (e *ExitError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("yt-dlp exited with code %d", e.Code)
	}
	return fmt.Sprintf("yt-dlp exited with code %d: %s", e.Code, e.Stderr)
}

// Exec runs the tool binary found at Path.
type Exec struct {
	Path string
	// WaitDelay bounds how long Wait blocks on output pipes after the
	// process was killed.
	WaitDelay time.Duration
}

func NewExec(path string) *Exec {
	return &Exec{Path: path, WaitDelay: 2 * time.Second}
}

func (e *Exec) command(ctx context.Context, args []string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, e.Path, args...)
	cmd.WaitDelay = e.WaitDelay
	return cmd
}

func (e *Exec) Output(ctx context.Context, args ...string) (string, error) {
	cmd := e.command(ctx, args)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	log.Debug().Str("op", "ytdlp/output").Msgf("Executing yt-dlp command: %s", cmd.String())
	out, err := cmd.Output()
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", &ExitError{Code: exitErr.ExitCode(), Stderr: strings.TrimSpace(stderr.String())}
		}
		return "", fmt.Errorf("error running yt-dlp: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}

// Stream starts the tool with stdout and stderr merged into one pipe and
// hands every non-empty line to onLine as soon as it is read. It returns the
// exit code once the process has exited. Cancelling ctx kills the process and
// stops line delivery.
func (e *Exec) Stream(ctx context.Context, args []string, onLine func(string)) (int, error) {
	cmd := e.command(ctx, args)
	pr, pw := io.Pipe()
	cmd.Stdout = pw
	cmd.Stderr = pw
	log.Debug().Str("op", "ytdlp/stream").Msgf("Executing yt-dlp command: %s", cmd.String())
	if err := cmd.Start(); err != nil {
		pw.Close()
		pr.Close()
		log.Error().Str("op", "ytdlp/stream").Err(err).Msg("Error starting yt-dlp")
		return -1, fmt.Errorf("error starting yt-dlp: %w", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		processStream(ctx, pr, onLine)
	}()
	waitErr := cmd.Wait()
	pw.Close()
	<-done

	if ctx.Err() != nil {
		return -1, ctx.Err()
	}
	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			return exitErr.ExitCode(), nil
		}
		return -1, fmt.Errorf("yt-dlp failed: %w", waitErr)
	}
	return 0, nil
}

// processStream reads lines until EOF. Once ctx is cancelled the remaining
// lines are drained without being delivered so the writer never blocks.
func processStream(ctx context.Context, reader io.Reader, onLine func(string)) {
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	scanner.Split(scanLines)
	for scanner.Scan() {
		if ctx.Err() != nil {
			continue
		}
		line := strings.TrimSpace(scanner.Text())
		if line != "" && onLine != nil {
			onLine(line)
		}
	}
	if err := scanner.Err(); err != nil {
		log.Debug().Str("op", "ytdlp/stream").Err(err).Msg("Scanner stopped")
		io.Copy(io.Discard, reader)
	}
}

// scanLines splits on '\n' and on bare '\r', which the tool uses to redraw
// its progress line in place.
func scanLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
