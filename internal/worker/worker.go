// Package worker runs the external tool for one download or preview and
// reports what happened as a stream of events.
package worker

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/tanq16/porygon/internal/thumbnail"
	"github.com/tanq16/porygon/internal/ytdlp"
)

var errNoThumbnail = errors.New("no thumbnail url")

type Worker struct {
	runner  ytdlp.Runner
	fetcher thumbnail.Fetcher
}

func New(runner ytdlp.Runner, fetcher thumbnail.Fetcher) *Worker {
	return &Worker{runner: runner, fetcher: fetcher}
}

// Title queries the video title. Failures yield an empty title.
func (w *Worker) Title(ctx context.Context, url string) string {
	title, err := w.runner.Output(ctx, ytdlp.TitleArgs(url)...)
	if err != nil {
		log.Debug().Str("op", "worker/title").Err(err).Msgf("title query failed for %s", url)
		return ""
	}
	return title
}

// ThumbnailURL queries the remote thumbnail location of url.
func (w *Worker) ThumbnailURL(ctx context.Context, url string) (string, error) {
	thumbURL, err := w.runner.Output(ctx, ytdlp.ThumbnailArgs(url)...)
	if err != nil {
		return "", err
	}
	if thumbURL == "" {
		return "", errNoThumbnail
	}
	return thumbURL, nil
}

// FetchThumbnail queries the thumbnail of url and stores it at dest.
func (w *Worker) FetchThumbnail(ctx context.Context, url, dest string) error {
	thumbURL, err := w.ThumbnailURL(ctx, url)
	if err != nil {
		return fmt.Errorf("thumbnail query failed: %w", err)
	}
	if err := w.fetcher.Fetch(ctx, thumbURL, dest); err != nil {
		return fmt.Errorf("thumbnail fetch failed: %w", err)
	}
	return nil
}

// Run performs the metadata queries and the content fetch for spec. Exactly
// one terminal event (succeeded or failed) is emitted, panics included.
func (w *Worker) Run(ctx context.Context, spec Spec, emit Emit) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("op", "worker/run").Msgf("recovered from panic: %v", r)
			emit(Event{JobID: spec.ID, Kind: EventFailed, ExitCode: -1, Message: fmt.Sprint(r)})
		}
	}()

	title := w.Title(ctx, spec.URL)
	var thumbPath string
	dest := thumbnail.PathForTitle(spec.OutputDir, title)
	if err := w.FetchThumbnail(ctx, spec.URL, dest); err != nil {
		log.Debug().Str("op", "worker/run").Err(err).Msg("continuing without thumbnail")
	} else {
		thumbPath = dest
		emit(Event{JobID: spec.ID, Kind: EventThumbnail, Title: title, ThumbnailPath: thumbPath})
	}

	args := ytdlp.DownloadArgs(spec.Format, spec.OutputDir, spec.URL)
	code, err := w.runner.Stream(ctx, args, func(line string) {
		ev := Event{JobID: spec.ID, Kind: EventProgress, Line: line}
		ev.Percent, ev.HasPercent = ytdlp.ParseProgress(line)
		emit(ev)
		if thumbPath != "" {
			return
		}
		if path, ok := ytdlp.ParseThumbnailPath(line); ok {
			thumbPath = path
			emit(Event{JobID: spec.ID, Kind: EventThumbnail, Title: title, ThumbnailPath: thumbPath})
		}
	})
	switch {
	case err != nil:
		log.Error().Str("op", "worker/run").Err(err).Msgf("download of %s failed", spec.URL)
		emit(Event{JobID: spec.ID, Kind: EventFailed, ExitCode: code, Message: err.Error()})
	case code != 0:
		log.Warn().Str("op", "worker/run").Msgf("yt-dlp exited with code %d for %s", code, spec.URL)
		emit(Event{JobID: spec.ID, Kind: EventFailed, ExitCode: code, Message: fmt.Sprintf("yt-dlp exited with code %d", code)})
	default:
		emit(Event{JobID: spec.ID, Kind: EventSucceeded, Title: title, Format: spec.Format, ThumbnailPath: thumbPath})
	}
}

// Probe is the preview fetch: title and thumbnail only, stored under dir.
// Nothing is emitted once ctx is cancelled.
func (w *Worker) Probe(ctx context.Context, id, url, dir string, emit Emit) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("op", "worker/probe").Msgf("recovered from panic: %v", r)
		}
	}()

	title := w.Title(ctx, url)
	if ctx.Err() != nil {
		return
	}
	var thumbPath string
	dest := thumbnail.PathForTitle(dir, title)
	if err := w.FetchThumbnail(ctx, url, dest); err != nil {
		log.Debug().Str("op", "worker/probe").Err(err).Msgf("no preview thumbnail for %s", url)
	} else {
		thumbPath = dest
	}
	if ctx.Err() != nil {
		return
	}
	if thumbPath != "" {
		emit(Event{JobID: id, Kind: EventThumbnail, Title: title, ThumbnailPath: thumbPath})
	}
	emit(Event{JobID: id, Kind: EventPreviewDone, Title: title, ThumbnailPath: thumbPath})
}
