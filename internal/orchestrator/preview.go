package orchestrator

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/tanq16/porygon/internal/utils"
	"github.com/tanq16/porygon/internal/worker"
)

// InputChanged feeds the current URL input. A preview is fetched once a
// candidate URL has been stable for the debounce delay; newer input replaces
// the pending candidate.
func (c *Controller) InputChanged(text string) error {
	text = strings.TrimSpace(text)
	return c.do(func() {
		if text == "" || !utils.ContainsAny(text, c.hosts) {
			c.stopTimer()
			return
		}
		if text == c.lastCandidate {
			return
		}
		c.lastCandidate = text
		c.schedule(text)
	})
}

func (c *Controller) schedule(url string) {
	c.stopTimer()
	c.timerGen++
	gen := c.timerGen
	c.timer = time.AfterFunc(c.debounce, func() {
		c.post(func() {
			if gen != c.timerGen {
				return
			}
			c.timer = nil
			c.startPreview(url)
		})
	})
	log.Debug().Str("op", "orchestrator/debounce").Msgf("preview of %s scheduled in %s", url, c.debounce)
}

// stopTimer cancels a pending preview. Bumping the generation also discards
// a timer that already fired but whose callback is still queued.
func (c *Controller) stopTimer() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.timerGen++
}

// StartPreview fetches the title and thumbnail of url right away. A preview
// still in flight is cancelled and the new one only starts after it exited.
func (c *Controller) StartPreview(url string) (string, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return "", ErrEmptyURL
	}
	var id string
	err := c.do(func() {
		c.stopTimer()
		id = c.startPreview(url)
	})
	return id, err
}

func (c *Controller) startPreview(url string) string {
	var prev <-chan struct{}
	if c.preview != nil {
		c.preview.cancel()
		prev = c.preview.done
		log.Debug().Str("op", "orchestrator/preview").Msgf("cancelled preview %s", c.preview.id)
	}

	ctx, cancel := context.WithCancel(c.ctx)
	run := &previewRun{id: uuid.New().String(), url: url, cancel: cancel, done: make(chan struct{})}
	c.preview = run

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer close(run.done)
		defer cancel()
		if prev != nil {
			<-prev
		}
		if ctx.Err() != nil {
			return
		}
		c.worker.Probe(ctx, run.id, url, c.tempDir, c.emitter(ctx.Done()))
	}()
	log.Debug().Str("op", "orchestrator/preview").Msgf("started preview %s of %s", run.id, url)
	return run.id
}

func (c *Controller) handlePreview(ev worker.Event) {
	switch ev.Kind {
	case worker.EventThumbnail:
		if c.hooks.OnThumbnail != nil {
			c.hooks.OnThumbnail(ev.JobID, ev.Title, ev.ThumbnailPath)
		}
	case worker.EventPreviewDone:
		if c.hooks.OnPreview != nil {
			c.hooks.OnPreview(Preview{ID: ev.JobID, URL: c.preview.url, Title: ev.Title, ThumbnailPath: ev.ThumbnailPath})
		}
	}
}

// PreviewPending reports whether a preview is scheduled or still being
// fetched. Once it returns false every finished preview has been reported.
func (c *Controller) PreviewPending() (bool, error) {
	var pending bool
	err := c.do(func() {
		if c.timer != nil {
			pending = true
			return
		}
		if c.preview != nil {
			select {
			case <-c.preview.done:
			default:
				pending = true
			}
		}
	})
	return pending, err
}
