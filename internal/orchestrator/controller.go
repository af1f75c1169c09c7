// Package orchestrator owns the active download, the preview fetch and the
// history store, and turns worker events into history changes and state
// transitions.
//
// All of that state belongs to the goroutine running Controller.Run. Public
// methods post closures to it and workers only send events, so nothing here
// takes a lock.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/tanq16/porygon/internal/history"
	"github.com/tanq16/porygon/internal/thumbnail"
	"github.com/tanq16/porygon/internal/utils"
	"github.com/tanq16/porygon/internal/worker"
	"github.com/tanq16/porygon/internal/ytdlp"
)

var (
	ErrJobActive     = errors.New("a download is already in progress")
	ErrEmptyURL      = errors.New("please enter a URL")
	ErrUnknownFormat = errors.New("unknown format option")
	ErrNoRecord      = errors.New("no such history row")
	ErrStopped       = errors.New("controller stopped")
)

// Worker is the part of worker.Worker the controller drives.
type Worker interface {
	Run(ctx context.Context, spec worker.Spec, emit worker.Emit)
	Probe(ctx context.Context, id, url, dir string, emit worker.Emit)
	FetchThumbnail(ctx context.Context, url, dest string) error
}

type Options struct {
	Store    *history.Store
	Worker   Worker
	TempDir  string
	Debounce time.Duration
	// Hosts are the markers a URL input must contain to be previewed.
	Hosts []string
	Hooks Hooks
	// Now stamps completed records. Defaults to time.Now.
	Now func() time.Time
}

type Controller struct {
	store    *history.Store
	worker   Worker
	tempDir  string
	debounce time.Duration
	hosts    []string
	hooks    Hooks
	now      func() time.Time

	ops     chan func()
	events  chan worker.Event
	stopped chan struct{}
	ctx     context.Context
	wg      sync.WaitGroup

	// loop-owned
	state         JobState
	job           *Job
	lastCandidate string
	timer         *time.Timer
	timerGen      uint64
	preview       *previewRun
}

type previewRun struct {
	id     string
	url    string
	cancel context.CancelFunc
	done   chan struct{}
}

func New(opts Options) *Controller {
	if opts.Debounce <= 0 {
		opts.Debounce = utils.DefaultDebounce
	}
	if len(opts.Hosts) == 0 {
		opts.Hosts = utils.DefaultHosts
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Controller{
		store:    opts.Store,
		worker:   opts.Worker,
		tempDir:  opts.TempDir,
		debounce: opts.Debounce,
		hosts:    opts.Hosts,
		hooks:    opts.Hooks,
		now:      opts.Now,
		ops:      make(chan func()),
		events:   make(chan worker.Event),
		stopped:  make(chan struct{}),
		state:    StateIdle,
	}
}

// Run processes operations and worker events until ctx is done. Cancelling
// ctx kills any running tool process; Run returns once the workers exited.
func (c *Controller) Run(ctx context.Context) error {
	c.ctx = ctx
	for {
		select {
		case <-ctx.Done():
			c.stopTimer()
			close(c.stopped)
			c.wg.Wait()
			log.Debug().Str("op", "orchestrator/run").Msg("controller stopped")
			return ctx.Err()
		case fn := <-c.ops:
			fn()
		case ev := <-c.events:
			c.handle(ev)
		}
	}
}

// Done is closed once Run stopped accepting work.
func (c *Controller) Done() <-chan struct{} {
	return c.stopped
}

// do runs fn on the loop goroutine and waits for it.
func (c *Controller) do(fn func()) error {
	finished := make(chan struct{})
	select {
	case c.ops <- func() { fn(); close(finished) }:
	case <-c.stopped:
		return ErrStopped
	}
	<-finished
	return nil
}

// post queues fn without waiting. Used by timers.
func (c *Controller) post(fn func()) {
	go func() {
		select {
		case c.ops <- fn:
		case <-c.stopped:
		}
	}()
}

// emitter delivers worker events to the loop. Events are dropped once done
// is closed so a superseded worker never blocks.
func (c *Controller) emitter(done <-chan struct{}) worker.Emit {
	return func(ev worker.Event) {
		select {
		case c.events <- ev:
		case <-done:
		case <-c.stopped:
		}
	}
}

func (c *Controller) setState(id string, s JobState) {
	c.state = s
	if c.job != nil {
		c.job.State = s
	}
	log.Debug().Str("op", "orchestrator/state").Msgf("job %s is %s", id, s)
	if c.hooks.OnState != nil {
		c.hooks.OnState(id, s)
	}
}

// StartDownload starts the single download job and returns its ID.
func (c *Controller) StartDownload(req Request) (string, error) {
	req.URL = strings.TrimSpace(req.URL)
	if req.URL == "" {
		return "", ErrEmptyURL
	}
	if !ytdlp.IsKnownFormat(req.Format) {
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, req.Format)
	}
	req.OutputDir = utils.AbsPath(req.OutputDir)
	var id string
	var startErr error
	err := c.do(func() {
		if c.state.IsActive() {
			startErr = ErrJobActive
			return
		}
		id = uuid.New().String()
		c.job = &Job{ID: id, URL: req.URL, OutputDir: req.OutputDir, Format: req.Format}
		c.setState(id, StateStarting)

		spec := worker.Spec{ID: id, URL: req.URL, OutputDir: req.OutputDir, Format: req.Format}
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			c.worker.Run(c.ctx, spec, c.emitter(nil))
		}()
		log.Debug().Str("op", "orchestrator/start").Msgf("started download %s of %s", id, req.URL)
	})
	if err != nil {
		return "", err
	}
	return id, startErr
}

// State reports the job state and a snapshot of the active job, if any.
func (c *Controller) State() (JobState, Job, bool) {
	var state JobState
	var job Job
	var ok bool
	if err := c.do(func() {
		state = c.state
		if c.job != nil {
			job, ok = *c.job, true
		}
	}); err != nil {
		return StateIdle, Job{}, false
	}
	return state, job, ok
}

func (c *Controller) handle(ev worker.Event) {
	if c.preview != nil && ev.JobID == c.preview.id {
		c.handlePreview(ev)
		return
	}
	if c.job == nil || ev.JobID != c.job.ID {
		log.Debug().Str("op", "orchestrator/handle").Msgf("dropping stale %s event of %s", ev.Kind, ev.JobID)
		return
	}
	job := c.job
	if c.state == StateStarting {
		c.setState(job.ID, StateRunning)
	}

	switch ev.Kind {
	case worker.EventProgress:
		job.LastLine = ev.Line
		if ev.HasPercent {
			job.Percent = ev.Percent
		}
		if c.hooks.OnProgress != nil {
			c.hooks.OnProgress(Progress{JobID: job.ID, Line: ev.Line, Percent: job.Percent})
		}
	case worker.EventThumbnail:
		job.Title = ev.Title
		job.ThumbnailPath = ev.ThumbnailPath
		if c.hooks.OnThumbnail != nil {
			c.hooks.OnThumbnail(job.ID, ev.Title, ev.ThumbnailPath)
		}
	case worker.EventSucceeded:
		c.complete(job, ev)
	case worker.EventFailed:
		c.fail(job, ev)
	}
}

func (c *Controller) complete(job *Job, ev worker.Event) {
	title := ev.Title
	if title == "" {
		title = history.UnknownTitle
	}
	thumb := ev.ThumbnailPath
	if !thumbnail.Exists(thumb) {
		thumb = ""
	}
	rec := history.Record{
		Title:     title,
		URL:       job.URL,
		Date:      c.now().Format(history.DateLayout),
		Format:    ev.Format,
		Path:      job.OutputDir,
		Thumbnail: thumb,
	}
	// A failed save is logged by the store and the record stays in memory.
	c.store.Append(rec)

	job.Title = title
	job.Percent = 100
	if c.hooks.OnProgress != nil {
		c.hooks.OnProgress(Progress{JobID: job.ID, Line: job.LastLine, Percent: 100})
	}
	c.setState(job.ID, StateCompleted)
	log.Debug().Str("op", "orchestrator/complete").Msgf("downloaded %q to %s", title, job.OutputDir)
	if c.hooks.OnCompleted != nil {
		c.hooks.OnCompleted(job.ID, rec)
	}
	c.finish(job.ID)
}

func (c *Controller) fail(job *Job, ev worker.Event) {
	c.setState(job.ID, StateFailed)
	log.Error().Str("op", "orchestrator/fail").Msgf("download %s failed with code %d: %s", job.ID, ev.ExitCode, ev.Message)
	if c.hooks.OnFailed != nil {
		c.hooks.OnFailed(Failure{JobID: job.ID, URL: job.URL, ExitCode: ev.ExitCode, Message: ev.Message})
	}
	c.finish(job.ID)
}

func (c *Controller) finish(id string) {
	c.job = nil
	c.setState(id, StateIdle)
}
