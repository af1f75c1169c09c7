// Package scheduler runs a list of downloads one after another through the
// controller and mirrors their progress into the output manager.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/tanq16/porygon/internal/history"
	"github.com/tanq16/porygon/internal/orchestrator"
	"github.com/tanq16/porygon/internal/output"
)

var ErrFailed = errors.New("one or more downloads failed")

type Job struct {
	URL       string
	OutputDir string
	Format    string
}

type Result struct {
	Job    Job
	JobID  string
	Record history.Record
	Err    error
}

// Starter is the part of the controller the scheduler needs.
type Starter interface {
	StartDownload(orchestrator.Request) (string, error)
}

type outcome struct {
	id     string
	record history.Record
	err    error
}

type Scheduler struct {
	mgr *output.Manager

	mu      sync.Mutex
	current Job
	done    chan outcome
}

func New(mgr *output.Manager) *Scheduler {
	return &Scheduler{mgr: mgr, done: make(chan outcome, 1)}
}

// Hooks forwards controller callbacks to the output manager. Install them on
// the controller before calling Run.
func (s *Scheduler) Hooks() orchestrator.Hooks {
	return orchestrator.Hooks{
		OnState: func(id string, state orchestrator.JobState) {
			if state == orchestrator.StateStarting {
				s.mu.Lock()
				url := s.current.URL
				s.mu.Unlock()
				s.mgr.Register(id, url)
			}
		},
		OnProgress: func(p orchestrator.Progress) {
			if p.Line != "" {
				s.mgr.AddStreamLine(p.JobID, p.Line)
			}
			s.mgr.SetProgress(p.JobID, p.Percent)
		},
		OnThumbnail: func(id, title, path string) {
			s.mgr.SetTitle(id, title)
		},
		OnCompleted: func(id string, rec history.Record) {
			s.mgr.Complete(id, fmt.Sprintf("Downloaded %s", rec.Title))
			s.finish(outcome{id: id, record: rec})
		},
		OnFailed: func(f orchestrator.Failure) {
			err := fmt.Errorf("exit code %d: %s", f.ExitCode, f.Message)
			s.mgr.ReportError(f.JobID, err)
			s.finish(outcome{id: f.JobID, err: err})
		},
	}
}

func (s *Scheduler) finish(o outcome) {
	select {
	case s.done <- o:
	default:
		log.Warn().Str("op", "scheduler/finish").Msgf("unexpected outcome for %s", o.id)
	}
}

// Run starts jobs in order, waiting for each to finish before the next.
// It stops early when ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context, ctrl Starter, jobs []Job) ([]Result, error) {
	s.mgr.StartDisplay()
	defer s.mgr.StopDisplay()

	var results []Result
	var failed bool
	for i, job := range jobs {
		s.mu.Lock()
		s.current = job
		s.mu.Unlock()

		id, err := ctrl.StartDownload(orchestrator.Request{URL: job.URL, OutputDir: job.OutputDir, Format: job.Format})
		if err != nil {
			fakeID := fmt.Sprintf("rejected-%d", i)
			s.mgr.Register(fakeID, job.URL)
			s.mgr.ReportError(fakeID, err)
			results = append(results, Result{Job: job, Err: err})
			failed = true
			continue
		}
		log.Debug().Str("op", "scheduler/run").Msgf("job %d of %d started as %s", i+1, len(jobs), id)

		select {
		case o := <-s.done:
			results = append(results, Result{Job: job, JobID: o.id, Record: o.record, Err: o.err})
			failed = failed || o.err != nil
		case <-ctx.Done():
			results = append(results, Result{Job: job, JobID: id, Err: ctx.Err()})
			return results, ctx.Err()
		}
	}
	if failed {
		return results, ErrFailed
	}
	return results, nil
}
