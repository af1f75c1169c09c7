package scheduler

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/tanq16/porygon/internal/history"
	"github.com/tanq16/porygon/internal/orchestrator"
	"github.com/tanq16/porygon/internal/output"
)

// fakeController drives the hooks the way the controller loop would.
type fakeController struct {
	hooks   orchestrator.Hooks
	fail    map[string]bool
	reject  map[string]bool
	started []string
	active  bool
}

func (f *fakeController) StartDownload(req orchestrator.Request) (string, error) {
	if f.active {
		return "", orchestrator.ErrJobActive
	}
	if f.reject[req.URL] {
		return "", orchestrator.ErrEmptyURL
	}
	id := fmt.Sprintf("job-%d", len(f.started))
	f.started = append(f.started, req.URL)
	f.active = true
	f.hooks.OnState(id, orchestrator.StateStarting)
	go func() {
		f.hooks.OnProgress(orchestrator.Progress{JobID: id, Line: "[download]  50.0% of 1MiB", Percent: 50})
		f.active = false
		if f.fail[req.URL] {
			f.hooks.OnFailed(orchestrator.Failure{JobID: id, URL: req.URL, ExitCode: 1})
			return
		}
		f.hooks.OnCompleted(id, history.Record{Title: "T " + req.URL, URL: req.URL})
	}()
	return id, nil
}

func TestRunSequential(t *testing.T) {
	s := New(output.NewManager())
	ctrl := &fakeController{hooks: s.Hooks(), fail: map[string]bool{"b": true}, reject: map[string]bool{"c": true}}

	results, err := s.Run(context.Background(), ctrl, []Job{{URL: "a"}, {URL: "b"}, {URL: "c"}, {URL: "d"}})
	if !errors.Is(err, ErrFailed) {
		t.Fatalf("Run() error = %v, want ErrFailed", err)
	}
	if len(results) != 4 {
		t.Fatalf("got %d results", len(results))
	}
	if results[0].Err != nil || results[0].Record.URL != "a" {
		t.Errorf("result a = %+v", results[0])
	}
	if results[1].Err == nil {
		t.Error("expected failure for b")
	}
	if !errors.Is(results[2].Err, orchestrator.ErrEmptyURL) {
		t.Errorf("result c error = %v", results[2].Err)
	}
	if results[3].Err != nil {
		t.Errorf("result d = %+v", results[3])
	}
	if want := []string{"a", "b", "d"}; fmt.Sprint(ctrl.started) != fmt.Sprint(want) {
		t.Errorf("started = %v, want %v", ctrl.started, want)
	}
	if success, failed := s.mgr.Counts(); success != 2 || failed != 2 {
		t.Errorf("Counts() = %d, %d", success, failed)
	}
}

type stuckController struct {
	hooks orchestrator.Hooks
}

func (f *stuckController) StartDownload(req orchestrator.Request) (string, error) {
	f.hooks.OnState("stuck", orchestrator.StateStarting)
	return "stuck", nil
}

func TestRunCancelled(t *testing.T) {
	s := New(output.NewManager())
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	results, err := s.Run(ctx, &stuckController{hooks: s.Hooks()}, []Job{{URL: "a"}, {URL: "b"}})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Run() error = %v", err)
	}
	if len(results) != 1 {
		t.Errorf("got %d results, want 1", len(results))
	}
}
