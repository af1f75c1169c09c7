package orchestrator

import "github.com/tanq16/porygon/internal/history"

// JobState is the lifecycle of the single download job.
type JobState string

const (
	StateIdle      JobState = "idle"
	StateStarting  JobState = "starting"
	StateRunning   JobState = "running"
	StateCompleted JobState = "completed"
	StateFailed    JobState = "failed"
)

// IsActive reports whether a job holds the download slot.
func (s JobState) IsActive() bool {
	return s == StateStarting || s == StateRunning
}

// Request is what the caller asks to download.
type Request struct {
	URL       string
	OutputDir string
	Format    string
}

// Job is a snapshot of the active download.
type Job struct {
	ID            string
	URL           string
	OutputDir     string
	Format        string
	Title         string
	ThumbnailPath string
	LastLine      string
	Percent       int
	State         JobState
}

type Progress struct {
	JobID   string
	Line    string
	Percent int
}

// Failure describes a job that ended without producing a file.
type Failure struct {
	JobID    string
	URL      string
	ExitCode int
	Message  string
}

type Preview struct {
	ID            string
	URL           string
	Title         string
	ThumbnailPath string
}

// Hooks are invoked on the controller's loop goroutine. They must return
// quickly and must not call blocking Controller methods.
type Hooks struct {
	OnState     func(jobID string, state JobState)
	OnProgress  func(Progress)
	OnThumbnail func(id, title, path string)
	OnCompleted func(jobID string, rec history.Record)
	OnFailed    func(Failure)
	OnPreview   func(Preview)
}
