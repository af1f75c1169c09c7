package worker

// Kind identifies what an Event reports.
type Kind string

const (
	EventProgress    Kind = "progress"
	EventThumbnail   Kind = "thumbnail"
	EventSucceeded   Kind = "succeeded"
	EventFailed      Kind = "failed"
	EventPreviewDone Kind = "preview-done"
)

// IsTerminal reports whether no further events follow for the job.
func (k Kind) IsTerminal() bool {
	return k == EventSucceeded || k == EventFailed || k == EventPreviewDone
}

// Event is the only thing a worker hands back to its owner. Which fields are
// meaningful depends on Kind.
type Event struct {
	JobID string
	Kind  Kind

	// progress
	Line       string
	Percent    int
	HasPercent bool

	// thumbnail, succeeded, preview-done
	Title         string
	Format        string
	ThumbnailPath string

	// failed
	ExitCode int
	Message  string
}

// Emit receives events in the order the worker produced them.
type Emit func(Event)

// Spec describes one content fetch.
type Spec struct {
	ID        string
	URL       string
	OutputDir string
	Format    string
}
