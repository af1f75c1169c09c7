package output

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

const (
	StatusPending = "pending"
	StatusActive  = "active"
	StatusSuccess = "success"
	StatusError   = "error"
)

type JobOutput struct {
	ID          string
	URL         string
	Title       string
	Status      string
	Message     string
	StreamLines []string
	Percent     int
	HasProgress bool
	Complete    bool
	StartTime   time.Time
	LastUpdated time.Time
	Error       error
	Index       int
}

type ErrorReport struct {
	URL   string
	Error error
	Time  time.Time
}

// Manager repaints the state of registered jobs on a ticker. All setters are
// safe for concurrent use.
type Manager struct {
	outputs     map[string]*JobOutput
	mutex       sync.RWMutex
	out         io.Writer
	repaint     bool
	numLines    int
	maxStreams  int
	errors      []ErrorReport
	doneCh      chan struct{}
	displayTick time.Duration
	jobCount    int
	displayWg   sync.WaitGroup
}

func NewManager() *Manager {
	return &Manager{
		outputs:     make(map[string]*JobOutput),
		out:         os.Stdout,
		repaint:     isTerminal(),
		maxStreams:  5,
		doneCh:      make(chan struct{}),
		displayTick: 300 * time.Millisecond,
	}
}

func (m *Manager) Register(id, url string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.jobCount++
	m.outputs[id] = &JobOutput{
		ID:          id,
		URL:         url,
		Status:      StatusPending,
		Message:     fmt.Sprintf("Fetching %s", url),
		StartTime:   time.Now(),
		LastUpdated: time.Now(),
		Index:       m.jobCount,
	}
}

func (m *Manager) update(id string, fn func(*JobOutput)) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if info, exists := m.outputs[id]; exists {
		fn(info)
		info.LastUpdated = time.Now()
	}
}

func (m *Manager) SetTitle(id, title string) {
	m.update(id, func(info *JobOutput) {
		info.Title = title
		if title != "" && !info.Complete {
			info.Message = fmt.Sprintf("Downloading %s", title)
		}
	})
}

func (m *Manager) AddStreamLine(id, line string) {
	m.update(id, func(info *JobOutput) {
		if info.Status == StatusPending {
			info.Status = StatusActive
		}
		info.StreamLines = append(info.StreamLines, line)
		if len(info.StreamLines) > m.maxStreams {
			info.StreamLines = info.StreamLines[len(info.StreamLines)-m.maxStreams:]
		}
	})
}

func (m *Manager) SetProgress(id string, percent int) {
	m.update(id, func(info *JobOutput) {
		info.Percent = percent
		info.HasProgress = true
	})
}

func (m *Manager) Complete(id, message string) {
	m.update(id, func(info *JobOutput) {
		info.StreamLines = nil
		if message == "" {
			message = fmt.Sprintf("Completed %s", info.URL)
		}
		info.Message = message
		info.Complete = true
		info.Status = StatusSuccess
	})
}

func (m *Manager) ReportError(id string, err error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if info, exists := m.outputs[id]; exists {
		info.Complete = true
		info.Status = StatusError
		info.Error = err
		info.Message = fmt.Sprintf("Failed %s", info.URL)
		info.LastUpdated = time.Now()
		m.errors = append(m.errors, ErrorReport{URL: info.URL, Error: err, Time: time.Now()})
	}
}

// Counts returns how many jobs succeeded and failed.
func (m *Manager) Counts() (success, failed int) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	for _, info := range m.outputs {
		switch info.Status {
		case StatusSuccess:
			success++
		case StatusError:
			failed++
		}
	}
	return success, failed
}

func (m *Manager) statusIndicator(status string) string {
	switch status {
	case StatusSuccess:
		return successStyle.Render(StyleSymbols["pass"])
	case StatusError:
		return errorStyle.Render(StyleSymbols["fail"])
	case StatusPending:
		return pendingStyle.Render(StyleSymbols["pending"])
	default:
		return infoStyle.Render(StyleSymbols["bullet"])
	}
}

func styleMessage(status, message string) string {
	switch status {
	case StatusSuccess:
		return successStyle.Render(message)
	case StatusError:
		return errorStyle.Render(message)
	default:
		return pendingStyle.Render(message)
	}
}

func (m *Manager) sorted() []*JobOutput {
	jobs := make([]*JobOutput, 0, len(m.outputs))
	for _, info := range m.outputs {
		jobs = append(jobs, info)
	}
	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].Index < jobs[j].Index
	})
	return jobs
}

// render builds the display lines, running jobs with their stream output and
// progress bar, finished jobs as a single line.
func (m *Manager) render(width, height int) []string {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	available := max(height-3, 1)
	indent := strings.Repeat(" ", 2+4)

	var lines []string
	for _, info := range m.sorted() {
		elapsed := time.Since(info.StartTime).Round(time.Second)
		if info.Complete {
			elapsed = info.LastUpdated.Sub(info.StartTime).Round(time.Second)
		}
		lines = append(lines, fmt.Sprintf("  %s %s %s",
			m.statusIndicator(info.Status), debugStyle.Render(elapsed.String()), styleMessage(info.Status, truncate(info.Message, width-16))))
		if info.Complete {
			continue
		}
		for _, line := range info.StreamLines {
			lines = append(lines, indent+streamStyle.Render(truncate(line, width-len(indent)-2)))
		}
		if info.HasProgress {
			lines = append(lines, indent+ProgressBar(info.Percent, 30))
		}
	}
	if len(lines) > available {
		lines = lines[len(lines)-available:]
	}
	return lines
}

func (m *Manager) updateDisplay() {
	width, height := getTerminalSize()
	lines := m.render(width, height)
	if m.numLines > 0 {
		fmt.Fprintf(m.out, "\033[%dA\033[J", m.numLines)
	}
	for _, line := range lines {
		fmt.Fprintln(m.out, line)
	}
	m.numLines = len(lines)
}

// StartDisplay repaints until StopDisplay. When stdout is not a terminal
// only the final state is printed.
func (m *Manager) StartDisplay() {
	m.displayWg.Add(1)
	go func() {
		defer m.displayWg.Done()
		ticker := time.NewTicker(m.displayTick)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if m.repaint {
					m.updateDisplay()
				}
			case <-m.doneCh:
				m.updateDisplay()
				m.ShowSummary()
				return
			}
		}
	}()
}

func (m *Manager) StopDisplay() {
	close(m.doneCh)
	m.displayWg.Wait()
}

func (m *Manager) ShowSummary() {
	success, failures := m.Counts()
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	total := len(m.outputs)
	fmt.Fprintln(m.out)
	fmt.Fprintln(m.out, "  "+summaryStyle.Render(fmt.Sprintf("Completed %d of %d", success, total)))
	if failures > 0 {
		fmt.Fprintln(m.out, "  "+errorStyle.Render(fmt.Sprintf("Failed %d of %d", failures, total)))
	}
	if len(m.errors) > 0 {
		fmt.Fprintln(m.out)
		fmt.Fprintln(m.out, "  "+errorStyle.Bold(true).Render("Errors:"))
		for i, rep := range m.errors {
			fmt.Fprintf(m.out, "    %s %s %s\n",
				errorStyle.Render(fmt.Sprintf("%d.", i+1)),
				debugStyle.Render(fmt.Sprintf("[%s]", rep.Time.Format("15:04:05"))),
				errorStyle.Render(rep.URL))
			fmt.Fprintf(m.out, "      %s\n", errorStyle.Render(fmt.Sprintf("Error: %v", rep.Error)))
		}
	}
	fmt.Fprintln(m.out)
}
