package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/tanq16/porygon/internal/history"
	"github.com/tanq16/porygon/internal/thumbnail"
	"github.com/tanq16/porygon/internal/worker"
	"github.com/tanq16/porygon/internal/ytdlp"
)

const waitTimeout = 3 * time.Second

// scriptRunner answers title queries from titles, blocks the title query of
// any URL in slow until cancelled, and replays lines for the content fetch.
type scriptRunner struct {
	mu      sync.Mutex
	titles  map[string]string
	slow    map[string]bool
	started chan string
	queried []string

	lines   []string
	code    int
	release chan struct{}
}

func newScriptRunner() *scriptRunner {
	return &scriptRunner{titles: map[string]string{}, slow: map[string]bool{}, started: make(chan string, 16)}
}

func (r *scriptRunner) Output(ctx context.Context, args ...string) (string, error) {
	url := args[len(args)-1]
	switch args[0] {
	case "--get-title":
		r.mu.Lock()
		r.queried = append(r.queried, url)
		slow := r.slow[url]
		r.mu.Unlock()
		select {
		case r.started <- url:
		default:
		}
		if slow {
			<-ctx.Done()
			return "", ctx.Err()
		}
		return r.titles[url], nil
	case "--get-thumbnail":
		return "https://img.example/" + url, nil
	}
	return "", errors.New("unexpected query")
}

func (r *scriptRunner) Stream(ctx context.Context, args []string, onLine func(string)) (int, error) {
	if r.release != nil {
		select {
		case <-r.release:
		case <-ctx.Done():
			return -1, ctx.Err()
		}
	}
	for _, line := range r.lines {
		onLine(line)
	}
	return r.code, nil
}

func (r *scriptRunner) titleQueries() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.queried...)
}

// fileFetcher writes a placeholder image when write is set.
type fileFetcher struct {
	write bool
}

func (f *fileFetcher) Fetch(ctx context.Context, url, dest string) error {
	if !f.write {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return err
	}
	return os.WriteFile(dest, []byte("jpg"), 0644)
}

type recorder struct {
	states     chan JobState
	progress   chan Progress
	thumbnails chan [2]string
	completed  chan history.Record
	failed     chan Failure
	previews   chan Preview
}

func newRecorder() *recorder {
	return &recorder{
		states:     make(chan JobState, 64),
		progress:   make(chan Progress, 64),
		thumbnails: make(chan [2]string, 64),
		completed:  make(chan history.Record, 8),
		failed:     make(chan Failure, 8),
		previews:   make(chan Preview, 8),
	}
}

func (r *recorder) hooks() Hooks {
	return Hooks{
		OnState:     func(_ string, s JobState) { r.states <- s },
		OnProgress:  func(p Progress) { r.progress <- p },
		OnThumbnail: func(id, _, path string) { r.thumbnails <- [2]string{id, path} },
		OnCompleted: func(_ string, rec history.Record) { r.completed <- rec },
		OnFailed:    func(f Failure) { r.failed <- f },
		OnPreview:   func(p Preview) { r.previews <- p },
	}
}

type harness struct {
	ctrl    *Controller
	store   *history.Store
	runner  *scriptRunner
	rec     *recorder
	tempDir string
}

func newHarness(t *testing.T, runner *scriptRunner, fetcher thumbnail.Fetcher, debounce time.Duration) *harness {
	t.Helper()
	dir := t.TempDir()
	h := &harness{
		store:   history.Open(filepath.Join(dir, "download_history.json")),
		runner:  runner,
		rec:     newRecorder(),
		tempDir: filepath.Join(dir, "temp"),
	}
	h.ctrl = New(Options{
		Store:    h.store,
		Worker:   worker.New(runner, fetcher),
		TempDir:  h.tempDir,
		Debounce: debounce,
		Hooks:    h.rec.hooks(),
		Now:      func() time.Time { return time.Date(2024, 6, 1, 9, 30, 0, 0, time.Local) },
	})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		h.ctrl.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return h
}

func waitFor[T any](t *testing.T, ch <-chan T, what string) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(waitTimeout):
		t.Fatalf("timed out waiting for %s", what)
	}
	var zero T
	return zero
}

func TestDownloadSucceeds(t *testing.T) {
	runner := newScriptRunner()
	runner.titles["https://youtu.be/abc123"] = "Test Song"
	runner.lines = []string{"[download]  50.0% of 1.00MiB", "[download] 100% of 1.00MiB", "[ExtractAudio] Destination: /tmp/out/Test Song.mp3"}
	h := newHarness(t, runner, &fileFetcher{}, time.Second)

	id, err := h.ctrl.StartDownload(Request{URL: "https://youtu.be/abc123", OutputDir: "/tmp/out", Format: ytdlp.FormatAudio})
	if err != nil {
		t.Fatalf("StartDownload() error = %v", err)
	}
	if id == "" {
		t.Fatal("empty job id")
	}

	rec := waitFor(t, h.rec.completed, "completion")
	want := history.Record{
		Title:  "Test Song",
		URL:    "https://youtu.be/abc123",
		Date:   "2024-06-01 09:30:00",
		Format: ytdlp.FormatAudio,
		Path:   "/tmp/out",
	}
	if rec != want {
		t.Errorf("record = %+v, want %+v", rec, want)
	}
	last, err := h.store.At(h.store.Len() - 1)
	if err != nil || last != want {
		t.Errorf("last stored record = %+v (%v)", last, err)
	}

	var percents []int
	for len(h.rec.progress) > 0 {
		percents = append(percents, (<-h.rec.progress).Percent)
	}
	if len(percents) == 0 || percents[len(percents)-1] != 100 {
		t.Errorf("progress = %v, want it to end at 100", percents)
	}

	// State runs after the completing event was fully handled.
	if state, _, active := h.ctrl.State(); state != StateIdle || active {
		t.Errorf("State() = %s active=%v after completion", state, active)
	}
	var states []JobState
	for len(h.rec.states) > 0 {
		states = append(states, <-h.rec.states)
	}
	wantStates := []JobState{StateStarting, StateRunning, StateCompleted, StateIdle}
	if !reflect.DeepEqual(states, wantStates) {
		t.Errorf("states = %v, want %v", states, wantStates)
	}
}

func TestDownloadKeepsExistingThumbnail(t *testing.T) {
	runner := newScriptRunner()
	runner.titles["https://youtu.be/t"] = "Thumbed"
	h := newHarness(t, runner, &fileFetcher{write: true}, time.Second)
	out := t.TempDir()

	if _, err := h.ctrl.StartDownload(Request{URL: "https://youtu.be/t", OutputDir: out, Format: ytdlp.FormatHigh}); err != nil {
		t.Fatal(err)
	}
	thumb := waitFor(t, h.rec.thumbnails, "thumbnail")
	rec := waitFor(t, h.rec.completed, "completion")
	if want := filepath.Join(out, "Thumbed_thumbnail.jpg"); rec.Thumbnail != want || thumb[1] != want {
		t.Errorf("thumbnail = %q (event %q), want %q", rec.Thumbnail, thumb[1], want)
	}
}

func TestDownloadFails(t *testing.T) {
	runner := newScriptRunner()
	runner.code = 1
	h := newHarness(t, runner, &fileFetcher{}, time.Second)
	before := h.store.Len()

	id, err := h.ctrl.StartDownload(Request{URL: "https://youtu.be/broken", OutputDir: "/tmp/out", Format: ytdlp.FormatHigh})
	if err != nil {
		t.Fatal(err)
	}
	f := waitFor(t, h.rec.failed, "failure")
	if f.ExitCode != 1 || f.JobID != id {
		t.Errorf("failure = %+v", f)
	}
	if h.store.Len() != before {
		t.Errorf("history grew on failure: %d -> %d", before, h.store.Len())
	}
	if state, _, _ := h.ctrl.State(); state != StateIdle {
		t.Errorf("State() = %s after failure", state)
	}
	select {
	case rec := <-h.rec.completed:
		t.Errorf("unexpected completion %+v", rec)
	default:
	}
}

func TestStartDownloadRejects(t *testing.T) {
	runner := newScriptRunner()
	runner.release = make(chan struct{})
	h := newHarness(t, runner, &fileFetcher{}, time.Second)

	if _, err := h.ctrl.StartDownload(Request{URL: "  ", Format: ytdlp.FormatHigh}); !errors.Is(err, ErrEmptyURL) {
		t.Errorf("empty URL error = %v", err)
	}
	if _, err := h.ctrl.StartDownload(Request{URL: "https://youtu.be/x", Format: "8K"}); !errors.Is(err, ErrUnknownFormat) {
		t.Errorf("unknown format error = %v", err)
	}

	req := Request{URL: "https://youtu.be/x", OutputDir: t.TempDir(), Format: ytdlp.FormatMedium}
	first, err := h.ctrl.StartDownload(req)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := h.ctrl.StartDownload(req); !errors.Is(err, ErrJobActive) {
		t.Errorf("second start error = %v, want ErrJobActive", err)
	}
	state, job, ok := h.ctrl.State()
	if !state.IsActive() || !ok || job.ID != first {
		t.Errorf("State() = %s %+v %v", state, job, ok)
	}

	close(runner.release)
	waitFor(t, h.rec.completed, "completion")
	if _, err := h.ctrl.StartDownload(req); err != nil {
		t.Errorf("start after completion error = %v", err)
	}
	waitFor(t, h.rec.completed, "second completion")
}

func TestInputDebounce(t *testing.T) {
	runner := newScriptRunner()
	first, second := "https://youtu.be/first", "https://youtu.be/second"
	runner.titles[second] = "Second"
	h := newHarness(t, runner, &fileFetcher{}, 200*time.Millisecond)

	h.ctrl.InputChanged(first)
	time.Sleep(75 * time.Millisecond)
	h.ctrl.InputChanged(second)

	p := waitFor(t, h.rec.previews, "preview")
	if p.URL != second || p.Title != "Second" {
		t.Errorf("preview = %+v", p)
	}
	time.Sleep(400 * time.Millisecond)
	if got := runner.titleQueries(); !reflect.DeepEqual(got, []string{second}) {
		t.Errorf("title queries = %v, want only %s", got, second)
	}
	if len(h.rec.previews) != 0 {
		t.Error("more than one preview fetched")
	}
}

func TestInputIgnoredAndDeduplicated(t *testing.T) {
	runner := newScriptRunner()
	url := "https://www.youtube.com/watch?v=abc"
	h := newHarness(t, runner, &fileFetcher{}, 50*time.Millisecond)

	h.ctrl.InputChanged("https://youtu.be/pending")
	h.ctrl.InputChanged("not a video link")
	h.ctrl.InputChanged("https://vimeo.com/1")
	time.Sleep(200 * time.Millisecond)
	if got := runner.titleQueries(); len(got) != 0 {
		t.Fatalf("non-candidate input fetched previews: %v", got)
	}

	h.ctrl.InputChanged("  " + url + "  ")
	waitFor(t, h.rec.previews, "preview")
	h.ctrl.InputChanged(url)
	time.Sleep(200 * time.Millisecond)
	if got := runner.titleQueries(); !reflect.DeepEqual(got, []string{url}) {
		t.Errorf("title queries = %v", got)
	}
}

func TestPreviewSupersession(t *testing.T) {
	runner := newScriptRunner()
	slow, fast := "https://youtu.be/slow", "https://youtu.be/fast"
	runner.slow[slow] = true
	runner.titles[fast] = "Fast"
	h := newHarness(t, runner, &fileFetcher{write: true}, time.Second)

	if _, err := h.ctrl.StartPreview(slow); err != nil {
		t.Fatal(err)
	}
	waitFor(t, runner.started, "first probe")
	secondID, err := h.ctrl.StartPreview(fast)
	if err != nil {
		t.Fatal(err)
	}

	p := waitFor(t, h.rec.previews, "preview")
	if p.ID != secondID || p.URL != fast {
		t.Errorf("preview = %+v, want id %s", p, secondID)
	}
	time.Sleep(100 * time.Millisecond)
	if n := len(h.rec.thumbnails); n != 1 {
		t.Fatalf("got %d thumbnail events, want 1", n)
	}
	thumb := <-h.rec.thumbnails
	if thumb[0] != secondID || !strings.HasSuffix(thumb[1], "Fast_thumbnail.jpg") {
		t.Errorf("thumbnail event = %v", thumb)
	}
	if len(h.rec.previews) != 0 {
		t.Error("superseded preview reported a result")
	}
}

func TestPreviewPending(t *testing.T) {
	runner := newScriptRunner()
	url := "https://youtu.be/abc123"
	runner.titles[url] = "Pending"
	h := newHarness(t, runner, &fileFetcher{}, 100*time.Millisecond)

	if pending, err := h.ctrl.PreviewPending(); err != nil || pending {
		t.Fatalf("PreviewPending() before input = %v (%v)", pending, err)
	}
	h.ctrl.InputChanged(url)
	if pending, _ := h.ctrl.PreviewPending(); !pending {
		t.Error("scheduled preview not reported as pending")
	}
	waitFor(t, h.rec.previews, "preview")

	deadline := time.Now().Add(waitTimeout)
	for {
		pending, err := h.ctrl.PreviewPending()
		if err != nil {
			t.Fatal(err)
		}
		if !pending {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("preview still pending after it was reported")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestStartDownloadResolvesOutputDir(t *testing.T) {
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	runner := newScriptRunner()
	h := newHarness(t, runner, &fileFetcher{}, time.Second)

	if _, err := h.ctrl.StartDownload(Request{URL: "https://youtu.be/rel", OutputDir: "./rel", Format: ytdlp.FormatHigh}); err != nil {
		t.Fatal(err)
	}
	rec := waitFor(t, h.rec.completed, "completion")
	if want := filepath.Join(wd, "rel"); rec.Path != want {
		t.Errorf("record path = %q, want %q", rec.Path, want)
	}
}

func seedHistory(t *testing.T, store *history.Store, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		rec := history.Record{Title: fmt.Sprintf("Video %d", i), URL: fmt.Sprintf("https://youtu.be/%d", i), Date: "2024-01-01 00:00:00", Format: ytdlp.FormatHigh, Path: "/tmp/out"}
		if err := store.Append(rec); err != nil {
			t.Fatal(err)
		}
	}
}

func TestHistoryDisplayOrder(t *testing.T) {
	h := newHarness(t, newScriptRunner(), &fileFetcher{}, time.Second)
	seedHistory(t, h.store, 3)

	recs, err := h.ctrl.History()
	if err != nil {
		t.Fatal(err)
	}
	var titles []string
	for _, r := range recs {
		titles = append(titles, r.Title)
	}
	if want := []string{"Video 2", "Video 1", "Video 0"}; !reflect.DeepEqual(titles, want) {
		t.Errorf("History() titles = %v, want %v", titles, want)
	}
	if rec, err := h.ctrl.Record(0); err != nil || rec.Title != "Video 2" {
		t.Errorf("Record(0) = %+v (%v)", rec, err)
	}
	if _, err := h.ctrl.Record(3); !errors.Is(err, ErrNoRecord) {
		t.Errorf("Record(3) error = %v", err)
	}
}

func TestBackfillThumbnailReverseIndex(t *testing.T) {
	const n = 5
	h := newHarness(t, newScriptRunner(), &fileFetcher{}, time.Second)
	seedHistory(t, h.store, n)

	for r := 0; r < n; r++ {
		path := fmt.Sprintf("/thumbs/row-%d.jpg", r)
		if err := h.ctrl.BackfillThumbnail(r, path); err != nil {
			t.Fatalf("BackfillThumbnail(%d) error = %v", r, err)
		}
		rec, err := h.store.At(n - 1 - r)
		if err != nil || rec.Thumbnail != path {
			t.Errorf("record %d thumbnail = %q (%v), want %q", n-1-r, rec.Thumbnail, err, path)
		}
	}
	reloaded := history.Open(h.store.Path())
	if rec, _ := reloaded.At(0); rec.Thumbnail != fmt.Sprintf("/thumbs/row-%d.jpg", n-1) {
		t.Errorf("back-fill not persisted: %+v", rec)
	}
	if err := h.ctrl.BackfillThumbnail(n, "x"); !errors.Is(err, ErrNoRecord) {
		t.Errorf("out of range error = %v", err)
	}
}

func TestFetchHistoryThumbnail(t *testing.T) {
	h := newHarness(t, newScriptRunner(), &fileFetcher{write: true}, time.Second)
	seedHistory(t, h.store, 3)

	path, err := h.ctrl.FetchHistoryThumbnail(context.Background(), 0)
	if err != nil {
		t.Fatal(err)
	}
	if want := thumbnail.PathForRecord(h.tempDir, 2); path != want {
		t.Errorf("path = %q, want %q", path, want)
	}
	if rec, _ := h.store.At(2); rec.Thumbnail != path {
		t.Errorf("record not back-filled: %+v", rec)
	}

	again, err := h.ctrl.FetchHistoryThumbnail(context.Background(), 0)
	if err != nil || again != path {
		t.Errorf("second fetch = %q (%v)", again, err)
	}
}

func TestResolveFile(t *testing.T) {
	h := newHarness(t, newScriptRunner(), &fileFetcher{}, time.Second)
	out := t.TempDir()
	if err := os.WriteFile(filepath.Join(out, "My Track.mp3"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	h.store.Append(history.Record{Title: "My Track", Format: ytdlp.FormatAudio, Path: out})
	h.store.Append(history.Record{Title: "Missing", Format: ytdlp.FormatHigh, Path: out})

	if _, _, err := h.ctrl.ResolveFile(0); err == nil {
		t.Error("expected not-found for missing file")
	}
	_, path, err := h.ctrl.ResolveFile(1)
	if err != nil || path != filepath.Join(out, "My Track.mp3") {
		t.Errorf("ResolveFile(1) = %q (%v)", path, err)
	}
}

func TestStoppedController(t *testing.T) {
	ctrl := New(Options{Store: history.Open(filepath.Join(t.TempDir(), "h.json")), Worker: worker.New(newScriptRunner(), &fileFetcher{})})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := ctrl.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Run() = %v", err)
	}
	if _, err := ctrl.History(); !errors.Is(err, ErrStopped) {
		t.Errorf("History() after stop = %v", err)
	}
}
