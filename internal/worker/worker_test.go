package worker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/tanq16/telegrab/internal/delivery"
	"github.com/tanq16/telegrab/internal/queue"
	"github.com/tanq16/telegrab/internal/types"
)

type recordingNotifier struct {
	mu       sync.Mutex
	texts    []string
	edits    []string
	media    []string
	refSeq   int
	mediaErr error
}

func (n *recordingNotifier) SendText(chatID int64, replyToID int, text string) (types.MessageRef, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.texts = append(n.texts, text)
	n.refSeq++
	return types.MessageRef{ChatID: chatID, MessageID: n.refSeq}, nil
}

func (n *recordingNotifier) EditOrReply(ref types.MessageRef, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.edits = append(n.edits, text)
	return nil
}

func (n *recordingNotifier) SendMedia(chatID int64, replyToID int, kind types.MediaKind, path, caption string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.media = append(n.media, path)
	return n.mediaErr
}

func (n *recordingNotifier) allEdits() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.edits...)
}

type fetchFunc func(job *types.Job, sink func(types.Progress)) (*types.Artifact, error)

type scriptedEngine struct {
	mu       sync.Mutex
	fetched  []string
	scripts  map[string]fetchFunc
	fallback fetchFunc
}

func (e *scriptedEngine) Probe(ctx context.Context, url string) (*types.ProbeResult, error) {
	return nil, errors.New("not used in worker tests")
}

func (e *scriptedEngine) Fetch(ctx context.Context, job *types.Job, sink func(types.Progress)) (*types.Artifact, error) {
	e.mu.Lock()
	e.fetched = append(e.fetched, job.SourceURL)
	e.mu.Unlock()
	if fn, ok := e.scripts[job.SourceURL]; ok {
		return fn(job, sink)
	}
	return e.fallback(job, sink)
}

func (e *scriptedEngine) fetchOrder() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.fetched...)
}

// writeArtifact materializes a scratch file the way the real engine does,
// prefixed with the job ID.
func writeArtifact(t *testing.T, dir string, job *types.Job, size int) *types.Artifact {
	t.Helper()
	path := filepath.Join(dir, job.ID+"-media.mp4")
	if err := os.WriteFile(path, make([]byte, size), 0644); err != nil {
		t.Fatalf("writing artifact: %v", err)
	}
	return &types.Artifact{LocalPath: path, SizeBytes: int64(size), Title: "media"}
}

func newTestWorker(t *testing.T, scratch string, engine *scriptedEngine, notifier *recordingNotifier) (*Worker, *queue.Queue) {
	t.Helper()
	q := queue.New()
	strategy := delivery.New(notifier, nil, 100*1024*1024, 0)
	w := New(q, engine, notifier, strategy, scratch, 0)
	w.ProgressInterval = 10 * time.Millisecond
	return w, q
}

func runWorker(w *Worker, q *queue.Queue, jobs ...*types.Job) {
	for _, job := range jobs {
		q.Enqueue(job)
	}
	q.Close()
	w.Run(context.Background())
}

func scratchFiles(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("reading scratch dir: %v", err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestWorker(t *testing.T) {
	t.Run("processes jobs in enqueue order", func(t *testing.T) {
		scratch := t.TempDir()
		engine := &scriptedEngine{
			fallback: func(job *types.Job, sink func(types.Progress)) (*types.Artifact, error) {
				return writeArtifact(t, scratch, job, 64), nil
			},
		}
		notifier := &recordingNotifier{}
		w, q := newTestWorker(t, scratch, engine, notifier)

		var jobs []*types.Job
		for i := range 5 {
			jobs = append(jobs, &types.Job{ID: fmt.Sprintf("j%d", i), ChatID: 1, SourceURL: fmt.Sprintf("https://example/%d", i)})
		}
		runWorker(w, q, jobs...)

		order := engine.fetchOrder()
		if len(order) != 5 {
			t.Fatalf("expected 5 fetches, got %d", len(order))
		}
		for i, url := range order {
			if want := fmt.Sprintf("https://example/%d", i); url != want {
				t.Errorf("position %d: expected %s, got %s", i, want, url)
			}
		}
	})

	t.Run("survives a failing job and delivers the next", func(t *testing.T) {
		scratch := t.TempDir()
		engine := &scriptedEngine{
			scripts: map[string]fetchFunc{
				"https://example/bad": func(job *types.Job, sink func(types.Progress)) (*types.Artifact, error) {
					return nil, errors.New("network unreachable")
				},
			},
			fallback: func(job *types.Job, sink func(types.Progress)) (*types.Artifact, error) {
				return writeArtifact(t, scratch, job, 64), nil
			},
		}
		notifier := &recordingNotifier{}
		w, q := newTestWorker(t, scratch, engine, notifier)

		runWorker(w, q,
			&types.Job{ID: "bad", ChatID: 1, SourceURL: "https://example/bad"},
			&types.Job{ID: "good", ChatID: 1, SourceURL: "https://example/good"},
		)

		if len(engine.fetchOrder()) != 2 {
			t.Fatalf("worker stopped after the failing job: %v", engine.fetchOrder())
		}
		if len(notifier.media) != 1 {
			t.Errorf("expected the second job to deliver, media sends: %v", notifier.media)
		}
		failed := false
		for _, edit := range notifier.allEdits() {
			if strings.Contains(edit, "Download failed") {
				failed = true
			}
		}
		if !failed {
			t.Error("expected a failure message for the bad job")
		}
	})

	t.Run("empty output is reported with a hint", func(t *testing.T) {
		scratch := t.TempDir()
		engine := &scriptedEngine{
			fallback: func(job *types.Job, sink func(types.Progress)) (*types.Artifact, error) {
				return nil, nil
			},
		}
		notifier := &recordingNotifier{}
		w, q := newTestWorker(t, scratch, engine, notifier)
		runWorker(w, q, &types.Job{ID: "j", ChatID: 1, SourceURL: "https://example/x"})

		hinted := false
		for _, edit := range notifier.allEdits() {
			if strings.Contains(edit, "no usable file") && strings.Contains(edit, "ffmpeg") {
				hinted = true
			}
		}
		if !hinted {
			t.Errorf("expected an empty-output hint, edits: %v", notifier.allEdits())
		}
	})

	t.Run("scratch files are removed after success", func(t *testing.T) {
		scratch := t.TempDir()
		engine := &scriptedEngine{
			fallback: func(job *types.Job, sink func(types.Progress)) (*types.Artifact, error) {
				// a partial alongside the artifact, as yt-dlp leaves behind
				os.WriteFile(filepath.Join(scratch, job.ID+"-media.mp4.part"), []byte("x"), 0644)
				return writeArtifact(t, scratch, job, 64), nil
			},
		}
		notifier := &recordingNotifier{}
		w, q := newTestWorker(t, scratch, engine, notifier)
		runWorker(w, q, &types.Job{ID: "j", ChatID: 1, SourceURL: "https://example/x"})

		if files := scratchFiles(t, scratch); len(files) != 0 {
			t.Errorf("scratch dir should be empty, found %v", files)
		}
	})

	t.Run("scratch files are removed after a fetch failure", func(t *testing.T) {
		scratch := t.TempDir()
		engine := &scriptedEngine{
			fallback: func(job *types.Job, sink func(types.Progress)) (*types.Artifact, error) {
				os.WriteFile(filepath.Join(scratch, job.ID+"-media.mp4.part"), []byte("x"), 0644)
				return nil, errors.New("interrupted")
			},
		}
		notifier := &recordingNotifier{}
		w, q := newTestWorker(t, scratch, engine, notifier)
		runWorker(w, q, &types.Job{ID: "j", ChatID: 1, SourceURL: "https://example/x"})

		if files := scratchFiles(t, scratch); len(files) != 0 {
			t.Errorf("scratch dir should be empty, found %v", files)
		}
	})

	t.Run("scratch files are removed after a delivery failure", func(t *testing.T) {
		scratch := t.TempDir()
		engine := &scriptedEngine{
			fallback: func(job *types.Job, sink func(types.Progress)) (*types.Artifact, error) {
				return writeArtifact(t, scratch, job, 64), nil
			},
		}
		notifier := &recordingNotifier{mediaErr: errors.New("unsupported format")}
		w, q := newTestWorker(t, scratch, engine, notifier)
		runWorker(w, q, &types.Job{ID: "j", ChatID: 1, SourceURL: "https://example/x"})

		if files := scratchFiles(t, scratch); len(files) != 0 {
			t.Errorf("scratch dir should be empty, found %v", files)
		}
	})

	t.Run("scratch files are removed after a fallback failure", func(t *testing.T) {
		scratch := t.TempDir()
		engine := &scriptedEngine{
			fallback: func(job *types.Job, sink func(types.Progress)) (*types.Artifact, error) {
				return writeArtifact(t, scratch, job, 64), nil
			},
		}
		notifier := &recordingNotifier{}
		q := queue.New()
		// limit below the artifact size and no fallback host
		strategy := delivery.New(notifier, nil, 16, 0)
		w := New(q, engine, notifier, strategy, scratch, 0)
		w.ProgressInterval = 10 * time.Millisecond
		runWorker(w, q, &types.Job{ID: "j", ChatID: 1, SourceURL: "https://example/x"})

		if files := scratchFiles(t, scratch); len(files) != 0 {
			t.Errorf("scratch dir should be empty, found %v", files)
		}
	})

	t.Run("progress updates are throttled and monotonic", func(t *testing.T) {
		scratch := t.TempDir()
		engine := &scriptedEngine{
			fallback: func(job *types.Job, sink func(types.Progress)) (*types.Artifact, error) {
				for i := range 200 {
					sink(types.Progress{Percent: float64(i) / 2})
				}
				time.Sleep(30 * time.Millisecond)
				sink(types.Progress{Percent: 10}) // stale, must be dropped
				sink(types.Progress{Percent: 99.5})
				time.Sleep(30 * time.Millisecond)
				return writeArtifact(t, scratch, job, 64), nil
			},
		}
		notifier := &recordingNotifier{}
		w, q := newTestWorker(t, scratch, engine, notifier)
		runWorker(w, q, &types.Job{ID: "j", ChatID: 1, SourceURL: "https://example/x"})

		var progressEdits []string
		for _, edit := range notifier.allEdits() {
			if strings.Contains(edit, "%") {
				progressEdits = append(progressEdits, edit)
			}
		}
		if len(progressEdits) == 0 {
			t.Fatal("expected at least one progress edit")
		}
		if len(progressEdits) >= 200 {
			t.Errorf("progress edits were not throttled: %d", len(progressEdits))
		}
		for _, edit := range progressEdits {
			if strings.Contains(edit, "10.0%") {
				t.Errorf("stale percentage leaked through the relay: %q", edit)
			}
		}
	})
}

func TestProgressRelay(t *testing.T) {
	t.Run("take drains the slot", func(t *testing.T) {
		r := &progressRelay{}
		r.Store(types.Progress{Percent: 5})
		if _, ok := r.Take(); !ok {
			t.Fatal("expected a stored event")
		}
		if _, ok := r.Take(); ok {
			t.Error("second take should find nothing")
		}
	})

	t.Run("only the latest event survives", func(t *testing.T) {
		r := &progressRelay{}
		r.Store(types.Progress{Percent: 5})
		r.Store(types.Progress{Percent: 7})
		p, ok := r.Take()
		if !ok || p.Percent != 7 {
			t.Errorf("expected percent 7, got %+v ok=%v", p, ok)
		}
	})

	t.Run("percentages never regress", func(t *testing.T) {
		r := &progressRelay{}
		r.Store(types.Progress{Percent: 50})
		r.Take()
		r.Store(types.Progress{Percent: 20})
		if _, ok := r.Take(); ok {
			t.Error("regressing event should be dropped")
		}
	})
}
