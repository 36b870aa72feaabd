package worker

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tanq16/telegrab/internal/delivery"
	"github.com/tanq16/telegrab/internal/queue"
	"github.com/tanq16/telegrab/internal/types"
	"github.com/tanq16/telegrab/internal/utils"
)

// Worker is the single consumer of the job queue. It executes one job fully
// (download, verify, deliver, clean up) before taking the next; downloads
// are strictly serialized. One job's failure never terminates the loop.
type Worker struct {
	queue       *queue.Queue
	engine      types.Engine
	notifier    types.Notifier
	strategy    *delivery.Strategy
	scratchDir  string
	adminChatID int64

	// ProgressInterval is the minimum wall time between outbound progress
	// edits per job, keeping under the transport's edit-rate limits.
	ProgressInterval time.Duration
}

func New(q *queue.Queue, engine types.Engine, notifier types.Notifier, strategy *delivery.Strategy, scratchDir string, adminChatID int64) *Worker {
	return &Worker{
		queue:            q,
		engine:           engine,
		notifier:         notifier,
		strategy:         strategy,
		scratchDir:       scratchDir,
		adminChatID:      adminChatID,
		ProgressInterval: 2 * time.Second,
	}
}

// Run drains the queue for the lifetime of the process. It returns once the
// queue is closed and fully drained.
func (w *Worker) Run(ctx context.Context) {
	log.Info().Str("op", "worker/run").Msg("download worker started")
	for {
		job, err := w.queue.Dequeue()
		if err != nil {
			log.Info().Str("op", "worker/run").Msg("queue closed, worker stopping")
			return
		}
		w.process(ctx, job)
	}
}

// process walks one job through Fetching, Verifying, Delivering and
// CleaningUp. Every error class is converted to a user-facing message here;
// nothing unwinds out of the worker loop.
func (w *Worker) process(ctx context.Context, job *types.Job) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("op", "worker/process").Msgf("recovered from panic in job %s: %v\n%s", job.ID, r, debug.Stack())
			w.notifier.SendText(job.ChatID, job.ReplyToID, "Something went wrong while processing your download. Please try again.")
			w.escalate(fmt.Sprintf("worker panic on job %s (%s): %v", job.ID, job.SourceURL, r))
			w.cleanup(job)
		}
	}()

	label := job.Title
	if label == "" {
		label = job.SourceURL
	}
	statusRef, err := w.notifier.SendText(job.ChatID, job.ReplyToID, fmt.Sprintf("⏳ Downloading %s...", label))
	if err != nil {
		log.Error().Str("op", "worker/process").Err(err).Msgf("error sending status message for job %s", job.ID)
	}

	// Fetching
	relay := &progressRelay{}
	stopProgress := w.reportProgress(statusRef, label, relay)
	defer stopProgress()
	artifact, err := w.engine.Fetch(ctx, job, relay.Store)
	stopProgress()
	defer w.cleanup(job)

	if err != nil {
		log.Error().Str("op", "worker/process").Err(err).Msgf("fetch failed for job %s", job.ID)
		w.notifier.EditOrReply(statusRef, fmt.Sprintf("❌ Download failed for %s:\n%v", label, err))
		return
	}

	// Verifying: a clean engine exit with no usable file usually means a
	// missing post-processing dependency rather than a fetch problem.
	if artifact == nil || artifact.SizeBytes == 0 {
		log.Error().Str("op", "worker/process").Msgf("fetch produced no usable artifact for job %s", job.ID)
		w.notifier.EditOrReply(statusRef, fmt.Sprintf("❌ The download of %s finished but produced no usable file. The server may be missing ffmpeg for merging streams.", label))
		return
	}

	// Delivering
	w.notifier.EditOrReply(statusRef, fmt.Sprintf("📤 Sending %s (%s)...", artifact.Title, utils.FormatBytes(uint64(artifact.SizeBytes))))
	if err := w.strategy.Deliver(ctx, job, artifact); err != nil {
		log.Error().Str("op", "worker/process").Err(err).Msgf("delivery failed for job %s", job.ID)
		return
	}
	log.Info().Str("op", "worker/process").Msgf("job %s completed", job.ID)
}

// reportProgress starts the ticker that drives outbound progress edits from
// the worker's own context. The returned stop function is idempotent.
func (w *Worker) reportProgress(ref types.MessageRef, label string, relay *progressRelay) func() {
	done := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		ticker := time.NewTicker(w.ProgressInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				progress, ok := relay.Take()
				if !ok {
					continue
				}
				w.notifier.EditOrReply(ref, formatProgress(label, progress))
			}
		}
	}()
	var once sync.Once
	return func() {
		once.Do(func() {
			close(done)
			<-finished
		})
	}
}

func formatProgress(label string, p types.Progress) string {
	text := fmt.Sprintf("⏳ Downloading %s: %.1f%%", label, p.Percent)
	if p.TotalBytes > 0 {
		text += fmt.Sprintf(" of %s", utils.FormatBytes(uint64(p.TotalBytes)))
	}
	if p.Speed != "" {
		text += fmt.Sprintf(" at %s", p.Speed)
	}
	if p.ETA != "" {
		text += fmt.Sprintf(", ETA %s", p.ETA)
	}
	return text
}

// cleanup removes every scratch file carrying the job's ID prefix, partials
// included, regardless of delivery outcome. Already-gone files are fine.
func (w *Worker) cleanup(job *types.Job) {
	matches, err := filepath.Glob(filepath.Join(w.scratchDir, job.ID+"-*"))
	if err != nil {
		return
	}
	for _, path := range matches {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			log.Debug().Str("op", "worker/cleanup").Err(err).Msgf("could not remove %s", path)
		}
	}
}

func (w *Worker) escalate(message string) {
	if w.adminChatID == 0 {
		return
	}
	if _, err := w.notifier.SendText(w.adminChatID, 0, message); err != nil {
		log.Error().Str("op", "worker/escalate").Err(err).Msg("error notifying operator")
	}
}
