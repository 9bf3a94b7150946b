// usecase/process_video_generation.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/vitovidale/yapper-shorts-service/domain"
)

// errJobGone signals that the record was deleted while the worker still owned it.
var errJobGone = errors.New("job deleted while running")

// VideoGenerationWorker runs one dispatched job: download, then render every highlight.
// It is the only writer of a job's status and progress once the scheduler has dispatched it.
type VideoGenerationWorker struct {
	Jobs       domain.JobRepository
	Downloader domain.VideoDownloader
	Renderer   domain.ClipRenderer
	Notifier   domain.JobNotifier
	Metrics    MetricsRecorder

	InputDir  string
	OutputDir string
	// CollaboratorTimeout bounds each download and render call; zero means no limit.
	CollaboratorTimeout time.Duration

	now      func() time.Time
	stat     func(name string) (os.FileInfo, error)
	glob     func(pattern string) ([]string, error)
	mkdirAll func(path string, perm os.FileMode) error
}

func NewVideoGenerationWorker(jobs domain.JobRepository, downloader domain.VideoDownloader, renderer domain.ClipRenderer, notifier domain.JobNotifier, metrics MetricsRecorder, inputDir, outputDir string) *VideoGenerationWorker {
	if metrics == nil {
		metrics = NopMetrics{}
	}
	return &VideoGenerationWorker{
		Jobs:       jobs,
		Downloader: downloader,
		Renderer:   renderer,
		Notifier:   notifier,
		Metrics:    metrics,
		InputDir:   inputDir,
		OutputDir:  outputDir,
		now:        time.Now,
		stat:       os.Stat,
		glob:       filepath.Glob,
		mkdirAll:   os.MkdirAll,
	}
}

// Run implements JobRunner.
func (w *VideoGenerationWorker) Run(ctx context.Context, jobID string) {
	job, err := w.Jobs.Get(jobID)
	if err != nil {
		log.Printf("ERROR: worker cannot load job %s: %v", jobID, err)
		return
	}
	w.notify(ctx, job)
	started := w.now()

	final, err := w.process(ctx, job)
	switch {
	case errors.Is(err, errJobGone):
		log.Printf("WARNING: job %s was deleted mid-run, abandoning remaining work", jobID)
		return
	case err != nil:
		log.Printf("ERROR: job %s failed: %v", jobID, err)
		failed, updErr := w.Jobs.Update(jobID, func(j *domain.Job) error {
			return j.Fail(err.Error(), w.now())
		})
		if updErr != nil {
			log.Printf("ERROR: cannot record failure of job %s: %v", jobID, updErr)
			return
		}
		final = failed
	default:
		log.Printf("INFO: job %s finished with %d/%d clips", jobID, len(final.FinishedOutputs), len(final.Highlights))
	}

	w.Metrics.JobCompleted(final.Status, w.now().Sub(started))
	w.notify(ctx, final)
}

func (w *VideoGenerationWorker) process(ctx context.Context, job domain.Job) (domain.Job, error) {
	if err := ctx.Err(); err != nil {
		return domain.Job{}, fmt.Errorf("generation interrupted: %w", err)
	}
	sourceBase := filepath.Join(w.InputDir, "clip_"+job.VideoID)

	sourcePath, cached := w.cachedSource(sourceBase)
	if cached {
		log.Printf("INFO: job %s reusing cached source %s", job.ID, sourcePath)
		if _, err := w.update(job.ID, func(j *domain.Job) error {
			return j.SetTask("Using cached video...", w.now())
		}); err != nil {
			return domain.Job{}, err
		}
	} else {
		if err := w.mkdirAll(w.InputDir, 0o755); err != nil {
			return domain.Job{}, fmt.Errorf("create input directory: %w", err)
		}
		dlCtx, cancel := w.collaboratorContext(ctx)
		path, err := w.Downloader.Download(dlCtx, job.SourceURL, sourceBase)
		cancel()
		if err != nil {
			return domain.Job{}, fmt.Errorf("download failed: %w", err)
		}
		sourcePath = path
	}

	generating, err := w.update(job.ID, func(j *domain.Job) error {
		return j.StartGenerating(w.now())
	})
	if err != nil {
		return domain.Job{}, err
	}
	w.notify(ctx, generating)

	outputDir := filepath.Join(w.OutputDir, job.VideoID)
	if err := w.mkdirAll(outputDir, 0o755); err != nil {
		return domain.Job{}, fmt.Errorf("create output directory: %w", err)
	}

	for i, highlight := range job.Highlights {
		if _, err := w.update(job.ID, func(j *domain.Job) error {
			return j.BeginItem(i, w.now())
		}); err != nil {
			return domain.Job{}, err
		}

		output := w.renderItem(ctx, job.ID, sourcePath, outputDir, highlight)
		// A per-call timeout only skips the item; cancellation of the worker itself fails the job.
		if err := ctx.Err(); err != nil {
			return domain.Job{}, fmt.Errorf("generation interrupted: %w", err)
		}

		if _, err := w.update(job.ID, func(j *domain.Job) error {
			return j.CompleteItem(i, output, w.now())
		}); err != nil {
			return domain.Job{}, err
		}
	}

	return w.update(job.ID, func(j *domain.Job) error {
		return j.Finish(w.now())
	})
}

// renderItem renders one highlight and returns the output path, or "" when the item is skipped.
// Failures stay scoped to the item.
func (w *VideoGenerationWorker) renderItem(ctx context.Context, jobID, sourcePath, outputDir string, highlight domain.HighlightSegment) string {
	renderCtx, cancel := w.collaboratorContext(ctx)
	defer cancel()

	output, err := w.Renderer.Render(renderCtx, sourcePath, outputDir, highlight)
	if err != nil {
		log.Printf("WARNING: job %s skipped highlight %d (%s): %v", jobID, highlight.ID, highlight.Title, err)
		w.Metrics.ClipSkipped()
		return ""
	}
	if output == "" {
		output = filepath.Join(outputDir, fmt.Sprintf("out_%d.mp4", highlight.ID))
	}
	if _, err := w.stat(output); err != nil {
		log.Printf("WARNING: job %s highlight %d produced no file at %s", jobID, highlight.ID, output)
		w.Metrics.ClipSkipped()
		return ""
	}
	w.Metrics.ClipRendered()
	return output
}

func (w *VideoGenerationWorker) update(jobID string, mutate func(j *domain.Job) error) (domain.Job, error) {
	job, err := w.Jobs.Update(jobID, mutate)
	if errors.Is(err, domain.ErrJobNotFound) {
		return domain.Job{}, errJobGone
	}
	return job, err
}

// cachedSource finds a previously downloaded media file for base, ignoring partial downloads.
func (w *VideoGenerationWorker) cachedSource(base string) (string, bool) {
	matches, err := w.glob(base + ".*")
	if err != nil {
		return "", false
	}
	for _, m := range matches {
		if domain.IsPartialDownload(m) {
			continue
		}
		if info, err := w.stat(m); err == nil && !info.IsDir() && info.Size() > 0 {
			return m, true
		}
	}
	return "", false
}

func (w *VideoGenerationWorker) collaboratorContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if w.CollaboratorTimeout > 0 {
		return context.WithTimeout(ctx, w.CollaboratorTimeout)
	}
	return context.WithCancel(ctx)
}

func (w *VideoGenerationWorker) notify(ctx context.Context, job domain.Job) {
	if w.Notifier == nil {
		return
	}
	if err := w.Notifier.NotifyStatus(ctx, job); err != nil {
		log.Printf("WARNING: status notification for job %s failed: %v", job.ID, err)
	}
}
