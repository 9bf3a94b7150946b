package usecase_test

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

	"github.com/vitovidale/yapper-shorts-service/domain"
	"github.com/vitovidale/yapper-shorts-service/infrastructure"
	"github.com/vitovidale/yapper-shorts-service/usecase"
)

type fakeDownloader struct {
	mu    sync.Mutex
	calls int
	err   error
	block bool
}

func (d *fakeDownloader) Download(ctx context.Context, sourceURL, destWithoutExt string) (string, error) {
	d.mu.Lock()
	d.calls++
	d.mu.Unlock()
	if d.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if d.err != nil {
		return "", d.err
	}
	path := destWithoutExt + ".webm"
	if err := os.WriteFile(path, []byte("media"), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// fakeRenderer writes out_<id>.mp4 unless the highlight id is listed in fail or silent.
type fakeRenderer struct {
	fail   map[int]bool
	silent map[int]bool
	before func(segment domain.HighlightSegment)
}

func (r *fakeRenderer) Render(ctx context.Context, sourcePath, outputDir string, segment domain.HighlightSegment) (string, error) {
	if r.before != nil {
		r.before(segment)
	}
	out := filepath.Join(outputDir, fmt.Sprintf("out_%d.mp4", segment.ID))
	if r.fail[segment.ID] {
		return "", errors.New("ffmpeg exploded")
	}
	if r.silent[segment.ID] {
		return out, nil
	}
	if err := os.WriteFile(out, []byte("clip"), 0o644); err != nil {
		return "", err
	}
	return out, nil
}

// blockingRenderer waits for its context on the listed highlight ids instead of rendering them.
type blockingRenderer struct {
	fakeRenderer
	block map[int]bool
}

func (r *blockingRenderer) Render(ctx context.Context, sourcePath, outputDir string, segment domain.HighlightSegment) (string, error) {
	if r.block[segment.ID] {
		if r.before != nil {
			r.before(segment)
		}
		<-ctx.Done()
		return "", ctx.Err()
	}
	return r.fakeRenderer.Render(ctx, sourcePath, outputDir, segment)
}

type recordingNotifier struct {
	mu       sync.Mutex
	statuses []domain.JobStatus
}

func (n *recordingNotifier) NotifyStatus(ctx context.Context, job domain.Job) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.statuses = append(n.statuses, job.Status)
	return nil
}

func (n *recordingNotifier) seen() []domain.JobStatus {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]domain.JobStatus{}, n.statuses...)
}

func newWorkerFixture(t *testing.T, items int, downloader *fakeDownloader, renderer *fakeRenderer) (*infrastructure.InMemoryJobRepository, *usecase.VideoGenerationWorker, *recordingNotifier) {
	t.Helper()
	root := t.TempDir()
	repo := infrastructure.NewInMemoryJobRepository()
	seedJob(t, repo, "job-1", items)
	if _, err := repo.Update("job-1", func(j *domain.Job) error { return j.StartDownload(time.Now()) }); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	notifier := &recordingNotifier{}
	worker := usecase.NewVideoGenerationWorker(repo, downloader, renderer, notifier, nil,
		filepath.Join(root, "input"), filepath.Join(root, "output"))
	return repo, worker, notifier
}

// TestWorkerSkipsFailedItem covers the three-highlight scenario where item 2 fails to render.
func TestWorkerSkipsFailedItem(t *testing.T) {
	renderer := &fakeRenderer{fail: map[int]bool{2: true}}
	repo, worker, _ := newWorkerFixture(t, 3, &fakeDownloader{}, renderer)

	worker.Run(context.Background(), "job-1")

	job, err := repo.Get("job-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if job.Status != domain.JobStatusFinished {
		t.Fatalf("status = %s, want finished (error=%q)", job.Status, job.ErrorMessage)
	}
	if job.Progress != 100 {
		t.Fatalf("progress = %d, want 100", job.Progress)
	}
	if len(job.FinishedOutputs) != 2 {
		t.Fatalf("outputs = %v, want 2 entries", job.FinishedOutputs)
	}
	if !strings.HasSuffix(job.FinishedOutputs[0], "out_1.mp4") || !strings.HasSuffix(job.FinishedOutputs[1], "out_3.mp4") {
		t.Fatalf("outputs = %v, want out_1 and out_3 in order", job.FinishedOutputs)
	}
}

func TestWorkerSkipsItemThatProducedNoFile(t *testing.T) {
	renderer := &fakeRenderer{silent: map[int]bool{1: true}}
	repo, worker, _ := newWorkerFixture(t, 2, &fakeDownloader{}, renderer)

	worker.Run(context.Background(), "job-1")

	job, _ := repo.Get("job-1")
	if job.Status != domain.JobStatusFinished || len(job.FinishedOutputs) != 1 {
		t.Fatalf("job = %s with %v, want finished with one output", job.Status, job.FinishedOutputs)
	}
}

func TestWorkerDownloadFailureIsFatal(t *testing.T) {
	downloader := &fakeDownloader{err: errors.New("HTTP Error 403")}
	repo, worker, notifier := newWorkerFixture(t, 2, downloader, &fakeRenderer{})

	worker.Run(context.Background(), "job-1")

	job, _ := repo.Get("job-1")
	if job.Status != domain.JobStatusError {
		t.Fatalf("status = %s, want error", job.Status)
	}
	if !strings.Contains(job.ErrorMessage, "download failed") || !strings.Contains(job.ErrorMessage, "403") {
		t.Fatalf("error message = %q", job.ErrorMessage)
	}
	if len(job.FinishedOutputs) != 0 {
		t.Fatalf("outputs = %v, want none", job.FinishedOutputs)
	}
	seen := notifier.seen()
	if len(seen) != 2 || seen[0] != domain.JobStatusDownloading || seen[1] != domain.JobStatusError {
		t.Fatalf("notified statuses = %v, want [downloading error]", seen)
	}
}

// TestWorkerCachedSourcePassesThroughDownloading checks the cached-media fast path.
func TestWorkerCachedSourcePassesThroughDownloading(t *testing.T) {
	downloader := &fakeDownloader{}
	repo, worker, notifier := newWorkerFixture(t, 1, downloader, &fakeRenderer{})
	if err := os.MkdirAll(worker.InputDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(worker.InputDir, "clip_abcdefghijk.mp4"), []byte("media"), 0o644); err != nil {
		t.Fatalf("write cached media: %v", err)
	}

	worker.Run(context.Background(), "job-1")

	if downloader.calls != 0 {
		t.Fatalf("download calls = %d, want 0", downloader.calls)
	}
	job, _ := repo.Get("job-1")
	if job.Status != domain.JobStatusFinished {
		t.Fatalf("status = %s, want finished", job.Status)
	}
	want := []domain.JobStatus{domain.JobStatusDownloading, domain.JobStatusGenerating, domain.JobStatusFinished}
	seen := notifier.seen()
	if len(seen) != len(want) {
		t.Fatalf("notified statuses = %v, want %v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("notified statuses = %v, want %v", seen, want)
		}
	}
}

func TestWorkerIgnoresPartialDownloads(t *testing.T) {
	leftovers := []string{
		"clip_abcdefghijk.webm.part",
		"clip_abcdefghijk.f137.mp4",
		"clip_abcdefghijk.f251.webm",
	}
	for _, name := range leftovers {
		t.Run(name, func(t *testing.T) {
			downloader := &fakeDownloader{}
			repo, worker, _ := newWorkerFixture(t, 1, downloader, &fakeRenderer{})
			_ = os.MkdirAll(worker.InputDir, 0o755)
			_ = os.WriteFile(filepath.Join(worker.InputDir, name), []byte("half"), 0o644)

			worker.Run(context.Background(), "job-1")

			if downloader.calls != 1 {
				t.Fatalf("download calls = %d, want 1", downloader.calls)
			}
			if job, _ := repo.Get("job-1"); job.Status != domain.JobStatusFinished {
				t.Fatalf("status = %s, want finished", job.Status)
			}
		})
	}
}

func TestWorkerSetupFailureIsFatal(t *testing.T) {
	repo, worker, _ := newWorkerFixture(t, 1, &fakeDownloader{}, &fakeRenderer{})
	if err := os.WriteFile(worker.OutputDir, []byte("not a directory"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	worker.Run(context.Background(), "job-1")

	job, _ := repo.Get("job-1")
	if job.Status != domain.JobStatusError {
		t.Fatalf("status = %s, want error", job.Status)
	}
	if !strings.Contains(job.ErrorMessage, "output directory") {
		t.Fatalf("error message = %q", job.ErrorMessage)
	}
}

func TestWorkerDownloadTimeout(t *testing.T) {
	repo, worker, _ := newWorkerFixture(t, 1, &fakeDownloader{block: true}, &fakeRenderer{})
	worker.CollaboratorTimeout = 20 * time.Millisecond

	worker.Run(context.Background(), "job-1")

	job, _ := repo.Get("job-1")
	if job.Status != domain.JobStatusError {
		t.Fatalf("status = %s, want error", job.Status)
	}
	if !strings.Contains(job.ErrorMessage, context.DeadlineExceeded.Error()) {
		t.Fatalf("error message = %q, want deadline exceeded", job.ErrorMessage)
	}
}

func TestWorkerRenderTimeoutSkipsOnlyThatItem(t *testing.T) {
	renderer := &blockingRenderer{fakeRenderer: fakeRenderer{}, block: map[int]bool{2: true}}
	root := t.TempDir()
	repo := infrastructure.NewInMemoryJobRepository()
	seedJob(t, repo, "job-1", 3)
	if _, err := repo.Update("job-1", func(j *domain.Job) error { return j.StartDownload(time.Now()) }); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	worker := usecase.NewVideoGenerationWorker(repo, &fakeDownloader{}, renderer, nil, nil,
		filepath.Join(root, "input"), filepath.Join(root, "output"))
	worker.CollaboratorTimeout = 20 * time.Millisecond

	worker.Run(context.Background(), "job-1")

	job, _ := repo.Get("job-1")
	if job.Status != domain.JobStatusFinished || job.Progress != 100 {
		t.Fatalf("job = %s/%d (error=%q), want finished/100", job.Status, job.Progress, job.ErrorMessage)
	}
	if len(job.FinishedOutputs) != 2 ||
		!strings.HasSuffix(job.FinishedOutputs[0], "out_1.mp4") || !strings.HasSuffix(job.FinishedOutputs[1], "out_3.mp4") {
		t.Fatalf("outputs = %v, want out_1 and out_3", job.FinishedOutputs)
	}
}

// TestWorkerCancellationFailsJob checks that shutting the worker down mid-generation is a job
// failure rather than a run of skipped items.
func TestWorkerCancellationFailsJob(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rendered := 0
	renderer := &blockingRenderer{fakeRenderer: fakeRenderer{before: func(segment domain.HighlightSegment) {
		rendered++
		if segment.ID == 2 {
			cancel()
		}
	}}, block: map[int]bool{2: true}}
	root := t.TempDir()
	repo := infrastructure.NewInMemoryJobRepository()
	seedJob(t, repo, "job-1", 3)
	if _, err := repo.Update("job-1", func(j *domain.Job) error { return j.StartDownload(time.Now()) }); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	worker := usecase.NewVideoGenerationWorker(repo, &fakeDownloader{}, renderer, nil, nil,
		filepath.Join(root, "input"), filepath.Join(root, "output"))

	worker.Run(ctx, "job-1")

	job, _ := repo.Get("job-1")
	if job.Status != domain.JobStatusError {
		t.Fatalf("status = %s with %d outputs, want error", job.Status, len(job.FinishedOutputs))
	}
	if !strings.Contains(job.ErrorMessage, context.Canceled.Error()) {
		t.Fatalf("error message = %q, want cancellation", job.ErrorMessage)
	}
	if rendered != 2 {
		t.Fatalf("rendered = %d, want the worker to stop after the cancelled item", rendered)
	}
	if len(job.FinishedOutputs) != 1 {
		t.Fatalf("outputs = %v, want only the clip rendered before cancellation", job.FinishedOutputs)
	}
}

func TestWorkerWithCancelledContextFailsBeforeDownloading(t *testing.T) {
	downloader := &fakeDownloader{}
	repo, worker, _ := newWorkerFixture(t, 1, downloader, &fakeRenderer{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	worker.Run(ctx, "job-1")

	if downloader.calls != 0 {
		t.Fatalf("download calls = %d, want 0", downloader.calls)
	}
	if job, _ := repo.Get("job-1"); job.Status != domain.JobStatusError {
		t.Fatalf("status = %s, want error", job.Status)
	}
}

func TestWorkerAbandonsDeletedJob(t *testing.T) {
	var repo *infrastructure.InMemoryJobRepository
	rendered := 0
	renderer := &fakeRenderer{before: func(segment domain.HighlightSegment) {
		rendered++
		if segment.ID == 1 {
			_ = repo.Delete("job-1")
		}
	}}
	repo, worker, _ := newWorkerFixture(t, 3, &fakeDownloader{}, renderer)

	worker.Run(context.Background(), "job-1")

	if rendered != 1 {
		t.Fatalf("rendered = %d, want the worker to stop after the record vanished", rendered)
	}
	if _, err := repo.Get("job-1"); !errors.Is(err, domain.ErrJobNotFound) {
		t.Fatalf("Get error = %v, want %v", err, domain.ErrJobNotFound)
	}
}

// TestSchedulerAndWorkerEndToEnd drives real workers through the scheduler and checks every
// job reaches a terminal state.
func TestSchedulerAndWorkerEndToEnd(t *testing.T) {
	root := t.TempDir()
	repo := infrastructure.NewInMemoryJobRepository()
	worker := usecase.NewVideoGenerationWorker(repo, &fakeDownloader{}, &fakeRenderer{fail: map[int]bool{2: true}}, nil, nil,
		filepath.Join(root, "input"), filepath.Join(root, "output"))
	sched := usecase.NewScheduler(repo, 2, nil)
	sched.Start(context.Background(), worker)
	defer sched.Stop()

	submit := usecase.NewGenerateVideosUseCase(sched)
	var ids []string
	for i := 0; i < 5; i++ {
		out, err := submit.Execute(usecase.GenerateVideosInput{VideoURL: testVideoURL, Highlights: testHighlights(3)})
		if err != nil {
			t.Fatalf("Execute: %v", err)
		}
		ids = append(ids, out.JobID)
	}

	waitFor(t, "all jobs terminal", func() bool {
		for _, id := range ids {
			if !statusOf(repo, id).IsTerminal() {
				return false
			}
		}
		return true
	})
	for _, id := range ids {
		job, _ := repo.Get(id)
		if job.Status != domain.JobStatusFinished || len(job.FinishedOutputs) != 2 || job.Progress != 100 {
			t.Fatalf("job %s = %s/%d with %d outputs, want finished/100 with 2", id, job.Status, job.Progress, len(job.FinishedOutputs))
		}
	}
}
