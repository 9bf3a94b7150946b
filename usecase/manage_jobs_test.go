package usecase_test

import (
	"context"
	"errors"
	"testing"

	"github.com/vitovidale/yapper-shorts-service/domain"
	"github.com/vitovidale/yapper-shorts-service/infrastructure"
	"github.com/vitovidale/yapper-shorts-service/usecase"
)

func TestJobQueryQueueStatus(t *testing.T) {
	repo := infrastructure.NewInMemoryJobRepository()
	sched := usecase.NewScheduler(repo, 1, nil)
	runner := newGatedRunner(repo)
	sched.Start(context.Background(), runner)
	defer sched.Stop()

	for _, id := range []string{"a", "b", "c"} {
		seedJob(t, repo, id, 1)
		sched.Enqueue(id)
	}
	waitFor(t, "a running", func() bool {
		_, running, _, _ := runner.snapshot()
		return running == 1 && runner.ran("a")
	})

	query := &usecase.JobQueryUseCase{Jobs: repo, Scheduler: sched}
	status := query.QueueStatus()
	if status.QueueLength != 2 || status.ActiveCount != 1 || status.MaxConcurrent != 1 || status.AvailableSlots != 0 {
		t.Fatalf("queue status = %+v", status)
	}
	if len(status.QueuedJobs) != 2 || status.QueuedJobs[0].ID != "b" || status.QueuedJobs[1].ID != "c" {
		t.Fatalf("queued jobs = %+v", status.QueuedJobs)
	}
	if len(status.ActiveJobs) != 1 || status.ActiveJobs[0].ID != "a" {
		t.Fatalf("active jobs = %+v", status.ActiveJobs)
	}

	list := query.List()
	if len(list.Jobs) != 3 || list.QueueInfo.QueuedJobs != 2 || list.QueueInfo.ActiveJobs != 1 {
		t.Fatalf("list = %+v", list)
	}

	if err := query.Delete("b"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := query.Get("b"); !errors.Is(err, domain.ErrJobNotFound) {
		t.Fatalf("Get after delete = %v", err)
	}
	if got := query.QueueStatus().QueueLength; got != 1 {
		t.Fatalf("queue length after delete = %d, want 1", got)
	}

	runner.releaseAll(2)
	waitFor(t, "c finished", func() bool { return statusOf(repo, "c") == domain.JobStatusFinished })
	if runner.ran("b") {
		t.Fatal("deleted queued job must never run")
	}
}

func TestJobQueryDeleteUnknown(t *testing.T) {
	repo := infrastructure.NewInMemoryJobRepository()
	query := &usecase.JobQueryUseCase{Jobs: repo, Scheduler: usecase.NewScheduler(repo, 1, nil)}
	if err := query.Delete("missing"); !errors.Is(err, domain.ErrJobNotFound) {
		t.Fatalf("Delete error = %v, want %v", err, domain.ErrJobNotFound)
	}
}
