package usecase_test

import (
	"testing"
	"time"

	"github.com/vitovidale/yapper-shorts-service/domain"
	"github.com/vitovidale/yapper-shorts-service/infrastructure"
)

const testVideoURL = "https://www.youtube.com/watch?v=abcdefghijk"

func testHighlights(n int) []domain.HighlightSegment {
	out := make([]domain.HighlightSegment, n)
	for i := range out {
		out[i] = domain.HighlightSegment{ID: i + 1, Title: "highlight", Start: float64(i * 60), End: float64(i*60 + 30)}
	}
	return out
}

func seedJob(t *testing.T, repo *infrastructure.InMemoryJobRepository, id string, items int) {
	t.Helper()
	job := domain.NewJob(id, "abcdefghijk", testVideoURL, testHighlights(items), time.Now())
	if err := repo.Create(job); err != nil {
		t.Fatalf("seed %s: %v", id, err)
	}
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func statusOf(repo *infrastructure.InMemoryJobRepository, id string) domain.JobStatus {
	job, err := repo.Get(id)
	if err != nil {
		return ""
	}
	return job.Status
}
