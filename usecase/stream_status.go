// usecase/stream_status.go
package usecase

import (
	"context"
	"time"

	"github.com/vitovidale/yapper-shorts-service/domain"
)

const DefaultStreamInterval = time.Second

// StatusEvent is one element of a status stream: either a job snapshot or a terminal error.
type StatusEvent struct {
	Job   *domain.Job
	Error string
}

// StatusPublisher produces per-observer status streams. It only reads job records.
type StatusPublisher struct {
	Jobs     domain.JobRepository
	Interval time.Duration
}

func NewStatusPublisher(jobs domain.JobRepository, interval time.Duration) *StatusPublisher {
	if interval <= 0 {
		interval = DefaultStreamInterval
	}
	return &StatusPublisher{Jobs: jobs, Interval: interval}
}

// Stream emits a snapshot immediately and then once per interval until the job is terminal,
// the job disappears (an error event is emitted) or ctx is cancelled. The channel is always closed.
func (p *StatusPublisher) Stream(ctx context.Context, jobID string) (<-chan StatusEvent, error) {
	job, err := p.Jobs.Get(jobID)
	if err != nil {
		return nil, err
	}

	out := make(chan StatusEvent)
	go func() {
		defer close(out)
		ticker := time.NewTicker(p.Interval)
		defer ticker.Stop()

		for {
			snapshot := job
			if !emit(ctx, out, StatusEvent{Job: &snapshot}) {
				return
			}
			if job.Status.IsTerminal() {
				return
			}

			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			job, err = p.Jobs.Get(jobID)
			if err != nil {
				emit(ctx, out, StatusEvent{Error: "Job not found"})
				return
			}
		}
	}()
	return out, nil
}

func emit(ctx context.Context, out chan<- StatusEvent, event StatusEvent) bool {
	select {
	case out <- event:
		return true
	case <-ctx.Done():
		return false
	}
}
