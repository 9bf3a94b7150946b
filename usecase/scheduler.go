// usecase/scheduler.go
package usecase

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/vitovidale/yapper-shorts-service/domain"
)

const DefaultMaxWorkers = 4

// JobRunner executes one dispatched job until it reaches a terminal state.
type JobRunner interface {
	Run(ctx context.Context, jobID string)
}

// Scheduler owns the admission queue and the fixed worker pool.
//
// mu guards queue, active, stopped and runCtx. The active-count check, the dequeue and the
// queued -> downloading transition all happen while mu is held, so concurrent
// TryDispatch calls can never jointly exceed maxWorkers. Record creation and deletion
// through Submit and Delete also hold mu, so a record is queued iff its status is queued.
type Scheduler struct {
	jobs       domain.JobRepository
	maxWorkers int
	metrics    MetricsRecorder
	now        func() time.Time

	mu      sync.Mutex
	queue   []string
	active  int
	stopped bool
	// runCtx is the workers' context; once it is done queued jobs stay queued.
	runCtx context.Context

	work chan string
	wg   sync.WaitGroup
}

func NewScheduler(jobs domain.JobRepository, maxWorkers int, metrics MetricsRecorder) *Scheduler {
	if maxWorkers <= 0 {
		maxWorkers = DefaultMaxWorkers
	}
	if metrics == nil {
		metrics = NopMetrics{}
	}
	return &Scheduler{
		jobs:       jobs,
		maxWorkers: maxWorkers,
		metrics:    metrics,
		now:        time.Now,
		work:       make(chan string, maxWorkers),
	}
}

// Start launches maxWorkers execution units. Each unit runs dispatched jobs through runner
// and refills the pool from the queue head when the job ends.
func (s *Scheduler) Start(ctx context.Context, runner JobRunner) {
	s.mu.Lock()
	s.runCtx = ctx
	s.mu.Unlock()

	for i := 0; i < s.maxWorkers; i++ {
		s.wg.Add(1)
		go func(worker int) {
			defer s.wg.Done()
			for jobID := range s.work {
				log.Printf("INFO: worker %d picked up job %s", worker, jobID)
				runner.Run(ctx, jobID)
				s.release(jobID)
			}
		}(i + 1)
	}
	log.Printf("INFO: scheduler started with %d workers", s.maxWorkers)
}

// Stop refuses further dispatches and waits for in-flight jobs to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	close(s.work)
	s.mu.Unlock()
	s.wg.Wait()
}

// Enqueue appends an already recorded queued job to the tail and tries to dispatch immediately.
func (s *Scheduler) Enqueue(jobID string) {
	s.mu.Lock()
	s.queue = append(s.queue, jobID)
	s.mu.Unlock()

	s.metrics.JobQueued()
	s.TryDispatch()
}

// Submit records a new job and appends it to the queue in one critical section.
func (s *Scheduler) Submit(job *domain.Job) error {
	s.mu.Lock()
	if err := s.jobs.Create(job); err != nil {
		s.mu.Unlock()
		return err
	}
	s.queue = append(s.queue, job.ID)
	s.mu.Unlock()

	s.metrics.JobQueued()
	s.TryDispatch()
	return nil
}

// TryDispatch fills free worker slots from the queue head in FIFO order.
func (s *Scheduler) TryDispatch() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for !s.stopped && !s.haltedLocked() && s.active < s.maxWorkers && len(s.queue) > 0 {
		jobID := s.queue[0]
		s.queue = s.queue[1:]

		_, err := s.jobs.Update(jobID, func(job *domain.Job) error {
			return job.StartDownload(s.now())
		})
		if err != nil {
			if errors.Is(err, domain.ErrJobNotFound) {
				log.Printf("WARNING: queued job %s vanished before dispatch", jobID)
			} else {
				log.Printf("ERROR: cannot dispatch job %s: %v", jobID, err)
			}
			continue
		}

		s.active++
		s.work <- jobID
		s.metrics.JobDispatched()
		log.Printf("INFO: dispatched job %s (%d/%d active, %d queued)", jobID, s.active, s.maxWorkers, len(s.queue))
	}
	s.metrics.QueueState(len(s.queue), s.active)
}

// haltedLocked reports whether the workers' context is done. Callers hold mu.
func (s *Scheduler) haltedLocked() bool {
	return s.runCtx != nil && s.runCtx.Err() != nil
}

// Remove drops a job that is still waiting in the queue. It reports whether the job was queued.
func (s *Scheduler) Remove(jobID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeLocked(jobID)
}

// Delete removes the job record and its queue entry together. It reports whether the job
// was still queued.
func (s *Scheduler) Delete(jobID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.jobs.Delete(jobID); err != nil {
		return false, err
	}
	return s.removeLocked(jobID), nil
}

func (s *Scheduler) removeLocked(jobID string) bool {
	for i, id := range s.queue {
		if id == jobID {
			s.queue = append(s.queue[:i:i], s.queue[i+1:]...)
			s.metrics.QueueState(len(s.queue), s.active)
			return true
		}
	}
	return false
}

// QueueSnapshot is a consistent view of the admission state.
type QueueSnapshot struct {
	Queued     []string
	Active     int
	MaxWorkers int
}

func (s *Scheduler) Snapshot() QueueSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return QueueSnapshot{
		Queued:     append([]string{}, s.queue...),
		Active:     s.active,
		MaxWorkers: s.maxWorkers,
	}
}

func (s *Scheduler) MaxWorkers() int {
	return s.maxWorkers
}

func (s *Scheduler) release(jobID string) {
	s.mu.Lock()
	s.active--
	s.mu.Unlock()
	log.Printf("INFO: worker slot released by job %s", jobID)
	s.TryDispatch()
}
