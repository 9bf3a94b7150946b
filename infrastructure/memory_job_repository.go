// infrastructure/memory_job_repository.go
package infrastructure

import (
	"fmt"
	"sort"
	"sync"

	"github.com/vitovidale/yapper-shorts-service/domain"
)

// InMemoryJobRepository implements domain.JobRepository on a map guarded by one RWMutex.
// Records never leave the repository by reference: reads return deep copies and
// updates run the mutator on a private copy that is swapped in only on success.
type InMemoryJobRepository struct {
	mu      sync.RWMutex
	jobs    map[string]*domain.Job
	retired map[string]struct{}
}

func NewInMemoryJobRepository() *InMemoryJobRepository {
	return &InMemoryJobRepository{
		jobs:    make(map[string]*domain.Job),
		retired: make(map[string]struct{}),
	}
}

func (r *InMemoryJobRepository) Create(job *domain.Job) error {
	if job == nil || job.ID == "" {
		return fmt.Errorf("%w: job id is required", domain.ErrInvalidRequest)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.jobs[job.ID]; exists {
		return fmt.Errorf("%w: %s", domain.ErrJobExists, job.ID)
	}
	if _, used := r.retired[job.ID]; used {
		return fmt.Errorf("%w: %s was used by a deleted job", domain.ErrJobExists, job.ID)
	}
	stored := job.Clone()
	r.jobs[job.ID] = &stored
	return nil
}

func (r *InMemoryJobRepository) Get(jobID string) (domain.Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	job, exists := r.jobs[jobID]
	if !exists {
		return domain.Job{}, fmt.Errorf("%w: %s", domain.ErrJobNotFound, jobID)
	}
	return job.Clone(), nil
}

func (r *InMemoryJobRepository) Update(jobID string, mutate func(job *domain.Job) error) (domain.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, exists := r.jobs[jobID]
	if !exists {
		return domain.Job{}, fmt.Errorf("%w: %s", domain.ErrJobNotFound, jobID)
	}
	next := current.Clone()
	if err := mutate(&next); err != nil {
		return current.Clone(), err
	}
	if next.ID != jobID {
		return current.Clone(), fmt.Errorf("job id is immutable: %s -> %s", jobID, next.ID)
	}
	r.jobs[jobID] = &next
	return next.Clone(), nil
}

func (r *InMemoryJobRepository) Delete(jobID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.jobs[jobID]; !exists {
		return fmt.Errorf("%w: %s", domain.ErrJobNotFound, jobID)
	}
	delete(r.jobs, jobID)
	r.retired[jobID] = struct{}{}
	return nil
}

// List returns copies of all jobs ordered by creation time.
func (r *InMemoryJobRepository) List() []domain.Job {
	r.mu.RLock()
	all := make([]domain.Job, 0, len(r.jobs))
	for _, job := range r.jobs {
		all = append(all, job.Clone())
	}
	r.mu.RUnlock()

	sort.SliceStable(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID < all[j].ID
		}
		return all[i].CreatedAt.Before(all[j].CreatedAt)
	})
	return all
}
