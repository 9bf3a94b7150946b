// usecase/manage_jobs.go
package usecase

import (
	"log"

	"github.com/vitovidale/yapper-shorts-service/domain"
)

type QueueInfo struct {
	QueuedJobs    int `json:"queued_jobs"`
	ActiveJobs    int `json:"active_jobs"`
	MaxConcurrent int `json:"max_concurrent"`
}

type JobList struct {
	Jobs      []domain.Job `json:"jobs"`
	QueueInfo QueueInfo    `json:"queue_info"`
}

type QueueStatus struct {
	QueueLength    int          `json:"queue_length"`
	ActiveCount    int          `json:"active_count"`
	MaxConcurrent  int          `json:"max_concurrent"`
	AvailableSlots int          `json:"available_slots"`
	QueuedJobs     []domain.Job `json:"queued_jobs"`
	ActiveJobs     []domain.Job `json:"active_jobs"`
}

// JobQueryUseCase answers status, listing and deletion requests.
type JobQueryUseCase struct {
	Jobs      domain.JobRepository
	Scheduler *Scheduler
}

func (uc *JobQueryUseCase) Get(jobID string) (domain.Job, error) {
	return uc.Jobs.Get(jobID)
}

func (uc *JobQueryUseCase) List() JobList {
	snap := uc.Scheduler.Snapshot()
	return JobList{
		Jobs: uc.Jobs.List(),
		QueueInfo: QueueInfo{
			QueuedJobs:    len(snap.Queued),
			ActiveJobs:    snap.Active,
			MaxConcurrent: snap.MaxWorkers,
		},
	}
}

func (uc *JobQueryUseCase) QueueStatus() QueueStatus {
	snap := uc.Scheduler.Snapshot()

	queued := make([]domain.Job, 0, len(snap.Queued))
	for _, id := range snap.Queued {
		if job, err := uc.Jobs.Get(id); err == nil {
			queued = append(queued, job)
		}
	}
	active := make([]domain.Job, 0, snap.Active)
	for _, job := range uc.Jobs.List() {
		if job.Status.IsActive() {
			active = append(active, job)
		}
	}

	available := snap.MaxWorkers - snap.Active
	if available < 0 {
		available = 0
	}
	return QueueStatus{
		QueueLength:    len(snap.Queued),
		ActiveCount:    snap.Active,
		MaxConcurrent:  snap.MaxWorkers,
		AvailableSlots: available,
		QueuedJobs:     queued,
		ActiveJobs:     active,
	}
}

// Delete removes the record and its queue entry. An in-flight worker is not interrupted;
// it abandons the job at its next state update.
func (uc *JobQueryUseCase) Delete(jobID string) error {
	wasQueued, err := uc.Scheduler.Delete(jobID)
	if err != nil {
		return err
	}
	log.Printf("INFO: deleted job %s (queued=%t)", jobID, wasQueued)
	return nil
}
