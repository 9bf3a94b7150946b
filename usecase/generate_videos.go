// usecase/generate_videos.go
package usecase

import (
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/vitovidale/yapper-shorts-service/domain"
)

type GenerateVideosInput struct {
	VideoURL   string
	Highlights []domain.HighlightSegment
}

type GenerateVideosOutput struct {
	JobID   string
	Status  domain.JobStatus
	Message string
}

// Admission is the part of the scheduler the submission path needs. Submit records the
// job and queues it atomically.
type Admission interface {
	Submit(job *domain.Job) error
}

// GenerateVideosUseCase records a new job and hands it to the admission queue.
// It never waits for generation.
type GenerateVideosUseCase struct {
	Admission Admission
	NewID     func() string
	Now       func() time.Time
}

func NewGenerateVideosUseCase(admission Admission) *GenerateVideosUseCase {
	return &GenerateVideosUseCase{
		Admission: admission,
		NewID:     uuid.NewString,
		Now:       time.Now,
	}
}

func (uc *GenerateVideosUseCase) Execute(input GenerateVideosInput) (*GenerateVideosOutput, error) {
	videoID, err := domain.VideoIDFromURL(input.VideoURL)
	if err != nil {
		return nil, err
	}

	highlights := make([]domain.HighlightSegment, 0, len(input.Highlights))
	for _, h := range input.Highlights {
		h = h.Normalize()
		if err := h.Validate(); err != nil {
			return nil, err
		}
		highlights = append(highlights, h)
	}

	job := domain.NewJob(uc.NewID(), videoID, input.VideoURL, highlights, uc.Now())
	if err := uc.Admission.Submit(job); err != nil {
		return nil, fmt.Errorf("failed to record job: %w", err)
	}

	log.Printf("INFO: job %s queued for video %s with %d highlights", job.ID, videoID, len(highlights))

	return &GenerateVideosOutput{
		JobID:   job.ID,
		Status:  domain.JobStatusQueued,
		Message: "Video generation job queued successfully",
	}, nil
}
