// domain/interfaces.go
package domain

import "context"

// JobRepository is the single source of truth for job records.
// Get and List return deep copies; Update applies mutate atomically.
type JobRepository interface {
	Create(job *Job) error
	Get(jobID string) (Job, error)
	Update(jobID string, mutate func(job *Job) error) (Job, error)
	Delete(jobID string) error
	List() []Job
}

type HighlightCache interface {
	Load(ctx context.Context, videoID string) ([]HighlightSegment, bool, error)
	Save(ctx context.Context, videoID string, highlights []HighlightSegment) error
}

type VideoDownloader interface {
	Download(ctx context.Context, sourceURL, destWithoutExt string) (string, error)
}

type SubtitleSource interface {
	Chunks(ctx context.Context, sourceURL, videoID, language string, autoSubs bool) ([]SubtitleChunk, error)
}

type HighlightExtractor interface {
	Extract(ctx context.Context, chunk SubtitleChunk) ([]HighlightSegment, error)
}

type ClipRenderer interface {
	Render(ctx context.Context, sourcePath, outputDir string, segment HighlightSegment) (string, error)
}

// JobNotifier receives a snapshot after every status change. Delivery is best effort.
type JobNotifier interface {
	NotifyStatus(ctx context.Context, job Job) error
}
