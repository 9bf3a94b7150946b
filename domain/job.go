// domain/job.go
package domain

import (
	"fmt"
	"time"
)

type JobStatus string

const (
	JobStatusQueued      JobStatus = "queued"
	JobStatusDownloading JobStatus = "downloading"
	JobStatusGenerating  JobStatus = "generating"
	JobStatusFinished    JobStatus = "finished"
	JobStatusError       JobStatus = "error"
)

// IsActive reports whether a job in this status holds a worker slot.
func (s JobStatus) IsActive() bool {
	return s == JobStatusDownloading || s == JobStatusGenerating
}

// IsTerminal reports whether no further transitions are possible.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusFinished || s == JobStatusError
}

var allowedTransitions = map[JobStatus]map[JobStatus]bool{
	JobStatusQueued: {
		JobStatusDownloading: true,
	},
	JobStatusDownloading: {
		JobStatusGenerating: true,
		JobStatusError:      true,
	},
	JobStatusGenerating: {
		JobStatusGenerating: true,
		JobStatusFinished:   true,
		JobStatusError:      true,
	},
	JobStatusFinished: {},
	JobStatusError:    {},
}

func CanTransition(from, to JobStatus) bool {
	next, ok := allowedTransitions[from]
	if !ok {
		return false
	}
	return next[to]
}

const (
	setupProgress      = 10
	generationProgress = 80
)

// GenerationProgress maps attempted work items onto the 10..90 band reserved for rendering.
func GenerationProgress(attempted, total int) int {
	if total <= 0 {
		return setupProgress
	}
	if attempted > total {
		attempted = total
	}
	return setupProgress + attempted*generationProgress/total
}

// Job is one clip generation request and its mutable progress record.
// Fields are mutated only through the transition methods below.
type Job struct {
	ID              string             `json:"job_id"`
	Status          JobStatus          `json:"status"`
	Progress        int                `json:"progress"`
	CurrentTask     string             `json:"current_task"`
	FinishedOutputs []string           `json:"finished_videos"`
	ErrorMessage    string             `json:"error_message,omitempty"`
	CreatedAt       time.Time          `json:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at"`
	VideoID         string             `json:"video_id"`
	SourceURL       string             `json:"video_url"`
	Highlights      []HighlightSegment `json:"highlights"`
}

func NewJob(id, videoID, sourceURL string, highlights []HighlightSegment, now time.Time) *Job {
	items := make([]HighlightSegment, len(highlights))
	copy(items, highlights)
	return &Job{
		ID:              id,
		Status:          JobStatusQueued,
		CurrentTask:     "Initializing...",
		FinishedOutputs: []string{},
		CreatedAt:       now,
		UpdatedAt:       now,
		VideoID:         videoID,
		SourceURL:       sourceURL,
		Highlights:      items,
	}
}

// Clone returns a deep copy that shares no slices with j.
func (j Job) Clone() Job {
	out := j
	out.FinishedOutputs = append([]string{}, j.FinishedOutputs...)
	out.Highlights = append([]HighlightSegment(nil), j.Highlights...)
	if out.Highlights == nil {
		out.Highlights = []HighlightSegment{}
	}
	return out
}

func (j *Job) StartDownload(now time.Time) error {
	if err := j.transition(JobStatusDownloading); err != nil {
		return err
	}
	j.CurrentTask = "Downloading video..."
	j.touch(now)
	return nil
}

// SetTask updates the human readable step without changing status.
func (j *Job) SetTask(task string, now time.Time) error {
	if !j.Status.IsActive() {
		return fmt.Errorf("%w: cannot update task of %s job %s", ErrInvalidTransition, j.Status, j.ID)
	}
	j.CurrentTask = task
	j.touch(now)
	return nil
}

func (j *Job) StartGenerating(now time.Time) error {
	if j.Status != JobStatusDownloading {
		return fmt.Errorf("%w: %s -> %s (job_id=%s)", ErrInvalidTransition, j.Status, JobStatusGenerating, j.ID)
	}
	j.Status = JobStatusGenerating
	j.CurrentTask = "Generating video clips..."
	j.setProgress(setupProgress)
	j.touch(now)
	return nil
}

// BeginItem records that work item index (zero based) is about to be rendered.
func (j *Job) BeginItem(index int, now time.Time) error {
	if err := j.transition(JobStatusGenerating); err != nil {
		return err
	}
	if index < 0 || index >= len(j.Highlights) {
		return fmt.Errorf("work item %d out of range for job %s", index, j.ID)
	}
	total := len(j.Highlights)
	j.CurrentTask = fmt.Sprintf("Generating video %d/%d: %s", index+1, total, j.Highlights[index].Title)
	j.setProgress(GenerationProgress(index, total))
	j.touch(now)
	return nil
}

// CompleteItem records that work item index has been attempted, successfully or not.
// output is appended to FinishedOutputs when non-empty.
func (j *Job) CompleteItem(index int, output string, now time.Time) error {
	if err := j.transition(JobStatusGenerating); err != nil {
		return err
	}
	if index < 0 || index >= len(j.Highlights) {
		return fmt.Errorf("work item %d out of range for job %s", index, j.ID)
	}
	if output != "" {
		if len(j.FinishedOutputs) >= len(j.Highlights) {
			return fmt.Errorf("job %s already has %d outputs for %d work items", j.ID, len(j.FinishedOutputs), len(j.Highlights))
		}
		j.FinishedOutputs = append(j.FinishedOutputs, output)
	}
	j.setProgress(GenerationProgress(index+1, len(j.Highlights)))
	j.touch(now)
	return nil
}

func (j *Job) Finish(now time.Time) error {
	if err := j.transition(JobStatusFinished); err != nil {
		return err
	}
	j.CurrentTask = "Completed!"
	j.Progress = 100
	j.touch(now)
	return nil
}

// Fail moves an active job to error. The message is kept verbatim and never changes afterwards.
func (j *Job) Fail(message string, now time.Time) error {
	if err := j.transition(JobStatusError); err != nil {
		return err
	}
	if message == "" {
		message = "unknown error"
	}
	j.ErrorMessage = message
	j.CurrentTask = "Failed"
	j.touch(now)
	return nil
}

func (j *Job) transition(to JobStatus) error {
	if !CanTransition(j.Status, to) {
		return fmt.Errorf("%w: %s -> %s (job_id=%s)", ErrInvalidTransition, j.Status, to, j.ID)
	}
	j.Status = to
	return nil
}

func (j *Job) setProgress(p int) {
	if p > 100 {
		p = 100
	}
	if p > j.Progress {
		j.Progress = p
	}
}

// touch keeps UpdatedAt monotonic even if the wall clock steps backwards.
func (j *Job) touch(now time.Time) {
	if now.After(j.UpdatedAt) {
		j.UpdatedAt = now
	}
}
