// usecase/metrics.go
package usecase

import (
	"time"

	"github.com/vitovidale/yapper-shorts-service/domain"
)

// MetricsRecorder receives scheduler and worker measurements.
type MetricsRecorder interface {
	JobQueued()
	JobDispatched()
	JobCompleted(status domain.JobStatus, elapsed time.Duration)
	ClipRendered()
	ClipSkipped()
	QueueState(queued, active int)
	HighlightCacheLookup(hit bool)
}

type NopMetrics struct{}

func (NopMetrics) JobQueued()                                    {}
func (NopMetrics) JobDispatched()                                {}
func (NopMetrics) JobCompleted(domain.JobStatus, time.Duration) {}
func (NopMetrics) ClipRendered()                                 {}
func (NopMetrics) ClipSkipped()                                  {}
func (NopMetrics) QueueState(int, int)                           {}
func (NopMetrics) HighlightCacheLookup(bool)                     {}
