package ports

import (
	"time"

	"github.com/DaMoJo09/PSCoMiXXEcosystem-sub001/pkg/domain"
)

// NoopMetrics discards all measurements
type NoopMetrics struct{}

func (NoopMetrics) RecordPublishRequest(string) {}
func (NoopMetrics) RecordJobFinished(domain.JobStatus, domain.JobStep, time.Duration) {}
func (NoopMetrics) RecordStepDuration(domain.JobStep, time.Duration) {}
func (NoopMetrics) RecordSync(string, bool, time.Duration) {}
func (NoopMetrics) RecordWorkerPoolStatus(int, int, int) {}
func (NoopMetrics) SetQueueDepth(int) {}
func (NoopMetrics) SetActiveJobs(int) {}
