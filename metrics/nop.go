package metrics

import "time"

type nopRecorder struct{}

// NewNop 创建空记录器.
func NewNop() Recorder {
	return nopRecorder{}
}

func (nopRecorder) IncPendingJob(string, string)                           {}
func (nopRecorder) IncActiveJob(string, string)                            {}
func (nopRecorder) ObserveMisfire(string, string, time.Duration)           {}
func (nopRecorder) ObserveScheduling(string, string, time.Duration, error) {}
func (nopRecorder) ObserveExecution(string, string, time.Duration, error)  {}
