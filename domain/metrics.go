package domain

import "time"

// Metrics receives counters from the chat core. Implementations must be safe
// for concurrent use.
type Metrics interface {
	ObserveToolCall(tool string, status OutcomeStatus, elapsed time.Duration)
	ObserveModelCall(elapsed time.Duration, err error)
	SessionStarted()
	SessionEnded(reason TeardownReason)
}

type NopMetrics struct{}

func (NopMetrics) ObserveToolCall(string, OutcomeStatus, time.Duration) {}
func (NopMetrics) ObserveModelCall(time.Duration, error)                {}
func (NopMetrics) SessionStarted()                                      {}
func (NopMetrics) SessionEnded(TeardownReason)                          {}
