package domain

import "time"

// JobStatus enumerates the async job state machine. Polling is the only
// looping state; the other three non-initial states are terminal.
type JobStatus string

const (
	JobStatusSubmitted JobStatus = "submitted"
	JobStatusPolling   JobStatus = "polling"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusTimedOut  JobStatus = "timed_out"
)

// Terminal reports whether no further transition can occur.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusTimedOut:
		return true
	default:
		return false
	}
}

// GenerationJob tracks one asynchronous provider operation (video synthesis).
// Created on submit, mutated only by the poller that owns it, terminated
// exactly once.
type GenerationJob struct {
	Operation    string
	SubmittedAt  time.Time
	PollInterval time.Duration
	MaxWait      time.Duration
	Status       JobStatus
	LastError    string
	ArtifactURL  string
}
