package scheduler

import (
	"context"
	"time"
)

// JobFunc is one unit of background work.
type JobFunc func(ctx context.Context) error

// Job is a named function run on a fixed interval. A zero Interval means the
// job only runs when triggered.
type Job struct {
	Name     string
	Interval time.Duration
	Timeout  time.Duration
	Run      JobFunc
}

// RunStatus is the outcome of a job's most recent run.
type RunStatus string

const (
	StatusPending   RunStatus = "pending"
	StatusRunning   RunStatus = "running"
	StatusCompleted RunStatus = "completed"
	StatusFailed    RunStatus = "failed"
)

// JobStatus is a snapshot of one job's bookkeeping.
type JobStatus struct {
	Name       string        `json:"name"`
	Interval   time.Duration `json:"interval"`
	Status     RunStatus     `json:"status"`
	Runs       int64         `json:"runs"`
	Failures   int64         `json:"failures"`
	LastRun    time.Time     `json:"last_run,omitempty"`
	LastError  string        `json:"last_error,omitempty"`
	DurationMs int64         `json:"duration_ms"`
}

// jobState pairs a job with its trigger channel and status. The status is
// guarded by Scheduler.mu.
type jobState struct {
	job     Job
	trigger chan struct{}
	status  JobStatus
}

func newJobState(j Job) *jobState {
	return &jobState{
		job:     j,
		trigger: make(chan struct{}, 1),
		status: JobStatus{
			Name:     j.Name,
			Interval: j.Interval,
			Status:   StatusPending,
		},
	}
}
