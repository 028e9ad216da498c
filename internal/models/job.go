package models

import (
	"time"
)

type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusDone      JobStatus = "done"
	JobStatusError     JobStatus = "error"
	JobStatusCancelled JobStatus = "cancelled"
)

type JobKind string

const (
	JobKindProcessClip    JobKind = "process-clip"
	JobKindPublishContent JobKind = "publish-content"
)

// Job is one unit of orchestrated work. Status transitions form a strict
// state machine: queued->running->{done,error}; error->queued via explicit
// retry bounded by MaxRetries; any non-terminal status may become cancelled.
type Job struct {
	JobID       string     `json:"job_id" db:"job_id" redis:"job_id" validate:"omitempty"`
	Kind        JobKind    `json:"kind" db:"kind" redis:"kind" validate:"required"`
	ClipID      string     `json:"clip_id" db:"clip_id" redis:"clip_id" validate:"required"`
	Platform    string     `json:"platform,omitempty" db:"platform" redis:"platform" validate:"omitempty"`
	Status      JobStatus  `json:"status" db:"status" redis:"status" validate:"required"`
	Progress    int        `json:"progress" db:"progress" redis:"progress" validate:"gte=0,lte=100"`
	Priority    int        `json:"priority" db:"priority" redis:"priority" validate:"omitempty"`
	RetryCount  int        `json:"retry_count" db:"retry_count" redis:"retry_count"`
	MaxRetries  int        `json:"max_retries" db:"max_retries" redis:"max_retries"`
	LastError   string     `json:"last_error,omitempty" db:"last_error" redis:"last_error"`
	ResultJSON  string     `json:"result,omitempty" db:"result_json" redis:"result_json"`
	ScheduledAt *time.Time `json:"scheduled_at,omitempty" db:"scheduled_at" redis:"scheduled_at"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at" redis:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at" redis:"updated_at"`
	StartedAt   *time.Time `json:"started_at,omitempty" db:"started_at" redis:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty" db:"completed_at" redis:"completed_at"`
}

var allJobStatuses = []JobStatus{
	JobStatusQueued,
	JobStatusRunning,
	JobStatusDone,
	JobStatusError,
	JobStatusCancelled,
}

var jobTransitions = map[JobStatus][]JobStatus{
	JobStatusQueued:  {JobStatusRunning, JobStatusCancelled},
	JobStatusRunning: {JobStatusDone, JobStatusError, JobStatusCancelled},
	JobStatusError:   {JobStatusQueued},
}

// AllJobStatuses returns the ordered list of known statuses.
func AllJobStatuses() []JobStatus {
	cp := make([]JobStatus, len(allJobStatuses))
	copy(cp, allJobStatuses)
	return cp
}

// CanTransition reports whether moving from one status to another is legal.
func CanTransition(from, to JobStatus) bool {
	for _, next := range jobTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether a status ends the job's lifecycle.
// Cancelled is terminal but not an error.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusDone || s == JobStatusError || s == JobStatusCancelled
}

// ParseJobKind converts a string into a known JobKind.
func ParseJobKind(value string) (JobKind, bool) {
	switch JobKind(value) {
	case JobKindProcessClip:
		return JobKindProcessClip, true
	case JobKindPublishContent:
		return JobKindPublishContent, true
	default:
		return "", false
	}
}

// SetProgress raises the job progress. Progress is monotonic while running;
// regressions are ignored rather than failed so stage checkpoints can be
// replayed safely on resume.
func (j *Job) SetProgress(percent int) {
	if percent < j.Progress {
		return
	}
	if percent > 100 {
		percent = 100
	}
	j.Progress = percent
}

// ResetForRetry prepares an errored job for another attempt.
func (j *Job) ResetForRetry(runAt time.Time) {
	j.Status = JobStatusQueued
	j.Progress = 0
	j.RetryCount++
	j.ScheduledAt = &runAt
	j.StartedAt = nil
	j.CompletedAt = nil
}

// CanRetry reports whether the job still has attempts left.
func (j *Job) CanRetry() bool {
	return j.RetryCount < j.MaxRetries
}
