package models

import (
	"testing"
	"time"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name string
		from JobStatus
		to   JobStatus
		want bool
	}{
		{"queued to running", JobStatusQueued, JobStatusRunning, true},
		{"queued to cancelled", JobStatusQueued, JobStatusCancelled, true},
		{"queued to done", JobStatusQueued, JobStatusDone, false},
		{"running to done", JobStatusRunning, JobStatusDone, true},
		{"running to error", JobStatusRunning, JobStatusError, true},
		{"running to cancelled", JobStatusRunning, JobStatusCancelled, true},
		{"running to queued", JobStatusRunning, JobStatusQueued, false},
		{"error to queued", JobStatusError, JobStatusQueued, true},
		{"error to running", JobStatusError, JobStatusRunning, false},
		{"done is terminal", JobStatusDone, JobStatusQueued, false},
		{"cancelled is terminal", JobStatusCancelled, JobStatusQueued, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanTransition(tt.from, tt.to); got != tt.want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestTerminalStatusesHaveNoTransitions(t *testing.T) {
	for _, from := range AllJobStatuses() {
		if !from.IsTerminal() {
			continue
		}
		for _, to := range AllJobStatuses() {
			if CanTransition(from, to) {
				t.Errorf("terminal status %s must not transition to %s", from, to)
			}
		}
	}
}

func TestSetProgressMonotonic(t *testing.T) {
	job := &Job{Status: JobStatusRunning}
	job.SetProgress(35)
	if job.Progress != 35 {
		t.Fatalf("Progress = %d, want 35", job.Progress)
	}
	job.SetProgress(15)
	if job.Progress != 35 {
		t.Errorf("regression applied: Progress = %d, want 35", job.Progress)
	}
	job.SetProgress(150)
	if job.Progress != 100 {
		t.Errorf("Progress = %d, want clamp to 100", job.Progress)
	}
}

func TestResetForRetry(t *testing.T) {
	started := time.Now().UTC()
	job := &Job{
		Status:     JobStatusError,
		Progress:   55,
		RetryCount: 1,
		MaxRetries: 3,
		StartedAt:  &started,
	}
	runAt := time.Now().UTC().Add(2 * time.Second)
	job.ResetForRetry(runAt)

	if job.Status != JobStatusQueued {
		t.Errorf("Status = %s, want queued", job.Status)
	}
	if job.Progress != 0 {
		t.Errorf("Progress = %d, want 0", job.Progress)
	}
	if job.RetryCount != 2 {
		t.Errorf("RetryCount = %d, want 2", job.RetryCount)
	}
	if job.ScheduledAt == nil || !job.ScheduledAt.Equal(runAt) {
		t.Errorf("ScheduledAt = %v, want %v", job.ScheduledAt, runAt)
	}
	if job.StartedAt != nil {
		t.Errorf("StartedAt not cleared")
	}
}

func TestCanRetry(t *testing.T) {
	job := &Job{RetryCount: 2, MaxRetries: 3}
	if !job.CanRetry() {
		t.Errorf("CanRetry() = false with attempts left")
	}
	job.RetryCount = 3
	if job.CanRetry() {
		t.Errorf("CanRetry() = true with budget exhausted")
	}
}

func TestParseJobKind(t *testing.T) {
	if kind, ok := ParseJobKind("process-clip"); !ok || kind != JobKindProcessClip {
		t.Errorf("ParseJobKind(process-clip) = %q, %v", kind, ok)
	}
	if kind, ok := ParseJobKind("publish-content"); !ok || kind != JobKindPublishContent {
		t.Errorf("ParseJobKind(publish-content) = %q, %v", kind, ok)
	}
	if _, ok := ParseJobKind("transcode"); ok {
		t.Errorf("ParseJobKind(transcode) accepted unknown kind")
	}
}
