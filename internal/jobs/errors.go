package jobs

import "github.com/pkg/errors"

var (
	// ErrNotFound means the job, clip or receipt does not exist.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyClaimed means another worker won the claim compare-and-set.
	ErrAlreadyClaimed = errors.New("job already claimed")
	// ErrInvalidTransition means the requested status change is not legal
	// for the job's current status.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrRetryExhausted means the job has no attempts left.
	ErrRetryExhausted = errors.New("retry budget exhausted")
	// ErrAlreadyPublished means a receipt already exists for the
	// (clip, platform) pair and no force flag was given.
	ErrAlreadyPublished = errors.New("already published for this clip and platform")
	// ErrInvalidRequest means the enqueue request failed kind-specific
	// validation. Never retried, surfaced to the caller immediately.
	ErrInvalidRequest = errors.New("invalid request")
)
