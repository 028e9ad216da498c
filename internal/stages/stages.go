package stages

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// ErrorKind classifies stage failures for the orchestrator's retry policy.
type ErrorKind string

const (
	// KindInvalidInput means the stage input failed validation before any
	// external call. Never retried.
	KindInvalidInput ErrorKind = "invalid_input"
	// KindTransient means a network/provider/timeout failure. Retried with
	// backoff up to the orchestrator's attempt budget.
	KindTransient ErrorKind = "transient"
	// KindPermanent means an unrecoverable failure (malformed media,
	// missing file). Never retried.
	KindPermanent ErrorKind = "permanent"
)

// Error is the tagged failure variant surfaced by stage adapters.
type Error struct {
	Kind    ErrorKind
	Stage   string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s stage: %s: %v", e.Stage, e.Message, e.Err)
	}
	return fmt.Sprintf("%s stage: %s", e.Stage, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewInvalidInput builds a fail-fast validation error.
func NewInvalidInput(stage, message string) *Error {
	return &Error{Kind: KindInvalidInput, Stage: stage, Message: message}
}

// NewTransient wraps a recoverable provider/tool failure.
func NewTransient(stage, message string, err error) *Error {
	return &Error{Kind: KindTransient, Stage: stage, Message: message, Err: err}
}

// NewPermanent wraps an unrecoverable failure.
func NewPermanent(stage, message string, err error) *Error {
	return &Error{Kind: KindPermanent, Stage: stage, Message: message, Err: err}
}

// KindOf extracts the error kind, defaulting to permanent for untyped errors.
func KindOf(err error) ErrorKind {
	var stageErr *Error
	if errors.As(err, &stageErr) {
		return stageErr.Kind
	}
	return KindPermanent
}

// StageOf extracts the originating stage name from a typed error.
func StageOf(err error) string {
	var stageErr *Error
	if errors.As(err, &stageErr) {
		return stageErr.Stage
	}
	return ""
}

// IsRetryable reports whether the orchestrator may retry after this error.
func IsRetryable(err error) bool {
	return KindOf(err) == KindTransient
}

// StageDir returns (and creates) the clip/stage-scoped output directory.
// Adapters must only write under their own stage directory so concurrent
// workers never collide.
func StageDir(workDir, clipID, stage string) (string, error) {
	dir := filepath.Join(workDir, clipID, stage)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", errors.Wrapf(err, "failed to create stage dir %s", dir)
	}
	return dir, nil
}
