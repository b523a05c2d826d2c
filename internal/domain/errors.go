package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrMissingVariable  = errors.New("missing template variable")
	ErrDuplicateAdaptor = errors.New("duplicate adaptor")
	ErrAdaptorInit      = errors.New("adaptor init failure")
	ErrModelNotFound    = errors.New("model not found")
	ErrProvider         = errors.New("provider failure")
	ErrJobFailed        = errors.New("job failed")
	ErrJobTimedOut      = errors.New("job timed out")
	ErrJobTerminal      = errors.New("job already terminal")
	ErrMalformedOutput  = errors.New("malformed generation output")
)

// MissingVariableError reports a required template variable that was absent
// at resolution time. It always fails the run before any provider call.
type MissingVariableError struct {
	Template string
	Variable string
}

func (e *MissingVariableError) Error() string {
	return fmt.Sprintf("template %q: missing required variable %q", e.Template, e.Variable)
}

func (e *MissingVariableError) Unwrap() error { return ErrMissingVariable }

// DuplicateAdaptorError is returned when an adaptor id is registered twice.
type DuplicateAdaptorError struct {
	ID string
}

func (e *DuplicateAdaptorError) Error() string {
	return fmt.Sprintf("adaptor %q is already registered", e.ID)
}

func (e *DuplicateAdaptorError) Unwrap() error { return ErrDuplicateAdaptor }

// AdaptorInitError wraps a construction or config validation failure,
// naming the adaptor and model that failed.
type AdaptorInitError struct {
	ID    string
	Model string
	Cause error
}

func (e *AdaptorInitError) Error() string {
	return fmt.Sprintf("adaptor %q model %q: init failed: %v", e.ID, e.Model, e.Cause)
}

func (e *AdaptorInitError) Unwrap() error { return ErrAdaptorInit }

// ModelNotFoundError reports a model id absent from an adaptor's catalog.
type ModelNotFoundError struct {
	AdaptorID string
	ModelID   string
}

func (e *ModelNotFoundError) Error() string {
	return fmt.Sprintf("adaptor %q: unknown model %q", e.AdaptorID, e.ModelID)
}

func (e *ModelNotFoundError) Unwrap() error { return ErrModelNotFound }

// ProviderError wraps the underlying transport/HTTP failure of a single
// adaptor call. Per-item provider errors are recorded on the item and never
// abort the batch; batch-level ones are fatal to the run.
type ProviderError struct {
	AdaptorID string
	Op        string
	Cause     error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("adaptor %q: %s: %v", e.AdaptorID, e.Op, e.Cause)
}

func (e *ProviderError) Unwrap() error { return ErrProvider }

// MalformedOutputError reports that a text-generation output could not be
// parsed into the expected JSON shape after fence stripping.
type MalformedOutputError struct {
	Detail string
}

func (e *MalformedOutputError) Error() string {
	return fmt.Sprintf("malformed generation output: %s", e.Detail)
}

func (e *MalformedOutputError) Unwrap() error { return ErrMalformedOutput }
