package core

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a simulation id is unknown to the registry.
var ErrNotFound = errors.New("simulation not found")

// InvalidArgumentError reports rejected creation parameters. It is never
// retried and surfaces immediately to the caller.
type InvalidArgumentError struct {
	Field   string
	Value   any
	Message string
}

// Error implements the error interface.
func (e *InvalidArgumentError) Error() string {
	return fmt.Sprintf("invalid argument %q (%v): %s", e.Field, e.Value, e.Message)
}

// InvalidStateError reports an illegal lifecycle transition. The simulation
// state is unchanged when it is returned.
type InvalidStateError struct {
	Action string
	Status Status
}

// Error implements the error interface.
func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("cannot %s simulation in status %q", e.Action, e.Status)
}

// GenerationError reports that persona or insight generation produced
// unusable output after the corrective retry.
type GenerationError struct {
	Stage string // "reflect", "persona" or "insight"
	Err   error
}

// Error implements the error interface.
func (e *GenerationError) Error() string {
	return fmt.Sprintf("%s generation failed: %v", e.Stage, e.Err)
}

// Unwrap exposes the wrapped cause for errors.Is/As.
func (e *GenerationError) Unwrap() error { return e.Err }

// GatewayError wraps a model gateway failure with its retry classification.
// Retryable failures (timeouts, rate limits, transient 5xx) are retried with
// backoff by the gateway layer before ever surfacing; non-retryable failures
// surface immediately.
type GatewayError struct {
	Op        string // "generate_structured" or "generate_reply"
	Retryable bool
	Err       error
}

// Error implements the error interface.
func (e *GatewayError) Error() string {
	kind := "non-retryable"
	if e.Retryable {
		kind = "retryable"
	}
	return fmt.Sprintf("gateway %s: %s: %v", e.Op, kind, e.Err)
}

// Unwrap exposes the wrapped cause for errors.Is/As.
func (e *GatewayError) Unwrap() error { return e.Err }

// IsRetryable reports whether err is (or wraps) a retryable gateway error.
func IsRetryable(err error) bool {
	var ge *GatewayError
	return errors.As(err, &ge) && ge.Retryable
}
