package workflow

import (
	"errors"
	"fmt"
)

var (
	// ErrSessionNotFound is returned when resuming a session that has
	// no checkpoint.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionBusy is returned when a Run is invoked for a session
	// that already has a Run in flight.
	ErrSessionBusy = errors.New("session busy")
)

// ConfigError reports bad graph wiring. It is fatal and never retried.
type ConfigError struct {
	Detail string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("workflow configuration error: %s", e.Detail)
}

func configErrorf(format string, args ...any) *ConfigError {
	return &ConfigError{Detail: fmt.Sprintf(format, args...)}
}

// StepError wraps a failure inside a node. The Run that hit it aborts,
// leaving the last successfully written checkpoint intact; a later
// Run(sessionID, nil) resumes at the failed node.
type StepError struct {
	Node string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %q failed: %v", e.Node, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }
