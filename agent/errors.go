package agent

import (
	"errors"
	"fmt"
)

var (
	// ErrSchemaDecode indicates malformed JSON in a function call's arguments.
	ErrSchemaDecode = errors.New("decode function arguments")

	// ErrToolExecution indicates that an invoked tool failed.
	ErrToolExecution = errors.New("tool execution failed")

	// ErrRunExhausted indicates the run hit its turn limit or deadline.
	ErrRunExhausted = errors.New("run exhausted")

	// ErrRunFailed is the base error for runs aborted by a completion or tool failure.
	ErrRunFailed = errors.New("run failed")

	// ErrIncompleteStream indicates a completion stream ended without a completion event.
	ErrIncompleteStream = errors.New("stream ended without completion event")
)

// ToolError describes a failed function call. Use errors.As to extract it.
type ToolError struct {
	Tool   string
	CallID string
	Err    error
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("tool %s (call %s): %v", e.Tool, e.CallID, e.Err)
}

func (e *ToolError) Unwrap() error { return e.Err }

// RunFailedError is returned when a run cannot continue. It matches both
// ErrRunFailed and the underlying cause with errors.Is.
type RunFailedError struct {
	Turn int
	Err  error
}

func (e *RunFailedError) Error() string {
	return fmt.Sprintf("run failed on turn %d: %v", e.Turn, e.Err)
}

func (e *RunFailedError) Unwrap() []error {
	return []error{ErrRunFailed, e.Err}
}
