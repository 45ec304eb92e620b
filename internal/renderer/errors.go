package renderer

import (
	"errors"
	"fmt"
	"time"
)

// ErrBackpressure is returned when no render slot frees up within the
// queue timeout.
var ErrBackpressure = errors.New("renderer: too many concurrent renders")

// Kind classifies a failed engine invocation.
type Kind string

const (
	EmptyOutput       Kind = "empty_output"
	EngineFailure     Kind = "engine_failure"
	Timeout           Kind = "timeout"
	Canceled          Kind = "canceled"
	EngineUnavailable Kind = "engine_unavailable"
)

// Error describes a failed render. ExitCode and Stderr are set for
// EngineFailure; Stderr is truncated to the configured limit.
type Error struct {
	Kind     Kind          `json:"kind"`
	ExitCode int           `json:"exit_code,omitempty"`
	Stderr   string        `json:"stderr,omitempty"`
	Timeout  time.Duration `json:"timeout,omitempty"`
	Err      error         `json:"-"`
}

func (e *Error) Error() string {
	switch e.Kind {
	case EmptyOutput:
		return "render: engine produced no output"
	case EngineFailure:
		if e.Stderr != "" {
			return fmt.Sprintf("render: engine exited with code %d: %s", e.ExitCode, e.Stderr)
		}
		return fmt.Sprintf("render: engine exited with code %d", e.ExitCode)
	case Timeout:
		return fmt.Sprintf("render: engine timed out after %s", e.Timeout)
	case Canceled:
		return "render: canceled"
	case EngineUnavailable:
		return fmt.Sprintf("render: engine unavailable: %v", e.Err)
	}
	return fmt.Sprintf("render: %s", e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// IsKind reports whether err is a render error of the given kind.
func IsKind(err error, kind Kind) bool {
	var re *Error
	return errors.As(err, &re) && re.Kind == kind
}
