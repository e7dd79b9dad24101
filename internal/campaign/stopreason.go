package campaign

import "fmt"

// StopKind enumerates the terminal causes of a worker.
type StopKind int

const (
	// StopTimeLimit means the worker's wall-clock deadline expired.
	StopTimeLimit StopKind = iota
	// StopTestLimit means the worker exhausted its assigned test budget.
	StopTestLimit
	// StopKilled means the worker was cancelled from outside.
	StopKilled
	// StopCrashed means the worker failed unexpectedly.
	StopCrashed
)

// StopReason records why a worker stopped. It is assigned exactly once,
// at the moment the worker goroutine terminates, and never mutated after.
type StopReason struct {
	Kind   StopKind
	Detail string
}

// TimeLimit returns a StopReason for a deadline expiry.
func TimeLimit() StopReason { return StopReason{Kind: StopTimeLimit} }

// TestLimit returns a StopReason for an exhausted test budget.
func TestLimit() StopReason { return StopReason{Kind: StopTestLimit} }

// Killed returns a StopReason for an external cancellation.
func Killed(detail string) StopReason {
	return StopReason{Kind: StopKilled, Detail: detail}
}

// Crashed returns a StopReason for an unexpected failure.
func Crashed(detail string) StopReason {
	return StopReason{Kind: StopCrashed, Detail: detail}
}

// String formats the reason for status lines and logs.
func (r StopReason) String() string {
	switch r.Kind {
	case StopTimeLimit:
		return "time limit reached"
	case StopTestLimit:
		return "test limit reached"
	case StopKilled:
		if r.Detail == "" {
			return "killed"
		}
		return fmt.Sprintf("killed (%s)", r.Detail)
	case StopCrashed:
		if r.Detail == "" {
			return "crashed"
		}
		return fmt.Sprintf("crashed (%s)", r.Detail)
	default:
		return fmt.Sprintf("unknown stop reason %d", int(r.Kind))
	}
}

// Label returns the short machine-readable name used in JSON reports.
func (r StopReason) Label() string {
	switch r.Kind {
	case StopTimeLimit:
		return "time_limit"
	case StopTestLimit:
		return "test_limit"
	case StopKilled:
		return "killed"
	case StopCrashed:
		return "crashed"
	default:
		return "unknown"
	}
}
