package locator

import (
	"fmt"

	"golang.org/x/net/html"
)

// Status is the terminal outcome of a resolve call.
type Status string

const (
	StatusSuccess  Status = "SUCCESS"
	StatusHardFail Status = "HARD_FAIL"
)

// Debug entry types.
const (
	DebugWarn  = "warn"
	DebugError = "error"
	DebugInfo  = "info"
)

// DebugEntry is one line of the resolve trace.
type DebugEntry struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Result is what ResolveTarget returns. Node and Frame are only valid until
// the tree they came from mutates.
type Result struct {
	Status   Status       `json:"status"`
	Node     *html.Node   `json:"-"`
	Frame    *Frame       `json:"-"`
	Debug    []DebugEntry `json:"debug"`
	Error    string       `json:"error,omitempty"`
	Attempts int          `json:"attempts"`
	Score    float64      `json:"score,omitempty"`
	Why      []string     `json:"why,omitempty"`
}

// OK reports a successful resolution.
func (r *Result) OK() bool { return r != nil && r.Status == StatusSuccess }

// AttemptError is an unexpected failure inside one attempt. It is recorded
// and the retry loop continues.
type AttemptError struct {
	Attempt int
	Err     error
}

func (e *AttemptError) Error() string {
	return fmt.Sprintf("locator: attempt %d: %v", e.Attempt, e.Err)
}

func (e *AttemptError) Unwrap() error { return e.Err }
