package harness

import (
	"github.com/roach88/hrsync/internal/ir"
)

// Outcome values recorded for a step. Failed steps record their error code.
const (
	OutcomeOK    = "ok"
	OutcomeError = "ERROR"
)

// TraceEvent records one executed step.
type TraceEvent struct {
	Step     int            `json:"step"`
	Op       string         `json:"op"`
	Args     map[string]any `json:"args,omitempty"`
	Outcome  string         `json:"outcome"`
	Phase    string         `json:"phase,omitempty"`
	Result   map[string]any `json:"result,omitempty"`
	Revision int64          `json:"revision"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every step expectation and assertion held.
	Pass bool `json:"pass"`

	// Trace contains one event per setup and flow step, in execution order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains expectation and assertion failures.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Final is the store snapshot after the flow.
	Final ir.Snapshot `json:"-"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
		Final:  ir.NewSnapshot(),
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends a step event.
func (r *Result) AddTrace(ev TraceEvent) {
	r.Trace = append(r.Trace, ev)
}
