package harness

import (
	"github.com/PrismoFinance/bounties/internal/dispatch"
)

// TraceEvent is one request the scenario submitted and what it caused.
type TraceEvent struct {
	Step       int                   `json:"step"`
	Request    string                `json:"request"`
	Sender     string                `json:"sender"`
	VaultID    uint64                `json:"vault_id,omitempty"`
	Outcome    string                `json:"outcome"` // "ok" or an engine error code
	Error      string                `json:"error,omitempty"`
	Attributes map[string]string     `json:"attributes,omitempty"`
	Calls      []dispatch.CallRecord `json:"calls,omitempty"`
}

// OK reports whether the request was accepted.
func (e TraceEvent) OK() bool { return e.Outcome == OutcomeOK }

// OutcomeOK marks an accepted request.
const OutcomeOK = "ok"

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if all expect clauses and assertions match.
	Pass bool `json:"pass"`

	// Trace contains every submitted request in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends a submitted request to the trace.
func (r *Result) AddTrace(ev TraceEvent) {
	r.Trace = append(r.Trace, ev)
}

// Calls flattens the calls of every trace event in order.
func (r *Result) Calls() []dispatch.CallRecord {
	var out []dispatch.CallRecord
	for _, ev := range r.Trace {
		out = append(out, ev.Calls...)
	}
	return out
}
