package harness

import (
	"github.com/roach88/shiftrule/internal/ir"
)

// TraceEvent is one event emitted by the engine during a scenario.
type TraceEvent struct {
	Step    int    `json:"step"` // 1-based index of the step that emitted it
	Seq     int64  `json:"seq"`
	Kind    string `json:"kind"`
	Scope   string `json:"scope"`
	Subject string `json:"subject"`
}

// FinalState is the engine state after the last step.
type FinalState struct {
	Active  bool     `json:"active"`
	State   string   `json:"state"`
	Apps    []string `json:"apps"`
	Browser []string `json:"browser"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if all step expectations and assertions match.
	Pass bool `json:"pass"`

	// Trace contains all emitted events in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Final is the decision, reactor state and rules after the last step.
	Final FinalState `json:"final"`
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

// AddEvent appends ev to the trace, attributed to step.
func (r *Result) AddEvent(step int, ev ir.Event) {
	r.Trace = append(r.Trace, TraceEvent{
		Step:    step,
		Seq:     ev.Seq,
		Kind:    string(ev.Kind),
		Scope:   string(ev.Scope),
		Subject: ev.Subject,
	})
}

// appRuleString formats an app rule for assertions and golden files.
func appRuleString(r ir.AppRule) string {
	return r.Identifier.Kind().String() + ":" + r.Identifier.Value()
}

// browserRuleString formats a browser rule for assertions and golden files.
func browserRuleString(r ir.BrowserRule) string {
	return string(r.Type) + ":" + r.Host
}
