package harness

import "github.com/roach88/vaultledger/internal/model"

// OutcomeOK is the trace outcome of a step that succeeded. Failed steps
// record their fault code instead.
const OutcomeOK = "ok"

// TraceEvent records one executed step.
//
// Owner is the alias the scenario used, so traces stay readable and stable
// across fixture changes.
type TraceEvent struct {
	Step    int            `json:"step"`
	Op      string         `json:"op"`
	Owner   string         `json:"owner,omitempty"`
	Outcome string         `json:"outcome"`
	Balance *model.Balance `json:"balance,omitempty"`
}

// EventRecord is a committed vault event with fixture values replaced by
// their aliases. Ids and timestamps are omitted.
type EventRecord struct {
	Type    string        `json:"type"`
	Payload model.Payload `json:"payload"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every expectation and assertion held.
	Pass bool `json:"pass"`

	// Trace contains every setup and flow step in order.
	Trace []TraceEvent `json:"trace"`

	// Events holds each touched vault's history, keyed by owner alias.
	Events map[string][]EventRecord `json:"events"`

	// Errors contains validation error messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Events: make(map[string][]EventRecord),
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends a step to the trace.
func (r *Result) AddTrace(e TraceEvent) {
	e.Step = len(r.Trace) + 1
	r.Trace = append(r.Trace, e)
}
