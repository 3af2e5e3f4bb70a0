package harness

import "github.com/roach88/tether/internal/audit"

// StepOutcome records how one step of the flow resolved.
type StepOutcome struct {
	// Op is the step's operation name.
	Op string `json:"op"`

	// Child is the target child address.
	Child string `json:"child"`

	// Outcome is "ok" on success, the delegation error code on a
	// categorized failure, or "error" otherwise.
	Outcome string `json:"outcome"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall scenario success: every step resolved as its
	// expect clause said and every assertion held.
	Pass bool `json:"pass"`

	// Trace contains one outcome per executed step, in order.
	Trace []StepOutcome `json:"trace"`

	// Errors contains validation error messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Events is the audit log read back after the flow, ordered by seq.
	Events []audit.EventRecord `json:"events"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:  true,
		Trace: []StepOutcome{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
