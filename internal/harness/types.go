package harness

import "github.com/littleponywork/IPMES/internal/engine"

// Result is the outcome of running a scenario under one join strategy.
type Result struct {
	// Pass is true if every assertion held.
	Pass bool `json:"pass"`

	// Join is the join strategy the scenario ran with.
	Join engine.JoinStrategy `json:"join"`

	// Report is the engine's final report, with every full match.
	Report engine.Report `json:"report"`

	// Errors contains assertion failure messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult(join engine.JoinStrategy) *Result {
	return &Result{
		Pass:   true,
		Join:   join,
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
