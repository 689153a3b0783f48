package domain

import (
	"fmt"
	"strings"
)

// Outcome is the result of one step of a mutation.
type Outcome string

// Step outcomes.
const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeFailed    Outcome = "failed"
)

// Step names used in mutation reports.
const (
	StepValidate    = "validate"
	StepResolve     = "resolve"
	StepCopy        = "copy"
	StepTag         = "tag"
	StepMove        = "move"
	StepDeleteFile  = "delete-file"
	StepMetadata    = "metadata"
	StepFilename    = "filename"
	StepCleanupDir  = "cleanup-dir"
	StepCreateDir   = "create-dir"
	StepDeleteEntry = "delete-record"
)

// Step records what happened in one stage of a mutation.
type Step struct {
	Name    string  `json:"name"`
	Outcome Outcome `json:"outcome"`
	Detail  string  `json:"detail,omitempty"`
	// Degraded marks a skipped step whose reason the operator should see,
	// e.g. a file that was expected but missing.
	Degraded bool `json:"degraded,omitempty"`
}

// Report is the structured result of an add, update or remove.
// Callers must inspect it: best-effort failures never surface as errors.
type Report struct {
	OpID   string `json:"op_id"`
	Action string `json:"action"`
	Book   Book   `json:"book"`
	Steps  []Step `json:"steps"`
}

// NewReport starts a report for the given action.
func NewReport(opID, action string) *Report {
	return &Report{OpID: opID, Action: action}
}

// Succeeded appends a succeeded step.
func (r *Report) Succeeded(name, format string, args ...any) {
	r.Steps = append(r.Steps, Step{Name: name, Outcome: OutcomeSucceeded, Detail: fmt.Sprintf(format, args...)})
}

// Skipped appends a skipped step that needed no action.
func (r *Report) Skipped(name, format string, args ...any) {
	r.Steps = append(r.Steps, Step{Name: name, Outcome: OutcomeSkipped, Detail: fmt.Sprintf(format, args...)})
}

// Missing appends a skipped step that the operator should know about.
func (r *Report) Missing(name, format string, args ...any) {
	r.Steps = append(r.Steps, Step{Name: name, Outcome: OutcomeSkipped, Detail: fmt.Sprintf(format, args...), Degraded: true})
}

// Failed appends a failed step.
func (r *Report) Failed(name string, err error) {
	r.Steps = append(r.Steps, Step{Name: name, Outcome: OutcomeFailed, Detail: err.Error()})
}

// Step returns the last step with the given name.
func (r *Report) Step(name string) (Step, bool) {
	for i := len(r.Steps) - 1; i >= 0; i-- {
		if r.Steps[i].Name == name {
			return r.Steps[i], true
		}
	}
	return Step{}, false
}

// Degraded reports whether any step failed or was skipped for a reportable reason.
func (r *Report) Degraded() bool {
	for _, s := range r.Steps {
		if s.Outcome == OutcomeFailed || s.Degraded {
			return true
		}
	}
	return false
}

// Warnings returns the details of failed and degraded steps.
func (r *Report) Warnings() []string {
	var out []string
	for _, s := range r.Steps {
		if s.Outcome == OutcomeFailed || s.Degraded {
			out = append(out, fmt.Sprintf("%s: %s", s.Name, s.Detail))
		}
	}
	return out
}

// Summary renders a one-line, human-readable status.
func (r *Report) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %q", r.Action, r.Book.Title)
	if warnings := r.Warnings(); len(warnings) > 0 {
		fmt.Fprintf(&b, " with warnings (%s)", strings.Join(warnings, "; "))
	}
	return b.String()
}
