package analysis

import (
	"errors"
	"fmt"
)

// NotApplicableError is the soft-failure result of an analyzer whose
// preconditions are not met by the data (no error records for a causal
// chain, no mixed-outcome batch, no numeric values for a field). Callers are
// expected to branch on it with errors.As and continue; the auto dispatcher
// silently omits analyses that return it.
type NotApplicableError struct {
	Analyzer   string `json:"analyzer"`
	Reason     string `json:"reason"`
	Suggestion string `json:"suggestion"`
}

// Error implements the error interface.
func (e *NotApplicableError) Error() string {
	return fmt.Sprintf("%s not applicable: %s", e.Analyzer, e.Reason)
}

// NewNotApplicable creates a soft-failure result with a next-step suggestion.
func NewNotApplicable(analyzer, reason, suggestion string) *NotApplicableError {
	return &NotApplicableError{Analyzer: analyzer, Reason: reason, Suggestion: suggestion}
}

// MissingInputError reports a caller contract violation: a required
// parameter was absent, or an explicitly requested field does not exist on
// the target record. Unlike NotApplicableError this is a hard error.
type MissingInputError struct {
	Param  string `json:"param"`
	Detail string `json:"detail"`
}

// Error implements the error interface.
func (e *MissingInputError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("missing required input %q: %s", e.Param, e.Detail)
	}
	return fmt.Sprintf("missing required input %q", e.Param)
}

// NewMissingInput creates a hard caller-contract error.
func NewMissingInput(param, detail string) *MissingInputError {
	return &MissingInputError{Param: param, Detail: detail}
}

// IsNotApplicable reports whether err is a soft not-applicable failure.
func IsNotApplicable(err error) bool {
	var na *NotApplicableError
	return errors.As(err, &na)
}
