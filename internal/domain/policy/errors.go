package policy

import "fmt"

// SpecError reports a malformed policy document or an expression that
// failed to compile. It is fatal: callers should refuse to serve the
// policy rather than attempt to recover.
type SpecError struct {
	// Field names the offending document field, invariant, or identifier.
	// Nothing beyond this name is surfaced to keep error messages from
	// leaking policy contents (spec §7).
	Field string
	Reason string
	Err   error
}

func (e *SpecError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("policy spec error at %q: %s: %v", e.Field, e.Reason, e.Err)
	}
	return fmt.Sprintf("policy spec error at %q: %s", e.Field, e.Reason)
}

func (e *SpecError) Unwrap() error { return e.Err }

// NewSpecError builds a SpecError naming only the offending field.
func NewSpecError(field, reason string) *SpecError {
	return &SpecError{Field: field, Reason: reason}
}

// BindingError reports that a fact's value was incompatible with its
// declared variable's type. It is fatal for the one request that produced
// it; the compiled policy itself remains usable.
type BindingError struct {
	Variable string
	Declared Kind
	Err      error
}

func (e *BindingError) Error() string {
	return fmt.Sprintf("binding error: fact %q is incompatible with declared type %s", e.Variable, e.Declared)
}

func (e *BindingError) Unwrap() error { return e.Err }

// AdapterError reports that a pluggable Proposer or Repair adapter (C6)
// returned an error. The router
// never propagates this to the caller as a failure: it records the
// adapter name in the explanation and falls back to decline.
type AdapterError struct {
	Adapter string
	Err     error
}

func (e *AdapterError) Error() string {
	return fmt.Sprintf("adapter %q failed: %v", e.Adapter, e.Err)
}

func (e *AdapterError) Unwrap() error { return e.Err }
