package llm

import (
	"errors"
	"fmt"
)

// ErrNotConfigured is returned when no model provider is available
var ErrNotConfigured = errors.New("llm: model provider not configured")

// ProviderError wraps a transport or quota failure from the model provider
type ProviderError struct {
	Op  string
	Err error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("llm %s: %v", e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// ValidationError means the provider output could not be parsed against the
// requested schema
type ValidationError struct {
	Schema string
	Err    error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("llm output does not match schema %s: %v", e.Schema, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// IsValidation reports whether err is a schema validation failure
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
