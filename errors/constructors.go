package errors

import (
	"fmt"
	"time"
)

// ConfigNotFound creates a configuration not found error
func ConfigNotFound(path string) *GroveError {
	return New(ErrCodeConfigNotFound, fmt.Sprintf("configuration file not found: %s", path)).
		WithDetail("path", path)
}

// ConfigInvalid creates an invalid configuration error
func ConfigInvalid(reason string) *GroveError {
	return New(ErrCodeConfigInvalid, fmt.Sprintf("invalid configuration: %s", reason))
}

// InvalidState reports an operation attempted outside the state that permits it.
// The error is local to the call; the object is left unchanged.
func InvalidState(operation, state string) *GroveError {
	return New(ErrCodeInvalidState,
		fmt.Sprintf("cannot %s while %s", operation, state)).
		WithDetail("operation", operation).
		WithDetail("state", state)
}

// NativeResourceUnavailable reports a native constructor that returned a null handle.
func NativeResourceUnavailable(resource string) *GroveError {
	return New(ErrCodeNativeResourceUnavailable,
		fmt.Sprintf("native layer returned no %s", resource)).
		WithDetail("resource", resource)
}

// NativeContract describes a broken assumption about the native ABI. It is
// raised as a panic value from callbacks, where there is no caller to return to.
func NativeContract(reason string) *GroveError {
	return New(ErrCodeNativeContract, fmt.Sprintf("native contract violated: %s", reason))
}

// InvalidInput creates an invalid input error for the named argument
func InvalidInput(argument, reason string) *GroveError {
	return New(ErrCodeInvalidInput, fmt.Sprintf("invalid %s: %s", argument, reason)).
		WithDetail("argument", argument)
}

// Timeout creates an error for a wait that did not complete in time
func Timeout(operation string, after time.Duration) *GroveError {
	return New(ErrCodeTimeout,
		fmt.Sprintf("%s did not complete within %s", operation, after)).
		WithDetail("operation", operation).
		WithDetail("timeout", after.String())
}
