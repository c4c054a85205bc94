package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/grovetools/fsdispatch/errors"
)

// ErrorHandler provides user-friendly error messages
type ErrorHandler struct {
	Verbose bool
	Out     io.Writer
}

// NewErrorHandler creates a new error handler writing to stderr
func NewErrorHandler(verbose bool) *ErrorHandler {
	return &ErrorHandler{
		Verbose: verbose,
		Out:     os.Stderr,
	}
}

// Handle prints a message for err chosen by its code and returns err.
func (h *ErrorHandler) Handle(err error) error {
	if err == nil {
		return nil
	}
	out := h.Out
	if out == nil {
		out = os.Stderr
	}
	groveErr, _ := errors.As(err)

	switch errors.GetCode(err) {
	case errors.ErrCodeConfigNotFound:
		fmt.Fprintf(out, "❌ Configuration not found. Create fsdispatch.yml or pass --config.\n")

	case errors.ErrCodeConfigInvalid, errors.ErrCodeConfigValidation:
		fmt.Fprintf(out, "❌ %s\n", groveErr.Message)
		if path, ok := groveErr.Details["path"]; ok {
			fmt.Fprintf(out, "Check %v, or run 'fsdispatch config schema' for the expected layout.\n", path)
		}

	case errors.ErrCodeInvalidInput:
		fmt.Fprintf(out, "❌ %s\n", groveErr.Message)

	case errors.ErrCodeInvalidState:
		fmt.Fprintf(out, "❌ Cannot %v while %v\n", groveErr.Details["operation"], groveErr.Details["state"])

	case errors.ErrCodeNativeResourceUnavailable:
		fmt.Fprintf(out, "❌ The system could not create a %v\n", groveErr.Details["resource"])
		fmt.Fprintf(out, "Check that the watched paths exist and that file descriptor limits are not exhausted.\n")

	case errors.ErrCodeTimeout:
		fmt.Fprintf(out, "❌ %v timed out after %v\n", groveErr.Details["operation"], groveErr.Details["timeout"])

	default:
		fmt.Fprintf(out, "❌ Error: %v\n", err)
	}

	if h.Verbose && groveErr != nil {
		fmt.Fprintf(out, "\nError details:\n%s\n", groveErr.ToJSON())
	}
	return err
}
