package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"scribe/internal/batch"
	"scribe/internal/services"
)

// exitError carries a specific exit code out of a command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

func withExitCode(code int, err error) error {
	return &exitError{code: code, err: err}
}

func usageErrorf(format string, args ...any) error {
	return withExitCode(batch.ExitUsage, fmt.Errorf(format, args...))
}

// reportError prints err (when it carries a message) and maps it to an exit code.
func reportError(w io.Writer, err error) int {
	if err == nil {
		return batch.ExitOK
	}
	var exitErr *exitError
	code := batch.ExitFailed
	if errors.As(err, &exitErr) {
		code = exitErr.code
		if exitErr.err == nil {
			return code
		}
	}
	if errors.Is(err, context.Canceled) {
		return batch.ExitInterrupted
	}
	message, hint := services.Details(err)
	if services.Marker(err) == nil {
		message, hint = err.Error(), ""
	}
	fmt.Fprintf(w, "Error: %s\n", message)
	switch {
	case code == batch.ExitUsage:
		fmt.Fprintln(w, "Run 'scribe --help' for usage.")
	case hint != "":
		fmt.Fprintf(w, "Hint: %s\n", hint)
	}
	return code
}
