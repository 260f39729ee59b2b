package mediatool

import (
	"fmt"
	"strings"

	"scribe/internal/services"
)

// ToolError describes a failed external tool invocation.
type ToolError struct {
	Tool     string
	Op       string
	ExitCode int
	Output   string
	TimedOut bool
	Err      error
}

func (e *ToolError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s", e.Tool, e.Op)
	switch {
	case e.TimedOut:
		b.WriteString(": timed out")
	case e.ExitCode != 0:
		fmt.Fprintf(&b, ": exit status %d", e.ExitCode)
	case e.Err != nil:
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	if out := lastLines(e.Output, 3); out != "" {
		b.WriteString(": ")
		b.WriteString(out)
	}
	return b.String()
}

func (e *ToolError) Unwrap() error { return e.Err }

// Is lets timed-out invocations match services.ErrTimeout.
func (e *ToolError) Is(target error) bool {
	return e.TimedOut && target == services.ErrTimeout
}

func lastLines(output string, n int) string {
	lines := strings.Split(strings.TrimSpace(output), "\n")
	kept := make([]string, 0, n)
	for i := len(lines) - 1; i >= 0 && len(kept) < n; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			kept = append([]string{line}, kept...)
		}
	}
	return strings.Join(kept, " | ")
}
