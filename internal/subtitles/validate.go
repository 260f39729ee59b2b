package subtitles

import (
	"fmt"
	"strings"

	"scribe/internal/services"
)

// Violation describes one broken document invariant.
type Violation struct {
	Position int // 0-based position in Lines
	Reason   string
}

// InvariantError lists every violation found by Validate.
type InvariantError struct {
	Violations []Violation
}

func (e *InvariantError) Error() string {
	parts := make([]string, 0, len(e.Violations))
	for i, v := range e.Violations {
		if i == 5 {
			parts = append(parts, fmt.Sprintf("and %d more", len(e.Violations)-i))
			break
		}
		parts = append(parts, fmt.Sprintf("line %d: %s", v.Position+1, v.Reason))
	}
	return "srt invariants violated: " + strings.Join(parts, "; ")
}

// Is lets invariant failures match services.ErrAssemblyInvariant.
func (e *InvariantError) Is(target error) bool {
	return target == services.ErrAssemblyInvariant
}

// Validate checks the document invariants: indices exactly 1..N, non-empty
// text, 0 <= start < end for every line, and line[i].End <= line[i+1].Start.
func Validate(d Document) error {
	var violations []Violation
	for i, line := range d.Lines {
		if line.Index != i+1 {
			violations = append(violations, Violation{i, fmt.Sprintf("index %d, want %d", line.Index, i+1)})
		}
		if strings.TrimSpace(line.Text) == "" {
			violations = append(violations, Violation{i, "empty text"})
		}
		if line.Start < 0 {
			violations = append(violations, Violation{i, "negative start"})
		}
		if line.Start >= line.End {
			violations = append(violations, Violation{i, fmt.Sprintf("start %s not before end %s", FormatTimestamp(line.Start), FormatTimestamp(line.End))})
		}
		if i > 0 && d.Lines[i-1].End > line.Start {
			violations = append(violations, Violation{i, fmt.Sprintf("starts %s before previous end %s", FormatTimestamp(line.Start), FormatTimestamp(d.Lines[i-1].End))})
		}
	}
	if len(violations) > 0 {
		return &InvariantError{Violations: violations}
	}
	return nil
}

// RepairStats counts the changes made by Repair.
type RepairStats struct {
	DroppedEmpty   int
	DroppedInvalid int
	Trimmed        int
}

// Repair applies the assembly policy to lines already in timeline order:
// empty-text lines are dropped, a line starting before the previous end is
// trimmed to start at that end, and lines left with start >= end are dropped.
// Gaps are not filled. The result is renumbered 1..N.
func Repair(lines []Line) (Document, RepairStats) {
	var stats RepairStats
	out := make([]Line, 0, len(lines))
	for _, line := range lines {
		line.Text = normalizeText(line.Text)
		if line.Text == "" {
			stats.DroppedEmpty++
			continue
		}
		if line.Start < 0 {
			line.Start = 0
		}
		if n := len(out); n > 0 && line.Start < out[n-1].End {
			line.Start = out[n-1].End
			stats.Trimmed++
		}
		if line.Start >= line.End {
			stats.DroppedInvalid++
			continue
		}
		out = append(out, line)
	}
	return Renumber(out), stats
}

// Renumber assigns indices 1..N in order.
func Renumber(lines []Line) Document {
	for i := range lines {
		lines[i].Index = i + 1
	}
	return Document{Lines: lines}
}
