package subtitles

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Line is one SRT cue.
type Line struct {
	Index int
	Start time.Duration
	End   time.Duration
	Text  string
}

// Duration returns End-Start.
func (l Line) Duration() time.Duration { return l.End - l.Start }

// Document is an ordered sequence of cues.
type Document struct {
	Lines []Line
}

// Len returns the number of cues.
func (d Document) Len() int { return len(d.Lines) }

// Format serializes d in canonical SRT form: index line, time range line,
// text lines, blank line after every block. Blank lines inside cue text are
// removed so the output always parses back to the same blocks.
func Format(d Document) []byte {
	var buf bytes.Buffer
	buf.Grow(len(d.Lines) * 64)
	for _, line := range d.Lines {
		buf.WriteString(strconv.Itoa(line.Index))
		buf.WriteByte('\n')
		buf.WriteString(FormatTimestamp(line.Start))
		buf.WriteString(" --> ")
		buf.WriteString(FormatTimestamp(line.End))
		buf.WriteByte('\n')
		buf.WriteString(normalizeText(line.Text))
		buf.WriteString("\n\n")
	}
	return buf.Bytes()
}

// FormatTimestamp renders d as HH:MM:SS,mmm, truncating to milliseconds.
// Negative durations render as zero.
func FormatTimestamp(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	ms := int64(d / time.Millisecond)
	hours := ms / 3_600_000
	ms -= hours * 3_600_000
	minutes := ms / 60_000
	ms -= minutes * 60_000
	seconds := ms / 1000
	ms -= seconds * 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", hours, minutes, seconds, ms)
}

// ParseTimestamp parses HH:MM:SS,mmm (a '.' millisecond separator is accepted).
func ParseTimestamp(value string) (time.Duration, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, fmt.Errorf("empty timestamp")
	}
	value = strings.Replace(value, ".", ",", 1)
	clock, fraction, ok := strings.Cut(value, ",")
	if !ok || len(fraction) == 0 || len(fraction) > 3 {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	hms := strings.Split(clock, ":")
	if len(hms) != 3 {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	hours, errH := strconv.Atoi(hms[0])
	minutes, errM := strconv.Atoi(hms[1])
	seconds, errS := strconv.Atoi(hms[2])
	millis, errMS := strconv.Atoi(fraction)
	if errH != nil || errM != nil || errS != nil || errMS != nil {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	if hours < 0 || minutes < 0 || minutes > 59 || seconds < 0 || seconds > 59 || millis < 0 {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	for i := len(fraction); i < 3; i++ {
		millis *= 10
	}
	return time.Duration(hours)*time.Hour +
		time.Duration(minutes)*time.Minute +
		time.Duration(seconds)*time.Second +
		time.Duration(millis)*time.Millisecond, nil
}

// Parse reads SRT content. Indices are kept as written; use Validate to
// check them. CRLF line endings and a UTF-8 BOM are tolerated.
func Parse(data []byte) (Document, error) {
	content := strings.TrimPrefix(string(data), "\ufeff")
	content = strings.ReplaceAll(content, "\r\n", "\n")

	var doc Document
	for n, block := range splitBlocks(content) {
		lines := strings.Split(block, "\n")
		if len(lines) < 3 {
			return Document{}, fmt.Errorf("block %d: expected index, timing and text lines", n+1)
		}
		index, err := strconv.Atoi(strings.TrimSpace(lines[0]))
		if err != nil {
			return Document{}, fmt.Errorf("block %d: invalid index %q", n+1, lines[0])
		}
		startText, endText, ok := strings.Cut(lines[1], "-->")
		if !ok {
			return Document{}, fmt.Errorf("block %d: invalid timing line %q", n+1, lines[1])
		}
		start, err := ParseTimestamp(startText)
		if err != nil {
			return Document{}, fmt.Errorf("block %d: %w", n+1, err)
		}
		// Position hints such as "X1:100" may follow the end timestamp.
		endFields := strings.Fields(endText)
		if len(endFields) == 0 {
			return Document{}, fmt.Errorf("block %d: missing end timestamp", n+1)
		}
		end, err := ParseTimestamp(endFields[0])
		if err != nil {
			return Document{}, fmt.Errorf("block %d: %w", n+1, err)
		}
		doc.Lines = append(doc.Lines, Line{
			Index: index,
			Start: start,
			End:   end,
			Text:  strings.Join(lines[2:], "\n"),
		})
	}
	return doc, nil
}

func splitBlocks(content string) []string {
	var (
		blocks  []string
		current []string
	)
	flush := func() {
		if len(current) > 0 {
			blocks = append(blocks, strings.Join(current, "\n"))
			current = current[:0]
		}
	}
	for _, line := range strings.Split(content, "\n") {
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		current = append(current, strings.TrimRight(line, " \t"))
	}
	flush()
	return blocks
}

func normalizeText(text string) string {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	kept := lines[:0]
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}
