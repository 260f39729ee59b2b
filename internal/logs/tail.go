package logs

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// TailOptions controls a Tail call.
type TailOptions struct {
	// Offset is the byte position to resume from; negative means "the last
	// Limit lines".
	Offset int64
	Limit  int
	// Follow waits up to Wait for new lines when none are available.
	Follow bool
	Wait   time.Duration
	// Match keeps only lines it accepts; nil keeps every line.
	Match func(line string) bool
}

// TailResult holds the lines read and the offset to resume from.
type TailResult struct {
	Lines  []string
	Offset int64
}

const pollInterval = 250 * time.Millisecond

// Tail reads lines from the log file at path. A missing file yields no lines.
func Tail(ctx context.Context, path string, opts TailOptions) (TailResult, error) {
	result := TailResult{Offset: opts.Offset}

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			result.Offset = 0
			return result, nil
		}
		return result, fmt.Errorf("stat log file: %w", err)
	}
	if info.IsDir() {
		return result, fmt.Errorf("log path %q is a directory", path)
	}
	opts.Wait = max(opts.Wait, 0)

	offset := opts.Offset
	if offset < 0 {
		lines, end, err := readLastLines(path, opts.Limit, opts.Match)
		if err != nil {
			return result, err
		}
		if len(lines) > 0 || !opts.Follow {
			return TailResult{Lines: lines, Offset: end}, nil
		}
		offset = end
	} else if offset > info.Size() {
		// Truncated or rotated; start over at the end.
		offset = info.Size()
	}

	deadline := time.Now().Add(opts.Wait)
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		lines, next, err := readForward(path, offset, opts.Match)
		if err != nil {
			return TailResult{Offset: offset}, err
		}
		offset = next
		if len(lines) > 0 || !opts.Follow || !time.Now().Before(deadline) {
			return TailResult{Lines: lines, Offset: offset}, nil
		}
		select {
		case <-ctx.Done():
			return TailResult{Offset: offset}, ctx.Err()
		case <-ticker.C:
		}
	}
}

// MatchFields returns a filter keeping lines tagged with runID and job (empty
// values match anything). Both the console (key=value) and JSON encodings
// are recognized.
func MatchFields(runID, job string) func(string) bool {
	runID = strings.TrimSpace(runID)
	job = strings.TrimSpace(job)
	if runID == "" && job == "" {
		return nil
	}
	return func(line string) bool {
		return hasField(line, "run_id", runID) && hasField(line, "job", job)
	}
}

// hasField reports whether line carries key with value. run_id matches by
// prefix so the short ids printed by `scribe history` work.
func hasField(line, key, value string) bool {
	if value == "" {
		return true
	}
	prefix := key == "run_id"
	jsonKey := `"` + key + `":"`
	if i := strings.Index(line, jsonKey); i >= 0 {
		rest := line[i+len(jsonKey):]
		if end := strings.IndexByte(rest, '"'); end >= 0 {
			return matchValue(rest[:end], value, prefix)
		}
	}
	for _, field := range strings.Fields(line) {
		if v, ok := strings.CutPrefix(field, key+"="); ok {
			return matchValue(strings.Trim(v, `"`), value, prefix)
		}
	}
	return false
}

func matchValue(got, want string, prefix bool) bool {
	if prefix {
		return strings.HasPrefix(got, want)
	}
	return got == want
}

func readLastLines(path string, limit int, match func(string) bool) ([]string, int64, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	if limit <= 0 {
		end, err := file.Seek(0, io.SeekEnd)
		if err != nil {
			return nil, 0, fmt.Errorf("seek log file: %w", err)
		}
		return nil, end, nil
	}

	ring := make([]string, limit)
	count, idx := 0, 0
	end, err := scanLines(file, func(line string) {
		if match != nil && !match(line) {
			return
		}
		ring[idx] = line
		idx = (idx + 1) % limit
		count = min(count+1, limit)
	})
	if err != nil {
		return nil, 0, err
	}

	lines := make([]string, count)
	if count == limit {
		for i := range count {
			lines[i] = ring[(idx+i)%limit]
		}
	} else {
		copy(lines, ring[:count])
	}
	return lines, end, nil
}

func readForward(path string, offset int64, match func(string) bool) ([]string, int64, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return nil, 0, fmt.Errorf("seek log file: %w", err)
	}
	var lines []string
	consumed, err := scanLines(file, func(line string) {
		if match == nil || match(line) {
			lines = append(lines, line)
		}
	})
	if err != nil {
		return nil, 0, err
	}
	return lines, offset + consumed, nil
}

// scanLines feeds every complete line to fn and returns the bytes consumed.
// A trailing line without newline is left for the next read.
func scanLines(r io.Reader, fn func(string)) (int64, error) {
	reader := bufio.NewReaderSize(r, 64*1024)
	var consumed int64
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				return consumed, nil
			}
			return consumed, fmt.Errorf("read log file: %w", err)
		}
		consumed += int64(len(line))
		fn(strings.TrimRight(line, "\r\n"))
	}
}
