package stt

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"scribe/internal/services"
)

// CallError describes a failed service call.
type CallError struct {
	StatusCode int
	Code       string
	Message    string
	Transient  bool
	TimedOut   bool
	RetryAfter time.Duration
	Err        error
}

func (e *CallError) Error() string {
	var b strings.Builder
	b.WriteString("stt request")
	if e.StatusCode > 0 {
		fmt.Fprintf(&b, ": http %d", e.StatusCode)
	}
	if e.Code != "" {
		fmt.Fprintf(&b, " (%s)", e.Code)
	}
	if e.TimedOut {
		b.WriteString(": timed out")
	}
	if msg := strings.TrimSpace(e.Message); msg != "" {
		b.WriteString(": ")
		b.WriteString(msg)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *CallError) Unwrap() error { return e.Err }

// Is matches the transient or permanent marker, and services.ErrTimeout for
// timed-out calls.
func (e *CallError) Is(target error) bool {
	switch target {
	case services.ErrSTTTransient:
		return e.Transient
	case services.ErrSTTPermanent:
		return !e.Transient
	case services.ErrTimeout:
		return e.TimedOut
	}
	return false
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	return errors.Is(err, services.ErrSTTTransient)
}

// RetryAfter returns the server-requested delay carried by err, if any.
func RetryAfter(err error) time.Duration {
	var callErr *CallError
	if errors.As(err, &callErr) {
		return callErr.RetryAfter
	}
	return 0
}

// classifyStatus reports whether an HTTP failure is transient. Quota
// exhaustion arrives as 429 but will not clear by retrying.
func classifyStatus(status int, code string) bool {
	switch {
	case status == http.StatusTooManyRequests:
		return !isQuotaCode(code)
	case status == http.StatusRequestTimeout,
		status >= http.StatusInternalServerError:
		return true
	default:
		return false
	}
}

func isQuotaCode(code string) bool {
	code = strings.ToLower(strings.TrimSpace(code))
	return code == "insufficient_quota" || code == "quota_exceeded"
}

func parseRetryAfter(value string) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return 0, false
		}
		return time.Duration(seconds) * time.Second, true
	}
	if when, err := http.ParseTime(value); err == nil {
		delay := time.Until(when)
		if delay < 0 {
			return 0, false
		}
		return delay, true
	}
	return 0, false
}
