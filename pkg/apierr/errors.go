// Package apierr defines the error taxonomy shared by the Scripture and chat
// clients, the request queue and the retry executor.
package apierr

import (
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Class represents a classification of upstream and local errors.
// The values double as Prometheus label values.
type Class string

const (
	// ClassConfiguration represents missing credentials or endpoints.
	ClassConfiguration Class = "configuration"

	// ClassNotFound represents upstream 404 responses.
	ClassNotFound Class = "not_found"

	// ClassRateLimit represents upstream 429 responses and local limiter rejections.
	ClassRateLimit Class = "rate_limit"

	// ClassTimeout represents an attempt that exceeded its deadline.
	ClassTimeout Class = "timeout"

	// ClassNetwork represents transport failures (DNS, connection reset, ...).
	ClassNetwork Class = "network"

	// ClassServer represents 5xx responses.
	ClassServer Class = "server"

	// ClassClient represents 4xx responses other than 404 and 429.
	ClassClient Class = "client"
)

// Sentinels matched by errors.Is against any *Error of the corresponding class.
var (
	ErrNotConfigured = errors.New("service not configured")
	ErrNotFound      = errors.New("not found")
	ErrRateLimited   = errors.New("rate limited")
	ErrTimeout       = errors.New("request timeout")
	ErrNetwork       = errors.New("network error")
)

// Error is a classified error with upstream context.
type Error struct {
	Class      Class
	StatusCode int
	Message    string

	// Wait is the backoff hint for rate limit errors. Zero means no hint was given.
	Wait time.Duration

	// Missing lists the absent settings for configuration errors.
	Missing []string

	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Class))
	b.WriteString(" error")
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (status %d)", e.StatusCode)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if len(e.Missing) > 0 {
		b.WriteString(": missing ")
		b.WriteString(strings.Join(e.Missing, ", "))
	}
	if e.Wait > 0 {
		fmt.Fprintf(&b, " (retry in %s)", e.Wait.Round(time.Millisecond))
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is maps the error class onto the package sentinels.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrNotConfigured:
		return e.Class == ClassConfiguration
	case ErrNotFound:
		return e.Class == ClassNotFound
	case ErrRateLimited:
		return e.Class == ClassRateLimit
	case ErrTimeout:
		return e.Class == ClassTimeout
	case ErrNetwork:
		return e.Class == ClassNetwork || e.Class == ClassServer
	}
	return false
}

// NotConfigured builds a configuration error for a service.
func NotConfigured(service string, missing ...string) *Error {
	return &Error{
		Class:   ClassConfiguration,
		Message: service + " not configured",
		Missing: missing,
	}
}

// RateLimited builds a rate limit error with a wait hint.
func RateLimited(wait time.Duration, message string) *Error {
	return &Error{Class: ClassRateLimit, Message: message, Wait: wait}
}

// Timeout builds a timeout error for an attempt bounded by d.
func Timeout(d time.Duration, err error) *Error {
	return &Error{Class: ClassTimeout, Message: fmt.Sprintf("attempt exceeded %s", d), Err: err}
}

// Network wraps a transport failure.
func Network(err error) *Error {
	return &Error{Class: ClassNetwork, Message: "transport failure", Err: err}
}

// FromStatus classifies a non-2xx upstream response.
// Returns nil for 2xx and 3xx statuses.
func FromStatus(status int, header http.Header, body []byte) *Error {
	if status < 400 {
		return nil
	}

	msg := http.StatusText(status)
	if text := strings.TrimSpace(string(body)); text != "" {
		if len(text) > 256 {
			text = text[:256]
		}
		msg = text
	}

	switch {
	case status == http.StatusTooManyRequests:
		wait, _ := parseRetryAfter(header.Get("Retry-After"))
		if wait == 0 {
			wait, _ = ParseWaitHint(string(body))
		}
		return &Error{Class: ClassRateLimit, StatusCode: status, Message: msg, Wait: wait}
	case status == http.StatusNotFound:
		return &Error{Class: ClassNotFound, StatusCode: status, Message: msg}
	case status >= 500:
		return &Error{Class: ClassServer, StatusCode: status, Message: msg}
	default:
		return &Error{Class: ClassClient, StatusCode: status, Message: msg}
	}
}

// ClassOf returns the class of err, or "" when err is not classified.
func ClassOf(err error) Class {
	var e *Error
	if errors.As(err, &e) {
		return e.Class
	}
	return ""
}

// RateLimitWait reports whether err is a rate limit error and its wait hint.
// A zero duration with ok == true means the upstream gave no hint.
func RateLimitWait(err error) (time.Duration, bool) {
	var e *Error
	if errors.As(err, &e) && e.Class == ClassRateLimit {
		return e.Wait, true
	}
	return 0, false
}

// Retryable determines if an error should be retried based on its classification.
func Retryable(err error) bool {
	switch ClassOf(err) {
	case ClassTimeout, ClassNetwork, ClassServer:
		return true
	default:
		// Rate limits propagate so callers can surface backoff; 4xx and
		// configuration errors will not change on retry.
		return false
	}
}

var waitHintPattern = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(ms|milliseconds?|s|secs?|seconds?)\b`)

// ParseWaitHint extracts a wait duration from free-form text such as
// "Rate limit exceeded. Wait 1500ms before making more requests." or
// "try again in 30 seconds".
func ParseWaitHint(text string) (time.Duration, bool) {
	m := waitHintPattern.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	n, err := strconv.ParseFloat(m[1], 64)
	if err != nil || n <= 0 {
		return 0, false
	}
	unit := strings.ToLower(m[2])
	if strings.HasPrefix(unit, "ms") || strings.HasPrefix(unit, "milli") {
		return time.Duration(n * float64(time.Millisecond)), true
	}
	return time.Duration(n * float64(time.Second)), true
}

// parseRetryAfter parses a Retry-After header (delta seconds or HTTP date).
func parseRetryAfter(v string) (time.Duration, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs <= 0 {
			return 0, false
		}
		return time.Duration(secs) * time.Second, true
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := time.Until(at); d > 0 {
			return d, true
		}
	}
	return 0, false
}
