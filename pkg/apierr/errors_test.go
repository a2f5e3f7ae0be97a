package apierr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"
)

func TestError_Is(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		sentinel error
		want     bool
	}{
		{"rate limit", RateLimited(time.Second, ""), ErrRateLimited, true},
		{"rate limit is not timeout", RateLimited(time.Second, ""), ErrTimeout, false},
		{"timeout", Timeout(time.Second, nil), ErrTimeout, true},
		{"network", Network(errors.New("reset")), ErrNetwork, true},
		{"server counts as network", &Error{Class: ClassServer}, ErrNetwork, true},
		{"not found", &Error{Class: ClassNotFound}, ErrNotFound, true},
		{"configuration", NotConfigured("bible", "API key"), ErrNotConfigured, true},
		{"wrapped", fmt.Errorf("get passage: %w", RateLimited(0, "")), ErrRateLimited, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errors.Is(tt.err, tt.sentinel); got != tt.want {
				t.Errorf("errors.Is() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestError_Message(t *testing.T) {
	err := &Error{
		Class:      ClassRateLimit,
		StatusCode: 429,
		Message:    "Too Many Requests",
		Wait:       1500 * time.Millisecond,
	}

	msg := err.Error()
	for _, want := range []string{"rate_limit", "429", "Too Many Requests", "1.5s"} {
		if !strings.Contains(msg, want) {
			t.Errorf("Error() = %q, missing %q", msg, want)
		}
	}

	cfgErr := NotConfigured("bible api", "API key", "base URL")
	if !strings.Contains(cfgErr.Error(), "missing API key, base URL") {
		t.Errorf("Error() = %q, want missing list", cfgErr.Error())
	}
}

func TestFromStatus(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		header    http.Header
		body      string
		wantNil   bool
		wantClass Class
		wantWait  time.Duration
	}{
		{name: "ok", status: 200, wantNil: true},
		{name: "not modified", status: 304, wantNil: true},
		{name: "not found", status: 404, wantClass: ClassNotFound},
		{name: "bad request", status: 400, wantClass: ClassClient},
		{name: "unauthorized", status: 401, wantClass: ClassClient},
		{name: "server", status: 503, wantClass: ClassServer},
		{
			name:      "rate limit with retry-after",
			status:    429,
			header:    http.Header{"Retry-After": []string{"30"}},
			wantClass: ClassRateLimit,
			wantWait:  30 * time.Second,
		},
		{
			name:      "rate limit with body hint",
			status:    429,
			body:      `{"message":"Rate limit exceeded. Wait 1500ms before making more requests."}`,
			wantClass: ClassRateLimit,
			wantWait:  1500 * time.Millisecond,
		},
		{
			name:      "rate limit without hint",
			status:    429,
			wantClass: ClassRateLimit,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			header := tt.header
			if header == nil {
				header = http.Header{}
			}
			err := FromStatus(tt.status, header, []byte(tt.body))
			if tt.wantNil {
				if err != nil {
					t.Fatalf("FromStatus() = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatal("FromStatus() = nil, want error")
			}
			if err.Class != tt.wantClass {
				t.Errorf("Class = %s, want %s", err.Class, tt.wantClass)
			}
			if err.StatusCode != tt.status {
				t.Errorf("StatusCode = %d, want %d", err.StatusCode, tt.status)
			}
			if err.Wait != tt.wantWait {
				t.Errorf("Wait = %v, want %v", err.Wait, tt.wantWait)
			}
		})
	}
}

func TestParseWaitHint(t *testing.T) {
	tests := []struct {
		text   string
		want   time.Duration
		wantOK bool
	}{
		{"Wait 1500ms before making more requests", 1500 * time.Millisecond, true},
		{"try again in 30 seconds", 30 * time.Second, true},
		{"retry after 2s", 2 * time.Second, true},
		{"cool down 1.5 sec", 1500 * time.Millisecond, true},
		{"slow down", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		got, ok := ParseWaitHint(tt.text)
		if ok != tt.wantOK || got != tt.want {
			t.Errorf("ParseWaitHint(%q) = %v, %v; want %v, %v", tt.text, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestRetryable(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{Timeout(time.Second, nil), true},
		{Network(errors.New("eof")), true},
		{&Error{Class: ClassServer}, true},
		{RateLimited(time.Second, ""), false},
		{&Error{Class: ClassNotFound}, false},
		{&Error{Class: ClassClient}, false},
		{NotConfigured("chat"), false},
		{errors.New("unclassified"), false},
	}

	for _, tt := range tests {
		if got := Retryable(tt.err); got != tt.want {
			t.Errorf("Retryable(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestRateLimitWait(t *testing.T) {
	wait, ok := RateLimitWait(fmt.Errorf("wrapped: %w", RateLimited(5*time.Second, "")))
	if !ok || wait != 5*time.Second {
		t.Errorf("RateLimitWait() = %v, %v; want 5s, true", wait, ok)
	}

	if _, ok := RateLimitWait(Timeout(time.Second, nil)); ok {
		t.Error("RateLimitWait() reported ok for timeout error")
	}
}
