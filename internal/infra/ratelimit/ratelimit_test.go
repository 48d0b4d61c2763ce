//go:build !integration

package ratelimit

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"google.golang.org/genai"

	"flashcard-generator/internal/domain"
)

func TestIsRateLimited(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"sentinel", fmt.Errorf("gemini: %w", domain.ErrRateLimited), true},
		{"http code", errors.New("Error 429, Message: quota exceeded"), true},
		{"grpc status", errors.New("RESOURCE_EXHAUSTED: try later"), true},
		{"prose", errors.New("Rate limit reached for requests"), true},
		{"other", errors.New("connection reset by peer"), false},
		{"server error", errors.New("Error 500, Message: internal"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsRateLimited(tc.err); got != tc.want {
				t.Errorf("IsRateLimited(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}

func TestParseRetryDelay(t *testing.T) {
	cases := []struct {
		name string
		text string
		want time.Duration
		ok   bool
	}{
		{"grpc text", "429 Resource has been exhausted [violations {} , links {}, retry_delay {\n  seconds: 15\n}]", 15 * time.Second, true},
		{"rest json", `Error 429, Details: [{"@type":"type.googleapis.com/google.rpc.RetryInfo","retryDelay":"42s"}]`, 42 * time.Second, true},
		{"rest json spaced", `"retryDelay": "7s"`, 7 * time.Second, true},
		{"fractional rounds up", "Please retry in 2.1s.", 3 * time.Second, true},
		{"retry after seconds", "rate limited, retry after 30 seconds", 30 * time.Second, true},
		{"sdk api error", genai.APIError{
			Code:    429,
			Message: "Resource has been exhausted",
			Status:  "RESOURCE_EXHAUSTED",
			Details: []map[string]any{
				{"@type": "type.googleapis.com/google.rpc.QuotaFailure"},
				{"@type": "type.googleapis.com/google.rpc.RetryInfo", "retryDelay": "15s"},
			},
		}.Error(), 15 * time.Second, true},
		{"no hint", "429 quota exceeded", 0, false},
		{"empty", "", 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ParseRetryDelay(tc.text)
			if ok != tc.ok || got != tc.want {
				t.Errorf("ParseRetryDelay(%q) = (%v, %v), want (%v, %v)", tc.text, got, ok, tc.want, tc.ok)
			}
		})
	}
}

func TestDelay(t *testing.T) {
	def := 10 * time.Second
	if got := Delay(errors.New("429 retry_delay { seconds: 15 }"), def); got != 15*time.Second {
		t.Errorf("expected embedded 15s, got %v", got)
	}
	if got := Delay(errors.New("429"), def); got != def {
		t.Errorf("expected default, got %v", got)
	}
	if got := Delay(nil, def); got != def {
		t.Errorf("expected default for nil, got %v", got)
	}
}
