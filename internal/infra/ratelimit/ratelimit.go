// Package ratelimit recognises rate-limit signals from the document service
// and extracts the suggested wait from their free-text messages.
package ratelimit

import (
	"errors"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"flashcard-generator/internal/domain"
)

var markers = []string{"429", "resource_exhausted", "rate limit", "ratelimit", "too many requests", "quota"}

// IsRateLimited reports whether err is a rate-limit signal.
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, domain.ErrRateLimited) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, m := range markers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}

var delayPatterns = []*regexp.Regexp{
	// gRPC text form: retry_delay { seconds: 15 }
	regexp.MustCompile(`retry_delay\s*\{\s*seconds:\s*(\d+)`),
	// REST JSON form "retryDelay": "15s", or the SDK's printed details retryDelay:15s
	regexp.MustCompile(`"?retryDelay"?\s*:\s*"?(\d+(?:\.\d+)?)s`),
	// prose: "Please retry in 15.123s", "retry after 15 seconds"
	regexp.MustCompile(`(?i)retry (?:in|after) (\d+(?:\.\d+)?)\s*(?:s\b|sec|second)`),
}

// ParseRetryDelay extracts the suggested retry delay from an error text.
// Fractional seconds round up so the caller never retries early.
func ParseRetryDelay(text string) (time.Duration, bool) {
	for _, re := range delayPatterns {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		secs, err := strconv.ParseFloat(m[1], 64)
		if err != nil || secs < 0 {
			continue
		}
		return time.Duration(math.Ceil(secs)) * time.Second, true
	}
	return 0, false
}

// Delay returns the delay suggested by err, or def when none is embedded.
func Delay(err error, def time.Duration) time.Duration {
	if err == nil {
		return def
	}
	if d, ok := ParseRetryDelay(err.Error()); ok {
		return d
	}
	return def
}
