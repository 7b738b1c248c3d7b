package mapper

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// RetryConfig defines backoff behavior for provider rate-limit handling.
// Defaults are tuned for per-minute token quota windows.
type RetryConfig struct {
	MaxRetries        int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
}

// NewDefaultRetryConfig returns backoff settings that ride out a quota
// window without hammering the API.
func NewDefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries:        3,
		InitialBackoff:    30 * time.Second,
		MaxBackoff:        90 * time.Second,
		BackoffMultiplier: 1.5,
	}
}

// IsRateLimitError checks whether an error is a provider rate-limit error.
// Matches 429 status codes and RESOURCE_EXHAUSTED errors.
func IsRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "RESOURCE_EXHAUSTED") ||
		strings.Contains(errStr, "rate_limit") ||
		strings.Contains(errStr, "quota")
}

// IsTransientError widens the rate-limit check to overload and gateway
// failures that are worth retrying.
func IsTransientError(err error) bool {
	if err == nil {
		return false
	}
	if IsRateLimitError(err) {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "500") ||
		strings.Contains(errStr, "502") ||
		strings.Contains(errStr, "503") ||
		strings.Contains(errStr, "529") ||
		strings.Contains(errStr, "overloaded") ||
		strings.Contains(errStr, "UNAVAILABLE") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "timeout awaiting response")
}

// retryDelayRegex matches "Please retry in Xs" or "retryDelay:Xs" patterns
var retryDelayRegex = regexp.MustCompile(`(?i)(?:Please retry in |retryDelay[:\s]+)(\d+(?:\.\d+)?)\s*s`)

// ExtractRetryDelay parses the API-suggested retry delay from a rate-limit
// error. Returns 0 if no delay is present in the message.
func ExtractRetryDelay(err error) time.Duration {
	if err == nil {
		return 0
	}
	matches := retryDelayRegex.FindStringSubmatch(err.Error())
	if len(matches) < 2 {
		return 0
	}
	seconds, parseErr := strconv.ParseFloat(matches[1], 64)
	if parseErr != nil {
		return 0
	}
	return time.Duration(seconds * float64(time.Second))
}

// NextBackoff computes the wait before retry attempt n (0-based), preferring
// the API-suggested delay when one is present.
func (c *RetryConfig) NextBackoff(attempt int, err error) time.Duration {
	if suggested := ExtractRetryDelay(err); suggested > 0 {
		if suggested > c.MaxBackoff {
			return c.MaxBackoff
		}
		return suggested
	}

	backoff := c.InitialBackoff
	for i := 0; i < attempt; i++ {
		backoff = time.Duration(float64(backoff) * c.BackoffMultiplier)
	}
	if backoff > c.MaxBackoff {
		backoff = c.MaxBackoff
	}
	return backoff
}
