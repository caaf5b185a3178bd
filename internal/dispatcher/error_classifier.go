package dispatcher

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/local/margincheck/internal/analysis"
)

// isTransientError checks if a failed job is worth another attempt.
// Analysis errors are always final: the same bytes and settings fail the
// same way.
func isTransientError(err error) bool {
	if err == nil {
		return false
	}
	if isFatalError(err) {
		return false
	}

	// Timeout errors
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	// Network errors (connection issues, timeouts) while fetching the source
	errStr := strings.ToLower(err.Error())
	if strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "network") ||
		strings.Contains(errStr, "eof") ||
		strings.Contains(errStr, "http 5") ||
		strings.Contains(errStr, "http 429") {
		return true
	}

	return false
}

// isFatalError checks if error is fatal and should not be retried
func isFatalError(err error) bool {
	if err == nil {
		return false
	}
	if analysis.KindOf(err) != "" {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return true
	}

	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "no such file") ||
		(strings.Contains(errStr, "http 4") && !strings.Contains(errStr, "http 429")) ||
		strings.Contains(errStr, "exceeds")
}

// retryDelay doubles base for every earlier attempt, capped at max.
func retryDelay(base, max time.Duration, attempt int) time.Duration {
	d := base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d > max {
			return max
		}
	}
	return d
}

// errorKind labels an error for status and metrics.
func errorKind(err error) string {
	if k := analysis.KindOf(err); k != "" {
		return string(k)
	}
	if isTransientError(err) {
		return "transient"
	}
	return "fetch_failed"
}
