package retry

import (
	"errors"
	"net"
	"net/http"
	"strings"
	"syscall"

	githubsdk "github.com/google/go-github/v68/github"
)

const (
	httpTooManyRequestsStatusConstant = http.StatusTooManyRequests
)

// transientOutputPatterns enumerates the subprocess stderr/stdout fragments
// treated as retryable. Kept in one place so new patterns have a single home.
var transientOutputPatterns = []string{
	"rate limit",
	"429",
	"connection refused",
	"connection reset",
	"timed out",
	"timeout",
	"could not resolve host",
	"temporary failure in name resolution",
}

// IsTransientError classifies a Go error value as retryable: rate limits,
// connection refusals, timeouts, and DNS resolution failures.
func IsTransientError(failure error) bool {
	if failure == nil {
		return false
	}

	var rateLimitError *githubsdk.RateLimitError
	if errors.As(failure, &rateLimitError) {
		return true
	}
	var abuseRateLimitError *githubsdk.AbuseRateLimitError
	if errors.As(failure, &abuseRateLimitError) {
		return true
	}
	var githubErrorResponse *githubsdk.ErrorResponse
	if errors.As(failure, &githubErrorResponse) {
		if githubErrorResponse.Response != nil && githubErrorResponse.Response.StatusCode == httpTooManyRequestsStatusConstant {
			return true
		}
	}

	var dnsError *net.DNSError
	if errors.As(failure, &dnsError) {
		return true
	}

	var netError net.Error
	if errors.As(failure, &netError) && netError.Timeout() {
		return true
	}

	if errors.Is(failure, syscall.ECONNREFUSED) || errors.Is(failure, syscall.ECONNRESET) {
		return true
	}

	return IsTransientOutput(failure.Error())
}

// IsTransientOutput reports whether captured command output matches one of the
// enumerated transient patterns.
func IsTransientOutput(commandOutput string) bool {
	loweredOutput := strings.ToLower(commandOutput)
	for _, transientPattern := range transientOutputPatterns {
		if strings.Contains(loweredOutput, transientPattern) {
			return true
		}
	}
	return false
}
