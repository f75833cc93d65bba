package registry

import "github.com/V4T54L/classroll/internal/domain"

// RetryDecision is the outcome of DecideRetry.
type RetryDecision int

const (
	Fail RetryDecision = iota
	Retry
)

func (d RetryDecision) String() string {
	if d == Retry {
		return "retry"
	}
	return "fail"
}

// MaxReauthRetries is the fixed ceiling of retries after a forced re-authentication.
const MaxReauthRetries = 1

// DecideRetry decides whether a failed attempt (1-based) is retried. Only an
// authorization failure is retried, and only MaxReauthRetries times.
func DecideRetry(attempt int, kind domain.ErrorKind) RetryDecision {
	if kind == domain.KindAuth && attempt <= MaxReauthRetries {
		return Retry
	}
	return Fail
}
