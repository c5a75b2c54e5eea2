package retry

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const (
	defaultMaximumAttemptsConstant = 3
	defaultBaseDelayConstant       = 1000 * time.Millisecond
	defaultMaximumDelayConstant    = 30000 * time.Millisecond
	retryingMessageConstant        = "Retrying after transient failure"
	attemptFieldNameConstant       = "attempt"
	delayFieldNameConstant         = "delay"
)

// Classifier reports whether a failure is transient and worth retrying.
type Classifier func(failure error) bool

// Operation performs one attempt of a retryable unit of work.
type Operation func(executionContext context.Context) error

// Policy describes a bounded retry budget with exponential backoff.
type Policy struct {
	MaximumAttempts int
	BaseDelay       time.Duration
	MaximumDelay    time.Duration
	Logger          *zap.Logger
}

// DefaultPolicy returns the policy every collaborator shares: three attempts,
// one second base delay, thirty second cap.
func DefaultPolicy(logger *zap.Logger) Policy {
	return Policy{
		MaximumAttempts: defaultMaximumAttemptsConstant,
		BaseDelay:       defaultBaseDelayConstant,
		MaximumDelay:    defaultMaximumDelayConstant,
		Logger:          logger,
	}
}

// Delay computes the backoff before the zero-indexed attempt:
// min(BaseDelay * 2^attemptIndex, MaximumDelay).
func (policy Policy) Delay(attemptIndex int) time.Duration {
	if attemptIndex < 0 {
		attemptIndex = 0
	}

	computedDelay := policy.BaseDelay
	for doublingStep := 0; doublingStep < attemptIndex; doublingStep++ {
		computedDelay *= 2
		if computedDelay >= policy.MaximumDelay {
			return policy.MaximumDelay
		}
	}

	if computedDelay > policy.MaximumDelay {
		return policy.MaximumDelay
	}
	return computedDelay
}

// Execute runs the operation until it succeeds, fails with a non-transient
// error, or exhausts the attempt budget. The last error is surfaced to the
// caller as an ordinary failure.
func (policy Policy) Execute(executionContext context.Context, classifier Classifier, operation Operation) error {
	attemptBudget := policy.MaximumAttempts
	if attemptBudget <= 0 {
		attemptBudget = defaultMaximumAttemptsConstant
	}

	var lastFailure error
	for attemptIndex := 0; attemptIndex < attemptBudget; attemptIndex++ {
		if attemptIndex > 0 {
			backoffDelay := policy.Delay(attemptIndex - 1)
			if policy.Logger != nil {
				policy.Logger.Warn(
					retryingMessageConstant,
					zap.Int(attemptFieldNameConstant, attemptIndex),
					zap.Duration(delayFieldNameConstant, backoffDelay),
					zap.Error(lastFailure),
				)
			}
			sleepTimer := time.NewTimer(backoffDelay)
			select {
			case <-executionContext.Done():
				sleepTimer.Stop()
				return executionContext.Err()
			case <-sleepTimer.C:
			}
		}

		lastFailure = operation(executionContext)
		if lastFailure == nil {
			return nil
		}
		if classifier == nil || !classifier(lastFailure) {
			return lastFailure
		}
	}

	return lastFailure
}
