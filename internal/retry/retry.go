// Package retry provides the shared retry policy for network-calling
// components. Backoff is linear with a small fixed attempt cap; retries are
// scoped to a single call, never to an encompassing cycle.
package retry

import "time"

// Policy describes how a failing call is retried.
type Policy struct {
	MaxAttempts int
	Delay       time.Duration     // attempt n waits n*Delay before retrying
	Retryable   func(error) bool  // nil means every error is retryable
	sleep       func(time.Duration)
}

// DefaultPolicy matches the fixed three-attempt convention used for
// transient network errors.
func DefaultPolicy() Policy {
	return Policy{MaxAttempts: 3, Delay: 2 * time.Second}
}

// Do runs op until it succeeds, exhausts the attempt budget, or fails with
// a non-retryable error. The last error is returned.
func (p Policy) Do(op func() error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	wait := p.sleep
	if wait == nil {
		wait = time.Sleep
	}

	var err error
	for i := 1; i <= attempts; i++ {
		if err = op(); err == nil {
			return nil
		}
		if p.Retryable != nil && !p.Retryable(err) {
			return err
		}
		if i < attempts {
			wait(time.Duration(i) * p.Delay)
		}
	}
	return err
}
