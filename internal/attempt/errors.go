package attempt

import (
	"errors"
	"fmt"
)

var ErrSubmissionInFlight = errors.New("a submission for this quiz is already in progress")

// AttemptsExhaustedError is returned while the learner is locked out.
type AttemptsExhaustedError struct {
	Eligibility Eligibility
}

func (e *AttemptsExhaustedError) Error() string {
	return fmt.Sprintf("used %d of %d attempts, retry in %s",
		e.Eligibility.AttemptCount, e.Eligibility.MaxAttempts, e.Eligibility.CooldownLabel())
}

// CooldownRemaining is the lockout left, in seconds.
func (e *AttemptsExhaustedError) CooldownRemaining() int {
	return e.Eligibility.CooldownRemaining
}

// PersistenceError wraps a failed read or write of attempt data.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
