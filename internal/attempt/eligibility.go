// Package attempt gates, shuffles, scores and records quiz attempts.
package attempt

import (
	"fmt"
	"time"
)

const (
	MaxAttempts = 3
	Cooldown    = 300 * time.Second
)

// Policy bounds how often a learner may attempt one quiz.
type Policy struct {
	MaxAttempts int
	Cooldown    time.Duration
	// FailClosed blocks attempts when the history cannot be read. The
	// default lets the learner through with a degraded eligibility.
	FailClosed bool
}

func DefaultPolicy() Policy {
	return Policy{MaxAttempts: MaxAttempts, Cooldown: Cooldown}
}

type State string

const (
	StateEligible State = "eligible"
	StateLocked   State = "locked"
)

// Eligibility is derived from the attempt history and the current time.
// It is never stored.
type Eligibility struct {
	AttemptCount      int   `json:"attempt_count"`
	MaxAttempts       int   `json:"max_attempts"`
	AttemptsLeft      int   `json:"attempts_left"`
	CooldownRemaining int   `json:"cooldown_remaining"` // seconds
	Eligible          bool  `json:"eligible"`
	State             State `json:"state"`
	Degraded          bool  `json:"degraded,omitempty"`
}

// CooldownLabel formats the remaining cooldown as m:ss.
func (e Eligibility) CooldownLabel() string {
	return formatCooldown(e.CooldownRemaining)
}

func formatCooldown(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}

// ComputeEligibility evaluates policy against the submission times of a
// learner's attempts on one quiz. Elapsed time is counted in whole seconds,
// and a last submission in the future counts as just now.
func ComputeEligibility(submitted []time.Time, now time.Time, policy Policy) Eligibility {
	e := Eligibility{
		AttemptCount: len(submitted),
		MaxAttempts:  policy.MaxAttempts,
	}
	if left := policy.MaxAttempts - len(submitted); left > 0 {
		e.AttemptsLeft = left
	}

	if len(submitted) > 0 && len(submitted) >= policy.MaxAttempts {
		last := submitted[0]
		for _, at := range submitted[1:] {
			if at.After(last) {
				last = at
			}
		}

		elapsed := now.Sub(last)
		if elapsed < 0 {
			elapsed = 0
		}
		remaining := int(policy.Cooldown/time.Second) - int(elapsed/time.Second)
		if remaining > 0 {
			e.CooldownRemaining = remaining
		}
	}

	e.Eligible = e.AttemptCount < policy.MaxAttempts || e.CooldownRemaining == 0
	e.State = StateEligible
	if !e.Eligible {
		e.State = StateLocked
	}
	return e
}
