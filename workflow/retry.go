package workflow

import (
	"math"
	"math/rand"
	"time"
)

// RetryPolicy controls how the executor re-attempts a failed stage.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int `yaml:"max_attempts" json:"max_attempts"`
	// InitialDelay is the backoff before the second attempt.
	InitialDelay time.Duration `yaml:"initial_delay" json:"initial_delay"`
	// MaxDelay caps the backoff between attempts.
	MaxDelay time.Duration `yaml:"max_delay" json:"max_delay"`
	// Multiplier grows the delay exponentially per attempt.
	Multiplier float64 `yaml:"multiplier" json:"multiplier"`
	// Jitter randomizes each delay by ±25% to avoid retry stampedes.
	Jitter bool `yaml:"jitter" json:"jitter"`
	// Timeout bounds a single attempt. Zero means no per-attempt deadline.
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
	// RetryMalformed opts malformed-output failures into the retry loop.
	// Off by default: retrying a deterministic parse failure with identical
	// input is unlikely to help.
	RetryMalformed bool `yaml:"retry_malformed" json:"retry_malformed"`
}

// DefaultRetryPolicy returns the policy applied to stages without an
// override.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:  3,
		InitialDelay: time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		Jitter:       true,
	}
}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	if p.InitialDelay <= 0 {
		p.InitialDelay = time.Second
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = 30 * time.Second
	}
	if p.Multiplier < 1.0 {
		p.Multiplier = 2.0
	}
	return p
}

// delay computes the backoff before the given attempt (2-based: the first
// retry is attempt 2).
func (p RetryPolicy) delay(attempt int) time.Duration {
	d := float64(p.InitialDelay) * math.Pow(p.Multiplier, float64(attempt-2))
	if d > float64(p.MaxDelay) {
		d = float64(p.MaxDelay)
	}
	if p.Jitter {
		// ±25% jitter
		d = d * (0.75 + rand.Float64()*0.5)
	}
	return time.Duration(d)
}

// retryable reports whether the policy allows another attempt after err.
func (p RetryPolicy) retryable(err *StageError) bool {
	if err.Kind == ErrCancelled {
		return false
	}
	if err.Kind == ErrMalformedOutput {
		return p.RetryMalformed
	}
	return err.Retryable()
}
