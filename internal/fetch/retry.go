package fetch

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
)

// Default retry configuration values.
const (
	DefaultMaxAttempts       = 3
	DefaultBaseDelay         = 1 * time.Second
	DefaultMaxDelay          = 30 * time.Second
	DefaultJitterMin         = 100 * time.Millisecond
	DefaultJitterMax         = 1 * time.Second
	DefaultRetryAfter        = 5 * time.Second
	DefaultBackoffMultiplier = 2.0
)

// RetryPolicy is the single retry/backoff policy used by every outbound call.
//
// Rate-limited attempts wait the advertised Retry-After (or DefaultRetryAfter)
// plus jitter. Other transient failures wait BaseDelay*2^n plus jitter.
// Errors wrapped with backoff.Permanent are returned immediately.
type RetryPolicy struct {
	MaxAttempts       int
	BaseDelay         time.Duration
	MaxDelay          time.Duration
	JitterMin         time.Duration
	JitterMax         time.Duration
	RespectRetryAfter bool
	DefaultRetryAfter time.Duration
}

// DefaultRetryPolicy returns the policy used for volatile pool queries.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:       DefaultMaxAttempts,
		BaseDelay:         DefaultBaseDelay,
		MaxDelay:          DefaultMaxDelay,
		JitterMin:         DefaultJitterMin,
		JitterMax:         DefaultJitterMax,
		RespectRetryAfter: true,
		DefaultRetryAfter: DefaultRetryAfter,
	}
}

// WithMaxAttempts returns a copy of the policy with a different attempt bound.
func (p RetryPolicy) WithMaxAttempts(n int) RetryPolicy {
	p.MaxAttempts = n
	return p
}

// Do runs op until it succeeds, returns a permanent error, or the attempt bound is hit.
func (p RetryPolicy) Do(ctx context.Context, logger *zap.Logger, op func() error) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	b := &policyBackOff{policy: p}
	notify := func(err error, wait time.Duration) {
		logger.Debug("retrying upstream call", zap.Error(err), zap.Duration("backoff", wait))
	}

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := op()
		b.last = err
		return struct{}{}, err
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(attempts)),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(notify),
	)

	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		return perm.Unwrap()
	}
	return err
}

// policyBackOff adapts RetryPolicy to backoff.BackOff.
// It inspects the last operation error to honour Retry-After.
type policyBackOff struct {
	policy RetryPolicy
	n      int
	last   error
}

func (b *policyBackOff) NextBackOff() time.Duration {
	p := b.policy
	jitter := jitterBetween(p.JitterMin, p.JitterMax)

	var rl *RateLimitError
	if p.RespectRetryAfter && errors.As(b.last, &rl) {
		wait := rl.RetryAfter
		if wait <= 0 {
			wait = p.DefaultRetryAfter
		}
		return wait + jitter
	}

	delay := p.BaseDelay
	for i := 0; i < b.n; i++ {
		delay = time.Duration(float64(delay) * DefaultBackoffMultiplier)
		if p.MaxDelay > 0 && delay > p.MaxDelay {
			delay = p.MaxDelay
			break
		}
	}
	b.n++
	return delay + jitter
}

func (b *policyBackOff) Reset() {
	b.n = 0
	b.last = nil
}

func jitterBetween(lo, hi time.Duration) time.Duration {
	if hi <= lo {
		if lo < 0 {
			return 0
		}
		return lo
	}
	return lo + time.Duration(rand.Int64N(int64(hi-lo)+1))
}
