// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package retry

import (
	"fmt"
	"math"
	"time"

	"github.com/pdiddy/evidence-engine/pkg/types"
)

// Backoff describes an exponential delay sequence.
type Backoff struct {
	Base   time.Duration
	Max    time.Duration
	Factor float64
}

// Delay returns the wait before attempt n (n >= 2):
// min(Max, Base * Factor^(n-2)).
func (b Backoff) Delay(n int) time.Duration {
	if n < 2 {
		return 0
	}
	d := float64(b.Base) * math.Pow(b.Factor, float64(n-2))
	if d >= float64(b.Max) || math.IsInf(d, 0) || math.IsNaN(d) {
		return b.Max
	}
	return time.Duration(d)
}

// Policy bounds the attempts the Executor makes and the waits between them.
// A Policy is immutable once built.
type Policy struct {
	MaxAttempts int

	// Backoff applies after every retryable failure except rate limiting.
	Backoff Backoff

	// RateLimit applies after a rate-limited failure.
	RateLimit Backoff

	retryable map[ErrorKind]bool
}

// retryableKinds are retried unless a policy narrows the set.
var retryableKinds = []ErrorKind{KindTransientNetwork, KindRateLimited, KindServerUnavailable, KindProtocol}

// DefaultPolicy retries five times with 1s..60s backoff, and 5s..300s after
// rate limiting.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 5,
		Backoff:     Backoff{Base: time.Second, Max: 60 * time.Second, Factor: 2},
		RateLimit:   Backoff{Base: 5 * time.Second, Max: 300 * time.Second, Factor: 2},
		retryable:   kindSet(retryableKinds),
	}
}

// RewritePolicy is the policy for query-rewrite model calls: three attempts
// with 1s..10s backoff.
func RewritePolicy() Policy {
	p := DefaultPolicy()
	p.MaxAttempts = 3
	p.Backoff.Max = 10 * time.Second
	return p
}

// WithRetryable returns a copy of p that retries only the given kinds.
// non_retryable is never retried, even if listed.
func (p Policy) WithRetryable(kinds ...ErrorKind) Policy {
	p.retryable = kindSet(kinds)
	delete(p.retryable, KindNonRetryable)
	return p
}

// Retryable reports whether a failure of kind k may be retried.
func (p Policy) Retryable(k ErrorKind) bool {
	if p.retryable == nil {
		return k != KindNonRetryable && k != ""
	}
	return p.retryable[k]
}

// Delay returns the wait before attempt n given the kind of the failure
// that ended attempt n-1. The Executor never sleeps less than its previous
// wait, so mixed failure classes still yield a non-decreasing sequence.
func (p Policy) Delay(n int, last ErrorKind) time.Duration {
	if last == KindRateLimited {
		return p.RateLimit.Delay(n)
	}
	return p.Backoff.Delay(n)
}

// Validate checks the policy invariants.
func (p Policy) Validate() error {
	if p.MaxAttempts < 1 {
		return fmt.Errorf("max_attempts %d must be at least 1", p.MaxAttempts)
	}
	for name, b := range map[string]Backoff{"backoff": p.Backoff, "rate limit backoff": p.RateLimit} {
		if b.Base <= 0 {
			return fmt.Errorf("%s base delay %v must be positive", name, b.Base)
		}
		if b.Max < b.Base {
			return fmt.Errorf("%s max delay %v is below base delay %v", name, b.Max, b.Base)
		}
		if b.Factor <= 1 {
			return fmt.Errorf("%s factor %v must be greater than 1", name, b.Factor)
		}
	}
	return nil
}

// PolicyFromConfig overlays the non-zero fields of cfg onto base and
// validates the result.
func PolicyFromConfig(cfg types.RetryConfig, base Policy) (Policy, error) {
	p := base
	if cfg.MaxAttempts != 0 {
		p.MaxAttempts = cfg.MaxAttempts
	}
	if cfg.BaseDelay != 0 {
		p.Backoff.Base = cfg.BaseDelay
	}
	if cfg.MaxDelay != 0 {
		p.Backoff.Max = cfg.MaxDelay
	}
	if cfg.BackoffFactor != 0 {
		p.Backoff.Factor = cfg.BackoffFactor
		p.RateLimit.Factor = cfg.BackoffFactor
	}
	if cfg.RateLimitBaseDelay != 0 {
		p.RateLimit.Base = cfg.RateLimitBaseDelay
	}
	if cfg.RateLimitMaxDelay != 0 {
		p.RateLimit.Max = cfg.RateLimitMaxDelay
	}
	if len(cfg.RetryableErrors) > 0 {
		kinds := make([]ErrorKind, 0, len(cfg.RetryableErrors))
		for _, s := range cfg.RetryableErrors {
			k, err := ParseKind(s)
			if err != nil {
				return Policy{}, err
			}
			kinds = append(kinds, k)
		}
		p = p.WithRetryable(kinds...)
	}
	if err := p.Validate(); err != nil {
		return Policy{}, fmt.Errorf("invalid retry policy: %w", err)
	}
	return p, nil
}

func kindSet(kinds []ErrorKind) map[ErrorKind]bool {
	set := make(map[ErrorKind]bool, len(kinds))
	for _, k := range kinds {
		set[k] = true
	}
	return set
}
