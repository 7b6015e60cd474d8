// Package ratelimit throttles login attempts per client key.
package ratelimit

import (
	"context"
	"errors"
	"math"
	"time"
)

var ErrInvalidPolicy = errors.New("invalid rate limit policy")

// Policy is a token bucket: RPM tokens per minute, at most Burst stored.
type Policy struct {
	RPM   int
	Burst int
}

func (p Policy) Validate() error {
	if p.RPM <= 0 || p.Burst <= 0 {
		return ErrInvalidPolicy
	}
	return nil
}

func (p Policy) perSecond() float64 {
	return float64(p.RPM) / 60.0
}

// RetryAfter is how long a drained bucket needs for one token.
func (p Policy) RetryAfter() time.Duration {
	if p.RPM <= 0 {
		return time.Minute
	}
	return time.Duration(math.Ceil(60/float64(p.RPM))) * time.Second
}

// Limiter reports whether one more attempt under key is allowed.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}
