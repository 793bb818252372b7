// Package ratelimit implements sliding-window action limits keyed by an
// arbitrary string (usually "<rule>-<user id>").
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var ErrLimitExceeded = errors.New("rate limit exceeded")

type LimitExceededError struct {
	Key        string
	Max        int
	Window     time.Duration
	RetryAfter time.Duration
}

func (e *LimitExceededError) Error() string {
	return fmt.Sprintf("%s: %d per %s, retry in %s", e.Key, e.Max, e.Window, e.RetryAfter.Round(time.Second))
}

func (e *LimitExceededError) Is(target error) bool { return target == ErrLimitExceeded }

// Limiter records one action under key if fewer than max actions happened in
// the trailing window. A refused action is not recorded.
type Limiter interface {
	Performed(ctx context.Context, key string, max int, window time.Duration) error
}

// Rule is a named window. The limiter key is Prefix + "-" + subject.
type Rule struct {
	Prefix string
	Max    int
	Window time.Duration
}

func (r Rule) Key(subject string) string { return r.Prefix + "-" + subject }

// Check applies the rules in order and stops at the first one exceeded.
func Check(ctx context.Context, l Limiter, subject string, rules ...Rule) error {
	for _, r := range rules {
		if r.Max <= 0 {
			continue
		}
		if err := l.Performed(ctx, r.Key(subject), r.Max, r.Window); err != nil {
			return err
		}
	}
	return nil
}
