// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package retry

import (
	"context"
	"time"

	goretry "github.com/sethvargo/go-retry"
)

// Observer is notified before every sleep between attempts.
type Observer func(attempt int, delay time.Duration, err error)

// Option configures a Retrier.
type Option func(*Retrier)

// WithClassifier overrides the default error classifier.
func WithClassifier(c Classifier) Option {
	return func(r *Retrier) {
		if c != nil {
			r.classify = c
		}
	}
}

// WithObserver registers a hook called with every scheduled delay.
func WithObserver(o Observer) Option {
	return func(r *Retrier) {
		r.observe = o
	}
}

// Retrier executes operations under a Policy.
type Retrier struct {
	policy   Policy
	classify Classifier
	observe  Observer
}

// New constructs a Retrier for policy.
func New(policy Policy, opts ...Option) *Retrier {
	r := &Retrier{
		policy:   policy.normalized(),
		classify: DefaultClassifier,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Policy returns the normalized policy of the retrier.
func (r *Retrier) Policy() Policy {
	return r.policy
}

// Classify returns the class of err under the retrier's classifier.
func (r *Retrier) Classify(err error) Class {
	return r.classify(err)
}

// Do runs op up to MaxAttempts times, sleeping DelayForAttempt(n) between
// attempts. It returns nil on the first success, the last error when
// attempts are exhausted, and returns immediately on a terminal error without
// consuming the remaining attempts. Unknown errors stop after
// UnknownMaxAttempts.
func (r *Retrier) Do(ctx context.Context, op func(ctx context.Context) error) error {
	var (
		attempt     int
		unknownSeen int
		lastErr     error
	)

	backoff := goretry.WithMaxRetries(uint64(r.policy.MaxAttempts-1), goretry.BackoffFunc(func() (time.Duration, bool) {
		delay := r.policy.DelayForAttempt(attempt - 1)
		if r.observe != nil {
			r.observe(attempt, delay, lastErr)
		}
		return delay, false
	}))

	err := goretry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}

		switch r.classify(lastErr) {
		case Terminal:
			return lastErr
		case Unknown:
			unknownSeen++
			if unknownSeen >= r.policy.UnknownMaxAttempts {
				return lastErr
			}
		}
		return goretry.RetryableError(lastErr)
	})
	if err != nil && ctx.Err() != nil && lastErr != nil {
		// cancelled while sleeping: report the operation error, not ctx's
		return lastErr
	}
	return err
}
