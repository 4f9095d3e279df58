// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package retry implements the attempt/delay policy used by every remote call
// of the sync engine: exponential backoff with optional jitter and an error
// classifier that separates transient failures from terminal ones.
package retry

import (
	"math"
	"math/rand/v2"
	"time"
)

// jitterFraction is the maximum relative offset applied by jitter (±25%).
const jitterFraction = 0.25

// Policy configures attempt sequencing.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first one.
	MaxAttempts int

	// InitialDelay is the delay before the first retry.
	InitialDelay time.Duration

	// MaxDelay caps every computed delay.
	MaxDelay time.Duration

	// Multiplier grows the delay between consecutive retries.
	Multiplier float64

	// JitterEnabled applies a random ±25% offset to every delay.
	JitterEnabled bool

	// UnknownMaxAttempts caps attempts for unclassified errors. Zero means
	// min(2, MaxAttempts).
	UnknownMaxAttempts int
}

// DefaultPolicy is the per-item policy used for remote pushes.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:   3,
		InitialDelay:  time.Second,
		MaxDelay:      30 * time.Second,
		Multiplier:    2,
		JitterEnabled: true,
	}
}

// DefaultBatchPolicy is the coarser policy the orchestrator uses to schedule
// a batch-level retry after a failed pass. It continues the curve of
// DefaultPolicy.
func DefaultBatchPolicy() Policy {
	return DefaultPolicy().Continuation(30 * time.Minute)
}

// Continuation returns the batch policy picking up where p stops: its first
// delay is the one p would have slept after its last attempt, so a pass that
// exhausts p and then fails at batch level observes InitialDelay × Multiplier^k
// for k = 0, 1, ..., MaxAttempts-1. Attempts are driven by the consecutive
// failure counter, so MaxAttempts of the result is unused.
func (p Policy) Continuation(maxDelay time.Duration) Policy {
	p = p.normalized()
	if maxDelay < p.MaxDelay {
		maxDelay = p.MaxDelay
	}

	base := float64(p.InitialDelay) * math.Pow(p.Multiplier, float64(p.MaxAttempts-1))
	if math.IsInf(base, 0) || math.IsNaN(base) || base > float64(maxDelay) {
		base = float64(maxDelay)
	}

	return Policy{
		MaxAttempts:   1,
		InitialDelay:  time.Duration(base),
		MaxDelay:      maxDelay,
		Multiplier:    p.Multiplier,
		JitterEnabled: p.JitterEnabled,
	}
}

func (p Policy) normalized() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 1
	}
	if p.InitialDelay < 0 {
		p.InitialDelay = 0
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = p.InitialDelay
	}
	if p.Multiplier < 1 {
		p.Multiplier = 1
	}
	if p.UnknownMaxAttempts <= 0 {
		p.UnknownMaxAttempts = min(2, p.MaxAttempts)
	}
	return p
}

// DelayForAttempt returns min(MaxDelay, InitialDelay × Multiplier^attempt),
// with jitter applied when enabled. The result never exceeds MaxDelay.
// Without jitter it is non-decreasing in attempt.
func (p Policy) DelayForAttempt(attempt int) time.Duration {
	p = p.normalized()
	if attempt < 0 {
		attempt = 0
	}

	base := float64(p.InitialDelay) * math.Pow(p.Multiplier, float64(attempt))
	if math.IsInf(base, 0) || math.IsNaN(base) || base > float64(p.MaxDelay) {
		base = float64(p.MaxDelay)
	}

	if p.JitterEnabled {
		offset := (rand.Float64()*2 - 1) * jitterFraction * base
		base += offset
		if base > float64(p.MaxDelay) {
			base = float64(p.MaxDelay)
		}
		if base < 0 {
			base = 0
		}
	}

	return time.Duration(base)
}
