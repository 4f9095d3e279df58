// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package app

import (
	"context"
	"errors"
)

// Remote error taxonomy.
var (
	// ErrNetwork is a transient transport failure: unreachable host, timeout,
	// service unavailable. Retryable.
	ErrNetwork = errors.New("network error")

	// ErrValidation means the remote store rejected the data. Terminal, and
	// surfaced to the caller of the originating operation.
	ErrValidation = errors.New("validation error")

	// ErrAuth means the credentials were rejected or have expired. Terminal,
	// signals a re-authentication requirement.
	ErrAuth = errors.New("authentication error")

	// ErrSyncConflict means the remote copy changed concurrently. It is
	// absorbed by the conflict resolver and never reported as a failure.
	ErrSyncConflict = errors.New("sync conflict")

	// ErrNotFound means the remote store has no such entity.
	ErrNotFound = errors.New("entity not found")

	// ErrUnknown is an unclassified remote failure. Retried, but capped.
	ErrUnknown = errors.New("unknown remote error")
)

// Orchestrator errors.
var (
	// ErrStopped is returned by requests made to a stopped orchestrator.
	ErrStopped = errors.New("sync stopped")

	// ErrOffline is returned by requests that need connectivity.
	ErrOffline = errors.New("offline")

	// ErrNotFailed is returned by a recovery request outside the FAILED state.
	ErrNotFailed = errors.New("sync is not in failed state")

	// ErrConnectionUnstable is returned when recovery gave up waiting for a
	// stable connection.
	ErrConnectionUnstable = errors.New("connection is not stable")
)

// IsTerminal reports whether err must not be retried.
func IsTerminal(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrAuth) ||
		errors.Is(err, ErrSyncConflict) ||
		errors.Is(err, ErrStopped) ||
		errors.Is(err, context.Canceled)
}

// IsUnknown reports whether err is outside the known taxonomy.
func IsUnknown(err error) bool {
	if err == nil {
		return false
	}
	return !errors.Is(err, ErrNetwork) &&
		!errors.Is(err, context.DeadlineExceeded) &&
		!errors.Is(err, ErrNotFound) &&
		!IsTerminal(err)
}

// IsRetryable reports whether err is a known transient failure.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrNetwork) || errors.Is(err, context.DeadlineExceeded)
}
