// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package retry

import (
	"context"
	"errors"

	"github.com/MKhiriev/go-sync-keeper/internal/app"
)

// Class is the retry classification of an error.
type Class int

const (
	// Retryable errors are transient: network, timeout, unavailable.
	Retryable Class = iota
	// Terminal errors are never retried: validation, auth, conflict,
	// cancellation.
	Terminal
	// Unknown errors are retried, but only up to Policy.UnknownMaxAttempts.
	Unknown
)

func (c Class) String() string {
	switch c {
	case Retryable:
		return "retryable"
	case Terminal:
		return "terminal"
	default:
		return "unknown"
	}
}

// Classifier maps an error to its retry class.
type Classifier func(error) Class

// DefaultClassifier classifies errors using the app error taxonomy.
func DefaultClassifier(err error) Class {
	switch {
	case app.IsTerminal(err):
		return Terminal
	case errors.Is(err, app.ErrNetwork), errors.Is(err, context.DeadlineExceeded):
		return Retryable
	case errors.Is(err, app.ErrNotFound):
		return Terminal
	default:
		return Unknown
	}
}
