// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package validators

import (
	"errors"
	"fmt"

	"github.com/MKhiriev/go-sync-keeper/internal/app"
)

var (
	ErrUnsupportedType = errors.New("unsupported type for validation")
	ErrUnknownField    = errors.New("unknown field for validation")

	ErrInvalidID         = errors.New("invalid entity id")
	ErrInvalidOwnerID    = errors.New("invalid owner id")
	ErrInvalidEntityType = errors.New("invalid entity type")
	ErrEmptyPayload      = errors.New("payload must contain at least one section")
	ErrInvalidSection    = errors.New("invalid payload section")
	ErrInvalidPrivacy    = errors.New("invalid privacy level")
	ErrInvalidVersion    = errors.New("invalid version")
	ErrInvalidStatus     = errors.New("invalid sync status")
)

// ValidationError reports the field that failed validation. It matches both
// app.ErrValidation and the specific cause with errors.Is.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() []error {
	return []error{app.ErrValidation, e.Err}
}

func invalid(field string, err error) error {
	return &ValidationError{Field: field, Err: err}
}
