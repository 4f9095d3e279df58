// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package store

import (
	"errors"
	"fmt"

	"github.com/MKhiriev/go-sync-keeper/internal/app"
)

// Sentinel errors returned by LocalStore implementations. Callers should use
// [errors.Is] to match against these values.
var (
	// ErrEntityNotFound is returned when no row matches the requested key.
	// It also matches app.ErrNotFound.
	ErrEntityNotFound = fmt.Errorf("%w in local store", app.ErrNotFound)

	// ErrUnsupportedDriver is returned by NewLocalStore for an unknown
	// storage driver name.
	ErrUnsupportedDriver = errors.New("unsupported storage driver")
)

// Low-level database operation errors. These are returned (or wrapped) by
// repository methods when a SQL-level operation fails before any domain logic
// can be applied.
var (
	// ErrBuildingSQLQuery is returned when constructing a parameterised SQL
	// query fails.
	ErrBuildingSQLQuery = errors.New("error building sql query")

	// ErrExecutingQuery is returned when executing a SELECT against the
	// database fails.
	ErrExecutingQuery = errors.New("error executing sql query")

	// ErrExecutingStatement is returned when executing a DML statement
	// (INSERT, UPDATE, DELETE) fails.
	ErrExecutingStatement = errors.New("failed to executing statement")

	// ErrScanningRow is returned when scanning a single result row fails.
	ErrScanningRow = errors.New("failed to scan entity row")

	// ErrScanningRows is returned when multi-row iteration fails mid
	// result-set.
	ErrScanningRows = errors.New("failed to scan entity rows")

	// ErrEncodingPayload is returned when a payload cannot be converted to
	// or from its stored JSON form.
	ErrEncodingPayload = errors.New("failed to encode entity payload")
)
