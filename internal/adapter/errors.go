// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package adapter

import (
	"errors"
	"fmt"

	"github.com/MKhiriev/go-sync-keeper/internal/app"
)

var (
	// ErrTokenExpired is returned without a round trip when the bearer token
	// is a JWT whose exp claim is in the past.
	ErrTokenExpired = fmt.Errorf("%w: bearer token expired", app.ErrAuth)

	ErrInvalidAddress = errors.New("invalid adapter http address")
	ErrDecodeResponse = errors.New("error decoding remote response")
	ErrIncompleteKey  = fmt.Errorf("%w: entity key is incomplete", app.ErrValidation)
)
