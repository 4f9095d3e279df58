// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package service

import (
	"errors"
	"fmt"

	"github.com/MKhiriev/go-sync-keeper/internal/app"
)

var (
	ErrEntityTypeMismatch = fmt.Errorf("%w: entity belongs to a different data domain", app.ErrValidation)
	ErrOwnerMismatch      = fmt.Errorf("%w: entity belongs to a different owner", app.ErrValidation)
	ErrEmptyID            = fmt.Errorf("%w: entity id is empty", app.ErrValidation)
	ErrDuplicateID        = fmt.Errorf("%w: entity id appears twice in one batch", app.ErrValidation)

	ErrIllegalTransition = errors.New("illegal sync state transition")
	ErrAlreadyRunning    = errors.New("sync orchestrator is already running")
	ErrNotRunning        = errors.New("sync orchestrator is not running")
)
