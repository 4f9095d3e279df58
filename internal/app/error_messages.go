// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package app contains the error taxonomy and user-facing messages shared by
// every layer of the sync engine.
//
// Errors are sentinel values wrapped with fmt.Errorf("%w: ...") at the point
// where they are produced, so callers classify them with [errors.Is] no matter
// how many layers of context were added on the way up.
package app

import "errors"

const (
	// MsgWillRetry is shown for batch-level failures. They are never blocking.
	MsgWillRetry = "sync failed, will retry automatically"

	// MsgReauthRequired is shown when the remote store rejected the
	// credentials.
	MsgReauthRequired = "please sign in again to resume sync"

	// MsgInvalidData is shown when the remote store rejected the data itself.
	MsgInvalidData = "some changes were rejected by the server"

	// MsgSyncStopped is shown when synchronization was stopped and needs an
	// explicit restart.
	MsgSyncStopped = "sync is stopped"

	// MsgOffline is shown when a foreground sync was requested without
	// connectivity.
	MsgOffline = "you are offline, changes are saved on this device"
)

// UserMessage maps an error to the message the UI layer should render.
// Returns an empty string for nil.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrAuth):
		return MsgReauthRequired
	case errors.Is(err, ErrValidation):
		return MsgInvalidData
	case errors.Is(err, ErrStopped):
		return MsgSyncStopped
	case errors.Is(err, ErrOffline):
		return MsgOffline
	default:
		return MsgWillRetry
	}
}
