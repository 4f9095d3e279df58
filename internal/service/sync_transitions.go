// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package service

import "github.com/MKhiriev/go-sync-keeper/models"

// transitions lists every legal move of the sync state machine. STOPPED is
// left only through an explicit Start, which goes to IDLE.
var transitions = map[models.SyncState][]models.SyncState{
	models.SyncIdle: {
		models.SyncSyncing, models.SyncOffline, models.SyncStopped,
	},
	models.SyncSyncing: {
		models.SyncSynced, models.SyncFailed, models.SyncOffline, models.SyncStopped,
	},
	models.SyncSynced: {
		models.SyncSyncing, models.SyncOffline, models.SyncStopped,
	},
	models.SyncFailed: {
		models.SyncSyncing, models.SyncRecovering, models.SyncOffline, models.SyncStopped,
	},
	models.SyncOffline: {
		models.SyncConnectivityRestored, models.SyncStopped,
	},
	models.SyncConnectivityRestored: {
		models.SyncSyncing, models.SyncOffline, models.SyncStopped,
	},
	models.SyncRecovering: {
		models.SyncSynced, models.SyncFailed, models.SyncOffline, models.SyncStopped,
	},
	models.SyncStopped: {
		models.SyncIdle,
	},
}

// CanTransition reports whether the state machine may move from one state to
// another.
func CanTransition(from, to models.SyncState) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// busy reports whether a pass or its preparation is in progress. Triggers
// arriving in these states are coalesced.
func busy(s models.SyncState) bool {
	return s == models.SyncSyncing || s == models.SyncRecovering || s == models.SyncConnectivityRestored
}
