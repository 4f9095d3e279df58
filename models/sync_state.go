// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package models

import "time"

// SyncState is the health state of one data domain. It is owned and mutated
// exclusively by the sync orchestrator of that domain.
type SyncState string

const (
	SyncIdle                 SyncState = "IDLE"
	SyncSyncing              SyncState = "SYNCING"
	SyncSynced               SyncState = "SYNCED"
	SyncFailed               SyncState = "FAILED"
	SyncOffline              SyncState = "OFFLINE"
	SyncConnectivityRestored SyncState = "CONNECTIVITY_RESTORED"
	SyncRecovering           SyncState = "RECOVERING"
	SyncStopped              SyncState = "STOPPED"
)

// ConnectivityState is produced by the connectivity monitor.
type ConnectivityState string

const (
	ConnectivityUnknown      ConnectivityState = "UNKNOWN"
	ConnectivityConnected    ConnectivityState = "CONNECTED"
	ConnectivityDisconnected ConnectivityState = "DISCONNECTED"
)

// SyncMetrics is updated after every sync attempt.
type SyncMetrics struct {
	LastSyncTime        time.Time `json:"last_sync_time"`
	LastSuccessfulSync  time.Time `json:"last_successful_sync"`
	TotalAttempts       int64     `json:"total_attempts"`
	SuccessCount        int64     `json:"success_count"`
	FailureCount        int64     `json:"failure_count"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
}

// SyncStatusReport is the snapshot exposed upward to the UI layer.
type SyncStatusReport struct {
	Domain       string            `json:"domain"`
	State        SyncState         `json:"state"`
	Connectivity ConnectivityState `json:"connectivity"`
	Metrics      SyncMetrics       `json:"metrics"`
	Healthy      bool              `json:"healthy"`
}

// SyncOutcome is returned by foreground sync requests.
type SyncOutcome struct {
	// State is the orchestrator state after the request was handled.
	State SyncState

	// Result holds the aggregate counts of the pass, if one ran.
	Result SyncResult

	// Coalesced is set when the request arrived while a pass was already in
	// flight and was folded into it.
	Coalesced bool

	// Skipped is set when no pass ran (offline, throttled, stopped).
	Skipped bool

	// Err carries errors that should reach the user: STOPPED, or a terminal
	// remote error during a foreground request.
	Err error
}
