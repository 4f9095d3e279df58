// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package models

import "time"

// ItemFailure describes an entity that could not be pushed during a pass.
type ItemFailure struct {
	ID       string `json:"id"`
	Err      error  `json:"-"`
	Reason   string `json:"reason"`
	Terminal bool   `json:"terminal"`
}

// SyncResult aggregates the outcome of one sync pass.
type SyncResult struct {
	Attempted int           `json:"attempted"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Failures  []ItemFailure `json:"failures,omitempty"`

	// Pulled counts remote changes applied locally, Merged the subset that
	// needed conflict resolution.
	Pulled int `json:"pulled"`
	Merged int `json:"merged"`
}

// HasTerminalFailure reports whether any item failed with a terminal error.
func (r SyncResult) HasTerminalFailure() bool {
	for _, f := range r.Failures {
		if f.Terminal {
			return true
		}
	}
	return false
}

// Add folds another result into r.
func (r *SyncResult) Add(other SyncResult) {
	r.Attempted += other.Attempted
	r.Succeeded += other.Succeeded
	r.Failed += other.Failed
	r.Failures = append(r.Failures, other.Failures...)
	r.Pulled += other.Pulled
	r.Merged += other.Merged
}

// EntityState is the lightweight descriptor the pull planner compares between
// the local and remote copies.
type EntityState struct {
	ID           string     `json:"id"`
	Version      int64      `json:"version"`
	Deleted      bool       `json:"deleted"`
	Status       SyncStatus `json:"status,omitempty"`
	LastModified time.Time  `json:"last_modified"`
}

// StateOf builds the descriptor of an entity.
func StateOf(e SyncableEntity) EntityState {
	return EntityState{
		ID:           e.ID,
		Version:      e.Version,
		Deleted:      e.Deleted,
		Status:       e.SyncStatus,
		LastModified: e.LastModified,
	}
}

// PullPlan lists the actions required to apply remote changes locally.
type PullPlan struct {
	// Download holds remote copies to store locally as SYNCED.
	Download []EntityState
	// DeleteLocal holds remote tombstones for entities unchanged locally.
	DeleteLocal []EntityState
	// Resolve holds entities changed on both sides.
	Resolve []EntityState
}

// Empty reports whether the plan requires no action.
func (p PullPlan) Empty() bool {
	return len(p.Download) == 0 && len(p.DeleteLocal) == 0 && len(p.Resolve) == 0
}

// QueryRange bounds a remote query by modification time. A zero Since
// queries everything.
type QueryRange struct {
	Since time.Time
	Until time.Time
}
