// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package models

// Strategy selects how the conflict resolver picks or builds a winner.
type Strategy string

const (
	LastWriteWins Strategy = "LAST_WRITE_WINS"
	LocalWins     Strategy = "LOCAL_WINS"
	RemoteWins    Strategy = "REMOTE_WINS"
	FieldMerge    Strategy = "FIELD_MERGE"
	Manual        Strategy = "MANUAL"
)

// ConflictKind tells which part of an entity differs.
type ConflictKind string

const (
	// ConflictSectionChanged: the section exists on both sides with
	// different content.
	ConflictSectionChanged ConflictKind = "section_changed"
	// ConflictLocalOnly: the section exists only in the local copy.
	ConflictLocalOnly ConflictKind = "local_only"
	// ConflictRemoteOnly: the section exists only in the remote copy.
	ConflictRemoteOnly ConflictKind = "remote_only"
	// ConflictDeletion: one side is a tombstone.
	ConflictDeletion ConflictKind = "deletion"
	// ConflictManualFlag: the sides disagree on ManuallySet.
	ConflictManualFlag ConflictKind = "manual_flag"
)

// Conflict describes one differing sub-section between a local and a remote
// copy of the same entity.
type Conflict struct {
	EntityID string       `json:"entity_id"`
	Section  string       `json:"section,omitempty"`
	Kind     ConflictKind `json:"kind"`
	Local    *Section     `json:"local,omitempty"`
	Remote   *Section     `json:"remote,omitempty"`
	Strategy Strategy     `json:"strategy"`
}
