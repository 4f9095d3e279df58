// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package models

import (
	"bytes"
	"encoding/json"
	"sort"
	"time"
)

// SyncStatus is the per-record marker kept in the local store that tells the
// coordinator whether an entity still has to be propagated to the remote store.
type SyncStatus string

const (
	// StatusPending marks an entity with local changes not yet acknowledged
	// by the remote store.
	StatusPending SyncStatus = "PENDING"
	// StatusSynced marks an entity whose local copy mirrors the remote one.
	StatusSynced SyncStatus = "SYNCED"
	// StatusFailed marks an entity whose last push was rejected with a
	// terminal error. It is still unsynced and is retried on the next pass.
	StatusFailed SyncStatus = "FAILED"
)

// PrivacyLevel orders how widely a payload section may be shared.
// A higher level is more restrictive.
type PrivacyLevel int

const (
	PrivacyPublic PrivacyLevel = iota
	PrivacyShared
	PrivacyPrivate
)

// Section is one logical sub-section of a composite entity payload
// (for example the "symptoms" block of a daily log or the "sharing" block of
// a preference set).
type Section struct {
	// Customized is set when the user changed the section away from its
	// defaults (or explicitly enabled it).
	Customized bool `json:"customized,omitempty"`

	// Sensitive marks privacy-related sections. Field merge always keeps the
	// more restrictive Privacy for them.
	Sensitive bool `json:"sensitive,omitempty"`

	// Privacy is the sharing level of the section.
	Privacy PrivacyLevel `json:"privacy,omitempty"`

	// Data is the opaque JSON body of the section.
	Data json.RawMessage `json:"data,omitempty"`
}

// Equal reports whether two sections carry the same flags and body.
func (s Section) Equal(other Section) bool {
	return s.Customized == other.Customized &&
		s.Sensitive == other.Sensitive &&
		s.Privacy == other.Privacy &&
		bytes.Equal(compactJSON(s.Data), compactJSON(other.Data))
}

// Payload is the user data carried by a SyncableEntity, split into named
// sections so that conflicts can be detected and merged per section.
type Payload struct {
	Sections map[string]Section `json:"sections"`
}

// Equal reports whether both payloads contain the same sections with equal
// content.
func (p Payload) Equal(other Payload) bool {
	if len(p.Sections) != len(other.Sections) {
		return false
	}
	for name, s := range p.Sections {
		o, ok := other.Sections[name]
		if !ok || !s.Equal(o) {
			return false
		}
	}
	return true
}

// SectionNames returns the sorted union of section names of both payloads.
func (p Payload) SectionNames(other Payload) []string {
	seen := make(map[string]struct{}, len(p.Sections)+len(other.Sections))
	for name := range p.Sections {
		seen[name] = struct{}{}
	}
	for name := range other.Sections {
		seen[name] = struct{}{}
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clone returns a deep copy of the payload.
func (p Payload) Clone() Payload {
	if p.Sections == nil {
		return Payload{}
	}
	out := Payload{Sections: make(map[string]Section, len(p.Sections))}
	for name, s := range p.Sections {
		if s.Data != nil {
			s.Data = append(json.RawMessage(nil), s.Data...)
		}
		out.Sections[name] = s
	}
	return out
}

// SyncableEntity is a unit of user data subject to synchronization.
// The local store owns the canonical working copy; the remote store mirrors
// it keyed by (OwnerID, ID).
type SyncableEntity struct {
	// ID is the client-generated identifier of the entity.
	ID string `json:"id"`

	// OwnerID identifies the user the entity belongs to.
	OwnerID string `json:"owner_id"`

	// EntityType names the data domain (e.g. "daily_logs", "preferences").
	EntityType string `json:"entity_type"`

	// Payload is the user data.
	Payload Payload `json:"payload"`

	// LastModified is the time of the last content change.
	LastModified time.Time `json:"last_modified"`

	// SyncStatus is local-only bookkeeping and never trusted from the remote.
	SyncStatus SyncStatus `json:"sync_status,omitempty"`

	// Version is a monotonic counter bumped on every local change.
	Version int64 `json:"version"`

	// ManuallySet marks values explicitly entered by the user, as opposed to
	// values computed or imported. Used to break exact timestamp ties.
	ManuallySet bool `json:"manually_set,omitempty"`

	// Deleted is a tombstone. A deleted entity stays in the local store until
	// its remote deletion is acknowledged.
	Deleted bool `json:"deleted,omitempty"`
}

// Key returns the identity of the entity inside the remote store.
func (e SyncableEntity) Key() EntityKey {
	return EntityKey{EntityType: e.EntityType, OwnerID: e.OwnerID, ID: e.ID}
}

// SameContent reports whether two copies carry the same user-visible content,
// ignoring local bookkeeping (status and version).
func (e SyncableEntity) SameContent(other SyncableEntity) bool {
	return e.Deleted == other.Deleted &&
		e.ManuallySet == other.ManuallySet &&
		e.LastModified.Equal(other.LastModified) &&
		e.Payload.Equal(other.Payload)
}

// Clone returns a deep copy of the entity.
func (e SyncableEntity) Clone() SyncableEntity {
	e.Payload = e.Payload.Clone()
	return e
}

// EntityKey addresses a single entity.
type EntityKey struct {
	EntityType string
	OwnerID    string
	ID         string
}

func compactJSON(raw json.RawMessage) []byte {
	if len(raw) == 0 {
		return nil
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return raw
	}
	return buf.Bytes()
}
