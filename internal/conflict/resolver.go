// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package conflict decides which copy of an entity survives when the local
// and the remote store disagree, or builds a merged copy from both.
package conflict

import (
	"errors"
	"fmt"
	"time"

	"github.com/MKhiriev/go-sync-keeper/models"
)

var (
	// ErrUnknownStrategy is returned for strategies the resolver does not
	// implement.
	ErrUnknownStrategy = errors.New("unknown conflict resolution strategy")

	// ErrEntityMismatch is returned when local and remote are not copies of
	// the same entity.
	ErrEntityMismatch = errors.New("local and remote copies belong to different entities")
)

// Side tells which input a resolution was taken from.
type Side int

const (
	SideLocal Side = iota
	SideRemote
	SideMerged
)

func (s Side) String() string {
	switch s {
	case SideLocal:
		return "local"
	case SideRemote:
		return "remote"
	default:
		return "merged"
	}
}

// Resolution is the result of Resolve.
type Resolution struct {
	// Entity is the resolved copy, stamped with a fresh LastModified. For
	// MANUAL it holds the last-write-wins fallback.
	Entity models.SyncableEntity

	// Winner is the side Entity's content was taken from.
	Winner Side

	// Strategy is the strategy that was applied.
	Strategy models.Strategy

	// Conflicts lists every differing sub-section.
	Conflicts []models.Conflict

	// RequiresDecision is set by MANUAL when conflicts exist. Callers without
	// a UI path use Entity, which is the last-write-wins fallback.
	RequiresDecision bool

	// Changed reports whether the resolved payload differs from at least one
	// of the inputs.
	Changed bool
}

// Resolver resolves local/remote conflicts.
type Resolver struct {
	now             func() time.Time
	defaultStrategy models.Strategy
}

// NewResolver creates a Resolver. defaultStrategy tags the descriptors
// returned by DetectConflicts; an empty value means LAST_WRITE_WINS.
func NewResolver(defaultStrategy models.Strategy) *Resolver {
	if defaultStrategy == "" {
		defaultStrategy = models.LastWriteWins
	}
	return &Resolver{now: time.Now, defaultStrategy: defaultStrategy}
}

// DefaultStrategy returns the strategy configured for this resolver.
func (r *Resolver) DefaultStrategy() models.Strategy {
	return r.defaultStrategy
}

// Resolve produces the resolved copy of an entity under strategy.
//
// Every resolution is stamped with a fresh LastModified and
// Version = max(local.Version, remote.Version), plus one if the resolved
// payload differs from either input.
func (r *Resolver) Resolve(local, remote models.SyncableEntity, strategy models.Strategy) (Resolution, error) {
	if local.ID != remote.ID || local.OwnerID != remote.OwnerID {
		return Resolution{}, fmt.Errorf("%w: local %s/%s, remote %s/%s",
			ErrEntityMismatch, local.OwnerID, local.ID, remote.OwnerID, remote.ID)
	}

	var (
		res Resolution
		out models.SyncableEntity
	)
	res.Strategy = strategy
	res.Conflicts = r.detect(local, remote, strategy)

	switch strategy {
	case models.LastWriteWins:
		res.Winner = lastWriteWins(local, remote)
		out = pick(res.Winner, local, remote)

	case models.LocalWins:
		res.Winner = SideLocal
		out = local.Clone()

	case models.RemoteWins:
		res.Winner = SideRemote
		out = remote.Clone()

	case models.FieldMerge:
		out, res.Winner = fieldMerge(local, remote)

	case models.Manual:
		res.Winner = lastWriteWins(local, remote)
		out = pick(res.Winner, local, remote)
		res.RequiresDecision = len(res.Conflicts) > 0

	default:
		return Resolution{}, fmt.Errorf("%w: %q", ErrUnknownStrategy, strategy)
	}

	res.Changed = !out.Payload.Equal(local.Payload) || !out.Payload.Equal(remote.Payload) ||
		out.Deleted != local.Deleted || out.Deleted != remote.Deleted
	res.Entity = r.stamp(out, local, remote, res.Changed)
	return res, nil
}

// Newer compares by LastModified only: remote wins only if strictly newer.
// Used on the read path, where the local copy is preferred on ties.
func (r *Resolver) Newer(local, remote models.SyncableEntity) Side {
	if remote.LastModified.After(local.LastModified) {
		return SideRemote
	}
	return SideLocal
}

func (r *Resolver) stamp(out, local, remote models.SyncableEntity, changed bool) models.SyncableEntity {
	latest := local.LastModified
	if remote.LastModified.After(latest) {
		latest = remote.LastModified
	}
	now := r.now().UTC()
	if !now.After(latest) {
		now = latest.Add(time.Millisecond)
	}
	out.LastModified = now

	out.Version = max(local.Version, remote.Version)
	if changed {
		out.Version++
	}
	return out
}

// lastWriteWins picks the copy with the greater LastModified. Exact ties
// favour the copy manually set by the user; full ties favour local.
func lastWriteWins(local, remote models.SyncableEntity) Side {
	switch {
	case local.LastModified.After(remote.LastModified):
		return SideLocal
	case remote.LastModified.After(local.LastModified):
		return SideRemote
	case remote.ManuallySet && !local.ManuallySet:
		return SideRemote
	default:
		return SideLocal
	}
}

func pick(side Side, local, remote models.SyncableEntity) models.SyncableEntity {
	if side == SideRemote {
		return remote.Clone()
	}
	return local.Clone()
}
