// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package service implements the sync engine of one device: a coordinator per
// data domain that keeps the local store and the remote store converging, and
// an orchestrator per data domain that decides when a sync pass runs and owns
// the resulting health state.
//
// The coordinator ([RepositorySync]) is the only component that writes to the
// local store on behalf of the application. The orchestrator
// ([SyncOrchestrator]) never touches the stores itself; it drives a [Syncer],
// which is normally the coordinator of the same domain.
package service

import (
	"context"

	"github.com/MKhiriev/go-sync-keeper/models"
)

// Syncer runs one full sync pass of a data domain.
//
// The returned error reports a failure of the pass as a whole (for example,
// the remote store could not be queried). Per-entity failures are reported in
// the result only.
type Syncer interface {
	Sync(ctx context.Context) (models.SyncResult, error)
}

// SyncerFunc adapts a function to Syncer.
type SyncerFunc func(ctx context.Context) (models.SyncResult, error)

// Sync implements Syncer.
func (f SyncerFunc) Sync(ctx context.Context) (models.SyncResult, error) {
	return f(ctx)
}

// RepositorySync is the offline-first facade of one (entity type, owner)
// pair. Every write lands in the local store first; the remote store is
// updated opportunistically and by the orchestrator's sync passes.
type RepositorySync interface {
	Syncer

	// Save validates the entity, assigns an ID to new entities, bumps its
	// Version and LastModified, and stores it locally as PENDING. If the
	// device is connected, a push bounded by the push timeout is attempted.
	// Remote failures are never returned; the entity stays PENDING.
	Save(ctx context.Context, entity models.SyncableEntity) (models.SyncableEntity, error)

	// SaveBatch validates every entity before writing any of them, then
	// stores them all locally as PENDING and, if connected, pushes them one
	// by one the way Save does. A validation error rejects the whole batch.
	SaveBatch(ctx context.Context, entities []models.SyncableEntity) ([]models.SyncableEntity, error)

	// Get returns the local copy immediately. If the device is connected a
	// background refresh from the remote store follows. A local miss while
	// connected falls back to a synchronous remote fetch.
	Get(ctx context.Context, id string) (models.SyncableEntity, error)

	// Refresh fetches the remote copy and applies it locally if it is
	// strictly newer. Returns the copy that won.
	Refresh(ctx context.Context, id string) (models.SyncableEntity, error)

	// Delete writes a PENDING tombstone. The local row is removed once the
	// remote store acknowledges the deletion.
	Delete(ctx context.Context, id string) error

	// List returns the live local entities.
	List(ctx context.Context) ([]models.SyncableEntity, error)

	// SyncPendingChanges pushes every PENDING or FAILED entity through the
	// per-item retry policy.
	SyncPendingChanges(ctx context.Context) (models.SyncResult, error)

	// PullRemoteChanges applies remote changes made since the last pull.
	PullRemoteChanges(ctx context.Context) (models.SyncResult, error)

	// Close cancels background refreshes and waits for them to return.
	Close()
}

// SyncOrchestrator is the per-domain sync state machine.
type SyncOrchestrator interface {
	// Run drives the state machine until ctx is cancelled. It is the worker
	// form of Start.
	Run(ctx context.Context) error

	// Start launches the state machine if it is not running and restarts it
	// if it is STOPPED.
	Start(ctx context.Context) error

	// Stop moves to STOPPED, cancelling scheduled retries and the pass in
	// flight. Only Start leaves STOPPED.
	Stop()

	// TriggerSync requests a pass now. Without force the request is
	// throttled by the minimum sync interval.
	TriggerSync(ctx context.Context, force bool) models.SyncOutcome

	// RecoverFromFailure leaves FAILED through RECOVERING: it waits for a
	// stable connection and runs a full pass.
	RecoverFromFailure(ctx context.Context) models.SyncOutcome

	// Status returns a snapshot of state, connectivity and metrics.
	Status() models.SyncStatusReport

	// Subscribe returns a channel receiving every state change and a function
	// releasing the subscription. Slow consumers only see the latest state.
	Subscribe() (<-chan models.SyncState, func())

	// Healthy evaluates the health predicate on the current snapshot.
	Healthy() bool
}
