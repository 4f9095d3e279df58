// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package store

import (
	"context"

	"github.com/MKhiriev/go-sync-keeper/models"
)

//go:generate mockgen -source=interfaces.go -destination=../mock/store_mock.go -package=mock

// LocalStore is the durable, device-local copy of every syncable entity.
// It is the source of truth for reads and keeps the per-record sync status.
type LocalStore interface {
	// Upsert inserts or replaces the entity, including its SyncStatus.
	Upsert(ctx context.Context, entity models.SyncableEntity) error

	// Get returns the entity stored under key, tombstones included.
	// Returns ErrEntityNotFound when there is none.
	Get(ctx context.Context, key models.EntityKey) (models.SyncableEntity, error)

	// List returns all live (non-deleted) entities of the owner for the type.
	List(ctx context.Context, entityType, ownerID string) ([]models.SyncableEntity, error)

	// Remove deletes the row. Only called once the remote deletion is
	// acknowledged.
	Remove(ctx context.Context, key models.EntityKey) error

	// MarkPending flags the entity as having unsynced local changes.
	MarkPending(ctx context.Context, key models.EntityKey) error

	// MarkSynced flags the entity as SYNCED if its version is still version.
	// It reports false when a newer local write happened in between.
	MarkSynced(ctx context.Context, key models.EntityKey, version int64) (bool, error)

	// MarkFailed flags the entity after a terminal push error. It stays
	// unsynced.
	MarkFailed(ctx context.Context, key models.EntityKey) error

	// ListPending returns PENDING and FAILED entities, tombstones included,
	// oldest change first.
	ListPending(ctx context.Context, entityType, ownerID string) ([]models.SyncableEntity, error)
}
