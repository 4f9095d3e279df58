// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package adapter provides transport-layer abstractions for communicating with
// the remote entity store.
//
// The primary abstraction is [RemoteStore], which decouples the sync service
// from the underlying protocol. The package ships an HTTP/REST implementation
// ([NewHTTPRemoteStore]).
//
// Transport failures and HTTP status codes are mapped onto the sentinel errors
// of the app package by mapHTTPError and mapTransportError, so callers classify
// remote failures with [errors.Is] against app.ErrNetwork, app.ErrAuth and the
// rest of the taxonomy without knowing anything about HTTP.
package adapter

import (
	"context"

	"github.com/MKhiriev/go-sync-keeper/models"
)

//go:generate mockgen -source=interfaces.go -destination=../mock/remote_store_mock.go -package=mock

// RemoteStore defines transport-agnostic access to the remote copy of the
// synchronized entities. Entities are keyed by (EntityType, OwnerID, ID).
type RemoteStore interface {
	// SetToken stores the bearer token that will be attached to all subsequent
	// requests.
	SetToken(token string)

	// Token returns the bearer token currently stored in the adapter, or an
	// empty string if no token has been set yet.
	Token() string

	// Create stores a new entity. Returns an error wrapping app.ErrSyncConflict
	// if the remote store already holds a different copy.
	Create(ctx context.Context, entity models.SyncableEntity) error

	// Update replaces the remote copy of an entity. Returns an error wrapping
	// app.ErrNotFound if the remote store does not know it yet and
	// app.ErrSyncConflict if the remote copy changed concurrently.
	Update(ctx context.Context, entity models.SyncableEntity) error

	// Delete removes an entity. Returns an error wrapping app.ErrNotFound if
	// it is already gone.
	Delete(ctx context.Context, key models.EntityKey) error

	// Get fetches the remote copy of an entity. The SyncStatus of the
	// returned value is always empty.
	Get(ctx context.Context, key models.EntityKey) (models.SyncableEntity, error)

	// Query lists the entities of one type and owner modified inside rng,
	// tombstones included.
	Query(ctx context.Context, entityType, ownerID string, rng models.QueryRange) ([]models.SyncableEntity, error)
}
