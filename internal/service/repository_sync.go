// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/MKhiriev/go-sync-keeper/internal/adapter"
	"github.com/MKhiriev/go-sync-keeper/internal/conflict"
	"github.com/MKhiriev/go-sync-keeper/internal/connectivity"
	"github.com/MKhiriev/go-sync-keeper/internal/logger"
	"github.com/MKhiriev/go-sync-keeper/internal/retry"
	"github.com/MKhiriev/go-sync-keeper/internal/store"
	"github.com/MKhiriev/go-sync-keeper/internal/utils"
	"github.com/MKhiriev/go-sync-keeper/internal/validators"
	"github.com/MKhiriev/go-sync-keeper/models"
)

const (
	defaultPushTimeout = 5 * time.Second
	maxDelayFactor     = 4
)

// IDGenerator assigns identifiers to new entities.
type IDGenerator interface {
	Generate() string
}

// RepositorySyncConfig scopes a coordinator to one data domain of one owner.
type RepositorySyncConfig struct {
	EntityType string
	OwnerID    string

	// Strategy resolves entities changed on both sides.
	Strategy models.Strategy

	// PushTimeout bounds every single remote call. Local store operations
	// are not subject to it.
	PushTimeout time.Duration

	// InterItemDelay separates pushes inside one pass. It grows with the
	// number of failures seen in the pass and with the consecutive failed
	// passes reported by the orchestrator.
	InterItemDelay time.Duration
}

type repositorySync struct {
	cfg RepositorySyncConfig

	local     store.LocalStore
	remote    adapter.RemoteStore
	conn      connectivity.Source
	resolver  *conflict.Resolver
	retrier   *retry.Retrier
	validator validators.Validator
	ids       IDGenerator

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error

	// writeMu serializes read-compare-write sequences on the local store.
	// It is never held across a remote call.
	writeMu sync.Mutex

	mu        sync.Mutex
	watermark time.Time
	closed    bool

	bgCtx    context.Context
	bgCancel context.CancelFunc
	bg       sync.WaitGroup

	logger *logger.Logger
}

// NewRepositorySync creates the coordinator of one (entity type, owner) pair.
func NewRepositorySync(
	cfg RepositorySyncConfig,
	local store.LocalStore,
	remote adapter.RemoteStore,
	conn connectivity.Source,
	retrier *retry.Retrier,
	logger *logger.Logger,
) RepositorySync {
	if cfg.PushTimeout <= 0 {
		cfg.PushTimeout = defaultPushTimeout
	}
	if cfg.Strategy == "" {
		cfg.Strategy = models.LastWriteWins
	}
	if retrier == nil {
		retrier = retry.New(retry.DefaultPolicy())
	}

	bgCtx, bgCancel := context.WithCancel(context.Background())
	return &repositorySync{
		cfg:       cfg,
		local:     local,
		remote:    remote,
		conn:      conn,
		resolver:  conflict.NewResolver(cfg.Strategy),
		retrier:   retrier,
		validator: validators.NewEntityValidator(),
		ids:       utils.NewUUIDGenerator(),
		now:       time.Now,
		sleep:     sleepContext,
		bgCtx:     bgCtx,
		bgCancel:  bgCancel,
		logger:    logger.WithDomain(cfg.EntityType),
	}
}

func (r *repositorySync) key(id string) models.EntityKey {
	return models.EntityKey{EntityType: r.cfg.EntityType, OwnerID: r.cfg.OwnerID, ID: id}
}

func (r *repositorySync) withLogger(ctx context.Context) context.Context {
	return r.logger.WithContext(ctx)
}

// ── Save ─────────────────────────────────────────────────────────────────────

// Save implements RepositorySync.
func (r *repositorySync) Save(ctx context.Context, entity models.SyncableEntity) (models.SyncableEntity, error) {
	ctx = r.withLogger(ctx)

	entity, err := r.prepare(ctx, entity)
	if err != nil {
		return models.SyncableEntity{}, err
	}

	saved, err := r.writeLocal(ctx, entity)
	if err != nil {
		return models.SyncableEntity{}, err
	}

	if !r.conn.Connected() {
		return saved, nil
	}
	return r.pushNow(ctx, saved), nil
}

// SaveBatch implements RepositorySync.
func (r *repositorySync) SaveBatch(ctx context.Context, entities []models.SyncableEntity) ([]models.SyncableEntity, error) {
	ctx = r.withLogger(ctx)

	prepared := make([]models.SyncableEntity, 0, len(entities))
	seen := make(map[string]struct{}, len(entities))
	for i, entity := range entities {
		entity, err := r.prepare(ctx, entity)
		if err != nil {
			return nil, fmt.Errorf("entity %d: %w", i, err)
		}
		if _, dup := seen[entity.ID]; dup {
			return nil, fmt.Errorf("entity %d: %w: %s", i, ErrDuplicateID, entity.ID)
		}
		seen[entity.ID] = struct{}{}
		prepared = append(prepared, entity)
	}

	saved := make([]models.SyncableEntity, 0, len(prepared))
	for _, entity := range prepared {
		stored, err := r.writeLocal(ctx, entity)
		if err != nil {
			return saved, err
		}
		saved = append(saved, stored)
	}

	if !r.conn.Connected() {
		return saved, nil
	}
	for i := range saved {
		if i > 0 {
			if err := r.sleep(ctx, r.interItemDelay(0)); err != nil {
				// the rest stays pending for the next pass
				break
			}
		}
		saved[i] = r.pushNow(ctx, saved[i])
	}
	return saved, nil
}

// prepare fills the domain defaults of entity, checks it belongs to this
// coordinator, validates it and assigns an ID to new entities.
func (r *repositorySync) prepare(ctx context.Context, entity models.SyncableEntity) (models.SyncableEntity, error) {
	if entity.EntityType == "" {
		entity.EntityType = r.cfg.EntityType
	}
	if entity.OwnerID == "" {
		entity.OwnerID = r.cfg.OwnerID
	}
	switch {
	case entity.EntityType != r.cfg.EntityType:
		return models.SyncableEntity{}, fmt.Errorf("%w: %s", ErrEntityTypeMismatch, entity.EntityType)
	case entity.OwnerID != r.cfg.OwnerID:
		return models.SyncableEntity{}, fmt.Errorf("%w: %s", ErrOwnerMismatch, entity.OwnerID)
	}

	entity.Deleted = false
	entity.SyncStatus = ""
	if err := r.validator.Validate(ctx, entity); err != nil {
		return models.SyncableEntity{}, err
	}
	if entity.ID == "" {
		entity.ID = r.ids.Generate()
	}
	return entity, nil
}

// writeLocal stamps a new local revision of entity and stores it as PENDING.
func (r *repositorySync) writeLocal(ctx context.Context, entity models.SyncableEntity) (models.SyncableEntity, error) {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	stamp := r.now().UTC()
	version := max(entity.Version, 0)

	existing, err := r.local.Get(ctx, entity.Key())
	switch {
	case err == nil:
		version = max(version, existing.Version)
		if !stamp.After(existing.LastModified) {
			stamp = existing.LastModified.Add(time.Millisecond)
		}
	case !errors.Is(err, store.ErrEntityNotFound):
		return models.SyncableEntity{}, fmt.Errorf("load local copy of %s: %w", entity.ID, err)
	}

	entity.Version = version + 1
	entity.LastModified = stamp
	entity.SyncStatus = models.StatusPending

	if err = r.local.Upsert(ctx, entity); err != nil {
		return models.SyncableEntity{}, fmt.Errorf("save %s locally: %w", entity.ID, err)
	}
	return entity, nil
}

// pushNow makes one bounded push attempt right after a local write. Failures
// are logged and leave the entity unsynced.
func (r *repositorySync) pushNow(ctx context.Context, entity models.SyncableEntity) models.SyncableEntity {
	pushCtx, cancel := context.WithTimeout(ctx, r.cfg.PushTimeout)
	defer cancel()

	err := r.push(pushCtx, entity)
	if err != nil {
		r.logger.Debug().Err(err).Str("func", "repositorySync.pushNow").Str("id", entity.ID).
			Msg("immediate push failed, entity stays pending")
		if r.isTerminal(err) {
			r.markFailed(ctx, entity.Key())
		}
	}

	current, gerr := r.local.Get(ctx, entity.Key())
	if gerr != nil {
		// removed after an acknowledged deletion
		return entity
	}
	return current
}

// ── Get / Refresh ────────────────────────────────────────────────────────────

// Get implements RepositorySync.
func (r *repositorySync) Get(ctx context.Context, id string) (models.SyncableEntity, error) {
	if id == "" {
		return models.SyncableEntity{}, ErrEmptyID
	}
	ctx = r.withLogger(ctx)
	key := r.key(id)

	cached, err := r.local.Get(ctx, key)
	switch {
	case err == nil:
		if r.conn.Connected() {
			r.refreshInBackground(id)
		}
		if cached.Deleted {
			return models.SyncableEntity{}, fmt.Errorf("%w: %s is deleted", store.ErrEntityNotFound, id)
		}
		return cached, nil

	case errors.Is(err, store.ErrEntityNotFound):
		if !r.conn.Connected() {
			return models.SyncableEntity{}, err
		}
		fetched, ferr := r.Refresh(ctx, id)
		if ferr != nil {
			r.logger.Debug().Err(ferr).Str("func", "repositorySync.Get").Str("id", id).Msg("remote fetch after local miss failed")
			return models.SyncableEntity{}, err
		}
		return fetched, nil

	default:
		return models.SyncableEntity{}, err
	}
}

func (r *repositorySync) refreshInBackground(id string) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.bg.Add(1)
	r.mu.Unlock()

	go func() {
		defer r.bg.Done()
		if _, err := r.Refresh(r.bgCtx, id); err != nil {
			r.logger.Debug().Err(err).Str("func", "repositorySync.refreshInBackground").Str("id", id).
				Msg("background refresh failed, keeping cached value")
		}
	}()
}

// Refresh implements RepositorySync.
func (r *repositorySync) Refresh(ctx context.Context, id string) (models.SyncableEntity, error) {
	if id == "" {
		return models.SyncableEntity{}, ErrEmptyID
	}
	ctx = r.withLogger(ctx)
	key := r.key(id)

	fetchCtx, cancel := context.WithTimeout(ctx, r.cfg.PushTimeout)
	remoteCopy, err := r.remote.Get(fetchCtx, key)
	cancel()
	if err != nil {
		return models.SyncableEntity{}, fmt.Errorf("fetch remote copy of %s: %w", id, err)
	}

	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	local, err := r.local.Get(ctx, key)
	if errors.Is(err, store.ErrEntityNotFound) {
		if remoteCopy.Deleted {
			return models.SyncableEntity{}, fmt.Errorf("%w: %s is deleted", store.ErrEntityNotFound, id)
		}
		remoteCopy.SyncStatus = models.StatusSynced
		if err = r.local.Upsert(ctx, remoteCopy); err != nil {
			return models.SyncableEntity{}, fmt.Errorf("store remote copy of %s: %w", id, err)
		}
		return remoteCopy, nil
	}
	if err != nil {
		return models.SyncableEntity{}, fmt.Errorf("load local copy of %s: %w", id, err)
	}

	if r.resolver.Newer(local, remoteCopy) == conflict.SideRemote {
		if remoteCopy.Deleted {
			if err = r.local.Remove(ctx, key); err != nil {
				return models.SyncableEntity{}, fmt.Errorf("apply remote deletion of %s: %w", id, err)
			}
			return models.SyncableEntity{}, fmt.Errorf("%w: %s is deleted", store.ErrEntityNotFound, id)
		}
		remoteCopy.SyncStatus = models.StatusSynced
		if err = r.local.Upsert(ctx, remoteCopy); err != nil {
			return models.SyncableEntity{}, fmt.Errorf("store remote copy of %s: %w", id, err)
		}
		return remoteCopy, nil
	}

	// local wins
	switch {
	case local.SameContent(remoteCopy):
		if local.SyncStatus != models.StatusSynced {
			if _, err = r.local.MarkSynced(ctx, key, local.Version); err != nil {
				return local, fmt.Errorf("mark %s synced: %w", id, err)
			}
			local.SyncStatus = models.StatusSynced
		}
	case local.SyncStatus == models.StatusSynced:
		// the remote copy is behind a value we believed synced
		if err = r.local.MarkPending(ctx, key); err != nil {
			return local, fmt.Errorf("mark %s pending: %w", id, err)
		}
		local.SyncStatus = models.StatusPending
	}

	if local.Deleted {
		return models.SyncableEntity{}, fmt.Errorf("%w: %s is deleted", store.ErrEntityNotFound, id)
	}
	return local, nil
}

// ── Delete / List ────────────────────────────────────────────────────────────

// Delete implements RepositorySync.
func (r *repositorySync) Delete(ctx context.Context, id string) error {
	if id == "" {
		return ErrEmptyID
	}
	ctx = r.withLogger(ctx)

	tombstone, err := r.writeTombstone(ctx, r.key(id))
	if err != nil {
		return err
	}

	if r.conn.Connected() {
		r.pushNow(ctx, tombstone)
	}
	return nil
}

func (r *repositorySync) writeTombstone(ctx context.Context, key models.EntityKey) (models.SyncableEntity, error) {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	current, err := r.local.Get(ctx, key)
	if err != nil {
		return models.SyncableEntity{}, err
	}
	if current.Deleted {
		return current, nil
	}

	stamp := r.now().UTC()
	if !stamp.After(current.LastModified) {
		stamp = current.LastModified.Add(time.Millisecond)
	}
	current.Deleted = true
	current.Version++
	current.LastModified = stamp
	current.SyncStatus = models.StatusPending

	if err = r.local.Upsert(ctx, current); err != nil {
		return models.SyncableEntity{}, fmt.Errorf("write tombstone for %s: %w", key.ID, err)
	}
	return current, nil
}

// List implements RepositorySync.
func (r *repositorySync) List(ctx context.Context) ([]models.SyncableEntity, error) {
	return r.local.List(r.withLogger(ctx), r.cfg.EntityType, r.cfg.OwnerID)
}

// Sync implements Syncer: push, then pull, then push again whatever the pull
// had to merge.
func (r *repositorySync) Sync(ctx context.Context) (models.SyncResult, error) {
	result, err := r.SyncPendingChanges(ctx)
	if err != nil {
		return result, err
	}

	pulled, err := r.PullRemoteChanges(ctx)
	result.Add(pulled)
	if err != nil {
		return result, err
	}

	if pulled.Merged > 0 {
		again, err := r.SyncPendingChanges(ctx)
		result.Add(again)
		return result, err
	}
	return result, nil
}

// Close implements RepositorySync.
func (r *repositorySync) Close() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	r.bgCancel()
	r.bg.Wait()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
