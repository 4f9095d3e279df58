// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MKhiriev/go-sync-keeper/internal/app"
	"github.com/MKhiriev/go-sync-keeper/internal/logger"
	"github.com/MKhiriev/go-sync-keeper/internal/retry"
	"github.com/MKhiriev/go-sync-keeper/internal/store"
	"github.com/MKhiriev/go-sync-keeper/models"
)

// push makes one attempt to propagate entity and records the outcome locally.
func (r *repositorySync) push(ctx context.Context, entity models.SyncableEntity) error {
	key := entity.Key()

	if entity.Deleted {
		err := r.remote.Delete(ctx, key)
		switch {
		case err == nil, errors.Is(err, app.ErrNotFound):
			return r.removeAcknowledged(ctx, entity)
		case errors.Is(err, app.ErrSyncConflict):
			return r.absorbConflict(ctx, entity)
		default:
			return err
		}
	}

	err := r.remote.Update(ctx, entity)
	if errors.Is(err, app.ErrNotFound) {
		err = r.remote.Create(ctx, entity)
	}
	switch {
	case err == nil:
		return r.markSynced(ctx, entity)
	case errors.Is(err, app.ErrSyncConflict):
		return r.absorbConflict(ctx, entity)
	default:
		return err
	}
}

func (r *repositorySync) markSynced(ctx context.Context, entity models.SyncableEntity) error {
	ok, err := r.local.MarkSynced(ctx, entity.Key(), entity.Version)
	if err != nil {
		return fmt.Errorf("mark %s synced: %w", entity.ID, err)
	}
	if !ok {
		logger.FromContext(ctx).Debug().Str("func", "repositorySync.markSynced").Str("id", entity.ID).
			Msg("entity changed locally during push, stays pending")
	}
	return nil
}

// removeAcknowledged drops a tombstone once the remote deletion is confirmed,
// unless the entity was written again meanwhile.
func (r *repositorySync) removeAcknowledged(ctx context.Context, tombstone models.SyncableEntity) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	current, err := r.local.Get(ctx, tombstone.Key())
	if errors.Is(err, store.ErrEntityNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load tombstone %s: %w", tombstone.ID, err)
	}
	if !current.Deleted || current.Version != tombstone.Version {
		return nil
	}
	if err = r.local.Remove(ctx, tombstone.Key()); err != nil {
		return fmt.Errorf("remove tombstone %s: %w", tombstone.ID, err)
	}
	return nil
}

// absorbConflict resolves a rejected push against the current remote copy and
// pushes the resolution. A second conflict is returned as is; the entity
// stays pending for the next pass.
func (r *repositorySync) absorbConflict(ctx context.Context, local models.SyncableEntity) error {
	remoteCopy, err := r.remote.Get(ctx, local.Key())
	if errors.Is(err, app.ErrNotFound) {
		if local.Deleted {
			return r.removeAcknowledged(ctx, local)
		}
		if err = r.remote.Create(ctx, local); err != nil {
			return err
		}
		return r.markSynced(ctx, local)
	}
	if err != nil {
		return fmt.Errorf("fetch conflicting copy of %s: %w", local.ID, err)
	}

	resolved, applied, err := r.applyResolution(ctx, local, remoteCopy)
	if err != nil || !applied {
		return err
	}

	if resolved.Deleted {
		err = r.remote.Delete(ctx, resolved.Key())
		if err == nil || errors.Is(err, app.ErrNotFound) {
			return r.removeAcknowledged(ctx, resolved)
		}
		return err
	}

	if err = r.remote.Update(ctx, resolved); err != nil {
		return err
	}
	return r.markSynced(ctx, resolved)
}

// applyResolution resolves local against remote with the configured strategy
// and stores the result as PENDING. It reports false when the local copy
// changed since local was read; the newer write wins and is pushed later.
func (r *repositorySync) applyResolution(ctx context.Context, local, remoteCopy models.SyncableEntity) (models.SyncableEntity, bool, error) {
	res, err := r.resolver.Resolve(local, remoteCopy, r.cfg.Strategy)
	if err != nil {
		return models.SyncableEntity{}, false, err
	}
	if res.RequiresDecision {
		logger.FromContext(ctx).Info().Str("func", "repositorySync.applyResolution").Str("id", local.ID).
			Int("conflicts", len(res.Conflicts)).
			Msg("manual resolution requested, applying last-write-wins fallback")
	}

	resolved := res.Entity
	resolved.SyncStatus = models.StatusPending

	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	current, err := r.local.Get(ctx, local.Key())
	if err != nil {
		return models.SyncableEntity{}, false, fmt.Errorf("reload %s before merge: %w", local.ID, err)
	}
	if current.Version != local.Version {
		return models.SyncableEntity{}, false, nil
	}
	if err = r.local.Upsert(ctx, resolved); err != nil {
		return models.SyncableEntity{}, false, fmt.Errorf("store resolution of %s: %w", local.ID, err)
	}

	logger.FromContext(ctx).Debug().Str("func", "repositorySync.applyResolution").Str("id", local.ID).
		Str("winner", res.Winner.String()).Int64("version", resolved.Version).
		Msg("conflict resolved")
	return resolved, true, nil
}

func (r *repositorySync) markFailed(ctx context.Context, key models.EntityKey) {
	if err := r.local.MarkFailed(ctx, key); err != nil && !errors.Is(err, store.ErrEntityNotFound) {
		r.logger.Err(err).Str("func", "repositorySync.markFailed").Str("id", key.ID).Msg("failed to mark entity as failed")
	}
}

// isTerminal reports whether a push error must not be retried in later
// passes either. Conflicts are absorbed and cancellations are not the
// entity's fault, so neither counts.
func (r *repositorySync) isTerminal(err error) bool {
	if errors.Is(err, app.ErrSyncConflict) || errors.Is(err, context.Canceled) {
		return false
	}
	return r.retrier.Classify(err) == retry.Terminal
}

// SyncPendingChanges implements RepositorySync.
//
// Entities are pushed one by one. Transient failures exhaust the per-item
// retry policy and leave the entity PENDING; terminal failures mark it
// FAILED. Either way it is listed again by the next pass.
func (r *repositorySync) SyncPendingChanges(ctx context.Context) (models.SyncResult, error) {
	ctx = r.withLogger(ctx)
	var result models.SyncResult

	pending, err := r.local.ListPending(ctx, r.cfg.EntityType, r.cfg.OwnerID)
	if err != nil {
		return result, fmt.Errorf("list pending entities: %w", err)
	}

	failures := failurePressure(ctx)
	for i, entity := range pending {
		if err = ctx.Err(); err != nil {
			return result, err
		}
		if i > 0 {
			if err = r.sleep(ctx, r.interItemDelay(failures)); err != nil {
				return result, err
			}
		}

		result.Attempted++
		err = r.retrier.Do(ctx, func(ctx context.Context) error {
			current, gerr := r.local.Get(ctx, entity.Key())
			if errors.Is(gerr, store.ErrEntityNotFound) {
				return nil
			}
			if gerr != nil {
				return gerr
			}
			if current.SyncStatus == models.StatusSynced {
				return nil
			}

			pushCtx, cancel := context.WithTimeout(ctx, r.cfg.PushTimeout)
			defer cancel()
			return r.push(pushCtx, current)
		})
		if err == nil {
			result.Succeeded++
			continue
		}

		if ctx.Err() != nil {
			result.Failed++
			result.Failures = append(result.Failures, models.ItemFailure{ID: entity.ID, Err: err, Reason: err.Error()})
			return result, ctx.Err()
		}

		failures++
		terminal := r.isTerminal(err)
		if terminal {
			r.markFailed(ctx, entity.Key())
		}
		result.Failed++
		result.Failures = append(result.Failures, models.ItemFailure{
			ID:       entity.ID,
			Err:      err,
			Reason:   err.Error(),
			Terminal: terminal,
		})

		r.logger.Warn().Err(err).Str("func", "repositorySync.SyncPendingChanges").
			Str("id", entity.ID).Bool("terminal", terminal).Msg("push failed")
	}

	return result, nil
}

// interItemDelay grows linearly with the failures seen in the current pass
// plus the failed passes preceding it, capped at five times the base delay.
func (r *repositorySync) interItemDelay(failures int) time.Duration {
	return r.cfg.InterItemDelay * time.Duration(1+min(failures, maxDelayFactor))
}

type failurePressureKey struct{}

// withFailurePressure records how many passes failed in a row before the one
// running under ctx.
func withFailurePressure(ctx context.Context, consecutiveFailures int) context.Context {
	if consecutiveFailures <= 0 {
		return ctx
	}
	return context.WithValue(ctx, failurePressureKey{}, consecutiveFailures)
}

func failurePressure(ctx context.Context) int {
	n, _ := ctx.Value(failurePressureKey{}).(int)
	return n
}
