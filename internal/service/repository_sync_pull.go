// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/MKhiriev/go-sync-keeper/internal/store"
	"github.com/MKhiriev/go-sync-keeper/models"
)

// PullRemoteChanges implements RepositorySync.
//
// The watermark is the greatest LastModified seen in a fully applied pull. It
// lives in memory only, so the first pull after a restart queries everything.
func (r *repositorySync) PullRemoteChanges(ctx context.Context) (models.SyncResult, error) {
	ctx = r.withLogger(ctx)
	var result models.SyncResult

	r.mu.Lock()
	since := r.watermark
	r.mu.Unlock()

	queryCtx, cancel := context.WithTimeout(ctx, r.cfg.PushTimeout)
	items, err := r.remote.Query(queryCtx, r.cfg.EntityType, r.cfg.OwnerID, models.QueryRange{Since: since})
	cancel()
	if err != nil {
		return result, fmt.Errorf("query remote changes: %w", err)
	}
	if len(items) == 0 {
		return result, nil
	}

	remoteIndex := make(map[string]models.SyncableEntity, len(items))
	remoteStates := make([]models.EntityState, 0, len(items))
	localStates := make([]models.EntityState, 0, len(items))
	latest := since
	for _, item := range items {
		remoteIndex[item.ID] = item
		remoteStates = append(remoteStates, models.StateOf(item))
		if item.LastModified.After(latest) {
			latest = item.LastModified
		}

		local, lerr := r.local.Get(ctx, item.Key())
		switch {
		case lerr == nil:
			localStates = append(localStates, models.StateOf(local))
		case !errors.Is(lerr, store.ErrEntityNotFound):
			return result, fmt.Errorf("load local copy of %s: %w", item.ID, lerr)
		}
	}

	plan, err := BuildPullPlan(ctx, remoteStates, localStates)
	if err != nil {
		return result, err
	}

	for _, st := range plan.Download {
		if err = r.applyDownload(ctx, remoteIndex[st.ID]); err != nil {
			return result, err
		}
		result.Pulled++
	}
	for _, st := range plan.DeleteLocal {
		if err = r.applyRemoteDeletion(ctx, remoteIndex[st.ID]); err != nil {
			return result, err
		}
		result.Pulled++
	}
	for _, st := range plan.Resolve {
		local, lerr := r.local.Get(ctx, r.key(st.ID))
		if lerr != nil {
			return result, fmt.Errorf("load local copy of %s: %w", st.ID, lerr)
		}
		if _, _, err = r.applyResolution(ctx, local, remoteIndex[st.ID]); err != nil {
			return result, err
		}
		result.Pulled++
		result.Merged++
	}

	r.mu.Lock()
	if latest.After(r.watermark) {
		r.watermark = latest
	}
	r.mu.Unlock()

	r.logger.Debug().Str("func", "repositorySync.PullRemoteChanges").
		Int("download", len(plan.Download)).Int("delete", len(plan.DeleteLocal)).Int("resolve", len(plan.Resolve)).
		Msg("remote changes applied")
	return result, nil
}

// applyDownload stores a remote copy as SYNCED unless a local write slipped
// in after planning.
func (r *repositorySync) applyDownload(ctx context.Context, remoteCopy models.SyncableEntity) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	current, err := r.local.Get(ctx, remoteCopy.Key())
	switch {
	case err == nil && current.SyncStatus != models.StatusSynced:
		return nil
	case err != nil && !errors.Is(err, store.ErrEntityNotFound):
		return fmt.Errorf("load local copy of %s: %w", remoteCopy.ID, err)
	}

	remoteCopy.SyncStatus = models.StatusSynced
	if err = r.local.Upsert(ctx, remoteCopy); err != nil {
		return fmt.Errorf("store remote copy of %s: %w", remoteCopy.ID, err)
	}
	return nil
}

func (r *repositorySync) applyRemoteDeletion(ctx context.Context, tombstone models.SyncableEntity) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	current, err := r.local.Get(ctx, tombstone.Key())
	switch {
	case errors.Is(err, store.ErrEntityNotFound):
		return nil
	case err != nil:
		return fmt.Errorf("load local copy of %s: %w", tombstone.ID, err)
	case current.SyncStatus != models.StatusSynced:
		return nil
	}

	if err = r.local.Remove(ctx, tombstone.Key()); err != nil {
		return fmt.Errorf("apply remote deletion of %s: %w", tombstone.ID, err)
	}
	return nil
}

