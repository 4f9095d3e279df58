// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package service

import (
	"context"

	"github.com/MKhiriev/go-sync-keeper/models"
)

// BuildPullPlan classifies remote changes against the local copies of the same
// entities. It performs a purely in-memory comparison and produces no side
// effects.
//
// localData only needs to contain the local copies of entities present in
// remoteData; anything else is ignored. Local-only entities are the push
// side's business.
//
// Every remote record lands in at most one category:
//
//   - not known locally: a live record is downloaded, a tombstone is ignored
//     (created and deleted elsewhere before this device ever saw it);
//   - known locally and unchanged here (SYNCED): a remote tombstone deletes
//     the local copy, any other difference is downloaded;
//   - known locally with unsynced local changes: the entity needs conflict
//     resolution unless both copies are already identical in version and
//     timestamp.
//
// ctx cancellation is checked at the start of each iteration so that callers
// can abort early on large change sets.
func BuildPullPlan(ctx context.Context, remoteData, localData []models.EntityState) (models.PullPlan, error) {
	var plan models.PullPlan

	localIndex := make(map[string]models.EntityState, len(localData))
	for _, ld := range localData {
		localIndex[ld.ID] = ld
	}

	for _, rd := range remoteData {
		if err := ctx.Err(); err != nil {
			return models.PullPlan{}, err
		}

		ld, existsLocally := localIndex[rd.ID]
		if !existsLocally {
			if !rd.Deleted {
				plan.Download = append(plan.Download, rd)
			}
			continue
		}

		same := rd.Version == ld.Version && rd.LastModified.Equal(ld.LastModified) && rd.Deleted == ld.Deleted

		switch {
		case same:
			// Already converged, or the local side is about to push the very
			// same copy.

		case ld.Status == models.StatusSynced:
			if rd.Deleted {
				plan.DeleteLocal = append(plan.DeleteLocal, rd)
			} else {
				plan.Download = append(plan.Download, rd)
			}

		default: // PENDING or FAILED: changed on both sides
			plan.Resolve = append(plan.Resolve, rd)
		}
	}

	return plan, nil
}
